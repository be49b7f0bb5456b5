package store

import "fmt"

// schemaSQL returns the DDL for all tables. embeddingDim controls the
// vec0 virtual table dimension.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- Knowledge graph: acts, codes, the constitution
CREATE TABLE IF NOT EXISTS instruments (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT ''
);

-- Knowledge graph: sections and articles
CREATE TABLE IF NOT EXISTS provisions (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL CHECK (kind IN ('section', 'article')),
    number TEXT NOT NULL,
    instrument_id TEXT NOT NULL REFERENCES instruments(id) ON DELETE CASCADE,
    full_text TEXT NOT NULL DEFAULT ''
);

-- Knowledge graph: judgments; NULL year means unknown
CREATE TABLE IF NOT EXISTS cases (
    id TEXT PRIMARY KEY,
    year INTEGER,
    text TEXT NOT NULL DEFAULT ''
);

-- Knowledge graph: case -> provision citation edges
CREATE TABLE IF NOT EXISTS citations (
    case_id TEXT NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
    target_id TEXT NOT NULL REFERENCES provisions(id) ON DELETE CASCADE,
    relation TEXT NOT NULL DEFAULT 'cites',
    PRIMARY KEY (case_id, target_id, relation)
);

-- Retrieval chunks; chunk_id is the external identifier
CREATE TABLE IF NOT EXISTS chunks (
    id INTEGER PRIMARY KEY,
    chunk_id TEXT NOT NULL UNIQUE,
    source_kind TEXT NOT NULL CHECK (source_kind IN ('case', 'section', 'article')),
    source_id TEXT NOT NULL,
    position INTEGER NOT NULL DEFAULT 0,
    text TEXT NOT NULL,
    token_count INTEGER NOT NULL DEFAULT 0,
    content_hash TEXT NOT NULL
);

-- Vector embeddings via sqlite-vec
CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
    chunk_rowid INTEGER PRIMARY KEY,
    embedding float[%d] distance_metric=cosine
);

-- Query audit log
CREATE TABLE IF NOT EXISTS query_log (
    id INTEGER PRIMARY KEY,
    request_id TEXT NOT NULL,
    query TEXT NOT NULL,
    legal_query TEXT,
    answer TEXT,
    used_constraints INTEGER NOT NULL DEFAULT 0,
    used_fallback INTEGER NOT NULL DEFAULT 0,
    top_similarity REAL NOT NULL DEFAULT 0,
    graph_error TEXT,
    vector_error TEXT,
    model_used TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_provisions_number ON provisions(kind, number);
CREATE INDEX IF NOT EXISTS idx_provisions_instrument ON provisions(instrument_id);
CREATE INDEX IF NOT EXISTS idx_citations_target ON citations(target_id);
`, embeddingDim)
}
