package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// Chunk represents a row in the chunks table.
type Chunk struct {
	RowID      int64  `json:"-"`
	ChunkID    string `json:"chunk_id"`
	SourceKind string `json:"source_type"`
	SourceID   string `json:"source_id"`
	Position   int    `json:"position"`
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
}

// ChunkHit is a chunk with its similarity to a query.
type ChunkHit struct {
	Chunk
	Score float64 `json:"score"`
}

// InsertChunks upserts a batch of chunks keyed by ChunkID and returns their
// row ids, which key the vector table.
func (s *Store) InsertChunks(ctx context.Context, chunks []Chunk) ([]int64, error) {
	ids := make([]int64, len(chunks))

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (chunk_id, source_kind, source_id, position, text, token_count, content_hash)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(chunk_id) DO UPDATE SET
				source_kind = excluded.source_kind,
				source_id = excluded.source_id,
				position = excluded.position,
				text = excluded.text,
				token_count = excluded.token_count,
				content_hash = excluded.content_hash
			RETURNING id
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, c := range chunks {
			if c.ChunkID == "" || c.SourceID == "" {
				return fmt.Errorf("chunk %d: chunk_id and source_id are required", i)
			}
			hash := sha256.Sum256([]byte(c.Text))
			if err := stmt.QueryRowContext(ctx,
				c.ChunkID, c.SourceKind, c.SourceID, c.Position, c.Text, c.TokenCount,
				hex.EncodeToString(hash[:])).Scan(&ids[i]); err != nil {
				return fmt.Errorf("inserting chunk %s: %w", c.ChunkID, err)
			}
		}
		return nil
	})

	return ids, err
}

// DeleteChunksBySource removes every chunk owned by any of ids, with its
// vector, and returns the number of chunks removed.
func (s *Store) DeleteChunksBySource(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	in, args := inClause(ids)
	removed := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT id FROM chunks WHERE source_id IN ("+in+")", args...)
		if err != nil {
			return err
		}
		var rowIDs []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			rowIDs = append(rowIDs, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		// vec0 deletes by primary key only.
		for _, id := range rowIDs {
			if _, err := tx.ExecContext(ctx, "DELETE FROM vec_chunks WHERE chunk_rowid = ?", id); err != nil {
				return fmt.Errorf("deleting vector %d: %w", id, err)
			}
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE source_id IN ("+in+")", args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		removed = int(n)
		return err
	})
	return removed, err
}

// InsertEmbedding stores a vector embedding for a chunk row.
func (s *Store) InsertEmbedding(ctx context.Context, rowID int64, embedding []float32) error {
	if len(embedding) != s.embeddingDim {
		return fmt.Errorf("embedding has %d dims, index expects %d", len(embedding), s.embeddingDim)
	}
	// vec0 does not support upsert.
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM vec_chunks WHERE chunk_rowid = ?", rowID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO vec_chunks (chunk_rowid, embedding) VALUES (?, ?)",
			rowID, serializeFloat32(embedding))
		return err
	})
}

// VectorSearch performs a KNN search returning the top-k nearest chunks,
// most similar first. Score is cosine similarity.
func (s *Store) VectorSearch(ctx context.Context, queryEmbedding []float32, k int) ([]ChunkHit, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.chunk_id, c.source_kind, c.source_id, c.position, c.text, c.token_count, v.distance
		FROM vec_chunks v
		JOIN chunks c ON c.id = v.chunk_rowid
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(queryEmbedding), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ChunkHit
	for rows.Next() {
		var h ChunkHit
		var distance float64
		if err := rows.Scan(&h.RowID, &h.ChunkID, &h.SourceKind, &h.SourceID,
			&h.Position, &h.Text, &h.TokenCount, &distance); err != nil {
			return nil, err
		}
		h.Score = 1.0 - distance
		results = append(results, h)
	}
	return results, rows.Err()
}

// ChunksBySource returns up to limit chunks whose source id is in ids, in
// insertion order.
func (s *Store) ChunksBySource(ctx context.Context, ids []string, limit int) ([]Chunk, error) {
	if len(ids) == 0 || limit <= 0 {
		return nil, nil
	}
	in, args := inClause(ids)
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chunk_id, source_kind, source_id, position, text, token_count
		FROM chunks
		WHERE source_id IN (`+in+`)
		ORDER BY id
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.RowID, &c.ChunkID, &c.SourceKind, &c.SourceID,
			&c.Position, &c.Text, &c.TokenCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ChunkCount returns the number of embedded chunks.
func (s *Store) ChunkCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vec_chunks").Scan(&n)
	return n, err
}
