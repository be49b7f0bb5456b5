package store

import (
	"context"
	"database/sql"
	"time"
)

// QueryLog represents a row in the query_log table.
type QueryLog struct {
	RequestID       string        `json:"request_id"`
	Query           string        `json:"query"`
	LegalQuery      string        `json:"legal_query,omitempty"`
	Answer          string        `json:"answer"`
	UsedConstraints bool          `json:"used_constraints"`
	UsedFallback    bool          `json:"used_fallback"`
	TopSimilarity   float64       `json:"top_similarity"`
	GraphError      string        `json:"graph_error,omitempty"`
	VectorError     string        `json:"vector_error,omitempty"`
	ModelUsed       string        `json:"model_used"`
	Elapsed         time.Duration `json:"elapsed"`
	CreatedAt       string        `json:"created_at,omitempty"`
}

// LogQuery records one answered request.
func (s *Store) LogQuery(ctx context.Context, q QueryLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_log (request_id, query, legal_query, answer, used_constraints, used_fallback,
			top_similarity, graph_error, vector_error, model_used, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, q.RequestID, q.Query, nullString(q.LegalQuery), q.Answer, q.UsedConstraints, q.UsedFallback,
		q.TopSimilarity, nullString(q.GraphError), nullString(q.VectorError), q.ModelUsed,
		q.Elapsed.Milliseconds())
	return err
}

// RecentQueries returns the latest n log rows, newest first.
func (s *Store) RecentQueries(ctx context.Context, n int) ([]QueryLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, query, COALESCE(legal_query, ''), COALESCE(answer, ''),
			used_constraints, used_fallback, top_similarity,
			COALESCE(graph_error, ''), COALESCE(vector_error, ''), COALESCE(model_used, ''),
			elapsed_ms, created_at
		FROM query_log ORDER BY id DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []QueryLog
	for rows.Next() {
		var q QueryLog
		var elapsedMS int64
		if err := rows.Scan(&q.RequestID, &q.Query, &q.LegalQuery, &q.Answer,
			&q.UsedConstraints, &q.UsedFallback, &q.TopSimilarity,
			&q.GraphError, &q.VectorError, &q.ModelUsed, &elapsedMS, &q.CreatedAt); err != nil {
			return nil, err
		}
		q.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		out = append(out, q)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
