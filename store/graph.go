package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/graph"
)

// Store satisfies the graph read interface.
var _ graph.Store = (*Store)(nil)

// --- Graph writes ---

// UpsertInstrument inserts or updates an instrument.
func (s *Store) UpsertInstrument(ctx context.Context, inst graph.Instrument) error {
	if err := inst.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO instruments (id, name, category) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, category = excluded.category
	`, inst.ID, inst.Name, inst.Category)
	return err
}

// UpsertProvision inserts or updates a section or article.
func (s *Store) UpsertProvision(ctx context.Context, p graph.Provision) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provisions (id, kind, number, instrument_id, full_text) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			number = excluded.number,
			instrument_id = excluded.instrument_id,
			full_text = excluded.full_text
	`, p.ID, string(p.Kind), p.Number, p.InstrumentID, p.FullText)
	return err
}

// UpsertCase inserts or updates a case. UnknownYear is stored as NULL.
func (s *Store) UpsertCase(ctx context.Context, c graph.Case) error {
	if err := c.Validate(); err != nil {
		return err
	}
	var year sql.NullInt64
	if c.Year != graph.UnknownYear && c.Year != 0 {
		year = sql.NullInt64{Int64: int64(c.Year), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cases (id, year, text) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET year = excluded.year, text = excluded.text
	`, c.ID, year, c.Text)
	return err
}

// InsertCitation adds a citation edge; duplicates are ignored.
func (s *Store) InsertCitation(ctx context.Context, c graph.Citation) error {
	if err := c.Validate(); err != nil {
		return err
	}
	rel := c.Relation
	if rel == "" {
		rel = graph.RelCites
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO citations (case_id, target_id, relation) VALUES (?, ?, ?)",
		c.CaseID, c.TargetID, rel)
	return err
}

// --- Graph reads ---

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return graph.Unavailable(err)
	}
	return nil
}

func (s *Store) ProvisionsByNumber(ctx context.Context, kind graph.Kind, numbers []string, instrumentID string) ([]graph.Provision, error) {
	nums := graph.Designators(numbers)
	if len(nums) == 0 {
		return nil, nil
	}
	in, args := inClause(nums)
	args = append([]any{string(kind)}, args...)
	args = append(args, instrumentID, instrumentID)

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.kind, p.number, p.instrument_id, COALESCE(i.name, ''), p.full_text
		FROM provisions p
		LEFT JOIN instruments i ON i.id = p.instrument_id
		WHERE p.kind = ? AND UPPER(p.number) IN (`+in+`)
		  AND (? = '' OR p.instrument_id = ?)
		ORDER BY p.instrument_id, p.id
	`, args...)
	if err != nil {
		return nil, graph.Unavailable(err)
	}
	defer rows.Close()

	var out []graph.Provision
	for rows.Next() {
		var p graph.Provision
		var k string
		if err := rows.Scan(&p.ID, &k, &p.Number, &p.InstrumentID, &p.InstrumentName, &p.FullText); err != nil {
			return nil, graph.Unavailable(err)
		}
		p.Kind = graph.Kind(k)
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, graph.Unavailable(err)
	}
	return out, nil
}

func (s *Store) CasesCiting(ctx context.Context, targetIDs []string) ([]graph.Case, error) {
	ids := graph.UniqueNonEmpty(targetIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT c.id, c.year
		FROM citations ci
		JOIN cases c ON c.id = ci.case_id
		WHERE ci.target_id IN (`+in+`)
		ORDER BY c.id
	`, args...)
	if err != nil {
		return nil, graph.Unavailable(err)
	}
	defer rows.Close()

	var out []graph.Case
	for rows.Next() {
		var c graph.Case
		var year sql.NullInt64
		if err := rows.Scan(&c.ID, &year); err != nil {
			return nil, graph.Unavailable(err)
		}
		c.Year = yearOrUnknown(year)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, graph.Unavailable(err)
	}
	return out, nil
}

func (s *Store) InstrumentsByID(ctx context.Context, ids []string) ([]graph.Instrument, error) {
	ids = graph.UniqueNonEmpty(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, category FROM instruments WHERE id IN ("+in+") ORDER BY id", args...)
	if err != nil {
		return nil, graph.Unavailable(err)
	}
	defer rows.Close()

	var out []graph.Instrument
	for rows.Next() {
		var inst graph.Instrument
		if err := rows.Scan(&inst.ID, &inst.Name, &inst.Category); err != nil {
			return nil, graph.Unavailable(err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, graph.Unavailable(err)
	}
	return out, nil
}

func (s *Store) CaseDetails(ctx context.Context, ids []string, snippetLen int) ([]graph.Case, error) {
	ids = graph.UniqueNonEmpty(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, year, text FROM cases WHERE id IN ("+in+") ORDER BY id", args...)
	if err != nil {
		return nil, graph.Unavailable(err)
	}
	defer rows.Close()

	var out []graph.Case
	for rows.Next() {
		var c graph.Case
		var year sql.NullInt64
		var text string
		if err := rows.Scan(&c.ID, &year, &text); err != nil {
			return nil, graph.Unavailable(err)
		}
		c.Year = yearOrUnknown(year)
		c.Text = graph.Snippet(strings.TrimSpace(text), snippetLen)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, graph.Unavailable(err)
	}
	return out, nil
}

// ProvisionByID loads one provision, or returns an error if it is missing.
func (s *Store) ProvisionByID(ctx context.Context, id string) (*graph.Provision, error) {
	var p graph.Provision
	var k string
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.kind, p.number, p.instrument_id, COALESCE(i.name, ''), p.full_text
		FROM provisions p LEFT JOIN instruments i ON i.id = p.instrument_id
		WHERE p.id = ?
	`, id).Scan(&p.ID, &k, &p.Number, &p.InstrumentID, &p.InstrumentName, &p.FullText)
	if err != nil {
		return nil, fmt.Errorf("provision %s: %w", id, err)
	}
	p.Kind = graph.Kind(k)
	return &p, nil
}

func yearOrUnknown(y sql.NullInt64) int {
	if !y.Valid {
		return graph.UnknownYear
	}
	return int(y.Int64)
}
