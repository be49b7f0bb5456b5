package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable is the single condition graph stores report for
// connectivity, authentication and protocol failures.
var ErrUnavailable = errors.New("graph: store unavailable")

// Unavailable wraps a transport error as ErrUnavailable.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Store is the read interface the resolver and display helpers need.
// Implementations validate rows before returning them.
type Store interface {
	// ProvisionsByNumber returns provisions of kind whose designator is in
	// numbers. An empty instrumentID matches every instrument.
	ProvisionsByNumber(ctx context.Context, kind Kind, numbers []string, instrumentID string) ([]Provision, error)

	// CasesCiting returns the distinct cases with a citation edge to any of
	// targetIDs.
	CasesCiting(ctx context.Context, targetIDs []string) ([]Case, error)

	// InstrumentsByID returns the instruments with the given ids.
	InstrumentsByID(ctx context.Context, ids []string) ([]Instrument, error)

	// CaseDetails returns cases with Text cut to snippetLen runes.
	CaseDetails(ctx context.Context, ids []string, snippetLen int) ([]Case, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// Snippet cuts s to n runes and marks the cut with "...".
func Snippet(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// UniqueNonEmpty drops empty and repeated ids, keeping first-seen order.
func UniqueNonEmpty(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Designators uppercases and dedupes provision numbers, so "21a" and "21A"
// name the same provision. Stores compare numbers in this form.
func Designators(numbers []string) []string {
	up := make([]string, len(numbers))
	for i, n := range numbers {
		up[i] = strings.ToUpper(strings.TrimSpace(n))
	}
	return UniqueNonEmpty(up)
}
