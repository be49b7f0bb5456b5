// Package graph models the statutory knowledge graph (instruments, their
// provisions and the cases citing them) and resolves explicit query
// references into retrieval constraints.
package graph

import (
	"errors"
	"fmt"
)

// Kind identifies the source of a chunk or a provision.
type Kind string

// Source kinds.
const (
	KindCase    Kind = "case"
	KindSection Kind = "section"
	KindArticle Kind = "article"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindCase, KindSection, KindArticle:
		return true
	}
	return false
}

// ParseKind converts a stored kind string.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown source kind %q", s)
	}
	return k, nil
}

// Citation relation kinds.
const (
	RelCites    = "cites"
	RelDiscuss  = "discusses"
	RelOverrule = "overrules"
)

// UnknownYear marks a case whose publication year was not recorded.
const UnknownYear = -1

// ErrInvalidRecord is returned when a store row is missing required fields.
var ErrInvalidRecord = errors.New("graph: invalid record")

// Instrument is an Act, code or constitution.
type Instrument struct {
	ID       string `json:"act_id" yaml:"id"`
	Name     string `json:"act_name" yaml:"name"`
	Category string `json:"act_type,omitempty" yaml:"category"`
}

func (i Instrument) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("%w: instrument without id", ErrInvalidRecord)
	}
	return nil
}

// DisplayName renders "Name (ID)" or whichever half is known.
func (i Instrument) DisplayName() string {
	switch {
	case i.ID != "" && i.Name != "":
		return i.Name + " (" + i.ID + ")"
	case i.Name != "":
		return i.Name
	}
	return i.ID
}

// Provision is a Section or Article of an instrument.
type Provision struct {
	ID             string `json:"id" yaml:"id"`
	Kind           Kind   `json:"kind" yaml:"kind"`
	Number         string `json:"number" yaml:"number"`
	InstrumentID   string `json:"act_id" yaml:"instrument"`
	InstrumentName string `json:"act_name,omitempty" yaml:"-"`
	FullText       string `json:"full_text" yaml:"text"`
}

func (p Provision) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: provision without id", ErrInvalidRecord)
	}
	if p.Kind != KindSection && p.Kind != KindArticle {
		return fmt.Errorf("%w: provision %s has kind %q", ErrInvalidRecord, p.ID, p.Kind)
	}
	if p.Number == "" {
		return fmt.Errorf("%w: provision %s without number", ErrInvalidRecord, p.ID)
	}
	return nil
}

// Instrument returns the owning instrument as far as the provision knows it.
func (p Provision) Instrument() Instrument {
	return Instrument{ID: p.InstrumentID, Name: p.InstrumentName}
}

// Case is a judgment. Text holds the full judgment when loaded for storage
// and a snippet when loaded for display.
type Case struct {
	ID   string `json:"case_id" yaml:"id"`
	Year int    `json:"year" yaml:"year"`
	Text string `json:"snippet,omitempty" yaml:"text"`
}

func (c Case) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: case without id", ErrInvalidRecord)
	}
	return nil
}

// Citation is a directed edge from a case to a provision.
type Citation struct {
	CaseID   string `json:"case_id" yaml:"case"`
	TargetID string `json:"target_id" yaml:"target"`
	Relation string `json:"relation" yaml:"relation"`
}

func (c Citation) Validate() error {
	if c.CaseID == "" || c.TargetID == "" {
		return fmt.Errorf("%w: citation needs case and target", ErrInvalidRecord)
	}
	return nil
}
