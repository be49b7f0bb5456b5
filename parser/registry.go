package parser

import (
	"fmt"
	"regexp"
	"sort"
)

// Canonical instrument identifiers known to the default registry.
const (
	InstrumentBNS          = "BNS"
	InstrumentBNSS         = "BNSS"
	InstrumentBSA          = "BSA"
	InstrumentConstitution = "Constitution"
)

// Instrument is a named legal instrument and the patterns that mention it.
type Instrument struct {
	ID      string
	Name    string
	aliases []*regexp.Regexp
}

// Registry holds the instruments the parser can recognise. Registration
// order is also detection priority for whole-text fallback.
type Registry struct {
	instruments []Instrument
}

func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry returns a registry for the Indian criminal codes and the
// Constitution.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(InstrumentBNS, "Bharatiya Nyaya Sanhita",
		`\bBNS\b`,
		`bharatiya\s+nyaya\s+sanhita`,
	)
	r.MustRegister(InstrumentBNSS, "Bharatiya Nagarik Suraksha Sanhita",
		`\bBNSS\b`,
		`bharatiya\s+nagarik\s+suraksha\s+sanhita`,
		`bharatiya\s+nagrik\s+suraksha\s+sanhita`,
	)
	r.MustRegister(InstrumentBSA, "Bharatiya Sakshya Adhiniyam",
		`\bBSA\b`,
		`bharatiya\s+sakshya\s+adhiniyam`,
	)
	r.MustRegister(InstrumentConstitution, "Constitution of India",
		`\bconstitution\s+of\s+india\b`,
		`\bindian\s+constitution\b`,
		`\bconstitution\b`,
	)
	return r
}

// Register adds an instrument with case-insensitive alias patterns.
func (r *Registry) Register(id, name string, aliases ...string) error {
	if id == "" {
		return fmt.Errorf("instrument id is required")
	}
	if len(aliases) == 0 {
		return fmt.Errorf("instrument %s: at least one alias is required", id)
	}
	inst := Instrument{ID: id, Name: name}
	for _, a := range aliases {
		re, err := regexp.Compile(`(?i)` + a)
		if err != nil {
			return fmt.Errorf("instrument %s: alias %q: %w", id, a, err)
		}
		inst.aliases = append(inst.aliases, re)
	}
	r.instruments = append(r.instruments, inst)
	return nil
}

func (r *Registry) MustRegister(id, name string, aliases ...string) {
	if err := r.Register(id, name, aliases...); err != nil {
		panic(err)
	}
}

// Instruments lists registered instruments in priority order.
func (r *Registry) Instruments() []Instrument {
	out := make([]Instrument, len(r.instruments))
	copy(out, r.instruments)
	return out
}

// Detect returns the first registered instrument mentioned anywhere in text,
// or "" when none is.
func (r *Registry) Detect(text string) string {
	for _, inst := range r.instruments {
		for _, re := range inst.aliases {
			if re.MatchString(text) {
				return inst.ID
			}
		}
	}
	return ""
}

type mention struct {
	id         string
	start, end int
}

// mentions finds every alias occurrence, ordered by position.
func (r *Registry) mentions(text string) []mention {
	var out []mention
	for _, inst := range r.instruments {
		for _, re := range inst.aliases {
			for _, loc := range re.FindAllStringIndex(text, -1) {
				out = append(out, mention{id: inst.ID, start: loc[0], end: loc[1]})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}
