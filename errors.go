package legalrag

import "errors"

var (
	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("legalrag: invalid configuration")

	// ErrEmptyQuery is returned when Ask is called with a blank query.
	ErrEmptyQuery = errors.New("legalrag: empty query")

	// ErrGraphUnavailable marks a graph store that could not be reached.
	// Requests still complete with unconstrained retrieval.
	ErrGraphUnavailable = errors.New("legalrag: graph store unavailable")

	// ErrVectorUnavailable marks a vector index that is not loaded.
	ErrVectorUnavailable = errors.New("legalrag: vector index unavailable")

	// ErrGenerationUnavailable marks a failed language model call.
	ErrGenerationUnavailable = errors.New("legalrag: generation unavailable")

	// ErrClosed is returned when operating on a closed engine.
	ErrClosed = errors.New("legalrag: engine is closed")
)
