package legalrag

import (
	"context"
	"log/slog"
)

// Component states reported by Status.
const (
	StateConnected   = "connected"
	StateUnavailable = "unavailable"
	StateOK          = "ok"
)

// Status describes each backend the engine depends on.
type Status struct {
	Graph  GraphStatus  `json:"graph"`
	Vector VectorStatus `json:"vector_index"`
	Model  ModelStatus  `json:"model"`
}

type GraphStatus struct {
	Backend string `json:"backend"`
	State   string `json:"status"`
	Error   string `json:"error,omitempty"`
}

type VectorStatus struct {
	Backend string `json:"backend"`
	State   string `json:"status"`
	Size    int    `json:"size"`
	Error   string `json:"error,omitempty"`
}

type ModelStatus struct {
	Provider string `json:"provider"`
	Name     string `json:"name"`
	BaseURL  string `json:"base_url"`
}

// Healthy reports whether both the graph and the vector index answered.
func (s Status) Healthy() bool {
	return s.Graph.State == StateConnected && s.Vector.State == StateOK
}

// Status pings the graph and loads the vector index if needed. Each check
// is bounded by its configured timeout.
func (e *engine) Status(ctx context.Context) Status {
	st := Status{
		Graph:  GraphStatus{Backend: e.cfg.GraphBackend},
		Vector: VectorStatus{Backend: e.cfg.VectorBackend},
		Model: ModelStatus{
			Provider: e.cfg.Chat.Provider,
			Name:     e.cfg.Chat.Model,
			BaseURL:  e.cfg.Chat.BaseURL,
		},
	}
	if e.closed.Load() {
		st.Graph.State, st.Graph.Error = StateUnavailable, ErrClosed.Error()
		st.Vector.State, st.Vector.Error = StateUnavailable, ErrClosed.Error()
		return st
	}

	gctx, cancel := context.WithTimeout(ctx, e.cfg.Timeouts.Graph)
	err := e.graph.Ping(gctx)
	cancel()
	if err != nil {
		st.Graph.State, st.Graph.Error = StateUnavailable, err.Error()
	} else {
		st.Graph.State = StateConnected
	}

	vctx, cancel := context.WithTimeout(ctx, e.cfg.Timeouts.Vector)
	defer cancel()
	idx, err := e.index.Get(vctx)
	if err == nil {
		st.Vector.Size, err = idx.Size(vctx)
	}
	if err != nil {
		st.Vector.State, st.Vector.Error = StateUnavailable, err.Error()
	} else {
		st.Vector.State = StateOK
	}

	slog.Debug("legalrag: status",
		"graph", st.Graph.State,
		"vector", st.Vector.State,
		"chunks", st.Vector.Size)
	return st
}
