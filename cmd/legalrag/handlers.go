package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	legalrag "github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph"
)

const maxTopK = 50

type handler struct {
	engine     legalrag.Engine
	askTimeout time.Duration
}

func newHandler(e legalrag.Engine, askTimeout time.Duration) *handler {
	if askTimeout <= 0 {
		askTimeout = 10 * time.Minute
	}
	return &handler{engine: e, askTimeout: askTimeout}
}

type askRequest struct {
	Query    string `json:"query"`
	TopK     int    `json:"top_k,omitempty"`
	Rephrase *bool  `json:"rephrase,omitempty"`
}

// POST /ask
// Degraded answers are still 200: the body names the failed concern.
func (h *handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.askTimeout)
	defer cancel()

	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var opts []legalrag.AskOption
	if req.TopK > 0 && req.TopK <= maxTopK {
		opts = append(opts, legalrag.WithTopK(req.TopK))
	}
	if req.Rephrase != nil {
		if *req.Rephrase {
			opts = append(opts, legalrag.WithRephrase())
		} else {
			opts = append(opts, legalrag.WithoutRephrase())
		}
	}

	ans, err := h.engine.Ask(ctx, req.Query, opts...)
	switch {
	case errors.Is(err, legalrag.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, "query is required")
		return
	case errors.Is(err, legalrag.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "engine is shutting down")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "ask failed")
		slog.Error("ask error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

// GET /status
func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Status(r.Context()))
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
