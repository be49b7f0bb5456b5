package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrIndexUnavailable is returned when the chunk index cannot be loaded or
// queried.
var ErrIndexUnavailable = errors.New("retrieval: vector index unavailable")

// Index is the semantic search surface the retriever consumes.
type Index interface {
	// Search returns up to k chunks most similar to query, best first.
	Search(ctx context.Context, query string, k int) ([]Chunk, error)

	// ChunksBySource returns up to limit chunks owned by any of sourceIDs.
	// Scores are not meaningful.
	ChunksBySource(ctx context.Context, sourceIDs []string, limit int) ([]Chunk, error)

	// Size returns the number of indexed chunks.
	Size(ctx context.Context) (int, error)
}

// Embedder turns texts into vectors. llm.Provider satisfies it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Loader opens an Index.
type Loader func(ctx context.Context) (Index, error)

// defaultLoadTimeout bounds a load when NewLazy is given no timeout.
const defaultLoadTimeout = 2 * time.Minute

// Lazy loads an Index on first use and shares it afterwards. Concurrent
// first callers wait on a single load; a failed load is retried by the
// next caller. Each caller stops waiting at its own deadline while the
// shared load runs on under the load timeout.
type Lazy struct {
	load    Loader
	timeout time.Duration
	group   singleflight.Group

	mu      sync.RWMutex
	idx     Index
	lastErr error
}

// NewLazy returns a Lazy that bounds each load attempt by timeout.
func NewLazy(load Loader, timeout time.Duration) *Lazy {
	if timeout <= 0 {
		timeout = defaultLoadTimeout
	}
	return &Lazy{load: load, timeout: timeout}
}

// Ready wraps an already open index.
func Ready(idx Index) *Lazy {
	return &Lazy{idx: idx}
}

// Get returns the shared index, loading it if needed.
func (l *Lazy) Get(ctx context.Context) (Index, error) {
	l.mu.RLock()
	idx := l.idx
	l.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}
	if l.load == nil {
		return nil, fmt.Errorf("%w: no loader configured", ErrIndexUnavailable)
	}

	ch := l.group.DoChan("index", func() (any, error) {
		l.mu.RLock()
		if l.idx != nil {
			defer l.mu.RUnlock()
			return l.idx, nil
		}
		l.mu.RUnlock()

		timeout := l.timeout
		if timeout <= 0 {
			timeout = defaultLoadTimeout
		}
		// One caller's cancellation must not fail the others waiting on it.
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		start := time.Now()
		loaded, err := l.load(lctx)
		l.mu.Lock()
		defer l.mu.Unlock()
		if err != nil {
			l.lastErr = err
			return nil, err
		}
		l.idx, l.lastErr = loaded, nil
		slog.Info("retrieval: index loaded", "elapsed", time.Since(start).Round(time.Millisecond))
		return loaded, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrIndexUnavailable, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, r.Err)
		}
		return r.Val.(Index), nil
	}
}

// Status reports whether the index is loaded and the last load error.
func (l *Lazy) Status() (loaded bool, err error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.idx != nil, l.lastErr
}
