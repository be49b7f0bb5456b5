package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	legalrag "github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph"
)

var (
	serveAddr  string
	serveRPS   float64
	serveBurst int

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve /ask, /status, /health and /metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().Float64Var(&serveRPS, "rps", 2, "requests per second allowed per client address (0 disables)")
	serveCmd.Flags().IntVar(&serveBurst, "burst", 5, "burst size for the per-client rate limit")
}

// serverOptions carries the middleware settings read from the environment.
type serverOptions struct {
	APIKey      string
	CORSOrigins string
	RPS         float64
	Burst       int
	AskTimeout  time.Duration
}

// newServer wires routes and middleware. Middleware order, outermost
// first: recovery, cors, auth, rate limit, request log.
func newServer(ctx context.Context, e legalrag.Engine, opts serverOptions) http.Handler {
	h := newHandler(e, opts.AskTimeout)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ask", h.handleAsk)
	mux.HandleFunc("GET /status", h.handleStatus)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = rateLimitMiddleware(ctx, opts.RPS, opts.Burst, handler)
	handler = authMiddleware(opts.APIKey, handler)
	handler = corsMiddleware(opts.CORSOrigins, handler)
	handler = recoveryMiddleware(handler)
	return handler
}

func runServe(cmd *cobra.Command, _ []string) error {
	e, cfg, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A request may wait on every external call in turn.
	askTimeout := cfg.Timeouts.Graph + cfg.Timeouts.Vector + 2*cfg.Timeouts.Generation
	srv := &http.Server{
		Addr: serveAddr,
		Handler: newServer(ctx, e, serverOptions{
			APIKey:      os.Getenv("LEGALRAG_API_KEY"),
			CORSOrigins: os.Getenv("LEGALRAG_CORS_ORIGINS"),
			RPS:         serveRPS,
			Burst:       serveBurst,
			AskTimeout:  askTimeout,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      askTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", serveAddr,
			"graph_backend", cfg.GraphBackend, "vector_backend", cfg.VectorBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}
