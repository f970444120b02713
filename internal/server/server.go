// Package server exposes the uplink daemon's local HTTP surface:
// health, metrics, the notification API and the event feed.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netdash/uplink/internal/feed"
	"github.com/netdash/uplink/internal/logging"
	"github.com/netdash/uplink/internal/metrics"
	"github.com/netdash/uplink/internal/notify"
)

// Server is the daemon's local HTTP server, consumed by dashboard UIs
// on the same network.
type Server struct {
	addr   string
	center *notify.Center
	feed   *feed.Server
	http   *http.Server
}

// New creates the HTTP server.
func New(addr string, center *notify.Center, feedSrv *feed.Server) *Server {
	s := &Server{
		addr:   addr,
		center: center,
		feed:   feedSrv,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/notifications", s.handleListNotifications)
	mux.HandleFunc("DELETE /api/notifications", s.handleClearNotifications)
	mux.HandleFunc("DELETE /api/notifications/{id}", s.handleRemoveNotification)
	mux.Handle("GET /api/events", feedSrv.Handler())

	s.http = &http.Server{
		Addr:              addr,
		Handler:           logging.HTTPMiddleware(metrics.HTTPMiddleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Handler returns the server's root handler, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"status": s.feed.Status(),
	})
}

func (s *Server) handleListNotifications(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.center.List())
}

func (s *Server) handleClearNotifications(w http.ResponseWriter, _ *http.Request) {
	s.center.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveNotification(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.center.Get(id); !ok {
		http.Error(w, "notification not found", http.StatusNotFound)
		return
	}
	s.center.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write json response failed", "error", err)
	}
}
