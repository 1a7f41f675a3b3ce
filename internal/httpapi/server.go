// Package httpapi serves a small read-only admin surface: liveness, Prometheus metrics, the
// processed-workout ledger and the latest context snapshot.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// StateSource is the read side of the ledger.
type StateSource interface {
	Snapshot() []string
	Capacity() int
}

type ServerConfig struct {
	// JWTSecret enables bearer auth on /v1 routes when set.
	JWTSecret   string
	ContextPath string
	Gatherer    prometheus.Gatherer
	Clock       clockwork.Clock
	Logger      *zap.Logger
}

type Server struct {
	state   StateSource
	cfg     ServerConfig
	metrics http.Handler
}

func NewServer(state StateSource, cfg ServerConfig) *Server {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Server{
		state:   state,
		cfg:     cfg,
		metrics: promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	correlationID := getCorrelationID(r)
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET is supported", correlationID)
		return
	}

	switch r.URL.Path {
	case "/health":
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	case "/metrics":
		s.metrics.ServeHTTP(w, r)
		return
	}

	var route string
	switch r.URL.Path {
	case "/v1/state":
		route = "state"
	case "/v1/context/latest":
		route = "context_latest"
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found", correlationID)
		return
	}

	if s.cfg.JWTSecret != "" {
		claims, authErr := authorizeBearer(r.Header.Get("Authorization"), s.cfg.JWTSecret, ScopeStateRead, s.cfg.Clock.Now())
		if authErr != nil {
			writeError(w, authErr.status, authErr.code, authErr.message, correlationID)
			return
		}
		s.cfg.Logger.Debug("admin request authorized", zap.String("route", route), zap.String("subject", claims.Subject))
	}

	switch route {
	case "state":
		s.handleState(w)
	case "context_latest":
		s.handleContextLatest(w, correlationID)
	}
}

type stateResponse struct {
	ProcessedWorkoutIDs []string `json:"processed_workout_ids"`
	Count               int      `json:"count"`
	Capacity            int      `json:"capacity"`
}

func (s *Server) handleState(w http.ResponseWriter) {
	ids := s.state.Snapshot()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, stateResponse{
		ProcessedWorkoutIDs: ids,
		Count:               len(ids),
		Capacity:            s.state.Capacity(),
	})
}

func (s *Server) handleContextLatest(w http.ResponseWriter, correlationID string) {
	if strings.TrimSpace(s.cfg.ContextPath) == "" {
		writeError(w, http.StatusNotFound, "not_found", "no context snapshot configured", correlationID)
		return
	}
	data, err := os.ReadFile(s.cfg.ContextPath)
	if errors.Is(err, fs.ErrNotExist) {
		writeError(w, http.StatusNotFound, "not_found", "no context snapshot yet", correlationID)
		return
	}
	if err != nil {
		s.cfg.Logger.Warn("cannot read context snapshot", zap.String("path", s.cfg.ContextPath), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to read context snapshot", correlationID)
		return
	}
	if !json.Valid(data) {
		writeError(w, http.StatusInternalServerError, "internal_error", "context snapshot is not valid json", correlationID)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.cfg.Logger.Info("admin api listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func getCorrelationID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Correlation-Id")); id != "" {
		return id
	}
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message, correlationID string) {
	writeJSON(w, status, map[string]any{
		"code":          code,
		"message":       message,
		"correlationId": correlationID,
	})
}
