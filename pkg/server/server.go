// Package server exposes the guardrail evaluator over HTTP: an evaluation
// endpoint, an audit trail for past verdicts, and the usual health and
// metrics surfaces.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/phylaxai/phylax-oss/pkg/domain"
	"github.com/phylaxai/phylax-oss/pkg/storage"
)

// maxRequestBytes bounds the evaluate request body.
const maxRequestBytes = 1 << 20

// defaultAuditLimit bounds audit listings when the caller gives no limit.
const defaultAuditLimit = 50

// Evaluator is the screening pipeline the server fronts.
type Evaluator interface {
	Evaluate(ctx context.Context, input string) domain.EvaluationOutcome
}

// Config carries the server's collaborators.
type Config struct {
	Evaluator Evaluator
	Store     storage.AuditStore // nil disables the audit endpoints
	Metrics   *Metrics
	Logger    *slog.Logger
}

// Server handles the HTTP surface of the guardrail service.
type Server struct {
	evaluator Evaluator
	store     storage.AuditStore
	metrics   *Metrics
	logger    *slog.Logger
}

// New creates a server. A nil Metrics gets a fresh registry; a nil Logger
// falls back to the process default.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Server{
		evaluator: cfg.Evaluator,
		store:     cfg.Store,
		metrics:   metrics,
		logger:    logger.With("component", "server"),
	}
}

// Handler returns the root HTTP handler. Application routes are wrapped in
// OpenTelemetry and request metrics; /healthz and /metrics bypass both so
// probes and scrapes stay out of the traces.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/evaluate", s.handleEvaluate)
	mux.HandleFunc("/v1/audit", s.handleAuditList)
	mux.HandleFunc("/v1/audit/", s.handleAuditGet)

	app := otelhttp.NewHandler(s.metrics.Middleware(mux), "phylax.server")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		case "/metrics":
			s.metrics.Handler().ServeHTTP(w, r)
		default:
			app.ServeHTTP(w, r)
		}
	})
}

type evaluateRequest struct {
	Input *string `json:"input"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Input == nil {
		s.writeError(w, http.StatusBadRequest, "missing required field: input")
		return
	}

	start := time.Now()
	outcome := s.evaluator.Evaluate(r.Context(), *req.Input)
	s.metrics.RecordEvaluation(string(outcome.Status), outcome.Allowed, time.Since(start))

	// The HTTP status reflects the transport, not the verdict: blocked
	// inputs are still successful evaluations.
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.store == nil {
		s.writeError(w, http.StatusNotFound, "audit capture is disabled")
		return
	}

	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	records, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list audit records", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list audit records")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

func (s *Server) handleAuditGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.store == nil {
		s.writeError(w, http.StatusNotFound, "audit capture is disabled")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/audit/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusBadRequest, "invalid audit record id")
		return
	}

	record, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "audit record not found")
			return
		}
		s.logger.Error("failed to load audit record", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load audit record")
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
