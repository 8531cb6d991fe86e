package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/bryanwahyu/anomaly-guard/internal/application/audit"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/findings"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/semantic"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/transactions"
	"github.com/bryanwahyu/anomaly-guard/internal/logger"
	"github.com/bryanwahyu/anomaly-guard/internal/metrics"
	"github.com/bryanwahyu/anomaly-guard/internal/middleware"
)

const maxBodyBytes = 32 << 20

// Options configures NewRouter. Zero values disable the matching feature.
type Options struct {
	Log          zerolog.Logger
	Metrics      *metrics.Collector
	Checkers     map[string]middleware.HealthChecker
	APIKeys      map[string]string
	CORSOrigins  []string
	MaxBatchSize int
	// RateLimiter guards the endpoints that call the semantic service.
	RateLimiter *middleware.RateLimiter
}

type Router struct {
	svc          *audit.Service
	maxBatchSize int
}

func NewRouter(svc *audit.Service, opts Options) http.Handler {
	r := &Router{svc: svc, maxBatchSize: opts.MaxBatchSize}
	mux := chi.NewRouter()

	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.RequestLogger(opts.Log))
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.MetricsMiddleware(opts.Metrics))
	if len(opts.CORSOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}
	if len(opts.APIKeys) > 0 {
		mux.Use(middleware.APIKeyAuth(opts.APIKeys))
	}

	mux.Get("/health", middleware.HealthHandler(opts.Checkers))
	mux.Get("/healthz/ready", middleware.ReadinessHandler(opts.Checkers))
	mux.Get("/healthz/live", middleware.LivenessHandler)
	if opts.Metrics != nil {
		mux.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/detections", r.wrap(r.handleRunDetection))
		rt.Get("/findings/unenriched", r.wrap(r.handleUnenriched))
		rt.Get("/transactions/{id}", r.wrap(r.handleTransaction))

		rt.Group(func(paid chi.Router) {
			if opts.RateLimiter != nil {
				paid.Use(middleware.RateLimit(opts.RateLimiter))
			}
			paid.Post("/enrichments", r.wrap(r.handleEnrich))
			paid.Post("/findings/{id}/rescore", r.wrap(r.handleRescore))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks caller errors.
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

func invalid(format string, args ...any) error {
	return badRequest{fmt.Errorf(format, args...)}
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var br badRequest
		switch {
		case errors.As(err, &br):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, transactions.ErrNotFound), errors.Is(err, findings.ErrNotFound):
			writeError(w, http.StatusNotFound, "not found")
		case errors.Is(err, findings.ErrAlreadyEnriched):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, context.Canceled):
			// client went away
		default:
			log := logger.FromContext(req.Context())
			log.Error().Err(err).Msg("request failed")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	_ = writeJSON(w, code, map[string]string{"error": msg})
}

type detectionResponse struct {
	Ingested int `json:"ingested"`
	audit.RunReport
}

// POST /v1/detections
// Body: {"transactions": [...]}; ?include=findings adds the finding list.
func (r *Router) handleRunDetection(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Transactions json.RawMessage `json:"transactions"`
	}
	if err := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes)).Decode(&body); err != nil {
		return invalid("invalid request body: %v", err)
	}
	if len(body.Transactions) == 0 {
		return invalid("transactions is required")
	}
	batch, err := transactions.DecodeRecords(body.Transactions)
	if err != nil {
		return invalid("%v", err)
	}
	if err := middleware.ValidateBatch(batch, r.maxBatchSize); err != nil {
		return badRequest{err}
	}

	ingested, err := r.svc.Ingest(req.Context(), batch)
	if err != nil {
		return err
	}
	report, err := r.svc.RunDetection(req.Context(), batch)
	if err != nil {
		return err
	}
	if req.URL.Query().Get("include") != "findings" {
		report.Findings = nil
	}
	return writeJSON(w, http.StatusOK, detectionResponse{Ingested: ingested, RunReport: report})
}

// POST /v1/enrichments
func (r *Router) handleEnrich(w http.ResponseWriter, req *http.Request) error {
	started := time.Now()
	report, err := r.svc.Enrich(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"processed":           report.Processed,
		"degraded":            report.Degraded,
		"missing_transaction": report.MissingTransaction,
		"duration_ms":         time.Since(started).Milliseconds(),
	})
}

// GET /v1/findings/unenriched?limit=100
func (r *Router) handleUnenriched(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	limit = middleware.ValidateLimit(limit)

	list, err := r.svc.Unenriched(req.Context())
	if err != nil {
		return err
	}
	if len(list) > limit {
		list = list[:limit]
	}
	if list == nil {
		list = []*findings.Finding{}
	}
	return writeJSON(w, http.StatusOK, list)
}

// POST /v1/findings/{id}/rescore
// Body: {"risk_assessment", "context_analysis", "risk_score_modifier", "suggested_action"}
func (r *Router) handleRescore(w http.ResponseWriter, req *http.Request) error {
	id, err := middleware.ParseFindingID(chi.URLParam(req, "id"))
	if err != nil {
		return badRequest{err}
	}
	var a semantic.Assessment
	if err := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes)).Decode(&a); err != nil {
		return invalid("invalid request body: %v", err)
	}
	if a.ContextAnalysis == "" && a.RiskAssessment == "" {
		return invalid("risk_assessment or context_analysis is required")
	}

	f, err := r.svc.Rescore(req.Context(), findings.ID(id), a)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, f)
}

// GET /v1/transactions/{id}
func (r *Router) handleTransaction(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateTransactionID(id); err != nil {
		return badRequest{err}
	}
	tx, fs, err := r.svc.Transaction(req.Context(), id)
	if err != nil {
		return err
	}
	if fs == nil {
		fs = []*findings.Finding{}
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"transaction": tx,
		"findings":    fs,
	})
}
