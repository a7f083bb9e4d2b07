package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/kirillkom/file-intake/internal/config"
	"github.com/kirillkom/file-intake/internal/core/ports"
	"github.com/kirillkom/file-intake/internal/observability/metrics"
)

const maxWebhookBodyBytes = 1 << 20

type Router struct {
	cfg     config.Config
	intake  ports.IntakeSubmitter
	catalog ports.CatalogAdmin
	ledger  ports.LedgerReader

	outcomes       ports.OutcomeReader
	metrics        *metrics.HTTPServerMetrics
	metricsHandler http.Handler
	logger         *slog.Logger
}

func NewRouter(
	cfg config.Config,
	intake ports.IntakeSubmitter,
	catalog ports.CatalogAdmin,
	ledger ports.LedgerReader,
) *Router {
	return &Router{
		cfg:     cfg,
		intake:  intake,
		catalog: catalog,
		ledger:  ledger,
		logger:  slog.Default(),
	}
}

// WithOutcomes enables GET /v1/files/{id}/outcomes.
func (rt *Router) WithOutcomes(outcomes ports.OutcomeReader) *Router {
	rt.outcomes = outcomes
	return rt
}

// WithMetrics records request metrics and serves handler on /metrics.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics, handler http.Handler) *Router {
	rt.metrics = m
	rt.metricsHandler = handler
	return rt
}

func (rt *Router) WithLogger(logger *slog.Logger) *Router {
	if logger != nil {
		rt.logger = logger
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/webhooks/box", rt.boxWebhook)
	mux.HandleFunc("POST /v1/files/{id}/reprocess", rt.reprocessFile)
	if rt.outcomes != nil {
		mux.HandleFunc("GET /v1/files/{id}/outcomes", rt.listOutcomes)
	}
	mux.HandleFunc("POST /v1/catalog/invalidate", rt.invalidateCatalog)
	mux.HandleFunc("GET /v1/catalog/ignored-types", rt.ignoredTypes)
	mux.HandleFunc("GET /v1/ledger/file-ids", rt.ledgerFileIDs)
	if rt.metricsHandler != nil {
		mux.Handle("GET /metrics", rt.metricsHandler)
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) reprocessFile(w http.ResponseWriter, r *http.Request) {
	task, err := rt.intake.Submit(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.recordSubmission("reprocess")
	rt.logger.Info("reprocess_enqueued", "request_id", requestIDFromContext(r.Context()), "file_id", task.FileID)
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued", "file_id": task.FileID})
}

func (rt *Router) listOutcomes(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	outcomes, err := rt.outcomes.ListOutcomes(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"file_id": r.PathValue("id"), "outcomes": outcomes})
}

func (rt *Router) invalidateCatalog(w http.ResponseWriter, r *http.Request) {
	rt.catalog.Invalidate()
	rt.logger.Info("catalog_invalidate_requested", "request_id", requestIDFromContext(r.Context()))
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (rt *Router) ignoredTypes(w http.ResponseWriter, r *http.Request) {
	set, err := rt.catalog.IgnoredExtensions(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	values := set.Values()
	slices.Sort(values)
	writeJSON(w, http.StatusOK, map[string]any{"ignored_types": values})
}

func (rt *Router) ledgerFileIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := rt.ledger.ListKnownFileIDs(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	slices.Sort(out)
	writeJSON(w, http.StatusOK, map[string]any{"file_ids": out, "count": len(out)})
}

func (rt *Router) recordSubmission(source string) {
	if rt.metrics != nil {
		rt.metrics.RecordSubmission(source)
	}
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request_failed", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
