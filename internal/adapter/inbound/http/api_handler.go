// Package http provides the JSON API transport for the policy engine:
// clock-action validation, the override request lifecycle, break tracking,
// and policy administration.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shiftgate/shiftgate/internal/domain/policy"
	"github.com/shiftgate/shiftgate/internal/service"
)

// APIHandler bundles the JSON API endpoints and their service dependencies.
type APIHandler struct {
	validation *service.ValidationService
	overrides  *service.OverrideService
	breaks     *service.BreakService
	admin      *service.PolicyAdminService
	resolver   *service.ResolverService
	metrics    *Metrics
	logger     *slog.Logger
	version    string
	startTime  time.Time
}

// APIOption configures an APIHandler dependency.
type APIOption func(*APIHandler)

// WithValidationService sets the clock validation service.
func WithValidationService(s *service.ValidationService) APIOption {
	return func(h *APIHandler) { h.validation = s }
}

// WithOverrideService sets the override request lifecycle service.
func WithOverrideService(s *service.OverrideService) APIOption {
	return func(h *APIHandler) { h.overrides = s }
}

// WithBreakService sets the break tracking service.
func WithBreakService(s *service.BreakService) APIOption {
	return func(h *APIHandler) { h.breaks = s }
}

// WithPolicyAdminService sets the policy CRUD service.
func WithPolicyAdminService(s *service.PolicyAdminService) APIOption {
	return func(h *APIHandler) { h.admin = s }
}

// WithResolverService sets the policy resolver for the effective-policy
// endpoints.
func WithResolverService(s *service.ResolverService) APIOption {
	return func(h *APIHandler) { h.resolver = s }
}

// WithMetrics sets the Prometheus metrics.
func WithMetrics(m *Metrics) APIOption {
	return func(h *APIHandler) { h.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) APIOption {
	return func(h *APIHandler) { h.logger = l }
}

// WithVersion sets the reported server version.
func WithVersion(v string) APIOption {
	return func(h *APIHandler) { h.version = v }
}

// NewAPIHandler creates an APIHandler with the given options.
func NewAPIHandler(opts ...APIOption) *APIHandler {
	h := &APIHandler{
		logger:    slog.Default(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes builds the HTTP mux for the API.
func (h *APIHandler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/clock/validate", h.handleValidateClock)
	mux.HandleFunc("GET /api/v1/policies/effective", h.handleEffectivePolicies)

	mux.HandleFunc("POST /api/v1/overrides", h.handleCreateOverride)
	mux.HandleFunc("GET /api/v1/overrides", h.handleListOverrides)
	mux.HandleFunc("GET /api/v1/overrides/{id}", h.handleGetOverride)
	mux.HandleFunc("POST /api/v1/overrides/{id}/review", h.handleReviewOverride)
	mux.HandleFunc("POST /api/v1/overrides/{id}/consume", h.handleConsumeOverride)
	mux.HandleFunc("GET /api/v1/overrides/consumable", h.handleFindConsumable)

	mux.HandleFunc("POST /api/v1/breaks/start", h.handleStartBreak)
	mux.HandleFunc("POST /api/v1/breaks/end", h.handleEndBreak)
	mux.HandleFunc("POST /api/v1/breaks/deduction", h.handleBreakDeduction)

	mux.HandleFunc("POST /api/v1/restrictions", h.handleCreateRestriction)
	mux.HandleFunc("GET /api/v1/restrictions", h.handleListRestrictions)
	mux.HandleFunc("GET /api/v1/restrictions/{id}", h.handleGetRestriction)
	mux.HandleFunc("PUT /api/v1/restrictions/{id}", h.handleUpdateRestriction)
	mux.HandleFunc("DELETE /api/v1/restrictions/{id}", h.handleDeleteRestriction)

	mux.HandleFunc("POST /api/v1/break-policies", h.handleCreateBreakPolicy)
	mux.HandleFunc("GET /api/v1/break-policies", h.handleListBreakPolicies)
	mux.HandleFunc("GET /api/v1/break-policies/{id}", h.handleGetBreakPolicy)
	mux.HandleFunc("PUT /api/v1/break-policies/{id}", h.handleUpdateBreakPolicy)
	mux.HandleFunc("DELETE /api/v1/break-policies/{id}", h.handleDeleteBreakPolicy)

	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return h.logMiddleware(mux)
}

// logMiddleware logs each request with its duration at debug level.
func (h *APIHandler) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.Debug("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		if h.metrics != nil {
			h.metrics.RequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		}
	})
}

// respondJSON writes a JSON response with the given status code.
func (h *APIHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("encoding response failed", "error", err)
	}
}

// respondError writes a JSON error response.
func (h *APIHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps domain sentinel errors to HTTP status codes.
func (h *APIHandler) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, policy.ErrValidation):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, policy.ErrNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, policy.ErrConflict):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, policy.ErrForbidden):
		h.respondError(w, http.StatusForbidden, err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// readJSON decodes the request body into v, rejecting unknown fields.
func (h *APIHandler) readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// pathUUID extracts and parses a UUID path parameter.
func (h *APIHandler) pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue(name))
}

// queryUUID extracts and parses a required UUID query parameter.
func queryUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(r.URL.Query().Get(name))
}
