package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/ivrflow"
	"github.com/aretw0/ivrflow/internal/logging"
	"github.com/aretw0/ivrflow/pkg/domain"
	"github.com/aretw0/ivrflow/pkg/observability"
	"github.com/aretw0/ivrflow/pkg/registry"
	"github.com/aretw0/ivrflow/pkg/validator"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// FlowService is the version store exposed over HTTP. *versioning.Service implements it.
type FlowService interface {
	CreateFlow(ctx context.Context, organizationID, name, description string) (domain.Flow, error)
	GetFlow(ctx context.Context, flowID string) (domain.Flow, error)
	ListFlows(ctx context.Context, organizationID string) ([]domain.Flow, error)
	Save(ctx context.Context, flowID string, def domain.FlowDefinition, viewport *domain.Viewport, notes string) (domain.FlowVersion, error)
	ListVersions(ctx context.Context, flowID string) ([]domain.FlowVersion, error)
	GetVersion(ctx context.Context, flowID, versionID string) (domain.FlowVersion, error)
	Activate(ctx context.Context, flowID, versionID string) (domain.Flow, error)
	Publish(ctx context.Context, flowID, versionID string) (domain.Flow, error)
	Archive(ctx context.Context, flowID string) (domain.Flow, error)
	ActiveDefinition(ctx context.Context, flowID string) (domain.FlowDefinition, error)
}

// Server holds the handlers of the REST API.
type Server struct {
	Service FlowService
	Streams *StreamManager
	metrics *observability.Metrics
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithMetrics mounts the Prometheus registry at /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStreams shares an event StreamManager with the caller, which owns its Close.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// CreateFlowRequest is the body of POST /flows.
type CreateFlowRequest struct {
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
}

// SaveVersionRequest is the body of POST /flows/{flowId}/versions.
type SaveVersionRequest struct {
	Definition domain.FlowDefinition `json:"definition"`
	Viewport   *domain.Viewport      `json:"viewport,omitempty"`
	Notes      string                `json:"notes,omitempty"`
}

// VersionRef is the body of PUT /flows/{flowId}/active and POST /flows/{flowId}/publish.
type VersionRef struct {
	VersionID string `json:"versionId"`
}

// ValidationResponse is the body returned by POST /validate.
// Valid means the definition can be saved; warnings may still be listed.
type ValidationResponse struct {
	Valid      bool               `json:"valid"`
	Violations []domain.Violation `json:"violations"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error      string             `json:"error"`
	Violations []domain.Violation `json:"violations,omitempty"`
}

// NewHandler creates the HTTP handler for the version store.
func NewHandler(svc FlowService, opts ...Option) http.Handler {
	s := &Server{
		Service: svc,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/registry", s.ListNodeTypes)
	r.Post("/validate", s.ValidateDefinition)

	r.Route("/flows", func(r chi.Router) {
		r.Get("/", s.ListFlows)
		r.Post("/", s.CreateFlow)
		r.Route("/{flowId}", func(r chi.Router) {
			r.Get("/", s.GetFlow)
			r.Post("/archive", s.ArchiveFlow)
			r.Get("/versions", s.ListVersions)
			r.Post("/versions", s.SaveVersion)
			r.Get("/versions/{versionId}", s.GetVersion)
			r.Put("/active", s.ActivateVersion)
			r.Post("/publish", s.PublishVersion)
			r.Get("/definition", s.GetActiveDefinition)
			r.Get("/events", s.SubscribeEvents)
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>ivrflow API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if swagger, err := GetSwagger(); err == nil && swagger.Info != nil {
		apiVersion = swagger.Info.Version
	} else if err != nil {
		s.logger.Error("Failed to load OpenAPI spec", "err", err)
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "ivrflow-http",
		"version":     strings.TrimSpace(ivrflow.Version),
		"api_version": apiVersion,
	})
}

// ListNodeTypes handles the GET /registry request.
func (s *Server) ListNodeTypes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, registry.Variants())
}

// ValidateDefinition handles the POST /validate request.
func (s *Server) ValidateDefinition(w http.ResponseWriter, r *http.Request) {
	var def domain.FlowDefinition
	if !s.decode(w, r, &def) {
		return
	}
	res := validator.Validate(def)
	violations := res.Violations
	if violations == nil {
		violations = []domain.Violation{}
	}
	s.writeJSON(w, http.StatusOK, ValidationResponse{Valid: !res.HasErrors(), Violations: violations})
}

// ListFlows handles the GET /flows request.
func (s *Server) ListFlows(w http.ResponseWriter, r *http.Request) {
	org := r.URL.Query().Get("organizationId")
	if org == "" {
		s.writeError(w, fmt.Errorf("%w: organizationId is required", domain.ErrInvalidOperation))
		return
	}
	flows, err := s.Service.ListFlows(r.Context(), org)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, flows)
}

// CreateFlow handles the POST /flows request.
func (s *Server) CreateFlow(w http.ResponseWriter, r *http.Request) {
	var body CreateFlowRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.OrganizationID == "" {
		s.writeError(w, fmt.Errorf("%w: organizationId is required", domain.ErrInvalidOperation))
		return
	}
	flow, err := s.Service.CreateFlow(r.Context(), body.OrganizationID, body.Name, body.Description)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, flow)
}

// GetFlow handles the GET /flows/{flowId} request.
func (s *Server) GetFlow(w http.ResponseWriter, r *http.Request) {
	flow, err := s.Service.GetFlow(r.Context(), chi.URLParam(r, "flowId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, flow)
}

// ArchiveFlow handles the POST /flows/{flowId}/archive request.
func (s *Server) ArchiveFlow(w http.ResponseWriter, r *http.Request) {
	flowID := chi.URLParam(r, "flowId")
	flow, err := s.Service.Archive(r.Context(), flowID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.publish(Event{Type: "flow_archived", FlowID: flowID})
	s.writeJSON(w, http.StatusOK, flow)
}

// ListVersions handles the GET /flows/{flowId}/versions request.
func (s *Server) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.Service.ListVersions(r.Context(), chi.URLParam(r, "flowId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, versions)
}

// SaveVersion handles the POST /flows/{flowId}/versions request.
func (s *Server) SaveVersion(w http.ResponseWriter, r *http.Request) {
	flowID := chi.URLParam(r, "flowId")
	var body SaveVersionRequest
	if !s.decode(w, r, &body) {
		return
	}
	v, err := s.Service.Save(r.Context(), flowID, body.Definition, body.Viewport, body.Notes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.publish(Event{Type: "version_saved", FlowID: flowID, VersionID: v.ID, Version: v.Version})
	s.writeJSON(w, http.StatusCreated, v)
}

// GetVersion handles the GET /flows/{flowId}/versions/{versionId} request.
func (s *Server) GetVersion(w http.ResponseWriter, r *http.Request) {
	v, err := s.Service.GetVersion(r.Context(), chi.URLParam(r, "flowId"), chi.URLParam(r, "versionId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

// ActivateVersion handles the PUT /flows/{flowId}/active request.
func (s *Server) ActivateVersion(w http.ResponseWriter, r *http.Request) {
	s.setActive(w, r, "version_activated", s.Service.Activate)
}

// PublishVersion handles the POST /flows/{flowId}/publish request.
func (s *Server) PublishVersion(w http.ResponseWriter, r *http.Request) {
	s.setActive(w, r, "version_published", s.Service.Publish)
}

func (s *Server) setActive(w http.ResponseWriter, r *http.Request, event string,
	fn func(ctx context.Context, flowID, versionID string) (domain.Flow, error)) {
	flowID := chi.URLParam(r, "flowId")
	var body VersionRef
	if !s.decode(w, r, &body) {
		return
	}
	if body.VersionID == "" {
		s.writeError(w, fmt.Errorf("%w: versionId is required", domain.ErrInvalidOperation))
		return
	}
	flow, err := fn(r.Context(), flowID, body.VersionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.publish(Event{Type: event, FlowID: flowID, VersionID: body.VersionID})
	s.writeJSON(w, http.StatusOK, flow)
}

// GetActiveDefinition handles the GET /flows/{flowId}/definition request.
func (s *Server) GetActiveDefinition(w http.ResponseWriter, r *http.Request) {
	def, err := s.Service.ActiveDefinition(r.Context(), chi.URLParam(r, "flowId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, def)
}

// SubscribeEvents handles the GET /flows/{flowId}/events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}
	flowID := chi.URLParam(r, "flowId")
	if _, err := s.Service.GetFlow(r.Context(), flowID); err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(flowID)
	defer cancel()
	s.logger.Info("SSE: Subscribing to flow events", "flow_id", flowID)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "flow_id", flowID)
			return
		case e, ok := <-ch:
			if !ok {
				s.logger.Info("SSE: Stream closed by server", "flow_id", flowID)
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				s.logger.Error("Failed to encode event", "err", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *Server) publish(e Event) {
	s.Streams.Broadcast(e)
}

// -- Helpers --

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Warn("Invalid request body", "path", r.URL.Path, "err", err)
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var invalid *domain.ValidationFailedError
	switch {
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrFlowNotFound),
		errors.Is(err, domain.ErrVersionNotFound),
		errors.Is(err, domain.ErrNoActiveVersion),
		errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidOperation), errors.Is(err, domain.ErrProtected):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}
	var invalid *domain.ValidationFailedError
	if errors.As(err, &invalid) {
		resp.Violations = invalid.Violations
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "err", err)
	}
	s.writeJSON(w, status, resp)
}
