package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/ivrflow"
	"github.com/aretw0/ivrflow/internal/logging"
	"github.com/aretw0/ivrflow/pkg/domain"
	"github.com/aretw0/ivrflow/pkg/registry"
	"github.com/aretw0/ivrflow/pkg/validator"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const registryURI = "ivrflow://registry"

// FlowService is the subset of the version store exposed to MCP clients.
type FlowService interface {
	ListFlows(ctx context.Context, organizationID string) ([]domain.Flow, error)
	ListVersions(ctx context.Context, flowID string) ([]domain.FlowVersion, error)
	Save(ctx context.Context, flowID string, def domain.FlowDefinition, viewport *domain.Viewport, notes string) (domain.FlowVersion, error)
	ActiveDefinition(ctx context.Context, flowID string) (domain.FlowDefinition, error)
}

// VersionSummary is a version listing entry without its definition.
type VersionSummary struct {
	ID        string    `json:"id"`
	Version   int       `json:"version"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Server exposes flow validation and the version store as an MCP Server.
type Server struct {
	svc       FlowService
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance. A nil logger discards logs.
func NewServer(svc FlowService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		svc:       svc,
		logger:    logger,
		mcpServer: server.NewMCPServer("ivrflow-mcp", strings.TrimSpace(ivrflow.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on port until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("validate_flow",
		mcp.WithDescription("Validate a flow definition and list its errors and warnings."),
		mcp.WithString("definition", mcp.Required(), mcp.Description("Flow definition as a JSON object with nodes and edges")),
	), s.handleValidate)

	s.mcpServer.AddTool(mcp.NewTool("list_node_types",
		mcp.WithDescription("List the node types a flow can contain."),
	), s.handleListNodeTypes)

	s.mcpServer.AddTool(mcp.NewTool("list_flows",
		mcp.WithDescription("List the flows of an organization."),
		mcp.WithString("organization_id", mcp.Required(), mcp.Description("Organization ID")),
	), s.handleListFlows)

	s.mcpServer.AddTool(mcp.NewTool("list_versions",
		mcp.WithDescription("List the saved versions of a flow, oldest first."),
		mcp.WithString("flow_id", mcp.Required(), mcp.Description("Flow ID")),
	), s.handleListVersions)

	s.mcpServer.AddTool(mcp.NewTool("save_version",
		mcp.WithDescription("Validate a definition and save it as the next version of a flow."),
		mcp.WithString("flow_id", mcp.Required(), mcp.Description("Flow ID")),
		mcp.WithString("definition", mcp.Required(), mcp.Description("Flow definition as a JSON object")),
		mcp.WithString("notes", mcp.Description("Version notes")),
	), s.handleSaveVersion)

	s.mcpServer.AddTool(mcp.NewTool("get_active_definition",
		mcp.WithDescription("Get the definition of the active version of a flow."),
		mcp.WithString("flow_id", mcp.Required(), mcp.Description("Flow ID")),
	), s.handleActiveDefinition)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(registryURI, "Node Type Registry",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(registry.Variants())
		if err != nil {
			return nil, fmt.Errorf("failed to encode registry: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      registryURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	def, errResult := parseDefinition(request)
	if errResult != nil {
		return errResult, nil
	}
	res := validator.Validate(def)
	violations := res.Violations
	if violations == nil {
		violations = []domain.Violation{}
	}
	return jsonResult(map[string]any{"valid": !res.HasErrors(), "violations": violations})
}

func (s *Server) handleListNodeTypes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(registry.Variants())
}

func (s *Server) handleListFlows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	org, err := request.RequireString("organization_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	flows, err := s.svc.ListFlows(ctx, org)
	if err != nil {
		return s.failure("list_flows", err), nil
	}
	return jsonResult(flows)
}

func (s *Server) handleListVersions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flowID, err := request.RequireString("flow_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	versions, err := s.svc.ListVersions(ctx, flowID)
	if err != nil {
		return s.failure("list_versions", err), nil
	}
	out := make([]VersionSummary, 0, len(versions))
	for _, v := range versions {
		out = append(out, VersionSummary{ID: v.ID, Version: v.Version, Notes: v.Notes, CreatedAt: v.CreatedAt})
	}
	return jsonResult(out)
}

func (s *Server) handleSaveVersion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flowID, err := request.RequireString("flow_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	def, errResult := parseDefinition(request)
	if errResult != nil {
		return errResult, nil
	}
	v, err := s.svc.Save(ctx, flowID, def, nil, request.GetString("notes", ""))
	if err != nil {
		return s.failure("save_version", err), nil
	}
	return jsonResult(VersionSummary{ID: v.ID, Version: v.Version, Notes: v.Notes, CreatedAt: v.CreatedAt})
}

func (s *Server) handleActiveDefinition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flowID, err := request.RequireString("flow_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	def, err := s.svc.ActiveDefinition(ctx, flowID)
	if err != nil {
		return s.failure("get_active_definition", err), nil
	}
	return jsonResult(def)
}

// failure turns a service error into a tool error result. Validation
// failures carry their violations so the client can fix the definition.
func (s *Server) failure(tool string, err error) *mcp.CallToolResult {
	s.logger.Warn("MCP tool failed", "tool", tool, "err", err)
	var invalid *domain.ValidationFailedError
	if errors.As(err, &invalid) {
		b, _ := json.Marshal(map[string]any{"error": err.Error(), "violations": invalid.Violations})
		return mcp.NewToolResultError(string(b))
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", tool, err))
}

func parseDefinition(request mcp.CallToolRequest) (domain.FlowDefinition, *mcp.CallToolResult) {
	raw, err := request.RequireString("definition")
	if err != nil {
		return domain.FlowDefinition{}, mcp.NewToolResultError(err.Error())
	}
	var def domain.FlowDefinition
	if err := json.Unmarshal([]byte(raw), &def); err != nil {
		return domain.FlowDefinition{}, mcp.NewToolResultError(fmt.Sprintf("invalid definition: %v", err))
	}
	return def, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
