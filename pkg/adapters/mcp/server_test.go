package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/ivrflow/pkg/adapters/memory"
	"github.com/aretw0/ivrflow/pkg/domain"
	"github.com/aretw0/ivrflow/pkg/graph"
	"github.com/aretw0/ivrflow/pkg/registry"
	"github.com/aretw0/ivrflow/pkg/versioning"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func definitionJSON(t *testing.T) string {
	t.Helper()
	g := graph.New()
	start, _ := g.AddNode(domain.KindStart, domain.Position{})
	hangup, _ := g.AddNode(domain.KindHangup, domain.Position{X: 100})
	require.NoError(t, g.Connect(start, "", hangup, ""))
	b, err := json.Marshal(g.Definition())
	require.NoError(t, err)
	return string(b)
}

func TestValidateFlow(t *testing.T) {
	s := NewServer(versioning.NewService(memory.NewStore()), nil)
	ctx := context.Background()

	res, err := s.handleValidate(ctx, callRequest("validate_flow", map[string]any{"definition": definitionJSON(t)}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.JSONEq(t, `{"valid":true,"violations":[]}`, resultText(t, res))

	res, err = s.handleValidate(ctx, callRequest("validate_flow", map[string]any{"definition": `{"nodes":[],"edges":[]}`}))
	require.NoError(t, err)
	var out struct {
		Valid      bool               `json:"valid"`
		Violations []domain.Violation `json:"violations"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.False(t, out.Valid)
	assert.NotEmpty(t, out.Violations)

	g := graph.New()
	start, _ := g.AddNode(domain.KindStart, domain.Position{})
	hangup, _ := g.AddNode(domain.KindHangup, domain.Position{X: 100})
	_, _ = g.AddNode(domain.KindHangup, domain.Position{X: 200})
	require.NoError(t, g.Connect(start, "", hangup, ""))
	b, err := json.Marshal(g.Definition())
	require.NoError(t, err)
	res, err = s.handleValidate(ctx, callRequest("validate_flow", map[string]any{"definition": string(b)}))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.True(t, out.Valid, "an unreachable node is only a warning")
	require.Len(t, out.Violations, 1)
	assert.Equal(t, domain.SeverityWarning, out.Violations[0].Severity)

	res, err = s.handleValidate(ctx, callRequest("validate_flow", map[string]any{"definition": "{"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleValidate(ctx, callRequest("validate_flow", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError, "definition is required")
}

func TestListNodeTypes(t *testing.T) {
	s := NewServer(versioning.NewService(memory.NewStore()), nil)
	res, err := s.handleListNodeTypes(context.Background(), callRequest("list_node_types", nil))
	require.NoError(t, err)

	var variants []registry.Variant
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &variants))
	assert.Len(t, variants, len(domain.Kinds()))
}

func TestVersionTools(t *testing.T) {
	ctx := context.Background()
	svc := versioning.NewService(memory.NewStore())
	s := NewServer(svc, nil)
	flow, err := svc.CreateFlow(ctx, "acme", "Support", "")
	require.NoError(t, err)

	res, err := s.handleSaveVersion(ctx, callRequest("save_version", map[string]any{
		"flow_id":    flow.ID,
		"definition": definitionJSON(t),
		"notes":      "from agent",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	var saved VersionSummary
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &saved))
	assert.Equal(t, 1, saved.Version)
	assert.Equal(t, "from agent", saved.Notes)

	res, err = s.handleSaveVersion(ctx, callRequest("save_version", map[string]any{
		"flow_id":    flow.ID,
		"definition": `{"nodes":[],"edges":[]}`,
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "violations")

	res, err = s.handleListVersions(ctx, callRequest("list_versions", map[string]any{"flow_id": flow.ID}))
	require.NoError(t, err)
	var versions []VersionSummary
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &versions))
	require.Len(t, versions, 1)
	assert.Equal(t, saved.ID, versions[0].ID)

	res, err = s.handleListFlows(ctx, callRequest("list_flows", map[string]any{"organization_id": "acme"}))
	require.NoError(t, err)
	var flows []domain.Flow
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &flows))
	assert.Len(t, flows, 1)

	res, err = s.handleActiveDefinition(ctx, callRequest("get_active_definition", map[string]any{"flow_id": flow.ID}))
	require.NoError(t, err)
	assert.True(t, res.IsError, "no version is active yet")

	_, err = svc.Activate(ctx, flow.ID, saved.ID)
	require.NoError(t, err)
	res, err = s.handleActiveDefinition(ctx, callRequest("get_active_definition", map[string]any{"flow_id": flow.ID}))
	require.NoError(t, err)
	var def domain.FlowDefinition
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &def))
	assert.Len(t, def.Nodes, 2)
}
