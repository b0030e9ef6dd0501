package ivrflow_test

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/ivrflow"
	"github.com/aretw0/ivrflow/pkg/adapters/file"
	"github.com/aretw0/ivrflow/pkg/domain"
	"github.com/aretw0/ivrflow/pkg/observability"
	"github.com/aretw0/ivrflow/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, strings.TrimSpace(ivrflow.Version))
}

func TestDesigner_EditSaveReopen(t *testing.T) {
	ctx := context.Background()
	d := ivrflow.New()

	flow, err := d.Service().CreateFlow(ctx, "acme", "Support line", "")
	require.NoError(t, err)

	s, err := d.Open(ctx, flow.ID)
	require.NoError(t, err)
	assert.Zero(t, s.Graph().Len(), "a flow without versions opens empty")

	start, err := s.AddNode(domain.KindStart, domain.Position{})
	require.NoError(t, err)
	hangup, err := s.AddNode(domain.KindHangup, domain.Position{X: 200})
	require.NoError(t, err)
	require.NoError(t, s.Connect(start, "", hangup, ""))
	s.Palette().SetViewport(domain.Viewport{X: 10, Y: 20, Zoom: 0.5})

	v, err := s.Save(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Version)

	reopened, err := d.Open(ctx, flow.ID)
	require.NoError(t, err)
	assert.Equal(t, v.Definition, reopened.Definition())
	assert.Equal(t, domain.Viewport{X: 10, Y: 20, Zoom: 0.5}, reopened.Palette().Viewport())

	// ids continue after the loaded ones
	next, err := reopened.AddNode(domain.KindHangup, domain.Position{})
	require.NoError(t, err)
	assert.NotEqual(t, hangup, next)
	assert.NotEqual(t, start, next)

	_, err = d.Open(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}

func TestDesigner_FileRepository(t *testing.T) {
	ctx := context.Background()
	store := file.New(t.TempDir())
	metrics := observability.NewMetrics()
	d := ivrflow.New(ivrflow.WithRepository(store), ivrflow.WithMetrics(metrics))
	assert.Same(t, metrics, d.Metrics())

	flow, err := d.Service().CreateFlow(ctx, "acme", "On disk", "")
	require.NoError(t, err)

	s := d.NewDraft(flow.ID)
	s.DragStart(domain.KindStart)
	require.False(t, s.Drop(0, 0).Rejected)
	_, err = s.Save(ctx, "")
	require.Error(t, err, "start without an outgoing edge cannot be saved")

	versions, err := store.ListVersions(ctx, flow.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestValidate(t *testing.T) {
	res := ivrflow.Validate(domain.FlowDefinition{})
	require.False(t, res.Valid())
	assert.Equal(t, validator.CodeMissingStart, res.Violations[0].Code)
}
