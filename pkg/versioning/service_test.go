package versioning_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/ivrflow/pkg/adapters/memory"
	"github.com/aretw0/ivrflow/pkg/domain"
	"github.com/aretw0/ivrflow/pkg/graph"
	"github.com/aretw0/ivrflow/pkg/observability"
	"github.com/aretw0/ivrflow/pkg/ports"
	"github.com/aretw0/ivrflow/pkg/validator"
	"github.com/aretw0/ivrflow/pkg/versioning"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, opts ...versioning.Option) (*versioning.Service, *memory.Store) {
	t.Helper()
	var seq atomic.Int64
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base := []versioning.Option{
		versioning.WithIDGenerator(func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }),
		versioning.WithClock(func() time.Time { return clock }),
	}
	store := memory.NewStore()
	return versioning.NewService(store, append(base, opts...)...), store
}

// validGraph builds start -> menu{1,2} -> hangups.
func validGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	start, _ := g.AddNode(domain.KindStart, domain.Position{})
	menu, _ := g.AddNode(domain.KindMenu, domain.Position{X: 100})
	a, _ := g.AddNode(domain.KindHangup, domain.Position{X: 200})
	b, _ := g.AddNode(domain.KindHangup, domain.Position{X: 200, Y: 100})
	require.NoError(t, g.PatchNodeData(menu, map[string]any{"options": map[string]any{"1": "Sales", "2": "Support"}}))
	require.NoError(t, g.Connect(start, "", menu, ""))
	require.NoError(t, g.Connect(menu, "1", a, ""))
	require.NoError(t, g.Connect(menu, "2", b, ""))
	return g
}

func TestSave_AssignsIncreasingVersions(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	flow, err := svc.CreateFlow(ctx, "acme", "Support line", "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, flow.Status)

	def := validGraph(t).Definition()
	v1, err := svc.Save(ctx, flow.ID, def, &domain.Viewport{Zoom: 1}, "first")
	require.NoError(t, err)
	v2, err := svc.Save(ctx, flow.ID, def, nil, "")
	require.NoError(t, err)

	assert.Equal(t, 1, v1.Version)
	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, "first", v1.Notes)
	assert.Equal(t, &domain.Viewport{Zoom: 1}, v1.Viewport)

	versions, err := svc.ListVersions(ctx, flow.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, v1.ID, versions[0].ID)

	// saving does not activate
	got, err := svc.GetFlow(ctx, flow.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ActiveVersionID)
}

func TestSave_ValidationFailureWritesNothing(t *testing.T) {
	metrics := observability.NewMetrics()
	svc, store := newService(t, versioning.WithMetrics(metrics))
	ctx := context.Background()
	flow, err := svc.CreateFlow(ctx, "acme", "Broken", "")
	require.NoError(t, err)

	g := graph.New()
	_, _ = g.AddNode(domain.KindStart, domain.Position{})
	_, _ = g.AddNode(domain.KindConditional, domain.Position{})

	_, err = svc.Save(ctx, flow.ID, g.Definition(), nil, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	var vf *domain.ValidationFailedError
	require.True(t, errors.As(err, &vf))
	want := validator.Validate(g.Definition()).Violations
	assert.Equal(t, want, vf.Violations, "every violation is reported, warnings included")

	latest, err := store.LatestVersion(ctx, flow.ID)
	require.NoError(t, err)
	assert.Zero(t, latest)

	expected := `
# HELP ivrflow_saves_total Total number of version save attempts by outcome
# TYPE ivrflow_saves_total counter
ivrflow_saves_total{outcome="invalid"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "ivrflow_saves_total"))
}

func TestSave_WarningsDoNotBlock(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	flow, _ := svc.CreateFlow(ctx, "acme", "Orphans", "")

	g := validGraph(t)
	_, _ = g.AddNode(domain.KindPlayAudio, domain.Position{})
	res := validator.Validate(g.Definition())
	require.False(t, res.HasErrors())
	require.NotEmpty(t, res.Warnings())

	v, err := svc.Save(ctx, flow.ID, g.Definition(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Version)
}

func TestSave_RoundTrip(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	flow, _ := svc.CreateFlow(ctx, "acme", "Round trip", "")

	def := validGraph(t).Definition()
	saved, err := svc.Save(ctx, flow.ID, def, nil, "")
	require.NoError(t, err)

	loaded, err := svc.GetVersion(ctx, flow.ID, saved.ID)
	require.NoError(t, err)
	g, err := graph.FromDefinition(loaded.Definition)
	require.NoError(t, err)
	assert.Equal(t, def, g.Definition())
	assert.Equal(t, validator.Validate(def), validator.Validate(g.Definition()))
}

func TestSave_FlowState(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, "missing", validGraph(t).Definition(), nil, "")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)

	flow, _ := svc.CreateFlow(ctx, "acme", "Old", "")
	_, err = svc.Archive(ctx, flow.ID)
	require.NoError(t, err)
	_, err = svc.Save(ctx, flow.ID, validGraph(t).Definition(), nil, "")
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}

func TestSave_ConcurrentSavesGetDistinctNumbers(t *testing.T) {
	locker := &countingLocker{}
	svc, _ := newService(t, versioning.WithLocker(locker))
	ctx := context.Background()
	flow, _ := svc.CreateFlow(ctx, "acme", "Busy", "")
	def := validGraph(t).Definition()

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Save(ctx, flow.ID, def, nil, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	versions, err := svc.ListVersions(ctx, flow.ID)
	require.NoError(t, err)
	require.Len(t, versions, writers)
	for i, v := range versions {
		assert.Equal(t, i+1, v.Version)
	}
	assert.Equal(t, int64(writers), locker.locks.Load())
	assert.Equal(t, int64(writers), locker.unlocks.Load())
}

// interleavingRepo runs a hook the next time a flow record is read, once.
type interleavingRepo struct {
	ports.FlowRepository
	hook atomic.Pointer[func()]
}

func (r *interleavingRepo) GetFlow(ctx context.Context, flowID string) (domain.Flow, error) {
	if fn := r.hook.Swap(nil); fn != nil {
		(*fn)()
	}
	return r.FlowRepository.GetFlow(ctx, flowID)
}

func TestSave_DoesNotOverwriteConcurrentFlowChanges(t *testing.T) {
	tests := []struct {
		name   string
		change func(ctx context.Context, svc *versioning.Service, flowID, versionID string) error
		check  func(t *testing.T, flow domain.Flow, versionID string)
	}{
		{
			name: "Publish",
			change: func(ctx context.Context, svc *versioning.Service, flowID, versionID string) error {
				_, err := svc.Publish(ctx, flowID, versionID)
				return err
			},
			check: func(t *testing.T, flow domain.Flow, versionID string) {
				assert.Equal(t, domain.StatusPublished, flow.Status)
				assert.Equal(t, versionID, flow.ActiveVersionID)
			},
		},
		{
			name: "Archive",
			change: func(ctx context.Context, svc *versioning.Service, flowID, _ string) error {
				_, err := svc.Archive(ctx, flowID)
				return err
			},
			check: func(t *testing.T, flow domain.Flow, _ string) {
				assert.Equal(t, domain.StatusArchived, flow.Status)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo := &interleavingRepo{FlowRepository: memory.NewStore()}
			svc := versioning.NewService(repo)
			flow, err := svc.CreateFlow(ctx, "acme", "Contended", "")
			require.NoError(t, err)
			def := validGraph(t).Definition()
			v1, err := svc.Save(ctx, flow.ID, def, nil, "")
			require.NoError(t, err)

			// the change starts while Save holds the flow record; it either
			// finishes first or waits for the save to complete
			done := make(chan error, 1)
			hook := func() {
				go func() { done <- tt.change(ctx, svc, flow.ID, v1.ID) }()
				select {
				case err := <-done:
					done <- err
				case <-time.After(50 * time.Millisecond):
				}
			}
			repo.hook.Store(&hook)

			v2, saveErr := svc.Save(ctx, flow.ID, def, nil, "")
			require.NoError(t, <-done)

			got, err := svc.GetFlow(ctx, flow.ID)
			require.NoError(t, err)
			tt.check(t, got, v1.ID)

			versions, err := svc.ListVersions(ctx, flow.ID)
			require.NoError(t, err)
			if saveErr == nil {
				assert.Equal(t, 2, v2.Version)
				assert.Len(t, versions, 2)
			} else {
				assert.ErrorIs(t, saveErr, domain.ErrInvalidOperation, "only an archive that won the race may reject the save")
				assert.Len(t, versions, 1)
			}
			if got.ActiveVersionID != "" {
				active, err := svc.ActiveDefinition(ctx, flow.ID)
				require.NoError(t, err)
				assert.Equal(t, v1.Definition, active)
			}
		})
	}
}

func TestActivateAndPublish(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	flow, _ := svc.CreateFlow(ctx, "acme", "Live", "")

	_, err := svc.ActiveDefinition(ctx, flow.ID)
	assert.ErrorIs(t, err, domain.ErrNoActiveVersion)

	g := validGraph(t)
	v1, err := svc.Save(ctx, flow.ID, g.Definition(), nil, "")
	require.NoError(t, err)
	_, _ = g.AddNode(domain.KindPlayAudio, domain.Position{})
	v2, err := svc.Save(ctx, flow.ID, g.Definition(), nil, "")
	require.NoError(t, err)

	published, err := svc.Publish(ctx, flow.ID, v2.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, published.Status)
	assert.Equal(t, v2.ID, published.ActiveVersionID)

	active, err := svc.ActiveDefinition(ctx, flow.ID)
	require.NoError(t, err)
	assert.Equal(t, v2.Definition, active)

	// rolling back repoints without a new version
	rolled, err := svc.Activate(ctx, flow.ID, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, rolled.ActiveVersionID)
	active, err = svc.ActiveDefinition(ctx, flow.ID)
	require.NoError(t, err)
	assert.Equal(t, v1.Definition, active)

	versions, _ := svc.ListVersions(ctx, flow.ID)
	assert.Len(t, versions, 2)

	_, err = svc.Activate(ctx, flow.ID, "nope")
	assert.ErrorIs(t, err, domain.ErrVersionNotFound)
}

func TestAuthorizer(t *testing.T) {
	deny := ports.AuthorizerFunc(func(_ context.Context, action ports.Action, _, _ string) (bool, error) {
		return action != ports.ActionSaveVersion && action != ports.ActionPublish, nil
	})
	svc, store := newService(t, versioning.WithAuthorizer(deny))
	ctx := context.Background()
	flow, err := svc.CreateFlow(ctx, "acme", "Guarded", "")
	require.NoError(t, err)

	_, err = svc.Save(ctx, flow.ID, validGraph(t).Definition(), nil, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	latest, _ := store.LatestVersion(ctx, flow.ID)
	assert.Zero(t, latest)

	_, err = svc.Publish(ctx, flow.ID, "any")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	failing := ports.AuthorizerFunc(func(context.Context, ports.Action, string, string) (bool, error) {
		return false, errors.New("policy backend down")
	})
	svc2, _ := newService(t, versioning.WithAuthorizer(failing))
	_, err = svc2.CreateFlow(ctx, "acme", "x", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrForbidden)
}

func TestCreateFlow_RequiresName(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.CreateFlow(context.Background(), "acme", "  ", "")
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}

func TestListFlows(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	a, _ := svc.CreateFlow(ctx, "acme", "A", "")
	_, _ = svc.CreateFlow(ctx, "globex", "B", "")

	flows, err := svc.ListFlows(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, a.ID, flows[0].ID)
}

type countingLocker struct {
	locks, unlocks atomic.Int64
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.locks.Add(1)
	return func(context.Context) error {
		l.unlocks.Add(1)
		return nil
	}, nil
}
