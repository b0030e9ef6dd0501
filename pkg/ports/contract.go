package ports

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/ivrflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunFlowRepositoryContract runs a suite of tests to verify that a FlowRepository
// implementation adheres to the defined interface contract.
func RunFlowRepositoryContract(t *testing.T, repo FlowRepository) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405.000000")
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	newFlow := func(id, org string, created time.Time) domain.Flow {
		return domain.Flow{
			ID:             id + "-" + suffix,
			OrganizationID: org + "-" + suffix,
			Name:           "Flow " + id,
			Status:         domain.StatusDraft,
			CreatedAt:      created,
			UpdatedAt:      created,
		}
	}

	newVersion := func(flowID string, n int) domain.FlowVersion {
		return domain.FlowVersion{
			ID:      fmt.Sprintf("%s-v%d", flowID, n),
			FlowID:  flowID,
			Version: n,
			Definition: domain.FlowDefinition{
				Nodes: []domain.Node{
					{ID: "start-1", Kind: domain.KindStart, Data: &domain.StartData{Label: "Start"}},
					{ID: "menu-2", Kind: domain.KindMenu, Position: domain.Position{X: 10, Y: 20},
						Data: &domain.MenuData{Label: "Main", Timeout: 5, MaxRetries: 3, Options: map[string]string{"1": "Sales"}}},
					{ID: "hangup-3", Kind: domain.KindHangup, Data: &domain.HangupData{Label: "Bye"}},
				},
				Edges: []domain.Edge{
					{Source: "start-1", Target: "menu-2"},
					{Source: "menu-2", SourceHandle: "1", Target: "hangup-3"},
				},
				StartNode: "start-1",
			},
			Viewport:  &domain.Viewport{X: 1, Y: 2, Zoom: 1.5},
			Notes:     fmt.Sprintf("version %d", n),
			CreatedAt: now.Add(time.Duration(n) * time.Minute),
		}
	}

	t.Run("Create and Get Flow", func(t *testing.T) {
		flow := newFlow("get", "org", now)
		require.NoError(t, repo.CreateFlow(ctx, flow))

		loaded, err := repo.GetFlow(ctx, flow.ID)
		require.NoError(t, err)
		assert.Equal(t, flow.ID, loaded.ID)
		assert.Equal(t, flow.OrganizationID, loaded.OrganizationID)
		assert.Equal(t, flow.Name, loaded.Name)
		assert.Equal(t, domain.StatusDraft, loaded.Status)
		assert.True(t, flow.CreatedAt.Equal(loaded.CreatedAt))

		assert.Error(t, repo.CreateFlow(ctx, flow), "duplicate flow id must be rejected")
	})

	t.Run("Get Non-Existent Flow", func(t *testing.T) {
		_, err := repo.GetFlow(ctx, "missing-"+suffix)
		assert.ErrorIs(t, err, domain.ErrFlowNotFound)
	})

	t.Run("Update Flow", func(t *testing.T) {
		flow := newFlow("update", "org", now)
		require.NoError(t, repo.CreateFlow(ctx, flow))

		flow.Status = domain.StatusPublished
		flow.ActiveVersionID = "v-1"
		flow.UpdatedAt = now.Add(time.Hour)
		require.NoError(t, repo.UpdateFlow(ctx, flow))

		loaded, err := repo.GetFlow(ctx, flow.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPublished, loaded.Status)
		assert.Equal(t, "v-1", loaded.ActiveVersionID)

		missing := newFlow("never-created", "org", now)
		assert.ErrorIs(t, repo.UpdateFlow(ctx, missing), domain.ErrFlowNotFound)
	})

	t.Run("List Flows By Organization", func(t *testing.T) {
		a := newFlow("list-a", "acme", now.Add(2*time.Second))
		b := newFlow("list-b", "acme", now.Add(time.Second))
		other := newFlow("list-c", "globex", now)
		require.NoError(t, repo.CreateFlow(ctx, a))
		require.NoError(t, repo.CreateFlow(ctx, b))
		require.NoError(t, repo.CreateFlow(ctx, other))

		flows, err := repo.ListFlows(ctx, a.OrganizationID)
		require.NoError(t, err)
		require.Len(t, flows, 2)
		assert.Equal(t, b.ID, flows[0].ID, "flows are ordered by creation time")
		assert.Equal(t, a.ID, flows[1].ID)

		none, err := repo.ListFlows(ctx, "nobody-"+suffix)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("Append and Get Version", func(t *testing.T) {
		flow := newFlow("versions", "org", now)
		require.NoError(t, repo.CreateFlow(ctx, flow))

		latest, err := repo.LatestVersion(ctx, flow.ID)
		require.NoError(t, err)
		assert.Zero(t, latest)

		v1 := newVersion(flow.ID, 1)
		require.NoError(t, repo.AppendVersion(ctx, v1))

		loaded, err := repo.GetVersion(ctx, flow.ID, v1.ID)
		require.NoError(t, err)
		assert.Equal(t, v1.Version, loaded.Version)
		assert.Equal(t, v1.Definition, loaded.Definition, "definitions must round trip exactly")
		assert.Equal(t, v1.Viewport, loaded.Viewport)
		assert.Equal(t, v1.Notes, loaded.Notes)

		latest, err = repo.LatestVersion(ctx, flow.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, latest)

		_, err = repo.GetVersion(ctx, flow.ID, "missing")
		assert.ErrorIs(t, err, domain.ErrVersionNotFound)
	})

	t.Run("Version Numbers Are Unique", func(t *testing.T) {
		flow := newFlow("conflict", "org", now)
		require.NoError(t, repo.CreateFlow(ctx, flow))
		require.NoError(t, repo.AppendVersion(ctx, newVersion(flow.ID, 1)))

		dup := newVersion(flow.ID, 1)
		dup.ID = dup.ID + "-again"
		assert.ErrorIs(t, repo.AppendVersion(ctx, dup), domain.ErrVersionConflict)

		versions, err := repo.ListVersions(ctx, flow.ID)
		require.NoError(t, err)
		assert.Len(t, versions, 1)
	})

	t.Run("List Versions Ascending", func(t *testing.T) {
		flow := newFlow("history", "org", now)
		require.NoError(t, repo.CreateFlow(ctx, flow))
		for _, n := range []int{2, 1, 3} {
			require.NoError(t, repo.AppendVersion(ctx, newVersion(flow.ID, n)))
		}

		versions, err := repo.ListVersions(ctx, flow.ID)
		require.NoError(t, err)
		require.Len(t, versions, 3)
		for i, v := range versions {
			assert.Equal(t, i+1, v.Version)
		}

		empty, err := repo.ListVersions(ctx, "nothing-"+suffix)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("Returned Values Are Copies", func(t *testing.T) {
		flow := newFlow("copies", "org", now)
		require.NoError(t, repo.CreateFlow(ctx, flow))
		v := newVersion(flow.ID, 1)
		require.NoError(t, repo.AppendVersion(ctx, v))

		loaded, err := repo.GetVersion(ctx, flow.ID, v.ID)
		require.NoError(t, err)
		loaded.Definition.Nodes[1].Data.(*domain.MenuData).Options["9"] = "tampered"
		loaded.Definition.Edges = nil

		again, err := repo.GetVersion(ctx, flow.ID, v.ID)
		require.NoError(t, err)
		assert.Equal(t, v.Definition, again.Definition)
	})

	t.Run("Concurrent Appends Claim Distinct Numbers", func(t *testing.T) {
		flow := newFlow("race", "org", now)
		require.NoError(t, repo.CreateFlow(ctx, flow))

		const workers = 8
		var wg sync.WaitGroup
		errs := make([]error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				v := newVersion(flow.ID, 1)
				v.ID = fmt.Sprintf("%s-worker-%d", v.ID, i)
				errs[i] = repo.AppendVersion(ctx, v)
			}(i)
		}
		wg.Wait()

		won := 0
		for _, err := range errs {
			if err == nil {
				won++
				continue
			}
			assert.ErrorIs(t, err, domain.ErrVersionConflict)
		}
		assert.Equal(t, 1, won, "exactly one writer may claim a version number")
	})
}
