package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/ivrflow/pkg/adapters/file"
	"github.com/aretw0/ivrflow/pkg/domain"
	"github.com/aretw0/ivrflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	store := file.New(t.TempDir())
	ports.RunFlowRepositoryContract(t, store)
}

func TestFileStore_RejectsUnsafeIDs(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"", "..", "../escape", `a\b`, "tmp-x"} {
		err := store.CreateFlow(ctx, domain.Flow{ID: id})
		assert.ErrorIs(t, err, file.ErrInvalidID, "id %q", id)
	}

	_, err := store.GetFlow(ctx, "../escape")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}

func TestFileStore_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	require.NoError(t, store.CreateFlow(ctx, domain.Flow{ID: "f1", OrganizationID: "org"}))
	require.NoError(t, store.AppendVersion(ctx, domain.FlowVersion{ID: "v1", FlowID: "f1", Version: 1}))
	assert.ErrorIs(t, store.AppendVersion(ctx, domain.FlowVersion{ID: "v1b", FlowID: "f1", Version: 1}), domain.ErrVersionConflict)

	for _, sub := range []string{"flows", filepath.Join("versions", "f1")} {
		entries, err := os.ReadDir(filepath.Join(dir, sub))
		require.NoError(t, err)
		require.Len(t, entries, 1, sub)
		assert.Equal(t, ".json", filepath.Ext(entries[0].Name()))
	}
}
