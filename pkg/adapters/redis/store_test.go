package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/ivrflow/pkg/adapters/redis"
	"github.com/aretw0/ivrflow/pkg/domain"
	"github.com/aretw0/ivrflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ports.RunFlowRepositoryContract(t, store)
}

func TestRedisStore_KeyLayout(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("test:"))
	ctx := context.Background()

	flow := domain.Flow{ID: "f1", OrganizationID: "acme", Name: "Support", CreatedAt: time.Now()}
	require.NoError(t, store.CreateFlow(ctx, flow))
	require.NoError(t, store.AppendVersion(ctx, domain.FlowVersion{ID: "v1", FlowID: "f1", Version: 1}))

	assert.True(t, mr.Exists("test:flow:f1"))
	assert.True(t, mr.Exists("test:org:acme:flows"))
	assert.True(t, mr.Exists("test:versions:f1"))
	assert.Equal(t, "v1", mr.HGet("test:vnums:f1", "1"))
}

func TestRedisStore_CorruptVersionNumber(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)

	mr.HSet("ivrflow:vnums:f1", "abc", "v1")
	_, err := store.LatestVersion(context.Background(), "f1")
	assert.Error(t, err)
}
