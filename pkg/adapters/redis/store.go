package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/aretw0/ivrflow/pkg/domain"
	"github.com/aretw0/ivrflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

var _ ports.FlowRepository = (*Store)(nil)

const defaultPrefix = "ivrflow:"

// Store implements ports.FlowRepository using Redis.
//
// Keys (after the prefix):
//
//	flow:<id>            JSON flow record
//	org:<orgID>:flows    ZSET of flow ids scored by creation time
//	versions:<flowID>    HASH version id -> JSON version
//	vnums:<flowID>       HASH version number -> version id, claimed with HSETNX
type Store struct {
	client *backend.Client
	prefix string
}

type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client { return s.client }

func (s *Store) flowKey(flowID string) string { return s.prefix + "flow:" + flowID }
func (s *Store) orgKey(orgID string) string   { return s.prefix + "org:" + orgID + ":flows" }
func (s *Store) versionsKey(flowID string) string {
	return s.prefix + "versions:" + flowID
}
func (s *Store) numbersKey(flowID string) string { return s.prefix + "vnums:" + flowID }

// CreateFlow stores the flow record with SET NX and indexes it under its organization.
func (s *Store) CreateFlow(ctx context.Context, flow domain.Flow) error {
	data, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("failed to marshal flow: %w", err)
	}

	created, err := s.client.SetNX(ctx, s.flowKey(flow.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to save flow to redis: %w", err)
	}
	if !created {
		return fmt.Errorf("flow %q already exists", flow.ID)
	}

	err = s.client.ZAdd(ctx, s.orgKey(flow.OrganizationID), backend.Z{
		Score:  float64(flow.CreatedAt.UnixMilli()),
		Member: flow.ID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to index flow: %w", err)
	}
	return nil
}

// UpdateFlow replaces an existing flow record with SET XX.
func (s *Store) UpdateFlow(ctx context.Context, flow domain.Flow) error {
	data, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("failed to marshal flow: %w", err)
	}
	updated, err := s.client.SetXX(ctx, s.flowKey(flow.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to save flow to redis: %w", err)
	}
	if !updated {
		return domain.ErrFlowNotFound
	}
	return nil
}

// GetFlow retrieves a flow record.
func (s *Store) GetFlow(ctx context.Context, flowID string) (domain.Flow, error) {
	val, err := s.client.Get(ctx, s.flowKey(flowID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.Flow{}, domain.ErrFlowNotFound
		}
		return domain.Flow{}, fmt.Errorf("failed to get flow from redis: %w", err)
	}
	var flow domain.Flow
	if err := json.Unmarshal([]byte(val), &flow); err != nil {
		return domain.Flow{}, fmt.Errorf("failed to unmarshal flow: %w", err)
	}
	return flow, nil
}

// ListFlows reads the organization index in score order and loads each record in one pipeline.
func (s *Store) ListFlows(ctx context.Context, organizationID string) ([]domain.Flow, error) {
	ids, err := s.client.ZRange(ctx, s.orgKey(organizationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	flows := make([]domain.Flow, 0, len(ids))
	if len(ids) == 0 {
		return flows, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*backend.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.flowKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("failed to load flows: %w", err)
	}

	for _, cmd := range cmds {
		val, err := cmd.Result()
		if errors.Is(err, backend.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load flow: %w", err)
		}
		var flow domain.Flow
		if err := json.Unmarshal([]byte(val), &flow); err != nil {
			return nil, fmt.Errorf("failed to unmarshal flow: %w", err)
		}
		flows = append(flows, flow)
	}
	return flows, nil
}

// AppendVersion claims the version number with HSETNX and then stores the document.
func (s *Store) AppendVersion(ctx context.Context, version domain.FlowVersion) error {
	data, err := json.Marshal(version)
	if err != nil {
		return fmt.Errorf("failed to marshal version: %w", err)
	}

	number := strconv.Itoa(version.Version)
	claimed, err := s.client.HSetNX(ctx, s.numbersKey(version.FlowID), number, version.ID).Result()
	if err != nil {
		return fmt.Errorf("failed to claim version number: %w", err)
	}
	if !claimed {
		return fmt.Errorf("%w: %s v%d", domain.ErrVersionConflict, version.FlowID, version.Version)
	}

	if err := s.client.HSet(ctx, s.versionsKey(version.FlowID), version.ID, data).Err(); err != nil {
		// release the claim so the number can be retried
		_ = s.client.HDel(ctx, s.numbersKey(version.FlowID), number).Err()
		return fmt.Errorf("failed to save version to redis: %w", err)
	}
	return nil
}

// GetVersion retrieves one version of a flow.
func (s *Store) GetVersion(ctx context.Context, flowID, versionID string) (domain.FlowVersion, error) {
	val, err := s.client.HGet(ctx, s.versionsKey(flowID), versionID).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.FlowVersion{}, domain.ErrVersionNotFound
		}
		return domain.FlowVersion{}, fmt.Errorf("failed to get version from redis: %w", err)
	}
	var v domain.FlowVersion
	if err := json.Unmarshal([]byte(val), &v); err != nil {
		return domain.FlowVersion{}, fmt.Errorf("failed to unmarshal version: %w", err)
	}
	return v, nil
}

// ListVersions returns every version of a flow, oldest first.
func (s *Store) ListVersions(ctx context.Context, flowID string) ([]domain.FlowVersion, error) {
	vals, err := s.client.HVals(ctx, s.versionsKey(flowID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	versions := make([]domain.FlowVersion, 0, len(vals))
	for _, val := range vals {
		var v domain.FlowVersion
		if err := json.Unmarshal([]byte(val), &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal version: %w", err)
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].Version < versions[j].Version })
	return versions, nil
}

// LatestVersion returns the highest claimed version number of a flow, or 0.
func (s *Store) LatestVersion(ctx context.Context, flowID string) (int, error) {
	numbers, err := s.client.HKeys(ctx, s.numbersKey(flowID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read version numbers: %w", err)
	}
	latest := 0
	for _, n := range numbers {
		v, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("corrupt version number %q: %w", n, err)
		}
		if v > latest {
			latest = v
		}
	}
	return latest, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
