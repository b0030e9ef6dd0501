package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/ivrflow/pkg/domain"
	"github.com/aretw0/ivrflow/pkg/ports"
)

var _ ports.FlowRepository = (*Store)(nil)

// Store implements ports.FlowRepository in memory.
// Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	flows    map[string]domain.Flow
	versions map[string][]domain.FlowVersion // by flow id
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		flows:    make(map[string]domain.Flow),
		versions: make(map[string][]domain.FlowVersion),
	}
}

// CreateFlow stores a new flow.
func (s *Store) CreateFlow(ctx context.Context, flow domain.Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.flows[flow.ID]; exists {
		return fmt.Errorf("flow %q already exists", flow.ID)
	}
	s.flows[flow.ID] = flow
	return nil
}

// UpdateFlow replaces an existing flow record.
func (s *Store) UpdateFlow(ctx context.Context, flow domain.Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.flows[flow.ID]; !exists {
		return domain.ErrFlowNotFound
	}
	s.flows[flow.ID] = flow
	return nil
}

// GetFlow retrieves a flow record.
func (s *Store) GetFlow(ctx context.Context, flowID string) (domain.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flow, ok := s.flows[flowID]
	if !ok {
		return domain.Flow{}, domain.ErrFlowNotFound
	}
	return flow, nil
}

// ListFlows returns the flows of an organization ordered by creation time.
func (s *Store) ListFlows(ctx context.Context, organizationID string) ([]domain.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flows := make([]domain.Flow, 0)
	for _, f := range s.flows {
		if f.OrganizationID == organizationID {
			flows = append(flows, f)
		}
	}
	sortFlows(flows)
	return flows, nil
}

// AppendVersion stores a version, rejecting a number the flow already holds.
func (s *Store) AppendVersion(ctx context.Context, version domain.FlowVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.versions[version.FlowID] {
		if v.Version == version.Version {
			return fmt.Errorf("%w: %s v%d", domain.ErrVersionConflict, version.FlowID, version.Version)
		}
	}
	s.versions[version.FlowID] = append(s.versions[version.FlowID], version.Clone())
	return nil
}

// GetVersion retrieves a version of a flow by id.
func (s *Store) GetVersion(ctx context.Context, flowID, versionID string) (domain.FlowVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.versions[flowID] {
		if v.ID == versionID {
			return v.Clone(), nil
		}
	}
	return domain.FlowVersion{}, domain.ErrVersionNotFound
}

// ListVersions returns the version history of a flow, oldest first.
func (s *Store) ListVersions(ctx context.Context, flowID string) ([]domain.FlowVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.FlowVersion, 0, len(s.versions[flowID]))
	for _, v := range s.versions[flowID] {
		out = append(out, v.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// LatestVersion returns the highest version number of a flow, or 0.
func (s *Store) LatestVersion(ctx context.Context, flowID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest := 0
	for _, v := range s.versions[flowID] {
		if v.Version > latest {
			latest = v.Version
		}
	}
	return latest, nil
}

func sortFlows(flows []domain.Flow) {
	sort.Slice(flows, func(i, j int) bool {
		if !flows[i].CreatedAt.Equal(flows[j].CreatedAt) {
			return flows[i].CreatedAt.Before(flows[j].CreatedAt)
		}
		return flows[i].ID < flows[j].ID
	})
}
