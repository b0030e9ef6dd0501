package ports

import (
	"context"

	"github.com/aretw0/ivrflow/pkg/domain"
)

// FlowRepository persists flows and their version history.
// Implementations return copies; callers may mutate what they receive.
type FlowRepository interface {
	// CreateFlow stores a new flow. Creating an id that already exists is an error.
	CreateFlow(ctx context.Context, flow domain.Flow) error

	// UpdateFlow replaces the stored record of an existing flow.
	// Returns domain.ErrFlowNotFound if the flow does not exist.
	UpdateFlow(ctx context.Context, flow domain.Flow) error

	// GetFlow returns domain.ErrFlowNotFound if the flow does not exist.
	GetFlow(ctx context.Context, flowID string) (domain.Flow, error)

	// ListFlows returns the flows of an organization ordered by creation time.
	ListFlows(ctx context.Context, organizationID string) ([]domain.Flow, error)

	// AppendVersion stores an immutable version.
	// Returns domain.ErrVersionConflict if the flow already has a version with the same number.
	AppendVersion(ctx context.Context, version domain.FlowVersion) error

	// GetVersion returns domain.ErrVersionNotFound if the flow has no such version.
	GetVersion(ctx context.Context, flowID, versionID string) (domain.FlowVersion, error)

	// ListVersions returns every version of a flow in ascending version order.
	ListVersions(ctx context.Context, flowID string) ([]domain.FlowVersion, error)

	// LatestVersion returns the highest version number of a flow, or 0 if it has none.
	LatestVersion(ctx context.Context, flowID string) (int, error)
}
