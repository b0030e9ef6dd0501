package versioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/ivrflow/internal/logging"
	"github.com/aretw0/ivrflow/pkg/domain"
	"github.com/aretw0/ivrflow/pkg/observability"
	"github.com/aretw0/ivrflow/pkg/ports"
	"github.com/aretw0/ivrflow/pkg/validator"
	"github.com/google/uuid"
)

// Service is the version store: it owns flow records and appends versions.
// Safe for concurrent use.
type Service struct {
	repo  ports.FlowRepository
	locks *flowLocks

	locker  ports.DistributedLocker
	authz   ports.Authorizer
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// Option configures the Service.
type Option func(*Service)

// WithLocker serializes saves across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(s *Service) {
		s.locker = locker
	}
}

// WithAuthorizer sets the authorizer consulted before every mutation.
func WithAuthorizer(authz ports.Authorizer) Option {
	return func(s *Service) {
		s.authz = authz
	}
}

// WithMetrics records saves and activations.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger configures a logger for the Service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator overrides the UUID generator used for flow and version ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		s.newID = gen
	}
}

// NewService creates a Service on top of repo.
func NewService(repo ports.FlowRepository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		locks:  newFlowLocks(),
		authz:  ports.AllowAll,
		logger: logging.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repository returns the underlying repository.
func (s *Service) Repository() ports.FlowRepository {
	return s.repo
}

func (s *Service) authorize(ctx context.Context, action ports.Action, orgID, flowID string) error {
	ok, err := s.authz.Allow(ctx, action, orgID, flowID)
	if err != nil {
		return fmt.Errorf("authorization check failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s on flow %q", domain.ErrForbidden, action, flowID)
	}
	return nil
}

// CreateFlow creates an empty draft flow.
func (s *Service) CreateFlow(ctx context.Context, organizationID, name, description string) (domain.Flow, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Flow{}, fmt.Errorf("%w: flow name is required", domain.ErrInvalidOperation)
	}
	if err := s.authorize(ctx, ports.ActionCreateFlow, organizationID, ""); err != nil {
		return domain.Flow{}, err
	}

	now := s.now()
	flow := domain.Flow{
		ID:             s.newID(),
		OrganizationID: organizationID,
		Name:           name,
		Description:    description,
		Status:         domain.StatusDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateFlow(ctx, flow); err != nil {
		s.logger.Error("Failed to create flow", "org_id", organizationID, "err", err)
		return domain.Flow{}, fmt.Errorf("failed to create flow: %w", err)
	}
	s.logger.Info("Flow created", "flow_id", flow.ID, "org_id", organizationID)
	return flow, nil
}

// GetFlow returns a flow record.
func (s *Service) GetFlow(ctx context.Context, flowID string) (domain.Flow, error) {
	return s.repo.GetFlow(ctx, flowID)
}

// ListFlows returns the flows of an organization.
func (s *Service) ListFlows(ctx context.Context, organizationID string) ([]domain.Flow, error) {
	return s.repo.ListFlows(ctx, organizationID)
}

// Save validates def and appends it as the next version of the flow.
//
// Any error-severity violation fails with *domain.ValidationFailedError and
// nothing is written. Warnings do not block. The active version is not changed.
func (s *Service) Save(ctx context.Context, flowID string, def domain.FlowDefinition, viewport *domain.Viewport, notes string) (domain.FlowVersion, error) {
	start := s.now()
	var saved domain.FlowVersion

	err := s.save(ctx, flowID, def, viewport, notes, &saved)

	outcome := observability.OutcomeSaved
	var invalid *domain.ValidationFailedError
	switch {
	case err == nil:
	case errors.As(err, &invalid):
		outcome = observability.OutcomeInvalid
	case errors.Is(err, domain.ErrForbidden):
		outcome = observability.OutcomeForbidden
	default:
		outcome = observability.OutcomeError
	}
	s.metrics.ObserveSave(outcome, s.now().Sub(start))

	if err != nil {
		return domain.FlowVersion{}, err
	}
	return saved, nil
}

func (s *Service) save(ctx context.Context, flowID string, def domain.FlowDefinition, viewport *domain.Viewport, notes string, out *domain.FlowVersion) error {
	// the flow record must be read and written back under the flow lock
	return s.withFlowLock(ctx, flowID, func(ctx context.Context) error {
		flow, err := s.repo.GetFlow(ctx, flowID)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, ports.ActionSaveVersion, flow.OrganizationID, flowID); err != nil {
			return err
		}
		if flow.Status == domain.StatusArchived {
			return fmt.Errorf("%w: flow %q is archived", domain.ErrInvalidOperation, flowID)
		}

		snapshot := def.Clone()
		result := validator.Validate(snapshot)
		s.metrics.ObserveViolations(result.Violations)
		if result.HasErrors() {
			s.logger.Debug("Save rejected by validation", "flow_id", flowID, "violations", len(result.Violations))
			return &domain.ValidationFailedError{Violations: result.Violations}
		}
		if snapshot.StartNode == "" {
			for _, n := range snapshot.Nodes {
				if n.Kind == domain.KindStart {
					snapshot.StartNode = n.ID
				}
			}
		}

		latest, err := s.repo.LatestVersion(ctx, flowID)
		if err != nil {
			return fmt.Errorf("failed to read latest version: %w", err)
		}

		v := domain.FlowVersion{
			ID:         s.newID(),
			FlowID:     flowID,
			Version:    latest + 1,
			Definition: snapshot,
			Notes:      notes,
			CreatedAt:  s.now(),
		}
		if viewport != nil {
			vp := *viewport
			v.Viewport = &vp
		}

		if err := s.repo.AppendVersion(ctx, v); err != nil {
			s.logger.Error("Failed to append version", "flow_id", flowID, "version", v.Version, "err", err)
			return fmt.Errorf("failed to save version: %w", err)
		}

		flow.UpdatedAt = v.CreatedAt
		if err := s.repo.UpdateFlow(ctx, flow); err != nil {
			s.logger.Warn("Version saved but flow timestamp not updated", "flow_id", flowID, "err", err)
		}

		s.logger.Info("Version saved",
			"flow_id", flowID,
			"version", v.Version,
			"warnings", len(result.Warnings()),
		)
		*out = v.Clone()
		return nil
	})
}

// ListVersions returns the versions of a flow, oldest first.
func (s *Service) ListVersions(ctx context.Context, flowID string) ([]domain.FlowVersion, error) {
	if _, err := s.repo.GetFlow(ctx, flowID); err != nil {
		return nil, err
	}
	return s.repo.ListVersions(ctx, flowID)
}

// GetVersion returns one version of a flow.
func (s *Service) GetVersion(ctx context.Context, flowID, versionID string) (domain.FlowVersion, error) {
	return s.repo.GetVersion(ctx, flowID, versionID)
}

// Activate repoints the active version of a flow without creating a new version.
func (s *Service) Activate(ctx context.Context, flowID, versionID string) (domain.Flow, error) {
	return s.setActive(ctx, ports.ActionActivate, flowID, versionID, "")
}

// Publish activates a version and marks the flow published.
func (s *Service) Publish(ctx context.Context, flowID, versionID string) (domain.Flow, error) {
	return s.setActive(ctx, ports.ActionPublish, flowID, versionID, domain.StatusPublished)
}

func (s *Service) setActive(ctx context.Context, action ports.Action, flowID, versionID string, status domain.FlowStatus) (domain.Flow, error) {
	var updated domain.Flow
	err := s.withFlowLock(ctx, flowID, func(ctx context.Context) error {
		flow, err := s.repo.GetFlow(ctx, flowID)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, action, flow.OrganizationID, flowID); err != nil {
			return err
		}
		if flow.Status == domain.StatusArchived {
			return fmt.Errorf("%w: flow %q is archived", domain.ErrInvalidOperation, flowID)
		}
		if _, err := s.repo.GetVersion(ctx, flowID, versionID); err != nil {
			return err
		}

		flow.ActiveVersionID = versionID
		if status != "" {
			flow.Status = status
		}
		flow.UpdatedAt = s.now()
		if err := s.repo.UpdateFlow(ctx, flow); err != nil {
			return fmt.Errorf("failed to update flow: %w", err)
		}
		updated = flow
		return nil
	})
	if err != nil {
		return domain.Flow{}, err
	}

	kind := "activate"
	if action == ports.ActionPublish {
		kind = "publish"
	}
	s.metrics.Activated(kind)
	s.logger.Info("Active version changed", "flow_id", flowID, "version_id", versionID, "action", kind)
	return updated, nil
}

// Archive marks a flow archived. Archived flows accept no new versions.
func (s *Service) Archive(ctx context.Context, flowID string) (domain.Flow, error) {
	var updated domain.Flow
	err := s.withFlowLock(ctx, flowID, func(ctx context.Context) error {
		flow, err := s.repo.GetFlow(ctx, flowID)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, ports.ActionArchive, flow.OrganizationID, flowID); err != nil {
			return err
		}
		flow.Status = domain.StatusArchived
		flow.UpdatedAt = s.now()
		if err := s.repo.UpdateFlow(ctx, flow); err != nil {
			return fmt.Errorf("failed to update flow: %w", err)
		}
		updated = flow
		return nil
	})
	if err != nil {
		return domain.Flow{}, err
	}
	s.logger.Info("Flow archived", "flow_id", flowID)
	return updated, nil
}

// ActiveDefinition returns exactly the definition of the active version, as
// read by the call-execution engine.
func (s *Service) ActiveDefinition(ctx context.Context, flowID string) (domain.FlowDefinition, error) {
	flow, err := s.repo.GetFlow(ctx, flowID)
	if err != nil {
		return domain.FlowDefinition{}, err
	}
	if flow.ActiveVersionID == "" {
		return domain.FlowDefinition{}, domain.ErrNoActiveVersion
	}
	v, err := s.repo.GetVersion(ctx, flowID, flow.ActiveVersionID)
	if err != nil {
		return domain.FlowDefinition{}, fmt.Errorf("active version of %s: %w", flowID, err)
	}
	return v.Definition, nil
}
