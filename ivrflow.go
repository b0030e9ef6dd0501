package ivrflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/ivrflow/internal/logging"
	"github.com/aretw0/ivrflow/pkg/adapters/memory"
	"github.com/aretw0/ivrflow/pkg/domain"
	"github.com/aretw0/ivrflow/pkg/editor"
	"github.com/aretw0/ivrflow/pkg/graph"
	"github.com/aretw0/ivrflow/pkg/observability"
	"github.com/aretw0/ivrflow/pkg/ports"
	"github.com/aretw0/ivrflow/pkg/validator"
	"github.com/aretw0/ivrflow/pkg/versioning"
)

// Designer is the high-level entry point of the library. It wires a version
// store to editor sessions.
type Designer struct {
	service *versioning.Service
	repo    ports.FlowRepository
	locker  ports.DistributedLocker
	authz   ports.Authorizer
	metrics *observability.Metrics
	logger  *slog.Logger
}

// Option defines a functional option for configuring the Designer.
type Option func(*Designer)

// WithRepository injects a flow repository. The default is an in-memory store.
func WithRepository(repo ports.FlowRepository) Option {
	return func(d *Designer) {
		d.repo = repo
	}
}

// WithLocker serializes saves across processes sharing the repository.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(d *Designer) {
		d.locker = locker
	}
}

// WithAuthorizer sets the authorizer consulted before every mutation.
func WithAuthorizer(authz ports.Authorizer) Option {
	return func(d *Designer) {
		d.authz = authz
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Designer) {
		d.logger = logger
	}
}

// WithMetrics records saves, violations and rejected edits.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Designer) {
		d.metrics = m
	}
}

// New creates a Designer.
func New(opts ...Option) *Designer {
	d := &Designer{}
	for _, opt := range opts {
		opt(d)
	}
	if d.repo == nil {
		d.repo = memory.NewStore()
	}
	if d.logger == nil {
		d.logger = logging.NewNop()
	}

	svcOpts := []versioning.Option{
		versioning.WithLogger(d.logger),
		versioning.WithMetrics(d.metrics),
	}
	if d.locker != nil {
		svcOpts = append(svcOpts, versioning.WithLocker(d.locker))
	}
	if d.authz != nil {
		svcOpts = append(svcOpts, versioning.WithAuthorizer(d.authz))
	}
	d.service = versioning.NewService(d.repo, svcOpts...)
	return d
}

// Service returns the version store.
func (d *Designer) Service() *versioning.Service {
	return d.service
}

// Metrics returns the configured metrics, or nil.
func (d *Designer) Metrics() *observability.Metrics {
	return d.metrics
}

// NewDraft opens an editor on an empty graph for flowID.
func (d *Designer) NewDraft(flowID string, opts ...editor.Option) *editor.Session {
	return editor.NewSession(flowID, nil, d.sessionOptions(opts)...)
}

// Open loads the latest version of a flow into an editor, restoring its
// viewport. A flow with no versions opens as an empty draft.
func (d *Designer) Open(ctx context.Context, flowID string, opts ...editor.Option) (*editor.Session, error) {
	if _, err := d.service.GetFlow(ctx, flowID); err != nil {
		return nil, err
	}
	versions, err := d.service.ListVersions(ctx, flowID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return d.NewDraft(flowID, opts...), nil
	}

	latest := versions[len(versions)-1]
	g, err := graph.FromDefinition(latest.Definition)
	if err != nil {
		return nil, fmt.Errorf("failed to load version %d of %s: %w", latest.Version, flowID, err)
	}
	s := editor.NewSession(flowID, g, d.sessionOptions(opts)...)
	if latest.Viewport != nil {
		s.Palette().SetViewport(*latest.Viewport)
	}
	d.logger.Debug("Flow opened", "flow_id", flowID, "version", latest.Version)
	return s, nil
}

func (d *Designer) sessionOptions(extra []editor.Option) []editor.Option {
	opts := []editor.Option{
		editor.WithSaver(d.service),
		editor.WithLogger(d.logger),
		editor.WithMetrics(d.metrics),
	}
	return append(opts, extra...)
}

// Validate checks a definition without saving it.
func Validate(def domain.FlowDefinition) domain.ValidationResult {
	return validator.Validate(def)
}
