package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/ivrflow/pkg/domain"
	"github.com/aretw0/ivrflow/pkg/graph"
)

const startAlias = "start"

// column spacing of the automatic layout
const layoutStep = 250

// Builder manages the graph construction.
type Builder struct {
	order []string
	nodes map[string]*NodeBuilder
	ids   map[string]string
}

// New creates a new graph builder.
func New() *Builder {
	return &Builder{
		nodes: make(map[string]*NodeBuilder),
	}
}

// Start returns the builder of the start node, aliased "start".
func (b *Builder) Start() *NodeBuilder {
	return b.Add(startAlias, domain.KindStart)
}

// Add declares a node under alias.
// If the alias already exists, it returns the existing builder.
func (b *Builder) Add(alias string, kind domain.Kind) *NodeBuilder {
	if nb, ok := b.nodes[alias]; ok {
		return nb
	}
	nb := &NodeBuilder{
		alias: alias,
		kind:  kind,
		patch: make(map[string]any),
		pos:   domain.Position{X: float64(len(b.order) * layoutStep)},
	}
	b.nodes[alias] = nb
	b.order = append(b.order, alias)
	return nb
}

// Build replays the declarations into a new graph. Every rejected operation
// is reported; the graph is only returned when all of them applied.
func (b *Builder) Build() (*graph.Graph, error) {
	g := graph.New()
	ids := make(map[string]string, len(b.order))
	var errs []error

	for _, alias := range b.order {
		nb := b.nodes[alias]
		id, err := g.AddNode(nb.kind, nb.pos)
		if err != nil {
			errs = append(errs, fmt.Errorf("node %q: %w", alias, err))
			continue
		}
		ids[alias] = id
		if len(nb.patch) > 0 {
			if err := g.PatchNodeData(id, nb.patch); err != nil {
				errs = append(errs, fmt.Errorf("node %q: %w", alias, err))
			}
		}
	}

	for _, alias := range b.order {
		nb := b.nodes[alias]
		source, ok := ids[alias]
		if !ok {
			continue
		}
		for _, l := range nb.links {
			target, ok := ids[l.target]
			if !ok {
				errs = append(errs, fmt.Errorf("node %q: %w: unknown target %q", alias, domain.ErrNotFound, l.target))
				continue
			}
			if err := g.Connect(source, l.handle, target, ""); err != nil {
				errs = append(errs, fmt.Errorf("node %q: %w", alias, err))
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	b.ids = ids
	return g, nil
}

// Definition builds the graph and snapshots it.
func (b *Builder) Definition() (domain.FlowDefinition, error) {
	g, err := b.Build()
	if err != nil {
		return domain.FlowDefinition{}, err
	}
	return g.Definition(), nil
}

// ID returns the node id assigned to alias by the last successful Build.
func (b *Builder) ID(alias string) (string, bool) {
	id, ok := b.ids[alias]
	return id, ok
}
