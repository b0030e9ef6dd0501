// Package graph holds the editable in-memory model of a flow and the edit
// operations that mutate it. Every operation either applies fully or returns
// an error and leaves the graph untouched.
//
// A Graph is owned by a single editor and is not safe for concurrent use.
package graph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/ivrflow/pkg/domain"
)

// Graph is the mutable node/edge set of one editor session.
type Graph struct {
	nodes map[string]*domain.Node
	order []string // insertion order of node ids
	edges []domain.Edge
	seq   int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*domain.Node),
	}
}

// FromDefinition loads a stored definition into an editable graph.
// Duplicate node ids, unknown kinds and edges to missing nodes cannot be
// represented and are rejected with ErrInvalidOperation.
func FromDefinition(def domain.FlowDefinition) (*Graph, error) {
	g := New()
	g.seq = def.NextSeq
	for _, n := range def.Nodes {
		if _, dup := g.nodes[n.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate node id %q", domain.ErrInvalidOperation, n.ID)
		}
		if !n.Kind.Valid() {
			return nil, fmt.Errorf("%w: node %q has unknown type %q", domain.ErrInvalidOperation, n.ID, n.Kind)
		}
		if n.Data == nil || n.Data.Kind() != n.Kind {
			return nil, fmt.Errorf("%w: node %q data does not match type %q", domain.ErrInvalidOperation, n.ID, n.Kind)
		}
		c := n.Clone()
		g.nodes[c.ID] = &c
		g.order = append(g.order, c.ID)
		if s := idSeq(c.ID); s > g.seq {
			g.seq = s
		}
	}
	for _, e := range def.Edges {
		if g.nodes[e.Source] == nil || g.nodes[e.Target] == nil {
			return nil, fmt.Errorf("%w: edge %s references a missing node", domain.ErrInvalidOperation, e.ID())
		}
		g.edges = append(g.edges, e)
	}
	return g, nil
}

// idSeq extracts the trailing "-N" sequence of a generated id, or 0.
func idSeq(id string) int {
	i := strings.LastIndexByte(id, '-')
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return 0
	}
	return n
}

func (g *Graph) nextID(kind domain.Kind) string {
	for {
		g.seq++
		id := fmt.Sprintf("%s-%d", kind, g.seq)
		if _, taken := g.nodes[id]; !taken {
			return id
		}
	}
}

// StartNodeID returns the id of the start node, or "" when there is none.
func (g *Graph) StartNodeID() string {
	for _, id := range g.order {
		if g.nodes[id].Kind == domain.KindStart {
			return id
		}
	}
	return ""
}

// HasStart reports whether a start node exists.
func (g *Graph) HasStart() bool { return g.StartNodeID() != "" }

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id string) (domain.Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return domain.Node{}, false
	}
	return n.Clone(), true
}

// Nodes returns copies of all nodes in insertion order.
func (g *Graph) Nodes() []domain.Node {
	out := make([]domain.Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id].Clone())
	}
	return out
}

// Edges returns a copy of all edges in insertion order.
func (g *Graph) Edges() []domain.Edge {
	out := make([]domain.Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// EdgeAt returns the edge occupying handle on source.
func (g *Graph) EdgeAt(source, handle string) (domain.Edge, bool) {
	for _, e := range g.edges {
		if e.Source == source && e.SourceHandle == handle {
			return e, true
		}
	}
	return domain.Edge{}, false
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.order) }

// Definition snapshots the graph into a definition detached from the model.
func (g *Graph) Definition() domain.FlowDefinition {
	return domain.FlowDefinition{
		Nodes:     g.Nodes(),
		Edges:     g.Edges(),
		StartNode: g.StartNodeID(),
		NextSeq:   g.seq,
	}
}
