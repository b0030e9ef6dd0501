package graph

import (
	"fmt"
	"math"
	"reflect"

	"github.com/aretw0/ivrflow/pkg/domain"
	"github.com/aretw0/ivrflow/pkg/registry"
	"github.com/mitchellh/mapstructure"
)

// AddNode inserts a node of kind at pos with the registry defaults and returns its fresh id.
// A second start node is rejected with ErrInvalidOperation.
func (g *Graph) AddNode(kind domain.Kind, pos domain.Position) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unknown node type %q", domain.ErrInvalidOperation, kind)
	}
	if kind == domain.KindStart && g.HasStart() {
		return "", fmt.Errorf("%w: flow already has a start node", domain.ErrInvalidOperation)
	}

	id := g.nextID(kind)
	g.nodes[id] = &domain.Node{
		ID:       id,
		Kind:     kind,
		Position: pos,
		Data:     registry.Defaults(kind),
	}
	g.order = append(g.order, id)
	return id, nil
}

// MoveNode updates the position of a node.
func (g *Graph) MoveNode(id string, pos domain.Position) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	n.Position = pos
	return nil
}

// PatchNodeData shallow-merges patch into the node data, keyed by JSON field name.
// Keys absent from patch keep their value; maps and slices in patch replace the
// old value wholesale. Unknown keys or mistyped values fail with ErrInvalidOperation.
// The kind of the node never changes.
func (g *Graph) PatchNodeData(id string, patch map[string]any) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	merged := n.Data.Clone()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      merged,
		TagName:     "json",
		ZeroFields:  true,
		ErrorUnused: true,
		DecodeHook:  integralFloats,
	})
	if err != nil {
		return fmt.Errorf("failed to build patch decoder: %w", err)
	}
	if err := dec.Decode(patch); err != nil {
		return fmt.Errorf("%w: patch %s: %v", domain.ErrInvalidOperation, id, err)
	}
	n.Data = merged
	return nil
}

// integralFloats lets JSON numbers (always float64) fill int fields only when
// they carry no fractional part. mapstructure would truncate them otherwise.
func integralFloats(from, to reflect.Type, data any) (any, error) {
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
	default:
		return data, nil
	}
	var f float64
	switch from.Kind() {
	case reflect.Float64, reflect.Float32:
		f = reflect.ValueOf(data).Float()
	default:
		return data, nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, fmt.Errorf("%v is not an integer", data)
	}
	return int64(f), nil
}

// Connect links sourceHandle of source to target.
//
// It fails with ErrNotFound when either node is missing, and with
// ErrInvalidOperation for self-loops, edges into the start node, handles the
// source does not declare, and handles that already carry an edge (the
// existing edge is kept).
func (g *Graph) Connect(source, sourceHandle, target, targetHandle string) error {
	src, ok := g.nodes[source]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, source)
	}
	tgt, ok := g.nodes[target]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, target)
	}
	if source == target {
		return fmt.Errorf("%w: node %s cannot connect to itself", domain.ErrInvalidOperation, source)
	}
	if tgt.Kind == domain.KindStart {
		return fmt.Errorf("%w: start node cannot have incoming edges", domain.ErrInvalidOperation)
	}
	if registry.IsTerminal(src.Data) {
		return fmt.Errorf("%w: %s node %s ends the call", domain.ErrInvalidOperation, src.Kind, source)
	}
	if !registry.HasHandle(src.Data, sourceHandle) {
		return fmt.Errorf("%w: %s node %s has no output %q", domain.ErrInvalidOperation, src.Kind, source, sourceHandle)
	}
	if existing, taken := g.EdgeAt(source, sourceHandle); taken {
		return fmt.Errorf("%w: output %q of %s is already connected to %s",
			domain.ErrInvalidOperation, sourceHandle, source, existing.Target)
	}

	g.edges = append(g.edges, domain.Edge{
		Source:       source,
		SourceHandle: sourceHandle,
		Target:       target,
		TargetHandle: targetHandle,
	})
	return nil
}

// DeleteNode removes a node and every edge touching it.
// The start node is refused with ErrProtected.
func (g *Graph) DeleteNode(id string) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if n.Kind == domain.KindStart {
		return fmt.Errorf("%w: the start node cannot be deleted", domain.ErrProtected)
	}

	delete(g.nodes, id)
	for i, oid := range g.order {
		if oid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	kept := g.edges[:0]
	for _, e := range g.edges {
		if !e.Touches(id) {
			kept = append(kept, e)
		}
	}
	g.edges = kept
	return nil
}

// DeleteEdge removes the edge at sourceHandle of source. It reports whether an
// edge was removed; a missing edge is not an error.
func (g *Graph) DeleteEdge(source, sourceHandle string) bool {
	for i, e := range g.edges {
		if e.Source == source && e.SourceHandle == sourceHandle {
			g.edges = append(g.edges[:i], g.edges[i+1:]...)
			return true
		}
	}
	return false
}
