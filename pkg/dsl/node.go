package dsl

import "github.com/aretw0/ivrflow/pkg/domain"

type link struct {
	handle string
	target string
}

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	alias   string
	kind    domain.Kind
	pos     domain.Position
	patch   map[string]any
	options map[string]any
	links   []link
}

// Label sets the display label. Nodes otherwise keep their default label.
func (n *NodeBuilder) Label(label string) *NodeBuilder {
	return n.Set("label", label)
}

// Set assigns a data field by its JSON name.
func (n *NodeBuilder) Set(field string, value any) *NodeBuilder {
	n.patch[field] = value
	return n
}

// At places the node at canvas coordinates instead of the automatic layout.
func (n *NodeBuilder) At(x, y float64) *NodeBuilder {
	n.pos = domain.Position{X: x, Y: y}
	return n
}

// Go connects the default output to target.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.links = append(n.links, link{handle: domain.HandleDefault, target: target})
	return n
}

// Option declares a menu option and connects its key to target.
func (n *NodeBuilder) Option(key, label, target string) *NodeBuilder {
	if n.options == nil {
		n.options = make(map[string]any)
		n.patch["options"] = n.options
	}
	n.options[key] = label
	n.links = append(n.links, link{handle: key, target: target})
	return n
}

// Invalid connects the invalid-input path of a menu to target.
func (n *NodeBuilder) Invalid(target string) *NodeBuilder {
	n.links = append(n.links, link{handle: domain.HandleInvalid, target: target})
	return n
}

// When connects the true branch of a conditional to target.
func (n *NodeBuilder) When(target string) *NodeBuilder {
	n.links = append(n.links, link{handle: domain.HandleTrue, target: target})
	return n
}

// Otherwise connects the false branch of a conditional to target.
func (n *NodeBuilder) Otherwise(target string) *NodeBuilder {
	n.links = append(n.links, link{handle: domain.HandleFalse, target: target})
	return n
}
