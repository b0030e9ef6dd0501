package domain

import "time"

// FlowStatus is the lifecycle state of a Flow.
type FlowStatus string

const (
	StatusDraft     FlowStatus = "draft"
	StatusPublished FlowStatus = "published"
	StatusArchived  FlowStatus = "archived"
)

// FlowDefinition is the self-sufficient graph document read by the call-execution engine.
type FlowDefinition struct {
	Nodes     []Node `json:"nodes"`
	Edges     []Edge `json:"edges"`
	StartNode string `json:"startNode,omitempty"`
	// NextSeq is the highest node sequence ever allocated in this flow, so ids
	// of deleted nodes are not handed out again after a reload.
	NextSeq int `json:"nextSeq,omitempty"`
}

// Clone returns a deep copy of the definition.
func (d FlowDefinition) Clone() FlowDefinition {
	out := FlowDefinition{
		Nodes:     make([]Node, len(d.Nodes)),
		Edges:     make([]Edge, len(d.Edges)),
		StartNode: d.StartNode,
		NextSeq:   d.NextSeq,
	}
	for i, n := range d.Nodes {
		out.Nodes[i] = n.Clone()
	}
	copy(out.Edges, d.Edges)
	return out
}

// Node returns the node with the given id.
func (d FlowDefinition) Node(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Outgoing returns the edges leaving nodeID, in definition order.
func (d FlowDefinition) Outgoing(nodeID string) []Edge {
	var out []Edge
	for _, e := range d.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Viewport is the editor pan/zoom saved alongside a version.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Flow is the named, organization-scoped container of a call script.
type Flow struct {
	ID              string     `json:"id"`
	OrganizationID  string     `json:"organizationId"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	Status          FlowStatus `json:"status"`
	ActiveVersionID string     `json:"activeVersionId,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// FlowVersion is an immutable, numbered snapshot of a flow definition.
type FlowVersion struct {
	ID         string         `json:"id"`
	FlowID     string         `json:"flowId"`
	Version    int            `json:"version"`
	Definition FlowDefinition `json:"definition"`
	Viewport   *Viewport      `json:"viewport,omitempty"`
	Notes      string         `json:"notes,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Clone returns a deep copy of the version.
func (v FlowVersion) Clone() FlowVersion {
	out := v
	out.Definition = v.Definition.Clone()
	if v.Viewport != nil {
		vp := *v.Viewport
		out.Viewport = &vp
	}
	return out
}
