package domain

// Edge is a directed transition from one node output to another node.
// Its identity is the (Source, SourceHandle, Target, TargetHandle) tuple.
type Edge struct {
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// ID returns a stable identifier derived from the edge endpoints.
func (e Edge) ID() string {
	return e.Source + ":" + e.SourceHandle + "->" + e.Target + ":" + e.TargetHandle
}

// Touches reports whether nodeID is either endpoint of the edge.
func (e Edge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}
