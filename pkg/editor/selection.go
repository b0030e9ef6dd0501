package editor

// SelectionState is the state of the single-selection machine.
type SelectionState int

const (
	Unselected SelectionState = iota
	NodeSelected
)

func (s SelectionState) String() string {
	if s == NodeSelected {
		return "node_selected"
	}
	return "unselected"
}

// Selection is the Unselected <-> NodeSelected(id) state machine that drives
// the configuration panel. The zero value is Unselected.
type Selection struct {
	nodeID string
}

// State returns the current state.
func (s *Selection) State() SelectionState {
	if s.nodeID == "" {
		return Unselected
	}
	return NodeSelected
}

// NodeID returns the selected node id.
func (s *Selection) NodeID() (string, bool) {
	return s.nodeID, s.nodeID != ""
}

// ClickNode enters NodeSelected(id) from any state.
func (s *Selection) ClickNode(id string) {
	s.nodeID = id
}

// ClickCanvas returns to Unselected.
func (s *Selection) ClickCanvas() {
	s.nodeID = ""
}

// NodeDeleted returns to Unselected when id was the selected node.
func (s *Selection) NodeDeleted(id string) {
	if s.nodeID == id {
		s.nodeID = ""
	}
}
