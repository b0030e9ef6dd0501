// Package editor turns raw canvas events (clicks, keys, palette drags) into
// graph edit operations and keeps the selection that drives the
// configuration panel.
//
// Data flows one way: event -> operation -> graph -> validation -> OnChange.
// Every successful mutation re-runs the validator advisorily; its result never
// blocks editing. Only Save validates authoritatively.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/ivrflow/internal/logging"
	"github.com/aretw0/ivrflow/pkg/domain"
	"github.com/aretw0/ivrflow/pkg/graph"
	"github.com/aretw0/ivrflow/pkg/observability"
	"github.com/aretw0/ivrflow/pkg/validator"
)

// Keys handled by KeyPress.
const (
	KeyDelete    = "Delete"
	KeyBackspace = "Backspace"
	KeyEscape    = "Escape"
)

// ErrNoSaver is returned by Save when the session was built without a Saver.
var ErrNoSaver = errors.New("editor session has no saver")

// Saver persists a definition as a new version. *versioning.Service implements it.
type Saver interface {
	Save(ctx context.Context, flowID string, def domain.FlowDefinition, viewport *domain.Viewport, notes string) (domain.FlowVersion, error)
}

// Panel is the configuration panel binding of the selected node.
type Panel struct {
	NodeID string          `json:"nodeId"`
	Kind   domain.Kind     `json:"type"`
	Data   domain.NodeData `json:"data"`
}

// Session is one editor instance. It exclusively owns its graph and is not
// safe for concurrent use.
type Session struct {
	flowID    string
	graph     *graph.Graph
	selection Selection
	palette   *Palette
	result    domain.ValidationResult

	saver    Saver
	onChange func(*Session)
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// Option configures the Session.
type Option func(*Session)

// WithSaver sets the version store used by Save.
func WithSaver(saver Saver) Option {
	return func(s *Session) {
		s.saver = saver
	}
}

// WithOnChange registers a hook called after every successful mutation.
func WithOnChange(fn func(*Session)) Option {
	return func(s *Session) {
		s.onChange = fn
	}
}

// WithLogger configures a logger for the Session.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithMetrics counts rejected edits.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// NewSession opens an editor on g for flowID. A nil g starts an empty graph.
func NewSession(flowID string, g *graph.Graph, opts ...Option) *Session {
	if g == nil {
		g = graph.New()
	}
	s := &Session{
		flowID: flowID,
		graph:  g,
		logger: logging.NewNop(),
	}
	s.palette = NewPalette(g)
	for _, opt := range opts {
		opt(s)
	}
	s.result = validator.Validate(g.Definition())
	return s
}

// FlowID returns the flow being edited.
func (s *Session) FlowID() string { return s.flowID }

// Definition snapshots the current graph.
func (s *Session) Definition() domain.FlowDefinition { return s.graph.Definition() }

// Graph returns the edited graph. Mutating it directly bypasses validation and OnChange.
func (s *Session) Graph() *graph.Graph { return s.graph }

// Palette returns the session palette.
func (s *Session) Palette() *Palette { return s.palette }

// Selection returns the current selection state.
func (s *Session) Selection() Selection { return s.selection }

// Result returns the latest advisory validation result.
func (s *Session) Result() domain.ValidationResult { return s.result }

// Panel returns the binding of the selected node, if any.
func (s *Session) Panel() (Panel, bool) {
	id, ok := s.selection.NodeID()
	if !ok {
		return Panel{}, false
	}
	n, ok := s.graph.Node(id)
	if !ok {
		return Panel{}, false
	}
	return Panel{NodeID: n.ID, Kind: n.Kind, Data: n.Data}, true
}

func (s *Session) changed() {
	s.result = validator.Validate(s.graph.Definition())
	if s.onChange != nil {
		s.onChange(s)
	}
}

func (s *Session) rejected(op string, err error) error {
	s.metrics.RejectedEdit(op)
	s.logger.Debug("Edit rejected", "flow_id", s.flowID, "op", op, "err", err)
	return err
}

// ClickNode selects a node.
func (s *Session) ClickNode(id string) error {
	if _, ok := s.graph.Node(id); !ok {
		return s.rejected("select", fmt.Errorf("%w: %s", domain.ErrNotFound, id))
	}
	s.selection.ClickNode(id)
	return nil
}

// ClickCanvas clears the selection.
func (s *Session) ClickCanvas() {
	s.selection.ClickCanvas()
}

// KeyPress handles Delete/Backspace (delete the selected node) and Escape
// (clear the selection). Other keys are ignored.
func (s *Session) KeyPress(key string) error {
	switch key {
	case KeyDelete, KeyBackspace:
		id, ok := s.selection.NodeID()
		if !ok {
			return nil
		}
		return s.DeleteNode(id)
	case KeyEscape:
		s.selection.ClickCanvas()
	}
	return nil
}

// DragStart begins dragging kind from the palette.
func (s *Session) DragStart(kind domain.Kind) {
	s.palette.DragStart(kind)
}

// Drop finishes a palette drag at a screen point. The new node is not selected.
func (s *Session) Drop(screenX, screenY float64) DropResult {
	res := s.palette.Drop(screenX, screenY)
	if res.Rejected {
		s.metrics.RejectedEdit("add_node")
		s.logger.Debug("Drop rejected", "flow_id", s.flowID, "type", res.Kind, "reason", res.Reason)
		return res
	}
	s.changed()
	return res
}

// AddNode adds a node at canvas coordinates.
func (s *Session) AddNode(kind domain.Kind, pos domain.Position) (string, error) {
	id, err := s.graph.AddNode(kind, pos)
	if err != nil {
		return "", s.rejected("add_node", err)
	}
	s.changed()
	return id, nil
}

// MoveNode repositions a node.
func (s *Session) MoveNode(id string, pos domain.Position) error {
	if err := s.graph.MoveNode(id, pos); err != nil {
		return s.rejected("move_node", err)
	}
	s.changed()
	return nil
}

// PatchNode merges a panel edit into a node's data.
func (s *Session) PatchNode(id string, patch map[string]any) error {
	if err := s.graph.PatchNodeData(id, patch); err != nil {
		return s.rejected("patch_node", err)
	}
	s.changed()
	return nil
}

// PatchSelected merges a panel edit into the selected node.
func (s *Session) PatchSelected(patch map[string]any) error {
	id, ok := s.selection.NodeID()
	if !ok {
		return s.rejected("patch_node", fmt.Errorf("%w: no node is selected", domain.ErrInvalidOperation))
	}
	return s.PatchNode(id, patch)
}

// Connect links two nodes.
func (s *Session) Connect(source, sourceHandle, target, targetHandle string) error {
	if err := s.graph.Connect(source, sourceHandle, target, targetHandle); err != nil {
		return s.rejected("connect", err)
	}
	s.changed()
	return nil
}

// DeleteNode removes a node and its edges, clearing the selection if it was selected.
func (s *Session) DeleteNode(id string) error {
	if err := s.graph.DeleteNode(id); err != nil {
		return s.rejected("delete_node", err)
	}
	s.selection.NodeDeleted(id)
	s.changed()
	return nil
}

// DeleteEdge removes the edge at a handle. Removing nothing is not an error.
func (s *Session) DeleteEdge(source, sourceHandle string) bool {
	if !s.graph.DeleteEdge(source, sourceHandle) {
		return false
	}
	s.changed()
	return true
}

// Save snapshots the graph and the palette viewport and hands them to the Saver.
// The graph is never modified by a save, whether it succeeds or fails.
func (s *Session) Save(ctx context.Context, notes string) (domain.FlowVersion, error) {
	if s.saver == nil {
		return domain.FlowVersion{}, ErrNoSaver
	}
	vp := s.palette.Viewport()
	v, err := s.saver.Save(ctx, s.flowID, s.graph.Definition(), &vp, notes)
	if err != nil {
		s.logger.Debug("Save failed", "flow_id", s.flowID, "err", err)
		return domain.FlowVersion{}, err
	}
	return v, nil
}
