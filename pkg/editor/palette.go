package editor

import (
	"github.com/aretw0/ivrflow/pkg/domain"
	"github.com/aretw0/ivrflow/pkg/graph"
	"github.com/aretw0/ivrflow/pkg/registry"
)

// Bounds is the on-screen rectangle of the canvas element.
type Bounds struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DropResult describes what a palette drop did.
type DropResult struct {
	NodeID   string          `json:"nodeId,omitempty"`
	Kind     domain.Kind     `json:"type"`
	Position domain.Position `json:"position"`
	Rejected bool            `json:"rejected"`
	Reason   string          `json:"reason,omitempty"`
}

// Palette maps drag-and-drop from the node palette onto the canvas.
type Palette struct {
	graph    *graph.Graph
	dragging domain.Kind
	viewport domain.Viewport
	bounds   Bounds
}

// NewPalette creates a palette dropping into g.
func NewPalette(g *graph.Graph) *Palette {
	return &Palette{graph: g, viewport: domain.Viewport{Zoom: 1}}
}

// Items returns the palette entries in display order.
func (p *Palette) Items() []registry.Variant {
	return registry.Variants()
}

// CanDrop reports whether dropping kind would create a node.
func (p *Palette) CanDrop(kind domain.Kind) bool {
	if !kind.Valid() {
		return false
	}
	return kind != domain.KindStart || !p.graph.HasStart()
}

// DragStart remembers the kind being dragged.
func (p *Palette) DragStart(kind domain.Kind) {
	p.dragging = kind
}

// DragCancel forgets the dragged kind.
func (p *Palette) DragCancel() {
	p.dragging = ""
}

// Dragging returns the kind being dragged, if any.
func (p *Palette) Dragging() (domain.Kind, bool) {
	return p.dragging, p.dragging != ""
}

// SetViewport updates the canvas pan/zoom.
func (p *Palette) SetViewport(vp domain.Viewport) {
	p.viewport = vp
}

// Viewport returns the canvas pan/zoom.
func (p *Palette) Viewport() domain.Viewport {
	return p.viewport
}

// SetBounds updates the on-screen canvas rectangle.
func (p *Palette) SetBounds(b Bounds) {
	p.bounds = b
}

// ScreenToCanvas converts screen coordinates to canvas coordinates.
func (p *Palette) ScreenToCanvas(screenX, screenY float64) domain.Position {
	zoom := p.viewport.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	return domain.Position{
		X: (screenX - p.bounds.Left - p.viewport.X) / zoom,
		Y: (screenY - p.bounds.Top - p.viewport.Y) / zoom,
	}
}

// Drop adds a node of the dragged kind at the screen point and ends the drag.
// A drop that cannot create a node is reported through Rejected, never as an error.
func (p *Palette) Drop(screenX, screenY float64) DropResult {
	kind := p.dragging
	p.dragging = ""
	res := DropResult{Kind: kind, Position: p.ScreenToCanvas(screenX, screenY)}

	switch {
	case kind == "":
		res.Rejected, res.Reason = true, "nothing is being dragged"
		return res
	case !p.CanDrop(kind):
		res.Rejected, res.Reason = true, "the flow already has a start node"
		if !kind.Valid() {
			res.Reason = "unknown node type"
		}
		return res
	}

	id, err := p.graph.AddNode(kind, res.Position)
	if err != nil {
		res.Rejected, res.Reason = true, err.Error()
		return res
	}
	res.NodeID = id
	return res
}
