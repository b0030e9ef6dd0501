package graph_test

import (
	"testing"

	"github.com/aretw0/ivrflow/pkg/domain"
	"github.com/aretw0/ivrflow/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFlow builds start -> play -> hangup and returns the graph with the node ids.
func newFlow(t *testing.T) (*graph.Graph, string, string, string) {
	t.Helper()
	g := graph.New()
	start, err := g.AddNode(domain.KindStart, domain.Position{})
	require.NoError(t, err)
	play, err := g.AddNode(domain.KindPlayAudio, domain.Position{X: 100})
	require.NoError(t, err)
	hangup, err := g.AddNode(domain.KindHangup, domain.Position{X: 200})
	require.NoError(t, err)
	require.NoError(t, g.Connect(start, "", play, ""))
	require.NoError(t, g.Connect(play, "", hangup, ""))
	return g, start, play, hangup
}

func TestAddNode_AssignsDefaultsAndFreshIDs(t *testing.T) {
	g := graph.New()
	id, err := g.AddNode(domain.KindMenu, domain.Position{X: 3, Y: 4})
	require.NoError(t, err)

	n, ok := g.Node(id)
	require.True(t, ok)
	assert.Equal(t, domain.KindMenu, n.Kind)
	assert.Equal(t, domain.Position{X: 3, Y: 4}, n.Position)
	assert.Equal(t, "Menu", n.Label())
	assert.Equal(t, 5, n.Data.(*domain.MenuData).Timeout)

	// ids are never reused after deletion
	require.NoError(t, g.DeleteNode(id))
	id2, err := g.AddNode(domain.KindMenu, domain.Position{})
	require.NoError(t, err)
	assert.NotEqual(t, id, id2)
}

func TestAddNode_SecondStartLeavesGraphUnchanged(t *testing.T) {
	g, _, _, _ := newFlow(t)
	before := g.Definition()

	_, err := g.AddNode(domain.KindStart, domain.Position{X: 9})
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
	assert.Equal(t, before, g.Definition())
}

func TestAddNode_UnknownKind(t *testing.T) {
	g := graph.New()
	_, err := g.AddNode("fax", domain.Position{})
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
	assert.Zero(t, g.Len())
}

func TestMoveNode(t *testing.T) {
	g, _, play, _ := newFlow(t)
	require.NoError(t, g.MoveNode(play, domain.Position{X: 7, Y: 8}))
	n, _ := g.Node(play)
	assert.Equal(t, domain.Position{X: 7, Y: 8}, n.Position)

	assert.ErrorIs(t, g.MoveNode("ghost", domain.Position{}), domain.ErrNotFound)
}

func TestPatchNodeData(t *testing.T) {
	g := graph.New()
	id, err := g.AddNode(domain.KindMenu, domain.Position{})
	require.NoError(t, err)

	require.NoError(t, g.PatchNodeData(id, map[string]any{
		"label":   "Main menu",
		"options": map[string]any{"1": "Sales", "2": "Support"},
	}))
	n, _ := g.Node(id)
	menu := n.Data.(*domain.MenuData)
	assert.Equal(t, "Main menu", menu.Label)
	assert.Equal(t, 5, menu.Timeout, "untouched fields keep their value")
	assert.Equal(t, map[string]string{"1": "Sales", "2": "Support"}, menu.Options)

	// maps are replaced, not merged
	require.NoError(t, g.PatchNodeData(id, map[string]any{"options": map[string]any{"9": "Operator"}}))
	n, _ = g.Node(id)
	assert.Equal(t, map[string]string{"9": "Operator"}, n.Data.(*domain.MenuData).Options)

	// JSON numbers arrive as float64
	require.NoError(t, g.PatchNodeData(id, map[string]any{"timeout": float64(12)}))
	n, _ = g.Node(id)
	assert.Equal(t, 12, n.Data.(*domain.MenuData).Timeout)
	assert.Equal(t, domain.KindMenu, n.Kind)
}

func TestPatchNodeData_RejectedPatchIsAtomic(t *testing.T) {
	g := graph.New()
	id, err := g.AddNode(domain.KindTransfer, domain.Position{})
	require.NoError(t, err)
	before, _ := g.Node(id)

	err = g.PatchNodeData(id, map[string]any{"destination": "+15550100", "type": "hangup"})
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	err = g.PatchNodeData(id, map[string]any{"destination": "+15550100", "timeout": "soon"})
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	after, _ := g.Node(id)
	assert.Equal(t, before, after)

	assert.ErrorIs(t, g.PatchNodeData("ghost", map[string]any{}), domain.ErrNotFound)
}

func TestPatchNodeData_FractionalNumbers(t *testing.T) {
	g := graph.New()
	id, err := g.AddNode(domain.KindRecord, domain.Position{})
	require.NoError(t, err)
	before, _ := g.Node(id)

	err = g.PatchNodeData(id, map[string]any{"max_duration": 2.9})
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
	after, _ := g.Node(id)
	assert.Equal(t, before, after)

	require.NoError(t, g.PatchNodeData(id, map[string]any{"max_duration": 3.0}))
	n, _ := g.Node(id)
	assert.Equal(t, 3, n.Data.(*domain.RecordData).MaxDuration)
}

func TestNode_ReturnsCopies(t *testing.T) {
	g := graph.New()
	id, _ := g.AddNode(domain.KindMenu, domain.Position{})
	n, _ := g.Node(id)
	n.Data.(*domain.MenuData).Options["1"] = "leak"

	fresh, _ := g.Node(id)
	assert.Empty(t, fresh.Data.(*domain.MenuData).Options)
}

func TestConnect_Rules(t *testing.T) {
	g, start, play, hangup := newFlow(t)
	menu, _ := g.AddNode(domain.KindMenu, domain.Position{})
	require.NoError(t, g.PatchNodeData(menu, map[string]any{"options": map[string]any{"1": "A"}}))

	tests := []struct {
		name    string
		src     string
		handle  string
		tgt     string
		wantErr error
	}{
		{"missing source", "ghost", "", play, domain.ErrNotFound},
		{"missing target", play, "", "ghost", domain.ErrNotFound},
		{"self loop", menu, "1", menu, domain.ErrInvalidOperation},
		{"into start", menu, "1", start, domain.ErrInvalidOperation},
		{"from terminal", hangup, "", menu, domain.ErrInvalidOperation},
		{"undeclared handle", menu, "7", play, domain.ErrInvalidOperation},
		{"occupied single output", start, "", menu, domain.ErrInvalidOperation},
		{"menu option", menu, "1", hangup, nil},
		{"menu invalid path", menu, domain.HandleInvalid, hangup, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(g.Edges())
			err := g.Connect(tt.src, tt.handle, tt.tgt, "")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Len(t, g.Edges(), before)
				return
			}
			require.NoError(t, err)
			assert.Len(t, g.Edges(), before+1)
		})
	}
}

func TestConnect_SecondEdgeOnConditionalHandleIsRejected(t *testing.T) {
	g := graph.New()
	a, _ := g.AddNode(domain.KindConditional, domain.Position{})
	b, _ := g.AddNode(domain.KindHangup, domain.Position{})
	c, _ := g.AddNode(domain.KindHangup, domain.Position{})

	require.NoError(t, g.Connect(a, domain.HandleTrue, b, "in"))
	err := g.Connect(a, domain.HandleTrue, c, "in2")
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	var onTrue []domain.Edge
	for _, e := range g.Edges() {
		if e.Source == a && e.SourceHandle == domain.HandleTrue {
			onTrue = append(onTrue, e)
		}
	}
	require.Len(t, onTrue, 1)
	assert.Equal(t, b, onTrue[0].Target)
}

func TestConnect_OptOutFollowsHangupAfter(t *testing.T) {
	g := graph.New()
	opt, _ := g.AddNode(domain.KindOptOut, domain.Position{})
	next, _ := g.AddNode(domain.KindPlayAudio, domain.Position{})

	assert.ErrorIs(t, g.Connect(opt, "", next, ""), domain.ErrInvalidOperation)

	require.NoError(t, g.PatchNodeData(opt, map[string]any{"hangup_after": false}))
	assert.NoError(t, g.Connect(opt, "", next, ""))
}

func TestDeleteNode_StartIsProtected(t *testing.T) {
	g, start, _, _ := newFlow(t)
	before := g.Definition()

	err := g.DeleteNode(start)
	assert.ErrorIs(t, err, domain.ErrProtected)
	assert.Equal(t, before, g.Definition())
	assert.Equal(t, start, g.StartNodeID())
}

func TestDeleteNode_CascadesEdges(t *testing.T) {
	g, start, play, hangup := newFlow(t)

	require.NoError(t, g.DeleteNode(play))
	_, ok := g.Node(play)
	assert.False(t, ok)
	assert.Empty(t, g.Edges())

	// the remaining nodes keep their order
	ids := []string{}
	for _, n := range g.Nodes() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{start, hangup}, ids)

	assert.ErrorIs(t, g.DeleteNode(play), domain.ErrNotFound)
}

func TestDeleteEdge(t *testing.T) {
	g, start, play, _ := newFlow(t)

	assert.True(t, g.DeleteEdge(start, ""))
	_, ok := g.EdgeAt(start, "")
	assert.False(t, ok)

	assert.False(t, g.DeleteEdge(start, ""), "absent edge is a no-op")
	assert.False(t, g.DeleteEdge("ghost", "x"))
	assert.Len(t, g.Edges(), 1)

	// the freed handle can be reconnected
	assert.NoError(t, g.Connect(start, "", play, ""))
}

func TestEditOperations_KeepReferentialIntegrity(t *testing.T) {
	g, start, play, hangup := newFlow(t)
	menu, _ := g.AddNode(domain.KindMenu, domain.Position{})
	require.NoError(t, g.PatchNodeData(menu, map[string]any{"options": map[string]any{"1": "A", "2": "B"}}))
	require.True(t, g.DeleteEdge(start, ""))
	_ = g.Connect(start, "", menu, "")
	_ = g.Connect(menu, "1", play, "")
	_ = g.Connect(menu, "2", hangup, "")
	_ = g.DeleteNode(play)
	_, _ = g.AddNode(domain.KindRecord, domain.Position{})

	def := g.Definition()
	ids := map[string]bool{}
	for _, n := range def.Nodes {
		assert.False(t, ids[n.ID], "duplicate id %s", n.ID)
		ids[n.ID] = true
	}
	for _, e := range def.Edges {
		assert.True(t, ids[e.Source], "dangling source %s", e.Source)
		assert.True(t, ids[e.Target], "dangling target %s", e.Target)
	}
}

func TestFromDefinition(t *testing.T) {
	g, _, _, _ := newFlow(t)
	def := g.Definition()

	loaded, err := graph.FromDefinition(def)
	require.NoError(t, err)
	assert.Equal(t, def, loaded.Definition())

	// the id counter resumes past the loaded ids
	id, err := loaded.AddNode(domain.KindHangup, domain.Position{})
	require.NoError(t, err)
	for _, n := range def.Nodes {
		assert.NotEqual(t, n.ID, id)
	}
	assert.Equal(t, "hangup-4", id)
}

func TestFromDefinition_DeletedIDsStayRetired(t *testing.T) {
	g := graph.New()
	_, err := g.AddNode(domain.KindStart, domain.Position{})
	require.NoError(t, err)
	_, err = g.AddNode(domain.KindHangup, domain.Position{})
	require.NoError(t, err)
	last, err := g.AddNode(domain.KindHangup, domain.Position{})
	require.NoError(t, err)
	require.NoError(t, g.DeleteNode(last))

	def := g.Definition()
	assert.Equal(t, 3, def.NextSeq)

	loaded, err := graph.FromDefinition(def)
	require.NoError(t, err)
	id, err := loaded.AddNode(domain.KindHangup, domain.Position{})
	require.NoError(t, err)
	assert.NotEqual(t, last, id)
	assert.Equal(t, "hangup-4", id)
}

func TestFromDefinition_RejectsUnrepresentable(t *testing.T) {
	start := domain.Node{ID: "s", Kind: domain.KindStart, Data: &domain.StartData{Label: "S"}}

	_, err := graph.FromDefinition(domain.FlowDefinition{Nodes: []domain.Node{start, start}})
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	_, err = graph.FromDefinition(domain.FlowDefinition{
		Nodes: []domain.Node{start},
		Edges: []domain.Edge{{Source: "s", Target: "ghost"}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	_, err = graph.FromDefinition(domain.FlowDefinition{Nodes: []domain.Node{
		{ID: "x", Kind: domain.KindMenu, Data: &domain.StartData{Label: "S"}},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}
