package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/ivrflow/internal/presentation/graph"
	"github.com/aretw0/ivrflow/pkg/domain"
	"github.com/aretw0/ivrflow/pkg/validator"
	"github.com/stretchr/testify/assert"
)

func node(id string, kind domain.Kind, label string) domain.Node {
	n := domain.Node{ID: id, Kind: kind}
	switch kind {
	case domain.KindStart:
		n.Data = &domain.StartData{Label: label}
	case domain.KindMenu:
		n.Data = &domain.MenuData{Label: label, Options: map[string]string{"1": "Sales"}}
	case domain.KindConditional:
		n.Data = &domain.ConditionalData{Label: label}
	case domain.KindTransfer:
		n.Data = &domain.TransferData{Label: label}
	case domain.KindHangup:
		n.Data = &domain.HangupData{Label: label}
	default:
		n.Data = &domain.PlayAudioData{Label: label}
	}
	return n
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		def      domain.FlowDefinition
		contains []string
	}{
		{
			name: "Shapes",
			def: domain.FlowDefinition{Nodes: []domain.Node{
				node("start-1", domain.KindStart, "Start"),
				node("menu-2", domain.KindMenu, "Main menu"),
				node("conditional-3", domain.KindConditional, "Adult?"),
				node("transfer-4", domain.KindTransfer, "Agent"),
				node("hangup-5", domain.KindHangup, "Bye"),
				node("play_audio-6", domain.KindPlayAudio, "Welcome"),
			}},
			contains: []string{
				`start_1(("Start"))`,
				`menu_2[/"Main menu"/]`,
				`conditional_3{"Adult?"}`,
				`transfer_4[["Agent"]]`,
				`hangup_5(["Bye"])`,
				`play_audio_6["Welcome"]`,
			},
		},
		{
			name: "Handle Labels",
			def: domain.FlowDefinition{
				Nodes: []domain.Node{node("menu-1", domain.KindMenu, "M"), node("hangup-2", domain.KindHangup, "H")},
				Edges: []domain.Edge{
					{Source: "menu-1", SourceHandle: "1", Target: "hangup-2"},
					{Source: "menu-1", Target: "hangup-2"},
				},
			},
			contains: []string{
				`menu_1 -- "1" --> hangup_2`,
				`menu_1 --> hangup_2`,
			},
		},
		{
			name: "Label Escaping",
			def: domain.FlowDefinition{Nodes: []domain.Node{
				node("play_audio-1", domain.KindPlayAudio, `Say "hi"`),
			}},
			contains: []string{`play_audio_1["Say 'hi'"]`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.def, nil)
			assert.True(t, strings.HasPrefix(got, "graph TD\n"))
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			assert.NotContains(t, got, "classDef")
		})
	}
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	def := domain.FlowDefinition{
		Nodes: []domain.Node{
			node("start-1", domain.KindStart, "Start"),
			node("hangup-2", domain.KindHangup, "Orphan"),
		},
	}
	res := validator.Validate(def)

	got := graph.GenerateMermaid(def, &graph.Overlay{Result: res, Selected: "start-1"})
	assert.Contains(t, got, "class start_1 error;")
	assert.Contains(t, got, "class hangup_2 warning;")
	assert.Contains(t, got, "class start_1 selected;")
}
