package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/ivrflow/pkg/domain"
)

// Overlay marks nodes flagged by validation on the rendered graph.
type Overlay struct {
	Result   domain.ValidationResult
	Selected string
}

// GenerateMermaid produces a Mermaid flowchart from a flow definition.
// Node shapes follow the node kind:
// - Start: ((Circle))
// - Menu, Survey question: [/Parallelogram/] (caller input)
// - Conditional: {Rhombus}
// - Transfer: [[Subroutine]]
// - Hangup, Opt-out: ([Stadium])
// - Default: [Rectangle]
// Edges leaving a named handle are labelled with it.
func GenerateMermaid(def domain.FlowDefinition, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range def.Nodes {
		safeID := sanitizeMermaidID(node.ID)
		opener, closer := shape(node.Kind)

		label := node.Label()
		if label == "" {
			label = node.ID
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, escape(label), closer)
	}

	for _, e := range def.Edges {
		from, to := sanitizeMermaidID(e.Source), sanitizeMermaidID(e.Target)
		if e.SourceHandle == "" {
			fmt.Fprintf(&sb, "    %s --> %s\n", from, to)
			continue
		}
		fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", from, escape(e.SourceHandle), to)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef error fill:#ffcdd2,stroke:#c62828,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef warning fill:#fff9c4,stroke:#f9a825,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef selected stroke:#1565c0,stroke-width:4px;\n")

		// errors win over warnings on the same node
		severity := make(map[string]domain.Severity)
		var order []string
		for _, v := range overlay.Result.Violations {
			for _, id := range v.NodeIDs {
				prev, seen := severity[id]
				if !seen {
					order = append(order, id)
				}
				if !seen || prev == domain.SeverityWarning {
					severity[id] = v.Severity
				}
			}
		}
		for _, id := range order {
			fmt.Fprintf(&sb, "    class %s %s;\n", sanitizeMermaidID(id), severity[id])
		}
		if overlay.Selected != "" {
			fmt.Fprintf(&sb, "    class %s selected;\n", sanitizeMermaidID(overlay.Selected))
		}
	}

	return sb.String()
}

func shape(kind domain.Kind) (string, string) {
	switch kind {
	case domain.KindStart:
		return "((", "))"
	case domain.KindMenu, domain.KindSurveyQuestion:
		return "[/", "/]"
	case domain.KindConditional:
		return "{", "}"
	case domain.KindTransfer:
		return "[[", "]]"
	case domain.KindHangup, domain.KindOptOut:
		return "([", "])"
	default:
		return "[", "]"
	}
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
