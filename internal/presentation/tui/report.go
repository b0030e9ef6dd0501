package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/ivrflow/pkg/domain"
)

// Report formats a validation result as markdown, errors first.
func Report(name string, res domain.ValidationResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", name)

	errs, warns := res.Errors(), res.Warnings()
	switch {
	case res.Valid():
		sb.WriteString("**Valid**: no problems found.\n")
		return sb.String()
	case len(errs) == 0:
		fmt.Fprintf(&sb, "**Valid** with %d warning(s).\n\n", len(warns))
	default:
		fmt.Fprintf(&sb, "**Invalid**: %d error(s), %d warning(s).\n\n", len(errs), len(warns))
	}

	section(&sb, "Errors", errs)
	section(&sb, "Warnings", warns)
	return sb.String()
}

func section(sb *strings.Builder, title string, vs []domain.Violation) {
	if len(vs) == 0 {
		return
	}
	fmt.Fprintf(sb, "## %s\n\n", title)
	sb.WriteString("| Code | Nodes | Message |\n|---|---|---|\n")
	for _, v := range vs {
		nodes := strings.Join(v.NodeIDs, ", ")
		if nodes == "" {
			nodes = "-"
		}
		fmt.Fprintf(sb, "| `%s` | %s | %s |\n", v.Code, nodes, strings.ReplaceAll(v.Message, "|", "\\|"))
	}
	sb.WriteString("\n")
}
