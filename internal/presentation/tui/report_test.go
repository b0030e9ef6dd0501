package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aretw0/ivrflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport(t *testing.T) {
	assert.Contains(t, Report("ok.yaml", domain.ValidationResult{}), "**Valid**: no problems found.")

	res := domain.ValidationResult{Violations: []domain.Violation{
		{Code: "unreachable", Severity: domain.SeverityWarning, NodeIDs: []string{"hangup-3"}, Message: "node hangup-3 cannot be reached from start"},
		{Code: "missing_start", Severity: domain.SeverityError, Message: "flow has no start | node"},
	}}
	out := Report("broken.yaml", res)
	assert.True(t, strings.HasPrefix(out, "# broken.yaml\n"))
	assert.Contains(t, out, "**Invalid**: 1 error(s), 1 warning(s).")
	assert.Less(t, strings.Index(out, "## Errors"), strings.Index(out, "## Warnings"))
	assert.Contains(t, out, "| `missing_start` | - | flow has no start \\| node |")
	assert.Contains(t, out, "| `unreachable` | hangup-3 |")

	warnOnly := domain.ValidationResult{Violations: res.Violations[:1]}
	assert.Contains(t, Report("w", warnOnly), "**Valid** with 1 warning(s).")
}

func TestRenderer(t *testing.T) {
	render := NewRenderer()
	out, err := render("# Title\n\nbody")
	require.NoError(t, err)
	assert.Contains(t, out, "body")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	assert.Contains(t, buf.String(), "|_|")
}
