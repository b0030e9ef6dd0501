package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/ivrflow/internal/cli"
	"github.com/aretw0/ivrflow/internal/presentation/tui"
	"github.com/aretw0/ivrflow/pkg/domain"
	"github.com/aretw0/ivrflow/pkg/validator"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errInvalidFlow = errors.New("flow definition has errors")

var validateCmd = &cobra.Command{
	Use:   "validate <definition>...",
	Short: "Check flow definitions for structural problems",
	Long: `Loads each YAML or JSON flow definition and reports every error and warning.
Exits non-zero when any definition has an error-severity violation.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return runValidate(cmd.OutOrStdout(), args, asJSON)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("json", false, "Print the validation results as JSON")
}

type fileResult struct {
	File       string             `json:"file"`
	Valid      bool               `json:"valid"`
	Violations []domain.Violation `json:"violations"`
}

func runValidate(out io.Writer, paths []string, asJSON bool) error {
	var results []fileResult
	failed := false

	for _, path := range paths {
		def, err := cli.LoadDefinition(path)
		if err != nil {
			return err
		}
		res := validator.Validate(def)
		if res.HasErrors() {
			failed = true
		}
		logger.Debug("Definition validated", "file", path, "violations", len(res.Violations))

		violations := res.Violations
		if violations == nil {
			violations = []domain.Violation{}
		}
		results = append(results, fileResult{File: path, Valid: !res.HasErrors(), Violations: violations})
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		var md strings.Builder
		for _, r := range results {
			md.WriteString(tui.Report(r.File, domain.ValidationResult{Violations: r.Violations}))
			md.WriteString("\n")
		}
		text := md.String()
		if isTerminal(out) {
			if rendered, err := tui.NewRenderer()(text); err == nil {
				text = rendered
			}
		}
		fmt.Fprint(out, text)
	}

	if failed {
		return errInvalidFlow
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
