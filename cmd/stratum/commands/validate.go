package commands

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"stratum/internal/ir"
	"stratum/internal/parser"
)

var (
	validateOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	validateBad  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	validateHint = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// NewValidateCmd builds the "validate" command: an offline, non-serving
// check of a single spec document. It exits 0 on a valid spec and 1
// otherwise, so it composes in CI without standing up the stdio loop.
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path-or-spec-text>",
		Short: "Validate a spec document without serving",
		Long: `Validate parses and validates a spec document the same five stages
the controller runs at "plan" time: YAML decode, version selection,
structural schema validation, typed IR construction, and semantic
reference-integrity checking.

The argument is read as a file path if one exists at that path;
otherwise it is treated as the spec text itself, to support quick
piping from an editor or a generator without a temp file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := resolveSpecArg(args[0])
			if err != nil {
				return err
			}

			schemas, err := ir.NewSchemaRegistry()
			if err != nil {
				return fmt.Errorf("failed to load spec schemas: %w", err)
			}

			if _, err := parser.New(schemas).ParseAndValidate(raw); err != nil {
				fmt.Fprintln(os.Stderr, validateBad.Render("✗ invalid"))
				fmt.Fprintln(os.Stderr, err.Error())
				if s := suggestionOf(err); s != "" {
					fmt.Fprintln(os.Stderr, validateHint.Render("  hint: "+s))
				}
				os.Exit(1)
			}

			fmt.Println(validateOK.Render("✓ valid"))
			return nil
		},
	}
	return cmd
}

// resolveSpecArg implements the path-or-inline-text heuristic: a
// readable file wins, anything else is the spec text verbatim.
func resolveSpecArg(arg string) ([]byte, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		data, err := os.ReadFile(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", arg, err)
		}
		return data, nil
	}
	return []byte(arg), nil
}

func suggestionOf(err error) string {
	if ve, ok := err.(*ir.ValidationErr); ok {
		return ve.Suggestion
	}
	return ""
}
