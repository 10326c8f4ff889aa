package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"stratum/internal/clistyle"
	"stratum/internal/protocol"
)

// NewAuditCmd builds the "audit" command: a read-only client of a
// running controller's "audit" tool. It never mutates flow state — it
// issues the same audit request the protocol front-end answers, over
// whatever stream the controller is listening on, and optionally
// refreshes on an interval with --watch.
func NewAuditCmd() *cobra.Command {
	var (
		watch    bool
		interval time.Duration
		inPath   string
		outPath  string
	)

	cmd := &cobra.Command{
		Use:   "audit <flow-id> --in <requests-fifo> --out <responses-fifo>",
		Short: "Inspect a flow's step trace",
		Long: `Audit sends an "audit" request for flow-id to a running controller and
prints the step trace it returns. With --watch, it opens a terminal UI
that re-issues the request on an interval until interrupted.

--in and --out name the named pipes (or plain files, for a recorded
session) the controller's stdin and stdout are connected to — audit
never talks to the controller's process directly, only over the same
line-delimited JSON channel the executor uses.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if inPath == "" || outPath == "" {
				return fmt.Errorf("both --in and --out are required")
			}
			flowID := args[0]

			w, err := os.OpenFile(inPath, os.O_WRONLY, 0)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", inPath, err)
			}
			r, err := os.Open(outPath)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", outPath, err)
			}
			transport := protocol.NewTransport(r, w)

			if !watch {
				resp, err := fetchAudit(transport, flowID)
				if err != nil {
					return err
				}
				printAudit(resp)
				return nil
			}

			model := newAuditModel(transport, flowID, interval)
			p := tea.NewProgram(model)
			_, err = p.Run()
			return err
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Open a live-refreshing terminal UI")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Refresh interval for --watch")
	cmd.Flags().StringVar(&inPath, "in", "", "Path the controller reads requests from (required)")
	cmd.Flags().StringVar(&outPath, "out", "", "Path the controller writes responses to (required)")

	return cmd
}

func fetchAudit(t *protocol.Transport, flowID string) (*protocol.AuditResponse, error) {
	params, err := json.Marshal(protocol.AuditParams{FlowID: flowID})
	if err != nil {
		return nil, err
	}
	if err := t.WriteLine(protocol.Request{Tool: "audit", Params: params}); err != nil {
		return nil, fmt.Errorf("failed to send audit request: %w", err)
	}

	var resp protocol.AuditResponse
	if err := t.ReadLine(&resp); err != nil {
		return nil, fmt.Errorf("failed to read audit response: %w", err)
	}
	return &resp, nil
}

var (
	auditHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	auditRow    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)

func printAudit(resp *protocol.AuditResponse) {
	fmt.Println(auditHeader.Render(fmt.Sprintf("flow %s — %d step(s)", resp.FlowID, len(resp.Trace))))
	// Narrow terminals (and piped/recorded sessions, which fall back to 80)
	// get the function name dropped rather than wrapped mid-row.
	showFunction := clistyle.Width() >= 100
	for _, t := range resp.Trace {
		if showFunction {
			fmt.Println(auditRow.Render(fmt.Sprintf("  %-20s %-20s attempt=%d outcome=%s", t.StepID, t.Function, t.Attempts, t.Outcome)))
		} else {
			fmt.Println(auditRow.Render(fmt.Sprintf("  %-20s attempt=%d outcome=%s", t.StepID, t.Attempts, t.Outcome)))
		}
	}
}
