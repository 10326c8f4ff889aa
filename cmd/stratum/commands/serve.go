package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stratum/internal/diag"
	"stratum/internal/ir"
	"stratum/internal/protocol"
)

// ServeErr wraps a failure from the stdio protocol loop itself —
// transport or protocol-level, as opposed to a CLI usage error. main
// uses errors.As to give this class its own exit code.
type ServeErr struct {
	Err error
}

func (e *ServeErr) Error() string { return e.Err.Error() }
func (e *ServeErr) Unwrap() error { return e.Err }

// RunServe runs the controller loop over stdin/stdout until the
// transport closes or fails. It is shared by the "serve" subcommand and
// the root command's default invocation.
func RunServe(quiet bool) error {
	schemas, err := ir.NewSchemaRegistry()
	if err != nil {
		return fmt.Errorf("failed to load spec schemas: %w", err)
	}

	var emitter *diag.Emitter
	if !quiet {
		emitter = diag.NewStderrEmitter()
	}

	server := protocol.NewServer(schemas, emitter)
	transport := protocol.NewTransport(os.Stdin, os.Stdout)
	if err := protocol.Serve(transport, server); err != nil {
		return &ServeErr{Err: err}
	}
	return nil
}

// NewServeCmd builds the "serve" command: the default stdio controller
// loop. It never binds a network port — the protocol is a single
// bidirectional stream, normally the executor's child-process stdio.
func NewServeCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the controller over stdin/stdout",
		Long: `Run the Stratum controller, reading newline-delimited JSON requests
from stdin and writing newline-delimited JSON responses to stdout.

The controller is purely reactive: it never writes to stdout except in
direct response to a request it just read. Diagnostic events are written
separately, as NDJSON, to stderr — unless --quiet is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunServe(quiet)
		},
	}

	cmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress NDJSON diagnostics on stderr")

	return cmd
}
