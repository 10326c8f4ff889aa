package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stratum/cmd/stratum/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "stratum",
	Short: "Stratum MCP controller",
	Long: `Stratum is a typed-contract enforcement plane for multi-step agent
flows, exposed over a bidirectional JSON stdio protocol. It validates flow
specs, schedules steps by dependency order, checks declared contracts and
postconditions against every step result, and never invokes a model or
tool itself — it only tells a connected executor what to run next.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	// With no subcommand, stratum serves: the stdio protocol loop is the
	// default invocation, not a help screen.
	RunE: func(cmd *cobra.Command, args []string) error {
		return commands.RunServe(false)
	},
}

func init() {
	rootCmd.SetVersionTemplate("stratum version {{.Version}}\n")

	rootCmd.AddCommand(commands.NewServeCmd())
	rootCmd.AddCommand(commands.NewValidateCmd())
	rootCmd.AddCommand(commands.NewSetupCmd())
	rootCmd.AddCommand(commands.NewAuditCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var serveErr *commands.ServeErr
		if errors.As(err, &serveErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
