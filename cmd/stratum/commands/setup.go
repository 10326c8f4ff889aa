package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"stratum/internal/clistyle"
)

const (
	beginMarker = "<!-- stratum:begin -->"
	endMarker   = "<!-- stratum:end -->"
)

// agentFileCandidates is the search order for the project's
// agent-instruction file. The first one found is the one setup edits.
var agentFileCandidates = []string{"AGENTS.md", "CLAUDE.md"}

// setupConfig is the shape of .stratum/config.yaml.
type setupConfig struct {
	ServerBinary string `yaml:"server_binary"`
}

// NewSetupCmd builds the "setup" command. It is the CLI shell only: it
// writes .stratum/config.yaml registering the server binary path and
// appends an idempotent instruction block to the project's agent file.
// It installs no skills and performs no markdown plumbing beyond that one
// block — everything else about onboarding an executor stays out of
// scope.
func NewSetupCmd() *cobra.Command {
	var (
		binaryPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Write Stratum's project config and agent-instruction block",
		Long: `Setup writes .stratum/config.yaml with the server binary path and
appends a short, idempotent block to AGENTS.md or CLAUDE.md (whichever
is found first) describing how to talk to the controller. Running it
again is a no-op if both are already in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(clistyle.Logo())

			if binaryPath == "" {
				exe, err := os.Executable()
				if err != nil {
					return fmt.Errorf("failed to determine the stratum binary path: %w", err)
				}
				binaryPath = exe
			}

			configWritten, err := writeConfig(binaryPath)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}

			agentFile, blockWritten, err := writeAgentBlock(yes)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}

			if !configWritten && !blockWritten {
				fmt.Println("already configured")
				return nil
			}
			if configWritten {
				fmt.Println("wrote .stratum/config.yaml")
			}
			if blockWritten {
				fmt.Printf("appended the stratum block to %s\n", agentFile)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&binaryPath, "binary", "", "Server binary path to register (default: the running executable)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the append confirmation prompt")

	return cmd
}

func writeConfig(binaryPath string) (bool, error) {
	const dir = ".stratum"
	const path = dir + "/config.yaml"

	if existing, err := os.ReadFile(path); err == nil {
		var cfg setupConfig
		if yaml.Unmarshal(existing, &cfg) == nil && cfg.ServerBinary == binaryPath {
			return false, nil
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	data, err := yaml.Marshal(setupConfig{ServerBinary: binaryPath})
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

func writeAgentBlock(skipConfirm bool) (string, bool, error) {
	target := ""
	for _, candidate := range agentFileCandidates {
		if _, err := os.Stat(candidate); err == nil {
			target = candidate
			break
		}
	}
	if target == "" {
		target = agentFileCandidates[0]
	}

	existing, _ := os.ReadFile(target)
	content := string(existing)

	if strings.Contains(content, beginMarker) {
		return target, false, nil
	}

	if !skipConfirm && len(existing) > 0 {
		var confirmed bool
		confirm := huh.NewConfirm().
			Title(fmt.Sprintf("Append the stratum block to %s?", target)).
			Affirmative("Append").
			Negative("Cancel").
			Value(&confirmed)
		form := huh.NewForm(huh.NewGroup(confirm)).WithTheme(clistyle.Theme())
		if err := form.Run(); err != nil {
			return target, false, err
		}
		if !confirmed {
			return target, false, nil
		}
	}

	block := "\n" + beginMarker + "\n" + agentBlockBody() + "\n" + endMarker + "\n"
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil && filepath.Dir(target) != "." {
		return target, false, fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
	}
	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return target, false, fmt.Errorf("failed to open %s: %w", target, err)
	}
	defer f.Close()
	if _, err := f.WriteString(block); err != nil {
		return target, false, fmt.Errorf("failed to append to %s: %w", target, err)
	}
	return target, true, nil
}

func agentBlockBody() string {
	return `## Stratum

This project is driven by a Stratum controller (run "stratum serve"). It
validates flow specs, schedules steps, and checks each step's result
against its declared contract and postconditions — it never executes a
step itself. Call "stratum validate <spec>" to check a spec offline
before running it.`
}
