// Command autopilot runs bounded autonomous work sessions against a
// requirement backlog, with a control socket for pausing, resuming, and
// stopping from another terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "autopilot",
	Short: "Autonomous session orchestrator",
	Long: `Autopilot drives work sessions through a plan/execute/decide loop
bounded by an autonomy level and a resource budget. Every action is scored
before execution; risky actions pause the session for review depending on
the autonomy level.

Start a session with 'autopilot run', then control it from another
terminal with 'autopilot pause', 'autopilot resume', and 'autopilot stop'.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".autopilot/config.yaml", "Path to config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
