package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/autopilot/internal/control"
)

var pauseCmd = &cobra.Command{
	Use:   "pause [session-id]",
	Short: "Pause a running session",
	Long: `Pause a running session gracefully, preserving its state.

The orchestrator finishes the task in flight, snapshots the state machine,
and idles until 'autopilot resume'. The session ID can be omitted when only
one session is running.

Use cases:
  - Cost budget approaching limit
  - Review a risky decision before it executes
  - Step away without losing session progress`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sessionID := ""
		if len(args) > 0 {
			sessionID = args[0]
		}
		reason, _ := cmd.Flags().GetString("reason")

		socket, err := findControlSocket()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintf(os.Stderr, "Hint: Is a session running? Try 'autopilot status' to check.\n")
			os.Exit(1)
		}

		client := control.NewClient(socket)
		resp, err := client.Pause(sessionID, reason)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to send pause command: %v\n", err)
			os.Exit(1)
		}

		if !resp.Success {
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s Pause failed: %s\n", red("✗"), resp.Message)
			if resp.Error != "" {
				fmt.Printf("  Error: %s\n", resp.Error)
			}
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		target := sessionID
		if target == "" {
			if id, ok := resp.Data["session_id"].(string); ok {
				target = id
			}
		}
		fmt.Printf("%s Session paused: %s\n", green("✓"), target)
		fmt.Printf("\nTo resume later: autopilot resume %s\n", target)
	},
}

func init() {
	pauseCmd.Flags().StringP("reason", "r", "", "Reason for pausing (optional)")
	rootCmd.AddCommand(pauseCmd)
}
