package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/autopilot/internal/control"
)

var stopCmd = &cobra.Command{
	Use:   "stop [session-id]",
	Short: "Stop a running session",
	Long: `Stop a session permanently.

The orchestrator terminates the loop, records a final state snapshot, and
marks the session finished. Unlike pause, a stopped session cannot be
resumed. The session ID can be omitted when only one session is running.`,
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
			os.Exit(1)
		}

		client := control.NewClient(socket)
		resp, err := client.Stop(sessionID, reason)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to send stop command: %v\n", err)
			os.Exit(1)
		}

		if !resp.Success {
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s Stop failed: %s\n", red("✗"), resp.Message)
			if resp.Error != "" {
				fmt.Printf("  Error: %s\n", resp.Error)
			}
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Session stopped\n", green("✓"))
	},
}

func init() {
	stopCmd.Flags().StringP("reason", "r", "", "Reason for stopping (optional)")
	rootCmd.AddCommand(stopCmd)
}
