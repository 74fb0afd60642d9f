package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/autopilot/internal/control"
)

var resumeCmd = &cobra.Command{
	Use:   "resume [session-id]",
	Short: "Resume a paused session",
	Long: `Resume a paused session from where it left off.

The orchestrator returns the session to the state it was paused from and
continues the plan/execute/decide loop. The session ID can be omitted when
only one session is running.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sessionID := ""
		if len(args) > 0 {
			sessionID = args[0]
		}

		socket, err := findControlSocket()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintf(os.Stderr, "Hint: Is a session running? Try 'autopilot status' to check.\n")
			os.Exit(1)
		}

		client := control.NewClient(socket)
		resp, err := client.Resume(sessionID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to send resume command: %v\n", err)
			os.Exit(1)
		}

		if !resp.Success {
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s Resume failed: %s\n", red("✗"), resp.Message)
			if resp.Error != "" {
				fmt.Printf("  Error: %s\n", resp.Error)
			}
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Session resumed\n", green("✓"))
		if resumedState, ok := resp.Data["state"].(string); ok {
			fmt.Printf("  Continuing in state: %s\n", resumedState)
		}
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}
