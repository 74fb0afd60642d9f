package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/autopilot/internal/config"
	"github.com/steveyegge/autopilot/internal/control"
	"github.com/steveyegge/autopilot/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status [session-id]",
	Short: "Show session status and budget usage",
	Long: `Display the live status of a running session: state, autonomy level,
iteration count, decision scores, and resource budget usage.

When no session is running, the most recent sessions from the database are
shown instead.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sessionID := ""
		if len(args) > 0 {
			sessionID = args[0]
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Printf("\n%s\n\n", cyan("=== Autopilot Status ==="))

		socket, err := findControlSocket()
		if err != nil {
			showStoredSessions()
			return
		}

		client := control.NewClient(socket)
		resp, err := client.Status(sessionID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to query session: %v\n", err)
			os.Exit(1)
		}
		if !resp.Success {
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s Status failed: %s\n", red("✗"), resp.Message)
			if resp.Error != "" {
				fmt.Printf("  Error: %s\n", resp.Error)
			}
			os.Exit(1)
		}

		printLiveStatus(resp.Data)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func printLiveStatus(data map[string]interface{}) {
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	str := func(key string) string {
		if v, ok := data[key].(string); ok {
			return v
		}
		return ""
	}
	num := func(key string) float64 {
		if v, ok := data[key].(float64); ok {
			return v
		}
		return 0
	}

	stateIcon := green("●")
	if paused, ok := data["paused"].(bool); ok && paused {
		stateIcon = yellow("⏸")
	}

	fmt.Printf("%s Session %s\n", stateIcon, str("session_id"))
	if goal := str("goal"); goal != "" {
		fmt.Printf("  Goal:       %s\n", goal)
	}
	fmt.Printf("  State:      %s\n", str("state"))
	fmt.Printf("  Autonomy:   %s (craziness %.0f)\n", str("autonomy_level"), num("craziness_score"))
	fmt.Printf("  Iteration:  %.0f\n", num("iteration"))
	if reason := str("pause_reason"); reason != "" {
		fmt.Printf("  Paused:     %s\n", reason)
	}
	if failures := num("recent_failures"); failures > 0 {
		fmt.Printf("  Failures:   %.0f recent\n", failures)
	}
	fmt.Printf("\n%s\n", yellow("Budget:"))
	fmt.Printf("  Tokens: %.0f used\n", num("tokens_used"))
	fmt.Printf("  Cost:   $%.4f used\n", num("cost_used"))
	fmt.Printf("\n%s\n", gray("Control: autopilot pause | resume | stop"))
}

// showStoredSessions lists recent sessions from the database when no live
// session is reachable.
func showStoredSessions() {
	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Printf("  %s\n\n", gray("No running session"))

	ctx := context.Background()
	cfg, err := config.Load(configPath)
	if err != nil {
		return
	}
	dbPath := cfg.DatabasePath
	if dbPath == "" {
		dbPath = storage.DefaultConfig().Path
	}
	if _, err := os.Stat(dbPath); err != nil {
		return
	}

	store, err := storage.NewStorage(ctx, &storage.Config{Path: dbPath})
	if err != nil {
		return
	}
	defer store.Close()

	sessions, err := store.ListSessions(ctx, 5)
	if err != nil || len(sessions) == 0 {
		return
	}

	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Printf("%s\n", yellow("Recent sessions:"))
	for _, s := range sessions {
		fmt.Printf("  %s  %-10s  %s\n", s.ID, s.Status, s.Goal)
	}
}
