package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/autopilot/internal/config"
	"github.com/steveyegge/autopilot/internal/events"
	"github.com/steveyegge/autopilot/internal/storage"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List past sessions and their event feeds",
	Long: `List sessions recorded in the database, most recent first.

With --events, show the event feed for a session instead:

  autopilot sessions --events <session-id>`,
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		eventsFor, _ := cmd.Flags().GetString("events")

		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		if eventsFor != "" {
			showEvents(ctx, store, eventsFor, limit)
			return
		}

		sessions, err := store.ListSessions(ctx, limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list sessions: %v\n", err)
			os.Exit(1)
		}

		if len(sessions) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Printf("%s\n", gray("No sessions recorded"))
			return
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Printf("%s\n", cyan("Sessions:"))
		for _, s := range sessions {
			fmt.Printf("  %s  %-10s  %-8s  %s\n",
				s.CreatedAt.Format("2006-01-02 15:04"), s.Status, s.AutonomyLevel, s.ID)
			if s.Goal != "" {
				fmt.Printf("      %s\n", s.Goal)
			}
		}
	},
}

func init() {
	sessionsCmd.Flags().Int("limit", 20, "Maximum entries to show")
	sessionsCmd.Flags().String("events", "", "Show the event feed for this session ID")
	rootCmd.AddCommand(sessionsCmd)
}

func openStore(ctx context.Context) (storage.Storage, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	dbPath := cfg.DatabasePath
	if dbPath == "" {
		dbPath = storage.DefaultConfig().Path
	}
	return storage.NewStorage(ctx, &storage.Config{Path: dbPath})
}

func showEvents(ctx context.Context, store storage.Storage, sessionID string, limit int) {
	feed, err := store.GetSessionEvents(ctx, sessionID, limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load events: %v\n", err)
		os.Exit(1)
	}
	if len(feed) == 0 {
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("%s\n", gray("No events for this session"))
		return
	}

	for _, e := range feed {
		fmt.Printf("%s  %s%-20s  %s\n",
			e.Timestamp.Format("15:04:05"), severityIcon(e.Severity), e.Type, e.Message)
	}
}

func severityIcon(severity events.EventSeverity) string {
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	switch severity {
	case events.SeverityWarning:
		return yellow("! ")
	case events.SeverityError, events.SeverityCritical:
		return red("✗ ")
	default:
		return "  "
	}
}
