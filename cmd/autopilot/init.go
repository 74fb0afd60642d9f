package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/autopilot/internal/storage"
)

const defaultConfigYAML = `# Autopilot session configuration
autonomy_level: crazy

resource_budget:
  max_tokens: 100000
  max_cost_usd: 5.0
  max_duration_minutes: 10

# decision_threshold: 6.0
# unattended: false
`

const sampleBacklogYAML = `# Requirement backlog for 'autopilot run --backlog backlog.yaml'
requirements:
  - id: r1
    description: Describe the first piece of work here
    priority: high
  - id: r2
    description: Describe a follow-up that depends on r1
    priority: medium
    dependencies: [r1]
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize autopilot in the current directory",
	Long: `Initialize autopilot by creating a .autopilot/ directory.

This creates:
  - .autopilot/ directory
  - .autopilot/config.yaml (session defaults)
  - .autopilot/autopilot.db (SQLite database)
  - backlog.yaml (sample requirement backlog, unless one exists)

Example:
  cd ~/myproject
  autopilot init
  autopilot run --backlog backlog.yaml --goal "Ship the exporter"`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := initProject(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func initProject() error {
	dir := ".autopilot"
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	cfgPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := os.WriteFile(cfgPath, []byte(defaultConfigYAML), 0644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	// Opening the database creates it and applies the schema.
	ctx := context.Background()
	dbPath := filepath.Join(dir, "autopilot.db")
	store, err := storage.NewStorage(ctx, &storage.Config{Path: dbPath})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	_ = store.Close()

	if _, err := os.Stat("backlog.yaml"); os.IsNotExist(err) {
		if err := os.WriteFile("backlog.yaml", []byte(sampleBacklogYAML), 0644); err != nil {
			return fmt.Errorf("failed to write sample backlog: %w", err)
		}
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s Initialized autopilot\n", green("✓"))
	fmt.Printf("  Config:   %s\n", cfgPath)
	fmt.Printf("  Database: %s\n", dbPath)
	fmt.Printf("\nNext: edit backlog.yaml, then 'autopilot run --backlog backlog.yaml'\n")
	return nil
}
