package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/autopilot/internal/config"
	"github.com/steveyegge/autopilot/internal/control"
	"github.com/steveyegge/autopilot/internal/planner"
	"github.com/steveyegge/autopilot/internal/session"
	"github.com/steveyegge/autopilot/internal/state"
	"github.com/steveyegge/autopilot/internal/storage"
	"github.com/steveyegge/autopilot/internal/types"
)

// pausePollInterval is how often a paused session checks for a resume.
const pausePollInterval = 500 * time.Millisecond

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an autonomous session",
	Long: `Start an autonomous session over a requirement backlog.

The session plans a batch of tasks per iteration, scores each task before
executing it, and loops until the backlog is done, the resource budget is
exhausted, or the autonomy level demands a pause.

The backlog file is YAML:

  requirements:
    - id: r1
      description: Implement the CSV exporter
      priority: high
    - id: r2
      description: Write tests for the exporter
      priority: medium
      dependencies: [r1]

Each task runs the --exec command with AUTOPILOT_TASK_ID,
AUTOPILOT_TASK_SUBJECT, and AUTOPILOT_TASK_DESCRIPTION in its
environment. Without --exec, tasks are planned and scored but marked
complete without running anything (dry run).`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runSession(cmd); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	runCmd.Flags().String("goal", "", "Session objective (overrides config)")
	runCmd.Flags().String("level", "", "Autonomy level: lunatic, insane, crazy, wild, bold, timid")
	runCmd.Flags().String("backlog", "", "Path to the requirement backlog YAML file")
	runCmd.Flags().String("exec", "", "Shell command to run per task")
	runCmd.Flags().Int64("max-tokens", 0, "Token budget (overrides config)")
	runCmd.Flags().Float64("max-cost", 0, "Cost budget in USD (overrides config)")
	runCmd.Flags().String("resume", "", "Session ID to restore from its last snapshot instead of starting fresh")
	rootCmd.AddCommand(runCmd)
}

func runSession(cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	dbPath := cfg.DatabasePath
	if dbPath == "" {
		dbPath = storage.DefaultConfig().Path
	}
	store, err := storage.NewStorage(ctx, &storage.Config{Path: dbPath})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	resumeID, _ := cmd.Flags().GetString("resume")
	execCommand, _ := cmd.Flags().GetString("exec")
	orch, err := session.New(session.Config{
		SessionID:         resumeID,
		Goal:              cfg.Goal,
		AutonomyLevel:     cfg.Level(),
		Budget:            cfg.Budget(),
		DecisionThreshold: cfg.DecisionThreshold,
		Weights:           cfg.DecisionWeights(),
		Store:             store,
		Executor:          buildExecutor(execCommand),
		ExecCommand:       execCommand,
	})
	if err != nil {
		return err
	}

	registry := session.NewRegistry(session.DefaultMaxSessions)
	if err := registry.Add(orch); err != nil {
		return err
	}
	defer registry.Remove(orch.SessionID())

	server, err := control.NewServer(socketPath(cfg), registry.HandleCommand)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: control socket unavailable: %v\n", err)
	} else if err := server.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: control socket unavailable: %v\n", err)
	} else {
		defer server.Stop()
	}

	if resumeID != "" {
		if err := orch.Restore(ctx); err != nil {
			return err
		}
		if current, err := orch.State(); err == nil && current == state.StatePaused {
			if err := orch.Resume(ctx); err != nil {
				return err
			}
		}
	} else if err := orch.Start(ctx); err != nil {
		return err
	}

	backlogPath, _ := cmd.Flags().GetString("backlog")
	if backlogPath != "" {
		n, err := seedBacklog(ctx, orch, backlogPath)
		if err != nil {
			return err
		}
		fmt.Printf("Loaded %d requirement(s) from %s\n", n, backlogPath)
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n", cyan("=== Autopilot Session ==="))
	fmt.Printf("  Session:  %s\n", orch.SessionID())
	fmt.Printf("  Autonomy: %s (craziness %d)\n", cfg.Level(), cfg.Level().CrazinessScore())
	fmt.Printf("  Control:  %s\n", socketPath(cfg))
	fmt.Println()

	// SIGINT pauses first so progress survives; a second SIGINT stops.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupt received, pausing session (interrupt again to stop)")
		_ = orch.Pause(ctx, "operator interrupt")
		<-sigCh
		fmt.Println("\nStopping session")
		_ = orch.Stop(ctx, "operator interrupt")
		cancel()
	}()

	if err := cycleLoop(ctx, orch); err != nil && ctx.Err() == nil {
		return err
	}
	return printSummary(orch)
}

// cycleLoop drives the session, idling while paused so control commands
// can resume it.
func cycleLoop(ctx context.Context, orch *session.Orchestrator) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		done, err := orch.RunCycle(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		current, err := orch.State()
		if err != nil {
			return err
		}
		if current == state.StatePaused {
			time.Sleep(pausePollInterval)
		}
		if current.IsTerminal() {
			return nil
		}
	}
}

func applyRunFlags(cmd *cobra.Command, cfg *config.SessionConfig) {
	if goal, _ := cmd.Flags().GetString("goal"); goal != "" {
		cfg.Goal = goal
	}
	if level, _ := cmd.Flags().GetString("level"); level != "" {
		cfg.AutonomyLevel = level
	}
	if maxTokens, _ := cmd.Flags().GetInt64("max-tokens"); maxTokens > 0 {
		cfg.ResourceBudget.MaxTokens = maxTokens
	}
	if maxCost, _ := cmd.Flags().GetFloat64("max-cost"); maxCost > 0 {
		cfg.ResourceBudget.MaxCostUSD = maxCost
	}
}

// buildExecutor returns a shell executor when --exec is set, otherwise a
// dry-run executor that succeeds without doing anything.
func buildExecutor(execCommand string) session.TaskExecutor {
	if execCommand == "" {
		return session.ExecutorFunc(func(ctx context.Context, task planner.Task) (*session.TaskResult, error) {
			fmt.Printf("  [dry-run] %s\n", task.Subject)
			return &session.TaskResult{Success: true}, nil
		})
	}

	return session.ExecutorFunc(func(ctx context.Context, task planner.Task) (*session.TaskResult, error) {
		fmt.Printf("  [exec] %s\n", task.Subject)
		c := exec.CommandContext(ctx, "sh", "-c", execCommand)
		c.Env = append(os.Environ(),
			"AUTOPILOT_TASK_ID="+task.RequirementID,
			"AUTOPILOT_TASK_SUBJECT="+task.Subject,
			"AUTOPILOT_TASK_DESCRIPTION="+task.Description,
		)
		output, err := c.CombinedOutput()
		result := &session.TaskResult{
			Success: err == nil,
			Output:  string(output),
		}
		if err != nil {
			result.Error = err.Error()
		}
		return result, nil
	})
}

// backlogFile is the YAML shape accepted by --backlog.
type backlogFile struct {
	Requirements []struct {
		ID           string   `yaml:"id"`
		Description  string   `yaml:"description"`
		Priority     string   `yaml:"priority"`
		Dependencies []string `yaml:"dependencies"`
	} `yaml:"requirements"`
}

func seedBacklog(ctx context.Context, orch *session.Orchestrator, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read backlog: %w", err)
	}
	var backlog backlogFile
	if err := yaml.Unmarshal(data, &backlog); err != nil {
		return 0, fmt.Errorf("failed to parse backlog: %w", err)
	}

	for i, r := range backlog.Requirements {
		priority := types.Priority(r.Priority)
		if r.Priority == "" {
			priority = types.PriorityMedium
		}
		req := &types.Requirement{
			ID:           r.ID,
			Description:  r.Description,
			Priority:     priority,
			Dependencies: r.Dependencies,
		}
		if req.ID == "" {
			req.ID = fmt.Sprintf("req-%d", i+1)
		}
		if err := orch.AddRequirement(ctx, req); err != nil {
			return 0, fmt.Errorf("failed to add requirement %s: %w", req.ID, err)
		}
	}
	return len(backlog.Requirements), nil
}

func printSummary(orch *session.Orchestrator) error {
	status, err := orch.Status()
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	icon := green("✓")
	switch status.State {
	case state.StateFailed:
		icon = red("✗")
	case state.StatePaused:
		icon = yellow("⏸")
	}

	fmt.Printf("\n%s Session %s: %s\n", icon, status.SessionID, status.State)
	if status.PauseReason != "" {
		fmt.Printf("  Pause reason: %s\n", status.PauseReason)
	}
	fmt.Printf("  Iterations: %d\n", status.Iteration)
	fmt.Printf("  Tokens:     %d / %d\n", status.Usage.TokensUsed, status.Usage.Budget.MaxTokens)
	fmt.Printf("  Cost:       $%.4f / $%.2f\n", status.Usage.CostUsed, status.Usage.Budget.MaxCostUSD)
	if len(status.DecisionScores) > 0 {
		fmt.Printf("  Decisions:  %d scored (last %.2f)\n",
			len(status.DecisionScores), status.DecisionScores[len(status.DecisionScores)-1])
	}
	return nil
}
