package cost

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/steveyegge/autopilot/internal/types"
)

func newTestTracker(t *testing.T, cfg Config) *Tracker {
	t.Helper()
	tracker, err := NewTracker(cfg)
	if err != nil {
		t.Fatalf("NewTracker() error = %v", err)
	}
	return tracker
}

func TestNewTrackerValidation(t *testing.T) {
	if _, err := NewTracker(Config{AlertThreshold: 1.5}); err == nil {
		t.Error("expected error for alert threshold > 1")
	}
	if _, err := NewTracker(Config{
		Budget:         types.ResourceBudget{MaxTokens: -1, MaxCostUSD: 1, MaxDurationMinutes: 1},
		AlertThreshold: 0.8,
	}); err == nil {
		t.Error("expected error for negative budget")
	}

	tracker := newTestTracker(t, Config{})
	if tracker.config.Budget != types.DefaultResourceBudget() {
		t.Error("zero budget should default")
	}
}

func TestRecordUsageAccumulates(t *testing.T) {
	tracker := newTestTracker(t, Config{
		Budget:          types.ResourceBudget{MaxTokens: 1000, MaxCostUSD: 10, MaxDurationMinutes: 60},
		InputTokenCost:  3.0,
		OutputTokenCost: 15.0,
	})

	tracker.RecordUsage(100, 50)
	tracker.RecordUsage(200, 100)

	stats := tracker.GetStats()
	if stats.TokensUsed != 450 {
		t.Errorf("TokensUsed = %d, want 450", stats.TokensUsed)
	}
	// 300 input at $3/M plus 150 output at $15/M.
	wantCost := 300*3.0/1e6 + 150*15.0/1e6
	if stats.CostUsed != wantCost {
		t.Errorf("CostUsed = %v, want %v", stats.CostUsed, wantCost)
	}
}

func TestBudgetStatusBands(t *testing.T) {
	tracker := newTestTracker(t, Config{
		Budget:         types.ResourceBudget{MaxTokens: 1000, MaxCostUSD: 100, MaxDurationMinutes: 1000},
		AlertThreshold: 0.8,
	})

	if got := tracker.Status(); got != BudgetHealthy {
		t.Errorf("Status = %s, want HEALTHY", got)
	}

	if got := tracker.RecordUsage(800, 0); got != BudgetWarning {
		t.Errorf("Status = %s, want WARNING at 80%%", got)
	}

	if got := tracker.RecordUsage(200, 0); got != BudgetExceeded {
		t.Errorf("Status = %s, want EXCEEDED at limit", got)
	}
}

func TestCanProceedNamesDimension(t *testing.T) {
	tracker := newTestTracker(t, Config{
		Budget: types.ResourceBudget{MaxTokens: 100, MaxCostUSD: 100, MaxDurationMinutes: 1000},
	})

	if ok, _ := tracker.CanProceed(); !ok {
		t.Error("CanProceed = false, want true on fresh tracker")
	}

	tracker.RecordUsage(100, 0)
	ok, reason := tracker.CanProceed()
	if ok {
		t.Error("CanProceed = true, want false after token exhaustion")
	}
	if !strings.HasPrefix(reason, "token") {
		t.Errorf("reason = %q, want token dimension named", reason)
	}
}

func TestDurationBudget(t *testing.T) {
	tracker := newTestTracker(t, Config{
		Budget: types.ResourceBudget{MaxTokens: 1000, MaxCostUSD: 100, MaxDurationMinutes: 10},
	})

	start := tracker.state.StartTime
	tracker.now = func() time.Time { return start.Add(11 * time.Minute) }

	if got := tracker.Status(); got != BudgetExceeded {
		t.Errorf("Status = %s, want EXCEEDED past duration budget", got)
	}
	ok, reason := tracker.CanProceed()
	if ok {
		t.Error("CanProceed = true, want false past duration budget")
	}
	if reason == "" {
		t.Error("reason should name the duration dimension")
	}
}

func TestZeroDurationCeilingIsUnlimited(t *testing.T) {
	tracker := newTestTracker(t, Config{
		Budget:         types.ResourceBudget{MaxTokens: 1000, MaxCostUSD: 100, MaxDurationMinutes: 0},
		AlertThreshold: 0.8,
	})

	start := tracker.state.StartTime
	tracker.now = func() time.Time { return start.Add(24 * time.Hour) }

	if ok, reason := tracker.CanProceed(); !ok {
		t.Errorf("CanProceed = false (%q), want true with unlimited duration", reason)
	}
	if got := tracker.Status(); got != BudgetHealthy {
		t.Errorf("Status = %s, want HEALTHY with unlimited duration", got)
	}
}

func TestUsageSnapshotForGuards(t *testing.T) {
	tracker := newTestTracker(t, DefaultConfig())
	tracker.RecordUsage(500, 500)

	usage := tracker.Usage()
	if usage.TokensUsed != 1000 {
		t.Errorf("TokensUsed = %d, want 1000", usage.TokensUsed)
	}
	if usage.CostUSD <= 0 {
		t.Errorf("CostUSD = %v, want > 0", usage.CostUSD)
	}
}

func TestRemaining(t *testing.T) {
	tracker := newTestTracker(t, Config{
		Budget:          types.ResourceBudget{MaxTokens: 1000, MaxCostUSD: 5, MaxDurationMinutes: 60},
		InputTokenCost:  1_000_000, // $1 per token keeps the math obvious
		OutputTokenCost: 1_000_000,
	})

	tracker.RecordUsage(300, 0)
	tokens, cost := tracker.Remaining()
	if tokens != 700 {
		t.Errorf("tokens remaining = %d, want 700", tokens)
	}
	if cost != 5-300 {
		t.Errorf("cost remaining = %v, want %v", cost, 5-300)
	}
}

func TestPersistAndReload(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "usage.json")

	tracker := newTestTracker(t, Config{
		Budget:           types.ResourceBudget{MaxTokens: 10000, MaxCostUSD: 10, MaxDurationMinutes: 60},
		InputTokenCost:   3.0,
		OutputTokenCost:  15.0,
		PersistStatePath: statePath,
	})
	tracker.RecordUsage(1000, 500)

	if _, err := os.Stat(statePath); err != nil {
		t.Fatalf("state file not written: %v", err)
	}

	reloaded := newTestTracker(t, Config{
		Budget:           types.ResourceBudget{MaxTokens: 10000, MaxCostUSD: 10, MaxDurationMinutes: 60},
		PersistStatePath: statePath,
	})
	if got := reloaded.GetStats().TokensUsed; got != 1500 {
		t.Errorf("reloaded TokensUsed = %d, want 1500", got)
	}
}

func TestLoadCorruptStateStartsFresh(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "usage.json")
	if err := os.WriteFile(statePath, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}

	tracker := newTestTracker(t, Config{PersistStatePath: statePath})
	if got := tracker.GetStats().TokensUsed; got != 0 {
		t.Errorf("TokensUsed = %d, want 0 after corrupt state", got)
	}
}
