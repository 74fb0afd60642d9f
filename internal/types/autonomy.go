package types

import "fmt"

// AutonomyLevel is a named permissiveness tier controlling auto-continuation,
// batch size, and maximum planning cycles. Levels are ordered most to least
// permissive: lunatic, insane, crazy, wild, bold, timid.
type AutonomyLevel string

const (
	// AutonomyLunatic is fully autonomous - no human intervention
	AutonomyLunatic AutonomyLevel = "lunatic"
	// AutonomyInsane is highly autonomous - notifies before key decisions
	AutonomyInsane AutonomyLevel = "insane"
	// AutonomyCrazy is significantly autonomous - semi-automatic execution
	AutonomyCrazy AutonomyLevel = "crazy"
	// AutonomyWild is partially autonomous - simple tasks only
	AutonomyWild AutonomyLevel = "wild"
	// AutonomyBold is cautiously autonomous - predefined steps only
	AutonomyBold AutonomyLevel = "bold"
	// AutonomyTimid is minimally autonomous - information gathering only
	AutonomyTimid AutonomyLevel = "timid"
)

// AutonomyParams holds the static behavior knobs for an autonomy level.
// The mapping is a fixed table, never mutated at runtime.
type AutonomyParams struct {
	// AutoContinue controls whether the loop keeps going without a human nudge
	AutoContinue bool
	// PauseOnImportantDecisions forces a pause when a decision lands in the caution band
	PauseOnImportantDecisions bool
	// MaxCycles caps planning iterations per session (0 = unlimited)
	MaxCycles int
	// BatchMultiplier is the base number of requirements scheduled per cycle
	BatchMultiplier int
}

// autonomyTable maps each level to its static parameters.
var autonomyTable = map[AutonomyLevel]AutonomyParams{
	AutonomyLunatic: {AutoContinue: true, PauseOnImportantDecisions: false, MaxCycles: 0, BatchMultiplier: 5},
	AutonomyInsane:  {AutoContinue: true, PauseOnImportantDecisions: false, MaxCycles: 50, BatchMultiplier: 4},
	AutonomyCrazy:   {AutoContinue: true, PauseOnImportantDecisions: true, MaxCycles: 20, BatchMultiplier: 3},
	AutonomyWild:    {AutoContinue: true, PauseOnImportantDecisions: true, MaxCycles: 10, BatchMultiplier: 2},
	AutonomyBold:    {AutoContinue: false, PauseOnImportantDecisions: true, MaxCycles: 5, BatchMultiplier: 1},
	AutonomyTimid:   {AutoContinue: false, PauseOnImportantDecisions: true, MaxCycles: 3, BatchMultiplier: 1},
}

// IsValid returns true if the level is a recognized value.
func (l AutonomyLevel) IsValid() bool {
	_, ok := autonomyTable[l]
	return ok
}

// Params returns the static parameters for this level.
// Unknown levels fall back to timid, the least permissive tier.
func (l AutonomyLevel) Params() AutonomyParams {
	if p, ok := autonomyTable[l]; ok {
		return p
	}
	return autonomyTable[AutonomyTimid]
}

// DefaultThresholds returns the default CLOSE decision thresholds
// (approval, caution) for this level. Lower thresholds = more permissive.
// A configured decision threshold overrides the approval value; the caution
// threshold is always approval minus 2.
func (l AutonomyLevel) DefaultThresholds() (approval, caution float64) {
	switch l {
	case AutonomyLunatic:
		return 5.0, 3.0
	case AutonomyInsane:
		return 5.5, 3.5
	case AutonomyCrazy:
		return 6.0, 4.0
	case AutonomyWild:
		return 6.5, 4.5
	case AutonomyBold:
		return 7.0, 5.0
	case AutonomyTimid:
		return 8.0, 6.0
	default:
		return 8.0, 6.0
	}
}

// CrazinessScore returns the 0-100 permissiveness score for status display.
func (l AutonomyLevel) CrazinessScore() int {
	switch l {
	case AutonomyLunatic:
		return 95
	case AutonomyInsane:
		return 85
	case AutonomyCrazy:
		return 75
	case AutonomyWild:
		return 60
	case AutonomyBold:
		return 40
	case AutonomyTimid:
		return 15
	default:
		return 0
	}
}

// String returns the string representation of the level.
func (l AutonomyLevel) String() string {
	return string(l)
}

// ParseAutonomyLevel converts a string to an AutonomyLevel.
func ParseAutonomyLevel(s string) (AutonomyLevel, error) {
	l := AutonomyLevel(s)
	if !l.IsValid() {
		return "", fmt.Errorf("unknown autonomy level: %q (valid: lunatic, insane, crazy, wild, bold, timid)", s)
	}
	return l, nil
}

// AllAutonomyLevels returns every level, most permissive first.
func AllAutonomyLevels() []AutonomyLevel {
	return []AutonomyLevel{
		AutonomyLunatic,
		AutonomyInsane,
		AutonomyCrazy,
		AutonomyWild,
		AutonomyBold,
		AutonomyTimid,
	}
}
