package decision

import (
	"regexp"
	"strings"

	"github.com/steveyegge/autopilot/internal/types"
)

// riskPattern adjusts an action's criteria when its command text matches.
type riskPattern struct {
	re     *regexp.Regexp
	reason string
	// bump is how many convergence points the match adds (and optionality
	// points it removes)
	bump float64
}

// destructivePatterns are command shapes that make an action harder to
// reverse. Matches raise convergence and lower optionality before scoring.
var destructivePatterns = []riskPattern{
	{re: regexp.MustCompile(`rm\s+-rf?`), reason: "recursive force delete", bump: 3},
	{re: regexp.MustCompile(`git\s+push\s+(--force|-f)`), reason: "force push can destroy remote history", bump: 3},
	{re: regexp.MustCompile(`git\s+push`), reason: "push modifies remote repository", bump: 1.5},
	{re: regexp.MustCompile(`git\s+reset\s+--hard`), reason: "hard reset discards local changes", bump: 2},
	{re: regexp.MustCompile(`(?i)drop\s+(table|database)`), reason: "destructive SQL", bump: 3},
	{re: regexp.MustCompile(`(?i)truncate\s+table`), reason: "destructive SQL", bump: 2.5},
	{re: regexp.MustCompile(`>\s*/dev/sd`), reason: "raw device write", bump: 3},
	{re: regexp.MustCompile(`chmod\s+-R`), reason: "recursive permission change", bump: 1.5},
	{re: regexp.MustCompile(`curl[^|]*\|\s*(ba)?sh`), reason: "piping remote content to a shell", bump: 3},
}

// sensitivePathPatterns cover targets whose modification is risky
// regardless of the operation.
var sensitivePathPatterns = []riskPattern{
	{re: regexp.MustCompile(`\.env\b`), reason: "env files may hold secrets", bump: 2},
	{re: regexp.MustCompile(`(?i)credentials|password|secret`), reason: "credential material", bump: 2},
}

// toolBaseline maps tool names to a starting criteria shape. Read-only
// tools are highly reversible; shell and write tools start riskier.
func toolBaseline(toolName string) Criteria {
	switch strings.ToLower(toolName) {
	case "read", "grep", "glob", "ls":
		return Criteria{Type: CriteriaOther, RiskLevel: types.RiskLow,
			Convergence: 1, Leverage: 4, Optionality: 9, Surplus: 8, Evolution: 4}
	case "websearch", "webfetch":
		return Criteria{Type: CriteriaOther, RiskLevel: types.RiskLow,
			Convergence: 2, Leverage: 5, Optionality: 9, Surplus: 7, Evolution: 6}
	case "edit", "notebookedit":
		return Criteria{Type: CriteriaImplementation, RiskLevel: types.RiskMedium,
			Convergence: 4, Leverage: 7, Optionality: 7, Surplus: 6, Evolution: 5}
	case "write":
		return Criteria{Type: CriteriaImplementation, RiskLevel: types.RiskMedium,
			Convergence: 5, Leverage: 7, Optionality: 6, Surplus: 6, Evolution: 5}
	case "bash", "shell":
		return Criteria{Type: CriteriaImplementation, RiskLevel: types.RiskHigh,
			Convergence: 6, Leverage: 7, Optionality: 5, Surplus: 5, Evolution: 5}
	default:
		// Unknown tools start medium-high risk
		return Criteria{Type: CriteriaOther, RiskLevel: types.RiskHigh,
			Convergence: 6, Leverage: 5, Optionality: 5, Surplus: 5, Evolution: 5}
	}
}

// CriteriaForTool heuristically derives CLOSE criteria for a proposed tool
// invocation. Destructive shell patterns raise convergence and lower
// optionality; matches against sensitive paths do the same.
func CriteriaForTool(toolName, command string) *Criteria {
	c := toolBaseline(toolName)
	c.Description = strings.TrimSpace(toolName + " " + firstLine(command))

	var reasons []string
	for _, set := range [][]riskPattern{destructivePatterns, sensitivePathPatterns} {
		for _, p := range set {
			if p.re.MatchString(command) {
				c.Convergence = clampScore(c.Convergence + p.bump)
				c.Optionality = clampScore(c.Optionality - p.bump)
				reasons = append(reasons, p.reason)
			}
		}
	}
	if len(reasons) > 0 {
		c.RiskLevel = types.RiskHigh
		c.Description += " [" + strings.Join(reasons, "; ") + "]"
	}
	return &c
}

// Criteria templates for common action shapes.

// LowRiskImplementation describes a reversible, high-leverage change.
func LowRiskImplementation(description string) *Criteria {
	return &Criteria{
		Type: CriteriaImplementation, Description: description, RiskLevel: types.RiskLow,
		Convergence: 3, Leverage: 7, Optionality: 8, Surplus: 7, Evolution: 5,
	}
}

// TestWriting describes adding tests: nearly free to undo.
func TestWriting(description string) *Criteria {
	return &Criteria{
		Type: CriteriaTest, Description: description, RiskLevel: types.RiskLow,
		Convergence: 2, Leverage: 8, Optionality: 9, Surplus: 8, Evolution: 6,
	}
}

// Checkpoint describes a verification/checkpoint step.
func Checkpoint(description string) *Criteria {
	return &Criteria{
		Type: CriteriaCheckpoint, Description: description, RiskLevel: types.RiskLow,
		Convergence: 2, Leverage: 6, Optionality: 9, Surplus: 8, Evolution: 5,
	}
}

// HighRiskArchitecture describes a hard-to-reverse structural change.
func HighRiskArchitecture(description string) *Criteria {
	return &Criteria{
		Type: CriteriaImplementation, Description: description, RiskLevel: types.RiskHigh,
		Convergence: 8, Leverage: 6, Optionality: 3, Surplus: 4, Evolution: 7,
	}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}
