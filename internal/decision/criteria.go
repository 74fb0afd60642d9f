// Package decision implements the CLOSE scoring rubric used to gate a
// proposed action: Convergence, Leverage, Optionality, Surplus, Evolution.
// Each dimension is scored 0-10 and combined into a weighted total that is
// compared against autonomy-level thresholds.
package decision

import (
	"fmt"
	"math"

	"github.com/steveyegge/autopilot/internal/types"
)

// CriteriaType classifies what kind of action is being evaluated.
type CriteriaType string

const (
	CriteriaImplementation CriteriaType = "implementation"
	CriteriaTest           CriteriaType = "test"
	CriteriaCheckpoint     CriteriaType = "checkpoint"
	CriteriaOther          CriteriaType = "other"
)

// Criteria holds the five CLOSE dimension scores for a proposed action.
// Scores are in [0,10] and are heuristically derived by the caller from
// tool name and command inspection (see CriteriaForTool).
type Criteria struct {
	Type        CriteriaType    `json:"type"`
	Description string          `json:"description"`
	RiskLevel   types.RiskLevel `json:"risk_level"`

	// Convergence: how focused/irreversible the action is
	Convergence float64 `json:"convergence"`
	// Leverage: impact vs effort ratio
	Leverage float64 `json:"leverage"`
	// Optionality: flexibility and reversibility
	Optionality float64 `json:"optionality"`
	// Surplus: resource availability and slack
	Surplus float64 `json:"surplus"`
	// Evolution: learning and adaptation value
	Evolution float64 `json:"evolution"`
}

// Validate checks that every dimension is within [0,10].
func (c *Criteria) Validate() error {
	dims := map[string]float64{
		"convergence": c.Convergence,
		"leverage":    c.Leverage,
		"optionality": c.Optionality,
		"surplus":     c.Surplus,
		"evolution":   c.Evolution,
	}
	for name, v := range dims {
		if v < 0 || v > 10 {
			return fmt.Errorf("%s score must be in [0,10] (got %.1f)", name, v)
		}
	}
	return nil
}

// Weights holds the per-dimension weights for the CLOSE total. The total is
// normalized by the weight sum, so any positive weights preserve the 0-10
// scale.
type Weights struct {
	Convergence float64 `json:"convergence" yaml:"convergence"`
	Leverage    float64 `json:"leverage" yaml:"leverage"`
	Optionality float64 `json:"optionality" yaml:"optionality"`
	Surplus     float64 `json:"surplus" yaml:"surplus"`
	Evolution   float64 `json:"evolution" yaml:"evolution"`
}

// DefaultWeights returns uniform weights.
func DefaultWeights() Weights {
	return Weights{Convergence: 1, Leverage: 1, Optionality: 1, Surplus: 1, Evolution: 1}
}

// SustainabilityWeights favors optionality and surplus over raw leverage.
func SustainabilityWeights() Weights {
	return Weights{Convergence: 1.0, Leverage: 1.2, Optionality: 1.5, Surplus: 1.3, Evolution: 0.8}
}

// sum returns the total weight mass.
func (w Weights) sum() float64 {
	return w.Convergence + w.Leverage + w.Optionality + w.Surplus + w.Evolution
}

// Validate checks that the weights are usable.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"convergence": w.Convergence,
		"leverage":    w.Leverage,
		"optionality": w.Optionality,
		"surplus":     w.Surplus,
		"evolution":   w.Evolution,
	} {
		if v < 0 {
			return fmt.Errorf("%s weight cannot be negative (got %.2f)", name, v)
		}
	}
	if w.sum() <= 0 {
		return fmt.Errorf("weights must have positive sum")
	}
	return nil
}

// Score is the weighted CLOSE result. Dimension fields echo the input
// criteria; Total is the weighted sum normalized to [0,10] and rounded to
// two decimals.
type Score struct {
	Convergence float64 `json:"convergence"`
	Leverage    float64 `json:"leverage"`
	Optionality float64 `json:"optionality"`
	Surplus     float64 `json:"surplus"`
	Evolution   float64 `json:"evolution"`
	Total       float64 `json:"total"`
}

// ScoreCriteria computes the weighted total for the given criteria.
func ScoreCriteria(c *Criteria, w Weights) Score {
	weightSum := w.sum()
	total := (c.Convergence*w.Convergence +
		c.Leverage*w.Leverage +
		c.Optionality*w.Optionality +
		c.Surplus*w.Surplus +
		c.Evolution*w.Evolution) / weightSum

	return Score{
		Convergence: c.Convergence,
		Leverage:    c.Leverage,
		Optionality: c.Optionality,
		Surplus:     c.Surplus,
		Evolution:   c.Evolution,
		Total:       math.Round(total*100) / 100,
	}
}
