package game

import (
	"fmt"
	"slices"
)

type CrisisEffects struct {
	IncomeReduction float64 `json:"income_reduction" toml:"income_reduction"`
	ExpenseIncrease float64 `json:"expense_increase" toml:"expense_increase"`
	AssetVolatility float64 `json:"asset_volatility" toml:"asset_volatility"`
}

type CrisisLogEntry struct {
	Month int    `json:"month"`
	Entry string `json:"entry"`
}

// Crisis is a multi-month adverse scenario. CurrentMonth only moves forward
// while the crisis is active.
type Crisis struct {
	Name              string           `json:"name" toml:"name"`
	Description       string           `json:"description" toml:"description"`
	Duration          int              `json:"duration" toml:"duration"`
	CurrentMonth      int              `json:"current_month" toml:"-"`
	Effects           CrisisEffects    `json:"effects" toml:"effects"`
	SurvivalThreshold float64          `json:"survival_threshold" toml:"survival_threshold"`
	VictoryThreshold  float64          `json:"victory_threshold" toml:"victory_threshold"`
	Log               []CrisisLogEntry `json:"log" toml:"-"`
}

func (c *Crisis) Clone() *Crisis {
	if c == nil {
		return nil
	}
	out := *c
	out.Log = slices.Clone(c.Log)
	return &out
}

func (c *Crisis) Validate() error {
	if c == nil || c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrUnknownCrisis)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("%w: %s duration must be > 0", ErrUnknownCrisis, c.Name)
	}
	return nil
}

// Remaining is the number of months left before the crisis is won.
func (c *Crisis) Remaining() int {
	if c == nil {
		return 0
	}
	return max(0, c.Duration-c.CurrentMonth+1)
}

type CrisisReward struct {
	VictoryXP        int
	BadgeName        string
	BadgeDescription string
}

var crisisRewards = CrisisReward{
	VictoryXP:        1500,
	BadgeName:        "Recession Survivor",
	BadgeDescription: "You successfully navigated a major economic crisis.",
}

type CrisisResult string

const (
	CrisisWon  CrisisResult = "won"
	CrisisLost CrisisResult = "lost"
)
