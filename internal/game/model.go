package game

import (
	"errors"
	"math"
	"regexp"
	"strings"
)

const (
	InitialAge   = 22
	XPPerLevel   = 1000
	MaxPlayerAge = 100

	MinHappiness   = 0
	MaxHappiness   = 100
	MinCreditScore = 300
	MaxCreditScore = 850

	YearSavingsToFund   = 0.4
	YearSavingsToAssets = 0.6
	AnnualAssetReturn   = 0.05

	YearXP     = 100
	ChoiceXP   = 50
	SurvivalXP = 75

	LoanPenalty        = 1.2
	HardshipHappiness  = 20
	HardshipCredit     = 50
	InsuranceTermYears = 10

	SurvivalEventChance = 0.25
)

var (
	ErrNoGame                = errors.New("game not started")
	ErrGameNotFound          = errors.New("game not found")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientXP        = errors.New("insufficient xp")
	ErrSkillNotFound         = errors.New("skill not found")
	ErrSkillLocked           = errors.New("skill is locked: prerequisite not met")
	ErrSkillAlreadyUnlocked  = errors.New("skill already unlocked")
	ErrUnknownImpact         = errors.New("unknown impact kind")
	ErrUnknownSurvivalMethod = errors.New("unknown survival payment method")
	ErrNoActiveCrisis        = errors.New("no active crisis")
	ErrCrisisActive          = errors.New("crisis already active")
	ErrInvalidPhase          = errors.New("command not allowed in current phase")
	ErrNoEvent               = errors.New("no event pending")
	ErrInvalidChoice         = errors.New("invalid choice")
	ErrInvalidCommand        = errors.New("invalid command")
	ErrInvalidProfile        = errors.New("invalid player profile")
	ErrInvalidSave           = errors.New("invalid save: name and age are required")
	ErrUnknownProduct        = errors.New("unknown insurance product")
	ErrPolicyActive          = errors.New("policy of this type is already active")
	ErrUnknownCrisis         = errors.New("unknown crisis")
	ErrDuplicateIdempotency  = errors.New("duplicate idempotency key")
	ErrTxConflict            = errors.New("transaction conflict, please retry")
	ErrUnauthorized          = errors.New("unauthorized")
)

var playerNameRE = regexp.MustCompile(`^[\p{L}0-9 .'_-]{1,40}$`)

func ValidatePlayerName(name string) error {
	if !playerNameRE.MatchString(strings.TrimSpace(name)) {
		return ErrInvalidProfile
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundRupees(v float64) float64 {
	return math.Round(v)
}
