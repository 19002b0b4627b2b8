package game

import (
	"fmt"
	"strings"
)

type ImpactKind string

const (
	ImpactIncomeChange      ImpactKind = "INCOME_CHANGE"
	ImpactExpenseChange     ImpactKind = "EXPENSE_CHANGE"
	ImpactAssetChange       ImpactKind = "ASSET_CHANGE"
	ImpactLiabilityChange   ImpactKind = "LIABILITY_CHANGE"
	ImpactNetWorthChange    ImpactKind = "NET_WORTH_CHANGE"
	ImpactOneTimeCost       ImpactKind = "ONE_TIME_COST"
	ImpactOneTimeGain       ImpactKind = "ONE_TIME_GAIN"
	ImpactCreditScoreChange ImpactKind = "CREDIT_SCORE_CHANGE"
	ImpactHappinessChange   ImpactKind = "HAPPINESS_CHANGE"
)

var impactKinds = []ImpactKind{
	ImpactIncomeChange,
	ImpactExpenseChange,
	ImpactAssetChange,
	ImpactLiabilityChange,
	ImpactNetWorthChange,
	ImpactOneTimeCost,
	ImpactOneTimeGain,
	ImpactCreditScoreChange,
	ImpactHappinessChange,
}

func ImpactKinds() []ImpactKind {
	return append([]ImpactKind(nil), impactKinds...)
}

func (k ImpactKind) Known() bool {
	for _, known := range impactKinds {
		if k == known {
			return true
		}
	}
	return false
}

type FinancialImpact struct {
	Kind        ImpactKind `json:"type"`
	Amount      float64    `json:"amount"`
	Description string     `json:"description"`
}

type Choice struct {
	Text    string           `json:"text"`
	Outcome string           `json:"outcome"`
	Impact  *FinancialImpact `json:"impact,omitempty"`
}

type EventType string

const (
	EventChoice      EventType = "CHOICE"
	EventConsequence EventType = "CONSEQUENCE"
)

// Survival categories map onto insurance product types in quotes.go.
const (
	CategoryMedical  = "medical"
	CategoryVehicle  = "vehicle"
	CategoryProperty = "property"
	CategoryGeneral  = "general"
)

type LifeEvent struct {
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	Type         EventType        `json:"type"`
	IsSurvival   bool             `json:"is_survival"`
	Cost         float64          `json:"cost,omitempty"`
	OriginalCost float64          `json:"original_cost,omitempty"`
	Category     string           `json:"category,omitempty"`
	Impact       *FinancialImpact `json:"impact,omitempty"`
	Choices      []Choice         `json:"choices,omitempty"`
}

func (e *LifeEvent) Clone() *LifeEvent {
	if e == nil {
		return nil
	}
	out := *e
	if e.Impact != nil {
		imp := *e.Impact
		out.Impact = &imp
	}
	if e.Choices != nil {
		out.Choices = make([]Choice, len(e.Choices))
		for i, c := range e.Choices {
			if c.Impact != nil {
				imp := *c.Impact
				c.Impact = &imp
			}
			out.Choices[i] = c
		}
	}
	return &out
}

// ValidateEvent rejects events the engine could not resolve.
func ValidateEvent(e LifeEvent) error {
	if strings.TrimSpace(e.Title) == "" || strings.TrimSpace(e.Description) == "" {
		return fmt.Errorf("event: title and description are required")
	}
	switch e.Type {
	case EventChoice:
		if len(e.Choices) == 0 && !e.IsSurvival {
			return fmt.Errorf("event %q: choice event without choices", e.Title)
		}
	case EventConsequence:
	default:
		return fmt.Errorf("event %q: unknown type %q", e.Title, e.Type)
	}
	if e.IsSurvival && e.Cost < 0 {
		return fmt.Errorf("event %q: survival cost must not be negative", e.Title)
	}
	if e.Impact != nil && !e.Impact.Kind.Known() {
		return fmt.Errorf("event %q: %w %q", e.Title, ErrUnknownImpact, e.Impact.Kind)
	}
	for i, c := range e.Choices {
		if strings.TrimSpace(c.Text) == "" {
			return fmt.Errorf("event %q: choice %d has no text", e.Title, i)
		}
		if c.Impact != nil && !c.Impact.Kind.Known() {
			return fmt.Errorf("event %q: choice %d: %w %q", e.Title, i, ErrUnknownImpact, c.Impact.Kind)
		}
	}
	return nil
}

// CalmYearEvent is substituted whenever the narrator fails.
func CalmYearEvent() LifeEvent {
	return LifeEvent{
		Title:       "A Calm Year",
		Description: "Sometimes, the most eventful thing to happen is nothing at all. You had a quiet, stable year, allowing you to focus on your finances without any major surprises.",
		Type:        EventConsequence,
		Impact: &FinancialImpact{
			Kind:        ImpactNetWorthChange,
			Amount:      0,
			Description: "No unexpected financial changes this year.",
		},
	}
}

// StageTransitionEvent is presented when AdvanceYear moves the player into stage.
func StageTransitionEvent(stage Stage) LifeEvent {
	if stage == StageMidCareer {
		return LifeEvent{
			Title:       "The Mid-Career Crossroads",
			Description: "You've reached a pivotal point in your career. You've built a solid foundation, and now you face a choice that could define the next decade of your professional life.",
			Type:        EventChoice,
			Choices: []Choice{
				{
					Text:    "Focus on Career Stability",
					Outcome: "You doubled down on your current role and earned a significant raise.",
					Impact:  &FinancialImpact{Kind: ImpactIncomeChange, Amount: 150_000, Description: "Promotion raise"},
				},
				{
					Text:    "Start a Side Business",
					Outcome: "You invested in a new venture. It's risky, but the potential is huge.",
					Impact:  &FinancialImpact{Kind: ImpactOneTimeCost, Amount: -250_000, Description: "Initial business investment"},
				},
			},
		}
	}
	return LifeEvent{
		Title:       "Welcome to " + string(stage),
		Description: "A new chapter of your life begins. Your stage bonus has been added to your finances.",
		Type:        EventChoice,
		Choices:     []Choice{{Text: "Continue", Outcome: "You stepped into " + string(stage) + "."}},
	}
}
