package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Phase string

const (
	PhaseOnboarding      Phase = "onboarding"
	PhaseEvent           Phase = "event"
	PhaseTurnEnd         Phase = "turn_end"
	PhaseCrisis          Phase = "crisis"
	PhaseCrisisWon       Phase = "crisis_won"
	PhaseCrisisLost      Phase = "crisis_lost"
	PhaseStageTransition Phase = "stage_transition"
	PhaseTaxMinigame     Phase = "tax_minigame"
)

// State is one game session: the ledger, the active phase, the pending event
// and the crisis rollback buffer.
type State struct {
	Ledger   *Ledger    `json:"ledger"`
	Phase    Phase      `json:"phase"`
	Event    *LifeEvent `json:"event,omitempty"`
	Rollback []Ledger   `json:"rollback,omitempty"`
}

func (s State) Clone() State {
	out := State{
		Ledger: s.Ledger.Clone(),
		Phase:  s.Phase,
		Event:  s.Event.Clone(),
	}
	if s.Rollback != nil {
		out.Rollback = make([]Ledger, len(s.Rollback))
		for i := range s.Rollback {
			out.Rollback[i] = *s.Rollback[i].Clone()
		}
	}
	return out
}

// Engine applies commands to a State. It holds no game state; the clock and
// id source only stamp log entries.
type Engine struct {
	now   func() time.Time
	newID func() string
}

type EngineOption func(*Engine)

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func WithIDSource(newID func() string) EngineOption {
	return func(e *Engine) { e.newID = newID }
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply returns the state produced by cmd. The input state is never mutated;
// on error the input is returned as-is.
func (e *Engine) Apply(st State, cmd Command) (State, error) {
	if cmd == nil {
		return st, ErrInvalidCommand
	}
	switch c := cmd.(type) {
	case StartGame:
		return e.startGame(st, c)
	case LoadLedger:
		return e.loadLedger(st, c)
	}
	if st.Ledger == nil {
		return st, ErrNoGame
	}

	next := st.Clone()
	var err error
	switch c := cmd.(type) {
	case PresentEvent:
		err = e.presentEvent(&next, c)
	case AdvanceYear:
		e.advanceYear(&next)
	case ResolveChoice:
		err = e.resolveChoice(&next, c)
	case ResolveSurvival:
		err = e.resolveSurvival(&next, c)
	case BuyInsurance:
		err = e.buyInsurance(&next, c)
	case ActivateSkill:
		err = e.activateSkill(&next, c)
	case CompleteTaxMinigame:
		e.completeTaxMinigame(&next, c)
	case TriggerCrisis:
		err = e.triggerCrisis(&next, st.Ledger, c)
	case AdvanceCrisisMonth:
		err = e.advanceCrisisMonth(&next)
	case EndCrisis:
		err = e.endCrisis(&next, c)
	case RollbackCrisisMonth:
		e.rollbackCrisisMonth(&next)
	default:
		err = fmt.Errorf("%w: %T", ErrInvalidCommand, cmd)
	}
	if err != nil {
		return st, err
	}
	return next, nil
}

func (e *Engine) startGame(st State, c StartGame) (State, error) {
	if err := c.Profile.Validate(); err != nil {
		return st, err
	}
	return State{Ledger: NewLedger(c.Profile), Phase: PhaseTurnEnd}, nil
}

func (e *Engine) loadLedger(st State, c LoadLedger) (State, error) {
	if c.Ledger == nil || c.Ledger.Name == "" || c.Ledger.Age <= 0 {
		return st, ErrInvalidSave
	}
	return State{Ledger: c.Ledger.Clone(), Phase: PhaseTurnEnd}, nil
}

func (e *Engine) presentEvent(st *State, c PresentEvent) error {
	if err := ValidateEvent(c.Event); err != nil {
		return err
	}
	st.Event = c.Event.Clone()
	st.Phase = PhaseEvent
	return nil
}

func (e *Engine) advanceYear(st *State) {
	l := st.Ledger
	savings := l.Financials.Income - l.Financials.Expenses
	l.EmergencyFund += savings * YearSavingsToFund
	l.Financials.Assets += savings * YearSavingsToAssets
	l.Financials.Assets *= 1 + AnnualAssetReturn

	l.Age++
	l.XP += YearXP
	if levelUpDue(l) {
		l.Level++
	}
	l.appendHistory()

	if next, ok := StageForAge(l.Age); ok && next.Stage != l.Stage {
		l.Stage = next.Stage
		if next.Bonus != nil {
			l.EmergencyFund += next.Bonus.Cash
			l.XP += next.Bonus.XP
		}
		if next.TitlePrefix != "" {
			l.Career.Name = promotedTitle(next.TitlePrefix, baseCareer(l.Career.Name))
		}
		st.Phase = PhaseStageTransition
		return
	}
	if l.Age%2 == 0 {
		st.Phase = PhaseTaxMinigame
		return
	}
	st.Phase = PhaseTurnEnd
}

func (e *Engine) resolveChoice(st *State, c ResolveChoice) error {
	l := st.Ledger
	if c.Choice.Impact != nil {
		if err := applyImpact(l, *c.Choice.Impact); err != nil {
			return err
		}
	}
	l.XP += ChoiceXP
	e.log(l, c.EventTitle, fmt.Sprintf("Chose: %q. Outcome: %s", c.Choice.Text, c.Choice.Outcome), "choice")
	st.Event = nil
	st.Phase = PhaseTurnEnd
	return nil
}

func (e *Engine) resolveSurvival(st *State, c ResolveSurvival) error {
	l := st.Ledger
	var summary string
	switch c.Method {
	case PayEmergencyFund:
		l.EmergencyFund -= c.Cost
		summary = fmt.Sprintf("Paid %s from emergency fund.", FormatCurrency(c.Cost))
	case PaySellAsset:
		l.Financials.Assets -= c.Cost
		summary = fmt.Sprintf("Sold assets worth %s.", FormatCurrency(c.Cost))
	case PayLoan:
		l.Financials.Liabilities += c.Cost * LoanPenalty
		summary = fmt.Sprintf("Took a loan for %s, increasing liabilities.", FormatCurrency(c.Cost))
	case PayHardship:
		l.addHappiness(-HardshipHappiness)
		l.addCreditScore(-HardshipCredit)
		summary = "Faced hardship, reducing happiness and credit score."
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSurvivalMethod, c.Method)
	}
	l.XP += SurvivalXP
	e.log(l, "SURVIVAL: "+c.EventTitle, summary, "survival")
	st.Event = nil
	st.Phase = PhaseTurnEnd
	return nil
}

func (e *Engine) buyInsurance(st *State, c BuyInsurance) error {
	l := st.Ledger
	p := c.Product
	if l.EmergencyFund < p.Premium {
		return fmt.Errorf("%w: premium %s, emergency fund %s", ErrInsufficientFunds, FormatCurrency(p.Premium), FormatCurrency(l.EmergencyFund))
	}
	l.EmergencyFund -= p.Premium
	l.Insurance = append(l.Insurance, InsurancePolicy{
		Type:           p.Type,
		Name:           p.Name,
		Coverage:       p.Coverage,
		Premium:        p.Premium,
		ActiveUntilAge: l.Age + InsuranceTermYears,
	})
	e.log(l, "Insurance Acquired", fmt.Sprintf("Purchased %s for a premium of %s.", p.Name, FormatCurrency(p.Premium)), "insurance")
	return nil
}

func (e *Engine) activateSkill(st *State, c ActivateSkill) error {
	l := st.Ledger
	skill, ok := LookupSkill(c.Skill)
	if !ok {
		return fmt.Errorf("%w: %q", ErrSkillNotFound, c.Skill)
	}
	switch l.SkillStatus(skill.ID) {
	case SkillLocked:
		return fmt.Errorf("%w: %s", ErrSkillLocked, skill.Name)
	case SkillUnlocked:
		return fmt.Errorf("%w: %s", ErrSkillAlreadyUnlocked, skill.Name)
	}
	if l.XP < skill.Cost {
		return fmt.Errorf("%w: %s costs %d xp, have %d", ErrInsufficientXP, skill.Name, skill.Cost, l.XP)
	}
	at := e.now().UTC()
	if l.Skills == nil {
		l.Skills = make(map[SkillID]SkillState)
	}
	l.Skills[skill.ID] = SkillState{Status: SkillUnlocked, UnlockedAt: &at}
	l.XP -= skill.Cost
	promoteReadySkills(l)
	e.log(l, "Skill Unlocked", fmt.Sprintf("Unlocked '%s' for %d XP.", skill.Name, skill.Cost), "skill_unlock")
	return nil
}

func (e *Engine) completeTaxMinigame(st *State, c CompleteTaxMinigame) {
	l := st.Ledger
	l.EmergencyFund += c.TaxSaved
	e.log(l, "Tax Season Complete", fmt.Sprintf("Filed taxes with %s in deductions, saving %s.", FormatCurrency(c.Deductions), FormatCurrency(c.TaxSaved)), "tax_minigame")
	st.Phase = PhaseTurnEnd
}

func (e *Engine) triggerCrisis(st *State, before *Ledger, c TriggerCrisis) error {
	l := st.Ledger
	if l.Crisis != nil {
		return fmt.Errorf("%w: %s", ErrCrisisActive, l.Crisis.Name)
	}
	if err := c.Template.Validate(); err != nil {
		return err
	}
	crisis := c.Template.Clone()
	crisis.CurrentMonth = 0
	crisis.Log = nil
	l.Crisis = crisis
	e.log(l, "CRISIS START: "+crisis.Name, crisis.Description, "crisis")
	st.Phase = PhaseCrisis
	st.resetRollback(before)
	return nil
}

func (e *Engine) advanceCrisisMonth(st *State) error {
	l := st.Ledger
	crisis := l.Crisis
	if crisis == nil {
		return ErrNoActiveCrisis
	}
	crisis.CurrentMonth++

	monthlyIncome := l.Financials.Income / 12 * (1 - crisis.Effects.IncomeReduction)
	monthlyExpenses := l.Financials.Expenses / 12 * (1 + crisis.Effects.ExpenseIncrease)
	l.EmergencyFund += monthlyIncome - monthlyExpenses
	l.Financials.Assets *= 1 + crisis.Effects.AssetVolatility/12

	netWorth := l.NetWorth()
	crisis.Log = append(crisis.Log, CrisisLogEntry{
		Month: crisis.CurrentMonth,
		Entry: fmt.Sprintf("Month %d: cash flow %s, net worth %s.", crisis.CurrentMonth, FormatCurrency(monthlyIncome-monthlyExpenses), FormatCurrency(netWorth)),
	})

	if l.EmergencyFund <= 0 || netWorth < crisis.SurvivalThreshold {
		st.Phase = PhaseCrisisLost
		return nil
	}
	if crisis.CurrentMonth > crisis.Duration {
		st.Phase = PhaseCrisisWon
		return nil
	}
	st.Phase = PhaseTurnEnd
	st.pushRollback(l)
	return nil
}

func (e *Engine) endCrisis(st *State, c EndCrisis) error {
	l := st.Ledger
	if c.Result != CrisisWon && c.Result != CrisisLost {
		return fmt.Errorf("%w: crisis result %q", ErrInvalidCommand, c.Result)
	}
	name := ""
	if l.Crisis != nil {
		name = l.Crisis.Name
	}
	l.Crisis = nil
	if c.Result == CrisisWon {
		l.XP += crisisRewards.VictoryXP
		l.Achievements = append(l.Achievements, Achievement{
			Name:        crisisRewards.BadgeName,
			Description: crisisRewards.BadgeDescription,
			Timestamp:   e.now().UTC(),
			Kind:        KindBadge,
		})
		e.log(l, "CRISIS SURVIVED", fmt.Sprintf("Successfully navigated the %s.", name), "crisis", "achievement")
	}
	st.clearRollback()
	st.Phase = PhaseTurnEnd
	return nil
}

func (e *Engine) rollbackCrisisMonth(st *State) {
	if snap, ok := st.popRollback(); ok {
		st.Ledger = snap
		st.Phase = PhaseTurnEnd
	}
}

func (e *Engine) log(l *Ledger, title, summary string, tags ...string) {
	l.EventLog = append(l.EventLog, LogEntry{
		ID:        e.newID(),
		Timestamp: e.now().UTC(),
		Age:       l.Age,
		Title:     title,
		Summary:   summary,
		Tags:      append([]string(nil), tags...),
	})
}
