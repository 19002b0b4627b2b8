package game

// Command is one of the engine's transitions. The set is closed; only types
// declared in this file satisfy it.
type Command interface {
	Kind() CommandKind
}

type CommandKind string

const (
	CmdStartGame           CommandKind = "start_game"
	CmdLoadLedger          CommandKind = "load_ledger"
	CmdPresentEvent        CommandKind = "present_event"
	CmdAdvanceYear         CommandKind = "advance_year"
	CmdResolveChoice       CommandKind = "resolve_choice"
	CmdResolveSurvival     CommandKind = "resolve_survival"
	CmdBuyInsurance        CommandKind = "buy_insurance"
	CmdActivateSkill       CommandKind = "activate_skill"
	CmdCompleteTaxMinigame CommandKind = "complete_tax_minigame"
	CmdTriggerCrisis       CommandKind = "trigger_crisis"
	CmdAdvanceCrisisMonth  CommandKind = "advance_crisis_month"
	CmdEndCrisis           CommandKind = "end_crisis"
	CmdRollbackCrisisMonth CommandKind = "rollback_crisis_month"
)

type SurvivalMethod string

const (
	PayEmergencyFund SurvivalMethod = "emergency_fund"
	PaySellAsset     SurvivalMethod = "sell_asset"
	PayLoan          SurvivalMethod = "loan"
	PayHardship      SurvivalMethod = "hardship"
)

type StartGame struct{ Profile Profile }

type LoadLedger struct{ Ledger *Ledger }

type PresentEvent struct{ Event LifeEvent }

type AdvanceYear struct{}

type ResolveChoice struct {
	Choice     Choice
	EventTitle string
}

type ResolveSurvival struct {
	Method     SurvivalMethod
	Cost       float64
	EventTitle string
}

type BuyInsurance struct{ Product InsuranceProduct }

type ActivateSkill struct{ Skill SkillID }

type CompleteTaxMinigame struct {
	Deductions float64
	TaxSaved   float64
}

type TriggerCrisis struct{ Template Crisis }

type AdvanceCrisisMonth struct{}

type EndCrisis struct{ Result CrisisResult }

type RollbackCrisisMonth struct{}

func (StartGame) Kind() CommandKind           { return CmdStartGame }
func (LoadLedger) Kind() CommandKind          { return CmdLoadLedger }
func (PresentEvent) Kind() CommandKind        { return CmdPresentEvent }
func (AdvanceYear) Kind() CommandKind         { return CmdAdvanceYear }
func (ResolveChoice) Kind() CommandKind       { return CmdResolveChoice }
func (ResolveSurvival) Kind() CommandKind     { return CmdResolveSurvival }
func (BuyInsurance) Kind() CommandKind        { return CmdBuyInsurance }
func (ActivateSkill) Kind() CommandKind       { return CmdActivateSkill }
func (CompleteTaxMinigame) Kind() CommandKind { return CmdCompleteTaxMinigame }
func (TriggerCrisis) Kind() CommandKind       { return CmdTriggerCrisis }
func (AdvanceCrisisMonth) Kind() CommandKind  { return CmdAdvanceCrisisMonth }
func (EndCrisis) Kind() CommandKind           { return CmdEndCrisis }
func (RollbackCrisisMonth) Kind() CommandKind { return CmdRollbackCrisisMonth }

// Intent is the wire form of a command. The service resolves the references
// it carries (choice index, product type, crisis name) against stored state.
type Intent struct {
	Kind           CommandKind    `json:"kind"`
	ChoiceIndex    *int           `json:"choice_index,omitempty"`
	Method         SurvivalMethod `json:"method,omitempty"`
	InsuranceType  string         `json:"insurance_type,omitempty"`
	Skill          SkillID        `json:"skill,omitempty"`
	Deductions     []string       `json:"deductions,omitempty"`
	CrisisName     string         `json:"crisis_name,omitempty"`
	Result         CrisisResult   `json:"result,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}
