package game

import (
	"maps"
	"slices"
	"time"
)

type Stage string

const (
	StageEarlyCareer Stage = "Early Career"
	StageMidCareer   Stage = "Mid-Career"
	StageLateCareer  Stage = "Late Career"
	StageRetirement  Stage = "Retirement"
)

type Career struct {
	Name   string  `json:"name"`
	Salary float64 `json:"salary"`
}

type RecurringExpense struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// Financials holds yearly income and expenses alongside the balance sheet.
type Financials struct {
	Income            float64            `json:"income"`
	Expenses          float64            `json:"expenses"`
	Assets            float64            `json:"assets"`
	Liabilities       float64            `json:"liabilities"`
	RecurringExpenses []RecurringExpense `json:"recurring_expenses,omitempty"`
}

type Holding struct {
	Name     string  `json:"name"`
	Value    float64 `json:"value"`
	Category string  `json:"category"`
}

type HistoryPoint struct {
	Age      int     `json:"age"`
	NetWorth float64 `json:"net_worth"`
}

type InsurancePolicy struct {
	Type           string  `json:"type"`
	Name           string  `json:"name"`
	Coverage       float64 `json:"coverage"`
	Premium        float64 `json:"premium"`
	ActiveUntilAge int     `json:"active_until_age"`
}

type AchievementKind string

const (
	KindAchievement AchievementKind = "achievement"
	KindBadge       AchievementKind = "badge"
)

type Achievement struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
	Kind        AchievementKind `json:"kind"`
}

type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Age       int       `json:"age"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Tags      []string  `json:"tags"`
}

// Ledger is the complete state of one player. It is owned by a single game
// session; snapshots are taken with Clone.
type Ledger struct {
	Name          string                 `json:"name"`
	Age           int                    `json:"age"`
	Level         int                    `json:"level"`
	XP            int                    `json:"xp"`
	Career        Career                 `json:"career"`
	Financials    Financials             `json:"financials"`
	EmergencyFund float64                `json:"emergency_fund"`
	Happiness     int                    `json:"happiness"`
	CreditScore   int                    `json:"credit_score"`
	Portfolio     []Holding              `json:"portfolio"`
	History       []HistoryPoint         `json:"history"`
	Insurance     []InsurancePolicy      `json:"insurance"`
	Skills        map[SkillID]SkillState `json:"skills"`
	Achievements  []Achievement          `json:"achievements"`
	Crisis        *Crisis                `json:"crisis"`
	Stage         Stage                  `json:"stage"`
	EventLog      []LogEntry             `json:"event_log"`
}

// NetWorth is derived on demand and never stored on the ledger.
func (l *Ledger) NetWorth() float64 {
	return l.Financials.Assets - l.Financials.Liabilities + l.EmergencyFund
}

func (l *Ledger) Clone() *Ledger {
	if l == nil {
		return nil
	}
	out := *l
	out.Financials.RecurringExpenses = slices.Clone(l.Financials.RecurringExpenses)
	out.Portfolio = slices.Clone(l.Portfolio)
	out.History = slices.Clone(l.History)
	out.Insurance = slices.Clone(l.Insurance)
	out.Skills = maps.Clone(l.Skills)
	for id, st := range out.Skills {
		if st.UnlockedAt != nil {
			at := *st.UnlockedAt
			st.UnlockedAt = &at
			out.Skills[id] = st
		}
	}
	out.Achievements = slices.Clone(l.Achievements)
	out.Crisis = l.Crisis.Clone()
	out.EventLog = make([]LogEntry, len(l.EventLog))
	for i, e := range l.EventLog {
		e.Tags = slices.Clone(e.Tags)
		out.EventLog[i] = e
	}
	if l.EventLog == nil {
		out.EventLog = nil
	}
	return &out
}

func (l *Ledger) SkillStatus(id SkillID) SkillStatus {
	st, ok := l.Skills[id]
	if !ok {
		return SkillLocked
	}
	return st.Status
}

func (l *Ledger) HasSkill(id SkillID) bool {
	return l.SkillStatus(id) == SkillUnlocked
}

// ActivePolicy returns the first policy of the given type still in force at the current age.
func (l *Ledger) ActivePolicy(policyType string) (InsurancePolicy, bool) {
	for _, p := range l.Insurance {
		if p.Type == policyType && p.ActiveUntilAge >= l.Age {
			return p, true
		}
	}
	return InsurancePolicy{}, false
}

// EventsTagged returns log entries carrying tag, oldest first.
func (l *Ledger) EventsTagged(tag string) []LogEntry {
	var out []LogEntry
	for _, e := range l.EventLog {
		if slices.Contains(e.Tags, tag) {
			out = append(out, e)
		}
	}
	return out
}

func (l *Ledger) addHappiness(delta int) {
	l.Happiness = clampInt(l.Happiness+delta, MinHappiness, MaxHappiness)
}

func (l *Ledger) addCreditScore(delta int) {
	l.CreditScore = clampInt(l.CreditScore+delta, MinCreditScore, MaxCreditScore)
}

func (l *Ledger) appendHistory() {
	l.History = append(l.History, HistoryPoint{Age: l.Age, NetWorth: l.NetWorth()})
}

type Profile struct {
	Name          string  `json:"name"`
	Career        string  `json:"career"`
	MonthlySalary float64 `json:"monthly_salary"`
}

func (p Profile) Validate() error {
	if err := ValidatePlayerName(p.Name); err != nil {
		return err
	}
	if p.Career == "" || p.MonthlySalary <= 0 {
		return ErrInvalidProfile
	}
	return nil
}

// NewLedger builds the starting ledger for a freshly onboarded player.
func NewLedger(p Profile) *Ledger {
	salary := p.MonthlySalary * 12
	l := &Ledger{
		Name:   p.Name,
		Age:    InitialAge,
		Level:  1,
		Career: Career{Name: p.Career, Salary: salary},
		Financials: Financials{
			Income:   salary,
			Expenses: salary * 0.7,
			Assets:   salary * 0.2,
		},
		EmergencyFund: salary * 0.25,
		Happiness:     75,
		CreditScore:   650,
		Portfolio:     []Holding{{Name: "Initial Savings", Value: salary * 0.2, Category: "Initial"}},
		Insurance:     []InsurancePolicy{},
		Skills:        initialSkills(),
		Achievements:  []Achievement{},
		Stage:         StageEarlyCareer,
		EventLog:      []LogEntry{},
	}
	l.History = []HistoryPoint{{Age: InitialAge, NetWorth: l.NetWorth()}}
	return l
}
