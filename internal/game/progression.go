package game

import (
	"strings"
	"time"
)

type StageBonus struct {
	Cash float64 `json:"cash"`
	XP   int     `json:"xp"`
}

type StageInfo struct {
	Stage       Stage       `json:"stage"`
	MinAge      int         `json:"min_age"`
	MaxAge      int         `json:"max_age"`
	Bonus       *StageBonus `json:"bonus,omitempty"`
	TitlePrefix string      `json:"title_prefix,omitempty"`
	CrisisOdds  float64     `json:"crisis_odds"`
}

var lifeStages = []StageInfo{
	{Stage: StageEarlyCareer, MinAge: 22, MaxAge: 34, CrisisOdds: 0.1},
	{Stage: StageMidCareer, MinAge: 35, MaxAge: 49, Bonus: &StageBonus{Cash: 200_000, XP: 1000}, TitlePrefix: "Senior", CrisisOdds: 0.2},
	{Stage: StageLateCareer, MinAge: 50, MaxAge: 64, Bonus: &StageBonus{Cash: 500_000, XP: 2000}, TitlePrefix: "Principal", CrisisOdds: 0.1},
	{Stage: StageRetirement, MinAge: 65, MaxAge: MaxPlayerAge},
}

func LifeStages() []StageInfo {
	out := make([]StageInfo, len(lifeStages))
	copy(out, lifeStages)
	return out
}

// StageForAge reports the stage whose age range contains age.
func StageForAge(age int) (StageInfo, bool) {
	for _, s := range lifeStages {
		if age >= s.MinAge && age <= s.MaxAge {
			return s, true
		}
	}
	return StageInfo{}, false
}

func StageDetails(stage Stage) (StageInfo, bool) {
	for _, s := range lifeStages {
		if s.Stage == stage {
			return s, true
		}
	}
	return StageInfo{}, false
}

func promotedTitle(prefix, career string) string {
	if prefix == "" {
		return career
	}
	return prefix + " " + career
}

func levelUpDue(l *Ledger) bool {
	return l.XP >= l.Level*XPPerLevel
}

type SkillID string

const (
	SkillEmergencyShield    SkillID = "emergencyShield"
	SkillDeductionDetective SkillID = "deductionDetective"
	SkillDiversificationPro SkillID = "diversificationPro"
	SkillInsuranceGuardian  SkillID = "insuranceGuardian"
	SkillWealthWarrior      SkillID = "wealthWarrior"
)

type SkillStatus string

const (
	SkillLocked    SkillStatus = "locked"
	SkillAvailable SkillStatus = "available"
	SkillUnlocked  SkillStatus = "unlocked"
)

type SkillState struct {
	Status     SkillStatus `json:"status"`
	UnlockedAt *time.Time  `json:"unlocked_at"`
}

type Skill struct {
	ID          SkillID `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Tier        int     `json:"tier"`
	Cost        int     `json:"activation_cost"`
	Buff        string  `json:"buff"`

	prerequisite func(*Ledger) bool
}

// Ready reports whether the skill's prerequisite holds for l.
func (s Skill) Ready(l *Ledger) bool {
	if s.prerequisite == nil {
		return true
	}
	return s.prerequisite(l)
}

func always(*Ledger) bool { return true }

func unlocked(ids ...SkillID) func(*Ledger) bool {
	return func(l *Ledger) bool {
		for _, id := range ids {
			if !l.HasSkill(id) {
				return false
			}
		}
		return true
	}
}

// skillTree is evaluated in this order on every rescan.
var skillTree = []Skill{
	{
		ID: SkillEmergencyShield, Name: "Emergency Shield", Tier: 1, Cost: 500,
		Description:  "Strengthen your financial foundation against unexpected shocks.",
		Buff:         "Reduces the cost of all survival events by 10%.",
		prerequisite: always,
	},
	{
		ID: SkillDeductionDetective, Name: "Deduction Detective", Tier: 1, Cost: 500,
		Description:  "Become savvy at identifying tax-saving opportunities.",
		Buff:         "Increases money saved during the tax minigame by 15%.",
		prerequisite: always,
	},
	{
		ID: SkillDiversificationPro, Name: "Diversification Pro", Tier: 2, Cost: 1000,
		Description:  "Learn to spread your investments to mitigate risk.",
		Buff:         "Reduces asset volatility during crises by 5%.",
		prerequisite: unlocked(SkillEmergencyShield),
	},
	{
		ID: SkillInsuranceGuardian, Name: "Insurance Guardian", Tier: 2, Cost: 1000,
		Description:  "Master the art of using insurance to protect your wealth.",
		Buff:         "Reduces all insurance premiums by 10%.",
		prerequisite: unlocked(SkillEmergencyShield),
	},
	{
		ID: SkillWealthWarrior, Name: "Wealth Warrior", Tier: 3, Cost: 2000,
		Description:  "Aggressively grow your net worth through strategic financial moves.",
		Buff:         "Grants a 5% bonus to one-time financial gains.",
		prerequisite: unlocked(SkillDiversificationPro, SkillInsuranceGuardian),
	},
}

func SkillTree() []Skill {
	out := make([]Skill, len(skillTree))
	copy(out, skillTree)
	return out
}

func LookupSkill(id SkillID) (Skill, bool) {
	for _, s := range skillTree {
		if s.ID == id {
			return s, true
		}
	}
	return Skill{}, false
}

func initialSkills() map[SkillID]SkillState {
	out := make(map[SkillID]SkillState, len(skillTree))
	for _, s := range skillTree {
		status := SkillLocked
		if s.Tier == 1 {
			status = SkillAvailable
		}
		out[s.ID] = SkillState{Status: status}
	}
	return out
}

// promoteReadySkills moves every locked skill whose prerequisite now holds to available.
func promoteReadySkills(l *Ledger) {
	for _, s := range skillTree {
		if l.SkillStatus(s.ID) == SkillLocked && s.Ready(l) {
			l.Skills[s.ID] = SkillState{Status: SkillAvailable}
		}
	}
}

// baseCareer strips a stage promotion prefix so promotions never stack.
func baseCareer(name string) string {
	for _, s := range lifeStages {
		if s.TitlePrefix == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(name, s.TitlePrefix+" "); ok {
			return rest
		}
	}
	return name
}
