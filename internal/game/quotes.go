package game

import (
	"fmt"
	"math"
	"strings"
)

const (
	TaxRate = 0.15

	deductionDetectiveBonus  = 0.15
	insuranceGuardianRebate  = 0.10
	emergencyShieldRebate    = 0.10
	diversificationDampening = 0.05
	wealthWarriorBonus       = 0.05
)

type DeductibleItem struct {
	Name       string  `json:"name"`
	Amount     float64 `json:"amount"`
	Deductible bool    `json:"deductible"`
}

var deductibleItems = []DeductibleItem{
	{Name: "Professional Development Course", Amount: 20_000, Deductible: true},
	{Name: "New Work Laptop", Amount: 80_000, Deductible: true},
	{Name: "Home Office Setup", Amount: 50_000, Deductible: true},
	{Name: "Client Dinners", Amount: 15_000, Deductible: true},
	{Name: "Vacation to Goa", Amount: 75_000, Deductible: false},
	{Name: "Luxury Watch", Amount: 120_000, Deductible: false},
	{Name: "Grocery Shopping", Amount: 60_000, Deductible: false},
	{Name: "Netflix Subscription", Amount: 2_400, Deductible: false},
}

func DeductibleItems() []DeductibleItem {
	return append([]DeductibleItem(nil), deductibleItems...)
}

type TaxFiling struct {
	GrossIncome float64  `json:"gross_income"`
	Deductions  float64  `json:"deductions"`
	BaselineTax float64  `json:"baseline_tax"`
	TaxOwed     float64  `json:"tax_owed"`
	TaxSaved    float64  `json:"tax_saved"`
	Accepted    []string `json:"accepted"`
	Rejected    []string `json:"rejected"`
	Hint        string   `json:"hint"`
}

// FileTaxes prices a tax filing for the claimed item names. Items that are
// not deductible are reported as rejected and do not reduce taxable income.
func FileTaxes(l *Ledger, claimed []string) (TaxFiling, error) {
	out := TaxFiling{GrossIncome: l.Financials.Income, Accepted: []string{}, Rejected: []string{}}
	seen := make(map[string]bool, len(claimed))
	for _, name := range claimed {
		name = strings.TrimSpace(name)
		if seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		item, ok := lookupDeductible(name)
		if !ok {
			return TaxFiling{}, fmt.Errorf("%w: unknown deduction %q", ErrInvalidCommand, name)
		}
		if !item.Deductible {
			out.Rejected = append(out.Rejected, item.Name)
			continue
		}
		out.Deductions += item.Amount
		out.Accepted = append(out.Accepted, item.Name)
	}
	out.BaselineTax = roundRupees(out.GrossIncome * TaxRate)
	out.TaxOwed = roundRupees(math.Max(0, out.GrossIncome-out.Deductions) * TaxRate)
	out.TaxSaved = out.BaselineTax - out.TaxOwed
	if l.HasSkill(SkillDeductionDetective) {
		out.TaxSaved = roundRupees(out.TaxSaved * (1 + deductionDetectiveBonus))
	}
	out.Hint = taxHint(len(out.Accepted))
	return out, nil
}

func lookupDeductible(name string) (DeductibleItem, bool) {
	for _, it := range deductibleItems {
		if strings.EqualFold(it.Name, name) {
			return it, true
		}
	}
	return DeductibleItem{}, false
}

func taxHint(valid int) string {
	switch {
	case valid == 0:
		return "Look for expenses directly related to your job or career growth."
	case valid < 2:
		return "You're on the right track! Are there any other professional expenses?"
	case valid < 4:
		return "Excellent! Just a couple more valid deductions to find."
	default:
		return "You've found all the valid deductions! Great job maximizing your savings."
	}
}

type InsuranceProduct struct {
	Type        string  `json:"type"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Coverage    float64 `json:"coverage"`
	Premium     float64 `json:"premium"`
}

const (
	InsuranceHealth   = "Health"
	InsuranceVehicle  = "Vehicle"
	InsuranceProperty = "Property"
)

var insuranceProducts = []InsuranceProduct{
	{Type: InsuranceHealth, Name: "MediShield Plus", Description: "Covers major medical emergencies and hospitalization.", Coverage: 500_000, Premium: 10_000},
	{Type: InsuranceVehicle, Name: "AutoGuard", Description: "Protects your vehicle against damage and theft.", Coverage: 800_000, Premium: 15_000},
	{Type: InsuranceProperty, Name: "HomeSecure", Description: "Insures your home and belongings against unforeseen events.", Coverage: 5_000_000, Premium: 8_000},
}

type InsuranceQuote struct {
	InsuranceProduct
	ListPremium float64 `json:"list_premium"`
	Held        bool    `json:"held"`
	Affordable  bool    `json:"affordable"`
}

// InsuranceQuotes prices the catalog for l. Premiums carry the Insurance
// Guardian rebate when that skill is unlocked.
func InsuranceQuotes(l *Ledger) []InsuranceQuote {
	out := make([]InsuranceQuote, 0, len(insuranceProducts))
	for _, p := range insuranceProducts {
		q := InsuranceQuote{InsuranceProduct: p, ListPremium: p.Premium}
		if l.HasSkill(SkillInsuranceGuardian) {
			q.Premium = roundRupees(p.Premium * (1 - insuranceGuardianRebate))
		}
		_, q.Held = l.ActivePolicy(p.Type)
		q.Affordable = l.EmergencyFund >= q.Premium
		out = append(out, q)
	}
	return out
}

// QuoteInsurance returns the priced product of the given type.
func QuoteInsurance(l *Ledger, policyType string) (InsuranceQuote, error) {
	for _, q := range InsuranceQuotes(l) {
		if strings.EqualFold(q.Type, policyType) {
			return q, nil
		}
	}
	return InsuranceQuote{}, fmt.Errorf("%w: %q", ErrUnknownProduct, policyType)
}

var careerRiskFactors = map[string]int{
	"Software Engineer": 30,
	"Doctor":            10,
	"Teacher":           15,
	"Graphic Designer":  40,
	"Marketing Manager": 35,
}

const defaultCareerRisk = 20

// RiskExposure scores how exposed l is to shocks, from 5 (well protected) to 95.
func RiskExposure(l *Ledger) int {
	career, ok := careerRiskFactors[baseCareer(l.Career.Name)]
	if !ok {
		career = defaultCareerRisk
	}
	assetRisk := min(50, int(math.Floor((l.Financials.Assets+l.EmergencyFund)/1_000_000))*5)

	preparedness := 0
	if monthly := l.Financials.Expenses / 12; monthly > 0 {
		preparedness = min(20, int(math.Floor(l.EmergencyFund/monthly))*4)
	}
	cover := len(l.Insurance) * 10

	return clampInt(career+assetRisk-preparedness-cover, 5, 95)
}

var categoryPolicy = map[string]string{
	CategoryMedical:  InsuranceHealth,
	CategoryVehicle:  InsuranceVehicle,
	CategoryProperty: InsuranceProperty,
}

type SurvivalCost struct {
	Original float64 `json:"original"`
	Cost     float64 `json:"cost"`
	Covered  float64 `json:"covered"`
	Policy   string  `json:"policy,omitempty"`
}

// SurvivalQuote prices a survival event after the Emergency Shield rebate
// and any active policy covering the event's category.
func SurvivalQuote(l *Ledger, e LifeEvent) SurvivalCost {
	out := SurvivalCost{Original: e.Cost, Cost: e.Cost}
	if l.HasSkill(SkillEmergencyShield) {
		out.Cost = roundRupees(out.Cost * (1 - emergencyShieldRebate))
	}
	if policyType, ok := categoryPolicy[e.Category]; ok {
		if p, ok := l.ActivePolicy(policyType); ok {
			out.Covered = math.Min(out.Cost, p.Coverage)
			out.Cost -= out.Covered
			out.Policy = p.Name
		}
	}
	return out
}

// CrisisQuote adapts a catalog crisis to l before it is triggered.
func CrisisQuote(l *Ledger, c Crisis) Crisis {
	out := *c.Clone()
	if l.HasSkill(SkillDiversificationPro) {
		out.Effects.AssetVolatility *= 1 - diversificationDampening
	}
	return out
}

// ImpactQuote applies the Wealth Warrior bonus to one-time gains.
func ImpactQuote(l *Ledger, imp FinancialImpact) FinancialImpact {
	if imp.Kind == ImpactOneTimeGain && l.HasSkill(SkillWealthWarrior) {
		imp.Amount = roundRupees(math.Abs(imp.Amount) * (1 + wealthWarriorBonus))
	}
	return imp
}
