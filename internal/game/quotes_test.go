package game

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func unlock(l *Ledger, ids ...SkillID) {
	at := time.Unix(0, 0).UTC()
	for _, id := range ids {
		l.Skills[id] = SkillState{Status: SkillUnlocked, UnlockedAt: &at}
	}
}

func TestFileTaxes(t *testing.T) {
	l := NewLedger(Profile{Name: "Asha", Career: "Teacher", MonthlySalary: 50_000})
	tests := []struct {
		name      string
		claimed   []string
		skill     bool
		wantDeduc float64
		wantSaved float64
		rejected  int
	}{
		{name: "nothing", claimed: nil, wantDeduc: 0, wantSaved: 0},
		{name: "valid only", claimed: []string{"New Work Laptop", "Client Dinners"}, wantDeduc: 95_000, wantSaved: 14_250},
		{name: "mixed", claimed: []string{"new work laptop", "Luxury Watch", "Netflix Subscription"}, wantDeduc: 80_000, wantSaved: 12_000, rejected: 2},
		{name: "duplicate claim", claimed: []string{"Client Dinners", "Client Dinners"}, wantDeduc: 15_000, wantSaved: 2_250},
		{name: "detective bonus", claimed: []string{"New Work Laptop"}, skill: true, wantDeduc: 80_000, wantSaved: 13_800},
	}
	for _, tc := range tests {
		led := l.Clone()
		if tc.skill {
			unlock(led, SkillDeductionDetective)
		}
		got, err := FileTaxes(led, tc.claimed)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got.Deductions != tc.wantDeduc || got.TaxSaved != tc.wantSaved || len(got.Rejected) != tc.rejected {
			t.Fatalf("%s: got deductions=%v saved=%v rejected=%v", tc.name, got.Deductions, got.TaxSaved, got.Rejected)
		}
		if got.BaselineTax != 90_000 {
			t.Fatalf("%s: baseline=%v", tc.name, got.BaselineTax)
		}
	}
	if _, err := FileTaxes(l, []string{"Yacht"}); !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("got %v want ErrInvalidCommand", err)
	}
}

func TestInsuranceQuotes(t *testing.T) {
	l := NewLedger(Profile{Name: "Asha", Career: "Teacher", MonthlySalary: 50_000})
	quotes := InsuranceQuotes(l)
	if len(quotes) != 3 {
		t.Fatalf("quotes=%d", len(quotes))
	}
	for _, q := range quotes {
		if q.Premium != q.ListPremium || q.Held || !q.Affordable {
			t.Fatalf("unexpected base quote %+v", q)
		}
	}

	unlock(l, SkillInsuranceGuardian)
	l.Insurance = append(l.Insurance, InsurancePolicy{Type: InsuranceVehicle, Name: "AutoGuard", ActiveUntilAge: 30})
	q, err := QuoteInsurance(l, "vehicle")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Premium != 13_500 || !q.Held {
		t.Fatalf("guardian quote=%+v", q)
	}
	l.Age = 31
	if q, _ := QuoteInsurance(l, InsuranceVehicle); q.Held {
		t.Fatalf("expired policy reported as held")
	}
	if _, err := QuoteInsurance(l, "Pet"); !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("got %v want ErrUnknownProduct", err)
	}
}

func TestRiskExposure(t *testing.T) {
	tests := []struct {
		name  string
		setup func(l *Ledger)
		want  int
	}{
		{
			name:  "new software engineer",
			setup: func(l *Ledger) {},
			// 30 + 0 assets - floor(150000/35000)=4 months*4=16
			want: 14,
		},
		{
			name: "unknown career, large assets",
			setup: func(l *Ledger) {
				l.Career.Name = "Astronaut"
				l.Financials.Assets = 30_000_000
				l.EmergencyFund = 0
			},
			want: 70,
		},
		{
			name: "promoted title keeps career risk",
			setup: func(l *Ledger) {
				l.Career.Name = "Senior Graphic Designer"
				l.EmergencyFund = 0
				l.Financials.Assets = 0
			},
			want: 40,
		},
		{
			name: "insured floor",
			setup: func(l *Ledger) {
				l.Insurance = make([]InsurancePolicy, 5)
			},
			want: 5,
		},
	}
	for _, tc := range tests {
		l := NewLedger(Profile{Name: "Asha", Career: "Software Engineer", MonthlySalary: 50_000})
		tc.setup(l)
		if got := RiskExposure(l); got != tc.want {
			t.Fatalf("%s: got %d want %d", tc.name, got, tc.want)
		}
	}
}

func TestSurvivalQuote(t *testing.T) {
	ev := LifeEvent{Title: "Hospital Stay", IsSurvival: true, Cost: 600_000, Category: CategoryMedical}

	l := NewLedger(Profile{Name: "Asha", Career: "Doctor", MonthlySalary: 50_000})
	if q := SurvivalQuote(l, ev); q.Cost != 600_000 || q.Covered != 0 {
		t.Fatalf("plain quote=%+v", q)
	}

	unlock(l, SkillEmergencyShield)
	l.Insurance = append(l.Insurance, InsurancePolicy{Type: InsuranceHealth, Name: "MediShield Plus", Coverage: 500_000, ActiveUntilAge: 40})
	q := SurvivalQuote(l, ev)
	if q.Original != 600_000 || q.Cost != 40_000 || q.Covered != 500_000 || q.Policy != "MediShield Plus" {
		t.Fatalf("covered quote=%+v", q)
	}

	small := ev
	small.Cost = 10_000
	if q := SurvivalQuote(l, small); q.Cost != 0 {
		t.Fatalf("fully covered event should cost 0, got %+v", q)
	}

	other := ev
	other.Category = CategoryVehicle
	if q := SurvivalQuote(l, other); q.Covered != 0 {
		t.Fatalf("health policy must not cover vehicle events: %+v", q)
	}
}

func TestSkillBuffQuotes(t *testing.T) {
	l := NewLedger(Profile{Name: "Asha", Career: "Doctor", MonthlySalary: 50_000})
	c := Crisis{Name: "Crash", Duration: 2, Effects: CrisisEffects{AssetVolatility: -0.4}}
	if got := CrisisQuote(l, c); got.Effects.AssetVolatility != -0.4 {
		t.Fatalf("volatility=%v", got.Effects.AssetVolatility)
	}
	gain := FinancialImpact{Kind: ImpactOneTimeGain, Amount: 10_000}
	if got := ImpactQuote(l, gain); got.Amount != 10_000 {
		t.Fatalf("gain=%v", got.Amount)
	}

	unlock(l, SkillDiversificationPro, SkillWealthWarrior)
	if got := CrisisQuote(l, c); got.Effects.AssetVolatility >= -0.37 || got.Effects.AssetVolatility <= -0.39 {
		t.Fatalf("dampened volatility=%v", got.Effects.AssetVolatility)
	}
	if got := ImpactQuote(l, gain); got.Amount != 10_500 {
		t.Fatalf("boosted gain=%v", got.Amount)
	}
	cost := FinancialImpact{Kind: ImpactOneTimeCost, Amount: 10_000}
	if got := ImpactQuote(l, cost); got.Amount != 10_000 {
		t.Fatalf("costs must not be boosted: %v", got.Amount)
	}
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{in: 0, want: "₹0"},
		{in: 999.6, want: "₹1,000"},
		{in: 15_000, want: "₹15,000"},
		{in: -2_400, want: "-₹2,400"},
	}
	for _, tc := range tests {
		if got := FormatCurrency(tc.in); got != tc.want {
			t.Fatalf("FormatCurrency(%v)=%q want %q", tc.in, got, tc.want)
		}
	}
	if got := FormatCurrency(12_345_678); !strings.HasPrefix(got, "₹") || !strings.HasSuffix(got, ",678") {
		t.Fatalf("large amount=%q", got)
	}
}
