package game

import (
	"fmt"
	"math"
)

// applyImpact mutates l according to imp. Callers pass a cloned ledger so a
// rejected impact never leaks into the caller's state.
func applyImpact(l *Ledger, imp FinancialImpact) error {
	switch imp.Kind {
	case ImpactIncomeChange:
		l.Financials.Income += imp.Amount
	case ImpactExpenseChange:
		l.Financials.Expenses += imp.Amount
	case ImpactAssetChange:
		l.Financials.Assets += imp.Amount
	case ImpactLiabilityChange:
		l.Financials.Liabilities += imp.Amount
	case ImpactNetWorthChange:
		if imp.Amount > 0 {
			l.EmergencyFund += imp.Amount
		} else {
			l.Financials.Assets += imp.Amount
		}
	case ImpactOneTimeCost:
		l.EmergencyFund -= math.Abs(imp.Amount)
	case ImpactOneTimeGain:
		l.EmergencyFund += math.Abs(imp.Amount)
	case ImpactCreditScoreChange:
		l.addCreditScore(scoreDelta(imp.Amount))
	case ImpactHappinessChange:
		l.addHappiness(scoreDelta(imp.Amount))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownImpact, imp.Kind)
	}
	return nil
}

// scoreDelta rounds a change to a bounded score, saturating at
// ±maxScoreDelta before the int conversion.
func scoreDelta(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(-maxScoreDelta, math.Min(maxScoreDelta, v))))
}

const maxScoreDelta = 1000
