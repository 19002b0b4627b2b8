package narrative

import (
	"fmt"
	"strings"

	"lifequest/internal/game"
)

const normalInstructions = `You are a financial life simulator called LifeQuest.
Generate a realistic and impactful standard life event for a player in India.
The event should fit their age and life stage. Be creative.
- Early Career: career growth, learning, small investments, lifestyle inflation.
- Mid-Career: family, housing, major investments, health, work-life balance.
- Late Career: retirement planning, health, legacy, winding down work.
Address the player by name.
The event is either a CONSEQUENCE (something that just happens) or a CHOICE (the player decides).
Set isSurvival to false. Do not provide cost or category.
- For a CHOICE, provide 2-3 distinct options with clear financial trade-offs.
- For a CONSEQUENCE, provide a direct financial impact.`

const survivalInstructions = `You are a financial life simulator called LifeQuest.
Generate a realistic, negative survival event for a player in India: an unexpected, urgent expense.
The event must be a CONSEQUENCE with isSurvival set to true.
Provide a specific cost between 25% and 75% of their emergency fund.
Provide a category: medical, vehicle, property or general.
Do not provide impact or choices.`

const crisisInstructions = `You are a financial crisis simulator. The player is in a severe economic downturn called %q.
This is month %d of %d. Income is reduced and expenses are high.
Generate a CHOICE event with a difficult trade-off. It must not be a survival event and must not have a cost.
Choices are about cutting costs, finding income, managing debt or personal sacrifices.
Impacts are immediate: ONE_TIME_COST or ONE_TIME_GAIN.
Set isSurvival to false and provide 2-3 choices.`

// Prompt renders the request sent to the model for one event.
func Prompt(snap game.Snapshot, mode game.NarrativeMode) string {
	var b strings.Builder
	switch {
	case mode == game.ModeCrisis && snap.Crisis != nil:
		fmt.Fprintf(&b, crisisInstructions, snap.Crisis.Name, snap.Crisis.CurrentMonth, snap.Crisis.Duration)
		b.WriteString("\n\nPlayer's situation:\n")
		fmt.Fprintf(&b, "- Name: %s\n- Age: %d\n- Remaining Emergency Fund: %s\n", snap.Name, snap.Age, game.FormatCurrency(snap.EmergencyFund))
		b.WriteString("\nGenerate the JSON for this crisis month's event.")
		return b.String()
	case mode == game.ModeSurvival:
		b.WriteString(survivalInstructions)
	default:
		b.WriteString(normalInstructions)
	}
	b.WriteString("\n\nPlayer's profile:\n")
	fmt.Fprintf(&b, "- Name: %s\n", snap.Name)
	fmt.Fprintf(&b, "- Age: %d\n", snap.Age)
	fmt.Fprintf(&b, "- Life Stage: %s\n", snap.Stage)
	fmt.Fprintf(&b, "- Career: %s\n", snap.Career)
	fmt.Fprintf(&b, "- Yearly Income: %s\n", game.FormatCurrency(snap.Income))
	fmt.Fprintf(&b, "- Net Worth: %s\n", game.FormatCurrency(snap.NetWorth))
	fmt.Fprintf(&b, "- Emergency Fund: %s\n", game.FormatCurrency(snap.EmergencyFund))
	b.WriteString("\nReturn the event as a JSON object matching the schema. Amounts for INCOME_CHANGE and EXPENSE_CHANGE are yearly.")
	return b.String()
}
