package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	cl "lifequest/internal/cli"
	"lifequest/internal/cloudsave"
	"lifequest/internal/game"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// promptPassword hides input on a terminal and falls back to a plain prompt
// when stdin is piped.
func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptRequired(label)
	}
	for {
		fmt.Printf("%s: ", label)
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		if text := strings.TrimSpace(string(raw)); text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptFloat(label string, min float64) (float64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64)
		if err != nil {
			printWarn("Enter a valid number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %s", game.FormatCurrency(min)))
			continue
		}
		return v, nil
	}
}

// promptDeductions lists the tax items and reads a comma separated set of
// item numbers to claim.
func promptDeductions(items []cl.TaxItem) ([]string, error) {
	accent.Println("\n== TAX SEASON ==")
	printInfo("Claim the business expenses. Personal spending will be rejected.")
	for i, it := range items {
		fmt.Printf("%3d) %-34s %12s\n", i+1, it.Name, game.FormatCurrency(it.Amount))
	}
	for {
		text, err := promptOptional("Items to claim (e.g. 1,3; blank for none)")
		if err != nil {
			return nil, err
		}
		picked, err := parseSelection(text, len(items))
		if err != nil {
			printWarn(err.Error())
			continue
		}
		out := make([]string, 0, len(picked))
		for _, idx := range picked {
			out = append(out, items[idx].Name)
		}
		return out, nil
	}
}

// parseSelection turns "1, 3,3" into zero-based indexes, dropping repeats.
func parseSelection(text string, n int) ([]int, error) {
	var out []int
	seen := make(map[int]bool)
	for _, part := range strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ' ' }) {
		v, err := strconv.Atoi(part)
		if err != nil || v < 1 || v > n {
			return nil, fmt.Errorf("%q is not an item number between 1 and %d", part, n)
		}
		if !seen[v-1] {
			seen[v-1] = true
			out = append(out, v-1)
		}
	}
	return out, nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}

func colorizeRupees(v float64) string {
	s := game.FormatCurrency(v)
	switch {
	case v > 0:
		return color.GreenString("+" + s)
	case v < 0:
		return color.RedString(s)
	default:
		return s
	}
}

func renderGame(v game.GameView) {
	l := v.Ledger
	if l == nil {
		printWarn("Game has no ledger yet.")
		return
	}
	accent.Printf("\n== %s, age %d (%s) ==\n", l.Name, l.Age, l.Stage)
	fmt.Printf("Career:          %s\n", l.Career.Name)
	fmt.Printf("Level / XP:      %d / %d\n", l.Level, l.XP)
	fmt.Printf("Income:          %s / year\n", game.FormatCurrency(l.Financials.Income))
	fmt.Printf("Expenses:        %s / year\n", game.FormatCurrency(l.Financials.Expenses))
	fmt.Printf("Assets:          %s\n", game.FormatCurrency(l.Financials.Assets))
	fmt.Printf("Liabilities:     %s\n", game.FormatCurrency(l.Financials.Liabilities))
	fmt.Printf("Emergency Fund:  %s\n", game.FormatCurrency(l.EmergencyFund))
	fmt.Printf("Net Worth:       %s\n", colorizeRupees(v.NetWorth))
	fmt.Printf("Happiness:       %d\n", l.Happiness)
	fmt.Printf("Credit Score:    %d\n", l.CreditScore)
	fmt.Printf("Risk Exposure:   %s\n", riskLabel(v.RiskExposure))
	fmt.Printf("Phase:           %s\n", v.Phase)
	if v.Crisis != nil {
		fmt.Println()
		danger.Printf("CRISIS: %s  month %d/%d  (survive with net worth >= %s)\n",
			v.Crisis.Name, v.Crisis.Month, v.Crisis.Duration, game.FormatCurrency(v.Crisis.Threshold))
		if v.RollbackDepth > 0 {
			printInfo(fmt.Sprintf("%d rollback snapshot(s) available.", v.RollbackDepth))
		}
	}
	if v.Event != nil {
		renderEvent(v)
		return
	}
	fmt.Println(nextStepHint(v.Phase, v.Crisis != nil))
	fmt.Println()
}

func riskLabel(score int) string {
	switch {
	case score >= 60:
		return color.RedString("%d (high)", score)
	case score >= 30:
		return color.YellowString("%d (moderate)", score)
	default:
		return color.GreenString("%d (low)", score)
	}
}

func nextStepHint(p game.Phase, inCrisis bool) string {
	switch p {
	case game.PhaseTurnEnd, game.PhaseStageTransition:
		if inCrisis {
			return "Next: `lq crisis month` to keep going, or `lq event` for this month's news."
		}
		return "Next: `lq event` to see what life brings, or `lq year` to move on."
	case game.PhaseEvent:
		return "Next: `lq choose <n>` or `lq pay <method>`."
	case game.PhaseTaxMinigame:
		return "Next: `lq taxes` to file this year's return."
	case game.PhaseCrisis:
		return "Next: `lq crisis month` to survive another month."
	case game.PhaseCrisisWon:
		return "Next: `lq crisis end won` to claim your reward."
	case game.PhaseCrisisLost:
		return "Next: `lq crisis rollback` to retry, or `lq crisis end lost`."
	default:
		return ""
	}
}

func renderEvent(v game.GameView) {
	ev := v.Event
	if ev == nil {
		printInfo("No pending event.")
		return
	}
	fmt.Println()
	if ev.IsSurvival {
		danger.Printf("!! %s !!\n", ev.Title)
	} else {
		accent.Printf("** %s **\n", ev.Title)
	}
	fmt.Println(ev.Description)
	switch {
	case ev.IsSurvival:
		if ev.OriginalCost > ev.Cost {
			printInfo(fmt.Sprintf("Bill: %s (down from %s after skills and cover)", game.FormatCurrency(ev.Cost), game.FormatCurrency(ev.OriginalCost)))
		} else {
			printInfo("Bill: " + game.FormatCurrency(ev.Cost))
		}
		fmt.Println("Cover it with `lq pay emergency_fund|sell_asset|loan|hardship`.")
	case len(ev.Choices) > 0:
		for i, c := range ev.Choices {
			fmt.Printf("%d) %s%s\n", i+1, c.Text, impactSuffix(c.Impact))
		}
		fmt.Println("Pick with `lq choose <n>`.")
	default:
		if ev.Impact != nil {
			fmt.Printf("Impact:%s\n", impactSuffix(ev.Impact))
		}
		fmt.Println("Accept with `lq choose`.")
	}
	fmt.Println()
}

func impactSuffix(imp *game.FinancialImpact) string {
	if imp == nil {
		return ""
	}
	return fmt.Sprintf("  [%s %s]", strings.ToLower(strings.ReplaceAll(string(imp.Kind), "_", " ")), game.FormatCurrency(imp.Amount))
}

func renderGames(games []game.GameSummary, active string) {
	accent.Println("\n== YOUR LIVES ==")
	if len(games) == 0 {
		printInfo("No games yet. Start one with `lq new`.")
		return
	}
	fmt.Printf("  %-36s %-16s %4s %-14s %-16s %14s\n", "ID", "NAME", "AGE", "STAGE", "PHASE", "NET WORTH")
	for _, g := range games {
		marker := " "
		if g.ID == active {
			marker = "*"
		}
		fmt.Printf("%s %-36s %-16s %4d %-14s %-16s %14s\n",
			marker, g.ID, truncate(g.Name, 16), g.Age, g.Stage, g.Phase, game.FormatCurrency(g.NetWorth))
	}
	fmt.Println()
}

func renderQuotes(quotes []game.InsuranceQuote) {
	accent.Println("\n== INSURANCE ==")
	fmt.Printf("%-10s %-18s %14s %12s %-6s\n", "TYPE", "POLICY", "COVERAGE", "PREMIUM", "STATUS")
	for _, q := range quotes {
		status := "-"
		switch {
		case q.Held:
			status = color.GreenString("held")
		case !q.Affordable:
			status = color.RedString("short")
		}
		premium := game.FormatCurrency(q.Premium)
		if q.Premium < q.ListPremium {
			premium += "*"
		}
		fmt.Printf("%-10s %-18s %14s %12s %-6s\n", q.Type, q.Name, game.FormatCurrency(q.Coverage), premium, status)
	}
	printInfo("Buy with `lq insurance buy <type>`. * includes a skill discount.")
	fmt.Println()
}

func renderSkills(v game.GameView) {
	accent.Printf("\n== SKILL TREE (XP %d) ==\n", v.Ledger.XP)
	fmt.Printf("%-20s %-22s %4s %6s %-10s\n", "ID", "NAME", "TIER", "COST", "STATUS")
	for _, s := range v.Skills {
		status := string(s.Status)
		switch s.Status {
		case game.SkillUnlocked:
			status = color.GreenString(status)
		case game.SkillAvailable:
			status = color.YellowString(status)
		}
		fmt.Printf("%-20s %-22s %4d %6d %-10s\n", s.ID, truncate(s.Name, 22), s.Tier, s.Cost, status)
		fmt.Printf("  %s\n", s.Buff)
	}
	fmt.Println()
}

func renderTaxFiling(f game.TaxFiling) {
	accent.Println("\n== TAX RETURN ==")
	fmt.Printf("Gross Income:  %s\n", game.FormatCurrency(f.GrossIncome))
	fmt.Printf("Deductions:    %s\n", game.FormatCurrency(f.Deductions))
	fmt.Printf("Tax Owed:      %s\n", game.FormatCurrency(f.TaxOwed))
	fmt.Printf("Tax Saved:     %s\n", colorizeRupees(f.TaxSaved))
	for _, name := range f.Rejected {
		printWarn("Rejected: " + name)
	}
	if f.Hint != "" {
		printInfo(f.Hint)
	}
	fmt.Println()
}

func renderCrises(crises []game.Crisis) {
	accent.Println("\n== ECONOMIC CRISES ==")
	for _, c := range crises {
		fmt.Printf("%-20s %2d months  income -%.0f%%  expenses +%.0f%%  assets %+.0f%%\n",
			c.Name, c.Duration, c.Effects.IncomeReduction*100, c.Effects.ExpenseIncrease*100, c.Effects.AssetVolatility*100)
		fmt.Printf("  %s\n", c.Description)
	}
	printInfo("Start one with `lq crisis start <name>`.")
	fmt.Println()
}

func renderLog(entries []game.LogEntry) {
	accent.Println("\n== LIFE LOG ==")
	if len(entries) == 0 {
		printInfo("Nothing logged yet.")
		return
	}
	for _, e := range entries {
		fmt.Printf("[age %2d] %s\n", e.Age, e.Title)
		if e.Summary != "" {
			fmt.Printf("         %s\n", e.Summary)
		}
		if len(e.Tags) > 0 {
			neutral.Printf("         #%s\n", strings.Join(e.Tags, " #"))
		}
	}
	fmt.Println()
}

func renderSaves(saves []cloudsave.Save) {
	accent.Println("\n== CLOUD SAVES ==")
	if len(saves) == 0 {
		printInfo("No cloud saves yet.")
		return
	}
	fmt.Printf("%-12s %-16s %4s %-20s\n", "SLOT", "NAME", "AGE", "UPDATED")
	for _, s := range saves {
		fmt.Printf("%-12s %-16s %4d %-20s\n", s.Slot, truncate(s.Name, 16), s.Age, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Println()
}

func renderSyncResults(results []game.SyncResult) {
	accent.Println("\n== SYNC ==")
	pending := 0
	for _, r := range results {
		switch r.Status {
		case game.SyncApplied:
			printSuccess(fmt.Sprintf("%-24s applied (%s)", r.Kind, r.Phase))
		case game.SyncDuplicate:
			printInfo(fmt.Sprintf("%-24s already applied", r.Kind))
		case game.SyncRejected:
			printError(fmt.Sprintf("%-24s rejected: %s", r.Kind, r.Error))
		case game.SyncSkipped:
			pending++
			printWarn(fmt.Sprintf("%-24s held back behind an earlier intent", r.Kind))
		default:
			pending++
			printWarn(fmt.Sprintf("%-24s failed, will retry: %s", r.Kind, r.Error))
		}
	}
	if pending > 0 {
		printInfo(fmt.Sprintf("%d intent(s) still queued. Run `lq sync` again later.", pending))
	}
	fmt.Println()
}
