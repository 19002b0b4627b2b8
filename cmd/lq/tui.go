package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	cl "lifequest/internal/cli"
	"lifequest/internal/game"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(16)
	goodStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	eventStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("6")).Padding(0, 1)
	crisisStyle = eventStyle.BorderForeground(lipgloss.Color("9"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type viewMsg struct {
	view game.GameView
	err  error
}

type playModel struct {
	ctx     context.Context
	client  *cl.Client
	session cl.Session

	view    game.GameView
	loaded  bool
	busy    bool
	status  string
	err     string
	spinner spinner.Model
	width   int
}

func runTUI(ctx context.Context, client *cl.Client, sess cl.Session) error {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(goodStyle))
	m := playModel{ctx: ctx, client: client, session: sess, spinner: sp, busy: true}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m playModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch())
}

func (m playModel) fetch() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 30*time.Second)
		defer cancel()
		v, err := m.client.Game(ctx, m.session.AccessToken, m.session.ActiveGameID)
		return viewMsg{view: v, err: err}
	}
}

func (m playModel) nextEvent() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 60*time.Second)
		defer cancel()
		v, err := m.client.NextEvent(ctx, m.session.AccessToken, m.session.ActiveGameID, uuid.NewString())
		return viewMsg{view: v, err: err}
	}
}

func (m playModel) dispatch(in game.Intent) tea.Cmd {
	in.IdempotencyKey = uuid.NewString()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 30*time.Second)
		defer cancel()
		v, err := m.client.Dispatch(ctx, m.session.AccessToken, m.session.ActiveGameID, in)
		return viewMsg{view: v, err: err}
	}
}

func (m playModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case viewMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err.Error()
			return m, nil
		}
		m.err = ""
		m.view = msg.view
		m.loaded = true
		m.status = statusLine(msg.view)
		return m, nil
	case tea.KeyMsg:
		key := msg.String()
		if key == "q" || key == "ctrl+c" || key == "esc" {
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		cmd := m.action(key)
		if cmd == nil {
			return m, nil
		}
		m.busy = true
		m.err = ""
		return m, tea.Batch(m.spinner.Tick, cmd)
	}
	return m, nil
}

// action maps a key to a request for the current phase, or nil when the key
// does nothing there.
func (m playModel) action(key string) tea.Cmd {
	if !m.loaded {
		return nil
	}
	ev := m.view.Event
	switch m.view.Phase {
	case game.PhaseTurnEnd, game.PhaseStageTransition:
		switch key {
		case "e":
			return m.nextEvent()
		case "y":
			if m.view.Crisis == nil {
				return m.dispatch(game.Intent{Kind: game.CmdAdvanceYear})
			}
		case "m":
			if m.view.Crisis != nil {
				return m.dispatch(game.Intent{Kind: game.CmdAdvanceCrisisMonth})
			}
		}
	case game.PhaseEvent:
		if ev == nil {
			return nil
		}
		if ev.IsSurvival {
			methods := map[string]game.SurvivalMethod{
				"f": game.PayEmergencyFund,
				"s": game.PaySellAsset,
				"l": game.PayLoan,
				"h": game.PayHardship,
			}
			if method, ok := methods[key]; ok {
				return m.dispatch(game.Intent{Kind: game.CmdResolveSurvival, Method: method})
			}
			return nil
		}
		if len(ev.Choices) == 0 {
			if key == "enter" {
				return m.dispatch(game.Intent{Kind: game.CmdResolveChoice})
			}
			return nil
		}
		if len(key) == 1 && key[0] >= '1' && int(key[0]-'1') < len(ev.Choices) {
			idx := int(key[0] - '1')
			return m.dispatch(game.Intent{Kind: game.CmdResolveChoice, ChoiceIndex: &idx})
		}
	case game.PhaseCrisis:
		switch key {
		case "e":
			return m.nextEvent()
		case "m":
			return m.dispatch(game.Intent{Kind: game.CmdAdvanceCrisisMonth})
		}
	case game.PhaseCrisisWon:
		if key == "enter" {
			return m.dispatch(game.Intent{Kind: game.CmdEndCrisis, Result: game.CrisisWon})
		}
	case game.PhaseCrisisLost:
		switch key {
		case "r":
			return m.dispatch(game.Intent{Kind: game.CmdRollbackCrisisMonth})
		case "enter":
			return m.dispatch(game.Intent{Kind: game.CmdEndCrisis, Result: game.CrisisLost})
		}
	}
	return nil
}

func statusLine(v game.GameView) string {
	switch v.Phase {
	case game.PhaseCrisisWon:
		return goodStyle.Render("You weathered the crisis!")
	case game.PhaseCrisisLost:
		return badStyle.Render("The crisis broke your finances.")
	case game.PhaseTaxMinigame:
		return "Tax season. File with `lq taxes`, then return here."
	}
	if l := v.Ledger; l != nil && len(l.EventLog) > 0 {
		last := l.EventLog[len(l.EventLog)-1]
		return last.Title
	}
	return ""
}

func (m playModel) View() string {
	var b strings.Builder
	if !m.loaded {
		b.WriteString(m.spinner.View() + " loading your life...\n")
		if m.err != "" {
			b.WriteString(badStyle.Render(m.err) + "\n")
		}
		b.WriteString(helpStyle.Render("q quit"))
		return b.String()
	}

	l := m.view.Ledger
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s · age %d · %s", l.Name, l.Age, l.Stage)) + "\n\n")
	rows := [][2]string{
		{"Career", l.Career.Name},
		{"Level / XP", fmt.Sprintf("%d / %d", l.Level, l.XP)},
		{"Income", game.FormatCurrency(l.Financials.Income)},
		{"Expenses", game.FormatCurrency(l.Financials.Expenses)},
		{"Emergency Fund", game.FormatCurrency(l.EmergencyFund)},
		{"Net Worth", money(m.view.NetWorth)},
		{"Happiness", fmt.Sprintf("%d", l.Happiness)},
		{"Credit Score", fmt.Sprintf("%d", l.CreditScore)},
		{"Risk", fmt.Sprintf("%d", m.view.RiskExposure)},
	}
	for _, r := range rows {
		b.WriteString(labelStyle.Render(r[0]) + r[1] + "\n")
	}

	if c := m.view.Crisis; c != nil {
		b.WriteString("\n" + crisisStyle.Render(fmt.Sprintf("%s\nmonth %d of %d · keep net worth above %s",
			c.Name, c.Month, c.Duration, game.FormatCurrency(c.Threshold))) + "\n")
	}
	if ev := m.view.Event; ev != nil {
		b.WriteString("\n" + eventStyle.Render(eventBody(ev)) + "\n")
	}
	if m.status != "" {
		b.WriteString("\n" + m.status + "\n")
	}
	if m.err != "" {
		b.WriteString(badStyle.Render(m.err) + "\n")
	}
	b.WriteString("\n")
	if m.busy {
		b.WriteString(m.spinner.View() + " ")
	}
	b.WriteString(helpStyle.Render(keyHelp(m.view)))
	return b.String()
}

func eventBody(ev *game.LifeEvent) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(ev.Title) + "\n" + ev.Description + "\n")
	switch {
	case ev.IsSurvival:
		b.WriteString("\nBill: " + badStyle.Render(game.FormatCurrency(ev.Cost)))
	case len(ev.Choices) > 0:
		for i, c := range ev.Choices {
			fmt.Fprintf(&b, "\n%d) %s%s", i+1, c.Text, impactSuffix(c.Impact))
		}
	case ev.Impact != nil:
		b.WriteString("\n" + strings.TrimSpace(impactSuffix(ev.Impact)))
	}
	return b.String()
}

func money(v float64) string {
	if v < 0 {
		return badStyle.Render(game.FormatCurrency(v))
	}
	return goodStyle.Render(game.FormatCurrency(v))
}

func keyHelp(v game.GameView) string {
	switch v.Phase {
	case game.PhaseTurnEnd, game.PhaseStageTransition:
		if v.Crisis != nil {
			return "e event · m next crisis month · q quit"
		}
		return "e event · y next year · q quit"
	case game.PhaseEvent:
		if v.Event != nil && v.Event.IsSurvival {
			return "f emergency fund · s sell asset · l loan · h hardship · q quit"
		}
		if v.Event != nil && len(v.Event.Choices) > 0 {
			return fmt.Sprintf("1-%d choose · q quit", len(v.Event.Choices))
		}
		return "enter accept · q quit"
	case game.PhaseCrisis:
		return "e event · m next month · q quit"
	case game.PhaseCrisisWon:
		return "enter claim reward · q quit"
	case game.PhaseCrisisLost:
		return "r rollback · enter give up · q quit"
	}
	return "q quit"
}
