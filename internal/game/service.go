package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"lifequest/internal/metrics"

	"github.com/google/uuid"
)

// Service orchestrates game sessions around the engine: it loads and stores
// state, resolves intents, consults the narrator and rolls for crises.
type Service struct {
	store    Store
	narrator Narrator
	crises   []Crisis
	engine   *Engine
	log      *slog.Logger
	mu       sync.Mutex
	rand     *mathrand.Rand
	roll     func() float64
}

func NewService(store Store, narrator Narrator, crises []Crisis, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:    store,
		narrator: narrator,
		crises:   append([]Crisis(nil), crises...),
		engine:   NewEngine(),
		log:      logger,
		rand:     mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
	s.roll = s.nextFloat
	return s
}

func (s *Service) Crises() []Crisis {
	out := make([]Crisis, len(s.crises))
	for i := range s.crises {
		out[i] = *s.crises[i].Clone()
	}
	return out
}

func (s *Service) CreateGame(ctx context.Context, in CreateGameInput) (GameView, error) {
	in.Profile.Name = strings.TrimSpace(in.Profile.Name)
	in.Profile.Career = strings.TrimSpace(in.Profile.Career)
	st, err := s.apply(State{Phase: PhaseOnboarding}, StartGame{Profile: in.Profile})
	if err != nil {
		return GameView{}, err
	}
	now := time.Now().UTC()
	g := Game{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		State:     st,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.InsertGame(ctx, s.idemKey(in.IdempotencyKey), g); err != nil {
		return GameView{}, err
	}
	s.log.Info("game created", "user_id", in.UserID, "game_id", g.ID, "career", in.Profile.Career)
	return viewOf(g), nil
}

func (s *Service) Game(ctx context.Context, userID, gameID string) (GameView, error) {
	g, err := s.store.GetGame(ctx, userID, gameID)
	if err != nil {
		return GameView{}, err
	}
	return viewOf(g), nil
}

func (s *Service) ListGames(ctx context.Context, userID string) ([]GameSummary, error) {
	games, err := s.store.ListGames(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]GameSummary, 0, len(games))
	for _, g := range games {
		sum := GameSummary{ID: g.ID, Phase: g.State.Phase, UpdatedAt: g.UpdatedAt}
		if l := g.State.Ledger; l != nil {
			sum.Name = l.Name
			sum.Age = l.Age
			sum.Stage = l.Stage
			sum.NetWorth = l.NetWorth()
		}
		out = append(out, sum)
	}
	return out, nil
}

// Dispatch resolves an intent against the stored game and applies the
// resulting command in one store transaction.
func (s *Service) Dispatch(ctx context.Context, in DispatchInput) (GameView, error) {
	key := s.idemKey(in.Intent.IdempotencyKey)
	g, err := s.store.UpdateGame(ctx, in.UserID, in.GameID, key, string(in.Intent.Kind), func(g *Game) error {
		next, err := s.dispatch(g.State, in.Intent)
		if err != nil {
			return err
		}
		g.State = next
		return nil
	})
	if err != nil {
		return GameView{}, err
	}
	return viewOf(g), nil
}

func (s *Service) dispatch(st State, in Intent) (State, error) {
	if st.Ledger == nil {
		return st, ErrNoGame
	}
	l := st.Ledger
	switch in.Kind {
	case CmdAdvanceYear:
		if l.Crisis != nil {
			return st, fmt.Errorf("%w: %s is still running", ErrCrisisActive, l.Crisis.Name)
		}
		if st.Event != nil || st.Phase != PhaseTurnEnd {
			return st, fmt.Errorf("%w: cannot advance the year during %s", ErrInvalidPhase, st.Phase)
		}
		next, err := s.apply(st, AdvanceYear{})
		if err != nil || next.Phase != PhaseTurnEnd {
			return next, err
		}
		return s.rollCrisis(next)

	case CmdResolveChoice:
		ev := st.Event
		if ev == nil {
			return st, ErrNoEvent
		}
		if ev.IsSurvival {
			return st, fmt.Errorf("%w: survival events are resolved with a payment method", ErrInvalidChoice)
		}
		choice, err := pickChoice(*ev, in.ChoiceIndex)
		if err != nil {
			return st, err
		}
		if choice.Impact != nil {
			imp := ImpactQuote(l, *choice.Impact)
			choice.Impact = &imp
		}
		return s.apply(st, ResolveChoice{Choice: choice, EventTitle: ev.Title})

	case CmdResolveSurvival:
		ev := st.Event
		if ev == nil {
			return st, ErrNoEvent
		}
		if !ev.IsSurvival {
			return st, fmt.Errorf("%w: %q is not a survival event", ErrInvalidChoice, ev.Title)
		}
		return s.apply(st, ResolveSurvival{Method: in.Method, Cost: ev.Cost, EventTitle: ev.Title})

	case CmdBuyInsurance:
		q, err := QuoteInsurance(l, in.InsuranceType)
		if err != nil {
			return st, err
		}
		if q.Held {
			return st, fmt.Errorf("%w: %s", ErrPolicyActive, q.Type)
		}
		return s.apply(st, BuyInsurance{Product: q.InsuranceProduct})

	case CmdActivateSkill:
		return s.apply(st, ActivateSkill{Skill: in.Skill})

	case CmdCompleteTaxMinigame:
		if st.Phase != PhaseTaxMinigame {
			return st, fmt.Errorf("%w: no tax season open", ErrInvalidPhase)
		}
		filing, err := FileTaxes(l, in.Deductions)
		if err != nil {
			return st, err
		}
		return s.apply(st, CompleteTaxMinigame{Deductions: filing.Deductions, TaxSaved: filing.TaxSaved})

	case CmdTriggerCrisis:
		if st.Phase != PhaseTurnEnd || st.Event != nil {
			return st, fmt.Errorf("%w: crises start between turns", ErrInvalidPhase)
		}
		c, err := s.lookupCrisis(in.CrisisName)
		if err != nil {
			return st, err
		}
		return s.triggerCrisis(st, c)

	case CmdAdvanceCrisisMonth:
		if st.Phase != PhaseCrisis && st.Phase != PhaseTurnEnd {
			return st, fmt.Errorf("%w: cannot advance a crisis month during %s", ErrInvalidPhase, st.Phase)
		}
		if st.Event != nil {
			return st, fmt.Errorf("%w: resolve %q first", ErrInvalidPhase, st.Event.Title)
		}
		return s.apply(st, AdvanceCrisisMonth{})

	case CmdEndCrisis:
		want := map[CrisisResult]Phase{CrisisWon: PhaseCrisisWon, CrisisLost: PhaseCrisisLost}[in.Result]
		if want == "" || st.Phase != want {
			return st, fmt.Errorf("%w: crisis result %q does not match %s", ErrInvalidPhase, in.Result, st.Phase)
		}
		return s.apply(st, EndCrisis{Result: in.Result})

	case CmdRollbackCrisisMonth:
		if st.Phase != PhaseCrisisLost && l.Crisis == nil {
			return st, ErrNoActiveCrisis
		}
		return s.apply(st, RollbackCrisisMonth{})
	}
	return st, fmt.Errorf("%w: %q", ErrInvalidCommand, in.Kind)
}

func pickChoice(ev LifeEvent, idx *int) (Choice, error) {
	if len(ev.Choices) == 0 {
		// consequence events carry their outcome in the description
		return Choice{Text: "Acknowledge", Outcome: ev.Description, Impact: ev.Impact}, nil
	}
	if idx == nil || *idx < 0 || *idx >= len(ev.Choices) {
		return Choice{}, fmt.Errorf("%w: pick 0..%d", ErrInvalidChoice, len(ev.Choices)-1)
	}
	return ev.Choices[*idx], nil
}

// rollCrisis starts a random catalog crisis with the stage's crisis odds.
func (s *Service) rollCrisis(st State) (State, error) {
	stage, ok := StageDetails(st.Ledger.Stage)
	if !ok || stage.CrisisOdds <= 0 || len(s.crises) == 0 {
		return st, nil
	}
	if s.roll() >= stage.CrisisOdds {
		return st, nil
	}
	c := s.crises[int(s.roll()*float64(len(s.crises)))%len(s.crises)]
	return s.triggerCrisis(st, c)
}

func (s *Service) triggerCrisis(st State, c Crisis) (State, error) {
	next, err := s.apply(st, TriggerCrisis{Template: CrisisQuote(st.Ledger, c)})
	if err != nil {
		return st, err
	}
	metrics.ObserveCrisis(c.Name)
	s.log.Info("crisis started", "crisis", c.Name, "age", next.Ledger.Age)
	return next, nil
}

func (s *Service) lookupCrisis(name string) (Crisis, error) {
	for _, c := range s.crises {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return c, nil
		}
	}
	return Crisis{}, fmt.Errorf("%w: %q", ErrUnknownCrisis, name)
}

// NextEvent asks the narrator for the next event and presents it. The
// narrator runs outside the store transaction; a game that moved on in the
// meantime is reported as ErrTxConflict.
func (s *Service) NextEvent(ctx context.Context, userID, gameID, idemKey string) (GameView, error) {
	g, err := s.store.GetGame(ctx, userID, gameID)
	if err != nil {
		return GameView{}, err
	}
	ev, err := s.eventFor(ctx, g.State)
	if err != nil {
		return GameView{}, err
	}
	out, err := s.store.UpdateGame(ctx, userID, gameID, s.idemKey(idemKey), string(CmdPresentEvent), func(cur *Game) error {
		if cur.Version != g.Version {
			return ErrTxConflict
		}
		next, err := s.apply(cur.State, PresentEvent{Event: ev})
		if err != nil {
			return err
		}
		cur.State = next
		return nil
	})
	if err != nil {
		return GameView{}, err
	}
	return viewOf(out), nil
}

func (s *Service) eventFor(ctx context.Context, st State) (LifeEvent, error) {
	l := st.Ledger
	if l == nil {
		return LifeEvent{}, ErrNoGame
	}
	if st.Event != nil {
		return LifeEvent{}, fmt.Errorf("%w: %q is still pending", ErrInvalidPhase, st.Event.Title)
	}
	switch {
	case st.Phase == PhaseStageTransition:
		return StageTransitionEvent(l.Stage), nil
	case st.Phase != PhaseTurnEnd && st.Phase != PhaseCrisis:
		return LifeEvent{}, fmt.Errorf("%w: no event during %s", ErrInvalidPhase, st.Phase)
	case l.Crisis != nil:
		return s.narrate(ctx, l, ModeCrisis), nil
	case resolvedThisYear(l):
		return LifeEvent{}, fmt.Errorf("%w: this year's event is already resolved", ErrInvalidPhase)
	}

	mode := ModeNormal
	if s.roll() < SurvivalEventChance {
		mode = ModeSurvival
	}
	ev := s.narrate(ctx, l, mode)
	if ev.IsSurvival {
		q := SurvivalQuote(l, ev)
		ev.OriginalCost = q.Original
		ev.Cost = q.Cost
	}
	return ev, nil
}

// narrate never fails: narrator errors and unusable events fall back to the
// calm-year event.
func (s *Service) narrate(ctx context.Context, l *Ledger, mode NarrativeMode) LifeEvent {
	if s.narrator == nil {
		return CalmYearEvent()
	}
	start := time.Now()
	ev, err := s.narrator.LifeEvent(ctx, SnapshotOf(l), mode)
	if err == nil {
		err = ValidateEvent(ev)
	}
	if err == nil && mode == ModeCrisis && ev.IsSurvival {
		err = errors.New("crisis events must not be survival events")
	}
	if err != nil {
		metrics.ObserveNarrative(string(mode), "fallback", time.Since(start))
		s.log.Warn("narrative source failed, using fallback event", "mode", mode, "err", err)
		return CalmYearEvent()
	}
	metrics.ObserveNarrative(string(mode), "ok", time.Since(start))
	return ev
}

func resolvedThisYear(l *Ledger) bool {
	for i := len(l.EventLog) - 1; i >= 0; i-- {
		e := l.EventLog[i]
		if e.Age != l.Age {
			return false
		}
		for _, tag := range e.Tags {
			if tag == "choice" || tag == "survival" {
				return true
			}
		}
	}
	return false
}

// FileTaxes prices the claimed deductions and closes the tax season.
func (s *Service) FileTaxes(ctx context.Context, userID, gameID string, items []string, idemKey string) (TaxResult, error) {
	var out TaxResult
	g, err := s.store.UpdateGame(ctx, userID, gameID, s.idemKey(idemKey), string(CmdCompleteTaxMinigame), func(g *Game) error {
		if g.State.Ledger == nil {
			return ErrNoGame
		}
		if g.State.Phase != PhaseTaxMinigame {
			return fmt.Errorf("%w: no tax season open", ErrInvalidPhase)
		}
		filing, err := FileTaxes(g.State.Ledger, items)
		if err != nil {
			return err
		}
		next, err := s.apply(g.State, CompleteTaxMinigame{Deductions: filing.Deductions, TaxSaved: filing.TaxSaved})
		if err != nil {
			return err
		}
		out.Filing = filing
		g.State = next
		return nil
	})
	if err != nil {
		return TaxResult{}, err
	}
	out.Game = viewOf(g)
	return out, nil
}

func (s *Service) InsuranceQuotes(ctx context.Context, userID, gameID string) ([]InsuranceQuote, error) {
	g, err := s.store.GetGame(ctx, userID, gameID)
	if err != nil {
		return nil, err
	}
	if g.State.Ledger == nil {
		return nil, ErrNoGame
	}
	return InsuranceQuotes(g.State.Ledger), nil
}

func (s *Service) EventLog(ctx context.Context, userID, gameID, tag string) ([]LogEntry, error) {
	g, err := s.store.GetGame(ctx, userID, gameID)
	if err != nil {
		return nil, err
	}
	if g.State.Ledger == nil {
		return nil, ErrNoGame
	}
	if tag = strings.TrimSpace(tag); tag == "" {
		return append([]LogEntry{}, g.State.Ledger.EventLog...), nil
	}
	out := g.State.Ledger.EventsTagged(tag)
	if out == nil {
		out = []LogEntry{}
	}
	return out, nil
}

// Export renders the ledger as an indented JSON save document.
func (s *Service) Export(ctx context.Context, userID, gameID string) ([]byte, error) {
	g, err := s.store.GetGame(ctx, userID, gameID)
	if err != nil {
		return nil, err
	}
	if g.State.Ledger == nil {
		return nil, ErrNoGame
	}
	return json.MarshalIndent(g.State.Ledger, "", "  ")
}

// Import loads a save document. With an empty GameID a new game is created
// for it; otherwise the existing game's ledger is replaced.
func (s *Service) Import(ctx context.Context, in ImportInput) (GameView, error) {
	var l Ledger
	if err := json.Unmarshal(in.Data, &l); err != nil {
		s.log.Warn("save import rejected", "user_id", in.UserID, "err", err)
		return GameView{}, fmt.Errorf("%w: %v", ErrInvalidSave, err)
	}
	normalizeImported(&l)
	key := s.idemKey(in.IdempotencyKey)

	if in.GameID == "" {
		st, err := s.apply(State{Phase: PhaseOnboarding}, LoadLedger{Ledger: &l})
		if err != nil {
			return GameView{}, err
		}
		now := time.Now().UTC()
		g := Game{ID: uuid.NewString(), UserID: in.UserID, State: st, Version: 1, CreatedAt: now, UpdatedAt: now}
		if err := s.store.InsertGame(ctx, key, g); err != nil {
			return GameView{}, err
		}
		s.log.Info("game imported", "user_id", in.UserID, "game_id", g.ID, "age", l.Age)
		return viewOf(g), nil
	}

	g, err := s.store.UpdateGame(ctx, in.UserID, in.GameID, key, string(CmdLoadLedger), func(g *Game) error {
		next, err := s.apply(g.State, LoadLedger{Ledger: &l})
		if err != nil {
			return err
		}
		g.State = next
		return nil
	})
	if err != nil {
		return GameView{}, err
	}
	return viewOf(g), nil
}

// normalizeImported fills collections a hand-edited save may omit.
func normalizeImported(l *Ledger) {
	if l.Level < 1 {
		l.Level = 1
	}
	if l.Skills == nil {
		l.Skills = make(map[SkillID]SkillState, len(skillTree))
	}
	for _, sk := range skillTree {
		if _, ok := l.Skills[sk.ID]; !ok {
			l.Skills[sk.ID] = SkillState{Status: SkillLocked}
		}
	}
	promoteReadySkills(l)
	if l.Stage == "" {
		if st, ok := StageForAge(l.Age); ok {
			l.Stage = st.Stage
		}
	}
	l.Happiness = clampInt(l.Happiness, MinHappiness, MaxHappiness)
	l.CreditScore = clampInt(l.CreditScore, MinCreditScore, MaxCreditScore)
}

// ReplaySync applies queued offline intents in order. Duplicates are reported
// as already applied so a client can safely resend its whole queue. Once an
// intent for a game fails to apply, the game's later intents are skipped so
// they never run against a state they were not queued for.
func (s *Service) ReplaySync(ctx context.Context, userID string, commands []SyncCommand) []SyncResult {
	results := make([]SyncResult, 0, len(commands))
	halted := make(map[string]bool)
	for _, cmd := range commands {
		res := SyncResult{GameID: cmd.GameID, Kind: string(cmd.Intent.Kind), IdempotencyKey: cmd.Intent.IdempotencyKey}
		if halted[cmd.GameID] {
			res.Status = SyncSkipped
			results = append(results, res)
			continue
		}
		view, err := s.Dispatch(ctx, DispatchInput{UserID: userID, GameID: cmd.GameID, Intent: cmd.Intent})
		switch {
		case err == nil:
			res.Status = SyncApplied
			res.Phase = view.Phase
		case errors.Is(err, ErrDuplicateIdempotency):
			res.Status = SyncDuplicate
		case IsDomainError(err) || errors.Is(err, ErrGameNotFound):
			res.Status = SyncRejected
			res.Error = err.Error()
			halted[cmd.GameID] = true
		default:
			s.log.Warn("sync replay failed", "game_id", cmd.GameID, "kind", cmd.Intent.Kind, "err", err)
			res.Status = SyncError
			res.Error = err.Error()
			halted[cmd.GameID] = true
		}
		results = append(results, res)
	}
	return results
}

func (s *Service) apply(st State, cmd Command) (State, error) {
	next, err := s.engine.Apply(st, cmd)
	metrics.ObserveCommand(string(cmd.Kind()), commandResult(err))
	if err != nil {
		return st, err
	}
	metrics.ObservePhase(string(st.Phase), string(next.Phase))
	return next, nil
}

func commandResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsDomainError(err):
		return "rejected"
	default:
		return "error"
	}
}

var domainErrors = []error{
	ErrNoGame, ErrInsufficientFunds, ErrInsufficientXP, ErrSkillNotFound, ErrSkillLocked,
	ErrSkillAlreadyUnlocked, ErrUnknownImpact, ErrUnknownSurvivalMethod, ErrNoActiveCrisis,
	ErrCrisisActive, ErrInvalidPhase, ErrNoEvent, ErrInvalidChoice, ErrInvalidCommand,
	ErrInvalidProfile, ErrInvalidSave, ErrUnknownProduct, ErrPolicyActive, ErrUnknownCrisis,
}

// IsDomainError reports whether err is a rule violation rather than an
// infrastructure failure.
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *Service) idemKey(key string) string {
	if key = strings.TrimSpace(key); key != "" {
		return key
	}
	return uuid.NewString()
}

func (s *Service) nextFloat() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Float64()
}

func viewOf(g Game) GameView {
	st := g.State
	v := GameView{
		ID:            g.ID,
		Phase:         st.Phase,
		Ledger:        st.Ledger,
		Event:         st.Event,
		RollbackDepth: st.RollbackDepth(),
		Version:       g.Version,
		UpdatedAt:     g.UpdatedAt,
	}
	if l := st.Ledger; l != nil {
		v.NetWorth = l.NetWorth()
		v.RiskExposure = RiskExposure(l)
		for _, sk := range skillTree {
			v.Skills = append(v.Skills, SkillView{Skill: sk, Status: l.SkillStatus(sk.ID)})
		}
		if c := l.Crisis; c != nil {
			v.Crisis = &CrisisProgress{
				Name:      c.Name,
				Month:     c.CurrentMonth,
				Duration:  c.Duration,
				Remaining: c.Remaining(),
				Threshold: c.SurvivalThreshold,
			}
		}
	}
	return v
}
