package game

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"
)

type memStore struct {
	mu    sync.Mutex
	games map[string]Game
	keys  map[string]bool

	// updates to the game with id down fail with downErr
	down    string
	downErr error
}

func newMemStore() *memStore {
	return &memStore{games: map[string]Game{}, keys: map[string]bool{}}
}

func (m *memStore) claim(userID, key string) error {
	if m.keys[userID+"/"+key] {
		return ErrDuplicateIdempotency
	}
	m.keys[userID+"/"+key] = true
	return nil
}

func (m *memStore) InsertGame(_ context.Context, key string, g Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.claim(g.UserID, key); err != nil {
		return err
	}
	m.games[g.ID] = Game{ID: g.ID, UserID: g.UserID, State: g.State.Clone(), Version: g.Version, CreatedAt: g.CreatedAt, UpdatedAt: g.UpdatedAt}
	return nil
}

func (m *memStore) GetGame(_ context.Context, userID, gameID string) (Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok || g.UserID != userID {
		return Game{}, ErrGameNotFound
	}
	g.State = g.State.Clone()
	return g, nil
}

func (m *memStore) ListGames(_ context.Context, userID string) ([]Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Game
	for _, g := range m.games {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpdateGame(_ context.Context, userID, gameID, key, _ string, fn func(*Game) error) (Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gameID == m.down {
		return Game{}, m.downErr
	}
	g, ok := m.games[gameID]
	if !ok || g.UserID != userID {
		return Game{}, ErrGameNotFound
	}
	if m.keys[userID+"/"+key] {
		return Game{}, ErrDuplicateIdempotency
	}
	work := g
	work.State = g.State.Clone()
	if err := fn(&work); err != nil {
		return Game{}, err
	}
	m.keys[userID+"/"+key] = true
	work.Version++
	work.UpdatedAt = time.Now().UTC()
	m.games[gameID] = work
	return work, nil
}

type scriptedNarrator struct {
	events []LifeEvent
	err    error
	modes  []NarrativeMode
}

func (n *scriptedNarrator) LifeEvent(_ context.Context, _ Snapshot, mode NarrativeMode) (LifeEvent, error) {
	n.modes = append(n.modes, mode)
	if n.err != nil {
		return LifeEvent{}, n.err
	}
	if len(n.events) == 0 {
		return CalmYearEvent(), nil
	}
	ev := n.events[0]
	n.events = n.events[1:]
	return ev, nil
}

func fixedRolls(vals ...float64) func() float64 {
	i := 0
	return func() float64 {
		v := vals[i%len(vals)]
		i++
		return v
	}
}

func testService(t *testing.T, n Narrator) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	crises := []Crisis{crisisTemplate(2, 0, CrisisEffects{IncomeReduction: 0.1})}
	s := NewService(store, n, crises, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.roll = fixedRolls(0.99)
	return s, store
}

func createGame(t *testing.T, s *Service) GameView {
	t.Helper()
	v, err := s.CreateGame(context.Background(), CreateGameInput{
		UserID:  "user-1",
		Profile: Profile{Name: "Asha", Career: "Software Engineer", MonthlySalary: 50_000},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return v
}

func dispatch(t *testing.T, s *Service, gameID string, in Intent) (GameView, error) {
	t.Helper()
	return s.Dispatch(context.Background(), DispatchInput{UserID: "user-1", GameID: gameID, Intent: in})
}

func intPtr(v int) *int { return &v }

func TestServiceTurnFlow(t *testing.T) {
	side := LifeEvent{
		Title:       "Side Gig",
		Description: "A friend offers freelance work.",
		Type:        EventChoice,
		Choices: []Choice{
			{Text: "Decline", Outcome: "You rest."},
			{Text: "Accept", Outcome: "Extra cash.", Impact: &FinancialImpact{Kind: ImpactOneTimeGain, Amount: 20_000}},
		},
	}
	n := &scriptedNarrator{events: []LifeEvent{side}}
	s, _ := testService(t, n)
	g := createGame(t, s)
	ctx := context.Background()

	v, err := s.NextEvent(ctx, "user-1", g.ID, "")
	if err != nil {
		t.Fatalf("next event: %v", err)
	}
	if v.Phase != PhaseEvent || v.Event == nil || v.Event.Title != "Side Gig" {
		t.Fatalf("unexpected view %+v", v)
	}
	if n.modes[0] != ModeNormal {
		t.Fatalf("mode=%s", n.modes[0])
	}

	if _, err := dispatch(t, s, g.ID, Intent{Kind: CmdAdvanceYear}); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("advance with pending event: got %v", err)
	}
	if _, err := dispatch(t, s, g.ID, Intent{Kind: CmdResolveChoice, ChoiceIndex: intPtr(5)}); !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("bad index: got %v", err)
	}
	v, err = dispatch(t, s, g.ID, Intent{Kind: CmdResolveChoice, ChoiceIndex: intPtr(1)})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if v.Ledger.EmergencyFund != 170_000 || v.Phase != PhaseTurnEnd {
		t.Fatalf("fund=%v phase=%s", v.Ledger.EmergencyFund, v.Phase)
	}
	if _, err := s.NextEvent(ctx, "user-1", g.ID, ""); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("second event in one year: got %v", err)
	}

	v, err = dispatch(t, s, g.ID, Intent{Kind: CmdAdvanceYear})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if v.Ledger.Age != 23 || v.Phase != PhaseTurnEnd || v.Ledger.Crisis != nil {
		t.Fatalf("after advance: %+v", v)
	}
	v, err = dispatch(t, s, g.ID, Intent{Kind: CmdAdvanceYear})
	if err != nil || v.Phase != PhaseTaxMinigame {
		t.Fatalf("second advance: phase=%s err=%v", v.Phase, err)
	}
	res, err := s.FileTaxes(ctx, "user-1", g.ID, []string{"New Work Laptop", "Luxury Watch"}, "")
	if err != nil {
		t.Fatalf("taxes: %v", err)
	}
	if res.Filing.TaxSaved != 12_000 || res.Game.Phase != PhaseTurnEnd {
		t.Fatalf("filing=%+v phase=%s", res.Filing, res.Game.Phase)
	}
}

func TestServiceNarratorFailureFallsBack(t *testing.T) {
	n := &scriptedNarrator{err: errors.New("upstream 503")}
	s, _ := testService(t, n)
	g := createGame(t, s)
	v, err := s.NextEvent(context.Background(), "user-1", g.ID, "")
	if err != nil {
		t.Fatalf("next event: %v", err)
	}
	if v.Event == nil || v.Event.Title != CalmYearEvent().Title {
		t.Fatalf("expected calm year fallback, got %+v", v.Event)
	}

	bad := &scriptedNarrator{events: []LifeEvent{{Title: "Broken", Description: "x", Type: EventConsequence, Impact: &FinancialImpact{Kind: "MYSTERY"}}}}
	s2, _ := testService(t, bad)
	g2 := createGame(t, s2)
	v, err = s2.NextEvent(context.Background(), "user-1", g2.ID, "")
	if err != nil || v.Event.Title != CalmYearEvent().Title {
		t.Fatalf("malformed event should fall back: %+v %v", v.Event, err)
	}
	v, err = dispatch(t, s2, g2.ID, Intent{Kind: CmdResolveChoice})
	if err != nil || v.Phase != PhaseTurnEnd {
		t.Fatalf("acknowledge calm year: phase=%s err=%v", v.Phase, err)
	}
}

func TestServiceSurvivalEventIsQuoted(t *testing.T) {
	ev := LifeEvent{Title: "Hospital Stay", Description: "Sudden surgery.", Type: EventConsequence, IsSurvival: true, Cost: 100_000, Category: CategoryMedical}
	n := &scriptedNarrator{events: []LifeEvent{ev}}
	s, store := testService(t, n)
	s.roll = fixedRolls(0.1)
	g := createGame(t, s)

	stored := store.games[g.ID]
	unlock(stored.State.Ledger, SkillEmergencyShield)
	store.games[g.ID] = stored

	v, err := s.NextEvent(context.Background(), "user-1", g.ID, "")
	if err != nil {
		t.Fatalf("next event: %v", err)
	}
	if n.modes[0] != ModeSurvival {
		t.Fatalf("mode=%s want survival", n.modes[0])
	}
	if v.Event.Cost != 90_000 || v.Event.OriginalCost != 100_000 {
		t.Fatalf("quoted cost=%v original=%v", v.Event.Cost, v.Event.OriginalCost)
	}
	if _, err := dispatch(t, s, g.ID, Intent{Kind: CmdResolveChoice, ChoiceIndex: intPtr(0)}); !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("choice on survival event: got %v", err)
	}
	v, err = dispatch(t, s, g.ID, Intent{Kind: CmdResolveSurvival, Method: PayEmergencyFund})
	if err != nil {
		t.Fatalf("resolve survival: %v", err)
	}
	if v.Ledger.EmergencyFund != 60_000 {
		t.Fatalf("fund=%v want 60000", v.Ledger.EmergencyFund)
	}
}

func TestServiceCrisisLifecycle(t *testing.T) {
	s, _ := testService(t, &scriptedNarrator{})
	// first roll hits the 10% early-career odds, second picks the catalog entry
	s.roll = fixedRolls(0.05, 0.0)
	g := createGame(t, s)

	v, err := dispatch(t, s, g.ID, Intent{Kind: CmdAdvanceYear})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if v.Phase != PhaseCrisis || v.Crisis == nil || v.Crisis.Name != "Recession" {
		t.Fatalf("expected crisis, got phase=%s crisis=%+v", v.Phase, v.Crisis)
	}
	if _, err := dispatch(t, s, g.ID, Intent{Kind: CmdAdvanceYear}); !errors.Is(err, ErrCrisisActive) {
		t.Fatalf("advance during crisis: got %v", err)
	}
	if _, err := dispatch(t, s, g.ID, Intent{Kind: CmdEndCrisis, Result: CrisisWon}); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("premature end: got %v", err)
	}

	for month := 1; month <= 3; month++ {
		v, err = dispatch(t, s, g.ID, Intent{Kind: CmdAdvanceCrisisMonth})
		if err != nil {
			t.Fatalf("month %d: %v", month, err)
		}
	}
	if v.Phase != PhaseCrisisWon {
		t.Fatalf("phase=%s want crisis_won", v.Phase)
	}
	if _, err := dispatch(t, s, g.ID, Intent{Kind: CmdEndCrisis, Result: CrisisLost}); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("mismatched result: got %v", err)
	}
	v, err = dispatch(t, s, g.ID, Intent{Kind: CmdEndCrisis, Result: CrisisWon})
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if v.Ledger.Crisis != nil || len(v.Ledger.Achievements) != 1 || v.RollbackDepth != 0 {
		t.Fatalf("after end: %+v", v)
	}
}

func TestServiceInsurancePreventsDuplicates(t *testing.T) {
	s, _ := testService(t, nil)
	g := createGame(t, s)
	if _, err := dispatch(t, s, g.ID, Intent{Kind: CmdBuyInsurance, InsuranceType: "Health"}); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := dispatch(t, s, g.ID, Intent{Kind: CmdBuyInsurance, InsuranceType: "health"}); !errors.Is(err, ErrPolicyActive) {
		t.Fatalf("duplicate policy: got %v", err)
	}
	quotes, err := s.InsuranceQuotes(context.Background(), "user-1", g.ID)
	if err != nil {
		t.Fatalf("quotes: %v", err)
	}
	if !quotes[0].Held {
		t.Fatalf("health should be held: %+v", quotes[0])
	}
	log, err := s.EventLog(context.Background(), "user-1", g.ID, "insurance")
	if err != nil || len(log) != 1 {
		t.Fatalf("insurance log=%+v err=%v", log, err)
	}
}

func TestServiceIdempotency(t *testing.T) {
	s, _ := testService(t, nil)
	g := createGame(t, s)
	in := Intent{Kind: CmdAdvanceYear, IdempotencyKey: "k-1"}
	if _, err := dispatch(t, s, g.ID, in); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := dispatch(t, s, g.ID, in); !errors.Is(err, ErrDuplicateIdempotency) {
		t.Fatalf("replay: got %v", err)
	}
	v, _ := s.Game(context.Background(), "user-1", g.ID)
	if v.Ledger.Age != 23 {
		t.Fatalf("age=%d, command applied twice", v.Ledger.Age)
	}

	results := s.ReplaySync(context.Background(), "user-1", []SyncCommand{
		{GameID: g.ID, Intent: in},
		{GameID: g.ID, Intent: Intent{Kind: CmdActivateSkill, Skill: SkillWealthWarrior, IdempotencyKey: "k-2"}},
		{GameID: g.ID, Intent: Intent{Kind: CmdAdvanceYear, IdempotencyKey: "k-3"}},
	})
	want := []string{SyncDuplicate, SyncRejected, SyncSkipped}
	for i, r := range results {
		if r.Status != want[i] {
			t.Fatalf("result %d: %+v want %s", i, r, want[i])
		}
	}
}

func TestServiceReplaySyncKeepsTransientFailures(t *testing.T) {
	s, store := testService(t, nil)
	broken := createGame(t, s)
	healthy := createGame(t, s)
	store.down = broken.ID
	store.downErr = errors.New("connection refused")

	results := s.ReplaySync(context.Background(), "user-1", []SyncCommand{
		{GameID: broken.ID, Intent: Intent{Kind: CmdAdvanceYear, IdempotencyKey: "b-1"}},
		{GameID: healthy.ID, Intent: Intent{Kind: CmdAdvanceYear, IdempotencyKey: "h-1"}},
		{GameID: broken.ID, Intent: Intent{Kind: CmdAdvanceYear, IdempotencyKey: "b-2"}},
		{GameID: "missing", Intent: Intent{Kind: CmdAdvanceYear, IdempotencyKey: "m-1"}},
	})
	want := []string{SyncError, SyncApplied, SyncSkipped, SyncRejected}
	for i, r := range results {
		if r.Status != want[i] {
			t.Fatalf("result %d: %+v want %s", i, r, want[i])
		}
	}
	if results[0].Settled() || results[2].Settled() || !results[1].Settled() || !results[3].Settled() {
		t.Fatalf("settled flags wrong: %+v", results)
	}

	store.down = ""
	retry := s.ReplaySync(context.Background(), "user-1", []SyncCommand{
		{GameID: broken.ID, Intent: Intent{Kind: CmdAdvanceYear, IdempotencyKey: "b-1"}},
	})
	if retry[0].Status != SyncApplied {
		t.Fatalf("retry=%+v", retry[0])
	}
}

func TestServiceExportImport(t *testing.T) {
	s, _ := testService(t, nil)
	g := createGame(t, s)
	ctx := context.Background()
	data, err := s.Export(ctx, "user-1", g.ID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil || doc["name"] != "Asha" {
		t.Fatalf("export doc=%v err=%v", doc, err)
	}

	v, err := s.Import(ctx, ImportInput{UserID: "user-1", Data: data})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if v.ID == g.ID || v.Ledger.Name != "Asha" || v.Phase != PhaseTurnEnd {
		t.Fatalf("imported view=%+v", v)
	}

	for _, bad := range []string{`{"name":"x"`, `{"age":30}`, `{"name":"x","age":0}`} {
		_, err := s.Import(ctx, ImportInput{UserID: "user-1", GameID: g.ID, Data: []byte(bad)})
		if !errors.Is(err, ErrInvalidSave) {
			t.Fatalf("import %s: got %v want ErrInvalidSave", bad, err)
		}
	}
	partial := []byte(`{"name":"Ravi","age":30,"xp":5000,"skills":{}}`)
	pv, err := s.Import(ctx, ImportInput{UserID: "user-1", Data: partial})
	if err != nil {
		t.Fatalf("import partial: %v", err)
	}
	for _, sk := range pv.Skills {
		want := SkillLocked
		if sk.ID == SkillEmergencyShield || sk.ID == SkillDeductionDetective {
			want = SkillAvailable
		}
		if sk.Status != want {
			t.Fatalf("skill %s status=%s want %s", sk.ID, sk.Status, want)
		}
	}
	for _, id := range []SkillID{SkillEmergencyShield, SkillDeductionDetective} {
		if _, err := dispatch(t, s, pv.ID, Intent{Kind: CmdActivateSkill, Skill: id}); err != nil {
			t.Fatalf("activate %s after import: %v", id, err)
		}
	}

	after, _ := s.Game(ctx, "user-1", g.ID)
	if after.Version != g.Version {
		t.Fatalf("rejected import changed the game")
	}

	games, err := s.ListGames(ctx, "user-1")
	if err != nil || len(games) != 3 {
		t.Fatalf("games=%+v err=%v", games, err)
	}
}

func TestServiceStageTransitionEvent(t *testing.T) {
	n := &scriptedNarrator{}
	s, store := testService(t, n)
	g := createGame(t, s)
	stored := store.games[g.ID]
	stored.State.Ledger.Age = 34
	store.games[g.ID] = stored

	v, err := dispatch(t, s, g.ID, Intent{Kind: CmdAdvanceYear})
	if err != nil || v.Phase != PhaseStageTransition {
		t.Fatalf("advance: phase=%s err=%v", v.Phase, err)
	}
	if _, err := dispatch(t, s, g.ID, Intent{Kind: CmdAdvanceYear}); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("advance during stage transition: got %v", err)
	}
	v, err = s.NextEvent(context.Background(), "user-1", g.ID, "")
	if err != nil {
		t.Fatalf("next event: %v", err)
	}
	if v.Event.Title != "The Mid-Career Crossroads" || len(n.modes) != 0 {
		t.Fatalf("stage event=%+v narrator calls=%d", v.Event, len(n.modes))
	}
	v, err = dispatch(t, s, g.ID, Intent{Kind: CmdResolveChoice, ChoiceIndex: intPtr(0)})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if v.Ledger.Financials.Income != 750_000 || v.Phase != PhaseTurnEnd {
		t.Fatalf("income=%v phase=%s", v.Ledger.Financials.Income, v.Phase)
	}
}
