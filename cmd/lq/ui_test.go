package main

import (
	"reflect"
	"testing"

	"lifequest/internal/game"
)

func TestParseSelection(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "1,3", want: []int{0, 2}},
		{in: " 2 2, 1 ", want: []int{1, 0}},
		{in: "0", wantErr: true},
		{in: "9", wantErr: true},
		{in: "x", wantErr: true},
	}
	for _, tc := range tests {
		got, err := parseSelection(tc.in, 8)
		if (err != nil) != tc.wantErr {
			t.Fatalf("parseSelection(%q) err=%v", tc.in, err)
		}
		if !tc.wantErr && !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("parseSelection(%q)=%v want %v", tc.in, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Software Engineer", 8); got != "Softwar…" {
		t.Fatalf("truncate=%q", got)
	}
	if got := truncate("Asha", 8); got != "Asha" {
		t.Fatalf("truncate=%q", got)
	}
}

func TestPlayKeysFollowPhase(t *testing.T) {
	choice := game.GameView{
		Phase:  game.PhaseEvent,
		Ledger: &game.Ledger{},
		Event:  &game.LifeEvent{Title: "Offer", Choices: []game.Choice{{Text: "a"}, {Text: "b"}}},
	}
	survival := game.GameView{
		Phase:  game.PhaseEvent,
		Ledger: &game.Ledger{},
		Event:  &game.LifeEvent{Title: "Flood", IsSurvival: true, Cost: 1000},
	}
	inCrisis := game.GameView{
		Phase:  game.PhaseTurnEnd,
		Ledger: &game.Ledger{},
		Crisis: &game.CrisisProgress{Name: "Market Crash", Month: 1, Duration: 3},
	}
	tests := []struct {
		name string
		view game.GameView
		key  string
		want bool
	}{
		{name: "turn end event", view: game.GameView{Phase: game.PhaseTurnEnd}, key: "e", want: true},
		{name: "turn end year", view: game.GameView{Phase: game.PhaseTurnEnd}, key: "y", want: true},
		{name: "turn end unknown", view: game.GameView{Phase: game.PhaseTurnEnd}, key: "x", want: false},
		{name: "choice in range", view: choice, key: "2", want: true},
		{name: "choice out of range", view: choice, key: "3", want: false},
		{name: "survival method", view: survival, key: "l", want: true},
		{name: "survival ignores numbers", view: survival, key: "1", want: false},
		{name: "crisis month", view: game.GameView{Phase: game.PhaseCrisis}, key: "m", want: true},
		{name: "crisis month from turn end", view: inCrisis, key: "m", want: true},
		{name: "no new year during crisis", view: inCrisis, key: "y", want: false},
		{name: "no crisis month outside crisis", view: game.GameView{Phase: game.PhaseTurnEnd}, key: "m", want: false},
		{name: "crisis lost rollback", view: game.GameView{Phase: game.PhaseCrisisLost}, key: "r", want: true},
		{name: "tax phase waits for cli", view: game.GameView{Phase: game.PhaseTaxMinigame}, key: "enter", want: false},
	}
	for _, tc := range tests {
		m := playModel{view: tc.view, loaded: true}
		if got := m.action(tc.key) != nil; got != tc.want {
			t.Fatalf("%s: action=%v want %v", tc.name, got, tc.want)
		}
	}
	if (playModel{}).action("e") != nil {
		t.Fatalf("keys must be ignored before the game loads")
	}
}
