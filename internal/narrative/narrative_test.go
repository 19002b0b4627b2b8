package narrative

import (
	"context"
	"errors"
	"strings"
	"testing"

	"lifequest/internal/game"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		check   func(t *testing.T, ev game.LifeEvent)
	}{
		{
			name: "choice event",
			raw: `{"title":"Job Offer","description":"A startup wants you.","type":"CHOICE","isSurvival":false,
				"choices":[{"text":"Join","outcome":"You joined.","impact":{"type":"INCOME_CHANGE","amount":120000,"description":"raise"}},
				{"text":"Stay","outcome":"You stayed."}]}`,
			check: func(t *testing.T, ev game.LifeEvent) {
				if ev.Type != game.EventChoice || len(ev.Choices) != 2 || ev.Choices[0].Impact.Kind != game.ImpactIncomeChange || ev.Choices[1].Impact != nil {
					t.Fatalf("event=%+v", ev)
				}
			},
		},
		{
			name: "survival event in a code fence",
			raw:  "```json\n{\"title\":\"Engine Failure\",\"description\":\"The car died.\",\"type\":\"consequence\",\"isSurvival\":true,\"cost\":45000,\"category\":\"Vehicle\",\"impact\":{\"type\":\"ONE_TIME_COST\",\"amount\":-1,\"description\":\"x\"}}\n```",
			check: func(t *testing.T, ev game.LifeEvent) {
				if !ev.IsSurvival || ev.Cost != 45_000 || ev.Category != game.CategoryVehicle || ev.Impact != nil {
					t.Fatalf("event=%+v", ev)
				}
			},
		},
		{
			name: "unknown category becomes general",
			raw:  `{"title":"Lost Phone","description":"Gone.","type":"CONSEQUENCE","isSurvival":true,"cost":20000,"category":"gadgets"}`,
			check: func(t *testing.T, ev game.LifeEvent) {
				if ev.Category != game.CategoryGeneral {
					t.Fatalf("category=%q", ev.Category)
				}
			},
		},
		{name: "missing title", raw: `{"description":"x","type":"CONSEQUENCE","isSurvival":false}`, wantErr: true},
		{name: "unknown type", raw: `{"title":"x","description":"x","type":"SURPRISE","isSurvival":false}`, wantErr: true},
		{name: "choice without choices", raw: `{"title":"x","description":"x","type":"CHOICE","isSurvival":false}`, wantErr: true},
		{name: "not json", raw: `the model refused`, wantErr: true},
	}
	for _, tc := range tests {
		ev, err := DecodeEvent(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error, got %+v", tc.name, ev)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		tc.check(t, ev)
	}
}

func TestDecodeEventUnknownImpact(t *testing.T) {
	_, err := DecodeEvent(`{"title":"Bonus","description":"x","type":"CONSEQUENCE","isSurvival":false,"impact":{"type":"KARMA","amount":1,"description":"x"}}`)
	if !errors.Is(err, game.ErrUnknownImpact) {
		t.Fatalf("got %v want ErrUnknownImpact", err)
	}
}

func TestPromptModes(t *testing.T) {
	snap := game.Snapshot{Name: "Asha", Age: 30, Stage: game.StageEarlyCareer, Career: "Teacher", Income: 600_000, NetWorth: 250_000, EmergencyFund: 40_000}

	normal := Prompt(snap, game.ModeNormal)
	if !strings.Contains(normal, "standard life event") || !strings.Contains(normal, "- Name: Asha") || !strings.Contains(normal, "₹40,000") {
		t.Fatalf("normal prompt:\n%s", normal)
	}
	if survival := Prompt(snap, game.ModeSurvival); !strings.Contains(survival, "isSurvival set to true") {
		t.Fatalf("survival prompt:\n%s", survival)
	}

	snap.Crisis = &game.Crisis{Name: "Recession", Duration: 6, CurrentMonth: 2}
	crisis := Prompt(snap, game.ModeCrisis)
	if !strings.Contains(crisis, `"Recession"`) || !strings.Contains(crisis, "month 2 of 6") || strings.Contains(crisis, "Life Stage") {
		t.Fatalf("crisis prompt:\n%s", crisis)
	}
}

func TestStaticNarrator(t *testing.T) {
	ev, err := Static{}.LifeEvent(context.Background(), game.Snapshot{}, game.ModeSurvival)
	if err != nil || ev.Title != "A Calm Year" {
		t.Fatalf("event=%+v err=%v", ev, err)
	}
	if err := game.ValidateEvent(ev); err != nil {
		t.Fatalf("fallback must validate: %v", err)
	}
}

func TestNewGeminiRequiresKey(t *testing.T) {
	if _, err := NewGemini(context.Background(), GeminiOptions{}, nil); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestSchemaListsImpactKinds(t *testing.T) {
	s := lifeEventSchema()
	enum := s.Properties["impact"].Properties["type"].Enum
	if len(enum) != len(game.ImpactKinds()) {
		t.Fatalf("impact enum=%v", enum)
	}
	if s.Properties["choices"].Items.Required[0] != "text" {
		t.Fatalf("choice schema=%+v", s.Properties["choices"].Items)
	}
}
