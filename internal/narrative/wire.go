package narrative

import (
	"encoding/json"
	"fmt"
	"strings"

	"lifequest/internal/game"

	"github.com/google/generative-ai-go/genai"
)

type wireImpact struct {
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

type wireChoice struct {
	Text    string      `json:"text"`
	Outcome string      `json:"outcome"`
	Impact  *wireImpact `json:"impact"`
}

type wireEvent struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Type        string       `json:"type"`
	IsSurvival  bool         `json:"isSurvival"`
	Cost        float64      `json:"cost"`
	Category    string       `json:"category"`
	Impact      *wireImpact  `json:"impact"`
	Choices     []wireChoice `json:"choices"`
}

// DecodeEvent parses a generated event document and validates it against
// what the engine can resolve.
func DecodeEvent(raw string) (game.LifeEvent, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var w wireEvent
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &w); err != nil {
		return game.LifeEvent{}, fmt.Errorf("decode event: %w", err)
	}
	ev := game.LifeEvent{
		Title:       strings.TrimSpace(w.Title),
		Description: strings.TrimSpace(w.Description),
		Type:        game.EventType(strings.ToUpper(strings.TrimSpace(w.Type))),
		IsSurvival:  w.IsSurvival,
		Impact:      w.Impact.toImpact(),
	}
	if ev.IsSurvival {
		ev.Cost = w.Cost
		ev.Category = normalizeCategory(w.Category)
		ev.Impact = nil
	}
	for _, c := range w.Choices {
		ev.Choices = append(ev.Choices, game.Choice{
			Text:    strings.TrimSpace(c.Text),
			Outcome: strings.TrimSpace(c.Outcome),
			Impact:  c.Impact.toImpact(),
		})
	}
	if err := game.ValidateEvent(ev); err != nil {
		return game.LifeEvent{}, err
	}
	return ev, nil
}

func (w *wireImpact) toImpact() *game.FinancialImpact {
	if w == nil {
		return nil
	}
	return &game.FinancialImpact{
		Kind:        game.ImpactKind(strings.ToUpper(strings.TrimSpace(w.Type))),
		Amount:      w.Amount,
		Description: w.Description,
	}
}

func normalizeCategory(c string) string {
	switch c = strings.ToLower(strings.TrimSpace(c)); c {
	case game.CategoryMedical, game.CategoryVehicle, game.CategoryProperty:
		return c
	}
	return game.CategoryGeneral
}

func responseText(resp *genai.GenerateContentResponse) string {
	var text string
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				text += string(txt)
			}
		}
	}
	return text
}

func impactKindNames() []string {
	kinds := game.ImpactKinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

func impactSchema(description string) *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeObject,
		Description: description,
		Properties: map[string]*genai.Schema{
			"type":        {Type: genai.TypeString, Enum: impactKindNames(), Description: "The type of financial impact."},
			"amount":      {Type: genai.TypeNumber, Description: "Positive for gains, negative for losses. Yearly for income and expense changes."},
			"description": {Type: genai.TypeString, Description: "A brief explanation of the financial impact."},
		},
		Required: []string{"type", "amount", "description"},
	}
}

func lifeEventSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":       {Type: genai.TypeString, Description: "A short, engaging title for the event."},
			"description": {Type: genai.TypeString, Description: "A one or two-sentence description of the life event."},
			"type":        {Type: genai.TypeString, Enum: []string{string(game.EventChoice), string(game.EventConsequence)}},
			"isSurvival":  {Type: genai.TypeBoolean, Description: "True for an urgent financial shock the player must pay for."},
			"cost":        {Type: genai.TypeNumber, Description: "Cost of a survival event. Omit otherwise."},
			"category": {
				Type: genai.TypeString,
				Enum: []string{game.CategoryMedical, game.CategoryVehicle, game.CategoryProperty, game.CategoryGeneral},
			},
			"impact": impactSchema("Impact of a CONSEQUENCE event that is not a survival event."),
			"choices": {
				Type:        genai.TypeArray,
				Description: "Two or three choices for a CHOICE event.",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"text":    {Type: genai.TypeString},
						"outcome": {Type: genai.TypeString},
						"impact":  impactSchema("Impact of this choice, if any."),
					},
					Required: []string{"text", "outcome"},
				},
			},
		},
		Required: []string{"title", "description", "type", "isSurvival"},
	}
}
