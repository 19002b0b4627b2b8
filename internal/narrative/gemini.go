// Package narrative produces life events for the game service.
package narrative

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lifequest/internal/game"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	DefaultModel       = "gemini-2.5-flash"
	DefaultTemperature = 0.9
	DefaultTimeout     = 20 * time.Second
)

type GeminiOptions struct {
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// Gemini asks a Gemini model for structured life events.
type Gemini struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
	log     *slog.Logger
}

func NewGemini(ctx context.Context, opts GeminiOptions, logger *slog.Logger) (*Gemini, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Temperature <= 0 {
		opts.Temperature = DefaultTemperature
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := client.GenerativeModel(opts.Model)
	model.SetTemperature(opts.Temperature)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = lifeEventSchema()
	return &Gemini{client: client, model: model, timeout: opts.Timeout, log: logger}, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

func (g *Gemini) LifeEvent(ctx context.Context, snap game.Snapshot, mode game.NarrativeMode) (game.LifeEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.model.GenerateContent(ctx, genai.Text(Prompt(snap, mode)))
	if err != nil {
		return game.LifeEvent{}, fmt.Errorf("generate %s event: %w", mode, err)
	}
	ev, err := DecodeEvent(responseText(resp))
	if err != nil {
		return game.LifeEvent{}, err
	}
	if mode == game.ModeSurvival && !ev.IsSurvival {
		g.log.Debug("survival prompt produced a regular event", "title", ev.Title)
	}
	return ev, nil
}

// Static always returns the calm-year event; it stands in when no model is
// configured.
type Static struct{}

func (Static) LifeEvent(context.Context, game.Snapshot, game.NarrativeMode) (game.LifeEvent, error) {
	return game.CalmYearEvent(), nil
}
