// Package cli is the HTTP client behind the lq command.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lifequest/internal/auth"
	"lifequest/internal/cloudsave"
	"lifequest/internal/game"
)

// APIError is a non-2xx response from the LifeQuest API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

// IsOffline reports whether err means the API could not be reached, as
// opposed to the API rejecting the request.
func IsOffline(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	return !errors.Is(err, context.Canceled)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Signup(ctx context.Context, email, password string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/signup", "", map[string]any{
		"email":    email,
		"password": password,
	}, &out, "")
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	}, &out, "")
	return out, err
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/refresh", "", map[string]any{
		"refresh_token": refreshToken,
	}, &out, "")
	return out, err
}

func (c *Client) ListGames(ctx context.Context, accessToken string) ([]game.GameSummary, error) {
	var out struct {
		Games []game.GameSummary `json:"games"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/games", accessToken, nil, &out, "")
	return out.Games, err
}

func (c *Client) CreateGame(ctx context.Context, accessToken string, p game.Profile, idem string) (game.GameView, error) {
	var out game.GameView
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games", accessToken, p, &out, idem)
	return out, err
}

func (c *Client) Game(ctx context.Context, accessToken, gameID string) (game.GameView, error) {
	var out game.GameView
	err := c.jsonRequest(ctx, http.MethodGet, gamePath(gameID, ""), accessToken, nil, &out, "")
	return out, err
}

func (c *Client) Dispatch(ctx context.Context, accessToken, gameID string, in game.Intent) (game.GameView, error) {
	var out game.GameView
	err := c.jsonRequest(ctx, http.MethodPost, gamePath(gameID, "/commands"), accessToken, in, &out, in.IdempotencyKey)
	return out, err
}

func (c *Client) NextEvent(ctx context.Context, accessToken, gameID, idem string) (game.GameView, error) {
	var out game.GameView
	err := c.jsonRequest(ctx, http.MethodPost, gamePath(gameID, "/events/next"), accessToken, nil, &out, idem)
	return out, err
}

func (c *Client) FileTaxes(ctx context.Context, accessToken, gameID string, deductions []string, idem string) (game.TaxResult, error) {
	var out game.TaxResult
	err := c.jsonRequest(ctx, http.MethodPost, gamePath(gameID, "/taxes"), accessToken, map[string]any{
		"deductions": deductions,
	}, &out, idem)
	return out, err
}

type TaxItem struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

func (c *Client) TaxItems(ctx context.Context) ([]TaxItem, error) {
	var out struct {
		Items []TaxItem `json:"items"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/tax/items", "", nil, &out, "")
	return out.Items, err
}

func (c *Client) InsuranceQuotes(ctx context.Context, accessToken, gameID string) ([]game.InsuranceQuote, error) {
	var out struct {
		Quotes []game.InsuranceQuote `json:"quotes"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, gamePath(gameID, "/insurance"), accessToken, nil, &out, "")
	return out.Quotes, err
}

func (c *Client) EventLog(ctx context.Context, accessToken, gameID, tag string) ([]game.LogEntry, error) {
	path := gamePath(gameID, "/log")
	if tag != "" {
		path += "?tag=" + url.QueryEscape(tag)
	}
	var out struct {
		Entries []game.LogEntry `json:"entries"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, path, accessToken, nil, &out, "")
	return out.Entries, err
}

func (c *Client) Crises(ctx context.Context) ([]game.Crisis, error) {
	var out struct {
		Crises []game.Crisis `json:"crises"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/crises", "", nil, &out, "")
	return out.Crises, err
}

func (c *Client) Export(ctx context.Context, accessToken, gameID string) ([]byte, error) {
	var out json.RawMessage
	err := c.jsonRequest(ctx, http.MethodGet, gamePath(gameID, "/export"), accessToken, nil, &out, "")
	return out, err
}

// Import uploads a save document, replacing gameID's ledger or creating a
// new game when gameID is empty.
func (c *Client) Import(ctx context.Context, accessToken, gameID string, doc []byte, idem string) (game.GameView, error) {
	path := "/v1/games/import"
	if gameID != "" {
		path = gamePath(gameID, "/import")
	}
	var out game.GameView
	err := c.jsonRequest(ctx, http.MethodPost, path, accessToken, json.RawMessage(doc), &out, idem)
	return out, err
}

func (c *Client) ListSaves(ctx context.Context, accessToken string) ([]cloudsave.Save, error) {
	var out struct {
		Saves []cloudsave.Save `json:"saves"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/saves", accessToken, nil, &out, "")
	return out.Saves, err
}

func (c *Client) PutSave(ctx context.Context, accessToken, slot, gameID string) (cloudsave.Save, error) {
	var out cloudsave.Save
	err := c.jsonRequest(ctx, http.MethodPut, "/v1/saves/"+url.PathEscape(slot), accessToken, map[string]any{
		"game_id": gameID,
	}, &out, "")
	return out, err
}

func (c *Client) RestoreSave(ctx context.Context, accessToken, slot, gameID, idem string) (game.GameView, error) {
	var out game.GameView
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/saves/"+url.PathEscape(slot)+"/restore", accessToken, map[string]any{
		"game_id": gameID,
	}, &out, idem)
	return out, err
}

func (c *Client) SyncReplay(ctx context.Context, accessToken string, commands []game.SyncCommand) ([]game.SyncResult, error) {
	var out struct {
		Results []game.SyncResult `json:"results"`
	}
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/sync/replay", accessToken, map[string]any{
		"commands": commands,
	}, &out, "")
	return out.Results, err
}

func gamePath(gameID, suffix string) string {
	return "/v1/games/" + url.PathEscape(gameID) + suffix
}

func (c *Client) jsonRequest(ctx context.Context, method, path, accessToken string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(raw))
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
