package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"lifequest/internal/game"
)

func TestSessionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadSession(dir); err == nil {
		t.Fatalf("expected error before login")
	}
	in := Session{AccessToken: "at", RefreshToken: "rt", Email: "a@example.com", UserID: "u-1", ActiveGameID: "g-1"}
	if err := SaveSession(dir, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadSession(dir)
	if err != nil || got != in {
		t.Fatalf("load=%+v err=%v", got, err)
	}
	if err := ClearSession(dir); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := ClearSession(dir); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestClientDispatchSendsIdempotencyKey(t *testing.T) {
	var gotKey, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/v1/games/g-1/commands" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var in game.Intent
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Kind != game.CmdAdvanceYear {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"invalid phase"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(game.GameView{ID: "g-1", Phase: game.PhaseTurnEnd})
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	view, err := c.Dispatch(context.Background(), "at", "g-1", game.Intent{Kind: game.CmdAdvanceYear, IdempotencyKey: "k-1"})
	if err != nil || view.ID != "g-1" {
		t.Fatalf("dispatch=%+v err=%v", view, err)
	}
	if gotKey != "k-1" || gotAuth != "Bearer at" {
		t.Fatalf("headers key=%q auth=%q", gotKey, gotAuth)
	}

	_, err = c.Dispatch(context.Background(), "at", "g-1", game.Intent{Kind: game.CmdEndCrisis})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict || apiErr.Message != "invalid phase" {
		t.Fatalf("got %v want 409 APIError", err)
	}
	if IsOffline(err) {
		t.Fatalf("a rejection is not an offline error")
	}
}

func TestIsOffline(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	_, err := c.Game(context.Background(), "at", "g-1")
	if !IsOffline(err) {
		t.Fatalf("connection refused should count as offline: %v", err)
	}
	if IsOffline(&APIError{Status: http.StatusBadRequest}) || !IsOffline(&APIError{Status: http.StatusBadGateway}) {
		t.Fatalf("status classification wrong")
	}
}
