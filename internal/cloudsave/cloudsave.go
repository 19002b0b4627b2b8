// Package cloudsave mirrors exported ledgers into a Supabase table so a
// player can restore them on another machine.
package cloudsave

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"lifequest/internal/game"

	supa "github.com/supabase-community/supabase-go"
)

const table = "lifequest_saves"

var ErrSlotNotFound = errors.New("save slot not found")

// Save is one row of lifequest_saves.
type Save struct {
	UserID    string          `json:"user_id"`
	Slot      string          `json:"slot"`
	Name      string          `json:"name"`
	Age       int             `json:"age"`
	Document  json.RawMessage `json:"document"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Client struct {
	db  *supa.Client
	now func() time.Time
}

func New(url, serviceKey string) (*Client, error) {
	db, err := supa.NewClient(url, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("connect supabase: %w", err)
	}
	return &Client{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Put upserts an exported ledger document into the user's slot.
func (c *Client) Put(userID, slot string, document []byte) (Save, error) {
	slot, err := normalizeSlot(slot)
	if err != nil {
		return Save{}, err
	}
	var l game.Ledger
	if err := json.Unmarshal(document, &l); err != nil {
		return Save{}, fmt.Errorf("%w: %v", game.ErrInvalidSave, err)
	}
	row := Save{
		UserID:    userID,
		Slot:      slot,
		Name:      l.Name,
		Age:       l.Age,
		Document:  json.RawMessage(document),
		UpdatedAt: c.now(),
	}
	var out []Save
	if _, err := c.db.From(table).Insert(row, true, "user_id,slot", "representation", "").ExecuteTo(&out); err != nil {
		return Save{}, fmt.Errorf("upsert save: %w", err)
	}
	if len(out) == 0 {
		return row, nil
	}
	return out[0], nil
}

func (c *Client) Get(userID, slot string) (Save, error) {
	slot, err := normalizeSlot(slot)
	if err != nil {
		return Save{}, err
	}
	var out []Save
	_, err = c.db.From(table).
		Select("*", "", false).
		Eq("user_id", userID).
		Eq("slot", slot).
		Limit(1, "").
		ExecuteTo(&out)
	if err != nil {
		return Save{}, fmt.Errorf("load save: %w", err)
	}
	if len(out) == 0 {
		return Save{}, ErrSlotNotFound
	}
	return out[0], nil
}

// List returns the user's slots without their documents.
func (c *Client) List(userID string) ([]Save, error) {
	var out []Save
	_, err := c.db.From(table).
		Select("user_id,slot,name,age,updated_at", "", false).
		Eq("user_id", userID).
		Order("updated_at", nil).
		ExecuteTo(&out)
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	return out, nil
}

func (c *Client) Delete(userID, slot string) error {
	slot, err := normalizeSlot(slot)
	if err != nil {
		return err
	}
	_, _, err = c.db.From(table).
		Delete("minimal", "").
		Eq("user_id", userID).
		Eq("slot", slot).
		Execute()
	if err != nil {
		return fmt.Errorf("delete save: %w", err)
	}
	return nil
}

func normalizeSlot(slot string) (string, error) {
	slot = strings.ToLower(strings.TrimSpace(slot))
	if slot == "" {
		slot = "default"
	}
	if len(slot) > 32 || strings.ContainsAny(slot, " /\\?#&,") {
		return "", fmt.Errorf("invalid save slot %q", slot)
	}
	return slot, nil
}
