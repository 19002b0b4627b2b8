// Package syncq keeps intents the CLI could not deliver so they can be
// replayed once the API is reachable again.
package syncq

import (
	"encoding/json"
	"os"
	"path/filepath"

	"lifequest/internal/game"
)

type Queue struct {
	path string
}

func New(dir string) *Queue {
	return &Queue{path: filepath.Join(dir, "queue.json")}
}

func (q *Queue) Load() ([]game.SyncCommand, error) {
	raw, err := os.ReadFile(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []game.SyncCommand{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []game.SyncCommand{}, nil
	}
	var out []game.SyncCommand
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (q *Queue) Save(commands []game.SyncCommand) error {
	if err := os.MkdirAll(filepath.Dir(q.path), 0o700); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(commands, "", "  ")
	if err != nil {
		return err
	}
	tmp := q.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, q.path)
}

// Push appends cmd unless an entry with the same idempotency key is queued.
func (q *Queue) Push(cmd game.SyncCommand) error {
	commands, err := q.Load()
	if err != nil {
		return err
	}
	for _, c := range commands {
		if c.Intent.IdempotencyKey != "" && c.Intent.IdempotencyKey == cmd.Intent.IdempotencyKey {
			return nil
		}
	}
	commands = append(commands, cmd)
	return q.Save(commands)
}

// Settle drops every queued command whose replay result is final. Commands
// that failed transiently, were skipped or got no answer stay queued.
func (q *Queue) Settle(results []game.SyncResult) error {
	commands, err := q.Load()
	if err != nil {
		return err
	}
	done := make(map[string]bool, len(results))
	for _, r := range results {
		if r.Settled() {
			done[r.IdempotencyKey] = true
		}
	}
	kept := commands[:0]
	for _, c := range commands {
		if !done[c.Intent.IdempotencyKey] {
			kept = append(kept, c)
		}
	}
	return q.Save(kept)
}
