package syncq

import (
	"testing"

	"lifequest/internal/game"
)

func cmd(key string) game.SyncCommand {
	return game.SyncCommand{GameID: "g-1", Intent: game.Intent{Kind: game.CmdAdvanceYear, IdempotencyKey: key}}
}

func TestQueuePushAndSettle(t *testing.T) {
	q := New(t.TempDir())
	empty, err := q.Load()
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty queue: %v %v", empty, err)
	}
	for _, key := range []string{"a", "b", "a", "c"} {
		if err := q.Push(cmd(key)); err != nil {
			t.Fatalf("push %s: %v", key, err)
		}
	}
	got, _ := q.Load()
	if len(got) != 3 || got[0].Intent.IdempotencyKey != "a" || got[2].Intent.IdempotencyKey != "c" {
		t.Fatalf("queue=%+v", got)
	}

	if err := q.Settle([]game.SyncResult{{IdempotencyKey: "a", Status: game.SyncApplied}, {IdempotencyKey: "c", Status: game.SyncRejected}}); err != nil {
		t.Fatalf("settle: %v", err)
	}
	got, _ = q.Load()
	if len(got) != 1 || got[0].Intent.IdempotencyKey != "b" {
		t.Fatalf("after settle=%+v", got)
	}
}

func TestQueueSettleKeepsRetryableResults(t *testing.T) {
	q := New(t.TempDir())
	for _, key := range []string{"a", "b", "c", "d", "e"} {
		if err := q.Push(cmd(key)); err != nil {
			t.Fatalf("push %s: %v", key, err)
		}
	}
	results := []game.SyncResult{
		{IdempotencyKey: "a", Status: game.SyncDuplicate},
		{IdempotencyKey: "b", Status: game.SyncError, Error: "connection refused"},
		{IdempotencyKey: "c", Status: game.SyncSkipped},
		{IdempotencyKey: "d", Status: game.SyncRejected},
	}
	if err := q.Settle(results); err != nil {
		t.Fatalf("settle: %v", err)
	}
	got, _ := q.Load()
	var keys []string
	for _, c := range got {
		keys = append(keys, c.Intent.IdempotencyKey)
	}
	if len(keys) != 3 || keys[0] != "b" || keys[1] != "c" || keys[2] != "e" {
		t.Fatalf("after settle=%v want [b c e]", keys)
	}
}
