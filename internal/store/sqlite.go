package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"lifequest/internal/game"
)

var sqliteSchemas = []string{
	`CREATE TABLE IF NOT EXISTS games (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		state      TEXT NOT NULL,
		version    INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS games_user_updated_idx ON games (user_id, updated_at)`,
	`CREATE TABLE IF NOT EXISTS idempotency_keys (
		user_id    TEXT NOT NULL,
		key        TEXT NOT NULL,
		action     TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (user_id, key)
	)`,
}

// SQLite is the single-file backend used by local and offline play.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *SQLite) Migrate(ctx context.Context) error {
	for _, schema := range sqliteSchemas {
		if _, err := s.db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) PruneIdempotencyKeys(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE created_at < ?`, formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("prune idempotency keys: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLite) InsertGame(ctx context.Context, idemKey string, g game.Game) error {
	doc, err := json.Marshal(g.State)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.claimIdempotency(ctx, tx, g.UserID, idemKey, "create_game"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO games (id, user_id, state, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, g.ID, g.UserID, string(doc), g.Version, formatTime(g.CreatedAt), formatTime(g.UpdatedAt))
		return err
	})
}

func (s *SQLite) GetGame(ctx context.Context, userID, gameID string) (game.Game, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, state, version, created_at, updated_at
		FROM games
		WHERE id = ? AND user_id = ?
	`, gameID, userID)
	return scanSQLiteGame(row)
}

func (s *SQLite) ListGames(ctx context.Context, userID string) ([]game.Game, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, state, version, created_at, updated_at
		FROM games
		WHERE user_id = ?
		ORDER BY updated_at DESC, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []game.Game
	for rows.Next() {
		g, err := scanSQLiteGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *SQLite) UpdateGame(ctx context.Context, userID, gameID, idemKey, action string, fn func(*game.Game) error) (game.Game, error) {
	var out game.Game
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.claimIdempotency(ctx, tx, userID, idemKey, action); err != nil {
			return err
		}
		g, err := scanSQLiteGame(tx.QueryRowContext(ctx, `
			SELECT id, user_id, state, version, created_at, updated_at
			FROM games
			WHERE id = ? AND user_id = ?
		`, gameID, userID))
		if err != nil {
			return err
		}
		if err := fn(&g); err != nil {
			return err
		}
		doc, err := json.Marshal(g.State)
		if err != nil {
			return fmt.Errorf("encode state: %w", err)
		}
		g.Version++
		g.UpdatedAt = s.now()
		if _, err := tx.ExecContext(ctx, `
			UPDATE games
			SET state = ?, version = ?, updated_at = ?
			WHERE id = ?
		`, string(doc), g.Version, formatTime(g.UpdatedAt), gameID); err != nil {
			return err
		}
		out = g
		return nil
	})
	return out, err
}

func (s *SQLite) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) claimIdempotency(ctx context.Context, tx *sql.Tx, userID, key, action string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("idempotency key is required")
	}
	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO idempotency_keys (user_id, key, action, created_at)
		VALUES (?, ?, ?, ?)
	`, userID, key, action, formatTime(s.now()))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return game.ErrDuplicateIdempotency
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteGame(row rowScanner) (game.Game, error) {
	var g game.Game
	var doc, created, updated string
	if err := row.Scan(&g.ID, &g.UserID, &doc, &g.Version, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return g, game.ErrGameNotFound
		}
		return g, err
	}
	if err := json.Unmarshal([]byte(doc), &g.State); err != nil {
		return g, fmt.Errorf("decode state of game %s: %w", g.ID, err)
	}
	var err error
	if g.CreatedAt, err = time.Parse(sqliteTime, created); err != nil {
		return g, fmt.Errorf("parse created_at: %w", err)
	}
	if g.UpdatedAt, err = time.Parse(sqliteTime, updated); err != nil {
		return g, fmt.Errorf("parse updated_at: %w", err)
	}
	return g, nil
}

// sqliteTime is fixed width so that text ordering matches time ordering.
const sqliteTime = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}
