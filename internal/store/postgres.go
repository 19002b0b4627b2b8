package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"lifequest/internal/game"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE SCHEMA IF NOT EXISTS lifequest;

CREATE TABLE IF NOT EXISTS lifequest.games (
	id         uuid PRIMARY KEY,
	user_id    text NOT NULL,
	state      jsonb NOT NULL,
	version    bigint NOT NULL DEFAULT 1,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS games_user_updated_idx ON lifequest.games (user_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS lifequest.idempotency_keys (
	user_id    text NOT NULL,
	key        text NOT NULL,
	action     text NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, key)
);
`

// Postgres stores each game as a jsonb document guarded by serializable
// transactions.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}

func (p *Postgres) PruneIdempotencyKeys(ctx context.Context, before time.Time) (int64, error) {
	cmd, err := p.db.Exec(ctx, `DELETE FROM lifequest.idempotency_keys WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune idempotency keys: %w", err)
	}
	return cmd.RowsAffected(), nil
}

func (p *Postgres) InsertGame(ctx context.Context, idemKey string, g game.Game) error {
	doc, err := json.Marshal(g.State)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return p.inTx(ctx, func(tx pgx.Tx) error {
		if err := claimIdempotency(ctx, tx, g.UserID, idemKey, "create_game"); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO lifequest.games (id, user_id, state, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, g.ID, g.UserID, doc, g.Version, g.CreatedAt, g.UpdatedAt); err != nil {
			return err
		}
		return nil
	})
}

func (p *Postgres) GetGame(ctx context.Context, userID, gameID string) (game.Game, error) {
	row := p.db.QueryRow(ctx, `
		SELECT id::text, user_id, state, version, created_at, updated_at
		FROM lifequest.games
		WHERE id = $1 AND user_id = $2
	`, gameID, userID)
	return scanGame(row)
}

func (p *Postgres) ListGames(ctx context.Context, userID string) ([]game.Game, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id::text, user_id, state, version, created_at, updated_at
		FROM lifequest.games
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []game.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateGame(ctx context.Context, userID, gameID, idemKey, action string, fn func(*game.Game) error) (game.Game, error) {
	var out game.Game
	err := p.inTx(ctx, func(tx pgx.Tx) error {
		if err := claimIdempotency(ctx, tx, userID, idemKey, action); err != nil {
			return err
		}
		g, err := scanGame(tx.QueryRow(ctx, `
			SELECT id::text, user_id, state, version, created_at, updated_at
			FROM lifequest.games
			WHERE id = $1 AND user_id = $2
			FOR UPDATE
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
		if err := tx.QueryRow(ctx, `
			UPDATE lifequest.games
			SET state = $1, version = version + 1, updated_at = now()
			WHERE id = $2
			RETURNING version, updated_at
		`, doc, gameID).Scan(&g.Version, &g.UpdatedAt); err != nil {
			return err
		}
		out = g
		return nil
	})
	return out, err
}

// inTx runs fn in a serializable transaction, retrying serialization
// failures with backoff before giving up with ErrTxConflict.
func (p *Postgres) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	const maxAttempts = 8
	retryDelay := 75 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		tx, err := p.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		err = func() error {
			defer tx.Rollback(ctx)
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}()
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			return game.ErrTxConflict
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return game.ErrTxConflict
}

func claimIdempotency(ctx context.Context, tx pgx.Tx, userID, key, action string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("idempotency key is required")
	}
	cmd, err := tx.Exec(ctx, `
		INSERT INTO lifequest.idempotency_keys (user_id, key, action, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, key) DO NOTHING
	`, userID, key, action)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return game.ErrDuplicateIdempotency
	}
	return nil
}

func scanGame(row pgx.Row) (game.Game, error) {
	var g game.Game
	var doc []byte
	if err := row.Scan(&g.ID, &g.UserID, &doc, &g.Version, &g.CreatedAt, &g.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return g, game.ErrGameNotFound
		}
		return g, err
	}
	if err := json.Unmarshal(doc, &g.State); err != nil {
		return g, fmt.Errorf("decode state of game %s: %w", g.ID, err)
	}
	return g, nil
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
