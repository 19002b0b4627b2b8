// Package store persists LifeQuest games in Postgres or SQLite.
package store

import (
	"context"
	"fmt"
	"time"

	"lifequest/internal/db"
	"lifequest/internal/game"
)

// Backend is a migrated game store that owns its connection.
type Backend interface {
	game.Store
	Migrate(ctx context.Context) error
	// PruneIdempotencyKeys drops claimed keys older than before.
	PruneIdempotencyKeys(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

// Open picks a backend from the database URL scheme and migrates it.
func Open(ctx context.Context, databaseURL string) (Backend, error) {
	var b Backend
	switch {
	case db.IsPostgresURL(databaseURL):
		pool, err := db.Connect(ctx, databaseURL, db.DefaultPoolOptions())
		if err != nil {
			return nil, err
		}
		b = NewPostgres(pool)
	default:
		path, ok := db.SQLitePath(databaseURL)
		if !ok {
			return nil, fmt.Errorf("unsupported database url %q: want postgres://, sqlite:// or file:", databaseURL)
		}
		conn, err := db.OpenSQLite(ctx, path)
		if err != nil {
			return nil, err
		}
		b = NewSQLite(conn)
	}
	if err := b.Migrate(ctx); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}
