package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/lockboxhq/grantstore/internal/auth/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db      *sql.DB
	clients store.ClientDirectory
	dsn     string
}

// NewStore opens the sqlite database at dsn. The client directory is
// consulted on every record load to resolve the registered client
// reference; records are never returned with an unresolved client.
func NewStore(dsn string, clients store.ClientDirectory) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Enforce FKs
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:      db,
		clients: clients,
		dsn:     dsn,
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Authorizations() store.Authorizations {
	return &authorizationsRepo{db: s.db, clients: s.clients}
}

func mapNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func mapStringNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func mapNullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		val := nt.Time
		return &val
	}
	return nil
}

func mapOptionalTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func mapTimeNull(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
