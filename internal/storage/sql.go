package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLStorage хранит пользователей, брони и состояния диалогов в sqlite или postgres.
type SQLStorage struct {
	db  *sqlx.DB
	loc *time.Location
}

func NewSQLStorage(driver, dsn string, loc *time.Location) (*SQLStorage, error) {
	if _, ok := schemas[driver]; !ok {
		return nil, fmt.Errorf("storage: unsupported driver %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// sqlite не любит конкурентную запись из нескольких соединений
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	return &SQLStorage{db: db, loc: loc}, nil
}

func (s *SQLStorage) Init(ctx context.Context) error {
	for _, stmt := range schemas[s.db.DriverName()] {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("storage: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}

// q переводит плейсхолдеры ? в формат драйвера.
func (s *SQLStorage) q(query string) string {
	return s.db.Rebind(query)
}

var schemas = map[string][]string{
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			telegram_id INTEGER UNIQUE NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS reserves (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			start_at INTEGER NOT NULL,
			end_at INTEGER NOT NULL,
			set_kind TEXT NOT NULL,
			set_count INTEGER NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 1,
			board INTEGER NOT NULL DEFAULT 0,
			hydro INTEGER NOT NULL DEFAULT 0,
			canceled BOOLEAN NOT NULL DEFAULT FALSE,
			cancel_actor_id INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reserves_kind_start ON reserves(kind, start_at)`,
		`CREATE INDEX IF NOT EXISTS idx_reserves_user ON reserves(user_id)`,
		`CREATE TABLE IF NOT EXISTS states (
			state_key TEXT PRIMARY KEY,
			state_value TEXT NOT NULL
		)`,
	},
	DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			telegram_id BIGINT UNIQUE NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS reserves (
			id BIGSERIAL PRIMARY KEY,
			kind TEXT NOT NULL,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			start_at BIGINT NOT NULL,
			end_at BIGINT NOT NULL,
			set_kind TEXT NOT NULL,
			set_count INTEGER NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 1,
			board INTEGER NOT NULL DEFAULT 0,
			hydro INTEGER NOT NULL DEFAULT 0,
			canceled BOOLEAN NOT NULL DEFAULT FALSE,
			cancel_actor_id BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reserves_kind_start ON reserves(kind, start_at)`,
		`CREATE INDEX IF NOT EXISTS idx_reserves_user ON reserves(user_id)`,
		`CREATE TABLE IF NOT EXISTS states (
			state_key TEXT PRIMARY KEY,
			state_value TEXT NOT NULL
		)`,
	},
}
