package sqlite

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/medisync/registry/pkg/errors"
)

// AUTOINCREMENT keeps row ids monotonically increasing and never reused,
// which the data model requires of record identifiers.
const schema = `
CREATE TABLE IF NOT EXISTS patients (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	firstname TEXT NOT NULL,
	lastname TEXT NOT NULL,
	age INTEGER NOT NULL,
	gender TEXT NOT NULL CHECK (gender IN ('Male', 'Female', 'Other')),
	contactnumber TEXT NOT NULL,
	email TEXT,
	address TEXT,
	bloodgroup TEXT,
	medicalconditions TEXT, -- JSON array string
	createdat TEXT NOT NULL -- ISO-8601, writer assigned
);
`

type Config struct {
	Path string `mapstructure:"path"`
}

// Store owns the embedded database handle. It is constructed explicitly and
// passed to whoever needs it; acquisition is lazy and guarded, so repeated
// DB() calls share one handle and the DDL runs at most once per process.
type Store struct {
	cfg  Config
	once sync.Once
	db   *sqlx.DB
	err  error
}

func NewStore(cfg Config) *Store {
	return &Store{cfg: cfg}
}

// DB returns the shared handle, opening the database and creating the schema
// on first use. An open failure is remembered and resurfaces on every call.
func (s *Store) DB() (*sqlx.DB, error) {
	s.once.Do(s.open)
	return s.db, s.err
}

func (s *Store) open() {
	db, err := sqlx.Connect("sqlite3", s.cfg.Path)
	if err != nil {
		s.err = apperrors.NewStoreUnavailable(fmt.Errorf("failed to open database: %w", err))
		return
	}

	// One connection: sqlite allows a single writer and the schema bootstrap
	// below must not race a concurrent open of the same in-memory database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		s.err = apperrors.NewStoreUnavailable(fmt.Errorf("failed to create schema: %w", err))
		return
	}

	s.db = db
}

// Ping verifies the store is reachable, opening it if necessary.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.DB()
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		return apperrors.NewStoreUnavailable(err)
	}
	return nil
}

// Close releases the handle if one was ever opened.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
