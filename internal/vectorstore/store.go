// Package vectorstore persists embedded documents in named collections and
// answers nearest-neighbour queries by cosine distance. It runs on SQLite
// with the sqlite-vec extension.
package vectorstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

var collectionName = regexp.MustCompile(`^[A-Za-z0-9_]{1,64}$`)

// Store is an open vector database holding any number of collections.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and initializes the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}
	// One writer keeps vec0 and documents rows in lockstep.
	db.SetMaxOpenConns(1)
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init vector schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Collection returns the named collection, creating it when missing.
func (s *Store) Collection(ctx context.Context, name string) (*Collection, error) {
	if !collectionName.MatchString(name) {
		return nil, fmt.Errorf("invalid collection name %q", name)
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO collections (name) VALUES (?) ON CONFLICT(name) DO NOTHING", name,
	); err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}
	return &Collection{db: s.db, name: name}, nil
}

// Collections lists the collection names in the store.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM collections ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ErrDimension reports an embedding whose length differs from the
// collection's.
var ErrDimension = errors.New("embedding dimension mismatch")
