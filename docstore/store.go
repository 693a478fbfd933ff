// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package docstore provides an embedded, schema-validated, reactive JSON
// document store on top of SQLite. Each registered collection maps to one
// SQLite table holding the document id and the JSON body; queries, partial
// updates and the change feed all operate on decoded documents, so callers
// above this package never see SQL.
package docstore

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// ErrStoreClosed is returned by every operation after Close.
var ErrStoreClosed = errors.New("docstore: store is closed")

// ErrCollectionNotFound is returned when a collection was never registered.
var ErrCollectionNotFound = errors.New("docstore: collection not found")

// Store manages the SQLite database and the registered collections.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	// Serialize write operations to prevent SQLite locking issues
	writeMu sync.Mutex

	mu          sync.RWMutex
	collections map[string]*Collection
	closed      bool
}

// Open opens (or creates) a document store at the given path and registers
// one collection per schema. Use ":memory:" for an in-memory store.
func Open(path string, schemas []Schema, logger *slog.Logger) (*Store, error) {
	if len(schemas) == 0 {
		return nil, fmt.Errorf("docstore: at least one collection schema is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// A second pooled connection would see its own empty database.
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode and foreign keys
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{
		db:          db,
		logger:      logger,
		collections: make(map[string]*Collection),
	}

	for _, schema := range schemas {
		if schema.Name == "" {
			db.Close()
			return nil, fmt.Errorf("docstore: collection schema with empty name")
		}
		table := tableName(schema.Name)
		_, err := db.Exec(fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %q (id TEXT PRIMARY KEY, doc TEXT NOT NULL)`, table))
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create collection %s: %w", schema.Name, err)
		}
		s.collections[schema.Name] = &Collection{
			store:  s,
			name:   schema.Name,
			table:  table,
			schema: schema,
			feed:   newChangeFeed(schema.Name, logger),
		}
	}

	return s, nil
}

// OpenMemory opens an in-memory store, used heavily in tests.
func OpenMemory(schemas []Schema, logger *slog.Logger) (*Store, error) {
	return Open(":memory:", schemas, logger)
}

// Collection returns the registered collection with the given name.
func (s *Store) Collection(name string) (*Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	col, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return col, nil
}

// Collections returns the names of all registered collections.
func (s *Store) Collections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	return names
}

// Close shuts down the store. All subsequent operations on the store or its
// collections fail with ErrStoreClosed. Safe to call multiple times.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, col := range s.collections {
		col.feed.close()
	}
	return s.db.Close()
}

// checkOpen returns ErrStoreClosed once the store has been closed.
func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func tableName(collection string) string {
	return "col_" + collection
}
