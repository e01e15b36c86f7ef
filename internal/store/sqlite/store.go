// Package sqlite implements the persistent, embedded-relational storage
// backend on top of modernc.org/sqlite, a pure-Go, cgo-free SQLite driver.
// It keeps one dedicated writer connection and a bounded reader pool, so
// reads never interleave inside a write transaction.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jchristn/verbex/internal/ids"
	"github.com/jchristn/verbex/internal/model"
	"github.com/jchristn/verbex/internal/store"

	_ "modernc.org/sqlite"
)

type txKey struct{}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the persistent Backend implementation.
type Store struct {
	name string
	path string

	writeDB *sql.DB
	readDB  *sql.DB

	maxReaders int
	gen        *ids.Generator
}

// New returns a Store for the database file at path. Call Open before use.
func New(name, path string, maxReaders int) *Store {
	if maxReaders <= 0 {
		maxReaders = 4
	}
	return &Store{name: name, path: path, maxReaders: maxReaders, gen: ids.NewGenerator()}
}

// Durable implements store.Backend.
func (s *Store) Durable() bool { return true }

// Open implements store.Backend: it creates the storage directory, opens the
// writer and reader connections, applies pragmas, runs the schema, and loads
// or creates index metadata.
func (s *Store) Open(ctx context.Context) error {
	if s.writeDB != nil {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("sqlite: create storage directory: %w", err)
		}
	}

	writeDB, err := sql.Open("sqlite", dsn(s.path))
	if err != nil {
		return fmt.Errorf("sqlite: open writer: %w", err)
	}
	writeDB.SetMaxOpenConns(1)
	writeDB.SetMaxIdleConns(1)

	readDB, err := sql.Open("sqlite", dsn(s.path))
	if err != nil {
		writeDB.Close()
		return fmt.Errorf("sqlite: open reader pool: %w", err)
	}
	readDB.SetMaxOpenConns(s.maxReaders)
	readDB.SetMaxIdleConns(s.maxReaders)

	if _, err := writeDB.ExecContext(ctx, schemaDDL); err != nil {
		writeDB.Close()
		readDB.Close()
		return fmt.Errorf("sqlite: schema: %w", err)
	}

	s.writeDB = writeDB
	s.readDB = readDB

	if err := s.ensureMetadata(ctx); err != nil {
		s.writeDB.Close()
		s.readDB.Close()
		s.writeDB, s.readDB = nil, nil
		return err
	}
	return nil
}

func (s *Store) ensureMetadata(ctx context.Context) error {
	row := s.writeDB.QueryRowContext(ctx, `SELECT id FROM index_metadata LIMIT 1`)
	var existing string
	switch err := row.Scan(&existing); {
	case err == sql.ErrNoRows:
		now := nowRFC3339()
		_, err := s.writeDB.ExecContext(ctx,
			`INSERT INTO index_metadata (id, name, created_utc, last_modified_utc) VALUES (?, ?, ?, ?)`,
			s.gen.New(), s.name, now, now)
		if err != nil {
			return fmt.Errorf("sqlite: insert metadata: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("sqlite: load metadata: %w", err)
	default:
		return nil
	}
}

// Close implements store.Backend.
func (s *Store) Close(ctx context.Context) error {
	var firstErr error
	if s.writeDB != nil {
		if err := s.writeDB.Close(); err != nil {
			firstErr = err
		}
		s.writeDB = nil
	}
	if s.readDB != nil {
		if err := s.readDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.readDB = nil
	}
	return firstErr
}

// Flush implements store.Backend: it forces a WAL checkpoint so durable
// writes are committed to the main database file.
func (s *Store) Flush(ctx context.Context) error {
	_, err := s.writeDB.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`)
	if err != nil {
		return fmt.Errorf("sqlite: flush: %w", err)
	}
	return nil
}

// WithWriteLock implements store.Backend by running fn inside a single
// *sql.Tx on the dedicated writer connection. The transaction commits on
// success and rolls back on any error, so mutating operations are
// all-or-nothing.
func (s *Store) WithWriteLock(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// q returns the active *sql.Tx if ctx carries one (we're inside
// WithWriteLock), otherwise the shared reader pool.
func (s *Store) q(ctx context.Context) queryer {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.readDB
}

// w returns the active *sql.Tx, or the dedicated writer connection when
// called outside WithWriteLock (e.g. TouchMetadata run standalone).
func (s *Store) w(ctx context.Context) queryer {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.writeDB
}

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

var _ store.Backend = (*Store)(nil)

// Path returns the database file path, for the manager's discovery logic.
func (s *Store) Path() string { return s.path }

// GetMetadata implements store.Backend.
func (s *Store) GetMetadata(ctx context.Context) (model.IndexMetadata, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT id, name, created_utc, last_modified_utc FROM index_metadata LIMIT 1`)
	var md model.IndexMetadata
	var created, modified string
	if err := row.Scan(&md.ID, &md.Name, &created, &modified); err != nil {
		return model.IndexMetadata{}, fmt.Errorf("sqlite: get metadata: %w", err)
	}
	md.CreatedUTC = parseTime(created)
	md.LastModifiedUTC = parseTime(modified)
	return md, nil
}

// TouchMetadata implements store.Backend.
func (s *Store) TouchMetadata(ctx context.Context) error {
	_, err := s.w(ctx).ExecContext(ctx, `UPDATE index_metadata SET last_modified_utc = ?`, nowRFC3339())
	if err != nil {
		return fmt.Errorf("sqlite: touch metadata: %w", err)
	}
	return nil
}
