// Package store caches parse results in SQLite, keyed by the BLAKE3 digest of
// the raw input together with the parse settings that produced them. Canonical
// text is kept xz-compressed.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	cperrors "github.com/FocuswithJustin/ceparser/core/errors"
	"github.com/FocuswithJustin/ceparser/core/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS results (
	digest       TEXT NOT NULL,
	settings     TEXT NOT NULL,
	name         TEXT NOT NULL,
	format       TEXT NOT NULL,
	canonical    BLOB NOT NULL,
	diagnostics  INTEGER NOT NULL,
	max_severity INTEGER NOT NULL,
	created_at   INTEGER NOT NULL,
	PRIMARY KEY (digest, settings)
)`

// Record is one stored parse result.
type Record struct {
	Digest      string
	// Settings identifies the decoding options the result was produced with.
	Settings    string
	Name        string
	Format      string
	Canonical   string
	Diagnostics int
	MaxSeverity int
	CreatedAt   time.Time
}

// Digest returns the hex BLAKE3-256 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Store is a result cache backed by a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the store at path. An empty path or ":memory:" gives
// a private in-memory store.
func Open(path string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	if path == "" || path == ":memory:" {
		db, err = sqlite.OpenMemory()
	} else {
		db, err = sqlite.Open(path)
	}
	if err != nil {
		return nil, err
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and creates the schema. Writes are serialized
// through a single connection.
func New(db *sql.DB) (*Store, error) {
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts or replaces the record for r's digest and settings. A zero CreatedAt is set to the current time.
func (s *Store) Put(ctx context.Context, r Record) error {
	if r.Digest == "" {
		return fmt.Errorf("%w: record without digest", cperrors.ErrInvalidInput)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	blob, err := compress(r.Canonical)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO results (digest, settings, name, format, canonical, diagnostics, max_severity, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Digest, r.Settings, r.Name, r.Format, blob, r.Diagnostics, r.MaxSeverity, r.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("store result %s: %w", r.Digest, err)
	}
	return nil
}

// Get returns the record for digest produced with settings, or a NotFoundError.
func (s *Store) Get(ctx context.Context, digest, settings string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT digest, settings, name, format, canonical, diagnostics, max_severity, created_at
		 FROM results WHERE digest = ? AND settings = ?`, digest, settings)

	var (
		r       Record
		blob    []byte
		created int64
	)
	err := row.Scan(&r.Digest, &r.Settings, &r.Name, &r.Format, &blob, &r.Diagnostics, &r.MaxSeverity, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cperrors.NewNotFound("result", digest)
	}
	if err != nil {
		return nil, fmt.Errorf("load result %s: %w", digest, err)
	}
	if r.Canonical, err = decompress(blob); err != nil {
		return nil, fmt.Errorf("load result %s: %w", digest, err)
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	return &r, nil
}

// Delete removes every record for digest, whatever its settings. Deleting a
// missing record is not an error.
func (s *Store) Delete(ctx context.Context, digest string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE digest = ?`, digest); err != nil {
		return fmt.Errorf("delete result %s: %w", digest, err)
	}
	return nil
}

// List returns every record without its canonical text, oldest first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT digest, settings, name, format, diagnostics, max_severity, created_at
		 FROM results ORDER BY created_at, digest, settings`)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r       Record
			created int64
		)
		if err := rows.Scan(&r.Digest, &r.Settings, &r.Name, &r.Format, &r.Diagnostics, &r.MaxSeverity, &created); err != nil {
			return nil, fmt.Errorf("list results: %w", err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func compress(text string) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("xz writer: %w", err)
	}
	if _, err := io.WriteString(w, text); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(blob []byte) (string, error) {
	r, err := xz.NewReader(bytes.NewReader(blob))
	if err != nil {
		return "", fmt.Errorf("xz reader: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decompress: %w", err)
	}
	return string(data), nil
}
