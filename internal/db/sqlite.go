package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (collection, id)
);
`

// SQLiteStore is the single-node backend. Documents live as JSON text and are
// filtered with the json1 functions.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database file at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return classify("ping", "", "", s.db.PingContext(ctx))
}

func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&raw)
	if err != nil {
		return Document{}, classify("get", collection, id, err)
	}
	data, err := decodeData([]byte(raw))
	if err != nil {
		return Document{}, &StoreError{Op: "get", Collection: collection, ID: id, Kind: ErrMalformed, Err: err}
	}
	return Document{Collection: collection, ID: id, Data: data}, nil
}

func (s *SQLiteStore) Query(ctx context.Context, collection string, preds []Predicate, limit int) ([]Document, error) {
	where, args, err := whereClause(dialectSQLite, preds, []any{collection})
	if err != nil {
		return nil, invalid("query", collection, err)
	}
	query := `SELECT id, data FROM documents WHERE collection = ?`
	if where != "" {
		query += " AND " + where
	}
	query += " ORDER BY id ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("query", collection, "", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, classify("query", collection, "", err)
		}
		data, err := decodeData([]byte(raw))
		if err != nil {
			return nil, &StoreError{Op: "query", Collection: collection, ID: id, Kind: ErrMalformed, Err: err}
		}
		out = append(out, Document{Collection: collection, ID: id, Data: data})
	}
	return out, classify("query", collection, "", rows.Err())
}

func (s *SQLiteStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	raw, err := encodeFields(fields)
	if err != nil {
		return "", invalid("create", collection, err)
	}
	id := uuid.NewString()
	now := nowText()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		collection, id, string(raw), now, now)
	if err != nil {
		return "", classify("create", collection, id, err)
	}
	return id, nil
}

// Update merges in Go rather than with json_patch, which would drop keys set
// to null instead of storing them.
func (s *SQLiteStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	patch, err := encodeFields(fields)
	if err != nil {
		return invalid("update", collection, err)
	}
	changes, err := decodeData(patch)
	if err != nil {
		return invalid("update", collection, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("update", collection, id, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var raw string
	if err := tx.QueryRowContext(ctx, `SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&raw); err != nil {
		return classify("update", collection, id, err)
	}
	data, err := decodeData([]byte(raw))
	if err != nil {
		return &StoreError{Op: "update", Collection: collection, ID: id, Kind: ErrMalformed, Err: err}
	}
	for k, v := range changes {
		data[k] = v
	}
	merged, err := encodeFields(data)
	if err != nil {
		return invalid("update", collection, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		string(merged), nowText(), collection, id); err != nil {
		return classify("update", collection, id, err)
	}
	return classify("update", collection, id, tx.Commit())
}

// Put writes a document under a caller-chosen id, replacing any existing one.
func (s *SQLiteStore) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	raw, err := encodeFields(fields)
	if err != nil {
		return invalid("put", collection, err)
	}
	now := nowText()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, collection, id, string(raw), now, now)
	return classify("put", collection, id, err)
}

func nowText() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
