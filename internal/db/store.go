package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_data_gin ON documents USING GIN (data jsonb_path_ops);
CREATE OR REPLACE FUNCTION try_timestamptz(value text) RETURNS timestamptz AS $$
BEGIN
	RETURN value::timestamptz;
EXCEPTION WHEN others THEN
	RETURN NULL;
END;
$$ LANGUAGE plpgsql STABLE;
`

// Store keeps every collection in a single JSONB table.
type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	// Offset-less timestamps in stored documents are read as UTC.
	cfg.ConnConfig.RuntimeParams["timezone"] = "UTC"
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return classify("ping", "", "", s.Pool.Ping(ctx))
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, postgresSchema)
	return classify("schema", "documents", "", err)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw []byte
	err := s.Pool.QueryRow(ctx, `SELECT data FROM documents WHERE collection = $1 AND id = $2`, collection, id).Scan(&raw)
	if err != nil {
		return Document{}, classify("get", collection, id, err)
	}
	data, err := decodeData(raw)
	if err != nil {
		return Document{}, &StoreError{Op: "get", Collection: collection, ID: id, Kind: ErrMalformed, Err: err}
	}
	return Document{Collection: collection, ID: id, Data: data}, nil
}

func (s *Store) Query(ctx context.Context, collection string, preds []Predicate, limit int) ([]Document, error) {
	where, args, err := whereClause(dialectPostgres, preds, []any{collection})
	if err != nil {
		return nil, invalid("query", collection, err)
	}
	query := `SELECT id, data FROM documents WHERE collection = $1`
	if where != "" {
		query += " AND " + where
	}
	query += " ORDER BY id ASC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("query", collection, "", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, classify("query", collection, "", err)
		}
		data, err := decodeData(raw)
		if err != nil {
			return nil, &StoreError{Op: "query", Collection: collection, ID: id, Kind: ErrMalformed, Err: err}
		}
		out = append(out, Document{Collection: collection, ID: id, Data: data})
	}
	return out, classify("query", collection, "", rows.Err())
}

func (s *Store) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	raw, err := encodeFields(fields)
	if err != nil {
		return "", invalid("create", collection, err)
	}
	id := uuid.NewString()
	_, err = s.Pool.Exec(ctx, `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)`, collection, id, raw)
	if err != nil {
		return "", classify("create", collection, id, err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	raw, err := encodeFields(fields)
	if err != nil {
		return invalid("update", collection, err)
	}
	tag, err := s.Pool.Exec(ctx, `UPDATE documents SET data = data || $3, updated_at = NOW() WHERE collection = $1 AND id = $2`, collection, id, raw)
	if err != nil {
		return classify("update", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("update", collection, id)
	}
	return nil
}

// Put writes a document under a caller-chosen id, replacing any existing one.
func (s *Store) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	raw, err := encodeFields(fields)
	if err != nil {
		return invalid("put", collection, err)
	}
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
			ON CONFLICT (collection, id) DO UPDATE SET
				data = EXCLUDED.data,
				updated_at = NOW()
		`, collection, id, raw)
		return classify("put", collection, id, err)
	})
}
