// Package db is the store gateway: a small document API over named
// collections with Postgres, SQLite and in-memory backends.
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/securefront/compliance-scheduler/internal/models"
)

// Document is one stored record. Data holds JSON-compatible values only
// (string, float64, bool, nil, map[string]any, []any).
type Document struct {
	Collection string
	ID         string
	Data       map[string]any
}

type Op string

const (
	OpEq  Op = "=="
	OpNe  Op = "!="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

// Predicate filters on a top-level field. A nil Value with OpEq matches null or
// missing fields; with OpNe it matches any present, non-null value. time.Time
// values compare as instants.
type Predicate struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, value any) Predicate  { return Predicate{Field: field, Op: OpEq, Value: value} }
func Ne(field string, value any) Predicate  { return Predicate{Field: field, Op: OpNe, Value: value} }
func Lt(field string, value any) Predicate  { return Predicate{Field: field, Op: OpLt, Value: value} }
func Lte(field string, value any) Predicate { return Predicate{Field: field, Op: OpLte, Value: value} }
func Gt(field string, value any) Predicate  { return Predicate{Field: field, Op: OpGt, Value: value} }
func Gte(field string, value any) Predicate { return Predicate{Field: field, Op: OpGte, Value: value} }

// Gateway is everything the engine needs from a store. Implementations must be
// safe to call from one goroutine at a time at minimum; all provided ones are
// safe for concurrent use.
type Gateway interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	// Query returns matching documents ordered by id. limit <= 0 means no limit.
	Query(ctx context.Context, collection string, preds []Predicate, limit int) ([]Document, error)
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	// Update merges fields into the document. Missing documents yield ErrNotFound.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Ping(ctx context.Context) error
}

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validatePredicates(preds []Predicate) error {
	for _, p := range preds {
		if !fieldName.MatchString(p.Field) {
			return fmt.Errorf("invalid field name %q", p.Field)
		}
		switch p.Op {
		case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte:
		default:
			return fmt.Errorf("unsupported operator %q", p.Op)
		}
		if p.Value == nil && p.Op != OpEq && p.Op != OpNe {
			return fmt.Errorf("operator %s needs a value for field %s", p.Op, p.Field)
		}
	}
	return nil
}

// encodeFields turns caller values into their JSON wire form. Timestamps are
// written in models.TimestampLayout.
func encodeFields(fields map[string]any) ([]byte, error) {
	return json.Marshal(encodeValue(fields))
}

func encodeValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return models.FormatTimestamp(val)
	case *time.Time:
		if val == nil {
			return nil
		}
		return models.FormatTimestamp(*val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = encodeValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = encodeValue(inner)
		}
		return out
	default:
		return v
	}
}

func decodeData(raw []byte) (map[string]any, error) {
	data := map[string]any{}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}
