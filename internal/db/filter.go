package db

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/securefront/compliance-scheduler/internal/models"
)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

// whereClause renders predicates as SQL over the JSON "data" column. Args are
// appended after any existing ones so placeholders stay in order.
func whereClause(d dialect, preds []Predicate, args []any) (string, []any, error) {
	if err := validatePredicates(preds); err != nil {
		return "", nil, err
	}
	var parts []string
	for _, p := range preds {
		var (
			expr string
			err  error
		)
		switch d {
		case dialectPostgres:
			expr, args, err = postgresPredicate(p, args)
		default:
			expr, args, err = sqlitePredicate(p, args)
		}
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, expr)
	}
	return strings.Join(parts, " AND "), args, nil
}

func postgresPredicate(p Predicate, args []any) (string, []any, error) {
	field := fmt.Sprintf("data->'%s'", p.Field)
	text := fmt.Sprintf("data->>'%s'", p.Field)
	present := fmt.Sprintf("(%s IS NOT NULL AND %s <> 'null'::jsonb)", field, field)

	if p.Value == nil {
		if p.Op == OpEq {
			return fmt.Sprintf("(%s IS NULL OR %s = 'null'::jsonb)", field, field), args, nil
		}
		return present, args, nil
	}

	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch v := p.Value.(type) {
	case time.Time:
		expr := fmt.Sprintf("try_timestamptz(%s) %s %s", text, sqlOp(p.Op), next(v.UTC()))
		if p.Op == OpNe {
			expr = present + " AND " + expr
		}
		return "(" + expr + ")", args, nil
	case string:
		if p.Op == OpEq || p.Op == OpNe {
			break
		}
		return fmt.Sprintf("(%s %s %s)", text, sqlOp(p.Op), next(v)), args, nil
	case bool:
		if p.Op != OpEq && p.Op != OpNe {
			return "", nil, fmt.Errorf("operator %s not supported for bool field %s", p.Op, p.Field)
		}
	default:
		if f, ok := toFloat(v); ok && p.Op != OpEq && p.Op != OpNe {
			return fmt.Sprintf("(%s)::numeric %s %s", text, sqlOp(p.Op), next(f)), args, nil
		}
	}

	raw, err := json.Marshal(p.Value)
	if err != nil {
		return "", nil, err
	}
	if p.Op == OpEq {
		return fmt.Sprintf("%s = %s::jsonb", field, next(string(raw))), args, nil
	}
	return fmt.Sprintf("(%s AND %s <> %s::jsonb)", present, field, next(string(raw))), args, nil
}

func sqlitePredicate(p Predicate, args []any) (string, []any, error) {
	field := fmt.Sprintf("json_extract(data, '$.%s')", p.Field)

	if p.Value == nil {
		if p.Op == OpEq {
			return field + " IS NULL", args, nil
		}
		return field + " IS NOT NULL", args, nil
	}

	left := field
	var arg any
	switch v := p.Value.(type) {
	case time.Time:
		left = fmt.Sprintf("julianday(%s)", field)
		arg = models.FormatTimestamp(v)
	case bool:
		if p.Op != OpEq && p.Op != OpNe {
			return "", nil, fmt.Errorf("operator %s not supported for bool field %s", p.Op, p.Field)
		}
		arg = 0
		if v {
			arg = 1
		}
	default:
		if f, ok := toFloat(v); ok {
			arg = f
		} else {
			arg = v
		}
	}
	args = append(args, arg)
	right := "?"
	if _, ok := p.Value.(time.Time); ok {
		right = "julianday(?)"
	}
	if p.Op == OpNe {
		return fmt.Sprintf("(%s IS NOT NULL AND %s <> %s)", field, left, right), args, nil
	}
	return fmt.Sprintf("%s %s %s", left, sqlOp(p.Op), right), args, nil
}

func sqlOp(op Op) string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "<>"
	default:
		return string(op)
	}
}

// matches evaluates predicates against decoded JSON data with the same
// semantics as the SQL backends.
func matches(data map[string]any, preds []Predicate) bool {
	for _, p := range preds {
		if !matchOne(data, p) {
			return false
		}
	}
	return true
}

func matchOne(data map[string]any, p Predicate) bool {
	v, ok := data[p.Field]
	isNull := !ok || v == nil
	if p.Value == nil {
		if p.Op == OpEq {
			return isNull
		}
		return !isNull
	}
	if isNull {
		return false
	}
	cmp, comparable := compare(v, p.Value)
	if !comparable {
		return false
	}
	switch p.Op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	}
	return false
}

// compare orders a stored value against a predicate value. The second result
// is false when the two cannot be compared.
func compare(stored any, want any) (int, bool) {
	switch w := want.(type) {
	case time.Time:
		s, ok := stored.(string)
		if !ok {
			return 0, false
		}
		t, err := models.ParseTimestamp(s)
		if err != nil || t.IsZero() {
			return 0, false
		}
		return t.Compare(w.UTC()), true
	case string:
		s, ok := stored.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(s, w), true
	case bool:
		b, ok := stored.(bool)
		if !ok {
			return 0, false
		}
		if b == w {
			return 0, true
		}
		return 1, true
	}
	wf, ok := toFloat(want)
	if !ok {
		return 0, false
	}
	sf, ok := toFloat(stored)
	if !ok {
		return 0, false
	}
	switch {
	case sf < wf:
		return -1, true
	case sf > wf:
		return 1, true
	}
	return 0, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
