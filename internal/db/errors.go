package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrUnavailable = errors.New("store unavailable")
	ErrMalformed   = errors.New("malformed document")
	ErrInvalid     = errors.New("invalid request")
)

// StoreError records which gateway call failed. Kind is one of the sentinel
// errors above; Err is the underlying cause.
type StoreError struct {
	Op         string
	Collection string
	ID         string
	Kind       error
	Err        error
}

func (e *StoreError) Error() string {
	target := e.Collection
	if e.ID != "" {
		target += "/" + e.ID
	}
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, target, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, target, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func IsNotFound(err error) bool    { return errors.Is(err, ErrNotFound) }
func IsMalformed(err error) bool   { return errors.Is(err, ErrMalformed) }
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }

// classify maps a driver error onto the gateway taxonomy.
func classify(op, collection, id string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	kind := ErrUnavailable
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		kind = ErrNotFound
		err = nil
	}
	return &StoreError{Op: op, Collection: collection, ID: id, Kind: kind, Err: err}
}

func notFound(op, collection, id string) error {
	return &StoreError{Op: op, Collection: collection, ID: id, Kind: ErrNotFound}
}

func invalid(op, collection string, err error) error {
	return &StoreError{Op: op, Collection: collection, Kind: ErrInvalid, Err: err}
}
