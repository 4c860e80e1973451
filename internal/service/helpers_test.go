package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/securefront/compliance-scheduler/internal/clock"
	"github.com/securefront/compliance-scheduler/internal/db"
	"github.com/securefront/compliance-scheduler/internal/models"
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *db.MemoryStore
	clock *clock.Fake
	env   Env
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	store := db.NewMemoryStore()
	clk := clock.NewFake(now)
	return &fixture{
		t:     t,
		ctx:   context.Background(),
		store: store,
		clock: clk,
		env:   NewEnv(store, clk, zerolog.Nop()),
	}
}

func (f *fixture) put(collection, id string, fields map[string]any) {
	f.t.Helper()
	require.NoError(f.t, f.store.Put(f.ctx, collection, id, fields))
}

func (f *fixture) doc(collection, id string) map[string]any {
	f.t.Helper()
	doc, err := f.store.Get(f.ctx, collection, id)
	require.NoError(f.t, err)
	return doc.Data
}

func (f *fixture) alerts() []models.SystemAlert {
	f.t.Helper()
	docs, err := f.store.Query(f.ctx, models.CollectionSystemAlerts, nil, 0)
	require.NoError(f.t, err)
	out := make([]models.SystemAlert, 0, len(docs))
	for _, doc := range docs {
		var a models.SystemAlert
		require.NoError(f.t, db.Decode(doc, &a))
		out = append(out, a)
	}
	return out
}

func (f *fixture) run(e Evaluator) Summary {
	f.t.Helper()
	sum, err := e.Evaluate(f.ctx)
	require.NoError(f.t, err)
	return sum
}

// flakyStore fails selected calls with an unavailable error.
type flakyStore struct {
	db.Gateway
	failGet    map[string]bool
	failQuery  map[string]bool
	failUpdate map[string]bool
}

func (s *flakyStore) Get(ctx context.Context, collection, id string) (db.Document, error) {
	if s.failGet[collection] || s.failGet[collection+"/"+id] {
		return db.Document{}, &db.StoreError{Op: "get", Collection: collection, ID: id, Kind: db.ErrUnavailable}
	}
	return s.Gateway.Get(ctx, collection, id)
}

func (s *flakyStore) Query(ctx context.Context, collection string, preds []db.Predicate, limit int) ([]db.Document, error) {
	if s.failQuery[collection] {
		return nil, &db.StoreError{Op: "query", Collection: collection, Kind: db.ErrUnavailable}
	}
	return s.Gateway.Query(ctx, collection, preds, limit)
}

func (s *flakyStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if s.failUpdate[collection] {
		return &db.StoreError{Op: "update", Collection: collection, ID: id, Kind: db.ErrUnavailable}
	}
	return s.Gateway.Update(ctx, collection, id, fields)
}
