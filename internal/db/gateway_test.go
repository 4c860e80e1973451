package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type putter interface {
	Gateway
	Put(ctx context.Context, collection, id string, fields map[string]any) error
}

// runGatewaySuite checks the behaviour every backend must share.
func runGatewaySuite(t *testing.T, g putter) {
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, g.Put(ctx, "shifts", "s1", map[string]any{
		"agencyId": "a1", "shiftStart": base, "status": "scheduled", "hours": 8,
	}))
	require.NoError(t, g.Put(ctx, "shifts", "s2", map[string]any{
		"agencyId": "a1", "shiftStart": base.Add(2 * time.Hour), "status": "completed", "hours": 4,
	}))
	require.NoError(t, g.Put(ctx, "shifts", "s3", map[string]any{
		"agencyId": "a2", "shiftStart": base.Add(-time.Hour), "status": "scheduled", "flag": true,
	}))
	require.NoError(t, g.Put(ctx, "attendance", "r1", map[string]any{
		"shiftId": "s1", "clockIn": base, "clockOut": nil,
	}))
	require.NoError(t, g.Put(ctx, "attendance", "r2", map[string]any{
		"shiftId": "s2", "clockIn": base, "clockOut": base.Add(time.Hour),
	}))
	require.NoError(t, g.Put(ctx, "attendance", "r3", map[string]any{
		"shiftId": "s3", "clockIn": base,
	}))

	ids := func(docs []Document) []string {
		out := []string{}
		for _, d := range docs {
			out = append(out, d.ID)
		}
		return out
	}

	t.Run("get", func(t *testing.T) {
		doc, err := g.Get(ctx, "shifts", "s1")
		require.NoError(t, err)
		assert.Equal(t, "a1", doc.Data["agencyId"])
		assert.Equal(t, "2025-05-01T09:00:00.000000Z", doc.Data["shiftStart"])

		_, err = g.Get(ctx, "shifts", "missing")
		assert.True(t, IsNotFound(err), "got %v", err)
	})

	t.Run("query", func(t *testing.T) {
		cases := []struct {
			name  string
			coll  string
			preds []Predicate
			want  []string
		}{
			{"equality", "shifts", []Predicate{Eq("agencyId", "a1")}, []string{"s1", "s2"}},
			{"inequality", "shifts", []Predicate{Ne("status", "completed")}, []string{"s1", "s3"}},
			{"time range", "shifts", []Predicate{Lte("shiftStart", base)}, []string{"s1", "s3"}},
			{"time window", "shifts", []Predicate{Gte("shiftStart", base), Lt("shiftStart", base.Add(3*time.Hour))}, []string{"s1", "s2"}},
			{"numeric range", "shifts", []Predicate{Gt("hours", 5)}, []string{"s1"}},
			{"numeric equality", "shifts", []Predicate{Eq("hours", 4)}, []string{"s2"}},
			{"bool", "shifts", []Predicate{Eq("flag", true)}, []string{"s3"}},
			{"null or missing", "attendance", []Predicate{Eq("clockOut", nil)}, []string{"r1", "r3"}},
			{"present", "attendance", []Predicate{Ne("clockOut", nil)}, []string{"r2"}},
			{"no predicates", "attendance", nil, []string{"r1", "r2", "r3"}},
			{"empty collection", "licenses", nil, []string{}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				docs, err := g.Query(ctx, tc.coll, tc.preds, 0)
				require.NoError(t, err)
				assert.Equal(t, tc.want, ids(docs))
			})
		}
	})

	t.Run("limit", func(t *testing.T) {
		docs, err := g.Query(ctx, "shifts", nil, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"s1", "s2"}, ids(docs))
	})

	t.Run("invalid field", func(t *testing.T) {
		_, err := g.Query(ctx, "shifts", []Predicate{Eq("a'; drop", 1)}, 0)
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("create and update", func(t *testing.T) {
		id, err := g.Create(ctx, "systemAlerts", map[string]any{"agencyId": "a1", "read": false, "siteId": nil})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		require.NoError(t, g.Update(ctx, "systemAlerts", id, map[string]any{"read": true}))
		doc, err := g.Get(ctx, "systemAlerts", id)
		require.NoError(t, err)
		assert.Equal(t, true, doc.Data["read"])
		assert.Equal(t, "a1", doc.Data["agencyId"])
		assert.Contains(t, doc.Data, "siteId")

		err = g.Update(ctx, "systemAlerts", "nope", map[string]any{"read": true})
		assert.True(t, IsNotFound(err), "got %v", err)
	})

	t.Run("update to null", func(t *testing.T) {
		require.NoError(t, g.Update(ctx, "attendance", "r2", map[string]any{"clockOut": nil}))
		docs, err := g.Query(ctx, "attendance", []Predicate{Eq("clockOut", nil)}, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"r1", "r2", "r3"}, ids(docs))
	})

	t.Run("unparseable timestamps do not match", func(t *testing.T) {
		require.NoError(t, g.Put(ctx, "checkIns", "good", map[string]any{"at": base}))
		require.NoError(t, g.Put(ctx, "checkIns", "garbage", map[string]any{"at": "not a time"}))
		require.NoError(t, g.Put(ctx, "checkIns", "naive", map[string]any{"at": "2025-05-01T08:30:00"}))

		docs, err := g.Query(ctx, "checkIns", []Predicate{Gte("at", base.Add(-time.Hour))}, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"good", "naive"}, ids(docs))

		// Values without an offset are read as UTC on every backend.
		docs, err = g.Query(ctx, "checkIns", []Predicate{Lt("at", base.Add(-20*time.Minute))}, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"naive"}, ids(docs))
	})
}

func TestMemoryStore(t *testing.T) {
	runGatewaySuite(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	defer store.Close()
	runGatewaySuite(t, store)
}

func TestPostgresStoreIntegration(t *testing.T) {
	url := testDatabaseURL(t)
	ctx := context.Background()
	store, err := New(ctx, url)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.EnsureSchema(ctx))
	_, err = store.Pool.Exec(ctx, `DELETE FROM documents WHERE collection IN ('shifts','attendance','systemAlerts','licenses','checkIns')`)
	require.NoError(t, err)
	runGatewaySuite(t, store)
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.Put(ctx, "employees", "e1", map[string]any{"name": "Ana"}))

	doc, err := m.Get(ctx, "employees", "e1")
	require.NoError(t, err)
	doc.Data["name"] = "changed"

	again, err := m.Get(ctx, "employees", "e1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", again.Data["name"])
	assert.Equal(t, 1, m.Len("employees"))
}

func TestCancelledContextIsUnavailable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryStore().Query(ctx, "shifts", nil, 0)
	assert.True(t, IsUnavailable(err), "got %v", err)
	assert.ErrorIs(t, err, context.Canceled)
}
