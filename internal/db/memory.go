package db

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps documents in process. Values are round-tripped through
// JSON on write so reads look exactly like the SQL backends.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: map[string]map[string]map[string]any{}}
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return classify("ping", "", "", ctx.Err())
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, classify("get", collection, id, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.collections[collection][id]
	if !ok {
		return Document{}, notFound("get", collection, id)
	}
	return Document{Collection: collection, ID: id, Data: cloneData(data)}, nil
}

func (m *MemoryStore) Query(ctx context.Context, collection string, preds []Predicate, limit int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify("query", collection, "", err)
	}
	if err := validatePredicates(preds); err != nil {
		return nil, invalid("query", collection, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := m.collections[collection]
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Document
	for _, id := range ids {
		if !matches(docs[id], preds) {
			continue
		}
		out = append(out, Document{Collection: collection, ID: id, Data: cloneData(docs[id])})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	if err := m.Put(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (m *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return classify("update", collection, id, err)
	}
	changes, err := canonical(fields)
	if err != nil {
		return invalid("update", collection, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.collections[collection][id]
	if !ok {
		return notFound("update", collection, id)
	}
	for k, v := range changes {
		data[k] = v
	}
	return nil
}

// Put writes a document under a caller-chosen id, replacing any existing one.
func (m *MemoryStore) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return classify("put", collection, id, err)
	}
	data, err := canonical(fields)
	if err != nil {
		return invalid("put", collection, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collections[collection] == nil {
		m.collections[collection] = map[string]map[string]any{}
	}
	m.collections[collection][id] = data
	return nil
}

// Len returns the number of documents in a collection.
func (m *MemoryStore) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

func canonical(fields map[string]any) (map[string]any, error) {
	raw, err := encodeFields(fields)
	if err != nil {
		return nil, err
	}
	return decodeData(raw)
}

func cloneData(data map[string]any) map[string]any {
	raw, err := encodeFields(data)
	if err != nil {
		return map[string]any{}
	}
	out, err := decodeData(raw)
	if err != nil {
		return map[string]any{}
	}
	return out
}
