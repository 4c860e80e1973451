package db

import (
	"context"
	"time"
)

type timeoutGateway struct {
	next    Gateway
	timeout time.Duration
}

// WithTimeout bounds every call on g. A non-positive timeout returns g as is.
func WithTimeout(g Gateway, timeout time.Duration) Gateway {
	if timeout <= 0 {
		return g
	}
	return &timeoutGateway{next: g, timeout: timeout}
}

func (t *timeoutGateway) Get(ctx context.Context, collection, id string) (Document, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Get(ctx, collection, id)
}

func (t *timeoutGateway) Query(ctx context.Context, collection string, preds []Predicate, limit int) ([]Document, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Query(ctx, collection, preds, limit)
}

func (t *timeoutGateway) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Create(ctx, collection, fields)
}

func (t *timeoutGateway) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Update(ctx, collection, id, fields)
}

func (t *timeoutGateway) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Ping(ctx)
}
