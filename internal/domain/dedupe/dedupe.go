// Package dedupe remembers recently handled payment webhook event IDs so
// retried deliveries are acknowledged without being processed twice.
//
// It is a fast path in front of the durable payment_events table; after a
// restart the table alone decides.
package dedupe

import (
	"context"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const defaultMaxSize = 10000

// Deduper records seen event IDs.
type Deduper interface {
	// SeenAndRecord reports whether id was already recorded and records it
	// if not. The check and the write are atomic.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a failed event can be retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    *orderedmap.OrderedMap[string, struct{}] // insertion order, oldest first
	maxSize int
}

// NewInMemoryDeduper creates a bounded in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
		seen:    orderedmap.New[string, struct{}](),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen.Get(id); ok {
		return true
	}
	if d.maxSize > 0 && d.seen.Len() >= d.maxSize {
		d.seen.Delete(d.seen.Oldest().Key)
	}
	d.seen.Set(id, struct{}{})
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seen.Delete(id)
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.seen.Len())
}
