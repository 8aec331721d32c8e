package travel

import (
	"context"
	"sync"
)

// Memo caches estimates for the lifetime of one planning pass. Placement
// fans out identical queries across candidate intervals and cascade
// branches; the cache keeps provider traffic bounded and, just as
// important, keeps retried passes deterministic.
type Memo struct {
	inner Provider
	mu    sync.Mutex
	hits  map[Query]Estimate
}

// NewMemo wraps a provider for one pass. Build a fresh Memo per pass;
// estimates are not invalidated.
func NewMemo(inner Provider) *Memo {
	return &Memo{inner: inner, hits: make(map[Query]Estimate)}
}

func (m *Memo) Estimate(ctx context.Context, q Query) (Estimate, error) {
	m.mu.Lock()
	if est, ok := m.hits[q]; ok {
		m.mu.Unlock()
		return est, nil
	}
	m.mu.Unlock()

	est, err := m.inner.Estimate(ctx, q)
	if err != nil {
		return Estimate{}, err
	}
	m.mu.Lock()
	m.hits[q] = est
	m.mu.Unlock()
	return est, nil
}

// Size returns the number of cached answers.
func (m *Memo) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hits)
}
