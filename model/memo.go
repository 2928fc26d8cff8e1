package model

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// memo guards the memoized operations of one instance. Concurrent callers
// of the same key share a single in-flight computation; successful results
// are cached for later callers.
type memo struct {
	token string
	group singleflight.Group

	mu   sync.Mutex
	done map[string]any
}

func newMemo() *memo {
	return &memo{
		token: uuid.NewString(),
		done:  make(map[string]any),
	}
}

func (m *memo) cached(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.done[key]
	return v, ok
}

func (m *memo) do(key string, fn func() (any, error)) (any, error) {
	key = m.token + ":" + key
	if v, ok := m.cached(key); ok {
		return v, nil
	}
	v, err, _ := m.group.Do(key, func() (any, error) {
		if v, ok := m.cached(key); ok {
			return v, nil
		}
		v, err := fn()
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.done[key] = v
		m.mu.Unlock()
		return v, nil
	})
	return v, err
}

// onceValue memoizes a single getter. The lock is held while computing so
// that concurrent callers wait for, and then observe, the first result.
type onceValue struct {
	mu   sync.Mutex
	done bool
	v    any
}

func (o *onceValue) get(ctx context.Context, fn Getter) (any, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return o.v, nil
	}
	v, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	o.v, o.done = v, true
	return v, nil
}
