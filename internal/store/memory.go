package store

import (
	"bytes"
	"context"
	"strings"
	"sync"
)

// watchBuffer is the per-subscription channel capacity. A watcher
// that falls this far behind starts losing events; the feed is a
// notification stream, not a journal.
const watchBuffer = 64

// Memory is an in-process Store used by tests and as the fallback
// backend when Redis is not reachable at startup. It implements
// Conditional natively, so the single-node server gets real
// compare-and-swap semantics without any external dependency.
type Memory struct {
	mu       sync.RWMutex
	records  map[string][]byte
	watchers map[*memSub]struct{}
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		records:  make(map[string][]byte),
		watchers: make(map[*memSub]struct{}),
	}
}

type memSub struct {
	store  *Memory
	prefix string
	events chan Event
	once   sync.Once
}

func (s *memSub) Events() <-chan Event { return s.events }

func (s *memSub) Unsubscribe() {
	s.once.Do(func() {
		s.store.mu.Lock()
		delete(s.store.watchers, s)
		s.store.mu.Unlock()
		close(s.events)
	})
}

func (m *Memory) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.records[path]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Set(ctx context.Context, path string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.mu.Lock()
	m.records[path] = stored
	m.notifyLocked(Event{Path: path, Value: stored})
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if _, ok := m.records[path]; ok {
		delete(m.records, path)
		m.notifyLocked(Event{Path: path, Deleted: true})
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]byte)
	for path, v := range m.records {
		if strings.HasPrefix(path, prefix) {
			c := make([]byte, len(v))
			copy(c, v)
			out[path] = c
		}
	}
	return out, nil
}

// CompareAndSwap implements Conditional. The comparison and the
// write happen under the store lock, so concurrent swaps on one
// path serialize and at most one matching swap succeeds.
func (m *Memory) CompareAndSwap(ctx context.Context, path string, expect, replace []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	stored := make([]byte, len(replace))
	copy(stored, replace)
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.records[path]
	if !ok || !bytes.Equal(current, expect) {
		return false, nil
	}
	m.records[path] = stored
	m.notifyLocked(Event{Path: path, Value: stored})
	return true, nil
}

// SetIfAbsent implements Conditional.
func (m *Memory) SetIfAbsent(ctx context.Context, path string, value []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[path]; ok {
		return false, nil
	}
	m.records[path] = stored
	m.notifyLocked(Event{Path: path, Value: stored})
	return true, nil
}

func (m *Memory) Watch(ctx context.Context, prefix string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &memSub{store: m, prefix: prefix, events: make(chan Event, watchBuffer)}
	m.mu.Lock()
	m.watchers[sub] = struct{}{}
	m.mu.Unlock()
	return sub, nil
}

// notifyLocked fans an event out to matching watchers. Sends are
// non-blocking: a full subscriber drops the event instead of
// stalling writers.
func (m *Memory) notifyLocked(ev Event) {
	for sub := range m.watchers {
		if !strings.HasPrefix(ev.Path, sub.prefix) {
			continue
		}
		select {
		case sub.events <- ev:
		default:
		}
	}
}
