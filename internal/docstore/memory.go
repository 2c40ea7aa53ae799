package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store. Bodies are kept as JSON so documents decode
// the same way they would from a remote backend.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
	feed        *feed
	closed      bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string][]byte),
		feed:        newFeed(),
	}
}

func (m *Memory) Create(ctx context.Context, collection, id string, data any) (string, error) {
	body, err := encode(data)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrClosed
	}

	if id == "" {
		id = uuid.New().String()
	}
	docs := m.docs(collection)
	if _, ok := docs[id]; ok {
		return "", fmt.Errorf("%s/%s: %w", collection, id, ErrAlreadyExists)
	}
	docs[id] = body
	m.notify(collection)
	return id, nil
}

func (m *Memory) Set(ctx context.Context, collection, id string, data any) error {
	body, err := encode(data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.docs(collection)[id] = body
	m.notify(collection)
	return nil
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	body, ok := m.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return jsonSnapshot{id: id, data: body}, nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	docs := m.collections[collection]
	if _, ok := docs[id]; !ok {
		return nil
	}
	delete(docs, id)
	m.notify(collection)
	return nil
}

func (m *Memory) Query(ctx context.Context, collection, field string, value any) ([]Snapshot, error) {
	want, err := normalize(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query value: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	var out []Snapshot
	for _, s := range m.snapshot(collection) {
		js := s.(jsonSnapshot)
		ok, err := fieldEquals(js.data, field, want)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) GetAll(ctx context.Context, collection string) ([]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return m.snapshot(collection), nil
}

func (m *Memory) Subscribe(ctx context.Context, collection string) (Subscription, error) {
	// Holding the read lock keeps writers, and therefore publishes, out
	// until the initial snapshot is queued.
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return m.feed.subscribe(ctx, collection, m.snapshot(collection))
}

func (m *Memory) ArrayUnion(ctx context.Context, collection, id, field string, values ...any) error {
	return m.updateArray(collection, id, field, true, values)
}

func (m *Memory) ArrayRemove(ctx context.Context, collection, id, field string, values ...any) error {
	return m.updateArray(collection, id, field, false, values)
}

func (m *Memory) updateArray(collection, id, field string, union bool, values []any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	docs := m.collections[collection]
	body, ok := docs[id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	next, err := applyArray(body, field, union, values)
	if err != nil {
		return err
	}
	docs[id] = next
	m.notify(collection)
	return nil
}

// Subscribers reports the number of open subscriptions on collection.
func (m *Memory) Subscribers(collection string) int {
	return m.feed.count(collection)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.feed.close()
	return nil
}

func (m *Memory) docs(collection string) map[string][]byte {
	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string][]byte)
		m.collections[collection] = docs
	}
	return docs
}

// snapshot returns the collection ordered by key. Callers hold m.mu.
func (m *Memory) snapshot(collection string) []Snapshot {
	docs := m.collections[collection]
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		out = append(out, jsonSnapshot{id: id, data: docs[id]})
	}
	return out
}

// notify must be called with m.mu held for writing.
func (m *Memory) notify(collection string) {
	m.feed.publish(collection, m.snapshot(collection))
}
