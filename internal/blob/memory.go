package blob

import (
	"context"
	"net/url"
	"sync"
)

type object struct {
	data        []byte
	contentType string
}

// Memory keeps objects in a map. URLs are mem:// links.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]object
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]object)}
}

func (m *Memory) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	m.objects[key] = object{data: buf, contentType: contentType}
	m.mu.Unlock()
	return key, nil
}

func (m *Memory) URL(ctx context.Context, ref string) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[ref]
	m.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	return (&url.URL{Scheme: "mem", Path: "/" + ref}).String(), nil
}

// Get returns a copy of a stored object.
func (m *Memory) Get(ref string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[ref]
	if !ok {
		return nil, "", false
	}
	buf := make([]byte, len(o.data))
	copy(buf, o.data)
	return buf, o.contentType, true
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
