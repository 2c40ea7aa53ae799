package session

import (
	"context"
	"sync"
	"time"
)

// Memory is a Store for tests and single-process deployments. Expired
// entries are removed lazily on Get.
type Memory struct {
	mu    sync.Mutex
	items map[string]Session
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]Session), now: time.Now}
}

func (m *Memory) Save(_ context.Context, s Session, ttl time.Duration) error {
	s.ExpiresAt = m.now().Add(ttl)
	m.mu.Lock()
	m.items[s.Token] = s
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, token string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	if !m.now().Before(s.ExpiresAt) {
		delete(m.items, token)
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.items, token)
	m.mu.Unlock()
	return nil
}
