package docstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// feed fans collection snapshots out to local subscribers. Each subscriber
// holds at most one pending snapshot; a newer one replaces it, so a slow
// reader only ever sees the latest membership.
type feed struct {
	mu     sync.Mutex
	subs   map[string]map[string]*localSub
	closed bool
}

func newFeed() *feed {
	return &feed{subs: make(map[string]map[string]*localSub)}
}

type localSub struct {
	id         string
	collection string
	feed       *feed
	updates    chan []Snapshot
	stop       func()

	mu    sync.Mutex
	err   error
	ended bool
}

// subscribe registers a subscriber and queues the initial snapshot. The
// subscription ends on its own when ctx is done.
func (f *feed) subscribe(ctx context.Context, collection string, initial []Snapshot) (*localSub, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}

	s := &localSub{
		id:         uuid.New().String(),
		collection: collection,
		feed:       f,
		updates:    make(chan []Snapshot, 1),
	}
	if f.subs[collection] == nil {
		f.subs[collection] = make(map[string]*localSub)
	}
	f.subs[collection][s.id] = s
	s.updates <- initial

	stop := context.AfterFunc(ctx, func() { s.end(nil) })
	s.stop = func() { stop() }
	return s, nil
}

func (f *feed) publish(collection string, snaps []Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs[collection] {
		s.offer(snaps)
	}
}

// publishTo delivers a snapshot to one subscriber only.
func (f *feed) publishTo(s *localSub, snaps []Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[s.collection][s.id]; ok {
		s.offer(snaps)
	}
}

func (f *feed) count(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[collection])
}

// close ends every subscription with ErrClosed.
func (f *feed) close() {
	f.mu.Lock()
	all := make([]*localSub, 0)
	for _, byID := range f.subs {
		for _, s := range byID {
			all = append(all, s)
		}
	}
	f.closed = true
	f.mu.Unlock()

	for _, s := range all {
		s.end(ErrClosed)
	}
}

// offer must be called with feed.mu held.
func (s *localSub) offer(snaps []Snapshot) {
	select {
	case s.updates <- snaps:
		return
	default:
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- snaps
}

func (s *localSub) end(err error) {
	s.feed.mu.Lock()
	if _, ok := s.feed.subs[s.collection][s.id]; !ok {
		s.feed.mu.Unlock()
		return
	}
	delete(s.feed.subs[s.collection], s.id)
	s.mu.Lock()
	s.err = err
	s.ended = true
	s.mu.Unlock()
	close(s.updates)
	s.feed.mu.Unlock()

	if s.stop != nil {
		s.stop()
	}
}

func (s *localSub) Updates() <-chan []Snapshot { return s.updates }

func (s *localSub) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *localSub) Close() { s.end(nil) }
