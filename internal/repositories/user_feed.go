package repositories

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"rently/internal/docstore"
	"rently/internal/models"
)

// UserFeed is a live view of the Users collection. Each push replaces the
// previous list. A failed subscription is reopened, paced by a limiter,
// until Close is called or the context given to SubscribeAll ends.
type UserFeed struct {
	repo    *DocUserRepository
	updates chan []models.User
	limiter *rate.Limiter
	cancel  context.CancelFunc
	done    chan struct{}

	mu      sync.RWMutex
	current []models.User
}

func newUserFeed(parent context.Context, repo *DocUserRepository, sub docstore.Subscription) *UserFeed {
	ctx, cancel := context.WithCancel(parent)
	f := &UserFeed{
		repo:    repo,
		updates: make(chan []models.User, 1),
		limiter: rate.NewLimiter(rate.Every(repo.retryEvery), 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go f.run(ctx, sub)
	return f
}

// Updates delivers the latest user list. A slow reader only sees the
// newest one. The channel is closed when the feed stops.
func (f *UserFeed) Updates() <-chan []models.User { return f.updates }

// Current returns the last list received, nil before the first push.
func (f *UserFeed) Current() []models.User {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Close stops the feed and waits for its goroutine to exit.
func (f *UserFeed) Close() {
	f.cancel()
	<-f.done
}

// Done is closed once the feed has stopped.
func (f *UserFeed) Done() <-chan struct{} { return f.done }

func (f *UserFeed) run(ctx context.Context, sub docstore.Subscription) {
	defer close(f.done)
	defer close(f.updates)

	for {
		err := f.consume(ctx, sub)
		sub.Close()
		if ctx.Err() != nil || err == nil || errors.Is(err, docstore.ErrClosed) {
			return
		}
		f.repo.log.Warn("user subscription failed, resubscribing", zap.Error(err))

		sub = f.resubscribe(ctx)
		if sub == nil {
			return
		}
		f.repo.metrics.Resubscribes.WithLabelValues(UsersCollection).Inc()
	}
}

func (f *UserFeed) consume(ctx context.Context, sub docstore.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case snaps, ok := <-sub.Updates():
			if !ok {
				return sub.Err()
			}
			f.publish(f.repo.decodeUsers(snaps))
		}
	}
}

func (f *UserFeed) resubscribe(ctx context.Context) docstore.Subscription {
	for {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil
		}
		sub, err := f.repo.store.Subscribe(ctx, UsersCollection)
		if err == nil {
			return sub
		}
		if errors.Is(err, docstore.ErrClosed) {
			return nil
		}
		f.repo.log.Warn("resubscribe failed", zap.Error(err))
	}
}

// publish is only called from run, so the drain-then-send never blocks.
func (f *UserFeed) publish(users []models.User) {
	f.mu.Lock()
	f.current = users
	f.mu.Unlock()

	select {
	case <-f.updates:
	default:
	}
	f.updates <- users
}
