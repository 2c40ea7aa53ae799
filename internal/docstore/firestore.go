package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore is the Store backed by Cloud Firestore. Documents are
// written with their `firestore` struct tags.
type FirestoreStore struct {
	client *firestore.Client
	log    *zap.Logger
}

// NewFirestore connects to the given project. FIRESTORE_EMULATOR_HOST is
// honoured by the client library.
func NewFirestore(ctx context.Context, projectID string, log *zap.Logger) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FirestoreStore{client: client, log: log}, nil
}

type firestoreSnapshot struct {
	snap *firestore.DocumentSnapshot
}

func (s firestoreSnapshot) ID() string { return s.snap.Ref.ID }

func (s firestoreSnapshot) DataTo(v any) error { return s.snap.DataTo(v) }

func (s *FirestoreStore) Create(ctx context.Context, collection, id string, data any) (string, error) {
	ref := s.client.Collection(collection).NewDoc()
	if id != "" {
		ref = s.client.Collection(collection).Doc(id)
	}
	if _, err := ref.Create(ctx, data); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return "", fmt.Errorf("%s/%s: %w", collection, ref.ID, ErrAlreadyExists)
		}
		return "", fmt.Errorf("failed to create %s/%s: %w", collection, ref.ID, err)
	}
	return ref.ID, nil
}

func (s *FirestoreStore) Set(ctx context.Context, collection, id string, data any) error {
	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, data); err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *FirestoreStore) Get(ctx context.Context, collection, id string) (Snapshot, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return firestoreSnapshot{snap: snap}, nil
}

func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *FirestoreStore) Query(ctx context.Context, collection, field string, value any) ([]Snapshot, error) {
	docs, err := s.client.Collection(collection).Where(field, "==", value).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s by %s: %w", collection, field, err)
	}
	return wrapDocs(docs), nil
}

func (s *FirestoreStore) GetAll(ctx context.Context, collection string) ([]Snapshot, error) {
	docs, err := s.client.Collection(collection).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", collection, err)
	}
	return wrapDocs(docs), nil
}

func (s *FirestoreStore) ArrayUnion(ctx context.Context, collection, id, field string, values ...any) error {
	return s.update(ctx, collection, id, field, firestore.ArrayUnion(values...))
}

func (s *FirestoreStore) ArrayRemove(ctx context.Context, collection, id, field string, values ...any) error {
	return s.update(ctx, collection, id, field, firestore.ArrayRemove(values...))
}

func (s *FirestoreStore) update(ctx context.Context, collection, id, field string, value any) error {
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, []firestore.Update{{Path: field, Value: value}})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return fmt.Errorf("failed to update %s/%s.%s: %w", collection, id, field, err)
	}
	return nil
}

// Subscribe listens with a Firestore snapshot iterator. The first push is
// the current membership.
func (s *FirestoreStore) Subscribe(ctx context.Context, collection string) (Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &remoteSub{
		updates: make(chan []Snapshot, 1),
		cancel:  cancel,
	}
	it := s.client.Collection(collection).Snapshots(subCtx)

	go func() {
		defer it.Stop()
		for {
			qs, err := it.Next()
			if err != nil {
				if subCtx.Err() != nil || errors.Is(err, iterator.Done) {
					sub.end(nil)
				} else {
					s.log.Warn("firestore subscription ended", zap.String("collection", collection), zap.Error(err))
					sub.end(err)
				}
				return
			}
			docs, err := qs.Documents.GetAll()
			if err != nil {
				sub.end(fmt.Errorf("failed to read %s snapshot: %w", collection, err))
				return
			}
			sub.offer(wrapDocs(docs))
		}
	}()
	return sub, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func wrapDocs(docs []*firestore.DocumentSnapshot) []Snapshot {
	out := make([]Snapshot, 0, len(docs))
	for _, d := range docs {
		out = append(out, firestoreSnapshot{snap: d})
	}
	return out
}

// remoteSub is fed by a single producer goroutine.
type remoteSub struct {
	updates chan []Snapshot
	cancel  context.CancelFunc

	mu  sync.Mutex
	err error
}

func (r *remoteSub) offer(snaps []Snapshot) {
	select {
	case <-r.updates:
	default:
	}
	r.updates <- snaps
}

func (r *remoteSub) end(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	r.cancel()
	close(r.updates)
}

func (r *remoteSub) Updates() <-chan []Snapshot { return r.updates }

func (r *remoteSub) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *remoteSub) Close() { r.cancel() }
