package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rently/internal/docstore"
	"rently/internal/metrics"
	"rently/internal/models"
)

// DocUserRepository is a docstore implementation of UserRepository.
type DocUserRepository struct {
	store       docstore.Store
	metrics     *metrics.Metrics
	log         *zap.Logger
	concurrency int
	// retryEvery paces re-subscription of a failed live feed.
	retryEvery time.Duration
}

type UserRepoOptions struct {
	Concurrency   int
	RetryInterval time.Duration
}

// NewDocUserRepository creates a new instance of DocUserRepository.
func NewDocUserRepository(store docstore.Store, m *metrics.Metrics, log *zap.Logger, opt UserRepoOptions) *DocUserRepository {
	if opt.Concurrency < 1 {
		opt.Concurrency = 8
	}
	if opt.RetryInterval <= 0 {
		opt.RetryInterval = 2 * time.Second
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DocUserRepository{
		store:       store,
		metrics:     m,
		log:         log,
		concurrency: opt.Concurrency,
		retryEvery:  opt.RetryInterval,
	}
}

// body is what gets written: the key lives outside the document and the
// password never reaches the store.
func body(u models.User) models.User {
	u.ID = ""
	u.Password = ""
	return u
}

func decodeUser(snap docstore.Snapshot) (models.User, error) {
	var u models.User
	if err := snap.DataTo(&u); err != nil {
		return models.User{}, err
	}
	u.ID = snap.ID()
	return u, nil
}

// decodeUsers skips documents that fail to decode and counts them.
func (r *DocUserRepository) decodeUsers(snaps []docstore.Snapshot) []models.User {
	users := make([]models.User, 0, len(snaps))
	for _, s := range snaps {
		u, err := decodeUser(s)
		if err != nil {
			r.metrics.DecodeDropped.WithLabelValues(UsersCollection).Inc()
			r.log.Debug("skipping malformed user", zap.String("user_id", s.ID()), zap.Error(err))
			continue
		}
		users = append(users, u)
	}
	return users
}

// Create stores a new user and returns its key. A preset user.ID is used as
// the key; otherwise the store assigns one.
func (r *DocUserRepository) Create(ctx context.Context, user models.User) (string, error) {
	id, err := r.store.Create(ctx, UsersCollection, user.ID, body(user))
	if err != nil {
		r.log.Error("failed to create user", zap.String("user_id", user.ID), zap.Error(err))
		return "", fmt.Errorf("failed to create user: %w", err)
	}
	return id, nil
}

// Update overwrites the whole user record.
func (r *DocUserRepository) Update(ctx context.Context, user models.User) error {
	if user.ID == "" {
		r.log.Warn("user update without id")
		return ErrMissingID
	}
	if err := r.store.Set(ctx, UsersCollection, user.ID, body(user)); err != nil {
		r.log.Error("failed to update user", zap.String("user_id", user.ID), zap.Error(err))
		return fmt.Errorf("failed to update user %s: %w", user.ID, err)
	}
	return nil
}

// Delete removes the user record. Edges on other users are left alone.
func (r *DocUserRepository) Delete(ctx context.Context, user models.User) error {
	if user.ID == "" {
		r.log.Warn("user delete without id")
		return ErrMissingID
	}
	if err := r.store.Delete(ctx, UsersCollection, user.ID); err != nil {
		r.log.Error("failed to delete user", zap.String("user_id", user.ID), zap.Error(err))
		return fmt.Errorf("failed to delete user %s: %w", user.ID, err)
	}
	return nil
}

func (r *DocUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	snap, err := r.store.Get(ctx, UsersCollection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	u, err := decodeUser(snap)
	if err != nil {
		r.metrics.DecodeDropped.WithLabelValues(UsersCollection).Inc()
		return nil, fmt.Errorf("failed to decode user %s: %w", id, err)
	}
	return &u, nil
}

func (r *DocUserRepository) FetchAll(ctx context.Context) ([]models.User, error) {
	snaps, err := r.store.GetAll(ctx, UsersCollection)
	if err != nil {
		r.log.Error("failed to fetch users", zap.Error(err))
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	return r.decodeUsers(snaps), nil
}

// FetchByIDs loads each id concurrently and returns the users that
// resolved. Missing or failing ids are dropped and counted.
func (r *DocUserRepository) FetchByIDs(ctx context.Context, ids []string) []models.User {
	if len(ids) == 0 {
		return []models.User{}
	}

	found := make([]*models.User, len(ids))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			u, err := r.GetByID(ctx, id)
			if err != nil {
				r.log.Debug("dropping user from batch", zap.String("user_id", id), zap.Error(err))
				return nil
			}
			found[i] = u
			return nil
		})
	}
	_ = g.Wait()

	users := make([]models.User, 0, len(ids))
	for _, u := range found {
		if u != nil {
			users = append(users, *u)
		}
	}
	if dropped := len(ids) - len(users); dropped > 0 {
		r.metrics.BatchDropped.WithLabelValues("fetch_users").Add(float64(dropped))
	}
	return users
}

// FetchByEmail returns the first user with the email. Duplicates beyond the
// first are ignored.
func (r *DocUserRepository) FetchByEmail(ctx context.Context, email string) (*models.User, error) {
	snaps, err := r.store.Query(ctx, UsersCollection, models.UserFieldEmail, email)
	if err != nil {
		r.log.Error("failed to query user by email", zap.Error(err))
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}
	users := r.decodeUsers(snaps)
	if len(users) == 0 {
		return nil, fmt.Errorf("user with email %s: %w", email, ErrNotFound)
	}
	if len(users) > 1 {
		r.log.Warn("duplicate email", zap.String("email", email), zap.Int("matches", len(users)))
	}
	return &users[0], nil
}

func (r *DocUserRepository) AddFollower(ctx context.Context, userID, followerID string) error {
	return r.arrayOp(ctx, userID, models.UserFieldFollowers, followerID, true)
}

func (r *DocUserRepository) RemoveFollower(ctx context.Context, userID, followerID string) error {
	return r.arrayOp(ctx, userID, models.UserFieldFollowers, followerID, false)
}

func (r *DocUserRepository) AddFollowing(ctx context.Context, userID, followingID string) error {
	return r.arrayOp(ctx, userID, models.UserFieldFollowing, followingID, true)
}

func (r *DocUserRepository) RemoveFollowing(ctx context.Context, userID, followingID string) error {
	return r.arrayOp(ctx, userID, models.UserFieldFollowing, followingID, false)
}

func (r *DocUserRepository) arrayOp(ctx context.Context, userID, field, value string, union bool) error {
	if userID == "" || value == "" {
		return ErrMissingID
	}
	if union && userID == value {
		return fmt.Errorf("user %s: %w", userID, ErrSelfEdge)
	}
	var err error
	if union {
		err = r.store.ArrayUnion(ctx, UsersCollection, userID, field, value)
	} else {
		err = r.store.ArrayRemove(ctx, UsersCollection, userID, field, value)
	}
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		r.log.Error("failed to update user edges",
			zap.String("user_id", userID), zap.String("field", field), zap.Error(err))
		return fmt.Errorf("failed to update %s of user %s: %w", field, userID, err)
	}
	return nil
}

// SubscribeAll opens the live feed of every user.
func (r *DocUserRepository) SubscribeAll(ctx context.Context) (*UserFeed, error) {
	sub, err := r.store.Subscribe(ctx, UsersCollection)
	if err != nil {
		r.log.Error("failed to subscribe to users", zap.Error(err))
		return nil, fmt.Errorf("failed to subscribe to users: %w", err)
	}
	return newUserFeed(ctx, r, sub), nil
}
