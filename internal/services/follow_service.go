package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rently/internal/models"
	"rently/internal/repositories"
)

var (
	ErrSelfFollow = errors.New("users cannot follow themselves")
	// ErrAsymmetricEdge means only one side of a follow edge was written.
	// Reconcile repairs it.
	ErrAsymmetricEdge = errors.New("follow edge is asymmetric")
)

// FollowService writes both sides of a follow edge. The two writes are
// separate documents, so a failure between them leaves an asymmetric edge.
type FollowService struct {
	users  repositories.UserRepository
	events *Emitter
	log    *zap.Logger
}

// NewFollowService creates a new FollowService.
func NewFollowService(users repositories.UserRepository, events *Emitter, log *zap.Logger) *FollowService {
	if log == nil {
		log = zap.NewNop()
	}
	return &FollowService{users: users, events: events, log: log}
}

func checkEdge(followerID, targetID string) error {
	if followerID == "" || targetID == "" {
		return repositories.ErrMissingID
	}
	if followerID == targetID {
		return ErrSelfFollow
	}
	return nil
}

// Follow records followerID following targetID.
func (s *FollowService) Follow(ctx context.Context, followerID, targetID string) error {
	if err := checkEdge(followerID, targetID); err != nil {
		return err
	}
	if err := s.users.AddFollowing(ctx, followerID, targetID); err != nil {
		return err
	}
	if err := s.users.AddFollower(ctx, targetID, followerID); err != nil {
		s.log.Error("follow left asymmetric",
			zap.String("follower_id", followerID), zap.String("target_id", targetID), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrAsymmetricEdge, err)
	}

	s.events.Emit(models.EventUserFollowed, models.FollowEvent{
		FollowerID: followerID, TargetID: targetID, At: time.Now().UTC(),
	})
	return nil
}

// Unfollow removes the edge from both sides.
func (s *FollowService) Unfollow(ctx context.Context, followerID, targetID string) error {
	if err := checkEdge(followerID, targetID); err != nil {
		return err
	}
	if err := s.users.RemoveFollowing(ctx, followerID, targetID); err != nil {
		return err
	}
	if err := s.users.RemoveFollower(ctx, targetID, followerID); err != nil {
		s.log.Error("unfollow left asymmetric",
			zap.String("follower_id", followerID), zap.String("target_id", targetID), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrAsymmetricEdge, err)
	}

	s.events.Emit(models.EventUserUnfollowed, models.FollowEvent{
		FollowerID: followerID, TargetID: targetID, At: time.Now().UTC(),
	})
	return nil
}

// ReconcileReport counts the repairs made by Reconcile.
type ReconcileReport struct {
	FollowersAdded   int `json:"followersAdded"`
	FollowingRemoved int `json:"followingRemoved"`
	FollowersRemoved int `json:"followersRemoved"`
}

// Reconcile repairs the edges incident to userID. The following side is
// authoritative: each followed user gets userID in its followers, or is
// dropped from following if it no longer exists. Followers that are gone or
// do not follow back are removed.
func (s *FollowService) Reconcile(ctx context.Context, userID string) (ReconcileReport, error) {
	var rep ReconcileReport

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return rep, err
	}

	for _, f := range u.Following {
		target, err := s.lookup(ctx, f)
		if err != nil {
			return rep, err
		}
		switch {
		case f == userID || target == nil:
			if err := s.users.RemoveFollowing(ctx, userID, f); err != nil {
				return rep, err
			}
			rep.FollowingRemoved++
		case !target.HasFollower(userID):
			if err := s.users.AddFollower(ctx, f, userID); err != nil {
				return rep, err
			}
			rep.FollowersAdded++
		}
	}

	for _, g := range u.Followers {
		follower, err := s.lookup(ctx, g)
		if err != nil {
			return rep, err
		}
		if g == userID || follower == nil || !follower.IsFollowing(userID) {
			if err := s.users.RemoveFollower(ctx, userID, g); err != nil {
				return rep, err
			}
			rep.FollowersRemoved++
		}
	}

	if rep != (ReconcileReport{}) {
		s.log.Info("follow edges reconciled",
			zap.String("user_id", userID),
			zap.Int("followers_added", rep.FollowersAdded),
			zap.Int("following_removed", rep.FollowingRemoved),
			zap.Int("followers_removed", rep.FollowersRemoved))
	}
	return rep, nil
}

// lookup returns nil without error when the user does not exist.
func (s *FollowService) lookup(ctx context.Context, id string) (*models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	return u, err
}
