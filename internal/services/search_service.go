package services

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"rently/internal/models"
	"rently/internal/repositories"
)

// Results is one set of search matches.
type Results struct {
	Listings []models.Listing `json:"listings"`
	Users    []models.User    `json:"users"`
}

// SearchService filters in-memory snapshots of listings and users. The
// snapshots are replaced wholesale by the Refresh methods; ApplyQuery
// recomputes the visible set from them.
type SearchService struct {
	listings repositories.ListingRepository
	users    repositories.UserRepository
	log      *zap.Logger
	sf       singleflight.Group

	mu          sync.RWMutex
	allListings []models.Listing
	allUsers    []models.User
	query       string
	visible     Results
}

// NewSearchService creates a new SearchService with empty snapshots.
func NewSearchService(listings repositories.ListingRepository, users repositories.UserRepository, log *zap.Logger) *SearchService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SearchService{
		listings: listings,
		users:    users,
		log:      log,
		visible:  Results{Listings: []models.Listing{}, Users: []models.User{}},
	}
}

// RefreshListings replaces the listing snapshot with a fresh read.
// Concurrent calls share one read.
func (s *SearchService) RefreshListings(ctx context.Context) error {
	_, err, _ := s.sf.Do("listings", func() (any, error) {
		all, err := s.listings.FetchAll(ctx)
		if err != nil {
			return nil, err
		}
		s.ReplaceListings(all)
		return nil, nil
	})
	if err != nil {
		s.log.Error("failed to refresh listings", zap.Error(err))
	}
	return err
}

// RefreshUsers replaces the user snapshot with a fresh read.
func (s *SearchService) RefreshUsers(ctx context.Context) error {
	_, err, _ := s.sf.Do("users", func() (any, error) {
		all, err := s.users.FetchAll(ctx)
		if err != nil {
			return nil, err
		}
		s.ReplaceUsers(all)
		return nil, nil
	})
	if err != nil {
		s.log.Error("failed to refresh users", zap.Error(err))
	}
	return err
}

// ReplaceListings installs a listing snapshot and re-filters the visible
// set with the last query.
func (s *SearchService) ReplaceListings(all []models.Listing) {
	shown := make([]models.Listing, 0, len(all))
	for _, l := range all {
		shown = append(shown, l.WithDisplayDefaults())
	}

	s.mu.Lock()
	s.allListings = shown
	s.visible.Listings = filterListings(shown, s.query)
	s.mu.Unlock()
}

// ReplaceUsers installs a user snapshot, such as a push from the live user
// feed, and re-filters the visible set with the last query.
func (s *SearchService) ReplaceUsers(all []models.User) {
	users := append([]models.User{}, all...)

	s.mu.Lock()
	s.allUsers = users
	s.visible.Users = filterUsers(users, s.query)
	s.mu.Unlock()
}

// ApplyQuery filters the snapshots by q, stores the result as the visible
// set, and returns it.
func (s *SearchService) ApplyQuery(q string) Results {
	q = normalizeQuery(q)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = q
	s.visible = Results{
		Listings: filterListings(s.allListings, q),
		Users:    filterUsers(s.allUsers, q),
	}
	return s.visible
}

// Search filters the snapshots by q without changing the visible set.
func (s *SearchService) Search(q string) Results {
	q = normalizeQuery(q)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return Results{
		Listings: filterListings(s.allListings, q),
		Users:    filterUsers(s.allUsers, q),
	}
}

// Visible returns the result of the last ApplyQuery.
func (s *SearchService) Visible() Results {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visible
}

// normalizeQuery only lowercases. Spaces are part of the query, so "   "
// is not the empty query.
func normalizeQuery(q string) string {
	return strings.ToLower(q)
}

// filterListings never returns the input slice, so callers may keep the
// result after the snapshot is replaced.
func filterListings(all []models.Listing, q string) []models.Listing {
	out := make([]models.Listing, 0, len(all))
	for _, l := range all {
		if q == "" || listingMatches(l, q) {
			out = append(out, l)
		}
	}
	return out
}

func filterUsers(all []models.User, q string) []models.User {
	out := make([]models.User, 0, len(all))
	for _, u := range all {
		if q == "" || userMatches(u, q) {
			out = append(out, u)
		}
	}
	return out
}

func has(field, q string) bool {
	return strings.Contains(strings.ToLower(field), q)
}

func listingMatches(l models.Listing, q string) bool {
	if has(l.Title, q) || has(l.Description, q) || has(l.Category.Label(), q) || has(string(l.Category), q) {
		return true
	}
	for _, t := range l.Tags {
		if has(string(t), q) {
			return true
		}
	}
	return false
}

func userMatches(u models.User, q string) bool {
	return has(u.Username, q) ||
		has(u.FirstName, q) ||
		has(u.LastName, q) ||
		has(u.FirstName+u.LastName, q)
}
