package services

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rently/internal/blob"
	"rently/internal/metrics"
	"rently/internal/models"
	"rently/internal/repositories"
)

// Photo is an image waiting to be uploaded for a listing.
type Photo struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (p Photo) ext() string {
	if ext := strings.ToLower(filepath.Ext(p.Filename)); ext != "" {
		return ext
	}
	if exts, err := mime.ExtensionsByType(p.ContentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// ListingService handles business logic related to listings.
type ListingService struct {
	repo        repositories.ListingRepository
	blobs       blob.Store
	events      *Emitter
	metrics     *metrics.Metrics
	log         *zap.Logger
	concurrency int

	now   func() time.Time
	newID func() string
}

// NewListingService creates a new ListingService.
func NewListingService(repo repositories.ListingRepository, blobs blob.Store, events *Emitter, m *metrics.Metrics, log *zap.Logger, concurrency int) *ListingService {
	if m == nil {
		m = metrics.New(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &ListingService{
		repo:        repo,
		blobs:       blobs,
		events:      events,
		metrics:     m,
		log:         log,
		concurrency: concurrency,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// UploadPhotos stores each photo under a fresh key and returns the download
// URLs of the uploads that succeeded, in input order. Failures are dropped.
func (s *ListingService) UploadPhotos(ctx context.Context, photos []Photo) []string {
	if len(photos) == 0 {
		return []string{}
	}

	urls := make([]string, len(photos))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, p := range photos {
		g.Go(func() error {
			key := "images/" + s.newID() + p.ext()
			ref, err := s.blobs.Put(ctx, key, p.Data, p.ContentType)
			if err != nil {
				s.log.Warn("photo upload failed", zap.String("key", key), zap.Error(err))
				return nil
			}
			url, err := s.blobs.URL(ctx, ref)
			if err != nil {
				s.log.Warn("photo url failed", zap.String("ref", ref), zap.Error(err))
				return nil
			}
			urls[i] = url
			return nil
		})
	}
	_ = g.Wait()

	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u != "" {
			out = append(out, u)
		}
	}
	if dropped := len(photos) - len(out); dropped > 0 {
		s.metrics.BatchDropped.WithLabelValues("upload_photos").Add(float64(dropped))
	}
	return out
}

// Save overwrites the listing stored under its id.
func (s *ListingService) Save(ctx context.Context, listing models.Listing) error {
	if listing.ID == "" {
		return repositories.ErrMissingID
	}
	if err := validateStruct(listing.Draft()); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, listing); err != nil {
		s.log.Error("failed to save listing", zap.String("listing_id", listing.ID), zap.Error(err))
		return err
	}
	return nil
}

// SaveFromDraft promotes draft to a listing with a new id and creation
// time, then saves it.
func (s *ListingService) SaveFromDraft(ctx context.Context, draft models.ListingDraft) (*models.Listing, error) {
	if err := validateStruct(draft); err != nil {
		return nil, err
	}
	listing := draft.Promote(s.newID(), s.now().UTC())
	if err := s.Save(ctx, listing); err != nil {
		return nil, err
	}

	s.log.Info("listing created", zap.String("listing_id", listing.ID))
	s.events.Emit(models.EventListingCreated, models.ListingEvent{
		ListingID: listing.ID,
		UserID:    listing.UserID,
		Title:     listing.Title,
		At:        listing.CreationTime,
	})
	return &listing, nil
}

// CreateFromDraft uploads photos, appends their URLs to the draft, and
// saves the result. Photos that fail to upload are left out.
func (s *ListingService) CreateFromDraft(ctx context.Context, draft models.ListingDraft, photos []Photo) (*models.Listing, error) {
	if err := validateStruct(draft); err != nil {
		return nil, err
	}
	urls := s.UploadPhotos(ctx, photos)
	draft.PhotoURLs = append(append([]string{}, draft.PhotoURLs...), urls...)
	return s.SaveFromDraft(ctx, draft)
}

// FetchAll retrieves all listings.
func (s *ListingService) FetchAll(ctx context.Context) ([]models.Listing, error) {
	listings, err := s.repo.FetchAll(ctx)
	if err != nil {
		s.log.Error("failed to fetch listings", zap.Error(err))
		return nil, err
	}
	return listings, nil
}

// Get retrieves a single listing by its ID.
func (s *ListingService) Get(ctx context.Context, id string) (*models.Listing, error) {
	return s.repo.GetByID(ctx, id)
}

// Update replaces a listing, keeping its original creation time.
func (s *ListingService) Update(ctx context.Context, listing models.Listing) error {
	if listing.ID == "" {
		return repositories.ErrMissingID
	}
	existing, err := s.repo.GetByID(ctx, listing.ID)
	if err != nil {
		return err
	}
	listing.CreationTime = existing.CreationTime
	if listing.PhotoURLs == nil {
		listing.PhotoURLs = []string{}
	}
	if listing.Tags == nil {
		listing.Tags = []models.Tag{}
	}
	return s.Save(ctx, listing)
}

// Delete deletes a listing by its ID.
func (s *ListingService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		s.log.Error("failed to delete listing", zap.String("listing_id", id), zap.Error(err))
		return err
	}
	s.events.Emit(models.EventListingDeleted, models.ListingEvent{ListingID: id, At: s.now().UTC()})
	return nil
}

// Report files a complaint about a listing. Reports are published for
// moderation and not stored.
func (s *ListingService) Report(ctx context.Context, listingID, reporterID string, reason models.ReportReason, details string) (*models.ListingReport, error) {
	report := models.ListingReport{
		ListingID:  listingID,
		ReporterID: reporterID,
		Reason:     reason,
		Details:    details,
		At:         s.now().UTC(),
	}
	if err := validateStruct(report); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, listingID); err != nil {
		return nil, fmt.Errorf("cannot report listing: %w", err)
	}

	s.log.Info("listing reported",
		zap.String("listing_id", listingID),
		zap.String("reporter_id", reporterID),
		zap.String("reason", string(reason)))
	s.events.Emit(models.EventListingReported, report)
	return &report, nil
}
