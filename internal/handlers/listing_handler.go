package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"rently/internal/models"
	"rently/internal/services"
)

// ListingHandler handles HTTP requests for listings.
type ListingHandler struct {
	service *services.ListingService
	log     *zap.Logger
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(service *services.ListingService, log *zap.Logger) *ListingHandler {
	return &ListingHandler{service: service, log: log}
}

// RegisterRoutes registers the listing routes with the Fiber app.
func (h *ListingHandler) RegisterRoutes(router fiber.Router) {
	listingRoutes := router.Group("/listings")
	listingRoutes.Get("/", h.HandleGetListings)
	listingRoutes.Get("/:id", h.HandleGetListing)
	listingRoutes.Post("/", h.HandleCreateListing)
	listingRoutes.Put("/:id", h.HandleUpdateListing)
	listingRoutes.Delete("/:id", h.HandleDeleteListing)
	listingRoutes.Post("/:id/report", h.HandleReportListing)
}

// HandleGetListings retrieves all listings.
func (h *ListingHandler) HandleGetListings(c *fiber.Ctx) error {
	listings, err := h.service.FetchAll(c.UserContext())
	if err != nil {
		return fail(c, h.log, "Could not retrieve listings", err)
	}
	return c.JSON(listings)
}

// HandleGetListing retrieves a single listing by its ID.
func (h *ListingHandler) HandleGetListing(c *fiber.Ctx) error {
	listing, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, h.log, "Could not retrieve listing", err)
	}
	return c.JSON(listing)
}

// HandleCreateListing creates a listing from a draft. Multipart requests
// carry the draft as JSON in the "draft" field and images in "photos";
// plain JSON requests carry only the draft.
func (h *ListingHandler) HandleCreateListing(c *fiber.Ctx) error {
	var (
		draft  models.ListingDraft
		photos []services.Photo
	)

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return badRequest(c, err)
		}
		raw := form.Value["draft"]
		if len(raw) == 0 {
			return badRequest(c, fmt.Errorf("missing draft field"))
		}
		if err := json.Unmarshal([]byte(raw[0]), &draft); err != nil {
			return badRequest(c, err)
		}
		for _, fh := range form.File["photos"] {
			f, err := fh.Open()
			if err != nil {
				return badRequest(c, err)
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return badRequest(c, err)
			}
			photos = append(photos, services.Photo{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get(fiber.HeaderContentType),
				Data:        data,
			})
		}
	} else if err := c.BodyParser(&draft); err != nil {
		return badRequest(c, err)
	}

	draft.UserID = currentUserID(c)
	listing, err := h.service.CreateFromDraft(c.UserContext(), draft, photos)
	if err != nil {
		return fail(c, h.log, "Could not create listing", err)
	}
	return c.Status(fiber.StatusCreated).JSON(listing)
}

// HandleUpdateListing replaces a listing owned by the caller.
func (h *ListingHandler) HandleUpdateListing(c *fiber.Ctx) error {
	id := c.Params("id")
	existing, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return fail(c, h.log, "Could not update listing", err)
	}
	if existing.UserID != "" && existing.UserID != currentUserID(c) {
		return forbidden(c)
	}

	var listing models.Listing
	if err := c.BodyParser(&listing); err != nil {
		return badRequest(c, err)
	}
	listing.ID = id
	listing.UserID = existing.UserID

	if err := h.service.Update(c.UserContext(), listing); err != nil {
		return fail(c, h.log, "Could not update listing", err)
	}
	updated, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return fail(c, h.log, "Could not retrieve listing", err)
	}
	return c.JSON(updated)
}

// HandleDeleteListing deletes a listing owned by the caller.
func (h *ListingHandler) HandleDeleteListing(c *fiber.Ctx) error {
	id := c.Params("id")
	existing, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return fail(c, h.log, "Could not delete listing", err)
	}
	if existing.UserID != "" && existing.UserID != currentUserID(c) {
		return forbidden(c)
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return fail(c, h.log, "Could not delete listing", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ReportRequest represents the request body for a listing report.
type ReportRequest struct {
	Reason  models.ReportReason `json:"reason" validate:"required"`
	Details string              `json:"details"`
}

func (h *ListingHandler) HandleReportListing(c *fiber.Ctx) error {
	var req ReportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if err := validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	report, err := h.service.Report(c.UserContext(), c.Params("id"), currentUserID(c), req.Reason, req.Details)
	if err != nil {
		return fail(c, h.log, "Could not report listing", err)
	}
	return c.Status(fiber.StatusAccepted).JSON(report)
}
