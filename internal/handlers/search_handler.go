package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"rently/internal/services"
)

// SearchHandler serves queries over the search snapshots.
type SearchHandler struct {
	search *services.SearchService
	log    *zap.Logger
}

func NewSearchHandler(search *services.SearchService, log *zap.Logger) *SearchHandler {
	return &SearchHandler{search: search, log: log}
}

func (h *SearchHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/search", h.HandleSearch)
	router.Post("/search/refresh", h.HandleRefresh)
}

// HandleSearch answers ?q= from the current snapshots.
func (h *SearchHandler) HandleSearch(c *fiber.Ctx) error {
	return c.JSON(h.search.ApplyQuery(c.Query("q")))
}

// HandleRefresh re-reads both snapshots.
func (h *SearchHandler) HandleRefresh(c *fiber.Ctx) error {
	if err := h.search.RefreshListings(c.UserContext()); err != nil {
		return fail(c, h.log, "Could not refresh listings", err)
	}
	if err := h.search.RefreshUsers(c.UserContext()); err != nil {
		return fail(c, h.log, "Could not refresh users", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
