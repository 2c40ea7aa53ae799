package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"rently/internal/identity"
	"rently/internal/models"
	"rently/internal/repositories"
	"rently/internal/services"
)

// UserHandler handles HTTP requests for user records and follow edges.
type UserHandler struct {
	users    repositories.UserRepository
	accounts *services.AccountService
	follows  *services.FollowService
	log      *zap.Logger
	// heartbeat is how often an idle stream writes a comment line.
	heartbeat time.Duration
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users repositories.UserRepository, accounts *services.AccountService, follows *services.FollowService, log *zap.Logger) *UserHandler {
	return &UserHandler{
		users:     users,
		accounts:  accounts,
		follows:   follows,
		log:       log,
		heartbeat: 15 * time.Second,
	}
}

// RegisterRoutes registers the user routes with the Fiber app.
func (h *UserHandler) RegisterRoutes(router fiber.Router) {
	userRoutes := router.Group("/users")
	userRoutes.Get("/", h.HandleFetchByIDs)
	userRoutes.Get("/by-email", h.HandleFetchByEmail)
	userRoutes.Get("/stream", h.HandleStream)
	userRoutes.Get("/:id", h.HandleGet)
	userRoutes.Put("/:id", h.HandleUpdate)
	userRoutes.Delete("/:id", h.HandleDelete)
	userRoutes.Post("/:id/follow", h.HandleFollow)
	userRoutes.Delete("/:id/follow", h.HandleUnfollow)
	userRoutes.Post("/:id/reconcile", h.HandleReconcile)
}

// HandleFetchByIDs returns the users named in ?ids=a,b,c that exist.
func (h *UserHandler) HandleFetchByIDs(c *fiber.Ctx) error {
	var ids []string
	for _, id := range strings.Split(c.Query("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return c.JSON(h.users.FetchByIDs(c.UserContext(), ids))
}

func (h *UserHandler) HandleFetchByEmail(c *fiber.Ctx) error {
	email := identity.NormalizeEmail(c.Query("email"))
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "email is required"})
	}
	user, err := h.users.FetchByEmail(c.UserContext(), email)
	if err != nil {
		return fail(c, h.log, "Could not find user", err)
	}
	return c.JSON(user)
}

func (h *UserHandler) HandleGet(c *fiber.Ctx) error {
	user, err := h.users.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, h.log, "Could not retrieve user", err)
	}
	return c.JSON(user)
}

// HandleUpdate overwrites the caller's own profile. Follow edges are kept
// from the stored record; they only change through the follow routes.
func (h *UserHandler) HandleUpdate(c *fiber.Ctx) error {
	id := c.Params("id")
	if id != currentUserID(c) {
		return forbidden(c)
	}

	var user models.User
	if err := c.BodyParser(&user); err != nil {
		return badRequest(c, err)
	}
	if err := validate.Struct(user); err != nil {
		return validationFailed(c, err)
	}

	existing, err := h.users.GetByID(c.UserContext(), id)
	if err != nil {
		return fail(c, h.log, "Could not update user", err)
	}
	user.ID = id
	user.Email = identity.NormalizeEmail(user.Email)
	user.Password = ""
	user.Followers = existing.Followers
	user.Following = existing.Following

	if err := h.users.Update(c.UserContext(), user); err != nil {
		return fail(c, h.log, "Could not update user", err)
	}
	if err := h.accounts.RefreshSession(c.UserContext(), currentToken(c), user); err != nil {
		h.log.Warn("session not refreshed", zap.String("user_id", id), zap.Error(err))
	}
	return c.JSON(user)
}

func (h *UserHandler) HandleDelete(c *fiber.Ctx) error {
	id := c.Params("id")
	if id != currentUserID(c) {
		return forbidden(c)
	}
	user := currentUser(c)
	user.ID = id
	if err := h.accounts.DeleteAccount(c.UserContext(), currentToken(c), user); err != nil {
		return fail(c, h.log, "Could not delete user", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *UserHandler) HandleFollow(c *fiber.Ctx) error {
	if err := h.follows.Follow(c.UserContext(), currentUserID(c), c.Params("id")); err != nil {
		return fail(c, h.log, "Could not follow user", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *UserHandler) HandleUnfollow(c *fiber.Ctx) error {
	if err := h.follows.Unfollow(c.UserContext(), currentUserID(c), c.Params("id")); err != nil {
		return fail(c, h.log, "Could not unfollow user", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleReconcile repairs the caller's own follow edges.
func (h *UserHandler) HandleReconcile(c *fiber.Ctx) error {
	id := c.Params("id")
	if id != currentUserID(c) {
		return forbidden(c)
	}
	report, err := h.follows.Reconcile(c.UserContext(), id)
	if err != nil {
		return fail(c, h.log, "Could not reconcile follow edges", err)
	}
	return c.JSON(report)
}

// HandleStream sends the full user list as a server-sent event on connect
// and after every change.
func (h *UserHandler) HandleStream(c *fiber.Ctx) error {
	ctx, cancel := context.WithCancel(context.Background())
	feed, err := h.users.SubscribeAll(ctx)
	if err != nil {
		cancel()
		return fail(c, h.log, "Could not open user stream", err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer feed.Close()
		if err := streamUsers(w, feed.Updates(), h.heartbeat); err != nil {
			h.log.Debug("user stream closed", zap.Error(err))
		}
	}))
	return nil
}

// streamUsers writes one "users" event per update until updates closes or
// a write fails.
func streamUsers(w *bufio.Writer, updates <-chan []models.User, heartbeat time.Duration) error {
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case users, ok := <-updates:
			if !ok {
				return nil
			}
			data, err := json.Marshal(users)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "event: users\ndata: %s\n\n", data); err != nil {
				return err
			}
		case <-ticker.C:
			if _, err := w.WriteString(": ping\n\n"); err != nil {
				return err
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
}
