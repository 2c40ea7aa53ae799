package handlers

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"rently/internal/identity"
	"rently/internal/middleware"
	"rently/internal/models"
	"rently/internal/repositories"
	"rently/internal/services"
	"rently/internal/session"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, repositories.ErrMissingID),
		errors.Is(err, services.ErrSelfFollow),
		errors.Is(err, repositories.ErrSelfEdge):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized),
		errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, session.ErrNotFound):
		return fiber.StatusUnauthorized
	case errors.Is(err, repositories.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, identity.ErrEmailTaken):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

// fail writes err as a JSON error response.
func fail(c *fiber.Ctx, log *zap.Logger, message string, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Error(message, zap.String("path", c.Path()), zap.Error(err))
	}
	body := fiber.Map{
		"message": message,
		"error":   err.Error(),
	}
	var regErr *services.RegistrationError
	if errors.As(err, &regErr) {
		body["accountID"] = regErr.AccountID
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"error":   err.Error(),
	})
}

var validate = validator.New()

func validationFailed(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return badRequest(c, err)
	}
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}

func forbidden(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"message": "Not allowed",
	})
}

func currentUserID(c *fiber.Ctx) string {
	id, _ := c.Locals(middleware.LocalUserID).(string)
	return id
}

func currentToken(c *fiber.Ctx) string {
	token, _ := c.Locals(middleware.LocalToken).(string)
	return token
}

func currentUser(c *fiber.Ctx) models.User {
	u, _ := c.Locals(middleware.LocalUser).(models.User)
	return u
}
