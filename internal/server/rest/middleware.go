package rest

import (
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/pgfinder/internal/common"
	"github.com/dmitrijs2005/pgfinder/internal/logging"
	"github.com/dmitrijs2005/pgfinder/internal/server/auth"
	"github.com/dmitrijs2005/pgfinder/internal/server/models"
	"github.com/gofiber/fiber/v2"
)

const claimsKey = "claims"

// requestLogger writes one line per request.
func requestLogger(l logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		l.Info(c.UserContext(), "request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", time.Since(start),
			"requestId", c.Locals("requestid"),
		)
		return err
	}
}

// bearerAuth requires a valid access token in the Authorization header
// and stores its claims for later handlers.
func (h *Handler) bearerAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scheme, token, ok := strings.Cut(c.Get(fiber.HeaderAuthorization), " ")
		if !ok || !strings.EqualFold(scheme, common.BearerScheme) || strings.TrimSpace(token) == "" {
			return h.fail(c, common.ErrorUnauthorized, nil)
		}

		token = strings.TrimSpace(token)
		claims, err := h.tokens.Verify(token)
		if err != nil || h.tokens.IsRefreshKind(token) {
			return h.fail(c, common.ErrInvalidToken, overrides{
				common.ErrInvalidToken: {fiber.StatusUnauthorized, CodeInvalidToken, "Invalid or expired access token"},
			})
		}

		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

func claimsFrom(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals(claimsKey).(*auth.Claims)
	return claims
}

func forbidden(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"success":   false,
		"message":   "Access denied",
		"errorCode": CodeForbidden,
	})
}

func requireAdmin(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	if claims == nil || claims.Role != models.RoleAdmin {
		return forbidden(c)
	}
	return c.Next()
}

// selfOrAdmin lets an account act on its own :id; administrators act on any.
func selfOrAdmin(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	if claims == nil {
		return forbidden(c)
	}
	if claims.Role != models.RoleAdmin && claims.AccountID != c.Params("id") {
		return forbidden(c)
	}
	return c.Next()
}
