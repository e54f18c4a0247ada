// Package rest exposes the identity operations over HTTP with fiber.
package rest

import (
	"context"

	"github.com/dmitrijs2005/pgfinder/internal/logging"
	"github.com/dmitrijs2005/pgfinder/internal/server/auth"
	"github.com/dmitrijs2005/pgfinder/internal/server/models"
	"github.com/dmitrijs2005/pgfinder/internal/server/services"
	"github.com/gofiber/fiber/v2"
)

type SessionManager interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.Account, error)
	Login(ctx context.Context, email, password string) (*models.Account, error)
	Authenticate(ctx context.Context, email, password string) (*services.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, email string) error
	ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) (bool, error)
}

type Verifier interface {
	Confirm(ctx context.Context, token string) error
	Resend(ctx context.Context, email string) (string, error)
}

type AccountManager interface {
	Get(ctx context.Context, id string) (*models.Account, error)
	UpdateProfile(ctx context.Context, id, name, phoneNumber string) (*models.Account, error)
	Deactivate(ctx context.Context, id string) error
	ListByRole(ctx context.Context, role models.Role) ([]*models.Account, error)
	Stats(ctx context.Context) (*models.RoleStats, error)
}

type PasswordResetter interface {
	Forgot(ctx context.Context, email string) error
	Reset(ctx context.Context, token, newPassword string) error
}

type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
	IsRefreshKind(token string) bool
}

// Handler holds the HTTP handlers and their collaborators.
type Handler struct {
	sessions     SessionManager
	verification Verifier
	accounts     AccountManager
	resets       PasswordResetter
	tokens       TokenVerifier
	phoneRegion  string
	logger       logging.Logger
}

func NewHandler(sessions SessionManager, verification Verifier, accounts AccountManager,
	resets PasswordResetter, tokens TokenVerifier, phoneRegion string, l logging.Logger) *Handler {
	return &Handler{
		sessions:     sessions,
		verification: verification,
		accounts:     accounts,
		resets:       resets,
		tokens:       tokens,
		phoneRegion:  phoneRegion,
		logger:       l.With("module", "rest"),
	}
}

// RegisterRoutes mounts every endpoint on r.
func RegisterRoutes(r fiber.Router, h *Handler) {
	r.Get("/health", h.Health)
	r.Get("/verify-email", h.VerifyEmail)

	users := r.Group("/users")

	users.Post("/auth/register", h.Register)
	users.Post("/auth/login", h.Authenticate)
	users.Post("/auth/refresh", h.Refresh)
	users.Post("/auth/logout", h.Logout)
	users.Post("/auth/forgot-password", h.ForgotPassword)
	users.Post("/auth/reset-password", h.ResetPassword)

	users.Get("/verify-email", h.VerifyEmail)
	users.Post("/resend-verification", h.ResendVerification)

	// legacy
	users.Post("/register", h.LegacyRegister)
	users.Post("/login", h.LegacyLogin)

	bearer := h.bearerAuth()

	// admin-only routes go before /:id so they are not captured by it
	users.Get("/type/:userType", bearer, requireAdmin, h.ListByType)
	users.Get("/stats", bearer, requireAdmin, h.Stats)

	users.Get("/:id", bearer, selfOrAdmin, h.GetAccount)
	users.Put("/:id", bearer, selfOrAdmin, h.UpdateAccount)
	users.Post("/:id/change-password", bearer, selfOrAdmin, h.ChangePassword)
	users.Delete("/:id", bearer, selfOrAdmin, h.Deactivate)
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "status": "UP"})
}
