package rest

import (
	"github.com/dmitrijs2005/pgfinder/internal/common"
	"github.com/dmitrijs2005/pgfinder/internal/server/models"
	"github.com/dmitrijs2005/pgfinder/internal/server/services"
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) register(c *fiber.Ctx, message string) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if err := req.Validate(h.phoneRegion); err != nil {
		return invalid(c, err)
	}

	in := services.RegisterInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
	}
	if req.UserType != "" {
		role, err := models.ParseRole(req.UserType)
		if err != nil {
			return h.fail(c, services.ErrRoleNotAllowed, nil)
		}
		in.Role = role
	}

	account, err := h.sessions.Register(c.UserContext(), in)
	if err != nil {
		return h.fail(c, err, nil)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": message,
		"user":    newAccountView(account),
	})
}

// Register creates an account and sends the verification email.
func (h *Handler) Register(c *fiber.Ctx) error {
	return h.register(c, "User registered successfully. Please check your email to verify your account.")
}

// LegacyRegister is the older registration route.
func (h *Handler) LegacyRegister(c *fiber.Ctx) error {
	return h.register(c, "User registered successfully")
}

// Authenticate is the token login.
func (h *Handler) Authenticate(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if err := req.Validate(); err != nil {
		return invalid(c, err)
	}

	res, err := h.sessions.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return h.fail(c, err, nil)
	}

	a := res.Account
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Login successful",
		"data": LoginView{
			AccessToken:  res.AccessToken,
			RefreshToken: res.RefreshToken,
			TokenType:    common.BearerScheme,
			Email:        a.Email,
			Name:         a.Name,
			UserType:     a.Role,
			UserID:       a.ID,
			IsVerified:   a.Verified,
		},
	})
}

// LegacyLogin checks credentials without issuing tokens or requiring a
// verified email. Responses carry a Deprecation header.
func (h *Handler) LegacyLogin(c *fiber.Ctx) error {
	c.Set("Deprecation", "true")

	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if err := req.Validate(); err != nil {
		return invalid(c, err)
	}

	account, err := h.sessions.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return h.fail(c, err, nil)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Login successful",
		"user":    newAccountView(account),
	})
}

func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if err := req.Validate(); err != nil {
		return invalid(c, err)
	}

	pair, err := h.sessions.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return h.fail(c, err, overrides{
			common.ErrInvalidToken: {fiber.StatusUnauthorized, CodeInvalidToken, "Invalid or expired refresh token"},
			common.ErrorNotFound:   {fiber.StatusUnauthorized, CodeNotFound, "User not found"},
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Token refreshed successfully",
		"data":    newTokenView(pair.AccessToken, pair.RefreshToken),
	})
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	var req EmailRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if err := req.Validate(); err != nil {
		return invalid(c, err)
	}

	if err := h.sessions.Logout(c.UserContext(), req.Email); err != nil {
		return h.fail(c, err, nil)
	}

	return c.JSON(fiber.Map{"success": true, "message": "Logged out successfully"})
}

func (h *Handler) VerifyEmail(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return h.fail(c, common.ErrorNotFound, verifyOverrides)
	}

	if err := h.verification.Confirm(c.UserContext(), token); err != nil {
		return h.fail(c, err, verifyOverrides)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Email verified successfully. You can now login to your account.",
	})
}

var verifyOverrides = overrides{
	common.ErrorNotFound:   {fiber.StatusBadRequest, CodeInvalidToken, "Invalid verification token"},
	common.ErrTokenExpired: {fiber.StatusBadRequest, CodeExpiredToken, "Verification token has expired"},
}

func (h *Handler) ResendVerification(c *fiber.Ctx) error {
	var req EmailRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if err := req.Validate(); err != nil {
		return invalid(c, err)
	}

	if _, err := h.verification.Resend(c.UserContext(), req.Email); err != nil {
		return h.fail(c, err, nil)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Verification email sent successfully. Please check your inbox.",
	})
}

// ForgotPassword answers the same way whether or not the email exists.
func (h *Handler) ForgotPassword(c *fiber.Ctx) error {
	var req EmailRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if err := req.Validate(); err != nil {
		return invalid(c, err)
	}

	if err := h.resets.Forgot(c.UserContext(), req.Email); err != nil {
		return h.fail(c, err, nil)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "If an account exists for this email, a password reset link has been sent.",
	})
}

func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if err := req.Validate(); err != nil {
		return invalid(c, err)
	}

	if err := h.resets.Reset(c.UserContext(), req.Token, req.NewPassword); err != nil {
		return h.fail(c, err, overrides{
			common.ErrInvalidToken: {fiber.StatusBadRequest, CodeInvalidToken, "Invalid reset token"},
			common.ErrTokenExpired: {fiber.StatusBadRequest, CodeExpiredToken, "Reset token has expired"},
		})
	}

	return c.JSON(fiber.Map{"success": true, "message": "Password reset successfully"})
}
