package rest

import (
	"github.com/dmitrijs2005/pgfinder/internal/server/models"
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) GetAccount(c *fiber.Ctx) error {
	a, err := h.accounts.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err, nil)
	}
	return c.JSON(fiber.Map{"success": true, "user": newAccountView(a)})
}

func (h *Handler) UpdateAccount(c *fiber.Ctx) error {
	var req UpdateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if err := req.Validate(h.phoneRegion); err != nil {
		return invalid(c, err)
	}

	a, err := h.accounts.UpdateProfile(c.UserContext(), c.Params("id"), req.Name, req.PhoneNumber)
	if err != nil {
		return h.fail(c, err, nil)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "User updated successfully",
		"user":    newAccountView(a),
	})
}

func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	var req ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if err := req.Validate(); err != nil {
		return invalid(c, err)
	}

	ok, err := h.sessions.ChangePassword(c.UserContext(), c.Params("id"), req.CurrentPassword, req.NewPassword)
	if err != nil {
		return h.fail(c, err, nil)
	}
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success":   false,
			"message":   "Invalid current password",
			"errorCode": CodeInvalidCredentials,
		})
	}

	return c.JSON(fiber.Map{"success": true, "message": "Password changed successfully"})
}

func (h *Handler) Deactivate(c *fiber.Ctx) error {
	if err := h.accounts.Deactivate(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, err, nil)
	}
	return c.JSON(fiber.Map{"success": true, "message": "User deactivated successfully"})
}

func (h *Handler) ListByType(c *fiber.Ctx) error {
	role, err := models.ParseRole(c.Params("userType"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success":   false,
			"message":   "Invalid user type",
			"errorCode": CodeValidationFailed,
		})
	}

	list, err := h.accounts.ListByRole(c.UserContext(), role)
	if err != nil {
		return h.fail(c, err, nil)
	}
	return c.JSON(fiber.Map{"success": true, "users": newAccountViews(list)})
}

func (h *Handler) Stats(c *fiber.Ctx) error {
	s, err := h.accounts.Stats(c.UserContext())
	if err != nil {
		return h.fail(c, err, nil)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"stats": StatsView{
			TotalUsers:  s.TotalUsers,
			TotalOwners: s.TotalOwners,
			TotalAdmins: s.TotalAdmins,
		},
	})
}
