package rest

import (
	"errors"

	"github.com/dmitrijs2005/pgfinder/internal/common"
	"github.com/dmitrijs2005/pgfinder/internal/server/auth"
	"github.com/dmitrijs2005/pgfinder/internal/server/phone"
	"github.com/dmitrijs2005/pgfinder/internal/server/services"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
)

// Error codes carried in the errorCode field.
const (
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeExpiredToken       = "EXPIRED_TOKEN"
	CodeNotFound           = "NOT_FOUND"
	CodeThrottled          = "THROTTLED"
	CodeAlreadyVerified    = "ALREADY_VERIFIED"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeInternal           = "INTERNAL"
)

const internalErrorMessage = "Internal server error"

// outcome is the HTTP rendering of an error.
type outcome struct {
	status  int
	code    string
	message string
}

var defaultOutcomes = []struct {
	err error
	out outcome
}{
	{common.ErrAlreadyExists, outcome{fiber.StatusBadRequest, CodeAlreadyExists, "Email already exists"}},
	{common.ErrInvalidCredentials, outcome{fiber.StatusUnauthorized, CodeInvalidCredentials, "Invalid credentials"}},
	{common.ErrEmailNotVerified, outcome{fiber.StatusForbidden, CodeEmailNotVerified, "Please verify your email before logging in"}},
	{common.ErrInvalidToken, outcome{fiber.StatusUnauthorized, CodeInvalidToken, "Invalid token"}},
	{common.ErrTokenExpired, outcome{fiber.StatusBadRequest, CodeExpiredToken, "Token has expired"}},
	{common.ErrorNotFound, outcome{fiber.StatusNotFound, CodeNotFound, "User not found"}},
	{common.ErrThrottled, outcome{fiber.StatusBadRequest, CodeThrottled, "Please wait before requesting another verification email"}},
	{common.ErrAlreadyVerified, outcome{fiber.StatusBadRequest, CodeAlreadyVerified, "Email is already verified"}},
	{common.ErrorUnauthorized, outcome{fiber.StatusUnauthorized, CodeUnauthorized, "Authentication required"}},
	{common.ErrorForbidden, outcome{fiber.StatusForbidden, CodeForbidden, "Access denied"}},
	{services.ErrRoleNotAllowed, outcome{fiber.StatusBadRequest, CodeValidationFailed, "Invalid user type"}},
	{phone.ErrInvalidNumber, outcome{fiber.StatusBadRequest, CodeValidationFailed, "Invalid phone number"}},
	{auth.ErrEmptyPassword, outcome{fiber.StatusBadRequest, CodeValidationFailed, "Password is required"}},
}

// overrides adjusts the rendering of specific errors for one endpoint.
type overrides map[error]outcome

func resolve(err error, ov overrides) (outcome, bool) {
	for target, out := range ov {
		if errors.Is(err, target) {
			return out, true
		}
	}
	for _, d := range defaultOutcomes {
		if errors.Is(err, d.err) {
			return d.out, true
		}
	}
	return outcome{fiber.StatusInternalServerError, CodeInternal, internalErrorMessage}, false
}

// fail writes the error envelope. Unexpected errors are logged and
// rendered as a generic 500.
func (h *Handler) fail(c *fiber.Ctx, err error, ov overrides) error {
	out, known := resolve(err, ov)
	if !known {
		h.logger.Error(c.UserContext(), "request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(out.status).JSON(fiber.Map{
		"success":   false,
		"message":   out.message,
		"errorCode": out.code,
	})
}

// invalid writes a validation failure with per-field messages.
func invalid(c *fiber.Ctx, err error) error {
	body := fiber.Map{
		"success":   false,
		"message":   "Validation failed",
		"errorCode": CodeValidationFailed,
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for name, e := range verrs {
			fields[name] = e.Error()
		}
		body["errors"] = fields
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success":   false,
		"message":   "Invalid request body",
		"errorCode": CodeValidationFailed,
	})
}

// errorHandler renders errors that escape the handlers, including
// fiber's own (unknown route, method not allowed).
func errorHandler(h *Handler) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code := CodeInternal
			switch fe.Code {
			case fiber.StatusNotFound:
				code = CodeNotFound
			case fiber.StatusMethodNotAllowed, fiber.StatusBadRequest:
				code = CodeValidationFailed
			case fiber.StatusUnauthorized:
				code = CodeUnauthorized
			case fiber.StatusForbidden:
				code = CodeForbidden
			}
			return c.Status(fe.Code).JSON(fiber.Map{
				"success":   false,
				"message":   fe.Message,
				"errorCode": code,
			})
		}
		return h.fail(c, err, nil)
	}
}
