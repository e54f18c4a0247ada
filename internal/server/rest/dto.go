package rest

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/pgfinder/internal/common"
	"github.com/dmitrijs2005/pgfinder/internal/server/models"
	"github.com/dmitrijs2005/pgfinder/internal/server/phone"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// --- requests ---

type RegisterRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber"`
	UserType    string `json:"userType"`
}

func (r RegisterRequest) Validate(phoneRegion string) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 72)),
		validation.Field(&r.PhoneNumber, validation.Required, validation.By(validPhone(phoneRegion))),
	)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

// EmailRequest is the body of logout, resend-verification and
// forgot-password.
type EmailRequest struct {
	Email string `json:"email"`
}

func (r EmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(6, 72)),
	)
}

type UpdateAccountRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
}

func (r UpdateAccountRequest) Validate(phoneRegion string) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.PhoneNumber, validation.By(validPhone(phoneRegion))),
	)
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(6, 72)),
	)
}

func validPhone(region string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		if _, err := phone.Normalize(s, region); err != nil {
			return errors.New("must be a valid phone number")
		}
		return nil
	}
}

// --- responses ---

// AccountView is an account without any secret.
type AccountView struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	PhoneNumber *string     `json:"phoneNumber"`
	UserType    models.Role `json:"userType"`
	IsActive    bool        `json:"isActive"`
	IsVerified  bool        `json:"isVerified"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

func newAccountView(a *models.Account) AccountView {
	return AccountView{
		ID:          a.ID,
		Name:        a.Name,
		Email:       a.Email,
		PhoneNumber: a.PhoneNumber,
		UserType:    a.Role,
		IsActive:    a.Active,
		IsVerified:  a.Verified,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func newAccountViews(list []*models.Account) []AccountView {
	views := make([]AccountView, 0, len(list))
	for _, a := range list {
		views = append(views, newAccountView(a))
	}
	return views
}

type LoginView struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	TokenType    string      `json:"tokenType"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	UserType     models.Role `json:"userType"`
	UserID       string      `json:"userId"`
	IsVerified   bool        `json:"isVerified"`
}

type TokenView struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
}

type StatsView struct {
	TotalUsers  int64 `json:"totalUsers"`
	TotalOwners int64 `json:"totalOwners"`
	TotalAdmins int64 `json:"totalAdmins"`
}

func newTokenView(accessToken, refreshToken string) TokenView {
	return TokenView{AccessToken: accessToken, RefreshToken: refreshToken, TokenType: common.BearerScheme}
}
