// Package accounts is the credential store: persistence of identity records,
// their verification, refresh and password-reset token state.
package accounts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/pgfinder/internal/server/models"
)

// Repository persists accounts. Lookups that find nothing return
// common.ErrorNotFound; a duplicate email on Create returns
// common.ErrAlreadyExists.
type Repository interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindActiveByEmail(ctx context.Context, email string) (*models.Account, error)
	FindActiveByID(ctx context.Context, id string) (*models.Account, error)
	FindByVerificationToken(ctx context.Context, token string) (*models.Account, error)
	FindByPasswordResetToken(ctx context.Context, token string) (*models.Account, error)

	// SetVerificationToken replaces the token of an unverified account whose
	// last email went out no later than sentBefore. It reports whether a row
	// changed.
	SetVerificationToken(ctx context.Context, id, token string, expiry, sentAt, sentBefore time.Time) (bool, error)
	// MarkVerified sets the account verified only if token is still the
	// outstanding verification token. It reports whether a row changed.
	MarkVerified(ctx context.Context, id, token string) (bool, error)

	SetRefreshToken(ctx context.Context, id, token string, expiry time.Time) error
	// SwapRefreshToken replaces the stored refresh token only if it still
	// equals expected. It reports whether the swap happened.
	SwapRefreshToken(ctx context.Context, id, expected, token string, expiry time.Time) (bool, error)
	ClearRefreshToken(ctx context.Context, email string) error

	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetPasswordResetToken(ctx context.Context, id, token string, expiry time.Time) error
	// ResetPassword stores the new hash and ends every session, only if
	// token is still the outstanding reset token.
	ResetPassword(ctx context.Context, id, token, passwordHash string) (bool, error)

	UpdateProfile(ctx context.Context, id, name string, phoneNumber *string) (*models.Account, error)
	Deactivate(ctx context.Context, id string) error
	ListActiveByRole(ctx context.Context, role models.Role) ([]*models.Account, error)
	CountActiveByRole(ctx context.Context, role models.Role) (int64, error)
}
