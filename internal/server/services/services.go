// Package services contains the server-side business logic: registration,
// email verification, sessions, account management, password reset and
// the administrator bootstrap.
package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/pgfinder/internal/dbx"
	"github.com/dmitrijs2005/pgfinder/internal/server/models"
	"github.com/google/uuid"
)

// Mailer queues transactional emails. Implementations must not block the
// caller on delivery.
type Mailer interface {
	SendVerification(to, name, token string)
	SendPasswordReset(to, name, token string)
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult is returned by a successful Authenticate.
type LoginResult struct {
	TokenPair
	Account *models.Account
}

// clock and store deadline shared by every service.
type base struct {
	now          func() time.Time
	storeTimeout time.Duration
}

func (b *base) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return dbx.WithTimeout(ctx, b.storeTimeout)
}

// validID reports whether id can be an account id. Ids that cannot exist
// are answered as not found without a store round trip.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func newOpaqueToken() string {
	return uuid.NewString()
}
