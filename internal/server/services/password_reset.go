package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pgfinder/internal/common"
	"github.com/dmitrijs2005/pgfinder/internal/logging"
	"github.com/dmitrijs2005/pgfinder/internal/server/auth"
	"github.com/dmitrijs2005/pgfinder/internal/server/config"
	"github.com/dmitrijs2005/pgfinder/internal/server/repositories/repomanager"
)

// PasswordResetService runs the forgot-password flow.
type PasswordResetService struct {
	base
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *auth.PasswordHasher
	mailer      Mailer
	tokenTTL    time.Duration
	log         logging.Logger
}

func NewPasswordResetService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config,
	hasher *auth.PasswordHasher, mailer Mailer, log logging.Logger) *PasswordResetService {
	return &PasswordResetService{
		base:        base{now: time.Now, storeTimeout: cfg.StoreTimeout},
		db:          db,
		repomanager: m,
		hasher:      hasher,
		mailer:      mailer,
		tokenTTL:    cfg.PasswordResetTokenTTL,
		log:         log.With("module", "password-reset"),
	}
}

// Forgot mails a reset link to an active account. Unknown emails succeed
// silently so the endpoint cannot be used to probe for accounts.
func (s *PasswordResetService) Forgot(ctx context.Context, email string) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	repo := s.repomanager.Accounts(s.db)
	a, err := repo.FindActiveByEmail(sctx, common.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return fmt.Errorf("error searching account: %w", err)
	}

	token := newOpaqueToken()
	if err := repo.SetPasswordResetToken(sctx, a.ID, token, s.now().Add(s.tokenTTL)); err != nil {
		return fmt.Errorf("error storing reset token: %w", err)
	}

	s.mailer.SendPasswordReset(a.Email, a.Name, token)
	s.log.Info(ctx, "password reset email queued", "accountId", a.ID)
	return nil
}

// Reset sets a new password for the account owning token and ends its
// session. The token is single-use.
func (s *PasswordResetService) Reset(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return common.ErrInvalidToken
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	repo := s.repomanager.Accounts(s.db)
	a, err := repo.FindByPasswordResetToken(sctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidToken
		}
		return fmt.Errorf("error searching reset token: %w", err)
	}

	if a.PasswordResetTokenExpiry == nil || s.now().After(*a.PasswordResetTokenExpiry) {
		return common.ErrTokenExpired
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	ok, err := repo.ResetPassword(sctx, a.ID, token, hash)
	if err != nil {
		return fmt.Errorf("error resetting password: %w", err)
	}
	if !ok {
		return common.ErrInvalidToken
	}

	s.log.Info(ctx, "password reset", "accountId", a.ID)
	return nil
}
