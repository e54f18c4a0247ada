package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pgfinder/internal/common"
	"github.com/dmitrijs2005/pgfinder/internal/logging"
	"github.com/dmitrijs2005/pgfinder/internal/server/config"
	"github.com/dmitrijs2005/pgfinder/internal/server/models"
	"github.com/dmitrijs2005/pgfinder/internal/server/repositories/repomanager"
)

// VerificationService issues, confirms and re-sends email verification
// tokens. Tokens are random and single-use.
type VerificationService struct {
	base
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	mailer      Mailer
	tokenTTL    time.Duration
	throttle    time.Duration
	log         logging.Logger
}

func NewVerificationService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, mailer Mailer, log logging.Logger) *VerificationService {
	return &VerificationService{
		base:        base{now: time.Now, storeTimeout: cfg.StoreTimeout},
		db:          db,
		repomanager: m,
		mailer:      mailer,
		tokenTTL:    cfg.VerificationTokenTTL,
		throttle:    cfg.VerificationResendThrottle,
		log:         log.With("module", "verification"),
	}
}

// prepare puts a fresh token on a not yet persisted account.
func (s *VerificationService) prepare(a *models.Account) {
	now := s.now()
	token := newOpaqueToken()
	expiry := now.Add(s.tokenTTL)

	a.VerificationToken = &token
	a.VerificationTokenExpiry = &expiry
	a.LastVerificationSentAt = &now
}

func (s *VerificationService) notify(ctx context.Context, a *models.Account) {
	if a.VerificationToken == nil {
		return
	}
	s.mailer.SendVerification(a.Email, a.Name, *a.VerificationToken)
	s.log.Info(ctx, "verification email queued", "accountId", a.ID)
}

// Issue replaces the account's verification token, persists it and queues
// the email. It returns the new token. The store refuses the write when the
// account got verified or another email went out within the throttle
// window; those cases yield common.ErrAlreadyVerified and common.ErrThrottled.
// a is updated only once the token is stored.
func (s *VerificationService) Issue(ctx context.Context, a *models.Account) (string, error) {
	now := s.now()
	token := newOpaqueToken()
	expiry := now.Add(s.tokenTTL)

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	repo := s.repomanager.Accounts(s.db)
	ok, err := repo.SetVerificationToken(sctx, a.ID, token, expiry, now, now.Add(-s.throttle))
	if err != nil {
		return "", fmt.Errorf("error storing verification token: %w", err)
	}
	if !ok {
		return "", s.refusal(sctx, a.Email)
	}

	a.VerificationToken = &token
	a.VerificationTokenExpiry = &expiry
	a.LastVerificationSentAt = &now

	s.notify(ctx, a)
	return token, nil
}

// refusal explains why the store skipped a token write.
func (s *VerificationService) refusal(ctx context.Context, email string) error {
	current, err := s.repomanager.Accounts(s.db).FindByEmail(ctx, email)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return common.ErrorNotFound
	case err != nil:
		return fmt.Errorf("error searching account: %w", err)
	case current.Verified:
		return common.ErrAlreadyVerified
	}
	return common.ErrThrottled
}

// Confirm marks the account owning token as verified. Unknown tokens yield
// common.ErrorNotFound; an expired token yields common.ErrTokenExpired and
// stays in place until a resend replaces it.
func (s *VerificationService) Confirm(ctx context.Context, token string) error {
	if token == "" {
		return common.ErrorNotFound
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	repo := s.repomanager.Accounts(s.db)
	a, err := repo.FindByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("error searching verification token: %w", err)
	}

	if a.VerificationTokenExpiry != nil && s.now().After(*a.VerificationTokenExpiry) {
		return common.ErrTokenExpired
	}

	ok, err := repo.MarkVerified(ctx, a.ID, token)
	if err != nil {
		return fmt.Errorf("error marking account verified: %w", err)
	}
	if !ok {
		// another confirm consumed the token first
		return common.ErrorNotFound
	}

	s.log.Info(ctx, "email verified", "accountId", a.ID)
	return nil
}

// Resend issues a new token unless the account is already verified or the
// previous email went out less than the throttle window ago.
func (s *VerificationService) Resend(ctx context.Context, email string) (string, error) {
	email = common.NormalizeEmail(email)

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	a, err := s.repomanager.Accounts(s.db).FindByEmail(sctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("error searching account: %w", err)
	}

	if a.Verified {
		return "", common.ErrAlreadyVerified
	}
	if a.LastVerificationSentAt != nil && s.now().Before(a.LastVerificationSentAt.Add(s.throttle)) {
		return "", common.ErrThrottled
	}

	return s.Issue(ctx, a)
}
