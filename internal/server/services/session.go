package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pgfinder/internal/common"
	"github.com/dmitrijs2005/pgfinder/internal/dbx"
	"github.com/dmitrijs2005/pgfinder/internal/logging"
	"github.com/dmitrijs2005/pgfinder/internal/server/auth"
	"github.com/dmitrijs2005/pgfinder/internal/server/config"
	"github.com/dmitrijs2005/pgfinder/internal/server/models"
	"github.com/dmitrijs2005/pgfinder/internal/server/phone"
	"github.com/dmitrijs2005/pgfinder/internal/server/repositories/repomanager"
)

// ErrRoleNotAllowed is returned when a self-registration asks for a role
// that only an administrator can grant.
var ErrRoleNotAllowed = errors.New("role not allowed")

// RegisterInput is the profile supplied on registration.
type RegisterInput struct {
	Name        string
	Email       string
	Password    string
	PhoneNumber string
	Role        models.Role
}

// SessionService handles registration, credential checks and the
// access/refresh token lifecycle. Each account has at most one live
// refresh token.
type SessionService struct {
	base
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	hasher       *auth.PasswordHasher
	codec        *auth.TokenCodec
	verification *VerificationService
	refreshTTL   time.Duration
	phoneRegion  string
	log          logging.Logger
}

func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config,
	hasher *auth.PasswordHasher, codec *auth.TokenCodec, verification *VerificationService, log logging.Logger) *SessionService {
	return &SessionService{
		base:         base{now: time.Now, storeTimeout: cfg.StoreTimeout},
		db:           db,
		repomanager:  m,
		hasher:       hasher,
		codec:        codec,
		verification: verification,
		refreshTTL:   cfg.RefreshTokenStoreTTL,
		phoneRegion:  cfg.DefaultPhoneRegion,
		log:          log.With("module", "session"),
	}
}

// Register creates an unverified account and queues its verification
// email. The email must not belong to any account, active or not.
func (s *SessionService) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if role == models.RoleAdmin {
		return nil, ErrRoleNotAllowed
	}

	var phoneNumber *string
	if in.PhoneNumber != "" {
		p, err := phone.Normalize(in.PhoneNumber, s.phoneRegion)
		if err != nil {
			return nil, err
		}
		phoneNumber = &p
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		Name:         in.Name,
		Email:        common.NormalizeEmail(in.Email),
		PasswordHash: hash,
		PhoneNumber:  phoneNumber,
		Role:         role,
		Active:       true,
	}
	s.verification.prepare(account)

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	var created *models.Account
	err = dbx.WithTx(sctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		exists, err := repo.ExistsByEmail(ctx, account.Email)
		if err != nil {
			return err
		}
		if exists {
			return common.ErrAlreadyExists
		}

		created, err = repo.Create(ctx, account)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("error creating account: %w", err)
	}

	s.log.Info(ctx, "account registered", "accountId", created.ID, "role", created.Role)
	s.verification.notify(ctx, created)
	return created, nil
}

// Login checks credentials among active accounts without the verification
// gate and without issuing tokens.
//
// Deprecated: Login is the legacy password-only path. Use Authenticate.
func (s *SessionService) Login(ctx context.Context, email, password string) (*models.Account, error) {
	return s.checkCredentials(ctx, email, password)
}

// Authenticate checks credentials, requires a verified email and mints a
// token pair. The stored refresh token is overwritten, which ends any
// previous session.
func (s *SessionService) Authenticate(ctx context.Context, email, password string) (*LoginResult, error) {
	a, err := s.checkCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if !a.Verified {
		return nil, common.ErrEmailNotVerified
	}

	pair, err := s.generateTokenPair(a)
	if err != nil {
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	expiry := s.now().Add(s.refreshTTL)
	if err := s.repomanager.Accounts(s.db).SetRefreshToken(sctx, a.ID, pair.RefreshToken, expiry); err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}
	a.RefreshToken = &pair.RefreshToken
	a.RefreshTokenExpiry = &expiry

	s.log.Info(ctx, "session started", "accountId", a.ID)
	return &LoginResult{TokenPair: *pair, Account: a}, nil
}

// Refresh rotates the refresh token. The presented token must be the one
// currently stored for the account; the swap is conditional on it, so of
// two concurrent refreshes with the same token exactly one succeeds.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.codec.Verify(refreshToken)
	if err != nil || !s.codec.IsRefreshKind(refreshToken) {
		return nil, common.ErrInvalidToken
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	repo := s.repomanager.Accounts(s.db)
	a, err := repo.FindActiveByEmail(sctx, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error searching account: %w", err)
	}

	if a.RefreshToken == nil || *a.RefreshToken != refreshToken {
		return nil, common.ErrInvalidToken
	}
	if a.RefreshTokenExpiry == nil || s.now().After(*a.RefreshTokenExpiry) {
		return nil, common.ErrInvalidToken
	}

	pair, err := s.generateTokenPair(a)
	if err != nil {
		return nil, err
	}

	swapped, err := repo.SwapRefreshToken(sctx, a.ID, refreshToken, pair.RefreshToken, s.now().Add(s.refreshTTL))
	if err != nil {
		return nil, fmt.Errorf("error rotating refresh token: %w", err)
	}
	if !swapped {
		s.log.Warn(ctx, "refresh token rotated concurrently", "accountId", a.ID)
		return nil, common.ErrInvalidToken
	}

	return pair, nil
}

// Logout forgets the stored refresh token. It is idempotent and succeeds
// for unknown emails.
func (s *SessionService) Logout(ctx context.Context, email string) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.repomanager.Accounts(s.db).ClearRefreshToken(sctx, common.NormalizeEmail(email)); err != nil {
		return fmt.Errorf("error clearing refresh token: %w", err)
	}
	return nil
}

// ChangePassword replaces the password after checking the current one. It
// reports false when the account is missing or currentPassword is wrong.
// The outstanding refresh token stays valid.
func (s *SessionService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) (bool, error) {
	if !validID(accountID) {
		return false, nil
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	repo := s.repomanager.Accounts(s.db)
	a, err := repo.FindActiveByID(sctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("error searching account: %w", err)
	}

	if !s.hasher.Check(currentPassword, a.PasswordHash) {
		return false, nil
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return false, err
	}
	if err := repo.UpdatePassword(sctx, a.ID, hash); err != nil {
		return false, fmt.Errorf("error updating password: %w", err)
	}

	s.log.Info(ctx, "password changed", "accountId", a.ID)
	return true, nil
}

// --- helpers below ---

func (s *SessionService) checkCredentials(ctx context.Context, email, password string) (*models.Account, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	a, err := s.repomanager.Accounts(s.db).FindActiveByEmail(sctx, common.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.SimulateCheck(password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error searching account: %w", err)
	}

	if !s.hasher.Check(password, a.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}
	return a, nil
}

func (s *SessionService) generateTokenPair(a *models.Account) (*TokenPair, error) {
	access, err := s.codec.IssueAccess(a.Email, a.Role, a.ID)
	if err != nil {
		return nil, fmt.Errorf("error issuing access token: %w", err)
	}
	refresh, err := s.codec.IssueRefresh(a.Email, a.Role, a.ID)
	if err != nil {
		return nil, fmt.Errorf("error issuing refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
