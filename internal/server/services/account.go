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
	"github.com/dmitrijs2005/pgfinder/internal/server/phone"
	"github.com/dmitrijs2005/pgfinder/internal/server/repositories/repomanager"
)

// AccountService reads and administers existing accounts.
type AccountService struct {
	base
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	phoneRegion string
	log         logging.Logger
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *AccountService {
	return &AccountService{
		base:        base{now: time.Now, storeTimeout: cfg.StoreTimeout},
		db:          db,
		repomanager: m,
		phoneRegion: cfg.DefaultPhoneRegion,
		log:         log.With("module", "accounts"),
	}
}

// Get returns an active account.
func (s *AccountService) Get(ctx context.Context, id string) (*models.Account, error) {
	if !validID(id) {
		return nil, common.ErrorNotFound
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	a, err := s.repomanager.Accounts(s.db).FindActiveByID(ctx, id)
	if err != nil {
		return nil, wrapLookup(err)
	}
	return a, nil
}

// UpdateProfile replaces name and phone number. An empty phone number
// clears it.
func (s *AccountService) UpdateProfile(ctx context.Context, id, name, phoneNumber string) (*models.Account, error) {
	if !validID(id) {
		return nil, common.ErrorNotFound
	}

	var p *string
	if phoneNumber != "" {
		normalized, err := phone.Normalize(phoneNumber, s.phoneRegion)
		if err != nil {
			return nil, err
		}
		p = &normalized
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	a, err := s.repomanager.Accounts(s.db).UpdateProfile(sctx, id, name, p)
	if err != nil {
		return nil, wrapLookup(err)
	}

	s.log.Info(ctx, "profile updated", "accountId", id)
	return a, nil
}

// Deactivate soft-deletes the account and ends its session. Deactivating
// an inactive account is a no-op.
func (s *AccountService) Deactivate(ctx context.Context, id string) error {
	if !validID(id) {
		return common.ErrorNotFound
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.repomanager.Accounts(s.db).Deactivate(sctx, id); err != nil {
		return wrapLookup(err)
	}

	s.log.Info(ctx, "account deactivated", "accountId", id)
	return nil
}

// ListByRole returns active accounts with the given role.
func (s *AccountService) ListByRole(ctx context.Context, role models.Role) ([]*models.Account, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	list, err := s.repomanager.Accounts(s.db).ListActiveByRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("error listing accounts: %w", err)
	}
	return list, nil
}

// Stats counts active accounts per role.
func (s *AccountService) Stats(ctx context.Context) (*models.RoleStats, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	repo := s.repomanager.Accounts(s.db)
	counts := make(map[models.Role]int64, len(models.Roles))
	for _, role := range models.Roles {
		n, err := repo.CountActiveByRole(ctx, role)
		if err != nil {
			return nil, fmt.Errorf("error counting %s accounts: %w", role, err)
		}
		counts[role] = n
	}

	return &models.RoleStats{
		TotalUsers:  counts[models.RoleUser],
		TotalOwners: counts[models.RoleOwner],
		TotalAdmins: counts[models.RoleAdmin],
	}, nil
}

func wrapLookup(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrorNotFound
	}
	return fmt.Errorf("error accessing account: %w", err)
}
