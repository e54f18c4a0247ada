package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/pgfinder/internal/common"
	"github.com/dmitrijs2005/pgfinder/internal/dbx"
	"github.com/dmitrijs2005/pgfinder/internal/logging"
	"github.com/dmitrijs2005/pgfinder/internal/server/auth"
	"github.com/dmitrijs2005/pgfinder/internal/server/config"
	"github.com/dmitrijs2005/pgfinder/internal/server/models"
	"github.com/dmitrijs2005/pgfinder/internal/server/repositories/repomanager"
)

const (
	adminName  = "System Administrator"
	adminPhone = "+919876543210"

	// devAdminPassword is only ever used with DevMode on.
	devAdminPassword = "admin123"
)

// BootstrapService seeds the administrator account.
type BootstrapService struct {
	base
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *auth.PasswordHasher
	email       string
	password    string
	devMode     bool
	out         io.Writer
	log         logging.Logger
}

func NewBootstrapService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config,
	hasher *auth.PasswordHasher, log logging.Logger) *BootstrapService {
	return &BootstrapService{
		base:        base{now: time.Now, storeTimeout: cfg.StoreTimeout},
		db:          db,
		repomanager: m,
		hasher:      hasher,
		email:       common.NormalizeEmail(cfg.AdminEmail),
		password:    cfg.AdminPassword,
		devMode:     cfg.DevMode,
		out:         os.Stderr,
		log:         log.With("module", "bootstrap"),
	}
}

// EnsureAdmin creates the administrator if no account uses its email. It
// reports whether an account was created.
//
// The password is AdminPassword when configured, the demo password in dev
// mode, and otherwise a random one written once to stderr.
func (s *BootstrapService) EnsureAdmin(ctx context.Context) (bool, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	exists, err := s.repomanager.Accounts(s.db).ExistsByEmail(sctx, s.email)
	if err != nil {
		return false, fmt.Errorf("error checking admin account: %w", err)
	}
	if exists {
		s.log.Debug(ctx, "admin account present", "email", s.email)
		return false, nil
	}

	password, generated, err := s.resolvePassword()
	if err != nil {
		return false, err
	}

	created, err := s.create(sctx, password)
	if err != nil || !created {
		return false, err
	}

	if generated {
		fmt.Fprintf(s.out, "generated administrator password for %s: %s\n", s.email, password)
	}
	s.log.Info(ctx, "admin account created", "email", s.email, "generatedPassword", generated)
	return true, nil
}

// SetAdminPassword sets the administrator password, creating the account
// when it does not exist yet. It reports whether an account was created.
func (s *BootstrapService) SetAdminPassword(ctx context.Context, password string) (bool, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	repo := s.repomanager.Accounts(s.db)
	a, err := repo.FindByEmail(sctx, s.email)
	if errors.Is(err, common.ErrorNotFound) {
		return s.create(sctx, password)
	}
	if err != nil {
		return false, fmt.Errorf("error searching admin account: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, err
	}
	if err := repo.UpdatePassword(sctx, a.ID, hash); err != nil {
		return false, fmt.Errorf("error updating admin password: %w", err)
	}

	s.log.Info(ctx, "admin password updated", "email", s.email)
	return false, nil
}

func (s *BootstrapService) resolvePassword() (password string, generated bool, err error) {
	switch {
	case s.password != "":
		return s.password, false, nil
	case s.devMode:
		return devAdminPassword, false, nil
	}

	password, err = common.MakeRandHexString(12)
	if err != nil {
		return "", false, fmt.Errorf("error generating admin password: %w", err)
	}
	return password, true, nil
}

// create inserts the administrator. Losing a race against another
// instance is not an error.
func (s *BootstrapService) create(ctx context.Context, password string) (bool, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, err
	}

	phoneNumber := adminPhone
	admin := &models.Account{
		Name:         adminName,
		Email:        s.email,
		PasswordHash: hash,
		PhoneNumber:  &phoneNumber,
		Role:         models.RoleAdmin,
		Active:       true,
		Verified:     true,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		exists, err := repo.ExistsByEmail(ctx, admin.Email)
		if err != nil {
			return err
		}
		if exists {
			return common.ErrAlreadyExists
		}

		_, err = repo.Create(ctx, admin)
		return err
	})
	if errors.Is(err, common.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error creating admin account: %w", err)
	}
	return true, nil
}
