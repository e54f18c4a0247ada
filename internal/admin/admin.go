// Package admin implements the operator command that creates the
// administrator account or resets its password.
package admin

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/pgfinder/internal/logging"
	"github.com/dmitrijs2005/pgfinder/internal/server"
	"github.com/dmitrijs2005/pgfinder/internal/server/auth"
	"github.com/dmitrijs2005/pgfinder/internal/server/config"
	"github.com/dmitrijs2005/pgfinder/internal/server/services"
)

type passwordSetter interface {
	SetAdminPassword(ctx context.Context, password string) (bool, error)
}

// SetPassword prompts for a new password and hands it to s.
func SetPassword(ctx context.Context, s passwordSetter, email string, w io.Writer) error {
	pw, err := ReadNewPassword(w)
	if err != nil {
		return err
	}

	created, err := s.SetAdminPassword(ctx, pw)
	if err != nil {
		return err
	}

	if created {
		fmt.Fprintf(w, "Administrator %s created\n", email)
	} else {
		fmt.Fprintf(w, "Password for %s updated\n", email)
	}
	return nil
}

// Run connects to the database configured in cfg and sets the
// administrator password interactively.
func Run(ctx context.Context, cfg *config.Config, w io.Writer) error {
	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)

	if err := server.PrepareConfig(ctx, cfg, logger); err != nil {
		return err
	}

	db, m, err := server.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	hasher := auth.NewPasswordHasher(cfg.PasswordHashCost)
	bs := services.NewBootstrapService(db, m, cfg, hasher, logger)

	return SetPassword(ctx, bs, cfg.AdminEmail, w)
}
