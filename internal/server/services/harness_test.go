package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/pgfinder/internal/logging"
	"github.com/dmitrijs2005/pgfinder/internal/server/auth"
	"github.com/dmitrijs2005/pgfinder/internal/server/config"
	"github.com/dmitrijs2005/pgfinder/internal/server/models"
	"github.com/stretchr/testify/require"
)

type harness struct {
	cfg    *config.Config
	store  *memAccounts
	mailer *fakeMailer
	clock  *fixedClock
	mock   sqlmock.Sqlmock
	hasher *auth.PasswordHasher
	codec  *auth.TokenCodec

	verification *VerificationService
	sessions     *SessionService
	accounts     *AccountService
	resets       *PasswordResetService
	bootstrap    *BootstrapService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := newTestConfig()
	db, mock := newTxDB(t)
	store := newMemAccounts()
	rm := &fakeRepoManager{accounts: store}
	mailer := &fakeMailer{}
	clock := newClock()
	log := logging.NewDiscardLogger()

	hasher := auth.NewPasswordHasher(cfg.PasswordHashCost)
	codec := auth.NewTokenCodec([]byte(cfg.SecretKey), cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration)

	h := &harness{
		cfg:    cfg,
		store:  store,
		mailer: mailer,
		clock:  clock,
		mock:   mock,
		hasher: hasher,
		codec:  codec,
	}

	h.verification = NewVerificationService(db, rm, cfg, mailer, log)
	h.sessions = NewSessionService(db, rm, cfg, hasher, codec, h.verification, log)
	h.accounts = NewAccountService(db, rm, cfg, log)
	h.resets = NewPasswordResetService(db, rm, cfg, hasher, mailer, log)
	h.bootstrap = NewBootstrapService(db, rm, cfg, hasher, log)

	for _, b := range []*base{&h.verification.base, &h.sessions.base, &h.accounts.base, &h.resets.base, &h.bootstrap.base} {
		b.now = clock.Now
	}
	return h
}

func (h *harness) register(t *testing.T, email, password string) *models.Account {
	t.Helper()
	expectTx(h.mock, true)
	a, err := h.sessions.Register(context.Background(), RegisterInput{
		Name:        "Alice",
		Email:       email,
		Password:    password,
		PhoneNumber: "9876543210",
	})
	require.NoError(t, err)
	return a
}

// registerVerified registers and confirms an account.
func (h *harness) registerVerified(t *testing.T, email, password string) *models.Account {
	t.Helper()
	a := h.register(t, email, password)
	require.NoError(t, h.verification.Confirm(context.Background(), *a.VerificationToken))
	return h.store.get(a.ID)
}
