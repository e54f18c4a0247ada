package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/pgfinder/internal/common"
	"github.com/dmitrijs2005/pgfinder/internal/server/auth"
	"github.com/dmitrijs2005/pgfinder/internal/server/models"
	"github.com/dmitrijs2005/pgfinder/internal/server/phone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_StoresHashAndQueuesVerification(t *testing.T) {
	h := newHarness(t)

	a := h.register(t, "  Alice@Example.com ", "Secret123")

	stored := h.store.get(a.ID)
	assert.Equal(t, "alice@example.com", stored.Email)
	assert.NotEqual(t, "Secret123", stored.PasswordHash)
	assert.True(t, h.hasher.Check("Secret123", stored.PasswordHash))
	assert.Equal(t, models.RoleUser, stored.Role)
	assert.True(t, stored.Active)
	assert.False(t, stored.Verified)
	require.NotNil(t, stored.PhoneNumber)
	assert.Equal(t, "+919876543210", *stored.PhoneNumber)

	require.NotNil(t, stored.VerificationToken)
	require.NotNil(t, stored.VerificationTokenExpiry)
	assert.Equal(t, h.clock.Now().Add(24*time.Hour), *stored.VerificationTokenExpiry)
	assert.Equal(t, h.clock.Now(), *stored.LastVerificationSentAt)

	mail := h.mailer.last()
	assert.Equal(t, "verification", mail.Kind)
	assert.Equal(t, "alice@example.com", mail.To)
	assert.Equal(t, *stored.VerificationToken, mail.Token)

	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestRegister_DuplicateEmail(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice@example.com", "Secret123")

	expectTx(h.mock, false)
	_, err := h.sessions.Register(context.Background(), RegisterInput{
		Name: "Other", Email: "ALICE@example.com", Password: "pw",
	})
	assert.ErrorIs(t, err, common.ErrAlreadyExists)

	n, _ := h.store.CountActiveByRole(context.Background(), models.RoleUser)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, h.mailer.count())
}

func TestRegister_DuplicateOfInactiveAccount(t *testing.T) {
	h := newHarness(t)
	a := h.register(t, "alice@example.com", "Secret123")
	require.NoError(t, h.accounts.Deactivate(context.Background(), a.ID))

	expectTx(h.mock, false)
	_, err := h.sessions.Register(context.Background(), RegisterInput{
		Name: "Again", Email: "alice@example.com", Password: "pw",
	})
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestRegister_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.sessions.Register(ctx, RegisterInput{Name: "A", Email: "a@b.com", Password: "pw", Role: models.RoleAdmin})
	assert.ErrorIs(t, err, ErrRoleNotAllowed)

	_, err = h.sessions.Register(ctx, RegisterInput{Name: "A", Email: "a@b.com", Password: "pw", PhoneNumber: "12"})
	assert.ErrorIs(t, err, phone.ErrInvalidNumber)

	_, err = h.sessions.Register(ctx, RegisterInput{Name: "A", Email: "a@b.com"})
	assert.ErrorIs(t, err, auth.ErrEmptyPassword)

	assert.Equal(t, 0, h.mailer.count())
}

func TestRegister_OwnerRole(t *testing.T) {
	h := newHarness(t)

	expectTx(h.mock, true)
	a, err := h.sessions.Register(context.Background(), RegisterInput{
		Name: "Owner", Email: "owner@example.com", Password: "pw", Role: models.RoleOwner,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, a.Role)
	assert.Nil(t, a.PhoneNumber)
}

func TestLogin_Legacy(t *testing.T) {
	h := newHarness(t)
	a := h.register(t, "alice@example.com", "Secret123")
	ctx := context.Background()

	got, err := h.sessions.Login(ctx, "Alice@example.com", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.False(t, got.Verified)

	_, err = h.sessions.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	_, err = h.sessions.Login(ctx, "nobody@example.com", "Secret123")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestAuthenticate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.register(t, "alice@example.com", "Secret123")

	_, err := h.sessions.Authenticate(ctx, "alice@example.com", "Secret123")
	assert.ErrorIs(t, err, common.ErrEmailNotVerified)

	_, err = h.sessions.Authenticate(ctx, "alice@example.com", "bad")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	require.NoError(t, h.verification.Confirm(ctx, *a.VerificationToken))

	res, err := h.sessions.Authenticate(ctx, "alice@example.com", "Secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, a.ID, res.Account.ID)

	stored := h.store.get(a.ID)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, res.RefreshToken, *stored.RefreshToken)
	assert.Equal(t, h.clock.Now().Add(7*24*time.Hour), *stored.RefreshTokenExpiry)

	claims, err := h.codec.Verify(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Subject)
	assert.Equal(t, a.ID, claims.AccountID)
	assert.False(t, claims.IsRefresh())
}

func TestAuthenticate_InactiveAccount(t *testing.T) {
	h := newHarness(t)
	a := h.registerVerified(t, "alice@example.com", "Secret123")
	require.NoError(t, h.accounts.Deactivate(context.Background(), a.ID))

	_, err := h.sessions.Authenticate(context.Background(), "alice@example.com", "Secret123")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestAuthenticate_OverwritesPreviousSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registerVerified(t, "alice@example.com", "Secret123")

	first, err := h.sessions.Authenticate(ctx, "alice@example.com", "Secret123")
	require.NoError(t, err)
	_, err = h.sessions.Authenticate(ctx, "alice@example.com", "Secret123")
	require.NoError(t, err)

	_, err = h.sessions.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestAuthenticate_StoreError(t *testing.T) {
	h := newHarness(t)
	h.store.err = errors.New("connection reset")

	_, err := h.sessions.Authenticate(context.Background(), "alice@example.com", "Secret123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestRefresh_Rotation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.registerVerified(t, "alice@example.com", "Secret123")

	login, err := h.sessions.Authenticate(ctx, "alice@example.com", "Secret123")
	require.NoError(t, err)

	pair, err := h.sessions.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, pair.RefreshToken)
	assert.Equal(t, pair.RefreshToken, *h.store.get(a.ID).RefreshToken)

	_, err = h.sessions.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	_, err = h.sessions.Refresh(ctx, pair.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.registerVerified(t, "alice@example.com", "Secret123")

	login, err := h.sessions.Authenticate(ctx, "alice@example.com", "Secret123")
	require.NoError(t, err)

	t.Run("garbage", func(t *testing.T) {
		_, err := h.sessions.Refresh(ctx, "not-a-token")
		assert.ErrorIs(t, err, common.ErrInvalidToken)
	})

	t.Run("access token", func(t *testing.T) {
		_, err := h.sessions.Refresh(ctx, login.AccessToken)
		assert.ErrorIs(t, err, common.ErrInvalidToken)
	})

	t.Run("well formed but not stored", func(t *testing.T) {
		other, err := h.codec.IssueRefresh(a.Email, a.Role, a.ID)
		require.NoError(t, err)
		_, err = h.sessions.Refresh(ctx, other)
		assert.ErrorIs(t, err, common.ErrInvalidToken)
	})

	t.Run("unknown subject", func(t *testing.T) {
		ghost, err := h.codec.IssueRefresh("ghost@example.com", models.RoleUser, a.ID)
		require.NoError(t, err)
		_, err = h.sessions.Refresh(ctx, ghost)
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("stored expiry passed", func(t *testing.T) {
		h.clock.Advance(8 * 24 * time.Hour)
		defer h.clock.Advance(-8 * 24 * time.Hour)
		_, err := h.sessions.Refresh(ctx, login.RefreshToken)
		assert.ErrorIs(t, err, common.ErrInvalidToken)
	})
}

func TestRefresh_LostSwap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.registerVerified(t, "alice@example.com", "Secret123")

	login, err := h.sessions.Authenticate(ctx, "alice@example.com", "Secret123")
	require.NoError(t, err)

	// a concurrent rotation lands between the read and the swap
	h.store.beforeSwap = func() {
		h.store.beforeSwap = nil
		_ = h.store.SetRefreshToken(ctx, a.ID, "rotated-elsewhere", time.Now().Add(time.Hour))
	}

	_, err = h.sessions.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
	assert.Equal(t, "rotated-elsewhere", *h.store.get(a.ID).RefreshToken)
}

func TestRefresh_ConcurrentExactlyOneWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registerVerified(t, "alice@example.com", "Secret123")

	login, err := h.sessions.Authenticate(ctx, "alice@example.com", "Secret123")
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.sessions.Refresh(ctx, login.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok int
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, common.ErrInvalidToken)
	}
	assert.Equal(t, 1, ok)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.registerVerified(t, "alice@example.com", "Secret123")

	login, err := h.sessions.Authenticate(ctx, "alice@example.com", "Secret123")
	require.NoError(t, err)

	require.NoError(t, h.sessions.Logout(ctx, "ALICE@example.com"))
	assert.Nil(t, h.store.get(a.ID).RefreshToken)

	_, err = h.sessions.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	assert.NoError(t, h.sessions.Logout(ctx, "alice@example.com"))
	assert.NoError(t, h.sessions.Logout(ctx, "nobody@example.com"))
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.registerVerified(t, "alice@example.com", "Secret123")

	login, err := h.sessions.Authenticate(ctx, "alice@example.com", "Secret123")
	require.NoError(t, err)

	ok, err := h.sessions.ChangePassword(ctx, a.ID, "wrong", "NewSecret1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.sessions.ChangePassword(ctx, "00000000-0000-0000-0000-000000000000", "Secret123", "NewSecret1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.sessions.ChangePassword(ctx, "not-a-uuid", "Secret123", "NewSecret1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.sessions.ChangePassword(ctx, a.ID, "Secret123", "NewSecret1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = h.sessions.Authenticate(ctx, "alice@example.com", "Secret123")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	// the refresh token issued before the change still works
	_, err = h.sessions.Refresh(ctx, login.RefreshToken)
	assert.NoError(t, err)
}

func TestExampleFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.register(t, "alice@example.com", "Secret123")
	assert.False(t, a.Verified)

	_, err := h.sessions.Authenticate(ctx, "alice@example.com", "Secret123")
	require.ErrorIs(t, err, common.ErrEmailNotVerified)

	require.NoError(t, h.verification.Confirm(ctx, h.mailer.last().Token))

	login, err := h.sessions.Authenticate(ctx, "alice@example.com", "Secret123")
	require.NoError(t, err)
	require.NotEmpty(t, login.AccessToken)
	require.NotEmpty(t, login.RefreshToken)

	pair, err := h.sessions.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)

	_, err = h.sessions.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}
