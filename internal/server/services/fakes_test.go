package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/pgfinder/internal/common"
	"github.com/dmitrijs2005/pgfinder/internal/dbx"
	"github.com/dmitrijs2005/pgfinder/internal/server/config"
	"github.com/dmitrijs2005/pgfinder/internal/server/models"
	"github.com/dmitrijs2005/pgfinder/internal/server/repositories/accounts"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// --- in-memory credential store ---

type memAccounts struct {
	mu   sync.Mutex
	byID map[string]*models.Account

	// err, when set, is returned by every method.
	err error
	// beforeSwap runs inside SwapRefreshToken before the comparison.
	beforeSwap func()
	// beforeSetVerification runs inside SetVerificationToken before the
	// conditions are checked.
	beforeSetVerification func()
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: map[string]*models.Account{}}
}

func clone(a *models.Account) *models.Account {
	c := *a
	return &c
}

func (m *memAccounts) find(match func(*models.Account) bool) (*models.Account, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if match(a) {
			return clone(a), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memAccounts) update(id string, fn func(*models.Account) bool) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	if !fn(a) {
		return false, nil
	}
	a.UpdatedAt = time.Now()
	return true, nil
}

func (m *memAccounts) mustUpdate(id string, fn func(*models.Account)) error {
	ok, err := m.update(id, func(a *models.Account) bool { fn(a); return true })
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrorNotFound
	}
	return nil
}

// get returns the stored record for assertions.
func (m *memAccounts) get(id string) *models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.byID[id])
}

func (m *memAccounts) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.byID {
		if other.Email == a.Email {
			return nil, common.ErrAlreadyExists
		}
	}
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.byID[a.ID] = clone(a)
	return a, nil
}

func (m *memAccounts) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	if err == common.ErrorNotFound {
		return false, nil
	}
	return err == nil, err
}

func (m *memAccounts) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.Email == email })
}

func (m *memAccounts) FindActiveByEmail(ctx context.Context, email string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.Email == email && a.Active })
}

func (m *memAccounts) FindActiveByID(ctx context.Context, id string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.ID == id && a.Active })
}

func (m *memAccounts) FindByVerificationToken(ctx context.Context, token string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool {
		return a.VerificationToken != nil && *a.VerificationToken == token
	})
}

func (m *memAccounts) FindByPasswordResetToken(ctx context.Context, token string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool {
		return a.Active && a.PasswordResetToken != nil && *a.PasswordResetToken == token
	})
}

func (m *memAccounts) SetVerificationToken(ctx context.Context, id, token string, expiry, sentAt, sentBefore time.Time) (bool, error) {
	if m.beforeSetVerification != nil {
		m.beforeSetVerification()
	}
	return m.update(id, func(a *models.Account) bool {
		if a.Verified || (a.LastVerificationSentAt != nil && a.LastVerificationSentAt.After(sentBefore)) {
			return false
		}
		a.VerificationToken, a.VerificationTokenExpiry, a.LastVerificationSentAt = &token, &expiry, &sentAt
		return true
	})
}

func (m *memAccounts) MarkVerified(ctx context.Context, id, token string) (bool, error) {
	return m.update(id, func(a *models.Account) bool {
		if a.VerificationToken == nil || *a.VerificationToken != token {
			return false
		}
		a.Verified = true
		a.VerificationToken, a.VerificationTokenExpiry = nil, nil
		return true
	})
}

func (m *memAccounts) SetRefreshToken(ctx context.Context, id, token string, expiry time.Time) error {
	return m.mustUpdate(id, func(a *models.Account) {
		a.RefreshToken, a.RefreshTokenExpiry = &token, &expiry
	})
}

func (m *memAccounts) SwapRefreshToken(ctx context.Context, id, expected, token string, expiry time.Time) (bool, error) {
	if m.beforeSwap != nil {
		m.beforeSwap()
	}
	return m.update(id, func(a *models.Account) bool {
		if !a.Active || a.RefreshToken == nil || *a.RefreshToken != expected {
			return false
		}
		a.RefreshToken, a.RefreshTokenExpiry = &token, &expiry
		return true
	})
}

func (m *memAccounts) ClearRefreshToken(ctx context.Context, email string) error {
	a, err := m.FindByEmail(ctx, email)
	if err == common.ErrorNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	return m.mustUpdate(a.ID, func(a *models.Account) {
		a.RefreshToken, a.RefreshTokenExpiry = nil, nil
	})
}

func (m *memAccounts) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return m.mustUpdate(id, func(a *models.Account) { a.PasswordHash = passwordHash })
}

func (m *memAccounts) SetPasswordResetToken(ctx context.Context, id, token string, expiry time.Time) error {
	return m.mustUpdate(id, func(a *models.Account) {
		a.PasswordResetToken, a.PasswordResetTokenExpiry = &token, &expiry
	})
}

func (m *memAccounts) ResetPassword(ctx context.Context, id, token, passwordHash string) (bool, error) {
	return m.update(id, func(a *models.Account) bool {
		if a.PasswordResetToken == nil || *a.PasswordResetToken != token {
			return false
		}
		a.PasswordHash = passwordHash
		a.PasswordResetToken, a.PasswordResetTokenExpiry = nil, nil
		a.RefreshToken, a.RefreshTokenExpiry = nil, nil
		return true
	})
}

func (m *memAccounts) UpdateProfile(ctx context.Context, id, name string, phoneNumber *string) (*models.Account, error) {
	ok, err := m.update(id, func(a *models.Account) bool {
		if !a.Active {
			return false
		}
		a.Name, a.PhoneNumber = name, phoneNumber
		return true
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrorNotFound
	}
	return m.get(id), nil
}

func (m *memAccounts) Deactivate(ctx context.Context, id string) error {
	return m.mustUpdate(id, func(a *models.Account) {
		a.Active = false
		a.RefreshToken, a.RefreshTokenExpiry = nil, nil
	})
}

func (m *memAccounts) ListActiveByRole(ctx context.Context, role models.Role) ([]*models.Account, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Account
	for _, a := range m.byID {
		if a.Active && a.Role == role {
			out = append(out, clone(a))
		}
	}
	return out, nil
}

func (m *memAccounts) CountActiveByRole(ctx context.Context, role models.Role) (int64, error) {
	list, err := m.ListActiveByRole(ctx, role)
	return int64(len(list)), err
}

// --- repository manager ---

type fakeRepoManager struct {
	accounts *memAccounts
}

func (f *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (f *fakeRepoManager) Accounts(db dbx.DBTX) accounts.Repository     { return f.accounts }

// --- mailer ---

type sentMail struct {
	Kind  string
	To    string
	Name  string
	Token string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (f *fakeMailer) SendVerification(to, name, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{"verification", to, name, token})
}

func (f *fakeMailer) SendPasswordReset(to, name, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{"reset", to, name, token})
}

func (f *fakeMailer) last() sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMail{}
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// --- helpers ---

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"
	cfg.PasswordHashCost = bcrypt.MinCost
	return cfg
}

// newTxDB returns a sqlmock database that accepts any number of
// transactions; the in-memory store ignores the handle.
func newTxDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	mock.MatchExpectationsInOrder(false)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func expectTx(mock sqlmock.Sqlmock, commit bool) {
	mock.ExpectBegin()
	if commit {
		mock.ExpectCommit()
	} else {
		mock.ExpectRollback()
	}
}

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fixedClock {
	return &fixedClock{t: time.Now()}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
