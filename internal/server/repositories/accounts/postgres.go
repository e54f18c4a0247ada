package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pgfinder/internal/common"
	"github.com/dmitrijs2005/pgfinder/internal/dbx"
	"github.com/dmitrijs2005/pgfinder/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const accountColumns = `id, name, email, password_hash, phone_number, role, is_active, is_verified,
		verification_token, verification_token_expiry, last_verification_sent_at,
		refresh_token, refresh_token_expiry, password_reset_token, password_reset_token_expiry,
		created_at, updated_at`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*models.Account, error) {
	a := &models.Account{}
	var role string
	err := row.Scan(
		&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.PhoneNumber, &role, &a.Active, &a.Verified,
		&a.VerificationToken, &a.VerificationTokenExpiry, &a.LastVerificationSentAt,
		&a.RefreshToken, &a.RefreshTokenExpiry, &a.PasswordResetToken, &a.PasswordResetTokenExpiry,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Role = models.Role(role)
	return a, nil
}

func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return common.ErrAlreadyExists
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) findOne(ctx context.Context, where string, arg any) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + where

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	query :=
		`INSERT INTO accounts (name, email, password_hash, phone_number, role, is_active, is_verified,
		 verification_token, verification_token_expiry, last_verification_sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		a.Name, a.Email, a.PasswordHash, a.PhoneNumber, string(a.Role), a.Active, a.Verified,
		a.VerificationToken, a.VerificationTokenExpiry, a.LastVerificationSentAt,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		return nil, mapError(err)
	}

	return a, nil
}

func (r *PostgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, `email = $1`, email)
}

func (r *PostgresRepository) FindActiveByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, `email = $1 AND is_active`, email)
}

func (r *PostgresRepository) FindActiveByID(ctx context.Context, id string) (*models.Account, error) {
	return r.findOne(ctx, `id = $1 AND is_active`, id)
}

func (r *PostgresRepository) FindByVerificationToken(ctx context.Context, token string) (*models.Account, error) {
	return r.findOne(ctx, `verification_token = $1`, token)
}

func (r *PostgresRepository) FindByPasswordResetToken(ctx context.Context, token string) (*models.Account, error) {
	return r.findOne(ctx, `password_reset_token = $1 AND is_active`, token)
}

// exec runs an update and reports whether any row matched.
func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

// mustExec is exec for updates keyed by id, where no match means the
// account is gone.
func (r *PostgresRepository) mustExec(ctx context.Context, query string, args ...any) error {
	ok, err := r.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrorNotFound
	}
	return nil
}

// SetVerificationToken replaces the token of an unverified account whose
// last email went out no later than sentBefore. It reports whether a row
// matched.
func (r *PostgresRepository) SetVerificationToken(ctx context.Context, id, token string, expiry, sentAt, sentBefore time.Time) (bool, error) {
	query :=
		`UPDATE accounts
		 SET verification_token = $2, verification_token_expiry = $3, last_verification_sent_at = $4, updated_at = now()
		 WHERE id = $1 AND NOT is_verified
		   AND (last_verification_sent_at IS NULL OR last_verification_sent_at <= $5)
		 `
	return r.exec(ctx, query, id, token, expiry, sentAt, sentBefore)
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, id, token string) (bool, error) {
	query :=
		`UPDATE accounts
		 SET is_verified = TRUE, verification_token = NULL, verification_token_expiry = NULL, updated_at = now()
		 WHERE id = $1 AND verification_token = $2
		 `
	return r.exec(ctx, query, id, token)
}

func (r *PostgresRepository) SetRefreshToken(ctx context.Context, id, token string, expiry time.Time) error {
	query :=
		`UPDATE accounts
		 SET refresh_token = $2, refresh_token_expiry = $3, updated_at = now()
		 WHERE id = $1
		 `
	return r.mustExec(ctx, query, id, token, expiry)
}

func (r *PostgresRepository) SwapRefreshToken(ctx context.Context, id, expected, token string, expiry time.Time) (bool, error) {
	query :=
		`UPDATE accounts
		 SET refresh_token = $3, refresh_token_expiry = $4, updated_at = now()
		 WHERE id = $1 AND refresh_token = $2 AND is_active
		 `
	return r.exec(ctx, query, id, expected, token, expiry)
}

func (r *PostgresRepository) ClearRefreshToken(ctx context.Context, email string) error {
	query :=
		`UPDATE accounts
		 SET refresh_token = NULL, refresh_token_expiry = NULL, updated_at = now()
		 WHERE email = $1
		 `
	_, err := r.exec(ctx, query, email)
	return err
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query :=
		`UPDATE accounts
		 SET password_hash = $2, updated_at = now()
		 WHERE id = $1
		 `
	return r.mustExec(ctx, query, id, passwordHash)
}

func (r *PostgresRepository) SetPasswordResetToken(ctx context.Context, id, token string, expiry time.Time) error {
	query :=
		`UPDATE accounts
		 SET password_reset_token = $2, password_reset_token_expiry = $3, updated_at = now()
		 WHERE id = $1
		 `
	return r.mustExec(ctx, query, id, token, expiry)
}

func (r *PostgresRepository) ResetPassword(ctx context.Context, id, token, passwordHash string) (bool, error) {
	query :=
		`UPDATE accounts
		 SET password_hash = $3, password_reset_token = NULL, password_reset_token_expiry = NULL,
		     refresh_token = NULL, refresh_token_expiry = NULL, updated_at = now()
		 WHERE id = $1 AND password_reset_token = $2
		 `
	return r.exec(ctx, query, id, token, passwordHash)
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id, name string, phoneNumber *string) (*models.Account, error) {
	query :=
		`UPDATE accounts
		 SET name = $2, phone_number = $3, updated_at = now()
		 WHERE id = $1 AND is_active
		 RETURNING ` + accountColumns

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id, name, phoneNumber))
	if err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	query :=
		`UPDATE accounts
		 SET is_active = FALSE, refresh_token = NULL, refresh_token_expiry = NULL, updated_at = now()
		 WHERE id = $1
		 `
	return r.mustExec(ctx, query, id)
}

func (r *PostgresRepository) ListActiveByRole(ctx context.Context, role models.Role) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE role = $1 AND is_active ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, string(role))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) CountActiveByRole(ctx context.Context, role models.Role) (int64, error) {
	query := `SELECT COUNT(*) FROM accounts WHERE role = $1 AND is_active`

	var n int64
	if err := r.db.QueryRowContext(ctx, query, string(role)).Scan(&n); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}
