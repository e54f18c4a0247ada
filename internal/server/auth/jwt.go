package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pgfinder/internal/common"
	"github.com/dmitrijs2005/pgfinder/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// KindRefresh marks refresh tokens. Access tokens carry no kind.
const KindRefresh = "refresh"

// Verification failures. All of them wrap common.ErrInvalidToken.
var (
	ErrTokenMalformed    = fmt.Errorf("%w: malformed", common.ErrInvalidToken)
	ErrTokenBadSignature = fmt.Errorf("%w: bad signature", common.ErrInvalidToken)
	ErrTokenExpired      = fmt.Errorf("%w: expired", common.ErrInvalidToken)
	ErrTokenUnsupported  = fmt.Errorf("%w: unsupported", common.ErrInvalidToken)
)

// FailureKind returns the diagnostic label of a Verify error:
// MALFORMED, BAD_SIGNATURE, EXPIRED, UNSUPPORTED, or "" for other errors.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrTokenMalformed):
		return "MALFORMED"
	case errors.Is(err, ErrTokenBadSignature):
		return "BAD_SIGNATURE"
	case errors.Is(err, ErrTokenExpired):
		return "EXPIRED"
	case errors.Is(err, ErrTokenUnsupported):
		return "UNSUPPORTED"
	}
	return ""
}

// Claims are the JWT claims of access and refresh tokens. The subject is the
// account email.
type Claims struct {
	Role      models.Role `json:"role"`
	AccountID string      `json:"accountId"`
	Kind      string      `json:"kind,omitempty"`
	jwt.RegisteredClaims
}

// IsRefresh reports whether the claims belong to a refresh token.
func (c *Claims) IsRefresh() bool { return c.Kind == KindRefresh }

// TokenCodec mints and verifies HS256 tokens with one process-wide key.
type TokenCodec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenCodec(secret []byte, accessTTL, refreshTTL time.Duration) *TokenCodec {
	return &TokenCodec{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// IssueAccess mints an access token for the account.
func (c *TokenCodec) IssueAccess(subject string, role models.Role, accountID string) (string, error) {
	return c.issue(subject, role, accountID, "", c.accessTTL)
}

// IssueRefresh mints a refresh token for the account.
func (c *TokenCodec) IssueRefresh(subject string, role models.Role, accountID string) (string, error) {
	return c.issue(subject, role, accountID, KindRefresh, c.refreshTTL)
}

func (c *TokenCodec) issue(subject string, role models.Role, accountID, kind string, ttl time.Duration) (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:      role,
		AccountID: accountID,
		Kind:      kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})

	s, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// Verify checks the signature, then expiry, and returns the claims.
func (c *TokenCodec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	parser := jwt.NewParser(jwt.WithExpirationRequired(), jwt.WithTimeFunc(c.now))
	_, err := parser.ParseWithClaims(tokenString, claims, c.keyFunc)
	if err != nil {
		return nil, classify(err)
	}
	return claims, nil
}

// IsRefreshKind inspects the kind claim only. It does not verify the token,
// so callers pair it with Verify. Refresh rejects tokens without the kind and
// bearer authentication rejects tokens with it.
func (c *TokenCodec) IsRefreshKind(tokenString string) bool {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return false
	}
	return claims.IsRefresh()
}

func (c *TokenCodec) keyFunc(t *jwt.Token) (any, error) {
	if t.Method != jwt.SigningMethodHS256 {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return c.secret, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrTokenUnsupported, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrTokenBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
