package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose tags a token as usable on exactly one verification path.
type Purpose string

const (
	PurposeAccess  Purpose = "access"
	PurposeRefresh Purpose = "refresh"
)

// Verification failures. Checked with errors.Is; no jwt library error types
// cross this package's boundary.
var (
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenWrongPurpose = errors.New("token purpose mismatch")
)

type Claims struct {
	AccountID string  `json:"uid"`
	Purpose   Purpose `json:"purpose"`
	TokenID   string  `json:"tid,omitempty"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// TokenCodec signs and verifies session tokens. Access and refresh tokens are
// signed with independent secrets so a leaked access key cannot forge refresh
// tokens; the verifier additionally checks the embedded purpose tag so the two
// token kinds are never interchangeable.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

func NewTokenCodec(accessSecret, refreshSecret string, accessExpiry, refreshExpiry time.Duration) *TokenCodec {
	return &TokenCodec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
	}
}

// Issue produces a signed token for the account with the purpose's configured
// lifetime. Refresh tokens carry a unique token ID for the revocation registry.
func (c *TokenCodec) Issue(accountID string, purpose Purpose) (string, error) {
	token, _, err := c.issue(accountID, purpose)
	return token, err
}

func (c *TokenCodec) issue(accountID string, purpose Purpose) (string, string, error) {
	now := time.Now()

	claims := Claims{
		AccountID: accountID,
		Purpose:   purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   "neuragate",
		},
	}

	var secret []byte
	switch purpose {
	case PurposeAccess:
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.accessExpiry))
		secret = c.accessSecret
	case PurposeRefresh:
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.refreshExpiry))
		claims.TokenID = uuid.New().String()
		secret = c.refreshSecret
	default:
		return "", "", fmt.Errorf("unknown token purpose %q", purpose)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", "", fmt.Errorf("signing %s token: %w", purpose, err)
	}
	return signed, claims.TokenID, nil
}

// IssuePair produces an access+refresh pair and returns the refresh token's ID
// so the caller can register it for rotation.
func (c *TokenCodec) IssuePair(accountID string) (*TokenPair, string, error) {
	access, _, err := c.issue(accountID, PurposeAccess)
	if err != nil {
		return nil, "", err
	}
	refresh, tokenID, err := c.issue(accountID, PurposeRefresh)
	if err != nil {
		return nil, "", err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(c.accessExpiry.Seconds()),
	}, tokenID, nil
}

// Verify checks signature and expiry, then the purpose tag. The signing secret
// is selected by the token's own purpose claim so a structurally valid token of
// the wrong purpose fails with ErrTokenWrongPurpose rather than a signature error.
func (c *TokenCodec) Verify(tokenStr string, expected Purpose) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		claims, ok := t.Claims.(*Claims)
		if !ok {
			return nil, ErrTokenMalformed
		}
		switch claims.Purpose {
		case PurposeAccess:
			return c.accessSecret, nil
		case PurposeRefresh:
			return c.refreshSecret, nil
		default:
			return nil, ErrTokenMalformed
		}
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.Purpose != expected {
		return nil, ErrTokenWrongPurpose
	}
	return claims, nil
}

func (c *TokenCodec) RefreshExpiry() time.Duration {
	return c.refreshExpiry
}
