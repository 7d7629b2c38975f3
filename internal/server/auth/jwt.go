// Package auth signs and verifies the service's access and refresh tokens and
// hashes user passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophaccount/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind selects the secret and lifetime used for a token.
type TokenKind int

const (
	AccessToken TokenKind = iota
	RefreshToken
)

func (k TokenKind) String() string {
	switch k {
	case AccessToken:
		return "access"
	case RefreshToken:
		return "refresh"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// Claims is the verified content of a token. ExpiresAt has whole-second
// precision: it is the issue time plus the TTL, truncated to the second.
type Claims struct {
	UserID    string
	ExpiresAt time.Time
}

// CodecConfig configures a Codec. Now defaults to time.Now.
type CodecConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Now           func() time.Time
}

// Codec issues and verifies HS256 tokens. Each kind has its own secret, so a
// token issued for one kind never verifies as the other.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewCodec(cfg CodecConfig) *Codec {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Codec{
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           now,
	}
}

func (c *Codec) IssueAccessToken(userID string) (string, error) {
	return c.issue(userID, AccessToken)
}

func (c *Codec) IssueRefreshToken(userID string) (string, error) {
	return c.issue(userID, RefreshToken)
}

func (c *Codec) params(kind TokenKind) ([]byte, time.Duration, error) {
	switch kind {
	case AccessToken:
		return c.accessSecret, c.accessTTL, nil
	case RefreshToken:
		return c.refreshSecret, c.refreshTTL, nil
	default:
		return nil, 0, fmt.Errorf("auth: unknown token kind %v", kind)
	}
}

func (c *Codec) issue(userID string, kind TokenKind) (string, error) {
	secret, ttl, err := c.params(kind)
	if err != nil {
		return "", err
	}
	if userID == "" {
		return "", errors.New("auth: empty user id")
	}

	// NumericDate is encoded in seconds
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now.Truncate(time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl).Truncate(time.Second)),
		ID:        uuid.NewString(),
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Verify checks the token's signature with the secret of kind and its expiry
// against the codec clock. A token whose expiry equals now is expired. The
// returned ExpiresAt is issue time plus TTL truncated to the second, so with
// a sub-second clock it can precede it by up to one second.
//
// Errors are common.ErrTokenExpired or common.ErrInvalidSignature.
func (c *Codec) Verify(token string, kind TokenKind) (*Claims, error) {
	secret, _, err := c.params(kind)
	if err != nil {
		return nil, err
	}

	rc := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(token, rc, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidSignature
	}

	if rc.Subject == "" {
		return nil, common.ErrInvalidSignature
	}

	exp := rc.ExpiresAt.Time
	if !exp.After(c.now()) {
		return nil, common.ErrTokenExpired
	}

	return &Claims{UserID: rc.Subject, ExpiresAt: exp}, nil
}
