// Package jwt signs and verifies the two token classes used for sessions:
// short-lived access tokens and long-lived refresh tokens carrying the
// user's revocation version. Each class has its own HMAC secret.
package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iudanet/gophauth/internal/models"
)

// Token classes, stored in the "typ" claim
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Verification errors. Callers must treat all of them the same way
// towards clients; the distinction exists for logs and tests only.
var (
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
	ErrMalformed        = errors.New("malformed token")
)

// Config holds codec secrets and lifetimes
type Config struct {
	Issuer        string
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// AccessClaims is the claim set of an access token
type AccessClaims struct {
	UserID string `json:"uid"`
	Type   string `json:"typ"`
	jwtlib.RegisteredClaims
}

// RefreshClaims is the claim set of a refresh token
type RefreshClaims struct {
	UserID       string `json:"uid"`
	Type         string `json:"typ"`
	TokenVersion int    `json:"tv"`
	jwtlib.RegisteredClaims
}

// Codec provides token generation and validation
type Codec struct {
	now func() time.Time
	cfg Config
}

// Option configures a Codec
type Option func(*Codec)

// WithClock overrides the time source, used by tests
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec creates a codec. Both secrets are required and must differ so a
// leaked access secret cannot mint refresh tokens.
func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 {
		return nil, fmt.Errorf("access token secret is required")
	}
	if len(cfg.RefreshSecret) == 0 {
		return nil, fmt.Errorf("refresh token secret is required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, fmt.Errorf("access and refresh token secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("token TTLs must be positive")
	}

	c := &Codec{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// RefreshTTL returns the lifetime of refresh tokens
func (c *Codec) RefreshTTL() time.Duration {
	return c.cfg.RefreshTTL
}

// SignAccess creates an access token for user
func (c *Codec) SignAccess(user *models.User) (string, error) {
	claims := AccessClaims{
		UserID:           user.ID,
		Type:             TypeAccess,
		RegisteredClaims: c.registered(c.cfg.AccessTTL),
	}

	return c.sign(claims, c.cfg.AccessSecret)
}

// SignRefresh creates a refresh token for user bound to its current TokenVersion
func (c *Codec) SignRefresh(user *models.User) (string, error) {
	claims := RefreshClaims{
		UserID:           user.ID,
		TokenVersion:     user.TokenVersion,
		Type:             TypeRefresh,
		RegisteredClaims: c.registered(c.cfg.RefreshTTL),
	}

	return c.sign(claims, c.cfg.RefreshSecret)
}

// VerifyAccess validates an access token and returns its claims
func (c *Codec) VerifyAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(token, claims, c.cfg.AccessSecret); err != nil {
		return nil, err
	}
	if claims.Type != TypeAccess || claims.UserID == "" {
		return nil, ErrMalformed
	}

	return claims, nil
}

// VerifyRefresh validates a refresh token and returns its claims
func (c *Codec) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.parse(token, claims, c.cfg.RefreshSecret); err != nil {
		return nil, err
	}
	if claims.Type != TypeRefresh || claims.UserID == "" {
		return nil, ErrMalformed
	}

	return claims, nil
}

func (c *Codec) registered(ttl time.Duration) jwtlib.RegisteredClaims {
	now := c.now()

	return jwtlib.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    c.cfg.Issuer,
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
	}
}

func (c *Codec) sign(claims jwtlib.Claims, secret []byte) (string, error) {
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

func (c *Codec) parse(tokenString string, claims jwtlib.Claims, secret []byte) error {
	if tokenString == "" {
		return ErrMalformed
	}

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithIssuedAt(),
		jwtlib.WithTimeFunc(c.now),
	}
	if c.cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(c.cfg.Issuer))
	}

	_, err := jwtlib.ParseWithClaims(tokenString, claims, func(token *jwtlib.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, opts...)

	return classify(err)
}

// classify collapses library errors into the three codec errors
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid), errors.Is(err, jwtlib.ErrTokenUnverifiable):
		return ErrInvalidSignature
	default:
		return ErrMalformed
	}
}
