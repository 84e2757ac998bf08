package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"orgguard.dev/internal/access"
)

const (
	defaultIssuer   = "orgguard"
	defaultTokenTTL = 12 * time.Hour
	clockSkew       = 5 * time.Second
)

// ErrInvalidToken indicates the token failed validation.
var ErrInvalidToken = errors.New("invalid token")

// Claims represents JWT claims used across the service. Role and tenant claims are
// informational; authorization always re-reads the user.
type Claims struct {
	RoleKey    string       `json:"role_key"`
	Scope      access.Scope `json:"scope"`
	OrgID      string       `json:"org_id,omitempty"`
	PlatformID string       `json:"platform_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

type TokenOption func(*TokenIssuer)

func WithIssuer(issuer string) TokenOption {
	return func(t *TokenIssuer) {
		if s := strings.TrimSpace(issuer); s != "" {
			t.issuer = s
		}
	}
}

func WithTTL(ttl time.Duration) TokenOption {
	return func(t *TokenIssuer) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(t *TokenIssuer) {
		if fn != nil {
			t.now = fn
		}
	}
}

func NewTokenIssuer(secret string, opts ...TokenOption) (*TokenIssuer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth secret is not configured")
	}
	t := &TokenIssuer{secret: []byte(secret), issuer: defaultIssuer, ttl: defaultTokenTTL, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Issue signs a token for actor and returns it with its expiry.
func (t *TokenIssuer) Issue(actor access.Actor) (string, time.Time, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return "", time.Time{}, errors.New("actor id is required")
	}
	now := t.now().UTC()
	exp := now.Add(t.ttl)
	claims := Claims{
		RoleKey:    actor.RoleKey,
		Scope:      actor.RoleScope,
		OrgID:      actor.OrgID,
		PlatformID: actor.PlatformID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies the token signature and required claims.
func (t *TokenIssuer) Parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
