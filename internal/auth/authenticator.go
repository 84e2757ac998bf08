package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"orgguard.dev/internal/access"
)

// Directory is the identity lookup needed for login and token authentication.
type Directory interface {
	GetUser(ctx context.Context, id string) (access.User, error)
	FindUserByEmail(ctx context.Context, email string) (access.User, error)
	GetRole(ctx context.Context, id string) (access.Role, error)
}

// Session is the result of a successful login.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      access.User `json:"user"`
	Role      access.Role `json:"role"`
}

// Authenticator verifies credentials and bearer tokens against the live directory.
type Authenticator struct {
	dir    Directory
	hasher access.PasswordHasher
	tokens *TokenIssuer
}

func NewAuthenticator(dir Directory, hasher access.PasswordHasher, tokens *TokenIssuer) (*Authenticator, error) {
	if dir == nil || hasher == nil || tokens == nil {
		return nil, errors.New("auth: directory, hasher and token issuer are required")
	}
	return &Authenticator{dir: dir, hasher: hasher, tokens: tokens}, nil
}

var errBadCredentials = fmt.Errorf("%w: invalid email or password", access.ErrUnauthenticated)

// Login checks email and password. Unknown email, wrong password and inactive users all
// yield the same error.
func (a *Authenticator) Login(ctx context.Context, email, password string) (Session, error) {
	email = access.NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, fmt.Errorf("%w: email and password are required", access.ErrInvalidInput)
	}
	user, err := a.dir.FindUserByEmail(ctx, email)
	if errors.Is(err, access.ErrNotFound) {
		return Session{}, errBadCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !user.IsActive {
		return Session{}, errBadCredentials
	}
	if err := a.hasher.Compare(user.PasswordHash, password); err != nil {
		return Session{}, errBadCredentials
	}
	role, err := a.dir.GetRole(ctx, user.RoleID)
	if err != nil {
		return Session{}, err
	}
	token, exp, err := a.tokens.Issue(access.ActorFor(user, role))
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, User: user, Role: role}, nil
}

// Authenticate validates a bearer token and returns the actor as currently stored.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (access.Actor, error) {
	claims, err := a.tokens.Parse(strings.TrimSpace(token))
	if err != nil {
		return access.Actor{}, fmt.Errorf("%w: %v", access.ErrUnauthenticated, err)
	}
	user, err := a.dir.GetUser(ctx, claims.Subject)
	if errors.Is(err, access.ErrNotFound) {
		return access.Actor{}, fmt.Errorf("%w: user not found", access.ErrUnauthenticated)
	}
	if err != nil {
		return access.Actor{}, err
	}
	if !user.IsActive {
		return access.Actor{}, fmt.Errorf("%w: user is inactive", access.ErrUnauthenticated)
	}
	role, err := a.dir.GetRole(ctx, user.RoleID)
	if err != nil {
		return access.Actor{}, err
	}
	return access.ActorFor(user, role), nil
}
