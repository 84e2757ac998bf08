package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"orgguard.dev/internal/access"
	"orgguard.dev/internal/seed"
	"orgguard.dev/internal/store/memory"
)

func newIssuer(t *testing.T, opts ...TokenOption) *TokenIssuer {
	t.Helper()
	iss, err := NewTokenIssuer("test-secret", opts...)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	return iss
}

func TestTokenIssueAndParse(t *testing.T) {
	iss := newIssuer(t, WithIssuer("test-issuer"), WithTTL(30*time.Minute))
	actor := access.Actor{ID: "user-42", RoleKey: access.RoleOrgManager, RoleScope: access.ScopeOrg, OrgID: "org-a", PlatformID: "plat"}

	token, exp, err := iss.Issue(actor)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expected future expiration, got %v", exp)
	}
	claims, err := iss.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "user-42" || claims.Issuer != "test-issuer" {
		t.Fatalf("unexpected registered claims: %+v", claims.RegisteredClaims)
	}
	if claims.RoleKey != access.RoleOrgManager || claims.Scope != access.ScopeOrg || claims.OrgID != "org-a" || claims.PlatformID != "plat" {
		t.Fatalf("unexpected custom claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("expected jti")
	}
}

func TestTokenRejectsTamperingAndExpiry(t *testing.T) {
	now := time.Now()
	iss := newIssuer(t, WithTTL(time.Minute), WithClock(func() time.Time { return now }))
	token, _, err := iss.Issue(access.Actor{ID: "u1"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other := newIssuer(t)
	other.secret = []byte("another-secret")
	if _, err := other.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}

	later := newIssuer(t, WithClock(func() time.Time { return now.Add(2 * time.Minute) }))
	if _, err := later.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}

	if _, err := iss.Parse("  "); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1", "iss": defaultIssuer, "exp": now.Add(time.Hour).Unix()})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := iss.Parse(unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected alg none to be rejected, got %v", err)
	}
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	if _, err := NewTokenIssuer(" "); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := h.Hash("Password@123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if err := h.Compare(hash, "Password@123"); err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if err := h.Compare(hash, "wrong"); err == nil {
		t.Fatal("expected mismatch")
	}
	if _, err := h.Hash(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func newAuthenticator(t *testing.T) (*Authenticator, *memory.Store, seed.Result) {
	t.Helper()
	store := memory.New()
	hasher := BcryptHasher{Cost: bcrypt.MinCost}
	res, err := seed.Run(context.Background(), store, hasher, seed.Options{Demo: true})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	a, err := NewAuthenticator(store, hasher, newIssuer(t))
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	return a, store, res
}

func TestLoginAndAuthenticate(t *testing.T) {
	a, _, res := newAuthenticator(t)
	ctx := context.Background()

	sess, err := a.Login(ctx, " OrgManagerA@demo.com ", seed.DefaultPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.Role.Key != access.RoleOrgManager {
		t.Fatalf("unexpected role %s", sess.Role.Key)
	}
	actor, err := a.Authenticate(ctx, sess.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	want := res.Users["orgmanagera@demo.com"]
	if actor.ID != want.ID || actor.OrgID != want.OrgID || actor.RoleScope != access.ScopeOrg {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	a, store, res := newAuthenticator(t)
	ctx := context.Background()

	if err := store.SetUserActive(ctx, res.Users["orgemployee1a@demo.com"].ID, false); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}
	cases := map[string][2]string{
		"unknown email":  {"nobody@demo.com", seed.DefaultPassword},
		"wrong password": {"orgadmina@demo.com", "nope"},
		"inactive user":  {"orgemployee1a@demo.com", seed.DefaultPassword},
	}
	for name, c := range cases {
		_, err := a.Login(ctx, c[0], c[1])
		if !errors.Is(err, access.ErrUnauthenticated) {
			t.Fatalf("%s: expected ErrUnauthenticated, got %v", name, err)
		}
		if !strings.Contains(err.Error(), "invalid email or password") {
			t.Fatalf("%s: unexpected message %q", name, err)
		}
	}
	if _, err := a.Login(ctx, "", ""); !errors.Is(err, access.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAuthenticateSeesLiveUser(t *testing.T) {
	a, store, res := newAuthenticator(t)
	ctx := context.Background()
	sess, err := a.Login(ctx, "orgemployee2b@demo.com", seed.DefaultPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	manager, err := store.GetRoleByKey(ctx, access.RoleOrgManager)
	if err != nil {
		t.Fatalf("GetRoleByKey: %v", err)
	}
	uid := res.Users["orgemployee2b@demo.com"].ID
	if err := store.SetUserRole(ctx, uid, manager.ID); err != nil {
		t.Fatalf("SetUserRole: %v", err)
	}
	actor, err := a.Authenticate(ctx, sess.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if actor.RoleKey != access.RoleOrgManager {
		t.Fatalf("expected live role org_manager, got %s", actor.RoleKey)
	}

	if err := store.SetUserActive(ctx, uid, false); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}
	if _, err := a.Authenticate(ctx, sess.Token); !errors.Is(err, access.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for inactive user, got %v", err)
	}
	if _, err := a.Authenticate(ctx, "garbage"); !errors.Is(err, access.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for garbage token, got %v", err)
	}
}
