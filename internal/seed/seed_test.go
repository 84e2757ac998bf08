package seed

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"orgguard.dev/internal/access"
	"orgguard.dev/internal/auth"
	"orgguard.dev/internal/store/memory"
)

func TestRunDemoProvisionsTenants(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	res, err := Run(ctx, store, auth.BcryptHasher{Cost: bcrypt.MinCost}, Options{Demo: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Organizations) != 2 || len(res.Users) != 12 {
		t.Fatalf("expected 2 orgs and 12 users, got %d and %d", len(res.Organizations), len(res.Users))
	}

	resolver, err := access.NewResolver(store, store)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	cases := []struct {
		email  string
		module string
		want   access.Permissions
	}{
		{"orgadmina@demo.com", access.ModuleSettings, access.FullAccess()},
		{"orgmanagerb@demo.com", access.ModuleAttendance, access.Permissions{Read: true, Write: true, Update: true}},
		{"orgmanagerb@demo.com", access.ModulePayroll, access.Permissions{Read: true}},
		{"orgemployee2a@demo.com", access.ModulePayroll, access.Permissions{Write: true}},
		{"orgemployee3b@demo.com", access.ModuleAttendance, access.Permissions{}},
		{"orgemployee1a@demo.com", access.ModuleReports, access.Permissions{Read: true}},
	}
	for _, tc := range cases {
		u := res.Users[tc.email]
		got, err := resolver.Resolve(ctx, u.ID, u.RoleID, tc.module)
		if err != nil {
			t.Fatalf("Resolve %s/%s: %v", tc.email, tc.module, err)
		}
		if got != tc.want {
			t.Fatalf("%s on %s: got %+v want %+v", tc.email, tc.module, got, tc.want)
		}
	}
}

func TestRunIsRepeatable(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}
	first, err := Run(ctx, store, hasher, Options{Demo: true})
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := Run(ctx, store, hasher, Options{Demo: true})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.Platform.ID != first.Platform.ID {
		t.Fatalf("platform changed on re-run: %s != %s", second.Platform.ID, first.Platform.ID)
	}
	if len(second.Users) != 0 {
		t.Fatalf("re-run should not create users, got %d", len(second.Users))
	}
	orgs, err := store.ListOrganizations(ctx, first.Platform.ID)
	if err != nil {
		t.Fatalf("ListOrganizations: %v", err)
	}
	if len(orgs) != 2 {
		t.Fatalf("expected 2 organizations after re-run, got %d", len(orgs))
	}
}

func TestRoleDefaultsSkipPlatformRoles(t *testing.T) {
	if _, ok := RoleDefaults(access.RoleSuperadmin, access.ModuleReports); ok {
		t.Fatal("superadmin must not carry module defaults")
	}
	if p, ok := RoleDefaults(access.RoleOrgEmployee, access.ModuleSettings); !ok || p != (access.Permissions{}) {
		t.Fatalf("employee settings default: %+v %v", p, ok)
	}
}

func TestRunRequiresDependencies(t *testing.T) {
	if _, err := Run(context.Background(), nil, nil, Options{}); err == nil {
		t.Fatal("expected error without store and hasher")
	}
}
