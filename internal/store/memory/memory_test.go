package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"orgguard.dev/internal/access"
	"orgguard.dev/internal/auth"
	"orgguard.dev/internal/seed"
	"orgguard.dev/internal/store/memory"
)

func TestCreateUserEnforcesRoleScope(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	res, err := seed.Run(ctx, store, auth.BcryptHasher{Cost: bcrypt.MinCost}, seed.Options{Demo: true})
	require.NoError(t, err)

	superadmin, err := store.GetRoleByKey(ctx, access.RoleSuperadmin)
	require.NoError(t, err)
	employee, err := store.GetRoleByKey(ctx, access.RoleOrgEmployee)
	require.NoError(t, err)
	org := res.Organizations[0]

	_, err = store.CreateUser(ctx, access.User{
		PlatformID: res.Platform.ID, OrgID: org.ID, RoleID: superadmin.ID,
		Email: "platform-in-org@demo.com", FullName: "X", PasswordHash: "h", IsActive: true,
	})
	assert.ErrorIs(t, err, access.ErrInvalidInput)

	_, err = store.CreateUser(ctx, access.User{
		PlatformID: res.Platform.ID, RoleID: employee.ID,
		Email: "orphan@demo.com", FullName: "Y", PasswordHash: "h", IsActive: true,
	})
	assert.ErrorIs(t, err, access.ErrInvalidInput)

	_, err = store.FindUserByEmail(ctx, "orphan@demo.com")
	assert.ErrorIs(t, err, access.ErrNotFound, "rejected user must not be stored")

	u, err := store.CreateUser(ctx, access.User{
		PlatformID: res.Platform.ID, OrgID: org.ID, RoleID: employee.ID,
		Email: "fresh@demo.com", FullName: "Z", PasswordHash: "h", IsActive: true,
	})
	require.NoError(t, err)

	// an org member cannot be rebound to a platform role
	assert.ErrorIs(t, store.SetUserRole(ctx, u.ID, superadmin.ID), access.ErrInvalidInput)
}
