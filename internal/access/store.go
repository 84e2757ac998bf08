package access

import "context"

// Directory holds platforms, organizations, users and roles.
// Lookups return ErrNotFound when nothing matches.
type Directory interface {
	GetOrganization(ctx context.Context, id string) (Organization, error)
	ListOrganizations(ctx context.Context, platformID string) ([]Organization, error)
	CreateOrganization(ctx context.Context, org Organization) (Organization, error)

	GetUser(ctx context.Context, id string) (User, error)
	// GetUserInOrg only matches users of orgID; other tenants' users are ErrNotFound.
	GetUserInOrg(ctx context.Context, orgID, userID string) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	CreateUser(ctx context.Context, u User) (User, error)

	GetRole(ctx context.Context, id string) (Role, error)
	GetRoleByKey(ctx context.Context, key string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
}

// ModuleRegistry exposes the fixed module catalog.
type ModuleRegistry interface {
	GetModuleByKey(ctx context.Context, key string) (Module, error)
	ListModules(ctx context.Context) ([]Module, error)
}

// PermissionStore keeps role defaults and per-user overrides.
type PermissionStore interface {
	// GetRoleModuleAccess returns ErrNotFound when no default row exists.
	GetRoleModuleAccess(ctx context.Context, roleID, moduleID string) (RoleModuleAccess, error)
	// UpsertRoleModuleAccess replaces all four flags; last write wins.
	UpsertRoleModuleAccess(ctx context.Context, rma RoleModuleAccess) (RoleModuleAccess, error)

	// GetUserModuleOverride returns ErrNotFound when no override row exists.
	GetUserModuleOverride(ctx context.Context, userID, moduleID string) (UserModuleOverride, error)
	// MergeUserModuleOverride writes only the set flags of o, creating the row if needed,
	// and returns the stored row.
	MergeUserModuleOverride(ctx context.Context, o UserModuleOverride) (UserModuleOverride, error)
	ListUserModuleOverrides(ctx context.Context, userID string) ([]UserModuleOverride, error)
}

// Provisioner creates setup data.
type Provisioner interface {
	CreatePlatform(ctx context.Context, p Platform) (Platform, error)
	GetPlatform(ctx context.Context, id string) (Platform, error)
	UpsertRole(ctx context.Context, r Role) (Role, error)
	UpsertModule(ctx context.Context, m Module) (Module, error)
}

// Store aggregates every persistence concern of the access subsystem.
type Store interface {
	Directory
	ModuleRegistry
	PermissionStore
	Provisioner

	// WithinTx runs fn against a transactional view of the store. A non-nil error
	// from fn rolls back every write made through that view.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
