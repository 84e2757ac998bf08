package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// OverrideInput is one entry of an override batch. Unset flags are left untouched.
type OverrideInput struct {
	ModuleKey string
	Flags     OverrideFlags
}

// RoleAccessInput replaces the default permissions of a role on one module.
type RoleAccessInput struct {
	ModuleKey   string
	Permissions Permissions
}

// PasswordHasher is the one-way hash used for stored credentials.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// Admin runs tenant-scoped and platform-scoped administration.
type Admin struct {
	store  Store
	hasher PasswordHasher
}

func NewAdmin(store Store, hasher PasswordHasher) (*Admin, error) {
	if store == nil {
		return nil, errors.New("admin: store is required")
	}
	if hasher == nil {
		return nil, errors.New("admin: password hasher is required")
	}
	return &Admin{store: store, hasher: hasher}, nil
}

// SetOverrides merges a batch of overrides for a user of the admin's own organization.
// The batch is all-or-nothing: an unknown module key aborts it before any write.
func (a *Admin) SetOverrides(ctx context.Context, admin Actor, targetUserID string, inputs []OverrideInput) ([]UserModuleOverride, error) {
	if err := requireOrgAdmin(admin); err != nil {
		return nil, err
	}
	targetUserID = strings.TrimSpace(targetUserID)
	if targetUserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: at least one override is required", ErrInvalidInput)
	}

	var out []UserModuleOverride
	err := a.store.WithinTx(ctx, func(tx Store) error {
		target, err := tx.GetUserInOrg(ctx, admin.OrgID, targetUserID)
		if err != nil {
			return err
		}
		modules, err := lookupModules(ctx, tx, inputs, func(in OverrideInput) string { return in.ModuleKey })
		if err != nil {
			return err
		}
		out = make([]UserModuleOverride, 0, len(inputs))
		for i, in := range inputs {
			stored, err := tx.MergeUserModuleOverride(ctx, UserModuleOverride{
				UserID:    target.ID,
				ModuleID:  modules[i].ID,
				ModuleKey: modules[i].Key,
				Flags:     in.Flags,
			})
			if err != nil {
				return err
			}
			out = append(out, stored)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListOverrides returns the stored overrides of a user of the admin's organization.
func (a *Admin) ListOverrides(ctx context.Context, admin Actor, targetUserID string) ([]UserModuleOverride, error) {
	if err := requireOrgAdmin(admin); err != nil {
		return nil, err
	}
	target, err := a.store.GetUserInOrg(ctx, admin.OrgID, strings.TrimSpace(targetUserID))
	if err != nil {
		return nil, err
	}
	return a.store.ListUserModuleOverrides(ctx, target.ID)
}

// SetRoleDefaults replaces role defaults for the given modules. Platform superadmin only.
func (a *Admin) SetRoleDefaults(ctx context.Context, actor Actor, roleKey string, inputs []RoleAccessInput) ([]RoleModuleAccess, error) {
	if !actor.IsSuperadmin() {
		return nil, fmt.Errorf("%w: superadmin role required", ErrForbidden)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: at least one module entry is required", ErrInvalidInput)
	}
	var out []RoleModuleAccess
	err := a.store.WithinTx(ctx, func(tx Store) error {
		role, err := tx.GetRoleByKey(ctx, strings.TrimSpace(roleKey))
		if err != nil {
			return err
		}
		modules, err := lookupModules(ctx, tx, inputs, func(in RoleAccessInput) string { return in.ModuleKey })
		if err != nil {
			return err
		}
		out = make([]RoleModuleAccess, 0, len(inputs))
		for i, in := range inputs {
			stored, err := tx.UpsertRoleModuleAccess(ctx, RoleModuleAccess{
				RoleID:      role.ID,
				ModuleID:    modules[i].ID,
				ModuleKey:   modules[i].Key,
				Permissions: in.Permissions,
			})
			if err != nil {
				return err
			}
			out = append(out, stored)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func requireOrgAdmin(actor Actor) error {
	if actor.RoleScope != ScopeOrg || actor.RoleKey != RoleOrgAdmin {
		return fmt.Errorf("%w: org_admin role required", ErrForbidden)
	}
	if actor.OrgID == "" {
		return ErrMissingTenantContext
	}
	return nil
}

// lookupModules resolves every key up front so a bad key fails the batch before writes.
func lookupModules[T any](ctx context.Context, reg ModuleRegistry, inputs []T, key func(T) string) ([]Module, error) {
	modules := make([]Module, len(inputs))
	for i, in := range inputs {
		k := strings.TrimSpace(key(in))
		if k == "" {
			return nil, fmt.Errorf("%w: module key is required", ErrUnknownModule)
		}
		m, err := reg.GetModuleByKey(ctx, k)
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownModule, k)
		}
		if err != nil {
			return nil, err
		}
		modules[i] = m
	}
	return modules, nil
}
