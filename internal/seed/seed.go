// Package seed provisions the role catalog, module registry and role defaults, and
// optionally a demo tenant set.
package seed

import (
	"context"
	"errors"
	"fmt"

	"orgguard.dev/internal/access"
)

const DefaultPassword = "Password@123"

// Options controls what Run provisions.
type Options struct {
	PlatformName string
	// Demo adds two organizations with an admin, a manager and three employees each.
	Demo     bool
	Password string
}

// Result lists what was provisioned, users keyed by email.
type Result struct {
	Platform      access.Platform
	Organizations []access.Organization
	Users         map[string]access.User
}

var (
	managerWritable  = set(access.ModuleAttendance, access.ModuleLeaveManagement, access.ModulePerformance, access.ModuleRecruitment, access.ModuleEmployeeManagement)
	employeeReadable = set(access.ModuleAttendance, access.ModuleLeaveManagement, access.ModuleEmployeeManagement)
)

// RoleDefaults returns the default permissions of an org role on a module.
// Platform roles have no module defaults.
func RoleDefaults(roleKey, moduleKey string) (access.Permissions, bool) {
	switch roleKey {
	case access.RoleOrgAdmin:
		return access.FullAccess(), true
	case access.RoleOrgManager:
		w := managerWritable[moduleKey]
		return access.Permissions{Read: true, Write: w, Update: w}, true
	case access.RoleOrgEmployee:
		return access.Permissions{Read: employeeReadable[moduleKey]}, true
	}
	return access.Permissions{}, false
}

// Run provisions everything in a single transaction. Roles, modules and defaults are
// upserted; the platform and users are created only when the superadmin does not exist yet.
func Run(ctx context.Context, store access.Store, hasher access.PasswordHasher, opts Options) (Result, error) {
	if store == nil || hasher == nil {
		return Result{}, errors.New("seed: store and hasher are required")
	}
	if opts.PlatformName == "" {
		opts.PlatformName = "HRMS Demo Platform"
	}
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	hash, err := hasher.Hash(opts.Password)
	if err != nil {
		return Result{}, fmt.Errorf("seed: hash password: %w", err)
	}

	res := Result{Users: map[string]access.User{}}
	err = store.WithinTx(ctx, func(tx access.Store) error {
		roles := map[string]access.Role{}
		for _, r := range access.DefaultRoles {
			stored, err := tx.UpsertRole(ctx, r)
			if err != nil {
				return fmt.Errorf("upsert role %s: %w", r.Key, err)
			}
			roles[r.Key] = stored
		}
		modules := map[string]access.Module{}
		for _, m := range access.DefaultModules {
			stored, err := tx.UpsertModule(ctx, m)
			if err != nil {
				return fmt.Errorf("upsert module %s: %w", m.Key, err)
			}
			modules[m.Key] = stored
		}
		for _, r := range roles {
			for _, m := range modules {
				perms, ok := RoleDefaults(r.Key, m.Key)
				if !ok {
					continue
				}
				if _, err := tx.UpsertRoleModuleAccess(ctx, access.RoleModuleAccess{RoleID: r.ID, ModuleID: m.ID, Permissions: perms}); err != nil {
					return fmt.Errorf("role defaults %s/%s: %w", r.Key, m.Key, err)
				}
			}
		}

		if existing, err := tx.FindUserByEmail(ctx, "superadmin@demo.com"); err == nil {
			p, err := tx.GetPlatform(ctx, existing.PlatformID)
			if err != nil {
				return err
			}
			res.Platform = p
			return nil
		} else if !errors.Is(err, access.ErrNotFound) {
			return err
		}

		platform, err := tx.CreatePlatform(ctx, access.Platform{Name: opts.PlatformName})
		if err != nil {
			return err
		}
		res.Platform = platform

		platformUsers := []struct{ email, name, role string }{
			{"superadmin@demo.com", "Super Admin", access.RoleSuperadmin},
			{"superadminteam@demo.com", "Super Admin Team", access.RoleSuperadminTeam},
		}
		for _, pu := range platformUsers {
			u, err := tx.CreateUser(ctx, access.User{
				PlatformID: platform.ID, RoleID: roles[pu.role].ID,
				Email: pu.email, FullName: pu.name, PasswordHash: hash, IsActive: true,
			})
			if err != nil {
				return fmt.Errorf("create %s: %w", pu.email, err)
			}
			res.Users[u.Email] = u
		}

		if !opts.Demo {
			return nil
		}
		for _, suffix := range []string{"A", "B"} {
			org, err := tx.CreateOrganization(ctx, access.Organization{PlatformID: platform.ID, Name: "Org " + suffix})
			if err != nil {
				return err
			}
			res.Organizations = append(res.Organizations, org)
			if err := seedOrg(ctx, tx, org, suffix, roles, modules, hash, res.Users); err != nil {
				return fmt.Errorf("seed org %s: %w", org.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func seedOrg(ctx context.Context, tx access.Store, org access.Organization, suffix string, roles map[string]access.Role, modules map[string]access.Module, hash string, out map[string]access.User) error {
	members := []struct{ prefix, name, role string }{
		{"orgadmin", "Org Admin", access.RoleOrgAdmin},
		{"orgmanager", "Org Manager", access.RoleOrgManager},
		{"orgemployee1", "Org Employee 1", access.RoleOrgEmployee},
		{"orgemployee2", "Org Employee 2", access.RoleOrgEmployee},
		{"orgemployee3", "Org Employee 3", access.RoleOrgEmployee},
	}
	for _, m := range members {
		u, err := tx.CreateUser(ctx, access.User{
			PlatformID:   org.PlatformID,
			OrgID:        org.ID,
			RoleID:       roles[m.role].ID,
			Email:        demoEmail(m.prefix, suffix),
			FullName:     m.name + " " + suffix,
			PasswordHash: hash,
			IsActive:     true,
		})
		if err != nil {
			return err
		}
		out[u.Email] = u
	}

	overrides := []struct {
		prefix string
		module string
		flags  access.OverrideFlags
	}{
		// reports fully specified: read only
		{"orgemployee1", access.ModuleReports, access.OverrideFlags{Read: access.True, Write: access.False, Update: access.False, Delete: access.False}},
		{"orgemployee2", access.ModulePayroll, access.OverrideFlags{Write: access.True}},
		{"orgemployee3", access.ModuleAttendance, access.OverrideFlags{Read: access.False}},
	}
	for _, o := range overrides {
		u := out[demoEmail(o.prefix, suffix)]
		if _, err := tx.MergeUserModuleOverride(ctx, access.UserModuleOverride{UserID: u.ID, ModuleID: modules[o.module].ID, Flags: o.flags}); err != nil {
			return err
		}
	}
	return nil
}

// demoEmail builds the address of a demo org member, e.g. orgadmina@demo.com.
func demoEmail(prefix, orgSuffix string) string {
	return access.NormalizeEmail(prefix + orgSuffix + "@demo.com")
}

func set(keys ...string) map[string]bool {
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out
}
