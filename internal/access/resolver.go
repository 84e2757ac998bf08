package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// PermissionReader is the read side needed for resolution.
type PermissionReader interface {
	GetRoleModuleAccess(ctx context.Context, roleID, moduleID string) (RoleModuleAccess, error)
	GetUserModuleOverride(ctx context.Context, userID, moduleID string) (UserModuleOverride, error)
}

// Resolver merges role defaults with user overrides. It never writes.
type Resolver struct {
	modules ModuleRegistry
	perms   PermissionReader
}

func NewResolver(modules ModuleRegistry, perms PermissionReader) (*Resolver, error) {
	if modules == nil || perms == nil {
		return nil, errors.New("resolver: module registry and permission store are required")
	}
	return &Resolver{modules: modules, perms: perms}, nil
}

// Resolve returns the effective permissions of userID (bound to roleID) on moduleKey.
// Missing role defaults resolve to no access; each set override flag replaces the
// role value for that action.
func (r *Resolver) Resolve(ctx context.Context, userID, roleID, moduleKey string) (Permissions, error) {
	module, err := r.module(ctx, moduleKey)
	if err != nil {
		return Permissions{}, err
	}
	return r.resolveModule(ctx, userID, roleID, module)
}

// ResolveAll resolves every registered module, keyed by module key.
func (r *Resolver) ResolveAll(ctx context.Context, userID, roleID string) (map[string]Permissions, error) {
	modules, err := r.modules.ListModules(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Permissions, len(modules))
	for _, m := range modules {
		p, err := r.resolveModule(ctx, userID, roleID, m)
		if err != nil {
			return nil, err
		}
		out[m.Key] = p
	}
	return out, nil
}

func (r *Resolver) module(ctx context.Context, key string) (Module, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Module{}, fmt.Errorf("%w: module key is required", ErrUnknownModule)
	}
	m, err := r.modules.GetModuleByKey(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return Module{}, fmt.Errorf("%w: %s", ErrUnknownModule, key)
	}
	if err != nil {
		return Module{}, err
	}
	return m, nil
}

func (r *Resolver) resolveModule(ctx context.Context, userID, roleID string, m Module) (Permissions, error) {
	var base Permissions
	rma, err := r.perms.GetRoleModuleAccess(ctx, roleID, m.ID)
	switch {
	case err == nil:
		base = rma.Permissions
	case errors.Is(err, ErrNotFound):
	default:
		return Permissions{}, err
	}

	o, err := r.perms.GetUserModuleOverride(ctx, userID, m.ID)
	switch {
	case err == nil:
		return o.Flags.Apply(base), nil
	case errors.Is(err, ErrNotFound):
		return base, nil
	default:
		return Permissions{}, err
	}
}
