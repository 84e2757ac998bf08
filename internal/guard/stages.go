package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"orgguard.dev/internal/access"
)

// check carries state between stages of a single Check call.
type check struct {
	actor     access.Actor
	moduleKey string
	action    access.Action
	roleID    string
	perms     access.Permissions
}

type stage struct {
	name string
	run  func(ctx context.Context, c *check) error
}

func checkAction(_ context.Context, c *check) error {
	a, err := access.ParseAction(string(c.action))
	if err != nil {
		return err
	}
	c.action = a
	return nil
}

// Only organization users are subject to module permissions.
func checkScope(_ context.Context, c *check) error {
	if c.actor.RoleScope != access.ScopeOrg {
		return fmt.Errorf("%w: role %s has scope %q", access.ErrScopeViolation, c.actor.RoleKey, c.actor.RoleScope)
	}
	return nil
}

func checkTenant(_ context.Context, c *check) error {
	if strings.TrimSpace(c.actor.OrgID) == "" {
		return access.ErrMissingTenantContext
	}
	return nil
}

// loadBinding re-reads the user so role changes apply without a new login.
func (g *Guard) loadBinding(ctx context.Context, c *check) error {
	user, err := g.dir.GetUser(ctx, c.actor.ID)
	if errors.Is(err, access.ErrNotFound) {
		return fmt.Errorf("%w: user no longer exists", access.ErrUnauthenticated)
	}
	if err != nil {
		return err
	}
	if !user.IsActive {
		return fmt.Errorf("%w: user is inactive", access.ErrUnauthenticated)
	}
	if user.OrgID != c.actor.OrgID {
		return access.ErrMissingTenantContext
	}
	role, err := g.dir.GetRole(ctx, user.RoleID)
	if err != nil {
		return err
	}
	if role.Scope != access.ScopeOrg {
		return fmt.Errorf("%w: role %s has scope %q", access.ErrScopeViolation, role.Key, role.Scope)
	}
	c.roleID = role.ID
	return nil
}

func (g *Guard) resolve(ctx context.Context, c *check) error {
	perms, err := g.resolver.Resolve(ctx, c.actor.ID, c.roleID, c.moduleKey)
	if err != nil {
		return err
	}
	c.perms = perms
	return nil
}

func checkGate(_ context.Context, c *check) error {
	if !c.perms.Allows(c.action) {
		return fmt.Errorf("%w: missing %s permission for module %s", access.ErrAccessDenied, strings.ToUpper(string(c.action)), c.moduleKey)
	}
	return nil
}
