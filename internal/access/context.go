package access

import "context"

type actorContextKey struct{}
type permissionsContextKey struct{}

// ContextWithActor attaches the authenticated actor to the context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, &actor)
}

// ActorFromContext extracts the authenticated actor from the context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	v, ok := ctx.Value(actorContextKey{}).(*Actor)
	if !ok || v == nil {
		return Actor{}, false
	}
	return *v, true
}

// ContextWithPermissions stores the effective permissions granted by the guard.
func ContextWithPermissions(ctx context.Context, perms Permissions) context.Context {
	return context.WithValue(ctx, permissionsContextKey{}, &perms)
}

func PermissionsFromContext(ctx context.Context) (Permissions, bool) {
	if ctx == nil {
		return Permissions{}, false
	}
	v, ok := ctx.Value(permissionsContextKey{}).(*Permissions)
	if !ok || v == nil {
		return Permissions{}, false
	}
	return *v, true
}
