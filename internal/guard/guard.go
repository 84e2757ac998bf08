package guard

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"orgguard.dev/internal/access"
	"orgguard.dev/internal/audit"
	"orgguard.dev/internal/obs"
)

// Directory is the live identity lookup used to re-read the actor's role binding.
type Directory interface {
	GetUser(ctx context.Context, id string) (access.User, error)
	GetRole(ctx context.Context, id string) (access.Role, error)
}

// PermissionResolver resolves effective permissions for a user bound to a role.
type PermissionResolver interface {
	Resolve(ctx context.Context, userID, roleID, moduleKey string) (access.Permissions, error)
}

// Decision is the outcome of an allowed check.
type Decision struct {
	Actor       access.Actor
	ModuleKey   string
	Action      access.Action
	Permissions access.Permissions
}

// Guard decides whether the actor in the request context may perform an action on a module.
type Guard struct {
	dir      Directory
	resolver PermissionResolver
	recorder *audit.Recorder
	logger   *zap.Logger
	stages   []stage
}

type Option func(*Guard)

func WithLogger(l *zap.Logger) Option {
	return func(g *Guard) { g.logger = obs.OrNop(l) }
}

func New(dir Directory, resolver PermissionResolver, recorder *audit.Recorder, opts ...Option) (*Guard, error) {
	if dir == nil || resolver == nil {
		return nil, errors.New("guard: directory and resolver are required")
	}
	if recorder == nil {
		return nil, errors.New("guard: audit recorder is required")
	}
	g := &Guard{dir: dir, resolver: resolver, recorder: recorder, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	g.stages = []stage{
		{"action", checkAction},
		{"scope", checkScope},
		{"tenant", checkTenant},
		{"binding", g.loadBinding},
		{"resolve", g.resolve},
		{"gate", checkGate},
	}
	return g, nil
}

// Check runs the authorization pipeline. Every call that finds an actor records exactly
// one audit entry: on the request's trail when present, otherwise directly.
func (g *Guard) Check(ctx context.Context, moduleKey string, action access.Action) (dec Decision, err error) {
	actor, ok := access.ActorFromContext(ctx)
	if !ok {
		return Decision{}, access.ErrInternalMisuse
	}
	moduleKey = strings.TrimSpace(moduleKey)

	trail, ok := audit.TrailFromContext(ctx)
	if !ok {
		trail = audit.NewTrail(audit.RequestMeta{RequestID: audit.RequestIDFromContext(ctx)})
		defer func() { g.recorder.Flush(ctx, trail, access.StatusCode(err)) }()
	}
	trail.Intend(actor, moduleKey, action)

	c := &check{actor: actor, moduleKey: moduleKey, action: action}
	for _, st := range g.stages {
		if err := st.run(ctx, c); err != nil {
			g.observe(c, st.name, err)
			return Decision{}, err
		}
	}
	g.observe(c, "", nil)
	return Decision{Actor: actor, ModuleKey: moduleKey, Action: action, Permissions: c.perms}, nil
}

func (g *Guard) observe(c *check, stage string, err error) {
	module := c.moduleKey
	if errors.Is(err, access.ErrUnknownModule) || errors.Is(err, access.ErrInvalidInput) {
		module = "unknown"
	}
	switch {
	case err == nil:
		obs.RecordDecision(module, string(c.action), "allow")
	case access.StatusCode(err) >= 500:
		obs.RecordDecision(module, string(c.action), "error")
		g.logger.Error("authorization failed",
			zap.String("stage", stage),
			zap.String("user_id", c.actor.ID),
			zap.String("module", c.moduleKey),
			zap.Error(err),
		)
	default:
		obs.RecordDecision(module, string(c.action), "deny")
		g.logger.Debug("authorization denied",
			zap.String("stage", stage),
			zap.String("user_id", c.actor.ID),
			zap.String("module", c.moduleKey),
			zap.String("action", string(c.action)),
			zap.String("reason", access.Code(err)),
		)
	}
}
