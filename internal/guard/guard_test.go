package guard

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgguard.dev/internal/access"
	"orgguard.dev/internal/audit"
	"orgguard.dev/internal/seed"
	"orgguard.dev/internal/store/memory"
)

type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "plain:" + p, nil }
func (plainHasher) Compare(h, p string) error {
	if h != "plain:"+p {
		return errors.New("mismatch")
	}
	return nil
}

type flakySink struct {
	mu      sync.Mutex
	fail    bool
	entries []audit.Entry
}

func (s *flakySink) AppendAudit(_ context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("audit store unavailable")
	}
	s.entries = append(s.entries, e)
	return nil
}

type env struct {
	store    *memory.Store
	seed     seed.Result
	sink     *flakySink
	recorder *audit.Recorder
	guard    *Guard
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.New()
	res, err := seed.Run(context.Background(), store, plainHasher{}, seed.Options{Demo: true})
	require.NoError(t, err)
	resolver, err := access.NewResolver(store, store)
	require.NoError(t, err)
	sink := &flakySink{}
	rec, err := audit.NewRecorder(sink)
	require.NoError(t, err)
	g, err := New(store, resolver, rec)
	require.NoError(t, err)
	return &env{store: store, seed: res, sink: sink, recorder: rec, guard: g}
}

func (e *env) ctxFor(t *testing.T, email string) context.Context {
	t.Helper()
	u, ok := e.seed.Users[email]
	require.True(t, ok, email)
	role, err := e.store.GetRole(context.Background(), u.RoleID)
	require.NoError(t, err)
	return access.ContextWithActor(context.Background(), access.ActorFor(u, role))
}

func TestCheckAllows(t *testing.T) {
	e := newEnv(t)
	dec, err := e.guard.Check(e.ctxFor(t, "orgmanagera@demo.com"), access.ModuleAttendance, access.ActionWrite)
	require.NoError(t, err)
	assert.Equal(t, access.Permissions{Read: true, Write: true, Update: true}, dec.Permissions)
	assert.Equal(t, access.ModuleAttendance, dec.ModuleKey)

	require.Len(t, e.sink.entries, 1)
	entry := e.sink.entries[0]
	assert.Equal(t, http.StatusOK, entry.StatusCode)
	assert.Equal(t, "write", entry.Action)
	assert.Equal(t, access.RoleOrgManager, entry.RoleKey)
	assert.Equal(t, dec.Actor.OrgID, entry.OrgID)
}

func TestCheckDeniesWithMessage(t *testing.T) {
	e := newEnv(t)
	_, err := e.guard.Check(e.ctxFor(t, "orgemployee1a@demo.com"), access.ModulePayroll, access.ActionRead)
	require.ErrorIs(t, err, access.ErrAccessDenied)
	assert.EqualError(t, err, "access denied: missing READ permission for module payroll")

	require.Len(t, e.sink.entries, 1)
	assert.Equal(t, http.StatusForbidden, e.sink.entries[0].StatusCode)
}

func TestCheckOverrideDeny(t *testing.T) {
	e := newEnv(t)
	_, err := e.guard.Check(e.ctxFor(t, "orgemployee3b@demo.com"), access.ModuleAttendance, access.ActionRead)
	assert.ErrorIs(t, err, access.ErrAccessDenied)

	dec, err := e.guard.Check(e.ctxFor(t, "orgemployee2b@demo.com"), access.ModulePayroll, access.ActionWrite)
	require.NoError(t, err)
	assert.True(t, dec.Permissions.Write)
}

func TestCheckScopeViolationForPlatformActors(t *testing.T) {
	e := newEnv(t)
	for _, email := range []string{"superadmin@demo.com", "superadminteam@demo.com"} {
		for _, a := range access.Actions() {
			_, err := e.guard.Check(e.ctxFor(t, email), access.ModuleSettings, a)
			assert.ErrorIs(t, err, access.ErrScopeViolation, "%s %s", email, a)
		}
	}
	require.Len(t, e.sink.entries, 8, "platform denials are audited")
	assert.Equal(t, http.StatusForbidden, e.sink.entries[0].StatusCode)
}

func TestCheckMissingTenantContext(t *testing.T) {
	e := newEnv(t)
	ctx := access.ContextWithActor(context.Background(), access.Actor{
		ID: "ghost", RoleKey: access.RoleOrgAdmin, RoleScope: access.ScopeOrg, PlatformID: e.seed.Platform.ID,
	})
	for _, m := range []string{access.ModulePayroll, access.ModuleReports, "anything"} {
		_, err := e.guard.Check(ctx, m, access.ActionRead)
		assert.ErrorIs(t, err, access.ErrMissingTenantContext, m)
	}
}

func TestCheckWithoutActorIsMisuse(t *testing.T) {
	e := newEnv(t)
	_, err := e.guard.Check(context.Background(), access.ModulePayroll, access.ActionRead)
	require.ErrorIs(t, err, access.ErrInternalMisuse)
	assert.Equal(t, http.StatusInternalServerError, access.StatusCode(err))
	assert.Empty(t, e.sink.entries)
}

func TestCheckUnknownModuleAndAction(t *testing.T) {
	e := newEnv(t)
	ctx := e.ctxFor(t, "orgadmina@demo.com")
	_, err := e.guard.Check(ctx, "nonexistent", access.ActionRead)
	require.ErrorIs(t, err, access.ErrUnknownModule)
	_, err = e.guard.Check(ctx, access.ModulePayroll, access.Action("approve"))
	require.ErrorIs(t, err, access.ErrInvalidInput)

	require.Len(t, e.sink.entries, 2)
	assert.Equal(t, http.StatusBadRequest, e.sink.entries[0].StatusCode)
}

func TestCheckUsesRequestTrail(t *testing.T) {
	e := newEnv(t)
	trail := audit.NewTrail(audit.RequestMeta{RequestID: "req-7", Method: http.MethodGet, Path: "/api/access/payroll/read"})
	ctx := audit.ContextWithTrail(e.ctxFor(t, "orgadminb@demo.com"), trail)

	_, err := e.guard.Check(ctx, access.ModulePayroll, access.ActionRead)
	require.NoError(t, err)
	_, err = e.guard.Check(ctx, access.ModuleReports, access.ActionRead)
	require.NoError(t, err)
	assert.Empty(t, e.sink.entries, "trail owner flushes")

	assert.True(t, e.recorder.Flush(ctx, trail, http.StatusOK))
	assert.False(t, e.recorder.Flush(ctx, trail, http.StatusOK))
	require.Len(t, e.sink.entries, 1)
	assert.Equal(t, access.ModuleReports, e.sink.entries[0].ModuleKey)
	assert.Equal(t, "req-7", e.sink.entries[0].RequestID)
}

func TestCheckAuditFailureDoesNotChangeDecision(t *testing.T) {
	e := newEnv(t)
	e.sink.fail = true
	dec, err := e.guard.Check(e.ctxFor(t, "orgadmina@demo.com"), access.ModuleSettings, access.ActionDelete)
	require.NoError(t, err)
	assert.True(t, dec.Permissions.Delete)

	_, err = e.guard.Check(e.ctxFor(t, "orgemployee1a@demo.com"), access.ModuleSettings, access.ActionDelete)
	assert.ErrorIs(t, err, access.ErrAccessDenied)
}

func TestCheckReadsLiveRoleBinding(t *testing.T) {
	e := newEnv(t)
	ctx := e.ctxFor(t, "orgemployee1a@demo.com")
	_, err := e.guard.Check(ctx, access.ModuleRecruitment, access.ActionWrite)
	require.ErrorIs(t, err, access.ErrAccessDenied)

	manager, err := e.store.GetRoleByKey(context.Background(), access.RoleOrgManager)
	require.NoError(t, err)
	uid := e.seed.Users["orgemployee1a@demo.com"].ID
	require.NoError(t, e.store.SetUserRole(context.Background(), uid, manager.ID))

	_, err = e.guard.Check(ctx, access.ModuleRecruitment, access.ActionWrite)
	require.NoError(t, err, "role change applies without a new token")

	require.NoError(t, e.store.SetUserActive(context.Background(), uid, false))
	_, err = e.guard.Check(ctx, access.ModuleRecruitment, access.ActionWrite)
	assert.ErrorIs(t, err, access.ErrUnauthenticated)
}

func TestNewValidatesDependencies(t *testing.T) {
	_, err := New(nil, nil, nil)
	assert.Error(t, err)
}
