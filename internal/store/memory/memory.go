// Package memory is an in-process implementation of access.Store and the audit sink,
// used by tests and by the API when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"orgguard.dev/internal/access"
	"orgguard.dev/internal/audit"
	"orgguard.dev/internal/ids"
)

type pairKey struct{ a, b string }

type state struct {
	platforms  map[string]access.Platform
	orgs       map[string]access.Organization
	users      map[string]access.User
	roles      map[string]access.Role
	modules    map[string]access.Module
	roleAccess map[pairKey]access.RoleModuleAccess
	overrides  map[pairKey]access.UserModuleOverride
	audit      []audit.Entry
}

func newState() *state {
	return &state{
		platforms:  map[string]access.Platform{},
		orgs:       map[string]access.Organization{},
		users:      map[string]access.User{},
		roles:      map[string]access.Role{},
		modules:    map[string]access.Module{},
		roleAccess: map[pairKey]access.RoleModuleAccess{},
		overrides:  map[pairKey]access.UserModuleOverride{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.platforms {
		c.platforms[k] = v
	}
	for k, v := range s.orgs {
		c.orgs[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.roles {
		c.roles[k] = v
	}
	for k, v := range s.modules {
		c.modules[k] = v
	}
	for k, v := range s.roleAccess {
		c.roleAccess[k] = v
	}
	for k, v := range s.overrides {
		c.overrides[k] = v
	}
	c.audit = append([]audit.Entry(nil), s.audit...)
	return c
}

// Store keeps everything in maps guarded by one RWMutex. A transactional view
// works on a copy that replaces the live state on commit.
type Store struct {
	mu  *sync.RWMutex
	st  *state
	now func() time.Time
}

var (
	_ access.Store = (*Store)(nil)
	_ audit.Sink   = (*Store)(nil)
	_ audit.Reader = (*Store)(nil)
)

func New() *Store {
	return &Store{mu: &sync.RWMutex{}, st: newState(), now: time.Now}
}

func (s *Store) rlock() func() {
	if s.mu == nil {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) lock() func() {
	if s.mu == nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// WithinTx serializes with every other access for the duration of fn.
func (s *Store) WithinTx(ctx context.Context, fn func(tx access.Store) error) error {
	if s.mu == nil {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	view := &Store{st: s.st.clone(), now: s.now}
	if err := fn(view); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = view.st
	return nil
}

func (s *Store) CreatePlatform(_ context.Context, p access.Platform) (access.Platform, error) {
	defer s.lock()()
	if p.ID == "" {
		p.ID = ids.New()
	}
	if _, ok := s.st.platforms[p.ID]; ok {
		return access.Platform{}, access.ErrConflict
	}
	p.CreatedAt = s.now().UTC()
	s.st.platforms[p.ID] = p
	return p, nil
}

func (s *Store) GetPlatform(_ context.Context, id string) (access.Platform, error) {
	defer s.rlock()()
	p, ok := s.st.platforms[id]
	if !ok {
		return access.Platform{}, access.ErrNotFound
	}
	return p, nil
}

func (s *Store) UpsertRole(_ context.Context, r access.Role) (access.Role, error) {
	defer s.lock()()
	for id, existing := range s.st.roles {
		if existing.Key == r.Key {
			r.ID = id
			s.st.roles[id] = r
			return r, nil
		}
	}
	if r.ID == "" {
		r.ID = ids.New()
	}
	s.st.roles[r.ID] = r
	return r, nil
}

func (s *Store) UpsertModule(_ context.Context, m access.Module) (access.Module, error) {
	defer s.lock()()
	for id, existing := range s.st.modules {
		if existing.Key == m.Key {
			m.ID = id
			s.st.modules[id] = m
			return m, nil
		}
	}
	if m.ID == "" {
		m.ID = ids.New()
	}
	s.st.modules[m.ID] = m
	return m, nil
}

func (s *Store) GetOrganization(_ context.Context, id string) (access.Organization, error) {
	defer s.rlock()()
	o, ok := s.st.orgs[id]
	if !ok {
		return access.Organization{}, access.ErrNotFound
	}
	return o, nil
}

func (s *Store) ListOrganizations(_ context.Context, platformID string) ([]access.Organization, error) {
	defer s.rlock()()
	var out []access.Organization
	for _, o := range s.st.orgs {
		if o.PlatformID == platformID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) CreateOrganization(_ context.Context, org access.Organization) (access.Organization, error) {
	defer s.lock()()
	if _, ok := s.st.platforms[org.PlatformID]; !ok {
		return access.Organization{}, fmt.Errorf("%w: platform %s", access.ErrNotFound, org.PlatformID)
	}
	if org.ID == "" {
		org.ID = ids.New()
	}
	org.CreatedAt = s.now().UTC()
	s.st.orgs[org.ID] = org
	return org, nil
}

func (s *Store) GetUser(_ context.Context, id string) (access.User, error) {
	defer s.rlock()()
	u, ok := s.st.users[id]
	if !ok {
		return access.User{}, access.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserInOrg(_ context.Context, orgID, userID string) (access.User, error) {
	defer s.rlock()()
	u, ok := s.st.users[userID]
	if !ok || orgID == "" || u.OrgID != orgID {
		return access.User{}, access.ErrNotFound
	}
	return u, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (access.User, error) {
	defer s.rlock()()
	email = access.NormalizeEmail(email)
	for _, u := range s.st.users {
		if u.Email == email {
			return u, nil
		}
	}
	return access.User{}, access.ErrNotFound
}

func (s *Store) CreateUser(_ context.Context, u access.User) (access.User, error) {
	defer s.lock()()
	u.Email = access.NormalizeEmail(u.Email)
	for _, existing := range s.st.users {
		if existing.Email == u.Email {
			return access.User{}, fmt.Errorf("%w: email already registered", access.ErrConflict)
		}
	}
	if _, ok := s.st.platforms[u.PlatformID]; !ok {
		return access.User{}, fmt.Errorf("%w: platform %s", access.ErrNotFound, u.PlatformID)
	}
	if u.OrgID != "" {
		if _, ok := s.st.orgs[u.OrgID]; !ok {
			return access.User{}, fmt.Errorf("%w: organization %s", access.ErrNotFound, u.OrgID)
		}
	}
	role, ok := s.st.roles[u.RoleID]
	if !ok {
		return access.User{}, fmt.Errorf("%w: role %s", access.ErrNotFound, u.RoleID)
	}
	if err := access.CheckMembership(role, u.OrgID); err != nil {
		return access.User{}, err
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	u.CreatedAt = s.now().UTC()
	s.st.users[u.ID] = u
	return u, nil
}

// SetUserRole rebinds a user to another role.
func (s *Store) SetUserRole(_ context.Context, userID, roleID string) error {
	defer s.lock()()
	u, ok := s.st.users[userID]
	if !ok {
		return access.ErrNotFound
	}
	role, ok := s.st.roles[roleID]
	if !ok {
		return access.ErrNotFound
	}
	if err := access.CheckMembership(role, u.OrgID); err != nil {
		return err
	}
	u.RoleID = roleID
	s.st.users[userID] = u
	return nil
}

// SetUserActive toggles the active flag.
func (s *Store) SetUserActive(_ context.Context, userID string, active bool) error {
	defer s.lock()()
	u, ok := s.st.users[userID]
	if !ok {
		return access.ErrNotFound
	}
	u.IsActive = active
	s.st.users[userID] = u
	return nil
}

func (s *Store) GetRole(_ context.Context, id string) (access.Role, error) {
	defer s.rlock()()
	r, ok := s.st.roles[id]
	if !ok {
		return access.Role{}, access.ErrNotFound
	}
	return r, nil
}

func (s *Store) GetRoleByKey(_ context.Context, key string) (access.Role, error) {
	defer s.rlock()()
	for _, r := range s.st.roles {
		if r.Key == key {
			return r, nil
		}
	}
	return access.Role{}, access.ErrNotFound
}

func (s *Store) ListRoles(_ context.Context) ([]access.Role, error) {
	defer s.rlock()()
	out := make([]access.Role, 0, len(s.st.roles))
	for _, r := range s.st.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) GetModuleByKey(_ context.Context, key string) (access.Module, error) {
	defer s.rlock()()
	for _, m := range s.st.modules {
		if m.Key == key {
			return m, nil
		}
	}
	return access.Module{}, access.ErrNotFound
}

func (s *Store) ListModules(_ context.Context) ([]access.Module, error) {
	defer s.rlock()()
	out := make([]access.Module, 0, len(s.st.modules))
	for _, m := range s.st.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) GetRoleModuleAccess(_ context.Context, roleID, moduleID string) (access.RoleModuleAccess, error) {
	defer s.rlock()()
	rma, ok := s.st.roleAccess[pairKey{roleID, moduleID}]
	if !ok {
		return access.RoleModuleAccess{}, access.ErrNotFound
	}
	return rma, nil
}

func (s *Store) UpsertRoleModuleAccess(_ context.Context, rma access.RoleModuleAccess) (access.RoleModuleAccess, error) {
	defer s.lock()()
	if _, ok := s.st.roles[rma.RoleID]; !ok {
		return access.RoleModuleAccess{}, access.ErrNotFound
	}
	m, ok := s.st.modules[rma.ModuleID]
	if !ok {
		return access.RoleModuleAccess{}, access.ErrNotFound
	}
	rma.ModuleKey = m.Key
	s.st.roleAccess[pairKey{rma.RoleID, rma.ModuleID}] = rma
	return rma, nil
}

func (s *Store) GetUserModuleOverride(_ context.Context, userID, moduleID string) (access.UserModuleOverride, error) {
	defer s.rlock()()
	o, ok := s.st.overrides[pairKey{userID, moduleID}]
	if !ok {
		return access.UserModuleOverride{}, access.ErrNotFound
	}
	return o, nil
}

func (s *Store) MergeUserModuleOverride(_ context.Context, o access.UserModuleOverride) (access.UserModuleOverride, error) {
	defer s.lock()()
	if _, ok := s.st.users[o.UserID]; !ok {
		return access.UserModuleOverride{}, access.ErrNotFound
	}
	m, ok := s.st.modules[o.ModuleID]
	if !ok {
		return access.UserModuleOverride{}, access.ErrNotFound
	}
	key := pairKey{o.UserID, o.ModuleID}
	existing := s.st.overrides[key]
	stored := access.UserModuleOverride{
		UserID:    o.UserID,
		ModuleID:  o.ModuleID,
		ModuleKey: m.Key,
		Flags:     existing.Flags.Merge(o.Flags),
		UpdatedAt: s.now().UTC(),
	}
	s.st.overrides[key] = stored
	return stored, nil
}

func (s *Store) ListUserModuleOverrides(_ context.Context, userID string) ([]access.UserModuleOverride, error) {
	defer s.rlock()()
	var out []access.UserModuleOverride
	for k, o := range s.st.overrides {
		if k.a == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleKey < out[j].ModuleKey })
	return out, nil
}

func (s *Store) AppendAudit(_ context.Context, e audit.Entry) error {
	defer s.lock()()
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	s.st.audit = append(s.st.audit, e)
	return nil
}

func (s *Store) ListAudit(_ context.Context, f audit.Filter) ([]audit.Entry, error) {
	f = f.Normalize()
	defer s.rlock()()
	out := make([]audit.Entry, 0, f.Limit)
	for i := len(s.st.audit) - 1; i >= 0 && len(out) < f.Limit; i-- {
		e := s.st.audit[i]
		if e.PlatformID != f.PlatformID || e.OrgID != f.OrgID {
			continue
		}
		if f.ModuleKey != "" && e.ModuleKey != f.ModuleKey {
			continue
		}
		if f.Action != "" && !strings.EqualFold(e.Action, f.Action) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
