package access

import (
	"fmt"
	"strings"
	"time"
)

// Scope separates platform operators from tenant users.
type Scope string

const (
	ScopePlatform Scope = "platform"
	ScopeOrg      Scope = "org"
)

// Built-in role keys.
const (
	RoleSuperadmin     = "superadmin"
	RoleSuperadminTeam = "superadmin_team"
	RoleOrgAdmin       = "org_admin"
	RoleOrgManager     = "org_manager"
	RoleOrgEmployee    = "org_employee"
)

// Module keys of the fixed registry.
const (
	ModuleEmployeeManagement = "employee_management"
	ModulePayroll            = "payroll"
	ModuleAttendance         = "attendance"
	ModuleLeaveManagement    = "leave_management"
	ModuleRecruitment        = "recruitment"
	ModulePerformance        = "performance"
	ModuleReports            = "reports"
	ModuleSettings           = "settings"
)

// Action is one of the four gated operations.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Actions lists every action in canonical order.
func Actions() []Action {
	return []Action{ActionRead, ActionWrite, ActionUpdate, ActionDelete}
}

// ParseAction accepts an action name in any case.
func ParseAction(raw string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(raw)))
	switch a {
	case ActionRead, ActionWrite, ActionUpdate, ActionDelete:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrInvalidInput, raw)
}

type Platform struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Organization struct {
	ID         string    `json:"id"`
	PlatformID string    `json:"platform_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

type Role struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Scope       Scope  `json:"scope"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Module struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// User belongs to a platform and, for org-scoped roles, to exactly one organization.
// OrgID is empty for platform users.
type User struct {
	ID           string    `json:"id"`
	PlatformID   string    `json:"platform_id"`
	OrgID        string    `json:"org_id,omitempty"`
	RoleID       string    `json:"role_id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Permissions is an effective (or role default) permission set for one module.
type Permissions struct {
	Read   bool `json:"read"`
	Write  bool `json:"write"`
	Update bool `json:"update"`
	Delete bool `json:"delete"`
}

// FullAccess grants every action.
func FullAccess() Permissions {
	return Permissions{Read: true, Write: true, Update: true, Delete: true}
}

// Allows reports whether the flag for action is set.
func (p Permissions) Allows(action Action) bool {
	switch action {
	case ActionRead:
		return p.Read
	case ActionWrite:
		return p.Write
	case ActionUpdate:
		return p.Update
	case ActionDelete:
		return p.Delete
	default:
		return false
	}
}

type RoleModuleAccess struct {
	RoleID      string      `json:"role_id"`
	ModuleID    string      `json:"module_id"`
	ModuleKey   string      `json:"module_key,omitempty"`
	Permissions Permissions `json:"permissions"`
}

// OverrideFlags holds per-action overrides; Unset fields fall through to the role default.
type OverrideFlags struct {
	Read   Tristate `json:"read"`
	Write  Tristate `json:"write"`
	Update Tristate `json:"update"`
	Delete Tristate `json:"delete"`
}

// Merge overlays the set fields of patch onto f.
func (f OverrideFlags) Merge(patch OverrideFlags) OverrideFlags {
	pick := func(cur, next Tristate) Tristate {
		if next.IsSet() {
			return next
		}
		return cur
	}
	return OverrideFlags{
		Read:   pick(f.Read, patch.Read),
		Write:  pick(f.Write, patch.Write),
		Update: pick(f.Update, patch.Update),
		Delete: pick(f.Delete, patch.Delete),
	}
}

// Apply resolves the flags against a role default.
func (f OverrideFlags) Apply(base Permissions) Permissions {
	return Permissions{
		Read:   f.Read.Or(base.Read),
		Write:  f.Write.Or(base.Write),
		Update: f.Update.Or(base.Update),
		Delete: f.Delete.Or(base.Delete),
	}
}

func (f OverrideFlags) IsEmpty() bool {
	return !f.Read.IsSet() && !f.Write.IsSet() && !f.Update.IsSet() && !f.Delete.IsSet()
}

type UserModuleOverride struct {
	UserID    string        `json:"user_id"`
	ModuleID  string        `json:"module_id"`
	ModuleKey string        `json:"module_key,omitempty"`
	Flags     OverrideFlags `json:"flags"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Actor is the authenticated caller as seen by authorization.
type Actor struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	RoleKey    string `json:"role_key"`
	RoleScope  Scope  `json:"scope"`
	OrgID      string `json:"org_id,omitempty"`
	PlatformID string `json:"platform_id"`
}

// IsSuperadmin reports whether the actor may run platform administration.
func (a Actor) IsSuperadmin() bool {
	return a.RoleScope == ScopePlatform && a.RoleKey == RoleSuperadmin
}

// CheckMembership enforces that platform-scoped roles carry no organization and
// org-scoped roles carry one.
func CheckMembership(role Role, orgID string) error {
	switch {
	case role.Scope == ScopePlatform && orgID != "":
		return fmt.Errorf("%w: platform-scoped role %s cannot belong to an organization", ErrInvalidInput, role.Key)
	case role.Scope == ScopeOrg && orgID == "":
		return fmt.Errorf("%w: org-scoped role %s requires an organization", ErrInvalidInput, role.Key)
	}
	return nil
}

// ActorFor builds the actor view of a user bound to role.
func ActorFor(u User, role Role) Actor {
	return Actor{
		ID:         u.ID,
		Email:      u.Email,
		RoleKey:    role.Key,
		RoleScope:  role.Scope,
		OrgID:      u.OrgID,
		PlatformID: u.PlatformID,
	}
}

// DefaultModules is the fixed registry provisioned at setup.
var DefaultModules = []Module{
	{Key: ModuleEmployeeManagement, Name: "Employee Management"},
	{Key: ModulePayroll, Name: "Payroll"},
	{Key: ModuleAttendance, Name: "Attendance"},
	{Key: ModuleLeaveManagement, Name: "Leave Management"},
	{Key: ModuleRecruitment, Name: "Recruitment"},
	{Key: ModulePerformance, Name: "Performance"},
	{Key: ModuleReports, Name: "Reports"},
	{Key: ModuleSettings, Name: "Settings"},
}

// DefaultRoles is the built-in role catalog.
var DefaultRoles = []Role{
	{Key: RoleSuperadmin, Scope: ScopePlatform, Name: "Super Admin", Description: "Full platform control"},
	{Key: RoleSuperadminTeam, Scope: ScopePlatform, Name: "Super Admin Team", Description: "Limited platform operations"},
	{Key: RoleOrgAdmin, Scope: ScopeOrg, Name: "Org Admin", Description: "Full org control"},
	{Key: RoleOrgManager, Scope: ScopeOrg, Name: "Org Manager", Description: "Manages teams/departments"},
	{Key: RoleOrgEmployee, Scope: ScopeOrg, Name: "Org Employee", Description: "Basic employee access"},
}
