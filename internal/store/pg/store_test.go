package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"orgguard.dev/internal/access"
	"orgguard.dev/internal/audit"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return New(db), mock
}

var userCols = []string{"id", "platform_id", "org_id", "role_id", "email", "full_name", "password_hash", "is_active", "created_at"}

func TestGetUserInOrgScopesByTenant(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery("select .* from users\\s+where id = \\$1 and org_id = \\$2").
		WithArgs("u1", "org-a").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u1", "p1", "org-a", "r1", "e@a.test", "E", "hash", true, now))
	u, err := store.GetUserInOrg(context.Background(), "org-a", "u1")
	if err != nil {
		t.Fatalf("GetUserInOrg: %v", err)
	}
	if u.OrgID != "org-a" || !u.IsActive {
		t.Fatalf("unexpected user %+v", u)
	}

	mock.ExpectQuery("select .* from users\\s+where id = \\$1 and org_id = \\$2").
		WithArgs("u1", "org-b").
		WillReturnError(sql.ErrNoRows)
	if _, err := store.GetUserInOrg(context.Background(), "org-b", "u1"); !errors.Is(err, access.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := store.GetUserInOrg(context.Background(), "", "u1"); !errors.Is(err, access.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty org, got %v", err)
	}
}

func TestGetUserPlatformUserHasNoOrg(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("select .* from users where id = \\$1").
		WithArgs("sa").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("sa", "p1", nil, "r0", "sa@demo.com", "SA", "hash", true, time.Now()))
	u, err := store.GetUser(context.Background(), "sa")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.OrgID != "" {
		t.Fatalf("expected empty org, got %q", u.OrgID)
	}
}

func TestCreateUserMapsConstraintErrors(t *testing.T) {
	store, mock := newMock(t)
	in := access.User{PlatformID: "p1", OrgID: "org-a", RoleID: "r1", Email: " Dup@A.test ", FullName: "Dup", PasswordHash: "h", IsActive: true}

	mock.ExpectQuery("insert into users").
		WithArgs(sqlmock.AnyArg(), "p1", "org-a", "r1", "dup@a.test", "Dup", "h", true).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	if _, err := store.CreateUser(context.Background(), in); !errors.Is(err, access.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	mock.ExpectQuery("insert into users").
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})
	if _, err := store.CreateUser(context.Background(), in); !errors.Is(err, access.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// raised by the users_role_scope trigger
	mock.ExpectQuery("insert into users").
		WillReturnError(&pgconn.PgError{Code: pgErrCheckViolation, Message: "org-scoped role requires an organization"})
	_, err := store.CreateUser(context.Background(), in)
	if !errors.Is(err, access.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if access.StatusCode(err) != 400 {
		t.Fatalf("expected 400, got %d", access.StatusCode(err))
	}
}

func TestGetRoleModuleAccessMissingRow(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("select can_read, can_write, can_update, can_delete\\s+from role_module_access").
		WithArgs("r1", "m1").
		WillReturnError(sql.ErrNoRows)
	if _, err := store.GetRoleModuleAccess(context.Background(), "r1", "m1"); !errors.Is(err, access.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	mock.ExpectQuery("from role_module_access").
		WithArgs("r1", "m2").
		WillReturnRows(sqlmock.NewRows([]string{"can_read", "can_write", "can_update", "can_delete"}).AddRow(true, false, true, false))
	rma, err := store.GetRoleModuleAccess(context.Background(), "r1", "m2")
	if err != nil {
		t.Fatalf("GetRoleModuleAccess: %v", err)
	}
	if rma.Permissions != (access.Permissions{Read: true, Update: true}) {
		t.Fatalf("unexpected permissions %+v", rma.Permissions)
	}
}

func TestMergeUserModuleOverridePassesNullForUnset(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery("insert into user_module_overrides .* on conflict \\(user_id, module_id\\) do update\\s+set can_read = coalesce\\(excluded.can_read, user_module_overrides.can_read\\)").
		WithArgs("u1", "m1", nil, true, nil, false).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "module_id", "can_read", "can_write", "can_update", "can_delete", "updated_at"}).
			AddRow("u1", "m1", true, true, nil, false, now))

	got, err := store.MergeUserModuleOverride(context.Background(), access.UserModuleOverride{
		UserID: "u1", ModuleID: "m1", ModuleKey: "payroll",
		Flags: access.OverrideFlags{Write: access.True, Delete: access.False},
	})
	if err != nil {
		t.Fatalf("MergeUserModuleOverride: %v", err)
	}
	want := access.OverrideFlags{Read: access.True, Write: access.True, Delete: access.False}
	if got.Flags != want {
		t.Fatalf("flags=%+v want %+v", got.Flags, want)
	}
	if got.ModuleKey != "payroll" {
		t.Fatalf("module key not carried: %q", got.ModuleKey)
	}
}

func TestGetUserModuleOverrideScansNulls(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("from user_module_overrides").
		WithArgs("u1", "m1").
		WillReturnRows(sqlmock.NewRows([]string{"can_read", "can_write", "can_update", "can_delete", "updated_at"}).
			AddRow(nil, nil, false, nil, time.Now()))
	o, err := store.GetUserModuleOverride(context.Background(), "u1", "m1")
	if err != nil {
		t.Fatalf("GetUserModuleOverride: %v", err)
	}
	if o.Flags != (access.OverrideFlags{Update: access.False}) {
		t.Fatalf("unexpected flags %+v", o.Flags)
	}
}

func TestWithinTxCommitsAndRollsBack(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("insert into organizations").
		WithArgs(sqlmock.AnyArg(), "p1", "Org C").
		WillReturnRows(sqlmock.NewRows([]string{"id", "platform_id", "name", "created_at"}).AddRow("o1", "p1", "Org C", time.Now()))
	mock.ExpectQuery("insert into users").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	mock.ExpectRollback()

	err := store.WithinTx(ctx, func(tx access.Store) error {
		if _, err := tx.CreateOrganization(ctx, access.Organization{PlatformID: "p1", Name: "Org C"}); err != nil {
			return err
		}
		_, err := tx.CreateUser(ctx, access.User{PlatformID: "p1", OrgID: "o1", RoleID: "r1", Email: "x@y.test"})
		return err
	})
	if !errors.Is(err, access.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec("insert into role_module_access").
		WithArgs("r1", "m1", true, false, false, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	err = store.WithinTx(ctx, func(tx access.Store) error {
		return tx.WithinTx(ctx, func(inner access.Store) error {
			_, err := inner.UpsertRoleModuleAccess(ctx, access.RoleModuleAccess{RoleID: "r1", ModuleID: "m1", Permissions: access.Permissions{Read: true}})
			return err
		})
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}
}

func TestAuditAppendAndList(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("insert into audit_logs").
		WithArgs("e1", at, "req-1", "p1", "org-a", "u1", "org_employee", "payroll", "read", "GET", "/api/access/payroll/read", 403, "10.0.0.1", "ua", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	err := store.AppendAudit(ctx, audit.Entry{
		ID: "e1", CreatedAt: at, RequestID: "req-1", PlatformID: "p1", OrgID: "org-a", UserID: "u1", RoleKey: "org_employee",
		ModuleKey: "payroll", Action: "read", Method: "GET", Path: "/api/access/payroll/read", StatusCode: 403, IP: "10.0.0.1", UserAgent: "ua", DurationMS: 3,
	})
	if err != nil {
		t.Fatalf("AppendAudit: %v", err)
	}

	cols := []string{"id", "created_at", "request_id", "platform_id", "org_id", "user_id", "role_key", "module_key", "action", "method", "path", "status_code", "ip", "user_agent", "duration_ms"}
	mock.ExpectQuery("from audit_logs\\s+where platform_id = \\$1 and org_id = \\$2 and module_key = \\$3 and action = \\$4\\s+order by created_at desc, id desc\\s+limit \\$5").
		WithArgs("p1", "org-a", "payroll", "read", audit.MaxListLimit).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("e1", at, "req-1", "p1", "org-a", "u1", "org_employee", "payroll", "read", "GET", "/x", 403, "10.0.0.1", "ua", 3))
	entries, err := store.ListAudit(ctx, audit.Filter{PlatformID: "p1", OrgID: "org-a", ModuleKey: "payroll", Action: "READ", Limit: 500})
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(entries) != 1 || entries[0].StatusCode != 403 {
		t.Fatalf("unexpected entries %+v", entries)
	}

	mock.ExpectQuery("from audit_logs\\s+where platform_id = \\$1 and org_id = \\$2\\s+order by").
		WithArgs("p1", "org-a", audit.DefaultListLimit).
		WillReturnRows(sqlmock.NewRows(cols))
	if _, err := store.ListAudit(ctx, audit.Filter{PlatformID: "p1", OrgID: "org-a"}); err != nil {
		t.Fatalf("ListAudit default: %v", err)
	}
}

func TestUpsertRoleByKey(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("insert into roles .* on conflict \\(key\\) do update").
		WithArgs(sqlmock.AnyArg(), "org_admin", "org", "Org Admin", "Full org control").
		WillReturnRows(sqlmock.NewRows([]string{"id", "key", "scope", "name", "description"}).AddRow("r-existing", "org_admin", "org", "Org Admin", "Full org control"))
	r, err := store.UpsertRole(context.Background(), access.Role{Key: "org_admin", Scope: access.ScopeOrg, Name: "Org Admin", Description: "Full org control"})
	if err != nil {
		t.Fatalf("UpsertRole: %v", err)
	}
	if r.ID != "r-existing" || r.Scope != access.ScopeOrg {
		t.Fatalf("unexpected role %+v", r)
	}
}
