package pg

import (
	"context"

	"orgguard.dev/internal/access"
	"orgguard.dev/internal/ids"
)

func (s *Store) UpsertModule(ctx context.Context, m access.Module) (access.Module, error) {
	if m.ID == "" {
		m.ID = ids.New()
	}
	err := s.q.QueryRowContext(ctx, `
		insert into modules (id, key, name)
		values ($1, $2, $3)
		on conflict (key) do update set name = excluded.name
		returning id, key, name
	`, m.ID, m.Key, m.Name).Scan(&m.ID, &m.Key, &m.Name)
	if err != nil {
		return access.Module{}, mapWriteError(err)
	}
	return m, nil
}

func (s *Store) GetModuleByKey(ctx context.Context, key string) (access.Module, error) {
	var m access.Module
	err := s.q.QueryRowContext(ctx, `
		select id, key, name from modules where key = $1
	`, key).Scan(&m.ID, &m.Key, &m.Name)
	if err != nil {
		return access.Module{}, notFound(err)
	}
	return m, nil
}

func (s *Store) ListModules(ctx context.Context) ([]access.Module, error) {
	rows, err := s.q.QueryContext(ctx, `select id, key, name from modules order by key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var modules []access.Module
	for rows.Next() {
		var m access.Module
		if err := rows.Scan(&m.ID, &m.Key, &m.Name); err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return modules, nil
}

func (s *Store) GetRoleModuleAccess(ctx context.Context, roleID, moduleID string) (access.RoleModuleAccess, error) {
	rma := access.RoleModuleAccess{RoleID: roleID, ModuleID: moduleID}
	p := &rma.Permissions
	err := s.q.QueryRowContext(ctx, `
		select can_read, can_write, can_update, can_delete
		from role_module_access
		where role_id = $1 and module_id = $2
	`, roleID, moduleID).Scan(&p.Read, &p.Write, &p.Update, &p.Delete)
	if err != nil {
		return access.RoleModuleAccess{}, notFound(err)
	}
	return rma, nil
}

func (s *Store) UpsertRoleModuleAccess(ctx context.Context, rma access.RoleModuleAccess) (access.RoleModuleAccess, error) {
	p := rma.Permissions
	_, err := s.q.ExecContext(ctx, `
		insert into role_module_access (role_id, module_id, can_read, can_write, can_update, can_delete)
		values ($1, $2, $3, $4, $5, $6)
		on conflict (role_id, module_id) do update
		set can_read = excluded.can_read,
		    can_write = excluded.can_write,
		    can_update = excluded.can_update,
		    can_delete = excluded.can_delete
	`, rma.RoleID, rma.ModuleID, p.Read, p.Write, p.Update, p.Delete)
	if err != nil {
		return access.RoleModuleAccess{}, mapWriteError(err)
	}
	return rma, nil
}

func (s *Store) GetUserModuleOverride(ctx context.Context, userID, moduleID string) (access.UserModuleOverride, error) {
	o := access.UserModuleOverride{UserID: userID, ModuleID: moduleID}
	f := &o.Flags
	err := s.q.QueryRowContext(ctx, `
		select can_read, can_write, can_update, can_delete, updated_at
		from user_module_overrides
		where user_id = $1 and module_id = $2
	`, userID, moduleID).Scan(&f.Read, &f.Write, &f.Update, &f.Delete, &o.UpdatedAt)
	if err != nil {
		return access.UserModuleOverride{}, notFound(err)
	}
	return o, nil
}

// MergeUserModuleOverride relies on coalesce so a null (unset) input keeps the stored flag.
func (s *Store) MergeUserModuleOverride(ctx context.Context, o access.UserModuleOverride) (access.UserModuleOverride, error) {
	stored := access.UserModuleOverride{ModuleKey: o.ModuleKey}
	f := &stored.Flags
	err := s.q.QueryRowContext(ctx, `
		insert into user_module_overrides (user_id, module_id, can_read, can_write, can_update, can_delete, updated_at)
		values ($1, $2, $3, $4, $5, $6, now())
		on conflict (user_id, module_id) do update
		set can_read = coalesce(excluded.can_read, user_module_overrides.can_read),
		    can_write = coalesce(excluded.can_write, user_module_overrides.can_write),
		    can_update = coalesce(excluded.can_update, user_module_overrides.can_update),
		    can_delete = coalesce(excluded.can_delete, user_module_overrides.can_delete),
		    updated_at = now()
		returning user_id, module_id, can_read, can_write, can_update, can_delete, updated_at
	`, o.UserID, o.ModuleID, o.Flags.Read, o.Flags.Write, o.Flags.Update, o.Flags.Delete).
		Scan(&stored.UserID, &stored.ModuleID, &f.Read, &f.Write, &f.Update, &f.Delete, &stored.UpdatedAt)
	if err != nil {
		return access.UserModuleOverride{}, mapWriteError(err)
	}
	return stored, nil
}

func (s *Store) ListUserModuleOverrides(ctx context.Context, userID string) ([]access.UserModuleOverride, error) {
	rows, err := s.q.QueryContext(ctx, `
		select o.user_id, o.module_id, m.key, o.can_read, o.can_write, o.can_update, o.can_delete, o.updated_at
		from user_module_overrides o
		join modules m on m.id = o.module_id
		where o.user_id = $1
		order by m.key
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []access.UserModuleOverride
	for rows.Next() {
		var o access.UserModuleOverride
		f := &o.Flags
		if err := rows.Scan(&o.UserID, &o.ModuleID, &o.ModuleKey, &f.Read, &f.Write, &f.Update, &f.Delete, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
