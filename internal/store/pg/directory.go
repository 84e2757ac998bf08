package pg

import (
	"context"
	"database/sql"

	"orgguard.dev/internal/access"
	"orgguard.dev/internal/ids"
)

func (s *Store) CreatePlatform(ctx context.Context, p access.Platform) (access.Platform, error) {
	if p.ID == "" {
		p.ID = ids.New()
	}
	err := s.q.QueryRowContext(ctx, `
		insert into platforms (id, name)
		values ($1, $2)
		returning id, name, created_at
	`, p.ID, p.Name).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err != nil {
		return access.Platform{}, mapWriteError(err)
	}
	return p, nil
}

func (s *Store) GetPlatform(ctx context.Context, id string) (access.Platform, error) {
	var p access.Platform
	err := s.q.QueryRowContext(ctx, `
		select id, name, created_at from platforms where id = $1
	`, id).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err != nil {
		return access.Platform{}, notFound(err)
	}
	return p, nil
}

func (s *Store) CreateOrganization(ctx context.Context, org access.Organization) (access.Organization, error) {
	if org.ID == "" {
		org.ID = ids.New()
	}
	err := s.q.QueryRowContext(ctx, `
		insert into organizations (id, platform_id, name)
		values ($1, $2, $3)
		returning id, platform_id, name, created_at
	`, org.ID, org.PlatformID, org.Name).Scan(&org.ID, &org.PlatformID, &org.Name, &org.CreatedAt)
	if err != nil {
		return access.Organization{}, mapWriteError(err)
	}
	return org, nil
}

func (s *Store) GetOrganization(ctx context.Context, id string) (access.Organization, error) {
	var org access.Organization
	err := s.q.QueryRowContext(ctx, `
		select id, platform_id, name, created_at
		from organizations
		where id = $1
	`, id).Scan(&org.ID, &org.PlatformID, &org.Name, &org.CreatedAt)
	if err != nil {
		return access.Organization{}, notFound(err)
	}
	return org, nil
}

func (s *Store) ListOrganizations(ctx context.Context, platformID string) ([]access.Organization, error) {
	rows, err := s.q.QueryContext(ctx, `
		select id, platform_id, name, created_at
		from organizations
		where platform_id = $1
		order by created_at desc, id desc
	`, platformID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []access.Organization
	for rows.Next() {
		var org access.Organization
		if err := rows.Scan(&org.ID, &org.PlatformID, &org.Name, &org.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, org)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

const userColumns = `id, platform_id, org_id, role_id, email, full_name, password_hash, is_active, created_at`

func scanUser(row interface{ Scan(...any) error }) (access.User, error) {
	var (
		u     access.User
		orgID sql.NullString
	)
	if err := row.Scan(&u.ID, &u.PlatformID, &orgID, &u.RoleID, &u.Email, &u.FullName, &u.PasswordHash, &u.IsActive, &u.CreatedAt); err != nil {
		return access.User{}, err
	}
	u.OrgID = orgID.String
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u access.User) (access.User, error) {
	if u.ID == "" {
		u.ID = ids.New()
	}
	row := s.q.QueryRowContext(ctx, `
		insert into users (id, platform_id, org_id, role_id, email, full_name, password_hash, is_active)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning `+userColumns,
		u.ID, u.PlatformID, nullIfEmpty(u.OrgID), u.RoleID, access.NormalizeEmail(u.Email), u.FullName, u.PasswordHash, u.IsActive)
	created, err := scanUser(row)
	if err != nil {
		return access.User{}, mapWriteError(err)
	}
	return created, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (access.User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id))
	if err != nil {
		return access.User{}, notFound(err)
	}
	return u, nil
}

func (s *Store) GetUserInOrg(ctx context.Context, orgID, userID string) (access.User, error) {
	if orgID == "" {
		return access.User{}, access.ErrNotFound
	}
	u, err := scanUser(s.q.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where id = $1 and org_id = $2
	`, userID, orgID))
	if err != nil {
		return access.User{}, notFound(err)
	}
	return u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (access.User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx, `select `+userColumns+` from users where email = $1`, access.NormalizeEmail(email)))
	if err != nil {
		return access.User{}, notFound(err)
	}
	return u, nil
}

func (s *Store) UpsertRole(ctx context.Context, r access.Role) (access.Role, error) {
	if r.ID == "" {
		r.ID = ids.New()
	}
	err := s.q.QueryRowContext(ctx, `
		insert into roles (id, key, scope, name, description)
		values ($1, $2, $3, $4, $5)
		on conflict (key) do update
		set scope = excluded.scope, name = excluded.name, description = excluded.description
		returning id, key, scope, name, description
	`, r.ID, r.Key, string(r.Scope), r.Name, r.Description).Scan(&r.ID, &r.Key, &r.Scope, &r.Name, &r.Description)
	if err != nil {
		return access.Role{}, mapWriteError(err)
	}
	return r, nil
}

func (s *Store) GetRole(ctx context.Context, id string) (access.Role, error) {
	return s.roleBy(ctx, `id`, id)
}

func (s *Store) GetRoleByKey(ctx context.Context, key string) (access.Role, error) {
	return s.roleBy(ctx, `key`, key)
}

func (s *Store) roleBy(ctx context.Context, column, value string) (access.Role, error) {
	var r access.Role
	err := s.q.QueryRowContext(ctx, `
		select id, key, scope, name, description
		from roles
		where `+column+` = $1
	`, value).Scan(&r.ID, &r.Key, &r.Scope, &r.Name, &r.Description)
	if err != nil {
		return access.Role{}, notFound(err)
	}
	return r, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]access.Role, error) {
	rows, err := s.q.QueryContext(ctx, `
		select id, key, scope, name, description
		from roles
		order by key
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []access.Role
	for rows.Next() {
		var r access.Role
		if err := rows.Scan(&r.ID, &r.Key, &r.Scope, &r.Name, &r.Description); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}
