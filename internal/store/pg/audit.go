package pg

import (
	"context"
	"fmt"
	"strings"
	"time"

	"orgguard.dev/internal/audit"
	"orgguard.dev/internal/ids"
)

func (s *Store) AppendAudit(ctx context.Context, e audit.Entry) error {
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.q.ExecContext(ctx, `
		insert into audit_logs (
			id, created_at, request_id, platform_id, org_id, user_id, role_key,
			module_key, action, method, path, status_code, ip, user_agent, duration_ms
		) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, e.ID, e.CreatedAt, nullIfEmpty(e.RequestID), e.PlatformID, nullIfEmpty(e.OrgID), e.UserID, e.RoleKey,
		e.ModuleKey, e.Action, e.Method, e.Path, e.StatusCode, e.IP, e.UserAgent, e.DurationMS)
	return err
}

// ListAudit returns the newest entries of one tenant.
func (s *Store) ListAudit(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	f = f.Normalize()
	var (
		clauses = []string{"platform_id = $1", "org_id = $2"}
		args    = []any{f.PlatformID, f.OrgID}
	)
	if f.ModuleKey != "" {
		args = append(args, f.ModuleKey)
		clauses = append(clauses, fmt.Sprintf("module_key = $%d", len(args)))
	}
	if f.Action != "" {
		args = append(args, f.Action)
		clauses = append(clauses, fmt.Sprintf("action = $%d", len(args)))
	}
	args = append(args, f.Limit)
	query := fmt.Sprintf(`
		select id, created_at, coalesce(request_id, ''), platform_id, coalesce(org_id, ''), user_id, role_key,
		       module_key, action, method, path, status_code, ip, user_agent, duration_ms
		from audit_logs
		where %s
		order by created_at desc, id desc
		limit $%d
	`, strings.Join(clauses, " and "), len(args))

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.RequestID, &e.PlatformID, &e.OrgID, &e.UserID, &e.RoleKey,
			&e.ModuleKey, &e.Action, &e.Method, &e.Path, &e.StatusCode, &e.IP, &e.UserAgent, &e.DurationMS); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
