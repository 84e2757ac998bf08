package access

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
)

const minPasswordLength = 8

// OnboardInput describes a new organization and its first administrator.
type OnboardInput struct {
	OrgName       string
	AdminEmail    string
	AdminPassword string
	AdminFullName string
}

type Onboarding struct {
	Organization Organization `json:"organization"`
	Admin        User         `json:"admin"`
}

// OnboardOrganization creates an organization and its org_admin user in one transaction.
// Either both exist afterwards or neither does.
func (a *Admin) OnboardOrganization(ctx context.Context, actor Actor, in OnboardInput) (Onboarding, error) {
	if !actor.IsSuperadmin() {
		return Onboarding{}, fmt.Errorf("%w: superadmin role required", ErrForbidden)
	}
	in.OrgName = strings.TrimSpace(in.OrgName)
	in.AdminEmail = NormalizeEmail(in.AdminEmail)
	in.AdminFullName = strings.TrimSpace(in.AdminFullName)
	switch {
	case in.OrgName == "":
		return Onboarding{}, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
	case in.AdminFullName == "":
		return Onboarding{}, fmt.Errorf("%w: admin full name is required", ErrInvalidInput)
	case len(in.AdminPassword) < minPasswordLength:
		return Onboarding{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	if _, err := mail.ParseAddress(in.AdminEmail); err != nil {
		return Onboarding{}, fmt.Errorf("%w: invalid admin email", ErrInvalidInput)
	}

	hash, err := a.hasher.Hash(in.AdminPassword)
	if err != nil {
		return Onboarding{}, fmt.Errorf("hash password: %w", err)
	}

	var result Onboarding
	err = a.store.WithinTx(ctx, func(tx Store) error {
		role, err := tx.GetRoleByKey(ctx, RoleOrgAdmin)
		if err != nil {
			return fmt.Errorf("load %s role: %w", RoleOrgAdmin, err)
		}
		org, err := tx.CreateOrganization(ctx, Organization{PlatformID: actor.PlatformID, Name: in.OrgName})
		if err != nil {
			return err
		}
		user, err := tx.CreateUser(ctx, User{
			PlatformID:   actor.PlatformID,
			OrgID:        org.ID,
			RoleID:       role.ID,
			Email:        in.AdminEmail,
			FullName:     in.AdminFullName,
			PasswordHash: hash,
			IsActive:     true,
		})
		if err != nil {
			return err
		}
		result = Onboarding{Organization: org, Admin: user}
		return nil
	})
	if err != nil {
		return Onboarding{}, err
	}
	return result, nil
}

// ListOrganizations lists the organizations of the superadmin's platform.
func (a *Admin) ListOrganizations(ctx context.Context, actor Actor) ([]Organization, error) {
	if !actor.IsSuperadmin() {
		return nil, fmt.Errorf("%w: superadmin role required", ErrForbidden)
	}
	return a.store.ListOrganizations(ctx, actor.PlatformID)
}

// NormalizeEmail lowercases and trims an email for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
