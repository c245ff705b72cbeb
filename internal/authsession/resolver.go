package authsession

import (
	"context"
	"log/slog"

	"github.com/meridian-consulting/meridian-auth/internal/apiclient"
	"github.com/meridian-consulting/meridian-auth/internal/catalog"
)

// Identity is the raw identity carried by a credential, before the extended
// profile has been fetched.
type Identity struct {
	UserID string
	Email  string
}

// Principal is the resolved identity used for every authorization check.
type Principal struct {
	ID          string
	DisplayName string
	Role        catalog.Role
	Permissions catalog.PermissionSet
}

// ProfileFetcher loads the extended profile for the current credential.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context) (*apiclient.Profile, error)
}

// Resolver maps a raw identity to a Principal. It never returns an error:
// a profile store that is unreachable or inconsistent degrades the principal
// to the customer role instead of blocking the application in a loading
// state. Each call is a single best-effort attempt with no retries.
type Resolver struct {
	profiles ProfileFetcher
	logger   *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(profiles ProfileFetcher, logger *slog.Logger) *Resolver {
	return &Resolver{profiles: profiles, logger: logger}
}

// Resolve produces the Principal for the given identity.
func (r *Resolver) Resolve(ctx context.Context, ident Identity) Principal {
	profile, err := r.profiles.FetchProfile(ctx)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("profile fetch failed, degrading to customer",
				slog.String("user_id", ident.UserID), slog.Any("error", err))
		}
		return Principal{
			ID:          ident.UserID,
			DisplayName: ident.Email,
			Role:        catalog.RoleCustomer,
			Permissions: catalog.DefaultPermissions(catalog.RoleCustomer),
		}
	}

	role := catalog.Role(profile.Role)
	if !role.Valid() {
		role = catalog.RoleCustomer
	}
	displayName := profile.DisplayName
	if displayName == "" {
		displayName = profile.Email
	}
	if displayName == "" {
		displayName = ident.Email
	}
	id := profile.ID
	if id == "" {
		id = ident.UserID
	}
	return Principal{
		ID:          id,
		DisplayName: displayName,
		Role:        role,
		Permissions: catalog.DefaultPermissions(role),
	}
}
