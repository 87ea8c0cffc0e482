package rbac

import (
	"context"
	"errors"

	membership "collab-control-plane/backend/internal/membership/domain"
	"collab-control-plane/backend/internal/store"
)

// ErrScopeNotFound is returned by a RoleResolver when the org or project being checked does not exist.
var ErrScopeNotFound = errors.New("rbac: scope not found")

// RoleResolver looks up an actor's role in an org or a project. A missing role is
// membership.RoleNone with a nil error; a missing org or project is ErrScopeNotFound.
type RoleResolver interface {
	OrgRole(ctx context.Context, orgID, userID string) (membership.Role, error)
	// ProjectRole also returns the project's owner and org.
	ProjectRole(ctx context.Context, projectID, userID string) (role membership.Role, ownerID, orgID string, err error)
}

// StoreResolver resolves roles from committed state.
type StoreResolver struct {
	Reader store.Reader
}

func (r StoreResolver) OrgRole(ctx context.Context, orgID, userID string) (membership.Role, error) {
	o, err := r.Reader.GetOrganization(ctx, orgID)
	if errors.Is(err, store.ErrNotFound) {
		return membership.RoleNone, ErrScopeNotFound
	}
	if err != nil {
		return membership.RoleNone, err
	}
	role, _ := o.RoleOf(userID)
	return role, nil
}

func (r StoreResolver) ProjectRole(ctx context.Context, projectID, userID string) (membership.Role, string, string, error) {
	p, err := r.Reader.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return membership.RoleNone, "", "", ErrScopeNotFound
	}
	if err != nil {
		return membership.RoleNone, "", "", err
	}
	role, _ := p.RoleOf(userID)
	return role, p.CreatedBy, p.OrgID, nil
}
