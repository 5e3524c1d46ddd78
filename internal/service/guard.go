package service

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"

	"github.com/mmazitov/forksy-backend/internal/errs"
	"github.com/mmazitov/forksy-backend/internal/model"
)

// Owned is anything with a single owning user.
type Owned interface {
	Owner() uuid.UUID
}

// RoleLookup reads a user's current role.
type RoleLookup interface {
	Role(ctx context.Context, userID uuid.UUID) (model.Role, error)
}

// Guard enforces the owner-or-admin policy. Callers must invoke it, and get
// nil back, before starting the mutation it protects.
type Guard interface {
	// RequireAuth returns the caller's user id or errs.ErrUnauthenticated.
	RequireAuth(id model.Identity) (uuid.UUID, error)
	// RequireOwnerOrAdmin allows the owner of res or any admin.
	RequireOwnerOrAdmin(ctx context.Context, id model.Identity, res Owned) error
}

type GuardImpl struct {
	roles RoleLookup
}

// NewGuard constructs Guard. Roles are looked up on every check, never cached.
func NewGuard(roles RoleLookup) *GuardImpl { return &GuardImpl{roles: roles} }

func (g *GuardImpl) RequireAuth(id model.Identity) (uuid.UUID, error) {
	if id.IsAnonymous() {
		return uuid.Nil, errs.ErrUnauthenticated
	}
	return id.UserID, nil
}

func (g *GuardImpl) RequireOwnerOrAdmin(ctx context.Context, id model.Identity, res Owned) error {
	uid, err := g.RequireAuth(id)
	if err != nil {
		return err
	}
	if res.Owner() == uid {
		return nil
	}
	role, err := g.roles.Role(ctx, uid)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		// the account behind a still-valid token is gone
		return errs.ErrUnauthenticated
	case err != nil:
		return err
	case role == model.RoleAdmin:
		return nil
	}
	return errs.ErrUnauthorized
}
