// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/mmazitov/forksy-backend/internal/model"
)

// UserRepository provides access to user accounts.
type UserRepository interface {
	// Create inserts a new user. A taken email or provider id yields errs.ErrAlreadyExists.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// GetByExternalID loads a user by the id assigned to it by provider.
	GetByExternalID(ctx context.Context, provider model.Provider, externalID string) (*model.User, error)
	// GetRole returns the current role of a user.
	GetRole(ctx context.Context, id uuid.UUID) (model.Role, error)
	// SetPasswordHash replaces the stored password hash.
	SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	// UpdateProfile applies a partial profile update and returns the fresh row.
	UpdateProfile(ctx context.Context, id uuid.UUID, p model.ProfilePatch) (*model.User, error)
}

// RoleAdmin is the operator-only write surface for roles. Request handlers never receive it.
type RoleAdmin interface {
	// SetRole assigns role to the user with the given email.
	SetRole(ctx context.Context, email string, role model.Role) error
}

// ResourceRepository provides access to user-owned resources.
type ResourceRepository interface {
	// Create inserts a resource.
	Create(ctx context.Context, r *model.Resource) error
	// Get loads a resource of the given kind.
	Get(ctx context.Context, kind model.ResourceKind, id uuid.UUID) (*model.Resource, error)
	// List returns resources newest first.
	List(ctx context.Context, f model.ResourceFilter) ([]model.Resource, error)
	// FindByName returns the newest resource whose name equals name, ignoring case.
	FindByName(ctx context.Context, kind model.ResourceKind, name string) (*model.Resource, error)
	// Update applies a partial update and returns the fresh row.
	Update(ctx context.Context, kind model.ResourceKind, id uuid.UUID, p model.ResourcePatch) (*model.Resource, error)
	// Delete removes a resource and returns the deleted row.
	Delete(ctx context.Context, kind model.ResourceKind, id uuid.UUID) (*model.Resource, error)
}
