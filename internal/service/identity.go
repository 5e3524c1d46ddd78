// Package service contains application services for identity, authentication and owned resources.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/mmazitov/forksy-backend/internal/errs"
	"github.com/mmazitov/forksy-backend/internal/model"
	"github.com/mmazitov/forksy-backend/internal/repository"
)

// IdentityResolver maps verified external profiles to local users.
type IdentityResolver interface {
	// ResolveOrCreate returns the user linked to (provider, profile.ExternalID), creating it on first sight.
	// Repeated and concurrent calls for the same pair yield the same user.
	ResolveOrCreate(ctx context.Context, provider model.Provider, p model.Profile) (*model.User, error)
	// Role returns the current role of a user, read fresh from storage.
	Role(ctx context.Context, userID uuid.UUID) (model.Role, error)
}

type IdentityResolverImpl struct {
	users repository.UserRepository
}

// NewIdentityResolver constructs IdentityResolver over a user repository.
func NewIdentityResolver(users repository.UserRepository) *IdentityResolverImpl {
	return &IdentityResolverImpl{users: users}
}

// ResolveOrCreate looks the user up by provider id and creates it on a miss.
// A uniqueness violation on insert means a concurrent login won the race, so
// the existing row is fetched instead. If the conflict was on email (the
// address belongs to another account), the new account is created without it.
func (s *IdentityResolverImpl) ResolveOrCreate(ctx context.Context, provider model.Provider, p model.Profile) (*model.User, error) {
	if p.ExternalID == "" {
		return nil, fmt.Errorf("%w: empty external id", errs.ErrValidation)
	}
	u, err := s.users.GetByExternalID(ctx, provider, p.ExternalID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	uid, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	nu := &model.User{
		ID:     uid,
		Role:   model.RoleUser,
		Email:  normEmail(p.Email),
		Name:   p.DisplayName,
		Avatar: p.AvatarURL,
	}
	nu.SetExternalID(provider, p.ExternalID)

	for {
		err = s.users.Create(ctx, nu)
		if err == nil {
			return nu, nil
		}
		if !errors.Is(err, errs.ErrAlreadyExists) {
			return nil, err
		}
		existing, gerr := s.users.GetByExternalID(ctx, provider, p.ExternalID)
		if gerr == nil {
			return existing, nil
		}
		if !errors.Is(gerr, errs.ErrNotFound) || nu.Email == "" {
			return nil, err
		}
		nu.Email = ""
	}
}

// Role returns the user's role.
func (s *IdentityResolverImpl) Role(ctx context.Context, userID uuid.UUID) (model.Role, error) {
	return s.users.GetRole(ctx, userID)
}
