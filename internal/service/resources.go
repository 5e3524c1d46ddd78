package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/mmazitov/forksy-backend/internal/errs"
	"github.com/mmazitov/forksy-backend/internal/model"
	"github.com/mmazitov/forksy-backend/internal/repository"
)

// ResourceService defines operations over user-owned products and dishes.
type ResourceService interface {
	// Create stores a new resource owned by the caller.
	Create(ctx context.Context, id model.Identity, r model.Resource) (*model.Resource, error)
	// Get returns a resource. Anonymous callers are allowed.
	Get(ctx context.Context, kind model.ResourceKind, resID uuid.UUID) (*model.Resource, error)
	// List returns resources newest first. Anonymous callers are allowed.
	List(ctx context.Context, f model.ResourceFilter) ([]model.Resource, error)
	// FindByName returns the newest resource with the given name. Anonymous callers are allowed.
	FindByName(ctx context.Context, kind model.ResourceKind, name string) (*model.Resource, error)
	// Update patches a resource; only its owner or an admin may do so.
	Update(ctx context.Context, id model.Identity, kind model.ResourceKind, resID uuid.UUID, p model.ResourcePatch) (*model.Resource, error)
	// Delete removes a resource; only its owner or an admin may do so.
	Delete(ctx context.Context, id model.Identity, kind model.ResourceKind, resID uuid.UUID) (*model.Resource, error)
}

type ResourceServiceImpl struct {
	repo  repository.ResourceRepository
	guard Guard
}

// NewResourceService constructs ResourceService.
func NewResourceService(repo repository.ResourceRepository, guard Guard) *ResourceServiceImpl {
	return &ResourceServiceImpl{repo: repo, guard: guard}
}

func validKind(k model.ResourceKind) error {
	if k != model.KindProduct && k != model.KindDish {
		return fmt.Errorf("%w: unknown resource kind %q", errs.ErrValidation, k)
	}
	return nil
}

// Create validates input and sets the owner to the caller.
func (s *ResourceServiceImpl) Create(ctx context.Context, id model.Identity, r model.Resource) (*model.Resource, error) {
	uid, err := s.guard.RequireAuth(id)
	if err != nil {
		return nil, err
	}
	if err := validKind(r.Kind); err != nil {
		return nil, err
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return nil, fmt.Errorf("%w: name is required", errs.ErrValidation)
	}
	if r.ID, err = uuid.NewV4(); err != nil {
		return nil, err
	}
	r.OwnerID = uid
	if err := s.repo.Create(ctx, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *ResourceServiceImpl) Get(ctx context.Context, kind model.ResourceKind, resID uuid.UUID) (*model.Resource, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, kind, resID)
}

func (s *ResourceServiceImpl) List(ctx context.Context, f model.ResourceFilter) ([]model.Resource, error) {
	if err := validKind(f.Kind); err != nil {
		return nil, err
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, fmt.Errorf("%w: negative limit/offset", errs.ErrValidation)
	}
	return s.repo.List(ctx, f)
}

func (s *ResourceServiceImpl) FindByName(ctx context.Context, kind model.ResourceKind, name string) (*model.Resource, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", errs.ErrValidation)
	}
	return s.repo.FindByName(ctx, kind, name)
}

// Update loads the resource, runs the guard, then writes.
func (s *ResourceServiceImpl) Update(ctx context.Context, id model.Identity, kind model.ResourceKind, resID uuid.UUID, p model.ResourcePatch) (*model.Resource, error) {
	if _, err := s.guard.RequireAuth(id); err != nil {
		return nil, err
	}
	if p.Name != nil {
		n := strings.TrimSpace(*p.Name)
		if n == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", errs.ErrValidation)
		}
		p.Name = &n
	}
	cur, err := s.Get(ctx, kind, resID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.RequireOwnerOrAdmin(ctx, id, cur); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, kind, resID, p)
}

// Delete loads the resource, runs the guard, then deletes.
func (s *ResourceServiceImpl) Delete(ctx context.Context, id model.Identity, kind model.ResourceKind, resID uuid.UUID) (*model.Resource, error) {
	if _, err := s.guard.RequireAuth(id); err != nil {
		return nil, err
	}
	cur, err := s.Get(ctx, kind, resID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.RequireOwnerOrAdmin(ctx, id, cur); err != nil {
		return nil, err
	}
	return s.repo.Delete(ctx, kind, resID)
}
