package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/mmazitov/forksy-backend/internal/errs"
	"github.com/mmazitov/forksy-backend/internal/model"
)

// ResourceRepo implements ResourceRepository using PostgreSQL.
type ResourceRepo struct{ db *DB }

// NewResourceRepo constructs a resource repository.
func NewResourceRepo(db *DB) *ResourceRepo { return &ResourceRepo{db: db} }

const resourceColumns = `id, kind, owner_id, name, COALESCE(category, ''), COALESCE(description, ''), created_at, updated_at`

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func scanResource(row pgx.Row) (*model.Resource, error) {
	var res model.Resource
	var kind string
	err := row.Scan(&res.ID, &kind, &res.OwnerID, &res.Name, &res.Category, &res.Description,
		&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	res.Kind = model.ResourceKind(kind)
	return &res, nil
}

// Create inserts a resource and fills timestamps.
func (r *ResourceRepo) Create(ctx context.Context, res *model.Resource) error {
	const q = `
INSERT INTO resources (id, kind, owner_id, name, category, description)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
RETURNING created_at, updated_at`
	err := r.db.Pool.QueryRow(ctx, q, res.ID, string(res.Kind), res.OwnerID, res.Name,
		res.Category, res.Description).Scan(&res.CreatedAt, &res.UpdatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// Get loads a resource of the given kind.
func (r *ResourceRepo) Get(ctx context.Context, kind model.ResourceKind, id uuid.UUID) (*model.Resource, error) {
	q := `SELECT ` + resourceColumns + ` FROM resources WHERE id=$1 AND kind=$2`
	return scanResource(r.db.Pool.QueryRow(ctx, q, id, string(kind)))
}

// List returns resources of f.Kind, newest first.
func (r *ResourceRepo) List(ctx context.Context, f model.ResourceFilter) ([]model.Resource, error) {
	q := `SELECT ` + resourceColumns + ` FROM resources WHERE kind=$1`
	args := []any{string(f.Kind)}
	if f.OwnerID != uuid.Nil {
		args = append(args, f.OwnerID)
		q += ` AND owner_id=$` + strconv.Itoa(len(args))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		q += ` AND category=$` + strconv.Itoa(len(args))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+likeEscaper.Replace(s)+"%")
		q += ` AND name ILIKE $` + strconv.Itoa(len(args))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	q += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// likeEscaper quotes LIKE wildcards; backslash is the default escape character.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// FindByName selects the newest resource of kind named name, ignoring case.
func (r *ResourceRepo) FindByName(ctx context.Context, kind model.ResourceKind, name string) (*model.Resource, error) {
	q := `SELECT ` + resourceColumns + ` FROM resources WHERE kind=$1 AND lower(name)=lower($2) ORDER BY created_at DESC LIMIT 1`
	return scanResource(r.db.Pool.QueryRow(ctx, q, string(kind), name))
}

// Update applies non-nil fields of p. owner_id is never written.
func (r *ResourceRepo) Update(ctx context.Context, kind model.ResourceKind, id uuid.UUID, p model.ResourcePatch) (*model.Resource, error) {
	q := `
UPDATE resources SET
  name = COALESCE($3, name),
  category = CASE WHEN $4::boolean THEN NULLIF($5, '') ELSE category END,
  description = CASE WHEN $6::boolean THEN NULLIF($7, '') ELSE description END,
  updated_at = now()
WHERE id=$1 AND kind=$2
RETURNING ` + resourceColumns
	return scanResource(r.db.Pool.QueryRow(ctx, q, id, string(kind),
		p.Name, p.Category != nil, deref(p.Category), p.Description != nil, deref(p.Description)))
}

// Delete removes a resource and returns the deleted row.
func (r *ResourceRepo) Delete(ctx context.Context, kind model.ResourceKind, id uuid.UUID) (*model.Resource, error) {
	q := `DELETE FROM resources WHERE id=$1 AND kind=$2 RETURNING ` + resourceColumns
	return scanResource(r.db.Pool.QueryRow(ctx, q, id, string(kind)))
}
