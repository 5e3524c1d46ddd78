package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/mmazitov/forksy-backend/internal/errs"
	"github.com/mmazitov/forksy-backend/internal/model"
)

// UserRepo implements UserRepository and RoleAdmin using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, role, COALESCE(email, ''), COALESCE(name, ''), COALESCE(avatar, ''),
COALESCE(password_hash, ''), COALESCE(google_id, ''), COALESCE(github_id, ''), COALESCE(facebook_id, ''),
created_at, updated_at`

// providerColumn maps a provider to its id column. Only whitelisted names reach SQL.
func providerColumn(p model.Provider) (string, error) {
	switch p {
	case model.ProviderGoogle:
		return "google_id", nil
	case model.ProviderGitHub:
		return "github_id", nil
	case model.ProviderFacebook:
		return "facebook_id", nil
	}
	return "", fmt.Errorf("%w: unknown provider %q", errs.ErrValidation, p)
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var role string
	err := row.Scan(&u.ID, &role, &u.Email, &u.Name, &u.Avatar, &u.PasswordHash,
		&u.GoogleID, &u.GitHubID, &u.FacebookID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

// Create inserts a new user row. Empty strings are stored as NULL so the
// UNIQUE indexes on email and provider ids only apply to present values.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	const q = `
INSERT INTO users (id, role, email, name, avatar, password_hash, google_id, github_id, facebook_id)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''))
RETURNING created_at, updated_at`
	err := r.db.Pool.QueryRow(ctx, q, u.ID, string(u.Role), u.Email, u.Name, u.Avatar, u.PasswordHash,
		u.GoogleID, u.GitHubID, u.FacebookID).Scan(&u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByEmail selects a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, email))
}

// GetByExternalID selects a user by provider-specific id.
func (r *UserRepo) GetByExternalID(ctx context.Context, provider model.Provider, externalID string) (*model.User, error) {
	col, err := providerColumn(provider)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + userColumns + ` FROM users WHERE ` + col + `=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, externalID))
}

// GetRole selects only the role column.
func (r *UserRepo) GetRole(ctx context.Context, id uuid.UUID) (model.Role, error) {
	var role string
	err := r.db.Pool.QueryRow(ctx, `SELECT role FROM users WHERE id=$1`, id).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errs.ErrNotFound
		}
		return "", err
	}
	return model.Role(role), nil
}

// SetPasswordHash replaces the password hash.
func (r *UserRepo) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	const q = `UPDATE users SET password_hash=$2, updated_at=now() WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// UpdateProfile applies non-nil fields of p.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, p model.ProfilePatch) (*model.User, error) {
	q := `
UPDATE users SET
  name = CASE WHEN $2::boolean THEN NULLIF($3, '') ELSE name END,
  avatar = CASE WHEN $4::boolean THEN NULLIF($5, '') ELSE avatar END,
  updated_at = now()
WHERE id=$1
RETURNING ` + userColumns
	return scanUser(r.db.Pool.QueryRow(ctx, q, id,
		p.Name != nil, deref(p.Name), p.Avatar != nil, deref(p.Avatar)))
}

// SetRole assigns a role by email. Used by operator tooling only.
func (r *UserRepo) SetRole(ctx context.Context, email string, role model.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", errs.ErrValidation, role)
	}
	const q = `UPDATE users SET role=$2, updated_at=now() WHERE email=$1`
	tag, err := r.db.Pool.Exec(ctx, q, email, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
