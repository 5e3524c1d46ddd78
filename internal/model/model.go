// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role is the coarse privilege level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// Provider names an external identity provider.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderGitHub   Provider = "github"
	ProviderFacebook Provider = "facebook"
)

// Providers lists every supported provider in a stable order.
var Providers = []Provider{ProviderGoogle, ProviderGitHub, ProviderFacebook}

// User is an account stored on the server. Empty strings stand for NULL columns.
type User struct {
	ID           uuid.UUID
	Role         Role
	Email        string
	Name         string
	Avatar       string
	PasswordHash string // empty for OAuth-only accounts
	GoogleID     string
	GitHubID     string
	FacebookID   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ExternalID returns the user's id at provider p, or "" if not linked.
func (u *User) ExternalID(p Provider) string {
	switch p {
	case ProviderGoogle:
		return u.GoogleID
	case ProviderGitHub:
		return u.GitHubID
	case ProviderFacebook:
		return u.FacebookID
	}
	return ""
}

// SetExternalID links the user to id at provider p.
func (u *User) SetExternalID(p Provider, id string) {
	switch p {
	case ProviderGoogle:
		u.GoogleID = id
	case ProviderGitHub:
		u.GitHubID = id
	case ProviderFacebook:
		u.FacebookID = id
	}
}

// HasPassword reports whether the account can sign in with credentials.
func (u *User) HasPassword() bool { return u.PasswordHash != "" }

// Profile is a verified external profile returned by an identity provider.
type Profile struct {
	ExternalID  string
	Email       string
	DisplayName string
	AvatarURL   string
}

// Tokens collects issued access/refresh tokens.
type Tokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Identity is the request-scoped caller identity. The zero value is anonymous.
type Identity struct {
	UserID uuid.UUID
}

// Anonymous is the identity of a caller without a valid access token.
var Anonymous = Identity{}

// Authenticated returns the identity of a verified caller.
func Authenticated(id uuid.UUID) Identity { return Identity{UserID: id} }

// IsAnonymous reports whether no user is attached.
func (i Identity) IsAnonymous() bool { return i.UserID == uuid.Nil }

// ResourceKind tells owned resource types apart.
type ResourceKind string

const (
	KindProduct ResourceKind = "product"
	KindDish    ResourceKind = "dish"
)

// Resource is a user-owned record. OwnerID is set at creation and never changes.
type Resource struct {
	ID          uuid.UUID
	Kind        ResourceKind
	OwnerID     uuid.UUID
	Name        string
	Category    string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Owner implements the ownership contract checked by the authorization guard.
func (r *Resource) Owner() uuid.UUID { return r.OwnerID }

// ResourcePatch carries optional field updates; nil means unchanged.
type ResourcePatch struct {
	Name        *string
	Category    *string
	Description *string
}

// ResourceFilter narrows resource listings.
type ResourceFilter struct {
	Kind     ResourceKind
	OwnerID  uuid.UUID // uuid.Nil means any owner
	Category string    // exact match; empty means any
	Search   string    // case-insensitive substring of the name
	Limit    int
	Offset   int
}

// ProfilePatch carries optional profile updates; nil means unchanged.
type ProfilePatch struct {
	Name   *string
	Avatar *string
}
