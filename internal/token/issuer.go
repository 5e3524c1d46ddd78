// Package token mints and verifies the signed access and refresh tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// Kind selects signing material, default TTL and the expected "typ" claim.
type Kind string

const (
	Access  Kind = "access"
	Refresh Kind = "refresh"
)

// Verification failures. Expired is kept apart so callers can treat it as
// "please refresh" while malformed or forged tokens are treated as hostile.
var (
	ErrExpired          = errors.New("token expired")
	ErrMalformed        = errors.New("token malformed")
	ErrSignatureInvalid = errors.New("token signature invalid")
)

// Config holds secrets and default lifetimes.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte // falls back to AccessSecret when empty
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Issuer signs and verifies HS256 JWTs. It is safe for concurrent use.
type Issuer struct {
	keys map[Kind][]byte
	ttl  map[Kind]time.Duration
	now  func() time.Time
}

type claims struct {
	Kind Kind `json:"typ"`
	jwt.RegisteredClaims
}

// NewIssuer validates cfg and constructs an Issuer.
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.AccessSecret) == 0 {
		return nil, errors.New("token: access secret required")
	}
	refresh := cfg.RefreshSecret
	if len(refresh) == 0 {
		refresh = cfg.AccessSecret
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 24 * time.Hour
	}
	return &Issuer{
		keys: map[Kind][]byte{Access: cfg.AccessSecret, Refresh: refresh},
		ttl:  map[Kind]time.Duration{Access: cfg.AccessTTL, Refresh: cfg.RefreshTTL},
		now:  time.Now,
	}, nil
}

// WithClock returns a copy of the issuer that reads time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

// DefaultTTL returns the configured lifetime for kind.
func (i *Issuer) DefaultTTL(kind Kind) time.Duration { return i.ttl[kind] }

// Mint signs a token for userID. ttl <= 0 selects the kind's default.
// The returned expiry is exactly the one encoded in the token.
func (i *Issuer) Mint(userID uuid.UUID, kind Kind, ttl time.Duration) (string, time.Time, error) {
	key, ok := i.keys[kind]
	if !ok {
		return "", time.Time{}, fmt.Errorf("token: unknown kind %q", kind)
	}
	if userID == uuid.Nil {
		return "", time.Time{}, errors.New("token: empty subject")
	}
	if ttl <= 0 {
		ttl = i.ttl[kind]
	}
	// NumericDate has second precision; truncate so the reported expiry matches the claim.
	now := i.now().UTC().Truncate(time.Second)
	exp := now.Add(ttl)
	c := claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks signature, expiry and kind, then returns the subject.
// It performs no I/O.
func (i *Issuer) Verify(tokenStr string, kind Kind) (uuid.UUID, error) {
	key, ok := i.keys[kind]
	if !ok {
		return uuid.Nil, fmt.Errorf("token: unknown kind %q", kind)
	}

	var c claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	tok, err := parser.ParseWithClaims(tokenStr, &c, func(*jwt.Token) (any, error) { return key, nil })
	switch {
	case err == nil:
	case tok != nil && tok.Method != nil && tok.Method.Alg() != jwt.SigningMethodHS256.Alg():
		// jwt reports a disallowed algorithm as a signature failure
		return uuid.Nil, fmt.Errorf("%w: unexpected alg %s", ErrMalformed, tok.Method.Alg())
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return uuid.Nil, ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return uuid.Nil, ErrExpired
	default:
		return uuid.Nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if c.Kind != kind {
		return uuid.Nil, fmt.Errorf("%w: want %s token, got %q", ErrMalformed, kind, c.Kind)
	}
	id, err := uuid.FromString(c.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrMalformed)
	}
	return id, nil
}
