package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/mmazitov/forksy-backend/internal/crypto"
	"github.com/mmazitov/forksy-backend/internal/errs"
	"github.com/mmazitov/forksy-backend/internal/limiter"
	"github.com/mmazitov/forksy-backend/internal/model"
	"github.com/mmazitov/forksy-backend/internal/oauth"
	"github.com/mmazitov/forksy-backend/internal/repository"
	"github.com/mmazitov/forksy-backend/internal/token"
)

// MinPasswordLen is the shortest password accepted by ChangePassword.
const MinPasswordLen = 8

// TokenIssuer mints and verifies signed tokens.
type TokenIssuer interface {
	Mint(userID uuid.UUID, kind token.Kind, ttl time.Duration) (string, time.Time, error)
	Verify(tok string, kind token.Kind) (uuid.UUID, error)
}

// AuthService defines credential, federated and token operations.
type AuthService interface {
	// Register creates a credential account and signs it in.
	Register(ctx context.Context, email, password, name string) (model.Tokens, *model.User, error)
	// Login applies rate limiting by (email, ip) and issues tokens. rememberMe extends the refresh lifetime.
	Login(ctx context.Context, email, password string, rememberMe bool, ip string) (model.Tokens, *model.User, error)
	// Refresh exchanges a refresh token for a new access token. Tokens.RefreshToken is left empty.
	Refresh(ctx context.Context, refreshToken string) (model.Tokens, *model.User, error)
	// OAuthStart returns the consent URL of provider.
	OAuthStart(provider model.Provider, state string) (string, error)
	// OAuthLogin runs code exchange, account resolution and token issuance, in that order.
	OAuthLogin(ctx context.Context, provider model.Provider, code string) (model.Tokens, *model.User, error)
	// ChangePassword replaces the password of a credential account.
	ChangePassword(ctx context.Context, id model.Identity, current, next string) error
	// Me returns the caller's account.
	Me(ctx context.Context, id model.Identity) (*model.User, error)
	// UpdateProfile changes the caller's name and avatar.
	UpdateProfile(ctx context.Context, id model.Identity, p model.ProfilePatch) (*model.User, error)
}

// AuthConfig carries lifetimes the service decides on.
type AuthConfig struct {
	// RememberMeTTL is the refresh lifetime for logins with rememberMe set.
	RememberMeTTL time.Duration
	// Log receives failures that are hidden from the caller. Nil disables logging.
	Log *zap.Logger
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	resolver  IdentityResolver
	guard     Guard
	tokens    TokenIssuer
	providers *oauth.Registry
	lim       limiter.Limiter
	cfg       AuthConfig
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(
	users repository.UserRepository,
	resolver IdentityResolver,
	guard Guard,
	tokens TokenIssuer,
	providers *oauth.Registry,
	lim limiter.Limiter,
	cfg AuthConfig,
) *AuthServiceImpl {
	if cfg.RememberMeTTL <= 0 {
		cfg.RememberMeTTL = 30 * 24 * time.Hour
	}
	if lim == nil {
		lim = limiter.Nop{}
	}
	if providers == nil {
		providers = oauth.NewRegistry()
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	return &AuthServiceImpl{
		users: users, resolver: resolver, guard: guard, tokens: tokens,
		providers: providers, lim: lim, cfg: cfg,
	}
}

func normEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}

// Register hashes the password and creates the user. A taken email yields errs.ErrAlreadyExists.
func (s *AuthServiceImpl) Register(ctx context.Context, email, password, name string) (model.Tokens, *model.User, error) {
	email = normEmail(email)
	if !validEmail(email) {
		return model.Tokens{}, nil, fmt.Errorf("%w: invalid email", errs.ErrValidation)
	}
	if password == "" {
		return model.Tokens{}, nil, fmt.Errorf("%w: password is required", errs.ErrValidation)
	}
	hash, err := pkgcrypto.HashPassword(password)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return model.Tokens{}, nil, err
	}
	u := &model.User{
		ID:           uid,
		Role:         model.RoleUser,
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return model.Tokens{}, nil, fmt.Errorf("register: %w", err)
	}
	tokens, err := s.issue(u.ID, 0)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	return tokens, u, nil
}

// Login authenticates with rate limiting by (email, ip). Unknown emails,
// OAuth-only accounts and wrong passwords are indistinguishable to the caller.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string, rememberMe bool, ip string) (model.Tokens, *model.User, error) {
	email = normEmail(email)
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	if !allowed {
		return model.Tokens{}, nil, errs.ErrRateLimited
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, nil, err
	}
	ok := false
	if err == nil && u.HasPassword() {
		var verr error
		ok, verr = pkgcrypto.VerifyPassword(password, u.PasswordHash)
		if verr != nil {
			s.cfg.Log.Error("stored password hash unreadable", zap.String("user_id", u.ID.String()), zap.Error(verr))
		}
	}
	if !ok {
		blocked, _, ferr := s.lim.Failure(ctx, email, ipHash)
		if ferr != nil {
			s.cfg.Log.Error("record login failure", zap.Error(ferr))
		}
		if blocked {
			return model.Tokens{}, nil, errs.ErrRateLimited
		}
		return model.Tokens{}, nil, errs.ErrUnauthenticated
	}

	// best-effort reset
	if err := s.lim.Success(ctx, email, ipHash); err != nil {
		s.cfg.Log.Warn("reset login limiter", zap.String("user_id", u.ID.String()), zap.Error(err))
	}

	var refreshTTL time.Duration
	if rememberMe {
		refreshTTL = s.cfg.RememberMeTTL
	}
	tokens, err := s.issue(u.ID, refreshTTL)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	return tokens, u, nil
}

// Refresh verifies the refresh token, confirms the user still exists and mints an access token.
// Every failure is reported as errs.ErrUnauthenticated.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (model.Tokens, *model.User, error) {
	if refreshToken == "" {
		return model.Tokens{}, nil, fmt.Errorf("refresh: no token: %w", errs.ErrUnauthenticated)
	}
	uid, err := s.tokens.Verify(refreshToken, token.Refresh)
	if err != nil {
		return model.Tokens{}, nil, fmt.Errorf("refresh: %w: %w", errs.ErrUnauthenticated, err)
	}
	u, err := s.users.GetByID(ctx, uid)
	if errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, nil, fmt.Errorf("refresh: user gone: %w", errs.ErrUnauthenticated)
	}
	if err != nil {
		return model.Tokens{}, nil, err
	}
	access, exp, err := s.tokens.Mint(u.ID, token.Access, 0)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	return model.Tokens{AccessToken: access, AccessExpiresAt: exp}, u, nil
}

func (s *AuthServiceImpl) provider(name model.Provider) (oauth.Provider, error) {
	p, ok := s.providers.Get(name)
	if !ok {
		return nil, fmt.Errorf("provider %q: %w", name, errs.ErrNotFound)
	}
	return p, nil
}

// OAuthStart returns the consent URL for provider.
func (s *AuthServiceImpl) OAuthStart(name model.Provider, state string) (string, error) {
	p, err := s.provider(name)
	if err != nil {
		return "", err
	}
	return p.AuthCodeURL(state), nil
}

// OAuthLogin exchanges code, resolves the local account and issues tokens.
func (s *AuthServiceImpl) OAuthLogin(ctx context.Context, name model.Provider, code string) (model.Tokens, *model.User, error) {
	p, err := s.provider(name)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	profile, err := p.ExchangeCode(ctx, code)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	u, err := s.resolver.ResolveOrCreate(ctx, name, profile)
	if err != nil {
		return model.Tokens{}, nil, fmt.Errorf("resolve %s account: %w", name, err)
	}
	tokens, err := s.issue(u.ID, 0)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	return tokens, u, nil
}

// ChangePassword verifies the current password before storing the new one.
// Accounts without a password cannot use it.
func (s *AuthServiceImpl) ChangePassword(ctx context.Context, id model.Identity, current, next string) error {
	uid, err := s.guard.RequireAuth(id)
	if err != nil {
		return err
	}
	if len(next) < MinPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", errs.ErrValidation, MinPasswordLen)
	}
	u, err := s.users.GetByID(ctx, uid)
	if errors.Is(err, errs.ErrNotFound) {
		return errs.ErrUnauthenticated
	}
	if err != nil {
		return err
	}
	if !u.HasPassword() {
		return fmt.Errorf("account has no password: %w", errs.ErrUnauthenticated)
	}
	if ok, _ := pkgcrypto.VerifyPassword(current, u.PasswordHash); !ok {
		return fmt.Errorf("current password mismatch: %w", errs.ErrUnauthenticated)
	}
	hash, err := pkgcrypto.HashPassword(next)
	if err != nil {
		return err
	}
	return s.users.SetPasswordHash(ctx, uid, hash)
}

// Me loads the caller's account.
func (s *AuthServiceImpl) Me(ctx context.Context, id model.Identity) (*model.User, error) {
	uid, err := s.guard.RequireAuth(id)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, uid)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.ErrUnauthenticated
	}
	return u, err
}

// UpdateProfile applies the patch to the caller's account.
func (s *AuthServiceImpl) UpdateProfile(ctx context.Context, id model.Identity, p model.ProfilePatch) (*model.User, error) {
	uid, err := s.guard.RequireAuth(id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		n := strings.TrimSpace(*p.Name)
		p.Name = &n
	}
	u, err := s.users.UpdateProfile(ctx, uid, p)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.ErrUnauthenticated
	}
	return u, err
}

// issue mints an access/refresh pair. refreshTTL <= 0 selects the default.
func (s *AuthServiceImpl) issue(userID uuid.UUID, refreshTTL time.Duration) (model.Tokens, error) {
	access, aexp, err := s.tokens.Mint(userID, token.Access, 0)
	if err != nil {
		return model.Tokens{}, err
	}
	refresh, rexp, err := s.tokens.Mint(userID, token.Refresh, refreshTTL)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{
		AccessToken: access, AccessExpiresAt: aexp,
		RefreshToken: refresh, RefreshExpiresAt: rexp,
	}, nil
}
