package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	graphql "github.com/graph-gophers/graphql-go"
	"go.uber.org/zap"

	"github.com/mmazitov/forksy-backend/internal/errs"
	"github.com/mmazitov/forksy-backend/internal/model"
	"github.com/mmazitov/forksy-backend/internal/service"
	"github.com/mmazitov/forksy-backend/internal/token"
)

// resolver serves both Query and Mutation root fields.
type resolver struct {
	auth      service.AuthService
	resources service.ResourceService
	cookies   cookiePolicy
	log       *zap.Logger
}

// NewSchema parses the API schema and binds it to the services.
func NewSchema(auth service.AuthService, resources service.ResourceService, log *zap.Logger, secureCookies bool) (*graphql.Schema, error) {
	res := &resolver{
		auth:      auth,
		resources: resources,
		cookies:   cookiePolicy{secure: secureCookies, now: time.Now},
		log:       log,
	}
	return graphql.ParseSchema(schemaSDL, res,
		graphql.MaxDepth(10),
		graphql.MaxParallelism(10),
		graphql.Logger(panicLogger{log: log}),
	)
}

func parseID(id graphql.ID) (uuid.UUID, error) {
	u, err := uuid.FromString(string(id))
	if err != nil || u == uuid.Nil {
		return uuid.Nil, badInput("invalid id")
	}
	return u, nil
}

// session sets the refresh cookie and builds the response payload.
func (res *resolver) session(ctx context.Context, t model.Tokens, u *model.User) *authPayloadResolver {
	if t.RefreshToken != "" {
		exchangeFrom(ctx).setCookie(res.cookies.refresh(t.RefreshToken, t.RefreshExpiresAt))
	}
	return &authPayloadResolver{token: t.AccessToken, user: &userResolver{u: u}}
}

// ---- auth ----

func (res *resolver) Register(ctx context.Context, args struct {
	Email    string
	Password string
	Name     *string
}) (*authPayloadResolver, error) {
	var name string
	if args.Name != nil {
		name = *args.Name
	}
	t, u, err := res.auth.Register(ctx, args.Email, args.Password, name)
	if err != nil {
		return nil, res.fail(ctx, "register", err)
	}
	return res.session(ctx, t, u), nil
}

func (res *resolver) Login(ctx context.Context, args struct {
	Email      string
	Password   string
	RememberMe *bool
}) (*authPayloadResolver, error) {
	remember := args.RememberMe != nil && *args.RememberMe
	t, u, err := res.auth.Login(ctx, args.Email, args.Password, remember, exchangeFrom(ctx).clientIP())
	if err != nil {
		return nil, res.fail(ctx, "login", err)
	}
	return res.session(ctx, t, u), nil
}

// RefreshToken reads the refresh cookie and returns a new access token.
// Any failure clears the cookie.
func (res *resolver) RefreshToken(ctx context.Context) (*authPayloadResolver, error) {
	ex := exchangeFrom(ctx)
	t, u, err := res.auth.Refresh(ctx, ex.cookie(RefreshCookie))
	if err != nil {
		ex.setCookie(res.cookies.clearRefresh())
		if errors.Is(err, token.ErrSignatureInvalid) || errors.Is(err, token.ErrMalformed) {
			res.log.Warn("rejected refresh token", zap.Error(err), zap.String("peer", ex.clientIP()))
		}
		return nil, res.fail(ctx, "refreshToken", err)
	}
	return res.session(ctx, t, u), nil
}

func (res *resolver) Logout(ctx context.Context) bool {
	exchangeFrom(ctx).setCookie(res.cookies.clearRefresh())
	return true
}

func (res *resolver) ChangePassword(ctx context.Context, args struct {
	CurrentPassword string
	NewPassword     string
}) (bool, error) {
	if err := res.auth.ChangePassword(ctx, IdentityFrom(ctx), args.CurrentPassword, args.NewPassword); err != nil {
		return false, res.fail(ctx, "changePassword", err)
	}
	return true, nil
}

func (res *resolver) HandleOAuthCallback(ctx context.Context, args struct {
	Provider string
	Code     string
}) (*authPayloadResolver, error) {
	t, u, err := res.auth.OAuthLogin(ctx, model.Provider(args.Provider), args.Code)
	if err != nil {
		return nil, res.fail(ctx, "handleOAuthCallback", err)
	}
	return res.session(ctx, t, u), nil
}

func (res *resolver) UpdateProfile(ctx context.Context, args struct {
	Name   *string
	Avatar *string
}) (*userResolver, error) {
	u, err := res.auth.UpdateProfile(ctx, IdentityFrom(ctx), model.ProfilePatch{Name: args.Name, Avatar: args.Avatar})
	if err != nil {
		return nil, res.fail(ctx, "updateProfile", err)
	}
	return &userResolver{u: u}, nil
}

func (res *resolver) Me(ctx context.Context) (*userResolver, error) {
	u, err := res.auth.Me(ctx, IdentityFrom(ctx))
	if err != nil {
		return nil, res.fail(ctx, "me", err)
	}
	return &userResolver{u: u}, nil
}

// ---- resources ----

type listArgs struct {
	Category *string
	Search   *string
	Limit    *int32
	Offset   *int32
	UserID   *graphql.ID
}

type createArgs struct {
	Name        string
	Category    *string
	Description *string
}

type updateArgs struct {
	ID          graphql.ID
	Name        *string
	Category    *string
	Description *string
}

func (res *resolver) get(ctx context.Context, kind model.ResourceKind, id graphql.ID) (*resourceResolver, error) {
	rid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	r, err := res.resources.Get(ctx, kind, rid)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, res.fail(ctx, string(kind), err)
	}
	return &resourceResolver{r: r}, nil
}

func (res *resolver) list(ctx context.Context, kind model.ResourceKind, args listArgs) ([]*resourceResolver, error) {
	f := model.ResourceFilter{Kind: kind}
	if args.Category != nil {
		f.Category = *args.Category
	}
	if args.Search != nil {
		f.Search = *args.Search
	}
	if args.Limit != nil {
		f.Limit = int(*args.Limit)
	}
	if args.Offset != nil {
		f.Offset = int(*args.Offset)
	}
	if args.UserID != nil {
		owner, err := parseID(*args.UserID)
		if err != nil {
			return nil, err
		}
		f.OwnerID = owner
	}
	rs, err := res.resources.List(ctx, f)
	if err != nil {
		return nil, res.fail(ctx, string(kind)+"s", err)
	}
	out := make([]*resourceResolver, len(rs))
	for i := range rs {
		out[i] = &resourceResolver{r: &rs[i]}
	}
	return out, nil
}

func (res *resolver) create(ctx context.Context, kind model.ResourceKind, args createArgs) (*resourceResolver, error) {
	in := model.Resource{Kind: kind, Name: args.Name}
	if args.Category != nil {
		in.Category = *args.Category
	}
	if args.Description != nil {
		in.Description = *args.Description
	}
	r, err := res.resources.Create(ctx, IdentityFrom(ctx), in)
	if err != nil {
		return nil, res.fail(ctx, "create "+string(kind), err)
	}
	return &resourceResolver{r: r}, nil
}

func (res *resolver) update(ctx context.Context, kind model.ResourceKind, args updateArgs) (*resourceResolver, error) {
	rid, err := parseID(args.ID)
	if err != nil {
		return nil, err
	}
	p := model.ResourcePatch{Name: args.Name, Category: args.Category, Description: args.Description}
	r, err := res.resources.Update(ctx, IdentityFrom(ctx), kind, rid, p)
	if err != nil {
		return nil, res.fail(ctx, "update "+string(kind), err)
	}
	return &resourceResolver{r: r}, nil
}

func (res *resolver) remove(ctx context.Context, kind model.ResourceKind, id graphql.ID) (*resourceResolver, error) {
	rid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	r, err := res.resources.Delete(ctx, IdentityFrom(ctx), kind, rid)
	if err != nil {
		return nil, res.fail(ctx, "delete "+string(kind), err)
	}
	return &resourceResolver{r: r}, nil
}

func (res *resolver) Product(ctx context.Context, args struct{ ID graphql.ID }) (*resourceResolver, error) {
	return res.get(ctx, model.KindProduct, args.ID)
}

// ProductByName returns null when no product has that name.
func (res *resolver) ProductByName(ctx context.Context, args struct{ Name string }) (*resourceResolver, error) {
	r, err := res.resources.FindByName(ctx, model.KindProduct, args.Name)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, res.fail(ctx, "productByName", err)
	}
	return &resourceResolver{r: r}, nil
}

func (res *resolver) Products(ctx context.Context, args listArgs) ([]*resourceResolver, error) {
	return res.list(ctx, model.KindProduct, args)
}

func (res *resolver) Dish(ctx context.Context, args struct{ ID graphql.ID }) (*resourceResolver, error) {
	return res.get(ctx, model.KindDish, args.ID)
}

func (res *resolver) Dishes(ctx context.Context, args listArgs) ([]*resourceResolver, error) {
	return res.list(ctx, model.KindDish, args)
}

func (res *resolver) CreateProduct(ctx context.Context, args createArgs) (*resourceResolver, error) {
	return res.create(ctx, model.KindProduct, args)
}

func (res *resolver) UpdateProduct(ctx context.Context, args updateArgs) (*resourceResolver, error) {
	return res.update(ctx, model.KindProduct, args)
}

func (res *resolver) DeleteProduct(ctx context.Context, args struct{ ID graphql.ID }) (*resourceResolver, error) {
	return res.remove(ctx, model.KindProduct, args.ID)
}

func (res *resolver) CreateDish(ctx context.Context, args createArgs) (*resourceResolver, error) {
	return res.create(ctx, model.KindDish, args)
}

func (res *resolver) UpdateDish(ctx context.Context, args updateArgs) (*resourceResolver, error) {
	return res.update(ctx, model.KindDish, args)
}

func (res *resolver) DeleteDish(ctx context.Context, args struct{ ID graphql.ID }) (*resourceResolver, error) {
	return res.remove(ctx, model.KindDish, args.ID)
}

// ---- object types ----

type authPayloadResolver struct {
	token string
	user  *userResolver
}

func (p *authPayloadResolver) Token() string       { return p.token }
func (p *authPayloadResolver) User() *userResolver { return p.user }

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func timestamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

type userResolver struct{ u *model.User }

func (r *userResolver) ID() graphql.ID      { return graphql.ID(r.u.ID.String()) }
func (r *userResolver) Email() *string      { return optional(r.u.Email) }
func (r *userResolver) Name() *string       { return optional(r.u.Name) }
func (r *userResolver) Avatar() *string     { return optional(r.u.Avatar) }
func (r *userResolver) Role() string        { return string(r.u.Role) }
func (r *userResolver) GoogleID() *string   { return optional(r.u.GoogleID) }
func (r *userResolver) GithubID() *string   { return optional(r.u.GitHubID) }
func (r *userResolver) FacebookID() *string { return optional(r.u.FacebookID) }
func (r *userResolver) CreatedAt() string   { return timestamp(r.u.CreatedAt) }
func (r *userResolver) UpdatedAt() string   { return timestamp(r.u.UpdatedAt) }

// resourceResolver backs both Product and Dish.
type resourceResolver struct{ r *model.Resource }

func (r *resourceResolver) ID() graphql.ID       { return graphql.ID(r.r.ID.String()) }
func (r *resourceResolver) Name() string         { return r.r.Name }
func (r *resourceResolver) Category() *string    { return optional(r.r.Category) }
func (r *resourceResolver) Description() *string { return optional(r.r.Description) }
func (r *resourceResolver) UserID() graphql.ID   { return graphql.ID(r.r.OwnerID.String()) }
func (r *resourceResolver) CreatedAt() string    { return timestamp(r.r.CreatedAt) }
func (r *resourceResolver) UpdatedAt() string    { return timestamp(r.r.UpdatedAt) }
