// Package oauth adapts external identity providers to verified profiles.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"golang.org/x/oauth2"

	"github.com/mmazitov/forksy-backend/internal/errs"
	"github.com/mmazitov/forksy-backend/internal/model"
)

// Provider exchanges an authorization code for a verified external profile.
type Provider interface {
	Name() model.Provider
	// AuthCodeURL returns the consent page URL carrying state.
	AuthCodeURL(state string) string
	// ExchangeCode redeems code and fetches the caller's profile. Failures wrap errs.ErrProvider.
	ExchangeCode(ctx context.Context, code string) (model.Profile, error)
}

// Config holds client credentials of one provider. Endpoint and APIURL
// default to the provider's public hosts when zero.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string

	Endpoint oauth2.Endpoint
	APIURL   string
}

// Enabled reports whether credentials are present.
func (c Config) Enabled() bool { return c.ClientID != "" && c.ClientSecret != "" }

type profileFetcher func(ctx context.Context, client *http.Client) (model.Profile, error)

// codeFlow is the authorization-code exchange shared by all adapters.
type codeFlow struct {
	name  model.Provider
	conf  *oauth2.Config
	fetch profileFetcher
}

func newCodeFlow(name model.Provider, cfg Config, def oauth2.Endpoint, scopes []string) *codeFlow {
	ep := cfg.Endpoint
	if ep.AuthURL == "" && ep.TokenURL == "" {
		ep = def
	}
	return &codeFlow{
		name: name,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Endpoint:     ep,
			Scopes:       scopes,
		},
	}
}

func (f *codeFlow) Name() model.Provider { return f.name }

func (f *codeFlow) AuthCodeURL(state string) string { return f.conf.AuthCodeURL(state) }

func (f *codeFlow) ExchangeCode(ctx context.Context, code string) (model.Profile, error) {
	if code == "" {
		return model.Profile{}, fmt.Errorf("%s: empty code: %w", f.name, errs.ErrProvider)
	}
	tok, err := f.conf.Exchange(ctx, code)
	if err != nil {
		return model.Profile{}, fmt.Errorf("%s: exchange: %v: %w", f.name, err, errs.ErrProvider)
	}
	p, err := f.fetch(ctx, f.conf.Client(ctx, tok))
	if err != nil {
		return model.Profile{}, fmt.Errorf("%s: profile: %v: %w", f.name, err, errs.ErrProvider)
	}
	if p.ExternalID == "" {
		return model.Profile{}, fmt.Errorf("%s: profile without id: %w", f.name, errs.ErrProvider)
	}
	return p, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(dst)
}

// Registry holds the configured providers. It is built once at startup.
type Registry struct {
	providers map[model.Provider]Provider
}

// NewRegistry indexes providers by name.
func NewRegistry(ps ...Provider) *Registry {
	m := make(map[model.Provider]Provider, len(ps))
	for _, p := range ps {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// FromConfig builds adapters for every provider with credentials.
func FromConfig(cfgs map[model.Provider]Config) *Registry {
	var ps []Provider
	for name, c := range cfgs {
		if !c.Enabled() {
			continue
		}
		switch name {
		case model.ProviderGoogle:
			ps = append(ps, NewGoogle(c))
		case model.ProviderGitHub:
			ps = append(ps, NewGitHub(c))
		case model.ProviderFacebook:
			ps = append(ps, NewFacebook(c))
		}
	}
	return NewRegistry(ps...)
}

// Get returns the provider with the given name.
func (r *Registry) Get(name model.Provider) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names lists configured providers in lexical order.
func (r *Registry) Names() []model.Provider {
	out := make([]model.Provider, 0, len(r.providers))
	for n := range r.providers {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NewState returns a random URL-safe value for the OAuth state parameter.
func NewState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
