package oauth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2/google"

	"github.com/mmazitov/forksy-backend/internal/model"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

type googleUser struct {
	Sub     string `json:"sub"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// NewGoogle builds the Google adapter with the email and profile scopes.
func NewGoogle(cfg Config) Provider {
	f := newCodeFlow(model.ProviderGoogle, cfg, google.Endpoint, []string{"email", "profile"})
	api := cfg.APIURL
	if api == "" {
		api = googleUserInfoURL
	}
	f.fetch = func(ctx context.Context, c *http.Client) (model.Profile, error) {
		var u googleUser
		if err := getJSON(ctx, c, api, &u); err != nil {
			return model.Profile{}, err
		}
		return model.Profile{ExternalID: u.Sub, Email: u.Email, DisplayName: u.Name, AvatarURL: u.Picture}, nil
	}
	return f
}
