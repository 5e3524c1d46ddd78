package oauth

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/oauth2/facebook"

	"github.com/mmazitov/forksy-backend/internal/model"
)

const facebookGraphURL = "https://graph.facebook.com"

type facebookUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

// NewFacebook builds the Facebook adapter over the Graph API /me endpoint.
func NewFacebook(cfg Config) Provider {
	f := newCodeFlow(model.ProviderFacebook, cfg, facebook.Endpoint, []string{"email"})
	api := strings.TrimRight(cfg.APIURL, "/")
	if api == "" {
		api = facebookGraphURL
	}
	f.fetch = func(ctx context.Context, c *http.Client) (model.Profile, error) {
		var u facebookUser
		if err := getJSON(ctx, c, api+"/me?fields=id,name,email,picture.type(large)", &u); err != nil {
			return model.Profile{}, err
		}
		return model.Profile{ExternalID: u.ID, Email: u.Email, DisplayName: u.Name, AvatarURL: u.Picture.Data.URL}, nil
	}
	return f
}
