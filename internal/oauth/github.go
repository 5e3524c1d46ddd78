package oauth

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2/github"

	"github.com/mmazitov/forksy-backend/internal/model"
)

const githubAPIURL = "https://api.github.com"

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// NewGitHub builds the GitHub adapter. Private emails are looked up via /user/emails.
func NewGitHub(cfg Config) Provider {
	f := newCodeFlow(model.ProviderGitHub, cfg, github.Endpoint, []string{"user:email"})
	api := strings.TrimRight(cfg.APIURL, "/")
	if api == "" {
		api = githubAPIURL
	}
	f.fetch = func(ctx context.Context, c *http.Client) (model.Profile, error) {
		var u githubUser
		if err := getJSON(ctx, c, api+"/user", &u); err != nil {
			return model.Profile{}, err
		}
		p := model.Profile{Email: u.Email, DisplayName: u.Name, AvatarURL: u.AvatarURL}
		if u.ID != 0 {
			p.ExternalID = strconv.FormatInt(u.ID, 10)
		}
		if p.DisplayName == "" {
			p.DisplayName = u.Login
		}
		if p.Email == "" {
			var emails []githubEmail
			// the account stays usable without an email
			if err := getJSON(ctx, c, api+"/user/emails", &emails); err == nil {
				p.Email = primaryEmail(emails)
			}
		}
		return p, nil
	}
	return f
}

func primaryEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email
		}
	}
	return ""
}
