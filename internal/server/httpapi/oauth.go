package httpapi

import (
	"crypto/subtle"
	"errors"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmazitov/forksy-backend/internal/errs"
	"github.com/mmazitov/forksy-backend/internal/model"
	"github.com/mmazitov/forksy-backend/internal/oauth"
	"github.com/mmazitov/forksy-backend/internal/service"
)

var popupPage = template.Must(template.New("popup").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Authentication Success</title></head>
<body>
<h3>Authentication successful! Closing window...</h3>
<script>
  if (window.opener) {
    window.opener.postMessage({ type: 'OAUTH_SUCCESS', token: {{.Token}} }, {{.Origin}});
    setTimeout(function () { window.close(); }, 500);
  }
</script>
</body>
</html>
`))

type oauthHandlers struct {
	auth      service.AuthService
	cookies   cookiePolicy
	clientURL string
	log       *zap.Logger
}

func (h *oauthHandlers) fail(w http.ResponseWriter, r *http.Request, provider model.Provider, err error) {
	if errors.Is(err, errs.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown provider"})
		return
	}
	h.log.Warn("oauth login failed",
		zap.String("provider", string(provider)),
		zap.String("peer", clientIP(r)),
		zap.Error(err),
	)
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication failed"})
}

// entry serves /auth/{provider}-auth: without a code it starts the flow,
// with one it completes it.
func (h *oauthHandlers) entry(provider model.Provider) http.HandlerFunc {
	complete := h.callback(provider)
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("code") != "" {
			complete(w, r)
			return
		}
		state, err := oauth.NewState()
		if err != nil {
			h.log.Error("oauth state", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
			return
		}
		target, err := h.auth.OAuthStart(provider, state)
		if err != nil {
			h.fail(w, r, provider, err)
			return
		}
		http.SetCookie(w, h.cookies.state(state))
		http.Redirect(w, r, target, http.StatusFound)
	}
}

// callback exchanges the code and answers with the popup page. A state
// query parameter must match the state cookie when present.
func (h *oauthHandlers) callback(provider model.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		code := q.Get("code")
		if code == "" {
			h.fail(w, r, provider, errors.New("missing code"))
			return
		}
		if state := q.Get("state"); state != "" {
			c, err := r.Cookie(stateCookie)
			if err != nil || subtle.ConstantTimeCompare([]byte(c.Value), []byte(state)) != 1 {
				h.fail(w, r, provider, errors.New("state mismatch"))
				return
			}
			http.SetCookie(w, h.cookies.state(""))
		}

		t, u, err := h.auth.OAuthLogin(r.Context(), provider, code)
		if err != nil {
			h.fail(w, r, provider, err)
			return
		}
		h.log.Info("oauth login",
			zap.String("provider", string(provider)),
			zap.String("user_id", u.ID.String()),
		)

		http.SetCookie(w, h.cookies.refresh(t.RefreshToken, t.RefreshExpiresAt))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		err = popupPage.Execute(w, struct{ Token, Origin string }{Token: t.AccessToken, Origin: h.clientURL})
		if err != nil {
			h.log.Error("render popup", zap.Error(err))
		}
	}
}
