package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

const (
	// RefreshCookie carries the refresh token. It is never exposed to scripts.
	RefreshCookie = "refreshToken"
	stateCookie   = "oauthState"
	stateTTL      = 10 * time.Minute
)

type cookiePolicy struct {
	secure bool
	now    func() time.Time
}

func (p cookiePolicy) refresh(value string, expires time.Time) *http.Cookie {
	maxAge := int(expires.Sub(p.now()) / time.Second)
	if maxAge <= 0 {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     RefreshCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (p cookiePolicy) clearRefresh() *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (p cookiePolicy) state(value string) *http.Cookie {
	c := &http.Cookie{
		Name:     stateCookie,
		Value:    value,
		Path:     "/auth",
		MaxAge:   int(stateTTL / time.Second),
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		c.MaxAge = -1
	}
	return c
}

// exchange gives GraphQL resolvers access to the request cookies and lets
// them set response cookies before the body is written.
type exchange struct {
	mu sync.Mutex
	w  http.ResponseWriter
	r  *http.Request
}

const exchangeKey ctxKey = "forksy.http"

func withExchange(ctx context.Context, w http.ResponseWriter, r *http.Request) context.Context {
	return context.WithValue(ctx, exchangeKey, &exchange{w: w, r: r})
}

func exchangeFrom(ctx context.Context) *exchange {
	ex, _ := ctx.Value(exchangeKey).(*exchange)
	return ex
}

func (ex *exchange) cookie(name string) string {
	if ex == nil {
		return ""
	}
	c, err := ex.r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (ex *exchange) setCookie(c *http.Cookie) {
	if ex == nil {
		return
	}
	ex.mu.Lock()
	defer ex.mu.Unlock()
	http.SetCookie(ex.w, c)
}

func (ex *exchange) clientIP() string {
	if ex == nil {
		return ""
	}
	return clientIP(ex.r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
