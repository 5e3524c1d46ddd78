// Package httpapi exposes the GraphQL endpoint and the OAuth redirect
// handlers over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"go.uber.org/zap"

	"github.com/mmazitov/forksy-backend/internal/model"
	"github.com/mmazitov/forksy-backend/internal/service"
)

const maxBodyBytes = 1 << 20

// Pinger reports database readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the HTTP router.
type Deps struct {
	Auth          service.AuthService
	Resources     service.ResourceService
	Tokens        AccessVerifier
	DB            Pinger
	Log           *zap.Logger
	ClientURL     string
	SecureCookies bool
}

// NewRouter builds the HTTP handler tree.
func NewRouter(d Deps) (http.Handler, error) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	schema, err := NewSchema(d.Auth, d.Resources, d.Log, d.SecureCookies)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(d.Log))
	r.Use(Recoverer(d.Log))

	r.Get("/healthz", healthz(d.DB))

	r.Group(func(r chi.Router) {
		r.Use(IdentityMiddleware(d.Tokens, d.Log))
		r.Use(middleware.AllowContentType("application/json"))
		r.Post("/graphql", graphQLHandler(schema))
	})

	oh := &oauthHandlers{
		auth:      d.Auth,
		cookies:   cookiePolicy{secure: d.SecureCookies, now: time.Now},
		clientURL: d.ClientURL,
		log:       d.Log,
	}
	r.Route("/auth", func(r chi.Router) {
		for _, p := range model.Providers {
			r.Get("/"+string(p)+"-auth", oh.entry(p))
			r.Get("/"+string(p)+"/callback", oh.callback(p))
		}
	})
	return r, nil
}

func graphQLHandler(schema *graphql.Schema) http.HandlerFunc {
	h := &relay.Handler{Schema: schema}
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		h.ServeHTTP(w, r.WithContext(withExchange(r.Context(), w, r)))
	}
}

func healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Server runs the HTTP API.
type Server struct {
	srv *http.Server
	log *zap.Logger
}

// NewServer wraps h in an http.Server listening on addr.
func NewServer(addr string, h http.Handler, log *zap.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		log: log,
	}
}

// ListenAndServe blocks until the server stops. A graceful shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.log.Info("http listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
