// Command forksy-server starts the GraphQL/OAuth HTTP API and the gRPC ops listener.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/mmazitov/forksy-backend/internal/config"
	"github.com/mmazitov/forksy-backend/internal/limiter"
	"github.com/mmazitov/forksy-backend/internal/migrate"
	"github.com/mmazitov/forksy-backend/internal/oauth"
	"github.com/mmazitov/forksy-backend/internal/repository/postgres"
	grpcserver "github.com/mmazitov/forksy-backend/internal/server/grpc"
	"github.com/mmazitov/forksy-backend/internal/server/httpapi"
	"github.com/mmazitov/forksy-backend/internal/service"
	"github.com/mmazitov/forksy-backend/internal/telemetry"
	"github.com/mmazitov/forksy-backend/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		log *zap.Logger
		err error
	)
	if cfg.IsLocal() {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// main loads configuration, runs migrations and serves until SIGINT/SIGTERM.
func main() {
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("env", cfg.AppEnv),
		zap.String("http", cfg.HTTPAddr),
		zap.String("ops", cfg.OpsAddr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "forksy-backend", version, cfg.OTelEndpoint)
	if err != nil {
		logger.Fatal("telemetry", zap.Error(err))
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	if _, err := migrate.Up(ctx, cfg.DatabaseURL, logger); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("postgres", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	userRepo := postgres.NewUserRepo(db)
	resourceRepo := postgres.NewResourceRepo(db)

	issuer, err := token.NewIssuer(cfg.Token())
	if err != nil {
		logger.Fatal("token issuer", zap.Error(err))
	}
	providers := oauth.FromConfig(cfg.OAuth())
	for _, p := range providers.Names() {
		logger.Info("oauth provider enabled", zap.String("provider", string(p)))
	}

	// Services
	resolver := service.NewIdentityResolver(userRepo)
	guard := service.NewGuard(resolver)
	authSvc := service.NewAuthService(userRepo, resolver, guard, issuer, providers,
		limiter.NewPG(db.Pool, cfg.Limiter()),
		service.AuthConfig{RememberMeTTL: cfg.RememberMeTTL, Log: logger.Named("auth")},
	)
	resourceSvc := service.NewResourceService(resourceRepo, guard)

	router, err := httpapi.NewRouter(httpapi.Deps{
		Auth:          authSvc,
		Resources:     resourceSvc,
		Tokens:        issuer,
		DB:            db,
		Log:           logger,
		ClientURL:     cfg.ClientURL,
		SecureCookies: cfg.IsProduction(),
	})
	if err != nil {
		logger.Fatal("graphql schema", zap.Error(err))
	}
	httpSrv := httpapi.NewServer(cfg.HTTPAddr, router, logger)

	// Ops listener: gRPC health, TLS when configured
	var opsOpts []grpc.ServerOption
	if cfg.OpsTLSCert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.OpsTLSCert, cfg.OpsTLSKey)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		opsOpts = append(opsOpts, grpc.Creds(creds))
	}
	ops := grpcserver.NewOps(logger, db, cfg.IsLocal(), opsOpts...)
	lis, err := net.Listen("tcp", cfg.OpsAddr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}
	go ops.Watch(ctx, 10*time.Second)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("ops listening", zap.String("addr", cfg.OpsAddr))
		errCh <- ops.Serve(lis)
	}()
	go func() { errCh <- httpSrv.ListenAndServe() }()

	exit := 0
	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		exit = 1
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	ops.Stop(5 * time.Second)

	logger.Info("shutdown complete")
	if exit != 0 {
		stop()
		os.Exit(exit)
	}
}
