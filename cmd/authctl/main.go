// Command authctl is the operator tool for role provisioning, migrations
// and health checks. Role changes go straight to the database and are not
// reachable from the public API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc/status"

	"github.com/mmazitov/forksy-backend/internal/errs"
	"github.com/mmazitov/forksy-backend/internal/migrate"
	"github.com/mmazitov/forksy-backend/internal/model"
	"github.com/mmazitov/forksy-backend/internal/repository/postgres"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `authctl
Usage:
  authctl [-dsn URL] [-ops HOST:PORT] [-cacert file | -insecure | -plaintext] <cmd> [args]

Commands:
  version
  grant    -email <address>          (make admin)
  revoke   -email <address>          (back to user)
  role     -email <address>
  migrate                            (apply pending migrations)
  health                             (gRPC health of the ops listener)
`)
	os.Exit(2)
}

type globals struct {
	dsn       string
	ops       string
	caPath    string
	insecure  bool
	plaintext bool
}

// main dispatches subcommands.
func main() {
	_ = godotenv.Load()

	var g globals
	flag.StringVar(&g.dsn, "dsn", os.Getenv("DATABASE_URL"), "PostgreSQL DSN")
	flag.StringVar(&g.ops, "ops", "localhost:4001", "ops listener addr")
	flag.StringVar(&g.caPath, "cacert", "", "CA cert (PEM)")
	flag.BoolVar(&g.insecure, "insecure", false, "skip cert verify (dev)")
	flag.BoolVar(&g.plaintext, "plaintext", false, "connect without TLS")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, g, flag.Args(), os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			usage()
		}
		fail(err)
	}
}

var errUsage = errors.New("usage")

func run(ctx context.Context, g globals, args []string, out io.Writer) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "version":
		fmt.Fprintf(out, "authctl %s (%s)\n", version, buildDate)
		return nil

	case "grant", "revoke", "role":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		email := fs.String("email", "", "account email")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *email == "" {
			return fmt.Errorf("%s: need -email", cmd)
		}
		db, err := openDB(ctx, g.dsn)
		if err != nil {
			return err
		}
		defer db.Close()
		store := postgres.NewUserRepo(db)

		switch cmd {
		case "grant":
			return setRole(ctx, store, *email, model.RoleAdmin, out)
		case "revoke":
			return setRole(ctx, store, *email, model.RoleUser, out)
		default:
			return showRole(ctx, store, *email, out)
		}

	case "migrate":
		if g.dsn == "" {
			return errors.New("need -dsn or DATABASE_URL")
		}
		log, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
		v, err := migrate.Up(ctx, g.dsn, log)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "schema version %d\n", v)
		return nil

	case "health":
		st, err := checkHealth(ctx, g.ops, g.caPath, g.insecure, g.plaintext)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, st)
		return nil
	}
	return errUsage
}

func openDB(ctx context.Context, dsn string) (*postgres.DB, error) {
	if dsn == "" {
		return nil, errors.New("need -dsn or DATABASE_URL")
	}
	db, err := postgres.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

func fail(err error) {
	if s, ok := status.FromError(err); ok && s.Code() != 0 {
		fmt.Fprintf(os.Stderr, "rpc error: code=%s msg=%s\n", s.Code(), s.Message())
		os.Exit(1)
	}
	if errors.Is(err, errs.ErrNotFound) {
		fmt.Fprintln(os.Stderr, "no account with that email")
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
