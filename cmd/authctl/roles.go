package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mmazitov/forksy-backend/internal/model"
	"github.com/mmazitov/forksy-backend/internal/repository"
)

// roleStore is the operator view of the user table.
type roleStore interface {
	repository.RoleAdmin
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

func normEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func setRole(ctx context.Context, store roleStore, email string, role model.Role, out io.Writer) error {
	email = normEmail(email)
	if err := store.SetRole(ctx, email, role); err != nil {
		return fmt.Errorf("set role of %s: %w", email, err)
	}
	fmt.Fprintf(out, "%s is now %s\n", email, role)
	return nil
}

func showRole(ctx context.Context, store roleStore, email string, out io.Writer) error {
	email = normEmail(email)
	u, err := store.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", email, err)
	}
	fmt.Fprintf(out, "%s\t%s\t%s\n", u.ID, email, u.Role)
	return nil
}
