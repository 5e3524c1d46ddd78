package httpapi

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mmazitov/forksy-backend/internal/errs"
)

// Error codes reported in GraphQL extensions.code.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeBadInput        = "BAD_USER_INPUT"
	CodeConflict        = "CONFLICT"
	CodeRateLimited     = "RATE_LIMITED"
	CodeInternal        = "INTERNAL"
)

// apiError is a client-safe resolver error. graphql-go copies Extensions()
// into the response.
type apiError struct {
	code string
	msg  string
}

func (e *apiError) Error() string { return e.msg }

func (e *apiError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.code}
}

func badInput(msg string) *apiError { return &apiError{code: CodeBadInput, msg: msg} }

// toAPIError maps domain sentinels to client errors. Only validation
// messages are passed through; everything else gets a fixed message.
func toAPIError(err error) *apiError {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return &apiError{code: CodeBadInput, msg: err.Error()}
	case errors.Is(err, errs.ErrRateLimited):
		return &apiError{code: CodeRateLimited, msg: "Too many attempts, try again later"}
	case errors.Is(err, errs.ErrProvider):
		return &apiError{code: CodeUnauthenticated, msg: "Authentication failed"}
	case errors.Is(err, errs.ErrUnauthenticated):
		return &apiError{code: CodeUnauthenticated, msg: "Not authenticated"}
	case errors.Is(err, errs.ErrUnauthorized):
		return &apiError{code: CodeForbidden, msg: "Not authorized"}
	case errors.Is(err, errs.ErrNotFound):
		return &apiError{code: CodeNotFound, msg: "Not found"}
	case errors.Is(err, errs.ErrAlreadyExists):
		return &apiError{code: CodeConflict, msg: "Already exists"}
	}
	return &apiError{code: CodeInternal, msg: "Internal server error"}
}

// fail logs err with the operation name and returns its client form.
// Internal failures log at error level, the rest at debug.
func (res *resolver) fail(ctx context.Context, op string, err error) error {
	out := toAPIError(err)
	fields := []zap.Field{zap.String("op", op), zap.String("code", out.code), zap.Error(err)}
	if id := IdentityFrom(ctx); !id.IsAnonymous() {
		fields = append(fields, zap.String("user_id", id.UserID.String()))
	}
	if out.code == CodeInternal {
		res.log.Error("graphql", fields...)
	} else {
		res.log.Debug("graphql", fields...)
	}
	return out
}

// panicLogger reports resolver panics through zap.
type panicLogger struct{ log *zap.Logger }

func (l panicLogger) LogPanic(ctx context.Context, value interface{}) {
	l.log.Error("graphql panic", zap.Any("reason", value), zap.Stack("stack"))
}
