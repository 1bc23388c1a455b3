package service

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/atlekbai/querydsl/internal/query"
)

// ErrEntityNotFound is returned when a request names an unregistered entity.
var ErrEntityNotFound = errors.New("entity not found")

// compileError marks a failure to compile the request description.
type compileError struct{ err error }

func (e *compileError) Error() string { return e.err.Error() }
func (e *compileError) Unwrap() error { return e.err }

// Code classifies err for the transport layer.
func Code(err error) connect.Code {
	var (
		unknown *query.UnknownFieldError
		invalid *query.InvalidFilterError
		compile *compileError
		connErr *connect.Error
	)
	switch {
	case errors.Is(err, ErrEntityNotFound):
		return connect.CodeNotFound
	case errors.As(err, &unknown), errors.As(err, &invalid), errors.As(err, &compile):
		return connect.CodeInvalidArgument
	case errors.As(err, &connErr):
		return connErr.Code()
	default:
		return connect.CodeInternal
	}
}

func toConnectError(err error) *connect.Error {
	var connErr *connect.Error
	if errors.As(err, &connErr) {
		return connErr
	}
	return connect.NewError(Code(err), err)
}
