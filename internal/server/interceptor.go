package server

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/atlekbai/querydsl/internal/logger"
)

// validator is implemented by request messages that check their own fields.
type validator interface {
	Validate() error
}

// ValidationInterceptor rejects requests whose message fails Validate.
func ValidationInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if msg, ok := req.Any().(validator); ok {
				if err := msg.Validate(); err != nil {
					return nil, connect.NewError(connect.CodeInvalidArgument, err)
				}
			}
			return next(ctx, req)
		}
	}
}

// LoggingInterceptor tags each call with a request id and logs its outcome.
func LoggingInterceptor(log *slog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			l := log.With("request_id", uuid.NewString(), "procedure", req.Spec().Procedure)
			resp, err := next(logger.WithContext(ctx, l), req)
			if err != nil {
				l.Warn("rpc failed", "code", connect.CodeOf(err).String(), "error", err, "duration", time.Since(start))
				return nil, err
			}
			l.Info("rpc", "duration", time.Since(start))
			return resp, nil
		}
	}
}
