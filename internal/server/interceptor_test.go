package server

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlekbai/querydsl/internal/logger"
	"github.com/atlekbai/querydsl/internal/service"
)

func okNext(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
	return connect.NewResponse(&service.CompileResponse{}), nil
}

func TestValidationInterceptor(t *testing.T) {
	call := ValidationInterceptor()(okNext)

	_, err := call(context.Background(), connect.NewRequest(&service.ListRequest{}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = call(context.Background(), connect.NewRequest(&service.ListRequest{Entity: "User"}))
	assert.NoError(t, err)

	// messages without Validate pass through
	_, err = call(context.Background(), connect.NewRequest(&service.ListEntitiesRequest{}))
	assert.NoError(t, err)
}

func TestLoggingInterceptor(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.Config{Level: "DEBUG"})

	var sawLogger bool
	call := LoggingInterceptor(log)(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		sawLogger = logger.FromContext(ctx) != log
		return nil, connect.NewError(connect.CodeNotFound, errors.New("missing"))
	})

	_, err := call(context.Background(), connect.NewRequest(&service.ListRequest{Entity: "Nope"}))
	require.Error(t, err)
	assert.True(t, sawLogger)
	assert.Contains(t, buf.String(), `"code":"not_found"`)
	assert.Contains(t, buf.String(), `"request_id"`)
}
