package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/gorilla/mux"

	"github.com/atlekbai/querydsl/internal/middleware"
)

// ConnectService is implemented by each service to register its connect handler.
type ConnectService interface {
	RegisterHandler(interceptors ...connect.Interceptor) (string, http.Handler)
}

// RouteRegistrar mounts plain HTTP routes.
type RouteRegistrar interface {
	Routes(r *mux.Router)
}

// NewHandler mounts the connect services and REST routes on one router.
func NewHandler(log *slog.Logger, rest RouteRegistrar, services ...ConnectService) http.Handler {
	interceptors := []connect.Interceptor{
		LoggingInterceptor(log),
		ValidationInterceptor(),
	}

	r := mux.NewRouter()
	for _, svc := range services {
		path, h := svc.RegisterHandler(interceptors...)
		r.PathPrefix(path).Handler(h)
	}

	if rest != nil {
		api := r.NewRoute().Subrouter()
		api.Use(middleware.RequestID(log), middleware.Logging, middleware.ContentType, middleware.Recovery)
		rest.Routes(api)
	}
	return r
}

// ListenAndServe serves h on addr until ctx is cancelled, then shuts down.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
