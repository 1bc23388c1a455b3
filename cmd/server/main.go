package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/atlekbai/querydsl/internal/config"
	"github.com/atlekbai/querydsl/internal/db"
	"github.com/atlekbai/querydsl/internal/handler"
	"github.com/atlekbai/querydsl/internal/logger"
	"github.com/atlekbai/querydsl/internal/query"
	"github.com/atlekbai/querydsl/internal/schema"
	"github.com/atlekbai/querydsl/internal/server"
	"github.com/atlekbai/querydsl/internal/service"
)

func main() {
	configFile := flag.String("config", "", "path to a config file (yaml, json or toml)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	dialect, err := query.DialectByName(cfg.Dialect)
	if err != nil {
		return err
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	reload := func(ctx context.Context, entities *schema.Cache) error {
		return entities.Load(ctx, pool)
	}
	if cfg.SchemaFile != "" {
		reload = func(_ context.Context, entities *schema.Cache) error {
			return entities.LoadFile(cfg.SchemaFile)
		}
	}

	entities := schema.NewCache()
	if err := reload(ctx, entities); err != nil {
		return err
	}
	log.Info("entity cache loaded", "entities", entities.EntityCount())

	opts := query.Options{
		Dialect:  dialect,
		Registry: query.NewRegistry(dialect, nil),
		Pagination: query.PaginationOptions{
			DefaultLimit: cfg.DefaultLimit,
			DefaultPage:  cfg.DefaultPage,
		},
	}

	queries := service.NewQueryService(pool, entities, opts, cfg.CacheTTL, log)
	metadata := service.NewMetadataService(entities, reload)

	h := server.NewHandler(log, handler.New(queries), queries, metadata)
	return server.ListenAndServe(ctx, cfg.Addr(), h, log)
}
