package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/meltforce/liftlog/internal/catalog"
	"github.com/meltforce/liftlog/internal/config"
	"github.com/meltforce/liftlog/internal/mcp"
	"github.com/meltforce/liftlog/internal/metrics"
	"github.com/meltforce/liftlog/internal/server"
	"github.com/meltforce/liftlog/internal/storage"
	"github.com/meltforce/liftlog/internal/workout"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/do/v2"
)

func setupDI(cfg *config.Config, log *slog.Logger, db *storage.DB) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, log)
	do.ProvideValue(injector, db)

	do.Provide(injector, func(i do.Injector) (*prometheus.Registry, error) {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		return reg, nil
	})
	do.Provide(injector, func(i do.Injector) (*metrics.Manager, error) {
		reg := do.MustInvoke[*prometheus.Registry](i)
		return metrics.NewManager("liftlog", "server", reg), nil
	})

	do.Provide(injector, func(i do.Injector) (*catalog.Cached, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return catalog.NewCached(do.MustInvoke[*storage.DB](i), cfg.Catalog.CacheMB, cfg.Catalog.CacheTTL,
			do.MustInvoke[*slog.Logger](i)), nil
	})

	do.Provide(injector, func(i do.Injector) (*workout.Engine, error) {
		return workout.New(
			do.MustInvoke[*storage.DB](i),
			do.MustInvoke[*catalog.Cached](i),
			do.MustInvoke[*slog.Logger](i),
			workout.WithRecorder(do.MustInvoke[*metrics.Manager](i)),
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*redis.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			_ = rdb.Close()
			return nil, err
		}
		return rdb, nil
	})

	do.Provide(injector, func(i do.Injector) (*mcpserver.StreamableHTTPServer, error) {
		engine := do.MustInvoke[*workout.Engine](i)
		s := mcp.New(mcp.Local{Engine: engine, DB: do.MustInvoke[*storage.DB](i)}, Version, do.MustInvoke[*slog.Logger](i))
		return mcpserver.NewStreamableHTTPServer(s,
			mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
				info, _ := server.UserFromContext(r.Context())
				return mcp.WithUserID(ctx, info.Login)
			}),
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*server.Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[*slog.Logger](i)
		srv := server.New(do.MustInvoke[*workout.Engine](i), do.MustInvoke[*storage.DB](i), cfg.Auth.DevUser, log)
		srv.SetAPIKey(cfg.Auth.APIKey)

		reg := do.MustInvoke[*prometheus.Registry](i)
		srv.SetMetrics(do.MustInvoke[*metrics.Manager](i), promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		srv.SetMCP(do.MustInvoke[*mcpserver.StreamableHTTPServer](i))

		if cfg.Redis.Addr != "" {
			rdb, err := do.Invoke[*redis.Client](i)
			if err != nil {
				log.Warn("redis unavailable, set writes are not rate limited", "addr", cfg.Redis.Addr, "error", err)
			} else {
				srv.SetRateLimiter(redis_rate.NewLimiter(rdb), cfg.Redis.SetsPerMinute)
			}
		}
		return srv, nil
	})

	return injector
}
