package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"affiliate-blog/internal/affiliate"
	"affiliate-blog/internal/audit"
	"affiliate-blog/internal/auth"
	"affiliate-blog/internal/authz"
	"affiliate-blog/internal/blog"
	"affiliate-blog/internal/config"
	"affiliate-blog/internal/guard"
	"affiliate-blog/internal/httpapi"
	"affiliate-blog/internal/metrics"
	"affiliate-blog/internal/profile"
	"affiliate-blog/internal/realtime"
	"affiliate-blog/internal/seed"
	"affiliate-blog/internal/stats"
	"affiliate-blog/pkg/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// app owns the process-wide connections and the services built on them.
// Every command builds one and closes it on exit.
type app struct {
	cfg config.Config
	log *slog.Logger

	db  *sql.DB
	rdb *redis.Client

	broker   *realtime.RedisBroker
	users    auth.UserRepository
	auth     *auth.Provider
	profiles *profile.Service
	posts    *blog.Service
	programs *affiliate.Service
	stats    *stats.Service
	seeder   *seed.Seeder
	audit    *audit.Service
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	db, err := utils.OpenPostgres(ctx, cfg.PostgresDSN(), utils.PostgresPoolConfig{ApplicationName: "affiliate-blog"})
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	tokens, err := auth.NewManager(cfg.Auth)
	if err != nil {
		_ = rdb.Close()
		_ = db.Close()
		return nil, fmt.Errorf("auth: %w", err)
	}

	a := &app{cfg: cfg, log: log, db: db, rdb: rdb}
	a.broker = realtime.NewRedisBroker(rdb, cfg.Redis.ChannelPrefix, log)
	a.users = auth.NewPostgresUserRepository(db)
	a.auth = auth.NewProvider(tokens, a.users, auth.NewRedisSessionRepository(rdb, cfg.Redis.ChannelPrefix), a.broker, log)
	a.profiles = profile.NewService(profile.NewPostgresRepository(db), a.broker, log)
	a.posts = blog.NewService(blog.NewPostgresRepository(db), a.broker, log)
	a.programs = affiliate.NewService(affiliate.NewPostgresRepository(db), a.broker, log)
	a.stats = stats.NewService(stats.NewPostgresRepository(db), a.posts, a.auth, log)
	a.seeder = seed.New(a.posts, a.programs, a.stats, log)
	a.audit = audit.NewService(audit.NewPostgresRepository(db), log)
	return a, nil
}

// handlers wires the HTTP layer and returns the registry backing /metrics.
func (a *app) handlers() (*httpapi.Handlers, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector(reg)

	h := &httpapi.Handlers{
		Auth:      a.auth,
		Profiles:  a.profiles,
		Posts:     a.posts,
		Programs:  a.programs,
		Stats:     a.stats,
		Seeder:    a.seeder,
		Audit:     a.audit,
		Broker:    a.broker,
		Evaluator: authz.NewEvaluator(a.profiles, authz.WithRecorder(m)),
		Policy: guard.Policy{
			LoginPath:   a.cfg.Guard.LoginPath,
			LandingPath: a.cfg.Guard.LandingPath,
		},
		Metrics:       m,
		Streams:       httpapi.NewRedisStreamLimiter(a.rdb, a.cfg.Redis.ChannelPrefix, a.cfg.HTTP.AdminStreamLimit),
		Log:           a.log,
		SecureCookies: a.cfg.App.Env != "local" && a.cfg.App.Env != "dev",
	}
	return h, reg
}

func (a *app) close() {
	if err := a.rdb.Close(); err != nil {
		a.log.Warn("redis close failed", "err", err)
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn("postgres close failed", "err", err)
	}
}
