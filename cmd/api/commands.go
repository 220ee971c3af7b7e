package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"affiliate-blog/internal/config"
	"affiliate-blog/internal/database"
	"affiliate-blog/internal/httpapi"
	"affiliate-blog/internal/rbac"
	"affiliate-blog/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 20 * time.Second

func loadConfig() (config.Config, *slog.Logger, error) {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("config: %w", err)
	}
	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)
	return cfg, log, nil
}

func runServe(ctx context.Context) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Root context that cancels on shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	h, reg := a.handlers()
	r := httpapi.NewRouter(ctx, h, httpapi.RouterOptions{
		CORSAllowOrigins: cfg.HTTP.CORSAllowOrigins,
		LoginRateRPS:     cfg.HTTP.LoginRateRPS,
		LoginRateBurst:   cfg.HTTP.LoginRateBurst,
		Gatherer:         reg,
	})

	// WriteTimeout stays zero: the admin event stream is long-lived.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := a.broker.Run(gctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("realtime broker: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func runMigrate(down int) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if down > 0 {
		if err := database.Down(cfg.MigrateURL(), down); err != nil {
			return err
		}
		log.Info("migrations rolled back", "steps", down)
		return nil
	}
	if err := database.Up(cfg.MigrateURL()); err != nil {
		return err
	}
	log.Info("migrations applied")
	return nil
}

func runCreateUser(ctx context.Context, email, password string, admin bool) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	var meta map[string]any
	if admin {
		meta = map[string]any{"role": rbac.RoleAdmin}
	}
	u, err := a.auth.SignUp(ctx, email, password, meta)
	if err != nil {
		return fmt.Errorf("sign up: %w", err)
	}
	if _, err := a.profiles.Ensure(ctx, u.ID, ""); err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	if admin {
		if _, err := a.profiles.SetRole(ctx, u.ID, rbac.RoleAdmin); err != nil {
			return fmt.Errorf("profile role: %w", err)
		}
	}
	log.Info("user created", "user_id", u.ID, "admin", admin)
	return nil
}

func runSeed(ctx context.Context, email string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	u, err := a.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return fmt.Errorf("owner lookup: %w", err)
	}
	res, err := a.seeder.Seed(ctx, u.ID)
	if err != nil {
		return err
	}
	log.Info("seed complete",
		"posts_seeded", res.PostsSeeded,
		"posts_existing", res.PostsExisting,
		"programs_seeded", res.ProgramsSeeded,
		"programs_existing", res.ProgramsExisting,
	)
	return nil
}
