package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"authservice/internal/config"
	"authservice/internal/database"
	"authservice/internal/modules/admin"
	"authservice/internal/modules/auth"
	"authservice/internal/pkg/jwt"
	"authservice/internal/pkg/logger"
	"authservice/internal/repository"
	"authservice/internal/server"
	"authservice/internal/settings"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("logger")
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}
	if err := repository.AutoMigrate(db); err != nil {
		log.WithError(err).Fatal("migrate failed")
	}

	defaults := settings.Defaults{
		AccessTokenLifetime:  cfg.AccessTokenLifetime,
		RefreshTokenLifetime: cfg.RefreshTokenLifetime,
	}
	var stopSettings func(context.Context) error

	var store settings.Provider
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("invalid REDIS_URL")
		}
		rdb := redis.NewClient(opts)
		redisStore := settings.NewRedisStore(rdb, defaults, log)

		loadCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = redisStore.Load(loadCtx)
		cancel()
		if err != nil {
			log.WithError(err).Fatal("load settings from redis")
		}

		runCtx, stopRun := context.WithCancel(context.Background())
		runDone := make(chan struct{})
		go func() {
			defer close(runDone)
			if err := redisStore.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("settings subscription stopped")
			}
		}()

		stopSettings = func(ctx context.Context) error {
			stopRun()
			select {
			case <-runDone:
			case <-ctx.Done():
				return ctx.Err()
			}
			return rdb.Close()
		}
		store = redisStore
		log.Info("runtime settings backed by redis")
	} else {
		store = settings.NewMemoryStore(defaults)
		log.Warn("REDIS_URL not set, runtime settings are process-local")
	}

	users := repository.NewUserRepository(db)
	tokens := repository.NewRefreshTokenRepository(db)
	codec := jwt.New(cfg.JWTSecret, cfg.JWTIssuer)

	authService := auth.NewService(users, tokens, codec, store, log,
		auth.WithRecomputeTimeout(cfg.RecomputeTimeout))
	stopWatch := authService.WatchSettings()

	router := server.NewRouter(server.Deps{
		DB:          db,
		Auth:        authService,
		Admin:       admin.NewService(store, log),
		Log:         log,
		CORSOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	// Order matters: drain HTTP before the watcher and the DB go away.
	shutdown := func(ctx context.Context) error {
		var errs []error
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
		stopWatch()
		if stopSettings != nil {
			if err := stopSettings(ctx); err != nil {
				errs = append(errs, fmt.Errorf("settings: %w", err))
			}
		}
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("database: %w", err))
			}
		}
		return errors.Join(errs...)
	}

	wait := gfshutdown.GracefulShutdown(context.Background(), cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"authservice": shutdown,
	})
	exitCode := <-wait
	log.WithField("exit_code", exitCode).Info("shutdown complete")
	os.Exit(exitCode)
}
