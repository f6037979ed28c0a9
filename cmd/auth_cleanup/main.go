package main

import (
	"context"
	"time"

	"authservice/internal/config"
	"authservice/internal/database"
	"authservice/internal/pkg/logger"
	"authservice/internal/repository"

	"github.com/sirupsen/logrus"
)

// auth_cleanup removes refresh tokens past their expiry. Expired tokens are
// already rejected at use; this only keeps the table small.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("logger")
	}

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	n, err := repository.NewRefreshTokenRepository(db).DeleteExpired(ctx, time.Now())
	if err != nil {
		log.WithError(err).Fatal("cleanup refresh_tokens failed")
	}

	log.WithField("refresh_tokens", n).Info("auth cleanup completed")
}
