package main

import (
	"context"
	"os"
	"strings"
	"time"

	"authservice/internal/config"
	"authservice/internal/database"
	"authservice/internal/domain"
	"authservice/internal/pkg/logger"
	"authservice/internal/pkg/password"
	"authservice/internal/repository"

	"github.com/sirupsen/logrus"
)

// seed creates or resets the staff account named by SEED_ADMIN_EMAIL.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("logger")
	}

	email := strings.TrimSpace(os.Getenv("SEED_ADMIN_EMAIL"))
	pass := os.Getenv("SEED_ADMIN_PASSWORD")
	if email == "" || pass == "" {
		log.Fatal("SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD are required")
	}
	username := strings.TrimSpace(os.Getenv("SEED_ADMIN_USERNAME"))
	if username == "" {
		username = "admin"
	}

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}
	log.Info("running AutoMigrate")
	if err := repository.AutoMigrate(db); err != nil {
		log.WithError(err).Fatal("AutoMigrate failed")
	}

	hash, err := password.Hash(pass)
	if err != nil {
		log.WithError(err).Fatal("hash password")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admin := &domain.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		IsStaff:      true,
	}
	if err := repository.NewUserRepository(db).UpsertByEmail(ctx, admin); err != nil {
		log.WithError(err).Fatal("upsert admin")
	}

	log.WithFields(logrus.Fields{"user_id": admin.ID, "email": admin.Email}).Info("staff user ready")
}
