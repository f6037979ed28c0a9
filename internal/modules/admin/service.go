package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"authservice/internal/settings"

	"github.com/sirupsen/logrus"
)

var ErrNothingToUpdate = errors.New("no settings given")

type Service struct {
	store SettingsStore
	log   logrus.FieldLogger
}

func NewService(store SettingsStore, log logrus.FieldLogger) *Service {
	return &Service{store: store, log: log}
}

func (s *Service) GetSettings() SettingsResponse {
	return SettingsResponse{
		AccessTokenLifetime:  seconds(s.store.AccessTokenLifetime()),
		RefreshTokenLifetime: seconds(s.store.RefreshTokenLifetime()),
	}
}

// UpdateSettings validates every given value before writing any of them.
// A refresh lifetime change reaches the token engine through the store's
// change notifications.
func (s *Service) UpdateSettings(ctx context.Context, actorID int64, req UpdateSettingsRequest) (SettingsResponse, error) {
	changes := make(map[settings.Key]time.Duration, 2)
	if req.AccessTokenLifetime != nil {
		changes[settings.AccessTokenLifetime] = time.Duration(*req.AccessTokenLifetime) * time.Second
	}
	if req.RefreshTokenLifetime != nil {
		changes[settings.RefreshTokenLifetime] = time.Duration(*req.RefreshTokenLifetime) * time.Second
	}
	if len(changes) == 0 {
		return SettingsResponse{}, ErrNothingToUpdate
	}

	for key, value := range changes {
		if err := settings.Validate(key, value); err != nil {
			return SettingsResponse{}, err
		}
	}
	for _, key := range settings.Keys {
		value, ok := changes[key]
		if !ok {
			continue
		}
		if err := s.store.Set(ctx, key, value); err != nil {
			return SettingsResponse{}, fmt.Errorf("set %s: %w", key, err)
		}
		s.log.WithFields(logrus.Fields{
			"actor_id": actorID,
			"key":      key,
			"value":    value.String(),
		}).Info("setting changed")
	}

	return s.GetSettings(), nil
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}
