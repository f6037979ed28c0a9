package admin

import (
	"context"
	"time"

	"authservice/internal/settings"
)

// SettingsStore is the part of settings.Provider the admin module edits.
type SettingsStore interface {
	AccessTokenLifetime() time.Duration
	RefreshTokenLifetime() time.Duration
	Set(ctx context.Context, key settings.Key, value time.Duration) error
}
