package auth

import (
	"context"
	"time"

	"authservice/internal/domain"

	"github.com/google/uuid"
)

// UserRepositoryInterface lists the user store methods the engine uses.
type UserRepositoryInterface interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	Update(ctx context.Context, u *domain.User) error
}

// RefreshTokenRepositoryInterface is the refresh token store.
type RefreshTokenRepositoryInterface interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.RefreshToken, error)
	FindByUser(ctx context.Context, userID int64) (*domain.RefreshToken, error)
	Create(ctx context.Context, userID int64, now time.Time, lifetime time.Duration) (*domain.RefreshToken, error)
	Rotate(ctx context.Context, oldID uuid.UUID, userID int64, now time.Time, lifetime time.Duration) (*domain.RefreshToken, error)
	Delete(ctx context.Context, id uuid.UUID) error
	RecomputeExpiry(ctx context.Context, lifetime time.Duration) (int64, error)
}

// TokenCodec mints and verifies access tokens.
type TokenCodec interface {
	Mint(subject string, now time.Time, lifetime time.Duration) (string, error)
	Verify(token string, now time.Time) (string, error)
}
