package repository

import (
	"context"
	"testing"

	"authservice/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateNormalizesEmail(t *testing.T) {
	users := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	u := &domain.User{Email: "  Naruto@Konoha.JP ", Username: "naruto", PasswordHash: "h"}
	require.NoError(t, users.Create(ctx, u))
	assert.NotZero(t, u.ID)
	assert.Equal(t, "naruto@konoha.jp", u.Email)

	got, err := users.GetByEmail(ctx, "NARUTO@konoha.jp")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	users := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, users.Create(ctx, &domain.User{Email: "a@x.com", PasswordHash: "h"}))
	err := users.Create(ctx, &domain.User{Email: "A@X.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestUserRepository_NotFound(t *testing.T) {
	users := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	_, err := users.GetByEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = users.GetByID(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)

	err = users.Update(ctx, &domain.User{ID: 999, Email: "z@x.com"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_Update(t *testing.T) {
	users := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	a := &domain.User{Email: "a@x.com", Username: "admin", PasswordHash: "h"}
	require.NoError(t, users.Create(ctx, a))
	require.NoError(t, users.Create(ctx, &domain.User{Email: "b@x.com", PasswordHash: "h"}))

	a.Username = "ADMIN2"
	require.NoError(t, users.Update(ctx, a))
	assert.Equal(t, "ADMIN2", a.Username)

	a.Email = "b@x.com"
	assert.ErrorIs(t, users.Update(ctx, a), ErrEmailTaken)
}

func TestUserRepository_UpsertByEmail(t *testing.T) {
	users := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	u := &domain.User{Email: "admin@example.com", Username: "admin", PasswordHash: "h1", IsStaff: true}
	require.NoError(t, users.UpsertByEmail(ctx, u))
	firstID := u.ID

	again := &domain.User{Email: "admin@example.com", Username: "root", PasswordHash: "h2", IsStaff: true}
	require.NoError(t, users.UpsertByEmail(ctx, again))
	assert.Equal(t, firstID, again.ID)
	assert.Equal(t, "root", again.Username)
	assert.Equal(t, "h2", again.PasswordHash)
	assert.True(t, again.IsStaff)
}
