package repository

import (
	"context"
	"errors"
	"time"

	"authservice/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RefreshTokenRepository provides DB access for refresh tokens.
//
// Timestamps are stored as unix seconds so that expires_at can be
// recomputed from created_at with plain integer arithmetic on every
// supported database.
type RefreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

type refreshTokenModel struct {
	ID        string    `gorm:"column:id;primaryKey;size:36"`
	UserID    int64     `gorm:"column:user_id;not null;uniqueIndex:idx_refresh_tokens_user_id"`
	User      userModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt int64     `gorm:"column:created_at;not null;autoCreateTime:false"`
	ExpiresAt int64     `gorm:"column:expires_at;not null;index"`
}

func (refreshTokenModel) TableName() string { return "refresh_tokens" }

func toDomainRefreshToken(m refreshTokenModel) (*domain.RefreshToken, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, err
	}
	return &domain.RefreshToken{
		ID:        id,
		UserID:    m.UserID,
		CreatedAt: time.Unix(m.CreatedAt, 0).UTC(),
		ExpiresAt: time.Unix(m.ExpiresAt, 0).UTC(),
	}, nil
}

func newRefreshTokenModel(userID int64, now time.Time, lifetime time.Duration) refreshTokenModel {
	created := now.Unix()
	return refreshTokenModel{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: created,
		ExpiresAt: created + lifetimeSeconds(lifetime),
	}
}

func lifetimeSeconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

func (r *RefreshTokenRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.RefreshToken, error) {
	var m refreshTokenModel
	if err := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, err
	}
	return toDomainRefreshToken(m)
}

func (r *RefreshTokenRepository) FindByUser(ctx context.Context, userID int64) (*domain.RefreshToken, error) {
	var m refreshTokenModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, err
	}
	return toDomainRefreshToken(m)
}

// Create inserts a token for userID. The unique index on user_id turns a
// second live token into ErrRefreshTokenConflict.
func (r *RefreshTokenRepository) Create(ctx context.Context, userID int64, now time.Time, lifetime time.Duration) (*domain.RefreshToken, error) {
	m := newRefreshTokenModel(userID, now, lifetime)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRefreshTokenConflict
		}
		return nil, err
	}
	return toDomainRefreshToken(m)
}

// Rotate deletes oldID and inserts a fresh token for userID in one
// transaction. If oldID is already gone (a concurrent rotation or logout
// won) it returns ErrRefreshTokenNotFound and nothing is inserted.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldID uuid.UUID, userID int64, now time.Time, lifetime time.Duration) (*domain.RefreshToken, error) {
	m := newRefreshTokenModel(userID, now, lifetime)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", oldID.String(), userID).Delete(&refreshTokenModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRefreshTokenNotFound
		}
		return tx.Omit(clause.Associations).Create(&m).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRefreshTokenConflict
		}
		return nil, err
	}
	return toDomainRefreshToken(m)
}

// Delete removes the token. Deleting a missing token is not an error.
func (r *RefreshTokenRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&refreshTokenModel{}).Error
}

// RecomputeExpiry sets expires_at = created_at + lifetime on every row in a
// single statement.
func (r *RefreshTokenRepository) RecomputeExpiry(ctx context.Context, lifetime time.Duration) (int64, error) {
	res := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Model(&refreshTokenModel{}).
		Update("expires_at", gorm.Expr("created_at + ?", lifetimeSeconds(lifetime)))
	return res.RowsAffected, res.Error
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ?", now.Unix()).
		Delete(&refreshTokenModel{})
	return res.RowsAffected, res.Error
}
