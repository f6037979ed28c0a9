package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"authservice/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

type userModel struct {
	ID           int64     `gorm:"column:id;primaryKey"`
	Email        string    `gorm:"column:email;size:254;uniqueIndex;not null"`
	Username     string    `gorm:"column:username;size:150;not null;default:''"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	IsStaff      bool      `gorm:"column:is_staff;not null;default:false"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

func toDomainUser(m userModel) *domain.User {
	return &domain.User{
		ID:           m.ID,
		Email:        m.Email,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		IsStaff:      m.IsStaff,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toUserModel(u *domain.User) userModel {
	return userModel{
		ID:           u.ID,
		Email:        NormalizeEmail(u.Email),
		Username:     strings.TrimSpace(u.Username),
		PasswordHash: u.PasswordHash,
		IsStaff:      u.IsStaff,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// NormalizeEmail is the canonical form used for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	m := toUserModel(u)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return err
	}
	*u = *toDomainUser(m)
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var m userModel
	err := r.db.WithContext(ctx).
		Where("email = ?", NormalizeEmail(email)).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return toDomainUser(m), nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return toDomainUser(m), nil
}

// Update writes every mutable column of u.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	m := toUserModel(u)
	res := r.db.WithContext(ctx).Model(&userModel{ID: m.ID}).Updates(map[string]any{
		"email":         m.Email,
		"username":      m.Username,
		"password_hash": m.PasswordHash,
		"is_staff":      m.IsStaff,
		"updated_at":    time.Now().UTC(),
	})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return ErrEmailTaken
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}

	updated, err := r.GetByID(ctx, m.ID)
	if err != nil {
		return err
	}
	*u = *updated
	return nil
}

// UpsertByEmail creates the user or overwrites the existing row with the
// same email. Used by the seed command.
func (r *UserRepository) UpsertByEmail(ctx context.Context, u *domain.User) error {
	m := toUserModel(u)
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "password_hash", "is_staff", "updated_at"}),
	}).Create(&m).Error
	if err != nil {
		return err
	}

	stored, err := r.GetByEmail(ctx, m.Email)
	if err != nil {
		return err
	}
	*u = *stored
	return nil
}
