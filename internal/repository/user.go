package repository

import (
	"context"
	"time"

	"conference-payments/internal/model"

	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, tx *gorm.DB, userID string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePassport(ctx context.Context, tx *gorm.DB, userID string, details PassportDetails) error
	SetPremium(ctx context.Context, tx *gorm.DB, userID string, premium bool) error
}

// PassportDetails carries the contact fields a registration may update.
// Nil fields are left untouched.
type PassportDetails struct {
	PassportNo      *string
	PassportCountry *string
	DateOfBirth     *time.Time
	PhoneNumber     *string
}

type userRepoImpl struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepoImpl{
		db: db,
	}
}

func (r *userRepoImpl) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, userID string) (*model.User, error) {
	if tx == nil {
		tx = r.db
	}

	var user model.User
	err := tx.WithContext(ctx).
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userRepoImpl) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userRepoImpl) UpdatePassport(ctx context.Context, tx *gorm.DB, userID string, details PassportDetails) error {
	updates := map[string]interface{}{}
	if details.PassportNo != nil {
		updates["passport_no"] = *details.PassportNo
	}
	if details.PassportCountry != nil {
		updates["passport_country"] = *details.PassportCountry
	}
	if details.DateOfBirth != nil {
		updates["date_of_birth"] = *details.DateOfBirth
	}
	if details.PhoneNumber != nil {
		updates["phone_number"] = *details.PhoneNumber
	}
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now()

	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *userRepoImpl) SetPremium(ctx context.Context, tx *gorm.DB, userID string, premium bool) error {
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"is_premium": premium,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
