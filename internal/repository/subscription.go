package repository

import (
	"context"
	"time"

	"conference-payments/internal/model"

	"gorm.io/gorm"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, sub *model.Subscription) error
	FindByID(ctx context.Context, subscriptionID string) (*model.Subscription, error)
	FindByPaymentID(ctx context.Context, tx *gorm.DB, paymentID string) (*model.Subscription, error)
	FindActiveByUser(ctx context.Context, tx *gorm.DB, userID string) (*model.Subscription, error)
	Activate(ctx context.Context, tx *gorm.DB, subscriptionID, userID string, start, end time.Time) (bool, error)
	ListDue(ctx context.Context, now time.Time) ([]*model.Subscription, error)
	Expire(ctx context.Context, tx *gorm.DB, subscriptionID string) (bool, error)
	CountActiveForUser(ctx context.Context, tx *gorm.DB, userID string) (int64, error)
	List(ctx context.Context, status model.SubscriptionStatus, offset, limit int) ([]*model.Subscription, int64, error)
}

type subscriptionRepoImpl struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepoImpl{
		db: db,
	}
}

func (r *subscriptionRepoImpl) Create(ctx context.Context, tx *gorm.DB, sub *model.Subscription) error {
	return tx.WithContext(ctx).Create(sub).Error
}

func (r *subscriptionRepoImpl) FindByID(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Where("id = ?", subscriptionID).
		First(&sub).
		Error

	if err != nil {
		return nil, err
	}

	return &sub, nil
}

func (r *subscriptionRepoImpl) FindByPaymentID(ctx context.Context, tx *gorm.DB, paymentID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := tx.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		First(&sub).
		Error

	if err != nil {
		return nil, err
	}

	return &sub, nil
}

func (r *subscriptionRepoImpl) FindActiveByUser(ctx context.Context, tx *gorm.DB, userID string) (*model.Subscription, error) {
	if tx == nil {
		tx = r.db
	}

	var sub model.Subscription
	err := tx.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.SubscriptionActive).
		First(&sub).
		Error

	if err != nil {
		return nil, err
	}

	return &sub, nil
}

// Activate moves a PENDING subscription to ACTIVE. ActiveUserID is unique, so
// a second ACTIVE row for the same user fails with gorm.ErrDuplicatedKey.
func (r *subscriptionRepoImpl) Activate(ctx context.Context, tx *gorm.DB, subscriptionID, userID string, start, end time.Time) (bool, error) {
	result := tx.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("id = ? AND status = ?", subscriptionID, model.SubscriptionPending).
		Updates(map[string]interface{}{
			"status":         model.SubscriptionActive,
			"paid_at":        start,
			"start_date":     start,
			"end_date":       end,
			"active_user_id": userID,
			"updated_at":     time.Now(),
		})

	return result.RowsAffected > 0, result.Error
}

func (r *subscriptionRepoImpl) ListDue(ctx context.Context, now time.Time) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND end_date <= ?", model.SubscriptionActive, now.UTC()).
		Find(&subs).
		Error

	if err != nil {
		return nil, err
	}

	return subs, nil
}

func (r *subscriptionRepoImpl) Expire(ctx context.Context, tx *gorm.DB, subscriptionID string) (bool, error) {
	result := tx.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("id = ? AND status = ?", subscriptionID, model.SubscriptionActive).
		Updates(map[string]interface{}{
			"status":         model.SubscriptionExpired,
			"active_user_id": nil,
			"updated_at":     time.Now(),
		})

	return result.RowsAffected > 0, result.Error
}

func (r *subscriptionRepoImpl) CountActiveForUser(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&model.Subscription{}).
		Where("user_id = ? AND status = ?", userID, model.SubscriptionActive).
		Count(&count).Error

	return count, err
}

func (r *subscriptionRepoImpl) List(ctx context.Context, status model.SubscriptionStatus, offset, limit int) ([]*model.Subscription, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Subscription{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var subs []*model.Subscription
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&subs).Error

	if err != nil {
		return nil, 0, err
	}

	return subs, total, nil
}
