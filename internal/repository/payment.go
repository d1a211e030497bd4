package repository

import (
	"context"
	"time"

	"conference-payments/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error
	AttachIntent(ctx context.Context, tx *gorm.DB, paymentID, reference, link string) (bool, error)
	MarkSuccessful(ctx context.Context, tx *gorm.DB, paymentID string, paidAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, tx *gorm.DB, paymentID string) (bool, error)
	FindByID(ctx context.Context, tx *gorm.DB, paymentID string) (*model.Payment, error)
	FindByGatewayReference(ctx context.Context, reference string) (*model.Payment, error)
	ListForUser(ctx context.Context, userID string) ([]*model.Payment, error)
	Revenue(ctx context.Context) ([]*PurposeRevenue, error)
}

type PurposeRevenue struct {
	Purpose  model.PaymentPurpose
	Currency string
	Count    int64
	Total    decimal.Decimal
}

type paymentRepoImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepoImpl{
		db: db,
	}
}

func (r *paymentRepoImpl) Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	return tx.WithContext(ctx).Create(payment).Error
}

// AttachIntent stores the gateway reference and link. A reference is written
// once; the update matches nothing when one is already set.
func (r *paymentRepoImpl) AttachIntent(ctx context.Context, tx *gorm.DB, paymentID, reference, link string) (bool, error) {
	result := tx.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND gateway_ref IS NULL", paymentID).
		Updates(map[string]interface{}{
			"gateway_ref":  reference,
			"payment_link": link,
			"updated_at":   time.Now(),
		})

	return result.RowsAffected > 0, result.Error
}

func (r *paymentRepoImpl) MarkSuccessful(ctx context.Context, tx *gorm.DB, paymentID string, paidAt time.Time) (bool, error) {
	result := tx.WithContext(ctx).Model(&model.Payment{}).
		Where(`
			id = ?
			AND status = ?
		`,
			paymentID,
			model.PaymentPending,
		).
		Updates(map[string]interface{}{
			"status":     model.PaymentSuccessful,
			"paid_at":    paidAt,
			"updated_at": time.Now(),
		})

	return result.RowsAffected > 0, result.Error
}

func (r *paymentRepoImpl) MarkFailed(ctx context.Context, tx *gorm.DB, paymentID string) (bool, error) {
	result := tx.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND status = ?", paymentID, model.PaymentPending).
		Updates(map[string]interface{}{
			"status":     model.PaymentFailed,
			"updated_at": time.Now(),
		})

	return result.RowsAffected > 0, result.Error
}

func (r *paymentRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, paymentID string) (*model.Payment, error) {
	var payment model.Payment
	err := tx.WithContext(ctx).
		Where("id = ?", paymentID).
		First(&payment).Error

	if err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepoImpl) FindByGatewayReference(ctx context.Context, reference string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("gateway_ref = ?", reference).
		First(&payment).Error

	if err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepoImpl) ListForUser(ctx context.Context, userID string) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&payments).Error

	if err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *paymentRepoImpl) Revenue(ctx context.Context) ([]*PurposeRevenue, error) {
	var rows []*PurposeRevenue
	err := r.db.WithContext(ctx).Model(&model.Payment{}).
		Select("purpose, currency, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Where("status = ?", model.PaymentSuccessful).
		Group("purpose, currency").
		Order("purpose, currency").
		Scan(&rows).Error

	if err != nil {
		return nil, err
	}

	return rows, nil
}
