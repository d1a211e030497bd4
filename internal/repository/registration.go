package repository

import (
	"context"
	"time"

	"conference-payments/internal/model"

	"gorm.io/gorm"
)

type RegistrationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, registration *model.Registration) error
	FindByID(ctx context.Context, tx *gorm.DB, registrationID string) (*model.Registration, error)
	FindByPaymentID(ctx context.Context, tx *gorm.DB, paymentID string) (*model.Registration, error)
	FindByToken(ctx context.Context, token string) (*model.Registration, error)
	CountOtherPaid(ctx context.Context, tx *gorm.DB, conferenceID, paymentID, registrationID string) (int64, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, registrationID, paidSlot string) (bool, error)
	Cancel(ctx context.Context, registrationID string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]*model.Registration, error)
	List(ctx context.Context, status model.RegistrationStatus, offset, limit int) ([]*model.Registration, int64, error)
}

type registrationRepoImpl struct {
	db *gorm.DB
}

func NewRegistrationRepository(db *gorm.DB) RegistrationRepository {
	return &registrationRepoImpl{
		db: db,
	}
}

func (r *registrationRepoImpl) Create(ctx context.Context, tx *gorm.DB, registration *model.Registration) error {
	return tx.WithContext(ctx).Create(registration).Error
}

func (r *registrationRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, registrationID string) (*model.Registration, error) {
	if tx == nil {
		tx = r.db
	}

	var registration model.Registration
	err := tx.WithContext(ctx).
		Where("id = ?", registrationID).
		First(&registration).Error

	if err != nil {
		return nil, err
	}

	return &registration, nil
}

func (r *registrationRepoImpl) FindByPaymentID(ctx context.Context, tx *gorm.DB, paymentID string) (*model.Registration, error) {
	var registration model.Registration
	err := tx.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		First(&registration).Error

	if err != nil {
		return nil, err
	}

	return &registration, nil
}

func (r *registrationRepoImpl) FindByToken(ctx context.Context, token string) (*model.Registration, error) {
	var registration model.Registration
	err := r.db.WithContext(ctx).
		Where("token = ?", token).
		First(&registration).Error

	if err != nil {
		return nil, err
	}

	return &registration, nil
}

// CountOtherPaid counts other PAID registrations for the same conference and
// payment. payment_id is unique, so this stays at zero while the 1:1 link
// holds; the PaidSlot index in MarkPaid is what rejects a second paid row.
func (r *registrationRepoImpl) CountOtherPaid(ctx context.Context, tx *gorm.DB, conferenceID, paymentID, registrationID string) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&model.Registration{}).
		Where("conference_id = ?", conferenceID).
		Where("payment_id = ?", paymentID).
		Where("status = ?", model.RegistrationPaid).
		Where("id <> ?", registrationID).
		Count(&count).Error

	return count, err
}

// MarkPaid moves a PENDING registration to PAID and claims its paid slot.
// Another PAID registration holding the same slot fails with gorm.ErrDuplicatedKey.
func (r *registrationRepoImpl) MarkPaid(ctx context.Context, tx *gorm.DB, registrationID, paidSlot string) (bool, error) {
	result := tx.WithContext(ctx).Model(&model.Registration{}).
		Where(`
			id = ?
			AND status = ?
		`,
			registrationID,
			model.RegistrationPending,
		).
		Updates(map[string]interface{}{
			"status":     model.RegistrationPaid,
			"paid_slot":  paidSlot,
			"updated_at": time.Now(),
		})

	return result.RowsAffected > 0, result.Error
}

func (r *registrationRepoImpl) Cancel(ctx context.Context, registrationID string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Registration{}).
		Where("id = ? AND status = ?", registrationID, model.RegistrationPending).
		Updates(map[string]interface{}{
			"status":     model.RegistrationCancelled,
			"updated_at": time.Now(),
		})

	return result.RowsAffected > 0, result.Error
}

func (r *registrationRepoImpl) ListForUser(ctx context.Context, userID string) ([]*model.Registration, error) {
	var registrations []*model.Registration
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("status IN ?", []model.RegistrationStatus{model.RegistrationPending, model.RegistrationPaid}).
		Order("created_at DESC").
		Find(&registrations).Error

	if err != nil {
		return nil, err
	}

	return registrations, nil
}

func (r *registrationRepoImpl) List(ctx context.Context, status model.RegistrationStatus, offset, limit int) ([]*model.Registration, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Registration{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var registrations []*model.Registration
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&registrations).Error

	if err != nil {
		return nil, 0, err
	}

	return registrations, total, nil
}
