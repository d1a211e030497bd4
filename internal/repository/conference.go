package repository

import (
	"context"
	"time"

	"conference-payments/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConferenceRepository interface {
	Seed(ctx context.Context) error
	FindConference(ctx context.Context, conferenceID string) (*model.Conference, error)
	FindRegistrationType(ctx context.Context, registrationTypeID string) (*model.RegistrationType, error)
	ListRegistrationTypes(ctx context.Context, conferenceID string) ([]*model.RegistrationType, error)
}

type conferenceRepoImpl struct {
	db *gorm.DB
}

func NewConferenceRepository(db *gorm.DB) ConferenceRepository {
	return &conferenceRepoImpl{
		db: db,
	}
}

const demoConferenceID = "7f6d1c2e-5b0a-4c7e-9f1d-2a3b4c5d6e7f"

// Seed inserts a demo conference with its registration types. Rows that
// already exist are left alone.
func (r *conferenceRepoImpl) Seed(ctx context.Context) error {
	conference := model.Conference{
		ID:       demoConferenceID,
		Title:    "Global Visionaries Conference",
		StartsAt: time.Date(2027, time.March, 15, 9, 0, 0, 0, time.UTC),
	}
	types := []model.RegistrationType{
		{ID: "0b6f0a52-1d8e-4f55-9a2c-6a1f3e7d9b10", ConferenceID: demoConferenceID, Name: "Early Bird", Price: decimal.NewFromInt(50000)},
		{ID: "3c9e5b41-7a2d-4e8f-b6c1-0d4a2f8e6c21", ConferenceID: demoConferenceID, Name: "Regular", Price: decimal.NewFromInt(75000)},
		{ID: "9a1d7e63-4b5c-4f2a-8e0d-1c3b5a7f9e32", ConferenceID: demoConferenceID, Name: "VIP Pass", Price: decimal.NewFromInt(150000)},
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&conference).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&types).Error
	})
}

func (r *conferenceRepoImpl) FindConference(ctx context.Context, conferenceID string) (*model.Conference, error) {
	var conference model.Conference
	err := r.db.WithContext(ctx).
		Where("id = ?", conferenceID).
		First(&conference).Error

	if err != nil {
		return nil, err
	}

	return &conference, nil
}

func (r *conferenceRepoImpl) FindRegistrationType(ctx context.Context, registrationTypeID string) (*model.RegistrationType, error) {
	var registrationType model.RegistrationType
	err := r.db.WithContext(ctx).
		Where("id = ?", registrationTypeID).
		First(&registrationType).Error

	if err != nil {
		return nil, err
	}

	return &registrationType, nil
}

func (r *conferenceRepoImpl) ListRegistrationTypes(ctx context.Context, conferenceID string) ([]*model.RegistrationType, error) {
	var types []*model.RegistrationType
	err := r.db.WithContext(ctx).
		Where("conference_id = ?", conferenceID).
		Order("price").
		Find(&types).
		Error

	if err != nil {
		return nil, err
	}

	return types, nil
}
