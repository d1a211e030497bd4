package service

import (
	"context"
	"errors"
	"fmt"

	"conference-payments/internal/apperr"
	"conference-payments/internal/model"
	"conference-payments/internal/repository"

	"gorm.io/gorm"
)

type ConferenceService interface {
	RegistrationTypes(ctx context.Context, conferenceID string) ([]*model.RegistrationType, error)
}

type conferenceServiceImpl struct {
	conferenceRepo repository.ConferenceRepository
}

func NewConferenceService(conferenceRepo repository.ConferenceRepository) ConferenceService {
	return &conferenceServiceImpl{
		conferenceRepo: conferenceRepo,
	}
}

func (s *conferenceServiceImpl) RegistrationTypes(ctx context.Context, conferenceID string) ([]*model.RegistrationType, error) {
	if _, err := s.conferenceRepo.FindConference(ctx, conferenceID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("conference %s: %w", conferenceID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("find conference: %w", err)
	}

	types, err := s.conferenceRepo.ListRegistrationTypes(ctx, conferenceID)
	if err != nil {
		return nil, fmt.Errorf("list registration types: %w", err)
	}
	return types, nil
}
