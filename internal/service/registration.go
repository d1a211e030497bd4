package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"conference-payments/internal/apperr"
	"conference-payments/internal/model"
	"conference-payments/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CreateRegistrationInput struct {
	ConferenceID       string
	RegistrationTypeID string
	Price              decimal.Decimal
	PassportNo         *string
	PassportCountry    *string
	DateOfBirth        *time.Time
	PhoneNumber        *string
}

type CreateRegistrationResult struct {
	PaymentID      string
	RegistrationID string
	Reference      string
	PaymentLink    string
}

type RegistrationQuery struct {
	Status model.RegistrationStatus
	Page   int
	Limit  int
}

type Page[T any] struct {
	Items []*T
	Total int64
	Page  int
	Limit int
}

type RegistrationService interface {
	PaymentConfirmer

	Create(ctx context.Context, userID string, in CreateRegistrationInput) (*CreateRegistrationResult, error)
	Cancel(ctx context.Context, registrationID string) (*model.Registration, error)
	FindByToken(ctx context.Context, token, passportNo, userID string) (*model.Registration, error)
	Get(ctx context.Context, registrationID string) (*model.Registration, error)
	ListForUser(ctx context.Context, userID string) ([]*model.Registration, error)
	List(ctx context.Context, q RegistrationQuery) (*Page[model.Registration], error)
}

type registrationServiceImpl struct {
	db               *gorm.DB
	payments         PaymentService
	tokens           TokenGenerator
	currency         string
	registrationRepo repository.RegistrationRepository
	conferenceRepo   repository.ConferenceRepository
	userRepo         repository.UserRepository
	logger           *zap.Logger
}

func NewRegistrationService(
	db *gorm.DB,
	payments PaymentService,
	tokens TokenGenerator,
	currency string,
	registrationRepo repository.RegistrationRepository,
	conferenceRepo repository.ConferenceRepository,
	userRepo repository.UserRepository,
	logger *zap.Logger,
) RegistrationService {
	return &registrationServiceImpl{
		db:               db,
		payments:         payments,
		tokens:           tokens,
		currency:         currency,
		registrationRepo: registrationRepo,
		conferenceRepo:   conferenceRepo,
		userRepo:         userRepo,
		logger:           logger,
	}
}

func (s *registrationServiceImpl) Create(ctx context.Context, userID string, in CreateRegistrationInput) (*CreateRegistrationResult, error) {
	registrationType, err := s.conferenceRepo.FindRegistrationType(ctx, in.RegistrationTypeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrRegistrationTypeNotFound
		}
		return nil, fmt.Errorf("find registration type: %w", err)
	}

	if in.ConferenceID != "" && in.ConferenceID != registrationType.ConferenceID {
		return nil, fmt.Errorf("registration type does not belong to conference %s: %w", in.ConferenceID, apperr.ErrInvalidInput)
	}
	if in.Price.IsNegative() {
		return nil, fmt.Errorf("price must not be negative: %w", apperr.ErrInvalidInput)
	}
	if !in.Price.IsZero() && !in.Price.Equal(registrationType.Price) {
		return nil, fmt.Errorf("price %s does not match %s: %w", in.Price, registrationType.Price, apperr.ErrInvalidInput)
	}

	var registration *model.Registration
	payment, err := s.payments.CreatePayment(ctx, CreatePaymentInput{
		UserID:   userID,
		Amount:   registrationType.Price,
		Currency: s.currency,
		Purpose:  model.PurposeConference,
	}, func(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
		registration = &model.Registration{
			ID:                 uuid.NewString(),
			UserID:             userID,
			ConferenceID:       registrationType.ConferenceID,
			RegistrationTypeID: registrationType.ID,
			PaymentID:          payment.ID,
			Status:             model.RegistrationPending,
		}
		if err := s.insertWithToken(ctx, tx, registration, registrationType.Name); err != nil {
			return err
		}

		err := s.userRepo.UpdatePassport(ctx, tx, userID, repository.PassportDetails{
			PassportNo:      in.PassportNo,
			PassportCountry: in.PassportCountry,
			DateOfBirth:     in.DateOfBirth,
			PhoneNumber:     in.PhoneNumber,
		})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrUserNotFound
			}
			return fmt.Errorf("update passport details: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("registration created",
		zap.String("registration_id", registration.ID),
		zap.String("payment_id", payment.ID),
		zap.String("conference_id", registration.ConferenceID),
	)

	return &CreateRegistrationResult{
		PaymentID:      payment.ID,
		RegistrationID: registration.ID,
		Reference:      *payment.GatewayRef,
		PaymentLink:    *payment.PaymentLink,
	}, nil
}

// insertWithToken inserts the registration under a savepoint so a token
// collision can be retried once with a fresh seed inside the same transaction.
func (s *registrationServiceImpl) insertWithToken(ctx context.Context, tx *gorm.DB, registration *model.Registration, typeName string) error {
	seeds := []string{registration.ID, registration.ID + "-retry"}
	for _, seed := range seeds {
		registration.Token = s.tokens.Generate(typeName, seed)

		err := tx.Transaction(func(sp *gorm.DB) error {
			return s.registrationRepo.Create(ctx, sp, registration)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("store registration in db: %w", err)
		}
		s.logger.Debug("registration token collision", zap.String("token", registration.Token))
	}

	return apperr.ErrTokenGenerationFailed
}

func (s *registrationServiceImpl) Cancel(ctx context.Context, registrationID string) (*model.Registration, error) {
	cancelled, err := s.registrationRepo.Cancel(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("cancel registration: %w", err)
	}

	registration, err := s.registrationRepo.FindByID(ctx, nil, registrationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("reload registration: %w", err)
	}

	if cancelled {
		s.logger.Info("registration cancelled", zap.String("registration_id", registrationID))
		return registration, nil
	}

	switch registration.Status {
	case model.RegistrationCancelled:
		return nil, apperr.ErrAlreadyCancelled
	case model.RegistrationPaid:
		return nil, apperr.ErrCannotCancelPaid
	default:
		return nil, fmt.Errorf("registration %s is %s: %w", registrationID, registration.Status, apperr.ErrInvalidTransition)
	}
}

func (s *registrationServiceImpl) ConfirmPayment(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	registration, err := s.registrationRepo.FindByPaymentID(ctx, tx, payment.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrRegistrationNotFound
		}
		return fmt.Errorf("find registration by payment: %w", err)
	}

	switch registration.Status {
	case model.RegistrationPaid:
		return apperr.ErrAlreadyPaid
	case model.RegistrationCancelled:
		return fmt.Errorf("registration %s is cancelled: %w", registration.ID, apperr.ErrInvalidTransition)
	}

	others, err := s.registrationRepo.CountOtherPaid(ctx, tx, registration.ConferenceID, payment.ID, registration.ID)
	if err != nil {
		return fmt.Errorf("check paid registrations: %w", err)
	}
	if others > 0 {
		return apperr.ErrAlreadyPaid
	}

	paid, err := s.registrationRepo.MarkPaid(ctx, tx, registration.ID, model.PaidSlotKey(registration.UserID, registration.ConferenceID))
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			s.logger.Warn("conference already paid by user",
				zap.String("registration_id", registration.ID),
				zap.String("payment_id", payment.ID),
			)
			return apperr.ErrAlreadyPaid
		}
		return fmt.Errorf("mark registration paid: %w", err)
	}
	if !paid {
		// a concurrent writer changed the row after it was read
		return apperr.ErrAlreadyPaid
	}

	s.logger.Info("registration paid",
		zap.String("registration_id", registration.ID),
		zap.String("payment_id", payment.ID),
	)
	return nil
}

func (s *registrationServiceImpl) IsConfirmed(ctx context.Context, tx *gorm.DB, paymentID string) (bool, error) {
	registration, err := s.registrationRepo.FindByPaymentID(ctx, tx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("find registration by payment: %w", err)
	}
	return registration.Status == model.RegistrationPaid, nil
}

func (s *registrationServiceImpl) FindByToken(ctx context.Context, token, passportNo, userID string) (*model.Registration, error) {
	registration, err := s.registrationRepo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("find registration by token: %w", err)
	}
	if registration.Status != model.RegistrationPaid || registration.UserID != userID {
		return nil, apperr.ErrNotFound
	}

	user, err := s.userRepo.FindByID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if passportNo == "" || user.PassportNo == nil || *user.PassportNo != passportNo {
		return nil, apperr.ErrNotFound
	}

	return registration, nil
}

func (s *registrationServiceImpl) Get(ctx context.Context, registrationID string) (*model.Registration, error) {
	registration, err := s.registrationRepo.FindByID(ctx, nil, registrationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return registration, nil
}

func (s *registrationServiceImpl) ListForUser(ctx context.Context, userID string) ([]*model.Registration, error) {
	registrations, err := s.registrationRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return registrations, nil
}

func (s *registrationServiceImpl) List(ctx context.Context, q RegistrationQuery) (*Page[model.Registration], error) {
	page, limit := normalizePage(q.Page, q.Limit)

	registrations, total, err := s.registrationRepo.List(ctx, q.Status, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}

	return &Page[model.Registration]{
		Items: registrations,
		Total: total,
		Page:  page,
		Limit: limit,
	}, nil
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
