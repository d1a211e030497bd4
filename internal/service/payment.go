package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"conference-payments/internal/apperr"
	"conference-payments/internal/client"
	"conference-payments/internal/model"
	"conference-payments/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AttachFunc persists the row that depends on a payment. It runs in the same
// transaction that stores the gateway reference.
type AttachFunc func(ctx context.Context, tx *gorm.DB, payment *model.Payment) error

type CreatePaymentInput struct {
	UserID   string
	Amount   decimal.Decimal
	Currency string
	Purpose  model.PaymentPurpose
}

type PaymentService interface {
	CreatePayment(ctx context.Context, in CreatePaymentInput, attach AttachFunc) (*model.Payment, error)
	MarkSuccessful(ctx context.Context, tx *gorm.DB, paymentID string, paidAt time.Time) (*model.Payment, bool, error)
	MarkFailed(ctx context.Context, paymentID, userID string) (*model.Payment, error)
	FindByID(ctx context.Context, paymentID string) (*model.Payment, error)
	FindByGatewayReference(ctx context.Context, reference string) (*model.Payment, error)
	ListForUser(ctx context.Context, userID string) ([]*model.Payment, error)
	RevenueSummary(ctx context.Context) ([]*repository.PurposeRevenue, error)
}

type paymentServiceImpl struct {
	db             *gorm.DB
	paystackClient client.PaystackClient
	paymentRepo    repository.PaymentRepository
	userRepo       repository.UserRepository
	logger         *zap.Logger
}

func NewPaymentService(
	db *gorm.DB,
	paystackClient client.PaystackClient,
	paymentRepo repository.PaymentRepository,
	userRepo repository.UserRepository,
	logger *zap.Logger,
) PaymentService {
	return &paymentServiceImpl{
		db:             db,
		paystackClient: paystackClient,
		paymentRepo:    paymentRepo,
		userRepo:       userRepo,
		logger:         logger,
	}
}

func (s *paymentServiceImpl) CreatePayment(ctx context.Context, in CreatePaymentInput, attach AttachFunc) (*model.Payment, error) {
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive: %w", apperr.ErrInvalidInput)
	}
	if len(in.Currency) != 3 {
		return nil, fmt.Errorf("currency %q: %w", in.Currency, apperr.ErrInvalidInput)
	}
	if in.Purpose != model.PurposeConference && in.Purpose != model.PurposeSubscription {
		return nil, fmt.Errorf("purpose %q: %w", in.Purpose, apperr.ErrInvalidInput)
	}

	user, err := s.userRepo.FindByID(ctx, nil, in.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	payment := &model.Payment{
		UserID:   user.ID,
		Amount:   in.Amount,
		Currency: in.Currency,
		Purpose:  in.Purpose,
		Status:   model.PaymentPending,
	}
	if err := s.paymentRepo.Create(ctx, s.db, payment); err != nil {
		return nil, fmt.Errorf("store payment in db: %w", err)
	}

	// no transaction is open across the gateway call
	intent, err := s.paystackClient.CreateIntent(ctx, client.IntentRequest{
		PaymentID: payment.ID,
		Email:     user.Email,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
	})
	if err != nil {
		s.logger.Warn("payment intent failed",
			zap.String("payment_id", payment.ID),
			zap.Error(err),
		)
		if apperr.KindOf(err) != apperr.KindGatewayUnavailable {
			err = fmt.Errorf("%w: %w", apperr.ErrGatewayUnavailable, err)
		}
		return nil, fmt.Errorf("paystack create intent: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attached, err := s.paymentRepo.AttachIntent(ctx, tx, payment.ID, intent.Reference, intent.AuthorizationURL)
		if err != nil {
			return fmt.Errorf("store payment reference: %w", err)
		}
		if !attached {
			return fmt.Errorf("payment %s already has a reference: %w", payment.ID, apperr.ErrInvalidTransition)
		}
		payment.GatewayRef = &intent.Reference
		payment.PaymentLink = &intent.AuthorizationURL

		if attach == nil {
			return nil
		}
		return attach(ctx, tx, payment)
	})
	if err != nil {
		s.discard(payment.ID, err)
		return nil, err
	}

	s.logger.Info("payment created",
		zap.String("payment_id", payment.ID),
		zap.String("purpose", string(payment.Purpose)),
		zap.String("reference", intent.Reference),
	)

	return payment, nil
}

// discard fails a payment whose dependent row could not be written, so the
// unlinked intent can never be confirmed.
func (s *paymentServiceImpl) discard(paymentID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.paymentRepo.MarkFailed(ctx, s.db, paymentID); err != nil {
		s.logger.Error("discard payment", zap.String("payment_id", paymentID), zap.Error(err))
		return
	}
	s.logger.Warn("payment discarded", zap.String("payment_id", paymentID), zap.Error(cause))
}

func (s *paymentServiceImpl) MarkSuccessful(ctx context.Context, tx *gorm.DB, paymentID string, paidAt time.Time) (*model.Payment, bool, error) {
	transitioned, err := s.paymentRepo.MarkSuccessful(ctx, tx, paymentID, paidAt)
	if err != nil {
		return nil, false, fmt.Errorf("mark payment successful: %w", err)
	}

	payment, err := s.paymentRepo.FindByID(ctx, tx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, apperr.ErrPaymentNotFound
		}
		return nil, false, fmt.Errorf("reload payment: %w", err)
	}

	if transitioned {
		return payment, true, nil
	}

	switch payment.Status {
	case model.PaymentSuccessful:
		return payment, false, nil
	default:
		return nil, false, fmt.Errorf("payment %s is %s: %w", paymentID, payment.Status, apperr.ErrInvalidTransition)
	}
}

func (s *paymentServiceImpl) MarkFailed(ctx context.Context, paymentID, userID string) (*model.Payment, error) {
	var payment *model.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.paymentRepo.FindByID(ctx, tx, paymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrPaymentNotFound
			}
			return fmt.Errorf("find payment: %w", err)
		}
		if found.UserID != userID {
			return apperr.ErrPaymentNotFound
		}

		if _, err := s.paymentRepo.MarkFailed(ctx, tx, paymentID); err != nil {
			return fmt.Errorf("mark payment failed: %w", err)
		}

		payment, err = s.paymentRepo.FindByID(ctx, tx, paymentID)
		if err != nil {
			return fmt.Errorf("reload payment: %w", err)
		}
		if payment.Status != model.PaymentFailed {
			return fmt.Errorf("payment %s is %s: %w", paymentID, payment.Status, apperr.ErrInvalidTransition)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return payment, nil
}

func (s *paymentServiceImpl) FindByID(ctx context.Context, paymentID string) (*model.Payment, error) {
	payment, err := s.paymentRepo.FindByID(ctx, s.db, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return payment, nil
}

func (s *paymentServiceImpl) FindByGatewayReference(ctx context.Context, reference string) (*model.Payment, error) {
	payment, err := s.paymentRepo.FindByGatewayReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrPaymentReferenceNotFound
		}
		return nil, fmt.Errorf("find payment by reference: %w", err)
	}
	return payment, nil
}

func (s *paymentServiceImpl) ListForUser(ctx context.Context, userID string) ([]*model.Payment, error) {
	payments, err := s.paymentRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

func (s *paymentServiceImpl) RevenueSummary(ctx context.Context) ([]*repository.PurposeRevenue, error) {
	rows, err := s.paymentRepo.Revenue(ctx)
	if err != nil {
		return nil, fmt.Errorf("revenue summary: %w", err)
	}
	return rows, nil
}
