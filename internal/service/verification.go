package service

import (
	"context"
	"fmt"
	"time"

	"conference-payments/internal/apperr"
	"conference-payments/internal/client"
	"conference-payments/internal/metrics"
	"conference-payments/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PaymentConfirmer applies the domain transition that follows a successful
// payment. Both methods run inside the caller's transaction.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, tx *gorm.DB, payment *model.Payment) error
	IsConfirmed(ctx context.Context, tx *gorm.DB, paymentID string) (bool, error)
}

type VerifyResult struct {
	Status   string
	Payment  *model.Payment
	Replayed bool
}

type VerificationService interface {
	VerifyByReference(ctx context.Context, reference string) (*VerifyResult, error)
}

type verificationServiceImpl struct {
	db             *gorm.DB
	paystackClient client.PaystackClient
	payments       PaymentService
	confirmers     map[model.PaymentPurpose]PaymentConfirmer
	metrics        *metrics.Metrics
	logger         *zap.Logger
	now            func() time.Time
}

func NewVerificationService(
	db *gorm.DB,
	paystackClient client.PaystackClient,
	payments PaymentService,
	registrations PaymentConfirmer,
	subscriptions PaymentConfirmer,
	m *metrics.Metrics,
	logger *zap.Logger,
) VerificationService {
	return &verificationServiceImpl{
		db:             db,
		paystackClient: paystackClient,
		payments:       payments,
		confirmers: map[model.PaymentPurpose]PaymentConfirmer{
			model.PurposeConference:   registrations,
			model.PurposeSubscription: subscriptions,
		},
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *verificationServiceImpl) VerifyByReference(ctx context.Context, reference string) (*VerifyResult, error) {
	result, err := s.verify(ctx, reference)
	switch {
	case err != nil:
		s.metrics.ObserveVerification(apperr.KindOf(err).String())
	case result.Replayed:
		s.metrics.ObserveVerification("replayed")
	default:
		s.metrics.ObserveVerification("confirmed")
	}
	return result, err
}

func (s *verificationServiceImpl) verify(ctx context.Context, reference string) (*VerifyResult, error) {
	if reference == "" {
		return nil, fmt.Errorf("reference is required: %w", apperr.ErrInvalidInput)
	}

	outcome, err := s.paystackClient.Verify(ctx, reference)
	if err != nil {
		s.logger.Warn("payment verification failed", zap.String("reference", reference), zap.Error(err))
		return nil, fmt.Errorf("paystack verify: %w", err)
	}

	switch outcome {
	case client.OutcomeSuccess:
	case client.OutcomeAbandoned:
		return nil, apperr.ErrPaymentAbandoned
	default:
		return nil, fmt.Errorf("gateway reports %s: %w", outcome, apperr.ErrPaymentNotYetSettled)
	}

	payment, err := s.payments.FindByGatewayReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	confirmer, ok := s.confirmers[payment.Purpose]
	if !ok {
		return nil, fmt.Errorf("no confirmer for purpose %q", payment.Purpose)
	}

	result := &VerifyResult{Status: "success"}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated, transitioned, err := s.payments.MarkSuccessful(ctx, tx, payment.ID, s.now().UTC())
		if err != nil {
			return err
		}
		result.Payment = updated

		if !transitioned {
			confirmed, err := confirmer.IsConfirmed(ctx, tx, payment.ID)
			if err != nil {
				return err
			}
			if confirmed {
				result.Replayed = true
				return nil
			}
		}

		return confirmer.ConfirmPayment(ctx, tx, updated)
	})
	if err != nil {
		s.logger.Warn("payment confirmation rolled back",
			zap.String("reference", reference),
			zap.String("payment_id", payment.ID),
			zap.Error(err),
		)
		return nil, err
	}

	if result.Replayed {
		s.logger.Debug("payment verification replayed", zap.String("payment_id", payment.ID))
	} else {
		s.metrics.ObserveConfirmation(string(payment.Purpose))
		s.logger.Info("payment confirmed",
			zap.String("payment_id", payment.ID),
			zap.String("purpose", string(payment.Purpose)),
		)
	}

	return result, nil
}
