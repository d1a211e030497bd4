package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"conference-payments/internal/apperr"
	"conference-payments/internal/model"
	"conference-payments/internal/repository"

	"go.uber.org/zap"
)

const eventChargeSuccess = "charge.success"

type WebhookService interface {
	Handle(ctx context.Context, signature string, body []byte) error
}

type webhookServiceImpl struct {
	secretKey        string
	verification     VerificationService
	webhookEventRepo repository.WebhookEventRepository
	logger           *zap.Logger
}

func NewWebhookService(
	secretKey string,
	verification VerificationService,
	webhookEventRepo repository.WebhookEventRepository,
	logger *zap.Logger,
) WebhookService {
	return &webhookServiceImpl{
		secretKey:        secretKey,
		verification:     verification,
		webhookEventRepo: webhookEventRepo,
		logger:           logger,
	}
}

// Sign returns the hex HMAC-SHA512 the gateway sends in x-paystack-signature.
func Sign(secretKey string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secretKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *webhookServiceImpl) Handle(ctx context.Context, signature string, body []byte) error {
	if !hmac.Equal([]byte(signature), []byte(Sign(s.secretKey, body))) {
		return apperr.ErrInvalidSignature
	}

	var event model.PaystackWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode webhook payload: %w: %w", apperr.ErrInvalidInput, err)
	}

	if event.Event != eventChargeSuccess {
		s.logger.Debug("webhook event ignored", zap.String("event", event.Event))
		return nil
	}

	var tx model.PaystackTransaction
	if err := json.Unmarshal(event.Data, &tx); err != nil || tx.Reference == "" {
		return fmt.Errorf("webhook payload has no reference: %w", apperr.ErrInvalidInput)
	}

	eventID := event.Event + ":" + tx.Reference
	processed, err := s.webhookEventRepo.Exists(ctx, eventID)
	if err != nil {
		return fmt.Errorf("check webhook event: %w", err)
	}
	if processed {
		s.logger.Debug("webhook event already processed", zap.String("event_id", eventID))
		return nil
	}

	// the payload is only a hint; the gateway is asked again
	_, err = s.verification.VerifyByReference(ctx, tx.Reference)
	if err != nil {
		kind := apperr.KindOf(err)
		if kind.Retryable() || kind == apperr.KindInternal {
			return err
		}
		s.logger.Warn("webhook event not applied",
			zap.String("event_id", eventID),
			zap.String("reason", apperr.CodeOf(err)),
		)
	}

	if err := s.webhookEventRepo.MarkProcessed(ctx, eventID, event.Event, tx.Reference); err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}
	return nil
}
