package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"conference-payments/internal/apperr"
	"conference-payments/internal/model"
	"conference-payments/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SubscriptionPlan struct {
	Currency     string
	DefaultPrice decimal.Decimal
	Period       time.Duration
}

type CreateSubscriptionResult struct {
	PaymentID      string
	SubscriptionID string
	Reference      string
	PaymentLink    string
}

type SubscriptionQuery struct {
	Status model.SubscriptionStatus
	Page   int
	Limit  int
}

type SubscriptionService interface {
	PaymentConfirmer

	Create(ctx context.Context, userID string, price decimal.Decimal) (*CreateSubscriptionResult, error)
	FindActiveForUser(ctx context.Context, userID string) (*model.Subscription, error)
	Get(ctx context.Context, subscriptionID string) (*model.Subscription, error)
	List(ctx context.Context, q SubscriptionQuery) (*Page[model.Subscription], error)
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

type subscriptionServiceImpl struct {
	db               *gorm.DB
	payments         PaymentService
	plan             SubscriptionPlan
	subscriptionRepo repository.SubscriptionRepository
	userRepo         repository.UserRepository
	logger           *zap.Logger
	now              func() time.Time
}

func NewSubscriptionService(
	db *gorm.DB,
	payments PaymentService,
	plan SubscriptionPlan,
	subscriptionRepo repository.SubscriptionRepository,
	userRepo repository.UserRepository,
	logger *zap.Logger,
) SubscriptionService {
	return &subscriptionServiceImpl{
		db:               db,
		payments:         payments,
		plan:             plan,
		subscriptionRepo: subscriptionRepo,
		userRepo:         userRepo,
		logger:           logger,
		now:              time.Now,
	}
}

func (s *subscriptionServiceImpl) Create(ctx context.Context, userID string, price decimal.Decimal) (*CreateSubscriptionResult, error) {
	if price.IsZero() {
		price = s.plan.DefaultPrice
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("price must be positive: %w", apperr.ErrInvalidInput)
	}

	_, err := s.subscriptionRepo.FindActiveByUser(ctx, nil, userID)
	if err == nil {
		return nil, apperr.ErrAlreadyActive
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find active subscription: %w", err)
	}

	var sub *model.Subscription
	payment, err := s.payments.CreatePayment(ctx, CreatePaymentInput{
		UserID:   userID,
		Amount:   price,
		Currency: s.plan.Currency,
		Purpose:  model.PurposeSubscription,
	}, func(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
		sub = &model.Subscription{
			UserID:    userID,
			PaymentID: payment.ID,
			Price:     price,
			Status:    model.SubscriptionPending,
		}
		if err := s.subscriptionRepo.Create(ctx, tx, sub); err != nil {
			return fmt.Errorf("store subscription in db: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription created",
		zap.String("subscription_id", sub.ID),
		zap.String("payment_id", payment.ID),
	)

	return &CreateSubscriptionResult{
		PaymentID:      payment.ID,
		SubscriptionID: sub.ID,
		Reference:      *payment.GatewayRef,
		PaymentLink:    *payment.PaymentLink,
	}, nil
}

func (s *subscriptionServiceImpl) ConfirmPayment(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	sub, err := s.subscriptionRepo.FindByPaymentID(ctx, tx, payment.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrSubscriptionNotFound
		}
		return fmt.Errorf("find subscription by payment: %w", err)
	}
	if sub.Status != model.SubscriptionPending {
		return fmt.Errorf("subscription %s is %s: %w", sub.ID, sub.Status, apperr.ErrInvalidTransition)
	}

	active, err := s.subscriptionRepo.CountActiveForUser(ctx, tx, sub.UserID)
	if err != nil {
		return fmt.Errorf("check active subscription: %w", err)
	}
	if active > 0 {
		return apperr.ErrAlreadyActive
	}

	start := s.now().UTC()
	activated, err := s.subscriptionRepo.Activate(ctx, tx, sub.ID, sub.UserID, start, start.Add(s.plan.Period))
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.ErrAlreadyActive
		}
		return fmt.Errorf("activate subscription: %w", err)
	}
	if !activated {
		return apperr.ErrAlreadyActive
	}

	if err := s.userRepo.SetPremium(ctx, tx, sub.UserID, true); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrUserNotFound
		}
		return fmt.Errorf("set premium flag: %w", err)
	}

	s.logger.Info("subscription activated",
		zap.String("subscription_id", sub.ID),
		zap.String("user_id", sub.UserID),
		zap.Time("end_date", start.Add(s.plan.Period)),
	)
	return nil
}

func (s *subscriptionServiceImpl) IsConfirmed(ctx context.Context, tx *gorm.DB, paymentID string) (bool, error) {
	sub, err := s.subscriptionRepo.FindByPaymentID(ctx, tx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("find subscription by payment: %w", err)
	}
	return sub.Status == model.SubscriptionActive || sub.Status == model.SubscriptionExpired, nil
}

func (s *subscriptionServiceImpl) FindActiveForUser(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := s.subscriptionRepo.FindActiveByUser(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("find active subscription: %w", err)
	}
	return sub, nil
}

func (s *subscriptionServiceImpl) Get(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	sub, err := s.subscriptionRepo.FindByID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	return sub, nil
}

func (s *subscriptionServiceImpl) List(ctx context.Context, q SubscriptionQuery) (*Page[model.Subscription], error) {
	page, limit := normalizePage(q.Page, q.Limit)

	subs, total, err := s.subscriptionRepo.List(ctx, q.Status, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	return &Page[model.Subscription]{
		Items: subs,
		Total: total,
		Page:  page,
		Limit: limit,
	}, nil
}

// ExpireDue moves every ACTIVE subscription whose end date has passed to
// EXPIRED and drops the premium flag of users left without one.
func (s *subscriptionServiceImpl) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.subscriptionRepo.ListDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list due subscriptions: %w", err)
	}

	expired := 0
	for _, sub := range due {
		changed := false
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ok, err := s.subscriptionRepo.Expire(ctx, tx, sub.ID)
			if err != nil {
				return fmt.Errorf("expire subscription: %w", err)
			}
			if !ok {
				return nil
			}
			changed = true

			active, err := s.subscriptionRepo.CountActiveForUser(ctx, tx, sub.UserID)
			if err != nil {
				return fmt.Errorf("check active subscription: %w", err)
			}
			if active > 0 {
				return nil
			}
			return s.userRepo.SetPremium(ctx, tx, sub.UserID, false)
		})
		if err != nil {
			return expired, err
		}
		if changed {
			expired++
		}
	}

	if expired > 0 {
		s.logger.Info("subscriptions expired", zap.Int("count", expired))
	}
	return expired, nil
}
