package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"conference-payments/internal/apperr"
	"conference-payments/internal/client"
	"conference-payments/internal/metrics"
	"conference-payments/internal/model"
	"conference-payments/internal/repository"
	"conference-payments/internal/testutil"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeGateway struct {
	mu          sync.Mutex
	createErr   error
	verifyErr   error
	nextRef     string
	outcomes    map[string]client.Outcome
	createCalls int
	verifyCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{outcomes: map[string]client.Outcome{}}
}

func (g *fakeGateway) CreateIntent(ctx context.Context, req client.IntentRequest) (*client.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.createCalls++
	if g.createErr != nil {
		return nil, g.createErr
	}

	ref := "ref_" + req.PaymentID
	if g.nextRef != "" {
		ref, g.nextRef = g.nextRef, ""
	}
	return &client.Intent{
		Reference:        ref,
		AuthorizationURL: "https://checkout.paystack.com/" + ref,
	}, nil
}

func (g *fakeGateway) Verify(ctx context.Context, reference string) (client.Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.verifyCalls++
	if g.verifyErr != nil {
		return "", g.verifyErr
	}
	if outcome, ok := g.outcomes[reference]; ok {
		return outcome, nil
	}
	return client.OutcomeUnknown, nil
}

func (g *fakeGateway) settle(reference string, outcome client.Outcome) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.outcomes[reference] = outcome
}

func (g *fakeGateway) verifications() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verifyCalls
}

var errGatewayDown = apperr.ErrGatewayUnavailable

type fixture struct {
	db            *gorm.DB
	gateway       *fakeGateway
	metrics       *metrics.Metrics
	payments      PaymentService
	registrations RegistrationService
	subscriptions SubscriptionService
	verification  VerificationService
	webhooks      WebhookService
}

const (
	testSecret = "sk_test_secret"
	testPeriod = 30 * 24 * time.Hour
)

func newFixture(t *testing.T) *fixture {
	return newFixtureWithTokens(t, NewTokenGenerator("GVC", nil))
}

func newFixtureWithTokens(t *testing.T, tokens TokenGenerator) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	gateway := newFakeGateway()
	m := metrics.New(prometheus.NewRegistry())
	logger := zap.NewNop()

	userRepo := repository.NewUserRepository(db)
	payments := NewPaymentService(db, gateway, repository.NewPaymentRepository(db), userRepo, logger)
	registrations := NewRegistrationService(db, payments, tokens, "NGN",
		repository.NewRegistrationRepository(db),
		repository.NewConferenceRepository(db),
		userRepo,
		logger,
	)
	subscriptions := NewSubscriptionService(db, payments, SubscriptionPlan{
		Currency:     "NGN",
		DefaultPrice: decimal.NewFromInt(5000),
		Period:       testPeriod,
	}, repository.NewSubscriptionRepository(db), userRepo, logger)
	verification := NewVerificationService(db, gateway, payments, registrations, subscriptions, m, logger)

	return &fixture{
		db:            db,
		gateway:       gateway,
		metrics:       m,
		payments:      payments,
		registrations: registrations,
		subscriptions: subscriptions,
		verification:  verification,
		webhooks:      NewWebhookService(testSecret, verification, repository.NewWebhookEventRepository(db), logger),
	}
}

func (f *fixture) count(t *testing.T, table interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(table).Count(&n).Error)
	return n
}

func (f *fixture) payment(t *testing.T, id string) *model.Payment {
	t.Helper()
	var p model.Payment
	require.NoError(t, f.db.Where("id = ?", id).First(&p).Error)
	return &p
}

func (f *fixture) registration(t *testing.T, id string) *model.Registration {
	t.Helper()
	var r model.Registration
	require.NoError(t, f.db.Where("id = ?", id).First(&r).Error)
	return &r
}

func (f *fixture) subscription(t *testing.T, id string) *model.Subscription {
	t.Helper()
	var s model.Subscription
	require.NoError(t, f.db.Where("id = ?", id).First(&s).Error)
	return &s
}

func (f *fixture) user(t *testing.T, id string) *model.User {
	t.Helper()
	var u model.User
	require.NoError(t, f.db.Where("id = ?", id).First(&u).Error)
	return &u
}

// settlePaymentOnly marks a payment SUCCESSFUL without touching its
// registration or subscription, as left behind by an interrupted confirmation.
func (f *fixture) settlePaymentOnly(t *testing.T, id string, paidAt time.Time) {
	t.Helper()
	require.NoError(t, f.db.Model(&model.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":  model.PaymentSuccessful,
			"paid_at": paidAt,
		}).Error)
}

func strPtr(s string) *string { return &s }
