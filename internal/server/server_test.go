package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"conference-payments/internal/client"
	"conference-payments/internal/config"
	"conference-payments/internal/dto"
	"conference-payments/internal/metrics"
	"conference-payments/internal/model"
	"conference-payments/internal/repository"
	"conference-payments/internal/service"
	"conference-payments/internal/testutil"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	jwtSecret      = "jwt-test-secret"
	paystackSecret = "sk_test_secret"
)

// stubPaystack answers initialize with the reference it was given and verify
// with whatever status was settled for the reference (success by default).
type stubPaystack struct {
	mu       sync.Mutex
	statuses map[string]string
}

func (p *stubPaystack) settle(reference, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses[reference] = status
}

func (p *stubPaystack) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/transaction/initialize":
		var req model.PaystackInitializeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(model.PaystackInitializeResponse{
			Status: true,
			Data: model.PaystackInitializeData{
				AuthorizationURL: "https://checkout.paystack.com/" + req.Reference,
				Reference:        req.Reference,
			},
		})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/transaction/verify/"):
		reference := strings.TrimPrefix(r.URL.Path, "/transaction/verify/")
		p.mu.Lock()
		status, ok := p.statuses[reference]
		p.mu.Unlock()
		if !ok {
			status = "success"
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": true,
			"data":   map[string]string{"status": status, "reference": reference},
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type testEnv struct {
	db       *gorm.DB
	paystack *stubPaystack
	server   *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	paystack := &stubPaystack{statuses: map[string]string{}}
	gateway := httptest.NewServer(paystack)
	t.Cleanup(gateway.Close)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	log := zap.NewNop()

	paystackClient := client.NewPaystackClient(&config.Paystack{
		BaseApiURL: gateway.URL,
		SecretKey:  paystackSecret,
		Timeout:    2 * time.Second,
	}, "http://localhost:8080", m)

	userRepo := repository.NewUserRepository(db)
	conferenceRepo := repository.NewConferenceRepository(db)
	payments := service.NewPaymentService(db, paystackClient, repository.NewPaymentRepository(db), userRepo, log)
	registrations := service.NewRegistrationService(db, payments, service.NewTokenGenerator("GVC", nil), "NGN",
		repository.NewRegistrationRepository(db), conferenceRepo, userRepo, log)
	subscriptions := service.NewSubscriptionService(db, payments, service.SubscriptionPlan{
		Currency:     "NGN",
		DefaultPrice: decimal.NewFromInt(5000),
		Period:       30 * 24 * time.Hour,
	}, repository.NewSubscriptionRepository(db), userRepo, log)
	verification := service.NewVerificationService(db, paystackClient, payments, registrations, subscriptions, m, log)

	srv := NewServer(Services{
		Conferences:   service.NewConferenceService(conferenceRepo),
		Registrations: registrations,
		Subscriptions: subscriptions,
		Payments:      payments,
		Verification:  verification,
		Webhooks:      service.NewWebhookService(paystackSecret, verification, repository.NewWebhookEventRepository(db), log),
	}, jwtSecret, reg, log)

	return &testEnv{db: db, paystack: paystack, server: srv}
}

func bearer(t *testing.T, userID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"email":   userID + "@example.com",
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func (e *testEnv) do(t *testing.T, method, path, auth, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuthenticatedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/registrations/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decode[dto.ErrorResponse](t, rec)
	assert.Equal(t, "Unauthorized", body.Error)
}

func TestRegistrationTypes(t *testing.T) {
	env := newTestEnv(t)
	rt := testutil.CreateRegistrationType(t, env.db, "Early Bird", 50000)

	rec := env.do(t, http.MethodGet, "/api/conferences/"+rt.ConferenceID+"/registration-types", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	types := decode[[]model.RegistrationType](t, rec)
	require.Len(t, types, 1)
	assert.Equal(t, rt.ID, types[0].ID)

	rec = env.do(t, http.MethodGet, "/api/conferences/missing/registration-types", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegistrationPaymentFlow(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "ada@example.com")
	rt := testutil.CreateRegistrationType(t, env.db, "Regular", 75000)
	auth := bearer(t, user.ID, "USER")

	rec := env.do(t, http.MethodPost, "/api/registrations", auth,
		`{"registration_type_id":"`+rt.ID+`","passport_country":"<b>Nigeria</b>"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[dto.CreateRegistrationResponse](t, rec)
	assert.NotEmpty(t, created.PaymentID)
	assert.Contains(t, created.PaymentLink, created.Reference)

	var stored model.User
	require.NoError(t, env.db.Where("id = ?", user.ID).First(&stored).Error)
	require.NotNil(t, stored.PassportCountry)
	assert.Equal(t, "Nigeria", *stored.PassportCountry)

	// gateway callback redirect
	rec = env.do(t, http.MethodGet, "/api/payments/verify?trxref="+created.Reference, "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[struct {
		Status   string        `json:"status"`
		Data     model.Payment `json:"data"`
		Replayed bool          `json:"replayed"`
	}](t, rec)
	assert.Equal(t, "success", first.Status)
	assert.Equal(t, model.PaymentSuccessful, first.Data.Status)
	assert.False(t, first.Replayed)

	rec = env.do(t, http.MethodGet, "/api/payments/verify/"+created.Reference, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[dto.VerifyPaymentResponse](t, rec).Replayed)

	rec = env.do(t, http.MethodGet, "/api/registrations/me", auth, "")
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[[]model.Registration](t, rec)
	require.Len(t, mine, 1)
	assert.Equal(t, model.RegistrationPaid, mine[0].Status)

	rec = env.do(t, http.MethodPost, "/api/registrations/token/verify", auth,
		`{"token":"`+mine[0].Token+`","passport_no":"A1234567"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/registrations/token/verify", auth,
		`{"token":"`+mine[0].Token+`","passport_no":"WRONG"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/registrations/"+created.RegistrationID+"/cancel", auth, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "cannot_cancel_paid", decode[dto.ErrorResponse](t, rec).Error)

	rec = env.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `conference_payments_confirmed_total{purpose="CONFERENCE"} 1`)
}

func TestVerifyErrorStatuses(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "ada@example.com")
	rt := testutil.CreateRegistrationType(t, env.db, "Regular", 75000)
	auth := bearer(t, user.ID, "USER")

	rec := env.do(t, http.MethodPost, "/api/registrations", auth, `{"registration_type_id":"`+rt.ID+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[dto.CreateRegistrationResponse](t, rec)

	env.paystack.settle(created.Reference, "ongoing")
	rec = env.do(t, http.MethodGet, "/api/payments/verify/"+created.Reference, "", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "payment_not_yet_settled", decode[dto.ErrorResponse](t, rec).Error)

	env.paystack.settle(created.Reference, "abandoned")
	rec = env.do(t, http.MethodGet, "/api/payments/verify/"+created.Reference, "", "")
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/payments/verify/payment_unknown_1", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "payment_reference_not_found", decode[dto.ErrorResponse](t, rec).Error)

	rec = env.do(t, http.MethodGet, "/api/payments/verify", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelAndAbandonAreOwnerScoped(t *testing.T) {
	env := newTestEnv(t)
	owner := testutil.CreateUser(t, env.db, "owner@example.com")
	other := testutil.CreateUser(t, env.db, "other@example.com")
	rt := testutil.CreateRegistrationType(t, env.db, "VIP Pass", 150000)
	ownerAuth := bearer(t, owner.ID, "USER")
	otherAuth := bearer(t, other.ID, "USER")

	rec := env.do(t, http.MethodPost, "/api/registrations", ownerAuth, `{"registration_type_id":"`+rt.ID+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[dto.CreateRegistrationResponse](t, rec)

	rec = env.do(t, http.MethodGet, "/api/registrations/"+created.RegistrationID, otherAuth, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/registrations/"+created.RegistrationID+"/cancel", otherAuth, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/payments/"+created.PaymentID+"/abandon", otherAuth, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/registrations/"+created.RegistrationID+"/cancel", ownerAuth, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.RegistrationCancelled, decode[model.Registration](t, rec).Status)

	rec = env.do(t, http.MethodPost, "/api/payments/"+created.PaymentID+"/abandon", ownerAuth, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.PaymentFailed, decode[model.Payment](t, rec).Status)

	rec = env.do(t, http.MethodGet, "/api/payments/me", ownerAuth, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Payment](t, rec), 1)
}

func TestSubscriptionRoutes(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "ada@example.com")
	auth := bearer(t, user.ID, "USER")

	rec := env.do(t, http.MethodGet, "/api/subscriptions/me", auth, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/subscriptions", auth, `{}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[dto.CreateSubscriptionResponse](t, rec)

	rec = env.do(t, http.MethodGet, "/api/payments/verify/"+created.Reference, "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/subscriptions/me", auth, "")
	require.Equal(t, http.StatusOK, rec.Code)
	sub := decode[model.Subscription](t, rec)
	assert.Equal(t, created.SubscriptionID, sub.ID)
	assert.Equal(t, model.SubscriptionActive, sub.Status)

	rec = env.do(t, http.MethodGet, "/api/subscriptions/"+created.SubscriptionID, bearer(t, "someone-else", "USER"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/subscriptions", auth, `{}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_active", decode[dto.ErrorResponse](t, rec).Error)
}

func TestWebhookRoute(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "ada@example.com")
	auth := bearer(t, user.ID, "USER")

	rec := env.do(t, http.MethodPost, "/api/subscriptions", auth, `{"price":"7500"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[dto.CreateSubscriptionResponse](t, rec)

	payload := `{"event":"charge.success","data":{"reference":"` + created.Reference + `","status":"success"}}`

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(payload))
	req.Header.Set("x-paystack-signature", "bad")
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(payload))
	req.Header.Set("x-paystack-signature", service.Sign(paystackSecret, []byte(payload)))
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var sub model.Subscription
	require.NoError(t, env.db.Where("id = ?", created.SubscriptionID).First(&sub).Error)
	assert.Equal(t, model.SubscriptionActive, sub.Status)
	assert.True(t, sub.Price.Equal(decimal.NewFromInt(7500)))
}

func TestWebhookUnsettledPaymentIsRedelivered(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "ada@example.com")
	auth := bearer(t, user.ID, "USER")

	rec := env.do(t, http.MethodPost, "/api/subscriptions", auth, `{}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[dto.CreateSubscriptionResponse](t, rec)
	env.paystack.settle(created.Reference, "pending")

	payload := `{"event":"charge.success","data":{"reference":"` + created.Reference + `"}}`
	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(payload))
		req.Header.Set("x-paystack-signature", service.Sign(paystackSecret, []byte(payload)))
		rec := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec = post()
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var events int64
	require.NoError(t, env.db.Model(&model.WebhookEvent{}).Count(&events).Error)
	assert.Equal(t, int64(0), events)

	env.paystack.settle(created.Reference, "success")
	rec = post()
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, env.db.Model(&model.WebhookEvent{}).Count(&events).Error)
	assert.Equal(t, int64(1), events)

	var sub model.Subscription
	require.NoError(t, env.db.Where("id = ?", created.SubscriptionID).First(&sub).Error)
	assert.Equal(t, model.SubscriptionActive, sub.Status)
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "ada@example.com")
	rt := testutil.CreateRegistrationType(t, env.db, "Regular", 75000)
	userAuth := bearer(t, user.ID, "USER")
	adminAuth := bearer(t, "admin-1", "ADMIN")

	rec := env.do(t, http.MethodPost, "/api/registrations", userAuth, `{"registration_type_id":"`+rt.ID+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[dto.CreateRegistrationResponse](t, rec)
	rec = env.do(t, http.MethodGet, "/api/payments/verify/"+created.Reference, "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/admin/registrations", userAuth, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/registrations?status=PAID&limit=5", adminAuth, "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[struct {
		Items []model.Registration `json:"items"`
		Total int64                `json:"total"`
		Page  int                  `json:"page"`
		Limit int                  `json:"limit"`
	}](t, rec)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 5, page.Limit)
	require.Len(t, page.Items, 1)
	assert.Equal(t, created.RegistrationID, page.Items[0].ID)

	rec = env.do(t, http.MethodGet, "/api/admin/registrations?page=abc", adminAuth, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/subscriptions", adminAuth, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/payments/revenue", adminAuth, "")
	require.Equal(t, http.StatusOK, rec.Code)
	lines := decode[[]dto.RevenueLine](t, rec)
	require.Len(t, lines, 1)
	assert.Equal(t, "CONFERENCE", lines[0].Purpose)
	assert.Equal(t, int64(1), lines[0].Count)
	assert.True(t, lines[0].Total.Equal(decimal.NewFromInt(75000)), lines[0].Total.String())
}
