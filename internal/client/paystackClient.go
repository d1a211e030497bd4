package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"conference-payments/internal/apperr"
	"conference-payments/internal/config"
	"conference-payments/internal/metrics"
	"conference-payments/internal/model"

	"github.com/shopspring/decimal"
)

type Outcome string

const (
	OutcomeSuccess   Outcome = "SUCCESS"
	OutcomeAbandoned Outcome = "ABANDONED"
	OutcomePending   Outcome = "PENDING"
	OutcomeUnknown   Outcome = "UNKNOWN"
)

type PaystackClient interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	Verify(ctx context.Context, reference string) (Outcome, error)
}

type IntentRequest struct {
	PaymentID string
	Email     string
	Amount    decimal.Decimal
	Currency  string
}

type Intent struct {
	Reference        string
	AuthorizationURL string
}

type paystackClientImpl struct {
	httpClient  *http.Client
	baseApiURL  string
	secretKey   string
	callbackURL string
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewPaystackClient(cfg *config.Paystack, serviceBaseURL string, m *metrics.Metrics) PaystackClient {
	return &paystackClientImpl{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseApiURL:  strings.TrimRight(cfg.BaseApiURL, "/"),
		secretKey:   cfg.SecretKey,
		callbackURL: strings.TrimRight(serviceBaseURL, "/") + "/api/payments/verify",
		metrics:     m,
		now:         time.Now,
	}
}

// MinorUnits converts a major-unit amount into kobo/cents, round(amount*100).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func (c *paystackClientImpl) CreateIntent(ctx context.Context, in IntentRequest) (*Intent, error) {
	payload := model.PaystackInitializeRequest{
		Email:       in.Email,
		Amount:      MinorUnits(in.Amount),
		Currency:    in.Currency,
		Reference:   fmt.Sprintf("payment_%s_%d", in.PaymentID, c.now().UnixMilli()),
		CallbackURL: c.callbackURL,
		Metadata: map[string]string{
			"paymentId": in.PaymentID,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal req payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/transaction/initialize",
		bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	started := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveGatewayCall("initialize", "error", time.Since(started))
		return nil, fmt.Errorf("paystack initialize: %w: %w", apperr.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.ObserveGatewayCall("initialize", "error", time.Since(started))
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("paystack initialize status=%d body=%s: %w", resp.StatusCode, string(b), apperr.ErrGatewayUnavailable)
	}

	var result model.PaystackInitializeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.metrics.ObserveGatewayCall("initialize", "error", time.Since(started))
		return nil, fmt.Errorf("decode paystack response: %w: %w", apperr.ErrGatewayUnavailable, err)
	}
	if !result.Status || result.Data.Reference == "" || result.Data.AuthorizationURL == "" {
		c.metrics.ObserveGatewayCall("initialize", "rejected", time.Since(started))
		return nil, fmt.Errorf("paystack initialize rejected: %q: %w", result.Message, apperr.ErrGatewayUnavailable)
	}
	c.metrics.ObserveGatewayCall("initialize", "ok", time.Since(started))

	return &Intent{
		Reference:        result.Data.Reference,
		AuthorizationURL: result.Data.AuthorizationURL,
	}, nil
}

func (c *paystackClientImpl) Verify(ctx context.Context, reference string) (Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseApiURL+"/transaction/verify/"+url.PathEscape(reference),
		nil)
	if err != nil {
		return "", fmt.Errorf("create verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	started := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveGatewayCall("verify", "error", time.Since(started))
		return "", fmt.Errorf("paystack verify: %w: %w", apperr.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	// the gateway answers 400/404 for references it has never seen
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound {
		c.metrics.ObserveGatewayCall("verify", "unknown", time.Since(started))
		return OutcomeUnknown, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.ObserveGatewayCall("verify", "error", time.Since(started))
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("paystack verify status=%d body=%s: %w", resp.StatusCode, string(b), apperr.ErrGatewayUnavailable)
	}

	var result model.PaystackVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.metrics.ObserveGatewayCall("verify", "error", time.Since(started))
		return "", fmt.Errorf("decode paystack response: %w: %w", apperr.ErrGatewayUnavailable, err)
	}
	c.metrics.ObserveGatewayCall("verify", "ok", time.Since(started))

	if !result.Status {
		return OutcomeUnknown, nil
	}
	return outcomeFromStatus(result.Data.Status), nil
}

func outcomeFromStatus(status string) Outcome {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success":
		return OutcomeSuccess
	case "abandoned", "failed", "reversed":
		return OutcomeAbandoned
	case "ongoing", "pending", "processing", "queued":
		return OutcomePending
	default:
		return OutcomeUnknown
	}
}
