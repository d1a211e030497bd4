package service

import (
	"context"
	"testing"
	"time"

	"conference-payments/internal/apperr"
	"conference-payments/internal/client"
	"conference-payments/internal/model"
	"conference-payments/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePaymentValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testutil.CreateUser(t, f.db, "ada@example.com")

	tests := []struct {
		name string
		in   CreatePaymentInput
	}{
		{"zero amount", CreatePaymentInput{UserID: user.ID, Amount: decimal.Zero, Currency: "NGN", Purpose: model.PurposeConference}},
		{"bad currency", CreatePaymentInput{UserID: user.ID, Amount: decimal.NewFromInt(1), Currency: "naira", Purpose: model.PurposeConference}},
		{"bad purpose", CreatePaymentInput{UserID: user.ID, Amount: decimal.NewFromInt(1), Currency: "NGN", Purpose: "DONATION"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.payments.CreatePayment(ctx, tt.in, nil)
			assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		})
	}

	assert.Zero(t, f.gateway.createCalls)
	assert.Zero(t, f.count(t, &model.Payment{}))
}

func TestMarkSuccessfulTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testutil.CreateUser(t, f.db, "ada@example.com")

	payment, err := f.payments.CreatePayment(ctx, CreatePaymentInput{
		UserID:   user.ID,
		Amount:   decimal.NewFromInt(100),
		Currency: "NGN",
		Purpose:  model.PurposeConference,
	}, nil)
	require.NoError(t, err)

	paidAt := time.Now().UTC().Truncate(time.Second)
	got, transitioned, err := f.payments.MarkSuccessful(ctx, f.db, payment.ID, paidAt)
	require.NoError(t, err)
	assert.True(t, transitioned)
	assert.Equal(t, model.PaymentSuccessful, got.Status)

	again, transitioned, err := f.payments.MarkSuccessful(ctx, f.db, payment.ID, paidAt.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, transitioned)
	require.NotNil(t, again.PaidAt)
	assert.True(t, paidAt.Equal(*again.PaidAt))

	_, _, err = f.payments.MarkSuccessful(ctx, f.db, "missing", paidAt)
	assert.ErrorIs(t, err, apperr.ErrPaymentNotFound)

	_, err = f.payments.MarkFailed(ctx, payment.ID, user.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestMarkFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testutil.CreateUser(t, f.db, "ada@example.com")
	other := testutil.CreateUser(t, f.db, "grace@example.com")

	payment, err := f.payments.CreatePayment(ctx, CreatePaymentInput{
		UserID:   user.ID,
		Amount:   decimal.NewFromInt(100),
		Currency: "NGN",
		Purpose:  model.PurposeConference,
	}, nil)
	require.NoError(t, err)

	_, err = f.payments.MarkFailed(ctx, payment.ID, other.ID)
	assert.ErrorIs(t, err, apperr.ErrPaymentNotFound)

	failed, err := f.payments.MarkFailed(ctx, payment.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentFailed, failed.Status)

	_, err = f.payments.MarkFailed(ctx, payment.ID, user.ID)
	require.NoError(t, err)

	_, _, err = f.payments.MarkSuccessful(ctx, f.db, payment.ID, time.Now())
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestPaymentHistoryAndRevenue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testutil.CreateUser(t, f.db, "ada@example.com")
	rt := testutil.CreateRegistrationType(t, f.db, "Early Bird", 50000)

	reg, err := f.registrations.Create(ctx, user.ID, registrationInput(rt))
	require.NoError(t, err)
	sub, err := f.subscriptions.Create(ctx, user.ID, decimal.Zero)
	require.NoError(t, err)

	for _, ref := range []string{reg.Reference, sub.Reference} {
		f.gateway.settle(ref, client.OutcomeSuccess)
		_, err := f.verification.VerifyByReference(ctx, ref)
		require.NoError(t, err)
	}

	history, err := f.payments.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	found, err := f.payments.FindByGatewayReference(ctx, reg.Reference)
	require.NoError(t, err)
	assert.Equal(t, reg.PaymentID, found.ID)

	_, err = f.payments.FindByGatewayReference(ctx, "nope")
	assert.ErrorIs(t, err, apperr.ErrPaymentReferenceNotFound)

	summary, err := f.payments.RevenueSummary(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.True(t, decimal.NewFromInt(50000).Equal(summary[0].Total))
	assert.True(t, decimal.NewFromInt(5000).Equal(summary[1].Total))
}
