package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateRegistrationRequest struct {
	ConferenceID       string          `json:"conference_id"`
	RegistrationTypeID string          `json:"registration_type_id"`
	Price              decimal.Decimal `json:"price"`
	PassportNo         *string         `json:"passport_no"`
	PassportCountry    *string         `json:"passport_country"`
	DateOfBirth        *time.Time      `json:"date_of_birth"`
	PhoneNumber        *string         `json:"phone_number"`
}

type CreateRegistrationResponse struct {
	PaymentID      string `json:"payment_id"`
	RegistrationID string `json:"registration_id"`
	Reference      string `json:"reference"`
	PaymentLink    string `json:"payment_link"`
}

type VerifyTokenRequest struct {
	Token      string `json:"token"`
	PassportNo string `json:"passport_no"`
}

type CreateSubscriptionRequest struct {
	Price decimal.Decimal `json:"price"`
}

type CreateSubscriptionResponse struct {
	PaymentID      string `json:"payment_id"`
	SubscriptionID string `json:"subscription_id"`
	Reference      string `json:"reference"`
	PaymentLink    string `json:"payment_link"`
}

type VerifyPaymentResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Replayed bool        `json:"replayed"`
}

type PageResponse struct {
	Items interface{} `json:"items"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

type RevenueLine struct {
	Purpose  string          `json:"purpose"`
	Currency string          `json:"currency"`
	Count    int64           `json:"count"`
	Total    decimal.Decimal `json:"total"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
