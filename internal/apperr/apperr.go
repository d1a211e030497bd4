// Package apperr holds the error kinds callers switch on. Retry decisions
// depend on telling a conflict from a missing row from a gateway outage, so
// every failure the services return wraps one of the sentinels below.
package apperr

import "errors"

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindInvalidInput
	KindGatewayUnavailable
	KindPaymentAbandoned
	KindNotYetSettled
	KindTokenGeneration
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidInput:
		return "invalid_input"
	case KindGatewayUnavailable:
		return "gateway_unavailable"
	case KindPaymentAbandoned:
		return "payment_abandoned"
	case KindNotYetSettled:
		return "payment_not_yet_settled"
	case KindTokenGeneration:
		return "token_generation_failed"
	default:
		return "internal"
	}
}

// Retryable reports whether the same call may succeed later without any
// change on the caller's side.
func (k Kind) Retryable() bool {
	return k == KindGatewayUnavailable || k == KindNotYetSettled
}

type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrNotFound                 = newError(KindNotFound, "not_found", "not found")
	ErrUserNotFound             = newError(KindNotFound, "user_not_found", "user not found")
	ErrRegistrationTypeNotFound = newError(KindNotFound, "registration_type_not_found", "registration type not found")
	ErrRegistrationNotFound     = newError(KindNotFound, "registration_not_found", "registration not found")
	ErrSubscriptionNotFound     = newError(KindNotFound, "subscription_not_found", "subscription not found")
	ErrPaymentNotFound          = newError(KindNotFound, "payment_not_found", "payment not found")
	ErrPaymentReferenceNotFound = newError(KindNotFound, "payment_reference_not_found", "payment reference not found")

	ErrAlreadyPaid       = newError(KindConflict, "already_paid", "conference has already been paid for")
	ErrAlreadyActive     = newError(KindConflict, "already_active", "user already has an active subscription")
	ErrAlreadyCancelled  = newError(KindConflict, "already_cancelled", "registration is already cancelled")
	ErrCannotCancelPaid  = newError(KindConflict, "cannot_cancel_paid", "paid registration cannot be cancelled")
	ErrInvalidTransition = newError(KindConflict, "invalid_transition", "invalid state transition")

	ErrInvalidInput     = newError(KindInvalidInput, "invalid_input", "invalid input")
	ErrInvalidSignature = newError(KindInvalidInput, "invalid_signature", "invalid webhook signature")

	ErrGatewayUnavailable    = newError(KindGatewayUnavailable, "gateway_unavailable", "payment gateway unavailable")
	ErrPaymentAbandoned      = newError(KindPaymentAbandoned, "payment_abandoned", "payment was abandoned")
	ErrPaymentNotYetSettled  = newError(KindNotYetSettled, "payment_not_yet_settled", "payment not yet settled")
	ErrTokenGenerationFailed = newError(KindTokenGeneration, "token_generation_failed", "could not generate a unique registration token")
)

// KindOf returns the kind of the first *Error found in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first *Error found in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}
