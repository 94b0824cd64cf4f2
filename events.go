package evpay

import "time"

// PaymentEventType represents the type of payment event.
type PaymentEventType string

const (
	// PaymentEventAttempt indicates the user tapped pay and an attempt started.
	PaymentEventAttempt PaymentEventType = "attempt"

	// PaymentEventSuccess indicates the relay returned a credential.
	PaymentEventSuccess PaymentEventType = "success"

	// PaymentEventFailure indicates the attempt ended in an Error state.
	PaymentEventFailure PaymentEventType = "failure"

	// PaymentEventCancel indicates the sheet closed without authorization.
	PaymentEventCancel PaymentEventType = "cancel"
)

// PaymentEvent represents a payment attempt lifecycle event.
type PaymentEvent struct {
	// Type is the event type.
	Type PaymentEventType

	// AttemptID identifies the attempt the event belongs to.
	AttemptID string

	// Timestamp is when the event occurred.
	Timestamp time.Time

	// Platform is the wallet presenting the sheet.
	Platform Platform

	// Kind is the transaction kind.
	Kind TransactionKind

	// Currency is the transaction currency.
	Currency string

	// Total is the computed total of the caller's line items.
	Total string

	// Response is set on success.
	Response CredentialResponse

	// Error is set on failure.
	Error error

	// Duration is the time since the attempt started.
	Duration time.Duration
}

// PaymentCallback is a function that handles payment events.
// Callbacks are invoked synchronously on the attempt's goroutine and should
// return quickly.
type PaymentCallback func(PaymentEvent)
