package evpay

import (
	"errors"
	"fmt"
)

// PaymentUiState is the observable state of a payment flow controller.
// Exactly one variant is current at a time.
type PaymentUiState interface {
	String() string
	isState()
}

// NotStarted is the state before the wallet readiness probe ran.
type NotStarted struct{}

// Unavailable means the wallet reported it cannot pay on this device.
type Unavailable struct{}

// Available means the wallet can present a payment sheet.
type Available struct{}

// PaymentCompleted carries the relay's decoded response for the last attempt.
type PaymentCompleted struct {
	Response CredentialResponse
}

// Error is the terminal state of a failed probe or attempt.
type Error struct {
	Code    ErrorCode
	Message string
	// Err is the underlying cause, retained for logging.
	Err error
}

func (NotStarted) String() string  { return "NotStarted" }
func (Unavailable) String() string { return "Unavailable" }
func (Available) String() string   { return "Available" }

func (s PaymentCompleted) String() string {
	if s.Response == nil {
		return "PaymentCompleted"
	}
	return fmt.Sprintf("PaymentCompleted(%s)", s.Response.Kind())
}

func (s Error) String() string {
	return fmt.Sprintf("Error(%s, %s)", s.Code, s.Message)
}

func (NotStarted) isState()       {}
func (Unavailable) isState()      {}
func (Available) isState()        {}
func (PaymentCompleted) isState() {}
func (Error) isState()            {}

// ErrorState converts err into an Error state, keeping err as the cause.
// The message comes from the outermost PaymentError when there is one, so
// wrapped details such as relay response bodies stay in Err.
func ErrorState(err error) Error {
	msg := err.Error()
	var pe *PaymentError
	if errors.As(err, &pe) && pe.Message != "" {
		msg = pe.Message
	}
	return Error{Code: CodeOf(err), Message: msg, Err: err}
}
