package evpay

import (
	"errors"
	"fmt"
)

// Sentinel errors for wallet payment operations.
var (
	// ErrInvalidAmount indicates an amount string is not a base-10 decimal.
	ErrInvalidAmount = errors.New("evpay: invalid amount")

	// ErrEmptyTransaction indicates a transaction was built without line items.
	ErrEmptyTransaction = errors.New("evpay: transaction must contain at least one line item")

	// ErrInvalidCurrency indicates the currency is not an ISO 4217 code.
	ErrInvalidCurrency = errors.New("evpay: invalid currency code")

	// ErrInvalidCountry indicates the country is not an ISO 3166-1 alpha-2 code.
	ErrInvalidCountry = errors.New("evpay: invalid country code")

	// ErrInvalidTransaction indicates a kind-specific required field is missing or malformed.
	ErrInvalidTransaction = errors.New("evpay: invalid transaction")

	// ErrWalletUnavailable indicates the platform wallet cannot be used on this device.
	ErrWalletUnavailable = errors.New("evpay: wallet unavailable")

	// ErrUnsupportedPlatformVersion indicates the wallet cannot present this kind of transaction.
	ErrUnsupportedPlatformVersion = errors.New("evpay: transaction kind not supported by this platform version")

	// ErrNetwork indicates a transport failure (including timeouts) talking to the relay.
	ErrNetwork = errors.New("evpay: network error")

	// ErrHTTP indicates the relay answered with a non-2xx status.
	ErrHTTP = errors.New("evpay: unexpected http status")

	// ErrDecoding indicates a relay response could not be decoded into a known shape.
	ErrDecoding = errors.New("evpay: could not decode response")

	// ErrInternal indicates an SDK-side failure, such as billing address extraction.
	ErrInternal = errors.New("evpay: internal error")

	// ErrMissingConfig indicates a required configuration value was not provided.
	ErrMissingConfig = errors.New("evpay: missing configuration")

	// ErrMissingEnvironment indicates neither an environment nor a base URL was configured.
	ErrMissingEnvironment = errors.New("evpay: environment or base url must be set explicitly")
)

// ErrorCode represents payment error codes for programmatic handling.
type ErrorCode string

const (
	ErrCodeInvalidAmount              ErrorCode = "INVALID_AMOUNT"
	ErrCodeEmptyTransaction           ErrorCode = "EMPTY_TRANSACTION"
	ErrCodeInvalidCurrency            ErrorCode = "INVALID_CURRENCY"
	ErrCodeInvalidCountry             ErrorCode = "INVALID_COUNTRY"
	ErrCodeInvalidTransaction         ErrorCode = "INVALID_TRANSACTION"
	ErrCodeWalletUnavailable          ErrorCode = "WALLET_UNAVAILABLE"
	ErrCodeUnsupportedPlatformVersion ErrorCode = "UNSUPPORTED_PLATFORM_VERSION"
	ErrCodeNetworkError               ErrorCode = "NETWORK_ERROR"
	ErrCodeHTTPError                  ErrorCode = "HTTP_ERROR"
	ErrCodeDecodingError              ErrorCode = "DECODING_ERROR"
	ErrCodeInternalError              ErrorCode = "INTERNAL_ERROR"
	ErrCodeDeveloperError             ErrorCode = "DEVELOPER_ERROR"
)

// PaymentError provides structured error information.
type PaymentError struct {
	// Code is the error code for programmatic handling.
	Code ErrorCode

	// Message is the human-readable error message.
	Message string

	// Details contains additional error context.
	Details map[string]interface{}

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PaymentError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *PaymentError) Unwrap() error {
	return e.Err
}

// NewPaymentError creates a new PaymentError with the given code and message.
func NewPaymentError(code ErrorCode, message string, err error) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails adds additional context to the error.
// Lazily initializes the Details map if nil.
func (e *PaymentError) WithDetails(key string, value interface{}) *PaymentError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// HTTPError is returned when the relay answers with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("relay returned status %d: %s", e.StatusCode, e.Body)
}

// Is reports ErrHTTP as a match so callers can test with errors.Is.
func (e *HTTPError) Is(target error) bool {
	return target == ErrHTTP
}

var sentinelCodes = []struct {
	err  error
	code ErrorCode
}{
	{ErrInvalidAmount, ErrCodeInvalidAmount},
	{ErrEmptyTransaction, ErrCodeEmptyTransaction},
	{ErrInvalidCurrency, ErrCodeInvalidCurrency},
	{ErrInvalidCountry, ErrCodeInvalidCountry},
	{ErrInvalidTransaction, ErrCodeInvalidTransaction},
	{ErrWalletUnavailable, ErrCodeWalletUnavailable},
	{ErrUnsupportedPlatformVersion, ErrCodeUnsupportedPlatformVersion},
	{ErrNetwork, ErrCodeNetworkError},
	{ErrHTTP, ErrCodeHTTPError},
	{ErrDecoding, ErrCodeDecodingError},
	{ErrInternal, ErrCodeInternalError},
	{ErrMissingConfig, ErrCodeDeveloperError},
	{ErrMissingEnvironment, ErrCodeDeveloperError},
}

// CodeOf returns the ErrorCode carried by err. A PaymentError's own code wins,
// then known sentinels are matched; anything else is an internal error.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var pe *PaymentError
	if errors.As(err, &pe) && pe.Code != "" {
		return pe.Code
	}
	for _, sc := range sentinelCodes {
		if errors.Is(err, sc.err) {
			return sc.code
		}
	}
	return ErrCodeInternalError
}
