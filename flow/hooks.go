package flow

import (
	"context"
	"log/slog"
	"time"

	evpay "github.com/evervault/evpay-go"
)

// ============================================================================
// Hook Context Types
// ============================================================================

// PrepareContext is passed to the prepare hook.
type PrepareContext struct {
	Ctx       context.Context
	AttemptID string
	Platform  evpay.Platform
	// Transaction is the attempt's private snapshot. The hook may mutate it
	// in place; it is re-validated before the request is built.
	Transaction evpay.Transaction
	// MerchantName may be replaced to change the name shown on the sheet.
	MerchantName string
	Timestamp    time.Time
}

// UpdateContext carries the state shared by every dynamic update callback.
type UpdateContext struct {
	Ctx       context.Context
	AttemptID string
	Platform  evpay.Platform
	// Transaction is a copy of the snapshot currently displayed.
	Transaction evpay.Transaction
}

// ShippingContactContext is passed to the shipping contact hook.
type ShippingContactContext struct {
	UpdateContext
	Contact evpay.Contact
}

// ShippingMethodContext is passed to the shipping method hook.
type ShippingMethodContext struct {
	UpdateContext
	Method evpay.ShippingMethod
}

// PaymentMethodContext is passed to the payment method hook.
type PaymentMethodContext struct {
	UpdateContext
	Method evpay.PaymentMethodInfo
}

// ============================================================================
// Hook Function Types
// ============================================================================

// PrepareHook runs once per attempt, right before the wallet request is built.
// Returning an error ends the attempt in the Error state.
type PrepareHook func(*PrepareContext) error

// ShippingContactHook returns the line items to display after the shipping
// contact changed. An error or a timeout keeps the current items.
type ShippingContactHook func(ShippingContactContext) ([]evpay.SummaryItem, error)

// ShippingMethodHook returns the line items to display after the shipping
// method changed. An error or a timeout keeps the current items.
type ShippingMethodHook func(ShippingMethodContext) ([]evpay.SummaryItem, error)

// PaymentMethodHook returns the line items to display after the card changed.
// An error or a timeout keeps the current items.
type PaymentMethodHook func(PaymentMethodContext) ([]evpay.SummaryItem, error)

// StateListener observes every published state.
type StateListener func(evpay.PaymentUiState)

// Dispatcher runs fn on the execution context that owns the UI.
type Dispatcher func(fn func())

func noPrepare(*PrepareContext) error { return nil }

func keepShippingContact(c ShippingContactContext) ([]evpay.SummaryItem, error) {
	return c.Transaction.Items(), nil
}

func keepShippingMethod(c ShippingMethodContext) ([]evpay.SummaryItem, error) {
	return c.Transaction.Items(), nil
}

func keepPaymentMethod(c PaymentMethodContext) ([]evpay.SummaryItem, error) {
	return c.Transaction.Items(), nil
}

func inline(fn func()) { fn() }

// DefaultUpdateTimeout bounds a dynamic update hook. Wallets cap callback
// latency, so a slow hook falls back to the current items.
const DefaultUpdateTimeout = 20 * time.Second

type options struct {
	prepare         PrepareHook
	shippingContact ShippingContactHook
	shippingMethod  ShippingMethodHook
	paymentMethod   PaymentMethodHook
	listeners       []StateListener
	dispatch        Dispatcher
	events          []evpay.PaymentCallback
	logger          *slog.Logger
	updateTimeout   time.Duration
}

func defaultOptions() options {
	return options{
		prepare:         noPrepare,
		shippingContact: keepShippingContact,
		shippingMethod:  keepShippingMethod,
		paymentMethod:   keepPaymentMethod,
		dispatch:        inline,
		logger:          slog.Default(),
		updateTimeout:   DefaultUpdateTimeout,
	}
}

// ============================================================================
// Hook Registration Options
// ============================================================================

// Option configures a Controller.
type Option func(*options)

// WithPrepare registers the hook that runs before each request is built.
func WithPrepare(hook PrepareHook) Option {
	return func(o *options) {
		if hook != nil {
			o.prepare = hook
		}
	}
}

// WithShippingContactHandler registers the shipping contact update hook.
func WithShippingContactHandler(hook ShippingContactHook) Option {
	return func(o *options) {
		if hook != nil {
			o.shippingContact = hook
		}
	}
}

// WithShippingMethodHandler registers the shipping method update hook.
func WithShippingMethodHandler(hook ShippingMethodHook) Option {
	return func(o *options) {
		if hook != nil {
			o.shippingMethod = hook
		}
	}
}

// WithPaymentMethodHandler registers the payment method update hook.
func WithPaymentMethodHandler(hook PaymentMethodHook) Option {
	return func(o *options) {
		if hook != nil {
			o.paymentMethod = hook
		}
	}
}

// WithStateListener registers a listener for published states.
func WithStateListener(listener StateListener) Option {
	return func(o *options) {
		if listener != nil {
			o.listeners = append(o.listeners, listener)
		}
	}
}

// WithDispatcher sets how state notifications reach listeners. The default
// calls listeners inline on the publishing goroutine.
func WithDispatcher(dispatch Dispatcher) Option {
	return func(o *options) {
		if dispatch != nil {
			o.dispatch = dispatch
		}
	}
}

// WithEventCallback registers a callback for attempt lifecycle events.
func WithEventCallback(cb evpay.PaymentCallback) Option {
	return func(o *options) {
		if cb != nil {
			o.events = append(o.events, cb)
		}
	}
}

// WithLogger sets the controller's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithUpdateTimeout bounds each dynamic update hook.
func WithUpdateTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.updateTimeout = d
		}
	}
}
