// Package flow drives a wallet payment from readiness probe to published
// result, with at most one attempt in flight per controller.
package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	evpay "github.com/evervault/evpay-go"
	"github.com/evervault/evpay-go/wire"
)

// Controller owns the published PaymentUiState and the in-flight slot.
type Controller struct {
	cfg    evpay.Config
	wallet Wallet
	relay  Relay
	opts   options

	started  atomic.Bool
	inFlight atomic.Bool

	mu           sync.Mutex
	state        evpay.PaymentUiState
	walletReady  bool
	merchantName string
	current      *Attempt
}

// NewController creates a controller in the NotStarted state.
func NewController(cfg evpay.Config, wallet Wallet, relay Relay, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, fmt.Errorf("%w: wallet", evpay.ErrMissingConfig)
	}
	if relay == nil {
		return nil, fmt.Errorf("%w: relay", evpay.ErrMissingConfig)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Controller{
		cfg:          cfg,
		wallet:       wallet,
		relay:        relay,
		opts:         o,
		state:        evpay.NotStarted{},
		merchantName: cfg.MerchantName,
	}, nil
}

// State returns the current published state.
func (c *Controller) State() evpay.PaymentUiState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Clickable reports whether a tap would start an attempt.
func (c *Controller) Clickable() bool {
	c.mu.Lock()
	ready := c.walletReady
	c.mu.Unlock()
	return ready && !c.inFlight.Load()
}

// Start probes wallet readiness and publishes Available, Unavailable or
// Error. Only the first call probes; it reports whether this call did.
func (c *Controller) Start(ctx context.Context) bool {
	if !c.started.CompareAndSwap(false, true) {
		return false
	}

	platform := c.wallet.Platform()
	ready, err := c.wallet.IsReadyToPay(ctx, wire.ReadinessRequest(c.cfg.Merchant()))
	if err != nil {
		c.opts.logger.WarnContext(ctx, "wallet readiness probe failed", "platform", platform, "error", err)
		if evpay.CodeOf(err) == evpay.ErrCodeInternalError {
			err = evpay.NewPaymentError(evpay.ErrCodeWalletUnavailable, "wallet readiness probe failed",
				fmt.Errorf("%w: %w", evpay.ErrWalletUnavailable, err))
		}
		c.publish(evpay.ErrorState(err))
		return true
	}

	c.mu.Lock()
	c.walletReady = ready
	c.mu.Unlock()

	c.opts.logger.DebugContext(ctx, "wallet readiness probed", "platform", platform, "ready", ready)
	if ready {
		c.publish(evpay.Available{})
	} else {
		c.publish(evpay.Unavailable{})
	}
	return true
}

// Tap starts a payment attempt for tx. It returns false, and does nothing,
// when the wallet is not ready or another attempt is in flight.
//
// The attempt runs on its own goroutine; ctx bounds the attempt until the
// user authorizes. Cancelling ctx while the sheet is open closes it.
func (c *Controller) Tap(ctx context.Context, tx evpay.Transaction) (*Attempt, bool) {
	c.mu.Lock()
	ready := c.walletReady
	c.mu.Unlock()
	if !ready {
		return nil, false
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		c.opts.logger.DebugContext(ctx, "tap ignored, attempt in flight")
		return nil, false
	}

	a := newAttempt(c, ctx, tx)
	c.mu.Lock()
	c.current = a
	c.mu.Unlock()

	c.emit(a.event(evpay.PaymentEventAttempt))
	go a.run()
	return a, true
}

// Current returns the in-flight attempt, or nil.
func (c *Controller) Current() *Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// merchantFor returns the configured or previously fetched merchant name,
// fetching it once when neither is known.
func (c *Controller) merchantFor(ctx context.Context) (string, error) {
	c.mu.Lock()
	name := c.merchantName
	c.mu.Unlock()
	if name != "" {
		return name, nil
	}

	name, err := c.relay.FetchMerchantName(ctx)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.merchantName = name
	c.mu.Unlock()
	return name, nil
}

// release frees the in-flight slot held by a.
func (c *Controller) release(a *Attempt) {
	c.mu.Lock()
	if c.current == a {
		c.current = nil
	}
	c.mu.Unlock()
	c.inFlight.Store(false)
}

// publish is the only writer of the controller state.
func (c *Controller) publish(s evpay.PaymentUiState) {
	c.mu.Lock()
	c.state = s
	listeners := c.opts.listeners
	c.mu.Unlock()

	if len(listeners) == 0 {
		return
	}
	c.opts.dispatch(func() {
		for _, l := range listeners {
			l(s)
		}
	})
}

func (c *Controller) emit(ev evpay.PaymentEvent) {
	for _, cb := range c.opts.events {
		cb(ev)
	}
}

// failure converts an attempt error into the error the Error state reports.
func failure(err error) error {
	var pe *evpay.PaymentError
	if errors.As(err, &pe) {
		return err
	}
	code := evpay.CodeOf(err)
	return evpay.NewPaymentError(code, messageFor(code), err)
}

func messageFor(code evpay.ErrorCode) string {
	switch code {
	case evpay.ErrCodeWalletUnavailable:
		return "wallet unavailable"
	case evpay.ErrCodeUnsupportedPlatformVersion:
		return "transaction not supported on this device"
	case evpay.ErrCodeEmptyTransaction, evpay.ErrCodeInvalidAmount, evpay.ErrCodeInvalidCountry,
		evpay.ErrCodeInvalidCurrency, evpay.ErrCodeInvalidTransaction:
		return "invalid transaction"
	case evpay.ErrCodeDeveloperError:
		return "invalid configuration"
	default:
		return "payment failed"
	}
}

func newAttemptID() string {
	return uuid.NewString()
}
