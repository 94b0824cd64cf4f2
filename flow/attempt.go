package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	evpay "github.com/evervault/evpay-go"
	"github.com/evervault/evpay-go/wire"
)

// Phase is the lifecycle position of an attempt.
type Phase int

const (
	PhasePreparing Phase = iota
	PhasePresenting
	PhaseOpen
	PhaseAuthorizing
	PhaseAuthorized
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhasePreparing:
		return "preparing"
	case PhasePresenting:
		return "presenting"
	case PhaseOpen:
		return "open"
	case PhaseAuthorizing:
		return "authorizing"
	case PhaseAuthorized:
		return "authorized"
	case PhaseFinished:
		return "finished"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// ErrAlreadyAuthorized is reported to the wallet when it authorizes twice.
var ErrAlreadyAuthorized = errors.New("flow: attempt already authorized")

// ErrAttemptClosed is reported to the wallet when it authorizes a finished attempt.
var ErrAttemptClosed = errors.New("flow: attempt is closed")

// Outcome is how an attempt ended.
type Outcome struct {
	// Response is set when the relay returned a credential.
	Response evpay.CredentialResponse
	// Err is set when the attempt failed.
	Err error
	// Cancelled is set when the sheet closed without authorization.
	Cancelled bool
}

// State returns the state the outcome publishes, or nil for a cancellation.
func (o Outcome) State() evpay.PaymentUiState {
	switch {
	case o.Cancelled:
		return nil
	case o.Err != nil:
		return evpay.ErrorState(o.Err)
	default:
		return evpay.PaymentCompleted{Response: o.Response}
	}
}

// Attempt is a single payment attempt, from tap to sheet dismissal. It is
// the SheetDelegate handed to the wallet.
type Attempt struct {
	id       string
	c        *Controller
	ctx      context.Context
	platform evpay.Platform
	started  time.Time

	// updates serializes dynamic update hooks.
	updates sync.Mutex

	mu              sync.Mutex
	phase           Phase
	tx              evpay.Transaction
	sheet           Sheet
	outcome         Outcome
	authorized      bool
	finishRequested bool
	done            chan struct{}
}

func newAttempt(c *Controller, ctx context.Context, tx evpay.Transaction) *Attempt {
	a := &Attempt{
		id:       newAttemptID(),
		c:        c,
		ctx:      ctx,
		platform: c.wallet.Platform(),
		started:  time.Now(),
		phase:    PhasePreparing,
		done:     make(chan struct{}),
	}
	if tx != nil {
		a.tx = tx.Clone()
	}
	return a
}

// ID returns the attempt's unique identifier.
func (a *Attempt) ID() string { return a.id }

// Done is closed once the attempt finished and released the controller.
func (a *Attempt) Done() <-chan struct{} { return a.done }

// Phase returns the current phase.
func (a *Attempt) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// Outcome returns how the attempt ended. It is only meaningful after Done.
func (a *Attempt) Outcome() Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outcome
}

// Wait blocks until the attempt is done or ctx ends.
func (a *Attempt) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-a.done:
		return a.Outcome(), nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Transaction returns a copy of the snapshot currently displayed.
func (a *Attempt) Transaction() evpay.Transaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tx == nil {
		return nil
	}
	return a.tx.Clone()
}

func (a *Attempt) run() {
	logger := a.c.opts.logger.With("attempt_id", a.id, "platform", a.platform)

	req, err := a.prepare()
	if err != nil {
		logger.WarnContext(a.ctx, "payment attempt failed before presenting", "error", err)
		a.finish(Outcome{Err: failure(err)})
		return
	}

	if !a.transition(PhasePreparing, PhasePresenting) {
		return
	}
	sheet, err := a.c.wallet.PresentSheet(a.ctx, req, a)
	if err != nil {
		if evpay.CodeOf(err) == evpay.ErrCodeInternalError {
			err = fmt.Errorf("%w: %w", evpay.ErrWalletUnavailable, err)
		}
		logger.WarnContext(a.ctx, "payment sheet could not be presented", "error", err)
		a.finish(Outcome{Err: failure(err)})
		return
	}

	a.mu.Lock()
	a.sheet = sheet
	if a.phase == PhasePresenting {
		a.phase = PhaseOpen
	}
	finished := a.phase == PhaseFinished
	a.mu.Unlock()
	if finished {
		// The wallet finished the sheet before PresentSheet returned.
		if sheet != nil {
			sheet.Dismiss()
		}
		return
	}

	select {
	case <-a.done:
	case <-a.ctx.Done():
		logger.DebugContext(a.ctx, "attempt context ended while sheet open")
		a.Finished()
	}
}

// prepare resolves the merchant name, runs the prepare hook and builds the
// wallet request.
func (a *Attempt) prepare() (wire.Request, error) {
	if a.tx == nil {
		return wire.Request{}, fmt.Errorf("%w: nil transaction", evpay.ErrInvalidTransaction)
	}

	name, err := a.c.merchantFor(a.ctx)
	if err != nil {
		return wire.Request{}, err
	}

	pc := &PrepareContext{
		Ctx:          a.ctx,
		AttemptID:    a.id,
		Platform:     a.platform,
		Transaction:  a.tx,
		MerchantName: name,
		Timestamp:    time.Now(),
	}
	if err := a.c.opts.prepare(pc); err != nil {
		return wire.Request{}, err
	}
	if pc.Transaction == nil {
		return wire.Request{}, fmt.Errorf("%w: prepare hook cleared the transaction", evpay.ErrInvalidTransaction)
	}
	tx := pc.Transaction
	a.mu.Lock()
	a.tx = tx
	a.mu.Unlock()
	if err := tx.Validate(); err != nil {
		return wire.Request{}, err
	}

	if cr, ok := a.c.wallet.(CapabilityReporter); ok && !cr.Supports(tx.Kind()) {
		return wire.Request{}, fmt.Errorf("%w: %s", evpay.ErrUnsupportedPlatformVersion, tx.Kind())
	}

	merchant := a.c.cfg.WithMerchantName(pc.MerchantName).Merchant()
	req, err := wire.Build(a.platform, tx, merchant)
	if err != nil {
		return wire.Request{}, err
	}
	if err := req.Validate(); err != nil {
		return wire.Request{}, err
	}
	return req, nil
}

func (a *Attempt) transition(from, to Phase) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.phase != from {
		return false
	}
	a.phase = to
	return true
}

// sheetOpen reports whether dynamic updates and authorization are accepted.
func (a *Attempt) sheetOpen() bool {
	return a.phase == PhasePresenting || a.phase == PhaseOpen
}

// update runs hook bounded by the update timeout and swaps in a new snapshot
// with the returned line items. The snapshot the wallet is showing is never
// modified.
func (a *Attempt) update(ctx context.Context, name string, hook func(UpdateContext) ([]evpay.SummaryItem, error)) wire.Update {
	a.updates.Lock()
	defer a.updates.Unlock()

	a.mu.Lock()
	open := a.sheetOpen()
	tx := a.tx
	a.mu.Unlock()
	if !open {
		return wire.NewUpdate(a.platform, tx)
	}

	hctx, cancel := context.WithTimeout(ctx, a.c.opts.updateTimeout)
	defer cancel()

	type result struct {
		items []evpay.SummaryItem
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		items, err := hook(UpdateContext{
			Ctx:         hctx,
			AttemptID:   a.id,
			Platform:    a.platform,
			Transaction: tx.Clone(),
		})
		ch <- result{items, err}
	}()

	logger := a.c.opts.logger.With("attempt_id", a.id, "callback", name)
	var res result
	select {
	case res = <-ch:
	case <-hctx.Done():
		logger.WarnContext(ctx, "update hook timed out, keeping current items")
		return wire.NewUpdate(a.platform, tx)
	}
	if res.err != nil {
		logger.WarnContext(ctx, "update hook failed, keeping current items", "error", res.err)
		return wire.NewUpdate(a.platform, tx)
	}

	next := tx.WithLineItems(res.items)
	if err := next.Validate(); err != nil {
		logger.WarnContext(ctx, "update hook returned invalid items, keeping current items", "error", err)
		return wire.NewUpdate(a.platform, tx)
	}

	a.mu.Lock()
	if !a.sheetOpen() {
		a.mu.Unlock()
		return wire.NewUpdate(a.platform, tx)
	}
	a.tx = next
	a.mu.Unlock()
	return wire.NewUpdate(a.platform, next)
}

// ShippingContactChanged implements SheetDelegate.
func (a *Attempt) ShippingContactChanged(ctx context.Context, contact evpay.Contact) wire.Update {
	return a.update(ctx, "shipping_contact", func(uc UpdateContext) ([]evpay.SummaryItem, error) {
		return a.c.opts.shippingContact(ShippingContactContext{UpdateContext: uc, Contact: contact})
	})
}

// ShippingMethodChanged implements SheetDelegate.
func (a *Attempt) ShippingMethodChanged(ctx context.Context, method evpay.ShippingMethod) wire.Update {
	return a.update(ctx, "shipping_method", func(uc UpdateContext) ([]evpay.SummaryItem, error) {
		return a.c.opts.shippingMethod(ShippingMethodContext{UpdateContext: uc, Method: method})
	})
}

// PaymentMethodChanged implements SheetDelegate.
func (a *Attempt) PaymentMethodChanged(ctx context.Context, method evpay.PaymentMethodInfo) wire.Update {
	return a.update(ctx, "payment_method", func(uc UpdateContext) ([]evpay.SummaryItem, error) {
		return a.c.opts.paymentMethod(PaymentMethodContext{UpdateContext: uc, Method: method})
	})
}

// Authorized implements SheetDelegate. The relay call is detached from the
// attempt context: once the user authorized, the call runs to completion or
// to the request timeout.
func (a *Attempt) Authorized(ctx context.Context, token evpay.PaymentToken) AuthorizationResult {
	a.mu.Lock()
	switch {
	case a.authorized:
		a.mu.Unlock()
		return AuthorizationResult{Err: ErrAlreadyAuthorized}
	case !a.sheetOpen():
		a.mu.Unlock()
		return AuthorizationResult{Err: ErrAttemptClosed}
	}
	a.authorized = true
	a.phase = PhaseAuthorizing
	a.mu.Unlock()

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.c.cfg.Timeout())
	defer cancel()

	resp, err := a.c.relay.SubmitCredential(rctx, token)
	var outcome Outcome
	if err != nil {
		a.c.opts.logger.WarnContext(ctx, "credential relay failed",
			"attempt_id", a.id, "code", evpay.CodeOf(err), "error", err)
		outcome = Outcome{Err: failure(err)}
	} else {
		outcome = Outcome{Response: resp}
	}

	a.mu.Lock()
	a.outcome = outcome
	a.phase = PhaseAuthorized
	finish := a.finishRequested
	a.mu.Unlock()

	if finish {
		a.finish(outcome)
	}
	return AuthorizationResult{Success: err == nil, Response: resp, Err: outcome.Err}
}

// Finished implements SheetDelegate. A finish that arrives while the relay
// call is running takes effect once it returns.
func (a *Attempt) Finished() {
	a.mu.Lock()
	if a.finishRequested || a.phase == PhaseFinished {
		a.mu.Unlock()
		return
	}
	a.finishRequested = true
	phase := a.phase
	outcome := a.outcome
	a.mu.Unlock()

	switch phase {
	case PhaseAuthorizing:
		// Authorized finishes the attempt.
	case PhaseAuthorized:
		a.finish(outcome)
	default:
		a.finish(Outcome{Cancelled: true})
	}
}

// finish publishes the outcome, dismisses the sheet and frees the
// controller. Only the first call has any effect.
func (a *Attempt) finish(outcome Outcome) {
	a.mu.Lock()
	if a.phase == PhaseFinished {
		a.mu.Unlock()
		return
	}
	a.phase = PhaseFinished
	a.outcome = outcome
	sheet := a.sheet
	a.mu.Unlock()

	logger := a.c.opts.logger.With("attempt_id", a.id, "platform", a.platform)
	if state := outcome.State(); state != nil {
		a.c.publish(state)
	}
	if sheet != nil {
		sheet.Dismiss()
	}

	switch {
	case outcome.Cancelled:
		logger.InfoContext(a.ctx, "payment cancelled")
		a.c.emit(a.event(evpay.PaymentEventCancel))
	case outcome.Err != nil:
		ev := a.event(evpay.PaymentEventFailure)
		ev.Error = outcome.Err
		a.c.emit(ev)
	default:
		logger.InfoContext(a.ctx, "payment completed", "response_kind", outcome.Response.Kind())
		ev := a.event(evpay.PaymentEventSuccess)
		ev.Response = outcome.Response
		a.c.emit(ev)
	}

	a.c.release(a)
	close(a.done)
}

func (a *Attempt) event(t evpay.PaymentEventType) evpay.PaymentEvent {
	ev := evpay.PaymentEvent{
		Type:      t,
		AttemptID: a.id,
		Timestamp: time.Now(),
		Platform:  a.platform,
		Duration:  time.Since(a.started),
	}
	a.mu.Lock()
	tx := a.tx
	a.mu.Unlock()
	if tx != nil {
		ev.Kind = tx.Kind()
		ev.Currency = tx.CurrencyCode()
		ev.Total = evpay.SumItems(tx.Items()).Display()
	}
	return ev
}
