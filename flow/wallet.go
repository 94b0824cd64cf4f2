package flow

import (
	"context"

	evpay "github.com/evervault/evpay-go"
	"github.com/evervault/evpay-go/wire"
)

// Wallet is the OS wallet adapter.
type Wallet interface {
	Platform() evpay.Platform

	// IsReadyToPay probes whether the wallet can pay with the given methods.
	IsReadyToPay(ctx context.Context, req wire.IsReadyToPayRequest) (bool, error)

	// PresentSheet shows the payment sheet. The wallet reports everything that
	// happens on the sheet through delegate, possibly from other goroutines
	// and possibly before PresentSheet returns.
	PresentSheet(ctx context.Context, req wire.Request, delegate SheetDelegate) (Sheet, error)
}

// CapabilityReporter is implemented by wallets whose OS version may lack
// support for some transaction kinds.
type CapabilityReporter interface {
	Supports(kind evpay.TransactionKind) bool
}

// Sheet is a presented payment sheet.
type Sheet interface {
	Dismiss()
}

// Relay is the credential relay. *relay.Client implements it.
type Relay interface {
	FetchMerchantName(ctx context.Context) (string, error)
	SubmitCredential(ctx context.Context, token evpay.PaymentToken) (evpay.CredentialResponse, error)
}

// AuthorizationResult tells the wallet how to conclude the sheet.
type AuthorizationResult struct {
	Success  bool
	Response evpay.CredentialResponse
	Err      error
}

// SheetDelegate receives sheet callbacks. An *Attempt implements it.
type SheetDelegate interface {
	ShippingContactChanged(ctx context.Context, contact evpay.Contact) wire.Update
	ShippingMethodChanged(ctx context.Context, method evpay.ShippingMethod) wire.Update
	PaymentMethodChanged(ctx context.Context, method evpay.PaymentMethodInfo) wire.Update

	// Authorized is honoured at most once per attempt and blocks until the
	// relay answered.
	Authorized(ctx context.Context, token evpay.PaymentToken) AuthorizationResult

	// Finished reports that the sheet closed. Only the first call counts.
	Finished()
}
