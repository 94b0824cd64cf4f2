// Package wire translates platform-agnostic transactions into Apple Pay and
// Google Pay payment requests. Every function in this package is pure.
package wire

import (
	"encoding/json"
	"fmt"

	evpay "github.com/evervault/evpay-go"
)

// TotalLabel is the label of the computed one-off total.
const TotalLabel = "Total"

// Request is a platform payment request ready to hand to a wallet.
// Exactly one of Apple and Google is set, matching Platform.
type Request struct {
	Platform evpay.Platform
	Kind     evpay.TransactionKind

	// Items is the summary list shown on the sheet, including computed and
	// kind-specific entries. The last item is the amount charged.
	Items []evpay.SummaryItem

	Apple  *ApplePayRequest
	Google *GooglePayRequest
}

// Total returns the last summary item.
func (r Request) Total() evpay.SummaryItem {
	if len(r.Items) == 0 {
		return evpay.SummaryItem{}
	}
	return r.Items[len(r.Items)-1]
}

// MarshalJSON encodes the platform payload.
func (r Request) MarshalJSON() ([]byte, error) {
	switch {
	case r.Apple != nil:
		return json.Marshal(r.Apple)
	case r.Google != nil:
		return json.Marshal(r.Google)
	default:
		return nil, fmt.Errorf("%w: request has no platform payload", evpay.ErrInternal)
	}
}

// Build translates tx for the given platform.
func Build(platform evpay.Platform, tx evpay.Transaction, merchant evpay.MerchantConfig) (Request, error) {
	switch platform {
	case evpay.PlatformApplePay:
		return BuildApplePay(tx, merchant)
	case evpay.PlatformGooglePay:
		return BuildGooglePay(tx, merchant)
	default:
		return Request{}, fmt.Errorf("%w: unknown platform %q", evpay.ErrUnsupportedPlatformVersion, platform)
	}
}

// Summary returns the summary list displayed for tx: the caller's line items
// followed by the entries its kind appends.
//
//   - one-off: a "Total" item equal to the sum of the line items
//   - recurring: the regular billing item, then the trial item if present
//   - disbursement: the instant-out fee when instant funds out applies, then
//     the disbursement item
func Summary(tx evpay.Transaction) []evpay.SummaryItem {
	items := tx.Items()
	switch t := tx.(type) {
	case *evpay.OneOffPayment:
		items = append(items, evpay.SummaryItem{Label: TotalLabel, Amount: evpay.SumItems(items)})
	case *evpay.RecurringPayment:
		items = append(items, t.RegularBilling.SummaryItem)
		if t.TrialBilling != nil {
			items = append(items, t.TrialBilling.SummaryItem)
		}
	case *evpay.Disbursement:
		if t.InstantFundsOut() {
			items = append(items, *t.InstantOutFee)
		}
		items = append(items, t.DisbursementItem)
	}
	return items
}

// Update is the answer to a dynamic sheet callback.
type Update struct {
	// Items is the recomputed summary list, in the same form as Request.Items.
	Items []evpay.SummaryItem
	// Google is the replacement transactionInfo for Google Pay sheets.
	Google *TransactionInfo
}

// Total returns the last summary item.
func (u Update) Total() evpay.SummaryItem {
	return Request{Items: u.Items}.Total()
}

// NewUpdate recomputes the displayed summary for tx on the given platform.
func NewUpdate(platform evpay.Platform, tx evpay.Transaction) Update {
	items := Summary(tx)
	u := Update{Items: items}
	if platform == evpay.PlatformGooglePay {
		info := transactionInfo(tx, items)
		u.Google = &info
	}
	return u
}

func checkMerchant(m evpay.MerchantConfig) error {
	if m.MerchantID == "" {
		return fmt.Errorf("%w: merchant id", evpay.ErrMissingConfig)
	}
	if m.Gateway == "" {
		return fmt.Errorf("%w: gateway", evpay.ErrMissingConfig)
	}
	return nil
}

func contactFields(fields []evpay.ContactField) []string {
	if len(fields) == 0 {
		return nil
	}
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f)
	}
	return out
}

func hasField(fields []evpay.ContactField, f evpay.ContactField) bool {
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}
