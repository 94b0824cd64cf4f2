package wire

import (
	"fmt"
	"time"

	evpay "github.com/evervault/evpay-go"
)

// PaymentTimingRecurring marks summary items billed on an interval.
const PaymentTimingRecurring = "recurring"

// ApplePayRequest is the JSON form of an Apple Pay payment request.
type ApplePayRequest struct {
	CountryCode                   string                    `json:"countryCode"`
	CurrencyCode                  string                    `json:"currencyCode"`
	MerchantIdentifier            string                    `json:"merchantIdentifier"`
	MerchantName                  string                    `json:"merchantName,omitempty"`
	SupportedNetworks             []string                  `json:"supportedNetworks"`
	MerchantCapabilities          []string                  `json:"merchantCapabilities"`
	PaymentSummaryItems           []ApplePayItem            `json:"paymentSummaryItems"`
	RequiredShippingContactFields []string                  `json:"requiredShippingContactFields,omitempty"`
	RequiredBillingContactFields  []string                  `json:"requiredBillingContactFields,omitempty"`
	ShippingType                  string                    `json:"shippingType,omitempty"`
	ShippingMethods               []ApplePayShippingMethod  `json:"shippingMethods,omitempty"`
	RecurringPaymentRequest       *ApplePayRecurringRequest `json:"recurringPaymentRequest,omitempty"`
	DisbursementRequest           *ApplePayDisbursement     `json:"disbursementRequest,omitempty"`
}

// ApplePayItem is a payment summary item.
type ApplePayItem struct {
	Label         string `json:"label"`
	Amount        string `json:"amount"`
	Type          string `json:"type"`
	PaymentTiming string `json:"paymentTiming,omitempty"`

	RecurringPaymentIntervalUnit  string `json:"recurringPaymentIntervalUnit,omitempty"`
	RecurringPaymentIntervalCount int    `json:"recurringPaymentIntervalCount,omitempty"`
	RecurringPaymentStartDate     string `json:"recurringPaymentStartDate,omitempty"`
	RecurringPaymentEndDate       string `json:"recurringPaymentEndDate,omitempty"`

	IsDisbursement       bool `json:"isDisbursement,omitempty"`
	IsInstantFundsOutFee bool `json:"isInstantFundsOutFee,omitempty"`
}

// ApplePayShippingMethod is a selectable shipping method.
type ApplePayShippingMethod struct {
	Identifier string `json:"identifier"`
	Label      string `json:"label"`
	Detail     string `json:"detail,omitempty"`
	Amount     string `json:"amount"`
}

// ApplePayRecurringRequest describes a recurring billing agreement.
type ApplePayRecurringRequest struct {
	PaymentDescription   string        `json:"paymentDescription"`
	RegularBilling       ApplePayItem  `json:"regularBilling"`
	TrialBilling         *ApplePayItem `json:"trialBilling,omitempty"`
	BillingAgreement     string        `json:"billingAgreement,omitempty"`
	ManagementURL        string        `json:"managementURL"`
	TokenNotificationURL string        `json:"tokenNotificationURL,omitempty"`
}

// ApplePayDisbursement describes a payout.
type ApplePayDisbursement struct {
	RequiredRecipientContactFields []string `json:"requiredRecipientContactFields,omitempty"`
}

var appleNetworks = map[evpay.CardNetwork]string{
	evpay.NetworkAmex:       "amex",
	evpay.NetworkDiscover:   "discover",
	evpay.NetworkInterac:    "interac",
	evpay.NetworkJCB:        "jcb",
	evpay.NetworkMastercard: "masterCard",
	evpay.NetworkVisa:       "visa",
}

// ApplePayNetwork returns the Apple Pay spelling of a card network.
func ApplePayNetwork(n evpay.CardNetwork) string {
	if s, ok := appleNetworks[n]; ok {
		return s
	}
	return string(n)
}

const capabilityInstantFundsOut = "supportsInstantFundsOut"

// BuildApplePay translates tx into an Apple Pay payment request.
func BuildApplePay(tx evpay.Transaction, merchant evpay.MerchantConfig) (Request, error) {
	if tx == nil {
		return Request{}, fmt.Errorf("%w: nil transaction", evpay.ErrInvalidTransaction)
	}
	if err := checkMerchant(merchant); err != nil {
		return Request{}, err
	}

	items := Summary(tx)
	req := &ApplePayRequest{
		CountryCode:          tx.CountryCode(),
		CurrencyCode:         tx.CurrencyCode(),
		MerchantIdentifier:   merchant.MerchantID,
		MerchantName:         merchant.MerchantName,
		SupportedNetworks:    make([]string, 0, len(merchant.Networks)),
		MerchantCapabilities: make([]string, 0, len(merchant.Capabilities)+1),
	}
	for _, n := range merchant.Networks {
		req.SupportedNetworks = append(req.SupportedNetworks, ApplePayNetwork(n))
	}
	for _, c := range merchant.Capabilities {
		req.MerchantCapabilities = append(req.MerchantCapabilities, string(c))
	}

	// Caller line items are plain immediate charges; kind-specific entries
	// are rewritten below.
	lineCount := len(tx.Items())
	req.PaymentSummaryItems = make([]ApplePayItem, len(items))
	for i, item := range items {
		req.PaymentSummaryItems[i] = appleItem(item)
	}

	switch t := tx.(type) {
	case *evpay.OneOffPayment:
		if t.ShippingRequired {
			req.ShippingType = "shipping"
			req.RequiredShippingContactFields = contactFields(t.RequiredContactFields)
			if !hasField(t.RequiredContactFields, evpay.ContactPostalAddress) {
				req.RequiredShippingContactFields = append(req.RequiredShippingContactFields, string(evpay.ContactPostalAddress))
			}
		} else {
			req.RequiredShippingContactFields = contactFields(t.RequiredContactFields)
		}
		req.RequiredBillingContactFields = contactFields(t.RequiredBillingFields)
		for _, m := range shippingMethods(t) {
			req.ShippingMethods = append(req.ShippingMethods, ApplePayShippingMethod{
				Identifier: m.Identifier,
				Label:      m.Label,
				Detail:     m.Detail,
				Amount:     m.Amount.Display(),
			})
		}

	case *evpay.RecurringPayment:
		regular := appleRecurringItem(t.RegularBilling)
		req.PaymentSummaryItems[lineCount] = regular
		rr := &ApplePayRecurringRequest{
			PaymentDescription:   t.Description,
			RegularBilling:       regular,
			BillingAgreement:     t.BillingAgreement,
			ManagementURL:        t.ManagementURL,
			TokenNotificationURL: t.TokenNotificationURL,
		}
		if t.TrialBilling != nil {
			trial := appleRecurringItem(*t.TrialBilling)
			req.PaymentSummaryItems[lineCount+1] = trial
			rr.TrialBilling = &trial
		}
		req.RecurringPaymentRequest = rr

	case *evpay.Disbursement:
		next := lineCount
		if t.Capability == evpay.CapabilityInstantFundsOut {
			req.MerchantCapabilities = append(req.MerchantCapabilities, capabilityInstantFundsOut)
		}
		if t.InstantFundsOut() {
			req.PaymentSummaryItems[next].IsInstantFundsOutFee = true
			next++
		}
		req.PaymentSummaryItems[next].IsDisbursement = true
		req.DisbursementRequest = &ApplePayDisbursement{
			RequiredRecipientContactFields: contactFields(t.RequiredRecipientFields),
		}
	}

	return Request{
		Platform: evpay.PlatformApplePay,
		Kind:     tx.Kind(),
		Items:    items,
		Apple:    req,
	}, nil
}

// shippingMethods returns the selectable methods, or none when no shipping
// address is collected.
func shippingMethods(p *evpay.OneOffPayment) []evpay.ShippingMethod {
	if !p.ShippingRequired {
		return nil
	}
	return p.ShippingMethods
}

func appleItem(item evpay.SummaryItem) ApplePayItem {
	return ApplePayItem{
		Label:  item.Label,
		Amount: item.Amount.Display(),
		Type:   "final",
	}
}

func appleRecurringItem(r evpay.RecurringItem) ApplePayItem {
	item := appleItem(r.SummaryItem)
	item.PaymentTiming = PaymentTimingRecurring
	item.RecurringPaymentIntervalUnit = string(r.IntervalUnit)
	item.RecurringPaymentIntervalCount = r.IntervalCount
	if item.RecurringPaymentIntervalCount == 0 {
		item.RecurringPaymentIntervalCount = 1
	}
	if r.StartDate != nil {
		item.RecurringPaymentStartDate = r.StartDate.UTC().Format(time.RFC3339)
	}
	if r.EndDate != nil {
		item.RecurringPaymentEndDate = r.EndDate.UTC().Format(time.RFC3339)
	}
	return item
}
