package wire

import (
	"fmt"

	evpay "github.com/evervault/evpay-go"
)

// Google Pay API version targeted by every request.
const (
	GoogleAPIVersion      = 2
	GoogleAPIVersionMinor = 0
)

// Google Pay callback intents.
const (
	IntentPaymentAuthorization = "PAYMENT_AUTHORIZATION"
	IntentPaymentMethod        = "PAYMENT_METHOD"
	IntentShippingAddress      = "SHIPPING_ADDRESS"
	IntentShippingOption       = "SHIPPING_OPTION"
)

// GooglePayRequest is a PaymentDataRequest.
type GooglePayRequest struct {
	APIVersion                int                        `json:"apiVersion"`
	APIVersionMinor           int                        `json:"apiVersionMinor"`
	AllowedPaymentMethods     []PaymentMethod            `json:"allowedPaymentMethods"`
	TransactionInfo           TransactionInfo            `json:"transactionInfo"`
	MerchantInfo              MerchantInfo               `json:"merchantInfo"`
	EmailRequired             bool                       `json:"emailRequired,omitempty"`
	ShippingAddressRequired   bool                       `json:"shippingAddressRequired,omitempty"`
	ShippingAddressParameters *ShippingAddressParameters `json:"shippingAddressParameters,omitempty"`
	ShippingOptionRequired    bool                       `json:"shippingOptionRequired,omitempty"`
	ShippingOptionParameters  *ShippingOptionParameters  `json:"shippingOptionParameters,omitempty"`
	CallbackIntents           []string                   `json:"callbackIntents,omitempty"`
}

// IsReadyToPayRequest is the readiness probe payload.
type IsReadyToPayRequest struct {
	APIVersion            int             `json:"apiVersion"`
	APIVersionMinor       int             `json:"apiVersionMinor"`
	AllowedPaymentMethods []PaymentMethod `json:"allowedPaymentMethods"`
}

// PaymentMethod is an allowed payment method.
type PaymentMethod struct {
	Type                      string                     `json:"type"`
	Parameters                CardParameters             `json:"parameters"`
	TokenizationSpecification *TokenizationSpecification `json:"tokenizationSpecification,omitempty"`
}

// CardParameters constrain the CARD payment method.
type CardParameters struct {
	AllowedAuthMethods       []string                  `json:"allowedAuthMethods"`
	AllowedCardNetworks      []string                  `json:"allowedCardNetworks"`
	BillingAddressRequired   bool                      `json:"billingAddressRequired"`
	BillingAddressParameters *BillingAddressParameters `json:"billingAddressParameters,omitempty"`
}

// BillingAddressParameters selects the billing address format.
type BillingAddressParameters struct {
	Format              string `json:"format"`
	PhoneNumberRequired bool   `json:"phoneNumberRequired,omitempty"`
}

// TokenizationSpecification routes the credential to the payment gateway.
type TokenizationSpecification struct {
	Type       string            `json:"type"`
	Parameters map[string]string `json:"parameters"`
}

// TransactionInfo describes the amounts shown on the sheet.
type TransactionInfo struct {
	DisplayItems     []DisplayItem `json:"displayItems,omitempty"`
	TotalPriceLabel  string        `json:"totalPriceLabel"`
	TotalPrice       string        `json:"totalPrice"`
	TotalPriceStatus string        `json:"totalPriceStatus"`
	CountryCode      string        `json:"countryCode"`
	CurrencyCode     string        `json:"currencyCode"`
}

// DisplayItem is a line in TransactionInfo.
type DisplayItem struct {
	Label  string `json:"label"`
	Type   string `json:"type"`
	Price  string `json:"price"`
	Status string `json:"status,omitempty"`
}

// MerchantInfo names the merchant on the sheet.
type MerchantInfo struct {
	MerchantName string `json:"merchantName,omitempty"`
}

// ShippingAddressParameters constrain the shipping address.
type ShippingAddressParameters struct {
	AllowedCountryCodes []string `json:"allowedCountryCodes,omitempty"`
	PhoneNumberRequired bool     `json:"phoneNumberRequired,omitempty"`
}

// ShippingOptionParameters lists the selectable shipping options.
type ShippingOptionParameters struct {
	DefaultSelectedOptionID string           `json:"defaultSelectedOptionId,omitempty"`
	ShippingOptions         []ShippingOption `json:"shippingOptions"`
}

// ShippingOption is a selectable shipping option.
type ShippingOption struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// ReadinessRequest builds the readiness probe payload from the merchant's
// network and auth method configuration.
func ReadinessRequest(merchant evpay.MerchantConfig) IsReadyToPayRequest {
	method := cardMethod(merchant)
	method.TokenizationSpecification = nil
	return IsReadyToPayRequest{
		APIVersion:            GoogleAPIVersion,
		APIVersionMinor:       GoogleAPIVersionMinor,
		AllowedPaymentMethods: []PaymentMethod{method},
	}
}

// BuildGooglePay translates tx into a Google Pay PaymentDataRequest.
// Google Pay has no disbursement flow, so disbursements fail with
// ErrUnsupportedPlatformVersion.
func BuildGooglePay(tx evpay.Transaction, merchant evpay.MerchantConfig) (Request, error) {
	if tx == nil {
		return Request{}, fmt.Errorf("%w: nil transaction", evpay.ErrInvalidTransaction)
	}
	if tx.Kind() == evpay.KindDisbursement {
		return Request{}, fmt.Errorf("%w: google pay does not support disbursements", evpay.ErrUnsupportedPlatformVersion)
	}
	if err := checkMerchant(merchant); err != nil {
		return Request{}, err
	}

	items := Summary(tx)
	req := &GooglePayRequest{
		APIVersion:            GoogleAPIVersion,
		APIVersionMinor:       GoogleAPIVersionMinor,
		AllowedPaymentMethods: []PaymentMethod{cardMethod(merchant)},
		TransactionInfo:       transactionInfo(tx, items),
		MerchantInfo:          MerchantInfo{MerchantName: merchant.MerchantName},
		CallbackIntents:       []string{IntentPaymentAuthorization, IntentPaymentMethod},
	}

	if p, ok := tx.(*evpay.OneOffPayment); ok {
		req.EmailRequired = hasField(p.RequiredContactFields, evpay.ContactEmailAddress)
		if p.ShippingRequired {
			req.ShippingAddressRequired = true
			req.ShippingAddressParameters = &ShippingAddressParameters{
				PhoneNumberRequired: hasField(p.RequiredContactFields, evpay.ContactPhoneNumber),
			}
			req.CallbackIntents = append(req.CallbackIntents, IntentShippingAddress)
		}
		// Shipping options only make sense once a shipping address is collected.
		if p.ShippingRequired && len(p.ShippingMethods) > 0 {
			opts := &ShippingOptionParameters{DefaultSelectedOptionID: p.ShippingMethods[0].Identifier}
			for _, m := range p.ShippingMethods {
				desc := m.Amount.Display()
				if m.Detail != "" {
					desc = m.Detail + " " + desc
				}
				opts.ShippingOptions = append(opts.ShippingOptions, ShippingOption{
					ID:          m.Identifier,
					Label:       m.Label,
					Description: desc,
				})
			}
			req.ShippingOptionRequired = true
			req.ShippingOptionParameters = opts
			req.CallbackIntents = append(req.CallbackIntents, IntentShippingOption)
		}
	}

	return Request{
		Platform: evpay.PlatformGooglePay,
		Kind:     tx.Kind(),
		Items:    items,
		Google:   req,
	}, nil
}

func cardMethod(merchant evpay.MerchantConfig) PaymentMethod {
	params := CardParameters{
		AllowedAuthMethods:     make([]string, len(merchant.AuthMethods)),
		AllowedCardNetworks:    make([]string, len(merchant.Networks)),
		BillingAddressRequired: true,
		BillingAddressParameters: &BillingAddressParameters{
			Format: "FULL",
		},
	}
	for i, m := range merchant.AuthMethods {
		params.AllowedAuthMethods[i] = string(m)
	}
	for i, n := range merchant.Networks {
		params.AllowedCardNetworks[i] = string(n)
	}
	return PaymentMethod{
		Type:       "CARD",
		Parameters: params,
		TokenizationSpecification: &TokenizationSpecification{
			Type: "PAYMENT_GATEWAY",
			Parameters: map[string]string{
				"gateway":           merchant.Gateway,
				"gatewayMerchantId": merchant.MerchantID,
			},
		},
	}
}

// transactionInfo maps a summary list onto Google's shape: every item but the
// last becomes a display item and the last is the total price.
func transactionInfo(tx evpay.Transaction, items []evpay.SummaryItem) TransactionInfo {
	info := TransactionInfo{
		TotalPriceLabel:  TotalLabel,
		TotalPriceStatus: "FINAL",
		CountryCode:      tx.CountryCode(),
		CurrencyCode:     tx.CurrencyCode(),
	}
	if len(items) == 0 {
		info.TotalPrice = evpay.SumItems(nil).Display()
		return info
	}
	total := items[len(items)-1]
	info.TotalPrice = total.Amount.Display()
	for _, item := range items[:len(items)-1] {
		info.DisplayItems = append(info.DisplayItems, DisplayItem{
			Label:  item.Label,
			Type:   "LINE_ITEM",
			Price:  item.Amount.Display(),
			Status: "FINAL",
		})
	}
	return info
}
