package evpay

import (
	"encoding/json"
	"fmt"
)

// BillingAddress is the cardholder's billing address as reported by the wallet.
type BillingAddress struct {
	Name               string `json:"name,omitempty"`
	PostalCode         string `json:"postalCode,omitempty"`
	CountryCode        string `json:"countryCode,omitempty"`
	PhoneNumber        string `json:"phoneNumber,omitempty"`
	Address1           string `json:"address1,omitempty"`
	Address2           string `json:"address2,omitempty"`
	Address3           string `json:"address3,omitempty"`
	Locality           string `json:"locality,omitempty"`
	AdministrativeArea string `json:"administrativeArea,omitempty"`
	SortingCode        string `json:"sortingCode,omitempty"`
}

// PaymentToken is the raw credential handed over by the wallet on authorization.
//
// For Google Pay, Data is the complete PaymentData JSON. For Apple Pay, Data
// is the PKPaymentToken paymentData JSON and BillingContact carries the
// billing contact the sheet collected, if any.
type PaymentToken struct {
	Platform       Platform
	Data           json.RawMessage
	BillingContact *BillingAddress
}

type googlePaymentData struct {
	PaymentMethodData *struct {
		Info *struct {
			BillingAddress *BillingAddress `json:"billingAddress"`
		} `json:"info"`
		TokenizationData *struct {
			Type  string `json:"type"`
			Token string `json:"token"`
		} `json:"tokenizationData"`
	} `json:"paymentMethodData"`
}

func (t PaymentToken) googleData() (googlePaymentData, error) {
	var pd googlePaymentData
	if err := json.Unmarshal(t.Data, &pd); err != nil {
		return pd, fmt.Errorf("%w: google pay payment data: %w", ErrDecoding, err)
	}
	if pd.PaymentMethodData == nil {
		return pd, fmt.Errorf("%w: google pay payment data has no paymentMethodData", ErrDecoding)
	}
	return pd, nil
}

// GatewayToken returns the gateway token embedded in Google Pay payment data.
// The wallet delivers it as a JSON document inside a string; it is returned
// parsed so the relay receives an object.
func (t PaymentToken) GatewayToken() (json.RawMessage, error) {
	if t.Platform != PlatformGooglePay {
		return nil, fmt.Errorf("%w: gateway token is only present in google pay data", ErrInternal)
	}
	pd, err := t.googleData()
	if err != nil {
		return nil, err
	}
	td := pd.PaymentMethodData.TokenizationData
	if td == nil || td.Token == "" {
		return nil, fmt.Errorf("%w: google pay payment data has no tokenization token", ErrDecoding)
	}
	raw := json.RawMessage(td.Token)
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: tokenization token is not JSON", ErrDecoding)
	}
	return raw, nil
}

// EncryptedCredentials returns the Apple Pay token payload.
func (t PaymentToken) EncryptedCredentials() (json.RawMessage, error) {
	if t.Platform != PlatformApplePay {
		return nil, fmt.Errorf("%w: encrypted credentials are only present in apple pay data", ErrInternal)
	}
	if len(t.Data) == 0 || !json.Valid(t.Data) {
		return nil, fmt.Errorf("%w: apple pay payment data is not JSON", ErrDecoding)
	}
	return t.Data, nil
}

// BillingAddress extracts the billing address. Google Pay requests always ask
// for one, so its absence is an ErrInternal. Apple Pay only reports it when
// the sheet collected a billing contact; a nil address is returned otherwise.
func (t PaymentToken) BillingAddress() (*BillingAddress, error) {
	switch t.Platform {
	case PlatformApplePay:
		if t.BillingContact == nil {
			return nil, nil
		}
		addr := *t.BillingContact
		return &addr, nil
	case PlatformGooglePay:
		pd, err := t.googleData()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternal, err)
		}
		info := pd.PaymentMethodData.Info
		if info == nil || info.BillingAddress == nil {
			return nil, fmt.Errorf("%w: billing address missing from google pay payment data", ErrInternal)
		}
		return info.BillingAddress, nil
	default:
		return nil, fmt.Errorf("%w: unknown platform %q", ErrInternal, t.Platform)
	}
}
