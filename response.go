package evpay

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ResponseKind discriminates CredentialResponse variants.
type ResponseKind string

const (
	KindNetworkToken ResponseKind = "network_token"
	KindCard         ResponseKind = "card"
)

// CredentialResponse is the relay's decoded answer to a submitted wallet token.
// It is implemented by *NetworkTokenResponse and *CardResponse.
type CredentialResponse interface {
	Kind() ResponseKind
	Billing() *BillingAddress
	// WithBilling returns a copy enriched with the billing address taken from
	// the original wallet token.
	WithBilling(addr *BillingAddress) CredentialResponse

	isCredentialResponse()
}

// Card holds card metadata returned alongside either response variant.
type Card struct {
	Brand    string `json:"brand,omitempty"`
	Funding  string `json:"funding,omitempty"`
	Segment  string `json:"segment,omitempty"`
	Country  string `json:"country,omitempty"`
	Currency string `json:"currency,omitempty"`
	Issuer   string `json:"issuer,omitempty"`
}

// Expiry is a card or token expiry. The relay emits month and year either as
// JSON numbers (Google Pay) or zero-padded strings (Apple Pay); both decode
// into their textual form.
type Expiry struct {
	Month string `json:"month"`
	Year  string `json:"year"`
}

func (e *Expiry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Month json.RawMessage `json:"month"`
		Year  json.RawMessage `json:"year"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	month, err := flexibleString(raw.Month)
	if err != nil {
		return fmt.Errorf("expiry month: %w", err)
	}
	year, err := flexibleString(raw.Year)
	if err != nil {
		return fmt.Errorf("expiry year: %w", err)
	}
	e.Month, e.Year = month, year
	return nil
}

func flexibleString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("expected string or number, got %s", raw)
	}
	return n.String(), nil
}

// NetworkToken is a device or network token (DPAN).
type NetworkToken struct {
	Number               string `json:"number"`
	Expiry               Expiry `json:"expiry"`
	RawExpiry            string `json:"rawExpiry,omitempty"`
	TokenServiceProvider string `json:"tokenServiceProvider,omitempty"`
}

// NetworkTokenResponse is returned when the wallet produced a network token
// with a cryptogram.
type NetworkTokenResponse struct {
	Card                         Card            `json:"card"`
	NetworkToken                 *NetworkToken   `json:"networkToken,omitempty"`
	Cryptogram                   string          `json:"cryptogram"`
	ECI                          string          `json:"eci,omitempty"`
	PaymentDataType              string          `json:"paymentDataType,omitempty"`
	DeviceManufacturerIdentifier string          `json:"deviceManufacturerIdentifier,omitempty"`
	BillingAddress               *BillingAddress `json:"billingAddress,omitempty"`
}

// FPANCard is a funding card number with its metadata.
type FPANCard struct {
	Number string `json:"number"`
	Expiry Expiry `json:"expiry"`
	Card
}

// CardResponse is returned when the wallet released the funding PAN.
type CardResponse struct {
	Card           FPANCard        `json:"card"`
	BillingAddress *BillingAddress `json:"billingAddress,omitempty"`
}

func (r *NetworkTokenResponse) Kind() ResponseKind       { return KindNetworkToken }
func (r *NetworkTokenResponse) Billing() *BillingAddress { return r.BillingAddress }
func (r *NetworkTokenResponse) isCredentialResponse()    {}

func (r *NetworkTokenResponse) WithBilling(addr *BillingAddress) CredentialResponse {
	c := *r
	c.BillingAddress = addr
	return &c
}

// MarshalJSON adds the "type" discriminator.
func (r *NetworkTokenResponse) MarshalJSON() ([]byte, error) {
	type alias NetworkTokenResponse
	return json.Marshal(struct {
		Type ResponseKind `json:"type"`
		*alias
	}{KindNetworkToken, (*alias)(r)})
}

func (r *CardResponse) Kind() ResponseKind       { return KindCard }
func (r *CardResponse) Billing() *BillingAddress { return r.BillingAddress }
func (r *CardResponse) isCredentialResponse()    {}

func (r *CardResponse) WithBilling(addr *BillingAddress) CredentialResponse {
	c := *r
	c.BillingAddress = addr
	return &c
}

// MarshalJSON adds the "type" discriminator.
func (r *CardResponse) MarshalJSON() ([]byte, error) {
	type alias CardResponse
	return json.Marshal(struct {
		Type ResponseKind `json:"type"`
		*alias
	}{KindCard, (*alias)(r)})
}

// DecodeCredentialResponse decodes a relay response body.
//
// An explicit "type" field selects the variant. Without one, a non-empty
// cryptogram means a network token and a card number without a cryptogram
// means an FPAN card. Anything else fails with ErrDecoding.
func DecodeCredentialResponse(data []byte) (CredentialResponse, error) {
	var env struct {
		Type       ResponseKind    `json:"type"`
		Card       json.RawMessage `json:"card"`
		Token      json.RawMessage `json:"token"`
		Cryptogram string          `json:"cryptogram"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecoding, err)
	}

	kind := env.Type
	if kind == "" {
		switch {
		case env.Cryptogram != "":
			kind = KindNetworkToken
		case hasCardNumber(env.Card):
			kind = KindCard
		default:
			return nil, fmt.Errorf("%w: response matches neither network token nor card shape", ErrDecoding)
		}
	}

	switch kind {
	case KindNetworkToken:
		return decodeNetworkToken(data, env.Token)
	case KindCard:
		return decodeCard(data)
	default:
		return nil, fmt.Errorf("%w: unknown response type %q", ErrDecoding, kind)
	}
}

func decodeNetworkToken(data, token json.RawMessage) (CredentialResponse, error) {
	var r NetworkTokenResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: network token response: %w", ErrDecoding, err)
	}
	if r.Cryptogram == "" {
		return nil, fmt.Errorf("%w: network token response without cryptogram", ErrDecoding)
	}
	// Google Pay responses carry the token under "token".
	if r.NetworkToken == nil && len(token) > 0 && !bytes.Equal(token, []byte("null")) {
		var t NetworkToken
		if err := json.Unmarshal(token, &t); err != nil {
			return nil, fmt.Errorf("%w: network token: %w", ErrDecoding, err)
		}
		r.NetworkToken = &t
	}
	return &r, nil
}

func decodeCard(data []byte) (CredentialResponse, error) {
	var r CardResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: card response: %w", ErrDecoding, err)
	}
	if r.Card.Number == "" {
		return nil, fmt.Errorf("%w: card response without card number", ErrDecoding)
	}
	return &r, nil
}

func hasCardNumber(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var probe struct {
		Number string `json:"number"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return probe.Number != ""
}
