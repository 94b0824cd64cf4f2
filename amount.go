package evpay

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// DisplayPlaces is the number of fraction digits used when an amount is shown on a payment sheet.
const DisplayPlaces = 2

var decimalPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// Amount is an exact base-10 monetary value. It can only be built from text,
// so no binary floating point value ever enters a transaction.
type Amount struct {
	d decimal.Decimal
}

// NewAmount parses a plain decimal string such as "12", "12.5" or "-0.99".
// Exponents, separators and whitespace are rejected.
func NewAmount(s string) (Amount, error) {
	if !decimalPattern.MatchString(s) {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q: %w", ErrInvalidAmount, s, err)
	}
	return Amount{d: d}, nil
}

// MustAmount is like NewAmount but panics on invalid input.
func MustAmount(s string) Amount {
	a, err := NewAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.d.Add(b.d)}
}

// IsZero reports whether the amount equals zero.
func (a Amount) IsZero() bool {
	return a.d.IsZero()
}

// Equal compares values, ignoring representation ("1.0" equals "1").
func (a Amount) Equal(b Amount) bool {
	return a.d.Equal(b.d)
}

// String returns the canonical decimal representation.
func (a Amount) String() string {
	return a.d.String()
}

// Display returns the amount rounded to DisplayPlaces fraction digits.
func (a Amount) Display() string {
	return a.d.StringFixed(DisplayPlaces)
}

// MarshalJSON encodes the exact value as a JSON string. Wallet payloads
// round with Display instead.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts only JSON strings, never JSON numbers.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: amount must be a JSON string", ErrInvalidAmount)
	}
	parsed, err := NewAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// SummaryItem is a labelled amount shown on the payment sheet.
type SummaryItem struct {
	Label  string `json:"label" validate:"required"`
	Amount Amount `json:"amount"`
}

// NewSummaryItem builds a SummaryItem from a label and a decimal string.
func NewSummaryItem(label, amount string) (SummaryItem, error) {
	a, err := NewAmount(amount)
	if err != nil {
		return SummaryItem{}, err
	}
	return SummaryItem{Label: label, Amount: a}, nil
}

// SumItems adds the amounts of items using decimal arithmetic.
func SumItems(items []SummaryItem) Amount {
	total := Amount{d: decimal.Zero}
	for _, item := range items {
		total = total.Add(item.Amount)
	}
	return total
}

// ShippingMethod is a selectable delivery option on a one-off payment.
type ShippingMethod struct {
	Identifier string `json:"identifier" validate:"required"`
	Label      string `json:"label" validate:"required"`
	Detail     string `json:"detail,omitempty"`
	Amount     Amount `json:"amount"`
}

func cloneItems(items []SummaryItem) []SummaryItem {
	if items == nil {
		return nil
	}
	out := make([]SummaryItem, len(items))
	copy(out, items)
	return out
}
