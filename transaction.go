package evpay

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// TransactionKind identifies the variant of a Transaction.
type TransactionKind string

const (
	KindOneOff       TransactionKind = "one_off"
	KindRecurring    TransactionKind = "recurring"
	KindDisbursement TransactionKind = "disbursement"
)

// ContactField is a piece of contact information the wallet should collect.
type ContactField string

const (
	ContactName          ContactField = "name"
	ContactEmailAddress  ContactField = "email"
	ContactPhoneNumber   ContactField = "phone"
	ContactPostalAddress ContactField = "postalAddress"
	ContactPhoneticName  ContactField = "phoneticName"
)

// IntervalUnit is the calendar unit of a recurring billing cycle.
type IntervalUnit string

const (
	IntervalDay   IntervalUnit = "day"
	IntervalWeek  IntervalUnit = "week"
	IntervalMonth IntervalUnit = "month"
	IntervalYear  IntervalUnit = "year"
)

// DisbursementCapability selects how quickly a payout reaches the cardholder.
type DisbursementCapability string

const (
	CapabilityStandard        DisbursementCapability = "standard"
	CapabilityInstantFundsOut DisbursementCapability = "instantFundsOut"
)

// Transaction is a merchant transaction in platform-agnostic form.
// It is implemented by *OneOffPayment, *RecurringPayment and *Disbursement.
type Transaction interface {
	Kind() TransactionKind
	CountryCode() string
	CurrencyCode() string
	// Items returns a copy of the caller supplied line items.
	Items() []SummaryItem
	// Clone returns a deep copy that shares no slices with the receiver.
	Clone() Transaction
	// WithLineItems returns a copy with the line items replaced. The receiver
	// is left untouched.
	WithLineItems(items []SummaryItem) Transaction
	// Validate re-checks the invariants enforced at construction.
	Validate() error

	isTransaction()
}

// OneOffPayment is a single charge.
type OneOffPayment struct {
	Country               string           `validate:"iso3166_1_alpha2"`
	Currency              string           `validate:"iso4217"`
	LineItems             []SummaryItem    `validate:"min=1,dive"`
	ShippingRequired      bool
	ShippingMethods       []ShippingMethod `validate:"dive"`
	RequiredContactFields []ContactField
	RequiredBillingFields []ContactField
}

// NewOneOffPayment validates p and returns a copy of it.
func NewOneOffPayment(p OneOffPayment) (*OneOffPayment, error) {
	p.Country = strings.ToUpper(p.Country)
	p.Currency = strings.ToUpper(p.Currency)
	out := p.Clone().(*OneOffPayment)
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *OneOffPayment) Kind() TransactionKind { return KindOneOff }
func (p *OneOffPayment) CountryCode() string { return p.Country }
func (p *OneOffPayment) CurrencyCode() string { return p.Currency }
func (p *OneOffPayment) Items() []SummaryItem { return cloneItems(p.LineItems) }
func (p *OneOffPayment) Validate() error { return validateTransaction(p) }
func (p *OneOffPayment) isTransaction() {}

func (p *OneOffPayment) WithLineItems(items []SummaryItem) Transaction {
	c := p.Clone().(*OneOffPayment)
	c.LineItems = cloneItems(items)
	return c
}

func (p *OneOffPayment) Clone() Transaction {
	c := *p
	c.LineItems = cloneItems(p.LineItems)
	if p.ShippingMethods != nil {
		c.ShippingMethods = append([]ShippingMethod(nil), p.ShippingMethods...)
	}
	c.RequiredContactFields = cloneFields(p.RequiredContactFields)
	c.RequiredBillingFields = cloneFields(p.RequiredBillingFields)
	return &c
}

// RecurringItem is a summary item billed on a fixed interval.
type RecurringItem struct {
	SummaryItem
	IntervalUnit IntervalUnit `validate:"oneof=day week month year"`
	// IntervalCount of zero means one.
	IntervalCount int `validate:"gte=0"`
	StartDate     *time.Time
	EndDate       *time.Time
}

// RecurringPayment sets up a subscription style billing agreement.
type RecurringPayment struct {
	Country              string        `validate:"iso3166_1_alpha2"`
	Currency             string        `validate:"iso4217"`
	LineItems            []SummaryItem `validate:"dive"`
	Description          string        `validate:"required"`
	RegularBilling       RecurringItem
	TrialBilling         *RecurringItem
	BillingAgreement     string
	ManagementURL        string `validate:"required,url"`
	TokenNotificationURL string `validate:"omitempty,url"`
}

// NewRecurringPayment validates p and returns a copy of it.
func NewRecurringPayment(p RecurringPayment) (*RecurringPayment, error) {
	p.Country = strings.ToUpper(p.Country)
	p.Currency = strings.ToUpper(p.Currency)
	out := p.Clone().(*RecurringPayment)
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *RecurringPayment) Kind() TransactionKind { return KindRecurring }
func (p *RecurringPayment) CountryCode() string { return p.Country }
func (p *RecurringPayment) CurrencyCode() string { return p.Currency }
func (p *RecurringPayment) Items() []SummaryItem { return cloneItems(p.LineItems) }
func (p *RecurringPayment) Validate() error { return validateTransaction(p) }
func (p *RecurringPayment) isTransaction() {}

func (p *RecurringPayment) WithLineItems(items []SummaryItem) Transaction {
	c := p.Clone().(*RecurringPayment)
	c.LineItems = cloneItems(items)
	return c
}

func (p *RecurringPayment) Clone() Transaction {
	c := *p
	c.LineItems = cloneItems(p.LineItems)
	c.RegularBilling = p.RegularBilling.clone()
	if p.TrialBilling != nil {
		trial := p.TrialBilling.clone()
		c.TrialBilling = &trial
	}
	return &c
}

func (r RecurringItem) clone() RecurringItem {
	r.StartDate = cloneTime(r.StartDate)
	r.EndDate = cloneTime(r.EndDate)
	return r
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// Disbursement is a payout to the cardholder.
type Disbursement struct {
	Country                 string        `validate:"iso3166_1_alpha2"`
	Currency                string        `validate:"iso4217"`
	LineItems               []SummaryItem `validate:"min=1,dive"`
	DisbursementItem        SummaryItem
	InstantOutFee           *SummaryItem
	RequiredRecipientFields []ContactField
	Capability              DisbursementCapability `validate:"omitempty,oneof=standard instantFundsOut"`
}

// NewDisbursement validates d and returns a copy of it.
func NewDisbursement(d Disbursement) (*Disbursement, error) {
	d.Country = strings.ToUpper(d.Country)
	d.Currency = strings.ToUpper(d.Currency)
	out := d.Clone().(*Disbursement)
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Disbursement) Kind() TransactionKind { return KindDisbursement }
func (d *Disbursement) CountryCode() string { return d.Country }
func (d *Disbursement) CurrencyCode() string { return d.Currency }
func (d *Disbursement) Items() []SummaryItem { return cloneItems(d.LineItems) }
func (d *Disbursement) Validate() error { return validateTransaction(d) }
func (d *Disbursement) isTransaction() {}

// InstantFundsOut reports whether the instant-out fee applies. The
// capability alone is still declared to the wallet when no fee is charged.
func (d *Disbursement) InstantFundsOut() bool {
	return d.Capability == CapabilityInstantFundsOut && d.InstantOutFee != nil
}

func (d *Disbursement) WithLineItems(items []SummaryItem) Transaction {
	c := d.Clone().(*Disbursement)
	c.LineItems = cloneItems(items)
	return c
}

func (d *Disbursement) Clone() Transaction {
	c := *d
	c.LineItems = cloneItems(d.LineItems)
	if d.InstantOutFee != nil {
		fee := *d.InstantOutFee
		c.InstantOutFee = &fee
	}
	c.RequiredRecipientFields = cloneFields(d.RequiredRecipientFields)
	return &c
}

// validateTransaction runs struct validation and maps the first relevant
// failure onto the transaction error taxonomy. An empty item list always
// wins over other failures.
func validateTransaction(t Transaction) error {
	err := validate.Struct(t)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidTransaction, err)
	}

	for _, fe := range verrs {
		if fe.StructField() == "LineItems" && fe.Tag() == "min" {
			return ErrEmptyTransaction
		}
	}
	for _, fe := range verrs {
		switch fe.StructField() {
		case "Country":
			return fmt.Errorf("%w: %q", ErrInvalidCountry, fe.Value())
		case "Currency":
			return fmt.Errorf("%w: %q", ErrInvalidCurrency, fe.Value())
		}
	}

	fe := verrs[0]
	return fmt.Errorf("%w: %s failed %q", ErrInvalidTransaction, fe.Namespace(), fe.Tag())
}

func cloneFields(fields []ContactField) []ContactField {
	if fields == nil {
		return nil
	}
	return append([]ContactField(nil), fields...)
}
