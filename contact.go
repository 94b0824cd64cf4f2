package evpay

// Contact is the shipping contact selected on the sheet. Wallets redact it
// until authorization, so most fields may be empty during updates.
type Contact struct {
	Name          string          `json:"name,omitempty"`
	EmailAddress  string          `json:"emailAddress,omitempty"`
	PhoneNumber   string          `json:"phoneNumber,omitempty"`
	PostalAddress *BillingAddress `json:"postalAddress,omitempty"`
}

// PaymentMethodInfo describes the card selected on the sheet.
type PaymentMethodInfo struct {
	DisplayName string      `json:"displayName,omitempty"`
	Network     CardNetwork `json:"network,omitempty"`
	// Type is "credit", "debit", "prepaid" or "store" when the wallet knows it.
	Type string `json:"type,omitempty"`
}
