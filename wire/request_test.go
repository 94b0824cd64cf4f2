package wire

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	evpay "github.com/evervault/evpay-go"
)

var amountEqual = cmp.Comparer(func(a, b evpay.Amount) bool { return a.Equal(b) })

func testMerchant() evpay.MerchantConfig {
	return evpay.Config{
		AppID:        "app_test",
		MerchantID:   "merchant_123",
		MerchantName: "Test Shop",
		Environment:  evpay.EnvironmentTest,
	}.Merchant()
}

func item(label, amount string) evpay.SummaryItem {
	return evpay.SummaryItem{Label: label, Amount: evpay.MustAmount(amount)}
}

func oneOff(t *testing.T, items ...evpay.SummaryItem) *evpay.OneOffPayment {
	t.Helper()
	tx, err := evpay.NewOneOffPayment(evpay.OneOffPayment{
		Country:   "GB",
		Currency:  "GBP",
		LineItems: items,
	})
	if err != nil {
		t.Fatalf("NewOneOffPayment: %v", err)
	}
	return tx
}

func recurring(t *testing.T, withTrial bool) *evpay.RecurringPayment {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := evpay.RecurringPayment{
		Country:     "US",
		Currency:    "USD",
		Description: "Pro plan",
		RegularBilling: evpay.RecurringItem{
			SummaryItem:  item("Monthly", "9.99"),
			IntervalUnit: evpay.IntervalMonth,
			StartDate:    &start,
		},
		BillingAgreement: "Billed monthly until cancelled",
		ManagementURL:    "https://example.com/account",
	}
	if withTrial {
		p.TrialBilling = &evpay.RecurringItem{
			SummaryItem:   item("Trial", "0"),
			IntervalUnit:  evpay.IntervalWeek,
			IntervalCount: 2,
		}
	}
	tx, err := evpay.NewRecurringPayment(p)
	if err != nil {
		t.Fatalf("NewRecurringPayment: %v", err)
	}
	return tx
}

func disbursement(t *testing.T, instant bool) *evpay.Disbursement {
	t.Helper()
	fee := item("Instant transfer fee", "0.50")
	d := evpay.Disbursement{
		Country:          "US",
		Currency:         "USD",
		LineItems:        []evpay.SummaryItem{item("Winnings", "41.00")},
		DisbursementItem: item("Disbursement", "40.50"),
		InstantOutFee:    &fee,
		Capability:       evpay.CapabilityStandard,
	}
	if instant {
		d.Capability = evpay.CapabilityInstantFundsOut
	}
	tx, err := evpay.NewDisbursement(d)
	if err != nil {
		t.Fatalf("NewDisbursement: %v", err)
	}
	return tx
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name string
		tx   func(t *testing.T) evpay.Transaction
		want []evpay.SummaryItem
	}{
		{
			name: "one-off appends total",
			tx: func(t *testing.T) evpay.Transaction {
				return oneOff(t, item("Item A", "10.10"), item("Item B", "0.2"))
			},
			want: []evpay.SummaryItem{item("Item A", "10.10"), item("Item B", "0.2"), item("Total", "10.30")},
		},
		{
			name: "recurring appends regular billing",
			tx:   func(t *testing.T) evpay.Transaction { return recurring(t, false) },
			want: []evpay.SummaryItem{item("Monthly", "9.99")},
		},
		{
			name: "recurring appends trial after regular billing",
			tx:   func(t *testing.T) evpay.Transaction { return recurring(t, true) },
			want: []evpay.SummaryItem{item("Monthly", "9.99"), item("Trial", "0")},
		},
		{
			name: "standard disbursement skips fee",
			tx:   func(t *testing.T) evpay.Transaction { return disbursement(t, false) },
			want: []evpay.SummaryItem{item("Winnings", "41.00"), item("Disbursement", "40.50")},
		},
		{
			name: "instant disbursement appends fee first",
			tx:   func(t *testing.T) evpay.Transaction { return disbursement(t, true) },
			want: []evpay.SummaryItem{
				item("Winnings", "41.00"),
				item("Instant transfer fee", "0.50"),
				item("Disbursement", "40.50"),
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Summary(tc.tx(t))
			if diff := cmp.Diff(tc.want, got, amountEqual); diff != "" {
				t.Errorf("Summary mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildOneOffTotal(t *testing.T) {
	tx := oneOff(t, item("Item A", "50.00"))

	for _, platform := range []evpay.Platform{evpay.PlatformApplePay, evpay.PlatformGooglePay} {
		req, err := Build(platform, tx, testMerchant())
		if err != nil {
			t.Fatalf("%s: Build: %v", platform, err)
		}
		total := req.Total()
		if total.Label != "Total" {
			t.Errorf("%s: expected total label Total, got %q", platform, total.Label)
		}
		if total.Amount.Display() != "50.00" {
			t.Errorf("%s: expected total 50.00, got %s", platform, total.Amount.Display())
		}
	}
}

func TestBuildTotalIsDecimalSum(t *testing.T) {
	// 0.1 + 0.2 is the classic binary float failure.
	tx := oneOff(t, item("A", "0.1"), item("B", "0.2"), item("C", "19.999"))

	req, err := BuildGooglePay(tx, testMerchant())
	if err != nil {
		t.Fatalf("BuildGooglePay: %v", err)
	}
	if got := req.Google.TransactionInfo.TotalPrice; got != "20.30" {
		t.Errorf("expected totalPrice 20.30, got %s", got)
	}
	if !req.Total().Amount.Equal(evpay.MustAmount("20.299")) {
		t.Errorf("expected exact total 20.299, got %s", req.Total().Amount)
	}
}

func TestBuildIsPure(t *testing.T) {
	txs := map[string]evpay.Transaction{
		"one-off":      oneOff(t, item("Item A", "50.00"), item("Item B", "1.25")),
		"recurring":    recurring(t, true),
		"disbursement": disbursement(t, true),
	}
	for name, tx := range txs {
		before := tx.Clone()
		first, err := BuildApplePay(tx, testMerchant())
		if err != nil {
			t.Fatalf("%s: BuildApplePay: %v", name, err)
		}
		second, err := BuildApplePay(tx, testMerchant())
		if err != nil {
			t.Fatalf("%s: BuildApplePay: %v", name, err)
		}
		if diff := cmp.Diff(first, second, amountEqual); diff != "" {
			t.Errorf("%s: repeated builds differ (-first +second):\n%s", name, diff)
		}
		if diff := cmp.Diff(before, tx, amountEqual); diff != "" {
			t.Errorf("%s: Build mutated its input (-before +after):\n%s", name, diff)
		}
	}
}

func TestBuildGooglePayRejectsDisbursement(t *testing.T) {
	_, err := Build(evpay.PlatformGooglePay, disbursement(t, false), testMerchant())
	if !errors.Is(err, evpay.ErrUnsupportedPlatformVersion) {
		t.Fatalf("expected ErrUnsupportedPlatformVersion, got %v", err)
	}
}

func TestBuildRequiresMerchantID(t *testing.T) {
	m := testMerchant()
	m.MerchantID = ""
	_, err := Build(evpay.PlatformApplePay, oneOff(t, item("A", "1")), m)
	if !errors.Is(err, evpay.ErrMissingConfig) {
		t.Fatalf("expected ErrMissingConfig, got %v", err)
	}
}

func TestShippingMethodsNeedShippingAddress(t *testing.T) {
	tx, err := evpay.NewOneOffPayment(evpay.OneOffPayment{
		Country:   "GB",
		Currency:  "GBP",
		LineItems: []evpay.SummaryItem{item("Item A", "50.00")},
		ShippingMethods: []evpay.ShippingMethod{
			{Identifier: "std", Label: "Standard", Amount: evpay.MustAmount("4.99")},
		},
	})
	if err != nil {
		t.Fatalf("NewOneOffPayment: %v", err)
	}

	greq, err := BuildGooglePay(tx, testMerchant())
	if err != nil {
		t.Fatalf("BuildGooglePay: %v", err)
	}
	g := greq.Google
	if g.ShippingAddressRequired || g.ShippingOptionRequired || g.ShippingOptionParameters != nil {
		t.Errorf("expected no shipping on the google request, got %+v", g)
	}
	wantIntents := []string{IntentPaymentAuthorization, IntentPaymentMethod}
	if diff := cmp.Diff(wantIntents, g.CallbackIntents); diff != "" {
		t.Errorf("intents mismatch (-want +got):\n%s", diff)
	}

	areq, err := BuildApplePay(tx, testMerchant())
	if err != nil {
		t.Fatalf("BuildApplePay: %v", err)
	}
	if len(areq.Apple.ShippingMethods) != 0 || areq.Apple.ShippingType != "" {
		t.Errorf("expected no shipping on the apple request, got %+v", areq.Apple)
	}
}

func TestBuildGooglePayShape(t *testing.T) {
	tx, err := evpay.NewOneOffPayment(evpay.OneOffPayment{
		Country:               "gb",
		Currency:              "gbp",
		LineItems:             []evpay.SummaryItem{item("Item A", "50.00")},
		ShippingRequired:      true,
		RequiredContactFields: []evpay.ContactField{evpay.ContactEmailAddress, evpay.ContactPhoneNumber},
		ShippingMethods: []evpay.ShippingMethod{
			{Identifier: "std", Label: "Standard", Detail: "3-5 days", Amount: evpay.MustAmount("4.99")},
		},
	})
	if err != nil {
		t.Fatalf("NewOneOffPayment: %v", err)
	}
	m := testMerchant()
	m.Networks = []evpay.CardNetwork{evpay.NetworkVisa, evpay.NetworkMastercard}

	req, err := BuildGooglePay(tx, m)
	if err != nil {
		t.Fatalf("BuildGooglePay: %v", err)
	}

	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	method := got["allowedPaymentMethods"].([]interface{})[0].(map[string]interface{})
	wantMethod := map[string]interface{}{
		"type": "CARD",
		"parameters": map[string]interface{}{
			"allowedAuthMethods":       []interface{}{"PAN_ONLY", "CRYPTOGRAM_3DS"},
			"allowedCardNetworks":      []interface{}{"VISA", "MASTERCARD"},
			"billingAddressRequired":   true,
			"billingAddressParameters": map[string]interface{}{"format": "FULL"},
		},
		"tokenizationSpecification": map[string]interface{}{
			"type": "PAYMENT_GATEWAY",
			"parameters": map[string]interface{}{
				"gateway":           "evervault",
				"gatewayMerchantId": "merchant_123",
			},
		},
	}
	if diff := cmp.Diff(wantMethod, method); diff != "" {
		t.Errorf("payment method mismatch (-want +got):\n%s", diff)
	}

	wantInfo := map[string]interface{}{
		"displayItems": []interface{}{
			map[string]interface{}{"label": "Item A", "type": "LINE_ITEM", "price": "50.00", "status": "FINAL"},
		},
		"totalPriceLabel":  "Total",
		"totalPrice":       "50.00",
		"totalPriceStatus": "FINAL",
		"countryCode":      "GB",
		"currencyCode":     "GBP",
	}
	if diff := cmp.Diff(wantInfo, got["transactionInfo"]); diff != "" {
		t.Errorf("transactionInfo mismatch (-want +got):\n%s", diff)
	}

	if got["merchantInfo"].(map[string]interface{})["merchantName"] != "Test Shop" {
		t.Errorf("expected merchant name Test Shop, got %v", got["merchantInfo"])
	}
	if got["emailRequired"] != true || got["shippingAddressRequired"] != true || got["shippingOptionRequired"] != true {
		t.Errorf("expected email, shipping address and shipping option to be required: %s", raw)
	}
	wantIntents := []string{IntentPaymentAuthorization, IntentPaymentMethod, IntentShippingAddress, IntentShippingOption}
	if diff := cmp.Diff(wantIntents, req.Google.CallbackIntents); diff != "" {
		t.Errorf("callback intents mismatch (-want +got):\n%s", diff)
	}
	if opts := req.Google.ShippingOptionParameters; opts == nil || opts.DefaultSelectedOptionID != "std" {
		t.Errorf("expected default shipping option std, got %+v", opts)
	}
}

func TestBuildApplePayRecurring(t *testing.T) {
	req, err := BuildApplePay(recurring(t, true), testMerchant())
	if err != nil {
		t.Fatalf("BuildApplePay: %v", err)
	}
	apple := req.Apple
	if apple == nil || req.Google != nil {
		t.Fatalf("expected only an apple payload, got %+v", req)
	}

	rr := apple.RecurringPaymentRequest
	if rr == nil {
		t.Fatal("expected recurring payment request")
	}
	if rr.PaymentDescription != "Pro plan" || rr.ManagementURL != "https://example.com/account" {
		t.Errorf("unexpected recurring descriptor: %+v", rr)
	}
	if rr.BillingAgreement != "Billed monthly until cancelled" {
		t.Errorf("unexpected billing agreement %q", rr.BillingAgreement)
	}
	wantRegular := ApplePayItem{
		Label:                         "Monthly",
		Amount:                        "9.99",
		Type:                          "final",
		PaymentTiming:                 PaymentTimingRecurring,
		RecurringPaymentIntervalUnit:  "month",
		RecurringPaymentIntervalCount: 1,
		RecurringPaymentStartDate:     "2026-01-01T00:00:00Z",
	}
	if diff := cmp.Diff(wantRegular, rr.RegularBilling); diff != "" {
		t.Errorf("regular billing mismatch (-want +got):\n%s", diff)
	}
	if rr.TrialBilling == nil || rr.TrialBilling.RecurringPaymentIntervalCount != 2 {
		t.Errorf("expected two-week trial, got %+v", rr.TrialBilling)
	}

	if n := len(apple.PaymentSummaryItems); n != 2 {
		t.Fatalf("expected 2 summary items, got %d", n)
	}
	if apple.PaymentSummaryItems[1].Label != "Trial" {
		t.Errorf("expected trial to be the last summary item, got %q", apple.PaymentSummaryItems[1].Label)
	}
}

func TestBuildApplePayDisbursement(t *testing.T) {
	req, err := BuildApplePay(disbursement(t, true), testMerchant())
	if err != nil {
		t.Fatalf("BuildApplePay: %v", err)
	}
	items := req.Apple.PaymentSummaryItems
	if len(items) != 3 {
		t.Fatalf("expected 3 summary items, got %d", len(items))
	}
	if !items[1].IsInstantFundsOutFee || items[1].IsDisbursement {
		t.Errorf("expected item 1 to be the instant-out fee, got %+v", items[1])
	}
	if !items[2].IsDisbursement {
		t.Errorf("expected last item to be the disbursement, got %+v", items[2])
	}
	wantCaps := []string{"supports3DS", "supportsInstantFundsOut"}
	if diff := cmp.Diff(wantCaps, req.Apple.MerchantCapabilities); diff != "" {
		t.Errorf("capabilities mismatch (-want +got):\n%s", diff)
	}
	if req.Apple.DisbursementRequest == nil {
		t.Error("expected disbursement descriptor")
	}
}

func TestBuildApplePayInstantFundsOutWithoutFee(t *testing.T) {
	tx, err := evpay.NewDisbursement(evpay.Disbursement{
		Country:          "US",
		Currency:         "USD",
		LineItems:        []evpay.SummaryItem{item("Winnings", "41.00")},
		DisbursementItem: item("Disbursement", "41.00"),
		Capability:       evpay.CapabilityInstantFundsOut,
	})
	if err != nil {
		t.Fatalf("NewDisbursement: %v", err)
	}

	req, err := BuildApplePay(tx, testMerchant())
	if err != nil {
		t.Fatalf("BuildApplePay: %v", err)
	}
	wantCaps := []string{"supports3DS", "supportsInstantFundsOut"}
	if diff := cmp.Diff(wantCaps, req.Apple.MerchantCapabilities); diff != "" {
		t.Errorf("capabilities mismatch (-want +got):\n%s", diff)
	}
	items := req.Apple.PaymentSummaryItems
	if len(items) != 2 {
		t.Fatalf("expected 2 summary items, got %d", len(items))
	}
	for _, it := range items {
		if it.IsInstantFundsOutFee {
			t.Errorf("expected no fee item, got %+v", it)
		}
	}
	if !items[1].IsDisbursement {
		t.Errorf("expected last item to be the disbursement, got %+v", items[1])
	}

	// Standard payouts never declare the capability.
	req, err = BuildApplePay(disbursement(t, false), testMerchant())
	if err != nil {
		t.Fatalf("BuildApplePay: %v", err)
	}
	if diff := cmp.Diff([]string{"supports3DS"}, req.Apple.MerchantCapabilities); diff != "" {
		t.Errorf("capabilities mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildApplePayNetworks(t *testing.T) {
	req, err := BuildApplePay(oneOff(t, item("A", "1")), testMerchant())
	if err != nil {
		t.Fatalf("BuildApplePay: %v", err)
	}
	want := []string{"amex", "discover", "interac", "jcb", "masterCard", "visa"}
	if diff := cmp.Diff(want, req.Apple.SupportedNetworks); diff != "" {
		t.Errorf("networks mismatch (-want +got):\n%s", diff)
	}
}

func TestReadinessRequest(t *testing.T) {
	m := testMerchant()
	m.Networks = []evpay.CardNetwork{evpay.NetworkVisa}
	m.AuthMethods = []evpay.CardAuthMethod{evpay.AuthCryptogram3DS}

	got := ReadinessRequest(m)
	want := IsReadyToPayRequest{
		APIVersion:      2,
		APIVersionMinor: 0,
		AllowedPaymentMethods: []PaymentMethod{{
			Type: "CARD",
			Parameters: CardParameters{
				AllowedAuthMethods:       []string{"CRYPTOGRAM_3DS"},
				AllowedCardNetworks:      []string{"VISA"},
				BillingAddressRequired:   true,
				BillingAddressParameters: &BillingAddressParameters{Format: "FULL"},
			},
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadinessRequest mismatch (-want +got):\n%s", diff)
	}
}

func TestNewUpdate(t *testing.T) {
	tx := oneOff(t, item("Item A", "50.00"))
	updated := tx.WithLineItems([]evpay.SummaryItem{item("Item A", "50.00"), item("Shipping", "4.99")})

	u := NewUpdate(evpay.PlatformGooglePay, updated)
	if got := u.Total().Amount.Display(); got != "54.99" {
		t.Errorf("expected updated total 54.99, got %s", got)
	}
	if u.Google == nil || u.Google.TotalPrice != "54.99" || len(u.Google.DisplayItems) != 2 {
		t.Errorf("unexpected google transaction info: %+v", u.Google)
	}
	if len(tx.LineItems) != 1 {
		t.Errorf("WithLineItems mutated the original transaction: %+v", tx.LineItems)
	}

	if apple := NewUpdate(evpay.PlatformApplePay, updated); apple.Google != nil {
		t.Error("apple updates should not carry google transaction info")
	}
}
