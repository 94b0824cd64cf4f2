package relaytest

import (
	"encoding/json"

	evpay "github.com/evervault/evpay-go"
)

// TestBillingAddress is the billing address embedded by the token builders.
var TestBillingAddress = evpay.BillingAddress{
	Name:        "Jane Doe",
	PostalCode:  "EC1A 1BB",
	CountryCode: "GB",
	Address1:    "1 Test Street",
	Locality:    "London",
}

// GooglePayToken builds a Google Pay token shaped like the wallet's
// PaymentData, with the gateway token encoded as a JSON string. A nil
// billing address omits the info block.
func GooglePayToken(billing *evpay.BillingAddress) evpay.PaymentToken {
	gateway, _ := json.Marshal(map[string]interface{}{
		"protocolVersion": "ECv2",
		"signature":       "MEUCIQ...",
		"signedMessage":   `{"encryptedMessage":"...","ephemeralPublicKey":"...","tag":"..."}`,
	})

	method := map[string]interface{}{
		"type":        "CARD",
		"description": "Visa •••• 1234",
		"tokenizationData": map[string]interface{}{
			"type":  "PAYMENT_GATEWAY",
			"token": string(gateway),
		},
	}
	if billing != nil {
		method["info"] = map[string]interface{}{
			"cardNetwork":    "VISA",
			"cardDetails":    "1234",
			"billingAddress": billing,
		}
	}
	data, _ := json.Marshal(map[string]interface{}{
		"apiVersion":        2,
		"apiVersionMinor":   0,
		"paymentMethodData": method,
	})
	return evpay.PaymentToken{Platform: evpay.PlatformGooglePay, Data: data}
}

// ApplePayToken builds an Apple Pay token shaped like PKPaymentToken paymentData.
func ApplePayToken(billing *evpay.BillingAddress) evpay.PaymentToken {
	data, _ := json.Marshal(map[string]interface{}{
		"version":   "EC_v1",
		"data":      "3+f4oOTwPa6f1UZ6tG...",
		"signature": "MIAGCSqGSIb3DQEHAqCAMIACAQExDzAN...",
		"header": map[string]string{
			"ephemeralPublicKey": "MFkwEwYHKoZIzj0CAQYIKoZIzj0DAQcDQgAE...",
			"publicKeyHash":      "LbsUwAT6w1JV9tFXocU813TCHks+LSuFF0R/eBkrWnQ=",
			"transactionId":      "aabbccdd",
		},
	})
	return evpay.PaymentToken{Platform: evpay.PlatformApplePay, Data: data, BillingContact: billing}
}
