package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	evpay "github.com/evervault/evpay-go"
)

func TestBuiltRequestsPassSchema(t *testing.T) {
	cases := []struct {
		name     string
		platform evpay.Platform
		tx       evpay.Transaction
	}{
		{"apple one-off", evpay.PlatformApplePay, oneOff(t, item("Item A", "50.00"))},
		{"google one-off", evpay.PlatformGooglePay, oneOff(t, item("Item A", "50.00"), item("Item B", "0.99"))},
		{"apple recurring", evpay.PlatformApplePay, recurring(t, true)},
		{"google recurring", evpay.PlatformGooglePay, recurring(t, false)},
		{"apple disbursement", evpay.PlatformApplePay, disbursement(t, true)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := Build(tc.platform, tc.tx, testMerchant())
			require.NoError(t, err)
			assert.NoError(t, req.Validate())
		})
	}
}

func TestValidateJSONReportsErrors(t *testing.T) {
	result := ValidateJSON(evpay.PlatformGooglePay, []byte(`{
		"apiVersion": 2,
		"apiVersionMinor": 0,
		"allowedPaymentMethods": [],
		"transactionInfo": {"totalPrice": "1.5", "totalPriceStatus": "FINAL", "currencyCode": "GBP", "countryCode": "GB"},
		"merchantInfo": {}
	}`))

	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestValidateJSONUnknownPlatform(t *testing.T) {
	result := ValidateJSON(evpay.Platform("samsung"), []byte(`{}`))
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "samsung")
}

func TestRequestValidateCatchesBrokenPayload(t *testing.T) {
	req, err := BuildGooglePay(oneOff(t, item("Item A", "50.00")), testMerchant())
	require.NoError(t, err)

	req.Google.AllowedPaymentMethods[0].Parameters.AllowedCardNetworks = nil
	err = req.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, evpay.ErrInvalidTransaction))
}
