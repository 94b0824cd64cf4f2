package evpay

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets the config variables for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvAppID, EnvMerchantID, EnvMerchantName, EnvEnvironment,
		EnvBaseURL, EnvRequestTimeout, EnvSupportedNetworks,
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"valid environment", Config{AppID: "a", MerchantID: "m", Environment: EnvironmentTest}, nil},
		{"valid base url", Config{AppID: "a", MerchantID: "m", BaseURL: "http://localhost:3000"}, nil},
		{"missing app id", Config{MerchantID: "m", Environment: EnvironmentTest}, ErrMissingConfig},
		{"missing merchant id", Config{AppID: "a", Environment: EnvironmentTest}, ErrMissingConfig},
		{"unknown environment", Config{AppID: "a", MerchantID: "m", Environment: "staging"}, ErrMissingConfig},
		{"bad base url", Config{AppID: "a", MerchantID: "m", BaseURL: "::nope"}, ErrMissingConfig},
		{"no target", Config{AppID: "a", MerchantID: "m"}, ErrMissingEnvironment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, ErrCodeDeveloperError, CodeOf(err))
		})
	}
}

func TestRelayBaseURL(t *testing.T) {
	url, err := Config{Environment: EnvironmentProduction}.RelayBaseURL()
	require.NoError(t, err)
	assert.Equal(t, BaseURLProduction, url)

	url, err = Config{Environment: EnvironmentProduction, BaseURL: "http://localhost:8080//"}.RelayBaseURL()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", url)

	_, err = Config{}.RelayBaseURL()
	assert.ErrorIs(t, err, ErrMissingEnvironment)
}

func TestMerchantDefaults(t *testing.T) {
	cfg := Config{AppID: "a", MerchantID: "merchant_1", Environment: EnvironmentTest}
	m := cfg.WithMerchantName("Shop").Merchant()

	assert.Equal(t, "merchant_1", m.MerchantID)
	assert.Equal(t, "Shop", m.MerchantName)
	assert.Equal(t, GatewayID, m.Gateway)
	assert.Equal(t, AllCardNetworks, m.Networks)
	assert.Equal(t, DefaultAuthMethods, m.AuthMethods)
	assert.Equal(t, []MerchantCapability{Capability3DS}, m.Capabilities)
	assert.Empty(t, cfg.MerchantName, "WithMerchantName must not modify the receiver")

	cfg.SupportedNetworks = []CardNetwork{NetworkVisa}
	assert.Equal(t, []CardNetwork{NetworkVisa}, cfg.Merchant().Networks)

	assert.Equal(t, DefaultRequestTimeout, cfg.Timeout())
	cfg.RequestTimeout = 5 * time.Second
	assert.Equal(t, 5*time.Second, cfg.Timeout())
}

func TestLoadConfigFromDotenv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"EVPAY_APP_ID=app_from_file\n"+
			"EVPAY_MERCHANT_ID=merchant_from_file\n"+
			"EVPAY_MERCHANT_NAME=File Shop\n"+
			"EVPAY_ENVIRONMENT=Production\n"+
			"EVPAY_REQUEST_TIMEOUT=10s\n"+
			"EVPAY_SUPPORTED_NETWORKS=visa, mastercard\n",
	), 0o600))

	// Process environment wins over the file.
	t.Setenv(EnvMerchantName, "Env Shop")

	cfg, err := LoadConfig(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "app_from_file", cfg.AppID)
	assert.Equal(t, "merchant_from_file", cfg.MerchantID)
	assert.Equal(t, "Env Shop", cfg.MerchantName)
	assert.Equal(t, EnvironmentProduction, cfg.Environment)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []CardNetwork{NetworkVisa, NetworkMastercard}, cfg.SupportedNetworks)
}

func TestLoadConfigErrors(t *testing.T) {
	clearEnv(t)
	_, err := LoadConfig()
	assert.ErrorIs(t, err, ErrMissingConfig)

	t.Setenv(EnvAppID, "a")
	t.Setenv(EnvMerchantID, "m")
	_, err = LoadConfig()
	assert.ErrorIs(t, err, ErrMissingEnvironment)

	t.Setenv(EnvBaseURL, "http://localhost:3000")
	t.Setenv(EnvRequestTimeout, "soon")
	_, err = LoadConfig()
	assert.ErrorIs(t, err, ErrMissingConfig)
}
