package evpay

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Platform identifies the OS wallet a request targets.
type Platform string

const (
	PlatformApplePay  Platform = "apple"
	PlatformGooglePay Platform = "google"
)

// Environment selects the relay deployment.
type Environment string

const (
	EnvironmentTest       Environment = "test"
	EnvironmentProduction Environment = "production"
)

// Relay base URLs per environment.
const (
	BaseURLProduction = "https://api.evervault.com"
	BaseURLTest       = "https://api.evervault.io"
)

// GatewayID is the tokenization gateway declared to the wallet.
const GatewayID = "evervault"

// DefaultRequestTimeout bounds a single relay HTTP call.
const DefaultRequestTimeout = 30 * time.Second

// CardNetwork is a card scheme the merchant accepts.
type CardNetwork string

const (
	NetworkAmex       CardNetwork = "AMEX"
	NetworkDiscover   CardNetwork = "DISCOVER"
	NetworkInterac    CardNetwork = "INTERAC"
	NetworkJCB        CardNetwork = "JCB"
	NetworkMastercard CardNetwork = "MASTERCARD"
	NetworkVisa       CardNetwork = "VISA"
)

// AllCardNetworks lists every network the SDK knows about.
var AllCardNetworks = []CardNetwork{
	NetworkAmex, NetworkDiscover, NetworkInterac, NetworkJCB, NetworkMastercard, NetworkVisa,
}

// CardAuthMethod is a Google Pay card authentication method.
type CardAuthMethod string

const (
	AuthPANOnly       CardAuthMethod = "PAN_ONLY"
	AuthCryptogram3DS CardAuthMethod = "CRYPTOGRAM_3DS"
)

// DefaultAuthMethods are used when Config.AuthMethods is empty.
var DefaultAuthMethods = []CardAuthMethod{AuthPANOnly, AuthCryptogram3DS}

// MerchantCapability is an Apple Pay merchant capability.
type MerchantCapability string

const (
	Capability3DS    MerchantCapability = "supports3DS"
	CapabilityEMV    MerchantCapability = "supportsEMV"
	CapabilityCredit MerchantCapability = "supportsCredit"
	CapabilityDebit  MerchantCapability = "supportsDebit"
)

// Config configures the relay client and payment flow.
//
// There is deliberately no default environment: callers choose test or
// production, or point BaseURL somewhere explicit.
type Config struct {
	// AppID identifies the application to the relay.
	AppID string `validate:"required"`

	// MerchantID is the merchant identifier registered with the relay.
	MerchantID string `validate:"required"`

	// MerchantName is shown on the sheet. When empty it is looked up from the relay.
	MerchantName string

	// Environment selects a relay deployment.
	Environment Environment `validate:"omitempty,oneof=test production"`

	// BaseURL overrides Environment when set.
	BaseURL string `validate:"omitempty,url"`

	// SupportedNetworks defaults to AllCardNetworks.
	SupportedNetworks []CardNetwork

	// AuthMethods defaults to DefaultAuthMethods.
	AuthMethods []CardAuthMethod

	// MerchantCapabilities defaults to supports3DS.
	MerchantCapabilities []MerchantCapability

	// RequestTimeout bounds each relay call (optional, defaults to 30s).
	RequestTimeout time.Duration `validate:"gte=0"`
}

// Validate checks that required fields are set and that a relay target was chosen.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q", ErrMissingConfig, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %w", ErrMissingConfig, err)
	}
	if c.Environment == "" && c.BaseURL == "" {
		return ErrMissingEnvironment
	}
	return nil
}

// RelayBaseURL resolves the relay base URL without any implicit fallback.
func (c Config) RelayBaseURL() (string, error) {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/"), nil
	}
	switch c.Environment {
	case EnvironmentProduction:
		return BaseURLProduction, nil
	case EnvironmentTest:
		return BaseURLTest, nil
	default:
		return "", ErrMissingEnvironment
	}
}

// Timeout returns RequestTimeout or the default.
func (c Config) Timeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return DefaultRequestTimeout
	}
	return c.RequestTimeout
}

// WithMerchantName returns a copy of the config with the display name set.
func (c Config) WithMerchantName(name string) Config {
	c.MerchantName = name
	return c
}

// Merchant derives the translator configuration.
func (c Config) Merchant() MerchantConfig {
	m := MerchantConfig{
		MerchantID:   c.MerchantID,
		MerchantName: c.MerchantName,
		Gateway:      GatewayID,
		Networks:     append([]CardNetwork(nil), c.SupportedNetworks...),
		AuthMethods:  append([]CardAuthMethod(nil), c.AuthMethods...),
		Capabilities: append([]MerchantCapability(nil), c.MerchantCapabilities...),
	}
	if len(m.Networks) == 0 {
		m.Networks = append([]CardNetwork(nil), AllCardNetworks...)
	}
	if len(m.AuthMethods) == 0 {
		m.AuthMethods = append([]CardAuthMethod(nil), DefaultAuthMethods...)
	}
	if len(m.Capabilities) == 0 {
		m.Capabilities = []MerchantCapability{Capability3DS}
	}
	return m
}

// MerchantConfig is everything the wire translator needs besides the transaction.
type MerchantConfig struct {
	MerchantID   string
	MerchantName string
	Gateway      string
	Networks     []CardNetwork
	AuthMethods  []CardAuthMethod
	Capabilities []MerchantCapability
}

// Environment variables read by LoadConfig.
const (
	EnvAppID             = "EVPAY_APP_ID"
	EnvMerchantID        = "EVPAY_MERCHANT_ID"
	EnvMerchantName      = "EVPAY_MERCHANT_NAME"
	EnvEnvironment       = "EVPAY_ENVIRONMENT"
	EnvBaseURL           = "EVPAY_BASE_URL"
	EnvRequestTimeout    = "EVPAY_REQUEST_TIMEOUT"
	EnvSupportedNetworks = "EVPAY_SUPPORTED_NETWORKS"
)

// LoadConfig loads dotenv files (missing files are ignored) into the process
// environment and builds a validated Config from it. Variables already set in
// the environment take precedence over file values.
func LoadConfig(files ...string) (Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := Config{
		AppID:        os.Getenv(EnvAppID),
		MerchantID:   os.Getenv(EnvMerchantID),
		MerchantName: os.Getenv(EnvMerchantName),
		Environment:  Environment(strings.ToLower(os.Getenv(EnvEnvironment))),
		BaseURL:      os.Getenv(EnvBaseURL),
	}

	if raw := os.Getenv(EnvRequestTimeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %w", ErrMissingConfig, EnvRequestTimeout, err)
		}
		cfg.RequestTimeout = d
	}

	if raw := os.Getenv(EnvSupportedNetworks); raw != "" {
		for _, n := range strings.Split(raw, ",") {
			if n = strings.TrimSpace(n); n != "" {
				cfg.SupportedNetworks = append(cfg.SupportedNetworks, CardNetwork(strings.ToUpper(n)))
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
