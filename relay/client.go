// Package relay talks to the credential relay: it looks up the merchant's
// display name and submits wallet tokens for decryption and re-encryption.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	evpay "github.com/evervault/evpay-go"
)

// AppIDHeader carries the application identifier on every relay request.
const AppIDHeader = "x-app-id"

// Relay endpoint paths.
const (
	MerchantPath             = "/frontend/merchants/"
	ApplePayCredentialsPath  = "/frontend/apple-pay/credentials"
	GooglePayCredentialsPath = "/frontend/google-pay/credentials"
)

// maxBodySize bounds how much of a relay response is read.
const maxBodySize = 1 << 20

// maxErrorBody bounds the response text kept on an HTTPError.
const maxErrorBody = 512

// Client is a single-shot HTTP client for the credential relay. It has no
// retry policy; callers decide whether a failure is worth repeating.
type Client struct {
	baseURL    string
	appID      string
	merchantID string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its Timeout is left as provided.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a relay client. The config must name an environment or a
// base URL explicitly.
func NewClient(cfg evpay.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	baseURL, err := cfg.RelayBaseURL()
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:    baseURL,
		appID:      cfg.AppID,
		merchantID: cfg.MerchantID,
		userAgent:  "evpay-go",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout: cfg.Timeout(),
		}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// BaseURL returns the resolved relay base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type merchantResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FetchMerchantName returns the display name registered for the merchant.
func (c *Client) FetchMerchantName(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodGet, MerchantPath+url.PathEscape(c.merchantID), nil)
	if err != nil {
		return "", err
	}

	var merchant merchantResponse
	if err := json.Unmarshal(body, &merchant); err != nil {
		return "", decodingError("failed to decode merchant response", err)
	}
	if merchant.Name == "" {
		return "", decodingError("merchant response has no name", nil)
	}
	return merchant.Name, nil
}

type applePayBody struct {
	IsNative             bool            `json:"isNative"`
	EncryptedCredentials json.RawMessage `json:"encryptedCredentials"`
}

type googlePayBody struct {
	IsNative   bool            `json:"isNative"`
	MerchantID string          `json:"merchantId"`
	Token      json.RawMessage `json:"token"`
}

// SubmitCredential forwards a wallet token to the relay and returns the
// decoded credential, enriched with the billing address taken from the token.
func (c *Client) SubmitCredential(ctx context.Context, token evpay.PaymentToken) (evpay.CredentialResponse, error) {
	var (
		path    string
		payload interface{}
	)
	switch token.Platform {
	case evpay.PlatformApplePay:
		creds, err := token.EncryptedCredentials()
		if err != nil {
			return nil, asPaymentError("invalid apple pay token", err)
		}
		path = ApplePayCredentialsPath
		payload = applePayBody{IsNative: true, EncryptedCredentials: creds}
	case evpay.PlatformGooglePay:
		gatewayToken, err := token.GatewayToken()
		if err != nil {
			return nil, asPaymentError("invalid google pay token", err)
		}
		path = GooglePayCredentialsPath
		payload = googlePayBody{IsNative: true, MerchantID: c.merchantID, Token: gatewayToken}
	default:
		return nil, evpay.NewPaymentError(evpay.ErrCodeInternalError, "unknown wallet platform",
			fmt.Errorf("%w: %q", evpay.ErrInternal, token.Platform))
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, evpay.NewPaymentError(evpay.ErrCodeInternalError, "failed to marshal credential request",
			fmt.Errorf("%w: %w", evpay.ErrInternal, err))
	}

	respBody, err := c.do(ctx, http.MethodPost, path, reqBody)
	if err != nil {
		return nil, err
	}

	resp, err := evpay.DecodeCredentialResponse(respBody)
	if err != nil {
		return nil, decodingError("failed to decode credential response", err)
	}

	billing, err := token.BillingAddress()
	if err != nil {
		return nil, evpay.NewPaymentError(evpay.ErrCodeInternalError, "failed to extract billing address", err)
	}
	if billing != nil {
		resp = resp.WithBilling(billing)
	}

	c.logger.DebugContext(ctx, "credential relayed",
		"platform", token.Platform,
		"response_kind", resp.Kind(),
	)
	return resp, nil
}

// do performs one request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, evpay.NewPaymentError(evpay.ErrCodeInternalError, "failed to create relay request",
			fmt.Errorf("%w: %w", evpay.ErrInternal, err))
	}
	req.Header.Set(AppIDHeader, c.appID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "relay request failed", "method", method, "path", path, "error", err)
		return nil, evpay.NewPaymentError(evpay.ErrCodeNetworkError, "relay request failed",
			fmt.Errorf("%w: %w", evpay.ErrNetwork, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, evpay.NewPaymentError(evpay.ErrCodeNetworkError, "failed to read relay response",
			fmt.Errorf("%w: %w", evpay.ErrNetwork, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := string(respBody)
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		c.logger.WarnContext(ctx, "relay returned error status", "method", method, "path", path, "status", resp.StatusCode)
		return nil, evpay.NewPaymentError(evpay.ErrCodeHTTPError,
			fmt.Sprintf("relay returned %d", resp.StatusCode),
			&evpay.HTTPError{StatusCode: resp.StatusCode, Body: text},
		).WithDetails("status", resp.StatusCode)
	}

	return respBody, nil
}

func decodingError(message string, err error) *evpay.PaymentError {
	if err == nil {
		err = evpay.ErrDecoding
	} else if !errors.Is(err, evpay.ErrDecoding) {
		err = fmt.Errorf("%w: %w", evpay.ErrDecoding, err)
	}
	return evpay.NewPaymentError(evpay.ErrCodeDecodingError, message, err)
}

// asPaymentError wraps a token error, keeping the code its sentinel implies.
func asPaymentError(message string, err error) *evpay.PaymentError {
	return evpay.NewPaymentError(evpay.CodeOf(err), message, err)
}
