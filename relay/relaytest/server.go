// Package relaytest provides an in-process credential relay for tests.
package relaytest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gin-gonic/gin"

	evpay "github.com/evervault/evpay-go"
)

// Paths and header served by the fake relay.
const (
	appIDHeader              = "x-app-id"
	merchantPath             = "/frontend/merchants/"
	applePayCredentialsPath  = "/frontend/apple-pay/credentials"
	googlePayCredentialsPath = "/frontend/google-pay/credentials"
)

// Request is a request recorded by the fake relay.
type Request struct {
	Method string
	Path   string
	AppID  string
	Body   json.RawMessage
}

// Response is a canned answer to credential submissions.
type Response struct {
	Status int
	Body   []byte
}

// Server is a fake credential relay backed by gin.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	appID     string
	merchants map[string]string
	response  Response
	requests  []Request
}

// Option configures a Server.
type Option func(*Server)

// WithAppID makes the server reject requests whose x-app-id differs.
func WithAppID(appID string) Option {
	return func(s *Server) {
		s.appID = appID
	}
}

// WithMerchant registers a merchant display name.
func WithMerchant(id, name string) Option {
	return func(s *Server) {
		s.merchants[id] = name
	}
}

// DefaultResponse is what credential submissions return unless changed.
var DefaultResponse = &evpay.NetworkTokenResponse{
	Card: evpay.Card{Brand: "visa", Funding: "credit", Country: "GB", Currency: "GBP"},
	NetworkToken: &evpay.NetworkToken{
		Number:               "ev:debug:token:$",
		Expiry:               evpay.Expiry{Month: "12", Year: "30"},
		RawExpiry:            "301231",
		TokenServiceProvider: "visa",
	},
	Cryptogram: "AgAAAAAABk4DWZ4C28yUQAAAAAA=",
	ECI:        "05",
}

// NewServer starts a fake relay. Call Close when done.
func NewServer(opts ...Option) *Server {
	s := &Server{merchants: make(map[string]string)}
	body, _ := json.Marshal(DefaultResponse)
	s.response = Response{Status: http.StatusOK, Body: body}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.record, s.checkAppID)

	r.GET(merchantPath+":id", s.merchant)
	r.POST(applePayCredentialsPath, s.applePay)
	r.POST(googlePayCredentialsPath, s.googlePay)

	s.Server = httptest.NewServer(r)
	return s
}

// Config returns a relay configuration pointing at the server.
func (s *Server) Config(appID, merchantID string) evpay.Config {
	return evpay.Config{
		AppID:      appID,
		MerchantID: merchantID,
		BaseURL:    s.URL,
	}
}

// RespondWith sets the JSON answer to subsequent credential submissions.
func (s *Server) RespondWith(status int, body interface{}) {
	raw, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	s.RespondRaw(status, raw)
}

// RespondRaw sets the raw answer to subsequent credential submissions.
func (s *Server) RespondRaw(status int, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.response = Response{Status: status, Body: append([]byte(nil), body...)}
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// CredentialRequests returns the credential submissions received so far.
func (s *Server) CredentialRequests() []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Path == applePayCredentialsPath || r.Path == googlePayCredentialsPath {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) record(c *gin.Context) {
	body, _ := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method: c.Request.Method,
		Path:   c.Request.URL.Path,
		AppID:  c.GetHeader(appIDHeader),
		Body:   body,
	})
	s.mu.Unlock()
	c.Next()
}

func (s *Server) checkAppID(c *gin.Context) {
	if s.appID != "" && c.GetHeader(appIDHeader) != s.appID {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown app"})
		return
	}
	c.Next()
}

func (s *Server) merchant(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	name, ok := s.merchants[id]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "merchant not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "name": name})
}

func (s *Server) applePay(c *gin.Context) {
	var body struct {
		IsNative             bool            `json:"isNative"`
		EncryptedCredentials json.RawMessage `json:"encryptedCredentials"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || !body.IsNative || len(body.EncryptedCredentials) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	s.respond(c)
}

func (s *Server) googlePay(c *gin.Context) {
	var body struct {
		MerchantID string                 `json:"merchantId"`
		Token      map[string]interface{} `json:"token"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.MerchantID == "" || body.Token == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	s.respond(c)
}

func (s *Server) respond(c *gin.Context) {
	s.mu.Lock()
	resp := s.response
	s.mu.Unlock()
	c.Data(resp.Status, "application/json", resp.Body)
}
