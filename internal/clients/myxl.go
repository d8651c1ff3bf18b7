// myxl-gateway/internal/clients/myxl.go
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/example/myxl-gateway/internal/auth"
)

const (
	EndpointOTPRequest     = "/auth/otp/request"
	EndpointOTPSubmit      = "/auth/otp/submit"
	EndpointBalance        = "/profile/balance"
	EndpointPackagesXUT    = "/packages/xut"
	EndpointPackage        = "/packages/detail"
	EndpointPaymentMethods = "/payments/methods"
	EndpointSettleQRIS     = "/payments/settlement/qris"
	EndpointQRISCode       = "/payments/qris-code"
	EndpointSettleMulti    = "/payments/settlement/multipayment"
)

// Negotiation is the single-use payment token returned by the method lookup.
type Negotiation struct {
	TokenPayment string `json:"token_payment"`
	Timestamp    int64  `json:"timestamp"`
}

// SettleRequest carries everything a settlement call needs.
type SettleRequest struct {
	APIKey        string
	Tokens        auth.Tokens
	Negotiation   Negotiation
	PaymentTarget string
	Price         int64
	ItemName      string
	WalletNumber  string // multipayment only
	PaymentMethod string // multipayment only
}

// MyXL is a JSON-over-HTTP client for the upstream MyXL API.
type MyXL struct {
	baseURL    string
	httpClient *http.Client
}

func NewMyXL(baseURL string, timeout time.Duration) *MyXL {
	return &MyXL{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// envelope is the upstream response wrapper.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// UpstreamError is returned when the upstream answers with a non-2xx status
// or a non-SUCCESS envelope.
type UpstreamError struct {
	Endpoint   string
	HTTPStatus int
	Status     string
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("myxl %s: http %d status=%s message=%q", e.Endpoint, e.HTTPStatus, e.Status, e.Message)
}

func (c *MyXL) RequestOTP(ctx context.Context, contact string) error {
	return c.do(ctx, EndpointOTPRequest, "", "", map[string]any{"contact": contact}, nil)
}

func (c *MyXL) SubmitOTP(ctx context.Context, apiKey, contact, code string) (auth.Tokens, error) {
	var t auth.Tokens
	err := c.do(ctx, EndpointOTPSubmit, apiKey, "", map[string]any{"contact": contact, "code": code}, &t)
	return t, err
}

func (c *MyXL) Balance(ctx context.Context, apiKey, idToken string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, EndpointBalance, apiKey, idToken, map[string]any{}, &out)
	return out, err
}

func (c *MyXL) XUTPackages(ctx context.Context, apiKey string, tokens auth.Tokens) ([]json.RawMessage, error) {
	var out []json.RawMessage
	err := c.do(ctx, EndpointPackagesXUT, apiKey, tokens.IDToken, map[string]any{}, &out)
	return out, err
}

func (c *MyXL) Package(ctx context.Context, apiKey string, tokens auth.Tokens, code string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, EndpointPackage, apiKey, tokens.IDToken, map[string]any{"package_option_code": code}, &out)
	return out, err
}

func (c *MyXL) PaymentMethods(ctx context.Context, apiKey string, tokens auth.Tokens, tokenConfirmation, target string) (Negotiation, error) {
	var n Negotiation
	err := c.do(ctx, EndpointPaymentMethods, apiKey, tokens.IDToken, map[string]any{
		"token_confirmation": tokenConfirmation,
		"payment_target":     target,
	}, &n)
	return n, err
}

type settleResult struct {
	TransactionID string `json:"transaction_id"`
}

func (c *MyXL) SettleQRIS(ctx context.Context, req SettleRequest) (string, error) {
	var out settleResult
	err := c.do(ctx, EndpointSettleQRIS, req.APIKey, req.Tokens.IDToken, map[string]any{
		"token_payment":  req.Negotiation.TokenPayment,
		"timestamp":      req.Negotiation.Timestamp,
		"payment_target": req.PaymentTarget,
		"price":          req.Price,
		"item_name":      req.ItemName,
	}, &out)
	return out.TransactionID, err
}

func (c *MyXL) QRISCode(ctx context.Context, apiKey string, tokens auth.Tokens, txID string) (string, error) {
	var out struct {
		QRCode string `json:"qr_code"`
	}
	err := c.do(ctx, EndpointQRISCode, apiKey, tokens.IDToken, map[string]any{"transaction_id": txID}, &out)
	return out.QRCode, err
}

func (c *MyXL) SettleMultipayment(ctx context.Context, req SettleRequest) (string, error) {
	var out settleResult
	err := c.do(ctx, EndpointSettleMulti, req.APIKey, req.Tokens.IDToken, map[string]any{
		"token_payment":  req.Negotiation.TokenPayment,
		"timestamp":      req.Negotiation.Timestamp,
		"payment_target": req.PaymentTarget,
		"price":          req.Price,
		"item_name":      req.ItemName,
		"wallet_number":  req.WalletNumber,
		"payment_method": req.PaymentMethod,
	}, &out)
	return out.TransactionID, err
}

// do POSTs body as JSON and decodes the envelope's data into result.
func (c *MyXL) do(ctx context.Context, endpoint, apiKey, idToken string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	if idToken != "" {
		req.Header.Set("Authorization", "Bearer "+idToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return &UpstreamError{Endpoint: endpoint, HTTPStatus: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	if resp.StatusCode >= 300 || !strings.EqualFold(env.Status, "SUCCESS") {
		return &UpstreamError{Endpoint: endpoint, HTTPStatus: resp.StatusCode, Status: env.Status, Message: env.Message}
	}

	if result == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, result); err != nil {
		return fmt.Errorf("decode %s data: %w", endpoint, err)
	}
	return nil
}
