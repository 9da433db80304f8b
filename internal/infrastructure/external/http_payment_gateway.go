package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/personal/ad-lifecycle/internal/domain/payment"
	"github.com/personal/ad-lifecycle/pkg/monitoring"
)

// HTTPPaymentGateway implements payment.Gateway against a hosted checkout
// provider speaking JSON over HTTPS
type HTTPPaymentGateway struct {
	apiKey     string
	endpoint   string
	successURL string
	cancelURL  string
	client     *http.Client
}

// CheckoutSessionRequest is the provider's create-session payload
type CheckoutSessionRequest struct {
	Amount      string            `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	SuccessURL  string            `json:"success_url,omitempty"`
	CancelURL   string            `json:"cancel_url,omitempty"`
	Metadata    map[string]string `json:"metadata"`
}

// CheckoutSessionResponse is the provider's create-session answer
type CheckoutSessionResponse struct {
	ID    string           `json:"id"`
	URL   string           `json:"url"`
	Error *GatewayAPIError `json:"error,omitempty"`
}

// GatewayAPIError is the provider's error envelope
type GatewayAPIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPGatewayConfig configures HTTPPaymentGateway
type HTTPGatewayConfig struct {
	APIKey     string
	BaseURL    string
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration
}

// NewHTTPPaymentGateway creates a new HTTP payment gateway client
func NewHTTPPaymentGateway(cfg HTTPGatewayConfig) *HTTPPaymentGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPPaymentGateway{
		apiKey:     cfg.APIKey,
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/v1/checkout/sessions",
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateSession opens a hosted checkout for req
func (g *HTTPPaymentGateway) CreateSession(ctx context.Context, req payment.CheckoutRequest) (*payment.Checkout, error) {
	start := time.Now()
	checkout, err := g.createSession(ctx, req)
	monitoring.RecordGatewayCall("http", time.Since(start), err)
	return checkout, err
}

func (g *HTTPPaymentGateway) createSession(ctx context.Context, req payment.CheckoutRequest) (*payment.Checkout, error) {
	body := CheckoutSessionRequest{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		SuccessURL:  g.successURL,
		CancelURL:   g.cancelURL,
		Metadata: map[string]string{
			"ad_id":    req.AdID,
			"owner_id": req.OwnerID,
		},
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkout request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	var response CheckoutSessionResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		if response.Error != nil {
			return nil, fmt.Errorf("gateway error %d %s: %s", resp.StatusCode, response.Error.Code, response.Error.Message)
		}
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	if response.ID == "" || response.URL == "" {
		return nil, fmt.Errorf("gateway response missing session id or url")
	}

	return &payment.Checkout{
		SessionID:   response.ID,
		RedirectURL: response.URL,
	}, nil
}
