package external

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/personal/ad-lifecycle/internal/domain/payment"
	"github.com/personal/ad-lifecycle/pkg/monitoring"
)

// MockPaymentGateway implements payment.Gateway for local runs and tests.
// Session ids are generated locally and the redirect points at checkoutURL.
type MockPaymentGateway struct {
	checkoutURL string
	mu          sync.Mutex
	requests    []payment.CheckoutRequest
	failNext    error
}

// NewMockPaymentGateway creates a new mock gateway
func NewMockPaymentGateway(checkoutURL string) *MockPaymentGateway {
	if checkoutURL == "" {
		checkoutURL = "http://localhost:8080/mock-checkout"
	}
	return &MockPaymentGateway{checkoutURL: strings.TrimRight(checkoutURL, "/")}
}

// CreateSession records req and returns a fresh session
func (g *MockPaymentGateway) CreateSession(ctx context.Context, req payment.CheckoutRequest) (*payment.Checkout, error) {
	start := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failNext != nil {
		err := g.failNext
		g.failNext = nil
		monitoring.RecordGatewayCall("mock", time.Since(start), err)
		return nil, err
	}

	g.requests = append(g.requests, req)
	id := "cs_mock_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	monitoring.RecordGatewayCall("mock", time.Since(start), nil)

	return &payment.Checkout{
		SessionID:   id,
		RedirectURL: fmt.Sprintf("%s/%s", g.checkoutURL, id),
	}, nil
}

// FailNext makes the next CreateSession call return err
func (g *MockPaymentGateway) FailNext(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext = err
}

// Requests returns the checkout requests seen so far
func (g *MockPaymentGateway) Requests() []payment.CheckoutRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]payment.CheckoutRequest, len(g.requests))
	copy(out, g.requests)
	return out
}
