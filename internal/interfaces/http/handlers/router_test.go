package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"

	"github.com/personal/ad-lifecycle/internal/application/service"
	"github.com/personal/ad-lifecycle/internal/domain/pricing"
	"github.com/personal/ad-lifecycle/internal/infrastructure/external"
	"github.com/personal/ad-lifecycle/internal/infrastructure/persistence"
	"github.com/personal/ad-lifecycle/internal/interfaces/http/handlers"
	"github.com/personal/ad-lifecycle/pkg/logger"
)

const webhookSecret = "whsec_test"

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type testAPI struct {
	router  *gin.Engine
	ads     *persistence.MemoryAdRepository
	gateway *external.MockPaymentGateway
}

func newTestAPI(checks map[string]handlers.Checker) *testAPI {
	engine, err := pricing.NewEngine(pricing.DefaultTable())
	Expect(err).NotTo(HaveOccurred())

	log := logger.Discard()
	clock := func() time.Time { return fixedNow }
	ads := persistence.NewMemoryAdRepository()
	sessions := persistence.NewMemorySessionRepository()
	gateway := external.NewMockPaymentGateway("https://checkout.test")

	submission := service.NewSubmissionService(ads, sessions, persistence.NewMemorySubmissionWriter(ads, sessions), gateway, engine, nil, "USD", clock, log)
	reconciler := service.NewPaymentReconciler(ads, sessions, nil, nil, clock, log)
	approval := service.NewApprovalGate(ads, nil, clock, log)
	safety := service.NewContentSafetyService(ads, nil, clock, log)
	selector := service.NewServingSelector(ads, ads, nil, nil, time.Minute, clock, log)

	verify := func(body []byte, signature string) bool {
		return external.VerifySignature(webhookSecret, body, signature)
	}

	router := gin.New()
	handlers.NewHealthHandler("ad-api", checks).RegisterRoutes(router)
	v1 := router.Group("/api/v1")
	handlers.NewAdvertisementHandler(submission).RegisterRoutes(v1)
	handlers.NewWebhookHandler(reconciler, safety, verify).RegisterRoutes(v1)
	handlers.NewModerationHandler(approval).RegisterRoutes(v1)
	handlers.NewServingHandler(selector).RegisterRoutes(v1)
	handlers.NewPricingHandler(service.NewPricingService(engine, "USD")).RegisterRoutes(v1)

	return &testAPI{router: router, ads: ads, gateway: gateway}
}

func (a *testAPI) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) signedPayment(sessionID, eventType string) *httptest.ResponseRecorder {
	raw, err := json.Marshal(map[string]string{
		"paymentSessionId": sessionID,
		"eventType":        eventType,
	})
	Expect(err).NotTo(HaveOccurred())
	return a.do(http.MethodPost, "/api/v1/webhooks/payments", raw, map[string]string{
		handlers.SignatureHeader: "sha256=" + external.SignPayload(webhookSecret, raw),
	})
}

func submitBody(overrides map[string]interface{}) map[string]interface{} {
	body := map[string]interface{}{
		"ownerId":        "owner-1",
		"name":           "Spring sale",
		"type":           "image",
		"region":         "all-africa",
		"placement":      "in-feed",
		"format":         "in-feed",
		"duration":       2,
		"durationType":   "days",
		"startDate":      fixedNow.Add(-time.Hour).Format(time.RFC3339),
		"mediaReference": "creatives/spring.png",
	}
	for k, v := range overrides {
		body[k] = v
	}
	return body
}

func decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	Expect(json.Unmarshal(w.Body.Bytes(), &out)).To(Succeed())
	return out
}
