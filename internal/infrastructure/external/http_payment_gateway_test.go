package external_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/personal/ad-lifecycle/internal/domain/payment"
	"github.com/personal/ad-lifecycle/internal/infrastructure/external"
)

var _ = Describe("HTTPPaymentGateway", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
		gateway *external.HTTPPaymentGateway
		request = payment.CheckoutRequest{
			AdID:        "ad-1",
			OwnerID:     "owner-1",
			Description: "Spring sale",
			Amount:      "360.00",
			Currency:    "USD",
		}
	)

	BeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
		gateway = external.NewHTTPPaymentGateway(external.HTTPGatewayConfig{
			APIKey:     "sk_test",
			BaseURL:    server.URL + "/",
			SuccessURL: "https://ads.test/paid",
			CancelURL:  "https://ads.test/cancelled",
		})
	})

	AfterEach(func() {
		server.Close()
	})

	It("posts the checkout and returns the session", func() {
		var received external.CheckoutSessionRequest
		handler = func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.Method).To(Equal(http.MethodPost))
			Expect(r.URL.Path).To(Equal("/v1/checkout/sessions"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer sk_test"))
			Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"cs_123","url":"https://pay.test/cs_123"}`))
		}

		checkout, err := gateway.CreateSession(context.Background(), request)
		Expect(err).NotTo(HaveOccurred())
		Expect(checkout.SessionID).To(Equal("cs_123"))
		Expect(checkout.RedirectURL).To(Equal("https://pay.test/cs_123"))

		Expect(received.Amount).To(Equal("360.00"))
		Expect(received.Currency).To(Equal("USD"))
		Expect(received.SuccessURL).To(Equal("https://ads.test/paid"))
		Expect(received.Metadata).To(HaveKeyWithValue("ad_id", "ad-1"))
	})

	It("surfaces the provider error envelope", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":{"code":"amount_invalid","message":"Amount too small"}}`))
		}

		_, err := gateway.CreateSession(context.Background(), request)
		Expect(err).To(MatchError(ContainSubstring("amount_invalid")))
	})

	It("fails on a non-JSON error response", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		}

		_, err := gateway.CreateSession(context.Background(), request)
		Expect(err).To(MatchError(ContainSubstring("502")))
	})

	It("fails when the session id is missing", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"url":"https://pay.test/x"}`))
		}

		_, err := gateway.CreateSession(context.Background(), request)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("MockPaymentGateway", func() {
	It("issues distinct sessions under the checkout url", func() {
		gateway := external.NewMockPaymentGateway("https://checkout.test/")

		first, err := gateway.CreateSession(context.Background(), payment.CheckoutRequest{AdID: "a"})
		Expect(err).NotTo(HaveOccurred())
		second, err := gateway.CreateSession(context.Background(), payment.CheckoutRequest{AdID: "b"})
		Expect(err).NotTo(HaveOccurred())

		Expect(first.SessionID).NotTo(Equal(second.SessionID))
		Expect(first.RedirectURL).To(Equal("https://checkout.test/" + first.SessionID))
		Expect(gateway.Requests()).To(HaveLen(2))
	})

	It("fails the next call on demand", func() {
		gateway := external.NewMockPaymentGateway("")
		gateway.FailNext(payment.ErrGatewayUnavailable)

		_, err := gateway.CreateSession(context.Background(), payment.CheckoutRequest{})
		Expect(err).To(MatchError(payment.ErrGatewayUnavailable))

		_, err = gateway.CreateSession(context.Background(), payment.CheckoutRequest{})
		Expect(err).NotTo(HaveOccurred())
	})
})
