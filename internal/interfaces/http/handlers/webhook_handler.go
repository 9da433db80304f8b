package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/personal/ad-lifecycle/internal/application/service"
	"github.com/personal/ad-lifecycle/internal/domain/payment"
)

// SignatureHeader carries the HMAC of a payment callback body
const SignatureHeader = "X-Signature"

// SignatureVerifier checks a callback body against its signature header
type SignatureVerifier func(body []byte, signature string) bool

// WebhookHandler receives payment gateway and content scanner callbacks
type WebhookHandler struct {
	reconciler *service.PaymentReconciler
	safety     *service.ContentSafetyService
	verify     SignatureVerifier
	validator  *validator.Validate
}

// NewWebhookHandler creates a new WebhookHandler. A nil verify accepts
// unsigned payment callbacks.
func NewWebhookHandler(reconciler *service.PaymentReconciler, safety *service.ContentSafetyService, verify SignatureVerifier) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		safety:     safety,
		verify:     verify,
		validator:  validator.New(),
	}
}

// PaymentCallbackRequest is the gateway notification payload
type PaymentCallbackRequest struct {
	PaymentSessionID string `json:"paymentSessionId" validate:"required"`
	EventType        string `json:"eventType" validate:"required"`
}

// PaymentCallback handles POST /webhooks/payments
// @Summary Payment gateway callback
// @Description Reconcile a COMPLETED, FAILED or EXPIRED session notification
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /webhooks/payments [post]
func (h *WebhookHandler) PaymentCallback(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	if h.verify != nil && !h.verify(body, c.GetHeader(SignatureHeader)) {
		respondError(c, payment.ErrInvalidSignature)
		return
	}

	var req PaymentCallbackRequest
	if err := binding.JSON.BindBody(body, &req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		respondError(c, err)
		return
	}

	if err := h.reconciler.Reconcile(c.Request.Context(), req.PaymentSessionID, payment.EventType(req.EventType)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           "processed",
		"paymentSessionId": req.PaymentSessionID,
	})
}

// ContentSafetyCallback handles POST /webhooks/content-safety
// @Summary Content scanner callback
// @Description Record a CLEAN or FLAGGED verdict for an ad
// @Tags webhooks
// @Accept json
// @Produce json
// @Param body body service.ScanResultRequest true "Verdict"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /webhooks/content-safety [post]
func (h *WebhookHandler) ContentSafetyCallback(c *gin.Context) {
	var req service.ScanResultRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		respondError(c, err)
		return
	}

	if err := h.safety.RecordResult(c.Request.Context(), req.AdvertisementID, req.Result); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "recorded",
		"advertisementId": req.AdvertisementID,
	})
}

// RegisterRoutes registers webhook routes on the API group
func (h *WebhookHandler) RegisterRoutes(v1 *gin.RouterGroup) {
	webhooks := v1.Group("/webhooks")
	{
		webhooks.POST("/payments", h.PaymentCallback)
		webhooks.POST("/content-safety", h.ContentSafetyCallback)
	}
}
