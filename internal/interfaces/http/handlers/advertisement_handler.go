package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/personal/ad-lifecycle/internal/application/service"
)

// AdvertisementHandler handles HTTP requests for the owner-facing ad flow
type AdvertisementHandler struct {
	submissions *service.SubmissionService
	validator   *validator.Validate
}

// NewAdvertisementHandler creates a new AdvertisementHandler
func NewAdvertisementHandler(submissions *service.SubmissionService) *AdvertisementHandler {
	return &AdvertisementHandler{
		submissions: submissions,
		validator:   validator.New(),
	}
}

// RetryPaymentRequest identifies the caller asking for a new session
type RetryPaymentRequest struct {
	OwnerID string `json:"ownerId" validate:"required"`
}

// SubmitAd handles POST /ads
// @Summary Submit an advertisement
// @Description Price and schedule an ad and open a payment session
// @Tags ads
// @Accept json
// @Produce json
// @Param ad body service.SubmitAdRequest true "Purchase form"
// @Success 201 {object} service.SubmitAdResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /ads [post]
func (h *AdvertisementHandler) SubmitAd(c *gin.Context) {
	var req service.SubmitAdRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		respondError(c, err)
		return
	}

	response, err := h.submissions.Submit(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// GetAdStatus handles GET /ads/:id
// @Summary Get ad status
// @Description Get the facets and serving eligibility of an ad
// @Tags ads
// @Produce json
// @Param id path string true "Ad ID"
// @Success 200 {object} service.AdStatusResponse
// @Failure 404 {object} ErrorResponse
// @Router /ads/{id} [get]
func (h *AdvertisementHandler) GetAdStatus(c *gin.Context) {
	response, err := h.submissions.GetAdStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// RetryPayment handles POST /ads/:id/payment-sessions
// @Summary Open a new payment session
// @Description Start another payment attempt for an unpaid ad at its frozen price
// @Tags ads
// @Accept json
// @Produce json
// @Param id path string true "Ad ID"
// @Param body body RetryPaymentRequest true "Owner"
// @Success 201 {object} service.RetryPaymentResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /ads/{id}/payment-sessions [post]
func (h *AdvertisementHandler) RetryPayment(c *gin.Context) {
	var req RetryPaymentRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		respondError(c, err)
		return
	}

	response, err := h.submissions.RetryPayment(c.Request.Context(), c.Param("id"), req.OwnerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// RegisterRoutes registers ad routes on the API group
func (h *AdvertisementHandler) RegisterRoutes(v1 *gin.RouterGroup) {
	v1.POST("/ads", h.SubmitAd)
	v1.GET("/ads/:id", h.GetAdStatus)
	v1.POST("/ads/:id/payment-sessions", h.RetryPayment)
}
