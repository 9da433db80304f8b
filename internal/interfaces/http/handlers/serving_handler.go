package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/personal/ad-lifecycle/internal/application/service"
	"github.com/personal/ad-lifecycle/internal/domain/ad"
)

// ServingHandler exposes ad selection to the publishing frontend
type ServingHandler struct {
	selector  *service.ServingSelector
	validator *validator.Validate
}

// NewServingHandler creates a new ServingHandler
func NewServingHandler(selector *service.ServingSelector) *ServingHandler {
	return &ServingHandler{
		selector:  selector,
		validator: validator.New(),
	}
}

// ImpressionRequest acknowledges that an ad was shown
type ImpressionRequest struct {
	AdvertisementID string    `json:"advertisementId" validate:"required"`
	ServedAt        time.Time `json:"servedAt,omitempty"`
}

// Select handles GET /serving/:placement
// @Summary Select ads for a placement
// @Description Eligible ads reaching the viewer region, least recently served first
// @Tags serving
// @Produce json
// @Param placement path string true "Placement"
// @Param region query string true "Viewer region"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Router /serving/{placement} [get]
func (h *ServingHandler) Select(c *gin.Context) {
	placement := c.Param("placement")
	region := c.Query("region")
	if region == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Region query parameter is required",
			Code:  "invalid_request",
		})
		return
	}

	selected, err := h.selector.SelectNow(c.Request.Context(), ad.Placement(placement), ad.Region(region))
	if err != nil {
		respondError(c, err)
		return
	}

	served := h.selector.ToServed(c.Request.Context(), selected)
	c.JSON(http.StatusOK, gin.H{
		"placement": placement,
		"region":    region,
		"ads":       served,
		"count":     len(served),
	})
}

// RecordImpression handles POST /serving/impressions
// @Summary Acknowledge an impression
// @Tags serving
// @Accept json
// @Produce json
// @Param body body ImpressionRequest true "Impression"
// @Success 202 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Router /serving/impressions [post]
func (h *ServingHandler) RecordImpression(c *gin.Context) {
	var req ImpressionRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		respondError(c, err)
		return
	}

	if err := h.selector.RecordImpression(c.Request.Context(), req.AdvertisementID, req.ServedAt); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":          "recorded",
		"advertisementId": req.AdvertisementID,
	})
}

// RegisterRoutes registers serving routes on the API group
func (h *ServingHandler) RegisterRoutes(v1 *gin.RouterGroup) {
	serving := v1.Group("/serving")
	{
		serving.POST("/impressions", h.RecordImpression)
		serving.GET("/:placement", h.Select)
	}
}
