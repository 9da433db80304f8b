package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/personal/ad-lifecycle/internal/application/service"
)

// PricingHandler serves quotes and the active pricing table
type PricingHandler struct {
	pricing *service.PricingService
}

// NewPricingHandler creates a new PricingHandler
func NewPricingHandler(pricing *service.PricingService) *PricingHandler {
	return &PricingHandler{pricing: pricing}
}

// Quote handles GET /pricing/quote
// @Summary Quote a placement
// @Tags pricing
// @Produce json
// @Param placement query string true "Placement"
// @Param format query string true "Format"
// @Param region query string true "Region"
// @Success 200 {object} service.QuoteResponse
// @Failure 400 {object} ErrorResponse
// @Router /pricing/quote [get]
func (h *PricingHandler) Quote(c *gin.Context) {
	quote, err := h.pricing.Quote(c.Query("placement"), c.Query("format"), c.Query("region"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, quote)
}

// Table handles GET /pricing/table
// @Summary Active pricing table
// @Tags pricing
// @Produce json
// @Success 200 {object} service.PricingTableResponse
// @Router /pricing/table [get]
func (h *PricingHandler) Table(c *gin.Context) {
	c.JSON(http.StatusOK, h.pricing.Table())
}

// RegisterRoutes registers pricing routes on the API group
func (h *PricingHandler) RegisterRoutes(v1 *gin.RouterGroup) {
	pricing := v1.Group("/pricing")
	{
		pricing.GET("/quote", h.Quote)
		pricing.GET("/table", h.Table)
	}
}
