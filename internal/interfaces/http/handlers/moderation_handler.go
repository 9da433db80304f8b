package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/personal/ad-lifecycle/internal/application/service"
	"github.com/personal/ad-lifecycle/internal/domain/lifecycle"
)

const (
	defaultQueueLimit = 20
	maxQueueLimit     = 100
)

// ModerationHandler handles editorial review requests
type ModerationHandler struct {
	gate      *service.ApprovalGate
	validator *validator.Validate
}

// NewModerationHandler creates a new ModerationHandler
func NewModerationHandler(gate *service.ApprovalGate) *ModerationHandler {
	return &ModerationHandler{
		gate:      gate,
		validator: validator.New(),
	}
}

// DecisionResponse reports the outcome of a moderator action. Decided is
// false when the ad had already been decided.
type DecisionResponse struct {
	AdvertisementID string `json:"advertisementId"`
	Decision        string `json:"decision"`
	Decided         bool   `json:"decided"`
	Message         string `json:"message"`
}

// Approve handles POST /moderation/ads/:id/approve
// @Summary Approve an ad
// @Tags moderation
// @Accept json
// @Produce json
// @Param id path string true "Ad ID"
// @Param body body service.ReviewRequest true "Moderator"
// @Success 200 {object} DecisionResponse
// @Failure 404 {object} ErrorResponse
// @Router /moderation/ads/{id}/approve [post]
func (h *ModerationHandler) Approve(c *gin.Context) {
	h.decide(c, "approve", func(req *service.ReviewRequest) error {
		return h.gate.Approve(c.Request.Context(), c.Param("id"), req.ModeratorID)
	})
}

// Reject handles POST /moderation/ads/:id/reject
// @Summary Reject an ad
// @Description Permanently reject an ad with a reason; the ad is archived
// @Tags moderation
// @Accept json
// @Produce json
// @Param id path string true "Ad ID"
// @Param body body service.ReviewRequest true "Moderator and reason"
// @Success 200 {object} DecisionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /moderation/ads/{id}/reject [post]
func (h *ModerationHandler) Reject(c *gin.Context) {
	h.decide(c, "reject", func(req *service.ReviewRequest) error {
		return h.gate.Reject(c.Request.Context(), c.Param("id"), req.ModeratorID, req.Reason)
	})
}

func (h *ModerationHandler) decide(c *gin.Context, decision string, apply func(*service.ReviewRequest) error) {
	var req service.ReviewRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		respondError(c, err)
		return
	}

	err := apply(&req)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, DecisionResponse{
			AdvertisementID: c.Param("id"),
			Decision:        decision,
			Decided:         true,
			Message:         "Decision recorded",
		})
	case errors.Is(err, lifecycle.ErrAlreadyDecided):
		c.JSON(http.StatusOK, DecisionResponse{
			AdvertisementID: c.Param("id"),
			Decision:        decision,
			Decided:         false,
			Message:         "This advertisement has already been decided",
		})
	default:
		respondError(c, err)
	}
}

// Queue handles GET /moderation/queue
// @Summary List ads awaiting review
// @Tags moderation
// @Produce json
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Router /moderation/queue [get]
func (h *ModerationHandler) Queue(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultQueueLimit)))
	if err != nil || limit <= 0 || limit > maxQueueLimit {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Limit must be a positive integer between 1 and 100",
			Code:  "invalid_limit",
		})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Offset must be a non-negative integer",
			Code:  "invalid_offset",
		})
		return
	}

	items, err := h.gate.ListPending(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":  items,
		"count":  len(items),
		"limit":  limit,
		"offset": offset,
	})
}

// RegisterRoutes registers moderation routes on the API group
func (h *ModerationHandler) RegisterRoutes(v1 *gin.RouterGroup) {
	moderation := v1.Group("/moderation")
	{
		moderation.POST("/ads/:id/approve", h.Approve)
		moderation.POST("/ads/:id/reject", h.Reject)
		moderation.GET("/queue", h.Queue)
	}
}
