package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/internal/domain/lifecycle"
	"github.com/personal/ad-lifecycle/internal/domain/media"
	"github.com/personal/ad-lifecycle/internal/domain/payment"
	"github.com/personal/ad-lifecycle/internal/domain/pricing"
	"github.com/personal/ad-lifecycle/internal/domain/schedule"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Checked in order; the first errors.Is match wins
var errorMappings = []errorMapping{
	{ad.ErrInvalidEnumValue, http.StatusBadRequest, "invalid_enum_value", "Invalid enum value"},
	{schedule.ErrInvalidDuration, http.StatusBadRequest, "invalid_duration", "Invalid duration"},
	{lifecycle.ErrInvalidWindow, http.StatusBadRequest, "invalid_window", "Invalid schedule"},
	{lifecycle.ErrInvalidScanResult, http.StatusBadRequest, "invalid_scan_result", "Invalid content-safety result"},
	{payment.ErrInvalidEventType, http.StatusBadRequest, "invalid_event_type", "Invalid payment event type"},
	{payment.ErrInvalidSessionID, http.StatusBadRequest, "invalid_session_id", "Invalid payment session id"},
	{ad.ErrInvalidName, http.StatusBadRequest, "validation_failed", "Validation failed"},
	{ad.ErrInvalidOwner, http.StatusBadRequest, "validation_failed", "Validation failed"},
	{ad.ErrInvalidMediaRef, http.StatusBadRequest, "validation_failed", "Validation failed"},
	{ad.ErrInvalidStartDate, http.StatusBadRequest, "validation_failed", "Validation failed"},
	{ad.ErrInvalidTargetURL, http.StatusBadRequest, "validation_failed", "Validation failed"},
	{ad.ErrInvalidModerator, http.StatusBadRequest, "validation_failed", "Validation failed"},
	{ad.ErrReasonRequired, http.StatusBadRequest, "reason_required", "Rejection reason is required"},
	{payment.ErrInvalidSignature, http.StatusUnauthorized, "invalid_signature", "Invalid webhook signature"},
	{ad.ErrNotOwner, http.StatusForbidden, "not_owner", "Caller does not own this ad"},
	{ad.ErrAdNotFound, http.StatusNotFound, "ad_not_found", "Ad not found"},
	{payment.ErrUnknownSession, http.StatusNotFound, "unknown_session", "Unknown payment session"},
	{lifecycle.ErrConflictingTransition, http.StatusConflict, "conflicting_transition", "Conflicting lifecycle transition"},
	{ad.ErrAlreadyPaid, http.StatusConflict, "already_paid", "Ad is already paid"},
	{ad.ErrAdArchived, http.StatusConflict, "ad_archived", "Ad is archived"},
	{ad.ErrPaymentNotAllowed, http.StatusConflict, "payment_not_allowed", "Ad no longer accepts payment"},
	{ad.ErrOptimisticLockFailed, http.StatusConflict, "concurrent_modification", "Ad was modified concurrently, retry"},
	{media.ErrMediaNotFound, http.StatusUnprocessableEntity, "media_not_found", "Media reference not found"},
	{payment.ErrGatewayUnavailable, http.StatusBadGateway, "gateway_unavailable", "Payment gateway unavailable"},
	{pricing.ErrIncompleteTable, http.StatusInternalServerError, "pricing_unavailable", "Pricing table incomplete"},
}

// errorStatus maps a service error to an HTTP status and response body
func errorStatus(err error) (int, ErrorResponse) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest, ErrorResponse{
			Error:   "Validation failed",
			Code:    "validation_failed",
			Details: err.Error(),
		}
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, ErrorResponse{Error: m.message, Code: m.code, Details: err.Error()}
		}
	}
	return http.StatusInternalServerError, ErrorResponse{
		Error:   "Internal server error",
		Code:    "internal_error",
		Details: err.Error(),
	}
}

func respondError(c *gin.Context, err error) {
	status, body := errorStatus(err)
	c.JSON(status, body)
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "Invalid request format",
		Code:    "invalid_request",
		Details: err.Error(),
	})
}
