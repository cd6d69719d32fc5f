package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/payment"
	checkoutsvc "storefront/internal/service/checkout"
)

const msgUnexpected = "Something went wrong! we are taking note of it"

// statusFor maps an error onto a status code and a customer-facing message.
func statusFor(err error) (int, string) {
	var rec *checkoutsvc.ReconciliationError
	if errors.As(err, &rec) {
		return http.StatusInternalServerError, checkoutsvc.MsgReconciliation
	}

	var gerr *payment.GatewayError
	if errors.As(err, &gerr) {
		switch gerr.Category {
		case payment.RateLimited:
			return http.StatusTooManyRequests, gerr.UserMessage()
		case payment.ConnectionFailed:
			return http.StatusBadGateway, gerr.UserMessage()
		}
		return http.StatusPaymentRequired, gerr.UserMessage()
	}

	msg, hasMsg := domain.UserMessage(err)
	withDefault := func(status int, fallback string) (int, string) {
		if hasMsg {
			return status, msg
		}
		return status, fallback
	}

	switch {
	case domain.IsValidation(err):
		return withDefault(http.StatusUnprocessableEntity, "Invalid request")
	case errors.Is(err, domain.ErrNotFound):
		return withDefault(http.StatusNotFound, "Not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		return withDefault(http.StatusConflict, "This order cannot move to that stage.")
	case errors.Is(err, domain.ErrStageConflict), errors.Is(err, domain.ErrAlreadyExists):
		return withDefault(http.StatusConflict, "Conflict")
	}
	return http.StatusInternalServerError, msgUnexpected
}

func (h *handlers) fail(c *gin.Context, err error) {
	status, msg := statusFor(err)
	body := gin.H{"message": msg}

	var verr *domain.ValidationError
	if errors.As(err, &verr) && len(verr.Fields) > 0 {
		body["fields"] = verr.Fields
	}
	var gerr *payment.GatewayError
	if errors.As(err, &gerr) {
		body["category"] = gerr.Category
	}
	var rec *checkoutsvc.ReconciliationError
	if errors.As(err, &rec) {
		body["chargeId"] = rec.ChargeID
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("user_id", currentUser(c)),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func (h *handlers) badRequest(c *gin.Context, err error) {
	h.fail(c, domain.NewValidationError("Invalid request body", map[string]string{"body": err.Error()}))
}
