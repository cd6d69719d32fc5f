package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront/internal/domain"
	fulfillmentsvc "storefront/internal/service/fulfillment"
)

type advanceRequest struct {
	Stage    string `json:"stage"`
	Expected string `json:"expected"`
}

func (h *handlers) listOrders(c *gin.Context) {
	orders, err := h.deps.FulfillmentSvc.PlacedOrders(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	body := gin.H{"orders": toOrderResponses(orders)}
	if len(orders) == 0 {
		body["message"] = fulfillmentsvc.MsgNoOrders
	}
	c.JSON(http.StatusOK, body)
}

func (h *handlers) cancelOrder(c *gin.Context) {
	order, err := h.deps.FulfillmentSvc.Cancel(c.Request.Context(), currentUser(c), c.Param("orderId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fulfillmentsvc.MsgCanceled, "order": toOrderResponse(*order)})
}

func (h *handlers) requestRefund(c *gin.Context) {
	var req fulfillmentsvc.RefundInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	refund, err := h.deps.FulfillmentSvc.RequestRefund(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": fulfillmentsvc.MsgRefundReceived, "refund": refund})
}

// orderPK reads the :id param. Malformed ids are reported as missing orders.
func (h *handlers) orderPK(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		h.fail(c, domain.WithMessage(domain.ErrNotFound, fulfillmentsvc.MsgNoSuchOrder))
		return "", false
	}
	return id, true
}

func (h *handlers) advanceOrder(c *gin.Context) {
	id, ok := h.orderPK(c)
	if !ok {
		return
	}
	var req advanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	to, err := domain.ParseStage(req.Stage)
	if err != nil {
		h.fail(c, domain.NewValidationError("Unknown stage", map[string]string{"stage": err.Error()}))
		return
	}
	var expected *domain.Stage
	if req.Expected != "" {
		st, err := domain.ParseStage(req.Expected)
		if err != nil {
			h.fail(c, domain.NewValidationError("Unknown stage", map[string]string{"expected": err.Error()}))
			return
		}
		expected = &st
	}
	order, err := h.deps.FulfillmentSvc.Advance(c.Request.Context(), id, to, expected)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": toOrderResponse(*order)})
}

func (h *handlers) grantRefund(c *gin.Context) {
	id, ok := h.orderPK(c)
	if !ok {
		return
	}
	order, err := h.deps.FulfillmentSvc.GrantRefund(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": toOrderResponse(*order)})
}
