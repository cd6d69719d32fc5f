package httpserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	addresssvc "storefront/internal/service/address"
	checkoutsvc "storefront/internal/service/checkout"
)

// addressRequest either names a saved address or carries a new one.
type addressRequest struct {
	AddressID string `json:"addressId"`
	addresssvc.Input
}

type couponRequest struct {
	Code string `json:"code"`
}

func (h *handlers) attachAddress(c *gin.Context) {
	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	if id := strings.TrimSpace(req.AddressID); id != "" {
		if err := h.deps.CheckoutSvc.UseSavedAddress(ctx, currentUser(c), id); err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": addresssvc.MsgUpdated})
		return
	}
	addr, err := h.deps.CheckoutSvc.AttachBillingAddress(ctx, currentUser(c), req.Input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": addresssvc.MsgCreated, "address": addr})
}

func (h *handlers) applyCoupon(c *gin.Context) {
	var req couponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	order, err := h.deps.CheckoutSvc.ApplyCoupon(c.Request.Context(), currentUser(c), req.Code)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": checkoutsvc.MsgCouponAdded, "order": toOrderResponse(*order)})
}

func (h *handlers) removeCoupon(c *gin.Context) {
	if err := h.deps.CheckoutSvc.RemoveCoupon(c.Request.Context(), currentUser(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": checkoutsvc.MsgCouponRemoved})
}

func (h *handlers) pay(c *gin.Context) {
	var req checkoutsvc.PayInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	order, err := h.deps.CheckoutSvc.Pay(c.Request.Context(), currentUser(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": checkoutsvc.MsgPlaced, "order": toOrderResponse(*order)})
}
