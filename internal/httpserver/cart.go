package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	cartsvc "storefront/internal/service/cart"
)

func (h *handlers) getCart(c *gin.Context) {
	sum, err := h.deps.CartSvc.GetActive(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": toOrderResponse(*sum.Order)})
}

func (h *handlers) cartCount(c *gin.Context) {
	n, err := h.deps.CartSvc.ItemCount(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *handlers) addToCart(c *gin.Context) {
	order, err := h.deps.CartSvc.AddItem(c.Request.Context(), currentUser(c), c.Param("slug"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": cartsvc.MsgAdded, "order": toOrderResponse(*order)})
}

func (h *handlers) removeFromCart(c *gin.Context) {
	if err := h.deps.CartSvc.RemoveItem(c.Request.Context(), currentUser(c), c.Param("slug")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": cartsvc.MsgRemoved})
}

func (h *handlers) decrementCartItem(c *gin.Context) {
	removed, err := h.deps.CartSvc.DecrementItem(c.Request.Context(), currentUser(c), c.Param("slug"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": cartsvc.MsgUpdated, "removed": removed})
}
