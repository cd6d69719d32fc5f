package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	wishlistsvc "storefront/internal/service/wishlist"
)

func (h *handlers) getWishlist(c *gin.Context) {
	w, err := h.deps.WishlistSvc.Get(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wishlist": w})
}

func (h *handlers) addToWishlist(c *gin.Context) {
	w, err := h.deps.WishlistSvc.Add(c.Request.Context(), currentUser(c), c.Param("slug"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": wishlistsvc.MsgAdded, "wishlist": w})
}

func (h *handlers) removeFromWishlist(c *gin.Context) {
	if err := h.deps.WishlistSvc.Remove(c.Request.Context(), currentUser(c), c.Param("slug")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": wishlistsvc.MsgRemoved})
}
