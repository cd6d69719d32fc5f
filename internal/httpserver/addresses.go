package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	addresssvc "storefront/internal/service/address"
)

func (h *handlers) listAddresses(c *gin.Context) {
	list, err := h.deps.AddressSvc.List(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if list == nil {
		list = []domain.Address{}
	}
	c.JSON(http.StatusOK, gin.H{"addresses": list})
}

func (h *handlers) createAddress(c *gin.Context) {
	var in addresssvc.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	addr, err := h.deps.AddressSvc.Create(c.Request.Context(), currentUser(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": addresssvc.MsgCreated, "address": addr})
}

func (h *handlers) getAddress(c *gin.Context) {
	addr, err := h.deps.AddressSvc.Get(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr})
}

func (h *handlers) updateAddress(c *gin.Context) {
	var in addresssvc.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	addr, err := h.deps.AddressSvc.Update(c.Request.Context(), currentUser(c), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": addresssvc.MsgUpdated, "address": addr})
}

func (h *handlers) deleteAddress(c *gin.Context) {
	if err := h.deps.AddressSvc.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": addresssvc.MsgDeleted})
}
