package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (h *handlers) frontpage(c *gin.Context) {
	page := 1
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.badRequest(c, err)
			return
		}
		page = n
	}
	res, err := h.deps.CatalogSvc.Frontpage(c.Request.Context(), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	res.Items = nonNilItems(res.Items)
	c.JSON(http.StatusOK, res)
}

func (h *handlers) allItems(c *gin.Context) {
	items, err := h.deps.CatalogSvc.All(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": nonNilItems(items)})
}

func (h *handlers) searchItems(c *gin.Context) {
	items, err := h.deps.CatalogSvc.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": nonNilItems(items)})
}

func (h *handlers) getItem(c *gin.Context) {
	item, err := h.deps.CatalogSvc.Get(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *handlers) categories(c *gin.Context) {
	cats, err := h.deps.CatalogSvc.Categories(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": cats})
}

func (h *handlers) checkZipcode(c *gin.Context) {
	zipcode := c.Param("zipcode")
	ok, err := h.deps.CheckoutSvc.CheckZipcode(c.Request.Context(), zipcode)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"zipcode": zipcode, "serviceable": ok})
}
