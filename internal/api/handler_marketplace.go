package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"beacon-network-backend/internal/marketplace"
)

type createListingRequest struct {
	DeviceID     string     `json:"device_id" binding:"required"`
	Title        string     `json:"title" binding:"required,max=255"`
	Description  *string    `json:"description"`
	ResourceType string     `json:"resource_type" binding:"required"`
	Quantity     float64    `json:"quantity"`
	Unit         string     `json:"unit" binding:"required"`
	PriceCredits float64    `json:"price_credits"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

type listListingsQuery struct {
	ResourceType string `form:"resource_type"`
	Status       string `form:"status"`
	Limit        int    `form:"limit"`
	Offset       int    `form:"offset"`
}

type updateListingRequest struct {
	Available *float64 `json:"available" binding:"required"`
}

type resolveListingRequest struct {
	ResolvedWith string `json:"resolved_with" binding:"required"`
	Status       string `json:"status" binding:"required"`
}

type successResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// CreateListing handles POST /marketplace.
func (h *Handler) CreateListing(c *gin.Context) {
	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	l, err := h.marketplace.CreateListing(c.Request.Context(), marketplace.CreateInput{
		DeviceID:     req.DeviceID,
		Title:        req.Title,
		Description:  req.Description,
		ResourceType: req.ResourceType,
		Quantity:     req.Quantity,
		Unit:         req.Unit,
		PriceCredits: req.PriceCredits,
		ExpiresAt:    req.ExpiresAt,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.metrics.ListingCreated()
	c.JSON(http.StatusOK, l)
}

// ListListings handles GET /marketplace.
func (h *Handler) ListListings(c *gin.Context) {
	var q listListingsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.writeBindError(c, err)
		return
	}

	listings, err := h.marketplace.ListActive(c.Request.Context(), marketplace.ListFilter{
		ResourceType: q.ResourceType,
		Status:       q.Status,
		Limit:        q.Limit,
		Offset:       q.Offset,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listings)
}

// GetListing handles GET /marketplace/:listing_id.
func (h *Handler) GetListing(c *gin.Context) {
	l, err := h.marketplace.Get(c.Request.Context(), c.Param("listing_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// UpdateListing handles PATCH /marketplace/:listing_id.
func (h *Handler) UpdateListing(c *gin.Context) {
	var req updateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	l, err := h.marketplace.UpdateAvailability(c.Request.Context(), c.Param("listing_id"), *req.Available)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// ResolveListing handles PUT /marketplace/:listing_id/resolve.
func (h *Handler) ResolveListing(c *gin.Context) {
	var req resolveListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	res, err := h.marketplace.Resolve(c.Request.Context(), c.Param("listing_id"), req.ResolvedWith, req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.metrics.ListingResolved(res.Status)
	c.JSON(http.StatusOK, successResponse{Message: "Listing resolved successfully", Data: res})
}
