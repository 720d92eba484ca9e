package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"beacon-network-backend/internal/apperr"
	"beacon-network-backend/internal/model"
	"beacon-network-backend/internal/store"
)

type putSubscriptionRequest struct {
	Endpoint string  `json:"endpoint" binding:"required"`
	P256DH   string  `json:"p256dh" binding:"required"`
	Auth     string  `json:"auth" binding:"required"`
	DeviceID *string `json:"device_id"`
}

// PutSubscription creates or replaces a push subscription. A device_id
// marks the subscription as owned by that device so its own broadcasts
// are not echoed back.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	if req.DeviceID != nil && *req.DeviceID != "" {
		ok, err := h.devices.Exists(c.Request.Context(), *req.DeviceID)
		if err != nil {
			h.writeError(c, err)
			return
		}
		if !ok {
			h.writeError(c, apperr.NotFound(apperr.CodeDeviceNotFound, *req.DeviceID, "device not found"))
			return
		}
	} else {
		req.DeviceID = nil
	}

	sub := model.PushSubscription{
		Endpoint:  req.Endpoint,
		P256DH:    req.P256DH,
		Auth:      req.Auth,
		DeviceID:  req.DeviceID,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.UpsertSubscription(c.Request.Context(), &sub); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	if err := h.store.DeleteSubscription(c.Request.Context(), req.Endpoint); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetSubscription handles the retrieval of a subscription by ?endpoint=.
func (h *Handler) GetSubscription(c *gin.Context) {
	endpoint := c.Query("endpoint")
	if endpoint == "" {
		h.writeError(c, apperr.Invalid("endpoint", "endpoint is required"))
		return
	}

	sub, err := h.store.GetSubscription(c.Request.Context(), endpoint)
	if errors.Is(err, store.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Error: "SUBSCRIPTION_NOT_FOUND", Detail: "subscription not found"})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"endpoint": sub.Endpoint, "device_id": sub.DeviceID})
}
