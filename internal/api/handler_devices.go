package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"beacon-network-backend/internal/device"
)

type registerDeviceRequest struct {
	Name       string  `json:"name" binding:"required,max=255"`
	Location   *string `json:"location"`
	DeviceType *string `json:"device_type"`
}

// RegisterDevice handles POST /register-device.
func (h *Handler) RegisterDevice(c *gin.Context) {
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	d, err := h.devices.Register(c.Request.Context(), device.RegisterInput{
		Name:       req.Name,
		Location:   req.Location,
		DeviceType: req.DeviceType,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.metrics.DeviceRegistered()
	c.JSON(http.StatusOK, d)
}

// ListNodes handles GET /nodes?status=.
func (h *Handler) ListNodes(c *gin.Context) {
	devices, err := h.devices.ListActive(c.Request.Context(), c.Query("status"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, devices)
}

type heartbeatRequest struct {
	Status string `json:"status"`
}

// Heartbeat handles PUT /devices/:device_id/heartbeat. The body is optional.
func (h *Handler) Heartbeat(c *gin.Context) {
	var req heartbeatRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.writeBindError(c, err)
			return
		}
	}

	d, err := h.devices.Heartbeat(c.Request.Context(), c.Param("device_id"), req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// RetireDevice handles DELETE /devices/:device_id.
func (h *Handler) RetireDevice(c *gin.Context) {
	if err := h.devices.Retire(c.Request.Context(), c.Param("device_id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
