package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"beacon-network-backend/internal/apperr"
	"beacon-network-backend/internal/relay"
)

type sendMessageRequest struct {
	SourceID      string  `json:"source_id" binding:"required"`
	DestinationID *string `json:"destination_id"`
	Content       string  `json:"content" binding:"required"`
	IsEncrypted   bool    `json:"is_encrypted"`
	IsBroadcast   bool    `json:"is_broadcast"`
	MaxHops       *int    `json:"max_hops"`
}

type broadcastRequest struct {
	SourceID    string `json:"source_id" binding:"required"`
	Content     string `json:"content" binding:"required"`
	IsEncrypted bool   `json:"is_encrypted"`
	MaxHops     *int   `json:"max_hops"`
}

type pageQuery struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

func hopsOrDefault(v *int) int {
	if v == nil {
		return relay.DefaultHops
	}
	return *v
}

func kindLabel(broadcast bool) string {
	if broadcast {
		return "broadcast"
	}
	return "direct"
}

// SendMessage handles POST /send-message.
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	sub := relay.Submission{
		SourceID:      req.SourceID,
		DestinationID: req.DestinationID,
		Content:       req.Content,
		Encrypted:     req.IsEncrypted,
		MaxHops:       hopsOrDefault(req.MaxHops),
		Broadcast:     req.IsBroadcast,
	}
	msg, err := h.relay.Submit(c.Request.Context(), sub)
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			h.metrics.DuplicateRejected(kindLabel(sub.IsBroadcast()))
		}
		h.writeError(c, err)
		return
	}
	h.metrics.MessageAccepted(kindLabel(msg.IsBroadcast))
	c.JSON(http.StatusOK, msg)
}

// Broadcast handles POST /broadcast.
func (h *Handler) Broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	msg, err := h.broadcasts.Broadcast(c.Request.Context(), req.SourceID, req.Content, req.IsEncrypted, hopsOrDefault(req.MaxHops))
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			h.metrics.DuplicateRejected("broadcast")
		}
		h.writeError(c, err)
		return
	}
	h.metrics.MessageAccepted("broadcast")
	c.JSON(http.StatusOK, msg)
}

// ListMessages handles GET /messages/:device_id.
func (h *Handler) ListMessages(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.writeBindError(c, err)
		return
	}

	messages, err := h.relay.ListForDevice(c.Request.Context(), c.Param("device_id"), q.Limit, q.Offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// DecryptMessage handles GET /decrypt/:message_id.
func (h *Handler) DecryptMessage(c *gin.Context) {
	id := c.Param("message_id")
	content, err := h.relay.Open(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_id": id, "content": content})
}
