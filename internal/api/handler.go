// Package api exposes the device registry, message relay and marketplace
// over HTTP.
package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"beacon-network-backend/internal/device"
	"beacon-network-backend/internal/marketplace"
	"beacon-network-backend/internal/metrics"
	"beacon-network-backend/internal/relay"
	"beacon-network-backend/internal/store"
)

// Dependencies are the services a Handler dispatches to. Metrics and
// WebPush may be nil.
type Dependencies struct {
	Devices     *device.Registry
	Relay       *relay.Relay
	Broadcasts  *relay.BroadcastRouter
	Marketplace *marketplace.Engine
	Store       store.Store
	WebPush     *webpush.Options
	Metrics     *metrics.Metrics
	Log         *zap.Logger
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	devices     *device.Registry
	relay       *relay.Relay
	broadcasts  *relay.BroadcastRouter
	marketplace *marketplace.Engine
	store       store.Store
	webpush     *webpush.Options
	metrics     *metrics.Metrics
	log         *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d Dependencies) *Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		devices:     d.Devices,
		relay:       d.Relay,
		broadcasts:  d.Broadcasts,
		marketplace: d.Marketplace,
		store:       d.Store,
		webpush:     d.WebPush,
		metrics:     d.Metrics,
		log:         log,
	}
}
