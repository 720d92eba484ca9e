package relay

import (
	"context"

	"go.uber.org/zap"

	"beacon-network-backend/internal/apperr"
	"beacon-network-backend/internal/model"
)

// Notifier is told about every accepted broadcast. Notify must not block.
type Notifier interface {
	Notify(messageID string)
}

// BroadcastRouter is the fan-out entry point over a Relay.
type BroadcastRouter struct {
	relay    *Relay
	notifier Notifier
	log      *zap.Logger
}

// NewBroadcastRouter creates a router. notifier may be nil.
func NewBroadcastRouter(r *Relay, notifier Notifier, log *zap.Logger) *BroadcastRouter {
	return &BroadcastRouter{relay: r, notifier: notifier, log: log}
}

// Broadcast submits content to every node. Duplicates are reported as
// DUPLICATE_BROADCAST_MESSAGE.
func (b *BroadcastRouter) Broadcast(ctx context.Context, sourceID, content string, encrypted bool, maxHops int) (*model.Message, error) {
	msg, err := b.relay.submit(ctx, Submission{
		SourceID:  sourceID,
		Content:   content,
		Encrypted: encrypted,
		MaxHops:   maxHops,
		Broadcast: true,
	}, apperr.CodeDuplicateBroadcast)
	if err != nil {
		return nil, err
	}

	b.log.Info("broadcast accepted", zap.String("message_id", msg.MessageID), zap.String("source_id", sourceID), zap.Int("max_hops", maxHops))
	if b.notifier != nil {
		b.notifier.Notify(msg.MessageID)
	}
	return msg, nil
}
