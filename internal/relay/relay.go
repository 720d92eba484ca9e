// Package relay accepts direct and broadcast messages, suppressing
// duplicates by content fingerprint before anything is persisted.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"beacon-network-backend/internal/apperr"
	"beacon-network-backend/internal/encryption"
	"beacon-network-backend/internal/model"
	"beacon-network-backend/internal/store"
)

// Hop ceiling bounds accepted from callers.
const (
	MinHops     = 1
	MaxHops     = 100
	DefaultHops = 10
)

// Message listing bounds.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// DeviceChecker resolves device references.
type DeviceChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Submission is an inbound message. A nil DestinationID means broadcast.
type Submission struct {
	SourceID      string
	DestinationID *string
	Content       string
	Encrypted     bool
	MaxHops       int
	Broadcast     bool
}

// Relay records accepted messages.
type Relay struct {
	store   store.Store
	devices DeviceChecker
	cipher  encryption.Service
	log     *zap.Logger
	now     func() time.Time
}

// New creates a relay.
func New(s store.Store, devices DeviceChecker, cipher encryption.Service, log *zap.Logger) *Relay {
	return &Relay{
		store:   s,
		devices: devices,
		cipher:  cipher,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source; used by tests.
func (r *Relay) WithClock(now func() time.Time) *Relay {
	r.now = now
	return r
}

// IsBroadcast reports whether sub is routed to every device. A broadcast
// never carries a destination, and a missing destination means broadcast.
func (sub Submission) IsBroadcast() bool {
	return sub.Broadcast || sub.DestinationID == nil || *sub.DestinationID == ""
}

// Submit validates, deduplicates and stores a message.
func (r *Relay) Submit(ctx context.Context, sub Submission) (*model.Message, error) {
	return r.submit(ctx, sub, apperr.CodeDuplicateMessage)
}

func (r *Relay) submit(ctx context.Context, sub Submission, dupCode string) (*model.Message, error) {
	if sub.SourceID == "" {
		return nil, apperr.Invalid("source_id", "source_id must not be empty")
	}
	if sub.Content == "" {
		return nil, apperr.Invalid("content", "content must not be empty")
	}
	if sub.MaxHops < MinHops || sub.MaxHops > MaxHops {
		return nil, apperr.Invalid("max_hops", fmt.Sprintf("max_hops must be between %d and %d", MinHops, MaxHops))
	}

	broadcast := sub.IsBroadcast()
	destination := BroadcastSentinel
	var destinationID *string
	if !broadcast {
		destination = *sub.DestinationID
		destinationID = sub.DestinationID
	}

	ok, err := r.devices.Exists(ctx, sub.SourceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound(apperr.CodeSourceNotFound, sub.SourceID, "source device not found")
	}
	if !broadcast {
		ok, err := r.devices.Exists(ctx, destination)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.NotFound(apperr.CodeDestinationNotFound, destination, "destination device not found")
		}
	}

	fingerprint := Fingerprint(sub.SourceID, destination, sub.Content)
	dup, err := r.store.FingerprintExists(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, duplicate(dupCode, fingerprint)
	}

	content := sub.Content
	if sub.Encrypted {
		content, err = r.cipher.Encrypt(sub.Content)
		if err != nil {
			return nil, fmt.Errorf("encrypt message content: %w", err)
		}
	}

	now := r.now()
	msg := &model.Message{
		MessageID:     uuid.NewString(),
		SourceID:      sub.SourceID,
		DestinationID: destinationID,
		Content:       content,
		IsEncrypted:   sub.Encrypted,
		Timestamp:     now,
		HopCount:      0,
		MaxHops:       sub.MaxHops,
		IsBroadcast:   broadcast,
		Fingerprint:   fingerprint,
		Delivered:     false,
		CreatedAt:     now,
	}

	// The probe above can race another writer; the unique index decides.
	if err := r.store.CreateMessage(ctx, msg); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, duplicate(dupCode, fingerprint)
		}
		return nil, err
	}

	r.log.Debug("message accepted",
		zap.String("message_id", msg.MessageID),
		zap.String("source_id", msg.SourceID),
		zap.Bool("broadcast", msg.IsBroadcast),
		zap.Bool("encrypted", msg.IsEncrypted),
	)
	return msg, nil
}

func duplicate(code, fingerprint string) error {
	msg := "duplicate message detected"
	if code == apperr.CodeDuplicateBroadcast {
		msg = "duplicate broadcast message detected"
	}
	return apperr.Conflict(code, fingerprint, msg)
}

// ListForDevice returns the messages a device sent or received plus all
// broadcasts, newest first. A zero limit selects DefaultLimit.
func (r *Relay) ListForDevice(ctx context.Context, deviceID string, limit, offset int) ([]model.Message, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 || limit > MaxLimit {
		return nil, apperr.Invalid("limit", fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
	}
	if offset < 0 {
		return nil, apperr.Invalid("offset", "offset must not be negative")
	}
	return r.store.ListMessagesForDevice(ctx, deviceID, limit, offset)
}

// Open returns the plaintext of a stored message.
func (r *Relay) Open(ctx context.Context, messageID string) (string, error) {
	msg, err := r.store.GetMessage(ctx, messageID)
	if errors.Is(err, store.ErrNotFound) {
		return "", apperr.NotFound(apperr.CodeMessageNotFound, messageID, "message not found")
	}
	if err != nil {
		return "", err
	}
	if !msg.IsEncrypted {
		return msg.Content, nil
	}

	plain, err := r.cipher.Decrypt(msg.Content)
	if err != nil {
		return "", apperr.Decryption(messageID, err)
	}
	return plain, nil
}
