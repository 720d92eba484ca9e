// Package notification fans accepted broadcasts out to web push
// subscribers through a fixed pool of workers.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"beacon-network-backend/internal/metrics"
	"beacon-network-backend/internal/model"
	"beacon-network-backend/internal/store"
)

const queuePerWorker = 64

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Payload is the JSON body delivered to the service worker.
type Payload struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	MessageID string `json:"message_id"`
	SourceID  string `json:"source_id"`
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan string
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender
	metrics *metrics.Metrics
	log     *zap.Logger
	wg      sync.WaitGroup
}

// NewWorkerPool creates a new worker pool. m may be nil.
func NewWorkerPool(size int, s store.Store, webpushOptions *webpush.Options, m *metrics.Metrics, log *zap.Logger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan string, size*queuePerWorker),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		metrics: m,
		log:     log,
	}
}

// WithSender replaces the push transport.
func (wp *WorkerPool) WithSender(sender NotificationSender) *WorkerPool {
	wp.sender = sender
	return wp
}

// Start launches the worker goroutines. They exit when ctx is cancelled.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Wait blocks until every worker has exited.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	wp.log.Debug("notification worker started", zap.Int("worker", id))
	for {
		select {
		case messageID := <-wp.jobs:
			wp.notifyBroadcast(ctx, messageID)
		case <-ctx.Done():
			wp.log.Debug("notification worker stopped", zap.Int("worker", id))
			return
		}
	}
}

// Notify queues a broadcast for delivery. It never blocks; when the queue
// is full the notification is dropped.
func (wp *WorkerPool) Notify(messageID string) {
	select {
	case wp.jobs <- messageID:
	default:
		wp.log.Warn("notification queue full, dropping broadcast", zap.String("message_id", messageID))
		wp.metrics.PushResult("dropped")
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan string {
	return wp.jobs
}

func (wp *WorkerPool) notifyBroadcast(ctx context.Context, messageID string) {
	msg, err := wp.store.GetMessage(ctx, messageID)
	if err != nil {
		wp.log.Error("failed to load broadcast", zap.String("message_id", messageID), zap.Error(err))
		return
	}

	subscriptions, err := wp.store.ListSubscriptionsExcept(ctx, msg.SourceID)
	if err != nil {
		wp.log.Error("failed to list subscriptions", zap.String("message_id", messageID), zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(buildPayload(msg))
	if err != nil {
		wp.log.Error("failed to encode push payload", zap.String("message_id", messageID), zap.Error(err))
		return
	}

	wp.log.Info("sending broadcast notifications",
		zap.String("message_id", messageID),
		zap.Int("subscriptions", len(subscriptions)),
	)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// buildPayload never exposes ciphertext.
func buildPayload(msg *model.Message) Payload {
	body := msg.Content
	if msg.IsEncrypted {
		body = "(encrypted message)"
	}
	return Payload{
		Title:     "Beacon broadcast",
		Body:      body,
		MessageID: msg.MessageID,
		SourceID:  msg.SourceID,
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Warn("push delivery failed", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		wp.metrics.PushResult("failed")
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		wp.log.Info("push subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		wp.metrics.PushResult("expired")
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil && !errors.Is(err, context.Canceled) {
			wp.log.Error("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	case resp.StatusCode >= 300:
		wp.log.Warn("push service rejected notification", zap.String("endpoint", sub.Endpoint), zap.Int("status", resp.StatusCode))
		wp.metrics.PushResult("failed")
	default:
		wp.metrics.PushResult("sent")
	}
}
