package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"beacon-network-backend/config"
	"beacon-network-backend/internal/apperr"
	"beacon-network-backend/internal/device"
	"beacon-network-backend/internal/encryption"
	"beacon-network-backend/internal/marketplace"
	"beacon-network-backend/internal/metrics"
	"beacon-network-backend/internal/model"
	"beacon-network-backend/internal/relay"
	"beacon-network-backend/internal/store"
	"beacon-network-backend/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type notifySpy struct {
	mu  sync.Mutex
	ids []string
}

func (n *notifySpy) Notify(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, id)
}

type testServer struct {
	router   *gin.Engine
	store    store.Store
	metrics  *metrics.Metrics
	notified *notifySpy
}

func newTestServer(t *testing.T, pushOpts *webpush.Options) *testServer {
	t.Helper()
	log := zap.NewNop()
	s := store.NewGormStore(testutil.NewSQLite(t))

	key, err := encryption.GenerateKey()
	require.NoError(t, err)
	cipher, err := encryption.NewAESService(key)
	require.NoError(t, err)

	registry := device.NewRegistry(s, log)
	r := relay.New(s, registry, cipher, log)
	spy := &notifySpy{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	h := NewHandler(Dependencies{
		Devices:     registry,
		Relay:       r,
		Broadcasts:  relay.NewBroadcastRouter(r, spy, log),
		Marketplace: marketplace.NewEngine(s, registry, log),
		Store:       s,
		WebPush:     pushOpts,
		Metrics:     m,
		Log:         log,
	})
	cfg := config.ServerConfig{
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
		CacheTTLSeconds: 60,
		AllowedOrigins:  []string{"http://localhost:5173"},
	}
	return &testServer{router: NewRouter(cfg, h, reg, nil), store: s, metrics: m, notified: spy}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (ts *testServer) register(t *testing.T, name string) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/register-device", gin.H{"name": name})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[model.Device](t, w).DeviceID
}

func TestDevices(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/register-device", gin.H{"name": "Relay 7", "location": "Hill", "device_type": "router"})
	require.Equal(t, http.StatusOK, w.Code)
	d := decode[model.Device](t, w)
	assert.Equal(t, "Relay 7", d.Name)
	assert.Equal(t, model.DeviceStatusOnline, d.Status)
	assert.True(t, d.IsActive)
	require.NotNil(t, d.Location)
	assert.Equal(t, "Hill", *d.Location)

	w = ts.do(t, http.MethodPost, "/register-device", gin.H{"name": ""})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "name", decode[errorResponse](t, w).Field)

	w = ts.do(t, http.MethodPost, "/register-device", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, codeBadRequest, decode[errorResponse](t, w).Error)

	other := ts.register(t, "Relay 8")

	w = ts.do(t, http.MethodGet, "/nodes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.Device](t, w), 2)

	w = ts.do(t, http.MethodPut, "/devices/"+other+"/heartbeat", gin.H{"status": "offline"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.DeviceStatusOffline, decode[model.Device](t, w).Status)

	// The heartbeat flushed the cached list.
	w = ts.do(t, http.MethodGet, "/nodes?status=offline", nil)
	require.Equal(t, http.StatusOK, w.Code)
	offline := decode[[]model.Device](t, w)
	require.Len(t, offline, 1)
	assert.Equal(t, other, offline[0].DeviceID)

	w = ts.do(t, http.MethodPut, "/devices/"+other+"/heartbeat", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.DeviceStatusOnline, decode[model.Device](t, w).Status)

	w = ts.do(t, http.MethodGet, "/nodes?status=sleeping", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = ts.do(t, http.MethodDelete, "/devices/"+other, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = ts.do(t, http.MethodGet, "/nodes", nil)
	assert.Len(t, decode[[]model.Device](t, w), 1)

	w = ts.do(t, http.MethodDelete, "/devices/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "DEVICE_NOT_FOUND", decode[errorResponse](t, w).Error)
}

func TestMessages(t *testing.T) {
	ts := newTestServer(t, nil)
	a := ts.register(t, "A")
	b := ts.register(t, "B")

	t.Run("broadcast scenario", func(t *testing.T) {
		body := gin.H{"source_id": a, "content": "help", "is_broadcast": true, "max_hops": 10}
		w := ts.do(t, http.MethodPost, "/send-message", body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		msg := decode[map[string]any](t, w)
		assert.Equal(t, 0.0, msg["hop_count"])
		assert.Equal(t, true, msg["is_broadcast"])
		assert.Nil(t, msg["destination_id"])
		assert.NotContains(t, msg, "message_hash")

		w = ts.do(t, http.MethodPost, "/send-message", body)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "DUPLICATE_MESSAGE", decode[errorResponse](t, w).Error)
	})

	t.Run("direct message defaults max hops", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/send-message", gin.H{"source_id": a, "destination_id": b, "content": "ping"})
		require.Equal(t, http.StatusOK, w.Code)
		msg := decode[model.Message](t, w)
		assert.Equal(t, relay.DefaultHops, msg.MaxHops)
		require.NotNil(t, msg.DestinationID)
		assert.Equal(t, b, *msg.DestinationID)
	})

	t.Run("errors", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/send-message", gin.H{"source_id": "ghost", "content": "x"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		e := decode[errorResponse](t, w)
		assert.Equal(t, "SOURCE_NOT_FOUND", e.Error)
		assert.Equal(t, "ghost", e.ID)

		w = ts.do(t, http.MethodPost, "/send-message", gin.H{"source_id": a, "destination_id": "ghost", "content": "x"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "DESTINATION_NOT_FOUND", decode[errorResponse](t, w).Error)

		w = ts.do(t, http.MethodPost, "/send-message", gin.H{"source_id": a, "content": "x", "max_hops": 0})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "max_hops", decode[errorResponse](t, w).Field)

		w = ts.do(t, http.MethodPost, "/send-message", gin.H{"source_id": a, "content": ""})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "content", decode[errorResponse](t, w).Field)

		w = ts.do(t, http.MethodPost, "/send-message", gin.H{"source_id": a, "content": "x", "max_hops": "many"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("broadcast endpoint notifies and reports its own duplicate code", func(t *testing.T) {
		body := gin.H{"source_id": b, "content": "bridge out", "is_encrypted": true}
		w := ts.do(t, http.MethodPost, "/broadcast", body)
		require.Equal(t, http.StatusOK, w.Code)
		msg := decode[model.Message](t, w)
		assert.True(t, msg.IsEncrypted)
		assert.NotEqual(t, "bridge out", msg.Content)
		assert.Equal(t, []string{msg.MessageID}, ts.notified.ids)

		w = ts.do(t, http.MethodPost, "/broadcast", body)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "DUPLICATE_BROADCAST_MESSAGE", decode[errorResponse](t, w).Error)

		w = ts.do(t, http.MethodGet, "/decrypt/"+msg.MessageID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "bridge out", decode[map[string]string](t, w)["content"])

		w = ts.do(t, http.MethodGet, "/decrypt/missing", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("list for device", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/messages/"+b, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]model.Message](t, w), 3)

		w = ts.do(t, http.MethodGet, "/messages/"+b+"?limit=1", nil)
		assert.Len(t, decode[[]model.Message](t, w), 1)

		w = ts.do(t, http.MethodGet, "/messages/"+b+"?limit=abc", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		w = ts.do(t, http.MethodGet, "/messages/"+b+"?limit=5000", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestDuplicateMetricsFollowRouting(t *testing.T) {
	ts := newTestServer(t, nil)
	a := ts.register(t, "A")
	b := ts.register(t, "B")

	// An empty destination routes as a broadcast.
	empty := gin.H{"source_id": a, "destination_id": "", "content": "roll call"}
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/send-message", empty).Code)
	require.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, "/send-message", empty).Code)

	direct := gin.H{"source_id": a, "destination_id": b, "content": "roll call"}
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/send-message", direct).Code)
	require.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, "/send-message", direct).Code)

	assert.Equal(t, 1.0, promtest.ToFloat64(ts.metrics.DuplicatesRejected.WithLabelValues("broadcast")))
	assert.Equal(t, 1.0, promtest.ToFloat64(ts.metrics.DuplicatesRejected.WithLabelValues("direct")))
	assert.Equal(t, 1.0, promtest.ToFloat64(ts.metrics.MessagesAccepted.WithLabelValues("broadcast")))
}

func TestRouterWithoutOrigins(t *testing.T) {
	h := NewHandler(Dependencies{Log: zap.NewNop()})
	var r *gin.Engine
	require.NotPanics(t, func() {
		r = NewRouter(config.ServerConfig{RateLimitPerSec: 1, RateLimitBurst: 1}, h, nil, nil)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDecryptFailure(t *testing.T) {
	ts := newTestServer(t, nil)
	a := ts.register(t, "A")

	now := time.Now().UTC()
	require.NoError(t, ts.store.CreateMessage(context.Background(), &model.Message{
		MessageID: "sealed-elsewhere", SourceID: a, Content: "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		IsEncrypted: true, MaxHops: 1, IsBroadcast: true, Fingerprint: "x", Timestamp: now, CreatedAt: now,
	}))

	w := ts.do(t, http.MethodGet, "/decrypt/sealed-elsewhere", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	e := decode[errorResponse](t, w)
	assert.Equal(t, "DECRYPTION_FAILED", e.Error)
	assert.Equal(t, "sealed-elsewhere", e.ID)
}

func TestMarketplace(t *testing.T) {
	ts := newTestServer(t, nil)
	a := ts.register(t, "A")

	offer := gin.H{"device_id": a, "title": "Spare disk", "resource_type": "storage", "quantity": 10, "unit": "GB", "price_credits": 5}
	w := ts.do(t, http.MethodPost, "/marketplace", offer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	l := decode[model.MarketplaceListing](t, w)
	assert.Equal(t, 10.0, l.Available)
	assert.Equal(t, "available", l.Status)

	expired := gin.H{"device_id": a, "title": "Old", "resource_type": "storage", "quantity": 1, "unit": "GB", "price_credits": 0,
		"expires_at": time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)}
	w = ts.do(t, http.MethodPost, "/marketplace", expired)
	require.Equal(t, http.StatusOK, w.Code)
	old := decode[model.MarketplaceListing](t, w)

	w = ts.do(t, http.MethodGet, "/marketplace", nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode[[]model.MarketplaceListing](t, w)
	require.Len(t, listed, 1)
	assert.Equal(t, l.ListingID, listed[0].ListingID)

	w = ts.do(t, http.MethodPost, "/marketplace", gin.H{"device_id": a, "title": "x", "resource_type": "storage", "quantity": 0, "unit": "GB"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "quantity", decode[errorResponse](t, w).Field)

	w = ts.do(t, http.MethodPost, "/marketplace", gin.H{"device_id": "ghost", "title": "x", "resource_type": "storage", "quantity": 1, "unit": "GB"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "DEVICE_NOT_FOUND", decode[errorResponse](t, w).Error)

	w = ts.do(t, http.MethodPatch, "/marketplace/"+l.ListingID, gin.H{"available": 3})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3.0, decode[model.MarketplaceListing](t, w).Available)

	w = ts.do(t, http.MethodPatch, "/marketplace/"+l.ListingID, gin.H{"available": 30})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = ts.do(t, http.MethodPut, "/marketplace/"+l.ListingID+"/resolve", gin.H{"resolved_with": "B", "status": "sold"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Listing resolved successfully","data":{"listing_id":"`+l.ListingID+`","status":"sold"}}`, w.Body.String())

	w = ts.do(t, http.MethodPut, "/marketplace/"+l.ListingID+"/resolve", gin.H{"resolved_with": "C", "status": "sold"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "LISTING_ALREADY_RESOLVED", decode[errorResponse](t, w).Error)

	w = ts.do(t, http.MethodPut, "/marketplace/"+old.ListingID+"/resolve", gin.H{"resolved_with": "C", "status": "sold"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "LISTING_EXPIRED", decode[errorResponse](t, w).Error)

	w = ts.do(t, http.MethodPut, "/marketplace/missing/resolve", gin.H{"resolved_with": "C", "status": "sold"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "LISTING_NOT_FOUND", decode[errorResponse](t, w).Error)

	w = ts.do(t, http.MethodGet, "/marketplace/"+l.ListingID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[model.MarketplaceListing](t, w)
	assert.Equal(t, "sold", got.Status)
	assert.Equal(t, "B", *got.ResolvedWith)

	w = ts.do(t, http.MethodGet, "/marketplace?status=sold", nil)
	assert.Len(t, decode[[]model.MarketplaceListing](t, w), 1)
}

func TestSubscriptions(t *testing.T) {
	ts := newTestServer(t, &webpush.Options{VAPIDPublicKey: "BPubKey"})
	a := ts.register(t, "A")

	sub := gin.H{"endpoint": "https://push.example/x?token=a b", "p256dh": "k", "auth": "s", "device_id": a}
	w := ts.do(t, http.MethodPut, "/subscriptions", sub)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/subscriptions?endpoint=https%3A%2F%2Fpush.example%2Fx%3Ftoken%3Da%20b", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, a, decode[map[string]string](t, w)["device_id"])

	w = ts.do(t, http.MethodPut, "/subscriptions", gin.H{"endpoint": "https://push.example/y", "p256dh": "k", "auth": "s", "device_id": "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPut, "/subscriptions", gin.H{"endpoint": "https://push.example/y"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = ts.do(t, http.MethodDelete, "/subscriptions", gin.H{"endpoint": "https://push.example/x?token=a b"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, "/subscriptions?endpoint=https%3A%2F%2Fpush.example%2Fx%3Ftoken%3Da%20b", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/subscriptions", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = ts.do(t, http.MethodGet, "/vapid_public_key", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"BPubKey"}`, w.Body.String())
}

func TestVAPIDKeyDisabled(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodGet, "/vapid_public_key", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode[errorResponse](t, w)
	assert.Equal(t, apperr.CodePushDisabled, body.Error)
	assert.Equal(t, "vapid keys are not configured", body.Detail)
}

func TestOpsEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.register(t, "A")

	w := ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, w)["status"])

	w = ts.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, serviceName, decode[map[string]string](t, w)["name"])

	w = ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "beacon_devices_registered_total 1"))
	assert.Contains(t, w.Body.String(), `beacon_http_requests_total{method="POST",path="/register-device",status="200"} 1`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
