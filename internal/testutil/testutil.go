// Package testutil holds database and fixture helpers shared by tests.
package testutil

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"beacon-network-backend/internal/db"
	"beacon-network-backend/internal/model"
)

// NewSQLite opens an isolated, migrated in-memory database. A single
// connection keeps the shared-cache database alive and serializes writers.
func NewSQLite(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gormDB))
	return gormDB
}

// NewDevice returns an active, online Device suitable for test fixtures.
// Override individual fields with options.
func NewDevice(opts ...func(*model.Device)) model.Device {
	now := time.Now().UTC()
	d := model.Device{
		DeviceID:  uuid.NewString(),
		Name:      "test-node",
		Status:    model.DeviceStatusOnline,
		LastSeen:  now,
		CreatedAt: now,
		IsActive:  true,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// WithName sets the device name.
func WithName(name string) func(*model.Device) {
	return func(d *model.Device) { d.Name = name }
}

// WithStatus sets the device status.
func WithStatus(s string) func(*model.Device) {
	return func(d *model.Device) { d.Status = s }
}

// WithCreatedAt sets the creation and last-seen timestamps.
func WithCreatedAt(at time.Time) func(*model.Device) {
	return func(d *model.Device) {
		d.CreatedAt = at
		d.LastSeen = at
	}
}

// Seed inserts fixtures and fails the test on error.
func Seed(t *testing.T, gormDB *gorm.DB, values ...any) {
	t.Helper()
	for _, v := range values {
		require.NoError(t, gormDB.Create(v).Error)
	}
}

// Clock is a deterministic, manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at t.
func NewClock(t time.Time) *Clock { return &Clock{now: t.UTC()} }

// Now returns the current instant and advances the clock by a second so
// successive records get distinct timestamps.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

// Peek returns the current instant without advancing.
func (c *Clock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
