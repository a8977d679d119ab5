package devices

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"credential-service/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrInvalidDevice  = errors.New("invalid device record")
)

// StatusCache mirrors device status to a shared store so multiple
// verification stations see the same availability picture. The
// production implementation is Redis-backed; a nil cache keeps the
// registry purely in-process.
type StatusCache interface {
	SetStatus(ctx context.Context, deviceID string, status models.DeviceStatus, lastSync time.Time) error
	GetStatus(ctx context.Context, deviceID string) (models.DeviceStatus, time.Time, error)
}

// Registry tracks external biometric hardware. Devices are registered
// by an explicit connect operation and have their status refreshed by
// periodic sync calls from the device side.
type Registry struct {
	cache  StatusCache
	logger *zap.Logger

	mu      sync.RWMutex
	devices map[string]models.DeviceRecord
}

func NewRegistry(cache StatusCache, logger *zap.Logger) *Registry {
	return &Registry{
		cache:   cache,
		logger:  logger,
		devices: make(map[string]models.DeviceRecord),
	}
}

// Connect registers a device and marks it online. An empty id is
// assigned a fresh one.
func (r *Registry) Connect(ctx context.Context, rec models.DeviceRecord) (models.DeviceRecord, error) {
	switch rec.Type {
	case models.DeviceFingerprint, models.DeviceFace, models.DeviceIris, models.DeviceVoice:
	default:
		return models.DeviceRecord{}, ErrInvalidDevice
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.Status = models.DeviceOnline
	rec.LastSync = time.Now()

	r.mu.Lock()
	r.devices[rec.ID] = rec
	r.mu.Unlock()

	r.writeCache(ctx, rec)
	r.logger.Info("device connected",
		zap.String("device_id", rec.ID),
		zap.String("type", string(rec.Type)),
		zap.String("location", rec.Location),
	)
	return rec, nil
}

// UpdateStatus records a status report from a device sync.
func (r *Registry) UpdateStatus(ctx context.Context, deviceID string, status models.DeviceStatus) (models.DeviceRecord, error) {
	switch status {
	case models.DeviceOnline, models.DeviceOffline, models.DeviceMaintenance:
	default:
		return models.DeviceRecord{}, ErrInvalidDevice
	}

	r.mu.Lock()
	rec, ok := r.devices[deviceID]
	if !ok {
		r.mu.Unlock()
		return models.DeviceRecord{}, ErrDeviceNotFound
	}
	rec.Status = status
	rec.LastSync = time.Now()
	r.devices[deviceID] = rec
	r.mu.Unlock()

	r.writeCache(ctx, rec)
	return rec, nil
}

func (r *Registry) writeCache(ctx context.Context, rec models.DeviceRecord) {
	if r.cache == nil {
		return
	}
	if err := r.cache.SetStatus(ctx, rec.ID, rec.Status, rec.LastSync); err != nil {
		r.logger.Warn("failed to cache device status",
			zap.String("device_id", rec.ID),
			zap.Error(err),
		)
	}
}

// List returns all registered devices ordered by id.
func (r *Registry) List() []models.DeviceRecord {
	r.mu.RLock()
	out := make([]models.DeviceRecord, 0, len(r.devices))
	for _, rec := range r.devices {
		out = append(out, rec)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns a single device record.
func (r *Registry) Get(deviceID string) (models.DeviceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.devices[deviceID]
	if !ok {
		return models.DeviceRecord{}, ErrDeviceNotFound
	}
	return rec, nil
}
