package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"securemarket/internal/models"
	"securemarket/internal/store"
	"securemarket/internal/util"

	"go.uber.org/zap"
)

// ErrSlotLocked is returned when another writer holds the slot lock
var ErrSlotLocked = errors.New("snapshot slot locked by another writer")

// SlotStore is a durable key-value slot. LoadSlot returns nil, nil for an empty slot.
type SlotStore interface {
	LoadSlot(ctx context.Context, key string) ([]byte, error)
	SaveSlot(ctx context.Context, key string, value []byte) error
}

// Locker guards slot writes across processes
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// SnapshotRepository reads and writes the application snapshot. An optional
// cache is consulted before the primary slot and refreshed after every write.
type SnapshotRepository struct {
	key     string
	primary SlotStore
	cache   SlotStore
	locker  Locker
	lockTTL time.Duration
	logger  *zap.Logger
}

// NewSnapshotRepository creates a repository over primary. cache and locker may be nil.
func NewSnapshotRepository(key string, primary, cache SlotStore, locker Locker) *SnapshotRepository {
	if key == "" {
		key = store.DefaultSlotKey
	}
	return &SnapshotRepository{
		key:     key,
		primary: primary,
		cache:   cache,
		locker:  locker,
		lockTTL: 5 * time.Second,
		logger:  util.GetLogger(),
	}
}

// Key returns the slot key
func (r *SnapshotRepository) Key() string {
	return r.key
}

// Load returns the persisted snapshot. found is false when no snapshot has been stored.
// Unreadable data is reported as store.ErrCorruptSnapshot; any other error means
// the primary slot could not be reached.
func (r *SnapshotRepository) Load(ctx context.Context) (snapshot models.Snapshot, found bool, err error) {
	ctx, span := util.StartSpan(ctx, "SnapshotRepository.Load")
	defer span.End()

	if r.cache != nil {
		data, err := r.cache.LoadSlot(ctx, r.key)
		switch {
		case err != nil:
			util.SnapshotCacheTotal.WithLabelValues("error").Inc()
			r.logger.Warn("Snapshot cache read failed, falling back to primary", zap.Error(err))
		case data == nil:
			util.SnapshotCacheTotal.WithLabelValues("miss").Inc()
		default:
			s, err := store.DecodeSnapshot(data)
			if err == nil {
				util.SnapshotCacheTotal.WithLabelValues("hit").Inc()
				return s, true, nil
			}
			util.SnapshotCacheTotal.WithLabelValues("corrupt").Inc()
			r.logger.Warn("Cached snapshot is corrupt, falling back to primary", zap.Error(err))
		}
	}

	data, err := r.primary.LoadSlot(ctx, r.key)
	if err != nil {
		return models.Snapshot{}, false, fmt.Errorf("failed to read snapshot slot: %w", err)
	}
	if data == nil {
		return models.Snapshot{}, false, nil
	}

	s, err := store.DecodeSnapshot(data)
	if err != nil {
		return models.Snapshot{}, false, err
	}

	// Repopulated before returning so a later Save cannot be overtaken.
	if r.cache != nil {
		if err := r.cache.SaveSlot(ctx, r.key, data); err != nil {
			r.logger.Warn("Failed to populate snapshot cache", zap.Error(err))
		}
	}

	return s, true, nil
}

// Save writes the snapshot to the primary slot, then to the cache
func (r *SnapshotRepository) Save(ctx context.Context, s models.Snapshot) error {
	ctx, span := util.StartSpan(ctx, "SnapshotRepository.Save")
	defer span.End()

	start := time.Now()
	defer func() {
		util.SnapshotPersistLatency.Observe(time.Since(start).Seconds())
	}()

	data, err := store.EncodeSnapshot(s)
	if err != nil {
		util.SnapshotPersistFailedTotal.WithLabelValues("encode").Inc()
		return err
	}

	if r.locker != nil {
		ok, err := r.locker.AcquireLock(ctx, r.key, r.lockTTL)
		if err != nil {
			util.SnapshotPersistFailedTotal.WithLabelValues("lock_error").Inc()
			return fmt.Errorf("failed to acquire slot lock: %w", err)
		}
		if !ok {
			util.SnapshotPersistFailedTotal.WithLabelValues("locked").Inc()
			return ErrSlotLocked
		}
		defer func() {
			if err := r.locker.ReleaseLock(ctx, r.key); err != nil {
				r.logger.Warn("Failed to release slot lock", zap.Error(err))
			}
		}()
	}

	if err := r.primary.SaveSlot(ctx, r.key, data); err != nil {
		util.SnapshotPersistFailedTotal.WithLabelValues("primary").Inc()
		return err
	}

	if r.cache != nil {
		if err := r.cache.SaveSlot(ctx, r.key, data); err != nil {
			util.SnapshotPersistFailedTotal.WithLabelValues("cache").Inc()
			r.logger.Warn("Failed to refresh snapshot cache", zap.Error(err))
		}
	}

	return nil
}
