package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"securemarket/internal/models"
	"securemarket/internal/state"
	"securemarket/internal/store"
	"securemarket/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventPublisher publishes store events
type EventPublisher interface {
	PublishIntentEvent(ctx context.Context, event *models.IntentEvent) error
}

// Result describes the outcome of a dispatched intent
type Result struct {
	Kind     state.Kind      `json:"kind"`
	Applied  bool            `json:"applied"`
	Reason   string          `json:"reason,omitempty"`
	Snapshot models.Snapshot `json:"-"`
}

// ApplicationStore owns the application snapshot. Intents are applied one at a
// time; every applied intent replaces the snapshot and persists it.
type ApplicationStore struct {
	// writeMu serializes Restore and Dispatch, persistence included.
	// mu guards snapshot and is never held across I/O.
	writeMu   sync.Mutex
	mu        sync.RWMutex
	snapshot  models.Snapshot
	env       state.Env
	repo      *SnapshotRepository
	publisher EventPublisher
	seed      func() models.Snapshot
	logger    *zap.Logger
}

// NewApplicationStore creates a store holding the seed snapshot until Restore is called.
// publisher may be nil.
func NewApplicationStore(
	repo *SnapshotRepository,
	publisher EventPublisher,
	env state.Env,
	seed func() models.Snapshot,
) *ApplicationStore {
	return &ApplicationStore{
		snapshot:  seed(),
		env:       env,
		repo:      repo,
		publisher: publisher,
		seed:      seed,
		logger:    util.GetLogger(),
	}
}

// Snapshot returns the current snapshot
func (s *ApplicationStore) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *ApplicationStore) swap(next models.Snapshot) {
	s.mu.Lock()
	s.snapshot = next
	s.mu.Unlock()
}

// Restore loads the persisted snapshot. An empty or corrupt slot falls back to
// the seed snapshot, which is then written back to the slot. When the slot cannot
// be read at all the error is returned and nothing is written.
func (s *ApplicationStore) Restore(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "ApplicationStore.Restore")
	defer span.End()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	persisted, found, err := s.repo.Load(ctx)
	switch {
	case errors.Is(err, store.ErrCorruptSnapshot):
		util.SnapshotRestoreTotal.WithLabelValues("seed_after_corrupt").Inc()
		s.logger.Warn("Persisted snapshot is corrupt, starting from seed data",
			zap.String("key", s.repo.Key()),
			zap.Error(err))
	case err != nil:
		util.SnapshotRestoreTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to restore snapshot: %w", err)
	case !found:
		util.SnapshotRestoreTotal.WithLabelValues("seed").Inc()
		s.logger.Info("No persisted snapshot, starting from seed data", zap.String("key", s.repo.Key()))
	default:
		next, _ := state.Apply(s.snapshot, state.LoadSnapshot{Snapshot: persisted}, s.env)
		s.swap(next)
		util.SnapshotRestoreTotal.WithLabelValues("slot").Inc()
		s.logger.Info("Snapshot restored",
			zap.String("key", s.repo.Key()),
			zap.Int("products", len(next.Products)),
			zap.Int("users", len(next.Users)),
			zap.Int("messages", len(next.Messages)))
		return nil
	}

	seed := s.seed()
	s.swap(seed)
	return s.repo.Save(ctx, seed)
}

// Dispatch applies an intent. A rejected intent leaves the snapshot unchanged and
// returns the rejection as the error; the result carries the reason either way.
// Readers see the new snapshot before it has been persisted.
func (s *ApplicationStore) Dispatch(ctx context.Context, in state.Intent) (Result, error) {
	ctx, span := util.StartSpan(ctx, "ApplicationStore.Dispatch")
	defer span.End()

	start := time.Now()
	defer func() {
		util.IntentApplyLatency.Observe(time.Since(start).Seconds())
	}()

	kind := state.Kind("")
	if in != nil {
		kind = in.Kind()
	}

	s.writeMu.Lock()
	current := s.snapshot
	next, err := state.Apply(current, in, s.env)
	if err != nil {
		s.writeMu.Unlock()

		reason := state.Reason(err)
		util.IntentsRejectedTotal.WithLabelValues(string(kind), reason).Inc()
		s.logger.Info("Intent rejected",
			zap.String("kind", string(kind)),
			zap.String("reason", reason),
			zap.Error(err))
		s.publish(ctx, models.EventTypeIntentRejected, kind, reason, current)

		return Result{Kind: kind, Reason: reason, Snapshot: current}, err
	}

	s.swap(next)
	if err := s.repo.Save(ctx, next); err != nil {
		s.logger.Error("Failed to persist snapshot",
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
	s.writeMu.Unlock()

	util.IntentsAppliedTotal.WithLabelValues(string(kind)).Inc()
	s.logger.Debug("Intent applied", zap.String("kind", string(kind)))
	s.publish(ctx, models.EventTypeIntentApplied, kind, "", next)

	return Result{Kind: kind, Applied: true, Snapshot: next}, nil
}

func (s *ApplicationStore) publish(ctx context.Context, eventType string, kind state.Kind, reason string, snap models.Snapshot) {
	if s.publisher == nil {
		return
	}

	event := &models.IntentEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: time.Now(),
		},
		Kind:      string(kind),
		Reason:    reason,
		CartItems: len(snap.Cart),
		Products:  len(snap.Products),
		Users:     len(snap.Users),
		Messages:  len(snap.Messages),
	}
	if snap.CurrentUser != nil {
		event.CurrentUserID = snap.CurrentUser.ID
	}

	if err := s.publisher.PublishIntentEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish intent event",
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}
