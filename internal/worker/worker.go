package worker

import (
	"context"
	"errors"
	"fmt"

	"securemarket/internal/broker"
	"securemarket/internal/models"
	"securemarket/internal/service"
	"securemarket/internal/state"
	"securemarket/internal/util"

	"go.uber.org/zap"
)

// EventLedger remembers which events have been handled
type EventLedger interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// IntentWorker dispatches intent commands consumed from the message bus
type IntentWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *service.ApplicationStore
	ledger       EventLedger
	logger       *zap.Logger
}

// NewIntentWorker creates a new intent worker
func NewIntentWorker(
	consumer *broker.Consumer,
	store *service.ApplicationStore,
	ledger EventLedger,
) *IntentWorker {
	w := &IntentWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		store:        store,
		ledger:       ledger,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnIntentCommand(w.HandleIntentCommand)
	return w
}

// Start starts the worker
func (w *IntentWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting intent worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *IntentWorker) Stop() error {
	w.logger.Info("Stopping intent worker")
	return w.consumer.Close()
}

// HandleIntentCommand decodes and dispatches one intent command. Redelivered
// commands are skipped. Rejected or undecodable intents are final and are not retried.
func (w *IntentWorker) HandleIntentCommand(ctx context.Context, event *models.IntentCommandEvent) error {
	ctx, span := util.StartSpan(ctx, "IntentWorker.HandleIntentCommand")
	defer span.End()

	processed, err := w.ledger.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		util.IntentCommandsConsumedTotal.WithLabelValues("duplicate").Inc()
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	result := "applied"
	in, err := state.DecodeIntent(event.Intent)
	if err != nil {
		result = "invalid"
		w.logger.Warn("Dropping undecodable intent command",
			zap.String("event_id", event.EventID),
			zap.Error(err))
	} else if _, err := w.store.Dispatch(ctx, in); err != nil {
		if errors.Is(err, state.ErrUnknownIntent) {
			result = "invalid"
		} else {
			result = "rejected"
		}
		w.logger.Info("Intent command rejected",
			zap.String("event_id", event.EventID),
			zap.String("kind", string(in.Kind())),
			zap.String("reason", state.Reason(err)))
	}
	util.IntentCommandsConsumedTotal.WithLabelValues(result).Inc()

	if err := w.ledger.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		w.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}
