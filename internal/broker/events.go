package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"securemarket/internal/models"
	"securemarket/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing store events and intent commands
type EventPublisher struct {
	events   *Producer
	commands *Producer
}

// NewEventPublisher creates a new event publisher. commands may be nil when
// asynchronous intake is not used.
func NewEventPublisher(events, commands *Producer) *EventPublisher {
	return &EventPublisher{events: events, commands: commands}
}

// PublishIntentEvent publishes an INTENT_APPLIED or INTENT_REJECTED event
func (ep *EventPublisher) PublishIntentEvent(ctx context.Context, event *models.IntentEvent) error {
	return ep.events.PublishEvent(ctx, event.Kind, event)
}

// PublishIntentCommand enqueues an encoded intent for the intent worker
func (ep *EventPublisher) PublishIntentCommand(ctx context.Context, intent []byte) (string, error) {
	if ep.commands == nil {
		return "", fmt.Errorf("intent command topic not configured")
	}

	event := &models.IntentCommandEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeIntentCommand,
			Timestamp: time.Now(),
		},
		Intent: json.RawMessage(intent),
	}

	if err := ep.commands.PublishEvent(ctx, event.EventID, event); err != nil {
		return "", err
	}
	return event.EventID, nil
}

// EventHandler routes incoming events
type EventHandler struct {
	onIntentCommand func(context.Context, *models.IntentCommandEvent) error
	logger          *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnIntentCommand registers a handler for INTENT_COMMAND events
func (eh *EventHandler) OnIntentCommand(handler func(context.Context, *models.IntentCommandEvent) error) {
	eh.onIntentCommand = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeIntentCommand:
		if eh.onIntentCommand != nil {
			var event models.IntentCommandEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal IntentCommand event: %w", err)
			}
			return eh.onIntentCommand(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
