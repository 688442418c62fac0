package models

import (
	"encoding/json"
	"time"
)

// Event types
const (
	EventTypeIntentApplied  = "INTENT_APPLIED"
	EventTypeIntentRejected = "INTENT_REJECTED"
	EventTypeIntentCommand  = "INTENT_COMMAND"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// IntentEvent published after the store handled an intent
type IntentEvent struct {
	BaseEvent
	Kind          string `json:"kind"`
	Reason        string `json:"reason,omitempty"`
	CurrentUserID string `json:"current_user_id,omitempty"`
	CartItems     int    `json:"cart_items"`
	Products      int    `json:"products"`
	Users         int    `json:"users"`
	Messages      int    `json:"messages"`
}

// IntentCommandEvent carries an encoded intent to be dispatched into the store
type IntentCommandEvent struct {
	BaseEvent
	Intent json.RawMessage `json:"intent"`
}
