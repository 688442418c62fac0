package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"securemarket/internal/models"
)

// DefaultSlotKey is the key the application snapshot is stored under
const DefaultSlotKey = "securemarket-data"

// ErrCorruptSnapshot is returned when a stored blob is not a readable snapshot
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// EncodeSnapshot serializes a snapshot into its persisted JSON layout
func EncodeSnapshot(s models.Snapshot) ([]byte, error) {
	data, err := json.Marshal(s.Normalize())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a persisted snapshot
func DecodeSnapshot(data []byte) (models.Snapshot, error) {
	var s models.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if s.Products == nil || s.Users == nil {
		return models.Snapshot{}, fmt.Errorf("%w: missing products or users", ErrCorruptSnapshot)
	}
	return s.Normalize(), nil
}
