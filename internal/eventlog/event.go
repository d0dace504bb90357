// Package eventlog implements the space-partitioned, append-only event
// store: per-space monotonic sequences, global event ids, and an entity
// index. Per-space checkpoints are kept by package command.
package eventlog

import (
	"encoding/json"
	"time"

	"github.com/ledgerstate/ledgerstate/internal/ref"
)

// Event is the immutable record of a single state change.
type Event struct {
	EventID       int64     `json:"event_id"`
	SpaceID       int64     `json:"space_id"`
	SpaceSequence int64     `json:"space_sequence"`
	EntityID      string    `json:"entity_id"`
	EventType     string    `json:"event_type"`
	Timestamp     time.Time `json:"timestamp"`
	Payload       any       `json:"payload"`
}

// wireEvent is the on-disk shape: Payload has every Ref replaced by its
// tagged-record encoding so a plain json.Marshal can serialize it.
type wireEvent struct {
	EventID       int64     `json:"event_id"`
	SpaceID       int64     `json:"space_id"`
	SpaceSequence int64     `json:"space_sequence"`
	EntityID      string    `json:"entity_id"`
	EventType     string    `json:"event_type"`
	Timestamp     time.Time `json:"timestamp"`
	Payload       any       `json:"payload"`
}

func (e Event) marshal() ([]byte, error) {
	w := wireEvent{
		EventID:       e.EventID,
		SpaceID:       e.SpaceID,
		SpaceSequence: e.SpaceSequence,
		EntityID:      e.EntityID,
		EventType:     e.EventType,
		Timestamp:     e.Timestamp,
		Payload:       ref.Encode(e.Payload),
	}
	return json.Marshal(w)
}

func unmarshalEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, err
	}
	return Event{
		EventID:       w.EventID,
		SpaceID:       w.SpaceID,
		SpaceSequence: w.SpaceSequence,
		EntityID:      w.EntityID,
		EventType:     w.EventType,
		Timestamp:     w.Timestamp,
		Payload:       ref.Decode(w.Payload),
	}, nil
}
