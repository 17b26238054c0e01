package model

import (
	"time"

	"github.com/google/uuid"
)

// MessageKind selects which campaign's tracking records a message
// belongs to.
type MessageKind string

const (
	KindLeadSequence MessageKind = "lead_sequence"
	KindColdOutreach MessageKind = "cold_outreach"
)

type TrackingAction string

const (
	ActionOpen  TrackingAction = "open"
	ActionClick TrackingAction = "click"
)

// TrackedMessage records engagement for a single outbound email.
// OpenedAt and ClickedAt transition from nil to a value exactly once;
// repeat callbacks are no-ops.
type TrackedMessage struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	Kind        MessageKind `json:"kind" db:"kind"`
	RecipientID uuid.UUID   `json:"recipient_id" db:"recipient_id"`
	OpenedAt    *time.Time  `json:"opened_at,omitempty" db:"opened_at"`
	ClickedAt   *time.Time  `json:"clicked_at,omitempty" db:"clicked_at"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

// EngagementEvent is the payload published to the broker after a
// tracking write lands. Best-effort, never awaited.
type EngagementEvent struct {
	MessageID  uuid.UUID      `json:"message_id"`
	Kind       MessageKind    `json:"kind"`
	Action     TrackingAction `json:"action"`
	OccurredAt time.Time      `json:"occurred_at"`
}
