package model

import (
	"time"

	"github.com/google/uuid"
)

// SequenceStep pairs a day threshold with the step dispatched once a
// recipient is at least that many days old.
type SequenceStep struct {
	AfterDays int
	ID        string
}

// SequenceSteps is ordered ascending by threshold. Selection walks it
// from the highest threshold down and never falls back to a lower step.
var SequenceSteps = []SequenceStep{
	{AfterDays: 3, ID: "step_1"},
	{AfterDays: 7, ID: "step_2"},
	{AfterDays: 14, ID: "step_3"},
}

// SequenceEntry is one row of the append-only send ledger. At most one
// entry exists per (kind, recipient, step); the ledger is the sole
// duplicate-send guard.
type SequenceEntry struct {
	Kind        MessageKind `json:"kind" db:"kind"`
	RecipientID uuid.UUID   `json:"recipient_id" db:"recipient_id"`
	StepID      string      `json:"step_id" db:"step_id"`
	SentAt      time.Time   `json:"sent_at" db:"sent_at"`
}

// RunResult aggregates one scheduler run. Errors hold per-recipient
// failure strings; a failed recipient stays eligible next run.
type RunResult struct {
	Sent    int      `json:"sent"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}
