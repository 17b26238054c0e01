package model

import (
	"time"

	"github.com/google/uuid"
)

type ProspectStatus string

const (
	ProspectStatusPending      ProspectStatus = "pending"
	ProspectStatusSent         ProspectStatus = "sent"
	ProspectStatusOpened       ProspectStatus = "opened"
	ProspectStatusConverted    ProspectStatus = "converted"
	ProspectStatusUnsubscribed ProspectStatus = "unsubscribed"
)

// MaxOutreachEmails caps how many cold-outreach messages a prospect
// ever receives.
const MaxOutreachEmails = 3

// Prospect is a cold-outreach target sourced by lead-gen.
type Prospect struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	Email      string         `json:"email" db:"email"`
	Name       string         `json:"name" db:"name"`
	Company    string         `json:"company" db:"company"`
	Status     ProspectStatus `json:"status" db:"status"`
	EmailsSent int            `json:"emails_sent" db:"emails_sent"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	LastSentAt *time.Time     `json:"last_sent_at,omitempty" db:"last_sent_at"`
}
