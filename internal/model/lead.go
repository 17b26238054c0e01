package model

import (
	"time"

	"github.com/google/uuid"
)

type LeadStatus string

const (
	LeadStatusNew          LeadStatus = "new"
	LeadStatusContacted    LeadStatus = "contacted"
	LeadStatusConverted    LeadStatus = "converted"
	LeadStatusUnsubscribed LeadStatus = "unsubscribed"
)

// Lead is a captured sign-up that receives the nurture sequence.
// Leads are created by the capture form; this service only advances
// status and last_contacted_at.
type Lead struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	Email           string     `json:"email" db:"email"`
	Name            string     `json:"name" db:"name"`
	Status          LeadStatus `json:"status" db:"status"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	LastContactedAt *time.Time `json:"last_contacted_at,omitempty" db:"last_contacted_at"`
}
