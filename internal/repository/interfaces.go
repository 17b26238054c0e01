package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/appship/engage-api/internal/model"
)

// All repository interfaces in one file
type (
	// LeadRepository handles nurture-sequence recipients.
	LeadRepository interface {
		ListActive(ctx context.Context) ([]*model.Lead, error)
		MarkContacted(ctx context.Context, id uuid.UUID, at time.Time) error
	}

	// ProspectRepository handles cold-outreach recipients.
	ProspectRepository interface {
		ListActive(ctx context.Context, maxEmailsSent int) ([]*model.Prospect, error)
		MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	}

	// TrackingRepository records open/click engagement. The Mark*
	// methods are first-write-wins: they report whether this call set
	// the timestamp, and false when it was already set or the message
	// is unknown.
	TrackingRepository interface {
		CreateMessage(ctx context.Context, msg *model.TrackedMessage) error
		MarkOpened(ctx context.Context, kind model.MessageKind, id uuid.UUID, at time.Time) (bool, error)
		MarkClicked(ctx context.Context, kind model.MessageKind, id uuid.UUID, at time.Time) (bool, error)
	}

	// SequenceRepository is the append-only send ledger.
	SequenceRepository interface {
		HasSent(ctx context.Context, kind model.MessageKind, recipientID uuid.UUID, stepID string) (bool, error)
		Record(ctx context.Context, entry *model.SequenceEntry) error
	}
)
