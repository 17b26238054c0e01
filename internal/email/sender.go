package email

import (
	"context"

	"github.com/google/uuid"

	"github.com/appship/engage-api/internal/model"
)

// OutboundMessage is one sequence step addressed to one recipient. The
// MessageID is minted by the scheduler so templates can embed tracking
// URLs before the message exists anywhere else.
type OutboundMessage struct {
	MessageID   uuid.UUID
	RecipientID uuid.UUID
	Email       string
	Name        string
	Kind        model.MessageKind
	StepID      string
}

// Sender delivers sequence steps. Implementations report failure as an
// error; the scheduler turns it into a per-recipient error string and
// moves on.
type Sender interface {
	SendSequenceStep(ctx context.Context, msg OutboundMessage) error
}
