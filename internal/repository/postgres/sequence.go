package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/appship/engage-api/internal/model"
	"github.com/appship/engage-api/internal/repository"
)

type sequenceRepository struct {
	db *sqlx.DB
}

func NewSequenceRepository(db *sqlx.DB) repository.SequenceRepository {
	return &sequenceRepository{db: db}
}

func (r *sequenceRepository) HasSent(ctx context.Context, kind model.MessageKind, recipientID uuid.UUID, stepID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM sequence_ledger
			WHERE kind = $1 AND recipient_id = $2 AND step_id = $3
		)
	`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, kind, recipientID, stepID)
	if err != nil {
		return false, fmt.Errorf("failed to check sequence ledger: %w", err)
	}
	return exists, nil
}

// Record appends one ledger entry. The table carries a unique
// constraint on (kind, recipient_id, step_id); a duplicate write is a
// benign no-op, not an error.
func (r *sequenceRepository) Record(ctx context.Context, entry *model.SequenceEntry) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}

	query := `
		INSERT INTO sequence_ledger (kind, recipient_id, step_id, sent_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (kind, recipient_id, step_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, entry.Kind, entry.RecipientID, entry.StepID, entry.SentAt)
	if err != nil {
		return fmt.Errorf("failed to record sequence entry: %w", err)
	}
	return nil
}
