package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/appship/engage-api/internal/model"
	"github.com/appship/engage-api/internal/repository"
)

type trackingRepository struct {
	db *sqlx.DB
}

func NewTrackingRepository(db *sqlx.DB) repository.TrackingRepository {
	return &trackingRepository{db: db}
}

func (r *trackingRepository) CreateMessage(ctx context.Context, msg *model.TrackedMessage) error {
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}

	query := `
		INSERT INTO tracked_messages (id, kind, recipient_id, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query, msg.ID, msg.Kind, msg.RecipientID, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tracked message: %w", err)
	}
	return nil
}

// MarkOpened sets opened_at only when it is still null. The WHERE
// clause is the compare-and-set: concurrent callbacks race on the
// database row, and exactly one sees RowsAffected == 1.
func (r *trackingRepository) MarkOpened(ctx context.Context, kind model.MessageKind, id uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE tracked_messages
		SET opened_at = $1
		WHERE id = $2 AND kind = $3 AND opened_at IS NULL
	`

	res, err := r.db.ExecContext(ctx, query, at, id, kind)
	if err != nil {
		return false, fmt.Errorf("failed to mark message opened: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *trackingRepository) MarkClicked(ctx context.Context, kind model.MessageKind, id uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE tracked_messages
		SET clicked_at = $1
		WHERE id = $2 AND kind = $3 AND clicked_at IS NULL
	`

	res, err := r.db.ExecContext(ctx, query, at, id, kind)
	if err != nil {
		return false, fmt.Errorf("failed to mark message clicked: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}
