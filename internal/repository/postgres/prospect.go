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

type prospectRepository struct {
	db *sqlx.DB
}

func NewProspectRepository(db *sqlx.DB) repository.ProspectRepository {
	return &prospectRepository{db: db}
}

func (r *prospectRepository) ListActive(ctx context.Context, maxEmailsSent int) ([]*model.Prospect, error) {
	query := `
		SELECT id, email, name, company, status, emails_sent, created_at, last_sent_at
		FROM prospects
		WHERE status NOT IN ($1, $2)
		AND emails_sent < $3
		ORDER BY created_at ASC
	`

	var prospects []*model.Prospect
	err := r.db.SelectContext(ctx, &prospects, query,
		model.ProspectStatusConverted,
		model.ProspectStatusUnsubscribed,
		maxEmailsSent,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active prospects: %w", err)
	}
	return prospects, nil
}

func (r *prospectRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE prospects
		SET last_sent_at = $1,
			emails_sent = emails_sent + 1,
			status = CASE WHEN status = $2 THEN $3 ELSE status END
		WHERE id = $4
	`

	_, err := r.db.ExecContext(ctx, query, at, model.ProspectStatusPending, model.ProspectStatusSent, id)
	if err != nil {
		return fmt.Errorf("failed to mark prospect sent: %w", err)
	}
	return nil
}
