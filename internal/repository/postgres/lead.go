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

type leadRepository struct {
	db *sqlx.DB
}

func NewLeadRepository(db *sqlx.DB) repository.LeadRepository {
	return &leadRepository{db: db}
}

func (r *leadRepository) ListActive(ctx context.Context) ([]*model.Lead, error) {
	query := `
		SELECT id, email, name, status, created_at, last_contacted_at
		FROM leads
		WHERE status NOT IN ($1, $2)
		ORDER BY created_at ASC
	`

	var leads []*model.Lead
	err := r.db.SelectContext(ctx, &leads, query,
		model.LeadStatusConverted,
		model.LeadStatusUnsubscribed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active leads: %w", err)
	}
	return leads, nil
}

func (r *leadRepository) MarkContacted(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE leads
		SET last_contacted_at = $1,
			status = CASE WHEN status = $2 THEN $3 ELSE status END
		WHERE id = $4
	`

	_, err := r.db.ExecContext(ctx, query, at, model.LeadStatusNew, model.LeadStatusContacted, id)
	if err != nil {
		return fmt.Errorf("failed to mark lead contacted: %w", err)
	}
	return nil
}
