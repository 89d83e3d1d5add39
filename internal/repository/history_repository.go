package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/prepshare/claims-api/internal/models"
)

// HistoryRepository persists the server-authored claim transition log.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository constructs the repository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append records one transition entry.
func (r *HistoryRepository) Append(ctx context.Context, entry *models.ClaimHistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO claim_history
	(claim_id, previous_status, new_status, action, action_by, action_by_user_id, notes, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id`
	err := r.db.QueryRowxContext(ctx, query,
		entry.ClaimID, entry.PreviousStatus, entry.NewStatus, entry.Action,
		entry.ActionBy, entry.ActionByUserID, entry.Notes, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("append claim history: %w", err)
	}
	return nil
}

// ListByClaim returns the transition log ordered by creation time.
func (r *HistoryRepository) ListByClaim(ctx context.Context, claimID int64) ([]models.ClaimHistoryEntry, error) {
	const query = `SELECT id, claim_id, previous_status, new_status, action, action_by,
       action_by_user_id, notes, created_at
	FROM claim_history WHERE claim_id = $1 ORDER BY created_at, id`
	var records []models.ClaimHistoryEntry
	if err := r.db.SelectContext(ctx, &records, query, claimID); err != nil {
		return nil, fmt.Errorf("list claim history: %w", err)
	}
	return records, nil
}
