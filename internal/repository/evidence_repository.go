package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/prepshare/claims-api/internal/models"
)

// EvidenceRepository handles damage evidence persistence.
type EvidenceRepository struct {
	db *sqlx.DB
}

// NewEvidenceRepository constructs the repository.
func NewEvidenceRepository(db *sqlx.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

const evidenceColumns = `id, claim_id, evidence_type, file_url, file_name, description,
       amount_cents, vendor_name, uploaded_at`

// Create attaches one evidence row to a claim and fills in its id.
func (r *EvidenceRepository) Create(ctx context.Context, evidence *models.DamageEvidence) error {
	if evidence.UploadedAt.IsZero() {
		evidence.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO damage_evidence
	(claim_id, evidence_type, file_url, file_name, description, amount_cents, vendor_name, uploaded_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id`
	err := r.db.QueryRowxContext(ctx, query,
		evidence.ClaimID, evidence.EvidenceType, evidence.FileURL, evidence.FileName,
		evidence.Description, evidence.AmountCents, evidence.VendorName, evidence.UploadedAt,
	).Scan(&evidence.ID)
	if err != nil {
		return fmt.Errorf("create damage evidence: %w", err)
	}
	return nil
}

// GetByID retrieves one evidence row.
func (r *EvidenceRepository) GetByID(ctx context.Context, id int64) (*models.DamageEvidence, error) {
	query := `SELECT ` + evidenceColumns + ` FROM damage_evidence WHERE id = $1`
	var evidence models.DamageEvidence
	if err := r.db.GetContext(ctx, &evidence, query, id); err != nil {
		return nil, err
	}
	return &evidence, nil
}

// ListByClaim returns evidence in upload order.
func (r *EvidenceRepository) ListByClaim(ctx context.Context, claimID int64) ([]models.DamageEvidence, error) {
	query := `SELECT ` + evidenceColumns + ` FROM damage_evidence WHERE claim_id = $1 ORDER BY uploaded_at, id`
	var records []models.DamageEvidence
	if err := r.db.SelectContext(ctx, &records, query, claimID); err != nil {
		return nil, fmt.Errorf("list damage evidence: %w", err)
	}
	return records, nil
}

// CountByClaim returns the number of evidence items on a claim.
func (r *EvidenceRepository) CountByClaim(ctx context.Context, claimID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM damage_evidence WHERE claim_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, claimID); err != nil {
		return 0, fmt.Errorf("count damage evidence: %w", err)
	}
	return count, nil
}

// Delete removes one evidence row.
func (r *EvidenceRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM damage_evidence WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete damage evidence: %w", err)
	}
	return requireAffected(res)
}
