package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/prepshare/claims-api/internal/models"
)

// ClaimRepository handles damage claim persistence.
type ClaimRepository struct {
	db *sqlx.DB
}

// NewClaimRepository constructs the repository.
func NewClaimRepository(db *sqlx.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

const claimColumns = `id, booking_type, kitchen_booking_id, storage_booking_id, chef_id, manager_id,
       location_id, claim_title, claim_description, damage_date, claimed_amount_cents,
       approved_amount_cents, final_amount_cents, chef_response, chef_responded_at,
       chef_response_deadline, status, submitted_at, created_at, updated_at`

// Create inserts a new claim in draft status and fills in its id.
func (r *ClaimRepository) Create(ctx context.Context, claim *models.DamageClaim) error {
	now := time.Now().UTC()
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = now
	}
	claim.UpdatedAt = now
	if claim.Status == "" {
		claim.Status = models.ClaimStatusDraft
	}
	const query = `INSERT INTO damage_claims
	(booking_type, kitchen_booking_id, storage_booking_id, chef_id, manager_id, location_id,
	 claim_title, claim_description, damage_date, claimed_amount_cents, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	RETURNING id`
	err := r.db.QueryRowxContext(ctx, query,
		claim.BookingType, claim.KitchenBookingID, claim.StorageBookingID,
		claim.ChefID, claim.ManagerID, claim.LocationID,
		claim.ClaimTitle, claim.ClaimDescription, claim.DamageDate,
		claim.ClaimedAmountCents, claim.Status, claim.CreatedAt, claim.UpdatedAt,
	).Scan(&claim.ID)
	if err != nil {
		return fmt.Errorf("create damage claim: %w", err)
	}
	return nil
}

// GetByID retrieves one claim row.
func (r *ClaimRepository) GetByID(ctx context.Context, id int64) (*models.DamageClaim, error) {
	query := `SELECT ` + claimColumns + ` FROM damage_claims WHERE id = $1`
	var claim models.DamageClaim
	if err := r.db.GetContext(ctx, &claim, query, id); err != nil {
		return nil, err
	}
	return &claim, nil
}

// List returns claims applying filters. Terminal claims are excluded
// unless the filter asks for everything.
func (r *ClaimRepository) List(ctx context.Context, filter models.ClaimFilter) ([]models.DamageClaim, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + claimColumns + ` FROM damage_claims`)
	args := make([]interface{}, 0, 5)
	conditions := make([]string, 0, 5)

	if filter.ManagerID != "" {
		args = append(args, filter.ManagerID)
		conditions = append(conditions, fmt.Sprintf("manager_id = $%d", len(args)))
	}
	if filter.ChefID != "" {
		args = append(args, filter.ChefID)
		conditions = append(conditions, fmt.Sprintf("chef_id = $%d", len(args)))
	}
	if filter.LocationID != "" {
		args = append(args, filter.LocationID)
		conditions = append(conditions, fmt.Sprintf("location_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	} else if !filter.IncludeAll {
		placeholders := make([]string, 0, len(models.TerminalStatuses))
		for _, status := range models.TerminalStatuses {
			args = append(args, status)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		conditions = append(conditions, fmt.Sprintf("status NOT IN (%s)", strings.Join(placeholders, ", ")))
	}

	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var records []models.DamageClaim
	if err := r.db.SelectContext(ctx, &records, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list damage claims: %w", err)
	}
	return records, nil
}

// UpdateStatus transitions a claim guarded by its expected current
// status. Returns sql.ErrNoRows when the claim moved concurrently.
func (r *ClaimRepository) UpdateStatus(ctx context.Context, id int64, from, to models.ClaimStatus, updatedAt time.Time) error {
	const query = `UPDATE damage_claims SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, updatedAt)
	if err != nil {
		return fmt.Errorf("update claim status: %w", err)
	}
	return requireAffected(res)
}

// MarkSubmitted stamps submission fields and moves the claim out of draft.
func (r *ClaimRepository) MarkSubmitted(ctx context.Context, id int64, submittedAt, deadline time.Time) error {
	const query = `UPDATE damage_claims
	SET status = $2, submitted_at = $3, chef_response_deadline = $4, updated_at = $3
	WHERE id = $1 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, id, models.ClaimStatusSubmitted, submittedAt, deadline, models.ClaimStatusDraft)
	if err != nil {
		return fmt.Errorf("mark claim submitted: %w", err)
	}
	return requireAffected(res)
}

// RecordChefResponse stores the chef's answer and resulting status.
func (r *ClaimRepository) RecordChefResponse(ctx context.Context, id int64, status models.ClaimStatus, response string, respondedAt time.Time) error {
	const query = `UPDATE damage_claims
	SET status = $2, chef_response = $3, chef_responded_at = $4, updated_at = $4
	WHERE id = $1 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, id, status, response, respondedAt, models.ClaimStatusSubmitted)
	if err != nil {
		return fmt.Errorf("record chef response: %w", err)
	}
	return requireAffected(res)
}

// RecordDecision stores an adjudication outcome guarded by the status
// the decision was resolved against. Returns sql.ErrNoRows when the
// claim moved concurrently.
func (r *ClaimRepository) RecordDecision(ctx context.Context, id int64, from, to models.ClaimStatus, approvedAmountCents *int64, updatedAt time.Time) error {
	const query = `UPDATE damage_claims
	SET status = $3, approved_amount_cents = $4, updated_at = $5
	WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, approvedAmountCents, updatedAt)
	if err != nil {
		return fmt.Errorf("record claim decision: %w", err)
	}
	return requireAffected(res)
}

// RecordChargeOutcome finalizes a charge attempt.
func (r *ClaimRepository) RecordChargeOutcome(ctx context.Context, id int64, status models.ClaimStatus, finalAmountCents *int64, updatedAt time.Time) error {
	const query = `UPDATE damage_claims
	SET status = $2, final_amount_cents = COALESCE($3, final_amount_cents), updated_at = $4
	WHERE id = $1 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, id, status, finalAmountCents, updatedAt, models.ClaimStatusChargePending)
	if err != nil {
		return fmt.Errorf("record charge outcome: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a draft claim and its dependents.
func (r *ClaimRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM damage_claims WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, models.ClaimStatusDraft)
	if err != nil {
		return fmt.Errorf("delete draft claim: %w", err)
	}
	return requireAffected(res)
}

// ListSubmittedPastDeadline returns submitted claims whose chef response
// window elapsed with no answer.
func (r *ClaimRepository) ListSubmittedPastDeadline(ctx context.Context, now time.Time) ([]models.DamageClaim, error) {
	query := `SELECT ` + claimColumns + ` FROM damage_claims
	WHERE status = $1 AND chef_response_deadline IS NOT NULL AND chef_response_deadline < $2 AND chef_responded_at IS NULL`
	var records []models.DamageClaim
	if err := r.db.SelectContext(ctx, &records, query, models.ClaimStatusSubmitted, now); err != nil {
		return nil, fmt.Errorf("list claims past deadline: %w", err)
	}
	return records, nil
}

// ListStaleDrafts returns draft claims created before the cutoff.
func (r *ClaimRepository) ListStaleDrafts(ctx context.Context, cutoff time.Time) ([]models.DamageClaim, error) {
	query := `SELECT ` + claimColumns + ` FROM damage_claims WHERE status = $1 AND created_at < $2`
	var records []models.DamageClaim
	if err := r.db.SelectContext(ctx, &records, query, models.ClaimStatusDraft, cutoff); err != nil {
		return nil, fmt.Errorf("list stale drafts: %w", err)
	}
	return records, nil
}

// ListSettledCharges returns succeeded charges older than the cutoff,
// ready to be marked resolved.
func (r *ClaimRepository) ListSettledCharges(ctx context.Context, cutoff time.Time) ([]models.DamageClaim, error) {
	query := `SELECT ` + claimColumns + ` FROM damage_claims WHERE status = $1 AND updated_at < $2`
	var records []models.DamageClaim
	if err := r.db.SelectContext(ctx, &records, query, models.ClaimStatusChargeSucceeded, cutoff); err != nil {
		return nil, fmt.Errorf("list settled charges: %w", err)
	}
	return records, nil
}

// AddDamagedItem attaches one equipment reference to a claim.
func (r *ClaimRepository) AddDamagedItem(ctx context.Context, item *models.DamagedItem) error {
	const query = `INSERT INTO claim_damaged_items (claim_id, equipment_id, equipment_name)
	VALUES ($1, $2, $3) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, item.ClaimID, item.EquipmentID, item.EquipmentName).Scan(&item.ID); err != nil {
		return fmt.Errorf("add damaged item: %w", err)
	}
	return nil
}

// ListDamagedItems returns the equipment references for a claim.
func (r *ClaimRepository) ListDamagedItems(ctx context.Context, claimID int64) ([]models.DamagedItem, error) {
	const query = `SELECT id, claim_id, equipment_id, equipment_name FROM claim_damaged_items
	WHERE claim_id = $1 ORDER BY id`
	var items []models.DamagedItem
	if err := r.db.SelectContext(ctx, &items, query, claimID); err != nil {
		return nil, fmt.Errorf("list damaged items: %w", err)
	}
	return items, nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check affected rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
