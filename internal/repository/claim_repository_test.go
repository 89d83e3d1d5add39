package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepshare/claims-api/internal/models"
)

func newClaimRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func claimRowColumns() []string {
	return []string{
		"id", "booking_type", "kitchen_booking_id", "storage_booking_id", "chef_id", "manager_id",
		"location_id", "claim_title", "claim_description", "damage_date", "claimed_amount_cents",
		"approved_amount_cents", "final_amount_cents", "chef_response", "chef_responded_at",
		"chef_response_deadline", "status", "submitted_at", "created_at", "updated_at",
	}
}

func addClaimRow(rows *sqlmock.Rows, id int64, status models.ClaimStatus) *sqlmock.Rows {
	now := time.Now().UTC()
	return rows.AddRow(
		id, "kitchen", int64(501), nil, "chef-9", "mgr-1",
		"loc-2", "Cracked prep table", "Leg snapped during service", now, int64(45000),
		nil, nil, nil, nil,
		nil, string(status), nil, now, now,
	)
}

func TestClaimRepositoryCreateReturnsID(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()
	repo := NewClaimRepository(db)

	kitchenID := int64(501)
	claim := &models.DamageClaim{
		BookingType:        models.BookingTypeKitchen,
		KitchenBookingID:   &kitchenID,
		ChefID:             "chef-9",
		ManagerID:          "mgr-1",
		LocationID:         "loc-2",
		ClaimTitle:         "Cracked prep table",
		ClaimDescription:   "Leg snapped during service",
		DamageDate:         time.Now().UTC(),
		ClaimedAmountCents: 45000,
	}

	mock.ExpectQuery("INSERT INTO damage_claims").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	require.NoError(t, repo.Create(context.Background(), claim))
	assert.Equal(t, int64(42), claim.ID)
	assert.Equal(t, models.ClaimStatusDraft, claim.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()
	repo := NewClaimRepository(db)

	rows := addClaimRow(sqlmock.NewRows(claimRowColumns()), 7, models.ClaimStatusDraft)
	mock.ExpectQuery("SELECT (.+) FROM damage_claims WHERE id").
		WithArgs(int64(7)).
		WillReturnRows(rows)

	claim, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claim.ID)
	assert.Equal(t, models.BookingTypeKitchen, claim.BookingType)
	require.NotNil(t, claim.KitchenBookingID)
	assert.Equal(t, int64(501), *claim.KitchenBookingID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()
	repo := NewClaimRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM damage_claims WHERE id").
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestClaimRepositoryListExcludesTerminalByDefault(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()
	repo := NewClaimRepository(db)

	rows := addClaimRow(sqlmock.NewRows(claimRowColumns()), 1, models.ClaimStatusSubmitted)
	mock.ExpectQuery("SELECT (.+) FROM damage_claims WHERE manager_id = \\$1 AND status NOT IN").
		WithArgs("mgr-1", "charge_succeeded", "resolved", "rejected", "expired").
		WillReturnRows(rows)

	claims, err := repo.List(context.Background(), models.ClaimFilter{ManagerID: "mgr-1"})
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, models.ClaimStatusSubmitted, claims[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRepositoryListWithStatusFilter(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()
	repo := NewClaimRepository(db)

	rows := addClaimRow(sqlmock.NewRows(claimRowColumns()), 3, models.ClaimStatusUnderReview)
	mock.ExpectQuery("SELECT (.+) FROM damage_claims WHERE status = \\$1").
		WithArgs("under_review").
		WillReturnRows(rows)

	claims, err := repo.List(context.Background(), models.ClaimFilter{Status: models.ClaimStatusUnderReview})
	require.NoError(t, err)
	require.Len(t, claims, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRepositoryUpdateStatusGuarded(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()
	repo := NewClaimRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec("UPDATE damage_claims SET status").
		WithArgs(int64(5), "chef_disputed", "under_review", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), 5, models.ClaimStatusChefDisputed, models.ClaimStatusUnderReview, now)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRepositoryUpdateStatusConflict(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()
	repo := NewClaimRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec("UPDATE damage_claims SET status").
		WithArgs(int64(5), "submitted", "chef_accepted", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), 5, models.ClaimStatusSubmitted, models.ClaimStatusChefAccepted, now)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestClaimRepositoryRecordDecisionGuarded(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()
	repo := NewClaimRepository(db)

	now := time.Now().UTC()
	approved := int64(20000)
	mock.ExpectExec("UPDATE damage_claims").
		WithArgs(int64(7), "under_review", "partially_approved", approved, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RecordDecision(context.Background(), 7, models.ClaimStatusUnderReview, models.ClaimStatusPartiallyApproved, &approved, now)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRepositoryRecordDecisionConflict(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()
	repo := NewClaimRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec("UPDATE damage_claims").
		WithArgs(int64(7), "under_review", "approved", nil, now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RecordDecision(context.Background(), 7, models.ClaimStatusUnderReview, models.ClaimStatusApproved, nil, now)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestClaimRepositoryMarkSubmittedDraftOnly(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()
	repo := NewClaimRepository(db)

	submittedAt := time.Now().UTC()
	deadline := submittedAt.Add(72 * time.Hour)

	mock.ExpectExec("UPDATE damage_claims").
		WithArgs(int64(8), "submitted", submittedAt, deadline, "draft").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkSubmitted(context.Background(), 8, submittedAt, deadline))

	mock.ExpectExec("UPDATE damage_claims").
		WithArgs(int64(8), "submitted", submittedAt, deadline, "draft").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.MarkSubmitted(context.Background(), 8, submittedAt, deadline)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestClaimRepositoryRecordChargeOutcomeRequiresPending(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()
	repo := NewClaimRepository(db)

	now := time.Now().UTC()
	settled := int64(30000)
	mock.ExpectExec("UPDATE damage_claims").
		WithArgs(int64(4), "charge_succeeded", settled, now, "charge_pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RecordChargeOutcome(context.Background(), 4, models.ClaimStatusChargeSucceeded, &settled, now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRepositoryDeleteDraftOnly(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()
	repo := NewClaimRepository(db)

	mock.ExpectExec("DELETE FROM damage_claims").
		WithArgs(int64(6), "draft").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), 6)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestClaimRepositoryListSubmittedPastDeadline(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()
	repo := NewClaimRepository(db)

	rows := addClaimRow(sqlmock.NewRows(claimRowColumns()), 11, models.ClaimStatusSubmitted)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM damage_claims").
		WithArgs("submitted", now).
		WillReturnRows(rows)

	claims, err := repo.ListSubmittedPastDeadline(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, int64(11), claims[0].ID)
}

func TestClaimRepositoryAddDamagedItem(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()
	repo := NewClaimRepository(db)

	mock.ExpectQuery("INSERT INTO claim_damaged_items").
		WithArgs(int64(7), "eq-12", "Commercial mixer").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

	item := &models.DamagedItem{ClaimID: 7, EquipmentID: "eq-12", EquipmentName: "Commercial mixer"}
	require.NoError(t, repo.AddDamagedItem(context.Background(), item))
	assert.Equal(t, int64(3), item.ID)
}
