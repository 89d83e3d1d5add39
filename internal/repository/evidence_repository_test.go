package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepshare/claims-api/internal/models"
)

func TestEvidenceRepositoryCreateReturnsID(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()
	repo := NewEvidenceRepository(db)

	fileName := "evidence_1_ab12cd34.jpg"
	evidence := &models.DamageEvidence{
		ClaimID:      7,
		EvidenceType: models.EvidencePhotoBefore,
		FileURL:      "claims/7/evidence_1_ab12cd34.jpg",
		FileName:     &fileName,
	}

	mock.ExpectQuery("INSERT INTO damage_evidence").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(15)))

	require.NoError(t, repo.Create(context.Background(), evidence))
	assert.Equal(t, int64(15), evidence.ID)
	assert.False(t, evidence.UploadedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvidenceRepositoryListByClaimKeepsUploadOrder(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()
	repo := NewEvidenceRepository(db)

	now := time.Now().UTC()
	amount := int64(12900)
	rows := sqlmock.NewRows([]string{
		"id", "claim_id", "evidence_type", "file_url", "file_name", "description",
		"amount_cents", "vendor_name", "uploaded_at",
	}).
		AddRow(int64(1), int64(7), "photo_before", "claims/7/a.jpg", nil, nil, nil, nil, now.Add(-time.Hour)).
		AddRow(int64(2), int64(7), "receipt", "claims/7/b.pdf", nil, nil, amount, "Restaurant Depot", now)

	mock.ExpectQuery("SELECT (.+) FROM damage_evidence WHERE claim_id = \\$1 ORDER BY uploaded_at, id").
		WithArgs(int64(7)).
		WillReturnRows(rows)

	records, err := repo.ListByClaim(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.EvidencePhotoBefore, records[0].EvidenceType)
	assert.Equal(t, models.EvidenceReceipt, records[1].EvidenceType)
	require.NotNil(t, records[1].AmountCents)
	assert.Equal(t, amount, *records[1].AmountCents)
}

func TestEvidenceRepositoryCountByClaim(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()
	repo := NewEvidenceRepository(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM damage_evidence").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountByClaim(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestEvidenceRepositoryDeleteMissingRow(t *testing.T) {
	db, mock, cleanup := newClaimRepoMock(t)
	defer cleanup()
	repo := NewEvidenceRepository(db)

	mock.ExpectExec("DELETE FROM damage_evidence").
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), 99)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
