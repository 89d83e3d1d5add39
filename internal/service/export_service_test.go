package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/prepshare/claims-api/internal/models"
	appErrors "github.com/prepshare/claims-api/pkg/errors"
	"github.com/prepshare/claims-api/pkg/storage"
)

func newExportFixture(t *testing.T) (*ExportService, *claimRepoStub) {
	t.Helper()
	repo := newClaimRepoStub()
	fileStore, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", 10*time.Minute)
	svc := NewExportService(repo, newEvidenceListerStub(), &historyStoreStub{}, fileStore, signer,
		ExportConfig{APIPrefix: "/api/v1"}, nil, nil, nil)
	return svc, repo
}

func seedExportClaim(t *testing.T, repo *claimRepoStub) int64 {
	t.Helper()
	claim := &models.DamageClaim{
		BookingType:        models.BookingTypeKitchen,
		ManagerID:          "mgr-1",
		ChefID:             "chef-9",
		ClaimTitle:         "Warped griddle plate",
		DamageDate:         time.Now().UTC().AddDate(0, 0, -3),
		ClaimedAmountCents: 42000,
		Status:             models.ClaimStatusApproved,
	}
	require.NoError(t, repo.Create(context.Background(), claim))
	return claim.ID
}

func TestClaimStatementProducesSignedDownload(t *testing.T) {
	svc, repo := newExportFixture(t)
	id := seedExportClaim(t, repo)

	result, err := svc.ClaimStatement(context.Background(), id, managerActor("mgr-1"))
	require.NoError(t, err)
	require.Equal(t, "pdf", result.Format)
	require.Contains(t, result.URL, "/api/v1/exports/")

	refID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	require.Equal(t, "1", refID)
	require.Equal(t, result.RelativePath, relPath)

	file, err := svc.Open(relPath)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
}

func TestClaimStatementMissingClaimNotFound(t *testing.T) {
	svc, _ := newExportFixture(t)

	_, err := svc.ClaimStatement(context.Background(), 404, managerActor("mgr-1"))
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestClaimsCSVScopesManagersToOwnClaims(t *testing.T) {
	svc, repo := newExportFixture(t)
	seedExportClaim(t, repo)
	other := &models.DamageClaim{
		BookingType:        models.BookingTypeStorage,
		ManagerID:          "mgr-2",
		ChefID:             "chef-9",
		ClaimTitle:         "Spoiled cold storage batch",
		DamageDate:         time.Now().UTC().AddDate(0, 0, -5),
		ClaimedAmountCents: 18000,
		Status:             models.ClaimStatusDraft,
	}
	require.NoError(t, repo.Create(context.Background(), other))

	result, err := svc.ClaimsCSV(context.Background(), models.ClaimFilter{}, managerActor("mgr-1"))
	require.NoError(t, err)
	require.Equal(t, "csv", result.Format)

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
}
