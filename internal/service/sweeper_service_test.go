package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/prepshare/claims-api/internal/models"
)

func newSweeperFixture(t *testing.T) (*SweeperService, *claimRepoStub, *historyStoreStub) {
	t.Helper()
	repo := newClaimRepoStub()
	history := &historyStoreStub{}
	svc := NewSweeperService(repo, history, nil, disabledCache(), nil, nil, SweeperConfig{
		Interval:        time.Minute,
		DraftExpiryDays: 30,
		SettleDelay:     24 * time.Hour,
	})
	return svc, repo, history
}

func TestSweepDeemsOverdueSubmissionsAccepted(t *testing.T) {
	svc, repo, history := newSweeperFixture(t)

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(48 * time.Hour)
	overdue := &models.DamageClaim{Status: models.ClaimStatusSubmitted, ChefResponseDeadline: &past, ManagerID: "mgr-1", ChefID: "chef-9"}
	inWindow := &models.DamageClaim{Status: models.ClaimStatusSubmitted, ChefResponseDeadline: &future, ManagerID: "mgr-1", ChefID: "chef-9"}
	require.NoError(t, repo.Create(context.Background(), overdue))
	require.NoError(t, repo.Create(context.Background(), inWindow))

	svc.Sweep(context.Background())

	require.Equal(t, models.ClaimStatusChefAccepted, repo.claims[overdue.ID].Status)
	require.Equal(t, models.ClaimStatusSubmitted, repo.claims[inWindow.ID].Status)
	require.Len(t, history.entries, 1)
	require.Equal(t, "deadline_accepted", history.entries[0].Action)
	require.Equal(t, "system", history.entries[0].ActionBy)
}

func TestSweepExpiresStaleDrafts(t *testing.T) {
	svc, repo, _ := newSweeperFixture(t)

	stale := &models.DamageClaim{Status: models.ClaimStatusDraft, ManagerID: "mgr-1"}
	require.NoError(t, repo.Create(context.Background(), stale))
	repo.claims[stale.ID].CreatedAt = time.Now().UTC().AddDate(0, 0, -45)

	fresh := &models.DamageClaim{Status: models.ClaimStatusDraft, ManagerID: "mgr-1"}
	require.NoError(t, repo.Create(context.Background(), fresh))

	svc.Sweep(context.Background())

	require.Equal(t, models.ClaimStatusExpired, repo.claims[stale.ID].Status)
	require.Equal(t, models.ClaimStatusDraft, repo.claims[fresh.ID].Status)
}

func TestSweepResolvesSettledCharges(t *testing.T) {
	svc, repo, history := newSweeperFixture(t)

	settled := &models.DamageClaim{Status: models.ClaimStatusChargeSucceeded, ManagerID: "mgr-1"}
	require.NoError(t, repo.Create(context.Background(), settled))
	repo.claims[settled.ID].UpdatedAt = time.Now().UTC().Add(-48 * time.Hour)

	recent := &models.DamageClaim{Status: models.ClaimStatusChargeSucceeded, ManagerID: "mgr-1"}
	require.NoError(t, repo.Create(context.Background(), recent))

	svc.Sweep(context.Background())

	require.Equal(t, models.ClaimStatusResolved, repo.claims[settled.ID].Status)
	require.Equal(t, models.ClaimStatusChargeSucceeded, repo.claims[recent.ID].Status)
	require.Len(t, history.entries, 1)
	require.Equal(t, "charge_settled", history.entries[0].Action)
}

type exportCleanerStub struct {
	calls   int
	removed []string
}

func (e *exportCleanerStub) Cleanup(ttl time.Duration) ([]string, error) {
	e.calls++
	return e.removed, nil
}

func TestSweepPrunesExpiredExports(t *testing.T) {
	repo := newClaimRepoStub()
	cleaner := &exportCleanerStub{removed: []string{"claims_20260101_000000.csv"}}
	svc := NewSweeperService(repo, &historyStoreStub{}, cleaner, disabledCache(), nil, nil, SweeperConfig{})

	svc.Sweep(context.Background())
	require.Equal(t, 1, cleaner.calls)
}

// contendedRepoStub simulates a chef responding between the sweeper's
// list and its guarded update.
type contendedRepoStub struct {
	*claimRepoStub
}

func (r *contendedRepoStub) UpdateStatus(ctx context.Context, id int64, from, to models.ClaimStatus, updatedAt time.Time) error {
	return sql.ErrNoRows
}

func TestSweepSkipsClaimsTransitionedElsewhere(t *testing.T) {
	repo := newClaimRepoStub()
	history := &historyStoreStub{}
	svc := NewSweeperService(&contendedRepoStub{repo}, history, nil, disabledCache(), nil, nil, SweeperConfig{})

	past := time.Now().UTC().Add(-time.Hour)
	claim := &models.DamageClaim{Status: models.ClaimStatusSubmitted, ChefResponseDeadline: &past, ManagerID: "mgr-1", ChefID: "chef-9"}
	require.NoError(t, repo.Create(context.Background(), claim))

	svc.Sweep(context.Background())

	require.Equal(t, models.ClaimStatusSubmitted, repo.claims[claim.ID].Status)
	require.Empty(t, history.entries)
}
