package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/prepshare/claims-api/internal/models"
	"github.com/prepshare/claims-api/pkg/jobs"
)

type gatewayStub struct {
	result   *ChargeResult
	err      error
	requests []ChargeRequest
	called   chan struct{}
}

func (g *gatewayStub) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	g.requests = append(g.requests, req)
	if g.called != nil {
		close(g.called)
	}
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

func seedPendingClaim(t *testing.T, repo *claimRepoStub, approved *int64) int64 {
	t.Helper()
	claim := &models.DamageClaim{
		BookingType:         models.BookingTypeKitchen,
		ManagerID:           "mgr-1",
		ChefID:              "chef-9",
		ClaimTitle:          "Shattered display fridge glass",
		ClaimedAmountCents:  50000,
		ApprovedAmountCents: approved,
		Status:              models.ClaimStatusChargePending,
	}
	require.NoError(t, repo.Create(context.Background(), claim))
	return claim.ID
}

func newChargeFixture(repo *claimRepoStub, gateway *gatewayStub) (*ChargeService, *historyStoreStub) {
	history := &historyStoreStub{}
	svc := NewChargeService(repo, history, gateway, disabledCache(), nil, nil, 1, 1)
	return svc, history
}

func TestChargeSuccessRecordsFinalAmount(t *testing.T) {
	repo := newClaimRepoStub()
	gateway := &gatewayStub{result: &ChargeResult{Succeeded: true, SettledCents: 50000, ProviderRef: "ch_123"}}
	svc, history := newChargeFixture(repo, gateway)
	id := seedPendingClaim(t, repo, nil)

	err := svc.process(context.Background(), jobs.Job{Payload: id})
	require.NoError(t, err)

	claim := repo.claims[id]
	require.Equal(t, models.ClaimStatusChargeSucceeded, claim.Status)
	require.NotNil(t, claim.FinalAmountCents)
	require.Equal(t, int64(50000), *claim.FinalAmountCents)
	require.Len(t, history.entries, 1)
	require.Equal(t, "charge_succeeded", history.entries[0].Action)
}

func TestChargeUsesApprovedAmountWhenSet(t *testing.T) {
	repo := newClaimRepoStub()
	gateway := &gatewayStub{result: &ChargeResult{Succeeded: true}}
	svc, _ := newChargeFixture(repo, gateway)
	approved := int64(30000)
	id := seedPendingClaim(t, repo, &approved)

	require.NoError(t, svc.process(context.Background(), jobs.Job{Payload: id}))
	require.Len(t, gateway.requests, 1)
	require.Equal(t, approved, gateway.requests[0].AmountCents)

	// Gateway reported no settled amount; the requested amount stands.
	require.Equal(t, approved, *repo.claims[id].FinalAmountCents)
}

func TestChargeDeclineMarksChargeFailed(t *testing.T) {
	repo := newClaimRepoStub()
	gateway := &gatewayStub{result: &ChargeResult{Succeeded: false, FailureReason: "card declined upstream"}}
	svc, history := newChargeFixture(repo, gateway)
	id := seedPendingClaim(t, repo, nil)

	err := svc.process(context.Background(), jobs.Job{Payload: id})
	require.NoError(t, err)

	claim := repo.claims[id]
	require.Equal(t, models.ClaimStatusChargeFailed, claim.Status)
	require.Nil(t, claim.FinalAmountCents)
	require.Len(t, history.entries, 1)
	require.Equal(t, "charge_failed", history.entries[0].Action)
	require.Contains(t, *history.entries[0].Notes, "card declined")
}

func TestChargeTransportErrorConsumesRetryBudget(t *testing.T) {
	repo := newClaimRepoStub()
	gateway := &gatewayStub{err: fmt.Errorf("charge gateway returned 503")}
	svc, history := newChargeFixture(repo, gateway)
	id := seedPendingClaim(t, repo, nil)

	// First attempt hands the job back to the queue for a retry.
	err := svc.process(context.Background(), jobs.Job{Payload: id})
	require.Error(t, err)
	require.Equal(t, models.ClaimStatusChargePending, repo.claims[id].Status)
	require.Empty(t, history.entries)
	require.Len(t, gateway.requests, 1)

	// The final attempt records the failure instead of retrying.
	err = svc.process(context.Background(), jobs.Job{Payload: id, Attempt: 1})
	require.NoError(t, err)
	require.Equal(t, models.ClaimStatusChargeFailed, repo.claims[id].Status)
	require.Len(t, history.entries, 1)
	require.Equal(t, "charge_failed", history.entries[0].Action)
	require.Contains(t, *history.entries[0].Notes, "503")
}

func TestChargeSkipsNonPendingClaims(t *testing.T) {
	repo := newClaimRepoStub()
	gateway := &gatewayStub{result: &ChargeResult{Succeeded: true}}
	svc, history := newChargeFixture(repo, gateway)
	id := seedPendingClaim(t, repo, nil)
	repo.claims[id].Status = models.ClaimStatusResolved

	require.NoError(t, svc.process(context.Background(), jobs.Job{Payload: id}))
	require.Empty(t, gateway.requests)
	require.Empty(t, history.entries)
	require.Equal(t, models.ClaimStatusResolved, repo.claims[id].Status)
}

func TestChargeDropsMissingClaim(t *testing.T) {
	repo := newClaimRepoStub()
	gateway := &gatewayStub{result: &ChargeResult{Succeeded: true}}
	svc, _ := newChargeFixture(repo, gateway)

	require.NoError(t, svc.process(context.Background(), jobs.Job{Payload: int64(404)}))
	require.Empty(t, gateway.requests)
}

func TestEnqueueRequiresStartedQueue(t *testing.T) {
	repo := newClaimRepoStub()
	gateway := &gatewayStub{result: &ChargeResult{Succeeded: true}, called: make(chan struct{})}
	svc, _ := newChargeFixture(repo, gateway)

	require.Error(t, svc.EnqueueCharge(context.Background(), 1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	id := seedPendingClaim(t, repo, nil)
	require.NoError(t, svc.EnqueueCharge(context.Background(), id))

	select {
	case <-gateway.called:
	case <-time.After(2 * time.Second):
		t.Fatal("charge worker never reached the gateway")
	}
	svc.Stop()
	require.Equal(t, models.ClaimStatusChargeSucceeded, repo.claims[id].Status)
}
