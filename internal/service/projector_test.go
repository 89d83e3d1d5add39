package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prepshare/claims-api/internal/models"
)

func claimWithEvidence(status models.ClaimStatus, count int) *models.DamageClaim {
	claim := &models.DamageClaim{ID: 1, Status: status}
	for i := 0; i < count; i++ {
		claim.Evidence = append(claim.Evidence, models.DamageEvidence{ID: int64(i + 1), ClaimID: 1})
	}
	return claim
}

func TestProjectorBadges(t *testing.T) {
	p := NewClaimProjector(2)

	cases := []struct {
		status  models.ClaimStatus
		label   string
		variant string
	}{
		{models.ClaimStatusDraft, "Draft", "secondary"},
		{models.ClaimStatusSubmitted, "Submitted", "default"},
		{models.ClaimStatusChefAccepted, "Chef Accepted", "success"},
		{models.ClaimStatusChefDisputed, "Chef Disputed", "destructive"},
		{models.ClaimStatusUnderReview, "Under Review", "default"},
		{models.ClaimStatusApproved, "Approved", "success"},
		{models.ClaimStatusPartiallyApproved, "Partially Approved", "success"},
		{models.ClaimStatusRejected, "Rejected", "destructive"},
		{models.ClaimStatusChargePending, "Charge Pending", "default"},
		{models.ClaimStatusChargeSucceeded, "Charge Succeeded", "success"},
		{models.ClaimStatusChargeFailed, "Charge Failed", "destructive"},
		{models.ClaimStatusEscalated, "Escalated", "destructive"},
		{models.ClaimStatusResolved, "Resolved", "secondary"},
		{models.ClaimStatusExpired, "Expired", "outline"},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			projection := p.Project(claimWithEvidence(tc.status, 0))
			require.Equal(t, tc.label, projection.BadgeLabel)
			require.Equal(t, tc.variant, projection.BadgeVariant)
		})
	}
}

func TestProjectorUnknownStatusFallback(t *testing.T) {
	p := NewClaimProjector(2)

	projection := p.Project(claimWithEvidence(models.ClaimStatus("mediation_pending"), 0))
	require.Equal(t, "mediation_pending", projection.BadgeLabel)
	require.Equal(t, "outline", projection.BadgeVariant)
	require.Equal(t, []string{ActionView}, projection.AllowedActions)
	require.False(t, projection.CanSubmit)
}

func TestProjectorNilClaim(t *testing.T) {
	p := NewClaimProjector(2)

	projection := p.Project(nil)
	require.Equal(t, "outline", projection.BadgeVariant)
	require.Equal(t, []string{ActionView}, projection.AllowedActions)
}

func TestSubmissionGate(t *testing.T) {
	p := NewClaimProjector(2)

	cases := []struct {
		name     string
		status   models.ClaimStatus
		evidence int
		want     bool
	}{
		{"draft with zero evidence", models.ClaimStatusDraft, 0, false},
		{"draft with one item", models.ClaimStatusDraft, 1, false},
		{"draft at minimum", models.ClaimStatusDraft, 2, true},
		{"draft above minimum", models.ClaimStatusDraft, 5, true},
		{"submitted with enough evidence", models.ClaimStatusSubmitted, 4, false},
		{"rejected with enough evidence", models.ClaimStatusRejected, 4, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, p.CanSubmit(claimWithEvidence(tc.status, tc.evidence)))
		})
	}
	require.False(t, p.CanSubmit(nil))
}

func TestDraftActions(t *testing.T) {
	p := NewClaimProjector(2)

	ready := p.Project(claimWithEvidence(models.ClaimStatusDraft, 3))
	require.True(t, ready.CanSubmit)
	require.Contains(t, ready.AllowedActions, ActionSubmit)
	require.Contains(t, ready.AllowedActions, ActionAddEvidence)
	require.Contains(t, ready.AllowedActions, ActionRemoveEvidence)
	require.Contains(t, ready.AllowedActions, ActionDelete)

	notReady := p.Project(claimWithEvidence(models.ClaimStatusDraft, 1))
	require.False(t, notReady.CanSubmit)
	require.NotContains(t, notReady.AllowedActions, ActionSubmit)
}

func TestChargeableStatuses(t *testing.T) {
	p := NewClaimProjector(2)

	chargeable := []models.ClaimStatus{
		models.ClaimStatusApproved,
		models.ClaimStatusPartiallyApproved,
		models.ClaimStatusChefAccepted,
		models.ClaimStatusChargeFailed,
	}
	for _, status := range chargeable {
		require.True(t, p.Chargeable(status), "expected %s to be chargeable", status)
		projection := p.Project(claimWithEvidence(status, 2))
		require.Contains(t, projection.AllowedActions, ActionCharge)
	}

	notChargeable := []models.ClaimStatus{
		models.ClaimStatusDraft,
		models.ClaimStatusSubmitted,
		models.ClaimStatusChefDisputed,
		models.ClaimStatusUnderReview,
		models.ClaimStatusChargePending,
		models.ClaimStatusChargeSucceeded,
		models.ClaimStatusRejected,
		models.ClaimStatusEscalated,
		models.ClaimStatusResolved,
		models.ClaimStatusExpired,
	}
	for _, status := range notChargeable {
		require.False(t, p.Chargeable(status), "expected %s not to be chargeable", status)
	}
}
