package service

import (
	"github.com/prepshare/claims-api/internal/dto"
	"github.com/prepshare/claims-api/internal/models"
)

// Claim actions exposed to managers. The projector derives the closed
// set permitted for a claim's current status.
const (
	ActionAddEvidence    = "add_evidence"
	ActionRemoveEvidence = "remove_evidence"
	ActionSubmit         = "submit"
	ActionDelete         = "delete"
	ActionCharge         = "charge"
	ActionView           = "view"
)

type badge struct {
	Label   string
	Variant string
}

// badgeTable is the static status → badge lookup. Unknown statuses fall
// back to the raw string in a neutral outline badge so new server values
// never break rendering.
var badgeTable = map[models.ClaimStatus]badge{
	models.ClaimStatusDraft:             {"Draft", "secondary"},
	models.ClaimStatusSubmitted:         {"Submitted", "default"},
	models.ClaimStatusChefAccepted:      {"Chef Accepted", "success"},
	models.ClaimStatusChefDisputed:      {"Chef Disputed", "destructive"},
	models.ClaimStatusUnderReview:       {"Under Review", "default"},
	models.ClaimStatusApproved:          {"Approved", "success"},
	models.ClaimStatusPartiallyApproved: {"Partially Approved", "success"},
	models.ClaimStatusRejected:          {"Rejected", "destructive"},
	models.ClaimStatusChargePending:     {"Charge Pending", "default"},
	models.ClaimStatusChargeSucceeded:   {"Charge Succeeded", "success"},
	models.ClaimStatusChargeFailed:      {"Charge Failed", "destructive"},
	models.ClaimStatusEscalated:         {"Escalated", "destructive"},
	models.ClaimStatusResolved:          {"Resolved", "secondary"},
	models.ClaimStatusExpired:           {"Expired", "outline"},
}

// chargeableStatuses lists states from which a manager may charge the chef.
var chargeableStatuses = map[models.ClaimStatus]struct{}{
	models.ClaimStatusApproved:          {},
	models.ClaimStatusPartiallyApproved: {},
	models.ClaimStatusChefAccepted:      {},
	models.ClaimStatusChargeFailed:      {},
}

// ClaimProjector derives UI-permitted actions and badge metadata from a
// claim snapshot. It is a pure projection; it never mutates claims and
// all transition authority stays with the services that own writes.
type ClaimProjector struct {
	MinEvidence int
}

// NewClaimProjector builds a projector with the provided evidence gate.
func NewClaimProjector(minEvidence int) *ClaimProjector {
	if minEvidence <= 0 {
		minEvidence = 2
	}
	return &ClaimProjector{MinEvidence: minEvidence}
}

// CanSubmit is the submission gate: a claim is submittable only while in
// draft with at least MinEvidence evidence items attached.
func (p *ClaimProjector) CanSubmit(claim *models.DamageClaim) bool {
	if claim == nil {
		return false
	}
	return claim.Status == models.ClaimStatusDraft && len(claim.Evidence) >= p.MinEvidence
}

// Chargeable reports whether the claim status permits a charge.
func (p *ClaimProjector) Chargeable(status models.ClaimStatus) bool {
	_, ok := chargeableStatuses[status]
	return ok
}

// Project maps the claim's current status into its allowed action set
// and badge presentation.
func (p *ClaimProjector) Project(claim *models.DamageClaim) dto.ClaimProjection {
	projection := dto.ClaimProjection{AllowedActions: []string{ActionView}}
	if claim == nil {
		projection.BadgeVariant = "outline"
		return projection
	}

	switch {
	case claim.Status == models.ClaimStatusDraft:
		projection.AllowedActions = []string{ActionAddEvidence, ActionRemoveEvidence, ActionDelete, ActionView}
		if p.CanSubmit(claim) {
			projection.AllowedActions = append(projection.AllowedActions, ActionSubmit)
			projection.CanSubmit = true
		}
	case p.Chargeable(claim.Status):
		projection.AllowedActions = []string{ActionCharge, ActionView}
	}

	if b, ok := badgeTable[claim.Status]; ok {
		projection.BadgeLabel = b.Label
		projection.BadgeVariant = b.Variant
	} else {
		projection.BadgeLabel = string(claim.Status)
		projection.BadgeVariant = "outline"
	}
	return projection
}
