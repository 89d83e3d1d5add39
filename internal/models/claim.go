package models

import "time"

// ClaimStatus is the server-owned lifecycle state of a damage claim.
type ClaimStatus string

const (
	ClaimStatusDraft             ClaimStatus = "draft"
	ClaimStatusSubmitted         ClaimStatus = "submitted"
	ClaimStatusChefAccepted      ClaimStatus = "chef_accepted"
	ClaimStatusChefDisputed      ClaimStatus = "chef_disputed"
	ClaimStatusUnderReview       ClaimStatus = "under_review"
	ClaimStatusApproved          ClaimStatus = "approved"
	ClaimStatusPartiallyApproved ClaimStatus = "partially_approved"
	ClaimStatusRejected          ClaimStatus = "rejected"
	ClaimStatusChargePending     ClaimStatus = "charge_pending"
	ClaimStatusChargeSucceeded   ClaimStatus = "charge_succeeded"
	ClaimStatusChargeFailed      ClaimStatus = "charge_failed"
	ClaimStatusEscalated         ClaimStatus = "escalated"
	ClaimStatusResolved          ClaimStatus = "resolved"
	ClaimStatusExpired           ClaimStatus = "expired"
)

// BookingType discriminates which booking reference a claim targets.
type BookingType string

const (
	BookingTypeKitchen BookingType = "kitchen"
	BookingTypeStorage BookingType = "storage"
)

// DamageClaim represents one damage claim row. Exactly one of
// KitchenBookingID / StorageBookingID is non-null, matching BookingType.
type DamageClaim struct {
	ID                   int64       `db:"id" json:"id"`
	BookingType          BookingType `db:"booking_type" json:"bookingType"`
	KitchenBookingID     *int64      `db:"kitchen_booking_id" json:"kitchenBookingId,omitempty"`
	StorageBookingID     *int64      `db:"storage_booking_id" json:"storageBookingId,omitempty"`
	ChefID               string      `db:"chef_id" json:"chefId"`
	ManagerID            string      `db:"manager_id" json:"managerId"`
	LocationID           string      `db:"location_id" json:"locationId"`
	ClaimTitle           string      `db:"claim_title" json:"claimTitle"`
	ClaimDescription     string      `db:"claim_description" json:"claimDescription"`
	DamageDate           time.Time   `db:"damage_date" json:"damageDate"`
	ClaimedAmountCents   int64       `db:"claimed_amount_cents" json:"claimedAmountCents"`
	ApprovedAmountCents  *int64      `db:"approved_amount_cents" json:"approvedAmountCents,omitempty"`
	FinalAmountCents     *int64      `db:"final_amount_cents" json:"finalAmountCents,omitempty"`
	ChefResponse         *string     `db:"chef_response" json:"chefResponse,omitempty"`
	ChefRespondedAt      *time.Time  `db:"chef_responded_at" json:"chefRespondedAt,omitempty"`
	ChefResponseDeadline *time.Time  `db:"chef_response_deadline" json:"chefResponseDeadline,omitempty"`
	Status               ClaimStatus `db:"status" json:"status"`
	SubmittedAt          *time.Time  `db:"submitted_at" json:"submittedAt,omitempty"`
	CreatedAt            time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time   `db:"updated_at" json:"updatedAt"`

	// Loaded separately; insertion order is upload order.
	Evidence     []DamageEvidence `db:"-" json:"evidence"`
	DamagedItems []DamagedItem    `db:"-" json:"damagedItems,omitempty"`
}

// BookingID returns whichever booking reference is set.
func (c *DamageClaim) BookingID() *int64 {
	if c.KitchenBookingID != nil {
		return c.KitchenBookingID
	}
	return c.StorageBookingID
}

// ChargeableAmountCents is the amount a charge settles: the adjudicated
// amount when present, otherwise the original ask.
func (c *DamageClaim) ChargeableAmountCents() int64 {
	if c.ApprovedAmountCents != nil {
		return *c.ApprovedAmountCents
	}
	return c.ClaimedAmountCents
}

// DamagedItem is a read-only equipment reference implicated in a claim.
type DamagedItem struct {
	ID            int64  `db:"id" json:"id"`
	ClaimID       int64  `db:"claim_id" json:"-"`
	EquipmentID   string `db:"equipment_id" json:"equipmentId"`
	EquipmentName string `db:"equipment_name" json:"equipmentName"`
}

// ClaimFilter narrows claim listing queries.
type ClaimFilter struct {
	ManagerID  string
	ChefID     string
	LocationID string
	Status     ClaimStatus
	// IncludeAll keeps terminal claims (resolved, rejected, expired,
	// charge_succeeded) in list results; they are excluded by default.
	IncludeAll bool
	Limit      int
	Offset     int
}

// TerminalStatuses are excluded from default list views.
var TerminalStatuses = []ClaimStatus{
	ClaimStatusChargeSucceeded,
	ClaimStatusResolved,
	ClaimStatusRejected,
	ClaimStatusExpired,
}
