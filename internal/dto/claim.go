package dto

import (
	"time"

	"github.com/prepshare/claims-api/internal/models"
)

// CreateClaimRequest is the claim creation payload. Exactly one of
// KitchenBookingID / StorageBookingID must be provided, matching BookingType.
type CreateClaimRequest struct {
	BookingType        models.BookingType `json:"bookingType" validate:"required,oneof=kitchen storage"`
	KitchenBookingID   *int64             `json:"kitchenBookingId"`
	StorageBookingID   *int64             `json:"storageBookingId"`
	ClaimTitle         string             `json:"claimTitle" validate:"required,min=5,max=200"`
	ClaimDescription   string             `json:"claimDescription" validate:"required,min=50"`
	DamageDate         string             `json:"damageDate" validate:"required,datetime=2006-01-02"`
	ClaimedAmountCents int64              `json:"claimedAmountCents" validate:"required,min=1000"`
}

// ClaimFilter captures claim list query parameters.
type ClaimFilter struct {
	Status     models.ClaimStatus
	IncludeAll bool
	Limit      int
	Offset     int
}

// ClaimProjection is the derived, display-oriented view of a claim's
// current status: the closed action set plus badge metadata.
type ClaimProjection struct {
	AllowedActions []string `json:"allowedActions"`
	CanSubmit      bool     `json:"canSubmit"`
	BadgeLabel     string   `json:"badgeLabel"`
	BadgeVariant   string   `json:"badgeVariant"`
}

// ClaimResponse enriches a claim with its projection.
type ClaimResponse struct {
	models.DamageClaim
	Projection ClaimProjection `json:"projection"`
}

// ClaimListResponse wraps a claim collection.
type ClaimListResponse struct {
	Claims []ClaimResponse `json:"claims"`
}

// RecentBookingsResponse lists eligible bookings plus the filing window.
type RecentBookingsResponse struct {
	Bookings     []models.RecentBooking `json:"bookings"`
	DeadlineDays int                    `json:"deadlineDays"`
}

// HistoryEntryResponse is one transition log row with the display verb
// precomputed server-side.
type HistoryEntryResponse struct {
	models.ClaimHistoryEntry
	DisplayAction string `json:"displayAction"`
}

// HistoryResponse wraps a claim's ordered transition log.
type HistoryResponse struct {
	History []HistoryEntryResponse `json:"history"`
}

// ChefRespondRequest is the chef's accept/dispute payload.
type ChefRespondRequest struct {
	Action   string `json:"action" validate:"required,oneof=accept dispute"`
	Response string `json:"response" validate:"max=2000"`
}

// ReviewDecisionRequest is an admin adjudication payload.
type ReviewDecisionRequest struct {
	Decision            string `json:"decision" validate:"required,oneof=approve partially_approve reject escalate start_review"`
	ApprovedAmountCents *int64 `json:"approvedAmountCents" validate:"omitempty,min=0"`
	Notes               string `json:"notes" validate:"max=2000"`
}

// DamagedItemRequest attaches one equipment reference to a draft claim.
type DamagedItemRequest struct {
	EquipmentID   string `json:"equipmentId" validate:"required"`
	EquipmentName string `json:"equipmentName" validate:"required,max=200"`
}

// ParseDamageDate converts the wire date into a calendar date.
func (r CreateClaimRequest) ParseDamageDate() (time.Time, error) {
	return time.Parse("2006-01-02", r.DamageDate)
}
