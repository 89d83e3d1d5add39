package models

import (
	"strings"
	"time"
)

// ClaimHistoryEntry is one server-authored audit row in a claim's
// transition log. Clients never write these directly; every claim
// mutation appends an entry.
type ClaimHistoryEntry struct {
	ID             int64        `db:"id" json:"id"`
	ClaimID        int64        `db:"claim_id" json:"-"`
	PreviousStatus *ClaimStatus `db:"previous_status" json:"previousStatus,omitempty"`
	NewStatus      ClaimStatus  `db:"new_status" json:"newStatus"`
	Action         string       `db:"action" json:"action"`
	ActionBy       string       `db:"action_by" json:"actionBy"`
	ActionByUserID *string      `db:"action_by_user_id" json:"actionByUserId,omitempty"`
	Notes          *string      `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"createdAt"`
}

// HumanizedAction returns the action verb with underscores replaced by
// spaces and each word title-cased, for display.
func (e ClaimHistoryEntry) HumanizedAction() string {
	words := strings.Split(strings.ReplaceAll(e.Action, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
