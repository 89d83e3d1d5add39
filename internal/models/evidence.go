package models

import "time"

// EvidenceType enumerates the supported evidence artifact kinds.
type EvidenceType string

const (
	EvidencePhotoBefore      EvidenceType = "photo_before"
	EvidencePhotoAfter       EvidenceType = "photo_after"
	EvidenceReceipt          EvidenceType = "receipt"
	EvidenceInvoice          EvidenceType = "invoice"
	EvidenceVideo            EvidenceType = "video"
	EvidenceDocument         EvidenceType = "document"
	EvidenceThirdPartyReport EvidenceType = "third_party_report"
)

// ValidEvidenceType reports whether the given value is a known evidence type.
func ValidEvidenceType(t EvidenceType) bool {
	switch t {
	case EvidencePhotoBefore, EvidencePhotoAfter, EvidenceReceipt, EvidenceInvoice,
		EvidenceVideo, EvidenceDocument, EvidenceThirdPartyReport:
		return true
	}
	return false
}

// FinancialEvidenceType reports whether amount/vendor annotations apply.
func FinancialEvidenceType(t EvidenceType) bool {
	return t == EvidenceReceipt || t == EvidenceInvoice
}

// DamageEvidence is one file-backed artifact attached to a claim.
// Rows are immutable once the parent claim leaves draft.
type DamageEvidence struct {
	ID           int64        `db:"id" json:"id"`
	ClaimID      int64        `db:"claim_id" json:"-"`
	EvidenceType EvidenceType `db:"evidence_type" json:"evidenceType"`
	FileURL      string       `db:"file_url" json:"fileUrl"`
	FileName     *string      `db:"file_name" json:"fileName,omitempty"`
	Description  *string      `db:"description" json:"description,omitempty"`
	AmountCents  *int64       `db:"amount_cents" json:"amountCents,omitempty"`
	VendorName   *string      `db:"vendor_name" json:"vendorName,omitempty"`
	UploadedAt   time.Time    `db:"uploaded_at" json:"uploadedAt"`
}
