package dto

import "github.com/prepshare/claims-api/internal/models"

// AddEvidenceRequest registers an already-uploaded file against a claim.
// The file itself is pushed first through the evidence-files endpoint,
// which returns the opaque FileURL consumed here.
type AddEvidenceRequest struct {
	EvidenceType models.EvidenceType `json:"evidenceType" validate:"required"`
	FileURL      string              `json:"fileUrl" validate:"required"`
	FileName     *string             `json:"fileName"`
	Description  *string             `json:"description" validate:"omitempty,max=1000"`
	AmountCents  *int64              `json:"amountCents" validate:"omitempty,min=0"`
	VendorName   *string             `json:"vendorName" validate:"omitempty,max=200"`
}

// EvidenceUploadResponse returns the storage reference for an uploaded file.
type EvidenceUploadResponse struct {
	FileURL   string `json:"fileUrl"`
	FileName  string `json:"fileName"`
	SizeBytes int64  `json:"sizeBytes"`
	MimeType  string `json:"mimeType"`
}

// EvidenceDownloadResponse enriches evidence with a signed download URL.
type EvidenceDownloadResponse struct {
	models.DamageEvidence
	DownloadURL string `json:"downloadUrl"`
}
