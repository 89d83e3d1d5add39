package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/prepshare/claims-api/internal/dto"
	"github.com/prepshare/claims-api/internal/models"
	"github.com/prepshare/claims-api/internal/service"
	appErrors "github.com/prepshare/claims-api/pkg/errors"
	"github.com/prepshare/claims-api/pkg/response"
)

type evidenceService interface {
	Upload(ctx context.Context, upload service.EvidenceUpload, actor *models.JWTClaims) (*dto.EvidenceUploadResponse, error)
	Add(ctx context.Context, claimID int64, req dto.AddEvidenceRequest, actor *models.JWTClaims) (*models.DamageEvidence, error)
	Remove(ctx context.Context, claimID, evidenceID int64, actor *models.JWTClaims) error
	GetDownloadURL(ctx context.Context, claimID, evidenceID int64, actor *models.JWTClaims) (string, error)
	Download(ctx context.Context, claimID, evidenceID int64, token string, actor *models.JWTClaims) (*service.EvidenceDownload, error)
}

// EvidenceHandler exposes the two-phase evidence endpoints: file upload
// first, then registration against a draft claim.
type EvidenceHandler struct {
	service evidenceService
}

// NewEvidenceHandler constructs the handler.
func NewEvidenceHandler(service evidenceService) *EvidenceHandler {
	return &EvidenceHandler{service: service}
}

// Upload godoc
// @Summary Upload an evidence file
// @Tags Evidence
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Evidence file"
// @Success 201 {object} response.Envelope
// @Router /manager/damage-claims/evidence-files [post]
func (h *EvidenceHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	reader, ok := src.(io.ReadSeeker)
	if !ok {
		buf, readErr := io.ReadAll(src)
		if readErr != nil {
			response.Error(c, appErrors.Wrap(readErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file"))
			return
		}
		reader = bytes.NewReader(buf)
	}
	upload := service.EvidenceUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  reader,
	}
	result, err := h.service.Upload(c.Request.Context(), upload, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, result, nil)
}

// Add godoc
// @Summary Register an uploaded file as claim evidence
// @Tags Evidence
// @Accept json
// @Produce json
// @Param id path int true "Claim ID"
// @Param payload body dto.AddEvidenceRequest true "Evidence payload"
// @Success 201 {object} response.Envelope
// @Router /manager/damage-claims/{id}/evidence [post]
func (h *EvidenceHandler) Add(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	claimID, ok := claimIDParam(c)
	if !ok {
		return
	}
	var req dto.AddEvidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid evidence payload"))
		return
	}
	evidence, err := h.service.Add(c.Request.Context(), claimID, req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, evidence, nil)
}

// Remove godoc
// @Summary Remove evidence from a draft claim
// @Tags Evidence
// @Produce json
// @Param id path int true "Claim ID"
// @Param evidenceId path int true "Evidence ID"
// @Success 204
// @Router /manager/damage-claims/{id}/evidence/{evidenceId} [delete]
func (h *EvidenceHandler) Remove(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	claimID, ok := claimIDParam(c)
	if !ok {
		return
	}
	evidenceID, ok := evidenceIDParam(c)
	if !ok {
		return
	}
	if err := h.service.Remove(c.Request.Context(), claimID, evidenceID, claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DownloadURL godoc
// @Summary Get a signed download URL for an evidence file
// @Tags Evidence
// @Produce json
// @Param id path int true "Claim ID"
// @Param evidenceId path int true "Evidence ID"
// @Success 200 {object} response.Envelope
// @Router /manager/damage-claims/{id}/evidence/{evidenceId}/url [get]
func (h *EvidenceHandler) DownloadURL(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	claimID, ok := claimIDParam(c)
	if !ok {
		return
	}
	evidenceID, ok := evidenceIDParam(c)
	if !ok {
		return
	}
	url, err := h.service.GetDownloadURL(c.Request.Context(), claimID, evidenceID, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"downloadUrl": url}, nil)
}

// Download godoc
// @Summary Download an evidence file via signed token
// @Tags Evidence
// @Produce octet-stream
// @Param id path int true "Claim ID"
// @Param evidenceId path int true "Evidence ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /manager/damage-claims/{id}/evidence/{evidenceId}/download [get]
func (h *EvidenceHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	claimID, ok := claimIDParam(c)
	if !ok {
		return
	}
	evidenceID, ok := evidenceIDParam(c)
	if !ok {
		return
	}
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.Download(c.Request.Context(), claimID, evidenceID, token, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.MimeType, result.File, nil)
}

func evidenceIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("evidenceId"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid evidence id"))
		return 0, false
	}
	return id, true
}
