package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prepshare/claims-api/internal/models"
	"github.com/prepshare/claims-api/internal/service"
	appErrors "github.com/prepshare/claims-api/pkg/errors"
	"github.com/prepshare/claims-api/pkg/response"
)

type exportService interface {
	ClaimStatement(ctx context.Context, id int64, actor *models.JWTClaims) (*service.ExportResult, error)
	ClaimsCSV(ctx context.Context, filter models.ClaimFilter, actor *models.JWTClaims) (*service.ExportResult, error)
	ParseToken(token string, allowExpired bool) (refID, relPath string, expiresAt time.Time, err error)
	Open(relPath string) (*os.File, error)
}

// ExportHandler exposes statement and listing exports.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Statement godoc
// @Summary Generate a claim statement PDF
// @Tags Exports
// @Produce json
// @Param id path int true "Claim ID"
// @Success 201 {object} response.Envelope
// @Router /manager/damage-claims/{id}/statement.pdf [get]
func (h *ExportHandler) Statement(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := claimIDParam(c)
	if !ok {
		return
	}
	result, err := h.service.ClaimStatement(c.Request.Context(), id, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, result, nil)
}

// ClaimsCSV godoc
// @Summary Generate a CSV export of claims
// @Tags Exports
// @Produce json
// @Param status query string false "Status filter"
// @Success 201 {object} response.Envelope
// @Router /manager/damage-claims/export.csv [get]
func (h *ExportHandler) ClaimsCSV(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.ClaimFilter{}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		filter.Status = models.ClaimStatus(status)
	}
	result, err := h.service.ClaimsCSV(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, result, nil)
}

// Download godoc
// @Summary Download a generated export via signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	_, relPath, _, err := h.service.ParseToken(token, false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token"))
		return
	}
	file, err := h.service.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export no longer available"))
		return
	}
	defer file.Close() //nolint:errcheck
	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}
	contentType := "application/octet-stream"
	switch strings.ToLower(filepath.Ext(relPath)) {
	case ".pdf":
		contentType = "application/pdf"
	case ".csv":
		contentType = "text/csv"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filepath.Base(relPath)))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
