package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prepshare/claims-api/internal/dto"
	"github.com/prepshare/claims-api/internal/models"
	appErrors "github.com/prepshare/claims-api/pkg/errors"
	"github.com/prepshare/claims-api/pkg/response"
)

type adminReviewService interface {
	ReviewQueue(ctx context.Context, actor *models.JWTClaims) (*dto.ClaimListResponse, error)
	Decide(ctx context.Context, id int64, req dto.ReviewDecisionRequest, actor *models.JWTClaims) (*dto.ClaimResponse, error)
}

// AdminHandler exposes the admin adjudication endpoints.
type AdminHandler struct {
	service adminReviewService
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(service adminReviewService) *AdminHandler {
	return &AdminHandler{service: service}
}

// ReviewQueue godoc
// @Summary List disputed and in-review claims
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/damage-claims/review-queue [get]
func (h *AdminHandler) ReviewQueue(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.ReviewQueue(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Decide godoc
// @Summary Apply a review decision to a claim
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path int true "Claim ID"
// @Param payload body dto.ReviewDecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /admin/damage-claims/{id}/decision [post]
func (h *AdminHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := claimIDParam(c)
	if !ok {
		return
	}
	var req dto.ReviewDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}
	result, err := h.service.Decide(c.Request.Context(), id, req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
