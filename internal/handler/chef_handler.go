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

type chefReviewService interface {
	PendingForChef(ctx context.Context, actor *models.JWTClaims) (*dto.ClaimListResponse, error)
	Respond(ctx context.Context, id int64, req dto.ChefRespondRequest, actor *models.JWTClaims) (*dto.ClaimResponse, error)
}

// ChefHandler exposes the chef-side response endpoints.
type ChefHandler struct {
	service chefReviewService
}

// NewChefHandler constructs the handler.
func NewChefHandler(service chefReviewService) *ChefHandler {
	return &ChefHandler{service: service}
}

// Pending godoc
// @Summary List claims awaiting this chef's response
// @Tags Chef
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /chef/damage-claims/pending [get]
func (h *ChefHandler) Pending(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.PendingForChef(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Respond godoc
// @Summary Accept or dispute a submitted claim
// @Tags Chef
// @Accept json
// @Produce json
// @Param id path int true "Claim ID"
// @Param payload body dto.ChefRespondRequest true "Response payload"
// @Success 200 {object} response.Envelope
// @Router /chef/damage-claims/{id}/respond [post]
func (h *ChefHandler) Respond(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := claimIDParam(c)
	if !ok {
		return
	}
	var req dto.ChefRespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid response payload"))
		return
	}
	result, err := h.service.Respond(c.Request.Context(), id, req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
