package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/prepshare/claims-api/internal/dto"
	"github.com/prepshare/claims-api/internal/middleware"
	"github.com/prepshare/claims-api/internal/models"
	appErrors "github.com/prepshare/claims-api/pkg/errors"
	"github.com/prepshare/claims-api/pkg/response"
)

type claimService interface {
	RecentBookings(ctx context.Context, actor *models.JWTClaims) (*dto.RecentBookingsResponse, error)
	Create(ctx context.Context, req dto.CreateClaimRequest, actor *models.JWTClaims) (*dto.ClaimResponse, error)
	List(ctx context.Context, filter dto.ClaimFilter, actor *models.JWTClaims) (*dto.ClaimListResponse, bool, error)
	Get(ctx context.Context, id int64, actor *models.JWTClaims) (*dto.ClaimResponse, error)
	Submit(ctx context.Context, id int64, actor *models.JWTClaims) (*dto.ClaimResponse, error)
	RequestCharge(ctx context.Context, id int64, actor *models.JWTClaims) (*dto.ClaimResponse, error)
	Delete(ctx context.Context, id int64, actor *models.JWTClaims) error
	History(ctx context.Context, id int64, actor *models.JWTClaims) (*dto.HistoryResponse, error)
	AddDamagedItem(ctx context.Context, id int64, req dto.DamagedItemRequest, actor *models.JWTClaims) (*models.DamagedItem, error)
}

// ClaimHandler exposes the manager-facing damage claim endpoints.
type ClaimHandler struct {
	service claimService
}

// NewClaimHandler constructs the handler.
func NewClaimHandler(service claimService) *ClaimHandler {
	return &ClaimHandler{service: service}
}

// RecentBookings godoc
// @Summary List bookings eligible for a damage claim
// @Tags Claims
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /manager/damage-claims/recent-bookings [get]
func (h *ClaimHandler) RecentBookings(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.RecentBookings(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Create godoc
// @Summary Create a draft damage claim
// @Tags Claims
// @Accept json
// @Produce json
// @Param payload body dto.CreateClaimRequest true "Claim payload"
// @Success 201 {object} response.Envelope
// @Router /manager/damage-claims [post]
func (h *ClaimHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid claim payload"))
		return
	}
	result, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, result, nil)
}

// List godoc
// @Summary List damage claims
// @Tags Claims
// @Produce json
// @Param status query string false "Status filter"
// @Param includeAll query bool false "Include resolved and terminal claims"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} response.Envelope
// @Router /manager/damage-claims [get]
func (h *ClaimHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := dto.ClaimFilter{
		IncludeAll: c.Query("includeAll") == "true",
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		filter.Status = models.ClaimStatus(status)
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		filter.Offset = offset
	}
	result, cacheHit, err := h.service.List(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get one damage claim with projection
// @Tags Claims
// @Produce json
// @Param id path int true "Claim ID"
// @Success 200 {object} response.Envelope
// @Router /manager/damage-claims/{id} [get]
func (h *ClaimHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := claimIDParam(c)
	if !ok {
		return
	}
	result, err := h.service.Get(c.Request.Context(), id, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Submit godoc
// @Summary Submit a draft claim for chef response
// @Tags Claims
// @Produce json
// @Param id path int true "Claim ID"
// @Success 200 {object} response.Envelope
// @Router /manager/damage-claims/{id}/submit [post]
func (h *ClaimHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := claimIDParam(c)
	if !ok {
		return
	}
	result, err := h.service.Submit(c.Request.Context(), id, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Charge godoc
// @Summary Request the chef charge for an accepted or approved claim
// @Tags Claims
// @Produce json
// @Param id path int true "Claim ID"
// @Success 202 {object} response.Envelope
// @Router /manager/damage-claims/{id}/charge [post]
func (h *ClaimHandler) Charge(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := claimIDParam(c)
	if !ok {
		return
	}
	result, err := h.service.RequestCharge(c.Request.Context(), id, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, result, nil)
}

// Delete godoc
// @Summary Delete a draft claim
// @Tags Claims
// @Produce json
// @Param id path int true "Claim ID"
// @Success 204
// @Router /manager/damage-claims/{id} [delete]
func (h *ClaimHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := claimIDParam(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id, claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// History godoc
// @Summary Get the claim's transition history
// @Tags Claims
// @Produce json
// @Param id path int true "Claim ID"
// @Success 200 {object} response.Envelope
// @Router /manager/damage-claims/{id}/history [get]
func (h *ClaimHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := claimIDParam(c)
	if !ok {
		return
	}
	result, err := h.service.History(c.Request.Context(), id, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// AddDamagedItem godoc
// @Summary Attach a damaged equipment reference to a draft claim
// @Tags Claims
// @Accept json
// @Produce json
// @Param id path int true "Claim ID"
// @Param payload body dto.DamagedItemRequest true "Damaged item"
// @Success 201 {object} response.Envelope
// @Router /manager/damage-claims/{id}/damaged-items [post]
func (h *ClaimHandler) AddDamagedItem(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := claimIDParam(c)
	if !ok {
		return
	}
	var req dto.DamagedItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid damaged item payload"))
		return
	}
	item, err := h.service.AddDamagedItem(c.Request.Context(), id, req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, item, nil)
}

// claimIDParam parses the numeric claim id path segment, writing the
// error response itself on failure.
func claimIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid claim id"))
		return 0, false
	}
	return id, true
}
