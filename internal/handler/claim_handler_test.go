package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/prepshare/claims-api/internal/dto"
	"github.com/prepshare/claims-api/internal/middleware"
	"github.com/prepshare/claims-api/internal/models"
	appErrors "github.com/prepshare/claims-api/pkg/errors"
)

type claimServiceMock struct {
	createResp *dto.ClaimResponse
	createErr  error
	listResp   *dto.ClaimListResponse
	listHit    bool
	listErr    error
	getResp    *dto.ClaimResponse
	getErr     error
	submitResp *dto.ClaimResponse
	submitErr  error
	chargeResp *dto.ClaimResponse
	chargeErr  error
	deleteErr  error
}

func (m *claimServiceMock) RecentBookings(ctx context.Context, actor *models.JWTClaims) (*dto.RecentBookingsResponse, error) {
	return &dto.RecentBookingsResponse{DeadlineDays: 14}, nil
}

func (m *claimServiceMock) Create(ctx context.Context, req dto.CreateClaimRequest, actor *models.JWTClaims) (*dto.ClaimResponse, error) {
	return m.createResp, m.createErr
}

func (m *claimServiceMock) List(ctx context.Context, filter dto.ClaimFilter, actor *models.JWTClaims) (*dto.ClaimListResponse, bool, error) {
	return m.listResp, m.listHit, m.listErr
}

func (m *claimServiceMock) Get(ctx context.Context, id int64, actor *models.JWTClaims) (*dto.ClaimResponse, error) {
	return m.getResp, m.getErr
}

func (m *claimServiceMock) Submit(ctx context.Context, id int64, actor *models.JWTClaims) (*dto.ClaimResponse, error) {
	return m.submitResp, m.submitErr
}

func (m *claimServiceMock) RequestCharge(ctx context.Context, id int64, actor *models.JWTClaims) (*dto.ClaimResponse, error) {
	return m.chargeResp, m.chargeErr
}

func (m *claimServiceMock) Delete(ctx context.Context, id int64, actor *models.JWTClaims) error {
	return m.deleteErr
}

func (m *claimServiceMock) History(ctx context.Context, id int64, actor *models.JWTClaims) (*dto.HistoryResponse, error) {
	return &dto.HistoryResponse{}, nil
}

func (m *claimServiceMock) AddDamagedItem(ctx context.Context, id int64, req dto.DamagedItemRequest, actor *models.JWTClaims) (*models.DamagedItem, error) {
	return &models.DamagedItem{ID: 1}, nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func managerContext(c *gin.Context) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "mgr-1", Role: models.RoleManager})
}

func TestClaimHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	kitchenID := int64(501)
	mockSvc := &claimServiceMock{
		createResp: &dto.ClaimResponse{DamageClaim: models.DamageClaim{ID: 42, Status: models.ClaimStatusDraft}},
	}
	handler := NewClaimHandler(mockSvc)

	payload, _ := json.Marshal(dto.CreateClaimRequest{
		BookingType:        models.BookingTypeKitchen,
		KitchenBookingID:   &kitchenID,
		ClaimTitle:         "Cracked prep table",
		ClaimDescription:   "The prep table leg snapped during Friday dinner service and the top cracked.",
		DamageDate:         "2026-08-20",
		ClaimedAmountCents: 45000,
	})
	c, w := newGinContext(http.MethodPost, "/manager/damage-claims", payload)
	managerContext(c)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestClaimHandlerCreateRejectsBadJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewClaimHandler(&claimServiceMock{})

	c, w := newGinContext(http.MethodPost, "/manager/damage-claims", []byte("{not json"))
	managerContext(c)

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClaimHandlerRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewClaimHandler(&claimServiceMock{})

	c, w := newGinContext(http.MethodGet, "/manager/damage-claims", nil)

	handler.List(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestClaimHandlerListReportsCacheMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &claimServiceMock{listResp: &dto.ClaimListResponse{}, listHit: true}
	handler := NewClaimHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/manager/damage-claims?limit=10", nil)
	managerContext(c)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, true, envelope.Meta["cache_hit"])
}

func TestClaimHandlerSubmitMapsGateFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &claimServiceMock{submitErr: appErrors.ErrInsufficientEvidence}
	handler := NewClaimHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/manager/damage-claims/7/submit", nil)
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	managerContext(c)

	handler.Submit(c)
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestClaimHandlerChargeAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &claimServiceMock{
		chargeResp: &dto.ClaimResponse{DamageClaim: models.DamageClaim{ID: 7, Status: models.ClaimStatusChargePending}},
	}
	handler := NewClaimHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/manager/damage-claims/7/charge", nil)
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	managerContext(c)

	handler.Charge(c)
	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestClaimHandlerRejectsBadIDParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewClaimHandler(&claimServiceMock{})

	c, w := newGinContext(http.MethodGet, "/manager/damage-claims/abc", nil)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	managerContext(c)

	handler.Get(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClaimHandlerDeleteNoContent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewClaimHandler(&claimServiceMock{})

	c, w := newGinContext(http.MethodDelete, "/manager/damage-claims/7", nil)
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	managerContext(c)

	handler.Delete(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
}
