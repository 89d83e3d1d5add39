package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prepshare/claims-api/internal/models"
	appErrors "github.com/prepshare/claims-api/pkg/errors"
	"github.com/prepshare/claims-api/pkg/jobs"
)

// ChargeGateway submits a charge against a chef and reports the
// settled amount. Implementations talk to the payment provider.
type ChargeGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// ChargeRequest is the payload handed to the gateway.
type ChargeRequest struct {
	ClaimID     int64  `json:"claimId"`
	ChefID      string `json:"chefId"`
	AmountCents int64  `json:"amountCents"`
	Reference   string `json:"reference"`
}

// ChargeResult is the gateway's settlement outcome.
type ChargeResult struct {
	Succeeded     bool   `json:"succeeded"`
	SettledCents  int64  `json:"settledCents"`
	ProviderRef   string `json:"providerRef"`
	FailureReason string `json:"failureReason,omitempty"`
}

type chargeClaimStore interface {
	GetByID(ctx context.Context, id int64) (*models.DamageClaim, error)
	RecordChargeOutcome(ctx context.Context, id int64, status models.ClaimStatus, finalAmountCents *int64, updatedAt time.Time) error
}

// ChargeService runs the asynchronous charge pipeline. RequestCharge on
// the claim service parks the claim in charge_pending and calls
// EnqueueCharge here; workers then attempt the gateway call and record
// charge_succeeded or charge_failed. A failed charge stays retryable
// through RequestCharge.
type ChargeService struct {
	claims     chargeClaimStore
	history    historyStore
	gateway    ChargeGateway
	cache      *CacheService
	logger     *zap.Logger
	metrics    *MetricsService
	queue      *jobs.Queue
	maxRetries int
}

// NewChargeService constructs the service and its worker queue. Call
// Start before enqueueing and Stop on shutdown.
func NewChargeService(claims chargeClaimStore, history historyStore, gateway ChargeGateway, cache *CacheService, logger *zap.Logger, metrics *MetricsService, workers, retries int) *ChargeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retries <= 0 {
		retries = 3
	}
	s := &ChargeService{
		claims:     claims,
		history:    history,
		gateway:    gateway,
		cache:      cache,
		logger:     logger,
		metrics:    metrics,
		maxRetries: retries,
	}
	s.queue = jobs.NewQueue("charges", s.process, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: retries,
		RetryDelay: 2 * time.Second,
		Logger:     logger,
	})
	return s
}

// Start launches the charge workers.
func (s *ChargeService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *ChargeService) Stop() {
	s.queue.Stop()
}

// EnqueueCharge hands a charge_pending claim to the worker pool.
func (s *ChargeService) EnqueueCharge(ctx context.Context, claimID int64) error {
	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "claim_charge",
		Payload: claimID,
	})
}

// process attempts the gateway charge for one claim. Jobs for claims no
// longer in charge_pending are dropped without error so retries never
// double-charge.
func (s *ChargeService) process(ctx context.Context, job jobs.Job) error {
	claimID, ok := job.Payload.(int64)
	if !ok {
		s.logger.Error("charge job with bad payload", zap.Any("payload", job.Payload))
		return nil
	}
	claim, err := s.claims.GetByID(ctx, claimID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("charge job for missing claim", zap.Int64("claim_id", claimID))
			return nil
		}
		return err
	}
	if claim.Status != models.ClaimStatusChargePending {
		s.logger.Info("skipping charge, claim no longer pending",
			zap.Int64("claim_id", claimID), zap.String("status", string(claim.Status)))
		return nil
	}

	amount := claim.ChargeableAmountCents()
	result, err := s.gateway.Charge(ctx, ChargeRequest{
		ClaimID:     claim.ID,
		ChefID:      claim.ChefID,
		AmountCents: amount,
		Reference:   fmt.Sprintf("claim-%d", claim.ID),
	})
	now := time.Now().UTC()

	if err != nil {
		// Transport failures (5xx, timeouts) ride the queue's retry
		// budget. Only the final attempt records charge_failed.
		if job.Attempt < s.maxRetries {
			s.logger.Warn("charge gateway unavailable, will retry",
				zap.Int64("claim_id", claimID), zap.Int("attempt", job.Attempt), zap.Error(err))
			return err
		}
		reason := err.Error()
		if recErr := s.claims.RecordChargeOutcome(ctx, claimID, models.ClaimStatusChargeFailed, nil, now); recErr != nil {
			s.logger.Error("failed to record charge failure", zap.Int64("claim_id", claimID), zap.Error(recErr))
			return recErr
		}
		s.afterOutcome(ctx, claim, models.ClaimStatusChargeFailed, "charge_failed", &reason)
		return nil
	}
	if !result.Succeeded {
		// A decline is a final answer from the provider; retrying the
		// same request would not change it.
		reason := "gateway error"
		if result.FailureReason != "" {
			reason = result.FailureReason
		}
		if recErr := s.claims.RecordChargeOutcome(ctx, claimID, models.ClaimStatusChargeFailed, nil, now); recErr != nil {
			s.logger.Error("failed to record charge failure", zap.Int64("claim_id", claimID), zap.Error(recErr))
			return recErr
		}
		s.afterOutcome(ctx, claim, models.ClaimStatusChargeFailed, "charge_failed", &reason)
		return nil
	}

	settled := result.SettledCents
	if settled <= 0 {
		settled = amount
	}
	if recErr := s.claims.RecordChargeOutcome(ctx, claimID, models.ClaimStatusChargeSucceeded, &settled, now); recErr != nil {
		s.logger.Error("failed to record charge success", zap.Int64("claim_id", claimID), zap.Error(recErr))
		return recErr
	}
	note := fmt.Sprintf("settled %d cents, ref %s", settled, result.ProviderRef)
	s.afterOutcome(ctx, claim, models.ClaimStatusChargeSucceeded, "charge_succeeded", &note)
	return nil
}

func (s *ChargeService) afterOutcome(ctx context.Context, claim *models.DamageClaim, next models.ClaimStatus, action string, notes *string) {
	prev := models.ClaimStatusChargePending
	entry := &models.ClaimHistoryEntry{
		ClaimID:        claim.ID,
		PreviousStatus: &prev,
		NewStatus:      next,
		Action:         action,
		ActionBy:       "system",
		Notes:          notes,
	}
	if err := s.history.Append(ctx, entry); err != nil {
		s.logger.Warn("failed to append charge history", zap.Int64("claim_id", claim.ID), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.RecordClaimTransition(string(prev), string(next))
	}
	_ = s.cache.Invalidate(ctx, "claims:list:*")
	_ = s.cache.Invalidate(ctx, fmt.Sprintf("claims:detail:%d", claim.ID))
}

// HTTPChargeGateway implements ChargeGateway over the provider's REST
// endpoint.
type HTTPChargeGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPChargeGateway builds a gateway client.
func NewHTTPChargeGateway(baseURL, apiKey string, timeout time.Duration) *HTTPChargeGateway {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPChargeGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Charge posts the charge request and decodes the settlement result.
func (g *HTTPChargeGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode charge request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build charge request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("charge gateway unreachable: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("charge gateway returned %d", resp.StatusCode)
	}
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}
	var result ChargeResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest && result.FailureReason == "" {
		result.Succeeded = false
		result.FailureReason = fmt.Sprintf("gateway rejected charge with status %d", resp.StatusCode)
	}
	return &result, nil
}
