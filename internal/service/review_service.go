package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/prepshare/claims-api/internal/dto"
	"github.com/prepshare/claims-api/internal/models"
	appErrors "github.com/prepshare/claims-api/pkg/errors"
)

type reviewStore interface {
	GetByID(ctx context.Context, id int64) (*models.DamageClaim, error)
	List(ctx context.Context, filter models.ClaimFilter) ([]models.DamageClaim, error)
	RecordChefResponse(ctx context.Context, id int64, status models.ClaimStatus, response string, respondedAt time.Time) error
	RecordDecision(ctx context.Context, id int64, from, to models.ClaimStatus, approvedAmountCents *int64, updatedAt time.Time) error
}

// ReviewService covers the two adjudication surfaces: the chef's
// accept/dispute response inside the deadline window, and the admin
// review decisions that follow a dispute.
type ReviewService struct {
	claims    reviewStore
	evidence  evidenceLister
	history   historyStore
	cache     *CacheService
	projector *ClaimProjector
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
}

// NewReviewService constructs the service with defaults.
func NewReviewService(claims reviewStore, evidence evidenceLister, history historyStore, cache *CacheService, projector *ClaimProjector, audit auditLogger, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if projector == nil {
		projector = NewClaimProjector(0)
	}
	return &ReviewService{
		claims:    claims,
		evidence:  evidence,
		history:   history,
		cache:     cache,
		projector: projector,
		audit:     audit,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
	}
}

// PendingForChef lists submitted claims awaiting the chef's response.
func (s *ReviewService) PendingForChef(ctx context.Context, actor *models.JWTClaims) (*dto.ClaimListResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	claims, err := s.claims.List(ctx, models.ClaimFilter{ChefID: actor.UserID, Status: models.ClaimStatusSubmitted})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending claims")
	}
	return s.toList(ctx, claims)
}

// Respond records the chef's accept or dispute inside the response
// window. A claim whose deadline has already passed can no longer be
// responded to; the sweeper deems those accepted.
func (s *ReviewService) Respond(ctx context.Context, id int64, req dto.ChefRespondRequest, actor *models.JWTClaims) (*dto.ClaimResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid response payload")
	}
	claim, err := s.load(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleChef && claim.ChefID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	if claim.Status != models.ClaimStatusSubmitted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "claim is not awaiting a chef response")
	}
	now := time.Now().UTC()
	if claim.ChefResponseDeadline != nil && now.After(*claim.ChefResponseDeadline) {
		return nil, appErrors.ErrResponseWindowClosed
	}

	next := models.ClaimStatusChefAccepted
	action := "chef_accepted"
	if req.Action == "dispute" {
		next = models.ClaimStatusChefDisputed
		action = "chef_disputed"
	}
	if err := s.claims.RecordChefResponse(ctx, id, next, req.Response, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "claim is not awaiting a chef response")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record chef response")
	}
	prev := claim.Status
	claim.Status = next
	if req.Response != "" {
		claim.ChefResponse = &req.Response
	}
	claim.ChefRespondedAt = &now

	s.appendHistory(ctx, id, &prev, next, action, actor, optionalNote(req.Response))
	s.emitAudit(ctx, actor, models.AuditActionClaimRespond, id, fmt.Sprintf(`{"action":%q}`, req.Action))
	s.recordTransition(prev, next)
	s.invalidate(ctx, id)

	resp := s.toResponse(claim)
	return &resp, nil
}

// ReviewQueue lists claims an admin may act on: disputed, escalated and
// claims already under review.
func (s *ReviewService) ReviewQueue(ctx context.Context, actor *models.JWTClaims) (*dto.ClaimListResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	queue := make([]models.DamageClaim, 0)
	for _, status := range []models.ClaimStatus{models.ClaimStatusChefDisputed, models.ClaimStatusUnderReview, models.ClaimStatusEscalated} {
		claims, err := s.claims.List(ctx, models.ClaimFilter{Status: status})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list review queue")
		}
		queue = append(queue, claims...)
	}
	return s.toList(ctx, queue)
}

// Decide applies an admin review decision. start_review picks a disputed
// or escalated claim up; the remaining decisions settle the review.
func (s *ReviewService) Decide(ctx context.Context, id int64, req dto.ReviewDecisionRequest, actor *models.JWTClaims) (*dto.ClaimResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	claim, err := s.load(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	next, approved, err := resolveDecision(claim, req)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := s.claims.RecordDecision(ctx, id, claim.Status, next, approved, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "claim state changed, decision not applied")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}
	prev := claim.Status
	claim.Status = next
	if approved != nil {
		claim.ApprovedAmountCents = approved
	}

	s.appendHistory(ctx, id, &prev, next, "review_"+req.Decision, actor, optionalNote(req.Notes))
	s.emitAudit(ctx, actor, models.AuditActionClaimDecide, id, fmt.Sprintf(`{"decision":%q}`, req.Decision))
	s.recordTransition(prev, next)
	s.invalidate(ctx, id)

	resp := s.toResponse(claim)
	return &resp, nil
}

// resolveDecision maps a decision verb to the target status and checks
// the claim is in a state the verb applies to.
func resolveDecision(claim *models.DamageClaim, req dto.ReviewDecisionRequest) (models.ClaimStatus, *int64, error) {
	switch req.Decision {
	case "start_review":
		if claim.Status != models.ClaimStatusChefDisputed && claim.Status != models.ClaimStatusEscalated {
			return "", nil, appErrors.Clone(appErrors.ErrConflict, "only disputed or escalated claims can enter review")
		}
		return models.ClaimStatusUnderReview, nil, nil
	case "approve":
		if !reviewable(claim.Status) {
			return "", nil, appErrors.Clone(appErrors.ErrConflict, "claim is not under review")
		}
		return models.ClaimStatusApproved, nil, nil
	case "partially_approve":
		if !reviewable(claim.Status) {
			return "", nil, appErrors.Clone(appErrors.ErrConflict, "claim is not under review")
		}
		if req.ApprovedAmountCents == nil {
			return "", nil, appErrors.Clone(appErrors.ErrValidation, "approvedAmountCents is required for partial approval")
		}
		if *req.ApprovedAmountCents <= 0 || *req.ApprovedAmountCents >= claim.ClaimedAmountCents {
			return "", nil, appErrors.Clone(appErrors.ErrValidation, "approvedAmountCents must be positive and below the claimed amount")
		}
		return models.ClaimStatusPartiallyApproved, req.ApprovedAmountCents, nil
	case "reject":
		if !reviewable(claim.Status) {
			return "", nil, appErrors.Clone(appErrors.ErrConflict, "claim is not under review")
		}
		return models.ClaimStatusRejected, nil, nil
	case "escalate":
		if claim.Status != models.ClaimStatusUnderReview && claim.Status != models.ClaimStatusChefDisputed {
			return "", nil, appErrors.Clone(appErrors.ErrConflict, "only disputed or in-review claims can be escalated")
		}
		return models.ClaimStatusEscalated, nil, nil
	default:
		return "", nil, appErrors.Clone(appErrors.ErrValidation, "unknown decision")
	}
}

func reviewable(status models.ClaimStatus) bool {
	return status == models.ClaimStatusUnderReview || status == models.ClaimStatusEscalated
}

func optionalNote(note string) *string {
	if note == "" {
		return nil
	}
	return &note
}

func (s *ReviewService) load(ctx context.Context, id int64, actor *models.JWTClaims) (*models.DamageClaim, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	claim, err := s.claims.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load claim")
	}
	if err := ensureClaimAccess(claim, actor); err != nil {
		return nil, err
	}
	evidence, err := s.evidence.ListByClaim(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evidence")
	}
	claim.Evidence = evidence
	return claim, nil
}

func (s *ReviewService) toList(ctx context.Context, claims []models.DamageClaim) (*dto.ClaimListResponse, error) {
	resp := &dto.ClaimListResponse{Claims: make([]dto.ClaimResponse, 0, len(claims))}
	for i := range claims {
		claim := claims[i]
		evidence, err := s.evidence.ListByClaim(ctx, claim.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evidence")
		}
		claim.Evidence = evidence
		resp.Claims = append(resp.Claims, s.toResponse(&claim))
	}
	return resp, nil
}

func (s *ReviewService) toResponse(claim *models.DamageClaim) dto.ClaimResponse {
	return dto.ClaimResponse{
		DamageClaim: *claim,
		Projection:  s.projector.Project(claim),
	}
}

func (s *ReviewService) appendHistory(ctx context.Context, claimID int64, prev *models.ClaimStatus, next models.ClaimStatus, action string, actor *models.JWTClaims, notes *string) {
	entry := &models.ClaimHistoryEntry{
		ClaimID:        claimID,
		PreviousStatus: prev,
		NewStatus:      next,
		Action:         action,
		ActionBy:       "system",
		Notes:          notes,
	}
	if actor != nil {
		entry.ActionBy = actor.FullName
		entry.ActionByUserID = &actor.UserID
	}
	if err := s.history.Append(ctx, entry); err != nil {
		s.logger.Warn("failed to append claim history", zap.Int64("claim_id", claimID), zap.Error(err))
	}
}

func (s *ReviewService) emitAudit(ctx context.Context, actor *models.JWTClaims, action string, claimID int64, payload string) {
	if s.audit == nil {
		return
	}
	resourceID := fmt.Sprintf("%d", claimID)
	log := &models.AuditLog{
		Action:     action,
		Resource:   "damage_claim",
		ResourceID: &resourceID,
		IPAddress:  "system",
		UserAgent:  "review-service",
	}
	if actor != nil {
		log.UserID = &actor.UserID
	}
	if payload != "" {
		log.NewValues = []byte(payload)
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to create review audit", zap.Error(err))
	}
}

func (s *ReviewService) recordTransition(from, to models.ClaimStatus) {
	if s.metrics != nil {
		s.metrics.RecordClaimTransition(string(from), string(to))
	}
}

func (s *ReviewService) invalidate(ctx context.Context, claimID int64) {
	_ = s.cache.Invalidate(ctx, "claims:list:*")
	_ = s.cache.Invalidate(ctx, fmt.Sprintf("claims:detail:%d", claimID))
}
