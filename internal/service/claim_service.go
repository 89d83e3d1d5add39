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

type claimStore interface {
	Create(ctx context.Context, claim *models.DamageClaim) error
	GetByID(ctx context.Context, id int64) (*models.DamageClaim, error)
	List(ctx context.Context, filter models.ClaimFilter) ([]models.DamageClaim, error)
	MarkSubmitted(ctx context.Context, id int64, submittedAt, deadline time.Time) error
	UpdateStatus(ctx context.Context, id int64, from, to models.ClaimStatus, updatedAt time.Time) error
	Delete(ctx context.Context, id int64) error
	AddDamagedItem(ctx context.Context, item *models.DamagedItem) error
	ListDamagedItems(ctx context.Context, claimID int64) ([]models.DamagedItem, error)
}

type evidenceLister interface {
	ListByClaim(ctx context.Context, claimID int64) ([]models.DamageEvidence, error)
}

type historyStore interface {
	Append(ctx context.Context, entry *models.ClaimHistoryEntry) error
	ListByClaim(ctx context.Context, claimID int64) ([]models.ClaimHistoryEntry, error)
}

type bookingResolver interface {
	ListRecent(ctx context.Context, filter models.BookingFilter) ([]models.RecentBooking, error)
	GetByID(ctx context.Context, id int64, bookingType models.BookingType) (*models.RecentBooking, error)
}

type chargeRequester interface {
	EnqueueCharge(ctx context.Context, claimID int64) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ClaimServiceConfig carries the lifecycle rules for claim filing.
type ClaimServiceConfig struct {
	MinEvidenceCount  int
	MinAmountCents    int64
	MaxAmountCents    int64
	BookingWindowDays int
	ResponseWindow    time.Duration
}

// ClaimService owns the manager-facing damage claim workflow: draft
// creation, listing, submission, charge requests and deletion.
type ClaimService struct {
	claims    claimStore
	evidence  evidenceLister
	history   historyStore
	bookings  bookingResolver
	charges   chargeRequester
	cache     *CacheService
	projector *ClaimProjector
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	cfg       ClaimServiceConfig
}

// NewClaimService constructs the service with defaults.
func NewClaimService(claims claimStore, evidence evidenceLister, history historyStore, bookings bookingResolver, charges chargeRequester, cache *CacheService, projector *ClaimProjector, audit auditLogger, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, cfg ClaimServiceConfig) *ClaimService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.MinEvidenceCount <= 0 {
		cfg.MinEvidenceCount = 2
	}
	if cfg.MinAmountCents <= 0 {
		cfg.MinAmountCents = 1000
	}
	if cfg.BookingWindowDays <= 0 {
		cfg.BookingWindowDays = 14
	}
	if cfg.ResponseWindow <= 0 {
		cfg.ResponseWindow = 72 * time.Hour
	}
	if projector == nil {
		projector = NewClaimProjector(cfg.MinEvidenceCount)
	}
	return &ClaimService{
		claims:    claims,
		evidence:  evidence,
		history:   history,
		bookings:  bookings,
		charges:   charges,
		cache:     cache,
		projector: projector,
		audit:     audit,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// RecentBookings returns bookings the manager may still file against,
// plus the rolling window length for display.
func (s *ClaimService) RecentBookings(ctx context.Context, actor *models.JWTClaims) (*dto.RecentBookingsResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.BookingWindowDays)
	bookings, err := s.bookings.ListRecent(ctx, models.BookingFilter{ManagerID: actor.UserID, EndedAfter: cutoff})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recent bookings")
	}
	return &dto.RecentBookingsResponse{Bookings: bookings, DeadlineDays: s.cfg.BookingWindowDays}, nil
}

// Create files a new draft claim against a recent booking. Creation is
// atomic: either the new id is returned or nothing was persisted.
func (s *ClaimService) Create(ctx context.Context, req dto.CreateClaimRequest, actor *models.JWTClaims) (*dto.ClaimResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid claim payload")
	}
	if err := validateBookingRef(req); err != nil {
		return nil, err
	}
	if s.cfg.MaxAmountCents > 0 && req.ClaimedAmountCents > s.cfg.MaxAmountCents {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("claimed amount exceeds %d cents", s.cfg.MaxAmountCents))
	}
	damageDate, err := req.ParseDamageDate()
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "damageDate must be YYYY-MM-DD")
	}

	bookingID := req.KitchenBookingID
	if req.BookingType == models.BookingTypeStorage {
		bookingID = req.StorageBookingID
	}
	booking, err := s.bookings.GetByID(ctx, *bookingID, req.BookingType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve booking")
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.BookingWindowDays)
	if booking.EndTime.Before(cutoff) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("booking is outside the %d-day filing window", s.cfg.BookingWindowDays))
	}

	claim := &models.DamageClaim{
		BookingType:        req.BookingType,
		KitchenBookingID:   req.KitchenBookingID,
		StorageBookingID:   req.StorageBookingID,
		ChefID:             booking.ChefID,
		ManagerID:          actor.UserID,
		LocationID:         booking.LocationID,
		ClaimTitle:         req.ClaimTitle,
		ClaimDescription:   req.ClaimDescription,
		DamageDate:         damageDate,
		ClaimedAmountCents: req.ClaimedAmountCents,
		Status:             models.ClaimStatusDraft,
	}
	if err := s.claims.Create(ctx, claim); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create claim")
	}
	claim.Evidence = []models.DamageEvidence{}

	s.appendHistory(ctx, claim.ID, nil, models.ClaimStatusDraft, "claim_created", actor, nil)
	s.emitAudit(ctx, actor, models.AuditActionClaimCreate, claim.ID, fmt.Sprintf(`{"title":%q,"amountCents":%d}`, claim.ClaimTitle, claim.ClaimedAmountCents))
	s.invalidate(ctx, claim.ID)

	resp := s.toResponse(claim)
	return &resp, nil
}

// List returns the manager's claims with projections. The boolean
// reports whether the result was served from cache.
func (s *ClaimService) List(ctx context.Context, filter dto.ClaimFilter, actor *models.JWTClaims) (*dto.ClaimListResponse, bool, error) {
	if actor == nil {
		return nil, false, appErrors.ErrUnauthorized
	}
	cacheKey := fmt.Sprintf("claims:list:%s:%s:%t:%d:%d", actor.UserID, filter.Status, filter.IncludeAll, filter.Limit, filter.Offset)
	var cached dto.ClaimListResponse
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, true, nil
	}

	repoFilter := models.ClaimFilter{
		Status:     filter.Status,
		IncludeAll: filter.IncludeAll,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	if actor.Role == models.RoleManager {
		repoFilter.ManagerID = actor.UserID
	}
	claims, err := s.claims.List(ctx, repoFilter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list claims")
	}

	resp := &dto.ClaimListResponse{Claims: make([]dto.ClaimResponse, 0, len(claims))}
	for i := range claims {
		claim := claims[i]
		evidence, err := s.evidence.ListByClaim(ctx, claim.ID)
		if err != nil {
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evidence")
		}
		claim.Evidence = evidence
		resp.Claims = append(resp.Claims, s.toResponse(&claim))
	}

	_ = s.cache.Set(ctx, cacheKey, resp, 0)
	return resp, false, nil
}

// Get returns one claim with evidence, damaged items and projection.
func (s *ClaimService) Get(ctx context.Context, id int64, actor *models.JWTClaims) (*dto.ClaimResponse, error) {
	claim, err := s.load(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	resp := s.toResponse(claim)
	return &resp, nil
}

// Submit moves a draft claim into the chef response window. The
// submission gate (draft status, minimum evidence) is authoritative here.
func (s *ClaimService) Submit(ctx context.Context, id int64, actor *models.JWTClaims) (*dto.ClaimResponse, error) {
	claim, err := s.load(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if claim.Status != models.ClaimStatusDraft {
		return nil, appErrors.ErrClaimNotDraft
	}
	if len(claim.Evidence) < s.cfg.MinEvidenceCount {
		return nil, appErrors.Clone(appErrors.ErrInsufficientEvidence,
			fmt.Sprintf("at least %d evidence items are required before submission", s.cfg.MinEvidenceCount))
	}

	now := time.Now().UTC()
	deadline := now.Add(s.cfg.ResponseWindow)
	if err := s.claims.MarkSubmitted(ctx, id, now, deadline); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrClaimNotDraft
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit claim")
	}
	claim.Status = models.ClaimStatusSubmitted
	claim.SubmittedAt = &now
	claim.ChefResponseDeadline = &deadline

	prev := models.ClaimStatusDraft
	s.appendHistory(ctx, id, &prev, models.ClaimStatusSubmitted, "claim_submitted", actor, nil)
	s.emitAudit(ctx, actor, models.AuditActionClaimSubmit, id, "")
	s.recordTransition(models.ClaimStatusDraft, models.ClaimStatusSubmitted)
	s.invalidate(ctx, id)

	resp := s.toResponse(claim)
	return &resp, nil
}

// RequestCharge validates the claim is chargeable, parks it in
// charge_pending and hands it to the asynchronous charge pipeline.
func (s *ClaimService) RequestCharge(ctx context.Context, id int64, actor *models.JWTClaims) (*dto.ClaimResponse, error) {
	claim, err := s.load(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if !s.projector.Chargeable(claim.Status) {
		return nil, appErrors.ErrNotChargeable
	}

	now := time.Now().UTC()
	if err := s.claims.UpdateStatus(ctx, id, claim.Status, models.ClaimStatusChargePending, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotChargeable
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark charge pending")
	}
	prev := claim.Status
	claim.Status = models.ClaimStatusChargePending

	s.appendHistory(ctx, id, &prev, models.ClaimStatusChargePending, "charge_requested", actor, nil)
	s.emitAudit(ctx, actor, models.AuditActionClaimCharge, id, fmt.Sprintf(`{"amountCents":%d}`, claim.ChargeableAmountCents()))
	s.recordTransition(prev, models.ClaimStatusChargePending)
	s.invalidate(ctx, id)

	if err := s.charges.EnqueueCharge(ctx, id); err != nil {
		s.logger.Error("failed to enqueue charge", zap.Int64("claim_id", id), zap.Error(err))
	}

	resp := s.toResponse(claim)
	return &resp, nil
}

// Delete removes a draft claim. Non-draft claims can never be deleted.
func (s *ClaimService) Delete(ctx context.Context, id int64, actor *models.JWTClaims) error {
	claim, err := s.load(ctx, id, actor)
	if err != nil {
		return err
	}
	if claim.Status != models.ClaimStatusDraft {
		return appErrors.ErrClaimNotDraft
	}
	if err := s.claims.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrClaimNotDraft
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete claim")
	}
	s.emitAudit(ctx, actor, models.AuditActionClaimDelete, id, "")
	s.invalidate(ctx, id)
	return nil
}

// History returns the claim's ordered transition log.
func (s *ClaimService) History(ctx context.Context, id int64, actor *models.JWTClaims) (*dto.HistoryResponse, error) {
	if _, err := s.load(ctx, id, actor); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByClaim(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load claim history")
	}
	resp := &dto.HistoryResponse{History: make([]dto.HistoryEntryResponse, 0, len(entries))}
	for _, entry := range entries {
		resp.History = append(resp.History, dto.HistoryEntryResponse{
			ClaimHistoryEntry: entry,
			DisplayAction:     entry.HumanizedAction(),
		})
	}
	return resp, nil
}

// AddDamagedItem attaches an equipment reference while the claim is draft.
func (s *ClaimService) AddDamagedItem(ctx context.Context, id int64, req dto.DamagedItemRequest, actor *models.JWTClaims) (*models.DamagedItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid damaged item payload")
	}
	claim, err := s.load(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if claim.Status != models.ClaimStatusDraft {
		return nil, appErrors.ErrClaimNotDraft
	}
	item := &models.DamagedItem{
		ClaimID:       id,
		EquipmentID:   req.EquipmentID,
		EquipmentName: req.EquipmentName,
	}
	if err := s.claims.AddDamagedItem(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add damaged item")
	}
	s.invalidate(ctx, id)
	return item, nil
}

// load fetches a claim with evidence and enforces ownership.
func (s *ClaimService) load(ctx context.Context, id int64, actor *models.JWTClaims) (*models.DamageClaim, error) {
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
	items, err := s.claims.ListDamagedItems(ctx, id)
	if err != nil {
		s.logger.Warn("failed to load damaged items", zap.Int64("claim_id", id), zap.Error(err))
	} else {
		claim.DamagedItems = items
	}
	return claim, nil
}

func (s *ClaimService) toResponse(claim *models.DamageClaim) dto.ClaimResponse {
	return dto.ClaimResponse{
		DamageClaim: *claim,
		Projection:  s.projector.Project(claim),
	}
}

func (s *ClaimService) appendHistory(ctx context.Context, claimID int64, prev *models.ClaimStatus, next models.ClaimStatus, action string, actor *models.JWTClaims, notes *string) {
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

func (s *ClaimService) emitAudit(ctx context.Context, actor *models.JWTClaims, action string, claimID int64, payload string) {
	if s.audit == nil {
		return
	}
	resourceID := fmt.Sprintf("%d", claimID)
	log := &models.AuditLog{
		Action:     action,
		Resource:   "damage_claim",
		ResourceID: &resourceID,
		IPAddress:  "system",
		UserAgent:  "claim-service",
	}
	if actor != nil {
		log.UserID = &actor.UserID
	}
	if payload != "" {
		log.NewValues = []byte(payload)
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to create claim audit", zap.Error(err))
	}
}

func (s *ClaimService) recordTransition(from, to models.ClaimStatus) {
	if s.metrics != nil {
		s.metrics.RecordClaimTransition(string(from), string(to))
	}
}

func (s *ClaimService) invalidate(ctx context.Context, claimID int64) {
	_ = s.cache.Invalidate(ctx, "claims:list:*")
	_ = s.cache.Invalidate(ctx, fmt.Sprintf("claims:detail:%d", claimID))
}

// ensureClaimAccess enforces party-scoped visibility: managers see their
// own filings, chefs see claims filed against them, admins see all.
func ensureClaimAccess(claim *models.DamageClaim, actor *models.JWTClaims) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleManager:
		if claim.ManagerID == actor.UserID {
			return nil
		}
	case models.RoleChef:
		if claim.ChefID == actor.UserID {
			return nil
		}
	}
	return appErrors.ErrForbidden
}

// validateBookingRef enforces the exactly-one booking reference rule.
func validateBookingRef(req dto.CreateClaimRequest) error {
	kitchen := req.KitchenBookingID != nil
	storage := req.StorageBookingID != nil
	if kitchen == storage {
		return appErrors.Clone(appErrors.ErrValidation, "exactly one of kitchenBookingId or storageBookingId is required")
	}
	if req.BookingType == models.BookingTypeKitchen && !kitchen {
		return appErrors.Clone(appErrors.ErrValidation, "kitchenBookingId is required for kitchen bookings")
	}
	if req.BookingType == models.BookingTypeStorage && !storage {
		return appErrors.Clone(appErrors.ErrValidation, "storageBookingId is required for storage bookings")
	}
	return nil
}
