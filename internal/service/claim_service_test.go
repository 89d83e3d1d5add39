package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/prepshare/claims-api/internal/dto"
	"github.com/prepshare/claims-api/internal/models"
	appErrors "github.com/prepshare/claims-api/pkg/errors"
)

type claimRepoStub struct {
	claims map[int64]*models.DamageClaim
	nextID int64
	items  map[int64][]models.DamagedItem
}

func newClaimRepoStub() *claimRepoStub {
	return &claimRepoStub{
		claims: make(map[int64]*models.DamageClaim),
		items:  make(map[int64][]models.DamagedItem),
	}
}

func (r *claimRepoStub) Create(ctx context.Context, claim *models.DamageClaim) error {
	r.nextID++
	claim.ID = r.nextID
	claim.CreatedAt = time.Now().UTC()
	claim.UpdatedAt = claim.CreatedAt
	copied := *claim
	r.claims[claim.ID] = &copied
	return nil
}

func (r *claimRepoStub) GetByID(ctx context.Context, id int64) (*models.DamageClaim, error) {
	claim, ok := r.claims[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *claim
	return &copied, nil
}

func (r *claimRepoStub) List(ctx context.Context, filter models.ClaimFilter) ([]models.DamageClaim, error) {
	result := make([]models.DamageClaim, 0, len(r.claims))
	for _, claim := range r.claims {
		if filter.ManagerID != "" && claim.ManagerID != filter.ManagerID {
			continue
		}
		if filter.ChefID != "" && claim.ChefID != filter.ChefID {
			continue
		}
		if filter.Status != "" && claim.Status != filter.Status {
			continue
		}
		result = append(result, *claim)
	}
	return result, nil
}

func (r *claimRepoStub) MarkSubmitted(ctx context.Context, id int64, submittedAt, deadline time.Time) error {
	claim, ok := r.claims[id]
	if !ok || claim.Status != models.ClaimStatusDraft {
		return sql.ErrNoRows
	}
	claim.Status = models.ClaimStatusSubmitted
	claim.SubmittedAt = &submittedAt
	claim.ChefResponseDeadline = &deadline
	return nil
}

func (r *claimRepoStub) UpdateStatus(ctx context.Context, id int64, from, to models.ClaimStatus, updatedAt time.Time) error {
	claim, ok := r.claims[id]
	if !ok || claim.Status != from {
		return sql.ErrNoRows
	}
	claim.Status = to
	claim.UpdatedAt = updatedAt
	return nil
}

func (r *claimRepoStub) RecordChefResponse(ctx context.Context, id int64, status models.ClaimStatus, response string, respondedAt time.Time) error {
	claim, ok := r.claims[id]
	if !ok || claim.Status != models.ClaimStatusSubmitted {
		return sql.ErrNoRows
	}
	claim.Status = status
	if response != "" {
		claim.ChefResponse = &response
	}
	claim.ChefRespondedAt = &respondedAt
	return nil
}

func (r *claimRepoStub) RecordDecision(ctx context.Context, id int64, from, to models.ClaimStatus, approvedAmountCents *int64, updatedAt time.Time) error {
	claim, ok := r.claims[id]
	if !ok || claim.Status != from {
		return sql.ErrNoRows
	}
	claim.Status = to
	if approvedAmountCents != nil {
		claim.ApprovedAmountCents = approvedAmountCents
	}
	claim.UpdatedAt = updatedAt
	return nil
}

func (r *claimRepoStub) RecordChargeOutcome(ctx context.Context, id int64, status models.ClaimStatus, finalAmountCents *int64, updatedAt time.Time) error {
	claim, ok := r.claims[id]
	if !ok || claim.Status != models.ClaimStatusChargePending {
		return sql.ErrNoRows
	}
	claim.Status = status
	claim.FinalAmountCents = finalAmountCents
	claim.UpdatedAt = updatedAt
	return nil
}

func (r *claimRepoStub) Delete(ctx context.Context, id int64) error {
	claim, ok := r.claims[id]
	if !ok || claim.Status != models.ClaimStatusDraft {
		return sql.ErrNoRows
	}
	delete(r.claims, id)
	return nil
}

func (r *claimRepoStub) ListSubmittedPastDeadline(ctx context.Context, now time.Time) ([]models.DamageClaim, error) {
	result := []models.DamageClaim{}
	for _, claim := range r.claims {
		if claim.Status == models.ClaimStatusSubmitted && claim.ChefResponseDeadline != nil && now.After(*claim.ChefResponseDeadline) {
			result = append(result, *claim)
		}
	}
	return result, nil
}

func (r *claimRepoStub) ListStaleDrafts(ctx context.Context, cutoff time.Time) ([]models.DamageClaim, error) {
	result := []models.DamageClaim{}
	for _, claim := range r.claims {
		if claim.Status == models.ClaimStatusDraft && claim.CreatedAt.Before(cutoff) {
			result = append(result, *claim)
		}
	}
	return result, nil
}

func (r *claimRepoStub) ListSettledCharges(ctx context.Context, cutoff time.Time) ([]models.DamageClaim, error) {
	result := []models.DamageClaim{}
	for _, claim := range r.claims {
		if claim.Status == models.ClaimStatusChargeSucceeded && claim.UpdatedAt.Before(cutoff) {
			result = append(result, *claim)
		}
	}
	return result, nil
}

func (r *claimRepoStub) AddDamagedItem(ctx context.Context, item *models.DamagedItem) error {
	item.ID = int64(len(r.items[item.ClaimID]) + 1)
	r.items[item.ClaimID] = append(r.items[item.ClaimID], *item)
	return nil
}

func (r *claimRepoStub) ListDamagedItems(ctx context.Context, claimID int64) ([]models.DamagedItem, error) {
	return r.items[claimID], nil
}

type evidenceListerStub struct {
	byClaim map[int64][]models.DamageEvidence
}

func newEvidenceListerStub() *evidenceListerStub {
	return &evidenceListerStub{byClaim: make(map[int64][]models.DamageEvidence)}
}

func (s *evidenceListerStub) ListByClaim(ctx context.Context, claimID int64) ([]models.DamageEvidence, error) {
	return s.byClaim[claimID], nil
}

type historyStoreStub struct {
	entries []models.ClaimHistoryEntry
}

func (s *historyStoreStub) Append(ctx context.Context, entry *models.ClaimHistoryEntry) error {
	entry.ID = int64(len(s.entries) + 1)
	entry.CreatedAt = time.Now().UTC()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *historyStoreStub) ListByClaim(ctx context.Context, claimID int64) ([]models.ClaimHistoryEntry, error) {
	result := []models.ClaimHistoryEntry{}
	for _, entry := range s.entries {
		if entry.ClaimID == claimID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type bookingResolverStub struct {
	bookings map[int64]*models.RecentBooking
}

func (s *bookingResolverStub) ListRecent(ctx context.Context, filter models.BookingFilter) ([]models.RecentBooking, error) {
	result := []models.RecentBooking{}
	for _, b := range s.bookings {
		result = append(result, *b)
	}
	return result, nil
}

func (s *bookingResolverStub) GetByID(ctx context.Context, id int64, bookingType models.BookingType) (*models.RecentBooking, error) {
	if b, ok := s.bookings[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

type chargeRequesterStub struct {
	enqueued []int64
}

func (s *chargeRequesterStub) EnqueueCharge(ctx context.Context, claimID int64) error {
	s.enqueued = append(s.enqueued, claimID)
	return nil
}

type auditLoggerStub struct {
	logs []models.AuditLog
}

func (s *auditLoggerStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, *log)
	return nil
}

func disabledCache() *CacheService {
	return NewCacheService(nil, nil, 0, nil, false)
}

func managerActor(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleManager, FullName: "Manager " + id}
}

func chefActor(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleChef, FullName: "Chef " + id}
}

func adminActor(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleAdmin, FullName: "Admin " + id}
}

type claimFixture struct {
	repo     *claimRepoStub
	evidence *evidenceListerStub
	history  *historyStoreStub
	bookings *bookingResolverStub
	charges  *chargeRequesterStub
	audit    *auditLoggerStub
	svc      *ClaimService
}

func newClaimFixture(t *testing.T) *claimFixture {
	t.Helper()
	f := &claimFixture{
		repo:     newClaimRepoStub(),
		evidence: newEvidenceListerStub(),
		history:  &historyStoreStub{},
		bookings: &bookingResolverStub{bookings: map[int64]*models.RecentBooking{}},
		charges:  &chargeRequesterStub{},
		audit:    &auditLoggerStub{},
	}
	f.svc = NewClaimService(f.repo, f.evidence, f.history, f.bookings, f.charges,
		disabledCache(), nil, f.audit, nil, nil, nil, ClaimServiceConfig{
			MinEvidenceCount:  2,
			MinAmountCents:    1000,
			BookingWindowDays: 14,
			ResponseWindow:    72 * time.Hour,
		})
	return f
}

func (f *claimFixture) addBooking(id int64, chefID string) {
	f.bookings.bookings[id] = &models.RecentBooking{
		ID:         id,
		ChefID:     chefID,
		LocationID: "loc-1",
		EndTime:    time.Now().UTC().Add(-24 * time.Hour),
	}
}

func validCreateRequest(bookingID int64) dto.CreateClaimRequest {
	return dto.CreateClaimRequest{
		BookingType:        models.BookingTypeKitchen,
		KitchenBookingID:   &bookingID,
		ClaimTitle:         "Broken commercial oven door",
		ClaimDescription:   "The left oven door hinge snapped during the booking and the glass panel cracked badly.",
		DamageDate:         time.Now().UTC().Format("2006-01-02"),
		ClaimedAmountCents: 48000,
	}
}

func TestCreateClaimHappyPath(t *testing.T) {
	f := newClaimFixture(t)
	f.addBooking(11, "chef-9")

	resp, err := f.svc.Create(context.Background(), validCreateRequest(11), managerActor("mgr-1"))
	require.NoError(t, err)
	require.NotZero(t, resp.ID)
	require.Equal(t, models.ClaimStatusDraft, resp.Status)
	require.Equal(t, "chef-9", resp.ChefID)
	require.Equal(t, "mgr-1", resp.ManagerID)
	require.NotNil(t, resp.Evidence)
	require.Empty(t, resp.Evidence)
	require.False(t, resp.Projection.CanSubmit)

	require.Len(t, f.history.entries, 1)
	require.Equal(t, "claim_created", f.history.entries[0].Action)
	require.Len(t, f.audit.logs, 1)
}

func TestCreateClaimRequiresExactlyOneBookingRef(t *testing.T) {
	f := newClaimFixture(t)
	f.addBooking(11, "chef-9")

	both := validCreateRequest(11)
	other := int64(12)
	both.StorageBookingID = &other
	_, err := f.svc.Create(context.Background(), both, managerActor("mgr-1"))
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	neither := validCreateRequest(11)
	neither.KitchenBookingID = nil
	_, err = f.svc.Create(context.Background(), neither, managerActor("mgr-1"))
	require.Error(t, err)
}

func TestCreateClaimAcceptsStorageBooking(t *testing.T) {
	f := newClaimFixture(t)
	f.addBooking(11, "chef-9")

	req := validCreateRequest(11)
	req.BookingType = models.BookingTypeStorage
	req.StorageBookingID = req.KitchenBookingID
	req.KitchenBookingID = nil

	resp, err := f.svc.Create(context.Background(), req, managerActor("mgr-1"))
	require.NoError(t, err)
	require.Equal(t, models.BookingTypeStorage, resp.BookingType)
	require.Nil(t, resp.KitchenBookingID)
	require.NotNil(t, resp.StorageBookingID)
}

func TestCreateClaimEnforcesMinimumAmount(t *testing.T) {
	f := newClaimFixture(t)
	f.addBooking(11, "chef-9")

	req := validCreateRequest(11)
	req.ClaimedAmountCents = 999
	_, err := f.svc.Create(context.Background(), req, managerActor("mgr-1"))
	require.Error(t, err)
}

func TestCreateClaimRejectsStaleBooking(t *testing.T) {
	f := newClaimFixture(t)
	f.addBooking(11, "chef-9")
	f.bookings.bookings[11].EndTime = time.Now().UTC().AddDate(0, 0, -30)

	_, err := f.svc.Create(context.Background(), validCreateRequest(11), managerActor("mgr-1"))
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestSubmitRequiresMinimumEvidence(t *testing.T) {
	f := newClaimFixture(t)
	f.addBooking(11, "chef-9")
	resp, err := f.svc.Create(context.Background(), validCreateRequest(11), managerActor("mgr-1"))
	require.NoError(t, err)

	f.evidence.byClaim[resp.ID] = []models.DamageEvidence{{ID: 1, ClaimID: resp.ID}}
	_, err = f.svc.Submit(context.Background(), resp.ID, managerActor("mgr-1"))
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrInsufficientEvidence.Code, appErr.Code)

	f.evidence.byClaim[resp.ID] = append(f.evidence.byClaim[resp.ID], models.DamageEvidence{ID: 2, ClaimID: resp.ID})
	submitted, err := f.svc.Submit(context.Background(), resp.ID, managerActor("mgr-1"))
	require.NoError(t, err)
	require.Equal(t, models.ClaimStatusSubmitted, submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)
	require.NotNil(t, submitted.ChefResponseDeadline)
	require.WithinDuration(t, submitted.SubmittedAt.Add(72*time.Hour), *submitted.ChefResponseDeadline, time.Second)
}

func TestSubmitRejectsNonDraft(t *testing.T) {
	f := newClaimFixture(t)
	f.addBooking(11, "chef-9")
	resp, err := f.svc.Create(context.Background(), validCreateRequest(11), managerActor("mgr-1"))
	require.NoError(t, err)

	f.evidence.byClaim[resp.ID] = []models.DamageEvidence{{ID: 1}, {ID: 2}}
	_, err = f.svc.Submit(context.Background(), resp.ID, managerActor("mgr-1"))
	require.NoError(t, err)

	_, err = f.svc.Submit(context.Background(), resp.ID, managerActor("mgr-1"))
	require.ErrorIs(t, err, appErrors.ErrClaimNotDraft)
}

func TestRequestChargeOnlyFromChargeableStatuses(t *testing.T) {
	f := newClaimFixture(t)
	f.addBooking(11, "chef-9")
	resp, err := f.svc.Create(context.Background(), validCreateRequest(11), managerActor("mgr-1"))
	require.NoError(t, err)

	_, err = f.svc.RequestCharge(context.Background(), resp.ID, managerActor("mgr-1"))
	require.ErrorIs(t, err, appErrors.ErrNotChargeable)
	require.Empty(t, f.charges.enqueued)

	f.repo.claims[resp.ID].Status = models.ClaimStatusChefAccepted
	charged, err := f.svc.RequestCharge(context.Background(), resp.ID, managerActor("mgr-1"))
	require.NoError(t, err)
	require.Equal(t, models.ClaimStatusChargePending, charged.Status)
	require.Equal(t, []int64{resp.ID}, f.charges.enqueued)
}

func TestChargeAmountPrefersApproved(t *testing.T) {
	approved := int64(30000)
	claim := &models.DamageClaim{ClaimedAmountCents: 48000}
	require.Equal(t, int64(48000), claim.ChargeableAmountCents())
	claim.ApprovedAmountCents = &approved
	require.Equal(t, approved, claim.ChargeableAmountCents())
}

func TestDeleteDraftOnly(t *testing.T) {
	f := newClaimFixture(t)
	f.addBooking(11, "chef-9")
	resp, err := f.svc.Create(context.Background(), validCreateRequest(11), managerActor("mgr-1"))
	require.NoError(t, err)

	f.evidence.byClaim[resp.ID] = []models.DamageEvidence{{ID: 1}, {ID: 2}}
	_, err = f.svc.Submit(context.Background(), resp.ID, managerActor("mgr-1"))
	require.NoError(t, err)

	err = f.svc.Delete(context.Background(), resp.ID, managerActor("mgr-1"))
	require.ErrorIs(t, err, appErrors.ErrClaimNotDraft)

	f.repo.claims[resp.ID].Status = models.ClaimStatusDraft
	require.NoError(t, f.svc.Delete(context.Background(), resp.ID, managerActor("mgr-1")))
	_, err = f.svc.Get(context.Background(), resp.ID, managerActor("mgr-1"))
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestClaimAccessIsPartyScoped(t *testing.T) {
	f := newClaimFixture(t)
	f.addBooking(11, "chef-9")
	resp, err := f.svc.Create(context.Background(), validCreateRequest(11), managerActor("mgr-1"))
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), resp.ID, managerActor("mgr-2"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Get(context.Background(), resp.ID, chefActor("chef-9"))
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), resp.ID, chefActor("chef-2"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Get(context.Background(), resp.ID, adminActor("adm-1"))
	require.NoError(t, err)
}

func TestHistoryHumanizesActions(t *testing.T) {
	f := newClaimFixture(t)
	f.addBooking(11, "chef-9")
	resp, err := f.svc.Create(context.Background(), validCreateRequest(11), managerActor("mgr-1"))
	require.NoError(t, err)

	f.evidence.byClaim[resp.ID] = []models.DamageEvidence{{ID: 1}, {ID: 2}}
	_, err = f.svc.Submit(context.Background(), resp.ID, managerActor("mgr-1"))
	require.NoError(t, err)

	history, err := f.svc.History(context.Background(), resp.ID, managerActor("mgr-1"))
	require.NoError(t, err)
	require.Len(t, history.History, 2)
	require.Equal(t, "Claim Created", history.History[0].DisplayAction)
	require.Equal(t, "Claim Submitted", history.History[1].DisplayAction)
}

func TestAddDamagedItemDraftOnly(t *testing.T) {
	f := newClaimFixture(t)
	f.addBooking(11, "chef-9")
	resp, err := f.svc.Create(context.Background(), validCreateRequest(11), managerActor("mgr-1"))
	require.NoError(t, err)

	item, err := f.svc.AddDamagedItem(context.Background(), resp.ID, dto.DamagedItemRequest{
		EquipmentID:   "eq-7",
		EquipmentName: "Convection oven",
	}, managerActor("mgr-1"))
	require.NoError(t, err)
	require.Equal(t, "eq-7", item.EquipmentID)

	f.repo.claims[resp.ID].Status = models.ClaimStatusSubmitted
	_, err = f.svc.AddDamagedItem(context.Background(), resp.ID, dto.DamagedItemRequest{
		EquipmentID:   "eq-8",
		EquipmentName: "Walk-in fridge",
	}, managerActor("mgr-1"))
	require.ErrorIs(t, err, appErrors.ErrClaimNotDraft)
}

func TestRecentBookingsReturnsWindow(t *testing.T) {
	f := newClaimFixture(t)
	f.addBooking(11, "chef-9")
	f.addBooking(12, "chef-3")

	resp, err := f.svc.RecentBookings(context.Background(), managerActor("mgr-1"))
	require.NoError(t, err)
	require.Len(t, resp.Bookings, 2)
	require.Equal(t, 14, resp.DeadlineDays)
}

func TestListScopesManagersToOwnClaims(t *testing.T) {
	f := newClaimFixture(t)
	f.addBooking(11, "chef-9")
	_, err := f.svc.Create(context.Background(), validCreateRequest(11), managerActor("mgr-1"))
	require.NoError(t, err)

	// A different manager's claim, injected directly.
	other := &models.DamageClaim{ManagerID: "mgr-2", ChefID: "chef-1", Status: models.ClaimStatusDraft}
	require.NoError(t, f.repo.Create(context.Background(), other))

	list, cacheHit, err := f.svc.List(context.Background(), dto.ClaimFilter{}, managerActor("mgr-1"))
	require.NoError(t, err)
	require.False(t, cacheHit)
	require.Len(t, list.Claims, 1)
	require.Equal(t, "mgr-1", list.Claims[0].ManagerID)
}

func TestCreateClaimAuditPayload(t *testing.T) {
	f := newClaimFixture(t)
	f.addBooking(11, "chef-9")
	resp, err := f.svc.Create(context.Background(), validCreateRequest(11), managerActor("mgr-1"))
	require.NoError(t, err)

	require.Len(t, f.audit.logs, 1)
	log := f.audit.logs[0]
	require.Equal(t, models.AuditActionClaimCreate, log.Action)
	require.Equal(t, "damage_claim", log.Resource)
	require.NotNil(t, log.ResourceID)
	require.Equal(t, fmt.Sprintf("%d", resp.ID), *log.ResourceID)
}
