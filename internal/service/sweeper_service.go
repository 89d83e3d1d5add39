package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/prepshare/claims-api/internal/models"
)

type sweeperStore interface {
	ListSubmittedPastDeadline(ctx context.Context, now time.Time) ([]models.DamageClaim, error)
	ListStaleDrafts(ctx context.Context, cutoff time.Time) ([]models.DamageClaim, error)
	ListSettledCharges(ctx context.Context, cutoff time.Time) ([]models.DamageClaim, error)
	UpdateStatus(ctx context.Context, id int64, from, to models.ClaimStatus, updatedAt time.Time) error
}

type exportCleaner interface {
	Cleanup(ttl time.Duration) ([]string, error)
}

// SweeperConfig controls the background sweep cadence.
type SweeperConfig struct {
	Interval        time.Duration
	DraftExpiryDays int
	SettleDelay     time.Duration
}

// SweeperService advances claims whose deadlines lapsed without an
// actor: submitted claims past the chef response window are deemed
// accepted, drafts abandoned past the filing window expire, and settled
// charges resolve after a holding period. Each pass also prunes expired
// export files.
type SweeperService struct {
	claims  sweeperStore
	history historyStore
	exports exportCleaner
	cache   *CacheService
	logger  *zap.Logger
	metrics *MetricsService
	cfg     SweeperConfig
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSweeperService constructs the sweeper with defaults. A nil exports
// cleaner disables export pruning.
func NewSweeperService(claims sweeperStore, history historyStore, exports exportCleaner, cache *CacheService, logger *zap.Logger, metrics *MetricsService, cfg SweeperConfig) *SweeperService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.DraftExpiryDays <= 0 {
		cfg.DraftExpiryDays = 30
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 24 * time.Hour
	}
	return &SweeperService{
		claims:  claims,
		history: history,
		exports: exports,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
		cfg:     cfg,
	}
}

// Start launches the sweep loop.
func (s *SweeperService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx)
	s.logger.Info("sweeper started", zap.Duration("interval", s.cfg.Interval))
}

// Stop signals the loop and waits for the current sweep to finish.
func (s *SweeperService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("sweeper stopped")
}

func (s *SweeperService) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one pass over all three deadline classes and prunes
// expired export files.
func (s *SweeperService) Sweep(ctx context.Context) {
	now := time.Now().UTC()
	s.deemAccepted(ctx, now)
	s.expireDrafts(ctx, now)
	s.resolveSettled(ctx, now)
	s.pruneExports()
}

// deemAccepted moves submitted claims past their chef response deadline
// to chef_accepted. Silence within the window counts as acceptance.
func (s *SweeperService) deemAccepted(ctx context.Context, now time.Time) {
	claims, err := s.claims.ListSubmittedPastDeadline(ctx, now)
	if err != nil {
		s.logger.Error("sweep: failed to list overdue submissions", zap.Error(err))
		return
	}
	for i := range claims {
		note := "no chef response within the window"
		s.advance(ctx, &claims[i], models.ClaimStatusSubmitted, models.ClaimStatusChefAccepted, "deadline_accepted", &note, now)
	}
}

// expireDrafts ages out drafts never submitted inside the filing window.
func (s *SweeperService) expireDrafts(ctx context.Context, now time.Time) {
	cutoff := now.AddDate(0, 0, -s.cfg.DraftExpiryDays)
	claims, err := s.claims.ListStaleDrafts(ctx, cutoff)
	if err != nil {
		s.logger.Error("sweep: failed to list stale drafts", zap.Error(err))
		return
	}
	for i := range claims {
		note := fmt.Sprintf("draft not submitted within %d days", s.cfg.DraftExpiryDays)
		s.advance(ctx, &claims[i], models.ClaimStatusDraft, models.ClaimStatusExpired, "draft_expired", &note, now)
	}
}

// resolveSettled closes out succeeded charges after the settle delay.
func (s *SweeperService) resolveSettled(ctx context.Context, now time.Time) {
	cutoff := now.Add(-s.cfg.SettleDelay)
	claims, err := s.claims.ListSettledCharges(ctx, cutoff)
	if err != nil {
		s.logger.Error("sweep: failed to list settled charges", zap.Error(err))
		return
	}
	for i := range claims {
		s.advance(ctx, &claims[i], models.ClaimStatusChargeSucceeded, models.ClaimStatusResolved, "charge_settled", nil, now)
	}
}

// pruneExports drops stored export files past their download TTL.
func (s *SweeperService) pruneExports() {
	if s.exports == nil {
		return
	}
	removed, err := s.exports.Cleanup(0)
	if err != nil {
		s.logger.Error("sweep: failed to prune exports", zap.Error(err))
		return
	}
	if len(removed) > 0 {
		s.logger.Info("sweep: pruned expired exports", zap.Int("count", len(removed)))
	}
}

func (s *SweeperService) advance(ctx context.Context, claim *models.DamageClaim, from, to models.ClaimStatus, action string, notes *string, now time.Time) {
	if err := s.claims.UpdateStatus(ctx, claim.ID, from, to, now); err != nil {
		// Someone else transitioned the claim first; skip it.
		s.logger.Debug("sweep: claim transitioned elsewhere", zap.Int64("claim_id", claim.ID), zap.Error(err))
		return
	}
	entry := &models.ClaimHistoryEntry{
		ClaimID:        claim.ID,
		PreviousStatus: &from,
		NewStatus:      to,
		Action:         action,
		ActionBy:       "system",
		Notes:          notes,
	}
	if err := s.history.Append(ctx, entry); err != nil {
		s.logger.Warn("sweep: failed to append history", zap.Int64("claim_id", claim.ID), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.RecordClaimTransition(string(from), string(to))
	}
	_ = s.cache.Invalidate(ctx, "claims:list:*")
	_ = s.cache.Invalidate(ctx, fmt.Sprintf("claims:detail:%d", claim.ID))
	s.logger.Info("sweep: claim advanced",
		zap.Int64("claim_id", claim.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
}
