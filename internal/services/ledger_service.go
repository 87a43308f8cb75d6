// ===============================
// FILE: internal/services/ledger_service.go
// ===============================

package services

import (
	"context"

	"engagehub/internal/models"
	"engagehub/internal/repositories"
	"engagehub/internal/validation"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ledgerService implements LedgerService on top of the award and ledger stores
type ledgerService struct {
	badgeRepo  repositories.BadgeRepository
	awardRepo  repositories.AwardRepository
	ledgerRepo repositories.LedgerRepository
	clock      Clock
	logger     *zap.Logger
}

// NewLedgerService creates the reward ledger
func NewLedgerService(
	badgeRepo repositories.BadgeRepository,
	awardRepo repositories.AwardRepository,
	ledgerRepo repositories.LedgerRepository,
	clock Clock,
	logger *zap.Logger,
) LedgerService {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ledgerService{
		badgeRepo:  badgeRepo,
		awardRepo:  awardRepo,
		ledgerRepo: ledgerRepo,
		clock:      clock,
		logger:     logger,
	}
}

// AwardBadge grants a badge at most once per (user, badge, audience).
// AlreadyHeld and BadgeNotFound are results, not errors.
func (s *ledgerService) AwardBadge(ctx context.Context, req *AwardRequest) (AwardOutcome, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return BadgeNotFound, NewValidationError("invalid award request", err)
	}

	existing, err := s.awardRepo.GetActive(ctx, req.UserID, req.BadgeID, req.Audience)
	if err != nil {
		return BadgeNotFound, storeError("look up award", err)
	}
	if existing != nil {
		return AlreadyHeld, nil
	}

	badge, err := s.badgeRepo.GetByID(ctx, req.BadgeID)
	if err != nil {
		return BadgeNotFound, storeError("look up badge", err)
	}
	if badge == nil || !badge.IsActive || !badge.AvailableTo(req.Audience) {
		s.logger.Warn("Badge not available for award",
			zap.Int64("badge_id", req.BadgeID),
			zap.Int64("user_id", req.UserID),
			zap.String("audience", string(req.Audience)),
		)
		return BadgeNotFound, nil
	}

	if err := ctx.Err(); err != nil {
		return BadgeNotFound, err
	}

	award := &models.Award{
		UserID:    req.UserID,
		BadgeID:   req.BadgeID,
		Audience:  req.Audience,
		Status:    models.AwardApproved,
		SourceRef: req.SourceRef,
		Note:      req.Note,
		AwardedAt: s.clock.Now(),
	}

	created, err := s.awardRepo.CreateIfAbsent(ctx, award)
	if err != nil {
		return BadgeNotFound, storeError("insert award", err)
	}
	if !created {
		// a concurrent award got there first
		return AlreadyHeld, nil
	}

	s.logger.Info("Badge awarded",
		zap.Int64("award_id", award.ID),
		zap.Int64("user_id", award.UserID),
		zap.Int64("badge_id", award.BadgeID),
		zap.String("audience", string(award.Audience)),
	)
	return Awarded, nil
}

// AccrueHours appends an hours entry. Repeats are recorded again.
func (s *ledgerService) AccrueHours(ctx context.Context, req *HoursRequest) (decimal.Decimal, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return decimal.Zero, NewValidationError("invalid hours request", err)
	}
	if req.Hours.IsNegative() {
		return decimal.Zero, NewValidationError("hours cannot be negative", nil)
	}

	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	entry := &models.HoursEntry{
		UserID:       req.UserID,
		Audience:     req.Audience,
		ActivityType: req.ActivityType,
		ActivityRef:  req.ActivityRef,
		Hours:        req.Hours,
		AccruedAt:    s.clock.Now(),
	}

	if err := s.ledgerRepo.InsertHours(ctx, entry); err != nil {
		return decimal.Zero, storeError("insert hours entry", err)
	}

	s.logger.Info("Hours accrued",
		zap.Int64("user_id", entry.UserID),
		zap.String("audience", string(entry.Audience)),
		zap.String("activity_type", entry.ActivityType),
		zap.String("activity_ref", entry.ActivityRef),
		zap.String("hours", entry.Hours.String()),
	)
	return entry.Hours, nil
}

// AccruePoints records a bonus once per (user, reason, source ref)
func (s *ledgerService) AccruePoints(ctx context.Context, req *PointsRequest) (bool, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return false, NewValidationError("invalid points request", err)
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}

	entry := &models.PointsEntry{
		UserID:    req.UserID,
		Reason:    req.Reason,
		SourceRef: req.SourceRef,
		Points:    req.Points,
		AccruedAt: s.clock.Now(),
	}

	recorded, err := s.ledgerRepo.InsertPointsIfAbsent(ctx, entry)
	if err != nil {
		return false, storeError("insert points entry", err)
	}

	if recorded {
		s.logger.Info("Points accrued",
			zap.Int64("user_id", entry.UserID),
			zap.String("reason", entry.Reason),
			zap.String("source_ref", entry.SourceRef),
			zap.Int("points", entry.Points),
		)
	}
	return recorded, nil
}

func (s *ledgerService) HoursTotal(ctx context.Context, userID int64, audience models.Audience) (decimal.Decimal, error) {
	total, err := s.ledgerRepo.SumHours(ctx, userID, audience)
	if err != nil {
		return decimal.Zero, storeError("sum hours", err)
	}
	return total, nil
}

func (s *ledgerService) PointsTotal(ctx context.Context, userID int64) (int64, error) {
	total, err := s.ledgerRepo.SumPoints(ctx, userID)
	if err != nil {
		return 0, storeError("sum points", err)
	}
	return total, nil
}
