// ===============================
// FILE: internal/services/attendance_bonus_service.go
// ===============================

package services

import (
	"context"
	"fmt"
	"time"

	"engagehub/internal/models"
	"engagehub/internal/repositories"
	"engagehub/internal/streaks"

	"go.uber.org/zap"
)

// AttendanceBonusConfig holds the evaluation window and tier rules
type AttendanceBonusConfig struct {
	LookbackDays int           `json:"lookback_days"`
	Rules        streaks.Rules `json:"rules"`
}

// DefaultAttendanceBonusConfig returns the default bonus configuration
func DefaultAttendanceBonusConfig() *AttendanceBonusConfig {
	return &AttendanceBonusConfig{
		LookbackDays: 90,
		Rules:        streaks.DefaultRules(),
	}
}

type attendanceBonusService struct {
	attendanceRepo repositories.AttendanceRepository
	badgeRepo      repositories.BadgeRepository
	ledger         LedgerService
	clock          Clock
	logger         *zap.Logger
	config         *AttendanceBonusConfig
}

// NewAttendanceBonusService creates the attendance bonus service
func NewAttendanceBonusService(
	attendanceRepo repositories.AttendanceRepository,
	badgeRepo repositories.BadgeRepository,
	ledger LedgerService,
	clock Clock,
	logger *zap.Logger,
	config *AttendanceBonusConfig,
) AttendanceBonusService {
	if config == nil {
		config = DefaultAttendanceBonusConfig()
	}
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &attendanceBonusService{
		attendanceRepo: attendanceRepo,
		badgeRepo:      badgeRepo,
		ledger:         ledger,
		clock:          clock,
		logger:         logger,
		config:         config,
	}
}

// evaluation carries a computed result plus the badge ids it unlocked
type evaluation struct {
	today    time.Time
	result   streaks.Result
	badgeIDs []int64
}

// windowStart is the earlier of the lookback start and the first of the month
func (s *attendanceBonusService) windowStart(today time.Time) time.Time {
	since := today.AddDate(0, 0, -s.config.LookbackDays)
	if monthStart := streaks.MonthStart(today); monthStart.Before(since) {
		since = monthStart
	}
	return since
}

func (s *attendanceBonusService) evaluate(ctx context.Context, studentID int64) (*evaluation, error) {
	if studentID <= 0 {
		return nil, NewValidationError("student id is required", nil)
	}

	today := streaks.Day(s.clock.Now())
	records, err := s.attendanceRepo.ListSince(ctx, studentID, s.windowStart(today))
	if err != nil {
		return nil, storeError("list attendance", err)
	}

	eval := &evaluation{
		today:  today,
		result: streaks.Evaluate(records, today, s.config.Rules),
	}

	for _, code := range eval.result.UnlockedBadges {
		badge, err := s.badgeRepo.GetByCode(ctx, code)
		if err != nil {
			return nil, storeError("look up badge", err)
		}
		if badge == nil {
			s.logger.Warn("Attendance badge missing from catalogue",
				zap.String("badge_code", code),
				zap.Int64("student_id", studentID),
			)
			continue
		}
		eval.badgeIDs = append(eval.badgeIDs, badge.ID)
	}

	return eval, nil
}

// CalculateAttendanceBonus evaluates the tiers without writing anything
func (s *attendanceBonusService) CalculateAttendanceBonus(ctx context.Context, studentID int64) (*AttendanceBonus, error) {
	eval, err := s.evaluate(ctx, studentID)
	if err != nil {
		return nil, err
	}

	return &AttendanceBonus{
		StudentID:    studentID,
		PointsEarned: eval.result.Points,
		BadgeIDs:     nonNilIDs(eval.badgeIDs),
		Message:      eval.result.Message(),
	}, nil
}

// AwardAttendanceBonus evaluates and commits each fired tier once per period
func (s *attendanceBonusService) AwardAttendanceBonus(ctx context.Context, studentID int64) (*AttendanceBonusAward, error) {
	eval, err := s.evaluate(ctx, studentID)
	if err != nil {
		return nil, err
	}

	award := &AttendanceBonusAward{
		StudentID:     studentID,
		BadgesAwarded: []int64{},
		Message:       eval.result.Message(),
	}

	for _, tier := range eval.result.Tiers {
		recorded, err := s.ledger.AccruePoints(ctx, &PointsRequest{
			UserID:    studentID,
			Reason:    string(tier.Tier),
			SourceRef: attendanceRef(tier.Period),
			Points:    tier.Points,
		})
		if err != nil {
			return nil, err
		}
		if recorded {
			award.PointsAwarded += tier.Points
		}
	}

	badgeRef := attendanceRef(streaks.MonthPeriod(eval.today))
	for _, badgeID := range eval.badgeIDs {
		outcome, err := s.ledger.AwardBadge(ctx, &AwardRequest{
			UserID:    studentID,
			BadgeID:   badgeID,
			Audience:  models.AudienceStudent,
			SourceRef: &badgeRef,
		})
		if err != nil {
			return nil, err
		}
		if outcome == Awarded {
			award.BadgesAwarded = append(award.BadgesAwarded, badgeID)
		}
	}

	if award.PointsAwarded > 0 || len(award.BadgesAwarded) > 0 {
		s.logger.Info("Attendance bonus awarded",
			zap.Int64("student_id", studentID),
			zap.Int("points", award.PointsAwarded),
			zap.Int64s("badge_ids", award.BadgesAwarded),
		)
	}

	return award, nil
}

func (s *attendanceBonusService) GetStreaks(ctx context.Context, studentID int64) (*StreakSummary, error) {
	eval, err := s.evaluate(ctx, studentID)
	if err != nil {
		return nil, err
	}

	return &StreakSummary{
		StudentID: studentID,
		Current:   eval.result.CurrentStreak,
		Longest:   eval.result.LongestStreak,
	}, nil
}

func (s *attendanceBonusService) StudentsWithAttendance(ctx context.Context) ([]int64, error) {
	today := streaks.Day(s.clock.Now())
	ids, err := s.attendanceRepo.ListStudentsSince(ctx, s.windowStart(today))
	if err != nil {
		return nil, storeError("list students", err)
	}
	return ids, nil
}

func attendanceRef(period string) string {
	return fmt.Sprintf("attendance:%s", period)
}

func nonNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
