// file: internal/services/reward_facade.go
package services

import (
	"context"
	"fmt"

	"engagehub/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// rewardFacade adapts the ledger and workflows to the platform's call sites.
// Boolean results report "not awarded" rather than an error.
type rewardFacade struct {
	ledger     LedgerService
	attendance AttendanceBonusService
	evidence   EvidenceService
	logger     *zap.Logger
}

// NewRewardFacade creates the reward facade
func NewRewardFacade(ledger LedgerService, attendance AttendanceBonusService, evidence EvidenceService, logger *zap.Logger) RewardFacade {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &rewardFacade{ledger: ledger, attendance: attendance, evidence: evidence, logger: logger}
}

func (f *rewardFacade) AwardBadgeToStudent(ctx context.Context, studentID, badgeID int64, sourceRef, note *string) bool {
	return f.award(ctx, studentID, badgeID, models.AudienceStudent, sourceRef, note)
}

func (f *rewardFacade) AwardBadgeToTeacher(ctx context.Context, teacherID, badgeID int64, sourceRef, note *string) bool {
	return f.award(ctx, teacherID, badgeID, models.AudienceTeacher, sourceRef, note)
}

func (f *rewardFacade) award(ctx context.Context, userID, badgeID int64, audience models.Audience, sourceRef, note *string) bool {
	outcome, err := f.ledger.AwardBadge(ctx, &AwardRequest{
		UserID:    userID,
		BadgeID:   badgeID,
		Audience:  audience,
		SourceRef: sourceRef,
		Note:      note,
	})
	if err != nil {
		f.logger.Error("Badge award failed",
			zap.Int64("user_id", userID),
			zap.Int64("badge_id", badgeID),
			zap.String("audience", string(audience)),
			zap.Error(err),
		)
		return false
	}
	return outcome == Awarded
}

func (f *rewardFacade) RecordLearningHours(ctx context.Context, studentID int64, activityType, activityRef string, hours decimal.Decimal) (decimal.Decimal, error) {
	return f.ledger.AccrueHours(ctx, &HoursRequest{
		UserID:       studentID,
		Audience:     models.AudienceStudent,
		ActivityType: activityType,
		ActivityRef:  activityRef,
		Hours:        hours,
	})
}

// RecordCpdHours credits a teacher's professional development hours against a badge
func (f *rewardFacade) RecordCpdHours(ctx context.Context, teacherID, badgeID int64, hours decimal.Decimal) error {
	if badgeID <= 0 {
		return NewValidationError("badge id is required", nil)
	}
	_, err := f.ledger.AccrueHours(ctx, &HoursRequest{
		UserID:       teacherID,
		Audience:     models.AudienceTeacher,
		ActivityType: ActivityTypeCPDBadge,
		ActivityRef:  fmt.Sprintf("badge:%d", badgeID),
		Hours:        hours,
	})
	return err
}

func (f *rewardFacade) CalculateAttendanceBonus(ctx context.Context, studentID int64) (*AttendanceBonus, error) {
	return f.attendance.CalculateAttendanceBonus(ctx, studentID)
}

func (f *rewardFacade) AwardAttendanceBonus(ctx context.Context, studentID int64) (*AttendanceBonusAward, error) {
	return f.attendance.AwardAttendanceBonus(ctx, studentID)
}

func (f *rewardFacade) SubmitBadgeEvidence(ctx context.Context, req *SubmitEvidenceRequest) (int64, error) {
	submission, err := f.evidence.Submit(ctx, req)
	if err != nil {
		return 0, err
	}
	return submission.ID, nil
}

func (f *rewardFacade) ReviewSubmission(ctx context.Context, req *ReviewRequest) bool {
	if _, err := f.evidence.Review(ctx, req); err != nil {
		f.logger.Warn("Submission review not applied",
			zap.Int64("submission_id", req.SubmissionID),
			zap.Error(err),
		)
		return false
	}
	return true
}
