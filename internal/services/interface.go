// file: internal/services/interface.go
package services

import (
	"context"
	"time"

	"engagehub/internal/events"
	"engagehub/internal/models"

	"github.com/shopspring/decimal"
)

// ===============================
// CORE SERVICE INTERFACES
// ===============================

// LedgerService is the only writer of awards, hours and points
type LedgerService interface {
	AwardBadge(ctx context.Context, req *AwardRequest) (AwardOutcome, error)
	AccrueHours(ctx context.Context, req *HoursRequest) (decimal.Decimal, error)
	AccruePoints(ctx context.Context, req *PointsRequest) (bool, error)

	HoursTotal(ctx context.Context, userID int64, audience models.Audience) (decimal.Decimal, error)
	PointsTotal(ctx context.Context, userID int64) (int64, error)
}

// AttendanceBonusService evaluates and commits attendance bonuses
type AttendanceBonusService interface {
	CalculateAttendanceBonus(ctx context.Context, studentID int64) (*AttendanceBonus, error)
	AwardAttendanceBonus(ctx context.Context, studentID int64) (*AttendanceBonusAward, error)
	GetStreaks(ctx context.Context, studentID int64) (*StreakSummary, error)

	// StudentsWithAttendance lists students with records in the evaluation window
	StudentsWithAttendance(ctx context.Context) ([]int64, error)
}

// EvidenceService runs the teacher evidence review workflow
type EvidenceService interface {
	Submit(ctx context.Context, req *SubmitEvidenceRequest) (*models.EvidenceSubmission, error)
	Review(ctx context.Context, req *ReviewRequest) (*models.EvidenceSubmission, error)
	GetSubmission(ctx context.Context, id int64) (*models.EvidenceSubmission, error)
	ListPending(ctx context.Context, limit int) ([]*models.EvidenceSubmission, error)
}

// CompletionService accepts completion signals and reports daily counts
type CompletionService interface {
	Publish(ctx context.Context, req *CompletionRequest) (*events.CompletionEvent, error)
	Dispatch(ctx context.Context, req *CompletionRequest) (*events.DispatchReport, error)
	Counts(ctx context.Context, userID int64, day time.Time) (*CompletionCounts, error)
}

// RewardFacade is the surface other parts of the platform call
type RewardFacade interface {
	AwardBadgeToStudent(ctx context.Context, studentID, badgeID int64, sourceRef, note *string) bool
	AwardBadgeToTeacher(ctx context.Context, teacherID, badgeID int64, sourceRef, note *string) bool
	RecordLearningHours(ctx context.Context, studentID int64, activityType, activityRef string, hours decimal.Decimal) (decimal.Decimal, error)
	RecordCpdHours(ctx context.Context, teacherID, badgeID int64, hours decimal.Decimal) error
	CalculateAttendanceBonus(ctx context.Context, studentID int64) (*AttendanceBonus, error)
	AwardAttendanceBonus(ctx context.Context, studentID int64) (*AttendanceBonusAward, error)
	SubmitBadgeEvidence(ctx context.Context, req *SubmitEvidenceRequest) (int64, error)
	ReviewSubmission(ctx context.Context, req *ReviewRequest) bool
}

// ===============================
// COLLABORATORS
// ===============================

// Notifier delivers user facing messages. Delivery itself lives elsewhere.
type Notifier interface {
	NotifySubmission(ctx context.Context, adminID int64, submission *models.EvidenceSubmission, teacherName, badgeName string) error
	NotifyBadgeApproval(ctx context.Context, submission *models.EvidenceSubmission, badgeName string, approved bool) error
	NotifyCompletion(ctx context.Context, userID int64, activityKind, activityTitle string) error
}

// Directory resolves people for notifications
type Directory interface {
	AdminIDs(ctx context.Context) ([]int64, error)
	DisplayName(ctx context.Context, userID int64) (string, error)
}

// Clock supplies the current time in UTC
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// SystemClock returns the wall clock
func SystemClock() Clock {
	return systemClock{}
}
