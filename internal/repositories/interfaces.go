// file: internal/repositories/interfaces.go
package repositories

import (
	"context"
	"errors"
	"time"

	"engagehub/internal/models"

	"github.com/shopspring/decimal"
)

// ErrDuplicate is returned when a write collides with a uniqueness guard
var ErrDuplicate = errors.New("duplicate record")

// ===============================
// CATALOGUE
// ===============================

// BadgeRepository reads the badge catalogue
type BadgeRepository interface {
	Create(ctx context.Context, badge *models.Badge) error
	GetByID(ctx context.Context, id int64) (*models.Badge, error)
	GetByCode(ctx context.Context, code string) (*models.Badge, error)
	ListActive(ctx context.Context, audience models.Audience) ([]*models.Badge, error)
}

// ===============================
// LEDGER
// ===============================

// AwardRepository stores badge awards.
// GetActive ignores rejected awards.
type AwardRepository interface {
	GetActive(ctx context.Context, userID, badgeID int64, audience models.Audience) (*models.Award, error)
	// CreateIfAbsent inserts the award unless a live one already exists.
	// It reports false, with no error, when the insert lost to an existing award.
	CreateIfAbsent(ctx context.Context, award *models.Award) (bool, error)
	ListByUser(ctx context.Context, userID int64, audience models.Audience) ([]*models.Award, error)
}

// LedgerRepository stores append-only hours and points entries
type LedgerRepository interface {
	InsertHours(ctx context.Context, entry *models.HoursEntry) error
	ListHours(ctx context.Context, userID int64, audience models.Audience) ([]*models.HoursEntry, error)
	SumHours(ctx context.Context, userID int64, audience models.Audience) (decimal.Decimal, error)

	// InsertPointsIfAbsent reports false when (user, reason, source ref) was already recorded
	InsertPointsIfAbsent(ctx context.Context, entry *models.PointsEntry) (bool, error)
	SumPoints(ctx context.Context, userID int64) (int64, error)
}

// ===============================
// INPUTS
// ===============================

// AttendanceRepository reads attendance records
type AttendanceRepository interface {
	ListSince(ctx context.Context, studentID int64, since time.Time) ([]*models.AttendanceRecord, error)
	ListStudentsSince(ctx context.Context, since time.Time) ([]int64, error)
}

// SubmissionRepository stores teacher evidence submissions
type SubmissionRepository interface {
	// Create returns ErrDuplicate when the teacher already has an active submission for the badge
	Create(ctx context.Context, submission *models.EvidenceSubmission) error
	GetByID(ctx context.Context, id int64) (*models.EvidenceSubmission, error)
	GetActive(ctx context.Context, teacherID, badgeID int64) (*models.EvidenceSubmission, error)
	// CompleteReview moves a pending submission to its final state.
	// It reports false when the submission was no longer pending.
	CompleteReview(ctx context.Context, review *SubmissionReview) (bool, error)
	// ReopenReview returns a reviewed submission to pending with its original hours.
	// It reports false when the stored review no longer matches.
	ReopenReview(ctx context.Context, review *SubmissionReview, hours *decimal.Decimal) (bool, error)
	ListPending(ctx context.Context, limit int) ([]*models.EvidenceSubmission, error)
}

// SubmissionReview is the terminal transition written by CompleteReview
type SubmissionReview struct {
	SubmissionID int64
	Status       models.SubmissionStatus
	ReviewerID   int64
	ReviewedAt   time.Time
	Notes        *string
	HoursAwarded *decimal.Decimal
}
