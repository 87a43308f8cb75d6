// file: internal/services/types.go
package services

import (
	"time"

	"github.com/shopspring/decimal"

	"engagehub/internal/models"
)

// ===============================
// LEDGER TYPES
// ===============================

// AwardOutcome is the expected result of an award attempt
type AwardOutcome int

const (
	Awarded AwardOutcome = iota
	AlreadyHeld
	BadgeNotFound
)

func (o AwardOutcome) String() string {
	switch o {
	case Awarded:
		return "awarded"
	case AlreadyHeld:
		return "already_held"
	case BadgeNotFound:
		return "badge_not_found"
	}
	return "unknown"
}

type AwardRequest struct {
	UserID    int64           `json:"user_id" validate:"required,gt=0"`
	BadgeID   int64           `json:"badge_id" validate:"required,gt=0"`
	Audience  models.Audience `json:"audience" validate:"required,oneof=student teacher"`
	SourceRef *string         `json:"source_ref,omitempty" validate:"omitempty,max=255"`
	Note      *string         `json:"note,omitempty" validate:"omitempty,max=1000"`
}

type HoursRequest struct {
	UserID       int64           `json:"user_id" validate:"required,gt=0"`
	Audience     models.Audience `json:"audience" validate:"required,oneof=student teacher"`
	ActivityType string          `json:"activity_type" validate:"required,max=64"`
	ActivityRef  string          `json:"activity_ref" validate:"max=255"`
	Hours        decimal.Decimal `json:"hours"`
}

type PointsRequest struct {
	UserID    int64  `json:"user_id" validate:"required,gt=0"`
	Reason    string `json:"reason" validate:"required,max=64"`
	SourceRef string `json:"source_ref" validate:"required,max=255"`
	Points    int    `json:"points" validate:"gt=0"`
}

// ===============================
// ATTENDANCE TYPES
// ===============================

type AttendanceBonus struct {
	StudentID    int64   `json:"student_id"`
	PointsEarned int     `json:"points_earned"`
	BadgeIDs     []int64 `json:"badge_ids"`
	Message      string  `json:"message"`
}

type AttendanceBonusAward struct {
	StudentID     int64   `json:"student_id"`
	PointsAwarded int     `json:"points_awarded"`
	BadgesAwarded []int64 `json:"badges_awarded"`
	Message       string  `json:"message"`
}

type StreakSummary struct {
	StudentID int64 `json:"student_id"`
	Current   int   `json:"current"`
	Longest   int   `json:"longest"`
}

// ===============================
// EVIDENCE TYPES
// ===============================

type SubmitEvidenceRequest struct {
	TeacherID    int64   `json:"teacher_id" validate:"required,gt=0"`
	BadgeID      int64   `json:"badge_id" validate:"required,gt=0"`
	EvidenceLink string  `json:"evidence_link" validate:"required,url,max=2048"`
	Notes        *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type ReviewRequest struct {
	SubmissionID  int64            `json:"submission_id" validate:"required,gt=0"`
	Approved      bool             `json:"approved"`
	Reviewer      models.Actor     `json:"reviewer"`
	Notes         *string          `json:"notes,omitempty" validate:"omitempty,max=2000"`
	HoursOverride *decimal.Decimal `json:"hours_override,omitempty"`
}

// ===============================
// COMPLETION TYPES
// ===============================

type CompletionRequest struct {
	EventType     string           `json:"event_type" validate:"required,oneof=mission.completed challenge.completed"`
	UserID        int64            `json:"user_id" validate:"required,gt=0"`
	IsTeacher     bool             `json:"is_teacher"`
	BadgeID       *int64           `json:"badge_id,omitempty" validate:"omitempty,gt=0"`
	ActivityID    int64            `json:"activity_id" validate:"required,gt=0"`
	ActivityTitle string           `json:"activity_title" validate:"max=255"`
	HoursAwarded  *decimal.Decimal `json:"hours_awarded,omitempty"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
}

type CompletionCounts struct {
	Day     string           `json:"day"`
	ByType  map[string]int64 `json:"by_type"`
	ForUser int64            `json:"for_user"`
}
