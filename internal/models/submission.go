package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

// EvidenceSubmission is a teacher's claim to a badge awaiting admin review
type EvidenceSubmission struct {
	ID           int64            `json:"id" db:"id"`
	TeacherID    int64            `json:"teacher_id" db:"teacher_id"`
	BadgeID      int64            `json:"badge_id" db:"badge_id"`
	EvidenceLink string           `json:"evidence_link" db:"evidence_link"`
	Notes        *string          `json:"notes,omitempty" db:"notes"`
	SubmittedAt  time.Time        `json:"submitted_at" db:"submitted_at"`
	Status       SubmissionStatus `json:"status" db:"status"`
	ReviewerID   *int64           `json:"reviewer_id,omitempty" db:"reviewer_id"`
	ReviewedAt   *time.Time       `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewNotes  *string          `json:"review_notes,omitempty" db:"review_notes"`
	HoursAwarded *decimal.Decimal `json:"hours_awarded,omitempty" db:"hours_awarded"`
}

// IsTerminal is true once the submission has been reviewed
func (s *EvidenceSubmission) IsTerminal() bool {
	return s.Status == SubmissionApproved || s.Status == SubmissionRejected
}
