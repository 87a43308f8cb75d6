package models

import "time"

// AwardStatus is the lifecycle state of an award
type AwardStatus string

const (
	AwardPending  AwardStatus = "pending"
	AwardApproved AwardStatus = "approved"
	AwardRejected AwardStatus = "rejected"
)

// Award records that a user holds a badge.
// At most one non-rejected award exists per (user, badge, audience).
type Award struct {
	ID        int64       `json:"id" db:"id"`
	UserID    int64       `json:"user_id" db:"user_id"`
	BadgeID   int64       `json:"badge_id" db:"badge_id"`
	Audience  Audience    `json:"audience" db:"audience"`
	Status    AwardStatus `json:"status" db:"status"`
	SourceRef *string     `json:"source_ref,omitempty" db:"source_ref"`
	Note      *string     `json:"note,omitempty" db:"note"`
	AwardedAt time.Time   `json:"awarded_at" db:"awarded_at"`
}
