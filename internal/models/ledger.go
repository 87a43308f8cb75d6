package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// HoursEntry is one append-only accrual of learning or CPD hours
type HoursEntry struct {
	ID           int64           `json:"id" db:"id"`
	UserID       int64           `json:"user_id" db:"user_id"`
	Audience     Audience        `json:"audience" db:"audience"`
	ActivityType string          `json:"activity_type" db:"activity_type"`
	ActivityRef  string          `json:"activity_ref" db:"activity_ref"`
	Hours        decimal.Decimal `json:"hours" db:"hours"`
	AccruedAt    time.Time       `json:"accrued_at" db:"accrued_at"`
}

// PointsEntry is one append-only bonus points accrual
type PointsEntry struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Reason    string    `json:"reason" db:"reason"`
	SourceRef string    `json:"source_ref" db:"source_ref"`
	Points    int       `json:"points" db:"points"`
	AccruedAt time.Time `json:"accrued_at" db:"accrued_at"`
}
