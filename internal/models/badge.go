package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Audience says which population a badge or award belongs to
type Audience string

const (
	AudienceStudent Audience = "student"
	AudienceTeacher Audience = "teacher"
	AudienceBoth    Audience = "both"
)

// Valid reports whether a is a known audience
func (a Audience) Valid() bool {
	switch a {
	case AudienceStudent, AudienceTeacher, AudienceBoth:
		return true
	}
	return false
}

// Badge represents an achievement badge that users can earn.
// Teacher badges may carry a professional-development hours value.
type Badge struct {
	ID          int64            `json:"id" db:"id"`
	Code        string           `json:"code" db:"code"`
	Name        string           `json:"name" db:"name"`
	Description string           `json:"description" db:"description"`
	IconURL     *string          `json:"icon_url,omitempty" db:"icon_url"`
	Audience    Audience         `json:"audience" db:"audience"`
	Hours       *decimal.Decimal `json:"hours,omitempty" db:"hours"`
	IsActive    bool             `json:"is_active" db:"is_active"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
}

// AvailableTo reports whether users of the given audience may hold the badge
func (b *Badge) AvailableTo(audience Audience) bool {
	return b.Audience == AudienceBoth || b.Audience == audience
}

// HoursValue returns the badge hours, zero when unset
func (b *Badge) HoursValue() decimal.Decimal {
	if b.Hours == nil {
		return decimal.Zero
	}
	return *b.Hours
}
