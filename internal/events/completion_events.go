package events

import (
	"errors"
	"time"

	"engagehub/internal/models"

	"github.com/shopspring/decimal"
)

const (
	MissionCompleted   = "mission.completed"
	ChallengeCompleted = "challenge.completed"
)

// CompletionTypes lists every event type the completion router accepts
var CompletionTypes = []string{MissionCompleted, ChallengeCompleted}

// CompletionEvent signals that a user finished a mission or challenge.
// BaseEvent.UserID is always set.
type CompletionEvent struct {
	BaseEvent
	IsTeacher     bool            `json:"is_teacher"`
	BadgeID       *int64          `json:"badge_id,omitempty"`
	ActivityID    int64           `json:"activity_id"`
	ActivityTitle string          `json:"activity_title"`
	HoursAwarded  decimal.Decimal `json:"hours_awarded"`
	CompletedAt   time.Time       `json:"completed_at"`
}

// NewCompletionEvent builds a completion event for userID
func NewCompletionEvent(eventType string, userID int64, isTeacher bool, activityID int64, title string, hours decimal.Decimal, badgeID *int64, completedAt time.Time) *CompletionEvent {
	return &CompletionEvent{
		BaseEvent:     NewBaseEvent(eventType, &userID, completedAt),
		IsTeacher:     isTeacher,
		BadgeID:       badgeID,
		ActivityID:    activityID,
		ActivityTitle: title,
		HoursAwarded:  hours,
		CompletedAt:   completedAt,
	}
}

// Recipient returns the user who completed the activity
func (e *CompletionEvent) Recipient() int64 {
	if e.UserID == nil {
		return 0
	}
	return *e.UserID
}

// Audience derives the ledger audience from the holder flag
func (e *CompletionEvent) Audience() models.Audience {
	if e.IsTeacher {
		return models.AudienceTeacher
	}
	return models.AudienceStudent
}

// ActivityKind is "mission" or "challenge"
func (e *CompletionEvent) ActivityKind() string {
	switch e.EventType {
	case MissionCompleted:
		return "mission"
	case ChallengeCompleted:
		return "challenge"
	}
	return "activity"
}

func (e *CompletionEvent) Validate() error {
	switch {
	case e.EventType != MissionCompleted && e.EventType != ChallengeCompleted:
		return errors.New("unknown completion event type")
	case e.UserID == nil || *e.UserID <= 0:
		return errors.New("user id is required")
	case e.ActivityID <= 0:
		return errors.New("activity id is required")
	case e.HoursAwarded.IsNegative():
		return errors.New("hours awarded cannot be negative")
	case e.BadgeID != nil && *e.BadgeID <= 0:
		return errors.New("badge id must be positive")
	}
	return nil
}
