// file: internal/services/notification_service.go
package services

import (
	"context"
	"fmt"

	"engagehub/internal/models"

	"go.uber.org/zap"
)

// Notice is a rendered message ready for a delivery channel
type Notice struct {
	UserID  int64  `json:"user_id"`
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

const (
	NoticeSubmission = "evidence_submitted"
	NoticeReview     = "evidence_reviewed"
	NoticeCompletion = "activity_completed"
)

// DeliverFunc hands a notice to a delivery channel
type DeliverFunc func(ctx context.Context, notice Notice) error

// logNotifier renders notices and logs them. A DeliverFunc may be attached.
type logNotifier struct {
	deliver DeliverFunc
	logger  *zap.Logger
}

// NewLogNotifier creates a Notifier that records each notice in the log
func NewLogNotifier(deliver DeliverFunc, logger *zap.Logger) Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &logNotifier{deliver: deliver, logger: logger}
}

func (n *logNotifier) NotifySubmission(ctx context.Context, adminID int64, submission *models.EvidenceSubmission, teacherName, badgeName string) error {
	return n.send(ctx, Notice{
		UserID:  adminID,
		Kind:    NoticeSubmission,
		Title:   "New badge evidence to review",
		Message: fmt.Sprintf("%s submitted evidence for %s.", teacherName, badgeName),
	})
}

func (n *logNotifier) NotifyBadgeApproval(ctx context.Context, submission *models.EvidenceSubmission, badgeName string, approved bool) error {
	notice := Notice{
		UserID: submission.TeacherID,
		Kind:   NoticeReview,
	}

	if approved {
		notice.Title = "Badge approved"
		notice.Message = fmt.Sprintf("Your evidence for %s was approved.", badgeName)
		if submission.HoursAwarded != nil && submission.HoursAwarded.IsPositive() {
			notice.Message += fmt.Sprintf(" %s CPD hours were added.", submission.HoursAwarded.String())
		}
	} else {
		notice.Title = "Badge evidence not approved"
		notice.Message = fmt.Sprintf("Your evidence for %s was not approved.", badgeName)
	}
	if submission.ReviewNotes != nil && *submission.ReviewNotes != "" {
		notice.Message += " Reviewer notes: " + *submission.ReviewNotes
	}

	return n.send(ctx, notice)
}

func (n *logNotifier) NotifyCompletion(ctx context.Context, userID int64, activityKind, activityTitle string) error {
	title := activityTitle
	if title == "" {
		title = "an activity"
	}
	return n.send(ctx, Notice{
		UserID:  userID,
		Kind:    NoticeCompletion,
		Title:   fmt.Sprintf("You completed a %s", activityKind),
		Message: fmt.Sprintf("Well done on finishing %s.", title),
	})
}

func (n *logNotifier) send(ctx context.Context, notice Notice) error {
	n.logger.Info("Sending notification",
		zap.Int64("user_id", notice.UserID),
		zap.String("kind", notice.Kind),
		zap.String("title", notice.Title),
	)

	if n.deliver == nil {
		return nil
	}
	if err := n.deliver(ctx, notice); err != nil {
		return fmt.Errorf("deliver %s notice: %w", notice.Kind, err)
	}
	return nil
}

// ===============================
// DIRECTORY
// ===============================

// staticDirectory serves admin ids from configuration
type staticDirectory struct {
	adminIDs []int64
	names    map[int64]string
}

// NewStaticDirectory creates a Directory backed by a fixed admin list
func NewStaticDirectory(adminIDs []int64, names map[int64]string) Directory {
	ids := make([]int64, len(adminIDs))
	copy(ids, adminIDs)
	if names == nil {
		names = map[int64]string{}
	}
	return &staticDirectory{adminIDs: ids, names: names}
}

func (d *staticDirectory) AdminIDs(ctx context.Context) ([]int64, error) {
	return d.adminIDs, nil
}

func (d *staticDirectory) DisplayName(ctx context.Context, userID int64) (string, error) {
	if name, ok := d.names[userID]; ok {
		return name, nil
	}
	return fmt.Sprintf("User %d", userID), nil
}
