// ===============================
// FILE: internal/services/evidence_service.go
// ===============================

package services

import (
	"context"
	"errors"
	"fmt"

	"engagehub/internal/models"
	"engagehub/internal/repositories"
	"engagehub/internal/validation"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ActivityTypeCPDBadge is the hours entry type written on approval
const ActivityTypeCPDBadge = "cpd_badge"

type evidenceService struct {
	submissionRepo repositories.SubmissionRepository
	badgeRepo      repositories.BadgeRepository
	ledger         LedgerService
	notifier       Notifier
	directory      Directory
	clock          Clock
	logger         *zap.Logger
}

// NewEvidenceService creates the evidence review workflow
func NewEvidenceService(
	submissionRepo repositories.SubmissionRepository,
	badgeRepo repositories.BadgeRepository,
	ledger LedgerService,
	notifier Notifier,
	directory Directory,
	clock Clock,
	logger *zap.Logger,
) EvidenceService {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &evidenceService{
		submissionRepo: submissionRepo,
		badgeRepo:      badgeRepo,
		ledger:         ledger,
		notifier:       notifier,
		directory:      directory,
		clock:          clock,
		logger:         logger,
	}
}

// Submit records a pending claim. A teacher holds at most one live claim per badge.
func (s *evidenceService) Submit(ctx context.Context, req *SubmitEvidenceRequest) (*models.EvidenceSubmission, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, NewValidationError("invalid evidence submission", err)
	}

	active, err := s.submissionRepo.GetActive(ctx, req.TeacherID, req.BadgeID)
	if err != nil {
		return nil, storeError("look up submission", err)
	}
	if active != nil {
		return nil, NewValidationError("an active submission already exists for this badge", nil).WithContext(&ErrorContext{
			UserID:   &req.TeacherID,
			Resource: "submission",
			Metadata: map[string]interface{}{"submission_id": active.ID, "status": active.Status},
		})
	}

	badge, err := s.badgeRepo.GetByID(ctx, req.BadgeID)
	if err != nil {
		return nil, storeError("look up badge", err)
	}
	if badge == nil || !badge.IsActive || !badge.AvailableTo(models.AudienceTeacher) {
		return nil, EntityNotFoundError("badge", req.BadgeID)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	submission := &models.EvidenceSubmission{
		TeacherID:    req.TeacherID,
		BadgeID:      req.BadgeID,
		EvidenceLink: req.EvidenceLink,
		Notes:        req.Notes,
		SubmittedAt:  s.clock.Now(),
		Status:       models.SubmissionPending,
	}
	if badge.Hours != nil {
		hours := *badge.Hours
		submission.HoursAwarded = &hours
	}

	if err := s.submissionRepo.Create(ctx, submission); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, NewValidationError("an active submission already exists for this badge", err)
		}
		return nil, storeError("create submission", err)
	}

	s.logger.Info("Evidence submitted",
		zap.Int64("submission_id", submission.ID),
		zap.Int64("teacher_id", submission.TeacherID),
		zap.Int64("badge_id", submission.BadgeID),
	)

	s.notifyAdmins(ctx, submission, badge)
	return submission, nil
}

// Review moves a pending submission to approved or rejected exactly once
func (s *evidenceService) Review(ctx context.Context, req *ReviewRequest) (*models.EvidenceSubmission, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, NewValidationError("invalid review request", err)
	}
	if !req.Reviewer.IsAdmin() {
		return nil, NewUnauthorizedError("only admins can review submissions")
	}

	submission, err := s.submissionRepo.GetByID(ctx, req.SubmissionID)
	if err != nil {
		return nil, storeError("look up submission", err)
	}
	if submission == nil {
		return nil, EntityNotFoundError("submission", req.SubmissionID)
	}
	if submission.Status != models.SubmissionPending {
		return nil, NewValidationError(fmt.Sprintf("submission is already %s", submission.Status), nil)
	}

	status := models.SubmissionRejected
	hours := submission.HoursAwarded
	if req.Approved {
		status = models.SubmissionApproved
		if req.HoursOverride != nil {
			if req.HoursOverride.IsNegative() {
				return nil, NewValidationError("hours override cannot be negative", nil)
			}
			override := *req.HoursOverride
			hours = &override
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	review := &repositories.SubmissionReview{
		SubmissionID: submission.ID,
		Status:       status,
		ReviewerID:   req.Reviewer.UserID,
		ReviewedAt:   s.clock.Now(),
		Notes:        req.Notes,
		HoursAwarded: hours,
	}

	updated, err := s.submissionRepo.CompleteReview(ctx, review)
	if err != nil {
		return nil, storeError("complete review", err)
	}
	if !updated {
		return nil, NewValidationError("submission was reviewed concurrently", nil)
	}

	originalHours := submission.HoursAwarded
	submission.Status = review.Status
	submission.ReviewerID = &review.ReviewerID
	submission.ReviewedAt = &review.ReviewedAt
	submission.ReviewNotes = review.Notes
	submission.HoursAwarded = review.HoursAwarded

	s.logger.Info("Evidence reviewed",
		zap.Int64("submission_id", submission.ID),
		zap.String("status", string(submission.Status)),
		zap.Int64("reviewer_id", review.ReviewerID),
	)

	badgeName := s.badgeName(ctx, submission.BadgeID)

	if req.Approved {
		if err := s.creditTeacher(ctx, submission, req.Notes); err != nil {
			if s.reopen(ctx, review, originalHours) {
				return nil, err
			}
			// approval stands without its credit
			s.notifyReview(ctx, submission, badgeName, req.Approved)
			return nil, err
		}
	}

	s.notifyReview(ctx, submission, badgeName, req.Approved)
	return submission, nil
}

// reopen returns a submission to pending after its approval could not be credited
func (s *evidenceService) reopen(ctx context.Context, review *repositories.SubmissionReview, hours *decimal.Decimal) bool {
	reopened, err := s.submissionRepo.ReopenReview(context.WithoutCancel(ctx), review, hours)
	if err != nil || !reopened {
		s.logger.Error("Failed to reopen submission after credit failure",
			zap.Int64("submission_id", review.SubmissionID),
			zap.Bool("reopened", reopened),
			zap.Error(err),
		)
		return false
	}

	s.logger.Warn("Submission returned to pending after credit failure",
		zap.Int64("submission_id", review.SubmissionID),
	)
	return true
}

func (s *evidenceService) notifyReview(ctx context.Context, submission *models.EvidenceSubmission, badgeName string, approved bool) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyBadgeApproval(ctx, submission, badgeName, approved); err != nil {
		s.logger.Warn("Failed to send review notification",
			zap.Int64("submission_id", submission.ID),
			zap.Error(err),
		)
	}
}

// creditTeacher records the badge then accrues the CPD hours for an approved claim.
// The badge award is idempotent, so a retry after a failed hours insert credits once.
func (s *evidenceService) creditTeacher(ctx context.Context, submission *models.EvidenceSubmission, notes *string) error {
	ref := fmt.Sprintf("submission:%d", submission.ID)

	outcome, err := s.ledger.AwardBadge(ctx, &AwardRequest{
		UserID:    submission.TeacherID,
		BadgeID:   submission.BadgeID,
		Audience:  models.AudienceTeacher,
		SourceRef: &ref,
		Note:      notes,
	})
	if err != nil {
		s.logger.Error("Failed to award badge for approved submission",
			zap.Int64("submission_id", submission.ID),
			zap.Error(err),
		)
		return err
	}
	if outcome == BadgeNotFound {
		s.logger.Warn("Approved badge is no longer available",
			zap.Int64("submission_id", submission.ID),
			zap.Int64("badge_id", submission.BadgeID),
		)
	}

	if submission.HoursAwarded != nil && submission.HoursAwarded.IsPositive() {
		if _, err := s.ledger.AccrueHours(ctx, &HoursRequest{
			UserID:       submission.TeacherID,
			Audience:     models.AudienceTeacher,
			ActivityType: ActivityTypeCPDBadge,
			ActivityRef:  ref,
			Hours:        *submission.HoursAwarded,
		}); err != nil {
			s.logger.Error("Failed to accrue CPD hours for approved submission",
				zap.Int64("submission_id", submission.ID),
				zap.Error(err),
			)
			return err
		}
	}

	return nil
}

func (s *evidenceService) notifyAdmins(ctx context.Context, submission *models.EvidenceSubmission, badge *models.Badge) {
	if s.notifier == nil || s.directory == nil {
		return
	}

	admins, err := s.directory.AdminIDs(ctx)
	if err != nil {
		s.logger.Warn("Failed to resolve admins for submission notice", zap.Error(err))
		return
	}

	teacherName, err := s.directory.DisplayName(ctx, submission.TeacherID)
	if err != nil || teacherName == "" {
		teacherName = fmt.Sprintf("Teacher %d", submission.TeacherID)
	}

	for _, adminID := range admins {
		if err := s.notifier.NotifySubmission(ctx, adminID, submission, teacherName, badge.Name); err != nil {
			s.logger.Warn("Failed to notify admin of submission",
				zap.Int64("admin_id", adminID),
				zap.Int64("submission_id", submission.ID),
				zap.Error(err),
			)
		}
	}
}

func (s *evidenceService) badgeName(ctx context.Context, badgeID int64) string {
	badge, err := s.badgeRepo.GetByID(ctx, badgeID)
	if err != nil || badge == nil {
		return fmt.Sprintf("Badge %d", badgeID)
	}
	return badge.Name
}

func (s *evidenceService) GetSubmission(ctx context.Context, id int64) (*models.EvidenceSubmission, error) {
	submission, err := s.submissionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("look up submission", err)
	}
	if submission == nil {
		return nil, EntityNotFoundError("submission", id)
	}
	return submission, nil
}

func (s *evidenceService) ListPending(ctx context.Context, limit int) ([]*models.EvidenceSubmission, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	submissions, err := s.submissionRepo.ListPending(ctx, limit)
	if err != nil {
		return nil, storeError("list pending submissions", err)
	}
	return submissions, nil
}
