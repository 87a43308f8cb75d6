package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"engagehub/internal/database"
	"engagehub/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type submissionRepository struct {
	*BaseRepository
}

func NewSubmissionRepository(db *database.Manager, logger *zap.Logger) SubmissionRepository {
	return &submissionRepository{
		BaseRepository: NewBaseRepository(db, logger),
	}
}

const submissionColumns = `id, teacher_id, badge_id, evidence_link, notes, submitted_at,
	status, reviewer_id, reviewed_at, review_notes, hours_awarded`

func scanSubmission(row interface{ Scan(...interface{}) error }) (*models.EvidenceSubmission, error) {
	var s models.EvidenceSubmission
	err := row.Scan(
		&s.ID, &s.TeacherID, &s.BadgeID, &s.EvidenceLink, &s.Notes, &s.SubmittedAt,
		&s.Status, &s.ReviewerID, &s.ReviewedAt, &s.ReviewNotes, &s.HoursAwarded,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.EvidenceSubmission) error {
	query := `
		INSERT INTO evidence_submissions (teacher_id, badge_id, evidence_link, notes, status, hours_awarded)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, submitted_at`

	err := r.QueryRowContext(ctx, query,
		submission.TeacherID, submission.BadgeID, submission.EvidenceLink,
		submission.Notes, submission.Status, submission.HoursAwarded,
	).Scan(&submission.ID, &submission.SubmittedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create submission: %w", err)
	}

	r.GetLogger().Info("Evidence submission created",
		zap.Int64("submission_id", submission.ID),
		zap.Int64("teacher_id", submission.TeacherID),
		zap.Int64("badge_id", submission.BadgeID),
	)
	return nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id int64) (*models.EvidenceSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM evidence_submissions WHERE id = $1`

	s, err := scanSubmission(r.QueryRowContext(ctx, query, id))
	if err != nil {
		if r.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get submission by ID: %w", err)
	}
	return s, nil
}

func (r *submissionRepository) GetActive(ctx context.Context, teacherID, badgeID int64) (*models.EvidenceSubmission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM evidence_submissions
		WHERE teacher_id = $1 AND badge_id = $2 AND status IN ('pending', 'approved')`

	s, err := scanSubmission(r.QueryRowContext(ctx, query, teacherID, badgeID))
	if err != nil {
		if r.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active submission: %w", err)
	}
	return s, nil
}

// CompleteReview is a compare-and-set on status = 'pending'
func (r *submissionRepository) CompleteReview(ctx context.Context, review *SubmissionReview) (bool, error) {
	query := `
		UPDATE evidence_submissions
		SET status = $2, reviewer_id = $3, reviewed_at = $4, review_notes = $5, hours_awarded = $6
		WHERE id = $1 AND status = 'pending'`

	result, err := r.ExecContext(ctx, query,
		review.SubmissionID, review.Status, review.ReviewerID,
		review.ReviewedAt, review.Notes, review.HoursAwarded,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete review: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read review result: %w", err)
	}
	return affected == 1, nil
}

func (r *submissionRepository) ReopenReview(ctx context.Context, review *SubmissionReview, hours *decimal.Decimal) (bool, error) {
	query := `
		UPDATE evidence_submissions
		SET status = 'pending', reviewer_id = NULL, reviewed_at = NULL, review_notes = NULL, hours_awarded = $4
		WHERE id = $1 AND status = $2 AND reviewer_id = $3`

	result, err := r.ExecContext(ctx, query,
		review.SubmissionID, review.Status, review.ReviewerID, hours,
	)
	if err != nil {
		return false, fmt.Errorf("failed to reopen review: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read reopen result: %w", err)
	}
	return affected == 1, nil
}

func (r *submissionRepository) ListPending(ctx context.Context, limit int) ([]*models.EvidenceSubmission, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT ` + submissionColumns + `
		FROM evidence_submissions
		WHERE status = 'pending'
		ORDER BY submitted_at
		LIMIT $1`

	rows, err := r.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending submissions: %w", err)
	}
	defer rows.Close()

	return collectRows(rows, func(rows *sql.Rows) (*models.EvidenceSubmission, error) { return scanSubmission(rows) })
}
