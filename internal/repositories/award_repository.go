package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"engagehub/internal/database"
	"engagehub/internal/models"

	"go.uber.org/zap"
)

type awardRepository struct {
	*BaseRepository
}

func NewAwardRepository(db *database.Manager, logger *zap.Logger) AwardRepository {
	return &awardRepository{
		BaseRepository: NewBaseRepository(db, logger),
	}
}

const awardColumns = `id, user_id, badge_id, audience, status, source_ref, note, awarded_at`

func scanAward(row interface{ Scan(...interface{}) error }) (*models.Award, error) {
	var award models.Award
	err := row.Scan(
		&award.ID, &award.UserID, &award.BadgeID, &award.Audience,
		&award.Status, &award.SourceRef, &award.Note, &award.AwardedAt,
	)
	if err != nil {
		return nil, err
	}
	return &award, nil
}

func (r *awardRepository) GetActive(ctx context.Context, userID, badgeID int64, audience models.Audience) (*models.Award, error) {
	query := `
		SELECT ` + awardColumns + `
		FROM awards
		WHERE user_id = $1 AND badge_id = $2 AND audience = $3 AND status <> 'rejected'`

	award, err := scanAward(r.QueryRowContext(ctx, query, userID, badgeID, audience))
	if err != nil {
		if r.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get award: %w", err)
	}
	return award, nil
}

// CreateIfAbsent relies on the partial unique index over live awards.
// A conflicting insert returns no row, which means someone else got there first.
func (r *awardRepository) CreateIfAbsent(ctx context.Context, award *models.Award) (bool, error) {
	query := `
		INSERT INTO awards (user_id, badge_id, audience, status, source_ref, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, badge_id, audience) WHERE status <> 'rejected' DO NOTHING
		RETURNING id, awarded_at`

	err := r.QueryRowContext(ctx, query,
		award.UserID, award.BadgeID, award.Audience,
		award.Status, award.SourceRef, award.Note,
	).Scan(&award.ID, &award.AwardedAt)
	if err != nil {
		if r.IsNotFound(err) {
			return false, nil
		}
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create award: %w", err)
	}

	return true, nil
}

func (r *awardRepository) ListByUser(ctx context.Context, userID int64, audience models.Audience) ([]*models.Award, error) {
	query := `
		SELECT ` + awardColumns + `
		FROM awards
		WHERE user_id = $1 AND audience = $2
		ORDER BY awarded_at DESC`

	rows, err := r.QueryContext(ctx, query, userID, audience)
	if err != nil {
		return nil, fmt.Errorf("failed to list awards: %w", err)
	}
	defer rows.Close()

	return collectRows(rows, func(rows *sql.Rows) (*models.Award, error) { return scanAward(rows) })
}
