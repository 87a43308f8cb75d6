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

type ledgerRepository struct {
	*BaseRepository
}

func NewLedgerRepository(db *database.Manager, logger *zap.Logger) LedgerRepository {
	return &ledgerRepository{
		BaseRepository: NewBaseRepository(db, logger),
	}
}

// ===============================
// HOURS
// ===============================

func (r *ledgerRepository) InsertHours(ctx context.Context, entry *models.HoursEntry) error {
	query := `
		INSERT INTO hours_entries (user_id, audience, activity_type, activity_ref, hours)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, accrued_at`

	err := r.QueryRowContext(ctx, query,
		entry.UserID, entry.Audience, entry.ActivityType, entry.ActivityRef, entry.Hours,
	).Scan(&entry.ID, &entry.AccruedAt)
	if err != nil {
		return fmt.Errorf("failed to insert hours entry: %w", err)
	}
	return nil
}

func (r *ledgerRepository) ListHours(ctx context.Context, userID int64, audience models.Audience) ([]*models.HoursEntry, error) {
	query := `
		SELECT id, user_id, audience, activity_type, activity_ref, hours, accrued_at
		FROM hours_entries
		WHERE user_id = $1 AND audience = $2
		ORDER BY accrued_at DESC`

	rows, err := r.QueryContext(ctx, query, userID, audience)
	if err != nil {
		return nil, fmt.Errorf("failed to list hours entries: %w", err)
	}
	defer rows.Close()

	return collectRows(rows, func(rows *sql.Rows) (*models.HoursEntry, error) {
		var e models.HoursEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Audience, &e.ActivityType, &e.ActivityRef, &e.Hours, &e.AccruedAt); err != nil {
			return nil, err
		}
		return &e, nil
	})
}

func (r *ledgerRepository) SumHours(ctx context.Context, userID int64, audience models.Audience) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(hours), 0) FROM hours_entries WHERE user_id = $1 AND audience = $2`

	var total decimal.Decimal
	if err := r.QueryRowContext(ctx, query, userID, audience).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum hours: %w", err)
	}
	return total, nil
}

// ===============================
// POINTS
// ===============================

func (r *ledgerRepository) InsertPointsIfAbsent(ctx context.Context, entry *models.PointsEntry) (bool, error) {
	query := `
		INSERT INTO points_entries (user_id, reason, source_ref, points)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, reason, source_ref) DO NOTHING
		RETURNING id, accrued_at`

	err := r.QueryRowContext(ctx, query,
		entry.UserID, entry.Reason, entry.SourceRef, entry.Points,
	).Scan(&entry.ID, &entry.AccruedAt)
	if err != nil {
		if r.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert points entry: %w", err)
	}
	return true, nil
}

func (r *ledgerRepository) SumPoints(ctx context.Context, userID int64) (int64, error) {
	query := `SELECT COALESCE(SUM(points), 0) FROM points_entries WHERE user_id = $1`

	var total int64
	if err := r.QueryRowContext(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum points: %w", err)
	}
	return total, nil
}
