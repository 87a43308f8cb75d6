package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"engagehub/internal/database"
	"engagehub/internal/models"

	"go.uber.org/zap"
)

type badgeRepository struct {
	*BaseRepository
}

func NewBadgeRepository(db *database.Manager, logger *zap.Logger) BadgeRepository {
	return &badgeRepository{
		BaseRepository: NewBaseRepository(db, logger),
	}
}

const badgeColumns = `id, code, name, description, icon_url, audience, hours, is_active, created_at`

func scanBadge(row interface{ Scan(...interface{}) error }) (*models.Badge, error) {
	var badge models.Badge
	err := row.Scan(
		&badge.ID, &badge.Code, &badge.Name, &badge.Description,
		&badge.IconURL, &badge.Audience, &badge.Hours, &badge.IsActive, &badge.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &badge, nil
}

func (r *badgeRepository) Create(ctx context.Context, badge *models.Badge) error {
	query := `
		INSERT INTO badges (code, name, description, icon_url, audience, hours, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.QueryRowContext(ctx, query,
		badge.Code, badge.Name, badge.Description, badge.IconURL,
		badge.Audience, badge.Hours, badge.IsActive,
	).Scan(&badge.ID, &badge.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create badge: %w", err)
	}

	r.GetLogger().Info("Badge created",
		zap.Int64("badge_id", badge.ID),
		zap.String("code", badge.Code),
	)
	return nil
}

func (r *badgeRepository) GetByID(ctx context.Context, id int64) (*models.Badge, error) {
	query := `SELECT ` + badgeColumns + ` FROM badges WHERE id = $1`

	badge, err := scanBadge(r.QueryRowContext(ctx, query, id))
	if err != nil {
		if r.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get badge by ID: %w", err)
	}
	return badge, nil
}

func (r *badgeRepository) GetByCode(ctx context.Context, code string) (*models.Badge, error) {
	query := `SELECT ` + badgeColumns + ` FROM badges WHERE code = $1`

	badge, err := scanBadge(r.QueryRowContext(ctx, query, code))
	if err != nil {
		if r.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get badge by code: %w", err)
	}
	return badge, nil
}

// ListActive returns active badges available to audience, including "both" badges
func (r *badgeRepository) ListActive(ctx context.Context, audience models.Audience) ([]*models.Badge, error) {
	query := `
		SELECT ` + badgeColumns + `
		FROM badges
		WHERE is_active = true AND (audience = $1 OR audience = 'both')
		ORDER BY name`

	rows, err := r.QueryContext(ctx, query, audience)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	defer rows.Close()

	return collectRows(rows, func(rows *sql.Rows) (*models.Badge, error) { return scanBadge(rows) })
}

// collectRows scans every row with scan and checks the iteration error
func collectRows[T any](rows *sql.Rows, scan func(*sql.Rows) (*T, error)) ([]*T, error) {
	var items []*T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return items, nil
}
