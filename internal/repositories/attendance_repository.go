package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"engagehub/internal/database"
	"engagehub/internal/models"

	"go.uber.org/zap"
)

type attendanceRepository struct {
	*BaseRepository
}

func NewAttendanceRepository(db *database.Manager, logger *zap.Logger) AttendanceRepository {
	return &attendanceRepository{
		BaseRepository: NewBaseRepository(db, logger),
	}
}

// ListSince returns the student's records on or after since, newest first
func (r *attendanceRepository) ListSince(ctx context.Context, studentID int64, since time.Time) ([]*models.AttendanceRecord, error) {
	query := `
		SELECT id, student_id, class_id, date, status, marked_by, is_automatic
		FROM attendance_records
		WHERE student_id = $1 AND date >= $2
		ORDER BY date DESC`

	rows, err := r.QueryContext(ctx, query, studentID, since.UTC().Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance records: %w", err)
	}
	defer rows.Close()

	return collectRows(rows, func(rows *sql.Rows) (*models.AttendanceRecord, error) {
		var rec models.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.ClassID, &rec.Date, &rec.Status, &rec.MarkedBy, &rec.IsAutomatic); err != nil {
			return nil, err
		}
		rec.Date = rec.Date.UTC()
		return &rec, nil
	})
}

// ListStudentsSince returns the ids of students with any record on or after since
func (r *attendanceRepository) ListStudentsSince(ctx context.Context, since time.Time) ([]int64, error) {
	query := `
		SELECT DISTINCT student_id
		FROM attendance_records
		WHERE date >= $1
		ORDER BY student_id`

	rows, err := r.QueryContext(ctx, query, since.UTC().Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to list students with attendance: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan student id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return ids, nil
}
