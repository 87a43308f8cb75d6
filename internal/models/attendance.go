package models

import "time"

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceExcused AttendanceStatus = "excused"
)

// AttendanceRecord is one student's attendance for one class on one day.
// Date is a calendar date held at UTC midnight.
type AttendanceRecord struct {
	ID          int64            `json:"id" db:"id"`
	StudentID   int64            `json:"student_id" db:"student_id"`
	ClassID     int64            `json:"class_id" db:"class_id"`
	Date        time.Time        `json:"date" db:"date"`
	Status      AttendanceStatus `json:"status" db:"status"`
	MarkedBy    *int64           `json:"marked_by,omitempty" db:"marked_by"`
	IsAutomatic bool             `json:"is_automatic" db:"is_automatic"`
}

// Attended is true for present, late and excused
func (r AttendanceRecord) Attended() bool {
	switch r.Status {
	case AttendancePresent, AttendanceLate, AttendanceExcused:
		return true
	}
	return false
}
