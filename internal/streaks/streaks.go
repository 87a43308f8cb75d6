// Package streaks computes attendance streaks and tiered bonuses.
// Everything here is pure: callers load the records and commit the result.
// All dates are compared as UTC calendar days.
package streaks

import (
	"time"

	"engagehub/internal/models"

	"golang.org/x/exp/slices"
)

const day = 24 * time.Hour

// Day truncates t to its UTC calendar date
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AttendedDates returns the distinct days the records mark as attended, ascending
func AttendedDates(records []*models.AttendanceRecord) []time.Time {
	dates := make([]time.Time, 0, len(records))
	for _, rec := range records {
		if rec == nil || !rec.Attended() {
			continue
		}
		dates = append(dates, Day(rec.Date))
	}
	return normalize(dates)
}

func normalize(dates []time.Time) []time.Time {
	out := make([]time.Time, len(dates))
	for i, d := range dates {
		out[i] = Day(d)
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(out, func(a, b time.Time) bool { return a.Equal(b) })
}

// CurrentStreak counts consecutive days ending today or yesterday.
// Dates after today are ignored.
func CurrentStreak(dates []time.Time, today time.Time) int {
	_, streak := CurrentRun(dates, today)
	return streak
}

// CurrentRun returns the first day and length of the streak ending today or yesterday
func CurrentRun(dates []time.Time, today time.Time) (time.Time, int) {
	today = Day(today)
	sorted := normalize(dates)

	// walk newest to oldest
	i := len(sorted) - 1
	for i >= 0 && sorted[i].After(today) {
		i--
	}
	if i < 0 {
		return time.Time{}, 0
	}

	anchor := sorted[i]
	if !anchor.Equal(today) && !anchor.Equal(today.Add(-day)) {
		return time.Time{}, 0
	}

	start, streak := anchor, 1
	expected := anchor.Add(-day)
	for i--; i >= 0; i-- {
		if !sorted[i].Equal(expected) {
			break
		}
		start = sorted[i]
		streak++
		expected = expected.Add(-day)
	}
	return start, streak
}

// LongestStreak returns the longest run of consecutive days in dates
func LongestStreak(dates []time.Time) int {
	sorted := normalize(dates)
	if len(sorted) == 0 {
		return 0
	}

	longest, run := 1, 1
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Sub(sorted[i-1]) == day {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// WeekStart returns the Sunday that opens today's week
func WeekStart(today time.Time) time.Time {
	today = Day(today)
	return today.Add(-time.Duration(today.Weekday()) * day)
}

// MonthStart returns the first day of today's month
func MonthStart(today time.Time) time.Time {
	y, m, _ := Day(today).Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
