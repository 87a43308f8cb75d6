package streaks

import (
	"fmt"
	"strings"
	"time"

	"engagehub/internal/models"
)

// Tier names double as the points ledger reason
type Tier string

const (
	TierWeekly  Tier = "attendance_weekly"
	TierMonthly Tier = "attendance_perfect_month"
	TierStreak  Tier = "attendance_streak"
)

// NoRecordsMessage is returned when there is nothing to evaluate
const NoRecordsMessage = "No attendance records found"

// Rules holds the tier thresholds and payouts
type Rules struct {
	WeeklyMinDays         int
	WeeklyPoints          int
	MonthlyMinDays        int
	MonthlyPoints         int
	StreakMinDays         int
	StreakPointsPerDay    int
	PerfectAttendanceCode string
}

func DefaultRules() Rules {
	return Rules{
		WeeklyMinDays:         5,
		WeeklyPoints:          50,
		MonthlyMinDays:        15,
		MonthlyPoints:         200,
		StreakMinDays:         10,
		StreakPointsPerDay:    5,
		PerfectAttendanceCode: "PERFECT_ATTENDANCE",
	}
}

// TierAward is one tier that fired. Period names the week, month or
// streak run the award belongs to, so each pays out once per period.
type TierAward struct {
	Tier   Tier
	Points int
	Period string
}

// Result is the outcome of one evaluation
type Result struct {
	Points         int
	Tiers          []TierAward
	UnlockedBadges []string // badge codes
	Messages       []string
	CurrentStreak  int
	LongestStreak  int
}

// Message joins the tier messages for display
func (r Result) Message() string {
	return strings.Join(r.Messages, " ")
}

// Evaluate applies every tier to records as of today. Tiers are additive.
func Evaluate(records []*models.AttendanceRecord, today time.Time, rules Rules) Result {
	today = Day(today)

	if len(records) == 0 {
		return Result{Messages: []string{NoRecordsMessage}}
	}

	attended := AttendedDates(records)
	streakStart, current := CurrentRun(attended, today)
	result := Result{
		CurrentStreak: current,
		LongestStreak: LongestStreak(attended),
	}

	if days := countBetween(attended, WeekStart(today), today); days >= rules.WeeklyMinDays {
		result.add(TierWeekly, rules.WeeklyPoints, WeekPeriod(today),
			fmt.Sprintf("Weekly attendance bonus: %d days this week (+%d points).", days, rules.WeeklyPoints))
	}

	if days, perfect := perfectMonth(records, today); perfect && days >= rules.MonthlyMinDays {
		result.add(TierMonthly, rules.MonthlyPoints, MonthPeriod(today),
			fmt.Sprintf("Perfect attendance this month: %d of %d days (+%d points).", days, days, rules.MonthlyPoints))
		result.UnlockedBadges = append(result.UnlockedBadges, rules.PerfectAttendanceCode)
	}

	if result.CurrentStreak >= rules.StreakMinDays {
		points := result.CurrentStreak * rules.StreakPointsPerDay
		result.add(TierStreak, points, StreakPeriod(streakStart),
			fmt.Sprintf("%d day attendance streak (+%d points).", result.CurrentStreak, points))
	}

	if len(result.Messages) == 0 {
		result.Messages = append(result.Messages, "No attendance bonus earned yet.")
	}

	return result
}

func (r *Result) add(tier Tier, points int, period, message string) {
	r.Points += points
	r.Tiers = append(r.Tiers, TierAward{Tier: tier, Points: points, Period: period})
	r.Messages = append(r.Messages, message)
}

// WeekPeriod identifies the week containing today
func WeekPeriod(today time.Time) string {
	return "week:" + WeekStart(today).Format(time.DateOnly)
}

// MonthPeriod identifies the calendar month containing today
func MonthPeriod(today time.Time) string {
	return "month:" + Day(today).Format("2006-01")
}

// StreakPeriod identifies a streak run by its first day
func StreakPeriod(start time.Time) string {
	return "streak:" + Day(start).Format(time.DateOnly)
}

func countBetween(dates []time.Time, from, to time.Time) int {
	n := 0
	for _, d := range dates {
		if !d.Before(from) && !d.After(to) {
			n++
		}
	}
	return n
}

// perfectMonth reports the recorded days so far this month and whether all were attended
func perfectMonth(records []*models.AttendanceRecord, today time.Time) (int, bool) {
	start := MonthStart(today)
	days := make(map[time.Time]bool)
	perfect := true

	for _, rec := range records {
		if rec == nil {
			continue
		}
		d := Day(rec.Date)
		if d.Before(start) || d.After(today) {
			continue
		}
		if !rec.Attended() {
			perfect = false
		}
		days[d] = true
	}

	return len(days), perfect && len(days) > 0
}
