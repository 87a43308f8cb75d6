package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"engagehub/internal/config"
	"engagehub/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeAttendance struct {
	students []int64
	listErr  error
	failFor  map[int64]bool
	awarded  []int64
	cancel   context.CancelFunc
}

func (f *fakeAttendance) CalculateAttendanceBonus(ctx context.Context, studentID int64) (*services.AttendanceBonus, error) {
	return &services.AttendanceBonus{StudentID: studentID}, nil
}

func (f *fakeAttendance) AwardAttendanceBonus(ctx context.Context, studentID int64) (*services.AttendanceBonusAward, error) {
	if f.cancel != nil {
		f.cancel()
	}
	if f.failFor[studentID] {
		return nil, errors.New("ledger unavailable")
	}
	f.awarded = append(f.awarded, studentID)
	return &services.AttendanceBonusAward{StudentID: studentID, PointsAwarded: 50, BadgesAwarded: []int64{1}}, nil
}

func (f *fakeAttendance) GetStreaks(ctx context.Context, studentID int64) (*services.StreakSummary, error) {
	return &services.StreakSummary{StudentID: studentID}, nil
}

func (f *fakeAttendance) StudentsWithAttendance(ctx context.Context) ([]int64, error) {
	return f.students, f.listErr
}

func schedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{Enabled: true, BonusCron: "0 18 * * *", Timezone: "UTC"}
}

func TestSweep_ContinuesPastFailures(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	fake := &fakeAttendance{students: []int64{7, 8, 9}, failFor: map[int64]bool{8: true}}

	s, err := NewBonusScheduler(fake, schedulerConfig(), zap.New(core))
	require.NoError(t, err)

	result := s.Sweep(context.Background())

	assert.Equal(t, []int64{7, 9}, fake.awarded)
	assert.Equal(t, &SweepResult{Students: 3, Failed: 1, PointsAwarded: 100, BadgesAwarded: 2}, result)

	failures := logs.FilterMessage("Attendance bonus failed for student").All()
	require.Len(t, failures, 1)
	assert.Equal(t, int64(8), failures[0].ContextMap()["student_id"])
}

func TestSweep_ListFailure(t *testing.T) {
	fake := &fakeAttendance{listErr: errors.New("db down")}
	s, err := NewBonusScheduler(fake, schedulerConfig(), nil)
	require.NoError(t, err)

	result := s.Sweep(context.Background())
	assert.Zero(t, result.Students)
	assert.Empty(t, fake.awarded)
}

func TestSweep_StopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fake := &fakeAttendance{students: []int64{7, 8, 9}, cancel: cancel}
	s, err := NewBonusScheduler(fake, schedulerConfig(), nil)
	require.NoError(t, err)

	s.Sweep(ctx)
	assert.Equal(t, []int64{7}, fake.awarded)
}

func TestNewBonusScheduler_Validates(t *testing.T) {
	cfg := schedulerConfig()
	cfg.BonusCron = "every evening"
	_, err := NewBonusScheduler(&fakeAttendance{}, cfg, nil)
	assert.Error(t, err)

	cfg = schedulerConfig()
	cfg.Timezone = "Mars/Olympus"
	_, err = NewBonusScheduler(&fakeAttendance{}, cfg, nil)
	assert.Error(t, err)

	_, err = NewBonusScheduler(nil, schedulerConfig(), nil)
	assert.Error(t, err)
}

func TestBonusScheduler_StartStop(t *testing.T) {
	s, err := NewBonusScheduler(&fakeAttendance{}, schedulerConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	assert.Len(t, s.cronEngine.Entries(), 1, "second start does not add another job")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}
