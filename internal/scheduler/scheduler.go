package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"engagehub/internal/config"
	"engagehub/internal/services"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// BonusScheduler runs the daily attendance bonus sweep
type BonusScheduler struct {
	cronEngine *cron.Cron
	attendance services.AttendanceBonusService
	logger     *zap.Logger
	spec       string
	timeout    time.Duration

	mu      sync.Mutex
	running bool
}

// SweepResult summarises one pass over the students with attendance
type SweepResult struct {
	Students      int
	Failed        int
	PointsAwarded int
	BadgesAwarded int
}

// NewBonusScheduler validates the cron spec and timezone up front
func NewBonusScheduler(attendance services.AttendanceBonusService, cfg config.SchedulerConfig, logger *zap.Logger) (*BonusScheduler, error) {
	if attendance == nil {
		return nil, fmt.Errorf("attendance bonus service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid scheduler timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}

	if _, err := cron.ParseStandard(cfg.BonusCron); err != nil {
		return nil, fmt.Errorf("invalid bonus cron spec %q: %w", cfg.BonusCron, err)
	}

	return &BonusScheduler{
		cronEngine: cron.New(cron.WithLocation(loc)),
		attendance: attendance,
		logger:     logger,
		spec:       cfg.BonusCron,
		timeout:    30 * time.Minute,
	}, nil
}

// Start registers the sweep job and starts the cron engine
func (s *BonusScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	_, err := s.cronEngine.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to add bonus sweep job: %w", err)
	}

	s.cronEngine.Start()
	s.running = true
	s.logger.Info("Attendance bonus scheduler started", zap.String("spec", s.spec))
	return nil
}

// Stop waits for a running sweep to finish or ctx to expire
func (s *BonusScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	done := s.cronEngine.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Attendance bonus scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// Sweep awards the bonus to every student with attendance in the window.
// A failure for one student is logged and does not stop the others.
func (s *BonusScheduler) Sweep(ctx context.Context) *SweepResult {
	start := time.Now()
	result := &SweepResult{}

	students, err := s.attendance.StudentsWithAttendance(ctx)
	if err != nil {
		s.logger.Error("Failed to list students for attendance bonus sweep", zap.Error(err))
		return result
	}
	result.Students = len(students)

	for i, studentID := range students {
		if ctx.Err() != nil {
			s.logger.Warn("Attendance bonus sweep interrupted",
				zap.Int("remaining", len(students)-i),
				zap.Error(ctx.Err()),
			)
			break
		}

		award, err := s.attendance.AwardAttendanceBonus(ctx, studentID)
		if err != nil {
			result.Failed++
			s.logger.Error("Attendance bonus failed for student",
				zap.Int64("student_id", studentID),
				zap.Error(err),
			)
			continue
		}
		result.PointsAwarded += award.PointsAwarded
		result.BadgesAwarded += len(award.BadgesAwarded)
	}

	s.logger.Info("Attendance bonus sweep completed",
		zap.Int("students", result.Students),
		zap.Int("failed", result.Failed),
		zap.Int("points_awarded", result.PointsAwarded),
		zap.Int("badges_awarded", result.BadgesAwarded),
		zap.Duration("duration", time.Since(start)),
	)
	return result
}
