// file: internal/services/completion_service.go
package services

import (
	"context"
	"time"

	"engagehub/internal/cache"
	"engagehub/internal/events"
	"engagehub/internal/validation"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type completionService struct {
	bus      events.EventBus
	counters cache.Cache
	clock    Clock
	logger   *zap.Logger
}

// NewCompletionService creates the producer side of the completion router
func NewCompletionService(bus events.EventBus, counters cache.Cache, clock Clock, logger *zap.Logger) CompletionService {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &completionService{bus: bus, counters: counters, clock: clock, logger: logger}
}

func (s *completionService) build(req *CompletionRequest) (*events.CompletionEvent, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, NewValidationError("invalid completion event", err)
	}

	hours := decimal.Zero
	if req.HoursAwarded != nil {
		hours = *req.HoursAwarded
	}
	completedAt := s.clock.Now()
	if req.CompletedAt != nil {
		completedAt = req.CompletedAt.UTC()
	}

	event := events.NewCompletionEvent(req.EventType, req.UserID, req.IsTeacher, req.ActivityID, req.ActivityTitle, hours, req.BadgeID, completedAt)
	if err := event.Validate(); err != nil {
		return nil, NewValidationError(err.Error(), err)
	}
	return event, nil
}

// Publish queues the event for the consumer groups and returns once accepted
func (s *completionService) Publish(ctx context.Context, req *CompletionRequest) (*events.CompletionEvent, error) {
	event, err := s.build(req)
	if err != nil {
		return nil, err
	}

	if err := s.bus.PublishAsync(ctx, event); err != nil {
		return nil, NewInternalError("failed to queue completion event", err)
	}

	s.logger.Debug("Completion event queued",
		zap.String("event_id", event.GetEventID()),
		zap.String("event_type", event.GetEventType()),
		zap.Int64("user_id", event.Recipient()),
	)
	return event, nil
}

// Dispatch runs every consumer group inline and returns their outcomes.
// Group failures are reported, never returned as an error.
func (s *completionService) Dispatch(ctx context.Context, req *CompletionRequest) (*events.DispatchReport, error) {
	event, err := s.build(req)
	if err != nil {
		return nil, err
	}
	return s.bus.Dispatch(ctx, event), nil
}

func (s *completionService) Counts(ctx context.Context, userID int64, day time.Time) (*CompletionCounts, error) {
	key := day.UTC().Format(time.DateOnly)
	counts := &CompletionCounts{Day: key, ByType: make(map[string]int64, len(events.CompletionTypes))}

	if s.counters == nil {
		return counts, nil
	}

	for _, eventType := range events.CompletionTypes {
		n, err := s.counters.GetInt(ctx, typeCounterKey(eventType, key))
		if err != nil {
			return nil, NewInternalError("failed to read completion counters", err)
		}
		counts.ByType[eventType] = n
	}

	if userID > 0 {
		n, err := s.counters.GetInt(ctx, userCounterKey(userID, key))
		if err != nil {
			return nil, NewInternalError("failed to read completion counters", err)
		}
		counts.ForUser = n
	}

	return counts, nil
}
