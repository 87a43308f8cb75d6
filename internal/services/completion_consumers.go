// ===============================
// FILE: internal/services/completion_consumers.go
// ===============================

package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"engagehub/internal/cache"
	"engagehub/internal/events"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Consumer group ids
const (
	GroupRewardAccrual = "reward-accrual"
	GroupNotification  = "notification"
	GroupAnalytics     = "analytics"
)

// CompletionConsumers holds the collaborators of the completion consumer groups
type CompletionConsumers struct {
	ledger     LedgerService
	notifier   Notifier
	counters   cache.Cache
	counterTTL time.Duration
	logger     *zap.Logger
}

// NewCompletionConsumers creates the consumer groups. Any collaborator may be nil
// and its group is then skipped at registration.
func NewCompletionConsumers(ledger LedgerService, notifier Notifier, counters cache.Cache, counterTTL time.Duration, logger *zap.Logger) *CompletionConsumers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if counterTTL <= 0 {
		counterTTL = 48 * time.Hour
	}
	return &CompletionConsumers{
		ledger:     ledger,
		notifier:   notifier,
		counters:   counters,
		counterTTL: counterTTL,
		logger:     logger,
	}
}

// Handlers returns one handler per configured group
func (c *CompletionConsumers) Handlers() []events.EventHandler {
	var handlers []events.EventHandler
	if c.ledger != nil {
		handlers = append(handlers, events.NewTypedEventHandler(GroupRewardAccrual, c.accrueRewards))
	}
	if c.notifier != nil {
		handlers = append(handlers, events.NewTypedEventHandler(GroupNotification, c.notify))
	}
	if c.counters != nil {
		handlers = append(handlers, events.NewTypedEventHandler(GroupAnalytics, c.count))
	}
	return handlers
}

// Register subscribes every group to every completion event type
func (c *CompletionConsumers) Register(bus events.EventBus) error {
	for _, handler := range c.Handlers() {
		for _, eventType := range events.CompletionTypes {
			if err := bus.Subscribe(eventType, handler); err != nil {
				return fmt.Errorf("subscribe %s to %s: %w", handler.GetHandlerID(), eventType, err)
			}
		}
	}
	return nil
}

// accrueRewards awards the optional badge then the student's learning hours.
// The badge goes first so a retry after a failed hours write does not double count.
func (c *CompletionConsumers) accrueRewards(ctx context.Context, event *events.CompletionEvent) error {
	if err := event.Validate(); err != nil {
		return events.Permanent(err)
	}

	userID := event.Recipient()
	ref := strconv.FormatInt(event.ActivityID, 10)

	if event.BadgeID != nil {
		sourceRef := fmt.Sprintf("%s:%d", event.ActivityKind(), event.ActivityID)
		outcome, err := c.ledger.AwardBadge(ctx, &AwardRequest{
			UserID:    userID,
			BadgeID:   *event.BadgeID,
			Audience:  event.Audience(),
			SourceRef: &sourceRef,
		})
		if err != nil {
			return retryable(err)
		}
		c.logger.Debug("Completion badge processed",
			zap.String("event_id", event.GetEventID()),
			zap.Int64("user_id", userID),
			zap.Int64("badge_id", *event.BadgeID),
			zap.String("outcome", outcome.String()),
		)
	}

	if event.IsTeacher {
		if event.HoursAwarded.IsPositive() {
			c.logger.Info("Teacher completion hours left to evidence review",
				zap.String("event_id", event.GetEventID()),
				zap.Int64("user_id", userID),
				zap.String("hours", event.HoursAwarded.String()),
			)
		}
		return nil
	}

	if !event.HoursAwarded.GreaterThan(decimal.Zero) {
		return nil
	}

	_, err := c.ledger.AccrueHours(ctx, &HoursRequest{
		UserID:       userID,
		Audience:     event.Audience(),
		ActivityType: event.ActivityKind(),
		ActivityRef:  ref,
		Hours:        event.HoursAwarded,
	})
	return retryable(err)
}

func (c *CompletionConsumers) notify(ctx context.Context, event *events.CompletionEvent) error {
	if event.Recipient() <= 0 {
		return events.Permanent(fmt.Errorf("completion event %s has no user", event.GetEventID()))
	}
	return c.notifier.NotifyCompletion(ctx, event.Recipient(), event.ActivityKind(), event.ActivityTitle)
}

func (c *CompletionConsumers) count(ctx context.Context, event *events.CompletionEvent) error {
	day := event.CompletedAt.UTC().Format(time.DateOnly)

	keys := []string{
		typeCounterKey(event.GetEventType(), day),
		userCounterKey(event.Recipient(), day),
	}
	_, err := c.counters.IncrementAll(ctx, keys, 1, c.counterTTL)
	return err
}

func typeCounterKey(eventType, day string) string {
	return fmt.Sprintf("completions:%s:%s", eventType, day)
}

func userCounterKey(userID int64, day string) string {
	return fmt.Sprintf("completions:user:%d:%s", userID, day)
}

// retryable stops retries for errors a second attempt cannot fix
func retryable(err error) error {
	if err == nil {
		return nil
	}
	if IsValidationError(err) || IsNotFoundError(err) || IsUnauthorizedError(err) {
		return events.Permanent(err)
	}
	return err
}
