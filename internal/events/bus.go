package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ===============================
// EVENT BUS INTERFACE
// ===============================

// EventBus fans each event out to every consumer group subscribed to its type.
// Groups run concurrently, retry on their own and never fail the producer.
type EventBus interface {
	Subscribe(eventType string, handler EventHandler) error
	Unsubscribe(eventType, handlerID string) error

	// Dispatch runs every group for the event and waits for them
	Dispatch(ctx context.Context, event Event) *DispatchReport
	// PublishAsync queues the event for the worker pool
	PublishAsync(ctx context.Context, event Event) error

	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health() error
	Stats() *EventBusStats
	DeadLetters() []DeadLetter
}

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// GroupOutcome is the result of one consumer group for one event
type GroupOutcome struct {
	HandlerID string        `json:"handler_id"`
	Attempts  int           `json:"attempts"`
	Duration  time.Duration `json:"duration"`
	Panicked  bool          `json:"panicked"`
	Err       error         `json:"-"`
}

func (o GroupOutcome) Succeeded() bool {
	return o.Err == nil
}

// DispatchReport summarizes one dispatch for logging and tests
type DispatchReport struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	Outcomes  []GroupOutcome `json:"outcomes"`
}

// Failed returns the ids of groups that gave up
func (r *DispatchReport) Failed() []string {
	var ids []string
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			ids = append(ids, o.HandlerID)
		}
	}
	return ids
}

// Err combines every group failure, nil when all groups succeeded
func (r *DispatchReport) Err() error {
	var err error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", o.HandlerID, o.Err))
		}
	}
	return err
}

// Outcome returns the outcome for handlerID
func (r *DispatchReport) Outcome(handlerID string) (GroupOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.HandlerID == handlerID {
			return o, true
		}
	}
	return GroupOutcome{}, false
}

// DeadLetter records a group that exhausted its retries
type DeadLetter struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	HandlerID string    `json:"handler_id"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error"`
	FailedAt  time.Time `json:"failed_at"`
}

// EventBusStats represents event bus statistics
type EventBusStats struct {
	EventsPublished    int64         `json:"events_published"`
	EventsProcessed    int64         `json:"events_processed"`
	GroupFailures      int64         `json:"group_failures"`
	GroupRetries       int64         `json:"group_retries"`
	GroupPanics        int64         `json:"group_panics"`
	HandlersCount      int           `json:"handlers_count"`
	QueueDepth         int           `json:"queue_depth"`
	AverageProcessTime time.Duration `json:"average_process_time"`
	Uptime             time.Duration `json:"uptime"`
}

// EventBusConfig holds configuration for the event bus
type EventBusConfig struct {
	BufferSize     int
	WorkerCount    int
	HandlerTimeout time.Duration
	// RetryAttempts is the number of retries after the first attempt
	RetryAttempts      int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	DeadLetterCapacity int
}

func DefaultEventBusConfig() *EventBusConfig {
	return &EventBusConfig{
		BufferSize:         1000,
		WorkerCount:        4,
		HandlerTimeout:     30 * time.Second,
		RetryAttempts:      3,
		RetryBaseDelay:     200 * time.Millisecond,
		RetryMaxDelay:      5 * time.Second,
		DeadLetterCapacity: 100,
	}
}

// ===============================
// IN-MEMORY EVENT BUS
// ===============================

type inMemoryEventBus struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
	config   EventBusConfig
	logger   *zap.Logger

	eventQueue chan eventMessage
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	started    int32
	stopped    int32
	startTime  time.Time

	eventsPublished int64
	eventsProcessed int64
	groupFailures   int64
	groupRetries    int64
	groupPanics     int64

	statsMu            sync.Mutex
	processingTimes    []time.Duration
	maxProcessingTimes int

	deadMu      sync.Mutex
	deadLetters []DeadLetter
}

type eventMessage struct {
	ctx   context.Context
	event Event
}

// panicError carries a recovered panic out of a handler
type panicError struct {
	value interface{}
}

func (p *panicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", p.value)
}

func NewInMemoryEventBus(config *EventBusConfig, logger *zap.Logger) EventBus {
	if config == nil {
		config = DefaultEventBusConfig()
	}
	cfg := *config
	defaults := DefaultEventBusConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaults.BufferSize
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = defaults.WorkerCount
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = defaults.HandlerTimeout
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaults.RetryBaseDelay
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		cfg.RetryMaxDelay = cfg.RetryBaseDelay
	}
	if cfg.DeadLetterCapacity <= 0 {
		cfg.DeadLetterCapacity = defaults.DeadLetterCapacity
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &inMemoryEventBus{
		handlers:           make(map[string][]EventHandler),
		config:             cfg,
		logger:             logger,
		eventQueue:         make(chan eventMessage, cfg.BufferSize),
		ctx:                ctx,
		cancel:             cancel,
		startTime:          time.Now(),
		processingTimes:    make([]time.Duration, 0, 100),
		maxProcessingTimes: 100,
	}
}

func (b *inMemoryEventBus) Subscribe(eventType string, handler EventHandler) error {
	if eventType == "" {
		return fmt.Errorf("event type cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, h := range b.handlers[eventType] {
		if h.GetHandlerID() == handler.GetHandlerID() {
			return fmt.Errorf("handler %s already subscribed to %s", handler.GetHandlerID(), eventType)
		}
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)

	b.logger.Info("Handler subscribed",
		zap.String("event_type", eventType),
		zap.String("handler_id", handler.GetHandlerID()),
	)
	return nil
}

func (b *inMemoryEventBus) Unsubscribe(eventType, handlerID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := b.handlers[eventType]
	for i, h := range handlers {
		if h.GetHandlerID() == handlerID {
			b.handlers[eventType] = append(handlers[:i:i], handlers[i+1:]...)
			b.logger.Info("Handler unsubscribed",
				zap.String("event_type", eventType),
				zap.String("handler_id", handlerID),
			)
			return nil
		}
	}

	return fmt.Errorf("handler not found")
}

func (b *inMemoryEventBus) handlersFor(eventType string) []EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	handlers := make([]EventHandler, len(b.handlers[eventType]))
	copy(handlers, b.handlers[eventType])
	return handlers
}

// Dispatch runs each group in its own goroutine with its own recovery and retry loop
func (b *inMemoryEventBus) Dispatch(ctx context.Context, event Event) *DispatchReport {
	if event == nil {
		return &DispatchReport{}
	}

	report := &DispatchReport{
		EventID:   event.GetEventID(),
		EventType: event.GetEventType(),
	}

	handlers := b.handlersFor(event.GetEventType())
	if len(handlers) == 0 {
		b.logger.Debug("No handlers found for event",
			zap.String("event_type", event.GetEventType()),
			zap.String("event_id", event.GetEventID()),
		)
		return report
	}

	start := time.Now()
	report.Outcomes = make([]GroupOutcome, len(handlers))

	var wg sync.WaitGroup
	for i, handler := range handlers {
		wg.Add(1)
		go func(i int, handler EventHandler) {
			defer wg.Done()
			report.Outcomes[i] = b.runGroup(ctx, handler, event)
		}(i, handler)
	}
	wg.Wait()

	atomic.AddInt64(&b.eventsProcessed, 1)
	b.recordProcessingTime(time.Since(start))

	for _, outcome := range report.Outcomes {
		if outcome.Succeeded() {
			continue
		}
		atomic.AddInt64(&b.groupFailures, 1)
		b.addDeadLetter(event, outcome)
		b.logger.Error("Consumer group failed",
			zap.String("event_id", event.GetEventID()),
			zap.String("event_type", event.GetEventType()),
			zap.String("handler_id", outcome.HandlerID),
			zap.Int("attempts", outcome.Attempts),
			zap.Bool("panicked", outcome.Panicked),
			zap.Error(outcome.Err),
		)
	}

	return report
}

func (b *inMemoryEventBus) runGroup(ctx context.Context, handler EventHandler, event Event) GroupOutcome {
	outcome := GroupOutcome{HandlerID: handler.GetHandlerID()}
	start := time.Now()

	operation := func() error {
		outcome.Attempts++
		err := b.executeHandler(ctx, handler, event)

		var p *panicError
		if errors.As(err, &p) {
			outcome.Panicked = true
			atomic.AddInt64(&b.groupPanics, 1)
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		atomic.AddInt64(&b.groupRetries, 1)
		b.logger.Warn("Consumer group failed, retrying",
			zap.String("event_id", event.GetEventID()),
			zap.String("handler_id", handler.GetHandlerID()),
			zap.Int("attempt", outcome.Attempts),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	}

	outcome.Err = backoff.RetryNotify(operation, b.retryPolicy(ctx), notify)
	outcome.Duration = time.Since(start)
	return outcome
}

func (b *inMemoryEventBus) retryPolicy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = b.config.RetryBaseDelay
	exp.MaxInterval = b.config.RetryMaxDelay
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(b.config.RetryAttempts)), ctx)
}

// executeHandler executes a single attempt with timeout and recovery
func (b *inMemoryEventBus) executeHandler(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Handler panicked",
				zap.String("handler_id", handler.GetHandlerID()),
				zap.String("event_type", event.GetEventType()),
				zap.Any("panic", r),
			)
			err = &panicError{value: r}
		}
	}()

	handlerCtx, cancel := context.WithTimeout(ctx, b.config.HandlerTimeout)
	defer cancel()

	return handler.Handle(handlerCtx, event)
}

// PublishAsync queues the event. The producer's cancellation does not reach the groups.
func (b *inMemoryEventBus) PublishAsync(ctx context.Context, event Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if atomic.LoadInt32(&b.stopped) == 1 {
		return fmt.Errorf("event bus is stopped")
	}

	select {
	case b.eventQueue <- eventMessage{ctx: context.WithoutCancel(ctx), event: event}:
		atomic.AddInt64(&b.eventsPublished, 1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("event queue is full")
	}
}

func (b *inMemoryEventBus) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&b.started, 0, 1) {
		return fmt.Errorf("event bus already started")
	}

	b.logger.Info("Starting event bus", zap.Int("worker_count", b.config.WorkerCount))

	for i := 0; i < b.config.WorkerCount; i++ {
		b.wg.Add(1)
		go b.worker(i)
	}

	return nil
}

// Stop lets workers drain the queue, bounded by ctx
func (b *inMemoryEventBus) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&b.stopped, 0, 1) {
		return nil
	}

	b.logger.Info("Stopping event bus", zap.Int("queued", len(b.eventQueue)))
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("Event bus stopped successfully")
	case <-ctx.Done():
		b.logger.Warn("Event bus stop timeout", zap.Int("abandoned", len(b.eventQueue)))
		return ctx.Err()
	}

	return nil
}

func (b *inMemoryEventBus) Health() error {
	if atomic.LoadInt32(&b.stopped) == 1 {
		return fmt.Errorf("event bus is stopped")
	}

	queueDepth := len(b.eventQueue)
	if queueDepth > b.config.BufferSize*80/100 {
		return fmt.Errorf("event queue is %d%% full", queueDepth*100/b.config.BufferSize)
	}

	return nil
}

func (b *inMemoryEventBus) Stats() *EventBusStats {
	b.mu.RLock()
	handlers := 0
	for _, hs := range b.handlers {
		handlers += len(hs)
	}
	b.mu.RUnlock()

	stats := &EventBusStats{
		EventsPublished: atomic.LoadInt64(&b.eventsPublished),
		EventsProcessed: atomic.LoadInt64(&b.eventsProcessed),
		GroupFailures:   atomic.LoadInt64(&b.groupFailures),
		GroupRetries:    atomic.LoadInt64(&b.groupRetries),
		GroupPanics:     atomic.LoadInt64(&b.groupPanics),
		HandlersCount:   handlers,
		QueueDepth:      len(b.eventQueue),
		Uptime:          time.Since(b.startTime),
	}

	b.statsMu.Lock()
	if len(b.processingTimes) > 0 {
		var total time.Duration
		for _, t := range b.processingTimes {
			total += t
		}
		stats.AverageProcessTime = total / time.Duration(len(b.processingTimes))
	}
	b.statsMu.Unlock()

	return stats
}

// DeadLetters returns the most recent exhausted deliveries, oldest first
func (b *inMemoryEventBus) DeadLetters() []DeadLetter {
	b.deadMu.Lock()
	defer b.deadMu.Unlock()

	out := make([]DeadLetter, len(b.deadLetters))
	copy(out, b.deadLetters)
	return out
}

func (b *inMemoryEventBus) addDeadLetter(event Event, outcome GroupOutcome) {
	b.deadMu.Lock()
	defer b.deadMu.Unlock()

	b.deadLetters = append(b.deadLetters, DeadLetter{
		EventID:   event.GetEventID(),
		EventType: event.GetEventType(),
		HandlerID: outcome.HandlerID,
		Attempts:  outcome.Attempts,
		Error:     outcome.Err.Error(),
		FailedAt:  time.Now(),
	})
	if over := len(b.deadLetters) - b.config.DeadLetterCapacity; over > 0 {
		b.deadLetters = b.deadLetters[over:]
	}
}

func (b *inMemoryEventBus) worker(workerID int) {
	defer b.wg.Done()

	b.logger.Debug("Event bus worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case msg := <-b.eventQueue:
			b.Dispatch(msg.ctx, msg.event)
		case <-b.ctx.Done():
			// drain what was accepted before Stop
			for {
				select {
				case msg := <-b.eventQueue:
					b.Dispatch(msg.ctx, msg.event)
				default:
					b.logger.Debug("Event bus worker stopped", zap.Int("worker_id", workerID))
					return
				}
			}
		}
	}
}

func (b *inMemoryEventBus) recordProcessingTime(duration time.Duration) {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()

	b.processingTimes = append(b.processingTimes, duration)
	if len(b.processingTimes) > b.maxProcessingTimes {
		b.processingTimes = b.processingTimes[1:]
	}
}
