package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xequation/xequation/pkg/equation"
)

// Event is a telemetry event republished from the equation manager or
// raised by the CLI.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`

	Workbook string `json:"workbook,omitempty"`
	GroupID  string `json:"group_id,omitempty"`
	Equation string `json:"equation,omitempty"`

	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	Data map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeEquationAdded     = "equation.added"
	EventTypeEquationRemoved   = "equation.removed"
	EventTypeEquationUpdated   = "equation.updated"
	EventTypeEquationFailed    = "equation.failed"
	EventTypeGroupAdded        = "group.added"
	EventTypeGroupRemoved      = "group.removed"
	EventTypeGroupUpdated      = "group.updated"
	EventTypeWorkbookCompleted = "workbook.completed"
	EventTypeWorkbookFailed    = "workbook.failed"
	EventTypePolicyViolation   = "policy.violation"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be delivered.
type EventFilter func(event Event) bool

// EventPublisher delivers events to subscribers, from a background
// goroutine when EnableAsync is set.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	now         func() time.Time
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	ep := &EventPublisher{
		config: cfg,
		buffer: make(chan Event, cfg.BufferSize),
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
	}

	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = ep.now()
	}

	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil
		}
	}
	ep.mu.RUnlock()

	if ep.config.EnableAsync {
		if ep.ctx.Err() != nil {
			return fmt.Errorf("event publisher stopped")
		}
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishWorkbookCompleted publishes the outcome of a workbook run.
func (ep *EventPublisher) PublishWorkbookCompleted(workbook string, failed int, duration time.Duration) error {
	level := EventLevelInfo
	if failed > 0 {
		level = EventLevelWarning
	}
	return ep.Publish(Event{
		Type:     EventTypeWorkbookCompleted,
		Source:   "cli",
		Workbook: workbook,
		Message:  fmt.Sprintf("Workbook %s evaluated with %d failing equations", workbook, failed),
		Level:    level,
		Data: map[string]interface{}{
			"failed":   failed,
			"duration": duration.Seconds(),
		},
	})
}

// PublishWorkbookFailed publishes a workbook run that could not complete.
func (ep *EventPublisher) PublishWorkbookFailed(workbook, reason string) error {
	return ep.Publish(Event{
		Type:     EventTypeWorkbookFailed,
		Source:   "cli",
		Workbook: workbook,
		Message:  fmt.Sprintf("Workbook %s failed: %s", workbook, reason),
		Level:    EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishPolicyViolation publishes a workbook policy violation.
func (ep *EventPublisher) PublishPolicyViolation(workbook, rule, severity, message string) error {
	level := EventLevelWarning
	if severity == "error" {
		level = EventLevelError
	}
	return ep.Publish(Event{
		Type:     EventTypePolicyViolation,
		Source:   "policy_engine",
		Workbook: workbook,
		Message:  fmt.Sprintf("Policy violation in %s: %s - %s", workbook, rule, message),
		Level:    level,
		Data: map[string]interface{}{
			"rule":     rule,
			"severity": severity,
		},
	})
}

// Bridge republishes manager notifications for workbook. Removing and
// group-removing notifications are skipped; their completed counterparts
// carry the same information. The returned function detaches the bridge.
func (ep *EventPublisher) Bridge(m *equation.Manager, workbook string) func() {
	return m.Subscribe(func(ev equation.Event) {
		event, ok := translate(ev)
		if !ok {
			return
		}
		event.Workbook = workbook
		_ = ep.Publish(event)
	})
}

func translate(ev equation.Event) (Event, bool) {
	out := Event{
		Source:   "manager",
		Equation: ev.Name,
		Level:    EventLevelInfo,
	}
	if ev.GroupID != uuid.Nil {
		out.GroupID = ev.GroupID.String()
	}

	switch ev.Kind {
	case equation.EquationAdded:
		out.Type = EventTypeEquationAdded
		out.Message = fmt.Sprintf("Equation %s added", ev.Name)
	case equation.EquationRemoved:
		out.Type = EventTypeEquationRemoved
		out.Message = fmt.Sprintf("Equation %s removed", ev.Name)
	case equation.EquationUpdated:
		out.Type = EventTypeEquationUpdated
		out.Message = fmt.Sprintf("Equation %s updated (%s)", ev.Name, ev.Fields)
		out.Data = map[string]interface{}{"fields": ev.Fields.String()}
		if eq := ev.Equation; eq != nil {
			out.Data["status"] = eq.Status().String()
			if eq.Status().IsError() {
				out.Type = EventTypeEquationFailed
				out.Level = EventLevelError
				out.Message = fmt.Sprintf("Equation %s failed: %s", ev.Name, eq.Message())
			}
		}
	case equation.EquationGroupAdded:
		out.Type = EventTypeGroupAdded
		out.Message = fmt.Sprintf("Group %s added", out.GroupID)
	case equation.EquationGroupUpdated:
		out.Type = EventTypeGroupUpdated
		out.Message = fmt.Sprintf("Group %s updated", out.GroupID)
	default:
		return Event{}, false
	}
	return out, true
}

// Subscribe adds a new event subscriber. A nil filter accepts everything.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)
	flush := func() {
		for _, event := range batch {
			ep.deliverEvent(event)
		}
		batch = batch[:0]
	}

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)
			// deliver once the buffer drains or the batch is full
			if len(batch) >= ep.config.MaxBatchSize || len(ep.buffer) == 0 {
				flush()
			}

		case <-ep.ctx.Done():
			for {
				select {
				case event := <-ep.buffer:
					batch = append(batch, event)
				default:
					flush()
					return
				}
			}
		}
	}
}

// deliverEvent calls every matching subscriber in subscription order.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown delivers buffered events and stops the publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByWorkbook creates a filter that only allows events for one workbook.
func FilterByWorkbook(workbook string) EventFilter {
	return func(event Event) bool {
		return event.Workbook == workbook
	}
}
