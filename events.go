package xarm

import (
	"sync"
	"time"

	"go.viam.com/rdk/logging"
)

// EventKind identifies a category of controller event. Handlers subscribe
// per kind.
type EventKind string

const (
	EventStateChanged     EventKind = "state_changed"
	EventErrorOccurred    EventKind = "error_occurred"
	EventMaintenanceAlert EventKind = "maintenance_alert"
	EventRecoveryAttempt  EventKind = "recovery_attempted"
	EventRecoveryFailed   EventKind = "recovery_exhausted"
	EventSafetyViolation  EventKind = "safety_violation"
)

// Event is delivered to registered handlers. Only the fields relevant to
// the kind are populated.
type Event struct {
	Kind      EventKind
	Timestamp time.Time

	// EventStateChanged
	Component ComponentKind
	OldState  ComponentState
	NewState  ComponentState

	// EventErrorOccurred
	Error *ErrorRecord

	// EventMaintenanceAlert / EventSafetyViolation
	Message string

	// EventRecoveryAttempt
	Attempt int
	Code    int
}

// Handler receives events synchronously on the dispatching goroutine.
type Handler func(Event)

// dispatcher fans events out to handlers in registration order. A panicking
// handler is recovered and logged so one bad callback cannot take down the
// control loop or starve later handlers.
type dispatcher struct {
	mu       sync.RWMutex
	handlers map[EventKind][]Handler
	logger   logging.Logger
}

func newDispatcher(logger logging.Logger) *dispatcher {
	return &dispatcher{
		handlers: make(map[EventKind][]Handler),
		logger:   logger,
	}
}

func (d *dispatcher) register(kind EventKind, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = append(d.handlers[kind], h)
}

func (d *dispatcher) dispatch(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	d.mu.RLock()
	handlers := d.handlers[ev.Kind]
	d.mu.RUnlock()

	for _, h := range handlers {
		d.invoke(h, ev)
	}
}

func (d *dispatcher) invoke(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warnf("event handler for %q panicked: %v", ev.Kind, r)
		}
	}()
	h(ev)
}
