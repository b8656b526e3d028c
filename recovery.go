package xarm

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

const maxRecoveryAttempts = 3

// recoveryActions maps vendor error codes to a human description; presence
// in the map means the fault can be cleared in software. Code 38 (hard
// joint limit) is deliberately absent: it indicates possible mechanical
// damage and requires inspection.
var recoveryActions = map[int]string{
	CodeCommRecvFail:  "communication receive failure",
	CodeCommSendFail:  "communication send failure",
	CodeStateNotReady: "controller state fault",
	CodeJointLimit:    "soft joint limit reached",
	CodeJointSpeed:    "joint speed exceeded",
	CodeCollision:     "collision detected",
	CodeTCPSpeed:      "tcp speed exceeded",
}

// isRetryableCode reports whether automated recovery should be attempted
// for a vendor error code.
func isRetryableCode(code int) bool {
	_, ok := recoveryActions[code]
	return ok
}

// errorHistory is a bounded FIFO of fault records. Once full, the oldest
// record is evicted per insertion.
type errorHistory struct {
	mu      sync.Mutex
	limit   int
	records []ErrorRecord
}

func newErrorHistory(limit int) *errorHistory {
	if limit <= 0 {
		limit = 100
	}
	return &errorHistory{limit: limit}
}

func (h *errorHistory) add(rec ErrorRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.records) == h.limit {
		copy(h.records, h.records[1:])
		h.records = h.records[:h.limit-1]
	}
	h.records = append(h.records, rec)
}

func (h *errorHistory) snapshot() []ErrorRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ErrorRecord, len(h.records))
	copy(out, h.records)
	return out
}

func (h *errorHistory) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = h.records[:0]
}

func (h *errorHistory) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// recoverer drives the clear-and-rearm sequence against the transport.
type recoverer struct {
	transport Transport
	logger    logging.Logger
	dispatch  func(Event)
}

func newRecoverer(t Transport, logger logging.Logger, dispatch func(Event)) *recoverer {
	return &recoverer{transport: t, logger: logger, dispatch: dispatch}
}

// recover attempts to clear a retryable fault: clean the error and warning
// registers, re-enable motion, and return the arm to the ready state. Up to
// maxRecoveryAttempts cycles before giving up. Fatal codes fail immediately.
func (r *recoverer) recover(code int, component ComponentKind) error {
	desc, retryable := recoveryActions[code]
	if !retryable {
		r.logger.Errorf("error code %d is not recoverable, manual intervention required", code)
		return errors.Errorf("unrecoverable hardware error %d", code)
	}
	r.logger.Warnf("recovering from %s (code %d)", desc, code)

	var lastErr error
	for attempt := 1; attempt <= maxRecoveryAttempts; attempt++ {
		r.dispatch(Event{
			Kind:      EventRecoveryAttempt,
			Component: component,
			Attempt:   attempt,
			Code:      code,
		})

		lastErr = r.rearm()
		if lastErr == nil {
			r.logger.Infof("recovered from code %d on attempt %d", code, attempt)
			return nil
		}
		r.logger.Warnf("recovery attempt %d/%d failed: %v", attempt, maxRecoveryAttempts, lastErr)
	}
	r.dispatch(Event{
		Kind:      EventRecoveryFailed,
		Component: component,
		Attempt:   maxRecoveryAttempts,
		Code:      code,
	})
	return errors.Wrapf(lastErr, "recovery from code %d exhausted after %d attempts",
		code, maxRecoveryAttempts)
}

func (r *recoverer) rearm() error {
	if err := r.transport.CleanError(); err != nil {
		return errors.Wrap(err, "clean error")
	}
	if err := r.transport.CleanWarn(); err != nil {
		return errors.Wrap(err, "clean warn")
	}
	if err := r.transport.MotionEnable(true); err != nil {
		return errors.Wrap(err, "re-enable motion")
	}
	if err := r.transport.SetState(ArmStateReady); err != nil {
		return errors.Wrap(err, "set ready state")
	}
	return nil
}
