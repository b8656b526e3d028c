package xarm

import (
	"sync"
	"time"
)

// component tracks the lifecycle of one controller subsystem. Transitions
// are serialized by its own mutex so state reads never observe a half
// transition; cross-component ordering is the controller's concern.
type component struct {
	mu         sync.RWMutex
	kind       ComponentKind
	state      ComponentState
	configured bool
	lastError  string
	changedAt  time.Time
}

func newComponent(kind ComponentKind, configured bool) *component {
	return &component{
		kind:       kind,
		state:      StateUnknown,
		configured: configured,
		changedAt:  time.Now(),
	}
}

func (c *component) State() ComponentState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *component) Configured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.configured
}

func (c *component) Enabled() bool {
	return c.State() == StateEnabled
}

func (c *component) status() ComponentStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ComponentStatus{State: c.state, LastError: c.lastError}
}

// beginEnable moves the component into ENABLING and reports whether the
// caller should proceed with hardware activation. Already-enabled
// components report false with a nil error: enabling is idempotent.
func (c *component) beginEnable() (proceed bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.configured {
		return false, ErrComponentUnavailable
	}
	if c.state == StateEnabled {
		return false, nil
	}
	c.setStateLocked(StateEnabling)
	return true, nil
}

// finishEnable resolves a pending ENABLING transition.
func (c *component) finishEnable(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastError = err.Error()
		c.setStateLocked(StateError)
		return
	}
	c.lastError = ""
	c.setStateLocked(StateEnabled)
}

func (c *component) disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setStateLocked(StateDisabled)
}

func (c *component) fail(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastError = msg
	c.setStateLocked(StateError)
}

// clearError returns an ERROR component to UNKNOWN so it can be re-enabled.
func (c *component) clearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateError {
		return
	}
	c.lastError = ""
	c.setStateLocked(StateUnknown)
}

func (c *component) setStateLocked(s ComponentState) {
	if c.state == s {
		return
	}
	c.state = s
	c.changedAt = time.Now()
}

// transition captures a completed state change for event dispatch.
type transition struct {
	kind     ComponentKind
	from, to ComponentState
}

// setState performs a transition and reports it if the state actually
// changed, letting the controller emit state_changed events outside the
// component lock.
func (c *component) setState(s ComponentState) (transition, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == s {
		return transition{}, false
	}
	tr := transition{kind: c.kind, from: c.state, to: s}
	c.setStateLocked(s)
	return tr, true
}
