package xarm

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.viam.com/rdk/logging"
	goutils "go.viam.com/utils"
)

// homePose is the canonical ready position above the workspace center.
var homePose = Pose{X: 300, Y: 0, Z: 300, Roll: 180}

// Controller is the single owner of one arm: transport, component states,
// safety validation, force/torque processing, recovery, and performance
// tracking all hang off it. Construct one per arm; methods are safe for
// concurrent use, with motion commands serialized internally.
type Controller struct {
	cfg       *Config
	logger    logging.Logger
	transport Transport
	clock     clock.Clock

	validator *validator
	ft        *ftProcessor
	history   *errorHistory
	recoverer *recoverer
	monitor   *perfMonitor
	events    *dispatcher

	components map[ComponentKind]*component

	mu            sync.RWMutex // session + cached telemetry state
	sessionID     string
	backend       string
	initialized   bool
	armState      int
	lastErrorCode int
	lastWarnCode  int
	lastPosition  Pose
	lastJoints    JointAngles

	moveMu      sync.Mutex // serializes motion commands
	isMoving    atomic.Bool
	safetyAlert atomic.Bool

	moveCancelMu sync.Mutex
	moveCancel   context.CancelFunc

	cancelCtx  context.Context
	cancelFunc context.CancelFunc
	workers    sync.WaitGroup
}

// NewController builds a controller from a validated config, selecting the
// backend by host: empty host runs the in-memory simulation, anything else
// dials the simulator or hardware over TCP.
func NewController(cfg *Config) (*Controller, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("xarm")
	}

	var transport Transport
	var backend string
	if cfg.Host == "" {
		transport = NewSimTransport(cfg.Model, logger)
		backend = "simulation"
	} else {
		transport = NewTCPTransport(cfg.Host, cfg.CommandTimeout, logger)
		backend = "tcp"
	}
	return NewControllerWithTransport(cfg, transport, backend)
}

// NewControllerWithTransport injects an explicit transport, used by tests
// and custom backends.
func NewControllerWithTransport(cfg *Config, transport Transport, backend string) (*Controller, error) {
	if transport == nil {
		return nil, errors.New("transport is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("xarm")
	}

	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	c := &Controller{
		cfg:        cfg,
		logger:     logger,
		transport:  transport,
		clock:      clock.New(),
		validator:  newValidator(cfg),
		history:    newErrorHistory(cfg.ErrorHistoryCap),
		events:     newDispatcher(logger),
		backend:    backend,
		cancelCtx:  cancelCtx,
		cancelFunc: cancelFunc,
		components: map[ComponentKind]*component{
			ComponentConnection:  newComponent(ComponentConnection, true),
			ComponentArm:         newComponent(ComponentArm, true),
			ComponentGripper:     newComponent(ComponentGripper, cfg.Gripper.Kind != GripperNone),
			ComponentTrack:       newComponent(ComponentTrack, cfg.Track.Enable),
			ComponentForceTorque: newComponent(ComponentForceTorque, cfg.ForceTorque.Enable),
		},
	}
	c.ft = newFTProcessor(transport, cfg.ForceTorque, c.clock, logger)
	c.recoverer = newRecoverer(transport, logger, c.events.dispatch)
	c.monitor = newPerfMonitor(c.clock, func(msg string) {
		c.logger.Warnf("maintenance alert: %s", msg)
		c.events.dispatch(Event{Kind: EventMaintenanceAlert, Message: msg})
	})
	return c, nil
}

// Initialize connects the transport, arms the controller, and enables the
// configured components when auto-enable is on. Idempotent: a second call
// on a live session returns the existing info.
func (c *Controller) Initialize(ctx context.Context) (*ConnectionInfo, error) {
	c.mu.Lock()
	if c.initialized {
		info := c.connectionInfoLocked()
		c.mu.Unlock()
		return info, nil
	}
	c.mu.Unlock()

	c.setComponentState(ComponentConnection, StateEnabling)
	if err := c.transport.Connect(ctx); err != nil {
		c.setComponentState(ComponentConnection, StateError)
		return nil, err
	}

	if err := c.armSession(); err != nil {
		c.setComponentState(ComponentConnection, StateError)
		goutils.UncheckedError(c.transport.Close())
		return nil, err
	}

	c.mu.Lock()
	c.sessionID = uuid.New().String()
	c.initialized = true
	c.armState = ArmStateReady
	info := c.connectionInfoLocked()
	c.mu.Unlock()

	c.setComponentState(ComponentConnection, StateEnabled)
	c.setComponentState(ComponentArm, StateEnabled)

	if telemetry := c.transport.Telemetry(); telemetry != nil {
		c.workers.Add(1)
		goutils.PanicCapturingGo(func() {
			defer c.workers.Done()
			c.consumeTelemetry(telemetry)
		})
	}

	if c.cfg.AutoEnable {
		for _, kind := range []ComponentKind{ComponentGripper, ComponentTrack, ComponentForceTorque} {
			if !c.components[kind].Configured() {
				continue
			}
			if err := c.EnableComponent(ctx, kind); err != nil {
				c.logger.Warnf("auto-enable %s failed: %v", kind, err)
			}
		}
	}

	c.logger.Infof("initialized session %s on %s backend", info.SessionID, info.Backend)
	return info, nil
}

func (c *Controller) connectionInfoLocked() *ConnectionInfo {
	return &ConnectionInfo{
		SessionID: c.sessionID,
		Backend:   c.backend,
		Host:      c.cfg.Host,
		Model:     c.cfg.Model,
		NumJoints: c.cfg.NumJoints(),
	}
}

// armSession puts the arm into position-control ready state.
func (c *Controller) armSession() error {
	if err := c.transport.MotionEnable(true); err != nil {
		return errors.Wrap(err, "motion enable")
	}
	if err := c.transport.SetMode(0); err != nil {
		return errors.Wrap(err, "set mode")
	}
	if err := c.transport.SetState(ArmStateReady); err != nil {
		return errors.Wrap(err, "set state")
	}
	return nil
}

// EnableComponent activates one component. Enabling an already-enabled
// component is a no-op; unconfigured components fail with
// ErrComponentUnavailable.
func (c *Controller) EnableComponent(ctx context.Context, kind ComponentKind) error {
	comp, ok := c.components[kind]
	if !ok {
		return errors.Errorf("unknown component %q", kind)
	}

	from := comp.State()
	proceed, err := comp.beginEnable()
	if err != nil {
		return errors.Wrapf(err, "enable %s", kind)
	}
	if !proceed {
		return nil
	}
	c.emitStateChange(kind, from, StateEnabling)

	err = c.activate(ctx, kind)
	comp.finishEnable(err)
	if err != nil {
		c.emitStateChange(kind, StateEnabling, StateError)
		c.recordError(0, errors.Wrapf(err, "enable %s", kind).Error(), kind)
		return errors.Wrapf(err, "enable %s", kind)
	}
	c.emitStateChange(kind, StateEnabling, StateEnabled)
	c.logger.Infof("component %s enabled", kind)
	return nil
}

func (c *Controller) activate(ctx context.Context, kind ComponentKind) error {
	switch kind {
	case ComponentConnection:
		return c.transport.Connect(ctx)
	case ComponentArm:
		return c.armSession()
	case ComponentGripper:
		return c.transport.EnableGripper(c.cfg.Gripper.Kind, true)
	case ComponentTrack:
		if err := c.transport.EnableTrack(true); err != nil {
			return err
		}
		return c.transport.SetTrackSpeed(c.cfg.Track.Speed)
	case ComponentForceTorque:
		return c.transport.EnableForceTorque(true)
	}
	return errors.Errorf("unknown component %q", kind)
}

// DisableComponent deactivates one component. Components the current motion
// depends on cannot be disabled mid-move.
func (c *Controller) DisableComponent(ctx context.Context, kind ComponentKind) error {
	comp, ok := c.components[kind]
	if !ok {
		return errors.Errorf("unknown component %q", kind)
	}
	if !comp.Configured() {
		return errors.Wrapf(ErrComponentUnavailable, "disable %s", kind)
	}
	if c.isMoving.Load() && (kind == ComponentArm || kind == ComponentTrack || kind == ComponentConnection) {
		return errors.Wrapf(ErrBusy, "disable %s", kind)
	}

	var err error
	switch kind {
	case ComponentArm:
		err = c.transport.MotionEnable(false)
	case ComponentGripper:
		err = c.transport.EnableGripper(c.cfg.Gripper.Kind, false)
	case ComponentTrack:
		err = c.transport.EnableTrack(false)
	case ComponentForceTorque:
		err = c.transport.EnableForceTorque(false)
	case ComponentConnection:
		err = c.transport.Close()
	}
	if err != nil {
		return errors.Wrapf(err, "disable %s", kind)
	}

	from := comp.State()
	comp.disable()
	c.emitStateChange(kind, from, StateDisabled)
	c.logger.Infof("component %s disabled", kind)
	return nil
}

// IsComponentEnabled reports the enabled state without side effects.
func (c *Controller) IsComponentEnabled(kind ComponentKind) bool {
	comp, ok := c.components[kind]
	return ok && comp.Enabled()
}

func (c *Controller) setComponentState(kind ComponentKind, s ComponentState) {
	if tr, changed := c.components[kind].setState(s); changed {
		c.events.dispatch(Event{
			Kind:      EventStateChanged,
			Component: tr.kind,
			OldState:  tr.from,
			NewState:  tr.to,
		})
	}
}

func (c *Controller) emitStateChange(kind ComponentKind, from, to ComponentState) {
	c.events.dispatch(Event{
		Kind:      EventStateChanged,
		Component: kind,
		OldState:  from,
		NewState:  to,
	})
}

// RegisterCallback subscribes a handler to an event kind. Handlers run
// synchronously in registration order; a panic in one is isolated.
func (c *Controller) RegisterCallback(kind EventKind, h Handler) {
	c.events.register(kind, h)
}

// SetSafetyLevel changes the active safety level, tightening or relaxing
// the speed envelope for subsequent commands. In-flight motion is not
// re-planned.
func (c *Controller) SetSafetyLevel(level SafetyLevel) {
	c.validator.setLevel(level)
	c.logger.Infof("safety level set to %s (speed scale %.1f)", level, level.SpeedScale())
}

// SafetyLevel returns the active safety level.
func (c *Controller) SafetyLevel() SafetyLevel {
	return c.validator.currentLevel()
}

// requireArm gates motion commands on connection and arm state.
func (c *Controller) requireArm() error {
	if !c.transport.Connected() {
		return ErrNotConnected
	}
	if !c.components[ComponentArm].Enabled() {
		return errors.Wrap(ErrComponentNotEnabled, "arm")
	}
	return nil
}

// MoveToPosition commands a linear Cartesian move to an absolute pose.
func (c *Controller) MoveToPosition(ctx context.Context, target Pose, opts MoveOptions) error {
	return c.monitor.timeOp(OpMoveCartesian, func() error {
		if err := c.requireArm(); err != nil {
			return err
		}
		if err := c.validator.validatePose(target); err != nil {
			c.emitSafetyViolation(err)
			return err
		}
		speed, accel := c.resolveCartesian(opts)

		c.moveMu.Lock()
		defer c.moveMu.Unlock()
		return c.execMove(ctx, func(context.Context) error {
			return c.transport.SetPosition(target, speed, accel, !opts.NoWait, false)
		})
	})
}

// MoveRelative offsets the current pose by delta. The resulting absolute
// pose is validated, so a relative move can never escape the workspace.
func (c *Controller) MoveRelative(ctx context.Context, delta Pose, opts MoveOptions) error {
	current, err := c.Position(ctx)
	if err != nil {
		return err
	}
	return c.MoveToPosition(ctx, current.Add(delta), opts)
}

// MoveJoints commands a joint-space move to absolute angles.
func (c *Controller) MoveJoints(ctx context.Context, angles JointAngles, opts MoveOptions) error {
	return c.monitor.timeOp(OpMoveJoint, func() error {
		if err := c.requireArm(); err != nil {
			return err
		}
		if err := c.validator.validateJoints(angles); err != nil {
			c.emitSafetyViolation(err)
			return err
		}
		speed, accel := c.resolveJoint(opts)

		c.moveMu.Lock()
		defer c.moveMu.Unlock()
		return c.execMove(ctx, func(context.Context) error {
			return c.transport.SetServoAngle(angles.Clone(), speed, accel, !opts.NoWait)
		})
	})
}

// MoveSingleJoint moves one joint to an absolute angle, holding the rest.
func (c *Controller) MoveSingleJoint(ctx context.Context, index int, angle float64, opts MoveOptions) error {
	if err := c.validator.validateSingleJoint(index, angle); err != nil {
		c.emitSafetyViolation(err)
		return err
	}
	current, err := c.Joints(ctx)
	if err != nil {
		return err
	}
	target := current.Clone()
	target[index] = angle
	return c.MoveJoints(ctx, target, opts)
}

// GoHome returns the arm to the canonical home pose.
func (c *Controller) GoHome(ctx context.Context, opts MoveOptions) error {
	return c.MoveToPosition(ctx, homePose, opts)
}

// MoveToNamedLocation resolves a configured location alias and dispatches
// by its payload: joint targets move in joint space, poses in Cartesian
// space, track values move the rail.
func (c *Controller) MoveToNamedLocation(ctx context.Context, name string, opts MoveOptions) error {
	loc, ok := c.cfg.Locations[name]
	if !ok {
		return errors.Wrapf(ErrUnknownLocation, "%q", name)
	}
	switch {
	case loc.Joints != nil:
		return c.MoveJoints(ctx, loc.Joints, opts)
	case loc.Pose != nil:
		return c.MoveToPosition(ctx, *loc.Pose, opts)
	case loc.Track != nil:
		return c.MoveTrack(ctx, *loc.Track, 0)
	}
	return errors.Errorf("location %q has no target", name)
}

func (c *Controller) resolveCartesian(opts MoveOptions) (speed, accel float64) {
	reqSpeed, reqAccel := opts.Speed, opts.Acceleration
	if reqSpeed == 0 {
		reqSpeed = c.cfg.TCPSpeed
	}
	if reqAccel == 0 {
		reqAccel = c.cfg.TCPAccel
	}
	return c.validator.resolveCartesianSpeed(reqSpeed, reqAccel)
}

func (c *Controller) resolveJoint(opts MoveOptions) (speed, accel float64) {
	reqSpeed, reqAccel := opts.Speed, opts.Acceleration
	if reqSpeed == 0 {
		reqSpeed = c.cfg.JointSpeed
	}
	if reqAccel == 0 {
		reqAccel = c.cfg.JointAccel
	}
	return c.validator.resolveJointSpeed(reqSpeed, reqAccel)
}

// execMove runs one already-validated transport motion call with stop
// support: StopMotion cancels the in-flight wait and the caller receives
// ErrCancelled. The closure gets the per-move context so polling loops can
// observe the cancellation too. The caller must hold moveMu.
func (c *Controller) execMove(ctx context.Context, fn func(ctx context.Context) error) error {
	moveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.moveCancelMu.Lock()
	c.moveCancel = cancel
	c.moveCancelMu.Unlock()
	defer func() {
		c.moveCancelMu.Lock()
		c.moveCancel = nil
		c.moveCancelMu.Unlock()
	}()

	c.isMoving.Store(true)
	defer c.isMoving.Store(false)

	done := make(chan error, 1)
	goutils.PanicCapturingGo(func() {
		done <- fn(moveCtx)
	})

	select {
	case err := <-done:
		return c.handleMotionError(err)
	case <-moveCtx.Done():
		// The transport call may still complete in the background; the
		// buffered channel lets its goroutine exit either way.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrCancelled
	}
}

// handleMotionError records hardware faults and drives recovery for
// retryable codes. The original error is always returned: recovery restores
// the arm for the next command, it does not retry this one.
func (c *Controller) handleMotionError(err error) error {
	if err == nil {
		return nil
	}
	var hwErr *HardwareError
	if !errors.As(err, &hwErr) {
		return err
	}

	c.recordError(hwErr.Code, hwErr.Error(), ComponentArm)

	if !isRetryableCode(hwErr.Code) {
		c.logger.Errorf("fatal hardware error %d, arm requires inspection", hwErr.Code)
		c.components[ComponentArm].fail(hwErr.Error())
		c.emitStateChange(ComponentArm, StateEnabled, StateError)
		return err
	}
	if recErr := c.recoverer.recover(hwErr.Code, ComponentArm); recErr != nil {
		c.components[ComponentArm].fail(recErr.Error())
		c.emitStateChange(ComponentArm, StateEnabled, StateError)
	}
	return err
}

func (c *Controller) recordError(code int, msg string, component ComponentKind) {
	rec := ErrorRecord{Code: code, Message: msg, Timestamp: time.Now(), Component: component}
	c.history.add(rec)
	c.mu.Lock()
	c.lastErrorCode = code
	c.mu.Unlock()
	c.events.dispatch(Event{Kind: EventErrorOccurred, Component: component, Error: &rec})
}

func (c *Controller) emitSafetyViolation(err error) {
	c.events.dispatch(Event{Kind: EventSafetyViolation, Message: err.Error()})
}

// StopMotion halts the arm immediately and cancels any in-flight blocking
// move, which returns ErrCancelled to its caller. The arm is re-armed so
// subsequent commands work without re-initialization.
func (c *Controller) StopMotion(ctx context.Context) error {
	c.moveCancelMu.Lock()
	if c.moveCancel != nil {
		c.moveCancel()
	}
	c.moveCancelMu.Unlock()

	if err := c.transport.EmergencyStop(); err != nil {
		return errors.Wrap(err, "emergency stop")
	}
	if err := c.transport.SetState(ArmStateReady); err != nil {
		return errors.Wrap(err, "re-arm after stop")
	}
	c.logger.Infof("motion stopped")
	return nil
}

// IsMoving reports whether a motion command is currently in flight.
func (c *Controller) IsMoving() bool {
	return c.isMoving.Load()
}

// Position returns the current TCP pose.
func (c *Controller) Position(ctx context.Context) (Pose, error) {
	if !c.transport.Connected() {
		return Pose{}, ErrNotConnected
	}
	p, err := c.transport.GetPosition()
	if err != nil {
		return Pose{}, err
	}
	c.mu.Lock()
	c.lastPosition = p
	c.mu.Unlock()
	return p, nil
}

// Joints returns the current joint angles.
func (c *Controller) Joints(ctx context.Context) (JointAngles, error) {
	if !c.transport.Connected() {
		return nil, ErrNotConnected
	}
	j, err := c.transport.GetServoAngle()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.lastJoints = j.Clone()
	c.mu.Unlock()
	return j, nil
}

// Status assembles a point-in-time view of the whole system. Position reads
// are best effort: a status call never fails outright on a telemetry gap.
func (c *Controller) Status(ctx context.Context) StatusSnapshot {
	c.mu.RLock()
	snap := StatusSnapshot{
		Timestamp:     time.Now(),
		Connected:     c.transport.Connected(),
		Alive:         c.initialized && c.armState < ArmStateEmergency,
		SafetyLevel:   c.validator.currentLevel().String(),
		Position:      c.lastPosition,
		Joints:        c.lastJoints.Clone(),
		GripperKind:   c.cfg.Gripper.Kind,
		LastErrorCode: c.lastErrorCode,
		LastWarnCode:  c.lastWarnCode,
	}
	c.mu.RUnlock()

	snap.ErrorCount = c.history.count()
	snap.Components = make(map[ComponentKind]ComponentStatus, len(c.components))
	for kind, comp := range c.components {
		snap.Components[kind] = comp.status()
	}

	if snap.Connected {
		if p, err := c.transport.GetPosition(); err == nil {
			snap.Position = p
		}
		if j, err := c.transport.GetServoAngle(); err == nil {
			snap.Joints = j
		}
		if c.components[ComponentTrack].Enabled() {
			if tp, err := c.transport.GetTrackPosition(); err == nil {
				snap.TrackPosition = tp
			}
		}
	}
	return snap
}

// ErrorHistory returns a copy of the bounded fault history, oldest first.
// A positive count limits the result to the most recent entries.
func (c *Controller) ErrorHistory(count int) []ErrorRecord {
	records := c.history.snapshot()
	if count > 0 && count < len(records) {
		records = records[len(records)-count:]
	}
	return records
}

// ClearErrors wipes the fault history, clears hardware error/warn registers,
// resets errored components to unknown, and drops any safety alert.
func (c *Controller) ClearErrors(ctx context.Context) error {
	if c.transport.Connected() {
		if err := c.transport.CleanError(); err != nil {
			return errors.Wrap(err, "clean hardware errors")
		}
		if err := c.transport.CleanWarn(); err != nil {
			return errors.Wrap(err, "clean hardware warnings")
		}
	}
	c.history.clear()
	c.safetyAlert.Store(false)
	c.mu.Lock()
	c.lastErrorCode = 0
	c.lastWarnCode = 0
	c.mu.Unlock()
	for _, comp := range c.components {
		comp.clearError()
	}
	c.logger.Infof("error state cleared")
	return nil
}

// NamedLocations lists the configured location aliases, sorted.
func (c *Controller) NamedLocations() []string {
	names := make([]string, 0, len(c.cfg.Locations))
	for name := range c.cfg.Locations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SystemInfo describes the configured system and its component states.
func (c *Controller) SystemInfo() SystemInfo {
	c.mu.RLock()
	alive := c.initialized && c.armState < ArmStateEmergency
	c.mu.RUnlock()

	info := SystemInfo{
		Model:           c.cfg.Model,
		NumJoints:       c.cfg.NumJoints(),
		GripperKind:     c.cfg.Gripper.Kind,
		HasGripper:      c.components[ComponentGripper].Configured(),
		HasTrack:        c.components[ComponentTrack].Configured(),
		HasForceTorque:  c.components[ComponentForceTorque].Configured(),
		Connected:       c.transport.Connected(),
		Alive:           alive,
		AutoEnable:      c.cfg.AutoEnable,
		ComponentStates: make(map[ComponentKind]ComponentState, len(c.components)),
	}
	for kind, comp := range c.components {
		info.ComponentStates[kind] = comp.State()
	}
	return info
}

// PerformanceStats returns the rolling performance snapshot.
func (c *Controller) PerformanceStats() PerformanceStats {
	return c.monitor.stats()
}

// RegisterMetrics attaches the controller's prometheus collectors.
func (c *Controller) RegisterMetrics(reg prometheus.Registerer) error {
	return c.monitor.register(reg)
}

// consumeTelemetry folds asynchronous transport reports into cached state
// and the fault pipeline. It exits when the channel closes or the
// controller shuts down.
func (c *Controller) consumeTelemetry(ch <-chan TelemetryEvent) {
	for {
		select {
		case <-c.cancelCtx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			c.handleTelemetry(ev)
		}
	}
}

func (c *Controller) handleTelemetry(ev TelemetryEvent) {
	switch ev.Kind {
	case TelemetryState:
		c.mu.Lock()
		prev := c.armState
		c.armState = ev.State
		c.mu.Unlock()
		if ev.State >= ArmStateEmergency && prev < ArmStateEmergency {
			c.logger.Warnf("arm entered fault state %d", ev.State)
			c.components[ComponentArm].fail("hardware fault state")
			c.emitStateChange(ComponentArm, StateEnabled, StateError)
		}
	case TelemetryErrorWarn:
		c.mu.Lock()
		c.lastWarnCode = ev.WarnCode
		c.mu.Unlock()
		if ev.ErrorCode != 0 {
			c.recordError(ev.ErrorCode, "hardware reported error", ComponentArm)
		}
	case TelemetryPosition:
		c.mu.Lock()
		c.lastPosition = ev.Position
		if ev.Joints != nil {
			c.lastJoints = ev.Joints
		}
		c.mu.Unlock()
	}
}

// Close shuts the controller down: stops telemetry consumption, disables
// motion best-effort, and closes the transport. Safe to call more than once.
func (c *Controller) Close(ctx context.Context) error {
	c.cancelFunc()

	c.moveCancelMu.Lock()
	if c.moveCancel != nil {
		c.moveCancel()
	}
	c.moveCancelMu.Unlock()

	var closeErr error
	if c.transport.Connected() {
		goutils.UncheckedError(c.transport.MotionEnable(false))
		closeErr = c.transport.Close()
	}
	c.workers.Wait()

	c.mu.Lock()
	c.initialized = false
	c.mu.Unlock()
	c.setComponentState(ComponentConnection, StateDisabled)
	c.logger.Infof("controller closed")
	return closeErr
}
