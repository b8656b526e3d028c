package xarm

import (
	"context"
	"math"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

const (
	defaultForceMoveTimeout = 30 * time.Second

	// jointTargetEpsilon is the angular tolerance, in degrees, at which a
	// torque-guarded joint move is considered to have reached its target.
	jointTargetEpsilon = 0.1
)

// ForceMoveOptions parameterizes threshold-controlled motion. Zero values
// take the configured sensor thresholds, default speeds, and a 30 second
// timeout.
type ForceMoveOptions struct {
	Threshold float64 // N for force moves, Nm for torque moves
	Speed     float64 // mm/s or deg/s
	Timeout   time.Duration
}

func (o ForceMoveOptions) timeout() time.Duration {
	if o.Timeout <= 0 {
		return defaultForceMoveTimeout
	}
	return o.Timeout
}

// requireForceTorque gates sensor operations on configuration and state.
func (c *Controller) requireForceTorque() error {
	comp := c.components[ComponentForceTorque]
	if !comp.Configured() {
		return errors.Wrap(ErrComponentUnavailable, "force/torque sensor")
	}
	if !comp.Enabled() {
		return ErrSensorNotEnabled
	}
	if !c.transport.Connected() {
		return ErrNotConnected
	}
	return nil
}

// CalibrateForceTorque records the sensor zero point over samples readings
// taken delay apart; non-positive arguments take the configured defaults.
// The arm must be stationary and unloaded; calibration during motion is
// rejected.
func (c *Controller) CalibrateForceTorque(ctx context.Context, samples int, delay time.Duration) error {
	if err := c.requireForceTorque(); err != nil {
		return err
	}
	if c.isMoving.Load() {
		return errors.Wrap(ErrBusy, "calibrate during motion")
	}
	return c.ft.calibrate(ctx, samples, delay)
}

// ForceTorque returns one zero-compensated processed sensor reading.
func (c *Controller) ForceTorque(ctx context.Context) (ProcessedReading, error) {
	if err := c.requireForceTorque(); err != nil {
		return ProcessedReading{}, err
	}
	return c.ft.read()
}

// ForceTorqueZero returns the zero point captured by the last calibration.
func (c *Controller) ForceTorqueZero() ForceTorqueReading {
	return c.ft.zeroPoint()
}

// CheckForceTorqueSafety samples the sensor and evaluates it against the
// configured thresholds. A violation latches the safety alert flag and
// emits a safety_violation event; the flag clears on ClearErrors.
func (c *Controller) CheckForceTorqueSafety(ctx context.Context) (bool, ProcessedReading, error) {
	reading, err := c.ForceTorque(ctx)
	if err != nil {
		return false, ProcessedReading{}, err
	}
	ok, msg := c.ft.checkSafety(reading)
	if !ok {
		c.safetyAlert.Store(true)
		c.logger.Warnf("force/torque safety violation: %s", msg)
		c.events.dispatch(Event{Kind: EventSafetyViolation, Component: ComponentForceTorque, Message: msg})
	}
	return ok, reading, nil
}

// SafetyAlertActive reports whether a force/torque violation has latched
// since the last ClearErrors.
func (c *Controller) SafetyAlertActive() bool {
	return c.safetyAlert.Load()
}

// MoveUntilForce advances the TCP along direction in small segments until
// the compensated force magnitude reaches the threshold (success), the
// timeout expires (TimeoutError), or the motion is cancelled. Each tick
// checks cancellation first, then the threshold, then the deadline, so a
// threshold crossing on the final tick still counts as contact.
func (c *Controller) MoveUntilForce(ctx context.Context, direction r3.Vector, opts ForceMoveOptions) error {
	return c.monitor.timeOp(OpForceMove, func() error {
		if err := c.requireArm(); err != nil {
			return err
		}
		if err := c.requireForceTorque(); err != nil {
			return err
		}
		if !c.ft.isCalibrated() {
			return ErrNotCalibrated
		}
		if direction.Norm() == 0 {
			return errors.New("direction must be non-zero")
		}
		direction = direction.Normalize()

		threshold := opts.Threshold
		if threshold == 0 {
			threshold = c.cfg.ForceTorque.ForceThreshold
		}
		speed, accel := c.resolveCartesian(MoveOptions{Speed: opts.Speed})
		timeout := opts.timeout()

		c.moveMu.Lock()
		defer c.moveMu.Unlock()

		step := speed * c.cfg.PollInterval.Seconds()
		deadline := c.clock.Now().Add(timeout)
		c.logger.Debugf("force-guarded move: dir=%v threshold=%.2fN step=%.2fmm", direction, threshold, step)

		return c.execMove(ctx, func(moveCtx context.Context) error {
			ticker := c.clock.Ticker(c.cfg.PollInterval)
			defer ticker.Stop()

			for {
				if moveCtx.Err() != nil {
					return moveCtx.Err()
				}

				reading, err := c.ft.read()
				if err != nil {
					c.stopAfterGuardedMove()
					return errors.Wrap(err, "sensor read during guarded move")
				}
				if reading.ForceMagnitude >= threshold {
					c.stopAfterGuardedMove()
					c.logger.Infof("contact at %.2fN (threshold %.2fN)", reading.ForceMagnitude, threshold)
					return nil
				}
				if !c.clock.Now().Before(deadline) {
					c.stopAfterGuardedMove()
					return &TimeoutError{Op: "force-guarded move", Deadline: timeout.String()}
				}

				current, err := c.transport.GetPosition()
				if err != nil {
					return err
				}
				target := current.Add(Pose{
					X: direction.X * step,
					Y: direction.Y * step,
					Z: direction.Z * step,
				})
				if err := c.validator.validatePose(target); err != nil {
					c.stopAfterGuardedMove()
					c.emitSafetyViolation(err)
					return err
				}
				if err := c.transport.SetPosition(target, speed, accel, true, false); err != nil {
					return err
				}

				select {
				case <-moveCtx.Done():
					return moveCtx.Err()
				case <-ticker.C:
				}
			}
		})
	})
}

// MoveJointUntilTorque steps one joint toward a target angle until the
// compensated torque magnitude reaches the threshold or the target is
// reached (both success), or the timeout expires (TimeoutError). Tick order
// matches MoveUntilForce: cancellation, threshold, target, deadline.
func (c *Controller) MoveJointUntilTorque(ctx context.Context, joint int, targetAngle float64, opts ForceMoveOptions) error {
	return c.monitor.timeOp(OpForceMove, func() error {
		if err := c.requireArm(); err != nil {
			return err
		}
		if err := c.requireForceTorque(); err != nil {
			return err
		}
		if !c.ft.isCalibrated() {
			return ErrNotCalibrated
		}
		if err := c.validator.validateSingleJoint(joint, targetAngle); err != nil {
			c.emitSafetyViolation(err)
			return err
		}

		threshold := opts.Threshold
		if threshold == 0 {
			threshold = c.cfg.ForceTorque.TorqueThreshold
		}
		speed, accel := c.resolveJoint(MoveOptions{Speed: opts.Speed})
		timeout := opts.timeout()

		c.moveMu.Lock()
		defer c.moveMu.Unlock()

		step := speed * c.cfg.PollInterval.Seconds()
		deadline := c.clock.Now().Add(timeout)

		return c.execMove(ctx, func(moveCtx context.Context) error {
			ticker := c.clock.Ticker(c.cfg.PollInterval)
			defer ticker.Stop()

			for {
				if moveCtx.Err() != nil {
					return moveCtx.Err()
				}

				reading, err := c.ft.read()
				if err != nil {
					c.stopAfterGuardedMove()
					return errors.Wrap(err, "sensor read during guarded move")
				}
				if reading.TorqueMagnitude >= threshold {
					c.stopAfterGuardedMove()
					c.logger.Infof("torque contact at %.2fNm (threshold %.2fNm)", reading.TorqueMagnitude, threshold)
					return nil
				}

				angles, err := c.transport.GetServoAngle()
				if err != nil {
					return err
				}
				if joint >= len(angles) {
					return errors.Errorf("joint index %d out of range", joint)
				}
				remaining := targetAngle - angles[joint]
				if math.Abs(remaining) <= jointTargetEpsilon {
					c.logger.Infof("joint %d reached target %.2f without torque contact", joint+1, targetAngle)
					return nil
				}
				if !c.clock.Now().Before(deadline) {
					c.stopAfterGuardedMove()
					return &TimeoutError{Op: "torque-guarded joint move", Deadline: timeout.String()}
				}

				delta := math.Copysign(math.Min(step, math.Abs(remaining)), remaining)
				next := angles.Clone()
				next[joint] += delta
				if err := c.transport.SetServoAngle(next, speed, accel, true); err != nil {
					return err
				}

				select {
				case <-moveCtx.Done():
					return moveCtx.Err()
				case <-ticker.C:
				}
			}
		})
	})
}

// stopAfterGuardedMove halts the arm after a guarded move terminates, best
// effort: the primary outcome has already been decided.
func (c *Controller) stopAfterGuardedMove() {
	if err := c.transport.SetState(ArmStateReady); err != nil {
		c.logger.Debugf("post-move stop: %v", err)
	}
}
