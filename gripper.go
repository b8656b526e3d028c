package xarm

import (
	"context"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// requireGripper gates gripper commands on configuration and state.
func (c *Controller) requireGripper() error {
	comp := c.components[ComponentGripper]
	if !comp.Configured() {
		return errors.Wrap(ErrComponentUnavailable, "gripper")
	}
	if !comp.Enabled() {
		return errors.Wrap(ErrComponentNotEnabled, "gripper")
	}
	if !c.transport.Connected() {
		return ErrNotConnected
	}
	return nil
}

// OpenGripper drives the gripper to its configured open position.
func (c *Controller) OpenGripper(ctx context.Context) error {
	return c.SetGripperPosition(ctx, c.cfg.Gripper.OpenPos)
}

// CloseGripper drives the gripper to its configured closed position.
func (c *Controller) CloseGripper(ctx context.Context) error {
	return c.SetGripperPosition(ctx, c.cfg.Gripper.ClosePos)
}

// SetGripperPosition moves the gripper to an absolute position in vendor
// units. Blocks until the gripper settles or its configured timeout.
func (c *Controller) SetGripperPosition(ctx context.Context, position float64) error {
	return c.monitor.timeOp(OpGripper, func() error {
		if err := c.requireGripper(); err != nil {
			return err
		}

		kind := c.cfg.Gripper.Kind
		done := make(chan error, 1)
		goutils.PanicCapturingGo(func() {
			done <- c.transport.SetGripper(kind, position, c.cfg.Gripper.Speed, true)
		})

		timer := c.clock.Timer(c.cfg.Gripper.Timeout)
		defer timer.Stop()
		select {
		case err := <-done:
			if err != nil {
				var hwErr *HardwareError
				if errors.As(err, &hwErr) {
					c.recordError(hwErr.Code, hwErr.Error(), ComponentGripper)
				}
				return errors.Wrapf(err, "%s gripper", kind)
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return &TimeoutError{Op: "gripper move", Deadline: c.cfg.Gripper.Timeout.String()}
		}
	})
}
