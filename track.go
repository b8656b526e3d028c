package xarm

import (
	"context"

	"github.com/pkg/errors"
)

// requireTrack gates rail commands on configuration and state.
func (c *Controller) requireTrack() error {
	comp := c.components[ComponentTrack]
	if !comp.Configured() {
		return errors.Wrap(ErrComponentUnavailable, "track")
	}
	if !comp.Enabled() {
		return errors.Wrap(ErrComponentNotEnabled, "track")
	}
	if !c.transport.Connected() {
		return ErrNotConnected
	}
	return nil
}

// MoveTrack moves the linear rail to an absolute position in millimeters.
// Zero speed uses the configured default. Blocks until the rail settles.
func (c *Controller) MoveTrack(ctx context.Context, position, speed float64) error {
	return c.monitor.timeOp(OpMoveTrack, func() error {
		if err := c.requireTrack(); err != nil {
			return err
		}
		if err := c.validator.validateTrack(position); err != nil {
			c.emitSafetyViolation(err)
			return err
		}
		if speed == 0 {
			speed = c.cfg.Track.Speed
		}
		if err := c.validator.validateTrackSpeed(speed); err != nil {
			c.emitSafetyViolation(err)
			return err
		}

		c.moveMu.Lock()
		defer c.moveMu.Unlock()
		return c.execMove(ctx, func(context.Context) error {
			if err := c.transport.SetTrackPosition(position, speed, true); err != nil {
				return errors.Wrap(err, "track move")
			}
			return nil
		})
	})
}

// SetTrackSpeed changes the rail's default speed for subsequent moves.
func (c *Controller) SetTrackSpeed(ctx context.Context, speed float64) error {
	if err := c.requireTrack(); err != nil {
		return err
	}
	if err := c.validator.validateTrackSpeed(speed); err != nil {
		return err
	}
	return c.transport.SetTrackSpeed(speed)
}

// TrackPosition returns the rail's current position in millimeters.
func (c *Controller) TrackPosition(ctx context.Context) (float64, error) {
	if err := c.requireTrack(); err != nil {
		return 0, err
	}
	return c.transport.GetTrackPosition()
}
