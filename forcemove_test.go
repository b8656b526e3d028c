package xarm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rampReading returns a force sample source whose Z force grows by stepN on
// every read, starting after calibration completes.
func rampReading(stepN float64) func() ForceTorqueReading {
	var mu sync.Mutex
	var calls int
	return func() ForceTorqueReading {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return ForceTorqueReading{0, 0, stepN * float64(calls), 0, 0, 0}
	}
}

func calibratedController(t *testing.T) (*Controller, *SimTransport) {
	t.Helper()
	c, sim := newTestController(t, testConfig(t))
	require.NoError(t, c.CalibrateForceTorque(context.Background(), 0, 0))
	return c, sim
}

func TestMoveUntilForceRequiresCalibration(t *testing.T) {
	c, _ := newTestController(t, testConfig(t))

	err := c.MoveUntilForce(context.Background(), r3.Vector{Z: -1}, ForceMoveOptions{})
	require.ErrorIs(t, err, ErrNotCalibrated)
}

func TestMoveUntilForceContactSucceeds(t *testing.T) {
	c, sim := calibratedController(t)
	sim.SetReadingFunc(rampReading(1)) // 1N per tick

	before, err := sim.GetPosition()
	require.NoError(t, err)

	err = c.MoveUntilForce(context.Background(), r3.Vector{Z: -1}, ForceMoveOptions{
		Threshold: 5,
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)

	// four sub-threshold reads each issued one step; the fifth read crossed
	// the threshold before any further motion
	after, err := sim.GetPosition()
	require.NoError(t, err)
	step := 100.0 * c.cfg.PollInterval.Seconds() // default speed, medium level keeps it
	assert.InDelta(t, before.Z-4*step, after.Z, 1e-9)
	assert.False(t, c.IsMoving())
}

func TestMoveUntilForceTimesOut(t *testing.T) {
	c, sim := calibratedController(t)
	sim.SetReadingFunc(func() ForceTorqueReading {
		return ForceTorqueReading{0, 0, 1, 0, 0, 0} // never reaches threshold
	})

	err := c.MoveUntilForce(context.Background(), r3.Vector{Z: -1}, ForceMoveOptions{
		Threshold: 50,
		Timeout:   20 * time.Millisecond,
	})
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
}

func TestMoveUntilForceStopsAtWorkspaceEdge(t *testing.T) {
	c, sim := calibratedController(t)
	// park near the floor so the descent exits the workspace quickly
	require.NoError(t, c.MoveToPosition(context.Background(), Pose{X: 300, Z: -199.9, Roll: 180}, MoveOptions{}))
	sim.SetReadingFunc(func() ForceTorqueReading { return ForceTorqueReading{} })

	err := c.MoveUntilForce(context.Background(), r3.Vector{Z: -1}, ForceMoveOptions{
		Threshold: 50,
		Timeout:   5 * time.Second,
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, WorkspaceViolation, ve.Violation)
}

func TestMoveUntilForceRejectsZeroDirection(t *testing.T) {
	c, _ := calibratedController(t)
	err := c.MoveUntilForce(context.Background(), r3.Vector{}, ForceMoveOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-zero")
}

func TestMoveJointUntilTorqueContact(t *testing.T) {
	c, sim := calibratedController(t)

	var mu sync.Mutex
	var calls int
	sim.SetReadingFunc(func() ForceTorqueReading {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return ForceTorqueReading{0, 0, 0, float64(calls), 0, 0} // 1Nm per tick
	})

	err := c.MoveJointUntilTorque(context.Background(), 0, 90, ForceMoveOptions{
		Threshold: 3,
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)

	// contact fired well before the 90 degree target
	got, err := sim.GetServoAngle()
	require.NoError(t, err)
	assert.Less(t, got[0], 1.0)
}

func TestMoveJointUntilTorqueReachesTarget(t *testing.T) {
	c, sim := calibratedController(t)
	sim.SetReadingFunc(func() ForceTorqueReading { return ForceTorqueReading{} })

	// small target so the walk finishes in a handful of ticks
	err := c.MoveJointUntilTorque(context.Background(), 0, 0.3, ForceMoveOptions{
		Threshold: 50,
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)

	got, err := sim.GetServoAngle()
	require.NoError(t, err)
	assert.Greater(t, got[0], 0.0, "the joint actually moved")
	assert.InDelta(t, 0.3, got[0], jointTargetEpsilon+1e-9)
}

func TestMoveJointUntilTorqueTimesOut(t *testing.T) {
	c, sim := calibratedController(t)
	sim.SetReadingFunc(func() ForceTorqueReading { return ForceTorqueReading{} })

	// distant target, no torque: the deadline fires first
	err := c.MoveJointUntilTorque(context.Background(), 0, 180, ForceMoveOptions{
		Threshold: 50,
		Timeout:   20 * time.Millisecond,
	})
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
}

func TestStopMotionCancelsGuardedMove(t *testing.T) {
	c, sim := calibratedController(t)
	sim.SetReadingFunc(func() ForceTorqueReading { return ForceTorqueReading{} })

	// distant target and no torque: the walk would run for seconds
	result := make(chan error, 1)
	go func() {
		result <- c.MoveJointUntilTorque(context.Background(), 0, 180, ForceMoveOptions{
			Threshold: 50,
			Timeout:   time.Minute,
		})
	}()

	require.Eventually(t, c.IsMoving, time.Second, time.Millisecond)
	require.NoError(t, c.StopMotion(context.Background()))

	select {
	case err := <-result:
		require.ErrorIs(t, err, ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("cancelled move did not return")
	}
}

func TestDisableComponentBusyDuringMove(t *testing.T) {
	c, sim := calibratedController(t)
	sim.SetReadingFunc(func() ForceTorqueReading { return ForceTorqueReading{} })

	result := make(chan error, 1)
	go func() {
		result <- c.MoveJointUntilTorque(context.Background(), 0, 180, ForceMoveOptions{
			Threshold: 50,
			Timeout:   time.Minute,
		})
	}()

	require.Eventually(t, c.IsMoving, time.Second, time.Millisecond)

	// motion-critical components cannot be disabled mid-move
	require.ErrorIs(t, c.DisableComponent(context.Background(), ComponentArm), ErrBusy)
	require.ErrorIs(t, c.DisableComponent(context.Background(), ComponentTrack), ErrBusy)
	require.ErrorIs(t, c.DisableComponent(context.Background(), ComponentConnection), ErrBusy)
	// the gripper is not, it plays no part in the move
	require.NoError(t, c.DisableComponent(context.Background(), ComponentGripper))

	require.NoError(t, c.StopMotion(context.Background()))
	select {
	case err := <-result:
		require.ErrorIs(t, err, ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("cancelled move did not return")
	}
}

func TestStopMotionWhileIdle(t *testing.T) {
	c, _ := newTestController(t, testConfig(t))
	require.NoError(t, c.StopMotion(context.Background()))
	// controller remains usable
	require.NoError(t, c.MoveToPosition(context.Background(), Pose{X: 320, Z: 300, Roll: 180}, MoveOptions{}))
}

func TestCheckForceTorqueSafetyLatchesAlert(t *testing.T) {
	c, sim := calibratedController(t)

	var violations []string
	c.RegisterCallback(EventSafetyViolation, func(ev Event) {
		violations = append(violations, ev.Message)
	})

	sim.SetReadingFunc(func() ForceTorqueReading {
		return ForceTorqueReading{100, 0, 0, 0, 0, 0}
	})
	ok, reading, err := c.CheckForceTorqueSafety(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.InDelta(t, 100.0, reading.TotalMagnitude, 1e-9)
	assert.True(t, c.SafetyAlertActive())
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "force")

	require.NoError(t, c.ClearErrors(context.Background()))
	assert.False(t, c.SafetyAlertActive())
}
