package xarm

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

func TestErrorHistoryBounded(t *testing.T) {
	h := newErrorHistory(3)
	for i := 1; i <= 5; i++ {
		h.add(ErrorRecord{Code: i, Message: fmt.Sprintf("fault %d", i)})
	}

	records := h.snapshot()
	require.Len(t, records, 3)
	assert.Equal(t, 3, records[0].Code, "oldest entries evicted first")
	assert.Equal(t, 5, records[2].Code)
	assert.Equal(t, 3, h.count())

	h.clear()
	assert.Zero(t, h.count())
}

func TestErrorHistoryStampsTime(t *testing.T) {
	h := newErrorHistory(10)
	h.add(ErrorRecord{Code: 1})
	assert.False(t, h.snapshot()[0].Timestamp.IsZero())
}

func TestRetryableCodes(t *testing.T) {
	for _, code := range []int{
		CodeCommRecvFail, CodeCommSendFail, CodeStateNotReady,
		CodeJointLimit, CodeJointSpeed, CodeCollision, CodeTCPSpeed,
	} {
		assert.True(t, isRetryableCode(code), "code %d", code)
	}
	assert.False(t, isRetryableCode(CodeHardJointLimit))
	assert.False(t, isRetryableCode(999))
}

func TestRecovererClearsFault(t *testing.T) {
	logger := logging.NewTestLogger(t)
	sim := NewSimTransport(7, logger)
	require.NoError(t, sim.Connect(context.Background()))

	var attempts []int
	r := newRecoverer(sim, logger, func(ev Event) {
		if ev.Kind == EventRecoveryAttempt {
			attempts = append(attempts, ev.Attempt)
		}
	})

	require.NoError(t, r.recover(CodeCollision, ComponentArm))
	assert.Equal(t, []int{1}, attempts, "clean sequence succeeds on the first attempt")
}

func TestRecovererRetriesThenSucceeds(t *testing.T) {
	logger := logging.NewTestLogger(t)
	sim := NewSimTransport(7, logger)
	require.NoError(t, sim.Connect(context.Background()))

	// first rearm cycle fails at CleanError, second goes through
	sim.FailNext("CleanError", CodeCommRecvFail)

	var attempts []int
	r := newRecoverer(sim, logger, func(ev Event) {
		if ev.Kind == EventRecoveryAttempt {
			attempts = append(attempts, ev.Attempt)
		}
	})

	require.NoError(t, r.recover(CodeCollision, ComponentArm))
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestRecovererExhaustsAttempts(t *testing.T) {
	logger := logging.NewTestLogger(t)
	sim := NewSimTransport(7, logger)
	// never connected: every rearm call fails

	var attempts, exhausted int
	r := newRecoverer(sim, logger, func(ev Event) {
		switch ev.Kind {
		case EventRecoveryAttempt:
			attempts++
		case EventRecoveryFailed:
			exhausted++
		}
	})

	err := r.recover(CodeCollision, ComponentArm)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exhausted")
	assert.Equal(t, maxRecoveryAttempts, attempts)
	assert.Equal(t, 1, exhausted)
}

func TestRecovererRejectsFatalCode(t *testing.T) {
	logger := logging.NewTestLogger(t)
	sim := NewSimTransport(7, logger)
	require.NoError(t, sim.Connect(context.Background()))

	r := newRecoverer(sim, logger, func(Event) {})
	err := r.recover(CodeHardJointLimit, ComponentArm)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecoverable")
}

func TestControllerRecoversFromCollision(t *testing.T) {
	c, sim := newTestController(t, testConfig(t))

	sim.FailNext("SetPosition", CodeCollision)
	err := c.MoveToPosition(context.Background(), Pose{X: 350, Z: 300, Roll: 180}, MoveOptions{})

	var hwErr *HardwareError
	require.ErrorAs(t, err, &hwErr)
	assert.Equal(t, CodeCollision, hwErr.Code)

	// recovery restored the arm for the next command
	assert.True(t, c.IsComponentEnabled(ComponentArm))
	require.NoError(t, c.MoveToPosition(context.Background(), Pose{X: 350, Z: 300, Roll: 180}, MoveOptions{}))

	records := c.ErrorHistory(0)
	require.NotEmpty(t, records)
	assert.Equal(t, CodeCollision, records[0].Code)
}

func TestControllerFatalErrorDisablesArm(t *testing.T) {
	c, sim := newTestController(t, testConfig(t))

	sim.FailNext("SetPosition", CodeHardJointLimit)
	err := c.MoveToPosition(context.Background(), Pose{X: 350, Z: 300, Roll: 180}, MoveOptions{})
	require.Error(t, err)

	assert.False(t, c.IsComponentEnabled(ComponentArm))
	err = c.MoveToPosition(context.Background(), Pose{X: 350, Z: 300, Roll: 180}, MoveOptions{})
	require.ErrorIs(t, err, ErrComponentNotEnabled)

	// operator intervention: clear errors, re-enable, move again
	require.NoError(t, c.ClearErrors(context.Background()))
	require.NoError(t, c.EnableComponent(context.Background(), ComponentArm))
	require.NoError(t, c.MoveToPosition(context.Background(), Pose{X: 350, Z: 300, Roll: 180}, MoveOptions{}))
}
