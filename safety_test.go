package xarm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testValidator(t *testing.T, model int) *validator {
	t.Helper()
	cfg := &Config{Model: model, Track: TrackConfig{Enable: true}}
	require.NoError(t, cfg.Validate("test"))
	return newValidator(cfg)
}

func TestValidateJointLimits(t *testing.T) {
	v := testValidator(t, 5)

	t.Run("within limits", func(t *testing.T) {
		assert.NoError(t, v.validateJoints(JointAngles{0, 0, 0, 0, 0}))
	})

	t.Run("boundary is inclusive", func(t *testing.T) {
		assert.NoError(t, v.validateJoints(JointAngles{360, 120, 11, 180, -180}))
		assert.NoError(t, v.validateJoints(JointAngles{-360, -118, -225, -180, 180}))
	})

	t.Run("over limit rejected", func(t *testing.T) {
		err := v.validateJoints(JointAngles{0, 121, 0, 0, 0})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, JointLimitViolation, ve.Violation)
	})

	t.Run("wrong joint count rejected", func(t *testing.T) {
		err := v.validateJoints(JointAngles{0, 0, 0})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, JointLimitViolation, ve.Violation)
	})
}

func TestValidateSingleJoint(t *testing.T) {
	v := testValidator(t, 7)

	assert.NoError(t, v.validateSingleJoint(1, 100))
	assert.Error(t, v.validateSingleJoint(1, 130))
	assert.Error(t, v.validateSingleJoint(-1, 0))
	assert.Error(t, v.validateSingleJoint(7, 0))
}

func TestValidatePoseWorkspace(t *testing.T) {
	v := testValidator(t, 7)

	t.Run("inside workspace", func(t *testing.T) {
		assert.NoError(t, v.validatePose(Pose{X: 300, Z: 300, Roll: 180}))
	})

	t.Run("x out of reach", func(t *testing.T) {
		err := v.validatePose(Pose{X: 1000, Z: 300, Roll: 180})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, WorkspaceViolation, ve.Violation)
	})

	t.Run("z below floor", func(t *testing.T) {
		err := v.validatePose(Pose{X: 300, Z: -250, Roll: 180})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, WorkspaceViolation, ve.Violation)
	})
}

func TestValidatePoseRestrictedZone(t *testing.T) {
	cfg := &Config{
		Safety: SafetyConfig{
			Zones: []WorkspaceZone{
				{Name: "fixture", Min: [3]float64{200, -100, 0}, Max: [3]float64{400, 100, 150}},
			},
		},
	}
	require.NoError(t, cfg.Validate("test"))
	v := newValidator(cfg)

	err := v.validatePose(Pose{X: 300, Y: 0, Z: 100, Roll: 180})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Detail, "fixture")

	assert.NoError(t, v.validatePose(Pose{X: 300, Y: 0, Z: 200, Roll: 180}))
}

func TestValidateCollisionZone(t *testing.T) {
	v := testValidator(t, 7)

	// folded elbow with flexed wrist hits the default zone
	err := v.validateJoints(JointAngles{0, 0, -160, 0, 120, 0, 0})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, SelfCollisionViolation, ve.Violation)

	// either condition alone is fine
	assert.NoError(t, v.validateJoints(JointAngles{0, 0, -160, 0, 0, 0, 0}))
	assert.NoError(t, v.validateJoints(JointAngles{0, 0, 0, 0, 120, 0, 0}))
}

func TestSafetyLevelSpeedScaling(t *testing.T) {
	v := testValidator(t, 7)

	levels := []SafetyLevel{SafetyLow, SafetyMedium, SafetyHigh, SafetyEmergency}
	var prevSpeed float64
	for i, level := range levels {
		v.setLevel(level)
		speed, _ := v.resolveCartesianSpeed(10000, 0) // way over any cap
		if i > 0 {
			assert.Less(t, speed, prevSpeed, "%s must tighten the cap relative to %s", level, levels[i-1])
		}
		prevSpeed = speed
	}

	v.setLevel(SafetyEmergency)
	speed, _ := v.resolveCartesianSpeed(10000, 0)
	assert.InDelta(t, 150.0, speed, 1e-9) // 1500 * 0.1
}

func TestResolveSpeedKeepsModestRequests(t *testing.T) {
	v := testValidator(t, 7)
	v.setLevel(SafetyLow)

	speed, accel := v.resolveCartesianSpeed(100, 500)
	assert.Equal(t, 100.0, speed)
	assert.Equal(t, 500.0, accel)

	// zero request takes the scaled cap
	speed, _ = v.resolveCartesianSpeed(0, 0)
	assert.Equal(t, 1500.0, speed)
}

func TestValidateTrack(t *testing.T) {
	v := testValidator(t, 7)

	assert.NoError(t, v.validateTrack(350))
	assert.NoError(t, v.validateTrack(0))
	assert.NoError(t, v.validateTrack(700))

	err := v.validateTrack(701)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, TrackLimitViolation, ve.Violation)

	assert.Error(t, v.validateTrackSpeed(0))
	assert.NoError(t, v.validateTrackSpeed(500))
	assert.Error(t, v.validateTrackSpeed(5000))
}
