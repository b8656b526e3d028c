package xarm

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidateDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate("test"))

	assert.Equal(t, 7, cfg.Model)
	assert.Equal(t, 7, cfg.NumJoints())
	assert.Equal(t, 100.0, cfg.TCPSpeed)
	assert.Equal(t, 20.0, cfg.JointSpeed)
	assert.Equal(t, GripperNone, cfg.Gripper.Kind)
	assert.Equal(t, 100, cfg.ErrorHistoryCap)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.CommandTimeout)

	// workspace defaults
	assert.Equal(t, [2]float64{-700, 700}, cfg.Safety.Workspace.X)
	assert.Equal(t, [2]float64{-200, 700}, cfg.Safety.Workspace.Z)
	assert.Equal(t, 1500.0, cfg.Safety.MaxTCPSpeed)
	assert.Equal(t, 200.0, cfg.Safety.MaxJointSpeed)
}

func TestConfigValidateClampsToHardware(t *testing.T) {
	cfg := &Config{
		Safety: SafetyConfig{
			Workspace: AxisLimits{
				X:     [2]float64{-2000, 2000},
				Y:     [2]float64{-100, 100},
				Z:     [2]float64{-500, 900},
				Roll:  [2]float64{-360, 360},
				Pitch: [2]float64{-180, 180},
				Yaw:   [2]float64{-360, 360},
			},
			MaxTCPSpeed:   9999,
			MaxJointSpeed: 9999,
		},
	}
	require.NoError(t, cfg.Validate("test"))

	assert.Equal(t, [2]float64{-800, 800}, cfg.Safety.Workspace.X, "x clamped to hardware")
	assert.Equal(t, [2]float64{-100, 100}, cfg.Safety.Workspace.Y, "tighter than hardware kept")
	assert.Equal(t, [2]float64{-400, 850}, cfg.Safety.Workspace.Z)
	assert.Equal(t, 1500.0, cfg.Safety.MaxTCPSpeed)
	assert.Equal(t, 200.0, cfg.Safety.MaxJointSpeed)
}

func TestConfigValidateRejectsBadModel(t *testing.T) {
	cfg := &Config{Model: 9}
	err := cfg.Validate("test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported model")
}

func TestConfigValidateLocationJointCount(t *testing.T) {
	cfg := &Config{
		Model: 5,
		Locations: map[string]NamedLocation{
			"bad": {Joints: JointAngles{0, 0, 0}},
		},
	}
	err := cfg.Validate("test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "joint angles")
}

func TestJointLimitsForModel(t *testing.T) {
	for _, tc := range []struct {
		model int
		want  int
	}{
		{5, 5}, {6, 6}, {7, 7}, {99, 7},
	} {
		limits := JointLimitsForModel(tc.model)
		assert.Len(t, limits, tc.want, "model %d", tc.model)
	}

	// returned table is a copy
	limits := JointLimitsForModel(5)
	limits[0][0] = -1
	assert.Equal(t, -360.0, JointLimitsForModel(5)[0][0])
}

func TestLoadConfig(t *testing.T) {
	data := `
model: 6
host: 192.168.1.100
gripper:
  kind: bio
track:
  enable: true
force_torque:
  enable: true
  force_threshold: 25
locations:
  pickup:
    pose: {x: 400, y: 50, z: 150, roll: 180, pitch: 0, yaw: 0}
  stow:
    joints: [0, -30, -60, 0, 90, 0]
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Model)
	assert.Equal(t, "192.168.1.100", cfg.Host)
	assert.Equal(t, GripperBio, cfg.Gripper.Kind)
	assert.Equal(t, 25.0, cfg.ForceTorque.ForceThreshold)
	assert.Equal(t, 10.0, cfg.ForceTorque.TorqueThreshold, "torque threshold defaulted")

	require.Contains(t, cfg.Locations, "pickup")
	require.NotNil(t, cfg.Locations["pickup"].Pose)
	assert.Equal(t, 400.0, cfg.Locations["pickup"].Pose.X)
	assert.Len(t, cfg.Locations["stow"].Joints, 6)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
