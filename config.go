package xarm

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"gopkg.in/yaml.v3"
)

// Hardware capability limits. User safety settings are clamped to these at
// validation time; they are never exceeded regardless of configuration.
var hardwareLimits = struct {
	workspace     AxisLimits
	maxTCPSpeed   float64
	maxJointSpeed float64
}{
	workspace: AxisLimits{
		X:     [2]float64{-800, 800},
		Y:     [2]float64{-800, 800},
		Z:     [2]float64{-400, 850},
		Roll:  [2]float64{-360, 360},
		Pitch: [2]float64{-180, 180},
		Yaw:   [2]float64{-360, 360},
	},
	maxTCPSpeed:   1500, // mm/s
	maxJointSpeed: 200,  // deg/s
}

// Joint limits in degrees per model. Inclusive bounds.
var modelJointLimits = map[int][][2]float64{
	5: {{-360, 360}, {-118, 120}, {-225, 11}, {-180, 180}, {-180, 180}},
	6: {{-360, 360}, {-118, 120}, {-225, 11}, {-180, 180}, {-180, 180}, {-360, 360}},
	7: {{-360, 360}, {-118, 120}, {-225, 11}, {-180, 180}, {-180, 180}, {-360, 360}, {-180, 180}},
}

// JointLimitsForModel returns a copy of the limit table for the given model,
// falling back to the 7-axis table for unknown models.
func JointLimitsForModel(model int) [][2]float64 {
	limits, ok := modelJointLimits[model]
	if !ok {
		limits = modelJointLimits[7]
	}
	out := make([][2]float64, len(limits))
	copy(out, limits)
	return out
}

// AxisLimits holds [min,max] bounds per Cartesian axis, mm and degrees.
type AxisLimits struct {
	X     [2]float64 `json:"x" yaml:"x"`
	Y     [2]float64 `json:"y" yaml:"y"`
	Z     [2]float64 `json:"z" yaml:"z"`
	Roll  [2]float64 `json:"roll" yaml:"roll"`
	Pitch [2]float64 `json:"pitch" yaml:"pitch"`
	Yaw   [2]float64 `json:"yaw" yaml:"yaw"`
}

// SafetyConfig bounds what the validator will accept.
type SafetyConfig struct {
	Workspace     AxisLimits      `json:"workspace" yaml:"workspace"`
	MaxTCPSpeed   float64         `json:"max_tcp_speed,omitempty" yaml:"max_tcp_speed,omitempty"`
	MaxTCPAccel   float64         `json:"max_tcp_accel,omitempty" yaml:"max_tcp_accel,omitempty"`
	MaxJointSpeed float64         `json:"max_joint_speed,omitempty" yaml:"max_joint_speed,omitempty"`
	MaxJointAccel float64         `json:"max_joint_accel,omitempty" yaml:"max_joint_accel,omitempty"`
	Zones         []WorkspaceZone `json:"zones,omitempty" yaml:"zones,omitempty"`
}

// GripperConfig describes the attached gripper, if any.
type GripperConfig struct {
	Kind     GripperKind   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Speed    float64       `json:"speed,omitempty" yaml:"speed,omitempty"`
	OpenPos  float64       `json:"open_pos" yaml:"open_pos"`
	ClosePos float64       `json:"close_pos,omitempty" yaml:"close_pos,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// TrackConfig describes the optional linear rail.
type TrackConfig struct {
	Enable     bool       `json:"enable" yaml:"enable"`
	Speed      float64    `json:"speed,omitempty" yaml:"speed,omitempty"`
	PosLimit   [2]float64 `json:"pos_limit,omitempty" yaml:"pos_limit,omitempty"`
	SpeedLimit [2]float64 `json:"speed_limit,omitempty" yaml:"speed_limit,omitempty"`
}

// ForceTorqueConfig configures the six-axis sensor and its thresholds.
type ForceTorqueConfig struct {
	Enable          bool    `json:"enable" yaml:"enable"`
	ForceThreshold  float64 `json:"force_threshold,omitempty" yaml:"force_threshold,omitempty"`   // N
	TorqueThreshold float64 `json:"torque_threshold,omitempty" yaml:"torque_threshold,omitempty"` // Nm
	DeadZone        float64 `json:"dead_zone,omitempty" yaml:"dead_zone,omitempty"`

	CalibrationSamples int           `json:"calibration_samples,omitempty" yaml:"calibration_samples,omitempty"`
	CalibrationDelay   time.Duration `json:"calibration_delay,omitempty" yaml:"calibration_delay,omitempty"`
}

// Config is the full controller configuration, consumed once at construction.
// External collaborators (CLI flags, YAML files) produce it; after Validate
// it is treated as read-only.
type Config struct {
	Host  string `json:"host,omitempty" yaml:"host,omitempty"`
	Model int    `json:"model,omitempty" yaml:"model,omitempty"`

	TCPSpeed float64 `json:"tcp_speed,omitempty" yaml:"tcp_speed,omitempty"` // mm/s
	TCPAccel float64 `json:"tcp_accel,omitempty" yaml:"tcp_accel,omitempty"` // mm/s^2

	JointSpeed float64 `json:"joint_speed,omitempty" yaml:"joint_speed,omitempty"` // deg/s
	JointAccel float64 `json:"joint_accel,omitempty" yaml:"joint_accel,omitempty"` // deg/s^2

	Gripper     GripperConfig     `json:"gripper,omitempty" yaml:"gripper,omitempty"`
	Track       TrackConfig       `json:"track,omitempty" yaml:"track,omitempty"`
	ForceTorque ForceTorqueConfig `json:"force_torque,omitempty" yaml:"force_torque,omitempty"`
	Safety      SafetyConfig      `json:"safety,omitempty" yaml:"safety,omitempty"`

	Locations map[string]NamedLocation `json:"locations,omitempty" yaml:"locations,omitempty"`

	AutoEnable      bool          `json:"auto_enable" yaml:"auto_enable"`
	ErrorHistoryCap int           `json:"error_history_cap,omitempty" yaml:"error_history_cap,omitempty"`
	PollInterval    time.Duration `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
	CommandTimeout  time.Duration `json:"command_timeout,omitempty" yaml:"command_timeout,omitempty"`

	// Not serialized
	Logger logging.Logger `json:"-" yaml:"-"`
}

// NumJoints derives the joint count from the model number (5/6/7 axes;
// anything else is treated as a 6-axis unit).
func (cfg *Config) NumJoints() int {
	if cfg.Model == 5 || cfg.Model == 6 || cfg.Model == 7 {
		return cfg.Model
	}
	return 6
}

func clampRange(r, hw [2]float64) [2]float64 {
	if r[0] == 0 && r[1] == 0 {
		return hw
	}
	if r[0] < hw[0] {
		r[0] = hw[0]
	}
	if r[1] > hw[1] {
		r[1] = hw[1]
	}
	return r
}

// Validate fills defaults and clamps user safety settings to hardware
// capability limits. It must be called before the config reaches
// NewController.
func (cfg *Config) Validate(path string) error {
	if cfg.Model == 0 {
		cfg.Model = 7
	}
	if _, ok := modelJointLimits[cfg.Model]; !ok {
		return errors.Errorf("%s: unsupported model %d (want 5, 6 or 7)", path, cfg.Model)
	}

	if cfg.TCPSpeed == 0 {
		cfg.TCPSpeed = 100
	}
	if cfg.TCPAccel == 0 {
		cfg.TCPAccel = 2000
	}
	if cfg.JointSpeed == 0 {
		cfg.JointSpeed = 20
	}
	if cfg.JointAccel == 0 {
		cfg.JointAccel = 500
	}

	if cfg.Gripper.Kind == "" {
		cfg.Gripper.Kind = GripperNone
	}
	switch cfg.Gripper.Kind {
	case GripperNone, GripperBio, GripperStandard, GripperRobotiq:
	default:
		return errors.Errorf("%s: unknown gripper kind %q", path, cfg.Gripper.Kind)
	}
	if cfg.Gripper.Kind != GripperNone {
		if cfg.Gripper.Speed == 0 {
			cfg.Gripper.Speed = 5000
		}
		if cfg.Gripper.ClosePos == 0 && cfg.Gripper.Kind != GripperRobotiq {
			cfg.Gripper.ClosePos = 800
		}
		if cfg.Gripper.Timeout == 0 {
			cfg.Gripper.Timeout = 5 * time.Second
		}
	}

	if cfg.Track.Enable {
		if cfg.Track.Speed == 0 {
			cfg.Track.Speed = 200
		}
		if cfg.Track.PosLimit == ([2]float64{}) {
			cfg.Track.PosLimit = [2]float64{0, 700}
		}
		if cfg.Track.SpeedLimit == ([2]float64{}) {
			cfg.Track.SpeedLimit = [2]float64{1, 1000}
		}
	}

	if cfg.ForceTorque.Enable {
		if cfg.ForceTorque.ForceThreshold == 0 {
			cfg.ForceTorque.ForceThreshold = 50
		}
		if cfg.ForceTorque.TorqueThreshold == 0 {
			cfg.ForceTorque.TorqueThreshold = 10
		}
		if cfg.ForceTorque.DeadZone == 0 {
			cfg.ForceTorque.DeadZone = 0.5
		}
		if cfg.ForceTorque.CalibrationSamples == 0 {
			cfg.ForceTorque.CalibrationSamples = 100
		}
		if cfg.ForceTorque.CalibrationDelay == 0 {
			cfg.ForceTorque.CalibrationDelay = 10 * time.Millisecond
		}
	}

	// Workspace defaults, then clamp everything to hardware capability.
	ws := &cfg.Safety.Workspace
	if *ws == (AxisLimits{}) {
		*ws = AxisLimits{
			X:     [2]float64{-700, 700},
			Y:     [2]float64{-700, 700},
			Z:     [2]float64{-200, 700},
			Roll:  [2]float64{-180, 180},
			Pitch: [2]float64{-180, 180},
			Yaw:   [2]float64{-180, 180},
		}
	}
	hw := hardwareLimits.workspace
	ws.X = clampRange(ws.X, hw.X)
	ws.Y = clampRange(ws.Y, hw.Y)
	ws.Z = clampRange(ws.Z, hw.Z)
	ws.Roll = clampRange(ws.Roll, hw.Roll)
	ws.Pitch = clampRange(ws.Pitch, hw.Pitch)
	ws.Yaw = clampRange(ws.Yaw, hw.Yaw)

	if cfg.Safety.MaxTCPSpeed == 0 || cfg.Safety.MaxTCPSpeed > hardwareLimits.maxTCPSpeed {
		cfg.Safety.MaxTCPSpeed = hardwareLimits.maxTCPSpeed
	}
	if cfg.Safety.MaxJointSpeed == 0 || cfg.Safety.MaxJointSpeed > hardwareLimits.maxJointSpeed {
		cfg.Safety.MaxJointSpeed = hardwareLimits.maxJointSpeed
	}
	if cfg.Safety.MaxTCPAccel == 0 {
		cfg.Safety.MaxTCPAccel = 50000
	}
	if cfg.Safety.MaxJointAccel == 0 {
		cfg.Safety.MaxJointAccel = 1145
	}

	for name, loc := range cfg.Locations {
		if loc.Joints != nil && len(loc.Joints) != cfg.NumJoints() {
			return errors.Errorf("%s: location %q has %d joint angles, model %d wants %d",
				path, name, len(loc.Joints), cfg.Model, cfg.NumJoints())
		}
	}

	if cfg.ErrorHistoryCap == 0 {
		cfg.ErrorHistoryCap = 100
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = 10 * time.Second
	}

	return nil
}

// LoadConfig reads a YAML configuration file and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %s", path)
	}
	if err := cfg.Validate(path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns a validated configuration with every component
// enabled, suitable for simulation and tests.
func DefaultConfig() *Config {
	cfg := &Config{
		Model:       7,
		AutoEnable:  true,
		Gripper:     GripperConfig{Kind: GripperBio},
		Track:       TrackConfig{Enable: true},
		ForceTorque: ForceTorqueConfig{Enable: true},
		Locations: map[string]NamedLocation{
			"home":   {Pose: &Pose{X: 300, Y: 0, Z: 300, Roll: 180}},
			"rest":   {Pose: &Pose{X: 300, Y: 0, Z: 400, Roll: 180}},
			"safety": {Pose: &Pose{X: 300, Y: 0, Z: 500, Roll: 180}},
		},
	}
	if err := cfg.Validate("default"); err != nil {
		// defaults are static, failure here is a programming error
		panic(err)
	}
	return cfg
}
