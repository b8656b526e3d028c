package xarm

import (
	"math"
	"time"

	"github.com/golang/geo/r3"
)

// ComponentKind identifies one of the controller-owned components.
type ComponentKind string

const (
	ComponentConnection  ComponentKind = "connection"
	ComponentArm         ComponentKind = "arm"
	ComponentGripper     ComponentKind = "gripper"
	ComponentTrack       ComponentKind = "track"
	ComponentForceTorque ComponentKind = "force_torque"
)

// ComponentState tracks the lifecycle of a single component.
type ComponentState string

const (
	StateUnknown  ComponentState = "unknown"
	StateEnabling ComponentState = "enabling"
	StateEnabled  ComponentState = "enabled"
	StateDisabled ComponentState = "disabled"
	StateError    ComponentState = "error"
)

// GripperKind selects which vendor gripper is attached, if any.
type GripperKind string

const (
	GripperNone     GripperKind = "none"
	GripperBio      GripperKind = "bio"
	GripperStandard GripperKind = "standard"
	GripperRobotiq  GripperKind = "robotiq"
)

// SafetyLevel scales speed/acceleration caps and validation strictness.
// Higher levels always produce an envelope no larger than lower ones.
type SafetyLevel int

const (
	SafetyLow SafetyLevel = iota
	SafetyMedium
	SafetyHigh
	SafetyEmergency
)

func (l SafetyLevel) String() string {
	switch l {
	case SafetyLow:
		return "low"
	case SafetyMedium:
		return "medium"
	case SafetyHigh:
		return "high"
	case SafetyEmergency:
		return "emergency"
	}
	return "unknown"
}

// SpeedScale returns the multiplier applied to configured speed and
// acceleration caps at this level.
func (l SafetyLevel) SpeedScale() float64 {
	switch l {
	case SafetyLow:
		return 1.0
	case SafetyMedium:
		return 0.8
	case SafetyHigh:
		return 0.5
	case SafetyEmergency:
		return 0.1
	}
	return 0.5
}

// Pose is a Cartesian TCP pose in millimeters and degrees. Value type,
// immutable once constructed.
type Pose struct {
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
	Z     float64 `json:"z" yaml:"z"`
	Roll  float64 `json:"roll" yaml:"roll"`
	Pitch float64 `json:"pitch" yaml:"pitch"`
	Yaw   float64 `json:"yaw" yaml:"yaw"`
}

// Point returns the translation component of the pose.
func (p Pose) Point() r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}
}

// Add returns the component-wise sum of two poses, used for relative moves.
func (p Pose) Add(d Pose) Pose {
	return Pose{
		X: p.X + d.X, Y: p.Y + d.Y, Z: p.Z + d.Z,
		Roll: p.Roll + d.Roll, Pitch: p.Pitch + d.Pitch, Yaw: p.Yaw + d.Yaw,
	}
}

// JointAngles is an ordered set of joint angles in degrees, length equal to
// the model's joint count.
type JointAngles []float64

// Clone returns an independent copy so cached state cannot alias caller slices.
func (j JointAngles) Clone() JointAngles {
	out := make(JointAngles, len(j))
	copy(out, j)
	return out
}

// ForceTorqueReading is raw or zero-compensated six-axis sensor data:
// [fx, fy, fz, tx, ty, tz] in N and Nm.
type ForceTorqueReading [6]float64

// Force returns the linear force components.
func (r ForceTorqueReading) Force() r3.Vector {
	return r3.Vector{X: r[0], Y: r[1], Z: r[2]}
}

// Torque returns the rotational components.
func (r ForceTorqueReading) Torque() r3.Vector {
	return r3.Vector{X: r[3], Y: r[4], Z: r[5]}
}

// Sub subtracts a baseline (zero point) from the reading.
func (r ForceTorqueReading) Sub(zero ForceTorqueReading) ForceTorqueReading {
	var out ForceTorqueReading
	for i := range r {
		out[i] = r[i] - zero[i]
	}
	return out
}

// ForceMagnitude is the Euclidean norm of the force components.
func (r ForceTorqueReading) ForceMagnitude() float64 {
	return math.Sqrt(r[0]*r[0] + r[1]*r[1] + r[2]*r[2])
}

// TorqueMagnitude is the Euclidean norm of the torque components.
func (r ForceTorqueReading) TorqueMagnitude() float64 {
	return math.Sqrt(r[3]*r[3] + r[4]*r[4] + r[5]*r[5])
}

// NamedLocation is a configuration-time alias for either a pose, a joint
// configuration, or a track position. Exactly one field set is meaningful.
type NamedLocation struct {
	Pose   *Pose       `json:"pose,omitempty" yaml:"pose,omitempty"`
	Joints JointAngles `json:"joints,omitempty" yaml:"joints,omitempty"`
	Track  *float64    `json:"track,omitempty" yaml:"track,omitempty"`
}

// CollisionZone flags likely self-collision between a pair of joints. The
// predicate is evaluated against the two joint angles in degrees; true means
// the configuration is rejected.
type CollisionZone struct {
	Name      string
	JointA    int
	JointB    int
	Predicate func(a, b float64) bool
}

// WorkspaceZone is an axis-aligned box the TCP must stay out of (table,
// robot base). Bounds in millimeters.
type WorkspaceZone struct {
	Name string     `yaml:"name"`
	Min  [3]float64 `yaml:"min"`
	Max  [3]float64 `yaml:"max"`
}

// Contains reports whether the point lies inside the box, boundary inclusive.
func (z WorkspaceZone) Contains(p r3.Vector) bool {
	return p.X >= z.Min[0] && p.X <= z.Max[0] &&
		p.Y >= z.Min[1] && p.Y <= z.Max[1] &&
		p.Z >= z.Min[2] && p.Z <= z.Max[2]
}

// ErrorRecord is one entry in the bounded fault history.
type ErrorRecord struct {
	Code      int           `json:"code"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
	Component ComponentKind `json:"component"`
}

// OperationKind labels a motion command for performance tracking.
type OperationKind string

const (
	OpMoveCartesian OperationKind = "move_cartesian"
	OpMoveJoint     OperationKind = "move_joint"
	OpMoveTrack     OperationKind = "move_track"
	OpGripper       OperationKind = "gripper"
	OpForceMove     OperationKind = "force_move"
)

// PerformanceSample records the outcome of a single motion command.
type PerformanceSample struct {
	Operation OperationKind
	Duration  time.Duration
	Success   bool
}

// ConnectionInfo describes an established session.
type ConnectionInfo struct {
	SessionID string `json:"session_id"`
	Backend   string `json:"backend"`
	Host      string `json:"host,omitempty"`
	Model     int    `json:"model"`
	NumJoints int    `json:"num_joints"`
}

// SystemInfo describes the configured system: model, attachments, liveness.
// Unlike StatusSnapshot it carries no telemetry, only configuration and
// component states.
type SystemInfo struct {
	Model           int                              `json:"model"`
	NumJoints       int                              `json:"num_joints"`
	GripperKind     GripperKind                      `json:"gripper_kind"`
	HasGripper      bool                             `json:"has_gripper"`
	HasTrack        bool                             `json:"has_track"`
	HasForceTorque  bool                             `json:"has_force_torque"`
	Connected       bool                             `json:"connected"`
	Alive           bool                             `json:"alive"`
	AutoEnable      bool                             `json:"auto_enable"`
	ComponentStates map[ComponentKind]ComponentState `json:"component_states"`
}

// ComponentStatus is the per-component slice of a StatusSnapshot.
type ComponentStatus struct {
	State     ComponentState `json:"state"`
	LastError string         `json:"last_error,omitempty"`
}

// StatusSnapshot is a point-in-time view of the whole system, safe to
// serialize for the API layer.
type StatusSnapshot struct {
	Timestamp     time.Time                         `json:"timestamp"`
	Connected     bool                              `json:"connected"`
	Alive         bool                              `json:"alive"`
	SafetyLevel   string                            `json:"safety_level"`
	Components    map[ComponentKind]ComponentStatus `json:"components"`
	Position      Pose                              `json:"position"`
	Joints        JointAngles                       `json:"joints"`
	TrackPosition float64                           `json:"track_position"`
	GripperKind   GripperKind                       `json:"gripper_kind"`
	LastErrorCode int                               `json:"last_error_code"`
	LastWarnCode  int                               `json:"last_warn_code"`
	ErrorCount    int                               `json:"error_count"`
}

// MoveOptions carries optional motion parameters. Zero values mean "use the
// configured defaults"; the safety validator caps whatever is requested.
type MoveOptions struct {
	Speed        float64
	Acceleration float64
	NoWait       bool
}
