package xarm

import (
	"context"
	"time"
)

// Vendor result codes surfaced by the transport. Non-zero codes become
// HardwareError values and feed the recovery table.
const (
	CodeOK             = 0
	CodeCommRecvFail   = 1
	CodeCommSendFail   = 2
	CodeStateNotReady  = 4
	CodeInvalidParam   = 19
	CodeJointLimit     = 23
	CodeJointSpeed     = 24
	CodeCollision      = 31
	CodeHardJointLimit = 38
	CodeTCPSpeed       = 60
)

// TelemetryKind discriminates asynchronous transport reports.
type TelemetryKind int

const (
	TelemetryState TelemetryKind = iota
	TelemetryErrorWarn
	TelemetryPosition
)

// Arm run states reported via TelemetryState. State 4 is the vendor's
// emergency/fault state; anything >= 4 halts operation.
const (
	ArmStateReady      = 0
	ArmStateEmergency  = 4
	ArmStateRecovering = 5
)

// TelemetryEvent is one unsolicited report from the hardware or simulator
// backend. The software simulation backend produces none.
type TelemetryEvent struct {
	Kind      TelemetryKind
	Timestamp time.Time

	// TelemetryState
	State int

	// TelemetryErrorWarn
	ErrorCode int
	WarnCode  int

	// TelemetryPosition
	Position Pose
	Joints   JointAngles
}

// Transport is the uniform command/telemetry surface over the three
// backends: in-memory simulation, networked simulator, real hardware. The
// controller owns the transport exclusively; callers never touch it.
//
// Command methods return nil on success, *HardwareError for a non-zero
// vendor result code, and other errors for transport-level failures.
type Transport interface {
	Connect(ctx context.Context) error
	Close() error
	Connected() bool

	// Arm session management
	MotionEnable(enable bool) error
	SetMode(mode int) error
	SetState(state int) error
	CleanError() error
	CleanWarn() error
	EmergencyStop() error

	// Motion
	SetServoAngle(angles JointAngles, speed, accel float64, wait bool) error
	SetPosition(target Pose, speed, accel float64, wait, relative bool) error
	GetPosition() (Pose, error)
	GetServoAngle() (JointAngles, error)

	// Gripper
	EnableGripper(kind GripperKind, enable bool) error
	SetGripper(kind GripperKind, position, speed float64, wait bool) error

	// Linear track
	EnableTrack(enable bool) error
	SetTrackSpeed(speed float64) error
	SetTrackPosition(position, speed float64, wait bool) error
	GetTrackPosition() (float64, error)

	// Force/torque sensor
	EnableForceTorque(enable bool) error
	ReadForceTorque() (ForceTorqueReading, error)

	// Telemetry returns the asynchronous event channel, or nil when the
	// backend completes everything synchronously (software simulation).
	Telemetry() <-chan TelemetryEvent
}
