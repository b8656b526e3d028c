package xarm

import (
	"context"
	"sync"

	"go.viam.com/rdk/logging"
)

// simHomePose is the pose the virtual arm starts at after connecting.
var simHomePose = Pose{X: 300, Y: 0, Z: 300, Roll: 180}

// SimTransport is the software simulation backend. It keeps a coherent
// virtual pose/joint/track/gripper state and completes every accepted
// command synchronously; there is no telemetry goroutine. Disconnecting
// discards the virtual state.
//
// All geometry checking happens in the safety validator before commands
// reach this transport; the simulation itself only maintains state.
type SimTransport struct {
	mu     sync.Mutex
	logger logging.Logger

	connected bool
	numJoints int

	position Pose
	joints   JointAngles
	trackPos float64

	gripperEnabled bool
	gripperPos     float64
	trackEnabled   bool
	ftEnabled      bool

	// readingFn supplies force/torque samples; tests and demos replace it
	// to script ramps and spikes. Defaults to a zero reading.
	readingFn func() ForceTorqueReading

	// failNext maps an operation name to a vendor code returned (once) on
	// its next invocation, for fault-path testing.
	failNext map[string]int
}

// NewSimTransport creates a simulation backend for the given model.
func NewSimTransport(model int, logger logging.Logger) *SimTransport {
	numJoints := model
	if model != 5 && model != 6 && model != 7 {
		numJoints = 6
	}
	return &SimTransport{
		logger:    logger,
		numJoints: numJoints,
		failNext:  make(map[string]int),
	}
}

// SetReadingFunc replaces the force/torque sample source.
func (s *SimTransport) SetReadingFunc(fn func() ForceTorqueReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readingFn = fn
}

// FailNext arranges for the named operation to return the given vendor code
// exactly once. Operation names match the Transport method names.
func (s *SimTransport) FailNext(op string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[op] = code
}

func (s *SimTransport) takeFault(op string) error {
	if code, ok := s.failNext[op]; ok {
		delete(s.failNext, op)
		return &HardwareError{Code: code, Op: op}
	}
	return nil
}

func (s *SimTransport) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	s.position = simHomePose
	s.joints = make(JointAngles, s.numJoints)
	s.trackPos = 0
	s.logger.Debug("simulation transport connected")
	return nil
}

func (s *SimTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.joints = nil
	return nil
}

func (s *SimTransport) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *SimTransport) guard(op string) error {
	if !s.connected {
		return ErrNotConnected
	}
	return s.takeFault(op)
}

func (s *SimTransport) MotionEnable(enable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guard("MotionEnable")
}

func (s *SimTransport) SetMode(mode int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guard("SetMode")
}

func (s *SimTransport) SetState(state int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guard("SetState")
}

func (s *SimTransport) CleanError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guard("CleanError")
}

func (s *SimTransport) CleanWarn() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guard("CleanWarn")
}

func (s *SimTransport) EmergencyStop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guard("EmergencyStop")
}

func (s *SimTransport) SetServoAngle(angles JointAngles, speed, accel float64, wait bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard("SetServoAngle"); err != nil {
		return err
	}
	if len(angles) > s.numJoints {
		return &HardwareError{Code: CodeInvalidParam, Op: "SetServoAngle"}
	}
	s.joints = angles.Clone()
	return nil
}

func (s *SimTransport) SetPosition(target Pose, speed, accel float64, wait, relative bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard("SetPosition"); err != nil {
		return err
	}
	if relative {
		target = s.position.Add(target)
	}
	s.position = target
	return nil
}

func (s *SimTransport) GetPosition() (Pose, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard("GetPosition"); err != nil {
		return Pose{}, err
	}
	return s.position, nil
}

func (s *SimTransport) GetServoAngle() (JointAngles, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard("GetServoAngle"); err != nil {
		return nil, err
	}
	return s.joints.Clone(), nil
}

func (s *SimTransport) EnableGripper(kind GripperKind, enable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard("EnableGripper"); err != nil {
		return err
	}
	s.gripperEnabled = enable
	return nil
}

func (s *SimTransport) SetGripper(kind GripperKind, position, speed float64, wait bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard("SetGripper"); err != nil {
		return err
	}
	s.gripperPos = position
	return nil
}

func (s *SimTransport) EnableTrack(enable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard("EnableTrack"); err != nil {
		return err
	}
	s.trackEnabled = enable
	return nil
}

func (s *SimTransport) SetTrackSpeed(speed float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guard("SetTrackSpeed")
}

func (s *SimTransport) SetTrackPosition(position, speed float64, wait bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard("SetTrackPosition"); err != nil {
		return err
	}
	s.trackPos = position
	return nil
}

func (s *SimTransport) GetTrackPosition() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard("GetTrackPosition"); err != nil {
		return 0, err
	}
	return s.trackPos, nil
}

func (s *SimTransport) EnableForceTorque(enable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard("EnableForceTorque"); err != nil {
		return err
	}
	s.ftEnabled = enable
	return nil
}

func (s *SimTransport) ReadForceTorque() (ForceTorqueReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard("ReadForceTorque"); err != nil {
		return ForceTorqueReading{}, err
	}
	if s.readingFn != nil {
		return s.readingFn(), nil
	}
	return ForceTorqueReading{}, nil
}

// GripperPosition exposes the virtual gripper position for assertions.
func (s *SimTransport) GripperPosition() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gripperPos
}

// Telemetry returns nil: the simulation completes everything synchronously.
func (s *SimTransport) Telemetry() <-chan TelemetryEvent {
	return nil
}
