package xarm

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	goutils "go.viam.com/utils"
)

// Wire protocol constants. Frames are little-endian:
// [0xAA 0x55][type][seq][cmd][len uint16][payload...][checksum]
// where checksum is the complement of the byte sum from type onward,
// matching the vendor's register protocol framing.
const (
	frameHeader0 = 0xAA
	frameHeader1 = 0x55

	frameTypeCommand  = 0x01
	frameTypeResponse = 0x02
	frameTypeEvent    = 0x03

	// Command identifiers
	cmdMotionEnable  = 0x10
	cmdSetMode       = 0x11
	cmdSetState      = 0x12
	cmdCleanError    = 0x13
	cmdCleanWarn     = 0x14
	cmdEmergencyStop = 0x15

	cmdSetServoAngle = 0x20
	cmdSetPosition   = 0x21
	cmdGetPosition   = 0x22
	cmdGetServoAngle = 0x23

	cmdEnableGripper = 0x30
	cmdSetGripper    = 0x31

	cmdEnableTrack      = 0x40
	cmdSetTrackSpeed    = 0x41
	cmdSetTrackPosition = 0x42
	cmdGetTrackPosition = 0x43

	cmdEnableForceTorque = 0x50
	cmdReadForceTorque   = 0x51

	// Event payload discriminators
	eventState     = 0x01
	eventErrorWarn = 0x02
	eventPosition  = 0x03

	defaultPort      = "502"
	telemetryBacklog = 32
)

// TCPTransport speaks the framed command/telemetry protocol to either the
// dockerized physics simulator or real hardware; the two differ only in
// address. A background reader routes responses to in-flight calls and
// pushes unsolicited frames onto a bounded telemetry channel.
type TCPTransport struct {
	host    string
	timeout time.Duration
	logger  logging.Logger

	mu      sync.Mutex // guards conn writes, seq, pending
	conn    net.Conn
	seq     uint8
	pending map[uint8]chan []byte

	telemetry chan TelemetryEvent
	readerWG  sync.WaitGroup
}

// NewTCPTransport creates a transport for the given host. Port defaults to
// the vendor control port when absent.
func NewTCPTransport(host string, timeout time.Duration, logger logging.Logger) *TCPTransport {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &TCPTransport{
		host:    host,
		timeout: timeout,
		logger:  logger,
	}
}

func (t *TCPTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}

	addr := t.host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, defaultPort)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &ConnectionError{Host: addr, Err: err}
	}

	t.conn = conn
	t.pending = make(map[uint8]chan []byte)
	t.telemetry = make(chan TelemetryEvent, telemetryBacklog)

	t.readerWG.Add(1)
	goutils.PanicCapturingGo(func() {
		defer t.readerWG.Done()
		t.readLoop(conn)
	})

	t.logger.Infof("connected to %s", addr)
	return nil
}

func (t *TCPTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close()
	t.readerWG.Wait()
	return err
}

func (t *TCPTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// readLoop owns the read side of the connection. Responses are matched to
// pending calls by sequence number; event frames become telemetry.
func (t *TCPTransport) readLoop(conn net.Conn) {
	for {
		frameType, seq, payload, err := readFrame(conn)
		if err != nil {
			if err != io.EOF {
				t.logger.Debugf("transport read loop ended: %v", err)
			}
			t.failPending(err)
			return
		}

		switch frameType {
		case frameTypeResponse:
			t.mu.Lock()
			ch, ok := t.pending[seq]
			delete(t.pending, seq)
			t.mu.Unlock()
			if ok {
				ch <- payload
			}
		case frameTypeEvent:
			ev, ok := decodeEvent(payload)
			if !ok {
				t.logger.Warnf("dropping malformed event frame (%d bytes)", len(payload))
				continue
			}
			select {
			case t.telemetry <- ev:
			default:
				// Bounded channel: drop the oldest rather than block the
				// reader behind a slow consumer.
				select {
				case <-t.telemetry:
				default:
				}
				t.telemetry <- ev
			}
		}
	}
}

func (t *TCPTransport) failPending(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for seq, ch := range t.pending {
		close(ch)
		delete(t.pending, seq)
	}
}

// call sends one command frame and waits for its response. The first
// response byte is the vendor result code.
func (t *TCPTransport) call(op string, cmd byte, payload []byte) ([]byte, error) {
	t.mu.Lock()
	conn := t.conn
	if conn == nil {
		t.mu.Unlock()
		return nil, ErrNotConnected
	}
	t.seq++
	seq := t.seq
	ch := make(chan []byte, 1)
	t.pending[seq] = ch

	frame := encodeFrame(frameTypeCommand, seq, cmd, payload)
	_, err := conn.Write(frame)
	if err != nil {
		delete(t.pending, seq)
		t.mu.Unlock()
		return nil, errors.Wrapf(err, "failed to send %s", op)
	}
	t.mu.Unlock()

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, &ConnectionError{Host: t.host, Err: errors.New("connection lost")}
		}
		if len(resp) == 0 {
			return nil, errors.Errorf("%s: empty response", op)
		}
		if code := int(resp[0]); code != CodeOK {
			return nil, &HardwareError{Code: code, Op: op}
		}
		return resp[1:], nil
	case <-time.After(t.timeout):
		t.mu.Lock()
		delete(t.pending, seq)
		t.mu.Unlock()
		return nil, errors.Errorf("%s: no response within %s", op, t.timeout)
	}
}

func (t *TCPTransport) MotionEnable(enable bool) error {
	_, err := t.call("MotionEnable", cmdMotionEnable, []byte{boolByte(enable)})
	return err
}

func (t *TCPTransport) SetMode(mode int) error {
	_, err := t.call("SetMode", cmdSetMode, []byte{byte(mode)})
	return err
}

func (t *TCPTransport) SetState(state int) error {
	_, err := t.call("SetState", cmdSetState, []byte{byte(state)})
	return err
}

func (t *TCPTransport) CleanError() error {
	_, err := t.call("CleanError", cmdCleanError, nil)
	return err
}

func (t *TCPTransport) CleanWarn() error {
	_, err := t.call("CleanWarn", cmdCleanWarn, nil)
	return err
}

func (t *TCPTransport) EmergencyStop() error {
	_, err := t.call("EmergencyStop", cmdEmergencyStop, nil)
	return err
}

func (t *TCPTransport) SetServoAngle(angles JointAngles, speed, accel float64, wait bool) error {
	payload := make([]byte, 0, 2+8*(len(angles)+2))
	payload = append(payload, byte(len(angles)), boolByte(wait))
	for _, a := range angles {
		payload = appendFloat(payload, a)
	}
	payload = appendFloat(payload, speed)
	payload = appendFloat(payload, accel)
	_, err := t.call("SetServoAngle", cmdSetServoAngle, payload)
	return err
}

func (t *TCPTransport) SetPosition(target Pose, speed, accel float64, wait, relative bool) error {
	payload := make([]byte, 0, 2+8*8)
	payload = append(payload, boolByte(wait), boolByte(relative))
	payload = appendPose(payload, target)
	payload = appendFloat(payload, speed)
	payload = appendFloat(payload, accel)
	_, err := t.call("SetPosition", cmdSetPosition, payload)
	return err
}

func (t *TCPTransport) GetPosition() (Pose, error) {
	resp, err := t.call("GetPosition", cmdGetPosition, nil)
	if err != nil {
		return Pose{}, err
	}
	if len(resp) < 48 {
		return Pose{}, errors.New("short position response")
	}
	return decodePose(resp), nil
}

func (t *TCPTransport) GetServoAngle() (JointAngles, error) {
	resp, err := t.call("GetServoAngle", cmdGetServoAngle, nil)
	if err != nil {
		return nil, err
	}
	if len(resp) < 1 {
		return nil, errors.New("short joint response")
	}
	n := int(resp[0])
	if len(resp) < 1+8*n {
		return nil, errors.New("short joint response")
	}
	angles := make(JointAngles, n)
	for i := 0; i < n; i++ {
		angles[i] = readFloat(resp[1+8*i:])
	}
	return angles, nil
}

func (t *TCPTransport) EnableGripper(kind GripperKind, enable bool) error {
	_, err := t.call("EnableGripper", cmdEnableGripper,
		[]byte{gripperByte(kind), boolByte(enable)})
	return err
}

func (t *TCPTransport) SetGripper(kind GripperKind, position, speed float64, wait bool) error {
	payload := []byte{gripperByte(kind), boolByte(wait)}
	payload = appendFloat(payload, position)
	payload = appendFloat(payload, speed)
	_, err := t.call("SetGripper", cmdSetGripper, payload)
	return err
}

func (t *TCPTransport) EnableTrack(enable bool) error {
	_, err := t.call("EnableTrack", cmdEnableTrack, []byte{boolByte(enable)})
	return err
}

func (t *TCPTransport) SetTrackSpeed(speed float64) error {
	_, err := t.call("SetTrackSpeed", cmdSetTrackSpeed, appendFloat(nil, speed))
	return err
}

func (t *TCPTransport) SetTrackPosition(position, speed float64, wait bool) error {
	payload := []byte{boolByte(wait)}
	payload = appendFloat(payload, position)
	payload = appendFloat(payload, speed)
	_, err := t.call("SetTrackPosition", cmdSetTrackPosition, payload)
	return err
}

func (t *TCPTransport) GetTrackPosition() (float64, error) {
	resp, err := t.call("GetTrackPosition", cmdGetTrackPosition, nil)
	if err != nil {
		return 0, err
	}
	if len(resp) < 8 {
		return 0, errors.New("short track response")
	}
	return readFloat(resp), nil
}

func (t *TCPTransport) EnableForceTorque(enable bool) error {
	_, err := t.call("EnableForceTorque", cmdEnableForceTorque, []byte{boolByte(enable)})
	return err
}

func (t *TCPTransport) ReadForceTorque() (ForceTorqueReading, error) {
	resp, err := t.call("ReadForceTorque", cmdReadForceTorque, nil)
	if err != nil {
		return ForceTorqueReading{}, err
	}
	if len(resp) < 48 {
		return ForceTorqueReading{}, errors.New("short force/torque response")
	}
	var r ForceTorqueReading
	for i := range r {
		r[i] = readFloat(resp[8*i:])
	}
	return r, nil
}

func (t *TCPTransport) Telemetry() <-chan TelemetryEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.telemetry
}

// Frame codec

func encodeFrame(frameType, seq, cmd byte, payload []byte) []byte {
	frame := make([]byte, 0, 7+len(payload)+1)
	frame = append(frame, frameHeader0, frameHeader1, frameType, seq, cmd)
	frame = binary.LittleEndian.AppendUint16(frame, uint16(len(payload)))
	frame = append(frame, payload...)

	checksum := byte(0)
	for _, b := range frame[2:] {
		checksum += b
	}
	return append(frame, ^checksum)
}

func readFrame(r io.Reader) (frameType, seq byte, payload []byte, err error) {
	header := make([]byte, 7)
	if _, err = io.ReadFull(r, header); err != nil {
		return 0, 0, nil, err
	}
	if header[0] != frameHeader0 || header[1] != frameHeader1 {
		return 0, 0, nil, errors.New("bad frame header")
	}
	length := binary.LittleEndian.Uint16(header[5:7])
	body := make([]byte, int(length)+1)
	if _, err = io.ReadFull(r, body); err != nil {
		return 0, 0, nil, err
	}

	checksum := byte(0)
	for _, b := range header[2:] {
		checksum += b
	}
	for _, b := range body[:length] {
		checksum += b
	}
	if ^checksum != body[length] {
		return 0, 0, nil, errors.New("frame checksum mismatch")
	}
	return header[2], header[3], body[:length], nil
}

func decodeEvent(payload []byte) (TelemetryEvent, bool) {
	if len(payload) < 1 {
		return TelemetryEvent{}, false
	}
	ev := TelemetryEvent{Timestamp: time.Now()}
	switch payload[0] {
	case eventState:
		if len(payload) < 2 {
			return ev, false
		}
		ev.Kind = TelemetryState
		ev.State = int(payload[1])
	case eventErrorWarn:
		if len(payload) < 3 {
			return ev, false
		}
		ev.Kind = TelemetryErrorWarn
		ev.ErrorCode = int(payload[1])
		ev.WarnCode = int(payload[2])
	case eventPosition:
		if len(payload) < 1+48+1 {
			return ev, false
		}
		ev.Kind = TelemetryPosition
		ev.Position = decodePose(payload[1:])
		n := int(payload[49])
		if len(payload) < 50+8*n {
			return ev, false
		}
		ev.Joints = make(JointAngles, n)
		for i := 0; i < n; i++ {
			ev.Joints[i] = readFloat(payload[50+8*i:])
		}
	default:
		return ev, false
	}
	return ev, true
}

func appendFloat(b []byte, f float64) []byte {
	return binary.LittleEndian.AppendUint64(b, math.Float64bits(f))
}

func readFloat(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func appendPose(b []byte, p Pose) []byte {
	for _, f := range []float64{p.X, p.Y, p.Z, p.Roll, p.Pitch, p.Yaw} {
		b = appendFloat(b, f)
	}
	return b
}

func decodePose(b []byte) Pose {
	return Pose{
		X: readFloat(b), Y: readFloat(b[8:]), Z: readFloat(b[16:]),
		Roll: readFloat(b[24:]), Pitch: readFloat(b[32:]), Yaw: readFloat(b[40:]),
	}
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

func gripperByte(kind GripperKind) byte {
	switch kind {
	case GripperBio:
		return 1
	case GripperStandard:
		return 2
	case GripperRobotiq:
		return 3
	}
	return 0
}
