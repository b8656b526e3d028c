package xarm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	payload := appendPose([]byte{7}, Pose{X: 300, Y: -12.5, Z: 250, Roll: 180})
	frame := encodeFrame(frameTypeCommand, 42, cmdSetPosition, payload)

	frameType, seq, got, err := readFrame(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, byte(frameTypeCommand), frameType)
	assert.Equal(t, byte(42), seq)
	assert.Equal(t, payload, got)
}

func TestFrameEmptyPayload(t *testing.T) {
	frame := encodeFrame(frameTypeCommand, 1, cmdCleanError, nil)
	_, _, payload, err := readFrame(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Empty(t, payload)
}

func TestFrameChecksumMismatch(t *testing.T) {
	frame := encodeFrame(frameTypeCommand, 1, cmdGetPosition, []byte{1, 2, 3})
	frame[9] ^= 0xFF // corrupt a payload byte

	_, _, _, err := readFrame(bytes.NewReader(frame))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum")
}

func TestFrameBadHeader(t *testing.T) {
	frame := encodeFrame(frameTypeCommand, 1, cmdGetPosition, nil)
	frame[0] = 0x00

	_, _, _, err := readFrame(bytes.NewReader(frame))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header")
}

func TestDecodeStateEvent(t *testing.T) {
	ev, ok := decodeEvent([]byte{eventState, ArmStateEmergency})
	require.True(t, ok)
	assert.Equal(t, TelemetryState, ev.Kind)
	assert.Equal(t, ArmStateEmergency, ev.State)
}

func TestDecodeErrorWarnEvent(t *testing.T) {
	ev, ok := decodeEvent([]byte{eventErrorWarn, CodeCollision, 11})
	require.True(t, ok)
	assert.Equal(t, TelemetryErrorWarn, ev.Kind)
	assert.Equal(t, CodeCollision, ev.ErrorCode)
	assert.Equal(t, 11, ev.WarnCode)
}

func TestDecodePositionEvent(t *testing.T) {
	pose := Pose{X: 300, Y: 50, Z: 250, Roll: 180, Pitch: -5, Yaw: 90}
	joints := JointAngles{0, -30, -60, 0, 90, 0, 0}

	payload := []byte{eventPosition}
	payload = appendPose(payload, pose)
	payload = append(payload, byte(len(joints)))
	for _, a := range joints {
		payload = appendFloat(payload, a)
	}

	ev, ok := decodeEvent(payload)
	require.True(t, ok)
	assert.Equal(t, TelemetryPosition, ev.Kind)
	assert.Equal(t, pose, ev.Position)
	assert.Equal(t, joints, ev.Joints)
}

func TestDecodeMalformedEvents(t *testing.T) {
	for name, payload := range map[string][]byte{
		"empty":            nil,
		"unknown kind":     {0x77},
		"truncated state":  {eventState},
		"truncated errors": {eventErrorWarn, 1},
		"truncated pose":   {eventPosition, 1, 2, 3},
	} {
		_, ok := decodeEvent(payload)
		assert.False(t, ok, name)
	}
}

func TestPoseCodecRoundTrip(t *testing.T) {
	want := Pose{X: -123.456, Y: 0.001, Z: 700, Roll: -180, Pitch: 42.42, Yaw: 359.9}
	got := decodePose(appendPose(nil, want))
	assert.Equal(t, want, got)
}
