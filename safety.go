package xarm

import (
	"fmt"
	"sync"
)

// validator enforces joint limits, workspace bounds, self-collision zones,
// and safety-level speed caps before any command reaches the transport.
// Joint limits are inclusive on both ends.
type validator struct {
	mu          sync.RWMutex
	level       SafetyLevel
	jointLimits [][2]float64
	safety      SafetyConfig
	zones       []CollisionZone
	track       TrackConfig
}

func newValidator(cfg *Config) *validator {
	return &validator{
		level:       SafetyMedium,
		jointLimits: JointLimitsForModel(cfg.Model),
		safety:      cfg.Safety,
		zones:       defaultCollisionZones(cfg.Model),
		track:       cfg.Track,
	}
}

func (v *validator) setLevel(level SafetyLevel) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.level = level
}

func (v *validator) currentLevel() SafetyLevel {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.level
}

// resolveCartesianSpeed clamps a requested TCP speed and acceleration to the
// configured caps scaled by the active safety level. Zero requests take the
// scaled cap itself.
func (v *validator) resolveCartesianSpeed(speed, accel float64) (float64, float64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	scale := v.level.SpeedScale()
	return clampSpeed(speed, v.safety.MaxTCPSpeed*scale),
		clampSpeed(accel, v.safety.MaxTCPAccel*scale)
}

// resolveJointSpeed is the joint-space counterpart of resolveCartesianSpeed.
func (v *validator) resolveJointSpeed(speed, accel float64) (float64, float64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	scale := v.level.SpeedScale()
	return clampSpeed(speed, v.safety.MaxJointSpeed*scale),
		clampSpeed(accel, v.safety.MaxJointAccel*scale)
}

func clampSpeed(requested, limit float64) float64 {
	if requested <= 0 || requested > limit {
		return limit
	}
	return requested
}

// validateJoints checks every angle against the model's limit table and the
// self-collision zones. The target is rejected whole: no partial motion is
// ever issued.
func (v *validator) validateJoints(angles JointAngles) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if len(angles) != len(v.jointLimits) {
		return &ValidationError{
			Violation: JointLimitViolation,
			Detail:    fmt.Sprintf("expected %d joint angles, got %d", len(v.jointLimits), len(angles)),
		}
	}
	for i, a := range angles {
		lo, hi := v.jointLimits[i][0], v.jointLimits[i][1]
		if a < lo || a > hi {
			return &ValidationError{
				Violation: JointLimitViolation,
				Detail:    fmt.Sprintf("joint %d angle %.2f outside [%.1f, %.1f]", i+1, a, lo, hi),
			}
		}
	}

	for _, z := range v.zones {
		if z.JointA >= len(angles) || z.JointB >= len(angles) {
			continue
		}
		if z.Predicate != nil && z.Predicate(angles[z.JointA], angles[z.JointB]) {
			return &ValidationError{
				Violation: SelfCollisionViolation,
				Detail:    fmt.Sprintf("joint configuration enters collision zone %q", z.Name),
			}
		}
	}
	return nil
}

// validateSingleJoint checks one joint without requiring the full vector.
func (v *validator) validateSingleJoint(index int, angle float64) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if index < 0 || index >= len(v.jointLimits) {
		return &ValidationError{
			Violation: JointLimitViolation,
			Detail:    fmt.Sprintf("joint index %d out of range for %d-joint arm", index, len(v.jointLimits)),
		}
	}
	lo, hi := v.jointLimits[index][0], v.jointLimits[index][1]
	if angle < lo || angle > hi {
		return &ValidationError{
			Violation: JointLimitViolation,
			Detail:    fmt.Sprintf("joint %d angle %.2f outside [%.1f, %.1f]", index+1, angle, lo, hi),
		}
	}
	return nil
}

// validatePose checks a Cartesian target against the workspace box and the
// configured restricted zones.
func (v *validator) validatePose(p Pose) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	ws := v.safety.Workspace
	checks := []struct {
		name  string
		value float64
		r     [2]float64
	}{
		{"x", p.X, ws.X}, {"y", p.Y, ws.Y}, {"z", p.Z, ws.Z},
		{"roll", p.Roll, ws.Roll}, {"pitch", p.Pitch, ws.Pitch}, {"yaw", p.Yaw, ws.Yaw},
	}
	for _, c := range checks {
		if c.value < c.r[0] || c.value > c.r[1] {
			return &ValidationError{
				Violation: WorkspaceViolation,
				Detail: fmt.Sprintf("%s=%.2f outside workspace [%.1f, %.1f]",
					c.name, c.value, c.r[0], c.r[1]),
			}
		}
	}

	for _, z := range v.safety.Zones {
		if z.Contains(p.Point()) {
			return &ValidationError{
				Violation: WorkspaceViolation,
				Detail:    fmt.Sprintf("target inside restricted zone %q", z.Name),
			}
		}
	}
	return nil
}

// validateTrack checks a linear track target position.
func (v *validator) validateTrack(position float64) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	lo, hi := v.track.PosLimit[0], v.track.PosLimit[1]
	if position < lo || position > hi {
		return &ValidationError{
			Violation: TrackLimitViolation,
			Detail:    fmt.Sprintf("track position %.2f outside [%.1f, %.1f]", position, lo, hi),
		}
	}
	return nil
}

func (v *validator) validateTrackSpeed(speed float64) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	lo, hi := v.track.SpeedLimit[0], v.track.SpeedLimit[1]
	if speed < lo || speed > hi {
		return &ValidationError{
			Violation: SpeedLimitViolation,
			Detail:    fmt.Sprintf("track speed %.2f outside [%.1f, %.1f]", speed, lo, hi),
		}
	}
	return nil
}

// defaultCollisionZones returns joint-pair exclusion zones for known models.
// These are coarse: they flag configurations where the folded elbow can
// drive the wrist assembly into the upper arm link.
func defaultCollisionZones(model int) []CollisionZone {
	fold := func(elbow, wrist float64) bool {
		return elbow < -150 && wrist > 100
	}
	switch model {
	case 5:
		return []CollisionZone{
			{Name: "elbow_wrist_fold", JointA: 2, JointB: 3, Predicate: fold},
		}
	default:
		return []CollisionZone{
			{Name: "elbow_wrist_fold", JointA: 2, JointB: 4, Predicate: fold},
		}
	}
}
