package xarm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

// ProcessedReading is one zero-compensated sensor sample with derived
// magnitudes and direction vectors; directions are suppressed while the
// magnitude sits inside the configured dead zone.
type ProcessedReading struct {
	Raw         ForceTorqueReading `json:"raw"`
	Compensated ForceTorqueReading `json:"compensated"`

	ForceMagnitude  float64 `json:"force_magnitude"`  // N
	TorqueMagnitude float64 `json:"torque_magnitude"` // Nm

	// TotalMagnitude mirrors the force magnitude. Historical clients key
	// off this field for overload checks, so it intentionally excludes the
	// torque components.
	TotalMagnitude float64 `json:"total_magnitude"`

	ForceDirection  r3.Vector `json:"force_direction"`
	TorqueDirection r3.Vector `json:"torque_direction"`
}

// ftProcessor owns the zero point and derives processed readings from the
// transport's raw samples. Reads are cheap; calibration blocks for
// samples x delay.
type ftProcessor struct {
	mu        sync.RWMutex
	transport Transport
	cfg       ForceTorqueConfig
	clock     clock.Clock
	logger    logging.Logger

	zero       ForceTorqueReading
	calibrated bool
}

func newFTProcessor(t Transport, cfg ForceTorqueConfig, clk clock.Clock, logger logging.Logger) *ftProcessor {
	if clk == nil {
		clk = clock.New()
	}
	return &ftProcessor{transport: t, cfg: cfg, clock: clk, logger: logger}
}

// calibrate records the sensor's resting output as the zero point by
// averaging n raw readings taken delay apart. Non-positive arguments take
// the configured defaults. The arm must be stationary and unloaded; the
// caller guarantees that.
func (p *ftProcessor) calibrate(ctx context.Context, n int, delay time.Duration) error {
	if n <= 0 {
		n = p.cfg.CalibrationSamples
	}
	if delay <= 0 {
		delay = p.cfg.CalibrationDelay
	}
	p.logger.Infof("calibrating force/torque sensor over %d samples", n)

	var sum [6]float64
	timer := p.clock.Timer(delay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for i := 0; i < n; i++ {
		raw, err := p.transport.ReadForceTorque()
		if err != nil {
			return errors.Wrapf(err, "calibration read %d/%d", i+1, n)
		}
		for j := range sum {
			sum[j] += raw[j]
		}
		if i == n-1 {
			break
		}
		timer.Reset(delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	var zero ForceTorqueReading
	for j := range zero {
		zero[j] = sum[j] / float64(n)
	}

	p.mu.Lock()
	p.zero = zero
	p.calibrated = true
	p.mu.Unlock()

	p.logger.Infof("force/torque zero point set: %v", zero)
	return nil
}

func (p *ftProcessor) isCalibrated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.calibrated
}

func (p *ftProcessor) zeroPoint() ForceTorqueReading {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.zero
}

// read returns one processed sample. Uncalibrated processors compensate
// against a zero baseline, i.e. pass the raw values through.
func (p *ftProcessor) read() (ProcessedReading, error) {
	raw, err := p.transport.ReadForceTorque()
	if err != nil {
		return ProcessedReading{}, err
	}
	return p.process(raw), nil
}

func (p *ftProcessor) process(raw ForceTorqueReading) ProcessedReading {
	p.mu.RLock()
	zero := p.zero
	dead := p.cfg.DeadZone
	p.mu.RUnlock()

	comp := raw.Sub(zero)
	out := ProcessedReading{
		Raw:             raw,
		Compensated:     comp,
		ForceMagnitude:  comp.ForceMagnitude(),
		TorqueMagnitude: comp.TorqueMagnitude(),
	}
	out.TotalMagnitude = out.ForceMagnitude
	out.ForceDirection = direction(comp.Force(), dead)
	out.TorqueDirection = direction(comp.Torque(), dead)
	return out
}

// direction returns the unit vector of v. A vector whose magnitude sits
// inside the dead zone has no direction; above it the full vector is
// normalized, so small cross-axis components are preserved.
func direction(v r3.Vector, deadZone float64) r3.Vector {
	if v.Norm() <= deadZone {
		return r3.Vector{}
	}
	return v.Normalize()
}

// checkSafety evaluates one sample against the configured thresholds. The
// returned message is empty when the sample is within limits.
func (p *ftProcessor) checkSafety(r ProcessedReading) (ok bool, msg string) {
	switch {
	case r.TotalMagnitude > p.cfg.ForceThreshold:
		return false, fmt.Sprintf("force %.2fN exceeds threshold %.2fN",
			r.TotalMagnitude, p.cfg.ForceThreshold)
	case r.TorqueMagnitude > p.cfg.TorqueThreshold:
		return false, fmt.Sprintf("torque %.2fNm exceeds threshold %.2fNm",
			r.TorqueMagnitude, p.cfg.TorqueThreshold)
	}
	return true, ""
}
