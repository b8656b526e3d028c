package xarm

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
)

// Maintenance thresholds. A window average above the cycle limit or a
// success rate below the floor raises a maintenance alert.
const (
	perfWindowCap      = 100
	maxCycleTime       = 10 * time.Second
	minSuccessRate     = 0.8
	minSamplesForAlert = 10
)

// OperationStats summarizes the rolling window for one operation kind.
type OperationStats struct {
	Count       int           `json:"count"`
	Failures    int           `json:"failures"`
	SuccessRate float64       `json:"success_rate"`
	AvgDuration time.Duration `json:"avg_duration"`
	MaxDuration time.Duration `json:"max_duration"`
}

// PerformanceStats is a snapshot of all tracked operations plus lifetime
// totals, which outlive the rolling windows.
type PerformanceStats struct {
	Operations    map[OperationKind]OperationStats `json:"operations"`
	TotalCommands int                              `json:"total_commands"`
	TotalFailures int                              `json:"total_failures"`
	Uptime        time.Duration                    `json:"uptime"`
}

// perfMonitor keeps a bounded rolling window of samples per operation kind
// and mirrors counts into prometheus collectors. Alerts fire at most once
// per operation until the condition clears.
type perfMonitor struct {
	mu        sync.Mutex
	clock     clock.Clock
	startedAt time.Time

	windows  map[OperationKind][]PerformanceSample
	total    int
	failed   int
	alerting map[OperationKind]bool
	alertFn  func(msg string)

	cycleSeconds *prometheus.HistogramVec
	commands     *prometheus.CounterVec
	failures     *prometheus.CounterVec
}

func newPerfMonitor(clk clock.Clock, alertFn func(msg string)) *perfMonitor {
	if clk == nil {
		clk = clock.New()
	}
	return &perfMonitor{
		clock:     clk,
		startedAt: clk.Now(),
		windows:   make(map[OperationKind][]PerformanceSample),
		alerting:  make(map[OperationKind]bool),
		alertFn:   alertFn,
		cycleSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "xarm",
			Name:      "command_duration_seconds",
			Help:      "Motion command wall time by operation kind.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"operation"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xarm",
			Name:      "commands_total",
			Help:      "Motion commands issued by operation kind.",
		}, []string{"operation"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xarm",
			Name:      "command_failures_total",
			Help:      "Failed motion commands by operation kind.",
		}, []string{"operation"}),
	}
}

// register attaches the collectors to a prometheus registry. Optional: the
// monitor works without one.
func (m *perfMonitor) register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.cycleSeconds, m.commands, m.failures} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// record appends one sample, evicting the oldest once the window is full,
// and checks the maintenance thresholds.
func (m *perfMonitor) record(op OperationKind, dur time.Duration, success bool) {
	label := string(op)
	m.commands.WithLabelValues(label).Inc()
	m.cycleSeconds.WithLabelValues(label).Observe(dur.Seconds())
	if !success {
		m.failures.WithLabelValues(label).Inc()
	}

	var alert string
	m.mu.Lock()
	w := m.windows[op]
	if len(w) == perfWindowCap {
		copy(w, w[1:])
		w = w[:perfWindowCap-1]
	}
	w = append(w, PerformanceSample{Operation: op, Duration: dur, Success: success})
	m.windows[op] = w

	m.total++
	if !success {
		m.failed++
	}
	alert = m.checkThresholdsLocked(op, w)
	m.mu.Unlock()

	if alert != "" && m.alertFn != nil {
		m.alertFn(alert)
	}
}

func (m *perfMonitor) checkThresholdsLocked(op OperationKind, w []PerformanceSample) string {
	if len(w) < minSamplesForAlert {
		return ""
	}
	avg, rate := windowStats(w)

	switch {
	case avg > maxCycleTime:
		if m.alerting[op] {
			return ""
		}
		m.alerting[op] = true
		return fmt.Sprintf("%s average cycle time %s exceeds %s", op, avg.Round(time.Millisecond), maxCycleTime)
	case rate < minSuccessRate:
		if m.alerting[op] {
			return ""
		}
		m.alerting[op] = true
		return fmt.Sprintf("%s success rate %.2f below %.2f", op, rate, minSuccessRate)
	default:
		m.alerting[op] = false
		return ""
	}
}

func windowStats(w []PerformanceSample) (avg time.Duration, successRate float64) {
	if len(w) == 0 {
		return 0, 1
	}
	var sum time.Duration
	ok := 0
	for _, s := range w {
		sum += s.Duration
		if s.Success {
			ok++
		}
	}
	return sum / time.Duration(len(w)), float64(ok) / float64(len(w))
}

// stats returns a point-in-time snapshot.
func (m *perfMonitor) stats() PerformanceStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := PerformanceStats{
		Operations:    make(map[OperationKind]OperationStats, len(m.windows)),
		TotalCommands: m.total,
		TotalFailures: m.failed,
		Uptime:        m.clock.Since(m.startedAt),
	}
	for op, w := range m.windows {
		st := OperationStats{Count: len(w)}
		var sum time.Duration
		for _, s := range w {
			sum += s.Duration
			if s.Duration > st.MaxDuration {
				st.MaxDuration = s.Duration
			}
			if !s.Success {
				st.Failures++
			}
		}
		if len(w) > 0 {
			st.AvgDuration = sum / time.Duration(len(w))
			st.SuccessRate = float64(len(w)-st.Failures) / float64(len(w))
		}
		out.Operations[op] = st
	}
	return out
}

// timeOp wraps one command execution for recording. Returns the original
// error untouched.
func (m *perfMonitor) timeOp(op OperationKind, fn func() error) error {
	start := m.clock.Now()
	err := fn()
	m.record(op, m.clock.Since(start), err == nil)
	return err
}
