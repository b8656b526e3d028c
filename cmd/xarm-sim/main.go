// Command xarm-sim exercises the controller against the in-memory
// simulation backend: initialize, calibrate, run a short motion sequence,
// and dump status. Useful as a smoke test and an API walkthrough.
package main

import (
	"context"
	"flag"
	"net/http"
	"time"

	"github.com/golang/geo/r3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.viam.com/rdk/logging"
	goutils "go.viam.com/utils"

	xarm "github.com/cyrilcaoyang/xArm5-translocation"
)

func main() {
	goutils.ContextualMain(mainWithArgs, logging.NewLogger("xarm-sim"))
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	fs := flag.NewFlagSet(args[0], flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file (default: built-in simulation config)")
	metricsAddr := fs.String("metrics", "", "address to serve prometheus metrics on (empty: disabled)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	var cfg *xarm.Config
	var err error
	if *configPath != "" {
		cfg, err = xarm.LoadConfig(*configPath)
		if err != nil {
			return err
		}
	} else {
		cfg = xarm.DefaultConfig()
	}
	cfg.Logger = logger

	ctrl, err := xarm.NewController(cfg)
	if err != nil {
		return err
	}
	defer func() {
		goutils.UncheckedError(ctrl.Close(context.Background()))
	}()

	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		if err := ctrl.RegisterMetrics(reg); err != nil {
			return err
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		goutils.PanicCapturingGo(func() {
			logger.Infof("serving metrics on %s", *metricsAddr)
			server := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			goutils.UncheckedError(server.ListenAndServe())
		})
	}

	ctrl.RegisterCallback(xarm.EventStateChanged, func(ev xarm.Event) {
		logger.Infof("component %s: %s -> %s", ev.Component, ev.OldState, ev.NewState)
	})
	ctrl.RegisterCallback(xarm.EventErrorOccurred, func(ev xarm.Event) {
		logger.Warnf("error on %s: code %d: %s", ev.Component, ev.Error.Code, ev.Error.Message)
	})

	info, err := ctrl.Initialize(ctx)
	if err != nil {
		return err
	}
	logger.Infof("session %s (%s backend, model %d, %d joints)",
		info.SessionID, info.Backend, info.Model, info.NumJoints)

	if err := ctrl.CalibrateForceTorque(ctx, 0, 0); err != nil {
		return err
	}

	sequence := []struct {
		name string
		run  func() error
	}{
		{"home", func() error { return ctrl.GoHome(ctx, xarm.MoveOptions{}) }},
		{"cartesian move", func() error {
			return ctrl.MoveToPosition(ctx, xarm.Pose{X: 400, Y: 100, Z: 250, Roll: 180}, xarm.MoveOptions{})
		}},
		{"relative lift", func() error {
			return ctrl.MoveRelative(ctx, xarm.Pose{Z: 50}, xarm.MoveOptions{})
		}},
		{"open gripper", func() error { return ctrl.OpenGripper(ctx) }},
		{"close gripper", func() error { return ctrl.CloseGripper(ctx) }},
		{"track move", func() error { return ctrl.MoveTrack(ctx, 350, 0) }},
		{"guarded descent", func() error {
			return ctrl.MoveUntilForce(ctx, r3.Vector{Z: -1}, xarm.ForceMoveOptions{
				Threshold: 5, Timeout: 2 * time.Second,
			})
		}},
		{"named location", func() error {
			return ctrl.MoveToNamedLocation(ctx, "rest", xarm.MoveOptions{})
		}},
	}
	for _, step := range sequence {
		logger.Infof("running: %s", step.name)
		if err := step.run(); err != nil {
			logger.Warnf("%s: %v", step.name, err)
		}
	}

	snap := ctrl.Status(ctx)
	logger.Infof("final position: %+v", snap.Position)
	logger.Infof("safety level: %s, errors recorded: %d", snap.SafetyLevel, snap.ErrorCount)

	stats := ctrl.PerformanceStats()
	for op, st := range stats.Operations {
		logger.Infof("%s: %d commands, %.0f%% success, avg %s",
			op, st.Count, st.SuccessRate*100, st.AvgDuration.Round(time.Millisecond))
	}
	return nil
}
