// irdrowsy watches the driver through an infrared camera and flags drowsiness
// from the eye aspect ratio. A preview window shows the annotated feed; press
// 'c' to save a snapshot and 'q' or Esc to quit.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/irdrowsy/internal/config"
	"github.com/teslashibe/irdrowsy/internal/log"
	"github.com/teslashibe/irdrowsy/pkg/capture"
	"github.com/teslashibe/irdrowsy/pkg/control"
	"github.com/teslashibe/irdrowsy/pkg/debug"
	"github.com/teslashibe/irdrowsy/pkg/drowsy"
	"github.com/teslashibe/irdrowsy/pkg/drowsy/landmarks"
	"github.com/teslashibe/irdrowsy/pkg/monitor"
	"github.com/teslashibe/irdrowsy/pkg/present"
	"github.com/teslashibe/irdrowsy/pkg/source"
	"github.com/teslashibe/irdrowsy/pkg/web"
)

const windowName = "IR Drowsiness Monitor"

// HighGUI must be driven from the thread that created the window.
func init() {
	runtime.LockOSThread()
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "irdrowsy: %v\n", err)
		os.Exit(2)
	}

	log.Init(cfg.LogLevel)
	logger := log.L()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("irdrowsy failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig applies flags on top of the file and environment configuration.
func loadConfig() (*config.Config, error) {
	path := flag.String("config", "", "YAML config file")
	debugFlag := flag.Bool("debug", false, "Enable verbose debug logging")
	debugFrames := flag.Bool("debug-frames", false, "Trace every frame (very verbose)")
	backend := flag.String("backend", "", "Frame source backend: auto, v4l2, mock")
	device := flag.String("device", "", "Use this video node as the infrared source, e.g. /dev/video2")
	addr := flag.String("addr", "", "Control API listen address, empty keeps the configured one")
	headless := flag.Bool("headless", false, "Run without the preview window")
	noAPI := flag.Bool("no-api", false, "Disable the control API")
	noAutoStart := flag.Bool("no-autostart", false, "Wait for POST /api/start before opening the camera")
	mockDetector := flag.Bool("mock-detector", false, "Use a synthetic face instead of the landmark models")
	threshold := flag.Float64("threshold", 0, "Initial EAR threshold, zero keeps the configured one")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		return nil, err
	}

	debug.Enabled = *debugFlag
	debug.Frames = *debugFrames
	if *debugFlag || *debugFrames {
		cfg.LogLevel = "debug"
	}
	if *backend != "" {
		cfg.Source.Backend = source.Backend(*backend)
	}
	if *device != "" {
		cfg.Source.Device = *device
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *noAPI {
		cfg.Addr = ""
	}
	if *threshold != 0 {
		cfg.Settings.EARThreshold = *threshold
	}
	cfg.Headless = cfg.Headless || *headless
	cfg.MockDetector = cfg.MockDetector || *mockDetector
	if *noAutoStart {
		cfg.AutoStart = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	adapter, err := source.NewAdapter(cfg.Source, logger)
	if err != nil {
		return err
	}

	det, err := newDetector(cfg, logger)
	if err != nil {
		return err
	}
	est := drowsy.NewEstimator(det, logger)
	defer est.Close()

	loop := capture.NewLoop(adapter, logger)
	settings := control.NewManager(cfg.Settings)

	var display present.Display = present.NopDisplay{}
	var win *gocv.Window
	if !cfg.Headless {
		win = gocv.NewWindow(windowName)
		defer win.Close()
		display = windowDisplay{win: win}
	}

	pres := present.New(loop, settings, est, display, cfg.Interval, logger)
	defer pres.Close()

	mon := monitor.New(loop, settings, pres, cfg.SnapshotDir, logger)
	defer func() {
		if err := mon.Stop(context.Background()); err != nil {
			logger.Warn("stop failed", "error", err)
		}
	}()

	if cfg.Addr != "" {
		srv := web.NewServer(cfg.Addr, mon, logger)
		mon.SetSink(srv)
		srv.StartAsync(ctx)
		defer func() {
			if err := srv.Shutdown(); err != nil {
				logger.Warn("web shutdown failed", "error", err)
			}
		}()
	}

	if cfg.AutoStart {
		if err := mon.Start(ctx); err != nil {
			if cfg.Addr == "" {
				return err
			}
			logger.Warn("camera not started, retry with POST /api/start", "error", err)
		}
	}

	if win == nil {
		pres.Run(ctx)
		return nil
	}
	return windowLoop(ctx, win, pres, mon, logger)
}

// windowLoop drives the presenter from the main thread and handles keys.
func windowLoop(ctx context.Context, win *gocv.Window, pres *present.Presenter, mon *monitor.Monitor, logger *slog.Logger) error {
	ticker := time.NewTicker(pres.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		pres.Tick()

		switch key := win.WaitKey(1); key {
		case 'c', 'C':
			path, err := mon.Snapshot()
			switch {
			case errors.Is(err, present.ErrNothingToSave):
				logger.Info("nothing to save yet")
			case err != nil:
				logger.Error("snapshot failed", "error", err)
			default:
				logger.Info("snapshot saved", "path", path)
			}
		case 'q', 'Q', 27:
			logger.Info("quit requested")
			return nil
		}

		if !win.IsOpen() {
			return nil
		}
	}
}

type windowDisplay struct {
	win *gocv.Window
}

func (d windowDisplay) Show(img gocv.Mat) {
	d.win.IMShow(img)
}

func newDetector(cfg *config.Config, logger *slog.Logger) (drowsy.LandmarkDetector, error) {
	if cfg.MockDetector {
		logger.Info("using synthetic landmark detector")
		return blinkingFace(), nil
	}

	mesh, err := landmarks.New(cfg.Landmarks)
	if err == nil {
		return mesh, nil
	}
	if cfg.Source.Backend == source.BackendMock {
		logger.Warn("landmark models unavailable, using synthetic detector", "error", err)
		return blinkingFace(), nil
	}
	return nil, fmt.Errorf("%w (use -mock-detector to run without models)", err)
}

// blinkingFace closes the synthetic eyes for 20 of every 90 frames so the
// alert path can be seen without a real face.
func blinkingFace() *drowsy.MockDetector {
	n := 0
	return drowsy.NewMockDetector(func(gocv.Mat) ([]drowsy.Point, bool, error) {
		n++
		ear := 0.3
		if n%90 >= 70 {
			ear = 0.15
		}
		return drowsy.SyntheticFace(ear), true, nil
	})
}
