// Package present drives the display side: on a fixed cadence it takes the
// newest captured frame, runs the estimator if enabled, and keeps the
// annotated result for display and snapshots.
package present

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/irdrowsy/internal/log"
	"github.com/teslashibe/irdrowsy/pkg/control"
	"github.com/teslashibe/irdrowsy/pkg/drowsy"
	"github.com/teslashibe/irdrowsy/pkg/frame"
)

// DefaultInterval is roughly 30 Hz.
const DefaultInterval = 33 * time.Millisecond

// ErrNothingToSave is returned by Save before the first frame was shown.
var ErrNothingToSave = errors.New("present: no frame to save")

// FrameReader yields the newest captured frame, or nil.
type FrameReader interface {
	Latest() *frame.Gray
}

// SettingsReader yields the current user parameters.
type SettingsReader interface {
	Get() control.Settings
}

// Display receives each rendered frame. It must not keep img after returning.
type Display interface {
	Show(img gocv.Mat)
}

// NopDisplay discards frames; used for headless runs.
type NopDisplay struct{}

// Show implements Display.
func (NopDisplay) Show(gocv.Mat) {}

// Status summarizes the last rendered frame.
type Status struct {
	Text      string    `json:"text"`
	EAR       float64   `json:"ear"`
	HasFace   bool      `json:"has_face"`
	Alert     bool      `json:"alert"`
	Detection bool      `json:"detection"`
	Threshold float64   `json:"threshold"`
	FrameSeq  uint64    `json:"frame_seq"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StateUpdater receives a status snapshot after every rendered frame.
type StateUpdater interface {
	UpdateStatus(s Status)
}

// Presenter renders frames on a fixed cadence.
type Presenter struct {
	frames   FrameReader
	settings SettingsReader
	est      *drowsy.Estimator
	display  Display
	state    StateUpdater
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	latest    gocv.Mat
	hasLatest bool
	status    Status
	rendered  uint64

	// gen is bumped by Reset; a Tick that started before it drops its frame.
	gen uint64
}

// New creates a presenter. A nil display discards frames; a zero interval
// uses DefaultInterval.
func New(frames FrameReader, settings SettingsReader, est *drowsy.Estimator, display Display, interval time.Duration, logger *slog.Logger) *Presenter {
	if display == nil {
		display = NopDisplay{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger = log.Or(logger)
	return &Presenter{
		frames:   frames,
		settings: settings,
		est:      est,
		display:  display,
		interval: interval,
		logger:   logger,
	}
}

// SetStateUpdater sets the status listener
func (p *Presenter) SetStateUpdater(state StateUpdater) {
	p.state = state
}

// Interval returns the tick period.
func (p *Presenter) Interval() time.Duration {
	return p.interval
}

// Run ticks until ctx is done.
func (p *Presenter) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("presenter started", "interval", p.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick()
		}
	}
}

// Tick renders the newest frame once. It reports whether a frame was shown.
// Without a frame nothing changes.
func (p *Presenter) Tick() bool {
	f := p.frames.Latest()
	if f == nil {
		return false
	}

	p.mu.Lock()
	gen := p.gen
	p.mu.Unlock()

	s := p.settings.Get()
	st := Status{
		Detection: s.DetectionEnabled,
		Threshold: s.EARThreshold,
		FrameSeq:  f.Seq,
		Width:     f.Width,
		Height:    f.Height,
		UpdatedAt: time.Now(),
	}

	var vis gocv.Mat
	if s.DetectionEnabled {
		sample := p.est.Process(f, s.EARThreshold)
		if sample.Vis == nil {
			return false
		}
		vis = *sample.Vis
		st.HasFace = sample.HasFace
		st.EAR = sample.EAR
		st.Alert = sample.Overlay.Alert
	} else {
		bgr, err := f.BGR()
		if err != nil {
			bgr.Close()
			p.logger.Warn("frame conversion failed", "seq", f.Seq, "error", err)
			return false
		}
		vis = bgr
	}
	st.Text = StatusText(st)

	p.display.Show(vis)

	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		vis.Close()
		return false
	}
	if p.hasLatest {
		p.latest.Close()
	}
	p.latest = vis
	p.hasLatest = true
	p.status = st
	p.rendered++
	p.mu.Unlock()

	if p.state != nil {
		p.state.UpdateStatus(st)
	}
	return true
}

// StatusText is the one-line summary shown next to the video.
func StatusText(s Status) string {
	switch {
	case !s.Detection:
		return "detection off"
	case !s.HasFace:
		return "no face"
	case s.Alert:
		return fmt.Sprintf("EAR %.3f (threshold %.2f) DROWSY", s.EAR, s.Threshold)
	default:
		return fmt.Sprintf("EAR %.3f (threshold %.2f)", s.EAR, s.Threshold)
	}
}

// Latest returns a copy of the last rendered frame. The caller closes it.
func (p *Presenter) Latest() (gocv.Mat, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasLatest {
		return gocv.NewMat(), false
	}
	return p.latest.Clone(), true
}

// Status returns the status of the last rendered frame.
func (p *Presenter) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Rendered returns how many frames have been rendered.
func (p *Presenter) Rendered() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rendered
}

// Reset drops the last rendered frame and status.
func (p *Presenter) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	if p.hasLatest {
		p.latest.Close()
		p.latest = gocv.Mat{}
		p.hasLatest = false
	}
	p.status = Status{}
}

// Close releases the last rendered frame.
func (p *Presenter) Close() {
	p.Reset()
}

// Save writes the last rendered frame as a PNG into dir and returns its path.
func (p *Presenter) Save(dir string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.hasLatest {
		return "", ErrNothingToSave
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("present: create %s: %w", dir, err)
	}

	path := filepath.Join(dir, SnapshotName(time.Now()))
	if !gocv.IMWrite(path, p.latest) {
		return "", fmt.Errorf("present: write %s failed", path)
	}

	p.logger.Info("snapshot saved", "path", path)
	return path, nil
}

// SnapshotName is ir_YYYYMMDD_HHMMSS_mmm.png for t.
func SnapshotName(t time.Time) string {
	return fmt.Sprintf("ir_%s_%03d.png", t.Format("20060102_150405"), t.Nanosecond()/int(time.Millisecond))
}
