// Package capture runs the background task that keeps the newest infrared
// frame available to the rest of the program.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/irdrowsy/internal/log"
	"github.com/teslashibe/irdrowsy/pkg/debug"
	"github.com/teslashibe/irdrowsy/pkg/frame"
	"github.com/teslashibe/irdrowsy/pkg/source"
	"github.com/teslashibe/irdrowsy/pkg/torch"
)

// State is the lifecycle state of the loop.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Info describes the current capture session.
type Info struct {
	SessionID string            `json:"session_id"`
	Source    source.SourceInfo `json:"source"`
	Group     string            `json:"group"`
	StartedAt time.Time         `json:"started_at"`
}

// Stats are cumulative counters since the loop was created.
type Stats struct {
	Published      uint64 `json:"published"`
	DecodeFailures uint64 `json:"decode_failures"`
	IdlePolls      uint64 `json:"idle_polls"`
	Errors         uint64 `json:"errors"`
	Sessions       uint64 `json:"sessions"`

	// SessionLost is set when the device went away under a running session.
	// It clears on the next Start.
	SessionLost bool `json:"session_lost"`
}

// Loop owns at most one capture session and the goroutine pulling from it.
// Start, Stop and SetTorch are serialized; State, Latest, Info and Stats may be
// called from any goroutine.
type Loop struct {
	adapter source.Adapter
	torch   *torch.Controller
	logger  *slog.Logger
	slot    frame.Slot

	// mu serializes lifecycle operations.
	mu   sync.Mutex
	sess source.Session
	stop chan struct{}
	wg   sync.WaitGroup

	infoMu sync.RWMutex
	state  State
	info   Info

	published      atomic.Uint64
	decodeFailures atomic.Uint64
	idlePolls      atomic.Uint64
	errs           atomic.Uint64
	sessions       atomic.Uint64
	lost           atomic.Bool
}

// NewLoop creates an idle loop. A nil logger uses the process logger.
func NewLoop(adapter source.Adapter, logger *slog.Logger) *Loop {
	logger = log.Or(logger)
	return &Loop{
		adapter: adapter,
		torch:   torch.NewController(logger),
		logger:  logger,
		state:   StateIdle,
	}
}

// Start selects the infrared source, opens it and begins pulling frames. A
// running session is fully stopped first. On failure the loop is Idle and the
// error is source.ErrNoSourceFound or a *source.OpenError.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if st := l.State(); st == StateRunning || st == StateStarting {
		l.logger.Info("restarting capture", "session", l.Info().SessionID)
		l.stopLocked()
	}

	l.setState(StateStarting)

	info, group, err := source.EnumerateAndSelect(ctx, l.adapter)
	if err != nil {
		l.setState(StateIdle)
		return fmt.Errorf("capture: %w", err)
	}

	sess, err := l.adapter.Open(ctx, info)
	if err != nil {
		l.setState(StateIdle)
		return fmt.Errorf("capture: %w", err)
	}

	stop := make(chan struct{})
	l.sess = sess
	l.stop = stop

	l.infoMu.Lock()
	l.info = Info{
		SessionID: uuid.NewString(),
		Source:    info,
		Group:     group.Name,
		StartedAt: time.Now(),
	}
	l.state = StateRunning
	sessionID := l.info.SessionID
	l.infoMu.Unlock()

	l.sessions.Add(1)
	l.lost.Store(false)
	l.wg.Add(1)
	go l.pull(sess, stop)

	l.logger.Info("capture started",
		"session", sessionID,
		"source", info.ID,
		"name", info.Name,
		"group", group.Name,
		"backend", l.adapter.Name(),
	)
	return nil
}

// Stop cancels the pull goroutine, waits for it, closes the session and clears
// the latest frame. Stopping an idle loop is a no-op.
func (l *Loop) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopLocked()
}

func (l *Loop) stopLocked() error {
	if l.sess == nil {
		l.setState(StateIdle)
		l.slot.Clear()
		return nil
	}

	l.setState(StateStopping)

	close(l.stop)
	l.wg.Wait()

	err := l.sess.Close()
	if err != nil {
		l.logger.Warn("closing capture session", "error", err)
	}

	sessionID := l.Info().SessionID
	l.sess = nil
	l.stop = nil
	l.slot.Clear()

	l.infoMu.Lock()
	l.info = Info{}
	l.state = StateIdle
	l.infoMu.Unlock()

	l.logger.Info("capture stopped", "session", sessionID)
	if err != nil {
		return fmt.Errorf("capture: close session: %w", err)
	}
	return nil
}

// pull runs until stop is closed. It never blocks on the device: when no frame
// is ready it yields and polls again.
func (l *Loop) pull(sess source.Session, stop <-chan struct{}) {
	defer l.wg.Done()

	var failing bool
	for {
		select {
		case <-stop:
			return
		default:
		}

		f, err := sess.TryAcquireLatest()
		if err == nil {
			failing = false
			l.slot.Store(f)
			l.published.Add(1)
			debug.FrameLog("frame published", "seq", f.Seq, "width", f.Width, "height", f.Height)
			continue
		}

		var de *source.DecodeError
		switch {
		case errors.Is(err, source.ErrNoFrame):
			l.idlePolls.Add(1)
			runtime.Gosched()
		case errors.As(err, &de):
			l.decodeFailures.Add(1)
			debug.Log("frame skipped", "error", err)
		case errors.Is(err, source.ErrClosed):
			l.errs.Add(1)
			l.lost.Store(true)
			l.logger.Warn("capture session closed underneath the loop")
			<-stop
			return
		default:
			l.errs.Add(1)
			if !failing {
				l.logger.Warn("frame acquisition failed", "error", err)
				failing = true
			}
			runtime.Gosched()
		}
	}
}

// SetTorch applies torch settings to the open session. Without a session it
// returns a *torch.UnsupportedError.
func (l *Loop) SetTorch(enable bool, power *int) (torch.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sess == nil {
		return torch.Result{}, &torch.UnsupportedError{Reason: torch.ReasonNotInitialized}
	}
	dev, _ := l.sess.Torch()
	return l.torch.Set(dev, enable, power)
}

// TorchCapability reports what the open session's torch supports.
func (l *Loop) TorchCapability() torch.Capability {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sess == nil {
		return torch.Capability{}
	}
	dev, _ := l.sess.Torch()
	return torch.Query(dev)
}

// State returns the lifecycle state.
func (l *Loop) State() State {
	l.infoMu.RLock()
	defer l.infoMu.RUnlock()
	return l.state
}

func (l *Loop) setState(s State) {
	l.infoMu.Lock()
	l.state = s
	l.infoMu.Unlock()
}

// Latest returns the newest published frame, or nil.
func (l *Loop) Latest() *frame.Gray {
	return l.slot.Load()
}

// Slot exposes the latest-frame slot to readers.
func (l *Loop) Slot() *frame.Slot {
	return &l.slot
}

// Info describes the running session. It is zero when idle.
func (l *Loop) Info() Info {
	l.infoMu.RLock()
	defer l.infoMu.RUnlock()
	return l.info
}

// Stats returns cumulative counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Published:      l.published.Load(),
		DecodeFailures: l.decodeFailures.Load(),
		IdlePolls:      l.idlePolls.Load(),
		Errors:         l.errs.Load(),
		Sessions:       l.sessions.Load(),
		SessionLost:    l.lost.Load(),
	}
}
