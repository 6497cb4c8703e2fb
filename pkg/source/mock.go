package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/irdrowsy/internal/log"
	"github.com/teslashibe/irdrowsy/pkg/frame"
	"github.com/teslashibe/irdrowsy/pkg/torch"
)

// Mock frame size used when synthesizing frames.
const (
	MockWidth  = 640
	MockHeight = 480
)

// MockAdapter is an in-memory adapter. By default it reports one camera module
// with a color and an infrared source; tests can replace the groups, inject
// open failures and push frames into the active session.
type MockAdapter struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	groups  []Group
	openErr error
	torch   *torch.MockDevice
	active  *MockSession
	opens   int
	closes  int
}

// NewMockAdapter creates a mock adapter.
func NewMockAdapter(cfg Config, logger *slog.Logger) *MockAdapter {
	logger = log.Or(logger)
	return &MockAdapter{
		cfg:    cfg,
		logger: logger,
		groups: DefaultMockGroups(),
		torch:  torch.NewMockDevice(true),
	}
}

// DefaultMockGroups is a typical face-auth camera: RGB and IR nodes on one module.
func DefaultMockGroups() []Group {
	return []Group{{
		ID:   "mock-module-0",
		Name: "Mock IR Camera",
		Sources: []SourceInfo{
			{ID: "mock-color", Name: "Mock RGB", Kind: KindColor, Role: RolePreview, Formats: []string{"YUYV", "MJPG"}},
			{ID: "mock-ir", Name: "Mock IR", Kind: KindInfrared, Role: RolePreview, Formats: []string{"GREY"}},
		},
	}}
}

// Name implements Adapter.
func (m *MockAdapter) Name() string { return string(BackendMock) }

// SetGroups replaces the reported groups.
func (m *MockAdapter) SetGroups(groups []Group) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups = groups
}

// SetOpenError makes subsequent Open calls fail with err. Nil clears it.
func (m *MockAdapter) SetOpenError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
}

// SetTorch sets the torch handed to new sessions. Nil means no torch.
func (m *MockAdapter) SetTorch(dev *torch.MockDevice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.torch = dev
}

// Groups implements Adapter.
func (m *MockAdapter) Groups(ctx context.Context) ([]Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Group, len(m.groups))
	copy(out, m.groups)
	return out, nil
}

// Open implements Adapter.
func (m *MockAdapter) Open(ctx context.Context, info SourceInfo) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, &OpenError{SourceID: info.ID, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.openErr != nil {
		return nil, &OpenError{SourceID: info.ID, Err: m.openErr}
	}
	if m.active != nil && !m.active.isClosed() {
		return nil, &OpenError{SourceID: info.ID, Err: errBusy}
	}

	s := &MockSession{
		adapter: m,
		info:    info,
		fps:     m.cfg.MockFPS,
	}
	if m.torch != nil {
		s.torch = m.torch
	}
	m.active = s
	m.opens++

	m.logger.Debug("mock source opened", "source", info.ID)
	return s, nil
}

// Active returns the most recently opened session, or nil.
func (m *MockAdapter) Active() *MockSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Push delivers f to the active session. It reports false when no session is open.
func (m *MockAdapter) Push(f *frame.Gray) bool {
	s := m.Active()
	if s == nil {
		return false
	}
	return s.Push(f)
}

// Counts returns how many sessions were opened and closed.
func (m *MockAdapter) Counts() (opens, closes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens, m.closes
}

func (m *MockAdapter) sessionClosed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
}

// MockSession is the session type produced by MockAdapter.
type MockSession struct {
	adapter *MockAdapter
	info    SourceInfo
	torch   torch.Device
	fps     int

	mu       sync.Mutex
	pending  *Raw
	seq      uint64
	closed   bool
	lastGen  time.Time
	acquired int
	released int
	dropped  int
}

// Source implements Session.
func (s *MockSession) Source() SourceInfo { return s.info }

// Push queues f as the newest frame, replacing any unread one.
func (s *MockSession) Push(f *frame.Gray) bool {
	return s.PushRaw(Raw{
		Format: FormatGray8,
		Width:  f.Width,
		Height: f.Height,
		Stride: f.Width,
		Data:   f.Pix,
	})
}

// PushRaw queues an undecoded buffer, e.g. to exercise the color path or a
// decode failure.
func (s *MockSession) PushRaw(raw Raw) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.pending != nil {
		s.dropped++
	}
	s.pending = &raw
	return true
}

// TryAcquireLatest implements Session.
func (s *MockSession) TryAcquireLatest() (*frame.Gray, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.pending == nil {
		s.synthesize()
	}
	if s.pending == nil {
		return nil, ErrNoFrame
	}

	raw := *s.pending
	s.pending = nil
	s.acquired++
	defer func() { s.released++ }()

	g, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	s.seq++
	g.Seq = s.seq
	return g, nil
}

// synthesize produces a moving gradient when the mock runs at a frame rate.
func (s *MockSession) synthesize() {
	if s.fps <= 0 {
		return
	}
	now := time.Now()
	if now.Sub(s.lastGen) < time.Second/time.Duration(s.fps) {
		return
	}
	s.lastGen = now

	data := make([]byte, MockWidth*MockHeight)
	shift := int(s.seq % 256)
	for y := 0; y < MockHeight; y++ {
		for x := 0; x < MockWidth; x++ {
			data[y*MockWidth+x] = uint8((x + y + shift) & 0xff)
		}
	}
	s.pending = &Raw{Format: FormatGray8, Width: MockWidth, Height: MockHeight, Stride: MockWidth, Data: data}
}

// Torch implements Session.
func (s *MockSession) Torch() (torch.Device, bool) {
	return s.torch, s.torch != nil
}

// Close implements Session.
func (s *MockSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.pending = nil
	s.mu.Unlock()

	s.adapter.sessionClosed()
	return nil
}

// Buffers returns how many device buffers were acquired and released.
func (s *MockSession) Buffers() (acquired, released int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired, s.released
}

// Dropped returns how many unread frames were overwritten by newer ones.
func (s *MockSession) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *MockSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
