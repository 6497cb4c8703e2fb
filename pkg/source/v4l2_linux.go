//go:build linux

package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blackjack/webcam"

	"github.com/teslashibe/irdrowsy/pkg/debug"
	"github.com/teslashibe/irdrowsy/pkg/frame"
	"github.com/teslashibe/irdrowsy/pkg/torch"
)

var (
	videoNodePattern = regexp.MustCompile(`^video(\d+)$`)

	torchControlPattern = regexp.MustCompile(`(?i)\b(ir|infrared)\b|emitter|illuminat|torch|\bled\b`)
)

// v4l2Adapter lists /dev/video* nodes and groups them by physical device.
type v4l2Adapter struct {
	cfg    Config
	logger *slog.Logger
}

func newV4L2Adapter(cfg Config, logger *slog.Logger) (Adapter, error) {
	return &v4l2Adapter{cfg: cfg, logger: logger}, nil
}

func (a *v4l2Adapter) Name() string { return string(BackendV4L2) }

// Groups implements Adapter.
func (a *v4l2Adapter) Groups(ctx context.Context) ([]Group, error) {
	nodes, err := a.nodes()
	if err != nil {
		return nil, fmt.Errorf("source: list video nodes: %w", err)
	}

	scanned := make([]videoNode, 0, len(nodes))
	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := a.inspect(node)
		scanned = append(scanned, p)

		a.logger.Debug("video node",
			"node", node,
			"name", p.Info.Name,
			"kind", p.Info.Kind,
			"role", p.Info.Role,
			"formats", strings.Join(p.Info.Formats, ","),
			"bus", p.Bus,
		)
	}
	return groupByBus(scanned), nil
}

// nodes returns device paths sorted by node number.
func (a *v4l2Adapter) nodes() ([]string, error) {
	if a.cfg.Device != "" {
		return []string{a.cfg.Device}, nil
	}

	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		return nodeNumber(matches[i]) < nodeNumber(matches[j])
	})
	return matches, nil
}

func nodeNumber(path string) int {
	m := videoNodePattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return 1 << 30
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// inspect opens the node briefly to read its card name, bus and formats, and
// classifies it.
func (a *v4l2Adapter) inspect(node string) videoNode {
	info := SourceInfo{ID: node, Name: filepath.Base(node)}
	var bus string

	cam, err := webcam.Open(node)
	if err != nil {
		debug.Log("video node not openable", "node", node, "error", err)
	} else {
		if name, err := cam.GetName(); err == nil && name != "" {
			info.Name = name
		}
		if b, err := cam.GetBusInfo(); err == nil {
			bus = b
		}
		for pf := range cam.GetSupportedFormats() {
			info.Formats = append(info.Formats, fourCC(pf))
		}
		sort.Strings(info.Formats)
		cam.Close()
	}

	info.Kind, info.Role = Classify(info.Name, info.Formats)
	if a.cfg.Device != "" && info.Role != RoleMetadata {
		info.Kind = KindInfrared
	}
	return videoNode{Info: info, Bus: bus}
}

func fourCC(pf webcam.PixelFormat) string {
	v := uint32(pf)
	return string([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}

// Open implements Adapter.
func (a *v4l2Adapter) Open(ctx context.Context, info SourceInfo) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, &OpenError{SourceID: info.ID, Err: err}
	}

	cam, err := webcam.Open(info.ID)
	if err != nil {
		return nil, &OpenError{SourceID: info.ID, Err: err}
	}

	s, err := a.start(cam, info)
	if err != nil {
		cam.Close()
		return nil, &OpenError{SourceID: info.ID, Err: err}
	}
	return s, nil
}

func (a *v4l2Adapter) start(cam *webcam.Webcam, info SourceInfo) (*v4l2Session, error) {
	format, width, height, err := a.negotiate(cam)
	if err != nil {
		return nil, err
	}

	if a.cfg.BufferCount > 0 {
		if err := cam.SetBufferCount(uint32(a.cfg.BufferCount)); err != nil {
			return nil, fmt.Errorf("set buffer count: %w", err)
		}
	}
	if err := cam.StartStreaming(); err != nil {
		return nil, fmt.Errorf("start streaming: %w", err)
	}

	s := &v4l2Session{
		info:    info,
		cam:     cam,
		format:  format,
		width:   width,
		height:  height,
		buffers: a.cfg.BufferCount,
		logger:  a.logger,
	}
	s.torch = findTorch(cam, s)

	a.logger.Info("V4L2 source streaming",
		"node", info.ID,
		"format", format,
		"width", width,
		"height", height,
		"torch", s.torch != nil,
	)
	return s, nil
}

// negotiate asks for 8-bit gray and falls back to 32-bit color.
func (a *v4l2Adapter) negotiate(cam *webcam.Webcam) (Format, int, int, error) {
	offered := map[string]webcam.PixelFormat{}
	var codes []string
	for pf := range cam.GetSupportedFormats() {
		code := fourCC(pf)
		offered[code] = pf
		codes = append(codes, code)
	}

	candidates, err := formatCandidates(codes)
	if err != nil {
		return FormatUnknown, 0, 0, err
	}
	for _, code := range candidates {
		pf := offered[code]
		w, h := a.frameSize(cam, pf)
		got, gw, gh, err := cam.SetImageFormat(pf, w, h)
		if err != nil {
			debug.Log("format rejected", "format", code, "error", err)
			continue
		}
		f := FormatFromFourCC(fourCC(got))
		if f == FormatUnknown {
			continue
		}
		return f, int(gw), int(gh), nil
	}
	return FormatUnknown, 0, 0, errNoDecodableFormat
}

func (a *v4l2Adapter) frameSize(cam *webcam.Webcam, pf webcam.PixelFormat) (uint32, uint32) {
	if a.cfg.Width > 0 && a.cfg.Height > 0 {
		return uint32(a.cfg.Width), uint32(a.cfg.Height)
	}
	var w, h uint32 = 640, 480
	for _, fs := range cam.GetSupportedFrameSizes(pf) {
		if fs.MaxWidth*fs.MaxHeight > w*h {
			w, h = fs.MaxWidth, fs.MaxHeight
		}
	}
	return w, h
}

// v4l2Session is a streaming V4L2 node. mu serializes every ioctl on cam,
// including those issued by the torch.
type v4l2Session struct {
	info    SourceInfo
	format  Format
	width   int
	height  int
	buffers int
	logger  *slog.Logger
	torch   *v4l2Torch

	mu  sync.Mutex
	cam *webcam.Webcam
	seq uint64
}

func (s *v4l2Session) Source() SourceInfo { return s.info }

// TryAcquireLatest drains the ready buffers and keeps only the newest frame.
func (s *v4l2Session) TryAcquireLatest() (*frame.Gray, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cam == nil {
		return nil, ErrClosed
	}

	g, err := drainLatest(webcamQueue{s.cam}, s.buffers, s.decode, s.logger)
	if err != nil {
		return nil, err
	}
	s.seq++
	g.Seq = s.seq
	return g, nil
}

func (s *v4l2Session) decode(buf []byte) (*frame.Gray, error) {
	stride := 0
	if s.height > 0 {
		stride = len(buf) / s.height
	}
	return Decode(Raw{
		Format: s.format,
		Width:  s.width,
		Height: s.height,
		Stride: stride,
		Data:   buf,
	})
}

// webcamQueue adapts a streaming webcam to bufferQueue.
type webcamQueue struct {
	cam *webcam.Webcam
}

func (q webcamQueue) Ready() (bool, error) {
	err := q.cam.WaitForFrame(0)
	if err == nil {
		return true, nil
	}
	var timeout *webcam.Timeout
	if errors.As(err, &timeout) {
		return false, nil
	}
	return false, err
}

func (q webcamQueue) Dequeue() ([]byte, uint32, error) {
	return q.cam.GetFrame()
}

func (q webcamQueue) Requeue(index uint32) error {
	return q.cam.ReleaseFrame(index)
}

func (s *v4l2Session) Torch() (torch.Device, bool) {
	if s.torch == nil {
		return nil, false
	}
	return s.torch, true
}

func (s *v4l2Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cam == nil {
		return nil
	}
	cam := s.cam
	s.cam = nil

	return errors.Join(cam.StopStreaming(), cam.Close())
}

// v4l2Torch drives an illuminator exposed as a V4L2 control.
type v4l2Torch struct {
	session  *v4l2Session
	id       webcam.ControlID
	name     string
	min, max int32
	level    int32
}

func findTorch(cam *webcam.Webcam, s *v4l2Session) *v4l2Torch {
	controls := cam.GetControls()
	ids := make([]webcam.ControlID, 0, len(controls))
	for id := range controls {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		c := controls[id]
		if !torchControlPattern.MatchString(c.Name) || c.Max <= c.Min {
			continue
		}
		t := &v4l2Torch{session: s, id: id, name: c.Name, min: c.Min, max: c.Max}
		t.level = t.scale(torch.DefaultPower)
		if !t.PowerAdjustable() {
			t.level = c.Max
		}
		return t
	}
	return nil
}

func (t *v4l2Torch) PowerAdjustable() bool {
	return t.max-t.min > 1
}

func (t *v4l2Torch) scale(power int) int32 {
	return t.min + int32(int64(t.max-t.min)*int64(torch.ClampPower(power))/100)
}

// SetPower records the level applied by the next SetEnabled(true).
func (t *v4l2Torch) SetPower(power int) error {
	t.session.mu.Lock()
	defer t.session.mu.Unlock()
	t.level = t.scale(power)
	return nil
}

func (t *v4l2Torch) SetEnabled(on bool) error {
	t.session.mu.Lock()
	defer t.session.mu.Unlock()

	if t.session.cam == nil {
		return ErrClosed
	}
	v := t.min
	if on {
		v = t.level
	}
	if err := t.session.cam.SetControl(t.id, v); err != nil {
		return fmt.Errorf("set control %q: %w", t.name, err)
	}
	return nil
}
