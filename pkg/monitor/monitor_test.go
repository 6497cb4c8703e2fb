package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/teslashibe/irdrowsy/pkg/capture"
	"github.com/teslashibe/irdrowsy/pkg/control"
	"github.com/teslashibe/irdrowsy/pkg/drowsy"
	"github.com/teslashibe/irdrowsy/pkg/frame"
	"github.com/teslashibe/irdrowsy/pkg/present"
	"github.com/teslashibe/irdrowsy/pkg/source"
	"github.com/teslashibe/irdrowsy/pkg/torch"
)

type fixture struct {
	mon     *Monitor
	adapter *source.MockAdapter
	torch   *torch.MockDevice
	pres    *present.Presenter
	sink    *recordingSink
}

type recordingSink struct {
	mu   sync.Mutex
	last Status
	n    int
}

func (s *recordingSink) PublishStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = st
	s.n++
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	adapter := source.NewMockAdapter(source.Config{}, nil)
	dev := torch.NewMockDevice(true)
	adapter.SetTorch(dev)

	loop := capture.NewLoop(adapter, nil)
	settings := control.NewManager(control.DefaultSettings())
	det := drowsy.NewMockDetector(func(gocv.Mat) ([]drowsy.Point, bool, error) {
		return drowsy.SyntheticFace(0.18), true, nil
	})
	pres := present.New(loop, settings, drowsy.NewEstimator(det, nil), nil, time.Millisecond, nil)

	mon := New(loop, settings, pres, t.TempDir(), nil)
	sink := &recordingSink{}
	mon.SetSink(sink)

	t.Cleanup(func() {
		_ = mon.Stop(context.Background())
		pres.Close()
	})
	return &fixture{mon: mon, adapter: adapter, torch: dev, pres: pres, sink: sink}
}

func TestMonitor_StartAppliesTorch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.mon.SetTorch(true, 70)
	assert.ErrorIs(t, err, torch.ErrUnsupported)
	assert.True(t, f.mon.Settings().TorchEnabled)

	require.NoError(t, f.mon.Start(ctx))

	applied, _ := f.torch.Snapshot()
	assert.Equal(t, torch.State{Enabled: true, Power: 70}, applied)

	st := f.mon.Status()
	assert.Equal(t, capture.StateRunning, st.State)
	assert.True(t, st.Torch.Supported)
	require.NotNil(t, st.Torch.Applied)
	assert.Equal(t, "torch.enabled=true, power=70", st.Message)
	assert.Greater(t, f.sink.count(), 0)
}

func TestMonitor_SetTorchWhileRunning(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mon.Start(context.Background()))

	res, err := f.mon.SetTorch(true, 150)
	require.NoError(t, err)
	assert.Equal(t, 100, res.State.Power)
	assert.Equal(t, 100, f.mon.Settings().TorchPower)

	res, err = f.mon.SetTorch(false, -5)
	require.NoError(t, err)
	assert.Equal(t, 0, res.State.Power)

	applied, _ := f.torch.Snapshot()
	assert.False(t, applied.Enabled)
}

func TestMonitor_TorchSettingsChangeReapplies(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mon.Start(context.Background()))
	_, callsBefore := f.torch.Snapshot()

	require.NoError(t, f.mon.ApplyPreset(control.PresetNight))
	applied, calls := f.torch.Snapshot()
	assert.Greater(t, calls, callsBefore)
	assert.Equal(t, torch.State{Enabled: true, Power: 80}, applied)

	// Threshold-only changes leave the torch alone.
	require.NoError(t, f.mon.UpdateSettings(map[string]interface{}{"ear_threshold": 0.3}))
	_, after := f.torch.Snapshot()
	assert.Equal(t, calls, after)
}

func TestMonitor_StartWithoutTorch(t *testing.T) {
	f := newFixture(t)
	f.adapter.SetTorch(nil)

	require.NoError(t, f.mon.Start(context.Background()))
	st := f.mon.Status()
	assert.False(t, st.Torch.Supported)
	assert.Contains(t, st.Message, "not supported")
}

func TestMonitor_StartFailure(t *testing.T) {
	f := newFixture(t)
	f.adapter.SetGroups(nil)

	err := f.mon.Start(context.Background())
	assert.ErrorIs(t, err, source.ErrNoSourceFound)
	st := f.mon.Status()
	assert.Equal(t, capture.StateIdle, st.State)
	assert.Contains(t, st.Message, "start failed")
}

func TestMonitor_FrameToSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.mon.Snapshot()
	assert.ErrorIs(t, err, present.ErrNothingToSave)

	require.NoError(t, f.mon.Start(ctx))
	g := frame.NewGray(64, 48)
	require.True(t, f.adapter.Push(g))

	require.Eventually(t, func() bool { return f.pres.Tick() }, time.Second, time.Millisecond)

	st := f.mon.Status()
	assert.True(t, st.Frame.HasFace)
	assert.True(t, st.Frame.Alert)

	path, err := f.mon.Snapshot()
	require.NoError(t, err)
	assert.Contains(t, f.mon.Status().Message, path)

	require.NoError(t, f.mon.Stop(ctx))
	_, ok := f.pres.Latest()
	assert.False(t, ok)
	assert.Equal(t, "capture stopped", f.mon.Status().Message)
	assert.Equal(t, present.Status{}, f.mon.Status().Frame)
}
