package drowsy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/teslashibe/irdrowsy/pkg/frame"
)

const marker = 200

func filled(w, h int, v uint8) *frame.Gray {
	f := frame.NewGray(w, h)
	for i := range f.Pix {
		f.Pix[i] = v
	}
	return f
}

// faceOnMarker reports a face with the given metric only on frames whose
// first pixel carries the marker value.
func faceOnMarker(ear float64) DetectFunc {
	return func(img gocv.Mat) ([]Point, bool, error) {
		if img.GetVecbAt(0, 0)[0] != marker {
			return nil, false, nil
		}
		return SyntheticFace(ear), true, nil
	}
}

func allBytes(t *testing.T, m *gocv.Mat, v uint8) bool {
	t.Helper()
	for _, b := range m.ToBytes() {
		if b != v {
			return false
		}
	}
	return true
}

func TestEstimator_NilFrame(t *testing.T) {
	det := NewMockDetector(faceOnMarker(0.3))
	e := NewEstimator(det, nil)

	s := e.Process(nil, 0.22)
	assert.False(t, s.HasFace)
	assert.Nil(t, s.Vis)
	assert.Equal(t, 0, det.Calls())
}

func TestEstimator_NoFace(t *testing.T) {
	e := NewEstimator(NewMockDetector(nil), nil)

	s := e.Process(filled(32, 24, 90), 0.22)
	defer s.Close()

	assert.False(t, s.HasFace)
	require.NotNil(t, s.Vis)
	assert.Equal(t, 3, s.Vis.Channels())
	assert.True(t, allBytes(t, s.Vis, 90))
	assert.Equal(t, Overlay{}, s.Overlay)
}

func TestEstimator_DetectorErrorIsNoFace(t *testing.T) {
	e := NewEstimator(NewMockDetector(func(gocv.Mat) ([]Point, bool, error) {
		return nil, false, errors.New("inference failed")
	}), nil)

	s := e.Process(filled(16, 16, 5), 0.22)
	defer s.Close()
	assert.False(t, s.HasFace)
	require.NotNil(t, s.Vis)
}

func TestEstimator_TooFewPointsIsNoFace(t *testing.T) {
	e := NewEstimator(NewMockDetector(func(gocv.Mat) ([]Point, bool, error) {
		return make([]Point, 10), true, nil
	}), nil)

	s := e.Process(filled(16, 16, 5), 0.22)
	defer s.Close()
	assert.False(t, s.HasFace)
}

func TestEstimator_FiveFrameScenario(t *testing.T) {
	const threshold = 0.22
	e := NewEstimator(NewMockDetector(faceOnMarker(0.18)), nil)

	frames := []*frame.Gray{
		filled(160, 120, 100),
		filled(160, 120, 100),
		filled(160, 120, marker),
		filled(160, 120, 100),
		filled(160, 120, 100),
	}

	for i, f := range frames {
		s := e.Process(f, threshold)
		require.NotNil(t, s.Vis, "frame %d", i+1)

		if i == 2 {
			assert.True(t, s.HasFace)
			assert.InDelta(t, 0.18, s.EAR, 1e-9)
			assert.True(t, s.Overlay.Alert)
			assert.Equal(t, "EAR:0.180", s.Overlay.Text)

			// The far box corner is painted green.
			px := s.Vis.GetVecbAt(s.Overlay.Box.Max.Y, s.Overlay.Box.Max.X)
			assert.Equal(t, []uint8{0, 255, 0}, []uint8(px))
			assert.False(t, allBytes(t, s.Vis, marker))
		} else {
			assert.False(t, s.HasFace, "frame %d", i+1)
			assert.True(t, allBytes(t, s.Vis, 100), "frame %d must be undecorated", i+1)
		}
		s.Close()
	}
}

func TestEstimator_EqualThresholdDrawsNoAlert(t *testing.T) {
	withAlert := NewEstimator(NewMockDetector(faceOnMarker(0.22)), nil)

	s := withAlert.Process(filled(160, 120, marker), 0.22)
	defer s.Close()

	require.True(t, s.HasFace)
	assert.False(t, s.Overlay.Alert)

	// The alert is drawn in pure red; none must appear.
	data := s.Vis.ToBytes()
	for i := 0; i+2 < len(data); i += 3 {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 255 {
			t.Fatalf("found alert-colored pixel at byte %d", i)
		}
	}
}

func TestEstimator_Close(t *testing.T) {
	det := NewMockDetector(nil)
	e := NewEstimator(det, nil)
	require.NoError(t, e.Close())
	assert.True(t, det.Closed())
}
