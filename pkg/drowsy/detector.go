package drowsy

import (
	"sync"

	"gocv.io/x/gocv"
)

// LandmarkDetector finds the landmarks of at most one face. ok is false when
// there is no face. Points are normalized to the image size.
type LandmarkDetector interface {
	Detect(img gocv.Mat) (pts []Point, ok bool, err error)
	Close() error
}

// DetectFunc adapts a function to LandmarkDetector.
type DetectFunc func(img gocv.Mat) ([]Point, bool, error)

// MockDetector is a LandmarkDetector driven by a function, for tests and
// model-free demo runs.
type MockDetector struct {
	mu     sync.Mutex
	fn     DetectFunc
	calls  int
	closed bool
}

// NewMockDetector creates a mock. A nil fn never finds a face.
func NewMockDetector(fn DetectFunc) *MockDetector {
	return &MockDetector{fn: fn}
}

// Detect implements LandmarkDetector.
func (m *MockDetector) Detect(img gocv.Mat) ([]Point, bool, error) {
	m.mu.Lock()
	m.calls++
	fn := m.fn
	m.mu.Unlock()

	if fn == nil {
		return nil, false, nil
	}
	return fn(img)
}

// Close implements LandmarkDetector.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Calls returns how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// SyntheticFace builds a full landmark set whose eyes have exactly the given
// aspect ratio. The face outline is a ring around the image center.
func SyntheticFace(ear float64) []Point {
	const (
		n       = 468
		radius  = 0.25
		halfEye = 0.05
	)
	pts := make([]Point, n)
	for i := range pts {
		// Spread the non-eye points on a coarse grid inside the face square.
		pts[i] = Point{
			X: 0.5 - radius + 2*radius*float64(i%18)/17,
			Y: 0.5 - radius + 2*radius*float64(i/18)/25,
		}
	}

	gap := ear * (2*halfEye + Epsilon)
	place := func(idx [6]int, cx, cy float64) {
		pts[idx[0]] = Point{cx - halfEye, cy}
		pts[idx[3]] = Point{cx + halfEye, cy}
		pts[idx[1]] = Point{cx - halfEye/3, cy - gap/2}
		pts[idx[5]] = Point{cx - halfEye/3, cy + gap/2}
		pts[idx[2]] = Point{cx + halfEye/3, cy - gap/2}
		pts[idx[4]] = Point{cx + halfEye/3, cy + gap/2}
	}
	place(LeftEye, 0.4, 0.42)
	place(RightEye, 0.6, 0.42)
	return pts
}
