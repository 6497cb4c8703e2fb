package drowsy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDrowsy(t *testing.T) {
	tests := []struct {
		name      string
		ear       float64
		threshold float64
		want      bool
	}{
		{"below threshold", 0.18, 0.22, true},
		{"equal to threshold", 0.22, 0.22, false},
		{"above threshold", 0.30, 0.22, false},
		{"just below", math.Nextafter(0.22, 0), 0.22, true},
		{"zero metric", 0, 0.10, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsDrowsy(tc.ear, tc.threshold))
		})
	}
}

func TestEyeAspectRatio_Formula(t *testing.T) {
	pts := make([]Point, MinLandmarks)
	idx := LeftEye
	// Corners 0.2 apart; vertical gaps 0.04 and 0.06.
	pts[idx[0]] = Point{0.1, 0.5}
	pts[idx[3]] = Point{0.3, 0.5}
	pts[idx[1]] = Point{0.15, 0.48}
	pts[idx[5]] = Point{0.15, 0.52}
	pts[idx[2]] = Point{0.25, 0.47}
	pts[idx[4]] = Point{0.25, 0.53}

	want := 0.5 * (0.04 + 0.06) / (0.2 + Epsilon)
	assert.InDelta(t, want, EyeAspectRatio(pts, idx), 1e-9)
}

func TestEyeAspectRatio_DegenerateEye(t *testing.T) {
	pts := make([]Point, MinLandmarks)
	// All six points coincide: no division by zero, ratio is zero.
	ear := EyeAspectRatio(pts, RightEye)
	assert.False(t, math.IsNaN(ear))
	assert.False(t, math.IsInf(ear, 0))
	assert.Equal(t, 0.0, ear)
}

func TestAspectRatio_Symmetry(t *testing.T) {
	pts := SyntheticFace(0.27)

	// Mirroring the face horizontally and swapping eye labels keeps the metric.
	mirrored := make([]Point, len(pts))
	for i, p := range pts {
		mirrored[i] = Point{1 - p.X, p.Y}
	}
	swapped := make([]Point, len(pts))
	copy(swapped, mirrored)
	for k := range LeftEye {
		swapped[LeftEye[k]], swapped[RightEye[k]] = mirrored[RightEye[k]], mirrored[LeftEye[k]]
	}
	assert.InDelta(t, AspectRatio(pts), AspectRatio(swapped), 1e-12)

	// Swapping the left and right eye labels alone is also neutral.
	relabeled := make([]Point, len(pts))
	copy(relabeled, pts)
	for k := range LeftEye {
		relabeled[LeftEye[k]], relabeled[RightEye[k]] = pts[RightEye[k]], pts[LeftEye[k]]
	}
	assert.InDelta(t, AspectRatio(pts), AspectRatio(relabeled), 1e-12)

	// Per-eye values agree for a symmetric face.
	assert.InDelta(t, EyeAspectRatio(pts, LeftEye), EyeAspectRatio(pts, RightEye), 1e-12)
}

func TestSyntheticFace(t *testing.T) {
	for _, ear := range []float64{0.10, 0.18, 0.22, 0.35} {
		pts := SyntheticFace(ear)
		assert.Len(t, pts, 468)
		assert.InDelta(t, ear, AspectRatio(pts), 1e-9)
	}
}

func TestBuildOverlay(t *testing.T) {
	pts := make([]Point, MinLandmarks)
	for i := range pts {
		pts[i] = Point{0.5, 0.5}
	}
	pts[0] = Point{-0.1, 0.2}
	pts[1] = Point{1.2, 0.9}

	ov := BuildOverlay(pts, 100, 50, 0.183, 0.22)

	assert.Equal(t, 0, ov.Box.Min.X)
	assert.Equal(t, 10, ov.Box.Min.Y)
	assert.Equal(t, 99, ov.Box.Max.X)
	assert.Equal(t, 45, ov.Box.Max.Y)
	assert.Equal(t, "EAR:0.183", ov.Text)
	assert.True(t, ov.Alert)
	assert.Len(t, ov.EyePoints, 12)

	ov = BuildOverlay(pts, 100, 50, 0.22, 0.22)
	assert.False(t, ov.Alert)
}
