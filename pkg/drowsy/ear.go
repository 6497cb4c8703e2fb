// Package drowsy estimates eye openness from facial landmarks and annotates
// the frame it was computed on.
package drowsy

import "math"

// Point is a landmark in normalized image coordinates, [0,1] on both axes.
type Point struct {
	X, Y float64
}

// Eye landmark indices in the 468-point face-mesh topology, ordered
// outer corner, upper lid x2, inner corner, lower lid x2.
var (
	LeftEye  = [6]int{33, 160, 158, 133, 153, 144}
	RightEye = [6]int{263, 387, 385, 362, 380, 373}
)

// Epsilon keeps degenerate eyes from dividing by zero.
const Epsilon = 1e-6

// MinLandmarks is the smallest landmark count that covers both eyes.
const MinLandmarks = 388

func dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// EyeAspectRatio is the mean of the two vertical lid gaps over the corner
// distance for one eye.
func EyeAspectRatio(pts []Point, idx [6]int) float64 {
	p0, p1, p2 := pts[idx[0]], pts[idx[1]], pts[idx[2]]
	p3, p4, p5 := pts[idx[3]], pts[idx[4]], pts[idx[5]]

	horiz := dist(p0, p3) + Epsilon
	v1 := dist(p1, p5)
	v2 := dist(p2, p4)
	return 0.5 * (v1 + v2) / horiz
}

// AspectRatio averages both eyes. pts must hold at least MinLandmarks points.
func AspectRatio(pts []Point) float64 {
	return 0.5 * (EyeAspectRatio(pts, LeftEye) + EyeAspectRatio(pts, RightEye))
}

// IsDrowsy reports whether ear is strictly below threshold. A value equal to
// the threshold does not alert.
func IsDrowsy(ear, threshold float64) bool {
	return ear < threshold
}
