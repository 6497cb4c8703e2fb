// Package landmarks runs the face-mesh landmark model on infrared frames.
package landmarks

// Detection represents a detected face
type Detection struct {
	X, Y       float64 // Top-left corner (0-1 normalized)
	W, H       float64 // Width and height (0-1 normalized)
	Confidence float64 // Detection confidence (0-1)
}

// Center returns the center point of the detection
func (d Detection) Center() (x, y float64) {
	return d.X + d.W/2, d.Y + d.H/2
}

// Area returns the area of the bounding box
func (d Detection) Area() float64 {
	return d.W * d.H
}

// SelectBest picks the face to measure when several are found.
// Priority: confidence * 0.7 + relative area * 0.3, so the driver (closest,
// largest face) wins over a passenger in the background.
func SelectBest(dets []Detection) *Detection {
	if len(dets) == 0 {
		return nil
	}

	if len(dets) == 1 {
		return &dets[0]
	}

	maxArea := 0.0
	for _, d := range dets {
		if d.Area() > maxArea {
			maxArea = d.Area()
		}
	}

	bestScore := -1.0
	var best *Detection

	for i := range dets {
		rel := 0.0
		if maxArea > 0 {
			rel = dets[i].Area() / maxArea
		}
		score := dets[i].Confidence*0.7 + rel*0.3
		if score > bestScore {
			bestScore = score
			best = &dets[i]
		}
	}

	return best
}

// CropSquare expands d by scale around its center into a square pixel region,
// clamped to a width x height image. The mesh model expects a roughly square
// face crop with some margin.
func CropSquare(d Detection, width, height int, scale float64) (x0, y0, x1, y1 int) {
	cx, cy := d.Center()
	side := max(d.W*float64(width), d.H*float64(height)) * scale
	half := side / 2

	x0 = int(cx*float64(width) - half)
	y0 = int(cy*float64(height) - half)
	x1 = int(cx*float64(width) + half)
	y1 = int(cy*float64(height) + half)

	x0 = max(0, x0)
	y0 = max(0, y0)
	x1 = min(width, x1)
	y1 = min(height, y1)
	return x0, y0, x1, y1
}
