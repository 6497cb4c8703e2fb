package drowsy

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/teslashibe/irdrowsy/internal/log"
	"github.com/teslashibe/irdrowsy/pkg/debug"
	"github.com/teslashibe/irdrowsy/pkg/frame"
)

// AlertText is drawn when the eyes are judged closed.
const AlertText = "DROWSY!"

// Style controls how annotations are drawn. Colors are RGB.
type Style struct {
	BoxColor       color.RGBA
	BoxThickness   int
	PointColor     color.RGBA
	PointRadius    int
	TextColor      color.RGBA
	TextScale      float64
	TextThickness  int
	TextOrigin     image.Point
	AlertColor     color.RGBA
	AlertScale     float64
	AlertThickness int
	AlertOrigin    image.Point
}

// DefaultStyle is a green face box and eye points, white metric text and a
// red alert.
func DefaultStyle() Style {
	return Style{
		BoxColor:       color.RGBA{0, 255, 0, 0},
		BoxThickness:   2,
		PointColor:     color.RGBA{0, 255, 0, 0},
		PointRadius:    1,
		TextColor:      color.RGBA{255, 255, 255, 0},
		TextScale:      0.8,
		TextThickness:  2,
		TextOrigin:     image.Pt(10, 28),
		AlertColor:     color.RGBA{255, 0, 0, 0},
		AlertScale:     1.0,
		AlertThickness: 3,
		AlertOrigin:    image.Pt(10, 60),
	}
}

// Overlay is what gets drawn on a frame with a face.
type Overlay struct {
	Box       image.Rectangle `json:"box"`
	EyePoints []image.Point   `json:"eye_points"`
	Text      string          `json:"text"`
	Alert     bool            `json:"alert"`
}

// Sample is the result of processing one frame.
type Sample struct {
	// EAR is valid only when HasFace is true.
	EAR     float64
	HasFace bool

	// Vis is a BGR rendering of the frame, annotated when HasFace. It is nil
	// when there was no input frame. The caller owns it.
	Vis *gocv.Mat

	Overlay Overlay
}

// Close releases Vis.
func (s *Sample) Close() {
	if s.Vis != nil {
		s.Vis.Close()
		s.Vis = nil
	}
}

// Estimator turns intensity frames into drowsiness samples.
type Estimator struct {
	detector LandmarkDetector
	style    Style
	logger   *slog.Logger
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithStyle overrides the annotation style.
func WithStyle(s Style) Option {
	return func(e *Estimator) {
		e.style = s
	}
}

// NewEstimator creates an estimator around a landmark detector.
func NewEstimator(det LandmarkDetector, logger *slog.Logger, opts ...Option) *Estimator {
	logger = log.Or(logger)
	e := &Estimator{
		detector: det,
		style:    DefaultStyle(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process detects a face in f and computes its eye aspect ratio. Without a
// face the sample carries an unannotated BGR copy of f.
func (e *Estimator) Process(f *frame.Gray, threshold float64) Sample {
	if f == nil {
		return Sample{}
	}

	bgr, err := f.BGR()
	if err != nil {
		bgr.Close()
		e.logger.Warn("frame conversion failed", "seq", f.Seq, "error", err)
		return Sample{}
	}

	pts, ok, err := e.detector.Detect(bgr)
	if err != nil {
		debug.Log("landmark detection failed", "seq", f.Seq, "error", err)
		ok = false
	}
	if !ok || len(pts) < MinLandmarks {
		return Sample{Vis: &bgr}
	}

	ear := AspectRatio(pts)
	ov := BuildOverlay(pts, f.Width, f.Height, ear, threshold)
	e.draw(&bgr, ov)

	debug.FrameLog("ear", "seq", f.Seq, "ear", ear, "threshold", threshold, "alert", ov.Alert)
	return Sample{EAR: ear, HasFace: true, Vis: &bgr, Overlay: ov}
}

// BuildOverlay maps normalized landmarks to pixel annotations. The box spans
// every landmark, clamped to the image.
func BuildOverlay(pts []Point, width, height int, ear, threshold float64) Overlay {
	ov := Overlay{
		Text:  fmt.Sprintf("EAR:%.3f", ear),
		Alert: IsDrowsy(ear, threshold),
	}
	if len(pts) == 0 {
		return ov
	}

	toPixel := func(p Point) image.Point {
		return image.Pt(int(p.X*float64(width)), int(p.Y*float64(height)))
	}

	first := toPixel(pts[0])
	x1, y1, x2, y2 := first.X, first.Y, first.X, first.Y
	for _, p := range pts[1:] {
		px := toPixel(p)
		x1 = min(x1, px.X)
		y1 = min(y1, px.Y)
		x2 = max(x2, px.X)
		y2 = max(y2, px.Y)
	}
	ov.Box = image.Rect(max(0, x1), max(0, y1), min(width-1, x2), min(height-1, y2))

	for _, eye := range [][6]int{LeftEye, RightEye} {
		for _, i := range eye {
			ov.EyePoints = append(ov.EyePoints, toPixel(pts[i]))
		}
	}
	return ov
}

func (e *Estimator) draw(img *gocv.Mat, ov Overlay) {
	s := e.style
	gocv.Rectangle(img, ov.Box, s.BoxColor, s.BoxThickness)
	for _, p := range ov.EyePoints {
		gocv.Circle(img, p, s.PointRadius, s.PointColor, -1)
	}
	gocv.PutText(img, ov.Text, s.TextOrigin, gocv.FontHersheySimplex, s.TextScale, s.TextColor, s.TextThickness)
	if ov.Alert {
		gocv.PutText(img, AlertText, s.AlertOrigin, gocv.FontHersheySimplex, s.AlertScale, s.AlertColor, s.AlertThickness)
	}
}

// Close releases the landmark detector.
func (e *Estimator) Close() error {
	return e.detector.Close()
}
