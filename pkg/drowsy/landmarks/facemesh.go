package landmarks

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/irdrowsy/pkg/debug"
	"github.com/teslashibe/irdrowsy/pkg/drowsy"
)

// MeshPoints is the landmark count of the face-mesh model.
const MeshPoints = 468

// Config holds landmark model configuration
type Config struct {
	DetectorModel    string  `yaml:"detector_model" json:"detector_model"`       // YuNet face detector ONNX
	MeshModel        string  `yaml:"mesh_model" json:"mesh_model"`               // face-mesh ONNX, 468x3 output
	ConfidenceThresh float64 `yaml:"confidence_thresh" json:"confidence_thresh"` // minimum face score
	MeshInput        int     `yaml:"mesh_input" json:"mesh_input"`               // square mesh input size
	CropScale        float64 `yaml:"crop_scale" json:"crop_scale"`               // face box expansion before meshing
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		DetectorModel:    "models/face_detection_yunet.onnx",
		MeshModel:        "models/face_mesh.onnx",
		ConfidenceThresh: 0.5,
		MeshInput:        192,
		CropScale:        1.5,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.ConfidenceThresh <= 0 || c.ConfidenceThresh >= 1 {
		return fmt.Errorf("confidence_thresh must be in (0,1), got %v", c.ConfidenceThresh)
	}
	if c.MeshInput <= 0 {
		return fmt.Errorf("mesh_input must be positive, got %d", c.MeshInput)
	}
	if c.CropScale < 1 {
		return fmt.Errorf("crop_scale must be at least 1, got %v", c.CropScale)
	}
	return nil
}

// FaceMesh finds the best face with YuNet and runs the face-mesh network on it.
type FaceMesh struct {
	detector gocv.FaceDetectorYN
	net      gocv.Net
	config   Config
	mu       sync.Mutex // Protects inference
}

// New loads both models.
func New(cfg Config) (*FaceMesh, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, p := range []string{cfg.DetectorModel, cfg.MeshModel} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return nil, fmt.Errorf("model file not found: %s", p)
		}
	}

	net := gocv.ReadNetFromONNX(cfg.MeshModel)
	if net.Empty() {
		return nil, fmt.Errorf("load face mesh model %s", cfg.MeshModel)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.DetectorModel,
		"",
		image.Pt(320, 320), // Updated per image
		float32(cfg.ConfidenceThresh),
		0.3,
		5000,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &FaceMesh{
		detector: detector,
		net:      net,
		config:   cfg,
	}, nil
}

// Detect implements drowsy.LandmarkDetector.
func (m *FaceMesh) Detect(img gocv.Mat) ([]drowsy.Point, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if img.Empty() {
		return nil, false, errors.New("empty image")
	}

	w, h := img.Cols(), img.Rows()
	best := SelectBest(m.faces(img))
	if best == nil {
		return nil, false, nil
	}

	x0, y0, x1, y1 := CropSquare(*best, w, h, m.config.CropScale)
	roi := image.Rect(x0, y0, x1, y1)
	if roi.Dx() < 8 || roi.Dy() < 8 {
		return nil, false, nil
	}

	crop := img.Region(roi)
	defer crop.Close()

	in := m.config.MeshInput
	blob := gocv.BlobFromImage(crop, 1.0/255.0, image.Pt(in, in), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	m.net.SetInput(blob, "")
	out := m.net.Forward("")
	defer out.Close()

	if out.Total() < MeshPoints*3 {
		return nil, false, fmt.Errorf("face mesh output has %d values, want %d", out.Total(), MeshPoints*3)
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, false, fmt.Errorf("read face mesh output: %w", err)
	}

	// Mesh coordinates are in model input pixels; map them back through the crop.
	sx := float64(roi.Dx()) / float64(in)
	sy := float64(roi.Dy()) / float64(in)
	pts := make([]drowsy.Point, MeshPoints)
	for i := range pts {
		px := float64(data[i*3])*sx + float64(roi.Min.X)
		py := float64(data[i*3+1])*sy + float64(roi.Min.Y)
		pts[i] = drowsy.Point{X: px / float64(w), Y: py / float64(h)}
	}

	debug.FrameLog("face mesh", "confidence", best.Confidence, "crop", roi.String())
	return pts, true, nil
}

// faces runs YuNet and returns normalized detections.
func (m *FaceMesh) faces(img gocv.Mat) []Detection {
	imgW := float64(img.Cols())
	imgH := float64(img.Rows())

	m.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	m.detector.Detect(img, &faces)

	var detections []Detection
	for r := 0; r < faces.Rows(); r++ {
		// YuNet rows: x, y, w, h, 5 landmark pairs, score.
		detections = append(detections, Detection{
			X:          float64(faces.GetFloatAt(r, 0)) / imgW,
			Y:          float64(faces.GetFloatAt(r, 1)) / imgH,
			W:          float64(faces.GetFloatAt(r, 2)) / imgW,
			H:          float64(faces.GetFloatAt(r, 3)) / imgH,
			Confidence: float64(faces.GetFloatAt(r, 14)),
		})
	}
	return detections
}

// Close releases both models
func (m *FaceMesh) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detector.Close()
	return m.net.Close()
}
