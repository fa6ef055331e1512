package types

import "context"

// Detection is one bounding box reported by the object detector, in image
// pixels with the origin at the top-left corner.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
}

// DetectionResult is the detector output for one frame.
type DetectionResult struct {
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Boxes  []Detection `json:"boxes"`
}

// Detector runs object detection on the current camera frame. A nil or empty
// targets slice detects every known class.
type Detector interface {
	DetectObjects(ctx context.Context, targets []string) (DetectionResult, error)
}

// CameraModel carries the vision sensor parameters needed to back-project a
// pixel. Extrinsic is the row-major 3x4 camera-to-world matrix.
type CameraModel struct {
	Width            int         `json:"width"`
	Height           int         `json:"height"`
	PerspectiveAngle float64     `json:"perspectiveAngle"`
	Near             float64     `json:"near"`
	Far              float64     `json:"far"`
	Extrinsic        [12]float64 `json:"extrinsic"`
}

// DepthImage is a normalized depth buffer in [0, 1], rows stored bottom-up as
// the sensor produces them.
type DepthImage struct {
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Depth  []float32 `json:"depth"`
}

// At returns the normalized depth at column u, row v.
func (d DepthImage) At(u, v int) (float32, bool) {
	if u < 0 || v < 0 || u >= d.Width || v >= d.Height || len(d.Depth) < d.Width*d.Height {
		return 0, false
	}
	return d.Depth[v*d.Width+u], true
}

// Camera exposes the vision sensor.
type Camera interface {
	CameraModel(ctx context.Context) (CameraModel, error)
	DepthImage(ctx context.Context) (DepthImage, error)
}

// DetectionVisualizer draws detections and a chosen grasp point in the scene.
type DetectionVisualizer interface {
	VisualizeDetections(ctx context.Context, boxes []Detection, point *[3]float64) error
}
