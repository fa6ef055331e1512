package vision

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pickplace/pkg/types"
)

func TestGraspPixel(t *testing.T) {
	box := types.Detection{X1: 100.7, Y1: 50.2, X2: 200.9, Y2: 150.8}

	tests := []struct {
		name  string
		tall  bool
		wantU int
		wantV int
	}{
		{"flat item grasped below centre", false, 150, 384},
		{"tall item grasped below top", true, 150, 426},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, v := GraspPixel(box, 480, tt.tall)
			assert.Equal(t, tt.wantU, u)
			assert.Equal(t, tt.wantV, v)
		})
	}
}

func TestGraspPixelCornerOrder(t *testing.T) {
	a := types.Detection{X1: 10, Y1: 20, X2: 30, Y2: 40}
	b := types.Detection{X1: 10, Y1: 40, X2: 30, Y2: 20}
	ua, va := GraspPixel(a, 100, true)
	ub, vb := GraspPixel(b, 100, true)
	assert.Equal(t, ua, ub)
	assert.Equal(t, va, vb)
}

func squareCamera() types.CameraModel {
	return types.CameraModel{
		Width:            4,
		Height:           4,
		PerspectiveAngle: math.Pi / 2,
		Near:             0,
		Far:              2,
		Extrinsic:        [12]float64{1, 0, 0, 1, 0, 1, 0, 2, 0, 0, 1, 3},
	}
}

func depthWith(w, h int, values map[[2]int]float32) types.DepthImage {
	d := types.DepthImage{Width: w, Height: h, Depth: make([]float32, w*h)}
	for uv, z := range values {
		d.Depth[uv[1]*w+uv[0]] = z
	}
	return d
}

func TestIntrinsics(t *testing.T) {
	k, err := IntrinsicsOf(squareCamera())
	require.NoError(t, err)
	assert.InDelta(t, 2, k.Fx, 1e-12)
	assert.InDelta(t, 2, k.Fy, 1e-12)
	assert.Equal(t, 2.0, k.Cx)
	assert.Equal(t, 2.0, k.Cy)

	wide := squareCamera()
	wide.Width = 8
	k, err = IntrinsicsOf(wide)
	require.NoError(t, err)
	assert.InDelta(t, 4, k.Fx, 1e-12)
	assert.InDelta(t, 4, k.Fy, 1e-12)

	_, err = IntrinsicsOf(types.CameraModel{})
	assert.Error(t, err)
}

func TestPixelToWorld(t *testing.T) {
	m := squareCamera()
	depth := depthWith(4, 4, map[[2]int]float32{
		{2, 2}: 0.5,
		{0, 3}: 0.25,
	})

	got, err := PixelToWorld(m, depth, 2, 2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 2, 4}, got[:], 1e-12)

	got, err = PixelToWorld(m, depth, 0, 3)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1.5, 2.25, 3.5}, got[:], 1e-12)

	_, err = PixelToWorld(m, depth, 4, 0)
	assert.Error(t, err)
}

type fakeDetector struct {
	result  types.DetectionResult
	err     error
	targets [][]string
}

func (f *fakeDetector) DetectObjects(_ context.Context, targets []string) (types.DetectionResult, error) {
	f.targets = append(f.targets, targets)
	return f.result, f.err
}

type fakeCamera struct {
	model types.CameraModel
	depth types.DepthImage
}

func (f fakeCamera) CameraModel(context.Context) (types.CameraModel, error) { return f.model, nil }
func (f fakeCamera) DepthImage(context.Context) (types.DepthImage, error)  { return f.depth, nil }

type fakeVisualizer struct {
	boxes  []types.Detection
	points []*[3]float64
}

func (f *fakeVisualizer) VisualizeDetections(_ context.Context, boxes []types.Detection, point *[3]float64) error {
	f.boxes = boxes
	f.points = append(f.points, point)
	return errors.New("no drawing surface")
}

func TestLocate(t *testing.T) {
	m := squareCamera()
	m.Width, m.Height = 20, 20
	depth := depthWith(20, 20, map[[2]int]float32{{5, 17}: 0.5})

	det := &fakeDetector{result: types.DetectionResult{
		Width: 20, Height: 20,
		Boxes: []types.Detection{{Label: "tuna_fish_can", Confidence: 0.9, X1: 4, Y1: 6, X2: 6, Y2: 8}},
	}}
	vis := &fakeVisualizer{}
	l := New(det, fakeCamera{model: m, depth: depth}, WithVisualizer(vis))

	got, err := l.Locate(context.Background(), "tuna_fish_can", false)
	require.NoError(t, err)

	// Rows 6 and 8 flip to 13 and 11.
	want, err := PixelToWorld(m, depth, 5, 17)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, [][]string{{"tuna_fish_can"}}, det.targets)

	require.Len(t, vis.points, 1)
	require.NotNil(t, vis.points[0])
	assert.Equal(t, got, *vis.points[0])
}

func TestLocateFailures(t *testing.T) {
	cam := fakeCamera{model: squareCamera(), depth: depthWith(4, 4, nil)}
	box := types.Detection{X1: 1, Y1: 1, X2: 2, Y2: 2}

	tests := []struct {
		name  string
		det   *fakeDetector
		want  error
		wantN int
	}{
		{"nothing detected", &fakeDetector{result: types.DetectionResult{Width: 4, Height: 4}}, ErrNoDetection, 0},
		{"two candidates", &fakeDetector{result: types.DetectionResult{Width: 4, Height: 4, Boxes: []types.Detection{box, box}}}, ErrAmbiguousDetection, 2},
		{"detector down", &fakeDetector{err: errors.New("model not loaded")}, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.det, cam)
			_, err := l.Locate(context.Background(), "large_clamp", false)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				assert.ErrorIs(t, err, types.ErrDetectionFailure)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	box := types.Detection{Label: "sugar_box", X1: 1, Y1: 1, X2: 2, Y2: 2}
	det := &fakeDetector{result: types.DetectionResult{Width: 4, Height: 4, Boxes: []types.Detection{box}}}
	vis := &fakeVisualizer{}
	l := New(det, fakeCamera{}, WithVisualizer(vis))

	boxes, err := l.Preview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.Detection{box}, boxes)
	assert.Equal(t, [][]string{nil}, det.targets)
	require.Len(t, vis.points, 1)
	assert.Nil(t, vis.points[0])
}
