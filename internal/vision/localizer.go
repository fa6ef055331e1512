// Package vision turns object detections into world coordinates for the
// suction gripper.
package vision

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/pickplace/pkg/types"
)

// Detection errors. Both wrap types.ErrDetectionFailure.
var (
	ErrNoDetection        = fmt.Errorf("%w: object not found", types.ErrDetectionFailure)
	ErrAmbiguousDetection = fmt.Errorf("%w: more than one candidate", types.ErrDetectionFailure)
)

// Localizer finds the grasp point of a named item.
type Localizer struct {
	detector   types.Detector
	camera     types.Camera
	visualizer types.DetectionVisualizer
	logger     *zap.Logger
}

// Option configures a Localizer.
type Option func(*Localizer)

// WithVisualizer draws detections and the grasp point in the scene.
func WithVisualizer(v types.DetectionVisualizer) Option {
	return func(l *Localizer) { l.visualizer = v }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Localizer) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Localizer.
func New(detector types.Detector, camera types.Camera, opts ...Option) *Localizer {
	l := &Localizer{detector: detector, camera: camera, logger: zap.NewNop()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Locate detects item and returns the world coordinate of its grasp point.
// Exactly one detection is required.
func (l *Localizer) Locate(ctx context.Context, item types.ItemID, tall bool) ([3]float64, error) {
	res, err := l.detector.DetectObjects(ctx, []string{string(item)})
	if err != nil {
		return [3]float64{}, fmt.Errorf("detect %s: %w", item, err)
	}
	switch n := len(res.Boxes); {
	case n == 0:
		return [3]float64{}, fmt.Errorf("detect %s: %w", item, ErrNoDetection)
	case n > 1:
		return [3]float64{}, fmt.Errorf("detect %s: %w (%d boxes)", item, ErrAmbiguousDetection, n)
	}
	box := res.Boxes[0]

	model, err := l.camera.CameraModel(ctx)
	if err != nil {
		return [3]float64{}, fmt.Errorf("camera model: %w", err)
	}
	depth, err := l.camera.DepthImage(ctx)
	if err != nil {
		return [3]float64{}, fmt.Errorf("depth image: %w", err)
	}

	height := res.Height
	if height == 0 {
		height = model.Height
	}
	u, v := GraspPixel(box, height, tall)
	point, err := PixelToWorld(model, depth, u, v)
	if err != nil {
		return [3]float64{}, fmt.Errorf("%w: %v", types.ErrDetectionFailure, err)
	}

	l.logger.Info("located item",
		zap.String("item", string(item)),
		zap.Float64("confidence", box.Confidence),
		zap.Int("u", u), zap.Int("v", v),
		zap.Float64s("point", point[:]))

	l.visualize(ctx, res.Boxes, &point)
	return point, nil
}

// Preview runs the detector for every known class and returns the boxes.
func (l *Localizer) Preview(ctx context.Context) ([]types.Detection, error) {
	res, err := l.detector.DetectObjects(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	l.visualize(ctx, res.Boxes, nil)
	return res.Boxes, nil
}

func (l *Localizer) visualize(ctx context.Context, boxes []types.Detection, point *[3]float64) {
	if l.visualizer == nil {
		return
	}
	if err := l.visualizer.VisualizeDetections(ctx, boxes, point); err != nil && !errors.Is(err, context.Canceled) {
		l.logger.Warn("visualizing detections failed", zap.Error(err))
	}
}
