package bridge

import (
	"context"

	"github.com/mesh-intelligence/pickplace/pkg/types"
)

var (
	_ types.Detector            = (*Client)(nil)
	_ types.Camera              = (*Client)(nil)
	_ types.DetectionVisualizer = (*Client)(nil)
)

// DetectObjects runs the detector on the current vision sensor frame.
func (c *Client) DetectObjects(ctx context.Context, targets []string) (types.DetectionResult, error) {
	if targets == nil {
		targets = []string{}
	}
	var r types.DetectionResult
	if err := c.Call(ctx, "detectObjects", &r, targets); err != nil {
		return types.DetectionResult{}, err
	}
	return r, nil
}

// CameraModel reads the vision sensor parameters.
func (c *Client) CameraModel(ctx context.Context) (types.CameraModel, error) {
	var m types.CameraModel
	if err := c.Call(ctx, "getCameraModel", &m); err != nil {
		return types.CameraModel{}, err
	}
	return m, nil
}

// DepthImage reads the normalized depth buffer.
func (c *Client) DepthImage(ctx context.Context) (types.DepthImage, error) {
	var d types.DepthImage
	if err := c.Call(ctx, "getDepthImage", &d); err != nil {
		return types.DepthImage{}, err
	}
	return d, nil
}

// VisualizeDetections draws boxes and, when point is set, a grasp marker.
func (c *Client) VisualizeDetections(ctx context.Context, boxes []types.Detection, point *[3]float64) error {
	if boxes == nil {
		boxes = []types.Detection{}
	}
	return c.Call(ctx, "visualizeDetections", nil, boxes, point)
}
