package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mesh-intelligence/pickplace/pkg/types"
)

var (
	_ types.Planner     = (*Client)(nil)
	_ types.Actuator    = (*Client)(nil)
	_ types.GraspSensor = (*Client)(nil)
)

type paramsResult struct {
	HomeConfig  []float64 `json:"homeConfig"`
	HeightDiff  float64   `json:"heightDiff"`
	DownOriQuat []float64 `json:"downOriQuat"`
}

type pathResult struct {
	Path  []float64    `json:"path"`
	Shape types.Handle `json:"shape"`
}

type homeTargetResult struct {
	HomeConfig []float64 `json:"homeConfig"`
	Config     []float64 `json:"config"`
	Path       []float64 `json:"path"`
}

// Params reads the arm parameters of the scene.
func (c *Client) Params(ctx context.Context) (types.Params, error) {
	var r paramsResult
	if err := c.Call(ctx, "getParams", &r); err != nil {
		return types.Params{}, err
	}
	home, err := types.JointConfigurationFromSlice(r.HomeConfig)
	if err != nil {
		return types.Params{}, fmt.Errorf("getParams: home config: %w", err)
	}
	if len(r.DownOriQuat) != len(types.Quaternion{}) {
		return types.Params{}, fmt.Errorf("getParams: orientation has %d components", len(r.DownOriQuat))
	}
	var q types.Quaternion
	copy(q[:], r.DownOriQuat)
	return types.Params{HomeConfig: home, HeightDiff: r.HeightDiff, DownOrientation: q}, nil
}

// GetPath asks the planner for a path to pose. A null answer means no path.
func (c *Client) GetPath(ctx context.Context, pose types.Pose) (types.PlannedPath, bool, error) {
	raw, err := c.CallRaw(ctx, "getPath", pose.Vector())
	if err != nil {
		return types.PlannedPath{}, false, err
	}
	if isNull(raw) {
		return types.PlannedPath{}, false, nil
	}
	var r pathResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return types.PlannedPath{}, false, fmt.Errorf("getPath: decoding result: %w", err)
	}
	return types.PlannedPath{Path: types.Trajectory(r.Path), Shape: r.Shape}, true, nil
}

// FindHomeTargetPath plans the home-to-pose path used during calibration.
func (c *Client) FindHomeTargetPath(ctx context.Context, pose types.Pose) (types.LocationTarget, error) {
	var r homeTargetResult
	if err := c.Call(ctx, "findHomeTargetPath", &r, pose.Vector()); err != nil {
		return types.LocationTarget{}, err
	}
	home := r.HomeConfig
	if home == nil {
		home = r.Config
	}
	cfg, err := types.JointConfigurationFromSlice(home)
	if err != nil {
		return types.LocationTarget{}, fmt.Errorf("findHomeTargetPath: home config: %w", err)
	}
	lt := types.LocationTarget{HomeConfig: cfg, Path: types.Trajectory(r.Path)}
	if err := lt.Validate(); err != nil {
		return types.LocationTarget{}, fmt.Errorf("findHomeTargetPath: %w", err)
	}
	return lt, nil
}

// CreatePassiveShape creates a collision proxy of the arm at config.
func (c *Client) CreatePassiveShape(ctx context.Context, config types.JointConfiguration) (types.Handle, error) {
	var h types.Handle
	if err := c.Call(ctx, "createPassiveShape", &h, config[:]); err != nil {
		return types.NoHandle, err
	}
	return h, nil
}

// MoveToPose performs one IK step towards pose.
func (c *Client) MoveToPose(ctx context.Context, pose types.Pose) (bool, error) {
	var ok bool
	if err := c.Call(ctx, "moveToPose", &ok, pose.Vector()); err != nil {
		return false, err
	}
	return ok, nil
}

// VisualizePath draws steps markers along path and returns their handles.
func (c *Client) VisualizePath(ctx context.Context, path types.Trajectory, steps int) ([]types.Handle, error) {
	var hs []types.Handle
	if err := c.Call(ctx, "visualizePath", &hs, []float64(path), steps); err != nil {
		return nil, err
	}
	return hs, nil
}

// SetCollisionChecking toggles the scene's collision box.
func (c *Client) SetCollisionChecking(ctx context.Context, enabled bool) error {
	return c.Call(ctx, "setCollisionChecking", nil, enabled)
}

// RemoveObjects deletes scene objects.
func (c *Client) RemoveObjects(ctx context.Context, handles []types.Handle) error {
	if len(handles) == 0 {
		return nil
	}
	return c.Call(ctx, "removeObjects", nil, handles)
}

// SetJointTargets commands the six arm joints.
func (c *Client) SetJointTargets(ctx context.Context, config types.JointConfiguration) error {
	return c.Call(ctx, "setJointTargets", nil, config[:])
}

// ToggleGrasp engages or releases the suction cup on object.
func (c *Client) ToggleGrasp(ctx context.Context, object types.Handle, engage bool) error {
	return c.Call(ctx, "toggleGrasp", nil, object, engage)
}

// DetectContact reads the suction-cup proximity sensor.
func (c *Client) DetectContact(ctx context.Context) (types.Handle, bool, error) {
	var h *types.Handle
	if err := c.Call(ctx, "detectContactSensor", &h); err != nil {
		return types.NoHandle, false, err
	}
	if h == nil || *h == types.NoHandle {
		return types.NoHandle, false, nil
	}
	return *h, true, nil
}

// StartSimulation starts the simulator.
func (c *Client) StartSimulation(ctx context.Context) error {
	return c.Call(ctx, "startSimulation", nil)
}

// StopSimulation stops the simulator.
func (c *Client) StopSimulation(ctx context.Context) error {
	return c.Call(ctx, "stopSimulation", nil)
}
