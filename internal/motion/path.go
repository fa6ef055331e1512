package motion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/pickplace/internal/trajcache"
	"github.com/mesh-intelligence/pickplace/pkg/types"
)

// Target is where MoveWithPath goes: either a pose, planned fresh, or a
// calibrated location, replayed from the cache. Build one with ToPose or
// ToLocation.
type Target struct {
	pose     *types.Pose
	location types.LocationID
}

// ToPose targets a pose that needs a fresh plan.
func ToPose(p types.Pose) Target { return Target{pose: &p} }

// ToLocation targets a calibrated location.
func ToLocation(l types.LocationID) Target { return Target{location: l} }

func (t Target) String() string {
	if t.pose != nil {
		return t.pose.String()
	}
	return string(t.location)
}

// Source is the outbound trajectory MoveHome retraces: either a path that was
// just executed or the cached path of a location.
type Source struct {
	path     types.Trajectory
	location types.LocationID
}

// FromTrajectory retraces path backwards.
func FromTrajectory(path types.Trajectory) Source { return Source{path: path} }

// FromLocation retraces the cached path of a location backwards.
func FromLocation(l types.LocationID) Source { return Source{location: l} }

// FollowPath sends every joint configuration of path to the actuator in
// order, waiting SettleDelay after each and PathStabilize after the last.
// It returns the number of configurations sent.
func (c *Controller) FollowPath(ctx context.Context, path types.Trajectory) (int, error) {
	if err := c.acquire(); err != nil {
		return 0, err
	}
	defer c.releaseArm()
	return c.followPath(ctx, path)
}

// MoveWithPath moves the arm to target and returns the executed path.
// A pose target that the planner cannot reach returns ErrPlanningFailure
// without moving the arm. A location that is not cached returns ErrCacheMiss;
// startup guarantees every configured location is cached, so this indicates
// a programming error.
func (c *Controller) MoveWithPath(ctx context.Context, cache *trajcache.Cache, target Target) (types.Trajectory, error) {
	if err := c.acquire(); err != nil {
		return nil, err
	}
	defer c.releaseArm()
	return c.moveWithPath(ctx, cache, target)
}

// MoveHome returns the arm to the home configuration by retracing the
// outbound trajectory of from backwards.
func (c *Controller) MoveHome(ctx context.Context, cache *trajcache.Cache, from Source) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.releaseArm()
	return c.moveHome(ctx, cache, from)
}

func (c *Controller) followPath(ctx context.Context, path types.Trajectory) (int, error) {
	configs, err := path.Segment()
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, cfg := range configs {
		if err := c.actuator.SetJointTargets(ctx, cfg); err != nil {
			return sent, fmt.Errorf("set joint targets (%d/%d): %w", sent+1, len(configs), err)
		}
		sent++
		c.commands.Add(1)
		if err := c.settle(ctx, c.opts.SettleDelay); err != nil {
			return sent, err
		}
	}
	if err := c.settle(ctx, c.opts.PathStabilize); err != nil {
		return sent, err
	}
	return sent, nil
}

func (c *Controller) moveWithPath(ctx context.Context, cache *trajcache.Cache, target Target) (types.Trajectory, error) {
	c.logger.Info("moving to target", zap.Stringer("target", target))

	var (
		path  types.Trajectory
		shape types.Handle
	)
	if target.pose != nil {
		planned, ok, err := c.planner.GetPath(ctx, *target.pose)
		if err != nil {
			return nil, fmt.Errorf("get path: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: no path to %s", types.ErrPlanningFailure, target.pose)
		}
		if err := planned.Path.Validate(); err != nil {
			_ = c.removeShapes(ctx, planned.Shape)
			return nil, fmt.Errorf("%w: %v", types.ErrPlanningFailure, err)
		}
		path, shape = planned.Path, planned.Shape
	} else {
		lt, err := cacheGet(cache, target.location)
		if err != nil {
			c.logger.Error("location missing from trajectory cache", zap.String("location", string(target.location)), zap.Error(err))
			return nil, err
		}
		shape, err = c.planner.CreatePassiveShape(ctx, lt.HomeConfig)
		if err != nil {
			return nil, fmt.Errorf("create passive shape: %w", err)
		}
		path = lt.Path
	}

	c.away = path
	if err := c.execute(ctx, path, shape); err != nil {
		return nil, err
	}
	return path, nil
}

func (c *Controller) moveHome(ctx context.Context, cache *trajcache.Cache, from Source) error {
	c.logger.Info("moving home")

	path := from.path
	if from.location != "" {
		lt, err := cacheGet(cache, from.location)
		if err != nil {
			c.logger.Error("location missing from trajectory cache", zap.String("location", string(from.location)), zap.Error(err))
			return err
		}
		path = lt.Path
	}
	reversed, err := path.Reversed()
	if err != nil {
		return err
	}

	shape, err := c.planner.CreatePassiveShape(ctx, c.params.HomeConfig)
	if err != nil {
		return fmt.Errorf("create passive shape: %w", err)
	}
	if err := c.execute(ctx, reversed, shape); err != nil {
		return err
	}
	c.away = nil
	return nil
}

// execute optionally visualizes path, follows it and removes the passive
// shape that was created for it.
func (c *Controller) execute(ctx context.Context, path types.Trajectory, shape types.Handle) error {
	c.visualize(ctx, path, c.opts.VisualizeHold)

	if _, err := c.followPath(ctx, path); err != nil {
		_ = c.removeShapes(context.WithoutCancel(ctx), shape)
		return err
	}
	if err := c.removeShapes(ctx, shape); err != nil {
		return err
	}
	return c.settle(ctx, c.opts.PostPathDelay)
}

func (c *Controller) removeShapes(ctx context.Context, shapes ...types.Handle) error {
	var live []types.Handle
	for _, h := range shapes {
		if h != types.NoHandle {
			live = append(live, h)
		}
	}
	if len(live) == 0 {
		return nil
	}
	if err := c.planner.RemoveObjects(ctx, live); err != nil {
		c.logger.Warn("failed to remove scene objects", zap.Int("count", len(live)), zap.Error(err))
		return fmt.Errorf("remove objects: %w", err)
	}
	return nil
}

// visualize draws path, holds it on screen and removes it. Failures only
// cost the drawing, so they are logged and ignored.
func (c *Controller) visualize(ctx context.Context, path types.Trajectory, hold time.Duration) {
	if !c.opts.VisualizePath {
		return
	}
	shapes, err := c.planner.VisualizePath(ctx, path, c.opts.VisualizeSteps)
	if err != nil {
		c.logger.Warn("path visualization failed", zap.Error(err))
		return
	}
	if err := c.settle(ctx, hold); err != nil {
		c.logger.Debug("visualization hold interrupted", zap.Error(err))
	}
	_ = c.removeShapes(context.WithoutCancel(ctx), shapes...)
}

func cacheGet(cache *trajcache.Cache, location types.LocationID) (types.LocationTarget, error) {
	if cache == nil {
		return types.LocationTarget{}, fmt.Errorf("%w: %s (no cache)", types.ErrCacheMiss, location)
	}
	return cache.Get(location)
}
