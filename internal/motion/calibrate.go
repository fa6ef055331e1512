package motion

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/pickplace/internal/trajcache"
	"github.com/mesh-intelligence/pickplace/pkg/types"
)

// Calibrate plans a home-to-location path for every location, rehearses it
// (forward, then back home by retracing it) and returns a new cache holding
// the results. Locations are processed in name order.
//
// Collision checking is disabled for the whole phase and re-enabled when it
// ends, whether it succeeded or not.
func (c *Controller) Calibrate(ctx context.Context, locations map[types.LocationID]types.LocationSpec) (_ *trajcache.Cache, err error) {
	if err := c.acquire(); err != nil {
		return nil, err
	}
	defer c.releaseArm()

	c.logger.Info("calculating home-to-location paths", zap.Int("locations", len(locations)))

	if err := c.planner.SetCollisionChecking(ctx, false); err != nil {
		return nil, fmt.Errorf("disable collision checking: %w", err)
	}
	defer func() {
		if cerr := c.planner.SetCollisionChecking(context.WithoutCancel(ctx), true); cerr != nil && err == nil {
			err = fmt.Errorf("enable collision checking: %w", cerr)
		}
	}()

	ids := make([]types.LocationID, 0, len(locations))
	for id := range locations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	cache := trajcache.New()
	for _, id := range ids {
		if err := c.calibrateLocation(ctx, cache, id, locations[id]); err != nil {
			return nil, fmt.Errorf("calibrate %s: %w", id, err)
		}
	}
	return cache, nil
}

func (c *Controller) calibrateLocation(ctx context.Context, cache *trajcache.Cache, id types.LocationID, spec types.LocationSpec) error {
	log := c.logger.With(zap.String("location", string(id)))
	log.Info("finding path")

	target, err := c.planner.FindHomeTargetPath(ctx, types.LocationPose(spec, c.params))
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrPlanningFailure, err)
	}
	if err := cache.Put(id, target); err != nil {
		return fmt.Errorf("%w: %v", types.ErrPlanningFailure, err)
	}

	c.visualize(ctx, target.Path, c.opts.CalibrationPause*5)
	c.away = target.Path
	if _, err := c.followPath(ctx, target.Path); err != nil {
		return err
	}
	if err := c.settle(ctx, c.opts.CalibrationPause); err != nil {
		return err
	}
	if err := c.moveHome(ctx, cache, FromLocation(id)); err != nil {
		return err
	}
	if err := c.settle(ctx, c.opts.CalibrationPause); err != nil {
		return err
	}
	log.Info("path cached", zap.Int("configurations", target.Path.Len()))
	return nil
}
