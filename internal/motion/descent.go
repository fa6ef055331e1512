package motion

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/pickplace/pkg/types"
)

// descend lowers the tool tip from start in DescentStep increments, solving
// IK for every new pose and polling the suction sensor after each move. It
// stops at the first contact and returns the touched object and the pose it
// stopped at.
//
// Bounded by DescentMaxSteps and DescentTimeout; exhausting either returns
// ErrContactNotFound.
func (c *Controller) descend(ctx context.Context, start types.Pose) (types.Handle, types.Pose, error) {
	c.logger.Info("descending until contact", zap.Float64("from_z", start.Z()))

	maxSteps := c.opts.DescentMaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultOptions().DescentMaxSteps
	}
	started := c.now()
	pose := start

	for i := 1; i <= maxSteps; i++ {
		if err := ctx.Err(); err != nil {
			return types.NoHandle, pose, err
		}
		if c.opts.DescentTimeout > 0 && c.now().Sub(started) >= c.opts.DescentTimeout {
			return types.NoHandle, pose, fmt.Errorf("%w: timed out after %d steps (%s)",
				types.ErrContactNotFound, i-1, c.opts.DescentTimeout)
		}

		pose = pose.Lowered(c.opts.DescentStep)
		ok, err := c.planner.MoveToPose(ctx, pose)
		if err != nil {
			return types.NoHandle, pose, fmt.Errorf("move to pose: %w", err)
		}
		if !ok {
			return types.NoHandle, pose, fmt.Errorf("%w: IK failed at z=%.4f", types.ErrPlanningFailure, pose.Z())
		}

		object, found, err := c.sensor.DetectContact(ctx)
		if err != nil {
			return types.NoHandle, pose, fmt.Errorf("detect contact: %w", err)
		}
		if found {
			c.logger.Info("contact detected", zap.Int("steps", i), zap.Float64("z", pose.Z()))
			return object, pose, nil
		}
	}
	return types.NoHandle, pose, fmt.Errorf("%w: no contact after %d steps", types.ErrContactNotFound, maxSteps)
}
