package motion

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/pickplace/internal/trajcache"
	"github.com/mesh-intelligence/pickplace/pkg/types"
)

// PickAndPlace runs one transaction:
//
//	APPROACH_PICK -> DESCEND_UNTIL_CONTACT -> GRASP -> LIFT -> RETURN_HOME ->
//	APPROACH_PLACE -> RELEASE -> RETURN_HOME_EMPTY -> DONE
//
// The first failing step aborts the transaction with a *StepError; steps
// already executed are not undone. If the approach to the pick pose cannot be
// planned, nothing in the scene changes. An object grasped before a later
// failure stays held until Recover carries it to the task's place location;
// the next transaction runs Recover before planning anything and fails at
// IDLE if recovery does.
func (c *Controller) PickAndPlace(ctx context.Context, cache *trajcache.Cache, task types.PickPlaceTask) (report Report, err error) {
	report = Report{TaskID: task.ID}
	if err := c.acquire(); err != nil {
		return report, err
	}
	defer c.releaseArm()

	startCommands, startToggles := c.commands.Load(), c.toggles.Load()
	defer func() {
		report.Commands = int(c.commands.Load() - startCommands)
		report.GraspToggles = int(c.toggles.Load() - startToggles)
	}()

	log := c.logger.With(zap.String("task", task.ID), zap.String("item", string(task.Item)), zap.String("place", string(task.Place)))

	fail := func(step Step, err error) (Report, error) {
		log.Warn("transaction aborted", zap.Stringer("step", step), zap.Error(err))
		return report, &StepError{Step: step, Err: err}
	}

	if c.needsRecovery() {
		if err := c.recover(ctx, cache); err != nil {
			return fail(StepIdle, err)
		}
	}
	enter := func(step Step) {
		report.Reached = step
		log.Debug("step", zap.Stringer("step", step))
	}

	enter(StepApproachPick)
	itemPath, err := c.moveWithPath(ctx, cache, ToPose(task.Pick))
	if err != nil {
		return fail(StepApproachPick, err)
	}

	enter(StepDescend)
	object, _, err := c.descend(ctx, task.Pick)
	if err != nil {
		return fail(StepDescend, err)
	}

	enter(StepGrasp)
	if err := c.engage(ctx, object); err != nil {
		return fail(StepGrasp, err)
	}
	c.pending = task.Place

	enter(StepLift)
	ok, err := c.planner.MoveToPose(ctx, task.Pick)
	if err != nil {
		return fail(StepLift, fmt.Errorf("move to pose: %w", err))
	}
	if !ok {
		return fail(StepLift, fmt.Errorf("%w: IK failed lifting to %s", types.ErrPlanningFailure, task.Pick))
	}

	enter(StepReturnHome)
	if err := c.moveHome(ctx, cache, FromTrajectory(itemPath)); err != nil {
		return fail(StepReturnHome, err)
	}

	enter(StepApproachPlace)
	if _, err := c.moveWithPath(ctx, cache, ToLocation(task.Place)); err != nil {
		return fail(StepApproachPlace, err)
	}

	enter(StepRelease)
	if err := c.releaseGrasp(ctx); err != nil {
		return fail(StepRelease, err)
	}
	c.pending = ""

	enter(StepReturnHomeEmpty)
	if err := c.moveHome(ctx, cache, FromLocation(task.Place)); err != nil {
		return fail(StepReturnHomeEmpty, err)
	}

	enter(StepDone)
	log.Info("pick-and-place complete")
	return report, nil
}

// Recover returns the arm home after an aborted transaction and, if an object
// is still held, carries it to the place location of that transaction,
// releases it there and returns home again. It is a no-op when the arm is
// home with an empty gripper.
func (c *Controller) Recover(ctx context.Context, cache *trajcache.Cache) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.releaseArm()
	return c.recover(ctx, cache)
}

func (c *Controller) needsRecovery() bool {
	_, held := c.Grasp().Engaged()
	return held || c.away != nil
}

func (c *Controller) recover(ctx context.Context, cache *trajcache.Cache) error {
	if c.away != nil {
		c.logger.Info("returning home after abort")
		// Joint targets are absolute, so retracing the whole path reaches
		// home from anywhere along it.
		if err := c.moveHome(ctx, cache, FromTrajectory(c.away)); err != nil {
			return fmt.Errorf("recover: return home: %w", err)
		}
	}

	object, held := c.Grasp().Engaged()
	if !held {
		return nil
	}
	place := c.pending
	if place == "" {
		return fmt.Errorf("recover: %w: holding object %d with no place location", types.ErrGraspState, object)
	}
	c.logger.Info("delivering held object", zap.Int64("object", int64(object)), zap.String("place", string(place)))
	if _, err := c.moveWithPath(ctx, cache, ToLocation(place)); err != nil {
		return fmt.Errorf("recover: approach %s: %w", place, err)
	}
	if err := c.releaseGrasp(ctx); err != nil {
		return fmt.Errorf("recover: %w", err)
	}
	c.pending = ""
	if err := c.moveHome(ctx, cache, FromLocation(place)); err != nil {
		return fmt.Errorf("recover: return home: %w", err)
	}
	return nil
}

func (c *Controller) engage(ctx context.Context, object types.Handle) error {
	c.graspMu.Lock()
	defer c.graspMu.Unlock()

	if err := c.grasp.engage(object); err != nil {
		return err
	}
	if err := c.actuator.ToggleGrasp(ctx, object, true); err != nil {
		_, _ = c.grasp.release()
		return fmt.Errorf("engage gripper: %w", err)
	}
	c.toggles.Add(1)
	return nil
}

func (c *Controller) releaseGrasp(ctx context.Context) error {
	c.graspMu.Lock()
	defer c.graspMu.Unlock()

	object, held := c.grasp.Engaged()
	if !held {
		return fmt.Errorf("%w: gripper is empty", types.ErrGraspState)
	}
	if err := c.actuator.ToggleGrasp(ctx, object, false); err != nil {
		return fmt.Errorf("release gripper: %w", err)
	}
	c.toggles.Add(1)
	_, err := c.grasp.release()
	return err
}
