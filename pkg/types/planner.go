package types

import "context"

// Handle is an opaque scene object handle issued by the planning service.
type Handle int64

// NoHandle is the zero handle; the planner never issues it.
const NoHandle Handle = 0

// PlannedPath is a fresh path from the planner plus the passive shape it
// created for executing it.
type PlannedPath struct {
	Path  Trajectory
	Shape Handle
}

// Planner is the path-planning and scene service. Every method blocks until
// the service answers.
type Planner interface {
	// Params returns the arm parameters of the scene.
	Params(ctx context.Context) (Params, error)

	// GetPath plans a path from the current configuration to pose. ok is
	// false when the planner found no path.
	GetPath(ctx context.Context, pose Pose) (path PlannedPath, ok bool, err error)

	// FindHomeTargetPath plans the home-to-location path used by
	// calibration.
	FindHomeTargetPath(ctx context.Context, pose Pose) (LocationTarget, error)

	// CreatePassiveShape creates a collision proxy of config.
	CreatePassiveShape(ctx context.Context, config JointConfiguration) (Handle, error)

	// MoveToPose moves the tip to pose with a single IK step. It reports
	// false when IK failed.
	MoveToPose(ctx context.Context, pose Pose) (bool, error)

	// VisualizePath draws the path with the given number of markers.
	VisualizePath(ctx context.Context, path Trajectory, steps int) ([]Handle, error)

	// SetCollisionChecking toggles the scene's collision box.
	SetCollisionChecking(ctx context.Context, enabled bool) error

	// RemoveObjects deletes scene objects.
	RemoveObjects(ctx context.Context, handles []Handle) error
}

// Actuator drives the arm joints and the suction gripper.
type Actuator interface {
	// SetJointTargets commands every joint to the given configuration.
	SetJointTargets(ctx context.Context, config JointConfiguration) error

	// ToggleGrasp engages (engage=true) or releases the gripper on object.
	ToggleGrasp(ctx context.Context, object Handle, engage bool) error
}

// GraspSensor is the contact/suction sensor on the tool tip.
type GraspSensor interface {
	// DetectContact returns the object in contact with the suction cup, or
	// ok=false when there is none.
	DetectContact(ctx context.Context) (object Handle, ok bool, err error)
}
