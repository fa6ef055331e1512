package motion

import (
	"fmt"

	"github.com/mesh-intelligence/pickplace/pkg/types"
)

// GraspState is the single suction gripper: either holding one object or
// empty. Only the controller's in-flight transaction changes it.
type GraspState struct {
	object  types.Handle
	engaged bool
}

// Engaged returns the held object and whether the gripper is engaged.
func (g GraspState) Engaged() (types.Handle, bool) {
	return g.object, g.engaged
}

func (g *GraspState) engage(object types.Handle) error {
	if g.engaged {
		return fmt.Errorf("%w: already holding object %d", types.ErrGraspState, g.object)
	}
	if object == types.NoHandle {
		return fmt.Errorf("%w: no object to engage", types.ErrGraspState)
	}
	g.object, g.engaged = object, true
	return nil
}

func (g *GraspState) release() (types.Handle, error) {
	if !g.engaged {
		return types.NoHandle, fmt.Errorf("%w: gripper is empty", types.ErrGraspState)
	}
	obj := g.object
	g.object, g.engaged = types.NoHandle, false
	return obj, nil
}
