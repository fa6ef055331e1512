package types

import "fmt"

// Quaternion is an orientation as (x, y, z, w), the order the scene uses.
type Quaternion [4]float64

// Pose is a position plus an orientation. Pose is a value type; methods
// return modified copies.
type Pose struct {
	Position    [3]float64
	Orientation Quaternion
}

// NewPose builds a pose from a position and an orientation.
func NewPose(position [3]float64, orientation Quaternion) Pose {
	return Pose{Position: position, Orientation: orientation}
}

// X, Y and Z return the position components.
func (p Pose) X() float64 { return p.Position[0] }
func (p Pose) Y() float64 { return p.Position[1] }
func (p Pose) Z() float64 { return p.Position[2] }

// Lowered returns a copy of p moved down by dz along the vertical axis.
func (p Pose) Lowered(dz float64) Pose {
	p.Position[2] -= dz
	return p
}

// Vector returns the pose as the 7-element [x y z qx qy qz qw] slice the
// planner expects on the wire.
func (p Pose) Vector() []float64 {
	return []float64{
		p.Position[0], p.Position[1], p.Position[2],
		p.Orientation[0], p.Orientation[1], p.Orientation[2], p.Orientation[3],
	}
}

func (p Pose) String() string {
	return fmt.Sprintf("[%.4f %.4f %.4f | %.4f %.4f %.4f %.4f]",
		p.Position[0], p.Position[1], p.Position[2],
		p.Orientation[0], p.Orientation[1], p.Orientation[2], p.Orientation[3])
}
