package vision

import (
	"fmt"
	"math"

	"github.com/mesh-intelligence/pickplace/pkg/types"
)

// Intrinsics are the pinhole parameters derived from a CameraModel.
type Intrinsics struct {
	Fx, Fy float64
	Cx, Cy float64
}

// IntrinsicsOf derives focal lengths and principal point. The perspective
// angle applies to the larger image dimension.
func IntrinsicsOf(m types.CameraModel) (Intrinsics, error) {
	if m.Width <= 0 || m.Height <= 0 {
		return Intrinsics{}, fmt.Errorf("camera resolution %dx%d", m.Width, m.Height)
	}
	if m.PerspectiveAngle <= 0 || m.PerspectiveAngle >= math.Pi {
		return Intrinsics{}, fmt.Errorf("camera perspective angle %v", m.PerspectiveAngle)
	}
	resX, resY := float64(m.Width), float64(m.Height)
	xAngle := m.PerspectiveAngle
	yAngle := xAngle
	if resX > resY {
		yAngle = 2 * math.Atan(math.Tan(xAngle/2)/(resX/resY))
	}
	return Intrinsics{
		Fx: resX / (2 * math.Tan(xAngle/2)),
		Fy: resY / (2 * math.Tan(yAngle/2)),
		Cx: resX / 2,
		Cy: resY / 2,
	}, nil
}

// PixelToWorld back-projects pixel (u, v) through the depth buffer into world
// coordinates.
func PixelToWorld(m types.CameraModel, depth types.DepthImage, u, v int) ([3]float64, error) {
	k, err := IntrinsicsOf(m)
	if err != nil {
		return [3]float64{}, err
	}
	d, ok := depth.At(u, v)
	if !ok {
		return [3]float64{}, fmt.Errorf("pixel (%d, %d) outside depth image %dx%d", u, v, depth.Width, depth.Height)
	}

	z := m.Near + float64(d)*(m.Far-m.Near)
	cam := [4]float64{
		(k.Cx - float64(u)) * z / k.Fx,
		(float64(v) - k.Cy) * z / k.Fy,
		z,
		1,
	}

	var world [3]float64
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			world[row] += m.Extrinsic[row*4+col] * cam[col]
		}
	}
	return world, nil
}
