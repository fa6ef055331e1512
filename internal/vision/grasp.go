package vision

import "github.com/mesh-intelligence/pickplace/pkg/types"

// Offsets from the box used for the grasp pixel, in pixels.
const (
	centerRowOffset = 5
	topRowOffset    = 3
)

// GraspPixel picks the pixel to grasp in a detection box. Rows are flipped
// into the depth buffer's bottom-up order. Flat items are grasped slightly
// off the box centre; tall items just below the top edge.
func GraspPixel(box types.Detection, height int, tall bool) (u, v int) {
	x1, y1, x2, y2 := int(box.X1), int(box.Y1), int(box.X2), int(box.Y2)

	y1 = height - y1 - 1
	y2 = height - y2 - 1
	if y1 > y2 {
		y1, y2 = y2, y1
	}

	u = (x1 + x2) / 2
	if tall {
		return u, y2 - topRowOffset
	}
	return u, (y1+y2)/2 + centerRowOffset
}
