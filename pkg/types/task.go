package types

// Params are the arm parameters read from the scene once per session.
type Params struct {
	// HomeConfig is the joint configuration of the home pose.
	HomeConfig JointConfiguration
	// HeightDiff is added to a detected grasp point to get the approach height.
	HeightDiff float64
	// DownOrientation points the suction cup straight down.
	DownOrientation Quaternion
}

// PickPlaceTask is one pick-and-place transaction: where to pick and where to
// place. It lives for the duration of one controller call.
type PickPlaceTask struct {
	ID    string
	Item  ItemID
	Pick  Pose
	Place LocationID
}

// NewPickPlaceTask builds the pick pose from a detected world coordinate,
// lifted by the configured height offset and pointing down.
func NewPickPlaceTask(id string, item ItemID, coord [3]float64, place LocationID, p Params) PickPlaceTask {
	coord[2] += p.HeightDiff
	return PickPlaceTask{
		ID:    id,
		Item:  item,
		Pick:  NewPose(coord, p.DownOrientation),
		Place: place,
	}
}

// LocationPose returns the pose used to plan a path to a place location.
func LocationPose(spec LocationSpec, p Params) Pose {
	return NewPose(spec.Position, p.DownOrientation)
}
