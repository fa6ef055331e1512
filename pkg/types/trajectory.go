package types

import "fmt"

// NumJoints is the number of arm joints (excluding the gripper).
const NumJoints = 6

// JointConfiguration holds one angle per joint, in radians, base first.
type JointConfiguration [NumJoints]float64

// Trajectory is an ordered sequence of joint configurations stored flat, the
// way the planner returns it. A well-formed trajectory has a length that is
// a multiple of NumJoints.
type Trajectory []float64

// Len returns the number of joint configurations in the trajectory.
func (t Trajectory) Len() int {
	return len(t) / NumJoints
}

// Validate returns ErrMalformedTrajectory if t cannot be split into whole
// joint configurations.
func (t Trajectory) Validate() error {
	if len(t)%NumJoints != 0 {
		return fmt.Errorf("%w: length %d is not a multiple of %d", ErrMalformedTrajectory, len(t), NumJoints)
	}
	return nil
}

// Segment splits the flat trajectory into joint configurations, preserving
// order.
func (t Trajectory) Segment() ([]JointConfiguration, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	configs := make([]JointConfiguration, 0, t.Len())
	for i := 0; i < len(t); i += NumJoints {
		var c JointConfiguration
		copy(c[:], t[i:i+NumJoints])
		configs = append(configs, c)
	}
	return configs, nil
}

// FlattenConfigurations joins configurations back into a flat trajectory.
// Segment followed by FlattenConfigurations is lossless.
func FlattenConfigurations(configs []JointConfiguration) Trajectory {
	out := make(Trajectory, 0, len(configs)*NumJoints)
	for _, c := range configs {
		out = append(out, c[:]...)
	}
	return out
}

// Reversed returns the trajectory with the order of its joint configurations
// reversed. The angles inside each configuration keep their order, so
// following the result retraces the original path backwards. Reversing twice
// yields the original trajectory.
func (t Trajectory) Reversed() (Trajectory, error) {
	configs, err := t.Segment()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(configs)-1; i < j; i, j = i+1, j-1 {
		configs[i], configs[j] = configs[j], configs[i]
	}
	return FlattenConfigurations(configs), nil
}

// Clone returns an independent copy of t.
func (t Trajectory) Clone() Trajectory {
	if t == nil {
		return nil
	}
	out := make(Trajectory, len(t))
	copy(out, t)
	return out
}

// JointConfigurationFromSlice copies exactly NumJoints values into a
// configuration.
func JointConfigurationFromSlice(v []float64) (JointConfiguration, error) {
	var c JointConfiguration
	if len(v) != NumJoints {
		return c, fmt.Errorf("%w: joint configuration has %d values, want %d", ErrMalformedTrajectory, len(v), NumJoints)
	}
	copy(c[:], v)
	return c, nil
}
