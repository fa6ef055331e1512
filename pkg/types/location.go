package types

import "fmt"

// LocationID names a place target, e.g. "redBin".
type LocationID string

// LocationTarget is the outbound trajectory from the home configuration to a
// named location together with the joint configuration the planner reported
// for it. Targets are produced by calibration or loaded from the cache and
// are read-only afterwards.
type LocationTarget struct {
	HomeConfig JointConfiguration
	Path       Trajectory
}

// Validate checks that the path is non-empty and well-formed.
func (lt LocationTarget) Validate() error {
	if len(lt.Path) == 0 {
		return fmt.Errorf("%w: empty path", ErrMalformedTrajectory)
	}
	return lt.Path.Validate()
}

// Clone returns a deep copy of lt.
func (lt LocationTarget) Clone() LocationTarget {
	return LocationTarget{HomeConfig: lt.HomeConfig, Path: lt.Path.Clone()}
}
