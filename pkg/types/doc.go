// Package types defines the value types, collaborator interfaces and standard
// errors shared by the pick-and-place packages: poses, joint configurations,
// trajectories, location targets, intents and the planner/actuator/sensor
// contracts that the motion controller drives.
package types
