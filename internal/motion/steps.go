package motion

import "fmt"

// Step is a state of the pick-and-place state machine. Steps run strictly in
// declaration order; a failed step ends the transaction.
type Step int

const (
	StepIdle Step = iota
	StepApproachPick
	StepDescend
	StepGrasp
	StepLift
	StepReturnHome
	StepApproachPlace
	StepRelease
	StepReturnHomeEmpty
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepIdle:
		return "IDLE"
	case StepApproachPick:
		return "APPROACH_PICK"
	case StepDescend:
		return "DESCEND_UNTIL_CONTACT"
	case StepGrasp:
		return "GRASP"
	case StepLift:
		return "LIFT"
	case StepReturnHome:
		return "RETURN_HOME"
	case StepApproachPlace:
		return "APPROACH_PLACE"
	case StepRelease:
		return "RELEASE"
	case StepReturnHomeEmpty:
		return "RETURN_HOME_EMPTY"
	case StepDone:
		return "DONE"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

// StepError reports the step at which a transaction stopped.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("pick-and-place aborted at %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Report summarizes one transaction.
type Report struct {
	TaskID string
	// Reached is the last step entered; StepDone on success.
	Reached Step
	// Commands is the number of joint configurations sent to the actuator.
	Commands int
	// GraspToggles counts engage and release calls.
	GraspToggles int
}

// Succeeded reports whether the transaction ran to completion.
func (r Report) Succeeded() bool { return r.Reached == StepDone }
