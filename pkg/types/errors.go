package types

import "errors"

// Extraction errors. Returned (wrapped) by intent extractors; never fatal.
var (
	ErrValidation = errors.New("invalid request")
)

// Motion errors. A transaction that fails with one of these aborts and the
// caller moves on.
var (
	ErrPlanningFailure     = errors.New("planning failed")
	ErrContactNotFound     = errors.New("no contact detected during descent")
	ErrTransactionInFlight = errors.New("a pick-and-place transaction is already in flight")
	ErrGraspState          = errors.New("invalid grasp state change")
	ErrMalformedTrajectory = errors.New("malformed trajectory")
)

// Localization errors.
var (
	ErrDetectionFailure = errors.New("detection failed")
)

// Trajectory cache errors. Fatal only at startup when cache reuse was
// requested.
var (
	ErrCacheMiss    = errors.New("location not in trajectory cache")
	ErrCacheCorrupt = errors.New("trajectory cache is corrupt")
)
