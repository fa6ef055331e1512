package types

import (
	"errors"
	"time"
)

// Outcome is how an attempted intent ended.
type Outcome string

// Outcomes recorded in the journal.
const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	// OutcomeSkipped marks intents not attempted because an earlier intent of
	// the same utterance failed.
	OutcomeSkipped Outcome = "skipped"
)

// Valid reports whether o is one of the known outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSucceeded, OutcomeFailed, OutcomeSkipped:
		return true
	}
	return false
}

// TaskRecord is one journal entry: an intent and what happened to it.
type TaskRecord struct {
	TaskID       string     `json:"task_id"`
	Utterance    string     `json:"utterance"`
	Item         ItemID     `json:"item"`
	Location     LocationID `json:"location"`
	Outcome      Outcome    `json:"outcome"`
	Step         string     `json:"step,omitempty"`
	Error        string     `json:"error,omitempty"`
	Commands     int        `json:"commands"`
	GraspToggles int        `json:"grasp_toggles"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   time.Time  `json:"finished_at"`
}

// JournalFilter selects records for Journal.List. Zero values match
// everything; Limit <= 0 means no limit.
type JournalFilter struct {
	Outcome Outcome
	Limit   int
}

// Journal records the outcome of every attempted intent. Callers attach to a
// backend, record and list, and detach when done.
type Journal interface {
	// Attach opens the journal kept in dataDir, creating the directory if it
	// does not exist. Returns ErrAlreadyAttached if already attached.
	Attach(dataDir string) error

	// Detach releases backend resources. Idempotent.
	Detach() error

	// Record stores rec and returns its task ID, generating one when
	// rec.TaskID is empty.
	Record(rec TaskRecord) (string, error)

	// List returns matching records, most recent first.
	List(filter JournalFilter) ([]TaskRecord, error)
}

// Journal lifecycle errors.
var (
	ErrJournalDetached = errors.New("journal is detached")
	ErrAlreadyAttached = errors.New("journal is already attached")
	ErrDataDirEmpty    = errors.New("journal data directory must not be empty")
	ErrInvalidOutcome  = errors.New("invalid outcome")
)
