package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors represent domain-level failures and are used by repositories
// and services to communicate domain-specific error conditions.
// -----------------------------------------------------------------------------

// Lookup errors
var (
	ErrScenarioNotFound   = errors.New("scenario not found")
	ErrProgramNotFound    = errors.New("program not found")
	ErrTaskNotFound       = errors.New("task not found")
	ErrEvaluationNotFound = errors.New("evaluation not found")
	ErrQuestionNotFound   = errors.New("question not found")
)

// Scenario errors
var (
	ErrUnknownMode         = errors.New("unknown learning mode")
	ErrModeMismatch        = errors.New("scenario mode does not match")
	ErrScenarioDataMissing = errors.New("scenario data missing")
)

// Lifecycle errors
var (
	ErrProgramNotActive  = errors.New("program is not active")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTaskCompleted     = errors.New("task already completed")
	ErrTaskNotActive     = errors.New("task is not active")
	ErrTaskNotInProgram  = errors.New("task does not belong to program")
)

// General errors
var (
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
)
