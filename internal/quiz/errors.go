package quiz

import "errors"

// Error taxonomy. Policy violations and input errors are rejected outright;
// state conflicts are expected outcomes of races and carry no retry value;
// ErrContention is the only retriable error and retrying is the caller's
// job, never the engine's.
var (
	// Policy violations.
	ErrNotEnrolled         = errors.New("student not enrolled in quiz subject")
	ErrQuizNotYetAvailable = errors.New("quiz not yet available")
	ErrPermissionDenied    = errors.New("permission denied")

	// State conflicts.
	ErrAlreadyCompleted = errors.New("attempt already completed")
	ErrAlreadyFinalized = errors.New("attempt already finalized")
	ErrDuplicateAnswer  = errors.New("answer already recorded for question")
	ErrTimeExpired      = errors.New("quiz time limit expired")
	ErrNotFinalized     = errors.New("attempt not finalized")

	// Input errors.
	ErrScoreOutOfRange = errors.New("score out of range for question")

	// Lookup failures.
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrQuestionNotFound = errors.New("question not found in quiz")
	ErrAnswerNotFound   = errors.New("answer not found")

	// Retriable storage contention (lock wait exhausted).
	ErrContention = errors.New("storage contention, retry")
)
