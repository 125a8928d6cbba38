package quiz

import (
	"context"
	"time"
)

// AttemptListOpts filters teacher-side attempt listings.
type AttemptListOpts struct {
	QuizID    string
	StudentID string
	Status    string
	Limit     int
	Offset    int
}

// AnswerListOpts filters per-quiz answer listings made by the grading
// workflow. Graded selects on the per-answer graded flag when non-nil.
type AnswerListOpts struct {
	QuizID string
	Graded *bool
}

// Store is the persistence boundary of the attempt engine. Quiz rows are
// read-mostly here (authoring owns them); Attempt and AnswerRecord rows are
// written only through Tx, which scopes every mutation to one transaction
// holding the attempt lock.
type Store interface {
	PutQuiz(ctx context.Context, q Quiz) error
	GetQuiz(ctx context.Context, id string) (Quiz, error)
	DeleteQuiz(ctx context.Context, id string) error
	ListQuizzes(ctx context.Context, subjectID string) ([]Quiz, error)

	GetAttempt(ctx context.Context, id string) (Attempt, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)
	// ListAnswers bulk-fetches every answer of one attempt in a single
	// query; callers must not loop per question.
	ListAnswers(ctx context.Context, attemptID string) ([]AnswerRecord, error)
	ListAnswersForQuiz(ctx context.Context, opts AnswerListOpts) ([]AnswerRecord, error)

	// InTx runs fn inside one transaction, committing on nil and rolling
	// back otherwise. Lock-wait exhaustion surfaces as ErrContention.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx exposes the locked mutation primitives. Every method runs on the
// enclosing transaction; locks are held until it ends.
type Tx interface {
	// GetOrCreateInProgress returns the student's in-progress attempt for
	// the quiz, creating it if absent. A completed attempt fails fast with
	// ErrAlreadyCompleted. Two concurrent first visits resolve to one row:
	// the insert is unique-constraint backed and the loser rereads.
	GetOrCreateInProgress(ctx context.Context, studentID, quizID string, now time.Time) (Attempt, error)

	// LockAttempt acquires an exclusive read of the attempt row for the
	// remainder of the transaction.
	LockAttempt(ctx context.Context, attemptID string) (Attempt, error)

	ListAnswers(ctx context.Context, attemptID string) ([]AnswerRecord, error)

	// InsertAnswer records one answer. A record already present for the
	// (attempt, question) pair is ErrDuplicateAnswer, never an overwrite.
	InsertAnswer(ctx context.Context, rec AnswerRecord) (AnswerRecord, error)

	// DeleteAnswers clears an attempt's answers; only the whole-quiz
	// submission path uses it, to keep its retries idempotent.
	DeleteAnswers(ctx context.Context, attemptID string) error

	// Finalize stamps the terminal fields in one write. A second call for
	// the same attempt is ErrAlreadyFinalized.
	Finalize(ctx context.Context, attemptID string, status string, submittedAt time.Time, durationTaken int, totalScore float64, graded bool) error

	// UpdateAnswerGrade applies a teacher's score/feedback to one answer.
	UpdateAnswerGrade(ctx context.Context, attemptID, questionID string, score float64, isCorrect bool, feedback string) error

	// SetAttemptGrading writes the recomputed total and graded flag.
	SetAttemptGrading(ctx context.Context, attemptID string, totalScore float64, graded bool) error

	SetVisibility(ctx context.Context, attemptID string, visibleToStudent, showAnswers bool) error
	SetFeedback(ctx context.Context, attemptID, feedback string) error
}
