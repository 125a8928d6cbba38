package quiz

import (
	"context"
	"strings"
	"time"
)

// EnrollmentChecker is the boundary to the enrollment subsystem.
type EnrollmentChecker interface {
	IsEnrolled(ctx context.Context, studentID, subjectID string) (bool, error)
}

// Service drives the attempt state machine. All attempt progress lives in
// the Attempt/AnswerRecord rows; the service holds no per-attempt state,
// so any instance can handle any request.
//
// Time expiry is evaluated by wall-clock comparison at the start of every
// attempt-touching action, inside the same transaction that acts on the
// result. There is no background timer.
type Service struct {
	store  Store
	enroll EnrollmentChecker
	now    func() time.Time
}

func NewService(store Store, enroll EnrollmentChecker) *Service {
	return &Service{store: store, enroll: enroll, now: time.Now}
}

func elapsedMinutes(start, now time.Time) float64 {
	return now.Sub(start).Minutes()
}

func timeExpired(q Quiz, a Attempt, now time.Time) bool {
	return q.Duration > 0 && elapsedMinutes(a.StartTime, now) >= float64(q.Duration)
}

func questionByID(q Quiz, questionID string) (Question, bool) {
	for _, qq := range q.Questions {
		if qq.ID == questionID {
			return qq, true
		}
	}
	return Question{}, false
}

func sumScores(recs []AnswerRecord) float64 {
	var sum float64
	for _, r := range recs {
		sum += r.Score
	}
	return sum
}

func allGraded(recs []AnswerRecord) bool {
	for _, r := range recs {
		if !r.Graded {
			return false
		}
	}
	return true
}

// StartAttempt creates or resumes the student's attempt at a quiz. A
// pre-existing in-progress attempt is returned as-is; one whose time limit
// has passed is auto-finalized here and reported with ErrTimeExpired.
func (s *Service) StartAttempt(ctx context.Context, studentID, quizID string) (Attempt, error) {
	now := s.now()
	q, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return Attempt{}, err
	}
	if q.StartTime != nil && now.Before(*q.StartTime) {
		return Attempt{}, ErrQuizNotYetAvailable
	}
	ok, err := s.enroll.IsEnrolled(ctx, studentID, q.SubjectID)
	if err != nil {
		return Attempt{}, err
	}
	if !ok {
		return Attempt{}, ErrNotEnrolled
	}

	var out Attempt
	var expired bool
	err = s.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.GetOrCreateInProgress(ctx, studentID, quizID, now)
		if err != nil {
			return err
		}
		if timeExpired(q, a, now) {
			a, err = s.autoFinalize(ctx, tx, q, a, now)
			if err != nil {
				return err
			}
			expired = true
		}
		out = a
		return nil
	})
	if err != nil {
		return Attempt{}, err
	}
	if expired {
		return out, ErrTimeExpired
	}
	return out, nil
}

// SubmitAnswer records one answer. The boolean result reports whether this
// was the last unanswered question, which finalizes the attempt in the same
// transaction.
func (s *Service) SubmitAnswer(ctx context.Context, studentID, attemptID, questionID, text string) (AnswerRecord, bool, error) {
	now := s.now()
	var rec AnswerRecord
	var completed bool
	var stateErr error
	err := s.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.LockAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		if a.StudentID != studentID {
			return ErrPermissionDenied
		}
		if a.Finalized() {
			return ErrAlreadyCompleted
		}
		q, err := s.store.GetQuiz(ctx, a.QuizID)
		if err != nil {
			return err
		}
		if timeExpired(q, a, now) {
			// The expiry fill-in still commits; only the submission is
			// rejected.
			if _, err := s.autoFinalize(ctx, tx, q, a, now); err != nil {
				return err
			}
			stateErr = ErrTimeExpired
			return nil
		}
		question, ok := questionByID(q, questionID)
		if !ok {
			return ErrQuestionNotFound
		}
		rec, err = tx.InsertAnswer(ctx, buildRecord(attemptID, question, text, now))
		if err != nil {
			return err
		}
		answers, err := tx.ListAnswers(ctx, attemptID)
		if err != nil {
			return err
		}
		if len(answers) >= len(q.Questions) {
			taken := int(elapsedMinutes(a.StartTime, now))
			if err := tx.Finalize(ctx, attemptID, StatusSubmitted, now, taken, sumScores(answers), allGraded(answers)); err != nil {
				return err
			}
			completed = true
		}
		return nil
	})
	if err != nil {
		return AnswerRecord{}, false, err
	}
	if stateErr != nil {
		return AnswerRecord{}, false, stateErr
	}
	return rec, completed, nil
}

// SubmitAll finalizes the attempt from a whole-quiz form post. Any answers
// recorded earlier for the attempt are cleared first so a retry of this
// endpoint yields one coherent set, never a mix of intake styles.
func (s *Service) SubmitAll(ctx context.Context, studentID, attemptID string, answers map[string]string) (Attempt, error) {
	now := s.now()
	var out Attempt
	var stateErr error
	err := s.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.LockAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		if a.StudentID != studentID {
			return ErrPermissionDenied
		}
		if a.Finalized() {
			return ErrAlreadyCompleted
		}
		q, err := s.store.GetQuiz(ctx, a.QuizID)
		if err != nil {
			return err
		}
		if timeExpired(q, a, now) {
			if out, err = s.autoFinalize(ctx, tx, q, a, now); err != nil {
				return err
			}
			stateErr = ErrTimeExpired
			return nil
		}
		if err := tx.DeleteAnswers(ctx, attemptID); err != nil {
			return err
		}
		var total float64
		graded := true
		for _, question := range q.Questions {
			rec, err := tx.InsertAnswer(ctx, buildRecord(attemptID, question, answers[question.ID], now))
			if err != nil {
				return err
			}
			total += rec.Score
			graded = graded && rec.Graded
		}
		taken := int(elapsedMinutes(a.StartTime, now))
		if err := tx.Finalize(ctx, attemptID, StatusSubmitted, now, taken, total, graded); err != nil {
			return err
		}
		a.Status = StatusSubmitted
		t := now.UTC()
		a.SubmittedAt = &t
		a.DurationTaken = taken
		a.TotalScore = total
		a.Graded = graded
		out = a
		return nil
	})
	if err != nil {
		return Attempt{}, err
	}
	if stateErr != nil {
		return out, stateErr
	}
	return out, nil
}

// buildRecord validates one submission and shapes the row to insert. Blank
// input is stored as the MissingAnswer sentinel. Machine-decided answers
// are born graded; the rest wait for a teacher.
func buildRecord(attemptID string, question Question, text string, now time.Time) AnswerRecord {
	submitted := strings.TrimSpace(text)
	if submitted == "" {
		submitted = MissingAnswer
	}
	v := Validate(question, submitted)
	return AnswerRecord{
		AttemptID:    attemptID,
		QuestionID:   question.ID,
		Submitted:    submitted,
		IsCorrect:    v.IsCorrect,
		Score:        v.Score,
		AutoGradable: v.AutoGradable,
		Graded:       v.AutoGradable,
		SubmittedAt:  now.UTC(),
	}
}

// autoFinalize fills a MissingAnswer record for every unanswered question,
// sums what is on file, and stamps the attempt expired. DurationTaken is
// capped at the quiz duration, not the raw elapsed time.
func (s *Service) autoFinalize(ctx context.Context, tx Tx, q Quiz, a Attempt, now time.Time) (Attempt, error) {
	existing, err := tx.ListAnswers(ctx, a.ID)
	if err != nil {
		return Attempt{}, err
	}
	have := make(map[string]bool, len(existing))
	for _, rec := range existing {
		have[rec.QuestionID] = true
	}
	recs := existing
	for _, question := range q.Questions {
		if have[question.ID] {
			continue
		}
		rec, err := tx.InsertAnswer(ctx, buildRecord(a.ID, question, MissingAnswer, now))
		if err != nil {
			return Attempt{}, err
		}
		recs = append(recs, rec)
	}
	total := sumScores(recs)
	graded := allGraded(recs)
	if err := tx.Finalize(ctx, a.ID, StatusExpired, now, q.Duration, total, graded); err != nil {
		return Attempt{}, err
	}
	a.Status = StatusExpired
	t := now.UTC()
	a.SubmittedAt = &t
	a.DurationTaken = q.Duration
	a.TotalScore = total
	a.Graded = graded
	return a, nil
}

// StudentResult returns a finalized attempt with its answers, gated on the
// teacher having published it.
func (s *Service) StudentResult(ctx context.Context, studentID, attemptID string) (Attempt, []AnswerRecord, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, nil, err
	}
	if a.StudentID != studentID {
		return Attempt{}, nil, ErrPermissionDenied
	}
	if !a.Finalized() || !a.VisibleToStudent {
		return Attempt{}, nil, ErrPermissionDenied
	}
	answers, err := s.store.ListAnswers(ctx, attemptID)
	if err != nil {
		return Attempt{}, nil, err
	}
	return a, answers, nil
}
