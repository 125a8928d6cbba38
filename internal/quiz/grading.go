package quiz

import "context"

// The grading workflow is the teacher-facing reconciliation pass over the
// provisional automatic scores. Every write here runs under the same
// attempt lock as the lifecycle paths, so a grade never races an expiry or
// a concurrent re-grade.

// ListPendingGrading returns every answer of a finalized attempt of the
// quiz still awaiting a teacher. Machine-decided answers never appear
// here; see ListGradedAnswers for the read-only counterpart.
func (s *Service) ListPendingGrading(ctx context.Context, teacherID, quizID string) ([]AnswerRecord, error) {
	if err := s.requireOwner(ctx, teacherID, quizID); err != nil {
		return nil, err
	}
	graded := false
	return s.store.ListAnswersForQuiz(ctx, AnswerListOpts{QuizID: quizID, Graded: &graded})
}

// ListGradedAnswers returns the answers of finalized attempts already
// carrying a decided grade, automatic or manual.
func (s *Service) ListGradedAnswers(ctx context.Context, teacherID, quizID string) ([]AnswerRecord, error) {
	if err := s.requireOwner(ctx, teacherID, quizID); err != nil {
		return nil, err
	}
	graded := true
	return s.store.ListAnswersForQuiz(ctx, AnswerListOpts{QuizID: quizID, Graded: &graded})
}

// GradeAnswer applies a teacher's score and feedback to one answer of a
// finalized attempt, then recomputes the attempt total in the same
// transaction. The attempt's
// graded flag flips only once every answer carries a grade; re-grading an
// already graded attempt recomputes the total and nothing else.
func (s *Service) GradeAnswer(ctx context.Context, teacherID, attemptID, questionID string, score float64, feedback string) (AnswerRecord, error) {
	var out AnswerRecord
	err := s.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.LockAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		q, err := s.store.GetQuiz(ctx, a.QuizID)
		if err != nil {
			return err
		}
		if q.OwnerID != teacherID {
			return ErrPermissionDenied
		}
		if !a.Finalized() {
			return ErrNotFinalized
		}
		question, ok := questionByID(q, questionID)
		if !ok {
			return ErrQuestionNotFound
		}
		if score < 0 || score > question.Points {
			return ErrScoreOutOfRange
		}
		isCorrect := score > 0
		if err := tx.UpdateAnswerGrade(ctx, attemptID, questionID, score, isCorrect, feedback); err != nil {
			return err
		}
		if err := recomputeLocked(ctx, tx, attemptID); err != nil {
			return err
		}
		answers, err := tx.ListAnswers(ctx, attemptID)
		if err != nil {
			return err
		}
		for _, rec := range answers {
			if rec.QuestionID == questionID {
				out = rec
				break
			}
		}
		return nil
	})
	if err != nil {
		return AnswerRecord{}, err
	}
	return out, nil
}

// RecomputeTotal re-derives the attempt total from its answer rows.
func (s *Service) RecomputeTotal(ctx context.Context, teacherID, attemptID string) (Attempt, error) {
	var out Attempt
	err := s.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.LockAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		q, err := s.store.GetQuiz(ctx, a.QuizID)
		if err != nil {
			return err
		}
		if q.OwnerID != teacherID {
			return ErrPermissionDenied
		}
		if !a.Finalized() {
			return ErrNotFinalized
		}
		if err := recomputeLocked(ctx, tx, attemptID); err != nil {
			return err
		}
		out, err = tx.LockAttempt(ctx, attemptID)
		return err
	})
	if err != nil {
		return Attempt{}, err
	}
	return out, nil
}

func recomputeLocked(ctx context.Context, tx Tx, attemptID string) error {
	answers, err := tx.ListAnswers(ctx, attemptID)
	if err != nil {
		return err
	}
	return tx.SetAttemptGrading(ctx, attemptID, sumScores(answers), allGraded(answers))
}

// SetVisibility publishes or hides the attempt result toward the student.
// The two flags are independent: a score may be published without the
// correct answers.
func (s *Service) SetVisibility(ctx context.Context, teacherID, attemptID string, visibleToStudent, showAnswers bool) (Attempt, error) {
	return s.updateAttempt(ctx, teacherID, attemptID, func(tx Tx) error {
		return tx.SetVisibility(ctx, attemptID, visibleToStudent, showAnswers)
	})
}

// SetAttemptFeedback stores the teacher's attempt-level remarks.
func (s *Service) SetAttemptFeedback(ctx context.Context, teacherID, attemptID, feedback string) (Attempt, error) {
	return s.updateAttempt(ctx, teacherID, attemptID, func(tx Tx) error {
		return tx.SetFeedback(ctx, attemptID, feedback)
	})
}

func (s *Service) updateAttempt(ctx context.Context, teacherID, attemptID string, mutate func(tx Tx) error) (Attempt, error) {
	var out Attempt
	err := s.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.LockAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		q, err := s.store.GetQuiz(ctx, a.QuizID)
		if err != nil {
			return err
		}
		if q.OwnerID != teacherID {
			return ErrPermissionDenied
		}
		if err := mutate(tx); err != nil {
			return err
		}
		out, err = tx.LockAttempt(ctx, attemptID)
		return err
	})
	if err != nil {
		return Attempt{}, err
	}
	return out, nil
}

func (s *Service) requireOwner(ctx context.Context, teacherID, quizID string) error {
	q, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return err
	}
	if q.OwnerID != teacherID {
		return ErrPermissionDenied
	}
	return nil
}

// ListAttemptsForQuiz is the teacher-side listing of a quiz's attempts.
func (s *Service) ListAttemptsForQuiz(ctx context.Context, teacherID, quizID string, opts AttemptListOpts) ([]Attempt, error) {
	if err := s.requireOwner(ctx, teacherID, quizID); err != nil {
		return nil, err
	}
	opts.QuizID = quizID
	return s.store.ListAttempts(ctx, opts)
}
