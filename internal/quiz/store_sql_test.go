package quiz

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestGetOrCreateInProgressResumes(t *testing.T) {
	store := openTestStore(t)
	seedQuiz(t, store, threeQuestionQuiz(0))
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	var first, second Attempt
	if err := store.InTx(ctx, func(tx Tx) error {
		var err error
		first, err = tx.GetOrCreateInProgress(ctx, "stu-1", "quiz-1", now)
		return err
	}); err != nil {
		t.Fatalf("first visit: %v", err)
	}
	if err := store.InTx(ctx, func(tx Tx) error {
		var err error
		second, err = tx.GetOrCreateInProgress(ctx, "stu-1", "quiz-1", now.Add(time.Minute))
		return err
	}); err != nil {
		t.Fatalf("second visit: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("second visit created a new attempt: %s vs %s", first.ID, second.ID)
	}
	if !second.StartTime.Equal(first.StartTime) {
		t.Fatalf("resume must keep the original start time")
	}
}

func TestGetOrCreateInProgressFailsFastWhenCompleted(t *testing.T) {
	store := openTestStore(t)
	seedQuiz(t, store, threeQuestionQuiz(0))
	ctx := context.Background()
	now := time.Now()

	var a Attempt
	if err := store.InTx(ctx, func(tx Tx) error {
		var err error
		if a, err = tx.GetOrCreateInProgress(ctx, "stu-1", "quiz-1", now); err != nil {
			return err
		}
		return tx.Finalize(ctx, a.ID, StatusSubmitted, now, 5, 0, true)
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	err := store.InTx(ctx, func(tx Tx) error {
		_, err := tx.GetOrCreateInProgress(ctx, "stu-1", "quiz-1", now)
		return err
	})
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("want ErrAlreadyCompleted, got %v", err)
	}
}

func TestConcurrentStartsCreateOneAttempt(t *testing.T) {
	store := openTestStore(t)
	seedQuiz(t, store, threeQuestionQuiz(0))
	svc := NewService(store, enrollAll{})

	const n = 8
	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := startRetrying(svc, "stu-1", "quiz-1")
			ids[i], errs[i] = a.ID, err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		if ids[i] != ids[0] {
			t.Fatalf("attempt ids diverge: %q vs %q", ids[i], ids[0])
		}
	}
	list, err := store.ListAttempts(context.Background(), AttemptListOpts{QuizID: "quiz-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("want exactly one attempt row, got %d", len(list))
	}
}

func TestInsertAnswerRejectsDuplicate(t *testing.T) {
	store := openTestStore(t)
	seedQuiz(t, store, threeQuestionQuiz(0))
	ctx := context.Background()
	now := time.Now()

	var a Attempt
	if err := store.InTx(ctx, func(tx Tx) error {
		var err error
		a, err = tx.GetOrCreateInProgress(ctx, "stu-1", "quiz-1", now)
		if err != nil {
			return err
		}
		_, err = tx.InsertAnswer(ctx, AnswerRecord{AttemptID: a.ID, QuestionID: "q1", Submitted: "1", IsCorrect: true, Score: 2, AutoGradable: true, Graded: true, SubmittedAt: now})
		return err
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	err := store.InTx(ctx, func(tx Tx) error {
		_, err := tx.InsertAnswer(ctx, AnswerRecord{AttemptID: a.ID, QuestionID: "q1", Submitted: "3", SubmittedAt: now})
		return err
	})
	if !errors.Is(err, ErrDuplicateAnswer) {
		t.Fatalf("want ErrDuplicateAnswer, got %v", err)
	}

	answers, err := store.ListAnswers(ctx, a.ID)
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	if len(answers) != 1 || answers[0].Submitted != "1" || answers[0].Score != 2 {
		t.Fatalf("duplicate must not change the stored row: %+v", answers)
	}
}

func TestFinalizeTwiceFails(t *testing.T) {
	store := openTestStore(t)
	seedQuiz(t, store, threeQuestionQuiz(0))
	ctx := context.Background()
	now := time.Now()

	var a Attempt
	if err := store.InTx(ctx, func(tx Tx) error {
		var err error
		if a, err = tx.GetOrCreateInProgress(ctx, "stu-1", "quiz-1", now); err != nil {
			return err
		}
		return tx.Finalize(ctx, a.ID, StatusSubmitted, now, 3, 1.5, true)
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	err := store.InTx(ctx, func(tx Tx) error {
		return tx.Finalize(ctx, a.ID, StatusExpired, now.Add(time.Minute), 10, 0, true)
	})
	if !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("want ErrAlreadyFinalized, got %v", err)
	}

	got, err := store.GetAttempt(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusSubmitted || got.TotalScore != 1.5 || got.DurationTaken != 3 {
		t.Fatalf("second finalize must not alter terminal fields: %+v", got)
	}
}

func TestDeleteQuizCascades(t *testing.T) {
	store := openTestStore(t)
	seedQuiz(t, store, threeQuestionQuiz(0))
	ctx := context.Background()
	now := time.Now()

	var a Attempt
	if err := store.InTx(ctx, func(tx Tx) error {
		var err error
		if a, err = tx.GetOrCreateInProgress(ctx, "stu-1", "quiz-1", now); err != nil {
			return err
		}
		_, err = tx.InsertAnswer(ctx, AnswerRecord{AttemptID: a.ID, QuestionID: "q1", Submitted: "1", SubmittedAt: now})
		return err
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := store.DeleteQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("delete quiz: %v", err)
	}
	if _, err := store.GetAttempt(ctx, a.ID); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("attempt should cascade away, got %v", err)
	}
	answers, err := store.ListAnswers(ctx, a.ID)
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	if len(answers) != 0 {
		t.Fatalf("answers should cascade away, got %d", len(answers))
	}
}
