package quiz

import (
	"context"
	"errors"
	"testing"
)

func mixedQuiz() Quiz {
	return Quiz{
		ID:        "quiz-m",
		Title:     "Midterm",
		Kind:      KindExam,
		OwnerID:   "teacher-1",
		SubjectID: "bio-101",
		Questions: []Question{
			{ID: "q1", Type: TypeMultipleChoice, Options: []string{"a", "b", "c"}, CorrectAnswer: "0", Points: 2, OrderIndex: 0},
			{ID: "q2", Type: TypeIdentification, CorrectAnswer: "Paris", Points: 2, OrderIndex: 1},
			{ID: "q3", Type: TypeEssay, WordLimit: 300, Points: 10, OrderIndex: 2},
		},
	}
}

// submits a full attempt with one near-miss identification and one essay,
// leaving two answers pending manual grading.
func finalizeMixedAttempt(t *testing.T, svc *Service) Attempt {
	t.Helper()
	ctx := context.Background()
	a, err := svc.StartAttempt(ctx, "stu-1", "quiz-m")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	got, err := svc.SubmitAll(ctx, "stu-1", a.ID, map[string]string{
		"q1": "0",
		"q2": "Pari",
		"q3": "An essay about mitochondria.",
	})
	if err != nil {
		t.Fatalf("submit all: %v", err)
	}
	return got
}

func TestPendingGradingLists(t *testing.T) {
	svc, store := newTestService(t)
	useClock(svc)
	seedQuiz(t, store, mixedQuiz())
	ctx := context.Background()

	a := finalizeMixedAttempt(t, svc)
	if a.Graded {
		t.Fatalf("attempt with manual answers must not be graded yet")
	}
	if a.TotalScore != 2 {
		t.Fatalf("provisional total should count auto answers only, got %v", a.TotalScore)
	}

	pending, err := svc.ListPendingGrading(ctx, "teacher-1", "quiz-m")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	want := map[string]bool{"q2": true, "q3": true}
	if len(pending) != 2 {
		t.Fatalf("want q2+q3 pending, got %+v", pending)
	}
	for _, rec := range pending {
		if !want[rec.QuestionID] {
			t.Fatalf("unexpected pending record %+v", rec)
		}
	}

	graded, err := svc.ListGradedAnswers(ctx, "teacher-1", "quiz-m")
	if err != nil {
		t.Fatalf("graded: %v", err)
	}
	if len(graded) != 1 || graded[0].QuestionID != "q1" {
		t.Fatalf("auto-decided q1 belongs in the graded list, got %+v", graded)
	}

	if _, err := svc.ListPendingGrading(ctx, "teacher-2", "quiz-m"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("foreign teacher: want ErrPermissionDenied, got %v", err)
	}
}

func TestGradeAnswerRejectsInProgressAttempt(t *testing.T) {
	svc, store := newTestService(t)
	useClock(svc)
	seedQuiz(t, store, mixedQuiz())
	ctx := context.Background()

	a, err := svc.StartAttempt(ctx, "stu-1", "quiz-m")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, err := svc.SubmitAnswer(ctx, "stu-1", a.ID, "q3", "half an essay"); err != nil {
		t.Fatalf("q3: %v", err)
	}

	if _, err := svc.GradeAnswer(ctx, "teacher-1", a.ID, "q3", 5, ""); !errors.Is(err, ErrNotFinalized) {
		t.Fatalf("grading an in-progress attempt: want ErrNotFinalized, got %v", err)
	}
	if _, err := svc.RecomputeTotal(ctx, "teacher-1", a.ID); !errors.Is(err, ErrNotFinalized) {
		t.Fatalf("recompute on in-progress attempt: want ErrNotFinalized, got %v", err)
	}

	got, err := store.GetAttempt(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Graded || got.TotalScore != 0 {
		t.Fatalf("rejected grade must leave the attempt untouched: %+v", got)
	}
}

func TestGradeAnswerRangeAndRecompute(t *testing.T) {
	svc, store := newTestService(t)
	useClock(svc)
	seedQuiz(t, store, mixedQuiz())
	ctx := context.Background()

	a := finalizeMixedAttempt(t, svc)

	if _, err := svc.GradeAnswer(ctx, "teacher-1", a.ID, "q3", 11, ""); !errors.Is(err, ErrScoreOutOfRange) {
		t.Fatalf("score above points: want ErrScoreOutOfRange, got %v", err)
	}
	if _, err := svc.GradeAnswer(ctx, "teacher-1", a.ID, "q3", -1, ""); !errors.Is(err, ErrScoreOutOfRange) {
		t.Fatalf("negative score: want ErrScoreOutOfRange, got %v", err)
	}
	if _, err := svc.GradeAnswer(ctx, "teacher-2", a.ID, "q3", 8, ""); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("foreign teacher: want ErrPermissionDenied, got %v", err)
	}

	rec, err := svc.GradeAnswer(ctx, "teacher-1", a.ID, "q3", 8, "good")
	if err != nil {
		t.Fatalf("grade essay: %v", err)
	}
	if !rec.Graded || !rec.IsCorrect || rec.Score != 8 || rec.Feedback != "good" {
		t.Fatalf("graded essay record wrong: %+v", rec)
	}

	mid, err := store.GetAttempt(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if mid.Graded {
		t.Fatalf("q2 still pending, attempt must not be graded")
	}
	if mid.TotalScore != 10 {
		t.Fatalf("total should include the essay grade, got %v", mid.TotalScore)
	}

	// Zero is a legal grade and means incorrect.
	rec, err = svc.GradeAnswer(ctx, "teacher-1", a.ID, "q2", 0, "misspelled")
	if err != nil {
		t.Fatalf("grade q2: %v", err)
	}
	if rec.IsCorrect || !rec.Graded {
		t.Fatalf("zero grade should read incorrect but graded: %+v", rec)
	}

	done, err := store.GetAttempt(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !done.Graded {
		t.Fatalf("every answer graded, attempt should flip to graded")
	}
	answers, _ := store.ListAnswers(ctx, a.ID)
	if done.TotalScore != sumScores(answers) || done.TotalScore != 10 {
		t.Fatalf("sum law violated: total=%v records=%v", done.TotalScore, sumScores(answers))
	}

	// Re-grading recomputes the total only; graded stays set.
	if _, err := svc.GradeAnswer(ctx, "teacher-1", a.ID, "q3", 4, "partial"); err != nil {
		t.Fatalf("regrade: %v", err)
	}
	re, _ := store.GetAttempt(ctx, a.ID)
	if !re.Graded || re.TotalScore != 6 {
		t.Fatalf("regrade should recompute only: %+v", re)
	}
}

func TestVisibilityGatesStudentResult(t *testing.T) {
	svc, store := newTestService(t)
	useClock(svc)
	seedQuiz(t, store, mixedQuiz())
	ctx := context.Background()

	a := finalizeMixedAttempt(t, svc)

	if _, _, err := svc.StudentResult(ctx, "stu-1", a.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("unpublished result: want ErrPermissionDenied, got %v", err)
	}
	if _, err := svc.SetVisibility(ctx, "teacher-2", a.ID, true, false); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("foreign teacher publish: want ErrPermissionDenied, got %v", err)
	}

	pub, err := svc.SetVisibility(ctx, "teacher-1", a.ID, true, false)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !pub.VisibleToStudent || pub.ShowAnswers {
		t.Fatalf("flags are independent: %+v", pub)
	}

	got, answers, err := svc.StudentResult(ctx, "stu-1", a.ID)
	if err != nil {
		t.Fatalf("student result: %v", err)
	}
	if got.ID != a.ID || len(answers) != 3 {
		t.Fatalf("result payload wrong: %+v answers=%d", got, len(answers))
	}
	if _, _, err := svc.StudentResult(ctx, "stu-2", a.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("foreign student: want ErrPermissionDenied, got %v", err)
	}
}

func TestAttemptFeedbackAndListing(t *testing.T) {
	svc, store := newTestService(t)
	useClock(svc)
	seedQuiz(t, store, mixedQuiz())
	ctx := context.Background()

	a := finalizeMixedAttempt(t, svc)

	got, err := svc.SetAttemptFeedback(ctx, "teacher-1", a.ID, "see me after class")
	if err != nil {
		t.Fatalf("feedback: %v", err)
	}
	if got.Feedback != "see me after class" {
		t.Fatalf("feedback not stored: %+v", got)
	}

	list, err := svc.ListAttemptsForQuiz(ctx, "teacher-1", "quiz-m", AttemptListOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != a.ID {
		t.Fatalf("listing wrong: %+v", list)
	}
	if _, err := svc.ListAttemptsForQuiz(ctx, "teacher-2", "quiz-m", AttemptListOpts{}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("foreign teacher list: want ErrPermissionDenied, got %v", err)
	}
}
