package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/quizdesk/quizdesk-lms/internal/db"
)

// openTestStore opens a fresh shared-cache in-memory sqlite database, named
// after the test so parallel tests never share state. One connection is
// pinned for the test's lifetime to keep the memory database alive.
func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(10000)&_pragma=foreign_keys(1)", name)
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	keep, err := dbh.Conn(context.Background())
	if err != nil {
		t.Fatalf("pin conn: %v", err)
	}
	t.Cleanup(func() {
		_ = keep.Close()
		_ = dbh.Close()
	})
	return NewSQLStore(dbh, "sqlite")
}

// enrollAll admits every student to every subject.
type enrollAll struct{}

func (enrollAll) IsEnrolled(context.Context, string, string) (bool, error) { return true, nil }

// enrollNone admits nobody.
type enrollNone struct{}

func (enrollNone) IsEnrolled(context.Context, string, string) (bool, error) { return false, nil }

func newTestService(t *testing.T) (*Service, *SQLStore) {
	t.Helper()
	store := openTestStore(t)
	return NewService(store, enrollAll{}), store
}

// fixedClock pins the service clock and lets tests advance it.
type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time          { return c.now }
func (c *fixedClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func useClock(svc *Service) *fixedClock {
	c := &fixedClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc.now = c.Now
	return c
}

func seedQuiz(t *testing.T, store *SQLStore, q Quiz) Quiz {
	t.Helper()
	if err := store.PutQuiz(context.Background(), q); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
	return q
}

// threeQuestionQuiz is the standard timed fixture: one question of each
// auto-gradable type.
func threeQuestionQuiz(duration int) Quiz {
	return Quiz{
		ID:        "quiz-1",
		Title:     "Unit 3 Check",
		Kind:      KindQuiz,
		OwnerID:   "teacher-1",
		SubjectID: "bio-101",
		Duration:  duration,
		Questions: []Question{
			{ID: "q1", Type: TypeMultipleChoice, Options: []string{"a", "b", "c", "d"}, CorrectAnswer: "1", Points: 2, OrderIndex: 0},
			{ID: "q2", Type: TypeTrueFalse, CorrectAnswer: "true", Points: 1, OrderIndex: 1},
			{ID: "q3", Type: TypeIdentification, CorrectAnswer: "Paris", Points: 2, OrderIndex: 2},
		},
	}
}

// startRetrying calls StartAttempt, absorbing bounded contention the way
// the HTTP layer does.
func startRetrying(svc *Service, studentID, quizID string) (Attempt, error) {
	var a Attempt
	var err error
	for i := 0; i < 20; i++ {
		a, err = svc.StartAttempt(context.Background(), studentID, quizID)
		if !errors.Is(err, ErrContention) {
			return a, err
		}
		time.Sleep(5 * time.Millisecond)
	}
	return a, err
}
