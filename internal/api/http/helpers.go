package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/quizdesk/quizdesk-lms/internal/quiz"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeQuizErr maps the engine's error taxonomy onto HTTP statuses. State
// conflicts are 409s: expected outcomes of races, not failures.
func writeQuizErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quiz.ErrNotEnrolled),
		errors.Is(err, quiz.ErrQuizNotYetAvailable),
		errors.Is(err, quiz.ErrPermissionDenied):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, quiz.ErrAlreadyCompleted),
		errors.Is(err, quiz.ErrAlreadyFinalized),
		errors.Is(err, quiz.ErrDuplicateAnswer),
		errors.Is(err, quiz.ErrTimeExpired),
		errors.Is(err, quiz.ErrNotFinalized):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, quiz.ErrScoreOutOfRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, quiz.ErrQuizNotFound),
		errors.Is(err, quiz.ErrAttemptNotFound),
		errors.Is(err, quiz.ErrQuestionNotFound),
		errors.Is(err, quiz.ErrAnswerNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, quiz.ErrContention):
		http.Error(w, "busy, retry", http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// withRetry reruns fn on storage contention, a bounded number of times
// with backoff. The engine itself never retries; this is the caller layer.
func withRetry(fn func() error) error {
	const attempts = 3
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); !errors.Is(err, quiz.ErrContention) {
			return err
		}
		time.Sleep(time.Duration(i+1) * 25 * time.Millisecond)
	}
	return err
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
