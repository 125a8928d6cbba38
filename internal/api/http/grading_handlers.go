package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/quizdesk/quizdesk-lms/internal/auth/middleware"
	"github.com/quizdesk/quizdesk-lms/internal/quiz"
)

// GET /quizzes/{quizID}/grading/pending
func ListPendingGradingHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID := chi.URLParam(r, "quizID")
		teacher := authmw.SubjectFromContext(r.Context())
		items, err := svc.ListPendingGrading(r.Context(), teacher, quizID)
		if err != nil {
			writeQuizErr(w, err)
			return
		}
		writeJSON(w, items)
	}
}

// GET /quizzes/{quizID}/grading/graded — read-only list of decided answers.
func ListGradedAnswersHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID := chi.URLParam(r, "quizID")
		teacher := authmw.SubjectFromContext(r.Context())
		items, err := svc.ListGradedAnswers(r.Context(), teacher, quizID)
		if err != nil {
			writeQuizErr(w, err)
			return
		}
		writeJSON(w, items)
	}
}

// POST /attempts/{attemptID}/answers/{questionID}/grade  { "score": 8, "feedback": "good" }
func GradeAnswerHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		questionID := chi.URLParam(r, "questionID")
		var req struct {
			Score    float64 `json:"score"`
			Feedback string  `json:"feedback"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		teacher := authmw.SubjectFromContext(r.Context())
		var rec quiz.AnswerRecord
		err := withRetry(func() error {
			var err error
			rec, err = svc.GradeAnswer(r.Context(), teacher, attemptID, questionID, req.Score, req.Feedback)
			return err
		})
		if err != nil {
			writeQuizErr(w, err)
			return
		}
		writeJSON(w, rec)
	}
}

// POST /attempts/{attemptID}/recompute — re-derive the total from the
// answer rows, e.g. after the answer key for a question was corrected.
func RecomputeTotalHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		teacher := authmw.SubjectFromContext(r.Context())
		var a quiz.Attempt
		err := withRetry(func() error {
			var err error
			a, err = svc.RecomputeTotal(r.Context(), teacher, attemptID)
			return err
		})
		if err != nil {
			writeQuizErr(w, err)
			return
		}
		writeJSON(w, a)
	}
}

// POST /attempts/{attemptID}/visibility  { "visible_to_student": true, "show_answers": false }
func SetVisibilityHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		var req struct {
			VisibleToStudent bool `json:"visible_to_student"`
			ShowAnswers      bool `json:"show_answers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		teacher := authmw.SubjectFromContext(r.Context())
		var a quiz.Attempt
		err := withRetry(func() error {
			var err error
			a, err = svc.SetVisibility(r.Context(), teacher, attemptID, req.VisibleToStudent, req.ShowAnswers)
			return err
		})
		if err != nil {
			writeQuizErr(w, err)
			return
		}
		writeJSON(w, a)
	}
}

// POST /attempts/{attemptID}/feedback  { "feedback": "..." }
func AttemptFeedbackHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		var req struct {
			Feedback string `json:"feedback"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		teacher := authmw.SubjectFromContext(r.Context())
		var a quiz.Attempt
		err := withRetry(func() error {
			var err error
			a, err = svc.SetAttemptFeedback(r.Context(), teacher, attemptID, req.Feedback)
			return err
		})
		if err != nil {
			writeQuizErr(w, err)
			return
		}
		writeJSON(w, a)
	}
}
