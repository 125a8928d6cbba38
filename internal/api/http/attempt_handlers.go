package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	authmw "github.com/quizdesk/quizdesk-lms/internal/auth/middleware"
	"github.com/quizdesk/quizdesk-lms/internal/quiz"
	"github.com/quizdesk/quizdesk-lms/internal/rbac"
)

// POST /attempts  { "quiz_id": "..." }
// Creating is idempotent: a second call while in progress resumes the
// existing attempt. 409 means the attempt is already completed or its
// time just expired (the expiry commit still happened).
func StartAttemptHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuizID string `json:"quiz_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if req.QuizID == "" {
			http.Error(w, "quiz_id required", 400)
			return
		}
		student := authmw.SubjectFromContext(r.Context())
		var a quiz.Attempt
		err := withRetry(func() error {
			var err error
			a, err = svc.StartAttempt(r.Context(), student, req.QuizID)
			return err
		})
		if err != nil {
			writeQuizErr(w, err)
			return
		}
		writeJSON(w, a)
	}
}

type answerResp struct {
	Answer    quiz.AnswerRecord `json:"answer"`
	Completed bool              `json:"completed"`
}

// POST /attempts/{attemptID}/answers/{questionID}  { "answer": "..." }
func SubmitAnswerHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		questionID := chi.URLParam(r, "questionID")
		var req struct {
			Answer string `json:"answer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		student := authmw.SubjectFromContext(r.Context())
		var rec quiz.AnswerRecord
		var completed bool
		err := withRetry(func() error {
			var err error
			rec, completed, err = svc.SubmitAnswer(r.Context(), student, attemptID, questionID, req.Answer)
			return err
		})
		if err != nil {
			writeQuizErr(w, err)
			return
		}
		writeJSON(w, answerResp{Answer: rec, Completed: completed})
	}
}

// POST /attempts/{attemptID}/submit  { "answers": { questionID: text } }
func SubmitAllHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		var req struct {
			Answers map[string]string `json:"answers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		student := authmw.SubjectFromContext(r.Context())
		var a quiz.Attempt
		err := withRetry(func() error {
			var err error
			a, err = svc.SubmitAll(r.Context(), student, attemptID, req.Answers)
			return err
		})
		if err != nil {
			writeQuizErr(w, err)
			return
		}
		writeJSON(w, a)
	}
}

// GET /attempts?quiz_id=...&student_id=...&status=...&limit=50&offset=0
// Callers without attempt:view-all are scoped to their own attempts.
func ListAttemptsHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.RoleFromContext(r.Context())
		sub := authmw.SubjectFromContext(r.Context())

		studentID := strings.TrimSpace(r.URL.Query().Get("student_id"))
		if role != "admin" && role != "teacher" {
			studentID = sub
		}
		list, err := store.ListAttempts(r.Context(), quiz.AttemptListOpts{
			QuizID:    strings.TrimSpace(r.URL.Query().Get("quiz_id")),
			StudentID: studentID,
			Status:    strings.TrimSpace(r.URL.Query().Get("status")),
			Limit:     parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset:    parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		writeJSON(w, list)
	}
}

type resultResp struct {
	Attempt quiz.Attempt        `json:"attempt"`
	Answers []quiz.AnswerRecord `json:"answers"`
	Quiz    *quiz.Quiz          `json:"quiz,omitempty"`
}

// GET /attempts/{attemptID}/result — student view of a published result.
// The quiz (with correct answers) is included only when the teacher
// enabled show_answers.
func StudentResultHandler(svc *quiz.Service, store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		student := authmw.SubjectFromContext(r.Context())
		a, answers, err := svc.StudentResult(r.Context(), student, attemptID)
		if err != nil {
			writeQuizErr(w, err)
			return
		}
		resp := resultResp{Attempt: a, Answers: answers}
		if a.ShowAnswers {
			q, err := store.GetQuiz(r.Context(), a.QuizID)
			if err != nil {
				writeQuizErr(w, err)
				return
			}
			resp.Quiz = &q
		}
		writeJSON(w, resp)
	}
}
