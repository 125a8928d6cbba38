package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmw "github.com/quizdesk/quizdesk-lms/internal/auth/middleware"
	"github.com/quizdesk/quizdesk-lms/internal/quiz"
	"github.com/quizdesk/quizdesk-lms/internal/rbac"
)

// POST /quizzes — authoring boundary. The engine treats quizzes as
// read-mostly; this handler exists so the attempt flow is exercisable end
// to end.
func UploadQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q quiz.Quiz
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if q.Title == "" || q.SubjectID == "" {
			http.Error(w, "title and subject_id required", 400)
			return
		}
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if q.Kind == "" {
			q.Kind = quiz.KindQuiz
		}
		q.OwnerID = authmw.SubjectFromContext(r.Context())
		for i := range q.Questions {
			if q.Questions[i].ID == "" {
				q.Questions[i].ID = uuid.NewString()
			}
			if q.Questions[i].Points <= 0 {
				q.Questions[i].Points = 1.0
			}
			q.Questions[i].OrderIndex = i
		}
		if err := store.PutQuiz(r.Context(), q); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		writeJSON(w, q)
	}
}

// GET /quizzes/{quizID}. Correct answers are stripped unless the caller
// may grade.
func GetQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "quizID")
		q, err := store.GetQuiz(r.Context(), id)
		if err != nil {
			writeQuizErr(w, err)
			return
		}
		role := rbac.RoleFromContext(r.Context())
		if role != "teacher" && role != "admin" {
			for i := range q.Questions {
				q.Questions[i].CorrectAnswer = ""
			}
		}
		writeJSON(w, q)
	}
}

// GET /quizzes?subject_id=...
func ListQuizzesHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := strings.TrimSpace(r.URL.Query().Get("subject_id"))
		list, err := store.ListQuizzes(r.Context(), subject)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		role := rbac.RoleFromContext(r.Context())
		if role != "teacher" && role != "admin" {
			for i := range list {
				for j := range list[i].Questions {
					list[i].Questions[j].CorrectAnswer = ""
				}
			}
		}
		writeJSON(w, list)
	}
}

// DELETE /quizzes/{quizID} — owner only; cascades to attempts and answers.
func DeleteQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "quizID")
		q, err := store.GetQuiz(r.Context(), id)
		if err != nil {
			writeQuizErr(w, err)
			return
		}
		sub := authmw.SubjectFromContext(r.Context())
		if q.OwnerID != sub && rbac.RoleFromContext(r.Context()) != "admin" {
			writeQuizErr(w, quiz.ErrPermissionDenied)
			return
		}
		if err := store.DeleteQuiz(r.Context(), id); err != nil {
			writeQuizErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
