package http

import (
	"encoding/json"
	"net/http"

	authmw "github.com/quizdesk/quizdesk-lms/internal/auth/middleware"
	"github.com/quizdesk/quizdesk-lms/internal/enroll"
)

type enrollReq struct {
	StudentID string `json:"student_id"`
	SubjectID string `json:"subject_id"`
}

// POST /enrollments — teacher adds a student to a subject.
func EnrollHandler(store *enroll.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req enrollReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if req.StudentID == "" || req.SubjectID == "" {
			http.Error(w, "student_id and subject_id required", 400)
			return
		}
		if err := store.Enroll(r.Context(), req.StudentID, req.SubjectID); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DELETE /enrollments
func UnenrollHandler(store *enroll.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req enrollReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if err := store.Unenroll(r.Context(), req.StudentID, req.SubjectID); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /enrollments/mine — subjects the caller is enrolled in.
func MySubjectsHandler(store *enroll.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		student := authmw.SubjectFromContext(r.Context())
		subjects, err := store.ListSubjects(r.Context(), student)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		writeJSON(w, subjects)
	}
}
