package main

import (
	"context"
	"log"
	"net/http"
	"time"

	api "github.com/quizdesk/quizdesk-lms/internal/api/http"
	auth "github.com/quizdesk/quizdesk-lms/internal/auth/middleware"
	"github.com/quizdesk/quizdesk-lms/internal/config"
	"github.com/quizdesk/quizdesk-lms/internal/db"
	"github.com/quizdesk/quizdesk-lms/internal/enroll"
	"github.com/quizdesk/quizdesk-lms/internal/quiz"
	"github.com/quizdesk/quizdesk-lms/internal/rbac"
	"github.com/quizdesk/quizdesk-lms/internal/users"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	if cfg.AdminPassHash != "" {
		if err := db.EnsureAdmin(ctx, dbh, cfg.AdminUser, cfg.AdminPassHash); err != nil {
			log.Fatalf("admin bootstrap failed: %v", err)
		}
	}
	store := quiz.NewSQLStore(dbh, cfg.DBDriver)
	enrollments := enroll.NewStore(dbh)
	accounts := users.NewStore(dbh)
	svc := quiz.NewService(store, enrollments)

	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(dbh, cfg.Mode == config.ModeOffline))

		// Authoring boundary
		pr.With(rbac.Require("quiz:create")).
			Post("/quizzes", api.UploadQuizHandler(store))
		pr.With(rbac.Require("quiz:take")).
			Get("/quizzes/{quizID}", api.GetQuizHandler(store))
		pr.With(rbac.Require("quiz:take")).
			Get("/quizzes", api.ListQuizzesHandler(store))
		pr.With(rbac.Require("quiz:delete_own")).
			Delete("/quizzes/{quizID}", api.DeleteQuizHandler(store))

		// Student attempt flow
		pr.With(rbac.Require("attempt:start")).
			Post("/attempts", api.StartAttemptHandler(svc))
		pr.With(rbac.Require("attempt:answer")).
			Post("/attempts/{attemptID}/answers/{questionID}", api.SubmitAnswerHandler(svc))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAllHandler(svc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(store))
		pr.With(rbac.Require("attempt:view-own")).
			Get("/attempts/{attemptID}/result", api.StudentResultHandler(svc, store))

		// Teacher grading flow
		pr.With(rbac.Require("attempt:grade")).
			Get("/quizzes/{quizID}/grading/pending", api.ListPendingGradingHandler(svc))
		pr.With(rbac.Require("attempt:grade")).
			Get("/quizzes/{quizID}/grading/graded", api.ListGradedAnswersHandler(svc))
		pr.With(rbac.Require("attempt:grade")).
			Post("/attempts/{attemptID}/answers/{questionID}/grade", api.GradeAnswerHandler(svc))
		pr.With(rbac.Require("attempt:grade")).
			Post("/attempts/{attemptID}/recompute", api.RecomputeTotalHandler(svc))
		pr.With(rbac.Require("attempt:publish")).
			Post("/attempts/{attemptID}/visibility", api.SetVisibilityHandler(svc))
		pr.With(rbac.Require("attempt:grade")).
			Post("/attempts/{attemptID}/feedback", api.AttemptFeedbackHandler(svc))

		// Enrollment boundary
		pr.With(rbac.Require("enroll:manage")).
			Post("/enrollments", api.EnrollHandler(enrollments))
		pr.With(rbac.Require("enroll:manage")).
			Delete("/enrollments", api.UnenrollHandler(enrollments))
		pr.Get("/enrollments/mine", api.MySubjectsHandler(enrollments))

		// Users
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", api.ChangePasswordHandler(accounts))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
