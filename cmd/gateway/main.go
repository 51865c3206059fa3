package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/prepstack/prepstack/internal/api/http"
	"github.com/prepstack/prepstack/internal/audit"
	"github.com/prepstack/prepstack/internal/auth"
	"github.com/prepstack/prepstack/internal/config"
	"github.com/prepstack/prepstack/internal/db"
	"github.com/prepstack/prepstack/internal/exam"
	"github.com/prepstack/prepstack/internal/llm"
	"github.com/prepstack/prepstack/internal/rbac"
	"github.com/prepstack/prepstack/internal/storage"
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
	store := exam.NewSQLStore(dbh)
	persister := exam.NewTreePersister(dbh)
	events := audit.NewLog(dbh)

	blobs, err := storage.NewFSStore(cfg.MediaDir)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	// --- External model ---
	svc := llm.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel,
		cfg.OpenAIMaxTokens, float32(cfg.OpenAITemperature), cfg.TTSVoice)
	genOpts := api.GenerateOpts{Blobs: blobs, Strict: cfg.StrictGeneration}

	// --- Auth ---
	authSvc := auth.NewService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	// Generation calls the external model and can run long.
	r.Use(middleware.Timeout(120 * time.Second))

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

	r.Post("/auth/register", auth.RegisterHandler(dbh))
	r.Post("/auth/login", auth.LoginHandler(dbh, authSvc))

	api.MountUploads(r, blobs)

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.Middleware(authSvc))

		// Learner surface
		pr.With(rbac.Require("test:view")).
			Get("/tests", api.ListTestsHandler(store))
		pr.With(rbac.Require("skill:view")).
			Get("/tests/{testID}/skills", api.ListSkillsHandler(store))
		pr.With(rbac.Require("skill:view")).
			Get("/skills/{skillID}", api.GetSkillTreeHandler(store))
		pr.With(rbac.Require("submission:create")).
			Post("/skills/{skillID}/submit", api.SubmitHandler(store))
		pr.With(rbac.RequireAny("submission:view-own", "submission:view-all")).
			Get("/submissions", api.ListMySubmissionsHandler(store))
		pr.With(rbac.RequireAny("submission:view-own", "submission:view-all")).
			Get("/submissions/{submissionID}", api.GetSubmissionHandler(store))

		// Admin surface: content authoring and external grading
		pr.With(rbac.Require("test:create")).
			Post("/admin/tests", api.CreateTestHandler(store))
		pr.With(rbac.Require("skill:generate")).
			Post("/admin/skills/generate", api.GenerateSkillHandler(store, persister, svc, events, genOpts))
		pr.With(rbac.Require("skill:generate")).
			Post("/admin/skills/preview", api.PreviewQuestionsHandler(svc, genOpts))
		pr.With(rbac.Require("skill:delete")).
			Delete("/admin/skills/{skillID}", api.DeleteSkillHandler(store))
		pr.With(rbac.Require("question:delete")).
			Delete("/admin/questions/{questionID}", api.DeleteQuestionHandler(store))
		pr.With(rbac.Require("submission:grade")).
			Post("/admin/submissions/{submissionID}/grade", api.GradeSubmissionHandler(store, svc, events))
		pr.With(rbac.Require("audit:view")).
			Get("/admin/events", api.ListEventsHandler(events))
	})

	log.Printf("gateway listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal(err)
	}
}
