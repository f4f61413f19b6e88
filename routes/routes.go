package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Dosada05/smk-league/handlers"
	"github.com/Dosada05/smk-league/metrics"
	"github.com/Dosada05/smk-league/middleware"
	"github.com/Dosada05/smk-league/models"
)

func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	authHandler *handlers.AuthHandler,
	tournamentHandler *handlers.TournamentHandler,
	matchHandler *handlers.MatchHandler,
	competitorHandler *handlers.CompetitorHandler,
	adminHandler *handlers.AdminHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", metrics.Handler())

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", tournamentHandler.List)
		r.Get("/{tournamentID}", tournamentHandler.GetByID)
		r.Get("/{tournamentID}/matches", tournamentHandler.ListMatches)
		r.Get("/{tournamentID}/standings", tournamentHandler.GetStandings)
		r.Get("/{tournamentID}/bracket", tournamentHandler.GetBracket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.RequireRole(models.RoleAdmin))

			r.Post("/", tournamentHandler.Create)
			r.Put("/{tournamentID}", tournamentHandler.Update)
			r.Patch("/{tournamentID}/status", tournamentHandler.UpdateStatus)
			r.Delete("/{tournamentID}", tournamentHandler.Cancel)
			r.Post("/{tournamentID}/qualification", tournamentHandler.GenerateQualification)
			r.Post("/{tournamentID}/bracket", tournamentHandler.GenerateFinals)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}", matchHandler.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))

			r.Get("/{matchID}/reports", matchHandler.GetReportStatus)
			r.Post("/{matchID}/reports", matchHandler.SubmitReport)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.RequireRole(models.RoleAdmin))

			r.Put("/{matchID}/result", matchHandler.SubmitResult)
			r.Post("/{matchID}/resolve", matchHandler.ResolveMismatch)
		})
	})

	router.Route("/competitors", func(r chi.Router) {
		r.Get("/", competitorHandler.List)
		r.Get("/{competitorID}", competitorHandler.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.RequireRole(models.RoleAdmin))

			r.Post("/", competitorHandler.Create)
			r.Put("/{competitorID}", competitorHandler.Update)
			r.Put("/{competitorID}/avatar", competitorHandler.UploadAvatar)
			r.Delete("/{competitorID}", competitorHandler.Delete)
		})
	})

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Authenticate(jwtSecret))
		r.Use(middleware.RequireRole(models.RoleAdmin))

		r.Get("/reports/stale", adminHandler.ListStaleReports)
		r.Get("/audit", adminHandler.ListAuditEntries)
	})
}
