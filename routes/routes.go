package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/mkalens/speedbracket/handlers"
	"github.com/mkalens/speedbracket/middleware"
	"github.com/mkalens/speedbracket/models"
)

// SetupRoutes assembles the API. Reads are public, every mutating route
// requires an authenticated admin.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	authHandler *handlers.AuthHandler,
	teamHandler *handlers.TeamHandler,
	tournamentHandler *handlers.TournamentHandler,
	seriesHandler *handlers.SeriesHandler,
	matchHandler *handlers.MatchHandler,
	bracketHandler *handlers.BracketHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	adminOnly := func(r chi.Router) chi.Router {
		return r.With(
			middleware.Authenticate([]byte(jwtSecret)),
			middleware.Authorize(models.RoleAdmin),
		)
	}

	router.Get("/swagger/*", httpSwagger.Handler())

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)
	router.Get("/auth/confirm", authHandler.ConfirmEmail)

	router.Route("/teams", func(r chi.Router) {
		r.Get("/", teamHandler.List)
		r.Get("/{teamID}", teamHandler.Get)

		admin := adminOnly(r)
		admin.Post("/", teamHandler.Create)
		admin.Patch("/{teamID}", teamHandler.Rename)
		admin.Put("/{teamID}/logo", teamHandler.UploadLogo)
		admin.Delete("/{teamID}", teamHandler.Delete)
	})

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", tournamentHandler.List)
		r.Get("/{tournamentID}", tournamentHandler.Get)
		r.Get("/{tournamentID}/series", seriesHandler.ListByTournament)
		r.Get("/{tournamentID}/bracket", bracketHandler.Get)

		admin := adminOnly(r)
		admin.Post("/", tournamentHandler.Create)
		admin.Delete("/{tournamentID}", tournamentHandler.Delete)
		admin.Post("/{tournamentID}/phases", tournamentHandler.CreatePhase)
	})

	adminOnly(router).Delete("/phases/{phaseID}", tournamentHandler.DeletePhase)

	router.Route("/series", func(r chi.Router) {
		r.Get("/{seriesID}", seriesHandler.Get)
		r.Get("/{seriesID}/matches", matchHandler.ListBySeries)

		admin := adminOnly(r)
		admin.Post("/", seriesHandler.Create)
		admin.Patch("/{seriesID}/slots", seriesHandler.UpdateSlots)
		admin.Patch("/{seriesID}/best-of", seriesHandler.UpdateBestOf)
		admin.Delete("/{seriesID}", seriesHandler.Delete)
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}", matchHandler.Get)

		admin := adminOnly(r)
		admin.Post("/", matchHandler.Create)
		admin.Post("/{matchID}/results", matchHandler.SubmitResults)
		admin.Delete("/{matchID}", matchHandler.Delete)
	})

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)
}
