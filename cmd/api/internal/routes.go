package internal

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(api *API) chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(CorsMiddleware)

	r.Get("/health", api.HandleHealth)

	// Public routes
	r.Post("/api/token", api.HandleGenerateToken)
	r.Get("/api/lot-size", api.HandleLotSize)

	// Backtesting
	r.Get("/api/backtest", api.HandleBacktest)
	r.Get("/api/backtest/runs/{id}", api.HandleGetRun)
	r.Get("/api/backtest/runs/{id}/csv", api.HandleRunCSV)

	r.Route("/api/live", func(r chi.Router) {
		r.With(RequireScope(api.JWTManager, ScopeRead)).Get("/status", api.HandleLiveStatus)
		r.With(RequireScope(api.JWTManager, ScopeLive)).Post("/start", api.HandleLiveStart)
		r.With(RequireScope(api.JWTManager, ScopeLive)).Post("/stop", api.HandleLiveStop)
	})

	return r
}
