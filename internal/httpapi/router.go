package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"serotonyl.ru/tradedesk/internal/httpapi/middleware"
)

// RouterOptions — всё, что нужно для сборки роутера.
type RouterOptions struct {
	Handlers *Handlers
	Resolver middleware.Resolver
	Profiles middleware.ProfileEnsurer
	Limiter  *middleware.RateLimiter
	// Пустые фичи не регистрируются
	MarketEnabled   bool
	PaymentsEnabled bool
}

// NewRouter собирает chi-роутер со всеми маршрутами API.
func NewRouter(o RouterOptions) http.Handler {
	h := o.Handlers

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recover)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Identity(o.Resolver, o.Profiles))
		r.Use(middleware.Logger)
		if o.Limiter != nil {
			r.Use(o.Limiter.Middleware)
		}

		r.Get("/me", h.Me)
		r.Post("/logins/track", h.TrackLogin)
		r.Get("/streak", h.ComputeStreak)
		r.Post("/streak/checkin", h.CheckIn)
		r.Post("/rewards/evaluate", h.EvaluateReward)
		r.Get("/limits", h.GetLimitState)
		r.Post("/bots", h.CreateBot)
		r.Get("/wallet", h.WalletSummary)

		if o.MarketEnabled && h.Market != nil {
			r.Get("/market/quotes", h.Quotes)
		}
		if o.PaymentsEnabled && h.Payments != nil {
			r.Post("/payments/deposits", h.CreateDeposit)
			r.Post("/payments/ipn", h.IPN)
		}

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", h.AdminLogin)
			r.Get("/tiers", h.ListTiers)
			r.Post("/tiers", h.SaveTier)
			r.Put("/users/{id}/tier", h.AssignTier)
			r.Get("/users/{id}/grants", h.ListGrants)
			r.Post("/users/{id}/bots", h.GrantBots)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "маршрут не найден"})
	})
	return r
}
