package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/switchboard/internal/httpserver/deps"
	"github.com/MrSnakeDoc/switchboard/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/switchboard/internal/httpserver/mw"
)

func init() { Register(registerProbe) }

func registerProbe(r chi.Router, d deps.Deps) {
	limited := r.With(guard(d)...).With(mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.ProbeBurst,
		RefillPerIPPerMin: d.ProbeRatePerMin,
		MaxEntries:        1024,
		TrustProxy:        d.TrustProxy,
	}))
	limited.Post("/api/groups/{group}/probe", handlers.ProbeGroup(d))
	limited.Post("/api/groups/{group}/sites", handlers.ProbeSites(d))
	limited.Post("/api/nodes/{node}/probe", handlers.ProbeNode(d))
}
