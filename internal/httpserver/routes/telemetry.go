package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/switchboard/internal/httpserver/deps"
	"github.com/MrSnakeDoc/switchboard/internal/httpserver/handlers"
)

func init() { Register(registerTelemetry) }

func registerTelemetry(r chi.Router, d deps.Deps) {
	api := r.With(guard(d)...)
	api.Get("/api/logs", handlers.Logs(d))
	api.Delete("/api/logs", handlers.ClearLogs(d))
	api.Put("/api/logs/paused", handlers.SetLogsPaused(d))
	api.Get("/api/traffic", handlers.Traffic(d))
	api.Get("/api/memory", handlers.Memory(d))
}
