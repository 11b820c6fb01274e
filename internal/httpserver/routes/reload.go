package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/switchboard/internal/httpserver/deps"
	"github.com/MrSnakeDoc/switchboard/internal/httpserver/handlers"
)

func init() { Register(registerReload) }

func registerReload(r chi.Router, d deps.Deps) {
	r.With(guard(d)...).Post("/reload", handlers.Reload(d))
}
