package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dkrasnow/quizwire/internal/session"
	"github.com/dkrasnow/quizwire/internal/ws"
)

func SetupRoutes(coord *session.Coordinator, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/state", State(coord))
	r.Get("/ws", ws.Handler(coord, log))
	return r
}
