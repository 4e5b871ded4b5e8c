package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Edward-CH-Wang/Tetris-sub000/internal/coordinator"
	"github.com/Edward-CH-Wang/Tetris-sub000/internal/ws"
)

func SetupRoutes(c *coordinator.Coordinator, logger *zap.Logger, originPatterns []string) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz(c))
	r.Get("/stats", Stats(c))
	r.Get("/ws", ws.Handler(c, logger, originPatterns))
	return r
}
