package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/Edward-CH-Wang/Tetris-sub000/internal/coordinator"
	"github.com/Edward-CH-Wang/Tetris-sub000/internal/game"
)

type healthResponse struct {
	Status  string `json:"status"`
	Rooms   int    `json:"rooms"`
	Players int    `json:"players"`
	Queued  int    `json:"queued"`
}

type statsResponse struct {
	Rooms []game.Summary `json:"rooms"`
}

func snapshot(c *coordinator.Coordinator) coordinator.View {
	reply := make(chan coordinator.View, 1)
	c.Inbox() <- coordinator.GetState{Reply: reply}
	return <-reply
}

// Healthz is the liveness probe: process status plus current room, player,
// and queue counts. Read-only.
func Healthz(c *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := snapshot(c)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(healthResponse{
			Status:  "ok",
			Rooms:   len(v.Rooms),
			Players: v.PlayerCount(),
			Queued:  v.NumQueued,
		})
	}
}

// Stats lists active rooms for discovery dashboards. Read-only.
func Stats(c *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := snapshot(c)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statsResponse{Rooms: v.Summaries})
	}
}
