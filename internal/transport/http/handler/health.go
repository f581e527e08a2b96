package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/nhle/orderbell/internal/hub"
)

// StatsSource reports live hub membership.
type StatsSource interface {
	Stats() hub.Stats
}

// Pinger checks a backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse is the body of GET /v1/health-check.
type HealthResponse struct {
	Status   string    `json:"status"`
	Database string    `json:"database"`
	Hub      hub.Stats `json:"hub"`
	Time     time.Time `json:"time"`
}

// HealthHandler reports service health and hub stats.
type HealthHandler struct {
	stats StatsSource
	db    Pinger
}

func NewHealthHandler(stats StatsSource, db Pinger) *HealthHandler {
	return &HealthHandler{stats: stats, db: db}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Database: "ok", Time: time.Now().UTC()}
	if h.stats != nil {
		resp.Hub = h.stats.Stats()
	}

	status := http.StatusOK
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Database = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}
