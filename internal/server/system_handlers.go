package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/inikiforov/dpk-portfolio/internal/database"
)

// SystemHandlers serves liveness and system health endpoints.
type SystemHandlers struct {
	db      *database.DB
	log     zerolog.Logger
	started time.Time
}

// NewSystemHandlers creates new system handlers
func NewSystemHandlers(db *database.DB, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		db:      db,
		log:     log.With().Str("handler", "system").Logger(),
		started: time.Now(),
	}
}

// HandleHealth is the plain liveness probe
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleSystemHealth reports database integrity plus process resource usage
func (h *SystemHandlers) HandleSystemHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "ok"
	if h.db != nil {
		if err := h.db.HealthCheck(r.Context()); err != nil {
			h.log.Error().Err(err).Msg("Database health check failed")
			status = "degraded"
			dbStatus = err.Error()
		}
	}

	cpuAvg, ramPct := h.resourceUsage()

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, map[string]interface{}{
		"status":         status,
		"database":       dbStatus,
		"cpu_pct":        cpuAvg,
		"memory_pct":     ramPct,
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	})
}

// resourceUsage samples CPU and RAM usage, tolerating platforms where the
// probes fail.
func (h *SystemHandlers) resourceUsage() (float64, float64) {
	var cpuAvg, ramPct float64

	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	} else if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU statistics")
	}

	if memStat, err := mem.VirtualMemory(); err == nil {
		ramPct = memStat.UsedPercent
	} else {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	}

	return cpuAvg, ramPct
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
