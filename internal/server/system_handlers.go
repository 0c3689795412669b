package server

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/vqtran/fundfolio/internal/database"
	"github.com/vqtran/fundfolio/internal/modules/universe"
)

// SystemHandlers handles system monitoring endpoints
type SystemHandlers struct {
	log          zerolog.Logger
	dataDir      string
	marketDataDB *database.DB
	resultsDB    *database.DB
	scores       *universe.ScoreRepository
	startedAt    time.Time
}

// NewSystemHandlers creates system monitoring handlers
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	marketDataDB *database.DB,
	resultsDB *database.DB,
	scores *universe.ScoreRepository,
) *SystemHandlers {
	return &SystemHandlers{
		log:          log.With().Str("handler", "system").Logger(),
		dataDir:      dataDir,
		marketDataDB: marketDataDB,
		resultsDB:    resultsDB,
		scores:       scores,
		startedAt:    time.Now(),
	}
}

// SystemStatusResponse is the /api/system/status payload
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	RAMPercent    float64 `json:"ram_percent"`
	DataMonths    int     `json:"data_months"`
	LastChecked   string  `json:"last_checked"`
}

// DBInfo describes one database file
type DBInfo struct {
	Name   string  `json:"name"`
	Path   string  `json:"path"`
	SizeMB float64 `json:"size_mb"`
}

// HandleSystemStatus returns process health, host load and data coverage
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPct, ramPct := h.getSystemStats()

	dataMonths := 0
	if months, err := h.scores.Months(); err == nil {
		dataMonths = len(months)
	} else {
		h.log.Warn().Err(err).Msg("Failed to count score months")
	}

	response := SystemStatusResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
		CPUPercent:    cpuPct,
		RAMPercent:    ramPct,
		DataMonths:    dataMonths,
		LastChecked:   time.Now().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode system status")
	}
}

// HandleDatabaseStats returns database file sizes
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	databases := []DBInfo{}
	totalSizeMB := 0.0
	for _, db := range []*database.DB{h.marketDataDB, h.resultsDB} {
		if db == nil {
			continue
		}
		info, err := os.Stat(db.Path())
		if err != nil {
			continue
		}
		sizeMB := float64(info.Size()) / 1024 / 1024
		totalSizeMB += sizeMB
		databases = append(databases, DBInfo{Name: db.Name(), Path: db.Path(), SizeMB: sizeMB})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"databases":     databases,
		"total_size_mb": totalSizeMB,
		"last_checked":  time.Now().Format(time.RFC3339),
	}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode database stats")
	}
}

// getSystemStats calculates CPU and RAM usage percentages.
// Uses a short interval (100ms) so the API call is not blocked for long.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
