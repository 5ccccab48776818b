// Package server provides the HTTP server and routing for Metron.
package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/metron/internal/database"
	"github.com/aristath/metron/internal/modules/panel"
	"github.com/aristath/metron/internal/modules/pipeline"
	"github.com/aristath/metron/internal/version"
)

// SystemHandlers handles system-wide monitoring endpoints
type SystemHandlers struct {
	log          zerolog.Logger
	dataDir      string
	startupTime  time.Time
	databases    map[string]*database.DB
	panelRepo    *panel.Repository
	runner       *pipeline.Runner
	pipelineRepo *pipeline.Repository
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	databases map[string]*database.DB,
	panelRepo *panel.Repository,
	runner *pipeline.Runner,
	pipelineRepo *pipeline.Repository,
) *SystemHandlers {
	return &SystemHandlers{
		log:          log.With().Str("component", "system_handlers").Logger(),
		dataDir:      dataDir,
		startupTime:  time.Now(),
		databases:    databases,
		panelRepo:    panelRepo,
		runner:       runner,
		pipelineRepo: pipelineRepo,
	}
}

// SystemStatusResponse represents the overall service status
type SystemStatusResponse struct {
	Status        string        `json:"status"`
	Version       string        `json:"version"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	CPUPercent    float64       `json:"cpu_percent"`
	MemoryPercent float64       `json:"memory_percent"`
	DiskFreeGB    float64       `json:"disk_free_gb"`
	DiskUsedPct   float64       `json:"disk_used_percent"`
	SymbolCount   int           `json:"symbol_count"`
	PanelRows     int64         `json:"panel_rows"`
	RunInProgress bool          `json:"run_in_progress"`
	ResultsStale  bool          `json:"results_stale"`
	StaleReason   string        `json:"stale_reason,omitempty"`
	LastRun       *pipeline.Run `json:"last_run,omitempty"`
}

// DatabaseStatsResponse represents database statistics
type DatabaseStatsResponse struct {
	Databases   []DBInfo `json:"databases"`
	TotalSizeMB float64  `json:"total_size_mb"`
	LastChecked string   `json:"last_checked"`
}

// DBInfo represents information about a single database
type DBInfo struct {
	Name       string  `json:"name"`
	Path       string  `json:"path"`
	SizeMB     float64 `json:"size_mb"`
	WALSizeMB  float64 `json:"wal_size_mb,omitempty"`
	TableCount int     `json:"table_count,omitempty"`
}

// GetSystemStatusSnapshot returns a snapshot of the current system status.
// Individual probe failures degrade to zero values; only the first error
// is reported so the caller can log it.
func (h *SystemHandlers) GetSystemStatusSnapshot() (SystemStatusResponse, error) {
	if h == nil {
		return SystemStatusResponse{}, fmt.Errorf("system handlers not initialized")
	}

	var firstErr error
	recordErr := func(err error) {
		if err != nil && err != sql.ErrNoRows && firstErr == nil {
			firstErr = err
		}
	}

	cpuPct, memPct := h.getSystemStats()
	diskFreeGB, diskUsedPct := h.getDiskStats()

	var symbolCount int
	var panelRows int64
	if h.panelRepo != nil {
		symbols, err := h.panelRepo.ListSymbols()
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to list panel symbols")
			recordErr(err)
		} else {
			symbolCount = len(symbols)
		}

		panelRows, err = h.panelRepo.CountRows()
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to count panel rows")
			recordErr(err)
		}
	}

	var runInProgress, stale bool
	var staleReason string
	if h.runner != nil {
		runInProgress = h.runner.Running()
		stale, staleReason = h.runner.NeedsRun()
	}

	var lastRun *pipeline.Run
	if h.pipelineRepo != nil {
		runs, err := h.pipelineRepo.ListRuns(1)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to load last pipeline run")
			recordErr(err)
		} else if len(runs) > 0 {
			lastRun = &runs[0]
		}
	}

	response := SystemStatusResponse{
		Status:        "healthy",
		Version:       version.Version,
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		CPUPercent:    cpuPct,
		MemoryPercent: memPct,
		DiskFreeGB:    diskFreeGB,
		DiskUsedPct:   diskUsedPct,
		SymbolCount:   symbolCount,
		PanelRows:     panelRows,
		RunInProgress: runInProgress,
		ResultsStale:  stale,
		StaleReason:   staleReason,
		LastRun:       lastRun,
	}

	return response, firstErr
}

// HandleSystemStatus returns comprehensive system status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	response, err := h.GetSystemStatusSnapshot()
	if err != nil {
		h.log.Warn().Err(err).Msg("System status collected with warnings")
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleDatabaseStats returns database statistics
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting database stats")

	names := make([]string, 0, len(h.databases))
	for name := range h.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	databases := []DBInfo{}
	totalSizeMB := 0.0

	for _, name := range names {
		db := h.databases[name]
		if db == nil {
			continue
		}

		info := DBInfo{
			Name: name,
			Path: db.Path(),
		}

		if stats, err := db.GetStats(); err == nil {
			info.SizeMB = float64(stats.SizeBytes) / 1024 / 1024
			info.WALSizeMB = float64(stats.WALSizeBytes) / 1024 / 1024
			totalSizeMB += info.SizeMB + info.WALSizeMB
		} else {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to read database stats")
		}

		var tableCount int
		err := db.Conn().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'`).Scan(&tableCount)
		if err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to count tables")
		} else {
			info.TableCount = tableCount
		}

		databases = append(databases, info)
	}

	response := DatabaseStatsResponse{
		Databases:   databases,
		TotalSizeMB: totalSizeMB,
		LastChecked: time.Now().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// getSystemStats calculates CPU and RAM usage percentages.
// Uses a 100ms sampling interval so the status endpoint stays fast.
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

// getDiskStats reports free space and usage for the data directory volume
func (h *SystemHandlers) getDiskStats() (float64, float64) {
	usage, err := disk.Usage(h.dataDir)
	if err != nil {
		h.log.Warn().Err(err).Str("path", h.dataDir).Msg("Failed to get disk usage")
		return 0, 0
	}

	return float64(usage.Free) / 1e9, usage.UsedPercent
}
