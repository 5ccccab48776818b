// Package handlers provides HTTP handlers for backup operations.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/metron/internal/reliability"
)

// Handler handles backup HTTP requests. The s3 service is nil when no
// bucket is configured; triggered backups then stay local.
type Handler struct {
	backup *reliability.BackupService
	s3     *reliability.S3BackupService
	log    zerolog.Logger

	mu      sync.Mutex
	running bool
}

// NewHandler creates a new backup handler
func NewHandler(backup *reliability.BackupService, s3 *reliability.S3BackupService, log zerolog.Logger) *Handler {
	return &Handler{
		backup: backup,
		s3:     s3,
		log:    log.With().Str("handler", "backup").Logger(),
	}
}

// HandleTriggerBackup handles POST /api/backup/run. The backup executes
// in the background.
func (h *Handler) HandleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if !h.tryAcquire() {
		http.Error(w, "A backup is already running", http.StatusConflict)
		return
	}

	mode := "local"
	if h.s3 != nil {
		mode = "s3"
	}

	go func() {
		defer h.release()

		var err error
		if h.s3 != nil {
			err = h.s3.CreateAndUploadBackup(context.Background())
		} else {
			_, err = h.backup.LocalBackup()
		}
		if err != nil {
			h.log.Error().Err(err).Str("mode", mode).Msg("Triggered backup failed")
		}
	}()

	h.log.Info().Str("mode", mode).Msg("Manual backup triggered")
	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"data": map[string]interface{}{
			"status": "started",
			"mode":   mode,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleListBackups handles GET /api/backup/list
func (h *Handler) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.s3 == nil {
		http.Error(w, "Cloud backup not configured", http.StatusNotFound)
		return
	}

	backups, err := h.s3.ListBackups(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backups")
		http.Error(w, "Failed to list backups", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{
		"backups": backups,
		"count":   len(backups),
	})
}

func (h *Handler) tryAcquire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return false
	}
	h.running = true
	return true
}

func (h *Handler) release() {
	h.mu.Lock()
	h.running = false
	h.mu.Unlock()
}

func (h *Handler) writeData(w http.ResponseWriter, data interface{}) {
	response := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
