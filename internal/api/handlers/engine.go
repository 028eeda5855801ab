// Package handlers implements the API's HTTP handlers.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/wonny/rebalance/internal/engine"
	"github.com/wonny/rebalance/pkg/logger"
)

// EngineHandler serves the engine's read operations.
type EngineHandler struct {
	engine *engine.Engine
	logger *logger.Logger
}

// NewEngineHandler creates a new engine handler.
func NewEngineHandler(eng *engine.Engine, log *logger.Logger) *EngineHandler {
	return &EngineHandler{engine: eng, logger: log}
}

// GetStatus returns the portfolio status snapshot.
// GET /api/status
func (h *EngineHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.engine.GetStatus(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, status)
}

// GetPendingSignals returns the pending signals, sells first.
// GET /api/signals/pending
func (h *EngineHandler) GetPendingSignals(w http.ResponseWriter, r *http.Request) {
	signals, err := h.engine.PendingSignals(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, map[string]interface{}{
		"count":   len(signals),
		"signals": signals,
	})
}

// GetCycles returns the recent rebalance cycles.
// GET /api/cycles
func (h *EngineHandler) GetCycles(w http.ResponseWriter, r *http.Request) {
	status, err := h.engine.GetStatus(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, map[string]interface{}{
		"portfolio": status.Portfolio,
		"cycles":    status.RecentCycles,
	})
}

// GetUniverse returns the active instrument universe.
// GET /api/universe
func (h *EngineHandler) GetUniverse(w http.ResponseWriter, r *http.Request) {
	instruments, err := h.engine.Universe.ListActive(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, map[string]interface{}{
		"count":       len(instruments),
		"instruments": instruments,
	})
}

func (h *EngineHandler) writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
	}
}

func (h *EngineHandler) writeError(w http.ResponseWriter, err error) {
	h.logger.WithError(err).Error("API request failed")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
