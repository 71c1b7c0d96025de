package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"rcx-service/internal/ingest"
	"rcx-service/internal/models"
)

const maxTickBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// intParam reads a positive integer query parameter, falling back to def.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return n, nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
		"queue":     len(s.ticks),
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) ingestTickHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTickBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tick, err := models.DecodeTick(body, "")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.Enqueue(ingest.SourceHTTP, tick); err != nil {
		writeError(w, http.StatusServiceUnavailable, "queue full")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) getAnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.analyzer.GetCurrentStats())
}

func (s *Server) getFaultsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.analyzer.GetRecentFaults(limit))
}

func (s *Server) getDevicesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.analyzer.Devices())
}

// resetDeviceHandler drops the device's windows; its next tick starts a
// fresh session.
func (s *Server) resetDeviceHandler(w http.ResponseWriter, r *http.Request) {
	device := mux.Vars(r)["device"]
	s.analyzer.Forget(device)
	s.log.Info("device_reset", slog.String("device_id", device))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getDeviceFaultsHandler(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache disabled")
		return
	}
	limit, err := intParam(r, "limit", 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	device := mux.Vars(r)["device"]
	faults, err := s.cache.GetRecentFaults(r.Context(), device, int64(limit))
	if err != nil {
		s.log.Error("cache_read_err", slog.String("device_id", device), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "could not read cache")
		return
	}
	writeJSON(w, http.StatusOK, faults)
}

func (s *Server) getDeviceHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history store disabled")
		return
	}
	limit, err := intParam(r, "limit", 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	since := time.Now().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		if since, err = time.Parse(time.RFC3339, raw); err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
			return
		}
	}
	device := mux.Vars(r)["device"]
	faults, err := s.history.History(r.Context(), models.FaultTable, device, since, limit)
	if err != nil {
		s.log.Error("history_read_err", slog.String("device_id", device), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "could not read history")
		return
	}
	writeJSON(w, http.StatusOK, faults)
}

func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	if s.stream == nil {
		writeError(w, http.StatusServiceUnavailable, "stream disabled")
		return
	}
	s.stream.ServeWS(w, r)
}
