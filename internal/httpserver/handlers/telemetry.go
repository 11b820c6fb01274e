package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/switchboard/internal/domain"
	"github.com/MrSnakeDoc/switchboard/internal/httpserver/deps"
	"github.com/MrSnakeDoc/switchboard/internal/logger"
)

type logsResponse struct {
	Paused  bool              `json:"paused"`
	Pending int               `json:"pending"`
	Entries []domain.LogEntry `json:"entries"`
}

// Logs returns the committed log history, oldest first.
// ?level= keeps one level only, ?limit= keeps the newest N.
func Logs(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := d.Logs.Entries()

		if level := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("level"))); level != "" {
			kept := entries[:0]
			for _, e := range entries {
				if strings.ToLower(e.Level) == level {
					kept = append(kept, e)
				}
			}
			entries = kept
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			if n < len(entries) {
				entries = entries[len(entries)-n:]
			}
		}
		if entries == nil {
			entries = []domain.LogEntry{}
		}

		writeJSON(w, http.StatusOK, logsResponse{
			Paused:  d.Logs.Paused(),
			Pending: d.Logs.Pending(),
			Entries: entries,
		})
	}
}

// ClearLogs empties the history, persisted copy included.
func ClearLogs(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Logs.Clear(r.Context()); err != nil {
			d.Logger.Warn("failed to clear persisted logs", logger.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type pausedRequest struct {
	Paused *bool `json:"paused"`
}

type pausedResponse struct {
	Paused bool `json:"paused"`
}

// SetLogsPaused stops or resumes sampling of incoming log lines.
func SetLogsPaused(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body pausedRequest
		if err := decodeBody(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if body.Paused == nil {
			writeError(w, http.StatusBadRequest, "paused is required")
			return
		}
		d.Logs.SetPaused(*body.Paused)
		writeJSON(w, http.StatusOK, pausedResponse{Paused: d.Logs.Paused()})
	}
}

type trafficResponse struct {
	Latest  domain.TrafficSample   `json:"latest"`
	History []domain.TrafficSample `json:"history"`
}

func Traffic(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		latest, history := d.Samples.Traffic()
		if history == nil {
			history = []domain.TrafficSample{}
		}
		writeJSON(w, http.StatusOK, trafficResponse{Latest: latest, History: history})
	}
}

type memoryResponse struct {
	Latest  domain.MemorySample   `json:"latest"`
	History []domain.MemorySample `json:"history"`
}

func Memory(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		latest, history := d.Samples.Memory()
		if history == nil {
			history = []domain.MemorySample{}
		}
		writeJSON(w, http.StatusOK, memoryResponse{Latest: latest, History: history})
	}
}
