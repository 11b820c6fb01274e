package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/switchboard/internal/httpserver/deps"
)

type componentStatus struct {
	OK       bool   `json:"ok"`
	Nodes    *int   `json:"nodes,omitempty"`
	LastSync string `json:"last_sync,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Impact   string `json:"impact,omitempty"`
	Error    string `json:"error,omitempty"`
	Pending  *int   `json:"pending,omitempty"`
	Paused   *bool  `json:"paused,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports the health of each moving part: topology, daemon, persistence and logs.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		components := map[string]componentStatus{
			"topology": checkTopology(d),
			"daemon":   checkDaemon(ctx, d),
			"redis":    checkRedis(ctx, d),
			"logs":     checkLogs(d),
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Status:     overallStatus(components),
			Components: components,
		})
	}
}

func overallStatus(components map[string]componentStatus) string {
	if !components["topology"].OK {
		return "critical"
	}
	for _, c := range components {
		if !c.OK {
			return "degraded"
		}
	}
	return "ok"
}

func checkTopology(d deps.Deps) componentStatus {
	count := d.Store.Count()
	last := d.Store.LastSync()
	st := componentStatus{OK: d.Store.Ready(), Nodes: &count, Mode: d.Store.Mode(), LastSync: "never"}
	if !last.IsZero() {
		st.LastSync = last.Format(time.RFC3339)
	}
	return st
}

func checkDaemon(ctx context.Context, d deps.Deps) componentStatus {
	v, err := d.Daemon.Version(ctx)
	if err != nil {
		return componentStatus{OK: false, Impact: "topology-frozen", Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: v.Version}
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{OK: true, Mode: "disabled", Impact: "history-not-persisted"}
	}
	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{OK: false, Mode: "degraded", Impact: "history-not-persisted", Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: "optimal"}
}

func checkLogs(d deps.Deps) componentStatus {
	if d.Logs == nil {
		return componentStatus{OK: true, Mode: "disabled"}
	}
	pending := d.Logs.Pending()
	paused := d.Logs.Paused()
	return componentStatus{OK: true, Pending: &pending, Paused: &paused}
}
