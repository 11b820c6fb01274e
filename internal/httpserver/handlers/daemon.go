package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/switchboard/internal/clash"
	"github.com/MrSnakeDoc/switchboard/internal/httpserver/deps"
	"github.com/MrSnakeDoc/switchboard/internal/logger"
)

var validModes = map[string]bool{"rule": true, "global": true, "direct": true}

type modeResponse struct {
	Mode string `json:"mode"`
	Tun  bool   `json:"tun"`
}

// Mode reads the running mode and TUN state from the daemon.
func Mode(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := d.Daemon.Configs(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, modeResponse{
			Mode: strings.ToLower(cfg.Mode),
			Tun:  cfg.Tun != nil && cfg.Tun.Enable,
		})
	}
}

type setModeRequest struct {
	Mode string `json:"mode"`
}

// SetMode switches the daemon's routing mode and refreshes the topology,
// since the display group depends on it.
func SetMode(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body setModeRequest
		if err := decodeBody(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode := strings.ToLower(strings.TrimSpace(body.Mode))
		if !validModes[mode] {
			writeError(w, http.StatusBadRequest, "mode must be one of rule, global, direct")
			return
		}

		if err := d.Daemon.PatchConfigs(r.Context(), clash.ConfigPatch{Mode: mode}); err != nil {
			writeErr(w, err)
			return
		}
		d.Reconciler.Trigger()
		d.Logger.Info("mode changed", logger.String("mode", mode))
		w.WriteHeader(http.StatusNoContent)
	}
}

type tunRequest struct {
	Enable *bool `json:"enable"`
}

// SetTun toggles the daemon's TUN device.
func SetTun(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body tunRequest
		if err := decodeBody(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if body.Enable == nil {
			writeError(w, http.StatusBadRequest, "enable is required")
			return
		}

		patch := clash.ConfigPatch{Tun: &clash.TunConfig{Enable: *body.Enable}}
		if err := d.Daemon.PatchConfigs(r.Context(), patch); err != nil {
			writeErr(w, err)
			return
		}
		d.Logger.Info("tun toggled", logger.Bool("enable", *body.Enable))
		w.WriteHeader(http.StatusNoContent)
	}
}

func Connections(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conns, err := d.Daemon.Connections(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		if conns.Connections == nil {
			conns.Connections = []clash.Connection{}
		}
		writeJSON(w, http.StatusOK, conns)
	}
}

func CloseConnection(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Daemon.CloseConnection(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func Rules(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rules, err := d.Daemon.Rules(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		if rules == nil {
			rules = []clash.Rule{}
		}
		writeJSON(w, http.StatusOK, rules)
	}
}

func DaemonVersion(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := d.Daemon.Version(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}
