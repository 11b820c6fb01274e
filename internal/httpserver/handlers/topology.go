package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/switchboard/internal/domain"
	"github.com/MrSnakeDoc/switchboard/internal/httpserver/deps"
	"github.com/MrSnakeDoc/switchboard/internal/logger"
	"github.com/MrSnakeDoc/switchboard/internal/topology"
)

type topologyResponse struct {
	Mode     string              `json:"mode"`
	Display  string              `json:"display"`
	LastSync *time.Time          `json:"lastSync,omitempty"`
	Leaf     *domain.ProxyNode   `json:"leaf,omitempty"`
	Chain    []string            `json:"chain,omitempty"`
	Anomaly  topology.Anomaly    `json:"anomaly,omitempty"`
	Groups   []*domain.ProxyNode `json:"groups"`
}

// Topology summarizes the graph: mode, display group and where it resolves to,
// and the groups in display order.
func Topology(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := d.Store.Mode()
		resp := topologyResponse{
			Mode:    mode,
			Display: d.Store.DisplayGroup(),
			Groups:  topology.DisplayGroups(d.Store.Groups(), mode),
		}
		if last := d.Store.LastSync(); !last.IsZero() {
			resp.LastSync = &last
		}
		if resp.Display != "" {
			res := d.Store.ResolveLeaf(resp.Display)
			resp.Leaf, resp.Chain, resp.Anomaly = res.Leaf, res.Chain, res.Anomaly
		}
		if resp.Groups == nil {
			resp.Groups = []*domain.ProxyNode{}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type groupResponse struct {
	Group   *domain.ProxyNode   `json:"group"`
	Sort    topology.SortMode   `json:"sort"`
	Members []*domain.ProxyNode `json:"members"`
}

// Group returns a group and its members, sorted for display by ?sort=.
func Group(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "group")
		members, err := d.Store.Members(name)
		if err != nil {
			writeErr(w, err)
			return
		}
		g, _ := d.Store.Node(name)
		mode := topology.ParseSortMode(r.URL.Query().Get("sort"))
		writeJSON(w, http.StatusOK, groupResponse{
			Group:   g,
			Sort:    mode,
			Members: topology.SortMembers(members, mode),
		})
	}
}

// Leaf resolves the group's active chain down to a concrete node.
func Leaf(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "group")
		if _, ok := d.Store.Node(name); !ok {
			writeErr(w, topology.ErrGroupNotFound)
			return
		}
		writeJSON(w, http.StatusOK, d.Store.ResolveLeaf(name))
	}
}

type selectRequest struct {
	Name string `json:"name"`
}

// Select switches a group's active member. The store is updated before the
// daemon answers; either way a reconciliation follows to converge on the
// daemon's view.
func Select(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		group := chi.URLParam(r, "group")

		var body selectRequest
		if err := decodeBody(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}

		if err := d.Store.SelectActive(group, body.Name); err != nil {
			writeErr(w, err)
			return
		}

		err := d.Daemon.SelectProxy(r.Context(), group, body.Name)
		d.Reconciler.Trigger()
		if err != nil {
			d.Logger.Warn("daemon rejected selection",
				logger.String("group", group),
				logger.String("name", body.Name),
				logger.Error(err))
			writeErr(w, err)
			return
		}

		d.Logger.Info("selection changed",
			logger.String("group", group),
			logger.String("name", body.Name))
		writeJSON(w, http.StatusOK, d.Store.ResolveLeaf(group))
	}
}

type displayRequest struct {
	Group string `json:"group"`
}

// SetDisplay pins the group the summary resolves.
func SetDisplay(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body displayRequest
		if err := decodeBody(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := d.Store.SetDisplayGroup(strings.TrimSpace(body.Group)); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, d.Store.ResolveLeaf(d.Store.DisplayGroup()))
	}
}
