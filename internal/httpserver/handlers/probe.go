package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/switchboard/internal/domain"
	"github.com/MrSnakeDoc/switchboard/internal/httpserver/deps"
	"github.com/MrSnakeDoc/switchboard/internal/probe"
	"github.com/MrSnakeDoc/switchboard/internal/sources/sites"
)

type probeRequest struct {
	URL       string `json:"url"`
	TimeoutMs int    `json:"timeoutMs"`
}

func (p probeRequest) toRequest() probe.Request {
	return probe.Request{URL: strings.TrimSpace(p.URL), Timeout: millis(p.TimeoutMs)}
}

type groupProbeResponse struct {
	Group   string               `json:"group"`
	Results []domain.ProbeResult `json:"results"`
}

// ProbeGroup probes every probeable member of the group and waits for all of them.
func ProbeGroup(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		group := chi.URLParam(r, "group")

		var body probeRequest
		if err := decodeBody(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		results, err := d.Prober.ProbeGroup(r.Context(), group, body.toRequest())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, groupProbeResponse{Group: group, Results: results})
	}
}

// ProbeNode probes one known node.
func ProbeNode(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "node")
		if _, ok := d.Store.Node(name); !ok {
			writeError(w, http.StatusNotFound, "node not found")
			return
		}

		var body probeRequest
		if err := decodeBody(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, d.Prober.ProbeNode(r.Context(), name, body.toRequest()))
	}
}

type sitesRequest struct {
	Sites     []sites.Site `json:"sites"`
	TimeoutMs int          `json:"timeoutMs"`
}

type sitesResponse struct {
	Group   string              `json:"group"`
	Results []domain.SiteResult `json:"results"`
}

// ProbeSites checks a group against named test URLs, the configured list by default.
func ProbeSites(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		group := chi.URLParam(r, "group")
		if _, err := d.Store.Members(group); err != nil {
			writeErr(w, err)
			return
		}

		var body sitesRequest
		if err := decodeBody(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		list := d.Sites
		if len(body.Sites) > 0 {
			list = make([]sites.Site, 0, len(body.Sites))
			for _, s := range body.Sites {
				s.URL = strings.TrimSpace(s.URL)
				if s.URL == "" {
					writeError(w, http.StatusBadRequest, "every site needs a url")
					return
				}
				if s.Name = strings.TrimSpace(s.Name); s.Name == "" {
					s.Name = s.URL
				}
				list = append(list, s)
			}
		}

		timeout := millis(body.TimeoutMs)
		if timeout == 0 {
			timeout = d.ProbeTimeout
		}
		writeJSON(w, http.StatusOK, sitesResponse{
			Group:   group,
			Results: d.Prober.ProbeSites(r.Context(), group, list, timeout),
		})
	}
}
