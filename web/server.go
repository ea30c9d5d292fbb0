// Package web serves a read-only local dashboard over the client's view of
// the monitoring service: aggregate stats and the monitored-site mirror.
package web

import (
	"encoding/json"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/lagren/uptimeguard/api"
	"github.com/lagren/uptimeguard/registry"
	"github.com/lagren/uptimeguard/session"
	"github.com/sirupsen/logrus"
)

type server struct {
	client   *api.Client
	sessions *session.Manager
	sites    *registry.Registry
}

// NewHandler builds the dashboard routes. Callers typically wrap the result
// in handlers.LoggingHandler before serving.
func NewHandler(client *api.Client, sessions *session.Manager, sites *registry.Registry) http.Handler {
	s := &server{
		client:   client,
		sessions: sessions,
		sites:    sites,
	}

	r := mux.NewRouter()
	r.Use(s.requireSession)
	r.HandleFunc("/stats", s.statsHandler).Methods(http.MethodGet)
	r.HandleFunc("/websites", s.websitesHandler).Methods(http.MethodGet)

	return r
}

// requireSession rejects requests while no one is logged in. The dashboard
// never accepts or forwards credentials of its own.
func (s *server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.sessions.State() != session.Authenticated {
			writeError(w, http.StatusUnauthorized, "not logged in")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *server) statsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.client.DashboardStats(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}

	writeJSON(w, stats)
}

type websiteView struct {
	api.Website
	LastCheckedRelative string `json:"last_checked_relative,omitempty"`
}

func (s *server) websitesHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.sites.Refresh(r.Context()); err != nil {
		writeAPIError(w, err)
		return
	}

	sites := s.sites.Sites()
	views := make([]websiteView, 0, len(sites))
	for _, site := range sites {
		view := websiteView{Website: site}
		if t, ok := site.LastCheckedTime(); ok {
			view.LastCheckedRelative = humanize.Time(t)
		}
		views = append(views, view)
	}

	writeJSON(w, views)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Could not encode response: %s", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		logrus.Errorf("Could not encode response: %s", err)
	}
}

// writeAPIError maps the client's error taxonomy onto dashboard responses.
func writeAPIError(w http.ResponseWriter, err error) {
	switch {
	case api.IsAuth(err):
		writeError(w, http.StatusUnauthorized, err.Error())
	case api.IsNetwork(err):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}
