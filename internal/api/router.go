package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the service's HTTP surface. Auth/session middleware
// is the host application's concern; these routes assume it sits in
// front.
func NewRouter(timeline *TimelineHandler, arming *ArmingHandler, stream *StreamHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/orgs/{orgID}/events/timeline", timeline.GetTimeline)
		r.Get("/orgs/{orgID}/stream", stream.ServeWS)
		r.Get("/areas/{areaID}/arming", arming.GetArming)
		r.Put("/areas/{areaID}/arming", arming.PutArming)
	})

	return r
}
