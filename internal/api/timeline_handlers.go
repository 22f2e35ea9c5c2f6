package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/technosupport/fusion-pipeline/internal/event"
)

// TimelineSource is the slice of the events repository the timeline needs.
type TimelineSource interface {
	ListRecentByOrg(ctx context.Context, orgID string, since time.Time, limit int) ([]event.TimelineEvent, error)
}

type TimelineHandler struct {
	Events  TimelineSource
	Cluster event.ClusterConfig
}

func NewTimelineHandler(events TimelineSource, cfg event.ClusterConfig) *TimelineHandler {
	return &TimelineHandler{Events: events, Cluster: cfg}
}

// GetTimeline returns the org's recent events clustered into groups.
// Grouping is recomputed fresh on every call; nothing here persists.
func (h *TimelineHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if orgID == "" {
		http.Error(w, "missing org id", http.StatusBadRequest)
		return
	}

	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 24*7 {
			http.Error(w, "invalid hours", http.StatusBadRequest)
			return
		}
		hours = n
	}
	limit := 500
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 2000 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	events, err := h.Events.ListRecentByOrg(r.Context(), orgID, since, limit)
	if err != nil {
		http.Error(w, "failed to list events", http.StatusInternalServerError)
		return
	}

	groups := event.Cluster(events, h.Cluster)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"groups": groups,
		"count":  len(groups),
	})
}
