package event

import (
	"fmt"
	"sort"
	"time"
)

// ClusterConfig bounds how far apart two events may be and still land
// in the same timeline group. The same-device window is tighter: a
// sensor re-firing is much more likely to be one incident than two
// different devices agreeing.
type ClusterConfig struct {
	DefaultWindow    time.Duration
	SameDeviceWindow time.Duration
}

func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{
		DefaultWindow:    2 * time.Minute,
		SameDeviceWindow: 30 * time.Second,
	}
}

// Group is an ephemeral cluster of related events for timeline display.
// Never persisted; recomputed fresh on every call.
type Group struct {
	GroupKey  string          `json:"group_key"`
	AreaID    *string         `json:"area_id,omitempty"`
	AreaName  string          `json:"area_name,omitempty"`
	StartTime time.Time       `json:"start_time"`
	EndTime   time.Time       `json:"end_time"`
	Events    []TimelineEvent `json:"events"`
}

func sameArea(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// distance of a timestamp to the closed interval [earliest, latest].
// Zero when the timestamp falls inside the group's current span.
func boundaryDistance(ts, earliest, latest time.Time) time.Duration {
	if ts.Before(earliest) {
		return earliest.Sub(ts)
	}
	if ts.After(latest) {
		return ts.Sub(latest)
	}
	return 0
}

// Cluster groups a list of events into spatial/temporal clusters.
//
// Events are seeded newest-first. A candidate joins a group when its
// area matches the group's seed area and its distance to the group's
// accumulated time boundary is within the applicable window (the
// tighter window when the candidate shares a device with an existing
// member). Passes repeat until a full scan adds nothing, so chains of
// closely spaced events extend a group transitively, but only ever
// relative to the boundary reached so far.
//
// Pure: holds no state between calls and does not mutate its input.
func Cluster(events []TimelineEvent, cfg ClusterConfig) []Group {
	if len(events) == 0 {
		return nil
	}

	// Stable newest-first ordering; ties keep input order.
	ordered := make([]TimelineEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.After(ordered[j].Timestamp)
	})

	assigned := make([]bool, len(ordered))
	var groups []Group

	for seed := range ordered {
		if assigned[seed] {
			continue
		}

		g := Group{
			GroupKey: fmt.Sprintf("grp-%s", ordered[seed].EventID),
			AreaID:   ordered[seed].AreaID,
			AreaName: ordered[seed].AreaName,
			Events:   []TimelineEvent{ordered[seed]},
		}
		assigned[seed] = true

		earliest := ordered[seed].Timestamp
		latest := ordered[seed].Timestamp
		memberDevices := map[string]bool{ordered[seed].DeviceID: true}

		for {
			added := false
			for i := range ordered {
				if assigned[i] {
					continue
				}
				cand := &ordered[i]
				if !sameArea(cand.AreaID, g.AreaID) {
					continue
				}
				window := cfg.DefaultWindow
				if memberDevices[cand.DeviceID] {
					window = cfg.SameDeviceWindow
				}
				if boundaryDistance(cand.Timestamp, earliest, latest) > window {
					continue
				}

				g.Events = append(g.Events, *cand)
				assigned[i] = true
				memberDevices[cand.DeviceID] = true
				if cand.Timestamp.Before(earliest) {
					earliest = cand.Timestamp
				}
				if cand.Timestamp.After(latest) {
					latest = cand.Timestamp
				}
				added = true
			}
			if !added {
				break
			}
		}

		// Finalize: members chronological ascending.
		sort.SliceStable(g.Events, func(i, j int) bool {
			return g.Events[i].Timestamp.Before(g.Events[j].Timestamp)
		})
		g.StartTime = earliest
		g.EndTime = latest
		groups = append(groups, g)
	}

	// Most recent activity first.
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].EndTime.After(groups[j].EndTime)
	})
	return groups
}
