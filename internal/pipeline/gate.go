package pipeline

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/technosupport/fusion-pipeline/internal/data"
	"github.com/technosupport/fusion-pipeline/internal/metrics"
)

// SubscriberCounter is the pub/sub introspection slice the gate needs.
type SubscriberCounter interface {
	SubscriberCount(ctx context.Context, channel string) (int64, error)
}

// AutomationSource lists an org's enabled automation configs.
type AutomationSource interface {
	ListEnabledByOrg(ctx context.Context, orgID string) ([]*data.Automation, error)
}

// Gate decides whether a thumbnail fetch is worth it for an event.
// Two independent signals, either one suffices: somebody is live on
// the thumbnail channel, or an enabled automation inspects visual data.
type Gate struct {
	subs        SubscriberCounter
	automations AutomationSource
}

func NewGate(subs SubscriberCounter, automations AutomationSource) *Gate {
	return &Gate{subs: subs, automations: automations}
}

// WantsThumbnail runs both signals concurrently (they are independent
// reads) and ORs the results. Signal failures count as "not wanted"
// for that signal; the gate never fails the pipeline.
func (g *Gate) WantsThumbnail(ctx context.Context, orgID, thumbnailChannel string) bool {
	subCh := make(chan bool, 1)
	go func() {
		n, err := g.subs.SubscriberCount(ctx, thumbnailChannel)
		if err != nil {
			log.Printf("[WARN] Thumbnail Gate: subscriber count for %s failed: %v", thumbnailChannel, err)
			subCh <- false
			return
		}
		subCh <- n > 0
	}()

	autoWants := false
	autos, err := g.automations.ListEnabledByOrg(ctx, orgID)
	if err != nil {
		log.Printf("[WARN] Thumbnail Gate: listing automations for org %s failed: %v", orgID, err)
	} else {
		for _, a := range autos {
			if AutomationRequiresThumbnail(a.Config) {
				autoWants = true
				break
			}
		}
	}

	wanted := <-subCh || autoWants
	if wanted {
		metrics.ThumbnailGateDecisions.WithLabelValues("fetch").Inc()
	} else {
		metrics.ThumbnailGateDecisions.WithLabelValues("skip").Inc()
	}
	return wanted
}

// AutomationRequiresThumbnail statically analyzes a trigger config to
// determine whether any of its conditions inspect thumbnail/visual
// facts. It walks the decoded JSON looking for fact references rather
// than substring-matching the raw blob, so a "thumbnail" action name
// does not count.
func AutomationRequiresThumbnail(cfg json.RawMessage) bool {
	if len(cfg) == 0 {
		return false
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(cfg, &decoded); err != nil {
		return false
	}
	trigger, ok := decoded["trigger"].(map[string]interface{})
	if !ok {
		return false
	}
	return conditionsReferenceThumbnail(trigger["conditions"])
}

func conditionsReferenceThumbnail(node interface{}) bool {
	switch v := node.(type) {
	case []interface{}:
		for _, item := range v {
			if conditionsReferenceThumbnail(item) {
				return true
			}
		}
	case map[string]interface{}:
		if fact, ok := v["fact"].(string); ok {
			if strings.HasPrefix(fact, "thumbnail") || strings.HasPrefix(fact, "image") {
				return true
			}
		}
		// Nested any/all groups.
		for _, key := range []string{"any", "all", "conditions"} {
			if sub, ok := v[key]; ok && conditionsReferenceThumbnail(sub) {
				return true
			}
		}
	}
	return false
}
