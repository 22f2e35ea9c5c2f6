package alarm

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/technosupport/fusion-pipeline/internal/data"
	"github.com/technosupport/fusion-pipeline/internal/event"
	"github.com/technosupport/fusion-pipeline/internal/metrics"
)

// ZoneStore is the slice of the area repository the evaluator needs.
type ZoneStore interface {
	UpdateArmedState(ctx context.Context, id uuid.UUID, state data.ArmedState) error
}

// RiskClassifier is the pure predicate contract (see RuleSet).
type RiskClassifier interface {
	IsSecurityRisk(e *event.StandardizedEvent, dev *data.Device) bool
}

// Evaluator runs the arming state machine for one event at a time.
//
// The only transition it ever performs is armed_* -> triggered. Disarm,
// re-arm and alarm clearing are operator actions handled elsewhere.
type Evaluator struct {
	zones ZoneStore
	rules RiskClassifier
}

func NewEvaluator(zones ZoneStore, rules RiskClassifier) *Evaluator {
	return &Evaluator{zones: zones, rules: rules}
}

// HandleEvent evaluates one event against the device's owning zone.
// Never returns an error: evaluation failures are logged and contained
// so the rest of the pipeline keeps running.
func (ev *Evaluator) HandleEvent(ctx context.Context, e *event.StandardizedEvent, dev *data.Device, zone *data.Area) {
	if zone == nil || dev == nil {
		return
	}

	switch zone.ArmedState {
	case data.ArmedStateDisarmed:
		// No risk evaluation at all while disarmed; the event is
		// already persisted, nothing more to do here.
		return

	case data.ArmedStateTriggered:
		// Idempotent re-entry. A further risk event while triggered
		// changes nothing.
		return

	case data.ArmedStateArmedAway, data.ArmedStateArmedStay:
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[ERROR] Alarm Evaluator (%s): panic during risk evaluation: %v", e.EventID, r)
				}
			}()
			if !ev.rules.IsSecurityRisk(e, dev) {
				return
			}
			if err := ev.zones.UpdateArmedState(ctx, zone.ID, data.ArmedStateTriggered); err != nil {
				log.Printf("[ERROR] Alarm Evaluator (%s): failed to trigger zone %s: %v", e.EventID, zone.ID, err)
				return
			}
			zone.ArmedState = data.ArmedStateTriggered
			metrics.AlarmTriggersTotal.Inc()
			log.Printf("[WARN] Alarm Evaluator: zone %s (%s) TRIGGERED by event %s (%s/%s)",
				zone.ID, zone.Name, e.EventID, e.Category, e.Type)
		}()

	default:
		log.Printf("[WARN] Alarm Evaluator (%s): zone %s in unknown armed state %q, skipping",
			e.EventID, zone.ID, zone.ArmedState)
	}
}
