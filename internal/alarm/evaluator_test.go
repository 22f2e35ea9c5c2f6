package alarm

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/technosupport/fusion-pipeline/internal/data"
	"github.com/technosupport/fusion-pipeline/internal/event"
)

type mockZoneStore struct {
	updates []data.ArmedState
	err     error
}

func (m *mockZoneStore) UpdateArmedState(ctx context.Context, id uuid.UUID, state data.ArmedState) error {
	if m.err != nil {
		return m.err
	}
	m.updates = append(m.updates, state)
	return nil
}

func riskEvent() *event.StandardizedEvent {
	return &event.StandardizedEvent{
		EventID:     "e1",
		ConnectorID: "c1",
		DeviceID:    "d1",
		Category:    event.CategoryAccessControl,
		Type:        event.TypeAccessDenied,
		Subtype:     event.SubtypeInvalidCredential,
	}
}

func benignEvent() *event.StandardizedEvent {
	return &event.StandardizedEvent{
		EventID:     "e2",
		ConnectorID: "c1",
		DeviceID:    "d1",
		Category:    event.CategoryDiagnostics,
		Type:        event.TypeBatteryLevelChanged,
	}
}

func testZone(state data.ArmedState) *data.Area {
	return &data.Area{
		ID:              uuid.New(),
		OrganizationID:  "org1",
		Name:            "Lobby",
		ArmedState:      state,
		TriggerBehavior: data.TriggerBehaviorStandard,
	}
}

func testDevice() *data.Device {
	return &data.Device{ID: uuid.New(), ExternalID: "d1", DeviceType: "door_reader"}
}

func TestEvaluator_RiskEventTriggersArmedZone(t *testing.T) {
	for _, state := range []data.ArmedState{data.ArmedStateArmedAway, data.ArmedStateArmedStay} {
		t.Run(string(state), func(t *testing.T) {
			store := &mockZoneStore{}
			ev := NewEvaluator(store, NewRuleSet(""))
			zone := testZone(state)

			ev.HandleEvent(context.Background(), riskEvent(), testDevice(), zone)

			assert.Equal(t, []data.ArmedState{data.ArmedStateTriggered}, store.updates)
			assert.Equal(t, data.ArmedStateTriggered, zone.ArmedState)
		})
	}
}

func TestEvaluator_DisarmedZoneNeverChanges(t *testing.T) {
	store := &mockZoneStore{}
	ev := NewEvaluator(store, NewRuleSet(""))
	zone := testZone(data.ArmedStateDisarmed)

	ev.HandleEvent(context.Background(), riskEvent(), testDevice(), zone)

	assert.Empty(t, store.updates)
	assert.Equal(t, data.ArmedStateDisarmed, zone.ArmedState)
}

func TestEvaluator_TriggeredIsIdempotent(t *testing.T) {
	store := &mockZoneStore{}
	ev := NewEvaluator(store, NewRuleSet(""))
	zone := testZone(data.ArmedStateTriggered)

	ev.HandleEvent(context.Background(), riskEvent(), testDevice(), zone)
	ev.HandleEvent(context.Background(), riskEvent(), testDevice(), zone)

	assert.Empty(t, store.updates, "re-entering triggered must cause no writes")
	assert.Equal(t, data.ArmedStateTriggered, zone.ArmedState)
}

func TestEvaluator_BenignEventDoesNotTrigger(t *testing.T) {
	store := &mockZoneStore{}
	ev := NewEvaluator(store, NewRuleSet(""))
	zone := testZone(data.ArmedStateArmedAway)

	ev.HandleEvent(context.Background(), benignEvent(), testDevice(), zone)

	assert.Empty(t, store.updates)
	assert.Equal(t, data.ArmedStateArmedAway, zone.ArmedState)
}

func TestEvaluator_StoreFailureIsContained(t *testing.T) {
	store := &mockZoneStore{err: errors.New("db down")}
	ev := NewEvaluator(store, NewRuleSet(""))
	zone := testZone(data.ArmedStateArmedAway)

	// Must not panic or propagate; zone stays as read.
	ev.HandleEvent(context.Background(), riskEvent(), testDevice(), zone)
	assert.Equal(t, data.ArmedStateArmedAway, zone.ArmedState)
}

func TestEvaluator_NilZoneOrDevice(t *testing.T) {
	store := &mockZoneStore{}
	ev := NewEvaluator(store, NewRuleSet(""))

	ev.HandleEvent(context.Background(), riskEvent(), nil, testZone(data.ArmedStateArmedAway))
	ev.HandleEvent(context.Background(), riskEvent(), testDevice(), nil)
	assert.Empty(t, store.updates)
}
