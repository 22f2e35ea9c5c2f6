package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/fusion-pipeline/internal/alarm"
	"github.com/technosupport/fusion-pipeline/internal/data"
	"github.com/technosupport/fusion-pipeline/internal/event"
	"github.com/technosupport/fusion-pipeline/internal/realtime"
)

type recordingZoneStore struct {
	updates []data.ArmedState
}

func (r *recordingZoneStore) UpdateArmedState(ctx context.Context, id uuid.UUID, state data.ArmedState) error {
	r.updates = append(r.updates, state)
	return nil
}

type processorFixture struct {
	events    *MockEventStore
	devices   *MockDeviceStore
	publisher *MockPublisher
	autos     *MockAutomationSource
	dispatch  *MockDispatcher
	fetcher   *MockFetcher
	zones     *recordingZoneStore
	processor *Processor
}

func newFixture(withFetcher bool) *processorFixture {
	f := &processorFixture{
		events:    new(MockEventStore),
		devices:   new(MockDeviceStore),
		publisher: new(MockPublisher),
		autos:     new(MockAutomationSource),
		dispatch:  new(MockDispatcher),
		fetcher:   new(MockFetcher),
		zones:     &recordingZoneStore{},
	}
	evaluator := alarm.NewEvaluator(f.zones, alarm.NewRuleSet(""))
	gate := NewGate(f.publisher, f.autos)
	var fetcher ThumbnailFetcher
	if withFetcher {
		fetcher = f.fetcher
	}
	f.processor = NewProcessor(f.events, f.devices, f.publisher, gate, fetcher, evaluator, f.dispatch, Config{})
	return f
}

var (
	connID = uuid.New()
	devID  = uuid.New()
	areaID = uuid.New()
	procT  = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
)

func accessDeniedEvent() *event.StandardizedEvent {
	return &event.StandardizedEvent{
		EventID:     "e1",
		Timestamp:   procT,
		ConnectorID: connID.String(),
		DeviceID:    "d1",
		Category:    event.CategoryAccessControl,
		Type:        event.TypeAccessDenied,
		Subtype:     event.SubtypeInvalidCredential,
		Original:    map[string]interface{}{"activityid": "99", "descname": "Access Denied"},
	}
}

func contextFor(zoneState data.ArmedState) *data.EventContext {
	return &data.EventContext{
		ConnectorID:    connID,
		OrganizationID: "org1",
		Device: &data.Device{
			ID: devID, ConnectorID: connID, ExternalID: "d1",
			Name: "Front Door", DeviceType: "door_reader",
		},
		Area: &data.Area{
			ID: areaID, OrganizationID: "org1", Name: "Lobby",
			ArmedState: zoneState, TriggerBehavior: data.TriggerBehaviorStandard,
		},
		LocationName: "HQ",
	}
}

func TestProcess_ArmedZoneTriggersAndDispatchesOnce(t *testing.T) {
	f := newFixture(false)
	e := accessDeniedEvent()

	f.events.On("Insert", mock.Anything, mock.MatchedBy(func(rec *data.EventRecord) bool {
		return rec.EventUUID == "e1" && rec.RawEventType == "Access Denied"
	})).Return(nil)
	f.devices.On("GetEventContext", mock.Anything, connID, "d1").Return(contextFor(data.ArmedStateArmedAway), nil)
	f.devices.On("ListAreaCameras", mock.Anything, areaID).Return(nil, nil)
	f.publisher.On("Publish", mock.Anything, realtime.EventChannel("org1"), mock.Anything).Return(nil)
	f.publisher.On("SubscriberCount", mock.Anything, realtime.ThumbnailChannel("org1")).Return(int64(0), nil)
	f.dispatch.On("Dispatch", mock.Anything, "org1", e, (*realtime.ThumbnailData)(nil)).Return(nil)

	require.NoError(t, f.processor.Process(context.Background(), e))

	assert.Equal(t, []data.ArmedState{data.ArmedStateTriggered}, f.zones.updates)
	f.dispatch.AssertNumberOfCalls(t, "Dispatch", 1)
	f.events.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestProcess_DisarmedZoneStillPersistsAndDispatches(t *testing.T) {
	f := newFixture(false)
	e := accessDeniedEvent()

	f.events.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.devices.On("GetEventContext", mock.Anything, connID, "d1").Return(contextFor(data.ArmedStateDisarmed), nil)
	f.devices.On("ListAreaCameras", mock.Anything, areaID).Return(nil, nil)
	f.publisher.On("Publish", mock.Anything, realtime.EventChannel("org1"), mock.Anything).Return(nil)
	f.publisher.On("SubscriberCount", mock.Anything, realtime.ThumbnailChannel("org1")).Return(int64(0), nil)
	f.dispatch.On("Dispatch", mock.Anything, "org1", e, (*realtime.ThumbnailData)(nil)).Return(nil)

	require.NoError(t, f.processor.Process(context.Background(), e))

	assert.Empty(t, f.zones.updates, "disarmed zone must not change state")
	f.dispatch.AssertNumberOfCalls(t, "Dispatch", 1)
}

func TestProcess_PersistenceFailureAbortsEverything(t *testing.T) {
	f := newFixture(false)
	e := accessDeniedEvent()

	f.events.On("Insert", mock.Anything, mock.Anything).Return(data.ErrDuplicateEvent)

	err := f.processor.Process(context.Background(), e)
	require.Error(t, err)
	assert.ErrorIs(t, err, data.ErrDuplicateEvent)

	f.devices.AssertNotCalled(t, "GetEventContext", mock.Anything, mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	f.dispatch.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.zones.updates)
}

func TestProcess_ContextResolutionFailureStopsEnrichmentOnly(t *testing.T) {
	f := newFixture(false)
	e := accessDeniedEvent()

	f.events.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.devices.On("GetEventContext", mock.Anything, connID, "d1").Return(nil, data.ErrRecordNotFound)

	// Persisted, no error surfaces, nothing downstream runs.
	require.NoError(t, f.processor.Process(context.Background(), e))
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	f.dispatch.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_PublishFailureDoesNotStopPipeline(t *testing.T) {
	f := newFixture(false)
	e := accessDeniedEvent()

	f.events.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.devices.On("GetEventContext", mock.Anything, connID, "d1").Return(contextFor(data.ArmedStateArmedStay), nil)
	f.devices.On("ListAreaCameras", mock.Anything, areaID).Return(nil, nil)
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))
	f.publisher.On("SubscriberCount", mock.Anything, mock.Anything).Return(int64(0), errors.New("redis down"))
	f.dispatch.On("Dispatch", mock.Anything, "org1", e, (*realtime.ThumbnailData)(nil)).Return(nil)

	require.NoError(t, f.processor.Process(context.Background(), e))

	// Alarm evaluation and dispatch still happened.
	assert.Equal(t, []data.ArmedState{data.ArmedStateTriggered}, f.zones.updates)
	f.dispatch.AssertNumberOfCalls(t, "Dispatch", 1)
}

func TestProcess_BatteryValidation(t *testing.T) {
	tests := []struct {
		name         string
		battery      int
		expectUpdate bool
	}{
		{"out of range high", 150, false},
		{"out of range negative", -1, false},
		{"valid", 42, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(false)
			b := tc.battery
			e := accessDeniedEvent()
			e.Category = event.CategoryDiagnostics
			e.Type = event.TypeBatteryLevelChanged
			e.Subtype = event.SubtypeNone
			e.Payload.BatteryPercentage = &b

			f.events.On("Insert", mock.Anything, mock.Anything).Return(nil)
			f.devices.On("GetEventContext", mock.Anything, connID, "d1").Return(contextFor(data.ArmedStateDisarmed), nil)
			f.devices.On("ListAreaCameras", mock.Anything, areaID).Return(nil, nil)
			f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
			f.publisher.On("SubscriberCount", mock.Anything, mock.Anything).Return(int64(0), nil)
			f.dispatch.On("Dispatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
			if tc.expectUpdate {
				f.devices.On("UpdateState", mock.Anything, devID, (*string)(nil), &b).Return(nil)
			}

			require.NoError(t, f.processor.Process(context.Background(), e))

			if tc.expectUpdate {
				f.devices.AssertCalled(t, "UpdateState", mock.Anything, devID, (*string)(nil), &b)
			} else {
				f.devices.AssertNotCalled(t, "UpdateState", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestProcess_CombinedStatusAndBatteryUpdate(t *testing.T) {
	f := newFixture(false)
	state := "open"
	battery := 80
	e := accessDeniedEvent()
	e.Category = event.CategoryDeviceState
	e.Type = event.TypeStateChanged
	e.Subtype = event.SubtypeNone
	e.Payload.DisplayState = &state
	e.Payload.BatteryPercentage = &battery

	f.events.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.devices.On("GetEventContext", mock.Anything, connID, "d1").Return(contextFor(data.ArmedStateDisarmed), nil)
	f.devices.On("ListAreaCameras", mock.Anything, areaID).Return(nil, nil)
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.publisher.On("SubscriberCount", mock.Anything, mock.Anything).Return(int64(0), nil)
	f.dispatch.On("Dispatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.devices.On("UpdateState", mock.Anything, devID, &state, &battery).Return(nil)

	require.NoError(t, f.processor.Process(context.Background(), e))

	// One combined update, not two.
	f.devices.AssertNumberOfCalls(t, "UpdateState", 1)
}

func TestProcess_ThumbnailGateClosed_NoFetchSingleBasePublish(t *testing.T) {
	f := newFixture(true)
	e := accessDeniedEvent()
	e.Category = event.CategoryAnalytics
	e.Type = event.TypeObjectDetected
	e.Subtype = event.SubtypePerson

	cameras := []*data.Device{{ID: uuid.New(), DeviceType: "camera", Name: "Lobby Cam"}}

	f.events.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.devices.On("GetEventContext", mock.Anything, connID, "d1").Return(contextFor(data.ArmedStateDisarmed), nil)
	f.devices.On("ListAreaCameras", mock.Anything, areaID).Return(cameras, nil)
	// Zero subscribers on the thumbnail channel, no visual automations.
	f.publisher.On("SubscriberCount", mock.Anything, realtime.ThumbnailChannel("org1")).Return(int64(0), nil)
	f.autos.On("ListEnabledByOrg", mock.Anything, "org1").Return(nil, nil)
	f.publisher.On("Publish", mock.Anything, realtime.EventChannel("org1"), mock.Anything).Return(nil)
	f.dispatch.On("Dispatch", mock.Anything, "org1", e, (*realtime.ThumbnailData)(nil)).Return(nil)

	require.NoError(t, f.processor.Process(context.Background(), e))

	f.fetcher.AssertNotCalled(t, "FetchThumbnail", mock.Anything, mock.Anything, mock.Anything)
	// Only the base channel got a message.
	f.publisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestProcess_ThumbnailFetchedAndPublishedWhenSubscribed(t *testing.T) {
	f := newFixture(true)
	e := accessDeniedEvent()
	e.Category = event.CategoryAnalytics
	e.Type = event.TypeObjectDetected

	cameras := []*data.Device{{ID: uuid.New(), DeviceType: "camera"}}
	thumb := &realtime.ThumbnailData{Data: []byte{0xFF, 0xD8}, Size: 2, ContentType: "image/jpeg"}

	f.events.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.devices.On("GetEventContext", mock.Anything, connID, "d1").Return(contextFor(data.ArmedStateDisarmed), nil)
	f.devices.On("ListAreaCameras", mock.Anything, areaID).Return(cameras, nil)
	f.publisher.On("SubscriberCount", mock.Anything, realtime.ThumbnailChannel("org1")).Return(int64(2), nil)
	f.autos.On("ListEnabledByOrg", mock.Anything, "org1").Return(nil, nil)
	f.fetcher.On("FetchThumbnail", mock.Anything, e, cameras).Return(thumb, nil)
	f.publisher.On("Publish", mock.Anything, realtime.EventChannel("org1"), mock.MatchedBy(func(m *realtime.EventMessage) bool {
		return m.Thumbnail == nil
	})).Return(nil)
	f.publisher.On("Publish", mock.Anything, realtime.ThumbnailChannel("org1"), mock.MatchedBy(func(m *realtime.EventMessage) bool {
		return m.Thumbnail != nil && m.Thumbnail.Size == 2
	})).Return(nil)
	f.dispatch.On("Dispatch", mock.Anything, "org1", e, thumb).Return(nil)

	require.NoError(t, f.processor.Process(context.Background(), e))

	f.publisher.AssertExpectations(t)
	f.fetcher.AssertNumberOfCalls(t, "FetchThumbnail", 1)
	f.dispatch.AssertCalled(t, "Dispatch", mock.Anything, "org1", e, thumb)
}

func TestProcess_ThumbnailFetchFailureIsSwallowed(t *testing.T) {
	f := newFixture(true)
	e := accessDeniedEvent()
	e.Category = event.CategoryAnalytics
	e.Type = event.TypeObjectDetected

	cameras := []*data.Device{{ID: uuid.New(), DeviceType: "camera"}}

	f.events.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.devices.On("GetEventContext", mock.Anything, connID, "d1").Return(contextFor(data.ArmedStateDisarmed), nil)
	f.devices.On("ListAreaCameras", mock.Anything, areaID).Return(cameras, nil)
	f.publisher.On("SubscriberCount", mock.Anything, realtime.ThumbnailChannel("org1")).Return(int64(1), nil)
	f.autos.On("ListEnabledByOrg", mock.Anything, "org1").Return(nil, nil)
	f.fetcher.On("FetchThumbnail", mock.Anything, e, cameras).Return(nil, errors.New("camera unreachable"))
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.dispatch.On("Dispatch", mock.Anything, "org1", e, (*realtime.ThumbnailData)(nil)).Return(nil)

	require.NoError(t, f.processor.Process(context.Background(), e))
	f.dispatch.AssertNumberOfCalls(t, "Dispatch", 1)
}

func TestProcess_NonVisualEventSkipsGateEntirely(t *testing.T) {
	f := newFixture(true)
	e := accessDeniedEvent()
	e.Category = event.CategoryDeviceState
	e.Type = event.TypeStateChanged
	e.Subtype = event.SubtypeNone

	cameras := []*data.Device{{ID: uuid.New(), DeviceType: "camera"}}

	f.events.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.devices.On("GetEventContext", mock.Anything, connID, "d1").Return(contextFor(data.ArmedStateDisarmed), nil)
	f.devices.On("ListAreaCameras", mock.Anything, areaID).Return(cameras, nil)
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.publisher.On("SubscriberCount", mock.Anything, mock.Anything).Return(int64(0), nil)
	f.dispatch.On("Dispatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, f.processor.Process(context.Background(), e))

	f.autos.AssertNotCalled(t, "ListEnabledByOrg", mock.Anything, mock.Anything)
	f.fetcher.AssertNotCalled(t, "FetchThumbnail", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_CameraResolutionIsCached(t *testing.T) {
	f := newFixture(false)

	f.events.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.devices.On("GetEventContext", mock.Anything, connID, "d1").Return(contextFor(data.ArmedStateDisarmed), nil)
	f.devices.On("ListAreaCameras", mock.Anything, areaID).Return(nil, nil).Once()
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.publisher.On("SubscriberCount", mock.Anything, mock.Anything).Return(int64(0), nil)
	f.dispatch.On("Dispatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	e1 := accessDeniedEvent()
	e2 := accessDeniedEvent()
	e2.EventID = "e2"
	require.NoError(t, f.processor.Process(context.Background(), e1))
	require.NoError(t, f.processor.Process(context.Background(), e2))

	// Second event hits the LRU, not the repository.
	f.devices.AssertNumberOfCalls(t, "ListAreaCameras", 1)
}
