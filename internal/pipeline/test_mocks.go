package pipeline

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/technosupport/fusion-pipeline/internal/data"
	"github.com/technosupport/fusion-pipeline/internal/event"
	"github.com/technosupport/fusion-pipeline/internal/realtime"
)

type MockEventStore struct {
	mock.Mock
}

func (m *MockEventStore) Insert(ctx context.Context, rec *data.EventRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

type MockDeviceStore struct {
	mock.Mock
}

func (m *MockDeviceStore) GetEventContext(ctx context.Context, connectorID uuid.UUID, externalDeviceID string) (*data.EventContext, error) {
	args := m.Called(ctx, connectorID, externalDeviceID)
	if ec := args.Get(0); ec != nil {
		return ec.(*data.EventContext), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDeviceStore) UpdateState(ctx context.Context, deviceID uuid.UUID, status *string, battery *int) error {
	args := m.Called(ctx, deviceID, status, battery)
	return args.Error(0)
}

func (m *MockDeviceStore) ListAreaCameras(ctx context.Context, areaID uuid.UUID) ([]*data.Device, error) {
	args := m.Called(ctx, areaID)
	if cams := args.Get(0); cams != nil {
		return cams.([]*data.Device), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, channel string, msg *realtime.EventMessage) error {
	args := m.Called(ctx, channel, msg)
	return args.Error(0)
}

func (m *MockPublisher) SubscriberCount(ctx context.Context, channel string) (int64, error) {
	args := m.Called(ctx, channel)
	return args.Get(0).(int64), args.Error(1)
}

type MockAutomationSource struct {
	mock.Mock
}

func (m *MockAutomationSource) ListEnabledByOrg(ctx context.Context, orgID string) ([]*data.Automation, error) {
	args := m.Called(ctx, orgID)
	if autos := args.Get(0); autos != nil {
		return autos.([]*data.Automation), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, orgID string, e *event.StandardizedEvent, thumb *realtime.ThumbnailData) error {
	args := m.Called(ctx, orgID, e, thumb)
	return args.Error(0)
}

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchThumbnail(ctx context.Context, e *event.StandardizedEvent, cameras []*data.Device) (*realtime.ThumbnailData, error) {
	args := m.Called(ctx, e, cameras)
	if t := args.Get(0); t != nil {
		return t.(*realtime.ThumbnailData), args.Error(1)
	}
	return nil, args.Error(1)
}
