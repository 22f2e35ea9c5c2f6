package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/technosupport/fusion-pipeline/internal/alarm"
	"github.com/technosupport/fusion-pipeline/internal/data"
	"github.com/technosupport/fusion-pipeline/internal/event"
	"github.com/technosupport/fusion-pipeline/internal/metrics"
	"github.com/technosupport/fusion-pipeline/internal/realtime"
)

// Repository slices the processor depends on. Narrow on purpose so
// tests can hand-mock them.
type EventStore interface {
	Insert(ctx context.Context, rec *data.EventRecord) error
}

type DeviceStore interface {
	GetEventContext(ctx context.Context, connectorID uuid.UUID, externalDeviceID string) (*data.EventContext, error)
	UpdateState(ctx context.Context, deviceID uuid.UUID, status *string, battery *int) error
	ListAreaCameras(ctx context.Context, areaID uuid.UUID) ([]*data.Device, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, channel string, msg *realtime.EventMessage) error
	SubscriberCount(ctx context.Context, channel string) (int64, error)
}

// AutomationDispatcher forwards the event to the automation trigger
// service, exactly once per event, after persistence.
type AutomationDispatcher interface {
	Dispatch(ctx context.Context, orgID string, e *event.StandardizedEvent, thumb *realtime.ThumbnailData) error
}

type Config struct {
	FetchTimeout    time.Duration
	CameraCacheSize int
	CameraCacheTTL  time.Duration
}

func (c *Config) defaults() {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 5 * time.Second
	}
	if c.CameraCacheSize <= 0 {
		c.CameraCacheSize = 256
	}
	if c.CameraCacheTTL <= 0 {
		c.CameraCacheTTL = 60 * time.Second
	}
}

type cameraCacheEntry struct {
	cameras  []*data.Device
	cachedAt time.Time
}

// Processor is the event pipeline orchestrator. One instance is shared
// across invocations; it holds no per-event state, only injected
// clients and the camera-resolution cache.
type Processor struct {
	events      EventStore
	devices     DeviceStore
	publisher   EventPublisher
	gate        *Gate
	fetcher     ThumbnailFetcher // may be nil when no camera connector is configured
	evaluator   *alarm.Evaluator
	automations AutomationDispatcher

	cameraCache *lru.Cache[string, cameraCacheEntry]
	cfg         Config
}

func NewProcessor(
	events EventStore,
	devices DeviceStore,
	publisher EventPublisher,
	gate *Gate,
	fetcher ThumbnailFetcher,
	evaluator *alarm.Evaluator,
	automations AutomationDispatcher,
	cfg Config,
) *Processor {
	cfg.defaults()
	cache, _ := lru.New[string, cameraCacheEntry](cfg.CameraCacheSize)
	return &Processor{
		events:      events,
		devices:     devices,
		publisher:   publisher,
		gate:        gate,
		fetcher:     fetcher,
		evaluator:   evaluator,
		automations: automations,
		cameraCache: cache,
		cfg:         cfg,
	}
}

// bestEffort runs one optional pipeline step. A failure is logged and
// counted, never propagated: the event is already persisted and the
// remaining steps must still run.
func (p *Processor) bestEffort(eventID, step string, fn func() error) {
	if err := fn(); err != nil {
		metrics.PipelineStepFailures.WithLabelValues(step).Inc()
		log.Printf("[ERROR] Event Processor (%s): %s failed: %v", eventID, step, err)
	}
}

// Process runs the full pipeline for one standardized event.
//
// Persistence is foundational: if the insert fails (including a
// replayed event id) the operation aborts and the error propagates.
// Every later step is best-effort and fault-isolated.
func (p *Processor) Process(ctx context.Context, e *event.StandardizedEvent) error {
	// 1. Raw vendor event type, best-effort shape sniffing.
	rawType := event.DeriveRawType(e.Original)

	// 2. Persist. Fatal on failure.
	rec, err := toRecord(e, rawType)
	if err != nil {
		metrics.EventsProcessedTotal.WithLabelValues("encode_error").Inc()
		return fmt.Errorf("encode event %s: %w", e.EventID, err)
	}
	if err := p.events.Insert(ctx, rec); err != nil {
		metrics.EventsProcessedTotal.WithLabelValues("persist_error").Inc()
		return fmt.Errorf("persist event %s: %w", e.EventID, err)
	}

	// 3. Resolve context: connector -> org, device, zone, location.
	connectorID, err := uuid.Parse(e.ConnectorID)
	if err != nil {
		log.Printf("[ERROR] Event Processor (%s): invalid connector id %q: %v", e.EventID, e.ConnectorID, err)
		metrics.EventsProcessedTotal.WithLabelValues("no_context").Inc()
		return nil
	}
	ectx, err := p.devices.GetEventContext(ctx, connectorID, e.DeviceID)
	if err != nil {
		// Without a connector there is no organization, so no channel
		// to publish on and no automation scope. The event itself is
		// safely persisted; enrichment stops here.
		log.Printf("[ERROR] Event Processor (%s): context resolution failed: %v", e.EventID, err)
		metrics.EventsProcessedTotal.WithLabelValues("no_context").Inc()
		return nil
	}

	// 4. Candidate area cameras, best-effort.
	var cameras []*data.Device
	if ectx.Area != nil {
		cameras = p.areaCameras(ctx, e.EventID, ectx.Area.ID)
	}

	// 5. Thumbnail gate + bounded fetch.
	var thumb *realtime.ThumbnailData
	if p.fetcher != nil && len(cameras) > 0 && event.SupportsThumbnail(e) {
		if p.gate.WantsThumbnail(ctx, ectx.OrganizationID, realtime.ThumbnailChannel(ectx.OrganizationID)) {
			thumb = p.fetchThumbnail(ctx, e, cameras)
		}
	}

	// 6. Realtime publish: base channel always, thumbnail channel only
	// when someone is actually subscribed to it.
	p.bestEffort(e.EventID, "realtime_publish", func() error {
		msg := realtime.BuildEventMessage(e, ectx, nil)
		if err := p.publisher.Publish(ctx, realtime.EventChannel(ectx.OrganizationID), msg); err != nil {
			metrics.RealtimePublishesTotal.WithLabelValues("base", "error").Inc()
			return err
		}
		metrics.RealtimePublishesTotal.WithLabelValues("base", "ok").Inc()
		return nil
	})
	p.bestEffort(e.EventID, "realtime_publish_thumbnail", func() error {
		thumbChannel := realtime.ThumbnailChannel(ectx.OrganizationID)
		n, err := p.publisher.SubscriberCount(ctx, thumbChannel)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		msg := realtime.BuildEventMessage(e, ectx, thumb)
		if err := p.publisher.Publish(ctx, thumbChannel, msg); err != nil {
			metrics.RealtimePublishesTotal.WithLabelValues("thumbnail", "error").Inc()
			return err
		}
		metrics.RealtimePublishesTotal.WithLabelValues("thumbnail", "ok").Inc()
		return nil
	})

	// 7. Combined device status/battery update.
	if ectx.Device != nil {
		p.bestEffort(e.EventID, "device_update", func() error {
			return p.updateDeviceState(ctx, e, ectx.Device)
		})
	}

	// 8. Alarm evaluation. The evaluator contains its own failures.
	if ectx.Device != nil && ectx.Area != nil {
		p.evaluator.HandleEvent(ctx, e, ectx.Device, ectx.Area)
	}

	// 9. Forward to the automation trigger service.
	p.bestEffort(e.EventID, "automation_dispatch", func() error {
		if err := p.automations.Dispatch(ctx, ectx.OrganizationID, e, thumb); err != nil {
			metrics.AutomationDispatchesTotal.WithLabelValues("error").Inc()
			return err
		}
		metrics.AutomationDispatchesTotal.WithLabelValues("ok").Inc()
		return nil
	})

	metrics.EventsProcessedTotal.WithLabelValues("ok").Inc()
	return nil
}

func (p *Processor) areaCameras(ctx context.Context, eventID string, areaID uuid.UUID) []*data.Device {
	key := areaID.String()
	if entry, ok := p.cameraCache.Get(key); ok {
		if time.Since(entry.cachedAt) < p.cfg.CameraCacheTTL {
			return entry.cameras
		}
		p.cameraCache.Remove(key)
	}
	cameras, err := p.devices.ListAreaCameras(ctx, areaID)
	if err != nil {
		log.Printf("[WARN] Event Processor (%s): camera resolution for area %s failed: %v", eventID, areaID, err)
		return nil
	}
	p.cameraCache.Add(key, cameraCacheEntry{cameras: cameras, cachedAt: time.Now()})
	return cameras
}

func (p *Processor) fetchThumbnail(ctx context.Context, e *event.StandardizedEvent, cameras []*data.Device) *realtime.ThumbnailData {
	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()

	thumb, err := p.fetcher.FetchThumbnail(fetchCtx, e, cameras)
	if err != nil {
		// Best effort: a vendor hiccup never blocks the event.
		metrics.ThumbnailFetchesTotal.WithLabelValues("error").Inc()
		log.Printf("[WARN] Event Processor (%s): thumbnail fetch failed: %v", e.EventID, err)
		return nil
	}
	if thumb == nil {
		metrics.ThumbnailFetchesTotal.WithLabelValues("empty").Inc()
		return nil
	}
	metrics.ThumbnailFetchesTotal.WithLabelValues("ok").Inc()
	return thumb
}

// updateDeviceState applies at most one combined update for the fields
// this event changed. Battery outside [0,100] is dropped, not clamped.
func (p *Processor) updateDeviceState(ctx context.Context, e *event.StandardizedEvent, dev *data.Device) error {
	var status *string
	if e.Payload.DisplayState != nil && (dev.Status == nil || *dev.Status != *e.Payload.DisplayState) {
		status = e.Payload.DisplayState
	}

	var battery *int
	if e.Payload.BatteryPercentage != nil {
		b := *e.Payload.BatteryPercentage
		if b < 0 || b > 100 {
			log.Printf("[WARN] Event Processor (%s): battery %d out of range for device %s, dropping field",
				e.EventID, b, dev.ID)
		} else if dev.BatteryPercentage == nil || *dev.BatteryPercentage != b {
			battery = &b
		}
	}

	if status == nil && battery == nil {
		return nil
	}
	return p.devices.UpdateState(ctx, dev.ID, status, battery)
}

func toRecord(e *event.StandardizedEvent, rawType string) (*data.EventRecord, error) {
	connectorID, _ := uuid.Parse(e.ConnectorID)

	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if e.Original != nil {
		raw, err = json.Marshal(e.Original)
		if err != nil {
			return nil, err
		}
	}

	return &data.EventRecord{
		EventUUID:    e.EventID,
		Timestamp:    e.Timestamp,
		ConnectorID:  connectorID,
		DeviceID:     e.DeviceID,
		Category:     string(e.Category),
		Type:         string(e.Type),
		Subtype:      string(e.Subtype),
		Payload:      payload,
		RawPayload:   raw,
		RawEventType: rawType,
	}, nil
}
