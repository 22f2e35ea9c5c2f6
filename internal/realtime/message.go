package realtime

import (
	"time"

	"github.com/technosupport/fusion-pipeline/internal/data"
	"github.com/technosupport/fusion-pipeline/internal/event"
)

// ThumbnailData is transient image context attached to a realtime
// message. Never persisted; []byte serializes as base64 in JSON.
type ThumbnailData struct {
	Data        []byte `json:"data"`
	Size        int    `json:"size"`
	ContentType string `json:"content_type,omitempty"`
}

// EventMessage is the JSON payload published to the org channels:
// the flattened event with display labels plus resolved names, the raw
// vendor payload for detail views, and optionally a thumbnail.
type EventMessage struct {
	EventID        string    `json:"event_id"`
	Timestamp      time.Time `json:"timestamp"`
	OrganizationID string    `json:"organization_id"`
	ConnectorID    string    `json:"connector_id"`
	DeviceID       string    `json:"device_id"`
	DeviceName     string    `json:"device_name,omitempty"`
	AreaID         string    `json:"area_id,omitempty"`
	AreaName       string    `json:"area_name,omitempty"`
	LocationName   string    `json:"location_name,omitempty"`

	Category      string `json:"category"`
	CategoryLabel string `json:"category_label"`
	Type          string `json:"type"`
	TypeLabel     string `json:"type_label"`
	Subtype       string `json:"subtype,omitempty"`
	SubtypeLabel  string `json:"subtype_label,omitempty"`

	Payload  event.Payload          `json:"payload"`
	RawEvent map[string]interface{} `json:"raw_event,omitempty"`

	Thumbnail *ThumbnailData `json:"thumbnail,omitempty"`
}

// BuildEventMessage flattens an event plus its resolved context into
// the wire form. ectx may be partially populated (unknown device).
func BuildEventMessage(e *event.StandardizedEvent, ectx *data.EventContext, thumb *ThumbnailData) *EventMessage {
	msg := &EventMessage{
		EventID:       e.EventID,
		Timestamp:     e.Timestamp,
		ConnectorID:   e.ConnectorID,
		DeviceID:      e.DeviceID,
		Category:      string(e.Category),
		CategoryLabel: event.CategoryLabel(e.Category),
		Type:          string(e.Type),
		TypeLabel:     event.TypeLabel(e.Type),
		Subtype:       string(e.Subtype),
		SubtypeLabel:  event.SubtypeLabel(e.Subtype),
		Payload:       e.Payload,
		RawEvent:      e.Original,
		Thumbnail:     thumb,
	}
	if ectx != nil {
		msg.OrganizationID = ectx.OrganizationID
		msg.LocationName = ectx.LocationName
		if ectx.Device != nil {
			msg.DeviceName = ectx.Device.Name
		}
		if ectx.Area != nil {
			msg.AreaID = ectx.Area.ID.String()
			msg.AreaName = ectx.Area.Name
		}
	}
	return msg
}
