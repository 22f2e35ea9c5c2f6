package event

import (
	"time"
)

// Taxonomy enums. Values match the standardized strings the connector
// drivers emit; keep them stable, they are persisted and published as-is.
type Category string
type Type string
type Subtype string

const (
	CategoryDeviceState   Category = "DEVICE_STATE"
	CategoryAccessControl Category = "ACCESS_CONTROL"
	CategoryAnalytics     Category = "ANALYTICS"
	CategoryDiagnostics   Category = "DIAGNOSTICS"
	CategoryUnknown       Category = "UNKNOWN"
)

const (
	TypeStateChanged        Type = "STATE_CHANGED"
	TypeBatteryLevelChanged Type = "BATTERY_LEVEL_CHANGED"
	TypeAccessGranted       Type = "ACCESS_GRANTED"
	TypeAccessDenied        Type = "ACCESS_DENIED"
	TypeDoorForcedOpen      Type = "DOOR_FORCED_OPEN"
	TypeDoorHeldOpen        Type = "DOOR_HELD_OPEN"
	TypeObjectDetected      Type = "OBJECT_DETECTED"
	TypeObjectRemoved       Type = "OBJECT_REMOVED"
	TypeLoitering           Type = "LOITERING"
	TypeLineCrossing        Type = "LINE_CROSSING"
	TypeIntrusion           Type = "INTRUSION"
	TypeUnknown             Type = "UNKNOWN"
)

const (
	SubtypeNone                  Subtype = ""
	SubtypeInvalidCredential     Subtype = "INVALID_CREDENTIAL"
	SubtypeExpiredCredential     Subtype = "EXPIRED_CREDENTIAL"
	SubtypeAntipassbackViolation Subtype = "ANTIPASSBACK_VIOLATION"
	SubtypeDoorLocked            Subtype = "DOOR_LOCKED"
	SubtypeNotInSchedule         Subtype = "NOT_IN_SCHEDULE"
	SubtypePerson                Subtype = "PERSON"
	SubtypeVehicle               Subtype = "VEHICLE"
	SubtypeAnimal                Subtype = "ANIMAL"
)

// Payload carries the normalized fields extracted by the standardizers.
// Pointers distinguish "absent" from zero values; battery in particular
// must not default to 0 when a vendor omits it.
type Payload struct {
	DisplayState      *string `json:"displayState,omitempty"`
	BatteryPercentage *int    `json:"batteryPercentage,omitempty"`
	ObjectTrackID     *string `json:"objectTrackId,omitempty"`
	CredentialRef     *string `json:"credentialRef,omitempty"`
	ActorName         *string `json:"actorName,omitempty"`
}

// StandardizedEvent is the vendor-agnostic event envelope. Constructed
// once by a driver standardizer, consumed exactly once by the pipeline,
// immutable afterward.
type StandardizedEvent struct {
	EventID     string                 `json:"event_id"`
	Timestamp   time.Time              `json:"timestamp"`
	ConnectorID string                 `json:"connector_id"`
	DeviceID    string                 `json:"device_id"` // vendor-external id, not the internal UUID
	Category    Category               `json:"category"`
	Type        Type                   `json:"type"`
	Subtype     Subtype                `json:"subtype,omitempty"`
	Payload     Payload                `json:"payload"`
	Original    map[string]interface{} `json:"original_event,omitempty"` // raw vendor payload, audit only
}

// TimelineEvent is a StandardizedEvent joined with the display context
// the timeline needs. Produced by the events repository, consumed by
// Cluster; never persisted in this form.
type TimelineEvent struct {
	StandardizedEvent
	DeviceName string  `json:"device_name"`
	AreaID     *string `json:"area_id,omitempty"`
	AreaName   string  `json:"area_name,omitempty"`
}

var categoryLabels = map[Category]string{
	CategoryDeviceState:   "Device State",
	CategoryAccessControl: "Access Control",
	CategoryAnalytics:     "Analytics",
	CategoryDiagnostics:   "Diagnostics",
	CategoryUnknown:       "Unknown",
}

var typeLabels = map[Type]string{
	TypeStateChanged:        "State Changed",
	TypeBatteryLevelChanged: "Battery Level Changed",
	TypeAccessGranted:       "Access Granted",
	TypeAccessDenied:        "Access Denied",
	TypeDoorForcedOpen:      "Door Forced Open",
	TypeDoorHeldOpen:        "Door Held Open",
	TypeObjectDetected:      "Object Detected",
	TypeObjectRemoved:       "Object Removed",
	TypeLoitering:           "Loitering Detected",
	TypeLineCrossing:        "Line Crossing",
	TypeIntrusion:           "Intrusion Detected",
	TypeUnknown:             "Unknown",
}

var subtypeLabels = map[Subtype]string{
	SubtypeInvalidCredential:     "Invalid Credential",
	SubtypeExpiredCredential:     "Expired Credential",
	SubtypeAntipassbackViolation: "Antipassback Violation",
	SubtypeDoorLocked:            "Door Locked",
	SubtypeNotInSchedule:         "Not In Schedule",
	SubtypePerson:                "Person",
	SubtypeVehicle:               "Vehicle",
	SubtypeAnimal:                "Animal",
}

// CategoryLabel returns a human-readable label for realtime messages.
func CategoryLabel(c Category) string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

func TypeLabel(t Type) string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	return string(t)
}

func SubtypeLabel(s Subtype) string {
	if l, ok := subtypeLabels[s]; ok {
		return l
	}
	return string(s)
}

// SupportsThumbnail reports whether an event class carries visual
// context worth snapshotting. Plain device-state churn does not.
func SupportsThumbnail(e *StandardizedEvent) bool {
	if e.Category == CategoryAnalytics {
		return true
	}
	switch e.Type {
	case TypeDoorForcedOpen, TypeDoorHeldOpen, TypeAccessDenied:
		return true
	}
	return false
}
