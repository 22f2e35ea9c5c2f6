package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateEvent = errors.New("duplicate event id")
)

// DBTX is a common interface for *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ArmedState is the arming state of an alarm zone.
type ArmedState string

const (
	ArmedStateDisarmed  ArmedState = "disarmed"
	ArmedStateArmedAway ArmedState = "armed_away"
	ArmedStateArmedStay ArmedState = "armed_stay"
	ArmedStateTriggered ArmedState = "triggered"
)

// Armed reports whether the state is one of the armed variants.
// Triggered counts: the zone got there armed and nobody disarmed it.
func (s ArmedState) Armed() bool {
	return s == ArmedStateArmedAway || s == ArmedStateArmedStay || s == ArmedStateTriggered
}

func ValidArmedState(s ArmedState) bool {
	switch s {
	case ArmedStateDisarmed, ArmedStateArmedAway, ArmedStateArmedStay, ArmedStateTriggered:
		return true
	}
	return false
}

const (
	TriggerBehaviorStandard = "standard"
	TriggerBehaviorCustom   = "custom"
)

type Connector struct {
	ID             uuid.UUID
	OrganizationID string
	Name           string
	Category       string // yolink, piko, netbox, genea
}

type Device struct {
	ID                uuid.UUID // internal
	ConnectorID       uuid.UUID
	ExternalID        string // vendor-scoped
	Name              string
	DeviceType        string // door_contact, motion_sensor, camera, lock, ...
	Status            *string
	BatteryPercentage *int
}

type Area struct {
	ID              uuid.UUID
	OrganizationID  string
	LocationID      *uuid.UUID
	Name            string
	ArmedState      ArmedState
	TriggerBehavior string
}

// EventRecord is the persisted, append-only form of a standardized event.
type EventRecord struct {
	ID           int64
	EventUUID    string
	Timestamp    time.Time
	ConnectorID  uuid.UUID
	DeviceID     string // vendor-external
	Category     string
	Type         string
	Subtype      string
	Payload      json.RawMessage
	RawPayload   json.RawMessage
	RawEventType string
	CreatedAt    time.Time
}

// EventContext is the combined lookup the pipeline performs per event:
// connector -> device -> area/zone -> location, one read.
type EventContext struct {
	ConnectorID    uuid.UUID
	OrganizationID string
	Device         *Device // nil when the device is unknown
	Area           *Area   // nil when the device has no zone membership
	LocationName   string
}

type Automation struct {
	ID             uuid.UUID
	OrganizationID string
	Name           string
	Enabled        bool
	Config         json.RawMessage // trigger/action configuration
}
