package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/technosupport/fusion-pipeline/internal/event"
)

type EventModel struct {
	DB DBTX
}

// Insert persists one event. The events table is append-only; no update
// or delete methods are exposed. A replayed event_uuid surfaces as
// ErrDuplicateEvent, never as a silent no-op.
func (m EventModel) Insert(ctx context.Context, rec *EventRecord) error {
	query := `
		INSERT INTO events (
			event_uuid, ts, connector_id, device_external_id,
			category, type, subtype, payload, raw_payload, raw_event_type
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := m.DB.ExecContext(ctx, query,
		rec.EventUUID, rec.Timestamp, rec.ConnectorID, rec.DeviceID,
		rec.Category, rec.Type, rec.Subtype, rec.Payload, rec.RawPayload, rec.RawEventType,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicateEvent
		}
		return err
	}
	return nil
}

// ListRecentByOrg returns the org's most recent events joined with the
// device/area names the timeline needs, newest first.
func (m EventModel) ListRecentByOrg(ctx context.Context, orgID string, since time.Time, limit int) ([]event.TimelineEvent, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `
		SELECT e.event_uuid, e.ts, e.connector_id, e.device_external_id,
		       e.category, e.type, e.subtype, e.payload,
		       COALESCE(d.name, e.device_external_id),
		       ad.area_id, COALESCE(a.name, '')
		FROM events e
		JOIN connectors c ON c.id = e.connector_id
		LEFT JOIN devices d ON d.connector_id = e.connector_id AND d.external_id = e.device_external_id
		LEFT JOIN area_devices ad ON ad.device_id = d.id
		LEFT JOIN areas a ON a.id = ad.area_id
		WHERE c.organization_id = $1 AND e.ts >= $2
		ORDER BY e.ts DESC
		LIMIT $3`

	rows, err := m.DB.QueryContext(ctx, query, orgID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []event.TimelineEvent
	for rows.Next() {
		var te event.TimelineEvent
		var connectorID string
		var payload []byte
		var areaID sql.NullString

		err := rows.Scan(
			&te.EventID, &te.Timestamp, &connectorID, &te.DeviceID,
			&te.Category, &te.Type, &te.Subtype, &payload,
			&te.DeviceName, &areaID, &te.AreaName,
		)
		if err != nil {
			return nil, err
		}
		te.ConnectorID = connectorID
		if len(payload) > 0 {
			// Payload blob is ours; a decode failure means a schema bug,
			// not bad vendor data, so surface it.
			if err := json.Unmarshal(payload, &te.Payload); err != nil {
				return nil, err
			}
		}
		if areaID.Valid {
			id := areaID.String
			te.AreaID = &id
		}
		out = append(out, te)
	}
	return out, rows.Err()
}
