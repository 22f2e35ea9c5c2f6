package data

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

type DeviceModel struct {
	DB DBTX
}

// GetEventContext resolves everything the pipeline needs to know about
// an inbound event in one read: owning connector (for the org), the
// internal device row, and its zone/location membership. The device
// side of the join is LEFT so an unknown device still yields the org.
func (m DeviceModel) GetEventContext(ctx context.Context, connectorID uuid.UUID, externalDeviceID string) (*EventContext, error) {
	query := `
		SELECT c.organization_id,
		       d.id, d.name, d.device_type, d.status, d.battery_percentage,
		       a.id, a.organization_id, a.location_id, a.name, a.armed_state, a.trigger_behavior,
		       COALESCE(l.name, '')
		FROM connectors c
		LEFT JOIN devices d ON d.connector_id = c.id AND d.external_id = $2
		LEFT JOIN area_devices ad ON ad.device_id = d.id
		LEFT JOIN areas a ON a.id = ad.area_id
		LEFT JOIN locations l ON l.id = a.location_id
		WHERE c.id = $1`

	var ec EventContext
	ec.ConnectorID = connectorID

	var devID, areaID, areaOrg, areaName, armedState, triggerBehavior sql.NullString
	var devName, devType, devStatus sql.NullString
	var devBattery sql.NullInt64
	var locationID sql.NullString

	err := m.DB.QueryRowContext(ctx, query, connectorID, externalDeviceID).Scan(
		&ec.OrganizationID,
		&devID, &devName, &devType, &devStatus, &devBattery,
		&areaID, &areaOrg, &locationID, &areaName, &armedState, &triggerBehavior,
		&ec.LocationName,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	if devID.Valid {
		d := &Device{
			ConnectorID: connectorID,
			ExternalID:  externalDeviceID,
			Name:        devName.String,
			DeviceType:  devType.String,
		}
		d.ID, _ = uuid.Parse(devID.String)
		if devStatus.Valid {
			s := devStatus.String
			d.Status = &s
		}
		if devBattery.Valid {
			b := int(devBattery.Int64)
			d.BatteryPercentage = &b
		}
		ec.Device = d
	}

	if areaID.Valid {
		a := &Area{
			OrganizationID:  areaOrg.String,
			Name:            areaName.String,
			ArmedState:      ArmedState(armedState.String),
			TriggerBehavior: triggerBehavior.String,
		}
		a.ID, _ = uuid.Parse(areaID.String)
		if locationID.Valid {
			lid, err := uuid.Parse(locationID.String)
			if err == nil {
				a.LocationID = &lid
			}
		}
		ec.Area = a
	}

	return &ec, nil
}

// UpdateState applies one combined status/battery update. Nil fields
// are left untouched; callers validate battery range before calling.
func (m DeviceModel) UpdateState(ctx context.Context, deviceID uuid.UUID, status *string, battery *int) error {
	query := `
		UPDATE devices
		SET status = COALESCE($1, status),
		    battery_percentage = COALESCE($2, battery_percentage),
		    updated_at = NOW()
		WHERE id = $3`

	var statusArg sql.NullString
	if status != nil {
		statusArg = sql.NullString{String: *status, Valid: true}
	}
	var batteryArg sql.NullInt64
	if battery != nil {
		batteryArg = sql.NullInt64{Int64: int64(*battery), Valid: true}
	}

	res, err := m.DB.ExecContext(ctx, query, statusArg, batteryArg, deviceID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// ListAreaCameras returns the camera-class devices assigned to an area,
// the candidates for a thumbnail fetch.
func (m DeviceModel) ListAreaCameras(ctx context.Context, areaID uuid.UUID) ([]*Device, error) {
	query := `
		SELECT d.id, d.connector_id, d.external_id, d.name, d.device_type, d.status, d.battery_percentage
		FROM devices d
		JOIN area_devices ad ON ad.device_id = d.id
		WHERE ad.area_id = $1 AND d.device_type = 'camera'
		ORDER BY d.name`

	rows, err := m.DB.QueryContext(ctx, query, areaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Device
	for rows.Next() {
		var d Device
		var status sql.NullString
		var battery sql.NullInt64
		if err := rows.Scan(&d.ID, &d.ConnectorID, &d.ExternalID, &d.Name, &d.DeviceType, &status, &battery); err != nil {
			return nil, err
		}
		if status.Valid {
			s := status.String
			d.Status = &s
		}
		if battery.Valid {
			b := int(battery.Int64)
			d.BatteryPercentage = &b
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}
