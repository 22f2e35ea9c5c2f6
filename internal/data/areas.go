package data

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

type AreaModel struct {
	DB DBTX
}

func (m AreaModel) GetByID(ctx context.Context, id uuid.UUID) (*Area, error) {
	query := `
		SELECT id, organization_id, location_id, name, armed_state, trigger_behavior
		FROM areas
		WHERE id = $1`

	var a Area
	var locationID sql.NullString
	err := m.DB.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.OrganizationID, &locationID, &a.Name, &a.ArmedState, &a.TriggerBehavior,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	if locationID.Valid {
		lid, err := uuid.Parse(locationID.String)
		if err == nil {
			a.LocationID = &lid
		}
	}
	return &a, nil
}

func (m AreaModel) UpdateArmedState(ctx context.Context, id uuid.UUID, state ArmedState) error {
	query := `
		UPDATE areas
		SET armed_state = $1, updated_at = NOW()
		WHERE id = $2`

	res, err := m.DB.ExecContext(ctx, query, state, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRecordNotFound
	}
	return nil
}
