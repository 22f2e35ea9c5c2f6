package data

import (
	"context"
)

type AutomationModel struct {
	DB DBTX
}

// ListEnabledByOrg returns the org's enabled automations with their raw
// trigger configuration. The thumbnail gate statically analyzes these;
// it never executes them.
func (m AutomationModel) ListEnabledByOrg(ctx context.Context, orgID string) ([]*Automation, error) {
	query := `
		SELECT id, organization_id, name, enabled, config
		FROM automations
		WHERE organization_id = $1 AND enabled = TRUE
		ORDER BY name`

	rows, err := m.DB.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Automation
	for rows.Next() {
		var a Automation
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.Name, &a.Enabled, &a.Config); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
