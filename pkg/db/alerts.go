/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/firewatch/pkg/models"
)

const insertAlertSQL = `
INSERT INTO alerts (
	id,
	tenant_id,
	device_id,
	type,
	severity,
	message,
	source,
	metadata,
	acknowledged,
	created_at
) VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8,false,$9)`

const acknowledgeAlertSQL = `
UPDATE alerts
SET acknowledged = true, acknowledged_by = $2, acknowledged_at = now()
WHERE id = $1 AND NOT acknowledged`

const listRecentAlertsSQL = `
SELECT
	id,
	tenant_id,
	COALESCE(device_id, ''),
	type,
	severity,
	message,
	source,
	metadata,
	acknowledged,
	created_at
FROM alerts
WHERE tenant_id = $1
ORDER BY created_at DESC
LIMIT $2`

// InsertAlert persists a new alert. Missing IDs and timestamps are filled in.
func (s *Store) InsertAlert(ctx context.Context, alert *models.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}

	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	metadata, err := json.Marshal(alert.Metadata)
	if err != nil {
		return fmt.Errorf("marshal alert metadata: %w", err)
	}

	if _, err := s.pool.Exec(ctx, insertAlertSQL,
		alert.ID,
		alert.TenantID,
		alert.DeviceID,
		alert.Type,
		alert.Severity,
		alert.Message,
		alert.Source,
		metadata,
		alert.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}

	return nil
}

// AcknowledgeAlert marks an alert acknowledged; already-acknowledged alerts
// are left untouched.
func (s *Store) AcknowledgeAlert(ctx context.Context, alertID, acknowledgedBy string) error {
	if _, err := s.pool.Exec(ctx, acknowledgeAlertSQL, alertID, acknowledgedBy); err != nil {
		return fmt.Errorf("acknowledge alert %s: %w", alertID, err)
	}

	return nil
}

// ListRecentAlerts returns a tenant's newest alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, tenantID string, limit int) ([]models.Alert, error) {
	rows, err := s.pool.Query(ctx, listRecentAlertsSQL, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert

	for rows.Next() {
		var (
			a        models.Alert
			metadata []byte
		)

		if err := rows.Scan(
			&a.ID,
			&a.TenantID,
			&a.DeviceID,
			&a.Type,
			&a.Severity,
			&a.Message,
			&a.Source,
			&metadata,
			&a.Acknowledged,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}

		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &a.Metadata)
		}

		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rows: %w", err)
	}

	return alerts, nil
}
