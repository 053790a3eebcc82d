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

const insertHealthSnapshotSQL = `
INSERT INTO health_snapshots (
	id,
	device_id,
	cpu_percent,
	ram_percent,
	uptime_seconds,
	wan_status,
	vpn_status,
	interface_status,
	ha_status,
	wifi_status,
	recorded_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

const insertLicenseRecordSQL = `
INSERT INTO license_records (
	id,
	device_id,
	licenses,
	warnings,
	recorded_at
) VALUES ($1,$2,$3,$4,$5)`

const upsertDevicePostureSQL = `
INSERT INTO device_posture (
	tenant_id,
	device_id,
	enabled_features,
	license_states,
	updated_at
) VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (tenant_id, device_id) DO UPDATE SET
	enabled_features = EXCLUDED.enabled_features,
	license_states = EXCLUDED.license_states,
	updated_at = EXCLUDED.updated_at`

// InsertHealthSnapshot appends a health snapshot row.
func (s *Store) InsertHealthSnapshot(ctx context.Context, snapshot *models.HealthSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}

	if snapshot.RecordedAt.IsZero() {
		snapshot.RecordedAt = time.Now().UTC()
	}

	if _, err := s.pool.Exec(ctx, insertHealthSnapshotSQL,
		snapshot.ID,
		snapshot.DeviceID,
		snapshot.CPUPercent,
		snapshot.RAMPercent,
		snapshot.UptimeSeconds,
		snapshot.WANStatus,
		snapshot.VPNStatus,
		snapshot.InterfaceStatus,
		snapshot.HAStatus,
		snapshot.WifiStatus,
		snapshot.RecordedAt,
	); err != nil {
		return fmt.Errorf("insert health snapshot for %s: %w", snapshot.DeviceID, err)
	}

	return nil
}

// InsertLicenseRecord appends a license record row.
func (s *Store) InsertLicenseRecord(ctx context.Context, record *models.LicenseRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}

	licenses, err := json.Marshal(record.Licenses)
	if err != nil {
		return fmt.Errorf("marshal licenses: %w", err)
	}

	warnings, err := json.Marshal(record.Warnings)
	if err != nil {
		return fmt.Errorf("marshal license warnings: %w", err)
	}

	if _, err := s.pool.Exec(ctx, insertLicenseRecordSQL,
		record.ID,
		record.DeviceID,
		licenses,
		warnings,
		record.RecordedAt,
	); err != nil {
		return fmt.Errorf("insert license record for %s: %w", record.DeviceID, err)
	}

	return nil
}

// UpsertDevicePosture replaces the device's security posture row.
func (s *Store) UpsertDevicePosture(ctx context.Context, posture *models.DevicePosture) error {
	if posture.UpdatedAt.IsZero() {
		posture.UpdatedAt = time.Now().UTC()
	}

	enabled, err := json.Marshal(posture.EnabledFeatures)
	if err != nil {
		return fmt.Errorf("marshal enabled features: %w", err)
	}

	states, err := json.Marshal(posture.LicenseStates)
	if err != nil {
		return fmt.Errorf("marshal license states: %w", err)
	}

	if _, err := s.pool.Exec(ctx, upsertDevicePostureSQL,
		posture.TenantID,
		posture.DeviceID,
		enabled,
		states,
		posture.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upsert posture for %s: %w", posture.DeviceID, err)
	}

	return nil
}
