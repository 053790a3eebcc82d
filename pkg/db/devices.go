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
	"fmt"

	"github.com/carverauto/firewatch/pkg/models"
)

const getActiveDevicesSQL = `
SELECT
	id,
	tenant_id,
	serial_number,
	management_address,
	username,
	encrypted_password,
	status,
	last_seen_at
FROM devices
WHERE status = 'active'
ORDER BY id`

const updateDeviceLastSeenSQL = `
UPDATE devices SET last_seen_at = now() WHERE id = $1`

const updateDeviceStatusSQL = `
UPDATE devices SET status = $2 WHERE id = $1`

// GetActiveDevices returns the roster of devices to poll.
func (s *Store) GetActiveDevices(ctx context.Context) ([]models.Device, error) {
	rows, err := s.pool.Query(ctx, getActiveDevicesSQL)
	if err != nil {
		return nil, fmt.Errorf("query active devices: %w", err)
	}
	defer rows.Close()

	var devices []models.Device

	for rows.Next() {
		var d models.Device

		if err := rows.Scan(
			&d.ID,
			&d.TenantID,
			&d.SerialNumber,
			&d.ManagementAddress,
			&d.Username,
			&d.EncryptedPassword,
			&d.Status,
			&d.LastSeenAt,
		); err != nil {
			return nil, fmt.Errorf("scan device row: %w", err)
		}

		devices = append(devices, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate device rows: %w", err)
	}

	return devices, nil
}

// UpdateDeviceLastSeen stamps a successful poll.
func (s *Store) UpdateDeviceLastSeen(ctx context.Context, deviceID string) error {
	if _, err := s.pool.Exec(ctx, updateDeviceLastSeenSQL, deviceID); err != nil {
		return fmt.Errorf("update last_seen for %s: %w", deviceID, err)
	}

	return nil
}

// UpdateDeviceStatus transitions a device's status.
func (s *Store) UpdateDeviceStatus(ctx context.Context, deviceID string, status models.DeviceStatus) error {
	if _, err := s.pool.Exec(ctx, updateDeviceStatusSQL, deviceID, status); err != nil {
		return fmt.Errorf("update status for %s: %w", deviceID, err)
	}

	return nil
}
