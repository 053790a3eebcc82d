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

// Package db persists devices, alerts and monitoring records in Postgres.
package db

import (
	"context"

	"github.com/carverauto/firewatch/pkg/models"
)

// DeviceRegistry exposes the device roster consumed by the polling engine.
type DeviceRegistry interface {
	// GetActiveDevices returns all devices with status 'active'.
	GetActiveDevices(ctx context.Context) ([]models.Device, error)

	// UpdateDeviceLastSeen stamps the device's last successful contact.
	UpdateDeviceLastSeen(ctx context.Context, deviceID string) error

	// UpdateDeviceStatus transitions a device's operational status.
	UpdateDeviceStatus(ctx context.Context, deviceID string, status models.DeviceStatus) error
}

// AlertStore persists alerts produced by the pipeline.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert *models.Alert) error
	AcknowledgeAlert(ctx context.Context, alertID, acknowledgedBy string) error
	ListRecentAlerts(ctx context.Context, tenantID string, limit int) ([]models.Alert, error)
}

// RecordStore persists append-only monitoring records.
type RecordStore interface {
	InsertHealthSnapshot(ctx context.Context, snapshot *models.HealthSnapshot) error
	InsertLicenseRecord(ctx context.Context, record *models.LicenseRecord) error
	UpsertDevicePosture(ctx context.Context, posture *models.DevicePosture) error
}

// Service is the full persistence surface.
type Service interface {
	DeviceRegistry
	AlertStore
	RecordStore

	Close()
}
