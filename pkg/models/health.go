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

package models

import (
	"time"
)

// HealthSnapshot is an append-only record of a device's health at a point in
// time, persisted on a fixed cadence rather than every poll.
type HealthSnapshot struct {
	ID              string    `json:"id"`
	DeviceID        string    `json:"device_id"`
	CPUPercent      float64   `json:"cpu_percent"`
	RAMPercent      float64   `json:"ram_percent"`
	UptimeSeconds   int64     `json:"uptime_seconds"`
	WANStatus       LinkState `json:"wan_status"`
	VPNStatus       LinkState `json:"vpn_status"`
	InterfaceStatus string    `json:"interface_status,omitempty"`
	HAStatus        string    `json:"ha_status,omitempty"`
	WifiStatus      string    `json:"wifi_status,omitempty"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// LicenseState classifies a licensed feature by time to expiry.
type LicenseState string

const (
	LicenseActive   LicenseState = "active"
	LicenseExpiring LicenseState = "expiring"
	LicenseExpired  LicenseState = "expired"
)

// LicenseInfo describes one licensed security service on a device.
type LicenseInfo struct {
	Feature       string       `json:"feature"`
	Licensed      bool         `json:"licensed"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
	DaysRemaining int          `json:"days_remaining"`
	State         LicenseState `json:"state"`
}

// LicenseRecord is an append-only row written once per poll cycle that
// returned license data.
type LicenseRecord struct {
	ID         string        `json:"id"`
	DeviceID   string        `json:"device_id"`
	Licenses   []LicenseInfo `json:"licenses"`
	Warnings   []string      `json:"warnings,omitempty"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// DevicePosture records which security services a device has enabled, inferred
// from the presence of their counters rather than counter values.
type DevicePosture struct {
	TenantID        string    `json:"tenant_id"`
	DeviceID        string    `json:"device_id"`
	EnabledFeatures []string  `json:"enabled_features"`
	LicenseStates   []string  `json:"license_states,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}
