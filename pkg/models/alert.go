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

// AlertSeverity ranks an alert.
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityHigh     AlertSeverity = "high"
	SeverityMedium   AlertSeverity = "medium"
	SeverityLow      AlertSeverity = "low"
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
)

// AlertSource identifies the producer path of an alert.
type AlertSource string

const (
	SourceAPI    AlertSource = "api"
	SourceEmail  AlertSource = "email"
	SourceManual AlertSource = "manual"
)

// Alert types raised by the polling engine.
const (
	AlertTypeCounterIncrease = "counter_increase"
	AlertTypeWANStatusChange = "wan_status_change"
	AlertTypeVPNStatusChange = "vpn_status_change"
	AlertTypeHighCPU         = "high_cpu"
	AlertTypeHighMemory      = "high_memory"
	AlertTypeLicenseExpiring = "license_expiring"
	AlertTypeLicenseExpired  = "license_expired"
)

// Alert is a single alert record. DeviceID is empty when the producer could
// not match the alert to a registered device. After creation only the
// acknowledgement fields change.
type Alert struct {
	ID             string                 `json:"id"`
	TenantID       string                 `json:"tenant_id"`
	DeviceID       string                 `json:"device_id,omitempty"`
	Type           string                 `json:"type"`
	Severity       AlertSeverity          `json:"severity"`
	Message        string                 `json:"message"`
	Source         AlertSource            `json:"source"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Acknowledged   bool                   `json:"acknowledged"`
	AcknowledgedBy string                 `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time             `json:"acknowledged_at,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}
