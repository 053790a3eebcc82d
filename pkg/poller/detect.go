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

package poller

import (
	"fmt"
	"strings"
	"time"

	"github.com/carverauto/firewatch/pkg/firewall"
	"github.com/carverauto/firewatch/pkg/models"
)

const hoursPerDay = 24

// deriveWANStatus reports up when any interface in the "wan" zone has an up
// link. Devices without a wan-zone interface report down.
func deriveWANStatus(interfaces []firewall.Interface) models.LinkState {
	for _, iface := range interfaces {
		if iface.Zone == "wan" && iface.Status == models.LinkUp {
			return models.LinkUp
		}
	}

	return models.LinkDown
}

// deriveVPNStatus reports up when any enabled VPN policy has an established
// tunnel.
func deriveVPNStatus(policies []firewall.VPNPolicy) models.LinkState {
	for _, policy := range policies {
		if policy.Enabled && policy.Status == models.LinkUp {
			return models.LinkUp
		}
	}

	return models.LinkDown
}

// summarizeInterfaces renders the reported link states for the health
// snapshot, one name:state pair per interface ("X1:up,X0:down").
func summarizeInterfaces(interfaces []firewall.Interface) string {
	if len(interfaces) == 0 {
		return ""
	}

	parts := make([]string, 0, len(interfaces))
	for _, iface := range interfaces {
		parts = append(parts, iface.Name+":"+string(iface.Status))
	}

	return strings.Join(parts, ",")
}

// counterAlerts diffs the block counters against the prior cycle. Only
// increases alert: the daily counters reset at the device's local midnight,
// so a decrease is expected, not an incident.
func counterAlerts(device *models.Device, previous, current *models.CounterSet) []*models.Alert {
	prev := previous.Counters()
	cur := current.Counters()

	var alerts []*models.Alert

	for i := range cur {
		if cur[i].Value <= prev[i].Value {
			continue
		}

		alerts = append(alerts, &models.Alert{
			TenantID: device.TenantID,
			DeviceID: device.ID,
			Type:     models.AlertTypeCounterIncrease,
			Severity: models.SeverityInfo,
			Source:   models.SourceAPI,
			Message: fmt.Sprintf("%s increased from %d to %d",
				cur[i].Name, prev[i].Value, cur[i].Value),
			Metadata: map[string]interface{}{
				"counter":  cur[i].Name,
				"previous": prev[i].Value,
				"current":  cur[i].Value,
				"delta":    cur[i].Value - prev[i].Value,
			},
		})
	}

	return alerts
}

// statusAlerts compares the normalized WAN and VPN states against the prior
// cycle and emits one alert per flip. Loss of WAN is critical, loss of VPN is
// high, recoveries are informational.
func statusAlerts(device *models.Device, previous, current *models.ObservedStatus) []*models.Alert {
	var alerts []*models.Alert

	if previous.WANStatus != current.WANStatus {
		severity := models.SeverityCritical
		message := "WAN connectivity lost"

		if current.WANStatus == models.LinkUp {
			severity = models.SeverityInfo
			message = "WAN connectivity restored"
		}

		alerts = append(alerts, &models.Alert{
			TenantID: device.TenantID,
			DeviceID: device.ID,
			Type:     models.AlertTypeWANStatusChange,
			Severity: severity,
			Source:   models.SourceAPI,
			Message:  message,
			Metadata: map[string]interface{}{
				"previous": string(previous.WANStatus),
				"current":  string(current.WANStatus),
			},
		})
	}

	if previous.VPNStatus != current.VPNStatus {
		severity := models.SeverityHigh
		message := "VPN tunnel down"

		if current.VPNStatus == models.LinkUp {
			severity = models.SeverityInfo
			message = "VPN tunnel restored"
		}

		alerts = append(alerts, &models.Alert{
			TenantID: device.TenantID,
			DeviceID: device.ID,
			Type:     models.AlertTypeVPNStatusChange,
			Severity: severity,
			Source:   models.SourceAPI,
			Message:  message,
			Metadata: map[string]interface{}{
				"previous": string(previous.VPNStatus),
				"current":  string(current.VPNStatus),
			},
		})
	}

	return alerts
}

// healthAlerts raises warnings when CPU or RAM exceed the configured
// thresholds. Dedup keeps repeats within the suppression window quiet unless
// the value moves materially.
func healthAlerts(device *models.Device, health *firewall.Health, cpuThreshold, ramThreshold float64) []*models.Alert {
	var alerts []*models.Alert

	if health.CPUPercent > cpuThreshold {
		alerts = append(alerts, &models.Alert{
			TenantID: device.TenantID,
			DeviceID: device.ID,
			Type:     models.AlertTypeHighCPU,
			Severity: models.SeverityWarning,
			Source:   models.SourceAPI,
			Message:  fmt.Sprintf("CPU utilization at %.1f%%", health.CPUPercent),
			Metadata: map[string]interface{}{
				"cpu_percent": health.CPUPercent,
			},
		})
	}

	if health.RAMPercent > ramThreshold {
		alerts = append(alerts, &models.Alert{
			TenantID: device.TenantID,
			DeviceID: device.ID,
			Type:     models.AlertTypeHighMemory,
			Severity: models.SeverityWarning,
			Source:   models.SourceAPI,
			Message:  fmt.Sprintf("Memory utilization at %.1f%%", health.RAMPercent),
			Metadata: map[string]interface{}{
				"ram_percent": health.RAMPercent,
			},
		})
	}

	return alerts
}

// classifyLicense derives the expiry state of one licensed feature. Features
// without a known expiry are treated as active.
func classifyLicense(license firewall.License, now time.Time, warningDays int) models.LicenseInfo {
	info := models.LicenseInfo{
		Feature:   license.Feature,
		Licensed:  license.Licensed,
		ExpiresAt: license.ExpiresAt,
		State:     models.LicenseActive,
	}

	if license.ExpiresAt == nil {
		return info
	}

	info.DaysRemaining = int(license.ExpiresAt.Sub(now).Hours() / hoursPerDay)

	switch {
	case license.ExpiresAt.Before(now):
		info.State = models.LicenseExpired
	case info.DaysRemaining < warningDays:
		info.State = models.LicenseExpiring
	}

	return info
}

// licenseAlert builds the alert for an expired or expiring license, or nil
// for an active one.
func licenseAlert(device *models.Device, info models.LicenseInfo) *models.Alert {
	switch info.State {
	case models.LicenseExpired:
		return &models.Alert{
			TenantID: device.TenantID,
			DeviceID: device.ID,
			Type:     models.AlertTypeLicenseExpired,
			Severity: models.SeverityCritical,
			Source:   models.SourceAPI,
			Message:  fmt.Sprintf("%s license has expired", info.Feature),
			Metadata: map[string]interface{}{
				"feature":        info.Feature,
				"days_remaining": info.DaysRemaining,
			},
		}
	case models.LicenseExpiring:
		return &models.Alert{
			TenantID: device.TenantID,
			DeviceID: device.ID,
			Type:     models.AlertTypeLicenseExpiring,
			Severity: models.SeverityWarning,
			Source:   models.SourceAPI,
			Message:  fmt.Sprintf("%s license expires in %d days", info.Feature, info.DaysRemaining),
			Metadata: map[string]interface{}{
				"feature":        info.Feature,
				"days_remaining": info.DaysRemaining,
			},
		}
	}

	return nil
}
