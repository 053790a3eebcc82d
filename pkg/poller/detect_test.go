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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/firewatch/pkg/firewall"
	"github.com/carverauto/firewatch/pkg/models"
)

func TestDeriveWANStatus(t *testing.T) {
	tests := []struct {
		name       string
		interfaces []firewall.Interface
		want       models.LinkState
	}{
		{
			name: "wan interface up",
			interfaces: []firewall.Interface{
				{Name: "X1", Zone: "wan", Status: models.LinkUp},
			},
			want: models.LinkUp,
		},
		{
			name: "wan down lan up",
			interfaces: []firewall.Interface{
				{Name: "X1", Zone: "wan", Status: models.LinkDown},
				{Name: "X0", Zone: "lan", Status: models.LinkUp},
			},
			want: models.LinkDown,
		},
		{
			name: "second wan link carries traffic",
			interfaces: []firewall.Interface{
				{Name: "X1", Zone: "wan", Status: models.LinkDown},
				{Name: "X2", Zone: "wan", Status: models.LinkUp},
			},
			want: models.LinkUp,
		},
		{
			name:       "no interfaces",
			interfaces: nil,
			want:       models.LinkDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveWANStatus(tt.interfaces))
		})
	}
}

func TestDeriveVPNStatus(t *testing.T) {
	tests := []struct {
		name     string
		policies []firewall.VPNPolicy
		want     models.LinkState
	}{
		{
			name: "enabled tunnel up",
			policies: []firewall.VPNPolicy{
				{Name: "hq", Enabled: true, Status: models.LinkUp},
			},
			want: models.LinkUp,
		},
		{
			name: "disabled tunnel ignored",
			policies: []firewall.VPNPolicy{
				{Name: "hq", Enabled: false, Status: models.LinkUp},
			},
			want: models.LinkDown,
		},
		{
			name: "enabled tunnel down",
			policies: []firewall.VPNPolicy{
				{Name: "hq", Enabled: true, Status: models.LinkDown},
			},
			want: models.LinkDown,
		},
		{
			name:     "no policies",
			policies: nil,
			want:     models.LinkDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveVPNStatus(tt.policies))
		})
	}
}

func TestSummarizeInterfaces(t *testing.T) {
	tests := []struct {
		name       string
		interfaces []firewall.Interface
		want       string
	}{
		{
			name: "mixed link states",
			interfaces: []firewall.Interface{
				{Name: "X1", Zone: "wan", Status: models.LinkUp},
				{Name: "X0", Zone: "lan", Status: models.LinkDown},
			},
			want: "X1:up,X0:down",
		},
		{
			name: "single interface",
			interfaces: []firewall.Interface{
				{Name: "X1", Zone: "wan", Status: models.LinkUp},
			},
			want: "X1:up",
		},
		{
			name:       "no interfaces reported",
			interfaces: nil,
			want:       "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, summarizeInterfaces(tt.interfaces))
		})
	}
}

func TestCounterAlerts_IncreaseOnly(t *testing.T) {
	device := &models.Device{ID: "fw-01", TenantID: "tenant-1"}

	previous := &models.CounterSet{IPSBlocks: 10, GatewayAVBlocks: 7}
	current := &models.CounterSet{IPSBlocks: 15, GatewayAVBlocks: 2}

	alerts := counterAlerts(device, previous, current)
	require.Len(t, alerts, 1)

	alert := alerts[0]
	assert.Equal(t, models.AlertTypeCounterIncrease, alert.Type)
	assert.Equal(t, models.SeverityInfo, alert.Severity)
	assert.Equal(t, "fw-01", alert.DeviceID)
	assert.Equal(t, "ips_blocks_today", alert.Metadata["counter"])
	assert.EqualValues(t, 10, alert.Metadata["previous"])
	assert.EqualValues(t, 15, alert.Metadata["current"])
	assert.EqualValues(t, 5, alert.Metadata["delta"])
}

func TestCounterAlerts_NoChangeNoAlerts(t *testing.T) {
	device := &models.Device{ID: "fw-01"}
	counters := &models.CounterSet{IPSBlocks: 10}

	assert.Empty(t, counterAlerts(device, counters, counters))
}

func TestStatusAlerts(t *testing.T) {
	device := &models.Device{ID: "fw-01", TenantID: "tenant-1"}

	t.Run("wan loss is critical", func(t *testing.T) {
		previous := &models.ObservedStatus{WANStatus: models.LinkUp, VPNStatus: models.LinkUp}
		current := &models.ObservedStatus{WANStatus: models.LinkDown, VPNStatus: models.LinkUp}

		alerts := statusAlerts(device, previous, current)
		require.Len(t, alerts, 1)
		assert.Equal(t, models.AlertTypeWANStatusChange, alerts[0].Type)
		assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
		assert.Equal(t, "up", alerts[0].Metadata["previous"])
		assert.Equal(t, "down", alerts[0].Metadata["current"])
	})

	t.Run("wan recovery is info", func(t *testing.T) {
		previous := &models.ObservedStatus{WANStatus: models.LinkDown, VPNStatus: models.LinkUp}
		current := &models.ObservedStatus{WANStatus: models.LinkUp, VPNStatus: models.LinkUp}

		alerts := statusAlerts(device, previous, current)
		require.Len(t, alerts, 1)
		assert.Equal(t, models.SeverityInfo, alerts[0].Severity)
	})

	t.Run("vpn loss is high", func(t *testing.T) {
		previous := &models.ObservedStatus{WANStatus: models.LinkUp, VPNStatus: models.LinkUp}
		current := &models.ObservedStatus{WANStatus: models.LinkUp, VPNStatus: models.LinkDown}

		alerts := statusAlerts(device, previous, current)
		require.Len(t, alerts, 1)
		assert.Equal(t, models.AlertTypeVPNStatusChange, alerts[0].Type)
		assert.Equal(t, models.SeverityHigh, alerts[0].Severity)
	})

	t.Run("steady state emits nothing", func(t *testing.T) {
		status := &models.ObservedStatus{WANStatus: models.LinkUp, VPNStatus: models.LinkUp}
		assert.Empty(t, statusAlerts(device, status, status))
	})
}

func TestHealthAlerts(t *testing.T) {
	device := &models.Device{ID: "fw-01"}

	t.Run("cpu over threshold", func(t *testing.T) {
		alerts := healthAlerts(device, &firewall.Health{CPUPercent: 85, RAMPercent: 40}, 80, 90)
		require.Len(t, alerts, 1)
		assert.Equal(t, models.AlertTypeHighCPU, alerts[0].Type)
		assert.Equal(t, models.SeverityWarning, alerts[0].Severity)
		assert.InDelta(t, 85.0, alerts[0].Metadata["cpu_percent"], 0.001)
	})

	t.Run("ram over threshold", func(t *testing.T) {
		alerts := healthAlerts(device, &firewall.Health{CPUPercent: 20, RAMPercent: 95}, 80, 90)
		require.Len(t, alerts, 1)
		assert.Equal(t, models.AlertTypeHighMemory, alerts[0].Type)
	})

	t.Run("both over threshold", func(t *testing.T) {
		alerts := healthAlerts(device, &firewall.Health{CPUPercent: 99, RAMPercent: 99}, 80, 90)
		assert.Len(t, alerts, 2)
	})

	t.Run("healthy device", func(t *testing.T) {
		alerts := healthAlerts(device, &firewall.Health{CPUPercent: 50, RAMPercent: 60}, 80, 90)
		assert.Empty(t, alerts)
	})
}

func TestClassifyLicense(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	expiry := func(d time.Duration) *time.Time {
		t := now.Add(d)
		return &t
	}

	tests := []struct {
		name     string
		license  firewall.License
		want     models.LicenseState
		wantDays int
	}{
		{
			name:     "expires in ten days",
			license:  firewall.License{Feature: "ips", Licensed: true, ExpiresAt: expiry(10 * 24 * time.Hour)},
			want:     models.LicenseExpiring,
			wantDays: 10,
		},
		{
			name:     "expired five days ago",
			license:  firewall.License{Feature: "ips", Licensed: true, ExpiresAt: expiry(-5 * 24 * time.Hour)},
			want:     models.LicenseExpired,
			wantDays: -5,
		},
		{
			name:     "expires in sixty days",
			license:  firewall.License{Feature: "ips", Licensed: true, ExpiresAt: expiry(60 * 24 * time.Hour)},
			want:     models.LicenseActive,
			wantDays: 60,
		},
		{
			name:    "no known expiry",
			license: firewall.License{Feature: "ips", Licensed: true},
			want:    models.LicenseActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := classifyLicense(tt.license, now, 30)
			assert.Equal(t, tt.want, info.State)
			assert.Equal(t, tt.wantDays, info.DaysRemaining)
		})
	}
}

func TestLicenseAlert(t *testing.T) {
	device := &models.Device{ID: "fw-01", TenantID: "tenant-1"}

	expired := licenseAlert(device, models.LicenseInfo{Feature: "ips", State: models.LicenseExpired, DaysRemaining: -5})
	require.NotNil(t, expired)
	assert.Equal(t, models.AlertTypeLicenseExpired, expired.Type)
	assert.Equal(t, models.SeverityCritical, expired.Severity)

	expiring := licenseAlert(device, models.LicenseInfo{Feature: "ips", State: models.LicenseExpiring, DaysRemaining: 10})
	require.NotNil(t, expiring)
	assert.Equal(t, models.AlertTypeLicenseExpiring, expiring.Type)
	assert.Equal(t, models.SeverityWarning, expiring.Severity)

	assert.Nil(t, licenseAlert(device, models.LicenseInfo{Feature: "ips", State: models.LicenseActive}))
}
