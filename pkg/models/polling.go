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

// LinkState is a normalized two-state link status.
type LinkState string

const (
	LinkUp   LinkState = "up"
	LinkDown LinkState = "down"
)

// CounterSet holds the per-day block counters exposed by the appliance's
// security services. The counters are monotonically increasing during a day
// and reset at the device's local midnight.
type CounterSet struct {
	GatewayAVBlocks     int64 `json:"gav_blocks_today"`
	IPSBlocks           int64 `json:"ips_blocks_today"`
	AntiSpywareBlocks   int64 `json:"spyware_blocks_today"`
	BotnetBlocks        int64 `json:"botnet_blocks_today"`
	GeoIPBlocks         int64 `json:"geoip_blocks_today"`
	ContentFilterBlocks int64 `json:"cfs_blocks_today"`
	AppControlBlocks    int64 `json:"appctrl_blocks_today"`
}

// Counters returns the set as an ordered name/value list for diffing.
func (c *CounterSet) Counters() []Counter {
	return []Counter{
		{Name: "gav_blocks_today", Value: c.GatewayAVBlocks},
		{Name: "ips_blocks_today", Value: c.IPSBlocks},
		{Name: "spyware_blocks_today", Value: c.AntiSpywareBlocks},
		{Name: "botnet_blocks_today", Value: c.BotnetBlocks},
		{Name: "geoip_blocks_today", Value: c.GeoIPBlocks},
		{Name: "cfs_blocks_today", Value: c.ContentFilterBlocks},
		{Name: "appctrl_blocks_today", Value: c.AppControlBlocks},
	}
}

// Counter is a single named block counter.
type Counter struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// ObservedStatus captures the device-level signals compared between polls.
type ObservedStatus struct {
	WANStatus  LinkState `json:"wan_status"`
	VPNStatus  LinkState `json:"vpn_status"`
	CPUPercent float64   `json:"cpu_percent"`
	RAMPercent float64   `json:"ram_percent"`
}

// PollingState is the last successfully observed state for a device. Exactly
// one state exists per device id; it is replaced wholesale at the end of each
// successful poll, never updated field by field.
type PollingState struct {
	DeviceID        string         `json:"device_id"`
	PolledAt        time.Time      `json:"polled_at"`
	Counters        CounterSet     `json:"counters"`
	Status          ObservedStatus `json:"status"`
	EnabledFeatures []string       `json:"enabled_features,omitempty"`
	LastSnapshotAt  *time.Time     `json:"last_snapshot_at,omitempty"`
}

// DailyCounterSnapshot pins the last counter values seen during a UTC day so
// the rollup keeps end-of-day values even though the device resets its own
// counters at local midnight.
type DailyCounterSnapshot struct {
	DeviceID   string     `json:"device_id"`
	Day        string     `json:"day"` // YYYY-MM-DD, UTC
	Counters   CounterSet `json:"counters"`
	RecordedAt time.Time  `json:"recorded_at"`
}
