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

package firewall

import (
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/firewatch/pkg/models"
)

// The appliance API is not shape-stable across firmware generations. Every
// logical field is resolved through an ordered list of candidate key paths
// (dotted for nesting); the first path that resolves wins and missing fields
// degrade to zero values.

// fieldPaths maps a logical field to its candidate key paths.
type fieldPaths struct {
	Field string
	Paths []string
}

var counterPaths = []fieldPaths{
	{Field: "gav_blocks_today", Paths: []string{
		"gav_blocks_today", "gateway_av.blocks_today", "security_services.gateway_av.blocks", "stats.gav_blocks"}},
	{Field: "ips_blocks_today", Paths: []string{
		"ips_blocks_today", "ips.blocks_today", "security_services.ips.blocks", "stats.ips_blocks"}},
	{Field: "spyware_blocks_today", Paths: []string{
		"spyware_blocks_today", "anti_spyware.blocks_today", "security_services.anti_spyware.blocks", "stats.spyware_blocks"}},
	{Field: "botnet_blocks_today", Paths: []string{
		"botnet_blocks_today", "botnet.blocks_today", "security_services.botnet.blocks", "stats.botnet_blocks"}},
	{Field: "geoip_blocks_today", Paths: []string{
		"geoip_blocks_today", "geo_ip.blocks_today", "security_services.geo_ip.blocks", "stats.geoip_blocks"}},
	{Field: "cfs_blocks_today", Paths: []string{
		"cfs_blocks_today", "content_filter.blocks_today", "security_services.content_filter.blocks", "stats.cfs_blocks"}},
	{Field: "appctrl_blocks_today", Paths: []string{
		"appctrl_blocks_today", "app_control.blocks_today", "security_services.app_control.blocks", "stats.appctrl_blocks"}},
}

var healthFloatPaths = map[string][]string{
	"cpu": {"cpu", "cpu_usage", "cpu_percent", "system.cpu", "status.cpu_usage"},
	"ram": {"ram", "memory_usage", "ram_percent", "system.memory", "status.memory_usage"},
}

var healthIntPaths = map[string][]string{
	"uptime": {"uptime", "uptime_seconds", "system.uptime", "status.uptime"},
}

var healthStringPaths = map[string][]string{
	"ha_status":   {"ha_status", "ha.status", "high_availability.status"},
	"wifi_status": {"wifi_status", "wifi.status", "wireless.status"},
}

// lookupPath walks a dotted path through nested JSON objects.
func lookupPath(doc map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = doc

	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}

		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// extractInt resolves the first matching path to an int64, defaulting to 0.
// The second return reports whether any path resolved at all, which is how
// feature enablement is inferred.
func extractInt(doc map[string]interface{}, paths ...string) (int64, bool) {
	for _, path := range paths {
		raw, ok := lookupPath(doc, path)
		if !ok {
			continue
		}

		return coerceInt(raw), true
	}

	return 0, false
}

// extractFloat resolves the first matching path to a float64, defaulting to 0.
func extractFloat(doc map[string]interface{}, paths ...string) float64 {
	for _, path := range paths {
		raw, ok := lookupPath(doc, path)
		if !ok {
			continue
		}

		return coerceFloat(raw)
	}

	return 0
}

// extractString resolves the first matching path to a string, defaulting to "".
func extractString(doc map[string]interface{}, paths ...string) string {
	for _, path := range paths {
		raw, ok := lookupPath(doc, path)
		if !ok {
			continue
		}

		if s, ok := raw.(string); ok {
			return s
		}
	}

	return ""
}

func coerceInt(raw interface{}) int64 {
	switch v := raw.(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0
		}

		return n
	}

	return 0
}

func coerceFloat(raw interface{}) float64 {
	switch v := raw.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(v, "%")), 64)
		if err != nil {
			return 0
		}

		return f
	}

	return 0
}

var downSubstrings = []string{"down", "disconnect", "offline", "inactive"}

var upSubstrings = []string{"up", "active", "online", "connected"}

// NormalizeLinkState folds the many status strings firmware emits into a
// two-state up/down. Unknown strings are treated as down.
func NormalizeLinkState(raw string) models.LinkState {
	s := strings.ToLower(strings.TrimSpace(raw))

	for _, sub := range downSubstrings {
		if strings.Contains(s, sub) {
			return models.LinkDown
		}
	}

	for _, sub := range upSubstrings {
		if strings.Contains(s, sub) {
			return models.LinkUp
		}
	}

	return models.LinkDown
}

// parseExpiry accepts the expiry formats seen across firmware versions.
func parseExpiry(raw interface{}) *time.Time {
	switch v := raw.(type) {
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02", "01/02/2006", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return &t
			}
		}
	case float64:
		if v > 0 {
			t := time.Unix(int64(v), 0).UTC()
			return &t
		}
	}

	return nil
}
