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
	"time"

	"github.com/carverauto/firewatch/pkg/models"
)

// Statistics carries the security-service counters plus which counters the
// firmware actually reported. Presence, not value, signals that a service is
// enabled on the device.
type Statistics struct {
	Counters        models.CounterSet
	EnabledFeatures []string
}

// Health is the system health endpoint result.
type Health struct {
	CPUPercent    float64
	RAMPercent    float64
	UptimeSeconds int64
	HAStatus      string
	WifiStatus    string
}

// Interface is one network interface as reported by the device.
type Interface struct {
	Name   string
	Zone   string
	Status models.LinkState
}

// VPNPolicy is one site-to-site VPN policy and its tunnel state.
type VPNPolicy struct {
	Name    string
	Enabled bool
	Status  models.LinkState
}

// License describes one licensed feature.
type License struct {
	Feature   string
	Licensed  bool
	ExpiresAt *time.Time
}

// Config configures a per-device protocol client.
type Config struct {
	// BaseURL is the device management address, scheme included.
	BaseURL  string
	Username string
	Password string
	// RequestTimeout bounds each HTTP request. Defaults to 30s.
	RequestTimeout time.Duration
	// MaxRetries caps the retry envelope. Defaults to 4.
	MaxRetries int
}
