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
	"time"

	"github.com/carverauto/firewatch/pkg/models"
	"github.com/carverauto/firewatch/pkg/ratelimit"
)

const (
	defaultPollInterval     = 30 * time.Second
	defaultSnapshotInterval = 4 * time.Hour
	defaultRequestTimeout   = 30 * time.Second
	defaultMaxConcurrency   = 16

	defaultCPUAlertPercent = 80.0
	defaultRAMAlertPercent = 90.0

	defaultLicenseWarningDays = 30

	defaultPollWindow      = time.Minute
	defaultPollMaxRequests = 10
)

// Config tunes the polling engine.
type Config struct {
	// PollInterval is the cycle cadence. Defaults to 30s.
	PollInterval models.Duration `json:"poll_interval,omitempty"`

	// SnapshotInterval is how often a full health snapshot is persisted per
	// device. Defaults to 4h.
	SnapshotInterval models.Duration `json:"snapshot_interval,omitempty"`

	// RequestTimeout bounds each device API request. Defaults to 30s.
	RequestTimeout models.Duration `json:"request_timeout,omitempty"`

	// MaxConcurrency caps how many devices are polled at once. Defaults
	// to 16.
	MaxConcurrency int64 `json:"max_concurrency,omitempty"`

	// CPUAlertPercent and RAMAlertPercent are the health-alert thresholds.
	CPUAlertPercent float64 `json:"cpu_alert_percent,omitempty"`
	RAMAlertPercent float64 `json:"ram_alert_percent,omitempty"`

	// LicenseWarningDays is the expiring-license alert horizon.
	LicenseWarningDays int `json:"license_warning_days,omitempty"`

	// PollWindow and PollMaxRequests parameterize the per-device poll
	// throttle protecting the appliance API.
	PollWindow      models.Duration `json:"poll_window,omitempty"`
	PollMaxRequests int64           `json:"poll_max_requests,omitempty"`
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = models.Duration(defaultPollInterval)
	}

	if c.SnapshotInterval <= 0 {
		c.SnapshotInterval = models.Duration(defaultSnapshotInterval)
	}

	if c.RequestTimeout <= 0 {
		c.RequestTimeout = models.Duration(defaultRequestTimeout)
	}

	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = defaultMaxConcurrency
	}

	if c.CPUAlertPercent <= 0 {
		c.CPUAlertPercent = defaultCPUAlertPercent
	}

	if c.RAMAlertPercent <= 0 {
		c.RAMAlertPercent = defaultRAMAlertPercent
	}

	if c.LicenseWarningDays <= 0 {
		c.LicenseWarningDays = defaultLicenseWarningDays
	}

	if c.PollWindow <= 0 {
		c.PollWindow = models.Duration(defaultPollWindow)
	}

	if c.PollMaxRequests <= 0 {
		c.PollMaxRequests = defaultPollMaxRequests
	}
}

// pollPolicy is the rate-limit rule applied per device before each poll.
func (c *Config) pollPolicy() ratelimit.Policy {
	return ratelimit.Policy{
		Name:        "device_poll",
		Window:      time.Duration(c.PollWindow),
		MaxRequests: c.PollMaxRequests,
	}
}
