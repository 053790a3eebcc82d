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

// Package poller orchestrates the polling cycle: roster load, concurrent
// device polls, change detection, alerting and state persistence.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/carverauto/firewatch/pkg/crypto/secrets"
	"github.com/carverauto/firewatch/pkg/db"
	"github.com/carverauto/firewatch/pkg/devicestate"
	"github.com/carverauto/firewatch/pkg/firewall"
	"github.com/carverauto/firewatch/pkg/logger"
	"github.com/carverauto/firewatch/pkg/metrics"
	"github.com/carverauto/firewatch/pkg/models"
	"github.com/carverauto/firewatch/pkg/ratelimit"
	"github.com/carverauto/firewatch/pkg/scheduler"
)

// DeviceClient is the protocol-client surface the engine consumes per device.
type DeviceClient interface {
	GetStatistics(ctx context.Context) (*firewall.Statistics, error)
	GetHealth(ctx context.Context) (*firewall.Health, error)
	GetInterfaces(ctx context.Context) ([]firewall.Interface, error)
	GetVPNPolicies(ctx context.Context) ([]firewall.VPNPolicy, error)
	GetLicenses(ctx context.Context) ([]firewall.License, error)
}

// ClientFactory builds a DeviceClient for one device.
type ClientFactory func(cfg firewall.Config, log logger.Logger) DeviceClient

// AlertCreator is the alert-pipeline surface the engine emits through. It
// reports whether the alert survived suppression.
type AlertCreator interface {
	Create(ctx context.Context, alert *models.Alert) (bool, error)
}

// Engine drives the polling cycle. It implements lifecycle.Service.
type Engine struct {
	config    Config
	registry  db.Service
	state     *devicestate.Store
	alerts    AlertCreator
	decryptor secrets.Decryptor
	limiter   *ratelimit.Limiter
	scheduler *scheduler.Scheduler
	metrics   *metrics.Recorder
	newClient ClientFactory
	logger    logger.Logger

	// now is a seam for tests.
	now func() time.Time

	mu     sync.Mutex
	roster []models.Device

	// cycleMu serializes cycles started outside the scheduler (the initial
	// cycle, explicit reloads) against scheduled ones.
	cycleMu       sync.Mutex
	stopped       atomic.Bool
	reportedSkips int64
	devicePolicy  ratelimit.Policy
}

// NewEngine wires the polling engine. The limiter and recorder may be nil;
// a nil recorder keeps metrics on a private registry.
func NewEngine(
	cfg Config,
	database db.Service,
	state *devicestate.Store,
	alertCreator AlertCreator,
	decryptor secrets.Decryptor,
	limiter *ratelimit.Limiter,
	recorder *metrics.Recorder,
	log logger.Logger,
) *Engine {
	cfg.applyDefaults()

	if recorder == nil {
		recorder = metrics.NewNopRecorder()
	}

	return &Engine{
		config:    cfg,
		registry:  database,
		state:     state,
		alerts:    alertCreator,
		decryptor: decryptor,
		limiter:   limiter,
		scheduler: scheduler.New(log),
		metrics:   recorder,
		newClient: func(c firewall.Config, l logger.Logger) DeviceClient {
			return firewall.NewClient(c, l)
		},
		logger:       log,
		now:          time.Now,
		devicePolicy: cfg.pollPolicy(),
	}
}

// Start loads the initial roster and begins the polling schedule. Failure to
// load the roster is fatal; everything after that is absorbed per cycle.
func (e *Engine) Start(ctx context.Context) error {
	devices, err := e.registry.GetActiveDevices(ctx)
	if err != nil {
		return fmt.Errorf("load initial device roster: %w", err)
	}

	e.setRoster(devices)

	interval := time.Duration(e.config.PollInterval)

	if err := e.scheduler.Start(scheduler.FromInterval(interval), e.runCycle); err != nil {
		return err
	}

	e.logger.Info().
		Int("devices", len(devices)).
		Dur("interval", interval).
		Msg("Polling engine started")

	// First cycle runs immediately rather than waiting a full interval.
	go e.runCycle(ctx)

	return nil
}

// Stop prevents new cycles and waits for the in-flight one to finish.
func (e *Engine) Stop(ctx context.Context) error {
	e.stopped.Store(true)

	if err := e.scheduler.Stop(ctx); err != nil {
		return err
	}

	// Drain a cycle started outside the scheduler.
	e.cycleMu.Lock()
	e.logger.Info().Msg("Polling engine stopped")
	e.cycleMu.Unlock()

	return nil
}

// Reload re-reads the device roster on demand, outside the normal cycle
// cadence.
func (e *Engine) Reload(ctx context.Context) error {
	devices, err := e.registry.GetActiveDevices(ctx)
	if err != nil {
		return fmt.Errorf("reload device roster: %w", err)
	}

	e.setRoster(devices)
	e.logger.Info().Int("devices", len(devices)).Msg("Device roster reloaded")

	return nil
}

// SetInterval swaps the polling cadence by restarting the scheduler.
func (e *Engine) SetInterval(ctx context.Context, interval time.Duration) error {
	e.config.PollInterval = models.Duration(interval)

	return e.scheduler.Restart(ctx, scheduler.FromInterval(interval), e.runCycle)
}

func (e *Engine) setRoster(devices []models.Device) {
	e.mu.Lock()
	e.roster = devices
	e.mu.Unlock()
}

func (e *Engine) rosterCopy() []models.Device {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.Device, len(e.roster))
	copy(out, e.roster)

	return out
}

// runCycle executes one polling cycle: refresh the roster, poll every device
// concurrently under the concurrency cap, record cycle metrics.
func (e *Engine) runCycle(ctx context.Context) {
	if e.stopped.Load() {
		return
	}

	if !e.cycleMu.TryLock() {
		e.metrics.IncSkippedTick()
		return
	}
	defer e.cycleMu.Unlock()

	e.drainSkippedTicks()

	devices, err := e.registry.GetActiveDevices(ctx)
	if err != nil {
		// A registry blip should not stall monitoring; reuse the last
		// known roster for this cycle.
		e.logger.Warn().Err(err).Msg("Roster refresh failed, using cached roster")
		devices = e.rosterCopy()
	} else {
		e.setRoster(devices)
	}

	sem := semaphore.NewWeighted(e.config.MaxConcurrency)

	var wg sync.WaitGroup

	for i := range devices {
		device := devices[i]

		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)

		go func() {
			defer wg.Done()
			defer sem.Release(1)

			started := e.now()

			if err := e.pollDevice(ctx, &device); err != nil {
				e.metrics.IncPollError(errorKind(err))
				e.logger.Error().Err(err).
					Str("device_id", device.ID).
					Str("tenant_id", device.TenantID).
					Msg("Device poll failed")
			}

			e.metrics.ObservePollDuration(e.now().Sub(started).Seconds())
		}()
	}

	wg.Wait()
	e.metrics.ObserveCycle(len(devices))
}

// drainSkippedTicks forwards overlap-guard skips from the scheduler into the
// metrics counter.
func (e *Engine) drainSkippedTicks() {
	total := e.scheduler.SkippedTicks()
	for ; e.reportedSkips < total; e.reportedSkips++ {
		e.metrics.IncSkippedTick()
	}
}

// pollDevice runs the full per-device pipeline. Any returned error is scoped
// to this device; the cycle continues for the rest of the roster.
func (e *Engine) pollDevice(ctx context.Context, device *models.Device) error {
	if e.limiter != nil {
		if res := e.limiter.Check(ctx, device.ID, e.devicePolicy); !res.Allowed {
			e.metrics.IncRateLimited(e.devicePolicy.Name)
			e.logger.Warn().
				Str("device_id", device.ID).
				Dur("retry_after", res.RetryAfter).
				Msg("Device poll throttled")

			return nil
		}
	}

	password, err := e.decryptor.Decrypt(device.EncryptedPassword)
	if err != nil {
		return fmt.Errorf("decrypt credentials: %w", err)
	}

	client := e.newClient(firewall.Config{
		BaseURL:        device.ManagementAddress,
		Username:       device.Username,
		Password:       string(password),
		RequestTimeout: time.Duration(e.config.RequestTimeout),
	}, e.logger)

	prior, hasPrior, err := e.state.Load(ctx, device.ID)
	if err != nil {
		return err
	}

	obs, err := e.observe(ctx, device, client)
	if err != nil {
		return err
	}

	now := e.now().UTC()

	current := models.ObservedStatus{
		WANStatus:  deriveWANStatus(obs.interfaces),
		VPNStatus:  deriveVPNStatus(obs.vpnPolicies),
		CPUPercent: obs.health.CPUPercent,
		RAMPercent: obs.health.RAMPercent,
	}

	if hasPrior {
		for _, alert := range counterAlerts(device, &prior.Counters, &obs.stats.Counters) {
			e.emit(ctx, alert)
		}

		for _, alert := range statusAlerts(device, &prior.Status, &current) {
			e.emit(ctx, alert)
		}
	}

	lastSnapshotAt := e.maybeSnapshot(ctx, device, prior, hasPrior, obs, current, now)

	licenseStates := e.trackLicenses(ctx, device, obs.licenses, now)

	e.upsertPosture(ctx, device, obs.stats.EnabledFeatures, licenseStates, now)

	for _, alert := range healthAlerts(device, obs.health, e.config.CPUAlertPercent, e.config.RAMAlertPercent) {
		e.emit(ctx, alert)
	}

	if err := e.registry.UpdateDeviceLastSeen(ctx, device.ID); err != nil {
		e.logger.Warn().Err(err).Str("device_id", device.ID).Msg("Failed to update device liveness")
	}

	state := &models.PollingState{
		DeviceID:        device.ID,
		PolledAt:        now,
		Counters:        obs.stats.Counters,
		Status:          current,
		EnabledFeatures: obs.stats.EnabledFeatures,
		LastSnapshotAt:  lastSnapshotAt,
	}

	if err := e.state.Save(ctx, state); err != nil {
		return err
	}

	return e.state.SaveDailySnapshot(ctx, device.ID, obs.stats.Counters, now)
}

// observation is the combined result of one device's concurrent fetches.
type observation struct {
	stats       *firewall.Statistics
	health      *firewall.Health
	interfaces  []firewall.Interface
	vpnPolicies []firewall.VPNPolicy
	licenses    []firewall.License
}

// observe fetches all endpoints concurrently. Statistics and health are
// required; the remaining endpoints degrade to empty results on failure since
// not every firmware exposes them.
func (e *Engine) observe(ctx context.Context, device *models.Device, client DeviceClient) (*observation, error) {
	obs := &observation{}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stats, err := client.GetStatistics(gctx)
		if err != nil {
			return fmt.Errorf("fetch statistics: %w", err)
		}

		obs.stats = stats

		return nil
	})

	g.Go(func() error {
		health, err := client.GetHealth(gctx)
		if err != nil {
			return fmt.Errorf("fetch health: %w", err)
		}

		obs.health = health

		return nil
	})

	g.Go(func() error {
		interfaces, err := client.GetInterfaces(gctx)
		if err != nil {
			e.logger.Warn().Err(err).Str("device_id", device.ID).Msg("Interface fetch failed")
			return nil
		}

		obs.interfaces = interfaces

		return nil
	})

	g.Go(func() error {
		policies, err := client.GetVPNPolicies(gctx)
		if err != nil {
			e.logger.Warn().Err(err).Str("device_id", device.ID).Msg("VPN policy fetch failed")
			return nil
		}

		obs.vpnPolicies = policies

		return nil
	})

	g.Go(func() error {
		licenses, err := client.GetLicenses(gctx)
		if err != nil {
			e.logger.Warn().Err(err).Str("device_id", device.ID).Msg("License fetch failed")
			return nil
		}

		obs.licenses = licenses

		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return obs, nil
}

// maybeSnapshot persists a HealthSnapshot when the snapshot interval has
// elapsed for this device and returns the effective last-snapshot time. A
// failed insert leaves the prior timestamp so the next cycle retries.
func (e *Engine) maybeSnapshot(
	ctx context.Context,
	device *models.Device,
	prior *models.PollingState,
	hasPrior bool,
	obs *observation,
	current models.ObservedStatus,
	now time.Time,
) *time.Time {
	var last *time.Time
	if hasPrior {
		last = prior.LastSnapshotAt
	}

	if last != nil && now.Sub(*last) < time.Duration(e.config.SnapshotInterval) {
		return last
	}

	snapshot := &models.HealthSnapshot{
		DeviceID:        device.ID,
		CPUPercent:      obs.health.CPUPercent,
		RAMPercent:      obs.health.RAMPercent,
		UptimeSeconds:   obs.health.UptimeSeconds,
		WANStatus:       current.WANStatus,
		VPNStatus:       current.VPNStatus,
		InterfaceStatus: summarizeInterfaces(obs.interfaces),
		HAStatus:        obs.health.HAStatus,
		WifiStatus:      obs.health.WifiStatus,
		RecordedAt:      now,
	}

	if err := e.registry.InsertHealthSnapshot(ctx, snapshot); err != nil {
		e.logger.Warn().Err(err).Str("device_id", device.ID).Msg("Failed to persist health snapshot")
		return last
	}

	return &now
}

// trackLicenses classifies every licensed feature, alerts on expired or
// expiring ones and appends a LicenseRecord. It returns the feature:state
// pairs for the posture row.
func (e *Engine) trackLicenses(ctx context.Context, device *models.Device, licenses []firewall.License, now time.Time) []string {
	if len(licenses) == 0 {
		return nil
	}

	infos := make([]models.LicenseInfo, 0, len(licenses))
	states := make([]string, 0, len(licenses))

	var warnings []string

	for _, license := range licenses {
		info := classifyLicense(license, now, e.config.LicenseWarningDays)
		infos = append(infos, info)
		states = append(states, fmt.Sprintf("%s:%s", info.Feature, info.State))

		if alert := licenseAlert(device, info); alert != nil {
			warnings = append(warnings, alert.Message)
			e.emit(ctx, alert)
		}
	}

	record := &models.LicenseRecord{
		DeviceID:   device.ID,
		Licenses:   infos,
		Warnings:   warnings,
		RecordedAt: now,
	}

	if err := e.registry.InsertLicenseRecord(ctx, record); err != nil {
		e.logger.Warn().Err(err).Str("device_id", device.ID).Msg("Failed to persist license record")
	}

	return states
}

func (e *Engine) upsertPosture(ctx context.Context, device *models.Device, features, licenseStates []string, now time.Time) {
	posture := &models.DevicePosture{
		TenantID:        device.TenantID,
		DeviceID:        device.ID,
		EnabledFeatures: features,
		LicenseStates:   licenseStates,
		UpdatedAt:       now,
	}

	if err := e.registry.UpsertDevicePosture(ctx, posture); err != nil {
		e.logger.Warn().Err(err).Str("device_id", device.ID).Msg("Failed to upsert device posture")
	}
}

// emit pushes an alert through the suppression pipeline.
func (e *Engine) emit(ctx context.Context, alert *models.Alert) {
	persisted, err := e.alerts.Create(ctx, alert)
	if err != nil {
		e.logger.Error().Err(err).
			Str("device_id", alert.DeviceID).
			Str("type", alert.Type).
			Msg("Failed to create alert")

		return
	}

	if persisted {
		e.metrics.IncAlertCreated(string(alert.Severity))
	} else {
		e.metrics.IncAlertSuppressed()
	}
}

// errorKind maps a poll failure onto its metrics label.
func errorKind(err error) string {
	var clientErr *firewall.ClientError
	if errors.As(err, &clientErr) {
		return string(clientErr.Kind)
	}

	return "internal"
}
