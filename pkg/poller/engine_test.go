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
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/firewatch/pkg/alerts"
	"github.com/carverauto/firewatch/pkg/devicestate"
	"github.com/carverauto/firewatch/pkg/firewall"
	"github.com/carverauto/firewatch/pkg/kv"
	"github.com/carverauto/firewatch/pkg/logger"
	"github.com/carverauto/firewatch/pkg/models"
	"github.com/carverauto/firewatch/pkg/ratelimit"
)

var errStoreDown = errors.New("store down")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeDB implements db.Service in memory.
type fakeDB struct {
	mu sync.Mutex

	devices    []models.Device
	devicesErr error

	alerts         []models.Alert
	snapshots      []models.HealthSnapshot
	licenseRecords []models.LicenseRecord
	postures       []models.DevicePosture
	lastSeen       []string
}

func (f *fakeDB) GetActiveDevices(_ context.Context) ([]models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.devicesErr != nil {
		return nil, f.devicesErr
	}

	out := make([]models.Device, len(f.devices))
	copy(out, f.devices)

	return out, nil
}

func (f *fakeDB) UpdateDeviceLastSeen(_ context.Context, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastSeen = append(f.lastSeen, deviceID)

	return nil
}

func (f *fakeDB) UpdateDeviceStatus(_ context.Context, _ string, _ models.DeviceStatus) error {
	return nil
}

func (f *fakeDB) InsertAlert(_ context.Context, alert *models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.alerts = append(f.alerts, *alert)

	return nil
}

func (f *fakeDB) AcknowledgeAlert(_ context.Context, _, _ string) error { return nil }

func (f *fakeDB) ListRecentAlerts(_ context.Context, _ string, _ int) ([]models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.Alert, len(f.alerts))
	copy(out, f.alerts)

	return out, nil
}

func (f *fakeDB) InsertHealthSnapshot(_ context.Context, snapshot *models.HealthSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.snapshots = append(f.snapshots, *snapshot)

	return nil
}

func (f *fakeDB) InsertLicenseRecord(_ context.Context, record *models.LicenseRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.licenseRecords = append(f.licenseRecords, *record)

	return nil
}

func (f *fakeDB) UpsertDevicePosture(_ context.Context, posture *models.DevicePosture) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.postures = append(f.postures, *posture)

	return nil
}

func (f *fakeDB) Close() {}

func (f *fakeDB) alertsCopy() []models.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.Alert, len(f.alerts))
	copy(out, f.alerts)

	return out
}

func (f *fakeDB) lastSeenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.lastSeen)
}

func (f *fakeDB) snapshotCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.snapshots)
}

// fakeClient is a canned DeviceClient.
type fakeClient struct {
	stats    *firewall.Statistics
	statsErr error

	health    *firewall.Health
	healthErr error

	interfaces   []firewall.Interface
	interfaceErr error

	vpn    []firewall.VPNPolicy
	vpnErr error

	licenses   []firewall.License
	licenseErr error
}

func (c *fakeClient) GetStatistics(_ context.Context) (*firewall.Statistics, error) {
	return c.stats, c.statsErr
}

func (c *fakeClient) GetHealth(_ context.Context) (*firewall.Health, error) {
	return c.health, c.healthErr
}

func (c *fakeClient) GetInterfaces(_ context.Context) ([]firewall.Interface, error) {
	return c.interfaces, c.interfaceErr
}

func (c *fakeClient) GetVPNPolicies(_ context.Context) ([]firewall.VPNPolicy, error) {
	return c.vpn, c.vpnErr
}

func (c *fakeClient) GetLicenses(_ context.Context) ([]firewall.License, error) {
	return c.licenses, c.licenseErr
}

func healthyClient() *fakeClient {
	return &fakeClient{
		stats: &firewall.Statistics{
			Counters:        models.CounterSet{IPSBlocks: 10, GatewayAVBlocks: 4},
			EnabledFeatures: []string{"ips", "gateway_av"},
		},
		health: &firewall.Health{CPUPercent: 42, RAMPercent: 37, UptimeSeconds: 86400},
		interfaces: []firewall.Interface{
			{Name: "X1", Zone: "wan", Status: models.LinkUp},
			{Name: "X0", Zone: "lan", Status: models.LinkUp},
		},
		vpn: []firewall.VPNPolicy{
			{Name: "hq-to-branch", Enabled: true, Status: models.LinkUp},
		},
	}
}

type plainDecryptor struct{}

func (plainDecryptor) Decrypt(encoded string) ([]byte, error) { return []byte(encoded), nil }

type failingDecryptor struct{}

func (failingDecryptor) Decrypt(string) ([]byte, error) {
	return nil, errors.New("bad ciphertext")
}

func testDevice() models.Device {
	return models.Device{
		ID:                "fw-01",
		TenantID:          "tenant-1",
		ManagementAddress: "https://192.0.2.10",
		Username:          "admin",
		EncryptedPassword: "s3cret",
		Status:            models.DeviceStatusActive,
	}
}

type harness struct {
	engine *Engine
	db     *fakeDB
	mem    *kv.MemoryStore
	clock  *fakeClock
	client *fakeClient
	state  *devicestate.Store
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	fdb := &fakeDB{devices: []models.Device{testDevice()}}
	mem := kv.NewMemoryStore()

	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	mem.NowFunc = clock.Now

	log := logger.NewTestLogger()
	state := devicestate.NewStore(mem)
	alertSvc := alerts.NewService(fdb, mem, log)

	engine := NewEngine(cfg, fdb, state, alertSvc, plainDecryptor{}, nil, nil, log)
	engine.now = clock.Now

	client := healthyClient()
	engine.newClient = func(firewall.Config, logger.Logger) DeviceClient { return client }

	return &harness{
		engine: engine,
		db:     fdb,
		mem:    mem,
		clock:  clock,
		client: client,
		state:  state,
	}
}

func (h *harness) poll(t *testing.T) {
	t.Helper()

	device := testDevice()
	require.NoError(t, h.engine.pollDevice(context.Background(), &device))
}

func TestEngine_FirstPollPersistsStateWithoutChangeAlerts(t *testing.T) {
	h := newHarness(t, Config{})

	h.poll(t)

	assert.Empty(t, h.db.alertsCopy())
	assert.Equal(t, 1, h.db.lastSeenCount())
	assert.Equal(t, 1, h.db.snapshotCount())

	state, found, err := h.state.Load(context.Background(), "fw-01")
	require.NoError(t, err)
	require.True(t, found)
	assert.EqualValues(t, 10, state.Counters.IPSBlocks)
	assert.Equal(t, models.LinkUp, state.Status.WANStatus)
	assert.Equal(t, models.LinkUp, state.Status.VPNStatus)
	assert.Equal(t, []string{"ips", "gateway_av"}, state.EnabledFeatures)
	require.NotNil(t, state.LastSnapshotAt)

	snapshot, found, err := h.state.LoadDailySnapshot(context.Background(), "fw-01", "2025-06-01")
	require.NoError(t, err)
	require.True(t, found)
	assert.EqualValues(t, 10, snapshot.Counters.IPSBlocks)

	require.Len(t, h.db.postures, 1)
	assert.Equal(t, []string{"ips", "gateway_av"}, h.db.postures[0].EnabledFeatures)
}

func TestEngine_CounterIncreaseEmitsSingleInfoAlert(t *testing.T) {
	h := newHarness(t, Config{})

	h.poll(t)
	h.clock.Advance(30 * time.Second)

	h.client.stats.Counters.IPSBlocks = 15
	h.poll(t)

	created := h.db.alertsCopy()
	require.Len(t, created, 1)
	assert.Equal(t, models.AlertTypeCounterIncrease, created[0].Type)
	assert.Equal(t, models.SeverityInfo, created[0].Severity)
	assert.EqualValues(t, 10, created[0].Metadata["previous"])
	assert.EqualValues(t, 15, created[0].Metadata["current"])
}

func TestEngine_CounterResetEmitsNothing(t *testing.T) {
	h := newHarness(t, Config{})

	h.poll(t)
	h.clock.Advance(30 * time.Second)

	// Daily counters reset at the device's local midnight.
	h.client.stats.Counters.IPSBlocks = 0
	h.poll(t)

	assert.Empty(t, h.db.alertsCopy())
}

func TestEngine_WANFlipEmitsCriticalThenRecoveryInfo(t *testing.T) {
	h := newHarness(t, Config{})

	h.poll(t)
	h.clock.Advance(30 * time.Second)

	h.client.interfaces[0].Status = models.LinkDown
	h.poll(t)

	created := h.db.alertsCopy()
	require.Len(t, created, 1)
	assert.Equal(t, models.AlertTypeWANStatusChange, created[0].Type)
	assert.Equal(t, models.SeverityCritical, created[0].Severity)
	assert.Equal(t, "up", created[0].Metadata["previous"])
	assert.Equal(t, "down", created[0].Metadata["current"])

	h.clock.Advance(30 * time.Second)
	h.client.interfaces[0].Status = models.LinkUp
	h.poll(t)

	created = h.db.alertsCopy()
	require.Len(t, created, 2)
	assert.Equal(t, models.SeverityInfo, created[1].Severity)
	assert.Equal(t, "down", created[1].Metadata["previous"])
	assert.Equal(t, "up", created[1].Metadata["current"])
}

func TestEngine_VPNFlipEmitsHighAlert(t *testing.T) {
	h := newHarness(t, Config{})

	h.poll(t)
	h.clock.Advance(30 * time.Second)

	h.client.vpn[0].Status = models.LinkDown
	h.poll(t)

	created := h.db.alertsCopy()
	require.Len(t, created, 1)
	assert.Equal(t, models.AlertTypeVPNStatusChange, created[0].Type)
	assert.Equal(t, models.SeverityHigh, created[0].Severity)
}

func TestEngine_HighCPUSuppressedUntilMaterialChange(t *testing.T) {
	h := newHarness(t, Config{})

	h.client.health.CPUPercent = 85
	h.poll(t)

	created := h.db.alertsCopy()
	require.Len(t, created, 1)
	assert.Equal(t, models.AlertTypeHighCPU, created[0].Type)
	assert.Equal(t, models.SeverityWarning, created[0].Severity)

	// Same reading 90s later lands inside the 2m suppression window.
	h.clock.Advance(90 * time.Second)
	h.poll(t)
	assert.Len(t, h.db.alertsCopy(), 1)

	// A jump to 95% moves the metadata by more than 1% and escapes
	// suppression.
	h.client.health.CPUPercent = 95
	h.poll(t)
	assert.Len(t, h.db.alertsCopy(), 2)
}

func TestEngine_LicenseExpiryAlertsAndRecord(t *testing.T) {
	h := newHarness(t, Config{})

	now := h.clock.Now()
	expiring := now.Add(10 * 24 * time.Hour)
	expired := now.Add(-5 * 24 * time.Hour)

	h.client.licenses = []firewall.License{
		{Feature: "ips", Licensed: true, ExpiresAt: &expiring},
		{Feature: "gateway_av", Licensed: true, ExpiresAt: &expired},
	}

	h.poll(t)

	created := h.db.alertsCopy()
	require.Len(t, created, 2)

	byType := map[string]models.Alert{}
	for _, alert := range created {
		byType[alert.Type] = alert
	}

	require.Contains(t, byType, models.AlertTypeLicenseExpiring)
	assert.Equal(t, models.SeverityWarning, byType[models.AlertTypeLicenseExpiring].Severity)
	assert.EqualValues(t, 10, byType[models.AlertTypeLicenseExpiring].Metadata["days_remaining"])

	require.Contains(t, byType, models.AlertTypeLicenseExpired)
	assert.Equal(t, models.SeverityCritical, byType[models.AlertTypeLicenseExpired].Severity)

	require.Len(t, h.db.licenseRecords, 1)
	assert.Len(t, h.db.licenseRecords[0].Licenses, 2)
	assert.Len(t, h.db.licenseRecords[0].Warnings, 2)

	require.Len(t, h.db.postures, 1)
	assert.Contains(t, h.db.postures[0].LicenseStates, "ips:expiring")
	assert.Contains(t, h.db.postures[0].LicenseStates, "gateway_av:expired")
}

func TestEngine_SnapshotCarriesInterfaceStatus(t *testing.T) {
	h := newHarness(t, Config{})

	h.poll(t)

	require.Equal(t, 1, h.db.snapshotCount())

	h.db.mu.Lock()
	snapshot := h.db.snapshots[0]
	h.db.mu.Unlock()

	assert.Equal(t, "X1:up,X0:up", snapshot.InterfaceStatus)
	assert.Equal(t, models.LinkUp, snapshot.WANStatus)

	// Devices that report no interface table persist an empty summary.
	h.client.interfaces = nil
	h.clock.Advance(5 * time.Hour)
	h.poll(t)

	h.db.mu.Lock()
	snapshot = h.db.snapshots[1]
	h.db.mu.Unlock()

	assert.Empty(t, snapshot.InterfaceStatus)
}

func TestEngine_SnapshotCadence(t *testing.T) {
	h := newHarness(t, Config{})

	h.poll(t)
	assert.Equal(t, 1, h.db.snapshotCount())

	h.clock.Advance(30 * time.Second)
	h.poll(t)
	assert.Equal(t, 1, h.db.snapshotCount())

	h.clock.Advance(4 * time.Hour)
	h.poll(t)
	assert.Equal(t, 2, h.db.snapshotCount())
}

func TestEngine_DecryptFailureAbortsDevicePoll(t *testing.T) {
	h := newHarness(t, Config{})
	h.engine.decryptor = failingDecryptor{}

	device := testDevice()
	err := h.engine.pollDevice(context.Background(), &device)
	require.Error(t, err)

	assert.Equal(t, 0, h.db.lastSeenCount())

	_, found, err := h.state.Load(context.Background(), "fw-01")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEngine_StatisticsFailureAbortsDevicePoll(t *testing.T) {
	h := newHarness(t, Config{})
	h.client.statsErr = &firewall.ClientError{Kind: firewall.KindServer, StatusCode: 503, Err: errStoreDown}

	device := testDevice()
	err := h.engine.pollDevice(context.Background(), &device)
	require.Error(t, err)
	assert.Equal(t, "server", errorKind(err))

	assert.Equal(t, 0, h.db.lastSeenCount())
}

func TestEngine_OptionalFetchFailuresDegrade(t *testing.T) {
	h := newHarness(t, Config{})
	h.client.interfaceErr = &firewall.ClientError{Kind: firewall.KindBadRequest, StatusCode: 404, Err: errStoreDown}
	h.client.vpnErr = h.client.interfaceErr
	h.client.licenseErr = h.client.interfaceErr

	h.poll(t)

	state, found, err := h.state.Load(context.Background(), "fw-01")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.LinkDown, state.Status.WANStatus)
	assert.Equal(t, models.LinkDown, state.Status.VPNStatus)
}

func TestEngine_ThrottledDeviceIsSkippedWithoutError(t *testing.T) {
	h := newHarness(t, Config{PollMaxRequests: 1, PollWindow: models.Duration(time.Minute)})
	h.engine.limiter = ratelimit.New(h.mem, h.clock, logger.NewTestLogger())

	h.poll(t)
	require.Equal(t, 1, h.db.lastSeenCount())

	// Second check in the same window is denied; the poll is skipped, not
	// failed.
	h.poll(t)
	assert.Equal(t, 1, h.db.lastSeenCount())
}

func TestEngine_StartFailsWithoutRoster(t *testing.T) {
	h := newHarness(t, Config{})
	h.db.devicesErr = errStoreDown

	err := h.engine.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errStoreDown)
}

func TestEngine_CycleIsolatesDeviceFailures(t *testing.T) {
	h := newHarness(t, Config{})

	bad := testDevice()
	bad.ID = "fw-02"
	bad.ManagementAddress = "https://192.0.2.11"

	h.db.mu.Lock()
	h.db.devices = append(h.db.devices, bad)
	h.db.mu.Unlock()

	failing := healthyClient()
	failing.statsErr = &firewall.ClientError{Kind: firewall.KindTimeout, Err: errStoreDown}

	h.engine.newClient = func(cfg firewall.Config, _ logger.Logger) DeviceClient {
		if cfg.BaseURL == bad.ManagementAddress {
			return failing
		}

		return h.client
	}

	h.engine.runCycle(context.Background())

	// The healthy device completed its poll despite the neighbor failing.
	assert.Equal(t, 1, h.db.lastSeenCount())

	_, found, err := h.state.Load(context.Background(), "fw-01")
	require.NoError(t, err)
	assert.True(t, found)

	_, found, err = h.state.Load(context.Background(), "fw-02")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEngine_SetIntervalRestartsSchedule(t *testing.T) {
	h := newHarness(t, Config{PollInterval: models.Duration(time.Hour)})

	require.NoError(t, h.engine.Start(context.Background()))
	defer func() { _ = h.engine.Stop(context.Background()) }()

	// On the hourly schedule only the immediate startup cycle runs.
	require.Eventually(t, func() bool {
		return h.db.lastSeenCount() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, h.engine.SetInterval(context.Background(), time.Second))
	assert.Equal(t, models.Duration(time.Second), h.engine.config.PollInterval)

	// The swapped schedule drives fresh cycles every second.
	require.Eventually(t, func() bool {
		return h.db.lastSeenCount() >= 3
	}, 5*time.Second, 50*time.Millisecond)
}

func TestEngine_ReloadSwapsRoster(t *testing.T) {
	h := newHarness(t, Config{})

	replacement := testDevice()
	replacement.ID = "fw-09"

	h.db.mu.Lock()
	h.db.devices = []models.Device{replacement}
	h.db.mu.Unlock()

	require.NoError(t, h.engine.Reload(context.Background()))

	roster := h.engine.rosterCopy()
	require.Len(t, roster, 1)
	assert.Equal(t, "fw-09", roster[0].ID)
}
