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

// Package devicestate persists per-device polling state between cycles.
package devicestate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/carverauto/firewatch/pkg/kv"
	"github.com/carverauto/firewatch/pkg/models"
)

// Store reads and writes PollingState and daily counter snapshots, keyed per
// device. All writes replace the stored value wholesale.
type Store struct {
	kv kv.KVStore
}

// NewStore wraps a KV store.
func NewStore(store kv.KVStore) *Store {
	return &Store{kv: store}
}

func stateKey(deviceID string) string {
	return fmt.Sprintf("device:%s:state", deviceID)
}

func snapshotKey(deviceID, day string) string {
	return fmt.Sprintf("device:%s:snapshot:%s", deviceID, day)
}

// Load returns the prior polling state for the device. A missing key is not
// an error: it reports found=false and the caller skips change detection for
// one cycle.
func (s *Store) Load(ctx context.Context, deviceID string) (*models.PollingState, bool, error) {
	raw, found, err := s.kv.Get(ctx, stateKey(deviceID))
	if err != nil {
		return nil, false, fmt.Errorf("load polling state for %s: %w", deviceID, err)
	}

	if !found {
		return nil, false, nil
	}

	var state models.PollingState
	if err := json.Unmarshal(raw, &state); err != nil {
		// A corrupt record is treated like a missing one; the next cycle
		// rewrites it.
		return nil, false, nil
	}

	return &state, true, nil
}

// Save replaces the polling state for the device. No TTL: the value lives
// until the next cycle overwrites it.
func (s *Store) Save(ctx context.Context, state *models.PollingState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal polling state for %s: %w", state.DeviceID, err)
	}

	if err := s.kv.Put(ctx, stateKey(state.DeviceID), raw, 0); err != nil {
		return fmt.Errorf("save polling state for %s: %w", state.DeviceID, err)
	}

	return nil
}

// SaveDailySnapshot overwrites the counter snapshot for the device's current
// UTC day. Calling it repeatedly within a day keeps exactly one record.
func (s *Store) SaveDailySnapshot(ctx context.Context, deviceID string, counters models.CounterSet, now time.Time) error {
	day := now.UTC().Format("2006-01-02")

	snapshot := models.DailyCounterSnapshot{
		DeviceID:   deviceID,
		Day:        day,
		Counters:   counters,
		RecordedAt: now.UTC(),
	}

	raw, err := json.Marshal(&snapshot)
	if err != nil {
		return fmt.Errorf("marshal daily snapshot for %s: %w", deviceID, err)
	}

	// Keep snapshots for two days so the rollup can always read yesterday's
	// final values.
	if err := s.kv.Put(ctx, snapshotKey(deviceID, day), raw, 48*time.Hour); err != nil {
		return fmt.Errorf("save daily snapshot for %s: %w", deviceID, err)
	}

	return nil
}

// LoadDailySnapshot returns the snapshot for a device and UTC day.
func (s *Store) LoadDailySnapshot(ctx context.Context, deviceID string, day string) (*models.DailyCounterSnapshot, bool, error) {
	raw, found, err := s.kv.Get(ctx, snapshotKey(deviceID, day))
	if err != nil {
		return nil, false, fmt.Errorf("load daily snapshot for %s: %w", deviceID, err)
	}

	if !found {
		return nil, false, nil
	}

	var snapshot models.DailyCounterSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, false, nil
	}

	return &snapshot, true, nil
}
