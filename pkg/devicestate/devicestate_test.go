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

package devicestate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/firewatch/pkg/kv"
	"github.com/carverauto/firewatch/pkg/models"
)

func TestLoad_MissingStateIsNotAnError(t *testing.T) {
	store := NewStore(kv.NewMemoryStore())

	state, found, err := store.Load(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, state)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	store := NewStore(kv.NewMemoryStore())
	ctx := context.Background()

	in := &models.PollingState{
		DeviceID: "dev-1",
		PolledAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Counters: models.CounterSet{IPSBlocks: 10, GatewayAVBlocks: 3},
		Status: models.ObservedStatus{
			WANStatus:  models.LinkUp,
			VPNStatus:  models.LinkDown,
			CPUPercent: 40,
		},
		EnabledFeatures: []string{"ips", "gateway_av"},
	}

	require.NoError(t, store.Save(ctx, in))

	out, found, err := store.Load(ctx, "dev-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, in, out)
}

func TestSave_ReplacesWholesale(t *testing.T) {
	store := NewStore(kv.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &models.PollingState{
		DeviceID:        "dev-1",
		Counters:        models.CounterSet{IPSBlocks: 10},
		EnabledFeatures: []string{"ips", "botnet"},
	}))
	require.NoError(t, store.Save(ctx, &models.PollingState{
		DeviceID: "dev-1",
		Counters: models.CounterSet{IPSBlocks: 12},
	}))

	out, found, err := store.Load(ctx, "dev-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(12), out.Counters.IPSBlocks)
	assert.Empty(t, out.EnabledFeatures, "old fields do not leak into the new state")
}

func TestLoad_CorruptStateTreatedAsMissing(t *testing.T) {
	mem := kv.NewMemoryStore()
	store := NewStore(mem)
	ctx := context.Background()

	require.NoError(t, mem.Put(ctx, "device:dev-1:state", []byte("{broken"), 0))

	_, found, err := store.Load(ctx, "dev-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSaveDailySnapshot_OverwritesSameDay(t *testing.T) {
	store := NewStore(kv.NewMemoryStore())
	ctx := context.Background()

	noon := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	evening := noon.Add(9 * time.Hour)

	require.NoError(t, store.SaveDailySnapshot(ctx, "dev-1", models.CounterSet{IPSBlocks: 10}, noon))
	require.NoError(t, store.SaveDailySnapshot(ctx, "dev-1", models.CounterSet{IPSBlocks: 25}, evening))

	snap, found, err := store.LoadDailySnapshot(ctx, "dev-1", "2025-06-01")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(25), snap.Counters.IPSBlocks)
}

func TestSaveDailySnapshot_KeyedByUTCDay(t *testing.T) {
	store := NewStore(kv.NewMemoryStore())
	ctx := context.Background()

	// 23:30 UTC-5 local is already the next day in UTC.
	local := time.Date(2025, 6, 1, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))

	require.NoError(t, store.SaveDailySnapshot(ctx, "dev-1", models.CounterSet{}, local))

	_, found, err := store.LoadDailySnapshot(ctx, "dev-1", "2025-06-02")
	require.NoError(t, err)
	assert.True(t, found)
}
