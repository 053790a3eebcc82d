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

package kv

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used in tests and single-node
// deployments without a shared cache.
type MemoryStore struct {
	mu      sync.Mutex
	values  map[string]memoryValue
	windows map[string][]time.Time
	// NowFunc lets tests control expiry evaluation.
	NowFunc func() time.Time
}

type memoryValue struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:  make(map[string]memoryValue),
		windows: make(map[string][]time.Time),
		NowFunc: time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}

	if !v.expiresAt.IsZero() && !v.expiresAt.After(m.NowFunc()) {
		delete(m.values, key)
		return nil, false, nil
	}

	return v.data, true, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := memoryValue{data: append([]byte(nil), value...)}
	if ttl > 0 {
		v.expiresAt = m.NowFunc().Add(ttl)
	}

	m.values[key] = v

	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)

	return nil
}

func (m *MemoryStore) AddToWindow(_ context.Context, key string, at time.Time, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.windows[key] = append(m.windows[key], at)
	sort.Slice(m.windows[key], func(i, j int) bool {
		return m.windows[key][i].Before(m.windows[key][j])
	})

	return nil
}

func (m *MemoryStore) CountWindow(_ context.Context, key string, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.windows[key][:0:0]

	for _, at := range m.windows[key] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}

	m.windows[key] = kept

	return int64(len(kept)), nil
}

func (m *MemoryStore) OldestInWindow(_ context.Context, key string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.windows[key]) == 0 {
		return time.Time{}, nil
	}

	return m.windows[key][0], nil
}

func (m *MemoryStore) ClearWindow(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.windows, key)

	return nil
}

func (*MemoryStore) Close() error { return nil }
