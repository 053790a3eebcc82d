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

// Package kv provides the key/value store backing polling state and
// rate-limit windows.
package kv

import (
	"context"
	"time"
)

// KVStore defines the interface for plain key/value access.
type KVStore interface {
	// Get retrieves the value associated with the given key.
	// Returns the value as a byte slice, a boolean indicating if the key was
	// found, and an error if the operation fails.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores a value under the given key with an optional TTL.
	// If ttl is zero, the value persists until overwritten or deleted.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the key and its associated value from the store.
	Delete(ctx context.Context, key string) error

	// Close shuts down the store, releasing any resources.
	Close() error
}

// WindowStore defines sorted-set operations over time-ordered event windows,
// used by the sliding-window limiter and alert dedup.
type WindowStore interface {
	// AddToWindow appends an event at the given time to the window and
	// refreshes the window's expiry to ttl.
	AddToWindow(ctx context.Context, key string, at time.Time, ttl time.Duration) error

	// CountWindow removes events older than cutoff and returns the number of
	// events remaining in the window.
	CountWindow(ctx context.Context, key string, cutoff time.Time) (int64, error)

	// OldestInWindow returns the timestamp of the oldest event still in the
	// window, or the zero time if the window is empty.
	OldestInWindow(ctx context.Context, key string) (time.Time, error)

	// ClearWindow removes the whole window.
	ClearWindow(ctx context.Context, key string) error
}

// Store combines plain key/value access with window operations.
type Store interface {
	KVStore
	WindowStore
}
