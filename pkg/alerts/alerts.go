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

// Package alerts creates alert records behind duplicate and metadata-change
// suppression.
package alerts

import (
	"context"
	"encoding/json"
	"time"

	"github.com/carverauto/firewatch/pkg/db"
	"github.com/carverauto/firewatch/pkg/kv"
	"github.com/carverauto/firewatch/pkg/logger"
	"github.com/carverauto/firewatch/pkg/models"
)

const defaultSuppressionWindow = 5 * time.Minute

// suppressionWindows overrides the default window per alert type. Health
// threshold alerts repeat quickly, so their window is short.
var suppressionWindows = map[string]time.Duration{
	models.AlertTypeHighCPU:    2 * time.Minute,
	models.AlertTypeHighMemory: 2 * time.Minute,
}

// Service persists alerts after suppression checks.
type Service struct {
	store  db.AlertStore
	kv     kv.KVStore
	logger logger.Logger
}

// NewService builds the alert pipeline.
func NewService(store db.AlertStore, kvStore kv.KVStore, log logger.Logger) *Service {
	return &Service{store: store, kv: kvStore, logger: log}
}

// Create runs the alert through both suppression layers and persists it if it
// survives. It returns true when the alert was persisted. A failing dedup
// store never suppresses: alerts are preferred over silence.
func (s *Service) Create(ctx context.Context, alert *models.Alert) (bool, error) {
	window := defaultSuppressionWindow
	if w, ok := suppressionWindows[alert.Type]; ok {
		window = w
	}

	key := dedupKey(alert)

	cached, found, err := s.kv.Get(ctx, key)
	if err != nil {
		if kv.PolicyFor(kv.ResourceAlertDedup) == kv.FailOpen {
			s.logger.Warn().Err(err).Str("key", key).Msg("Alert dedup store unavailable, failing open")
			return true, s.insert(ctx, alert, key, window, false)
		}

		return false, err
	}

	if found {
		var cachedMeta map[string]interface{}
		_ = json.Unmarshal(cached, &cachedMeta)

		if !materiallyChanged(cachedMeta, alert.Metadata) {
			s.logger.Debug().
				Str("device_id", alert.DeviceID).
				Str("type", alert.Type).
				Str("severity", string(alert.Severity)).
				Msg("Alert suppressed by dedup window")

			return false, nil
		}
	}

	return true, s.insert(ctx, alert, key, window, true)
}

func (s *Service) insert(ctx context.Context, alert *models.Alert, key string, window time.Duration, refreshKey bool) error {
	if err := s.store.InsertAlert(ctx, alert); err != nil {
		return err
	}

	s.logger.Info().
		Str("tenant_id", alert.TenantID).
		Str("device_id", alert.DeviceID).
		Str("type", alert.Type).
		Str("severity", string(alert.Severity)).
		Msg("Alert created")

	if !refreshKey {
		return nil
	}

	meta, err := json.Marshal(alert.Metadata)
	if err != nil {
		meta = []byte("{}")
	}

	if err := s.kv.Put(ctx, key, meta, window); err != nil {
		// The alert is already persisted; a failed window refresh only
		// weakens suppression for one window.
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to refresh alert dedup key")
	}

	return nil
}
