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

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/firewatch/pkg/models"
)

var errIntervalRequired = errors.New("poll_interval is required")

type testConfig struct {
	PollInterval models.Duration `json:"poll_interval"`
	MetricsAddr  string          `json:"metrics_addr"`
}

func (c *testConfig) Validate() error {
	if c.PollInterval <= 0 {
		return errIntervalRequired
	}

	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "firewatch.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, `{"poll_interval": "45s", "metrics_addr": ":9090"}`)

	var cfg testConfig
	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg))

	assert.Equal(t, models.Duration(45*time.Second), cfg.PollInterval)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
}

func TestLoadAndValidate_MissingFile(t *testing.T) {
	var cfg testConfig

	err := NewConfig(nil).LoadAndValidate(context.Background(), "/nonexistent/firewatch.json", &cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, errLoadConfigFailed)
}

func TestLoadAndValidate_MalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"poll_interval": `)

	var cfg testConfig

	err := NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, errLoadConfigFailed)
}

func TestLoadAndValidate_ValidatorRejects(t *testing.T) {
	path := writeConfig(t, `{"metrics_addr": ":9090"}`)

	var cfg testConfig

	err := NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, errIntervalRequired)
}
