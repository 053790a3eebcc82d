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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/carverauto/firewatch/pkg/alerts"
	"github.com/carverauto/firewatch/pkg/config"
	"github.com/carverauto/firewatch/pkg/crypto/secrets"
	"github.com/carverauto/firewatch/pkg/db"
	"github.com/carverauto/firewatch/pkg/devicestate"
	"github.com/carverauto/firewatch/pkg/kv"
	"github.com/carverauto/firewatch/pkg/lifecycle"
	"github.com/carverauto/firewatch/pkg/logger"
	"github.com/carverauto/firewatch/pkg/metrics"
	"github.com/carverauto/firewatch/pkg/models"
	"github.com/carverauto/firewatch/pkg/poller"
	"github.com/carverauto/firewatch/pkg/ratelimit"
)

var (
	errFailedToLoadConfig = fmt.Errorf("failed to load config")

	errDatabaseHostRequired  = errors.New("database.host is required")
	errDatabaseNameRequired  = errors.New("database.database is required")
	errRedisAddressRequired  = errors.New("redis.address is required")
	errEncryptionKeyRequired = errors.New("encryption_key is required")
)

// appConfig is the full firewatch service configuration document.
type appConfig struct {
	Database models.DatabaseConfig `json:"database"`
	Redis    models.RedisConfig    `json:"redis"`
	Poller   poller.Config         `json:"poller"`

	// EncryptionKey is the hex-encoded 32-byte key protecting stored device
	// credentials.
	EncryptionKey string `json:"encryption_key"`

	// MetricsAddr, when set, exposes the Prometheus scrape endpoint.
	MetricsAddr string `json:"metrics_addr,omitempty"`

	Logging *logger.Config `json:"logging,omitempty"`
}

func (c *appConfig) Validate() error {
	if c.Database.Host == "" {
		return errDatabaseHostRequired
	}

	if c.Database.Database == "" {
		return errDatabaseNameRequired
	}

	if c.Redis.Address == "" {
		return errRedisAddressRequired
	}

	if c.EncryptionKey == "" {
		return errEncryptionKeyRequired
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/firewatch/firewatch.json", "Path to firewatch config file")
	flag.Parse()

	ctx := context.Background()

	cfgLoader := config.NewConfig(nil)

	var cfg appConfig

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = &logger.Config{
			Level:  "info",
			Output: "stdout",
		}
	}

	mainLogger, err := lifecycle.CreateComponentLogger("firewatch", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	pool, err := db.NewPool(ctx, &cfg.Database, mainLogger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	store := db.NewStore(pool, mainLogger)
	defer store.Close()

	kvStore, err := kv.NewRedisStore(ctx, &cfg.Redis, mainLogger)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer func() { _ = kvStore.Close() }()

	cipher, err := secrets.NewCipherFromHex(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("invalid encryption key: %w", err)
	}

	recorder := metrics.NewRecorder(nil)

	engine := poller.NewEngine(
		cfg.Poller,
		store,
		devicestate.NewStore(kvStore),
		alerts.NewService(store, kvStore, mainLogger),
		cipher,
		ratelimit.New(kvStore, nil, mainLogger),
		recorder,
		mainLogger,
	)

	if cfg.MetricsAddr != "" {
		metricsServer := metrics.NewServer(cfg.MetricsAddr, nil, mainLogger)

		if err := metricsServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}

		defer func() { _ = metricsServer.Stop(ctx) }()
	}

	return lifecycle.Run(ctx, engine, mainLogger)
}
