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

// Package scheduler drives recurring jobs from an explicit Schedule value
// instead of ad-hoc cron strings.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/carverauto/firewatch/pkg/logger"
)

var ErrAlreadyRunning = errors.New("scheduler already running")

// Schedule is a recurring cadence derived from an interval, rounded down to
// the largest whole unit the cron grammar can express.
type Schedule struct {
	Every time.Duration
	Unit  Unit
}

// Unit is the cron field granularity a schedule maps onto.
type Unit string

const (
	UnitSecond Unit = "second"
	UnitMinute Unit = "minute"
	UnitHour   Unit = "hour"
)

// FromInterval derives a Schedule from an arbitrary interval. Sub-minute
// intervals keep second granularity; longer intervals round down to whole
// minutes or hours. Anything under a second becomes one second.
func FromInterval(d time.Duration) Schedule {
	switch {
	case d < time.Second:
		return Schedule{Every: time.Second, Unit: UnitSecond}
	case d < time.Minute:
		return Schedule{Every: d.Truncate(time.Second), Unit: UnitSecond}
	case d < time.Hour:
		return Schedule{Every: d.Truncate(time.Minute), Unit: UnitMinute}
	default:
		return Schedule{Every: d.Truncate(time.Hour), Unit: UnitHour}
	}
}

// CronSpec renders the schedule as a seconds-aware cron expression.
func (s Schedule) CronSpec() string {
	switch s.Unit {
	case UnitSecond:
		return fmt.Sprintf("*/%d * * * * *", int(s.Every.Seconds()))
	case UnitMinute:
		return fmt.Sprintf("0 */%d * * * *", int(s.Every.Minutes()))
	case UnitHour:
		return fmt.Sprintf("0 0 */%d * * *", int(s.Every.Hours()))
	}

	return "*/30 * * * * *"
}

// Scheduler runs one job on a Schedule. Ticks that arrive while the job is
// still running are skipped, not queued.
type Scheduler struct {
	logger logger.Logger

	mu       sync.Mutex
	cron     *cron.Cron
	running  bool
	inFlight sync.Mutex

	// SkippedTicks counts overlapping ticks dropped by the overlap guard.
	skipped int64
}

// New creates an idle scheduler.
func New(log logger.Logger) *Scheduler {
	return &Scheduler{logger: log}
}

// Start begins driving job on the given schedule.
func (s *Scheduler) Start(schedule Schedule, job func(context.Context)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
	)))

	spec := schedule.CronSpec()

	if _, err := c.AddFunc(spec, func() {
		if !s.inFlight.TryLock() {
			s.mu.Lock()
			s.skipped++
			s.mu.Unlock()

			s.logger.Warn().Str("spec", spec).Msg("Previous cycle still running, skipping tick")

			return
		}
		defer s.inFlight.Unlock()

		job(context.Background())
	}); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	c.Start()

	s.cron = c
	s.running = true

	s.logger.Info().Str("spec", spec).Dur("every", schedule.Every).Msg("Scheduler started")

	return nil
}

// Stop prevents new ticks and waits for an in-flight job to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()

	if !s.running {
		s.mu.Unlock()
		return nil
	}

	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Restart swaps the schedule: stop, then start with the new cadence.
func (s *Scheduler) Restart(ctx context.Context, schedule Schedule, job func(context.Context)) error {
	if err := s.Stop(ctx); err != nil {
		return err
	}

	return s.Start(schedule, job)
}

// SkippedTicks reports how many ticks the overlap guard dropped.
func (s *Scheduler) SkippedTicks() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.skipped
}
