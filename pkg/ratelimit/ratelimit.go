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

// Package ratelimit implements a sliding-window rate limiter with exponential
// backoff for repeat offenders.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/carverauto/firewatch/pkg/kv"
	"github.com/carverauto/firewatch/pkg/logger"
)

const (
	violationWindow = 24 * time.Hour
	maxBlock        = 24 * time.Hour

	// maxBackoffShift bounds the doubling so the shift cannot overflow; the
	// 24h cap is reached long before this.
	maxBackoffShift = 20
)

// Policy describes one rate-limit rule.
type Policy struct {
	Name        string
	Window      time.Duration
	MaxRequests int64
	// BlockDuration, when non-zero, is the base block applied after the
	// window is exhausted. Repeat violations within 24h double it.
	BlockDuration time.Duration
}

// Result is the outcome of a limiter check.
type Result struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Limiter checks identifiers against policies using a shared window store.
type Limiter struct {
	store  kv.Store
	clock  Clock
	logger logger.Logger
}

// New creates a limiter. A nil clock defaults to the system clock.
func New(store kv.Store, clock Clock, log logger.Logger) *Limiter {
	if clock == nil {
		clock = realClock{}
	}

	return &Limiter{store: store, clock: clock, logger: log}
}

func windowKey(policy, identifier string) string {
	return fmt.Sprintf("ratelimit:%s:%s", policy, identifier)
}

func blockKey(policy, identifier string) string {
	return fmt.Sprintf("ratelimit:%s:%s:blocked", policy, identifier)
}

func violationsKey(policy, identifier string) string {
	return fmt.Sprintf("ratelimit:%s:%s:violations", policy, identifier)
}

// Check decides whether the identifier may proceed under the policy. When the
// backing store is unavailable the limiter fails open: the request is allowed
// and a warning is logged.
func (l *Limiter) Check(ctx context.Context, identifier string, policy Policy) *Result {
	now := l.clock.Now()

	if res, blocked := l.checkBlock(ctx, identifier, policy, now); blocked {
		return res
	}

	key := windowKey(policy.Name, identifier)

	count, err := l.store.CountWindow(ctx, key, now.Add(-policy.Window))
	if err != nil {
		return l.failOpen(identifier, policy, err)
	}

	if count >= policy.MaxRequests {
		return l.deny(ctx, identifier, policy, now, key)
	}

	if err := l.store.AddToWindow(ctx, key, now, policy.Window); err != nil {
		return l.failOpen(identifier, policy, err)
	}

	return &Result{
		Allowed:   true,
		Remaining: policy.MaxRequests - count - 1,
		ResetAt:   now.Add(policy.Window),
	}
}

// Reset clears all limiter state for the identifier.
func (l *Limiter) Reset(ctx context.Context, identifier string, policy Policy) error {
	for _, key := range []string{
		windowKey(policy.Name, identifier),
		violationsKey(policy.Name, identifier),
	} {
		if err := l.store.ClearWindow(ctx, key); err != nil {
			return err
		}
	}

	return l.store.Delete(ctx, blockKey(policy.Name, identifier))
}

func (l *Limiter) checkBlock(ctx context.Context, identifier string, policy Policy, now time.Time) (*Result, bool) {
	val, found, err := l.store.Get(ctx, blockKey(policy.Name, identifier))
	if err != nil {
		return l.failOpen(identifier, policy, err), true
	}

	if !found {
		return nil, false
	}

	until := parseUnixNano(val)
	if !until.After(now) {
		// Marker outlived its deadline; the TTL normally removes it first.
		return nil, false
	}

	return &Result{
		Allowed:    false,
		Remaining:  0,
		ResetAt:    until,
		RetryAfter: until.Sub(now),
	}, true
}

func (l *Limiter) deny(ctx context.Context, identifier string, policy Policy, now time.Time, key string) *Result {
	vKey := violationsKey(policy.Name, identifier)

	if err := l.store.AddToWindow(ctx, vKey, now, violationWindow); err != nil {
		return l.failOpen(identifier, policy, err)
	}

	violations, err := l.store.CountWindow(ctx, vKey, now.Add(-violationWindow))
	if err != nil {
		return l.failOpen(identifier, policy, err)
	}

	result := &Result{Allowed: false, Remaining: 0}

	if policy.BlockDuration > 0 {
		block := backoffDuration(policy.BlockDuration, violations)
		until := now.Add(block)

		if err := l.store.Put(ctx, blockKey(policy.Name, identifier),
			[]byte(strconv.FormatInt(until.UnixNano(), 10)), block); err != nil {
			return l.failOpen(identifier, policy, err)
		}

		result.ResetAt = until
		result.RetryAfter = block

		l.logger.Warn().
			Str("identifier", identifier).
			Str("policy", policy.Name).
			Int64("violations_24h", violations).
			Dur("block", block).
			Msg("Rate limit block applied")

		return result
	}

	// No blocking configured: the caller may retry once the oldest event
	// rolls out of the window.
	oldest, err := l.store.OldestInWindow(ctx, key)
	if err != nil || oldest.IsZero() {
		result.ResetAt = now.Add(policy.Window)
	} else {
		result.ResetAt = oldest.Add(policy.Window)
	}

	result.RetryAfter = result.ResetAt.Sub(now)

	return result
}

func (l *Limiter) failOpen(identifier string, policy Policy, err error) *Result {
	if kv.PolicyFor(kv.ResourceRateLimit) == kv.FailOpen {
		l.logger.Warn().Err(err).
			Str("identifier", identifier).
			Str("policy", policy.Name).
			Msg("Rate limit store unavailable, failing open")

		return &Result{Allowed: true, Remaining: 0, ResetAt: l.clock.Now().Add(policy.Window)}
	}

	return &Result{Allowed: false, Remaining: 0, RetryAfter: policy.Window}
}

// backoffDuration doubles the base block for every violation beyond the first
// within the rolling 24h window, capped at 24h.
func backoffDuration(base time.Duration, violations int64) time.Duration {
	if violations < 1 {
		violations = 1
	}

	shift := violations - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}

	block := base << uint(shift)
	if block > maxBlock || block <= 0 {
		return maxBlock
	}

	return block
}

func parseUnixNano(val []byte) time.Time {
	n, err := strconv.ParseInt(string(val), 10, 64)
	if err != nil {
		return time.Time{}
	}

	return time.Unix(0, n)
}
