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

package firewall

import (
	"context"
	"errors"
	"time"
)

// retrySchedule is the fixed escalating delay between attempts. The last
// entry also caps the effective delay when a 429 advertises a longer
// Retry-After.
var retrySchedule = []time.Duration{
	30 * time.Second,
	60 * time.Second,
	120 * time.Second,
	300 * time.Second,
}

const maxRetryDelay = 300 * time.Second

// withRetry runs fn under the retry envelope: up to maxRetries retries for
// retryable failures, sleeping the scheduled delay between attempts.
// Non-retryable failures abort immediately.
func (c *Client) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay(attempt-1, lastErr)

			c.logger.Debug().
				Str("op", op).
				Int("attempt", attempt).
				Dur("delay", delay).
				Err(lastErr).
				Msg("Retrying request")

			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		var ce *ClientError
		if !errors.As(err, &ce) || !ce.Retryable() {
			return err
		}
	}

	return lastErr
}

// retryDelay picks the scheduled delay for the given retry index. On rate
// limiting the server's Retry-After wins when longer, capped at the schedule
// maximum.
func (c *Client) retryDelay(index int, lastErr error) time.Duration {
	if index >= len(retrySchedule) {
		index = len(retrySchedule) - 1
	}

	delay := retrySchedule[index]

	var ce *ClientError
	if errors.As(lastErr, &ce) && ce.Kind == KindRateLimited && ce.RetryAfter > delay {
		delay = ce.RetryAfter
	}

	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
