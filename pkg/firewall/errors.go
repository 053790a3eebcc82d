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
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a client failure for the retry envelope.
type ErrorKind string

const (
	// KindAuth covers 401/403: bad or expired credentials. Not retryable.
	KindAuth ErrorKind = "auth"
	// KindRateLimited covers 429. Retryable, honoring Retry-After.
	KindRateLimited ErrorKind = "rate_limited"
	// KindServer covers 5xx. Retryable.
	KindServer ErrorKind = "server"
	// KindNetwork covers connect/transport failures. Retryable.
	KindNetwork ErrorKind = "network"
	// KindTimeout covers request timeouts. Retryable.
	KindTimeout ErrorKind = "timeout"
	// KindBadRequest covers the remaining 4xx. Not retryable.
	KindBadRequest ErrorKind = "bad_request"
)

var errAuthTokenMissing = errors.New("authentication response contained no token")

// ClientError is the typed failure surfaced by the protocol client.
type ClientError struct {
	Kind       ErrorKind
	StatusCode int
	// RetryAfter carries the server-advertised backoff on 429 responses.
	RetryAfter time.Duration
	Err        error
}

func (e *ClientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("firewall client: %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("firewall client: %s: %v", e.Kind, e.Err)
}

func (e *ClientError) Unwrap() error { return e.Err }

// Retryable reports whether the failure may succeed on a later attempt.
func (e *ClientError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindServer, KindNetwork, KindTimeout:
		return true
	case KindAuth, KindBadRequest:
		return false
	}

	return false
}

// IsAuthError reports whether err is a non-retryable authentication failure.
func IsAuthError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Kind == KindAuth
}
