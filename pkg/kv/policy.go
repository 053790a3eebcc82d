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

// FailurePolicy decides what callers do when the store is unavailable.
type FailurePolicy int

const (
	// FailOpen permits the guarded operation when the store cannot answer.
	FailOpen FailurePolicy = iota
	// FailClosed denies the guarded operation when the store cannot answer.
	FailClosed
)

// Resource names the store-backed concerns with a failure policy.
type Resource string

const (
	ResourceRateLimit    Resource = "ratelimit"
	ResourceAlertDedup   Resource = "alert_dedup"
	ResourcePollingState Resource = "polling_state"
	ResourceCredentials  Resource = "credentials"
)

// failurePolicies is the single authority on fail-open vs fail-closed.
// Rate limiting and alert dedup prefer availability; polling state cannot be
// diffed safely without a prior read, and credential handling never degrades.
var failurePolicies = map[Resource]FailurePolicy{
	ResourceRateLimit:    FailOpen,
	ResourceAlertDedup:   FailOpen,
	ResourcePollingState: FailClosed,
	ResourceCredentials:  FailClosed,
}

// PolicyFor returns the failure policy for a resource. Unknown resources fail
// closed.
func PolicyFor(r Resource) FailurePolicy {
	if p, ok := failurePolicies[r]; ok {
		return p
	}

	return FailClosed
}
