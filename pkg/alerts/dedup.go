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

package alerts

import (
	"fmt"

	"github.com/carverauto/firewatch/pkg/models"
)

// changeThreshold is the relative movement a numeric metadata value needs to
// escape suppression.
const changeThreshold = 0.01

func dedupKey(alert *models.Alert) string {
	device := alert.DeviceID
	if device == "" {
		device = "unmatched"
	}

	return fmt.Sprintf("firewall:alert:dedup:%s:%s:%s", device, alert.Type, alert.Severity)
}

// materiallyChanged reports whether the new metadata differs enough from the
// cached metadata to justify re-raising a suppressed alert: any numeric value
// moved by more than 1% relative, or any non-numeric value changed.
func materiallyChanged(cached, next map[string]interface{}) bool {
	if len(cached) != len(next) {
		return true
	}

	for key, newVal := range next {
		oldVal, ok := cached[key]
		if !ok {
			return true
		}

		newNum, newIsNum := toFloat(newVal)
		oldNum, oldIsNum := toFloat(oldVal)

		if newIsNum && oldIsNum {
			if numericallyChanged(oldNum, newNum) {
				return true
			}

			continue
		}

		if fmt.Sprintf("%v", oldVal) != fmt.Sprintf("%v", newVal) {
			return true
		}
	}

	return false
}

func numericallyChanged(old, next float64) bool {
	if old == next {
		return false
	}

	if old == 0 {
		return true
	}

	delta := (next - old) / old
	if delta < 0 {
		delta = -delta
	}

	return delta > changeThreshold
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}

	return 0, false
}
