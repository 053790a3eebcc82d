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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/firewatch/pkg/models"
)

func mustDoc(t *testing.T, raw string) map[string]interface{} {
	t.Helper()

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	return doc
}

func TestExtractInt_FirstMatchWins(t *testing.T) {
	doc := mustDoc(t, `{"stats":{"ips_blocks":7},"ips_blocks_today":12}`)

	value, found := extractInt(doc, "ips_blocks_today", "stats.ips_blocks")
	assert.True(t, found)
	assert.Equal(t, int64(12), value)

	value, found = extractInt(doc, "stats.ips_blocks", "ips_blocks_today")
	assert.True(t, found)
	assert.Equal(t, int64(7), value)
}

func TestExtractInt_NestedPath(t *testing.T) {
	doc := mustDoc(t, `{"security_services":{"gateway_av":{"blocks":42}}}`)

	value, found := extractInt(doc, "gav_blocks_today", "security_services.gateway_av.blocks")
	assert.True(t, found)
	assert.Equal(t, int64(42), value)
}

func TestExtractInt_MissingDefaultsToZero(t *testing.T) {
	doc := mustDoc(t, `{"other":1}`)

	value, found := extractInt(doc, "a", "b.c")
	assert.False(t, found)
	assert.Zero(t, value)
}

func TestExtractInt_StringCoercion(t *testing.T) {
	doc := mustDoc(t, `{"blocks":"15","bad":"n/a"}`)

	value, found := extractInt(doc, "blocks")
	assert.True(t, found)
	assert.Equal(t, int64(15), value)

	// Unparseable input degrades to zero instead of failing.
	value, found = extractInt(doc, "bad")
	assert.True(t, found)
	assert.Zero(t, value)
}

func TestExtractFloat_PercentSuffix(t *testing.T) {
	doc := mustDoc(t, `{"cpu":"83.5%"}`)

	assert.InDelta(t, 83.5, extractFloat(doc, "cpu"), 0.001)
}

func TestNormalizeLinkState(t *testing.T) {
	tests := []struct {
		raw  string
		want models.LinkState
	}{
		{"up", models.LinkUp},
		{"UP", models.LinkUp},
		{"Connected", models.LinkUp},
		{"online", models.LinkUp},
		{"active", models.LinkUp},
		{"down", models.LinkDown},
		{"Disconnected", models.LinkDown},
		{"offline", models.LinkDown},
		{"inactive", models.LinkDown},
		{"link down", models.LinkDown},
		{"", models.LinkDown},
		{"garbage", models.LinkDown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeLinkState(tt.raw), "raw=%q", tt.raw)
	}
}

func TestParseExpiry(t *testing.T) {
	if got := parseExpiry("2026-03-01"); assert.NotNil(t, got) {
		assert.Equal(t, 2026, got.Year())
	}

	if got := parseExpiry("2026-03-01T12:00:00Z"); assert.NotNil(t, got) {
		assert.Equal(t, time.March, got.Month())
	}

	if got := parseExpiry(float64(1767225600)); assert.NotNil(t, got) {
		assert.Equal(t, 2026, got.UTC().Year())
	}

	assert.Nil(t, parseExpiry("soon"))
	assert.Nil(t, parseExpiry(nil))
}
