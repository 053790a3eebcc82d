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

// Package firewall implements the resilient protocol client for the
// appliance management API.
package firewall

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/firewatch/pkg/logger"
	"github.com/carverauto/firewatch/pkg/models"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultMaxRetries     = 4

	authPath       = "/api/v1/auth/login"
	statisticsPath = "/api/v1/statistics"
	healthPath     = "/api/v1/system/health"
	interfacesPath = "/api/v1/interfaces"
	vpnPath        = "/api/v1/vpn/policies"
	licensesPath   = "/api/v1/licenses"
)

// tokenBodyPaths are the candidate body fields carrying the session token.
var tokenBodyPaths = []string{"token", "auth_token", "access_token", "data.token", "data.access_token"}

// Client is a per-device API client. It authenticates lazily, retries
// transient failures per the retry envelope, and re-authenticates once when a
// session expires mid-request.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     logger.Logger

	mu    sync.Mutex
	token string

	// sleep is a seam for tests; production uses a context-aware timer.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient builds a client for one device.
func NewClient(cfg Config, log logger.Logger) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	return &Client{
		config:     cfg,
		httpClient: &http.Client{},
		logger:     log,
		sleep:      sleepContext,
	}
}

// Authenticate posts the device credentials and stores the session token.
func (c *Client) Authenticate(ctx context.Context) error {
	token, err := c.fetchToken(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	return nil
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"username": c.config.Username,
		"password": c.config.Password,
	})
	if err != nil {
		return "", err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost,
		c.config.BaseURL+authPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransport(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp)
	}

	if token := tokenFromHeaders(resp.Header); token != "" {
		return token, nil
	}

	doc := map[string]interface{}{}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err == nil {
		if token := extractString(doc, tokenBodyPaths...); token != "" {
			return token, nil
		}
	}

	return "", &ClientError{Kind: KindAuth, Err: errAuthTokenMissing}
}

func tokenFromHeaders(h http.Header) string {
	if auth := h.Get("Authorization"); auth != "" {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer"))
	}

	return h.Get("X-Auth-Token")
}

// GetStatistics fetches the security-service block counters.
func (c *Client) GetStatistics(ctx context.Context) (*Statistics, error) {
	doc, err := c.fetch(ctx, statisticsPath)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{}

	for _, fp := range counterPaths {
		value, found := extractInt(doc, fp.Paths...)
		if !found {
			continue
		}

		stats.EnabledFeatures = append(stats.EnabledFeatures, featureForCounter(fp.Field))
		setCounter(&stats.Counters, fp.Field, value)
	}

	return stats, nil
}

// GetHealth fetches CPU/RAM/uptime and auxiliary status strings.
func (c *Client) GetHealth(ctx context.Context) (*Health, error) {
	doc, err := c.fetch(ctx, healthPath)
	if err != nil {
		return nil, err
	}

	return &Health{
		CPUPercent:    extractFloat(doc, healthFloatPaths["cpu"]...),
		RAMPercent:    extractFloat(doc, healthFloatPaths["ram"]...),
		UptimeSeconds: firstInt(doc, healthIntPaths["uptime"]...),
		HAStatus:      extractString(doc, healthStringPaths["ha_status"]...),
		WifiStatus:    extractString(doc, healthStringPaths["wifi_status"]...),
	}, nil
}

// GetInterfaces fetches the interface table with normalized link states.
func (c *Client) GetInterfaces(ctx context.Context) ([]Interface, error) {
	doc, err := c.fetch(ctx, interfacesPath)
	if err != nil {
		return nil, err
	}

	items := extractList(doc, "interfaces", "data", "items")
	result := make([]Interface, 0, len(items))

	for _, item := range items {
		result = append(result, Interface{
			Name:   extractString(item, "name", "iface", "interface_name"),
			Zone:   strings.ToLower(extractString(item, "zone", "zone_name", "assigned_zone")),
			Status: NormalizeLinkState(extractString(item, "status", "link_status", "state")),
		})
	}

	return result, nil
}

// GetVPNPolicies fetches site-to-site VPN policies with normalized tunnel
// states.
func (c *Client) GetVPNPolicies(ctx context.Context) ([]VPNPolicy, error) {
	doc, err := c.fetch(ctx, vpnPath)
	if err != nil {
		return nil, err
	}

	items := extractList(doc, "policies", "vpn_policies", "data", "items")
	result := make([]VPNPolicy, 0, len(items))

	for _, item := range items {
		enabled := true
		if raw, ok := lookupPath(item, "enabled"); ok {
			if b, ok := raw.(bool); ok {
				enabled = b
			}
		}

		result = append(result, VPNPolicy{
			Name:    extractString(item, "name", "policy_name"),
			Enabled: enabled,
			Status:  NormalizeLinkState(extractString(item, "status", "tunnel_status", "state")),
		})
	}

	return result, nil
}

// GetLicenses fetches the licensed feature set with expiry timestamps.
func (c *Client) GetLicenses(ctx context.Context) ([]License, error) {
	doc, err := c.fetch(ctx, licensesPath)
	if err != nil {
		return nil, err
	}

	items := extractList(doc, "licenses", "data", "items")
	result := make([]License, 0, len(items))

	for _, item := range items {
		licensed := true
		if raw, ok := lookupPath(item, "licensed"); ok {
			if b, ok := raw.(bool); ok {
				licensed = b
			}
		}

		var expires *time.Time

		for _, path := range []string{"expires_at", "expiration", "expiry_date", "expire_date"} {
			if raw, ok := lookupPath(item, path); ok {
				if t := parseExpiry(raw); t != nil {
					expires = t
					break
				}
			}
		}

		result = append(result, License{
			Feature:   extractString(item, "feature", "name", "service"),
			Licensed:  licensed,
			ExpiresAt: expires,
		})
	}

	return result, nil
}

// fetch performs a GET under the retry envelope and parses the body into a
// permissive document.
func (c *Client) fetch(ctx context.Context, path string) (map[string]interface{}, error) {
	var doc map[string]interface{}

	err := c.withRetry(ctx, path, func(ctx context.Context) error {
		var err error
		doc, err = c.get(ctx, path)
		return err
	})
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// get issues one authenticated GET, logging in first when no session exists.
// A login failure is surfaced directly; only a 401 on the data request itself
// means the session expired and triggers one re-authentication and one repeat
// of the request.
func (c *Client) get(ctx context.Context, path string) (map[string]interface{}, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	if token == "" {
		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
	}

	doc, err := c.getOnce(ctx, path)

	if IsAuthError(err) {
		if authErr := c.Authenticate(ctx); authErr != nil {
			return nil, authErr
		}

		return c.getOnce(ctx, path)
	}

	return doc, err
}

func (c *Client) getOnce(ctx context.Context, path string) (map[string]interface{}, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp)
	}

	return decodeDocument(resp.Body)
}

// decodeDocument parses a response body into a map. Bare JSON arrays are
// wrapped under "data" so list extraction stays uniform.
func decodeDocument(r io.Reader) (map[string]interface{}, error) {
	var raw interface{}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		// Malformed bodies degrade to an empty document rather than
		// failing the poll.
		return map[string]interface{}{}, nil
	}

	switch v := raw.(type) {
	case map[string]interface{}:
		return v, nil
	case []interface{}:
		return map[string]interface{}{"data": v}, nil
	}

	return map[string]interface{}{}, nil
}

// extractList finds the first candidate key holding a list of objects.
func extractList(doc map[string]interface{}, paths ...string) []map[string]interface{} {
	for _, path := range paths {
		raw, ok := lookupPath(doc, path)
		if !ok {
			continue
		}

		list, ok := raw.([]interface{})
		if !ok {
			continue
		}

		items := make([]map[string]interface{}, 0, len(list))

		for _, entry := range list {
			if m, ok := entry.(map[string]interface{}); ok {
				items = append(items, m)
			}
		}

		return items
	}

	return nil
}

func firstInt(doc map[string]interface{}, paths ...string) int64 {
	value, _ := extractInt(doc, paths...)
	return value
}

func setCounter(set *models.CounterSet, field string, value int64) {
	switch field {
	case "gav_blocks_today":
		set.GatewayAVBlocks = value
	case "ips_blocks_today":
		set.IPSBlocks = value
	case "spyware_blocks_today":
		set.AntiSpywareBlocks = value
	case "botnet_blocks_today":
		set.BotnetBlocks = value
	case "geoip_blocks_today":
		set.GeoIPBlocks = value
	case "cfs_blocks_today":
		set.ContentFilterBlocks = value
	case "appctrl_blocks_today":
		set.AppControlBlocks = value
	}
}

func featureForCounter(field string) string {
	switch field {
	case "gav_blocks_today":
		return "gateway_av"
	case "ips_blocks_today":
		return "ips"
	case "spyware_blocks_today":
		return "anti_spyware"
	case "botnet_blocks_today":
		return "botnet"
	case "geoip_blocks_today":
		return "geo_ip"
	case "cfs_blocks_today":
		return "content_filter"
	case "appctrl_blocks_today":
		return "app_control"
	}

	return field
}

func classifyStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	err := fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(body)))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &ClientError{Kind: KindAuth, StatusCode: resp.StatusCode, Err: err}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &ClientError{
			Kind:       KindRateLimited,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        err,
		}
	case resp.StatusCode >= 500:
		return &ClientError{Kind: KindServer, StatusCode: resp.StatusCode, Err: err}
	}

	return &ClientError{Kind: KindBadRequest, StatusCode: resp.StatusCode, Err: err}
}

func classifyTransport(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &ClientError{Kind: KindTimeout, Err: err}
	}

	return &ClientError{Kind: KindNetwork, Err: err}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}

	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}

	return 0
}
