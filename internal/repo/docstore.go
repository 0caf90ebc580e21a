package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pulsewatch/pulse-alerting/internal/cache"
	"github.com/pulsewatch/pulse-alerting/internal/models"
)

// DocStoreClient talks to the hosted multi-tenant document store through its
// narrow repository API: get, query, put and partial update. It is the only
// persistence path the alerting core uses.
type DocStoreClient struct {
	endpoint       string
	apiKey         string
	httpClient     *http.Client
	cache          cache.Provider
	preferencesTTL time.Duration
	channelsTTL    time.Duration
}

// NewDocStoreClient constructs a document store client. cacheProvider may be
// nil; reads then always go to the store.
func NewDocStoreClient(endpoint, apiKey string, timeout time.Duration, cacheProvider cache.Provider, preferencesTTL, channelsTTL time.Duration) *DocStoreClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if preferencesTTL < 0 {
		preferencesTTL = 0
	}
	if channelsTTL < 0 {
		channelsTTL = 0
	}
	return &DocStoreClient{
		endpoint:       strings.TrimRight(endpoint, "/"),
		apiKey:         apiKey,
		httpClient:     &http.Client{Timeout: timeout},
		cache:          cacheProvider,
		preferencesTTL: preferencesTTL,
		channelsTTL:    channelsTTL,
	}
}

// GetIncident fetches one incident; a missing document yields (nil, nil).
func (c *DocStoreClient) GetIncident(ctx context.Context, orgID, id string) (*models.AlertIncident, error) {
	var incident models.AlertIncident
	found, err := c.getJSON(ctx, c.url("incidents/%s", orgID, id), &incident)
	if err != nil {
		return nil, fmt.Errorf("get incident: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &incident, nil
}

// QueryOpenIncidents returns the tenant's open incidents started at or after
// the given instant. Result order is store-defined.
func (c *DocStoreClient) QueryOpenIncidents(ctx context.Context, orgID string, startedAfter time.Time) ([]models.AlertIncident, error) {
	filters := map[string]any{
		"status":       models.IncidentOpen,
		"startedAfter": startedAfter.UTC().Format(time.RFC3339),
	}

	var response struct {
		Incidents []models.AlertIncident `json:"incidents"`
	}
	if err := c.postJSON(ctx, c.url("incidents/query", orgID), filters, &response); err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}
	return response.Incidents, nil
}

// QueryResolvedIncidents returns resolved incidents inside the time range,
// feeding the hotspot miner.
func (c *DocStoreClient) QueryResolvedIncidents(ctx context.Context, orgID string, start, end time.Time) ([]models.AlertIncident, error) {
	filters := map[string]any{
		"status":        models.IncidentResolved,
		"startedAfter":  start.UTC().Format(time.RFC3339),
		"startedBefore": end.UTC().Format(time.RFC3339),
	}

	var response struct {
		Incidents []models.AlertIncident `json:"incidents"`
	}
	if err := c.postJSON(ctx, c.url("incidents/query", orgID), filters, &response); err != nil {
		return nil, fmt.Errorf("query resolved incidents: %w", err)
	}
	return response.Incidents, nil
}

// PutIncident stores a full incident document.
func (c *DocStoreClient) PutIncident(ctx context.Context, orgID string, incident models.AlertIncident) error {
	if err := c.send(ctx, http.MethodPut, c.url("incidents/%s", orgID, incident.ID), incident); err != nil {
		return fmt.Errorf("put incident: %w", err)
	}
	return nil
}

// UpdateIncident applies a partial field update to an incident document.
func (c *DocStoreClient) UpdateIncident(ctx context.Context, orgID, id string, fields map[string]any) error {
	if err := c.send(ctx, http.MethodPatch, c.url("incidents/%s", orgID, id), fields); err != nil {
		return fmt.Errorf("update incident: %w", err)
	}
	return nil
}

// ListPreferences returns the tenant's enabled notification preferences,
// served cache-aside when a preferences TTL is configured.
func (c *DocStoreClient) ListPreferences(ctx context.Context, orgID string) ([]models.NotificationPreference, error) {
	key := "prefs:" + orgID
	if c.preferencesTTL > 0 {
		if data, err := c.cache.Get(ctx, key); err == nil {
			var cached []models.NotificationPreference
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var response struct {
		Preferences []models.NotificationPreference `json:"preferences"`
	}
	found, err := c.getJSON(ctx, c.url("preferences", orgID)+"?enabled=true", &response)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	if !found {
		return nil, nil
	}

	if c.preferencesTTL > 0 {
		if data, err := json.Marshal(response.Preferences); err == nil {
			_ = c.cache.Set(ctx, key, data, c.preferencesTTL)
		}
	}
	return response.Preferences, nil
}

// GetChannel fetches one channel config; a missing document yields (nil, nil).
func (c *DocStoreClient) GetChannel(ctx context.Context, orgID, id string) (*models.NotificationChannelConfig, error) {
	key := "channel:" + orgID + ":" + id
	if c.channelsTTL > 0 {
		if data, err := c.cache.Get(ctx, key); err == nil {
			var cached models.NotificationChannelConfig
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	var channel models.NotificationChannelConfig
	found, err := c.getJSON(ctx, c.url("channels/%s", orgID, id), &channel)
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	if !found {
		return nil, nil
	}

	if c.channelsTTL > 0 {
		if data, err := json.Marshal(channel); err == nil {
			_ = c.cache.Set(ctx, key, data, c.channelsTTL)
		}
	}
	return &channel, nil
}

// TouchChannelLastUsed records the last successful delivery time for a
// channel and invalidates its cached config.
func (c *DocStoreClient) TouchChannelLastUsed(ctx context.Context, orgID, id string, at time.Time) error {
	fields := map[string]any{"lastUsedAt": at.UTC().Format(time.RFC3339)}
	if err := c.send(ctx, http.MethodPatch, c.url("channels/%s", orgID, id), fields); err != nil {
		return fmt.Errorf("touch channel: %w", err)
	}
	_ = c.cache.Del(ctx, "channel:"+orgID+":"+id)
	return nil
}

func (c *DocStoreClient) url(format, orgID string, args ...any) string {
	suffix := format
	if len(args) > 0 {
		suffix = fmt.Sprintf(format, args...)
	}
	return fmt.Sprintf("%s/v1/orgs/%s/%s", c.endpoint, orgID, suffix)
}

// getJSON issues a GET; the bool result reports whether the document exists.
func (c *DocStoreClient) getJSON(ctx context.Context, url string, out any) (bool, error) {
	if c.endpoint == "" {
		return false, fmt.Errorf("document store endpoint not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, httpError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return true, nil
}

func (c *DocStoreClient) postJSON(ctx context.Context, url string, payload, out any) error {
	if c.endpoint == "" {
		return fmt.Errorf("document store endpoint not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *DocStoreClient) send(ctx context.Context, method, url string, payload any) error {
	if c.endpoint == "" {
		return fmt.Errorf("document store endpoint not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpError(resp)
	}
	return nil
}

func (c *DocStoreClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func httpError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("document store returned %d: %s", resp.StatusCode, msg)
}
