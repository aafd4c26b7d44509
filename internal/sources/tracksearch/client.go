// Package tracksearch queries a music-metadata search API and returns the
// hits as external items. Requests are issued one at a time with a fixed
// minimum gap between them to stay under the provider's per-second quota.
package tracksearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"cadence/internal/config"
	"cadence/internal/logging"
	"cadence/internal/matching"
	"cadence/internal/services"
)

const userAgent = "cadence/track-search"

// Client is a serial, rate-spaced search client.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	limit   int
	delay   time.Duration
	logger  *slog.Logger

	mu   sync.Mutex
	last time.Time
}

// New constructs a client. A nil httpClient selects one with the configured
// request timeout.
func New(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(cfg.Import.RequestTimeoutSeconds) * time.Second}
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(cfg.TrackSearch.BaseURL, "/"),
		token:   cfg.TrackSearch.AccessToken,
		limit:   cfg.TrackSearch.Limit,
		delay:   time.Duration(cfg.TrackSearch.RequestDelayMS) * time.Millisecond,
		logger:  logging.NewComponentLogger(logger, "track-search"),
	}
}

type searchResponse struct {
	Tracks struct {
		Items []track `json:"items"`
	} `json:"tracks"`
}

type track struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name string `json:"name"`
	} `json:"album"`
	DurationMS int `json:"duration_ms"`
}

// Search returns the hits for one query.
func (c *Client) Search(ctx context.Context, query string) ([]matching.ExternalItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	defer func() { c.last = time.Now() }()

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(c.limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send search request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("track search returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	items := make([]matching.ExternalItem, 0, len(payload.Tracks.Items))
	for _, hit := range payload.Tracks.Items {
		if hit.ID == "" {
			continue
		}
		items = append(items, hit.externalItem(query))
	}
	return items, nil
}

// Items runs every query in scope (separated by newlines or semicolons)
// serially and returns the distinct hits in the order first seen.
func (c *Client) Items(ctx context.Context, scope string) ([]matching.ExternalItem, error) {
	queries := splitScope(scope)
	if len(queries) == 0 {
		return nil, services.Wrap(services.ErrValidation, "track-search", "items", "scope must contain at least one query", nil)
	}
	seen := make(map[string]struct{})
	var all []matching.ExternalItem
	for _, query := range queries {
		items, err := c.Search(ctx, query)
		if err != nil {
			return nil, services.Wrap(services.ErrExternal, "track-search", "search", query, err)
		}
		for _, item := range items {
			if _, dup := seen[item.ExternalID]; dup {
				continue
			}
			seen[item.ExternalID] = struct{}{}
			all = append(all, item)
		}
	}
	c.logger.Info("track search finished",
		logging.Int("queries", len(queries)),
		logging.Int("hits", len(all)),
	)
	return all, nil
}

// wait blocks until the configured gap has passed since the previous request
// finished. Callers hold c.mu for the whole request, so requests never
// overlap.
func (c *Client) wait(ctx context.Context) error {
	if c.last.IsZero() || c.delay <= 0 {
		return nil
	}
	remaining := c.delay - time.Since(c.last)
	if remaining <= 0 {
		return nil
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t track) externalItem(query string) matching.ExternalItem {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		if name := strings.TrimSpace(a.Name); name != "" {
			names = append(names, name)
		}
	}
	label := t.Name
	if len(names) > 0 {
		label = t.Name + " - " + names[0]
	}
	meta := map[string]string{
		"query":   query,
		"artists": strings.Join(names, ", "),
		"album":   t.Album.Name,
	}
	if t.DurationMS > 0 {
		meta["duration_ms"] = strconv.Itoa(t.DurationMS)
	}
	return matching.ExternalItem{
		ExternalID:  t.ID,
		SourceType:  matching.SourceTrackSearchHit,
		RawLabel:    label,
		RawMetadata: meta,
	}
}

func splitScope(scope string) []string {
	fields := strings.FieldsFunc(scope, func(r rune) bool { return r == '\n' || r == ';' })
	out := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
