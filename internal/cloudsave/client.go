// Package cloudsave talks to the game's cloud-save service: custom item
// collections (the gift code inventory, game version records) and per-player
// items (save data).
package cloudsave

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"giftbot/lib/sl"
)

type Config struct {
	BaseURL       string
	ProjectID     string
	EnvironmentID string
	KeyID         string
	SecretKey     string
	Timeout       time.Duration
}

// Client is an authenticated cloud-save connection shared by the inventory
// store and the player data operations.
type Client struct {
	hc         *http.Client
	projectURL string
	keyID      string
	secretKey  string
	log        *slog.Logger
}

// Item is one key/value entry. Values are usually a JSON document serialized
// into a string.
type Item struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type ItemsResponse struct {
	Results []Item `json:"results"`
	Links   struct {
		Next string `json:"next"`
	} `json:"links"`
}

type SaveRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.ProjectID == "" || cfg.EnvironmentID == "" {
		return nil, fmt.Errorf("cloud save: project and environment ids are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		hc: &http.Client{Timeout: cfg.Timeout},
		projectURL: fmt.Sprintf("%s/projects/%s/environments/%s",
			base, url.PathEscape(cfg.ProjectID), url.PathEscape(cfg.EnvironmentID)),
		keyID:     cfg.KeyID,
		secretKey: cfg.SecretKey,
		log:       logger.With(sl.Module("cloudsave")),
	}, nil
}

// CustomItemsURL is the items endpoint of a custom collection.
func (c *Client) CustomItemsURL(collection string) string {
	return fmt.Sprintf("%s/custom/%s/items", c.projectURL, url.PathEscape(collection))
}

// PlayerItemsURL is the items endpoint of one player.
func (c *Client) PlayerItemsURL(playerID string) string {
	return fmt.Sprintf("%s/players/%s/items", c.projectURL, url.PathEscape(playerID))
}

// Do sends an authenticated call and returns the body of a 2xx response.
// The status code is returned on errors too.
func (c *Client) Do(ctx context.Context, method, endpoint string, payload interface{}) (int, []byte, error) {
	log := c.log.With(
		slog.String("method", method),
		slog.String("endpoint", endpoint),
	)

	status := "ERROR"
	t1 := time.Now()
	defer func() {
		log.Debug("cloud save request completed",
			slog.String("duration", fmt.Sprintf("%.3fms", float64(time.Since(t1))/float64(time.Millisecond))),
			slog.String("status", status))
	}()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.secretKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("cloud save request: %w", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)

	status = resp.Status
	if resp.StatusCode >= 300 {
		return resp.StatusCode, data, fmt.Errorf("cloud save %s: %s", resp.Status, bytes.TrimSpace(data))
	}
	return resp.StatusCode, data, nil
}

// GetItems reads the items endpoint, optionally restricted to keys.
func (c *Client) GetItems(ctx context.Context, endpoint string, keys ...string) (*ItemsResponse, error) {
	if len(keys) > 0 {
		endpoint += "?" + url.Values{"keys": {strings.Join(keys, ",")}}.Encode()
	}
	_, data, err := c.Do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var resp ItemsResponse
	if err = json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return &resp, nil
}

// SetItem writes value under key, serialized into the string form.
func (c *Client) SetItem(ctx context.Context, endpoint, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal item %s: %w", key, err)
	}
	_, _, err = c.Do(ctx, http.MethodPost, endpoint, SaveRequest{Key: key, Value: string(data)})
	return err
}

// NextPage resolves a pagination link against the current endpoint; an empty
// next link ends the scan.
func NextPage(current, next string) (string, error) {
	if next == "" {
		return "", nil
	}
	base, err := url.Parse(current)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(next)
	if err != nil {
		return "", fmt.Errorf("cloud save: bad next link %q: %w", next, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Document returns the JSON document held by an item, accepting the value
// either as a string holding the document or as the document itself.
func (it Item) Document() ([]byte, error) {
	raw := bytes.TrimSpace(it.Value)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode value string: %w", err)
		}
		raw = []byte(s)
	}
	return raw, nil
}
