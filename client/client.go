// Package client is the Go client for the arproxy HTTP API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Lookup statuses reported by the server.
const (
	StatusConfirmed    = "CONFIRMED"
	StatusNotConfirmed = "NOT_CONFIRMED"
)

// Transaction is the server's view of an Arweave transaction.
// Timestamp and Tags are only present once the transaction is confirmed.
type Transaction struct {
	ID        string            `json:"id"`
	Data      json.RawMessage   `json:"data"`
	Status    string            `json:"status"`
	Timestamp *int64            `json:"timestamp,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// MarshalJSON encodes t in the server's response shape: a confirmed
// transaction always carries timestamp and tags, an unconfirmed one never does.
func (t Transaction) MarshalJSON() ([]byte, error) {
	data := t.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}

	if !t.Confirmed() {
		return json.Marshal(struct {
			ID     string          `json:"id"`
			Data   json.RawMessage `json:"data"`
			Status string          `json:"status"`
		}{t.ID, data, t.Status})
	}

	var timestamp int64
	if t.Timestamp != nil {
		timestamp = *t.Timestamp
	}
	tags := t.Tags
	if tags == nil {
		tags = map[string]string{}
	}
	return json.Marshal(struct {
		ID        string            `json:"id"`
		Data      json.RawMessage   `json:"data"`
		Status    string            `json:"status"`
		Timestamp int64             `json:"timestamp"`
		Tags      map[string]string `json:"tags"`
	}{t.ID, data, t.Status, timestamp, tags})
}

// Confirmed reports whether the server considered the transaction confirmed.
func (t Transaction) Confirmed() bool {
	return t.Status == StatusConfirmed
}

// Client is the HTTP client for the arproxy service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new arproxy client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// GetTransaction looks up a transaction by id.
func (c *Client) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	if id == "" {
		return nil, fmt.Errorf("transaction id is required")
	}

	u := fmt.Sprintf("%s/api/arweave/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var tx Transaction
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("transaction fetched", "id", tx.ID, "status", tx.Status)
	return &tx, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned unhealthy status: %d", resp.StatusCode)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
// Lookup failures are a bare JSON string; other errors may use {"error": "..."}.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var message string
	if err := json.Unmarshal(body, &message); err == nil && message != "" {
		return fmt.Errorf("request failed: %s", message)
	}

	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return fmt.Errorf("request failed: %s", errResp.Error)
	}

	return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
