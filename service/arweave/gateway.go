package arweave

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultGatewayURL is the public Arweave gateway.
const DefaultGatewayURL = "https://arweave.net"

// DefaultMaxResponseBytes bounds how much of a gateway response is read into
// memory unless WithMaxResponseBytes says otherwise. Data responses are
// base64url, so the decoded payload limit is about three quarters of this.
const DefaultMaxResponseBytes int64 = 32 << 20

// Gateway is the set of Arweave ledger operations the lookup needs.
// This allows us to mock the gateway in tests without hitting a real node.
type Gateway interface {
	// GetTransactionData returns the transaction payload decoded to a string.
	GetTransactionData(ctx context.Context, id string) (string, error)

	// GetTransactionStatus returns the gateway's status response. A non-200
	// status is not an error; it is reported through TransactionStatus.Code.
	GetTransactionStatus(ctx context.Context, id string) (*TransactionStatus, error)

	// GetTransaction returns the transaction document, used for its tags.
	GetTransaction(ctx context.Context, id string) (*Transaction, error)

	// GetBlock returns the block identified by its independent hash.
	GetBlock(ctx context.Context, indepHash string) (*Block, error)
}

// httpGateway talks to an Arweave node or gateway over its HTTP API.
type httpGateway struct {
	baseURL          string
	httpClient       *http.Client
	maxResponseBytes int64
}

// GatewayOption configures an HTTP gateway.
type GatewayOption func(*httpGateway)

// WithMaxResponseBytes caps the size of any single gateway response.
// Values <= 0 keep DefaultMaxResponseBytes.
func WithMaxResponseBytes(n int64) GatewayOption {
	return func(g *httpGateway) {
		if n > 0 {
			g.maxResponseBytes = n
		}
	}
}

// NewHTTPGateway creates a Gateway backed by the HTTP API at baseURL
// (e.g. https://arweave.net). If httpClient is nil a client with a 30s
// timeout is used.
func NewHTTPGateway(baseURL string, httpClient *http.Client, opts ...GatewayOption) Gateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	g := &httpGateway{
		baseURL:          strings.TrimRight(baseURL, "/"),
		httpClient:       httpClient,
		maxResponseBytes: DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *httpGateway) GetTransactionData(ctx context.Context, id string) (string, error) {
	path := "/tx/" + url.PathEscape(id) + "/data"
	code, body, err := g.get(ctx, path)
	if err != nil {
		return "", err
	}
	if code != http.StatusOK {
		return "", unexpectedStatus(path, code)
	}

	data, err := DecodeString(strings.TrimSpace(string(body)))
	if err != nil {
		return "", fmt.Errorf("arweave: GET %s: decode data: %w", path, err)
	}
	return data, nil
}

func (g *httpGateway) GetTransactionStatus(ctx context.Context, id string) (*TransactionStatus, error) {
	path := "/tx/" + url.PathEscape(id) + "/status"
	code, body, err := g.get(ctx, path)
	if err != nil {
		return nil, err
	}

	status := &TransactionStatus{Code: code}
	if code != http.StatusOK {
		return status, nil
	}

	var confirmed Confirmation
	if err := json.Unmarshal(body, &confirmed); err != nil {
		return nil, fmt.Errorf("arweave: GET %s: decode status: %w", path, err)
	}
	status.Confirmed = &confirmed
	return status, nil
}

func (g *httpGateway) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	path := "/tx/" + url.PathEscape(id)
	var tx Transaction
	if err := g.getJSON(ctx, path, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (g *httpGateway) GetBlock(ctx context.Context, indepHash string) (*Block, error) {
	path := "/block/hash/" + url.PathEscape(indepHash)
	var block Block
	if err := g.getJSON(ctx, path, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// getJSON fetches path and decodes a 200 response into out.
func (g *httpGateway) getJSON(ctx context.Context, path string, out any) error {
	code, body, err := g.get(ctx, path)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return unexpectedStatus(path, code)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("arweave: GET %s: decode response: %w", path, err)
	}
	return nil
}

// get performs a GET against the gateway and returns status code and body.
func (g *httpGateway) get(ctx context.Context, path string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("arweave: create request for %s: %w", path, err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("arweave: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, g.maxResponseBytes+1))
	if err != nil {
		return 0, nil, fmt.Errorf("arweave: GET %s: read body: %w", path, err)
	}
	if int64(len(body)) > g.maxResponseBytes {
		return 0, nil, fmt.Errorf("arweave: GET %s: response exceeds %d bytes", path, g.maxResponseBytes)
	}

	return resp.StatusCode, body, nil
}

func unexpectedStatus(path string, code int) error {
	return fmt.Errorf("arweave: GET %s: unexpected status %d", path, code)
}
