package mt5

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	dhcfg "dojihunter/internal/config"
	"dojihunter/internal/market"
	"dojihunter/internal/pkg/circuit"
)

// Client talks to the Python MT5 bridge over REST. Every call carries the
// request context and the configured timeout so a stalled bridge cannot
// hang a cycle. A circuit breaker turns a dead bridge into fast failures
// instead of a full timeout per call.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	breaker    *circuit.Breaker
}

var _ Gateway = (*Client)(nil)

// NewClient constructs an MT5 bridge client from configuration.
func NewClient(cfg dhcfg.MT5Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BridgeURL)
	if raw == "" {
		return nil, fmt.Errorf("mt5.bridge_url cannot be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing mt5.bridge_url failed: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    circuit.NewBreaker("mt5-bridge", 5, 30*time.Second),
	}, nil
}

func (c *Client) endpoint(path string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) (int, error) {
	target := c.endpoint(path)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) (int, error) {
	if !c.breaker.Allow() {
		return 0, fmt.Errorf("mt5 bridge circuit open, request to %s refused", req.URL.Path)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return 0, fmt.Errorf("mt5 bridge request failed: %w", err)
	}
	c.breaker.RecordSuccess()
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("reading mt5 bridge response: %w", err)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding mt5 bridge response (%s): %w", req.URL.Path, err)
		}
	}
	return resp.StatusCode, nil
}

// GetCandles fetches count bars for symbol/timeframe, oldest first.
func (c *Client) GetCandles(ctx context.Context, symbol, timeframe string, count int) (market.Candles, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("timeframe", timeframe)
	q.Set("count", fmt.Sprintf("%d", count))
	var candles market.Candles
	status, err := c.getJSON(ctx, "/candles", q, &candles)
	if err != nil {
		return nil, fmt.Errorf("getting candles for %s: %w", symbol, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("getting candles for %s: bridge returned %d", symbol, status)
	}
	return candles, nil
}

// GetPositions returns the gateway's live position set. A transport or
// decode failure is an error; a Success=false payload is passed through so
// the caller can surface the bridge's own message.
func (c *Client) GetPositions(ctx context.Context) (PositionsResult, error) {
	var out PositionsResult
	if _, err := c.getJSON(ctx, "/positions", nil, &out); err != nil {
		return PositionsResult{}, fmt.Errorf("getting positions: %w", err)
	}
	return out, nil
}

// GetPosition checks whether the position with the given ticket exists.
// The bridge answers 404 with exists=false, which is a valid reply, not an
// error.
func (c *Client) GetPosition(ctx context.Context, ticket int64) (VerifyResult, error) {
	var raw struct {
		Exists bool `json:"exists"`
		Position
	}
	status, err := c.getJSON(ctx, fmt.Sprintf("/positions/%d", ticket), nil, &raw)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("verifying position %d: %w", ticket, err)
	}
	if status == http.StatusNotFound {
		return VerifyResult{Exists: false}, nil
	}
	return VerifyResult{Exists: raw.Exists, Position: raw.Position}, nil
}

// PlaceOrder submits a market order. A Success=false result is returned
// as-is: rejection is an outcome, not a transport error.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	var out OrderResult
	if _, err := c.postJSON(ctx, "/order", req, &out); err != nil {
		return OrderResult{}, fmt.Errorf("placing order for %s: %w", req.Symbol, err)
	}
	return out, nil
}

// ClosePosition asks the bridge to close the position with the given ticket.
func (c *Client) ClosePosition(ctx context.Context, ticket int64) (CloseResult, error) {
	var out CloseResult
	if _, err := c.postJSON(ctx, fmt.Sprintf("/close/%d", ticket), nil, &out); err != nil {
		return CloseResult{}, fmt.Errorf("closing position %d: %w", ticket, err)
	}
	return out, nil
}

// TradingHealth asks the bridge whether the terminal is connected and
// trading is allowed.
func (c *Client) TradingHealth(ctx context.Context) (Health, error) {
	var out Health
	if _, err := c.getJSON(ctx, "/health/trading", nil, &out); err != nil {
		return Health{Ready: false, Errors: []string{err.Error()}}, err
	}
	return out, nil
}
