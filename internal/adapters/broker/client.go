// Package broker is the HTTP adapter to the manager bridge: the gateway
// process that fronts the trading platform's manager API. It implements
// ports.BrokerClient; payloads stay loosely typed because the bridge
// forwards platform structs with their original key casing.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// The manager API tolerates ~50 req/s per session; poll well under it.
	requestsPerSec = 30

	maxRetries    = 2
	baseRetryWait = 250 * time.Millisecond
)

// Client talks to the manager bridge with rate limiting and retries.
type Client struct {
	http      *http.Client
	baseURL   string
	login     int
	password  string
	limiter   *rate.Limiter
	connected bool
}

// Dial creates a Client and performs the session handshake against the
// bridge. A failed handshake still returns the client; Connected
// reports the session state.
func Dial(baseURL string, login int, password string) *Client {
	c := &Client{
		http:     &http.Client{Timeout: 10 * time.Second},
		baseURL:  baseURL,
		login:    login,
		password: password,
		limiter:  rate.NewLimiter(requestsPerSec, 10),
	}
	c.connected = c.handshake()
	return c
}

// handshake checks the bridge's session health endpoint.
func (c *Client) handshake() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var status struct {
		Connected bool `json:"connected"`
	}
	if err := c.get(ctx, c.baseURL+"/api/session", &status); err != nil {
		slog.Error("manager bridge handshake failed", "base_url", c.baseURL, "err", err)
		return false
	}
	return status.Connected
}

// Connected reports whether the manager session was live at dial time.
func (c *Client) Connected() bool {
	return c.connected
}

// GetAccountDetails fetches one account's financial state. An empty JSON
// object (or null) from the bridge yields an empty map; an HTTP error
// status, including 404 for an unknown account, is returned as an error.
func (c *Client) GetAccountDetails(ctx context.Context, loginID int) (map[string]any, error) {
	var details map[string]any
	u := fmt.Sprintf("%s/api/accounts/%d", c.baseURL, loginID)
	if err := c.get(ctx, u, &details); err != nil {
		return nil, fmt.Errorf("broker.GetAccountDetails: login %d: %w", loginID, err)
	}
	return details, nil
}

// GetOpenPositions fetches the account's open positions.
func (c *Client) GetOpenPositions(ctx context.Context, loginID int) ([]map[string]any, error) {
	var positions []map[string]any
	u := fmt.Sprintf("%s/api/accounts/%d/positions", c.baseURL, loginID)
	if err := c.get(ctx, u, &positions); err != nil {
		return nil, fmt.Errorf("broker.GetOpenPositions: login %d: %w", loginID, err)
	}
	return positions, nil
}

// GetClosedTrades fetches trades closed at or after since.
func (c *Client) GetClosedTrades(ctx context.Context, loginID int, since time.Time) ([]map[string]any, error) {
	var trades []map[string]any
	q := url.Values{"since": {strconv.FormatInt(since.Unix(), 10)}}
	u := fmt.Sprintf("%s/api/accounts/%d/trades?%s", c.baseURL, loginID, q.Encode())
	if err := c.get(ctx, u, &trades); err != nil {
		return nil, fmt.Errorf("broker.GetClosedTrades: login %d: %w", loginID, err)
	}
	return trades, nil
}

// get performs a GET with rate limiting and retries on transient errors.
func (c *Client) get(ctx context.Context, url string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.SetBasicAuth(strconv.Itoa(c.login), c.password)

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("bridge error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("bridge error %d: %s", resp.StatusCode, string(body))
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep waits with exponential backoff, respecting the context.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
