// Package connector talks to the upstream inventory, transport and
// weather systems. The three share one REST convention: bearer-token
// auth, JSON bodies, bounded retry on transport errors and 5xx, and
// fail-fast on 4xx.
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zoobzio/clockz"

	"github.com/reliefops/logistics-agent/internal/config"
)

// APIError carries a non-2xx response. Callers can inspect Status to
// distinguish client mistakes from upstream trouble.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Body)
}

// Client is the shared HTTP plumbing under each system connector.
type Client struct {
	baseURL  string
	key      string
	http     *http.Client
	logger   *logrus.Logger
	attempts int
	delay    time.Duration
	clock    clockz.Clock
}

// NewClient builds a client for one endpoint using the shared API
// policy (timeout, retry budget).
func NewClient(endpoint config.EndpointConfig, api config.APIConfig, logger *logrus.Logger) *Client {
	attempts := api.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Client{
		baseURL:  strings.TrimRight(endpoint.URL, "/"),
		key:      endpoint.Key,
		http:     &http.Client{Timeout: time.Duration(api.TimeoutSec) * time.Second},
		logger:   logger,
		attempts: attempts,
		delay:    time.Duration(api.RetryDelaySec) * time.Second,
	}
}

// WithClock substitutes the retry-delay clock.
func (c *Client) WithClock(clock clockz.Clock) *Client {
	c.clock = clock
	return c
}

func (c *Client) getClock() clockz.Clock {
	if c.clock == nil {
		return clockz.RealClock
	}
	return c.clock
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) putJSON(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.getClock().After(c.delay):
			}
		}

		err := c.once(ctx, method, u, payload, out)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			return err
		}
		lastErr = err
		c.logger.WithFields(logrus.Fields{
			"method":  method,
			"path":    path,
			"attempt": attempt,
			"of":      c.attempts,
			"error":   err,
		}).Warn("api request failed")
	}
	return fmt.Errorf("%s %s after %d attempts: %w", method, path, c.attempts, lastErr)
}

func (c *Client) once(ctx context.Context, method, u string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
