package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/feedfm/fmsession/internal/models"
)

// Client talks to a fmsessiond control API.
type Client struct {
	base   string
	apiKey string
	http   *http.Client
}

// NewClient returns a Client for the API at base, e.g. http://host:8080.
// A base without a scheme is taken as http.
func NewClient(base, apiKey string) *Client {
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		apiKey: apiKey,
		http:   &http.Client{},
	}
}

// Do sends body as JSON and decodes the response into out. Error bodies are
// returned as *models.AppError.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		appErr := &models.AppError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(appErr); err != nil || appErr.Message == "" {
			appErr.Code = "HTTP"
			appErr.Message = resp.Status
		}
		return appErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Subscribe reads the event stream and calls fn with each message's raw
// JSON until ctx is done, the stream ends, or fn returns an error.
func (c *Client) Subscribe(ctx context.Context, fn func(json.RawMessage) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/subscribe", nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("subscribe: %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if err := fn(json.RawMessage(data)); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}
