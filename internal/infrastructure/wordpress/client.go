package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ContentRewriter/internal/config"
	"ContentRewriter/internal/domain"
	"ContentRewriter/internal/ports"
	"ContentRewriter/internal/retry"
)

const (
	postsPath = "/wp-json/wp/v2/posts"
	mePath    = "/wp-json/wp/v2/users/me"
)

// Client publishes approved articles through the WordPress REST API.
type Client struct {
	baseURL  string
	username string
	password string
	status   string
	http     *http.Client
}

var _ ports.PublicationSink = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(cfg config.WordPressConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	status := cfg.Status
	if status == "" {
		status = "publish"
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		status:   status,
		http:     &http.Client{Timeout: timeout},
	}
}

// Configured reports whether all credentials are present.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.username != "" && c.password != ""
}

// VerifyCredentials checks the account behind the application password.
func (c *Client) VerifyCredentials(ctx context.Context) error {
	if !c.Configured() {
		return fmt.Errorf("wordpress credentials missing: %w", domain.ErrUnauthorized)
	}
	var me struct {
		Name string `json:"name"`
	}
	return c.do(ctx, http.MethodGet, mePath, nil, &me)
}

// Publish creates a post from the approved record and returns its link.
func (c *Client) Publish(ctx context.Context, record domain.ApprovalRecord) (domain.Publication, error) {
	if !c.Configured() {
		return domain.Publication{}, fmt.Errorf("wordpress credentials missing: %w", domain.ErrUnauthorized)
	}

	payload := map[string]any{
		"title":   record.Result.Title,
		"content": record.Result.Body,
		"excerpt": record.Result.MetaDescription,
		"status":  c.status,
	}

	var resp struct {
		ID   int64  `json:"id"`
		Link string `json:"link"`
	}
	if err := c.do(ctx, http.MethodPost, postsPath, payload, &resp); err != nil {
		return domain.Publication{}, err
	}

	return domain.Publication{URL: resp.Link}, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, v any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("wordpress %s %s: %s: %w", method, path, resp.Status, domain.ErrUnauthorized)
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		statusErr := fmt.Errorf("wordpress %s %s: unexpected status %s: %s", method, path, resp.Status, strings.TrimSpace(string(snippet)))
		if resp.StatusCode >= http.StatusInternalServerError {
			return retry.Retryable(statusErr)
		}
		return statusErr
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
