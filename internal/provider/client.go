// Package provider fetches posts, autocomplete suggestions and tag metadata
// from the supported booru backends behind one interface.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"booru_feed/internal/model"
)

// Defaults for the provider endpoints and transport.
const (
	DefaultRule34Base    = "https://api.rule34.xxx"
	DefaultRealbooruBase = "https://realbooru.com"
	DefaultTimeout       = 15 * time.Second

	// RealbooruPageSize is the fixed number of posts on a RealBooru listing page.
	RealbooruPageSize = 42

	maxBodySize = 5 * 1024 * 1024
	userAgent   = "BooruFeed/1.0"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// SettingsSource supplies the current provider settings (credentials, proxy).
type SettingsSource interface {
	Settings() model.Settings
}

// StaticSettings is a SettingsSource that never changes.
type StaticSettings model.Settings

// Settings implements SettingsSource.
func (s StaticSettings) Settings() model.Settings { return model.Settings(s) }

// ListRequest asks for one page of posts. Page counts pages of Limit posts.
type ListRequest struct {
	Provider model.Provider
	Query    string
	Limit    int
	Page     int
}

// Client talks to both providers.
type Client struct {
	client        HTTPClient
	settings      SettingsSource
	rule34Base    string
	realbooruBase string
	timeout       time.Duration
}

// New creates a Client with the given HTTP client and settings source.
func New(client HTTPClient, settings SettingsSource) *Client {
	return &Client{
		client:        client,
		settings:      settings,
		rule34Base:    DefaultRule34Base,
		realbooruBase: DefaultRealbooruBase,
		timeout:       DefaultTimeout,
	}
}

// SetBaseURLs overrides the provider endpoints. Empty values keep the current one.
func (c *Client) SetBaseURLs(rule34, realbooru string) {
	if rule34 != "" {
		c.rule34Base = strings.TrimRight(rule34, "/")
	}
	if realbooru != "" {
		c.realbooruBase = strings.TrimRight(realbooru, "/")
	}
}

// SetTimeout overrides the default 15-second per-call timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// ListPosts fetches one page of posts from the requested provider.
func (c *Client) ListPosts(ctx context.Context, req ListRequest) (RawResult, error) {
	switch req.Provider {
	case model.ProviderRule34:
		return c.rule34Posts(ctx, req)
	case model.ProviderRealbooru:
		return c.realbooruPosts(ctx, req)
	default:
		return RawResult{}, fmt.Errorf("unknown provider %q", req.Provider)
	}
}

// Autocomplete returns tag suggestions for prefix. Providers without an
// autocomplete endpoint return no suggestions.
func (c *Client) Autocomplete(ctx context.Context, prefix string, p model.Provider) ([]model.Suggestion, error) {
	if p != model.ProviderRule34 || strings.TrimSpace(prefix) == "" {
		return nil, nil
	}
	return c.rule34Autocomplete(ctx, prefix)
}

// TagMetadata returns metadata for the named tag. Providers without a tag
// endpoint return nothing.
func (c *Client) TagMetadata(ctx context.Context, name string, p model.Provider) ([]model.TagInfo, error) {
	if p != model.ProviderRule34 || name == "" {
		return nil, nil
	}
	return c.rule34TagMeta(ctx, name)
}

// Probe checks that a media URL is reachable.
func (c *Client) Probe(ctx context.Context, url string) error {
	resp, err := c.do(ctx, http.MethodHead, url, "*/*")
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode == http.StatusMethodNotAllowed {
		resp, err = c.do(ctx, http.MethodGet, url, "*/*")
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchError{Status: resp.StatusCode}
	}
	return nil
}

// fetch performs a GET with the per-call timeout and returns the body.
func (c *Client) fetch(ctx context.Context, url, accept string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, failure(ctx, fmt.Errorf("http get: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, failure(ctx, fmt.Errorf("read body: %w", err))
	}
	return body, nil
}

// do issues a request whose body the caller closes. Probe uses it so the
// media body is never downloaded.
func (c *Client) do(ctx context.Context, method, url, accept string) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		cancel()
		return nil, &FetchError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", userAgent)
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		cancel()
		return nil, failure(ctx, fmt.Errorf("http %s: %w", strings.ToLower(method), err))
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

func failure(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &FetchError{Timeout: true, Err: err}
	}
	return &FetchError{Err: err}
}
