// Package rest talks to the storefront REST collaborator over the fiber
// HTTP client.
package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/client"

	"github.com/lborres/shopfront/core"
	"github.com/lborres/shopfront/pkg/crypto"
)

const (
	DefaultTimeout  = 15 * time.Second
	HeaderRequestID = "X-Request-ID"

	requestIDSize = 16
)

type Config struct {
	// BaseURL is the API root, e.g. https://shop.example.com/api.
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client implements core.API. Every request carries a fresh request id
// and, when a credential source is set and yields one, a bearer credential.
type Client struct {
	http    *client.Client
	baseURL string
	ids     *crypto.NanoID
	logger  *slog.Logger

	mu          sync.RWMutex
	credentials core.CredentialSource
}

var (
	_ core.API             = (*Client)(nil)
	_ core.CredentialAware = (*Client)(nil)
)

func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid base url %q", core.ErrAPIRequired, cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ids, err := crypto.NewNanoID("")
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		ids:     ids,
		logger:  cfg.Logger,
	}
	c.http = client.New().
		SetBaseURL(c.baseURL).
		SetTimeout(cfg.Timeout)
	c.http.AddRequestHook(c.decorate)

	return c, nil
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// UseCredentials sets where bearer credentials come from.
func (c *Client) UseCredentials(src core.CredentialSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credentials = src
}

func (c *Client) decorate(_ *client.Client, req *client.Request) error {
	if id, err := c.ids.Generate(requestIDSize); err == nil {
		req.SetHeader(HeaderRequestID, id)
	}

	c.mu.RLock()
	src := c.credentials
	c.mu.RUnlock()

	if src != nil {
		if credential := src(); credential != "" {
			req.SetHeader(fiber.HeaderAuthorization, "Bearer "+credential)
		}
	}
	return nil
}

type option func(*client.Request)

func withParam(key, value string) option {
	return func(r *client.Request) { r.SetParam(key, value) }
}

func withFile(f *client.File) option {
	return func(r *client.Request) { r.AddFiles(f) }
}

// do sends one request. Non-2xx responses become *core.APIError; out, when
// non-nil, receives the decoded JSON body.
func (c *Client) do(ctx context.Context, method, path string, body, out any, opts ...option) error {
	req := c.http.R().
		SetContext(ctx).
		SetMethod(method).
		SetURL(path)
	if body != nil {
		req.SetJSON(body)
	}
	for _, opt := range opts {
		opt(req)
	}

	start := time.Now()
	resp, err := req.Send()
	if err != nil {
		client.ReleaseRequest(req)
		c.logger.Error("request failed", "method", method, "path", path, "err", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Close()

	status := resp.StatusCode()
	c.logger.Debug("request completed", "method", method, "path", path, "status", status, "latency", time.Since(start))

	if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
		return DecodeError(status, resp.Body())
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := resp.JSON(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
