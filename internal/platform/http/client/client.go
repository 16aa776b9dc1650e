// Package client provides the bounded outbound HTTP client used to reach the backend.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/MahdiBaghbani/marrfa-go/internal/platform/config"
)

var (
	ErrTooManyRedirects    = errors.New("too many redirects")
	ErrResponseTooLarge    = errors.New("response body too large")
	ErrInvalidURL          = errors.New("invalid URL")
	ErrRedirectBlocked     = errors.New("redirect blocked by policy")
	ErrRedirectNotSameHost = errors.New("redirect to different host blocked")
	ErrRedirectDowngrade   = errors.New("redirect from https to http blocked")
)

// Client is an HTTP client with a fixed timeout, bounded bodies and a strict redirect policy.
type Client struct {
	cfg        *config.APIConfig
	httpClient *http.Client
}

// New creates a new client. A nil cfg uses the production preset.
// The client ignores proxy environment variables (HTTP_PROXY, HTTPS_PROXY, NO_PROXY).
func New(cfg *config.APIConfig) *Client {
	if cfg == nil {
		preset := config.ProdConfig().API
		cfg = &preset
	}

	dialer := &net.Dialer{
		Timeout: time.Duration(cfg.ConnectTimeoutMS) * time.Millisecond,
	}

	transport := &http.Transport{
		Proxy:       nil,
		DialContext: dialer.DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
		MaxIdleConns:        10,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	// A custom TLSClientConfig disables the implicit HTTP/2 upgrade.
	// ConfigureTransport only fails when the transport was already configured.
	_ = http2.ConfigureTransport(transport)

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout(),
			// Redirects are followed manually under followRedirect's constraints.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Do performs an HTTP request, following same-host redirects up to MaxRedirects.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.URL == nil || req.URL.Host == "" {
		return nil, ErrInvalidURL
	}
	if c.cfg.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if isRedirect(resp.StatusCode) {
		return c.followRedirect(req, resp, 0)
	}
	return resp, nil
}

// followRedirect follows a redirect with strict constraints.
func (c *Client) followRedirect(origReq *http.Request, resp *http.Response, depth int) (*http.Response, error) {
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
	ctx := origReq.Context()

	if depth >= c.cfg.MaxRedirects {
		return nil, fmt.Errorf("%w: exceeded limit of %d", ErrTooManyRedirects, c.cfg.MaxRedirects)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return nil, fmt.Errorf("%w: no Location header", ErrRedirectBlocked)
	}
	redirectURL, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid Location: %v", ErrRedirectBlocked, err)
	}
	redirectURL = origReq.URL.ResolveReference(redirectURL)

	// https -> http is a downgrade; http -> https is allowed
	if origReq.URL.Scheme == "https" && redirectURL.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s -> %s", ErrRedirectDowngrade, origReq.URL.Scheme, redirectURL.Scheme)
	}
	if !isSameHost(origReq.URL, redirectURL) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrRedirectNotSameHost, origReq.URL.Host, redirectURL.Host)
	}

	// 303 always becomes a GET; 307/308 replay the body; 301/302 keep bodiless methods.
	method := origReq.Method
	var body io.Reader
	switch {
	case resp.StatusCode == http.StatusSeeOther:
		method = http.MethodGet
	case resp.StatusCode == http.StatusTemporaryRedirect || resp.StatusCode == http.StatusPermanentRedirect:
		if origReq.GetBody != nil {
			rc, err := origReq.GetBody()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrRedirectBlocked, err)
			}
			body = rc
		}
	case origReq.Method == http.MethodPost || origReq.Method == http.MethodPut || origReq.Method == http.MethodPatch:
		method = http.MethodGet
	}

	newReq, err := http.NewRequestWithContext(ctx, method, redirectURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedirectBlocked, err)
	}
	copyRedirectHeaders(origReq, newReq, body != nil)

	newResp, err := c.httpClient.Do(newReq)
	if err != nil {
		return nil, err
	}
	if isRedirect(newResp.StatusCode) {
		return c.followRedirect(newReq, newResp, depth+1)
	}
	return newResp, nil
}

// isSameHost checks if two URLs have the same hostname and effective port.
func isSameHost(a, b *url.URL) bool {
	if !strings.EqualFold(a.Hostname(), b.Hostname()) {
		return false
	}
	return effectivePort(a) == effectivePort(b)
}

// effectivePort returns the URL port, or the scheme default when missing.
func effectivePort(u *url.URL) string {
	if port := u.Port(); port != "" {
		return port
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		return "80"
	case "https":
		return "443"
	default:
		return ""
	}
}

// copyRedirectHeaders copies safe headers for redirects. Authorization never follows.
func copyRedirectHeaders(src, dst *http.Request, withBody bool) {
	for _, h := range []string{"User-Agent", "Accept", "X-Request-Id"} {
		if v := src.Header.Get(h); v != "" {
			dst.Header.Set(h, v)
		}
	}
	if withBody {
		if ct := src.Header.Get("Content-Type"); ct != "" {
			dst.Header.Set("Content-Type", ct)
		}
	}
}

// isRedirect returns true if the status code is a redirect.
func isRedirect(code int) bool {
	return code == http.StatusMovedPermanently ||
		code == http.StatusFound ||
		code == http.StatusSeeOther ||
		code == http.StatusTemporaryRedirect ||
		code == http.StatusPermanentRedirect
}

// ReadBody reads and closes resp.Body, enforcing MaxResponseBytes.
func (c *Client) ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > c.cfg.MaxResponseBytes {
		return nil, ErrResponseTooLarge
	}
	return body, nil
}

// IsRedirectError returns true if the error is a redirect-related error.
func IsRedirectError(err error) bool {
	return errors.Is(err, ErrRedirectBlocked) ||
		errors.Is(err, ErrRedirectNotSameHost) ||
		errors.Is(err, ErrRedirectDowngrade) ||
		errors.Is(err, ErrTooManyRedirects)
}

// ContextClient wraps Client to provide a context-first Do method.
type ContextClient struct {
	client *Client
}

// NewContextClient creates a ContextClient adapter.
func NewContextClient(c *Client) *ContextClient {
	return &ContextClient{client: c}
}

// Do performs an HTTP request, using the provided context.
func (c *ContextClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(ctx))
}

// ReadBody delegates to the wrapped client's bounded reader.
func (c *ContextClient) ReadBody(resp *http.Response) ([]byte, error) {
	return c.client.ReadBody(resp)
}
