package utils

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/net/proxy"

	"teralink/internal"
)

// json is the codec used for upstream payloads
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HTTPClientConfig contains configuration for the HTTP client
type HTTPClientConfig struct {
	Timeout    time.Duration
	ProxyURL   string
	UserAgents []string
}

// HTTPClient issues upstream requests with browser-like identity and user-agent rotation.
// It does not retry; callers wrap it in an Executor.
type HTTPClient struct {
	client       *resty.Client
	noRedirect   *resty.Client
	userAgent    string
	userAgents   []string
	userAgentIdx int
	mutex        sync.RWMutex
}

// Request describes a single upstream call
type Request struct {
	Method          string
	URL             string
	Query           map[string]string
	Headers         map[string]string
	Cookies         []*http.Cookie
	FollowRedirects bool
	// NoBody closes the response body unread; Response.Body stays nil
	NoBody bool
}

// Response is the buffered result of an upstream call
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// FinalURL is the URL of the last request after any followed redirects
	FinalURL string
}

// Predefined user agent strings for rotation
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:126.0) Gecko/20100101 Firefox/126.0",
}

// BrowserHeaders are sent with share page fetches
var BrowserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
}

// APIHeaders are sent with listing calls
var APIHeaders = map[string]string{
	"Accept":           "application/json, text/plain, */*",
	"Accept-Language":  "en-US,en;q=0.9",
	"X-Requested-With": "XMLHttpRequest",
	"Sec-Fetch-Dest":   "empty",
	"Sec-Fetch-Mode":   "cors",
	"Sec-Fetch-Site":   "same-origin",
}

// NewHTTPClient creates a new HTTP client with default configuration
func NewHTTPClient() *HTTPClient {
	client, _ := NewHTTPClientWithConfig(&HTTPClientConfig{Timeout: 30 * time.Second})
	return client
}

// NewHTTPClientWithConfig creates a new HTTP client with custom configuration
func NewHTTPClientWithConfig(config *HTTPClientConfig) (*HTTPClient, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	if config.ProxyURL != "" {
		if err := configureProxy(transport, config.ProxyURL); err != nil {
			return nil, err
		}
	}

	follow := &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
	single := &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}

	userAgents := config.UserAgents
	if len(userAgents) == 0 {
		userAgents = defaultUserAgents
	}

	c := &HTTPClient{
		client: newRestyClient(follow),
		noRedirect: newRestyClient(single).
			SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			})),
		userAgents: userAgents,
		userAgent:  userAgents[0],
	}

	return c, nil
}

func newRestyClient(hc *http.Client) *resty.Client {
	client := resty.NewWithClient(hc)
	client.JSONMarshal = json.Marshal
	client.JSONUnmarshal = json.Unmarshal
	client.SetPreRequestHook(func(_ *resty.Client, req *http.Request) error {
		internal.GetLogger().LogHTTPRequest(req)
		return nil
	})
	client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		if resp.RawResponse != nil {
			internal.GetLogger().LogHTTPResponse(resp.RawResponse)
		}
		return nil
	})
	return client
}

// configureProxy sets up proxy configuration for the transport
func configureProxy(transport *http.Transport, proxyURL string) error {
	parsedURL, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("invalid proxy URL: %w", err)
	}

	switch parsedURL.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(parsedURL)
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if parsedURL.User != nil {
			password, _ := parsedURL.User.Password()
			auth = &proxy.Auth{User: parsedURL.User.Username(), Password: password}
		}
		dialer, err := proxy.SOCKS5("tcp", parsedURL.Host, auth, proxy.Direct)
		if err != nil {
			return fmt.Errorf("failed to create SOCKS5 proxy: %w", err)
		}
		transport.Proxy = nil
		if contextDialer, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = contextDialer.DialContext
		} else {
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	default:
		return fmt.Errorf("unsupported proxy scheme: %s", parsedURL.Scheme)
	}

	return nil
}

// Do performs one request. Transport failures come back classified as
// *internal.TeraboxError; HTTP statuses are left for the caller to judge.
func (c *HTTPClient) Do(ctx context.Context, req *Request) (*Response, error) {
	client := c.noRedirect
	if req.FollowRedirects {
		client = c.client
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	r := client.R().
		SetContext(ctx).
		SetHeader("User-Agent", c.GetCurrentUserAgent()).
		SetHeaders(req.Headers).
		SetQueryParams(req.Query).
		SetCookies(req.Cookies)
	if req.NoBody {
		r.SetDoNotParseResponse(true)
	}

	resp, err := r.Execute(method, req.URL)
	if req.NoBody && resp != nil {
		if raw := resp.RawBody(); raw != nil {
			raw.Close()
		}
	}
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	if resp.StatusCode() == http.StatusForbidden {
		c.RotateUserAgent()
	}

	finalURL := req.URL
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		finalURL = raw.Request.URL.String()
	}

	var body []byte
	if !req.NoBody {
		body = resp.Body()
	}

	return &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       body,
		FinalURL:   finalURL,
	}, nil
}

// DecodeJSON unmarshals an upstream payload
func DecodeJSON(body []byte, v interface{}) error {
	return json.Unmarshal(body, v)
}

// RotateUserAgent rotates to the next user agent string
func (c *HTTPClient) RotateUserAgent() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.userAgentIdx = (c.userAgentIdx + 1) % len(c.userAgents)
	c.userAgent = c.userAgents[c.userAgentIdx]
}

// GetCurrentUserAgent returns the current user agent string
func (c *HTTPClient) GetCurrentUserAgent() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.userAgent
}

// classifyTransportError maps low-level failures onto error kinds the Executor understands.
// Cancellation by the caller is returned untouched so it is never retried.
func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return internal.NewNetworkTimeoutError("upstream request").WithCause(err)
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || isConnectionFailure(err) {
		return internal.NewTeraboxError(0, "connection failure", internal.ErrNetworkTimeout).WithCause(err)
	}

	return internal.NewTeraboxError(0, "request failed", internal.ErrUpstreamRejected).WithCause(err)
}

func isConnectionFailure(err error) bool {
	errStr := strings.ToLower(err.Error())
	retryableErrors := []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network is unreachable",
		"temporary failure",
		"eof",
	}

	for _, retryableErr := range retryableErrors {
		if strings.Contains(errStr, retryableErr) {
			return true
		}
	}
	return false
}
