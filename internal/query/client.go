package query

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ytget/psn-updater/internal/titleid"
	"github.com/ytget/psn-updater/internal/transport"
)

// Default values
const (
	DefaultTimeout     = 20 * time.Second
	DefaultMaxBodySize = 8 << 20
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Options configures a Client.
type Options struct {
	// HTTPClient performs the requests. Default: transport.New(transport.DefaultOptions()).
	HTTPClient *http.Client

	// Timeout bounds each query. Default: 20s
	Timeout time.Duration

	// Endpoint builds the document URL. Default: VendorEndpoint.
	Endpoint EndpointFunc

	// MaxBodySize caps the response body; larger bodies fail with
	// ErrBodyTooLarge. Default: 8 MiB
	MaxBodySize int64

	Logger *slog.Logger
}

// Client queries the vendor update endpoint.
type Client struct {
	http     *http.Client
	timeout  time.Duration
	endpoint EndpointFunc
	maxBody  int64
	log      *slog.Logger
}

// NewClient creates a new query client
func NewClient(opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = transport.New(transport.DefaultOptions())
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Endpoint == nil {
		opts.Endpoint = VendorEndpoint
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultMaxBodySize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		http:     opts.HTTPClient,
		timeout:  opts.Timeout,
		endpoint: opts.Endpoint,
		maxBody:  opts.MaxBodySize,
		log:      opts.Logger,
	}
}

// Fetch returns the raw update document for id. The body is guaranteed to
// be non-empty and to start like an XML document.
func (c *Client) Fetch(ctx context.Context, id titleid.TitleID) ([]byte, error) {
	u, err := c.endpoint(id)
	if err != nil {
		return nil, &Error{Kind: ErrNetwork, Err: err}
	}

	c.log.Info("querying for updates", "title_id", id.String(), "url", u)

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 || body[0] != '<' {
		return nil, &Error{Kind: ErrEmptyResponse, URL: u}
	}
	return body, nil
}

// FetchManifest returns the raw JSON part manifest at manifestURL.
func (c *Client) FetchManifest(ctx context.Context, manifestURL string) ([]byte, error) {
	c.log.Debug("fetching part manifest", "url", manifestURL)

	body, err := c.get(ctx, manifestURL)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, &Error{Kind: ErrEmptyResponse, URL: manifestURL}
	}
	return body, nil
}

// get performs a single bounded GET and returns the trimmed body.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &Error{Kind: ErrNetwork, URL: u, Err: fmt.Errorf("create request: %w", err)}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Kind: ErrNetwork, URL: u, Err: err}
	}
	defer resp.Body.Close()

	if err := transport.CheckStatus(resp); err != nil {
		return nil, &Error{Kind: ErrHTTPStatus, URL: u, StatusCode: resp.StatusCode, Err: err}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &Error{Kind: ErrNetwork, URL: u, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > c.maxBody {
		c.log.Warn("response body too large", "url", u, "limit", c.maxBody)
		return nil, &Error{Kind: ErrBodyTooLarge, URL: u, Err: fmt.Errorf("more than %d bytes", c.maxBody)}
	}

	body = bytes.TrimPrefix(body, utf8BOM)
	return bytes.TrimSpace(body), nil
}
