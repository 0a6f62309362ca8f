package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/haukened/hostguard/internal/guard/domain"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "hostguard/1.0 (+content-check)"
	// DefaultMaxBytes bounds how much of a response body is read.
	DefaultMaxBytes int64 = 5 << 20
)

// Options configures a Fetcher.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
	Client    *http.Client
}

// Fetcher retrieves pages and images over HTTP.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	maxBytes  int64
}

// New builds a Fetcher, filling zero options with defaults.
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	return &Fetcher{
		client:    opts.Client,
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		maxBytes:  opts.MaxBytes,
	}
}

// Fetch downloads rawURL and extracts its text and image references.
// A URL without a scheme is fetched over https.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (domain.Page, error) {
	target, err := parseTarget(rawURL)
	if err != nil {
		return domain.Page{}, err
	}

	body, final, err := f.get(ctx, target.String())
	if err != nil {
		return domain.Page{}, err
	}
	defer body.Close()

	text, images, err := Extract(io.LimitReader(body, f.maxBytes), final)
	if err != nil {
		return domain.Page{}, fmt.Errorf("parse %s: %w", target, err)
	}
	return domain.Page{URL: final.String(), Text: text, Images: images}, nil
}

// FetchImage downloads the bytes of one image.
func (f *Fetcher) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	body, _, err := f.get(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(io.LimitReader(body, f.maxBytes))
}

// get issues the request under the fetcher's timeout. The returned body
// keeps the timeout context alive until it is closed.
func (f *Fetcher) get(ctx context.Context, target string) (io.ReadCloser, *url.URL, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("get %s: %w", target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		cancel()
		return nil, nil, fmt.Errorf("get %s: unexpected status %d", target, resp.StatusCode)
	}
	return &cancelBody{ReadCloser: resp.Body, cancel: cancel}, resp.Request.URL, nil
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func parseTarget(rawURL string) (*url.URL, error) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return nil, fmt.Errorf("empty url")
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("unsupported url %q", rawURL)
	}
	return u, nil
}
