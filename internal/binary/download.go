package binary

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/Skyline-23/conductor-hook/internal/logging"
)

const (
	// DefaultTimeout is the default overall HTTP request timeout
	DefaultTimeout = 5 * time.Minute
	// DefaultMaxRedirects bounds the redirect chain of a single request
	DefaultMaxRedirects = 10
	// DefaultUserAgent is the User-Agent header sent with requests
	DefaultUserAgent = "conductor-kit-npm"
	// MaxFetchSize caps in-memory responses (release metadata, checksums)
	MaxFetchSize = 10 << 20
)

// DownloaderConfig configures a Downloader. Zero values select defaults.
type DownloaderConfig struct {
	UserAgent string

	// MaxRedirects is the redirect bound. Zero disables redirects; a
	// negative value selects DefaultMaxRedirects.
	MaxRedirects int
	Timeout      time.Duration

	// Token is sent as a bearer token, but only to TokenHost.
	Token     string
	TokenHost string

	// Client overrides the HTTP client. Its CheckRedirect is replaced.
	Client *http.Client
	Logger logging.Logger
}

// Downloader performs GET requests and follows redirects itself.
type Downloader struct {
	client       *http.Client
	userAgent    string
	maxRedirects int
	token        string
	tokenHost    string
	logger       logging.Logger
}

// NewDownloader creates a new downloader
func NewDownloader(cfg DownloaderConfig) *Downloader {
	client := &http.Client{}
	if cfg.Client != nil {
		c := *cfg.Client
		client = &c
	}
	if cfg.Timeout > 0 {
		client.Timeout = cfg.Timeout
	} else if client.Timeout == 0 {
		client.Timeout = DefaultTimeout
	}
	// Redirects are followed by Downloader.get so every hop is bounded and
	// the final URL is known.
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	d := &Downloader{
		client:       client,
		userAgent:    cfg.UserAgent,
		maxRedirects: cfg.MaxRedirects,
		token:        cfg.Token,
		tokenHost:    cfg.TokenHost,
		logger:       cfg.Logger,
	}
	if d.userAgent == "" {
		d.userAgent = DefaultUserAgent
	}
	if d.maxRedirects < 0 {
		d.maxRedirects = DefaultMaxRedirects
	}
	if d.logger == nil {
		d.logger = logging.Nop()
	}
	return d
}

// CloseIdleConnections releases pooled connections once downloads are done.
func (d *Downloader) CloseIdleConnections() {
	d.client.CloseIdleConnections()
}

// Fetch downloads a small resource into memory.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	resp, finalURL, err := d.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxFetchSize+1))
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", finalURL, err)
	}
	if len(data) > MaxFetchSize {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", finalURL, MaxFetchSize)
	}
	return data, nil
}

// DownloadToFile downloads a URL to destPath and returns the bytes written.
// The body is written to a temporary sibling and renamed into place, so
// destPath never holds a partial download.
func (d *Downloader) DownloadToFile(ctx context.Context, rawURL, destPath string) (int64, error) {
	resp, finalURL, err := d.get(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	destDir := filepath.Dir(destPath)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return 0, fmt.Errorf("create dest dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(destDir, filepath.Base(destPath)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	cleanupNeeded := true
	defer func() {
		tmpFile.Close()
		if cleanupNeeded {
			os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmpFile, resp.Body)
	if err != nil {
		return 0, fmt.Errorf("copy response body from %s: %w", finalURL, err)
	}

	if err := tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return 0, fmt.Errorf("rename temp file: %w", err)
	}

	cleanupNeeded = false
	d.logger.Debug("downloaded", "url", finalURL, "path", destPath, "bytes", n)
	return n, nil
}

// get issues a GET and follows up to maxRedirects redirects. The returned
// response always has status 200; the caller must close its body.
func (d *Downloader) get(ctx context.Context, rawURL string) (*http.Response, string, error) {
	current := rawURL

	for hops := 0; ; hops++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return nil, current, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", d.userAgent)
		if d.token != "" && req.URL.Host == d.tokenHost {
			req.Header.Set("Authorization", "Bearer "+d.token)
		}

		resp, err := d.client.Do(req)
		if err != nil {
			return nil, current, fmt.Errorf("execute request: %w", err)
		}

		if isRedirect(resp.StatusCode) {
			location := resp.Header.Get("Location")
			drainAndClose(resp.Body)

			if location == "" {
				return nil, current, &HTTPError{StatusCode: resp.StatusCode, URL: current}
			}
			if hops >= d.maxRedirects {
				return nil, current, fmt.Errorf("%w: %s (limit %d)", ErrTooManyRedirects, rawURL, d.maxRedirects)
			}

			next, err := resolveLocation(current, location)
			if err != nil {
				return nil, current, err
			}
			d.logger.Debug("following redirect", "from", current, "to", next, "status", resp.StatusCode)
			current = next
			continue
		}

		if resp.StatusCode != http.StatusOK {
			drainAndClose(resp.Body)
			return nil, current, &HTTPError{StatusCode: resp.StatusCode, URL: current}
		}

		return resp, current, nil
	}
}

// isRedirect reports whether code is any 3xx. Whether it is followed
// depends on a Location header being present.
func isRedirect(code int) bool {
	return code >= 300 && code < 400
}

// resolveLocation resolves a Location header against the URL that produced it.
func resolveLocation(current, location string) (string, error) {
	base, err := url.Parse(current)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", current, err)
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parse redirect location %q: %w", location, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	body.Close()
}
