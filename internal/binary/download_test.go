package binary

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func TestDownloaderDownloadToFile(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantErr    bool
	}{
		{
			name:       "successful_download",
			statusCode: http.StatusOK,
			body:       "test binary content",
		},
		{
			name:       "404_not_found",
			statusCode: http.StatusNotFound,
			body:       "not found",
			wantErr:    true,
		},
		{
			name:       "500_server_error",
			statusCode: http.StatusInternalServerError,
			body:       "server error",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("User-Agent") != DefaultUserAgent {
					t.Errorf("unexpected User-Agent: %s", r.Header.Get("User-Agent"))
				}

				w.WriteHeader(tt.statusCode)
				if _, err := w.Write([]byte(tt.body)); err != nil {
					t.Errorf("failed to write response: %v", err)
				}
			}))
			defer server.Close()

			tmpDir := t.TempDir()
			downloader := NewDownloader(DownloaderConfig{})

			destPath := filepath.Join(tmpDir, "test-file")
			n, err := downloader.DownloadToFile(context.Background(), server.URL, destPath)

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				if _, statErr := os.Stat(destPath); !os.IsNotExist(statErr) {
					t.Error("destination should not exist after failed download")
				}
				assertNoTempFiles(t, tmpDir)
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if n != int64(len(tt.body)) {
				t.Errorf("bytes = %d, want %d", n, len(tt.body))
			}

			content, err := os.ReadFile(destPath)
			if err != nil {
				t.Fatalf("failed to read downloaded file: %v", err)
			}
			if string(content) != tt.body {
				t.Errorf("content = %q, want %q", content, tt.body)
			}
			assertNoTempFiles(t, tmpDir)
		})
	}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestDownloaderFollowsRedirects(t *testing.T) {
	tests := []struct {
		name     string
		location func(srvURL string) string
		status   int
	}{
		{"relative_302", func(string) string { return "/final" }, http.StatusFound},
		{"absolute_301", func(u string) string { return u + "/final" }, http.StatusMovedPermanently},
		{"relative_no_slash_307", func(string) string { return "final" }, http.StatusTemporaryRedirect},
		{"absolute_308", func(u string) string { return u + "/final" }, http.StatusPermanentRedirect},
		{"relative_303", func(string) string { return "/final" }, http.StatusSeeOther},
		{"multiple_choices_300", func(string) string { return "/final" }, http.StatusMultipleChoices},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var srvURL string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/start":
					w.Header().Set("Location", tt.location(srvURL))
					w.WriteHeader(tt.status)
				case "/final":
					fmt.Fprint(w, "payload")
				default:
					http.NotFound(w, r)
				}
			}))
			defer server.Close()
			srvURL = server.URL

			d := NewDownloader(DownloaderConfig{MaxRedirects: 10})
			data, err := d.Fetch(context.Background(), server.URL+"/start")
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if string(data) != "payload" {
				t.Errorf("Fetch() = %q, want payload", data)
			}
		})
	}
}

func TestDownloaderRedirectBound(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		http.Redirect(w, r, fmt.Sprintf("/hop%d", n), http.StatusFound)
	}))
	defer server.Close()

	d := NewDownloader(DownloaderConfig{MaxRedirects: 3})
	_, err := d.Fetch(context.Background(), server.URL+"/start")
	if !errors.Is(err, ErrTooManyRedirects) {
		t.Fatalf("Fetch() error = %v, want ErrTooManyRedirects", err)
	}
	// initial request plus three followed hops
	if got := hits.Load(); got != 4 {
		t.Errorf("server hits = %d, want 4", got)
	}
}

func TestDownloaderZeroRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer server.Close()

	d := NewDownloader(DownloaderConfig{MaxRedirects: 0})
	if _, err := d.Fetch(context.Background(), server.URL); !errors.Is(err, ErrTooManyRedirects) {
		t.Fatalf("Fetch() error = %v, want ErrTooManyRedirects", err)
	}
}

func TestDownloaderHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/missing", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	d := NewDownloader(DownloaderConfig{})
	_, err := d.DownloadToFile(context.Background(), server.URL+"/start", filepath.Join(t.TempDir(), "out"))

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error = %v, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", httpErr.StatusCode)
	}

	// The message names the final URL, not the original.
	want := fmt.Sprintf("HTTP 403: %s/missing", server.URL)
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestDownloaderRedirectWithoutLocation(t *testing.T) {
	for _, status := range []int{http.StatusMultipleChoices, http.StatusFound, http.StatusNotModified} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			defer server.Close()

			d := NewDownloader(DownloaderConfig{})
			_, err := d.Fetch(context.Background(), server.URL)

			var httpErr *HTTPError
			if !errors.As(err, &httpErr) || httpErr.StatusCode != status {
				t.Fatalf("error = %v, want HTTP %d error", err, status)
			}
		})
	}
}

func TestDownloaderTokenScope(t *testing.T) {
	var mu sync.Mutex
	var apiAuth, assetAuth string
	assets := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		assetAuth = r.Header.Get("Authorization")
		mu.Unlock()
		fmt.Fprint(w, "ok")
	}))
	defer assets.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		apiAuth = r.Header.Get("Authorization")
		mu.Unlock()
		http.Redirect(w, r, assets.URL+"/blob", http.StatusFound)
	}))
	defer api.Close()

	d := NewDownloader(DownloaderConfig{
		Token:     "sekret",
		TokenHost: api.Listener.Addr().String(),
	})
	if _, err := d.Fetch(context.Background(), api.URL); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if apiAuth != "Bearer sekret" {
		t.Errorf("API Authorization = %q, want bearer token", apiAuth)
	}
	if assetAuth != "" {
		t.Errorf("token leaked to redirect target: %q", assetAuth)
	}
}

func TestDownloaderContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "late")
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDownloader(DownloaderConfig{})
	if _, err := d.Fetch(ctx, server.URL); !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled", err)
	}
}

func TestDownloaderFetchLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, MaxFetchSize+1))
	}))
	defer server.Close()

	d := NewDownloader(DownloaderConfig{})
	if _, err := d.Fetch(context.Background(), server.URL); err == nil {
		t.Error("expected error for oversized response")
	}
}
