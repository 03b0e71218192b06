package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// ReleaseServer fakes the GitHub releases API and asset downloads.
//
//	GET /repos/<owner>/<repo>/releases/latest  -> {"tag_name": Tag}
//	GET /<owner>/<repo>/releases/download/<tag>/<name>
//	    -> 302 /assets/<name> when Redirect is set, else Assets[name]
type ReleaseServer struct {
	*httptest.Server

	Owner    string
	Repo     string
	Tag      string
	Assets   map[string][]byte
	Redirect bool

	// Status, when non-zero, is returned for every asset request.
	Status int

	mu       sync.Mutex
	requests []*http.Request
}

// NewReleaseServer starts a server that is closed with the test.
func NewReleaseServer(t *testing.T, owner, repo, tag string) *ReleaseServer {
	t.Helper()

	s := &ReleaseServer{
		Owner:  owner,
		Repo:   repo,
		Tag:    tag,
		Assets: map[string][]byte{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *ReleaseServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Clone(r.Context()))
	s.mu.Unlock()

	latest := fmt.Sprintf("/repos/%s/%s/releases/latest", s.Owner, s.Repo)
	download := fmt.Sprintf("/%s/%s/releases/download/", s.Owner, s.Repo)

	switch {
	case r.URL.Path == latest:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"tag_name": s.Tag})

	case strings.HasPrefix(r.URL.Path, download):
		name := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		if s.Redirect {
			http.Redirect(w, r, "/assets/"+name, http.StatusFound)
			return
		}
		s.serveAsset(w, name)

	case strings.HasPrefix(r.URL.Path, "/assets/"):
		s.serveAsset(w, strings.TrimPrefix(r.URL.Path, "/assets/"))

	default:
		http.NotFound(w, r)
	}
}

func (s *ReleaseServer) serveAsset(w http.ResponseWriter, name string) {
	if s.Status != 0 {
		w.WriteHeader(s.Status)
		return
	}
	data, ok := s.Assets[name]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

// Requests returns the paths requested so far.
func (s *ReleaseServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, len(s.requests))
	for i, r := range s.requests {
		paths[i] = r.URL.Path
	}
	return paths
}

// Headers returns the headers of the first request to path.
func (s *ReleaseServer) Headers(path string) http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.requests {
		if r.URL.Path == path {
			return r.Header
		}
	}
	return nil
}
