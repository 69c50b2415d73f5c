package fetcher

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cleansite/linkcheck/internal/config"
)

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if ua := r.Header.Get("User-Agent"); ua != "linkcheck-test/1.0" {
			t.Errorf("Expected User-Agent 'linkcheck-test/1.0', got '%s'", ua)
		}
		if v := r.Header.Get("X-Preview-Token"); v != "secret" {
			t.Errorf("Expected custom header, got '%s'", v)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><a href="/about">About</a></body></html>`))
	})
	mux.HandleFunc("/old-services", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/services", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/services", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>Services</body></html>`))
	})
	mux.HandleFunc("/brochure.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	})
	mux.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestFetcher(timeout time.Duration) *HTTPFetcher {
	return NewHTTPFetcher(Options{
		Timeout:   timeout,
		UserAgent: "linkcheck-test/1.0",
		Headers:   map[string]string{"X-Preview-Token": "secret"},
	})
}

func TestHTTPFetcher_OK(t *testing.T) {
	server := newTestSite(t)
	f := newTestFetcher(5 * time.Second)
	defer f.Close()

	page := f.Fetch(context.Background(), server.URL+"/")

	if page.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", page.StatusCode)
	}
	if page.FinalURL != server.URL+"/" {
		t.Errorf("Expected final URL %s/, got %s", server.URL, page.FinalURL)
	}

	// Without a redirect the final URL is the request URL exactly.
	bare := f.Fetch(context.Background(), server.URL)
	if bare.FinalURL != server.URL {
		t.Errorf("Expected final URL %s, got %s", server.URL, bare.FinalURL)
	}
	if string(page.Body) != `<html><body><a href="/about">About</a></body></html>` {
		t.Errorf("Unexpected body: %s", page.Body)
	}
	if page.Err != nil || page.Failed() {
		t.Errorf("Expected successful fetch, got err=%v", page.Err)
	}
}

func TestHTTPFetcher_Redirect(t *testing.T) {
	server := newTestSite(t)
	f := newTestFetcher(5 * time.Second)
	defer f.Close()

	page := f.Fetch(context.Background(), server.URL+"/old-services")

	if page.StatusCode != http.StatusOK {
		t.Errorf("Expected final status 200, got %d", page.StatusCode)
	}
	if page.URL != server.URL+"/old-services" {
		t.Errorf("URL should stay the requested one, got %s", page.URL)
	}
	if page.FinalURL != server.URL+"/services" {
		t.Errorf("Expected final URL %s/services, got %s", server.URL, page.FinalURL)
	}
}

func TestHTTPFetcher_ErrorStatuses(t *testing.T) {
	server := newTestSite(t)
	f := newTestFetcher(5 * time.Second)
	defer f.Close()

	tests := []struct {
		path   string
		status int
	}{
		{"/missing", http.StatusNotFound},
		{"/error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		page := f.Fetch(context.Background(), server.URL+tt.path)
		if page.StatusCode != tt.status {
			t.Errorf("%s: expected status %d, got %d", tt.path, tt.status, page.StatusCode)
		}
		if page.Err != nil {
			t.Errorf("%s: HTTP errors are not navigation errors, got %v", tt.path, page.Err)
		}
	}
}

func TestHTTPFetcher_NonHTMLBodyDropped(t *testing.T) {
	server := newTestSite(t)
	f := newTestFetcher(5 * time.Second)
	defer f.Close()

	page := f.Fetch(context.Background(), server.URL+"/brochure.pdf")
	if page.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", page.StatusCode)
	}
	if page.Body != nil {
		t.Errorf("Expected no body for non-HTML content, got %d bytes", len(page.Body))
	}
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	server := newTestSite(t)
	f := newTestFetcher(100 * time.Millisecond)
	defer f.Close()

	url := server.URL + "/slow"
	page := f.Fetch(context.Background(), url)

	if page.StatusCode != StatusNetworkError {
		t.Errorf("Expected sentinel status 0, got %d", page.StatusCode)
	}
	if page.FinalURL != url {
		t.Errorf("Failed fetch should report the original URL, got %s", page.FinalURL)
	}
	if page.Err == nil {
		t.Errorf("Expected a navigation error")
	}
}

func TestHTTPFetcher_ConnectionRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()

	f := newTestFetcher(2 * time.Second)
	defer f.Close()

	url := "http://" + addr + "/"
	page := f.Fetch(context.Background(), url)
	if !page.Failed() {
		t.Errorf("Expected failed fetch, got status %d", page.StatusCode)
	}
	if page.FinalURL != url {
		t.Errorf("Expected final URL %s, got %s", url, page.FinalURL)
	}
}

func TestHTTPFetcher_InvalidURL(t *testing.T) {
	f := newTestFetcher(time.Second)
	defer f.Close()

	page := f.Fetch(context.Background(), "http://[::1")
	if !page.Failed() || page.Err == nil {
		t.Errorf("Expected failed fetch with error, got status %d", page.StatusCode)
	}
}

func TestNewSelectsFetcher(t *testing.T) {
	f, err := New(context.Background(), config.FetcherHTTP, Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("New(http) failed: %v", err)
	}
	if _, ok := f.(*HTTPFetcher); !ok {
		t.Errorf("Expected *HTTPFetcher, got %T", f)
	}
	_ = f.Close()

	if _, err := New(context.Background(), "wget", Options{}); err == nil {
		t.Errorf("Expected error for unknown fetcher")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PageTimeout = 12 * time.Second
	cfg.Headers = []string{"X-Env: staging"}
	cfg.Browser.NoSandbox = true

	opts := OptionsFromConfig(cfg)
	if opts.Timeout != 12*time.Second {
		t.Errorf("Timeout = %v", opts.Timeout)
	}
	if opts.Headers["X-Env"] != "staging" {
		t.Errorf("Headers = %v", opts.Headers)
	}
	if !opts.Headless || !opts.NoSandbox {
		t.Errorf("Browser options not mapped: %+v", opts)
	}
}
