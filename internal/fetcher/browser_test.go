package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

// chromePath finds a local Chrome or Chromium, skipping the test otherwise.
func chromePath(t *testing.T) string {
	t.Helper()
	if p := os.Getenv("LINKCHECK_TEST_CHROME"); p != "" {
		return p
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no Chrome binary found; set LINKCHECK_TEST_CHROME to run browser tests")
	return ""
}

func newBrowserForTest(t *testing.T, timeout time.Duration) *BrowserFetcher {
	t.Helper()
	b, err := NewBrowserFetcher(context.Background(), Options{
		Timeout:   timeout,
		Headless:  true,
		NoSandbox: true,
		ExecPath:  chromePath(t),
		UserAgent: "linkcheck-test/1.0",
	})
	if err != nil {
		t.Fatalf("NewBrowserFetcher failed: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBrowserFetcher(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><a href="/about">About</a>
			<script>document.body.insertAdjacentHTML('beforeend', '<a href="/rendered">JS</a>')</script>
			</body></html>`))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/failing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	b := newBrowserForTest(t, 10*time.Second)

	t.Run("renders DOM", func(t *testing.T) {
		page := b.Fetch(context.Background(), server.URL+"/")
		if page.StatusCode != http.StatusOK {
			t.Fatalf("Expected status 200, got %d (err=%v)", page.StatusCode, page.Err)
		}
		if !strings.Contains(string(page.Body), `href="/rendered"`) {
			t.Errorf("Expected script-inserted anchor in DOM, got %s", page.Body)
		}
	})

	t.Run("not found", func(t *testing.T) {
		page := b.Fetch(context.Background(), server.URL+"/missing")
		if page.StatusCode != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d (err=%v)", page.StatusCode, page.Err)
		}
	})

	t.Run("not found, empty body", func(t *testing.T) {
		page := b.Fetch(context.Background(), server.URL+"/gone")
		if page.StatusCode != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d (err=%v)", page.StatusCode, page.Err)
		}
		if page.FinalURL != server.URL+"/gone" {
			t.Errorf("Expected final URL %s/gone, got %s", server.URL, page.FinalURL)
		}
	})

	t.Run("server error, empty body", func(t *testing.T) {
		page := b.Fetch(context.Background(), server.URL+"/failing")
		if page.StatusCode != http.StatusInternalServerError {
			t.Errorf("Expected status 500, got %d (err=%v)", page.StatusCode, page.Err)
		}
	})

	t.Run("redirect", func(t *testing.T) {
		page := b.Fetch(context.Background(), server.URL+"/moved")
		if page.StatusCode != http.StatusOK {
			t.Errorf("Expected final status 200, got %d", page.StatusCode)
		}
		if page.FinalURL != server.URL+"/" {
			t.Errorf("Expected final URL %s/, got %s", server.URL, page.FinalURL)
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		url := "http://127.0.0.1:1/"
		page := b.Fetch(context.Background(), url)
		if !page.Failed() {
			t.Errorf("Expected status 0, got %d", page.StatusCode)
		}
		if page.FinalURL != url {
			t.Errorf("Expected original URL, got %s", page.FinalURL)
		}
	})
}

func TestBrowserFetcher_StartFailure(t *testing.T) {
	_, err := NewBrowserFetcher(context.Background(), Options{
		Timeout:  time.Second,
		Headless: true,
		ExecPath: "/nonexistent/chrome-binary",
	})
	if err == nil {
		t.Fatal("Expected an error when Chrome cannot be launched")
	}
}
