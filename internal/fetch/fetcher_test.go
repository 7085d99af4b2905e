package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/reelview/hlsget/internal/utils"
)

const validPlaylist = `#EXTM3U
#EXT-X-TARGETDURATION:10
#EXTINF:9.009,
segment0.ts
#EXT-X-ENDLIST
`

func newTestFetcher() *Fetcher {
	return New(utils.NewHLSHTTPClient(utils.HTTPClientConfig{}))
}

func TestFetchTextValid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(validPlaylist))
	}))
	defer server.Close()

	content, err := newTestFetcher().FetchText(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchText: %v", err)
	}
	if content != validPlaylist {
		t.Errorf("content mismatch:\n%s", content)
	}
}

func TestFetchTextHTMLResponse(t *testing.T) {
	pages := []struct {
		name   string
		status int
		body   string
	}{
		{"login page with 200", http.StatusOK, "<!DOCTYPE html><html><body>Please log in, this page is definitely not a playlist</body></html>"},
		{"error page with 403", http.StatusForbidden, "<html><body>Access denied by origin</body></html>"},
	}
	for _, tt := range pages {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestFetcher().FetchText(context.Background(), server.URL)
			var formatErr *InvalidFormatError
			if !errors.As(err, &formatErr) {
				t.Fatalf("expected InvalidFormatError, got %v", err)
			}
		})
	}
}

func TestFetchTextStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestFetcher().FetchText(context.Background(), server.URL)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if transportErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", transportErr.StatusCode)
	}
}

func TestFetchTextTooShort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#EXTM3U\n"))
	}))
	defer server.Close()

	_, err := newTestFetcher().FetchText(context.Background(), server.URL)
	var formatErr *InvalidFormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected InvalidFormatError, got %v", err)
	}
}

func TestFetchTextMissingMarkers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("just some plain text that is long enough\n", 3)))
	}))
	defer server.Close()

	_, err := newTestFetcher().FetchText(context.Background(), server.URL)
	var formatErr *InvalidFormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected InvalidFormatError, got %v", err)
	}
}

func TestFetchTextFollowsRedirect(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(validPlaylist))
	}))
	defer target.Close()
	redirecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer redirecting.Close()

	content, err := newTestFetcher().FetchText(context.Background(), redirecting.URL)
	if err != nil {
		t.Fatalf("FetchText: %v", err)
	}
	if content != validPlaylist {
		t.Error("redirected fetch returned wrong content")
	}
}

func TestFetchTextRedirectLoop(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL, http.StatusMovedPermanently)
	}))
	defer server.Close()

	_, err := newTestFetcher().FetchText(context.Background(), server.URL)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if !errors.Is(err, errTooManyRedirects) {
		t.Errorf("expected redirect bound error, got %v", err)
	}
}

func TestFetchTextGzip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		gz.Write([]byte(validPlaylist))
		gz.Close()
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	}))
	defer server.Close()

	content, err := newTestFetcher().FetchText(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchText: %v", err)
	}
	if content != validPlaylist {
		t.Error("gzip fetch returned wrong content")
	}
}

func TestFetchBytes(t *testing.T) {
	payload := bytes.Repeat([]byte{0x47, 0x11}, 512)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	data, err := newTestFetcher().FetchBytes(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchBytes: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("payload mismatch: got %d bytes, want %d", len(data), len(payload))
	}
}

func TestFetchBytesStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "server error", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestFetcher().FetchBytes(context.Background(), server.URL)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if transportErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", transportErr.StatusCode)
	}
}

func TestFetchSendsConfiguredHeaders(t *testing.T) {
	var gotUA, gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		w.Write([]byte(validPlaylist))
	}))
	defer server.Close()

	client := utils.NewHLSHTTPClient(utils.HTTPClientConfig{
		UserAgent: "hlsget-test",
		Headers:   map[string]string{"Referer": "https://example.com/watch"},
	})
	if _, err := New(client).FetchText(context.Background(), server.URL); err != nil {
		t.Fatalf("FetchText: %v", err)
	}
	if gotUA != "hlsget-test" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotReferer != "https://example.com/watch" {
		t.Errorf("Referer = %q", gotReferer)
	}
}
