// Package fetch retrieves playlist text and segment bytes over HTTP(S) with
// redirect following, gzip handling, and playlist-shape validation.
package fetch

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/reelview/hlsget/internal/utils"
)

// maxRedirectHops bounds manual redirect following so a crafted redirect loop
// cannot recurse forever.
const maxRedirectHops = 5

const minPlaylistSize = 50

type Fetcher struct {
	client utils.HTTPDoer
	log    zerolog.Logger
}

func New(client utils.HTTPDoer) *Fetcher {
	return &Fetcher{
		client: client,
		log:    utils.GetLogger("fetch"),
	}
}

// FetchText retrieves a playlist body and validates that it looks like an
// HLS playlist. Origin servers behind CDNs routinely return login or error
// pages with a 200 status; those fail with InvalidFormatError here instead
// of poisoning the parse downstream.
func (f *Fetcher) FetchText(ctx context.Context, url string) (string, error) {
	status, body, err := f.fetch(ctx, url, 0)
	if err != nil {
		return "", err
	}
	content := string(body)
	if strings.Contains(content, "<!DOCTYPE") || strings.Contains(content, "<html") {
		f.log.Warn().Str("url", url).Msg("Server returned HTML instead of a playlist")
		return "", &InvalidFormatError{Reason: "server returned HTML instead of a playlist"}
	}
	if status != http.StatusOK && status != http.StatusPartialContent {
		return "", &TransportError{StatusCode: status}
	}
	if len(content) < minPlaylistSize {
		return "", &InvalidFormatError{Reason: "response too short"}
	}
	if !strings.Contains(content, "#EXTM3U") && !strings.Contains(content, "EXTINF") {
		return "", &InvalidFormatError{Reason: "missing playlist markers"}
	}
	return content, nil
}

// FetchBytes retrieves an opaque binary resource (a media segment). No format
// validation is performed on the payload.
func (f *Fetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	status, body, err := f.fetch(ctx, url, 0)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusPartialContent {
		return nil, &TransportError{StatusCode: status}
	}
	return body, nil
}

// fetch performs one GET, following 301/302 redirects up to maxRedirectHops
// by re-invoking itself on the Location header. It returns the final status
// and the fully-read, decompressed body; the connection is released on every
// path.
func (f *Fetcher) fetch(ctx context.Context, url string, hop int) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, &TransportError{Cause: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusMovedPermanently || resp.StatusCode == http.StatusFound {
		location := resp.Header.Get("Location")
		if location != "" {
			if hop >= maxRedirectHops {
				return 0, nil, &TransportError{StatusCode: resp.StatusCode, Cause: errTooManyRedirects}
			}
			f.log.Debug().Int("hop", hop+1).Str("location", location).Msg("Following redirect")
			io.Copy(io.Discard, resp.Body)
			return f.fetch(ctx, location, hop+1)
		}
	}

	var reader io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return 0, nil, &TransportError{Cause: err}
		}
		defer gz.Close()
		reader = gz
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return 0, nil, &TransportError{Cause: err}
	}
	return resp.StatusCode, body, nil
}

var errTooManyRedirects = errors.New("too many redirects")
