package coordinator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/reelview/hlsget/internal/hls"
)

// maxCapturedStreams bounds the most-recent-first capture cache.
const maxCapturedStreams = 10

// CapturedStream is one candidate playlist URL observed in network traffic,
// with its pre-resolved variants when eager resolution has finished.
type CapturedStream struct {
	URL       string         `json:"url"`
	Type      hls.StreamType `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Variants  []hls.Variant  `json:"variants,omitempty"`
}

// CaptureStream records a candidate playlist URL. Duplicates and URLs that
// are clearly not stream manifests (embed pages, scripts) are ignored. New
// URLs trigger a best-effort variant resolution off the critical path;
// resolution failures are silent.
func (c *Coordinator) CaptureStream(url string) {
	if url == "" || !capturable(url) {
		return
	}
	c.mu.Lock()
	for _, existing := range c.captures {
		if existing == url {
			c.mu.Unlock()
			return
		}
	}
	c.captures = append([]string{url}, c.captures...)
	if len(c.captures) > maxCapturedStreams {
		evicted := c.captures[len(c.captures)-1]
		c.captures = c.captures[:maxCapturedStreams]
		delete(c.variants, evicted)
	}
	c.mu.Unlock()
	c.log.Debug().Str("url", truncateURL(url)).Msg("Captured stream")

	go func() {
		if variants := c.resolveVariants(url); len(variants) > 0 {
			c.mu.Lock()
			c.variants[url] = variants
			c.mu.Unlock()
			c.log.Debug().Int("count", len(variants)).Msg("Pre-cached variants for captured stream")
		}
	}()
	c.listener.StreamCaptured(url)
}

// CapturedStreams lists the capture cache, most recent first.
func (c *Coordinator) CapturedStreams() []CapturedStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	streams := make([]CapturedStream, 0, len(c.captures))
	now := time.Now().UnixMilli()
	for _, url := range c.captures {
		streams = append(streams, CapturedStream{
			URL:       url,
			Type:      hls.DetectStreamType(url),
			Timestamp: now,
			Variants:  c.variants[url],
		})
	}
	return streams
}

func (c *Coordinator) ClearCaptures() {
	c.mu.Lock()
	c.captures = nil
	c.variants = make(map[string][]hls.Variant)
	c.mu.Unlock()
}

// Variants returns the quality variants for a playlist URL, using the
// pre-resolved cache when possible. When the URL yields no variants (single
// rendition or unreachable), a single default entry for the URL itself is
// returned so callers always have something to download.
func (c *Coordinator) Variants(url string) []hls.Variant {
	c.mu.Lock()
	cached, ok := c.variants[url]
	c.mu.Unlock()
	if ok && len(cached) > 0 {
		return cached
	}
	if variants := c.resolveVariants(url); len(variants) > 0 {
		return variants
	}
	return []hls.Variant{{URL: url, Label: "Default Quality"}}
}

func (c *Coordinator) resolveVariants(url string) []hls.Variant {
	if c.fetcher == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	content, err := c.fetcher.FetchText(ctx, url)
	if err != nil {
		return nil
	}
	return hls.ParseMaster(content, url)
}

// capturable filters out URLs that carry a stream-like path but are actually
// embed pages or assets.
func capturable(url string) bool {
	lower := strings.ToLower(url)
	if hls.DetectStreamType(lower) == hls.StreamUnknown {
		return false
	}
	for _, marker := range []string{"/embed/", ".html", ".htm", ".php", ".css", ".js"} {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

func truncateURL(url string) string {
	if len(url) > 100 {
		return url[:100]
	}
	return url
}

// CaptureFeed buffers stream URLs observed before a coordinator exists and
// flushes them on attach. It replaces reach-through-global-state bridging
// between the traffic observer and the coordinator with an injected handle.
type CaptureFeed struct {
	mu      sync.Mutex
	pending []string
	coord   *Coordinator
}

const maxPendingCaptures = 32

func NewCaptureFeed() *CaptureFeed {
	return &CaptureFeed{}
}

// Offer submits a candidate URL. Before a coordinator is attached the URL is
// buffered (bounded, oldest dropped); afterwards it goes straight through.
func (f *CaptureFeed) Offer(url string) {
	if url == "" {
		return
	}
	f.mu.Lock()
	coord := f.coord
	if coord == nil {
		f.pending = append(f.pending, url)
		if len(f.pending) > maxPendingCaptures {
			f.pending = f.pending[len(f.pending)-maxPendingCaptures:]
		}
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	coord.CaptureStream(url)
}

// Attach connects the feed to a coordinator and flushes anything buffered.
func (f *CaptureFeed) Attach(c *Coordinator) {
	f.mu.Lock()
	f.coord = c
	pending := f.pending
	f.pending = nil
	f.mu.Unlock()
	for _, url := range pending {
		c.CaptureStream(url)
	}
}
