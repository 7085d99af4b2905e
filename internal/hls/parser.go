// Package hls parses HLS playlist text into variant and segment records.
// Parsing is forgiving: malformed attributes fall back to defaults and an
// unrecognized playlist yields an empty result rather than an error.
package hls

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	streamInfMarker = "#EXT-X-STREAM-INF"
	extInfMarker    = "EXTINF"
	defaultDuration = 5.0
)

// ParseMaster extracts the variant list from a master playlist. Each
// #EXT-X-STREAM-INF line starts a variant whose URL is the next non-comment,
// non-empty line, resolved against baseURL. An input with no stream-info
// markers returns an empty slice; callers treat that as "already a media
// playlist".
func ParseMaster(content, baseURL string) []Variant {
	var variants []Variant
	lines := splitLines(content)
	for i, line := range lines {
		if !strings.Contains(line, streamInfMarker) {
			continue
		}
		variantURL := nextURLLine(lines, i+1)
		if variantURL == "" {
			continue
		}
		bandwidth := 0
		if raw := attrValue(line, "BANDWIDTH="); raw != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
				bandwidth = n
			}
		}
		resolution := attrValue(line, "RESOLUTION=")
		variants = append(variants, Variant{
			URL:       ResolveURL(baseURL, variantURL),
			Bandwidth: bandwidth,
			Label:     variantLabel(resolution, bandwidth),
		})
	}
	return variants
}

// ParseMedia extracts the ordered segment list from a media playlist. Each
// EXTINF line starts a segment; its duration is the first float token after
// the marker (default 5.0 on a bad token) and its URL is the next non-comment
// line, resolved against baseURL.
func ParseMedia(content, baseURL string) []Segment {
	var segments []Segment
	lines := splitLines(content)
	for i, line := range lines {
		if !strings.Contains(line, extInfMarker) {
			continue
		}
		segmentURL := nextURLLine(lines, i+1)
		if segmentURL == "" {
			continue
		}
		segments = append(segments, Segment{
			URL:      ResolveURL(baseURL, segmentURL),
			Duration: parseDuration(line),
		})
	}
	return segments
}

// ResolveURL resolves a possibly-relative playlist reference against the URL
// the playlist was fetched from. On any parse failure the reference is
// returned unchanged.
func ResolveURL(baseURL, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(rel).String()
}

// DetectStreamType classifies a candidate URL by its extension markers.
func DetectStreamType(rawURL string) StreamType {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lower, ".m3u8") || strings.Contains(lower, ".m3u"):
		return StreamHLS
	case strings.Contains(lower, ".mpd"):
		return StreamDASH
	case strings.Contains(lower, ".mp4"):
		return StreamMP4
	default:
		return StreamUnknown
	}
}

func splitLines(content string) []string {
	raw := strings.Split(content, "\n")
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = strings.TrimSpace(l)
	}
	return lines
}

// nextURLLine finds the first non-empty, non-comment line at or after start.
func nextURLLine(lines []string, start int) string {
	for i := start; i < len(lines); i++ {
		if lines[i] == "" || strings.HasPrefix(lines[i], "#") {
			continue
		}
		return lines[i]
	}
	return ""
}

// attrValue extracts the value of key from an attribute line: the substring
// after key up to the next comma or end of line. Missing key returns "".
func attrValue(line, key string) string {
	idx := strings.Index(line, key)
	if idx == -1 {
		return ""
	}
	value := line[idx+len(key):]
	if comma := strings.Index(value, ","); comma != -1 {
		value = value[:comma]
	}
	return value
}

// variantLabel derives the display label: explicit resolution wins, then
// advertised bandwidth buckets, then "Auto". These buckets are intentionally
// different from the measured-throughput ones in the quality estimator.
func variantLabel(resolution string, bandwidth int) string {
	if resolution != "" {
		if x := strings.Index(resolution, "x"); x != -1 {
			return resolution[x+1:] + "p"
		}
		return resolution
	}
	switch {
	case bandwidth > 5000000:
		return "1080p"
	case bandwidth > 2500000:
		return "720p"
	case bandwidth > 1000000:
		return "480p"
	case bandwidth > 0:
		return "360p"
	default:
		return "Auto"
	}
}

func parseDuration(line string) float64 {
	idx := strings.Index(line, extInfMarker)
	rest := line[idx+len(extInfMarker):]
	rest = strings.TrimPrefix(rest, ":")
	end := 0
	for end < len(rest) && (rest[end] == '.' || (rest[end] >= '0' && rest[end] <= '9')) {
		end++
	}
	duration, err := strconv.ParseFloat(rest[:end], 64)
	if err != nil || duration < 0 {
		return defaultDuration
	}
	return duration
}
