// Package pipeline drives one HLS download end to end: resolve the master
// playlist, pick a variant, fetch every segment in order, track a running
// quality estimate, and hand the buffers to the assembler.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelview/hlsget/internal/assemble"
	"github.com/reelview/hlsget/internal/fetch"
	"github.com/reelview/hlsget/internal/hls"
	"github.com/reelview/hlsget/internal/quality"
	"github.com/reelview/hlsget/internal/utils"
)

// ErrNoSegments means a media playlist parsed successfully but listed zero
// segments.
var ErrNoSegments = errors.New("no segments found in playlist")

// Progress stage labels, in emission order.
const (
	StageFetching    = "Fetching playlist"
	StageAnalyzing   = "Analyzing segments"
	StageDownloading = "Downloading"
	StageMerging     = "Merging segments"
	StageConverting  = "Converting to MKV"
	StageComplete    = "Complete"
)

// ProgressSink receives the multi-stage progress protocol. Exactly one of
// OnFileReady/OnError fires per run, always last. Callbacks run on the
// pipeline's goroutine and must hand slow work off rather than block it.
type ProgressSink interface {
	OnProgress(stage string, percent int, qualityLabel string, bitrateMbps float64)
	OnFileReady(path, qualityLabel string, bitrateMbps float64)
	OnError(message string)
}

type Config struct {
	OutputDir    string
	SegmentDelay time.Duration
	RemuxEnabled bool
}

type Pipeline struct {
	fetcher   *fetch.Fetcher
	assembler *assemble.Assembler
	outputDir string
	delay     time.Duration
	log       zerolog.Logger
}

func New(fetcher *fetch.Fetcher, cfg Config) *Pipeline {
	delay := cfg.SegmentDelay
	if delay == 0 {
		delay = utils.DefaultSegmentDelay
	}
	return &Pipeline{
		fetcher:   fetcher,
		assembler: assemble.New(cfg.RemuxEnabled),
		outputDir: cfg.OutputDir,
		delay:     delay,
		log:       utils.GetLogger("pipeline"),
	}
}

// Run downloads the stream behind masterURL into a single file named after
// displayName and returns the final path. Any failure is reported through
// sink.OnError before it propagates; a failed segment aborts the whole run.
func (p *Pipeline) Run(ctx context.Context, masterURL, qualityHint, displayName string, sink ProgressSink) (string, error) {
	finalPath, err := p.run(ctx, masterURL, qualityHint, displayName, sink)
	if err != nil {
		sink.OnError(err.Error())
		return "", err
	}
	return finalPath, nil
}

func (p *Pipeline) run(ctx context.Context, masterURL, qualityHint, displayName string, sink ProgressSink) (string, error) {
	sink.OnProgress(StageFetching, 5, "", 0)
	content, err := p.fetcher.FetchText(ctx, masterURL)
	if err != nil {
		return "", err
	}

	mediaContent, mediaURL := content, masterURL
	if variants := hls.ParseMaster(content, masterURL); len(variants) > 0 {
		variant := selectVariant(variants, qualityHint)
		p.log.Debug().Str("label", variant.Label).Int("bandwidth", variant.Bandwidth).Msg("Selected variant")
		mediaURL = variant.URL
		mediaContent, err = p.fetcher.FetchText(ctx, mediaURL)
		if err != nil {
			return "", err
		}
	}

	sink.OnProgress(StageAnalyzing, 10, "", 0)
	segments := hls.ParseMedia(mediaContent, mediaURL)
	if len(segments) == 0 {
		return "", ErrNoSegments
	}
	var totalDuration float64
	for _, seg := range segments {
		totalDuration += seg.Duration
	}
	p.log.Info().Int("segments", len(segments)).Msgf("Total duration: %.1f seconds", totalDuration)

	buffers := make([][]byte, 0, len(segments))
	var totalBytes int64
	var sample quality.Sample
	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		data, err := p.fetcher.FetchBytes(ctx, seg.URL)
		if err != nil {
			return "", fmt.Errorf("segment %d of %d: %w", i+1, len(segments), err)
		}
		buffers = append(buffers, data)
		totalBytes += int64(len(data))
		downloadedDuration := float64(i+1) / float64(len(segments)) * totalDuration
		if s, ok := quality.Estimate(totalBytes, downloadedDuration); ok {
			sample = s
		}
		sink.OnProgress(StageDownloading, 10+i*70/len(segments), sample.Label, sample.BitrateMbps)
		if i%10 == 0 {
			p.log.Debug().Msgf("Downloaded segment %d/%d, total %s, est %s @ %.1f Mbps",
				i+1, len(segments), utils.FormatBytes(uint64(totalBytes)), sample.Label, sample.BitrateMbps)
		}
		// Courtesy delay so origins don't rate-limit us; skipped after the
		// final segment.
		if i < len(segments)-1 && p.delay > 0 {
			select {
			case <-time.After(p.delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	// Authoritative sample over the full transfer.
	if s, ok := quality.Estimate(totalBytes, totalDuration); ok {
		sample = s
	}
	p.log.Info().Msgf("Final quality: %s @ %.2f Mbps", sample.Label, sample.BitrateMbps)

	sink.OnProgress(StageMerging, 85, sample.Label, sample.BitrateMbps)
	basePath := filepath.Join(p.outputDir, utils.SanitizeFilename(displayName))
	sink.OnProgress(StageConverting, 92, sample.Label, sample.BitrateMbps)
	finalPath, err := p.assembler.Assemble(buffers, basePath)
	if err != nil {
		return "", err
	}

	sink.OnProgress(StageComplete, 100, sample.Label, sample.BitrateMbps)
	sink.OnFileReady(finalPath, sample.Label, sample.BitrateMbps)
	return finalPath, nil
}

// selectVariant honors the caller's quality hint with an exact label match;
// otherwise it falls back to the highest advertised bandwidth, then to the
// first listed variant.
func selectVariant(variants []hls.Variant, hint string) hls.Variant {
	if hint != "" {
		for _, v := range variants {
			if strings.EqualFold(v.Label, hint) {
				return v
			}
		}
	}
	best := variants[0]
	for _, v := range variants[1:] {
		if v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	return best
}
