package coordinator

import (
	"strings"

	"github.com/reelview/hlsget/internal/pipeline"
)

// Status is the lifecycle state of one download. The pipeline stages map
// onto the first six; error and cancelled are terminal and reachable from
// any non-terminal state.
type Status string

const (
	StatusFetching    Status = "fetching"
	StatusParsing     Status = "parsing"
	StatusDownloading Status = "downloading"
	StatusMerging     Status = "merging"
	StatusConverting  Status = "converting"
	StatusComplete    Status = "complete"
	StatusError       Status = "error"
	StatusCancelled   Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError || s == StatusCancelled
}

// Record is the persisted state of one download. FilePath is set only on
// success and Error only on failure; empty means absent and is omitted from
// the stored JSON.
type Record struct {
	ID               string  `json:"id"`
	Filename         string  `json:"filename"`
	URL              string  `json:"url"`
	Quality          string  `json:"quality,omitempty"`
	Status           Status  `json:"status"`
	Progress         int     `json:"progress"`
	DownloadedBytes  int64   `json:"downloadedBytes"`
	EstimatedQuality string  `json:"estimatedQuality,omitempty"`
	BitrateMbps      float64 `json:"bitrateMbps,omitempty"`
	FilePath         string  `json:"filePath,omitempty"`
	Error            string  `json:"error,omitempty"`
	StartTime        int64   `json:"startTime"`
}

// statusForStage maps a pipeline progress stage label to a record status.
func statusForStage(stage string) Status {
	switch strings.ToLower(stage) {
	case strings.ToLower(pipeline.StageFetching):
		return StatusFetching
	case strings.ToLower(pipeline.StageAnalyzing):
		return StatusParsing
	case strings.ToLower(pipeline.StageDownloading):
		return StatusDownloading
	case strings.ToLower(pipeline.StageMerging):
		return StatusMerging
	case strings.ToLower(pipeline.StageConverting):
		return StatusConverting
	case strings.ToLower(pipeline.StageComplete):
		return StatusComplete
	default:
		return StatusDownloading
	}
}
