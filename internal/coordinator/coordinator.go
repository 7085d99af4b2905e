// Package coordinator owns the per-download state machine: it accepts start
// requests, runs one pipeline per download on its own goroutine, persists a
// registry snapshot on every transition, and fans progress out to a
// listener. Pipelines report through a single-consumer event channel per
// run rather than mutating shared state directly.
package coordinator

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reelview/hlsget/internal/fetch"
	"github.com/reelview/hlsget/internal/hls"
	"github.com/reelview/hlsget/internal/pipeline"
	"github.com/reelview/hlsget/internal/utils"
)

// Listener receives registry and progress notifications. Calls arrive from
// download goroutines; implementations should enqueue rather than block.
type Listener interface {
	DownloadsUpdated(records []Record)
	DownloadProgress(record Record)
	DownloadComplete(record Record)
	DownloadError(record Record)
	StreamCaptured(url string)
}

// PipelineRunner is the download pipeline the coordinator drives; it is an
// interface so tests can substitute a scripted one.
type PipelineRunner interface {
	Run(ctx context.Context, masterURL, qualityHint, displayName string, sink pipeline.ProgressSink) (string, error)
}

type eventKind int

const (
	eventProgress eventKind = iota
	eventFileReady
	eventError
)

type event struct {
	kind    eventKind
	stage   string
	percent int
	label   string
	mbps    float64
	path    string
	message string
}

// chanSink adapts the pipeline's callback protocol onto the coordinator's
// event channel.
type chanSink struct {
	events chan<- event
}

func (s chanSink) OnProgress(stage string, percent int, qualityLabel string, bitrateMbps float64) {
	s.events <- event{kind: eventProgress, stage: stage, percent: percent, label: qualityLabel, mbps: bitrateMbps}
}

func (s chanSink) OnFileReady(path, qualityLabel string, bitrateMbps float64) {
	s.events <- event{kind: eventFileReady, path: path, label: qualityLabel, mbps: bitrateMbps}
}

func (s chanSink) OnError(message string) {
	s.events <- event{kind: eventError, message: message}
}

type Coordinator struct {
	mu       sync.Mutex
	records  map[string]*Record
	cancels  map[string]context.CancelFunc
	done     map[string]chan struct{}
	captures []string
	variants map[string][]hls.Variant

	pipe     PipelineRunner
	fetcher  *fetch.Fetcher
	store    *Store
	listener Listener
	log      zerolog.Logger
}

// New builds a coordinator, loading any previously persisted registry. The
// fetcher is used for eager variant resolution of captured stream URLs and
// may be nil when capture is unused.
func New(pipe PipelineRunner, fetcher *fetch.Fetcher, store *Store, listener Listener) (*Coordinator, error) {
	c := &Coordinator{
		records:  make(map[string]*Record),
		cancels:  make(map[string]context.CancelFunc),
		done:     make(map[string]chan struct{}),
		variants: make(map[string][]hls.Variant),
		pipe:     pipe,
		fetcher:  fetcher,
		store:    store,
		listener: listener,
		log:      utils.GetLogger("coordinator"),
	}
	persisted, err := store.Load()
	if err != nil {
		return nil, err
	}
	for _, rec := range persisted {
		r := rec
		c.records[r.ID] = &r
	}
	return c, nil
}

// Start accepts a download request and returns its record id immediately;
// the pipeline runs asynchronously. The record enters "fetching" before any
// network call happens.
func (c *Coordinator) Start(url, filename, qualityHint string) string {
	id := "dl-" + uuid.NewString()
	rec := &Record{
		ID:        id,
		Filename:  filename,
		URL:       url,
		Quality:   qualityHint,
		Status:    StatusFetching,
		StartTime: time.Now().UnixMilli(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan struct{})
	c.mu.Lock()
	c.records[id] = rec
	c.cancels[id] = cancel
	c.done[id] = doneCh
	c.mu.Unlock()
	c.persistAndNotify()
	c.log.Info().Str("id", id).Str("filename", filename).Msg("Starting download")

	events := make(chan event, 16)
	go func() {
		defer close(events)
		c.pipe.Run(ctx, url, qualityHint, filename, chanSink{events: events})
	}()
	go func() {
		defer close(doneCh)
		defer cancel()
		for ev := range events {
			c.apply(id, ev)
		}
	}()
	return id
}

// apply folds one pipeline event into the record, persists the snapshot, and
// notifies the listener. Events from a cancelled run (a fetch already in
// flight when Cancel hit) are dropped so they cannot overwrite the cancelled
// state.
func (c *Coordinator) apply(id string, ev event) {
	c.mu.Lock()
	rec, ok := c.records[id]
	if !ok || rec.Status == StatusCancelled {
		c.mu.Unlock()
		return
	}
	switch ev.kind {
	case eventProgress:
		rec.Status = statusForStage(ev.stage)
		rec.Progress = ev.percent
		rec.EstimatedQuality = ev.label
		rec.BitrateMbps = ev.mbps
	case eventFileReady:
		rec.Status = StatusComplete
		rec.Progress = 100
		rec.FilePath = ev.path
		rec.EstimatedQuality = ev.label
		rec.BitrateMbps = ev.mbps
		if info, err := os.Stat(ev.path); err == nil {
			rec.DownloadedBytes = info.Size()
		}
	case eventError:
		rec.Status = StatusError
		rec.Error = ev.message
	}
	snapshot := *rec
	c.mu.Unlock()

	c.persistAndNotify()
	switch ev.kind {
	case eventProgress:
		c.listener.DownloadProgress(snapshot)
	case eventFileReady:
		c.log.Info().Str("id", id).Str("path", snapshot.FilePath).Msg("Download complete")
		c.listener.DownloadComplete(snapshot)
	case eventError:
		c.log.Error().Str("id", id).Str("error", snapshot.Error).Msg("Download failed")
		c.listener.DownloadError(snapshot)
	}
}

// List returns the registry ordered by start time, newest last.
func (c *Coordinator) List() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Cancel marks an in-flight download cancelled and stops further progress.
// Cancellation is cooperative: a segment fetch already in flight may finish
// before the pipeline observes it.
func (c *Coordinator) Cancel(id string) {
	c.mu.Lock()
	rec, ok := c.records[id]
	if !ok || rec.Status.Terminal() {
		c.mu.Unlock()
		return
	}
	rec.Status = StatusCancelled
	if cancel, ok := c.cancels[id]; ok {
		cancel()
	}
	c.mu.Unlock()
	c.log.Info().Str("id", id).Msg("Download cancelled")
	c.persistAndNotify()
}

// Remove deletes a record, optionally removing its output file. An unknown
// id is a no-op, not an error.
func (c *Coordinator) Remove(id string, deleteFile bool) {
	c.mu.Lock()
	rec, ok := c.records[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	if !rec.Status.Terminal() {
		if cancel, ok := c.cancels[id]; ok {
			cancel()
		}
	}
	filePath := rec.FilePath
	delete(c.records, id)
	delete(c.cancels, id)
	c.mu.Unlock()
	if deleteFile && filePath != "" {
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			c.log.Warn().Str("path", filePath).Msgf("Could not delete file: %v", err)
		}
	}
	c.persistAndNotify()
}

// ClearTerminal removes every record in a terminal state.
func (c *Coordinator) ClearTerminal() {
	c.mu.Lock()
	for id, rec := range c.records {
		if rec.Status.Terminal() {
			delete(c.records, id)
			delete(c.cancels, id)
		}
	}
	c.mu.Unlock()
	c.persistAndNotify()
}

// Done reports a channel that closes once the download's event stream has
// drained (terminal state applied). Unknown ids return a closed channel.
func (c *Coordinator) Done(id string) <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.done[id]; ok {
		return ch
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

func (c *Coordinator) persistAndNotify() {
	c.mu.Lock()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	if err := c.store.Save(snapshot); err != nil {
		c.log.Error().Msgf("Error persisting downloads: %v", err)
	}
	c.listener.DownloadsUpdated(snapshot)
}

func (c *Coordinator) snapshotLocked() []Record {
	records := make([]Record, 0, len(c.records))
	for _, rec := range c.records {
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].StartTime != records[j].StartTime {
			return records[i].StartTime < records[j].StartTime
		}
		return records[i].ID < records[j].ID
	})
	return records
}
