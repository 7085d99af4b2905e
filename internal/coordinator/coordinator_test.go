package coordinator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/reelview/hlsget/internal/pipeline"
)

type testListener struct {
	mu       sync.Mutex
	updated  int
	progress []Record
	complete []Record
	failed   []Record
	captured []string
}

func (l *testListener) DownloadsUpdated(records []Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updated++
}

func (l *testListener) DownloadProgress(record Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.progress = append(l.progress, record)
}

func (l *testListener) DownloadComplete(record Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.complete = append(l.complete, record)
}

func (l *testListener) DownloadError(record Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed = append(l.failed, record)
}

func (l *testListener) StreamCaptured(url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.captured = append(l.captured, url)
}

type scriptedRunner struct {
	run func(ctx context.Context, masterURL, qualityHint, displayName string, sink pipeline.ProgressSink) (string, error)
}

func (r *scriptedRunner) Run(ctx context.Context, masterURL, qualityHint, displayName string, sink pipeline.ProgressSink) (string, error) {
	return r.run(ctx, masterURL, qualityHint, displayName, sink)
}

func newTestCoordinator(t *testing.T, runner PipelineRunner) (*Coordinator, *testListener, string) {
	t.Helper()
	storePath := filepath.Join(t.TempDir(), "downloads.json")
	listener := &testListener{}
	coord, err := New(runner, nil, NewStore(storePath), listener)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return coord, listener, storePath
}

func succeedingRunner(t *testing.T, outputDir string) *scriptedRunner {
	t.Helper()
	return &scriptedRunner{run: func(ctx context.Context, masterURL, qualityHint, displayName string, sink pipeline.ProgressSink) (string, error) {
		sink.OnProgress(pipeline.StageFetching, 5, "", 0)
		sink.OnProgress(pipeline.StageDownloading, 45, "480p", 3.2)
		path := filepath.Join(outputDir, displayName+".mkv")
		if err := os.WriteFile(path, []byte("merged stream bytes"), 0644); err != nil {
			return "", err
		}
		sink.OnProgress(pipeline.StageComplete, 100, "480p", 3.2)
		sink.OnFileReady(path, "480p", 3.2)
		return path, nil
	}}
}

func TestStartToComplete(t *testing.T) {
	outputDir := t.TempDir()
	coord, listener, storePath := newTestCoordinator(t, succeedingRunner(t, outputDir))

	id := coord.Start("https://example.com/master.m3u8", "movie", "480p")
	<-coord.Done(id)

	records := coord.List()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.ID != id {
		t.Errorf("ID = %q, want %q", rec.ID, id)
	}
	if rec.Status != StatusComplete {
		t.Errorf("Status = %q, want complete", rec.Status)
	}
	if rec.Progress != 100 {
		t.Errorf("Progress = %d, want 100", rec.Progress)
	}
	if rec.FilePath == "" {
		t.Error("FilePath not set")
	}
	if rec.DownloadedBytes != int64(len("merged stream bytes")) {
		t.Errorf("DownloadedBytes = %d", rec.DownloadedBytes)
	}
	if rec.EstimatedQuality != "480p" {
		t.Errorf("EstimatedQuality = %q, want 480p", rec.EstimatedQuality)
	}

	listener.mu.Lock()
	defer listener.mu.Unlock()
	if len(listener.complete) != 1 {
		t.Errorf("DownloadComplete fired %d times", len(listener.complete))
	}
	if len(listener.progress) == 0 {
		t.Error("DownloadProgress never fired")
	}
	if listener.updated == 0 {
		t.Error("DownloadsUpdated never fired")
	}

	persisted, err := NewStore(storePath).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(persisted) != 1 || persisted[0].Status != StatusComplete {
		t.Errorf("persisted registry = %+v", persisted)
	}
}

func TestStartToError(t *testing.T) {
	runner := &scriptedRunner{run: func(ctx context.Context, masterURL, qualityHint, displayName string, sink pipeline.ProgressSink) (string, error) {
		sink.OnProgress(pipeline.StageFetching, 5, "", 0)
		sink.OnError("no segments found in playlist")
		return "", errors.New("no segments found in playlist")
	}}
	coord, listener, _ := newTestCoordinator(t, runner)

	id := coord.Start("https://example.com/empty.m3u8", "empty", "")
	<-coord.Done(id)

	rec := coord.List()[0]
	if rec.Status != StatusError {
		t.Errorf("Status = %q, want error", rec.Status)
	}
	if rec.Error != "no segments found in playlist" {
		t.Errorf("Error = %q", rec.Error)
	}
	listener.mu.Lock()
	defer listener.mu.Unlock()
	if len(listener.failed) != 1 {
		t.Errorf("DownloadError fired %d times", len(listener.failed))
	}
	if len(listener.complete) != 0 {
		t.Error("DownloadComplete fired on a failed run")
	}
}

func TestCancel(t *testing.T) {
	started := make(chan struct{})
	runner := &scriptedRunner{run: func(ctx context.Context, masterURL, qualityHint, displayName string, sink pipeline.ProgressSink) (string, error) {
		sink.OnProgress(pipeline.StageDownloading, 40, "", 0)
		close(started)
		<-ctx.Done()
		sink.OnError(ctx.Err().Error())
		return "", ctx.Err()
	}}
	coord, _, _ := newTestCoordinator(t, runner)

	id := coord.Start("https://example.com/master.m3u8", "movie", "")
	<-started
	coord.Cancel(id)
	<-coord.Done(id)

	rec := coord.List()[0]
	if rec.Status != StatusCancelled {
		t.Errorf("Status = %q, want cancelled", rec.Status)
	}
	// The late error event from the aborted pipeline must not overwrite the
	// cancelled state.
	if rec.Error != "" {
		t.Errorf("Error = %q, want empty", rec.Error)
	}
}

func TestRemove(t *testing.T) {
	outputDir := t.TempDir()
	coord, _, _ := newTestCoordinator(t, succeedingRunner(t, outputDir))

	id := coord.Start("https://example.com/master.m3u8", "movie", "")
	<-coord.Done(id)
	filePath := coord.List()[0].FilePath

	coord.Remove(id, true)
	if len(coord.List()) != 0 {
		t.Error("record still listed after Remove")
	}
	if _, err := os.Stat(filePath); !os.IsNotExist(err) {
		t.Error("output file still present after Remove with delete")
	}
}

func TestRemoveUnknownID(t *testing.T) {
	coord, _, _ := newTestCoordinator(t, &scriptedRunner{})
	coord.Remove("dl-does-not-exist", true)
	if len(coord.List()) != 0 {
		t.Error("registry not empty")
	}
}

func TestClearTerminal(t *testing.T) {
	outputDir := t.TempDir()
	coord, _, _ := newTestCoordinator(t, succeedingRunner(t, outputDir))

	first := coord.Start("https://example.com/a.m3u8", "a", "")
	<-coord.Done(first)
	second := coord.Start("https://example.com/b.m3u8", "b", "")
	<-coord.Done(second)

	coord.ClearTerminal()
	if remaining := coord.List(); len(remaining) != 0 {
		t.Errorf("expected empty registry, got %d records", len(remaining))
	}
}

func TestRegistrySurvivesRestart(t *testing.T) {
	outputDir := t.TempDir()
	coord, _, storePath := newTestCoordinator(t, succeedingRunner(t, outputDir))
	id := coord.Start("https://example.com/master.m3u8", "movie", "")
	<-coord.Done(id)

	reloaded, err := New(&scriptedRunner{}, nil, NewStore(storePath), &testListener{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	records := reloaded.List()
	if len(records) != 1 || records[0].ID != id {
		t.Errorf("reloaded registry = %+v", records)
	}
}

func TestDoneUnknownID(t *testing.T) {
	coord, _, _ := newTestCoordinator(t, &scriptedRunner{})
	select {
	case <-coord.Done("dl-unknown"):
	case <-time.After(time.Second):
		t.Fatal("Done channel for unknown id did not close")
	}
}
