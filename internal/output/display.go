// Package output renders live download state to the terminal with ANSI
// redraws, one styled line per download plus a closing summary.
package output

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/reelview/hlsget/internal/coordinator"
	"github.com/reelview/hlsget/internal/utils"
)

// Display is a terminal listener for the download coordinator. Progress
// callbacks only update state; a ticker goroutine owns the actual drawing so
// redraw frequency is decoupled from event frequency.
type Display struct {
	mutex    sync.RWMutex
	rows     map[string]coordinator.Record
	captured []string
	numLines int

	doneCh      chan struct{}
	displayWg   sync.WaitGroup
	displayTick time.Duration
}

func NewDisplay() *Display {
	return &Display{
		rows:        make(map[string]coordinator.Record),
		doneCh:      make(chan struct{}),
		displayTick: 300 * time.Millisecond,
	}
}

func (d *Display) DownloadsUpdated(records []coordinator.Record) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	for _, rec := range records {
		d.rows[rec.ID] = rec
	}
}

func (d *Display) DownloadProgress(record coordinator.Record) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.rows[record.ID] = record
}

func (d *Display) DownloadComplete(record coordinator.Record) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.rows[record.ID] = record
}

func (d *Display) DownloadError(record coordinator.Record) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.rows[record.ID] = record
}

func (d *Display) StreamCaptured(url string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.captured = append(d.captured, url)
}

func (d *Display) StartDisplay() {
	d.displayWg.Add(1)
	go func() {
		defer d.displayWg.Done()
		ticker := time.NewTicker(d.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.updateDisplay()
			case <-d.doneCh:
				d.updateDisplay()
				d.ShowSummary()
				return
			}
		}
	}()
}

func (d *Display) StopDisplay() {
	close(d.doneCh)
	d.displayWg.Wait()
}

func (d *Display) statusIndicator(status coordinator.Status) string {
	switch status {
	case coordinator.StatusComplete:
		return successStyle.Render(StyleSymbols["pass"])
	case coordinator.StatusError:
		return errorStyle.Render(StyleSymbols["fail"])
	case coordinator.StatusCancelled:
		return warningStyle.Render(StyleSymbols["warning"])
	default:
		return pendingStyle.Render(StyleSymbols["pending"])
	}
}

func (d *Display) sortedRows() []coordinator.Record {
	records := make([]coordinator.Record, 0, len(d.rows))
	for _, rec := range d.rows {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].StartTime != records[j].StartTime {
			return records[i].StartTime < records[j].StartTime
		}
		return records[i].ID < records[j].ID
	})
	return records
}

func (d *Display) updateDisplay() {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	availableLines := getTerminalHeight() - 3 // Leave some buffer for prompt
	if d.numLines > 0 {
		fmt.Printf("\033[%dA\033[J", d.numLines)
	}

	lineCount := 0
	for _, rec := range d.sortedRows() {
		if lineCount >= availableLines {
			break
		}
		fmt.Printf("  %s %s\n", d.statusIndicator(rec.Status), renderRow(rec))
		lineCount++
	}
	d.numLines = lineCount
}

// renderRow is one download on one line: name, bar, then whichever of
// quality, result path, or error applies.
func renderRow(rec coordinator.Record) string {
	name := truncateName(rec.Filename, 28)
	elapsed := time.Since(time.UnixMilli(rec.StartTime)).Round(time.Second)
	parts := []string{
		debugStyle.Render(elapsed.String()),
		name,
		ProgressBar(rec.Progress, 30),
	}
	switch rec.Status {
	case coordinator.StatusComplete:
		parts = append(parts, successStyle.Render(fmt.Sprintf("%s %s", StyleSymbols["arrow"], rec.FilePath)))
		if rec.EstimatedQuality != "" {
			parts = append(parts, detailStyle.Render(fmt.Sprintf("%s @ %.1f Mbps", rec.EstimatedQuality, rec.BitrateMbps)))
		}
		if rec.DownloadedBytes > 0 {
			parts = append(parts, debugStyle.Render(utils.FormatBytes(uint64(rec.DownloadedBytes))))
		}
	case coordinator.StatusError:
		parts = append(parts, errorStyle.Render(rec.Error))
	case coordinator.StatusCancelled:
		parts = append(parts, warningStyle.Render("cancelled"))
	default:
		parts = append(parts, pendingStyle.Render(string(rec.Status)))
		if rec.EstimatedQuality != "" {
			parts = append(parts, detailStyle.Render(fmt.Sprintf("%s @ %.1f Mbps", rec.EstimatedQuality, rec.BitrateMbps)))
		}
	}
	return strings.Join(parts, " "+StyleSymbols["bullet"]+" ")
}

func (d *Display) ShowSummary() {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	fmt.Println()
	var success, failures int
	for _, rec := range d.rows {
		switch rec.Status {
		case coordinator.StatusComplete:
			success++
		case coordinator.StatusError:
			failures++
		}
	}
	fmt.Println("  " + successStyle.Render(fmt.Sprintf("Completed %d of %d", success, len(d.rows))))
	if failures > 0 {
		fmt.Println("  " + errorStyle.Render(fmt.Sprintf("Failed %d of %d", failures, len(d.rows))))
		for _, rec := range d.sortedRows() {
			if rec.Status == coordinator.StatusError {
				fmt.Printf("    %s %s\n", errorStyle.Render(rec.Filename+":"), errorStyle.Render(rec.Error))
			}
		}
	}
	if len(d.captured) > 0 {
		fmt.Println("  " + infoStyle.Render(fmt.Sprintf("Captured %d candidate streams", len(d.captured))))
	}
	fmt.Println()
}

// QuietListener discards all notifications. It backs debug runs where
// structured logs replace the live display.
type QuietListener struct{}

func (QuietListener) DownloadsUpdated([]coordinator.Record) {}
func (QuietListener) DownloadProgress(coordinator.Record)   {}
func (QuietListener) DownloadComplete(coordinator.Record)   {}
func (QuietListener) DownloadError(coordinator.Record)      {}
func (QuietListener) StreamCaptured(string)                 {}
